package catalog

// JSON Schemas used to validate the seed data files before decoding.
// Each file holds a top-level array of entities.

const personaSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["name", "age", "nationality", "currentStatus", "visaType", "complexityLevel", "backstory", "goals", "challenges", "tags"],
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"age": {"type": "integer", "minimum": 0},
			"nationality": {"type": "string"},
			"countryFlag": {"type": "string"},
			"currentStatus": {"type": "string"},
			"visaType": {"type": "string"},
			"complexityLevel": {"enum": ["low", "medium", "high"]},
			"backstory": {"type": "string"},
			"goals": {"type": "array", "items": {"type": "string"}},
			"challenges": {"type": "array", "items": {"type": "string"}},
			"familyInfo": {"type": "string"},
			"employmentInfo": {"type": "string"},
			"educationInfo": {"type": "string"},
			"tags": {"type": "array", "items": {"type": "string"}}
		}
	}
}`

const toolSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["name", "description", "category", "parameters", "returnType", "returnDescription"],
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"description": {"type": "string"},
			"category": {"type": "string"},
			"parameters": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["name", "type", "description", "required"],
					"properties": {
						"name": {"type": "string", "minLength": 1},
						"type": {"enum": ["string", "number", "integer", "boolean", "array", "object"]},
						"description": {"type": "string"},
						"required": {"type": "boolean"}
					}
				}
			},
			"returnType": {"type": "string"},
			"returnDescription": {"type": "string"}
		}
	}
}`

const scenarioSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["title", "category", "complexity", "description", "personaIndex", "expectedTools", "successCriteria", "maxTurns"],
		"properties": {
			"title": {"type": "string", "minLength": 1},
			"category": {"enum": ["visa_application", "status_change", "family_immigration", "deportation_defense", "humanitarian"]},
			"complexity": {"enum": ["low", "medium", "high"]},
			"description": {"type": "string"},
			"personaIndex": {"type": "integer", "minimum": 0},
			"expectedTools": {"type": "array", "items": {"type": "string"}},
			"successCriteria": {"type": "array", "items": {"type": "string"}},
			"maxTurns": {"type": "integer", "minimum": 1}
		}
	}
}`
