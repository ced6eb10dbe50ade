package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPersonas = `[
	{
		"name": "Maria Gonzalez", "age": 29, "nationality": "Mexican",
		"currentStatus": "H-1B visa holder", "visaType": "H-1B", "complexityLevel": "medium",
		"backstory": "Software engineer whose employer was acquired.",
		"goals": ["Keep her H-1B valid"], "challenges": ["Slow HR department"],
		"tags": ["employment"]
	},
	{
		"name": "Amadou Diallo", "age": 35, "nationality": "Guinean",
		"currentStatus": "Asylum applicant", "visaType": "None", "complexityLevel": "high",
		"backstory": "Fled political persecution.",
		"goals": ["Obtain work authorization"], "challenges": ["Expired visitor visa"],
		"tags": ["asylum"]
	}
]`

const validTools = `[
	{
		"name": "check_visa_status", "description": "Look up visa status.", "category": "status",
		"parameters": [
			{"name": "visaType", "type": "string", "description": "Visa classification", "required": true}
		],
		"returnType": "object", "returnDescription": "Status record."
	},
	{
		"name": "get_processing_times", "description": "USCIS processing times.", "category": "reference",
		"parameters": [],
		"returnType": "object", "returnDescription": "Processing months."
	}
]`

const validScenarios = `[
	{
		"title": "H-1B after acquisition", "category": "visa_application", "complexity": "medium",
		"description": "Employer acquired mid-petition.", "personaIndex": 0,
		"expectedTools": ["check_visa_status"], "successCriteria": ["Explains amendment rules"],
		"maxTurns": 8
	},
	{
		"title": "Asylum work authorization", "category": "humanitarian", "complexity": "high",
		"description": "EAD during pending asylum.", "personaIndex": 1,
		"expectedTools": ["check_visa_status", "get_processing_times"],
		"successCriteria": ["Explains the 150-day rule"], "maxTurns": 10
	}
]`

func writeSeedFiles(t *testing.T, personas, tools, scenarios string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "personas.json"), []byte(personas), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tools.json"), []byte(tools), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenarios.json"), []byte(scenarios), 0o644))
	return dir
}

func TestLoadAll_Valid(t *testing.T) {
	dir := writeSeedFiles(t, validPersonas, validTools, validScenarios)

	personas, tools, scenarios, err := LoadAll(dir)
	require.NoError(t, err)
	assert.Len(t, personas, 2)
	assert.Len(t, tools, 2)
	assert.Len(t, scenarios, 2)

	assert.Equal(t, "Maria Gonzalez", personas[0].Name)
	assert.Equal(t, CategoryVisaApplication, scenarios[0].Category)
	assert.True(t, tools[0].Parameters[0].Required)
}

func TestLoadAll_SchemaViolations(t *testing.T) {
	t.Run("bad category", func(t *testing.T) {
		bad := `[{"title": "x", "category": "tax_law", "complexity": "low", "description": "d",
			"personaIndex": 0, "expectedTools": [], "successCriteria": [], "maxTurns": 5}]`
		dir := writeSeedFiles(t, validPersonas, validTools, bad)

		_, _, _, err := LoadAll(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scenarios.json is not valid")
	})

	t.Run("missing required persona field", func(t *testing.T) {
		bad := `[{"name": "X", "age": 30}]`
		dir := writeSeedFiles(t, bad, validTools, validScenarios)

		_, _, _, err := LoadAll(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "personas.json is not valid")
	})

	t.Run("bad parameter type", func(t *testing.T) {
		bad := `[{"name": "t", "description": "d", "category": "c",
			"parameters": [{"name": "p", "type": "float", "description": "d", "required": false}],
			"returnType": "object", "returnDescription": "r"}]`
		dir := writeSeedFiles(t, validPersonas, bad, validScenarios)

		_, _, _, err := LoadAll(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tools.json is not valid")
	})
}

func TestLoadAll_CrossReferences(t *testing.T) {
	t.Run("persona index out of range", func(t *testing.T) {
		bad := `[{"title": "x", "category": "humanitarian", "complexity": "low", "description": "d",
			"personaIndex": 7, "expectedTools": [], "successCriteria": [], "maxTurns": 5}]`
		dir := writeSeedFiles(t, validPersonas, validTools, bad)

		_, _, _, err := LoadAll(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "personaIndex 7")
	})

	t.Run("unknown expected tool", func(t *testing.T) {
		bad := `[{"title": "x", "category": "humanitarian", "complexity": "low", "description": "d",
			"personaIndex": 0, "expectedTools": ["summon_judge"], "successCriteria": [], "maxTurns": 5}]`
		dir := writeSeedFiles(t, validPersonas, validTools, bad)

		_, _, _, err := LoadAll(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"summon_judge"`)
	})
}

func TestLoadAll_MissingFile(t *testing.T) {
	_, _, _, err := LoadAll(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "personas.json")
}

func TestCatalog_Accessors(t *testing.T) {
	dir := writeSeedFiles(t, validPersonas, validTools, validScenarios)
	c, err := New(dir, zerolog.Nop())
	require.NoError(t, err)

	t.Run("scenarios by category", func(t *testing.T) {
		all := c.ScenariosByCategory("")
		assert.Len(t, all, 2)

		humanitarian := c.ScenariosByCategory(CategoryHumanitarian)
		require.Len(t, humanitarian, 1)
		assert.Equal(t, "Asylum work authorization", humanitarian[0].Title)

		assert.Empty(t, c.ScenariosByCategory(CategoryDeportationDefense))
	})

	t.Run("persona for scenario", func(t *testing.T) {
		sc := c.Scenarios()[1]
		persona, err := c.PersonaFor(sc)
		require.NoError(t, err)
		assert.Equal(t, "Amadou Diallo", persona.Name)

		_, err = c.PersonaFor(Scenario{Title: "bogus", PersonaIndex: 99})
		assert.Error(t, err)
	})

	t.Run("tool lookup", func(t *testing.T) {
		tool, ok := c.ToolByName("check_visa_status")
		require.True(t, ok)
		assert.Equal(t, "object", tool.ReturnType)

		_, ok = c.ToolByName("nope")
		assert.False(t, ok)
	})

	t.Run("tools for scenario", func(t *testing.T) {
		tools := c.ToolsFor(c.Scenarios()[1])
		require.Len(t, tools, 2)
		assert.Equal(t, "check_visa_status", tools[0].Name)
	})
}

func TestCatalog_RefreshKeepsOldDataOnFailure(t *testing.T) {
	dir := writeSeedFiles(t, validPersonas, validTools, validScenarios)
	c, err := New(dir, zerolog.Nop())
	require.NoError(t, err)

	// Corrupt one seed file; the refresh must fail and leave the loaded
	// data untouched.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "personas.json"), []byte("{not json"), 0o644))

	assert.Error(t, c.Refresh())
	assert.Len(t, c.Personas(), 2)
	assert.Len(t, c.Scenarios(), 2)
}

func TestValidCategory(t *testing.T) {
	for _, cat := range Categories {
		assert.True(t, ValidCategory(cat), string(cat))
	}
	assert.False(t, ValidCategory("tax_law"))
}
