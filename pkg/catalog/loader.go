package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Seed file names expected inside the data directory.
const (
	personasFile  = "personas.json"
	toolsFile     = "tools.json"
	scenariosFile = "scenarios.json"
)

// loadFile reads a seed file, validates it against the given JSON schema
// and decodes it into out.
func loadFile(dataDir, name, schema string, out interface{}) error {
	path := filepath.Join(dataDir, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to validate %s: %w", name, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return fmt.Errorf("%s is not valid: %s", name, strings.Join(details, "; "))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

// LoadPersonas loads and validates personas.json.
func LoadPersonas(dataDir string) ([]Persona, error) {
	var personas []Persona
	if err := loadFile(dataDir, personasFile, personaSchema, &personas); err != nil {
		return nil, err
	}
	return personas, nil
}

// LoadTools loads and validates tools.json.
func LoadTools(dataDir string) ([]Tool, error) {
	var tools []Tool
	if err := loadFile(dataDir, toolsFile, toolSchema, &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

// LoadScenarios loads and validates scenarios.json.
func LoadScenarios(dataDir string) ([]Scenario, error) {
	var scenarios []Scenario
	if err := loadFile(dataDir, scenariosFile, scenarioSchema, &scenarios); err != nil {
		return nil, err
	}
	return scenarios, nil
}

// LoadAll loads every seed file and checks cross-references:
// each scenario's personaIndex must point at a loaded persona and each
// expected tool must exist in tools.json.
func LoadAll(dataDir string) ([]Persona, []Tool, []Scenario, error) {
	personas, err := LoadPersonas(dataDir)
	if err != nil {
		return nil, nil, nil, err
	}
	tools, err := LoadTools(dataDir)
	if err != nil {
		return nil, nil, nil, err
	}
	scenarios, err := LoadScenarios(dataDir)
	if err != nil {
		return nil, nil, nil, err
	}

	toolNames := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		toolNames[t.Name] = struct{}{}
	}

	for i, sc := range scenarios {
		if sc.PersonaIndex < 0 || sc.PersonaIndex >= len(personas) {
			return nil, nil, nil, fmt.Errorf(
				"scenario %d (%q) references personaIndex %d, but only %d personas exist",
				i, sc.Title, sc.PersonaIndex, len(personas))
		}
		for _, name := range sc.ExpectedTools {
			if _, ok := toolNames[name]; !ok {
				return nil, nil, nil, fmt.Errorf(
					"scenario %d (%q) references tool %q which does not exist in %s",
					i, sc.Title, name, toolsFile)
			}
		}
	}

	return personas, tools, scenarios, nil
}
