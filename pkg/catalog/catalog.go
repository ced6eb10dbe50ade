// Package catalog loads and serves the immutable reference data used by the
// evaluation orchestrator: client personas, simulated tool definitions and
// evaluation scenarios. Data lives in JSON seed files and is validated
// against embedded JSON Schemas on load.
package catalog

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Catalog holds the loaded reference data and supports explicit refresh.
// It is constructed and passed in rather than living in package state, so
// tests can run independent catalogs side by side.
type Catalog struct {
	dataDir string
	logger  zerolog.Logger

	mu        sync.RWMutex
	personas  []Persona
	tools     []Tool
	scenarios []Scenario
}

// New creates a Catalog and performs the initial load.
func New(dataDir string, logger zerolog.Logger) (*Catalog, error) {
	c := &Catalog{
		dataDir: dataDir,
		logger:  logger,
	}
	if err := c.Refresh(); err != nil {
		return nil, err
	}
	return c, nil
}

// Refresh reloads every seed file. On validation failure the previously
// loaded data is kept.
func (c *Catalog) Refresh() error {
	personas, tools, scenarios, err := LoadAll(c.dataDir)
	if err != nil {
		return fmt.Errorf("catalog refresh failed: %w", err)
	}

	c.mu.Lock()
	c.personas = personas
	c.tools = tools
	c.scenarios = scenarios
	c.mu.Unlock()

	c.logger.Info().
		Int("personas", len(personas)).
		Int("tools", len(tools)).
		Int("scenarios", len(scenarios)).
		Msg("Catalog loaded")

	return nil
}

// Personas returns the loaded personas.
func (c *Catalog) Personas() []Persona {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.personas
}

// Tools returns the loaded tool definitions.
func (c *Catalog) Tools() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tools
}

// Scenarios returns the loaded scenarios.
func (c *Catalog) Scenarios() []Scenario {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scenarios
}

// ScenariosByCategory returns scenarios filtered by category. An empty
// category returns every scenario.
func (c *Catalog) ScenariosByCategory(category Category) []Scenario {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if category == "" {
		return c.scenarios
	}
	var out []Scenario
	for _, sc := range c.scenarios {
		if sc.Category == category {
			out = append(out, sc)
		}
	}
	return out
}

// PersonaFor resolves the persona linked to a scenario.
func (c *Catalog) PersonaFor(sc Scenario) (Persona, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if sc.PersonaIndex < 0 || sc.PersonaIndex >= len(c.personas) {
		return Persona{}, fmt.Errorf("scenario %q references unknown persona index %d", sc.Title, sc.PersonaIndex)
	}
	return c.personas[sc.PersonaIndex], nil
}

// ToolByName looks up a tool definition. The second return reports whether
// the tool exists.
func (c *Catalog) ToolByName(name string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, t := range c.tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// ToolsFor returns the tool definitions named by a scenario's expectedTools.
// Names with no matching definition are skipped.
func (c *Catalog) ToolsFor(sc Scenario) []Tool {
	var out []Tool
	for _, name := range sc.ExpectedTools {
		if t, ok := c.ToolByName(name); ok {
			out = append(out, t)
		}
	}
	return out
}
