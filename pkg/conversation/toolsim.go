package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/catalog"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/llm"
)

// ToolSimulator answers tool calls with plausible JSON fabricated by the
// simulator model. It answers every call the agent makes: an unknown tool
// gets a generic definition rather than an error, so a hallucinated tool
// name surfaces as a scoring problem, not a session failure.
type ToolSimulator struct {
	provider llm.Provider
	model    string
	tools    map[string]catalog.Tool
	logger   zerolog.Logger
}

// NewToolSimulator creates a tool simulator over the given tool set.
func NewToolSimulator(provider llm.Provider, model string, tools []catalog.Tool, logger zerolog.Logger) *ToolSimulator {
	byName := make(map[string]catalog.Tool, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}
	return &ToolSimulator{
		provider: provider,
		model:    model,
		tools:    byName,
		logger:   logger,
	}
}

// Definitions converts catalog tools to the wire shape offered to the
// agent under test.
func Definitions(tools []catalog.Tool) []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		properties := map[string]interface{}{}
		required := []string{}
		for _, p := range t.Parameters {
			properties[p.Name] = map[string]interface{}{
				"type":        p.Type,
				"description": p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		})
	}
	return defs
}

// Simulate fabricates a JSON response for one tool call. Simulation
// failures are returned as a JSON error payload in-band.
func (ts *ToolSimulator) Simulate(ctx context.Context, call llm.ToolCall) string {
	prompt := ts.promptFor(call.Name)

	args, err := json.Marshal(call.Arguments)
	if err != nil {
		args = []byte("{}")
	}

	resp, err := invokeWithRetry(ctx, ts.provider, llm.Request{
		Model:        ts.model,
		SystemPrompt: prompt,
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf("Arguments: %s", args)},
		},
	}, ts.logger)
	if err != nil {
		ts.logger.Warn().Err(err).Str("tool", call.Name).Msg("Tool simulation failed")
		return errorPayload(fmt.Sprintf("Tool simulation error: %s", err))
	}
	if resp.Content == "" {
		return errorPayload("Tool simulation failed")
	}
	return resp.Content
}

func (ts *ToolSimulator) promptFor(name string) string {
	if tool, ok := ts.tools[name]; ok {
		return toolSimulatorPrompt(tool.Name, tool.Description, tool.ReturnType, tool.ReturnDescription)
	}
	ts.logger.Warn().Str("tool", name).Msg("Simulating unknown tool")
	return toolSimulatorPrompt(name, "An immigration-related lookup tool.", "object", "A plausible JSON object answering the request.")
}

func errorPayload(msg string) string {
	data, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error":"tool simulation failed"}`
	}
	return string(data)
}
