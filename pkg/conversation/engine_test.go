package conversation

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/catalog"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/events"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/llm"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/session"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/store"
)

// fakeProvider scripts provider behavior and records every request it saw.
type fakeProvider struct {
	name   string
	invoke func(req llm.Request) (*llm.Response, error)

	mu       sync.Mutex
	requests []llm.Request
}

func (f *fakeProvider) Invoke(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.invoke(req)
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) recorded() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

type fakeProviders map[string]llm.Provider

func (f fakeProviders) NewProvider(name string) (llm.Provider, error) {
	p, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, llm.ErrProviderUnavailable)
	}
	return p, nil
}

// newSimProvider answers tool simulations with a fixed JSON payload and
// persona turns from the given script, keyed by 1-based persona call number.
func newSimProvider(personaReply func(call int) string) *fakeProvider {
	personaCalls := 0
	return &fakeProvider{
		name: "sim",
		invoke: func(req llm.Request) (*llm.Response, error) {
			if strings.Contains(req.SystemPrompt, "simulated immigration tool API") {
				return &llm.Response{Content: `{"status":"ok"}`}, nil
			}
			personaCalls++
			return &llm.Response{Content: personaReply(personaCalls)}, nil
		},
	}
}

func textAgent(reply string) *fakeProvider {
	return &fakeProvider{
		name: "agent",
		invoke: func(llm.Request) (*llm.Response, error) {
			return &llm.Response{Content: reply}, nil
		},
	}
}

func testScenario(maxTurns int) catalog.Scenario {
	return catalog.Scenario{
		Title:           "Work authorization during pending asylum case",
		Category:        catalog.CategoryHumanitarian,
		Complexity:      "high",
		Description:     "An asylum applicant wants work authorization.",
		ExpectedTools:   []string{"check_visa_status"},
		SuccessCriteria: []string{"Explains the 150-day waiting period"},
		MaxTurns:        maxTurns,
	}
}

func testPersona() catalog.Persona {
	return catalog.Persona{
		Name:          "Amadou Diallo",
		Age:           35,
		Nationality:   "Guinean",
		CurrentStatus: "Asylum applicant",
		Goals:         []string{"Obtain work authorization"},
		Challenges:    []string{"Expired visitor visa"},
	}
}

func testTools() []catalog.Tool {
	return []catalog.Tool{{
		Name:        "check_visa_status",
		Description: "Look up visa status.",
		Parameters: []catalog.ToolParameter{
			{Name: "visaType", Type: "string", Description: "Visa classification", Required: true},
		},
		ReturnType:        "object",
		ReturnDescription: "Status record.",
	}}
}

func testModel() llm.ModelConfig {
	return llm.ModelConfig{
		ModelID:       "test-model",
		Provider:      "agent",
		APIModel:      "test-model-v1",
		SupportsTools: true,
	}
}

func setupEngine(t *testing.T, agent, sim llm.Provider, stop StopPredicate) (*Engine, *session.Manager) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	broadcaster := events.NewBroadcaster(zerolog.Nop())
	t.Cleanup(broadcaster.Close)
	mgr := session.NewManager(st, broadcaster, zerolog.Nop())

	engine := NewEngine(Config{
		Sessions:       mgr,
		Providers:      fakeProviders{"agent": agent, "sim": sim},
		SimulatorModel: llm.ModelConfig{Provider: "sim", APIModel: "sim-model"},
		Stop:           stop,
		Logger:         zerolog.Nop(),
	})
	return engine, mgr
}

func createSession(t *testing.T, mgr *session.Manager, sc catalog.Scenario) *store.Session {
	t.Helper()
	sess, err := mgr.Create(context.Background(), session.CreateParams{
		ScenarioTitle:    sc.Title,
		ScenarioCategory: string(sc.Category),
		ModelID:          "test-model",
		PersonaName:      "Amadou Diallo",
	})
	require.NoError(t, err)
	return sess
}

func TestEngine_TimesOutAtTurnBudget(t *testing.T) {
	agent := textAgent("Here is some general guidance on your case.")
	sim := newSimProvider(func(int) string { return "I still need more help with my case." })
	engine, mgr := setupEngine(t, agent, sim, nil)

	sc := testScenario(3)
	sess := createSession(t, mgr, sc)
	ctx := context.Background()

	require.NoError(t, engine.Run(ctx, sess, sc, testPersona(), testTools(), testModel()))

	got, err := mgr.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, string(session.StatusTimeout), got.Status)
	assert.Equal(t, 3, got.TotalTurns)

	msgs, err := mgr.Messages(ctx, sess.ID)
	require.NoError(t, err)

	var personaMsgs, agentMsgs, systemMsgs int
	for _, m := range msgs {
		switch m.Role {
		case "user":
			personaMsgs++
		case "assistant":
			agentMsgs++
		case "system":
			systemMsgs++
		}
	}
	assert.Equal(t, 1, systemMsgs)
	assert.Equal(t, 3, personaMsgs)
	assert.Equal(t, 3, agentMsgs)
}

func TestEngine_CompletesOnStopPhrase(t *testing.T) {
	agent := textAgent("You qualify for an EAD after the 150-day waiting period.")
	sim := newSimProvider(func(call int) string {
		if call == 1 {
			return "Hello, I need help with work authorization."
		}
		return "Thank you so much, that answers my question."
	})
	engine, mgr := setupEngine(t, agent, sim, nil)

	sc := testScenario(8)
	sess := createSession(t, mgr, sc)
	ctx := context.Background()

	require.NoError(t, engine.Run(ctx, sess, sc, testPersona(), testTools(), testModel()))

	got, err := mgr.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, string(session.StatusCompleted), got.Status)
	assert.Equal(t, 2, got.TotalTurns)
	assert.NotNil(t, got.CompletedAt)
}

func TestEngine_ToolSubLoop(t *testing.T) {
	agentCalls := 0
	agent := &fakeProvider{
		name: "agent",
		invoke: func(llm.Request) (*llm.Response, error) {
			agentCalls++
			if agentCalls == 1 {
				return &llm.Response{ToolCalls: []llm.ToolCall{{
					ID:        "call_1",
					Name:      "check_visa_status",
					Arguments: map[string]interface{}{"visaType": "H-1B"},
				}}}, nil
			}
			return &llm.Response{Content: "Your visa status checks out."}, nil
		},
	}
	sim := newSimProvider(func(call int) string {
		if call == 1 {
			return "Can you check my visa status?"
		}
		return "Thank you so much, goodbye."
	})
	engine, mgr := setupEngine(t, agent, sim, nil)

	sc := testScenario(8)
	sess := createSession(t, mgr, sc)
	ctx := context.Background()

	require.NoError(t, engine.Run(ctx, sess, sc, testPersona(), testTools(), testModel()))

	msgs, err := mgr.Messages(ctx, sess.ID)
	require.NoError(t, err)

	// Turn 1: user, assistant(tool call), tool, assistant(text).
	var turn1 []store.Message
	for _, m := range msgs {
		if m.TurnNumber == 1 {
			turn1 = append(turn1, m)
		}
	}
	require.Len(t, turn1, 4)
	assert.Equal(t, "user", turn1[0].Role)

	assert.Equal(t, "assistant", turn1[1].Role)
	require.Len(t, turn1[1].ToolCalls, 1)
	assert.Equal(t, "call_1", turn1[1].ToolCalls[0].ID)
	assert.Equal(t, "check_visa_status", turn1[1].ToolCalls[0].Name)

	assert.Equal(t, "tool", turn1[2].Role)
	assert.Equal(t, "call_1", turn1[2].ToolCallID)
	assert.Equal(t, `{"status":"ok"}`, turn1[2].Content)

	assert.Equal(t, "assistant", turn1[3].Role)
	assert.Equal(t, "Your visa status checks out.", turn1[3].Content)

	// The tool result was fed back to the agent before its final reply.
	agentReqs := agent.recorded()
	require.Len(t, agentReqs, 3)
	secondHistory := agentReqs[1].Messages
	assert.Equal(t, "tool", secondHistory[len(secondHistory)-1].Role)
}

func TestEngine_ToolIterationCap(t *testing.T) {
	agent := &fakeProvider{
		name: "agent",
		invoke: func(llm.Request) (*llm.Response, error) {
			return &llm.Response{ToolCalls: []llm.ToolCall{{
				ID:   "call_x",
				Name: "check_visa_status",
			}}}, nil
		},
	}
	sim := newSimProvider(func(int) string { return "Please check again." })
	engine, mgr := setupEngine(t, agent, sim, nil)

	sc := testScenario(3)
	sess := createSession(t, mgr, sc)
	ctx := context.Background()

	err := engine.Run(ctx, sess, sc, testPersona(), testTools(), testModel())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool iteration cap")

	got, getErr := mgr.Get(ctx, sess.ID)
	require.NoError(t, getErr)
	assert.Equal(t, string(session.StatusFailed), got.Status)
	assert.Contains(t, got.ErrorMessage, "tool iteration cap")
}

func TestEngine_AgentFailureFailsSession(t *testing.T) {
	agent := &fakeProvider{
		name: "agent",
		invoke: func(llm.Request) (*llm.Response, error) {
			return nil, &llm.ProviderError{Provider: "agent", Status: 400, Body: "bad request"}
		},
	}
	sim := newSimProvider(func(int) string { return "Hello, I need help." })
	engine, mgr := setupEngine(t, agent, sim, nil)

	sc := testScenario(3)
	sess := createSession(t, mgr, sc)
	ctx := context.Background()

	err := engine.Run(ctx, sess, sc, testPersona(), testTools(), testModel())
	require.Error(t, err)

	got, getErr := mgr.Get(ctx, sess.ID)
	require.NoError(t, getErr)
	assert.Equal(t, string(session.StatusFailed), got.Status)
	assert.Contains(t, got.ErrorMessage, "agent turn 1")

	// The persona's message survived the failure.
	msgs, err := mgr.Messages(ctx, sess.ID)
	require.NoError(t, err)
	var userMsgs int
	for _, m := range msgs {
		if m.Role == "user" {
			userMsgs++
		}
	}
	assert.Equal(t, 1, userMsgs)
}

func TestEngine_MissingProviderFailsSession(t *testing.T) {
	sim := newSimProvider(func(int) string { return "Hello." })
	engine, mgr := setupEngine(t, nil, sim, nil)

	sc := testScenario(3)
	sess := createSession(t, mgr, sc)
	ctx := context.Background()

	model := testModel()
	model.Provider = "unconfigured"

	err := engine.Run(ctx, sess, sc, testPersona(), testTools(), model)
	require.ErrorIs(t, err, llm.ErrProviderUnavailable)

	got, getErr := mgr.Get(ctx, sess.ID)
	require.NoError(t, getErr)
	assert.Equal(t, string(session.StatusFailed), got.Status)
	assert.Contains(t, got.ErrorMessage, "agent provider")
}

func TestEngine_CancelObservedAtTurnBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agent := textAgent("Some guidance.")
	sim := newSimProvider(func(int) string { return "I have more questions." })

	// Cancel after the first full turn; the next boundary check must settle
	// the session as cancelled with the turn's transcript intact.
	stop := func(personaMessage, agentReply string, turn int) bool {
		cancel()
		return false
	}
	engine, mgr := setupEngine(t, agent, sim, stop)

	sc := testScenario(8)
	sess := createSession(t, mgr, sc)

	err := engine.Run(ctx, sess, sc, testPersona(), testTools(), testModel())
	require.ErrorIs(t, err, context.Canceled)

	got, getErr := mgr.Get(context.Background(), sess.ID)
	require.NoError(t, getErr)
	assert.Equal(t, string(session.StatusCancelled), got.Status)
	assert.Equal(t, 1, got.TotalTurns)

	msgs, msgErr := mgr.Messages(context.Background(), sess.ID)
	require.NoError(t, msgErr)
	assert.Len(t, msgs, 3) // system + user + assistant
}

func TestEngine_ToollessModelGetsNoDefinitions(t *testing.T) {
	agent := &fakeProvider{
		name: "agent",
		invoke: func(llm.Request) (*llm.Response, error) {
			return &llm.Response{Content: "Text-only guidance."}, nil
		},
	}
	sim := newSimProvider(func(call int) string {
		if call == 1 {
			return "Hello."
		}
		return "Thank you so much, goodbye."
	})
	engine, mgr := setupEngine(t, agent, sim, nil)

	sc := testScenario(8)
	sess := createSession(t, mgr, sc)

	model := testModel()
	model.SupportsTools = false

	require.NoError(t, engine.Run(context.Background(), sess, sc, testPersona(), testTools(), model))

	for _, req := range agent.recorded() {
		assert.Empty(t, req.Tools)
	}
}
