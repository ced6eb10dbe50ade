// Package conversation runs one evaluation session end to end: the persona
// simulator plays the immigration client, the model under test plays the
// agent, and the tool simulator fabricates API responses for every tool the
// agent calls. The engine owns turn advancement and the session's terminal
// status; every generated message is persisted before stop conditions are
// evaluated, so a cancelled or failed session keeps its full transcript.
package conversation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/catalog"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/llm"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/session"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/store"
)

const defaultMaxToolIterations = 5

// ProviderSource builds providers by name. *llm.Factory satisfies it.
type ProviderSource interface {
	NewProvider(provider string) (llm.Provider, error)
}

// Config wires an Engine.
type Config struct {
	Sessions       *session.Manager
	Providers      ProviderSource
	SimulatorModel llm.ModelConfig

	// MaxToolIterations caps the agent's tool sub-loop per turn.
	// Zero means the default of 5.
	MaxToolIterations int

	// Stop decides when the conversation is resolved. Nil means DefaultStop.
	Stop StopPredicate

	Logger zerolog.Logger
}

// Engine drives multi-turn evaluation conversations.
type Engine struct {
	sessions          *session.Manager
	providers         ProviderSource
	simulatorModel    llm.ModelConfig
	maxToolIterations int
	stop              StopPredicate
	logger            zerolog.Logger
}

// NewEngine creates a conversation engine.
func NewEngine(cfg Config) *Engine {
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = defaultMaxToolIterations
	}
	if cfg.Stop == nil {
		cfg.Stop = DefaultStop
	}
	return &Engine{
		sessions:          cfg.Sessions,
		providers:         cfg.Providers,
		simulatorModel:    cfg.SimulatorModel,
		maxToolIterations: cfg.MaxToolIterations,
		stop:              cfg.Stop,
		logger:            cfg.Logger,
	}
}

// Run executes one session to a terminal status. The returned error reports
// why the session did not complete; the session's own status is always
// settled before Run returns.
func (e *Engine) Run(ctx context.Context, sess *store.Session, scenario catalog.Scenario, persona catalog.Persona, tools []catalog.Tool, model llm.ModelConfig) error {
	logger := e.logger.With().
		Str("sessionId", sess.ID).
		Str("scenario", scenario.Title).
		Str("model", model.ModelID).
		Logger()

	agentProvider, err := e.providers.NewProvider(model.Provider)
	if err != nil {
		return e.fail(ctx, sess.ID, logger, fmt.Errorf("agent provider: %w", err))
	}
	simProvider, err := e.providers.NewProvider(e.simulatorModel.Provider)
	if err != nil {
		return e.fail(ctx, sess.ID, logger, fmt.Errorf("simulator provider: %w", err))
	}

	if err := e.sessions.Start(ctx, sess.ID); err != nil {
		return err
	}
	logger.Info().Str("persona", persona.Name).Msg("Session started")

	agentPrompt := AgentSystemPrompt(tools)
	var toolDefs []llm.ToolDefinition
	if model.SupportsTools {
		toolDefs = Definitions(tools)
	}

	personaSim := NewPersonaSimulator(simProvider, e.simulatorModel.APIModel, persona, scenario, logger)
	toolSim := NewToolSimulator(simProvider, e.simulatorModel.APIModel, tools, logger)

	if err := e.persist(ctx, sess.ID, store.Message{
		SessionID:  sess.ID,
		Role:       "system",
		Content:    agentPrompt,
		TurnNumber: 0,
	}); err != nil {
		return e.fail(ctx, sess.ID, logger, err)
	}

	// Conversation history from the agent's perspective.
	var history []llm.Message
	turns := 0

	for turns < scenario.MaxTurns {
		// Cancellation is observed only here, at full-turn boundaries.
		select {
		case <-ctx.Done():
			if cancelErr := e.sessions.Cancel(context.WithoutCancel(ctx), sess.ID); cancelErr != nil {
				logger.Error().Err(cancelErr).Msg("Failed to cancel session")
			}
			return ctx.Err()
		default:
		}

		turnNumber := turns + 1

		var personaMsg string
		if turns == 0 {
			personaMsg, err = personaSim.InitialMessage(ctx)
		} else {
			personaMsg, err = personaSim.NextMessage(ctx, history)
		}
		if err != nil {
			return e.fail(ctx, sess.ID, logger, fmt.Errorf("persona turn %d: %w", turnNumber, err))
		}

		if err := e.persist(ctx, sess.ID, store.Message{
			SessionID:  sess.ID,
			Role:       "user",
			Content:    personaMsg,
			TurnNumber: turnNumber,
		}); err != nil {
			return e.fail(ctx, sess.ID, logger, err)
		}
		history = append(history, llm.Message{Role: "user", Content: personaMsg})

		agentReply, err := e.agentTurn(ctx, sess.ID, turnNumber, &history, agentProvider, model, agentPrompt, toolDefs, toolSim, logger)
		if err != nil {
			return e.fail(ctx, sess.ID, logger, fmt.Errorf("agent turn %d: %w", turnNumber, err))
		}

		turns++
		if err := e.sessions.RecordTurn(ctx, sess.ID, turns); err != nil {
			return e.fail(ctx, sess.ID, logger, err)
		}

		if e.stop(personaMsg, agentReply, turns) {
			logger.Info().Int("turns", turns).Msg("Session resolved")
			return e.sessions.Complete(ctx, sess.ID, turns)
		}
	}

	logger.Info().Int("turns", turns).Msg("Session hit turn budget")
	return e.sessions.Timeout(ctx, sess.ID, turns)
}

// agentTurn runs the agent's tool sub-loop for one turn and returns the
// agent's final textual reply.
func (e *Engine) agentTurn(ctx context.Context, sessionID string, turnNumber int, history *[]llm.Message, provider llm.Provider, model llm.ModelConfig, systemPrompt string, toolDefs []llm.ToolDefinition, toolSim *ToolSimulator, logger zerolog.Logger) (string, error) {
	for iteration := 0; iteration < e.maxToolIterations; iteration++ {
		resp, err := invokeWithRetry(ctx, provider, llm.Request{
			Model:        model.APIModel,
			Messages:     *history,
			Tools:        toolDefs,
			SystemPrompt: systemPrompt,
		}, logger)
		if err != nil {
			return "", err
		}

		if len(resp.ToolCalls) == 0 {
			if err := e.persist(ctx, sessionID, store.Message{
				SessionID:  sessionID,
				Role:       "assistant",
				Content:    resp.Content,
				TurnNumber: turnNumber,
			}); err != nil {
				return "", err
			}
			*history = append(*history, llm.Message{Role: "assistant", Content: resp.Content})
			return resp.Content, nil
		}

		records := make([]store.ToolCallRecord, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			records = append(records, store.ToolCallRecord{
				ID:        call.ID,
				Name:      call.Name,
				Arguments: call.Arguments,
			})
		}
		if err := e.persist(ctx, sessionID, store.Message{
			SessionID:  sessionID,
			Role:       "assistant",
			Content:    resp.Content,
			TurnNumber: turnNumber,
			ToolCalls:  records,
		}); err != nil {
			return "", err
		}
		*history = append(*history, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			result := toolSim.Simulate(ctx, call)
			if err := e.persist(ctx, sessionID, store.Message{
				SessionID:  sessionID,
				Role:       "tool",
				Content:    result,
				TurnNumber: turnNumber,
				ToolCallID: call.ID,
			}); err != nil {
				return "", err
			}
			*history = append(*history, llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	return "", fmt.Errorf("tool iteration cap (%d) exceeded", e.maxToolIterations)
}

func (e *Engine) persist(ctx context.Context, sessionID string, msg store.Message) error {
	if err := e.sessions.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to persist %s message: %w", msg.Role, err)
	}
	return nil
}

// fail settles the session as failed and returns the original error. The
// status write uses a detached context so a cancelled run still records why
// it died.
func (e *Engine) fail(ctx context.Context, sessionID string, logger zerolog.Logger, err error) error {
	logger.Error().Err(err).Msg("Session failed")
	if failErr := e.sessions.Fail(context.WithoutCancel(ctx), sessionID, err.Error()); failErr != nil {
		logger.Error().Err(failErr).Msg("Failed to record session failure")
	}
	return err
}
