package conversation

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/catalog"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/llm"
)

const fallbackPersonaReply = "I'm not sure what to say."

// PersonaSimulator roleplays the immigration client with a cheap simulator
// model. Its system prompt is the persona character sheet plus the scenario
// being played.
type PersonaSimulator struct {
	provider     llm.Provider
	model        string
	systemPrompt string
	logger       zerolog.Logger
}

// NewPersonaSimulator creates a persona simulator for one session.
func NewPersonaSimulator(provider llm.Provider, model string, persona catalog.Persona, scenario catalog.Scenario, logger zerolog.Logger) *PersonaSimulator {
	return &PersonaSimulator{
		provider:     provider,
		model:        model,
		systemPrompt: PersonaSystemPrompt(persona, scenario),
		logger:       logger,
	}
}

// InitialMessage generates the persona's opening message from an empty
// history: the character sheet instructs it to introduce itself.
func (p *PersonaSimulator) InitialMessage(ctx context.Context) (string, error) {
	return p.generate(ctx, nil)
}

// NextMessage generates the persona's reply to the conversation so far.
//
// The history is flipped to the persona's perspective: the persona's own
// prior utterances (role user in the session transcript) become assistant
// messages, the agent's replies become user messages. System and tool
// messages are dropped.
func (p *PersonaSimulator) NextMessage(ctx context.Context, history []llm.Message) (string, error) {
	flipped := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case "user":
			flipped = append(flipped, llm.Message{Role: "assistant", Content: msg.Content})
		case "assistant":
			if msg.Content != "" {
				flipped = append(flipped, llm.Message{Role: "user", Content: msg.Content})
			}
		}
	}
	return p.generate(ctx, flipped)
}

func (p *PersonaSimulator) generate(ctx context.Context, messages []llm.Message) (string, error) {
	resp, err := invokeWithRetry(ctx, p.provider, llm.Request{
		Model:        p.model,
		Messages:     messages,
		SystemPrompt: p.systemPrompt,
	}, p.logger)
	if err != nil {
		return "", err
	}
	if resp.Content == "" {
		return fallbackPersonaReply, nil
	}
	return resp.Content, nil
}
