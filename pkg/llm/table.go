package llm

// ProviderSettings holds the declarative per-provider dispatch entry:
// endpoint, credential env var name and extra headers. An ordinary value
// table, looked up at provider construction.
type ProviderSettings struct {
	BaseURL      string
	EnvKey       string
	ExtraHeaders map[string]string
}

// providerTable maps provider selectors to their settings. The three
// OpenAI-compatible providers share a wire protocol and differ only in
// endpoint and credentials; anthropic uses its own SDK.
var providerTable = map[string]ProviderSettings{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		EnvKey:  "OPENAI_API_KEY",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		EnvKey:  "OPENROUTER_API_KEY",
		ExtraHeaders: map[string]string{
			"X-Title": "Saggiatore Immigration Agent Eval",
		},
	},
	"groq": {
		BaseURL: "https://api.groq.com/openai/v1",
		EnvKey:  "GROQ_API_KEY",
	},
	"anthropic": {
		EnvKey: "ANTHROPIC_API_KEY",
	},
}

// Settings returns the dispatch entry for a provider selector.
func Settings(provider string) (ProviderSettings, bool) {
	s, ok := providerTable[provider]
	return s, ok
}

// Providers returns the known provider selectors.
func Providers() []string {
	out := make([]string, 0, len(providerTable))
	for name := range providerTable {
		out = append(out, name)
	}
	return out
}
