package llm

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// backend describes where a provider lives and how it authenticates.
type backend struct {
	baseURL string
	// keyEnv names the API key variable. Empty means no key is needed.
	keyEnv string
	// hostEnv overrides baseURL when set.
	hostEnv string
}

var backends = map[string]backend{
	"groq":       {baseURL: "https://api.groq.com/openai/v1", keyEnv: "GROQ_API_KEY"},
	"openai":     {keyEnv: "OPENAI_API_KEY"},
	"openrouter": {baseURL: "https://openrouter.ai/api/v1", keyEnv: "OPENROUTER_API_KEY"},
	"ollama":     {baseURL: "http://localhost:11434/v1", hostEnv: "OLLAMA_HOST"},
}

// Providers lists the supported provider names.
func Providers() []string {
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewProvider builds the named provider, reading its key and host from the
// environment.
func NewProvider(name, model string) (Provider, error) {
	b, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unsupported provider %q (supported: %s)", name, strings.Join(Providers(), ", "))
	}

	key := "none"
	if b.keyEnv != "" {
		key = os.Getenv(b.keyEnv)
		if key == "" {
			return nil, fmt.Errorf("%s environment variable is not set", b.keyEnv)
		}
	}
	base := b.baseURL
	if b.hostEnv != "" {
		if host := os.Getenv(b.hostEnv); host != "" {
			base = strings.TrimSuffix(host, "/") + "/v1"
		}
	}
	return NewClient(name, base, key, model), nil
}
