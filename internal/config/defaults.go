package config

// defaultModels maps each provider to the model used when none is configured.
var defaultModels = map[ProviderType]string{
	ProviderGroq:       "llama-3.1-8b-instant",
	ProviderOpenAI:     "gpt-4o-mini",
	ProviderOpenRouter: "google/gemma-2-9b-it",
	ProviderOllama:     "llama3",
}

// Product embedders.
const (
	EmbedderLocal  = "local"
	EmbedderOpenAI = "openai"
)

// DefaultAllowedUploads are the image file patterns accepted by the upload endpoint.
var DefaultAllowedUploads = []string{
	"*.{jpg,jpeg,JPG,JPEG}",
	"*.{png,PNG}",
	"*.{gif,GIF}",
	"*.{webp,WEBP}",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    8080,
			BaseURL: "http://localhost:8080",
			AllowedOrigins: []string{
				"http://localhost",
				"http://localhost:8000",
				"http://localhost:8500",
				"http://127.0.0.1:8500",
			},
			SessionTTLHours: 1,
		},
		Database: DatabaseConfig{Path: "data/autogenius.db"},
		LLM: LLMConfig{
			Provider:    ProviderGroq,
			Model:       defaultModels[ProviderGroq],
			Temperature: 0,
			MaxTokens:   1024,
		},
		Uploads: UploadsConfig{
			Dir:      "static/uploads",
			MaxBytes: 5 * 1024 * 1024,
			Allowed:  DefaultAllowedUploads,
		},
		Products: ProductsConfig{
			CatalogPath: "data/products.csv",
			TopK:        3,
			Embedder:    EmbedderLocal,
		},
		Client: ClientConfig{
			ServerURL: "http://localhost:8080",
		},
		Log: LogConfig{Level: "info"},
	}
}

// DefaultModel returns the default model for the given provider, falling
// back to the Groq default.
func DefaultModel(provider ProviderType) string {
	if m, ok := defaultModels[provider]; ok {
		return m
	}
	return defaultModels[ProviderGroq]
}
