package config

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderGroq       ProviderType = "groq"
	ProviderOpenAI     ProviderType = "openai"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderOllama     ProviderType = "ollama"
)

// Config is the top-level autogenius configuration, corresponding to .autogenius.yml.
type Config struct {
	Server   ServerConfig   `yaml:"server" koanf:"server"`
	Database DatabaseConfig `yaml:"database" koanf:"database"`
	LLM      LLMConfig      `yaml:"llm" koanf:"llm"`
	Google   GoogleConfig   `yaml:"google" koanf:"google"`
	Uploads  UploadsConfig  `yaml:"uploads" koanf:"uploads"`
	Products ProductsConfig `yaml:"products" koanf:"products"`
	Client   ClientConfig   `yaml:"client" koanf:"client"`
	Log      LogConfig      `yaml:"log" koanf:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port" koanf:"port"`
	BaseURL         string   `yaml:"base_url" koanf:"base_url"` // public URL, used for the OAuth callback
	AllowedOrigins  []string `yaml:"allowed_origins" koanf:"allowed_origins"`
	SessionTTLHours int      `yaml:"session_ttl_hours" koanf:"session_ttl_hours"`
	SecureCookies   bool     `yaml:"secure_cookies" koanf:"secure_cookies"`
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string `yaml:"path" koanf:"path"`
}

// LLMConfig selects the diagnosis model.
type LLMConfig struct {
	Provider    ProviderType `yaml:"provider" koanf:"provider"`
	Model       string       `yaml:"model" koanf:"model"`
	Temperature float64      `yaml:"temperature" koanf:"temperature"`
	MaxTokens   int          `yaml:"max_tokens" koanf:"max_tokens"`
	RPM         int          `yaml:"rpm" koanf:"rpm"` // 0 disables rate limiting
}

// GoogleConfig holds OAuth2 client credentials. Usually supplied through
// GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET rather than the file.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id,omitempty" koanf:"client_id"`
	ClientSecret string `yaml:"client_secret,omitempty" koanf:"client_secret"`
}

// UploadsConfig controls image uploads.
type UploadsConfig struct {
	Dir      string   `yaml:"dir" koanf:"dir"`
	MaxBytes int64    `yaml:"max_bytes" koanf:"max_bytes"`
	Allowed  []string `yaml:"allowed" koanf:"allowed"` // glob patterns matched against the file name
}

// ProductsConfig locates the product catalog used for recommendations.
type ProductsConfig struct {
	CatalogPath string `yaml:"catalog_path" koanf:"catalog_path"`
	TopK        int    `yaml:"top_k" koanf:"top_k"`
	Embedder    string `yaml:"embedder" koanf:"embedder"` // "local" or "openai"
}

// ClientConfig is used by the terminal client.
type ClientConfig struct {
	ServerURL string `yaml:"server_url" koanf:"server_url"`
	StatePath string `yaml:"state_path" koanf:"state_path"` // empty means ~/.autogenius/state.yml
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level       string `yaml:"level" koanf:"level"`
	Development bool   `yaml:"development" koanf:"development"`
}
