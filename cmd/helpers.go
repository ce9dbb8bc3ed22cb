package cmd

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/autogenius/autogenius/internal/client"
	"github.com/autogenius/autogenius/internal/config"
	"github.com/autogenius/autogenius/internal/embeddings"
	"github.com/autogenius/autogenius/internal/llm"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `autogenius init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the structured logger. Terminal commands pass quiet so
// only warnings reach stderr unless --verbose is set.
func newLogger(cfg config.LogConfig, quiet bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log.level %q: %w", cfg.Level, err)
	}
	zc.Level = level
	if quiet {
		zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// createLLMProviderFromConfig creates the diagnosis LLM provider, rate
// limited when llm.rpm is set.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	provider, err := llm.NewProvider(string(cfg.LLM.Provider), cfg.LLM.Model)
	if err != nil {
		return nil, err
	}
	return llm.NewRateLimitedProvider(provider, cfg.LLM.RPM), nil
}

// createEmbedderFromConfig returns the product embedder. The local TF-IDF
// embedder is used unless products.embedder is "openai".
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	if cfg.Products.Embedder != config.EmbedderOpenAI {
		return nil, nil
	}
	apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
	}
	return embeddings.NewOpenAIEmbedder(apiKey, "", embeddings.DefaultOpenAIModel), nil
}

// openClientState loads the terminal client's persisted state.
func openClientState(cfg *config.Config) (*client.State, error) {
	path := cfg.Client.StatePath
	if path == "" {
		var err error
		if path, err = client.DefaultStatePath(); err != nil {
			return nil, err
		}
	}
	return client.LoadState(path)
}
