package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/autogenius/autogenius/internal/diagnose"
	mcpserver "github.com/autogenius/autogenius/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio, exposing vehicle
diagnosis, product search and the vehicle catalog as tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// Stdout carries the protocol, so the logger stays on stderr.
		logger, err := newLogger(cfg.Log, true)
		if err != nil {
			return err
		}
		defer logger.Sync()

		provider, err := createLLMProviderFromConfig(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\nDiagnosis replies will be unavailable.\n", err)
			provider = nil
		}
		diagnoser := diagnose.New(provider, diagnose.Options{
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		}, logger.Named("diagnose"))

		recommender, err := buildRecommender(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		mcpserver.Version = Version
		fmt.Fprintf(os.Stderr, "autogenius MCP server started on stdio (products=%d)\n", recommender.Count())
		logger.Debug("mcp server ready", zap.String("llm", string(cfg.LLM.Provider)))

		return mcpserver.NewServer(diagnoser, recommender).Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
