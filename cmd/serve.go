package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/autogenius/autogenius/internal/auth"
	"github.com/autogenius/autogenius/internal/chat"
	"github.com/autogenius/autogenius/internal/config"
	"github.com/autogenius/autogenius/internal/db"
	"github.com/autogenius/autogenius/internal/diagnose"
	"github.com/autogenius/autogenius/internal/recommend"
	"github.com/autogenius/autogenius/internal/server"
	"github.com/autogenius/autogenius/internal/uploads"
	"github.com/autogenius/autogenius/internal/vehicleimage"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the AutoGenius API server",
	Long: `Starts the AutoGenius HTTP server: Google sign-in, chat sessions and
history, the chat WebSocket, product recommendations and image uploads.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateServer(); err != nil {
			return err
		}
		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		logger, err := newLogger(cfg.Log, false)
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		svc, err := buildChatService(ctx, cfg, database, logger)
		if err != nil {
			return err
		}

		authStore := auth.NewStore(database)
		srv := server.New(server.Config{
			Port:           cfg.Server.Port,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}, database, authStore, logger)

		r := srv.Router()
		idp := auth.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Server.BaseURL+"/api/auth/callback")
		auth.RegisterRoutes(r, authStore, idp, auth.Options{
			SessionTTL:    time.Duration(cfg.Server.SessionTTLHours) * time.Hour,
			SecureCookies: cfg.Server.SecureCookies,
			Logger:        logger.Named("auth"),
		})
		chat.RegisterRoutes(r, svc)
		uploads.New(svc, uploads.Options{
			Dir:      cfg.Uploads.Dir,
			MaxBytes: cfg.Uploads.MaxBytes,
			Allowed:  cfg.Uploads.Allowed,
			Logger:   logger.Named("uploads"),
		}).RegisterRoutes(r)

		fmt.Fprintf(os.Stderr, "autogenius server %s starting on port %d\n", Version, cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", cfg.Database.Path)
		fmt.Fprintf(os.Stderr, "  LLM: %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			purgeExpired(gctx, authStore, logger)
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

// buildChatService wires the diagnoser, the recommender and the image
// finder into a chat service.
func buildChatService(ctx context.Context, cfg *config.Config, database *db.DB, logger *zap.Logger) (*chat.Service, error) {
	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		logger.Warn("LLM provider unavailable, replies will be canned", zap.Error(err))
		provider = nil
	}
	diagnoser := diagnose.New(provider, diagnose.Options{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, logger.Named("diagnose"))

	recommender, err := buildRecommender(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return chat.NewService(chat.NewStore(database), chat.Config{
		Diagnoser:   diagnoser,
		Recommender: recommender,
		Images:      vehicleimage.New("", logger.Named("vehicleimage")),
		TopK:        cfg.Products.TopK,
		Logger:      logger.Named("chat"),
	}), nil
}

// buildRecommender indexes the product catalog. A missing catalog file
// leaves recommendations empty rather than failing startup.
func buildRecommender(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*recommend.Recommender, error) {
	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	rec, err := recommend.Load(ctx, cfg.Products.CatalogPath, embedder, logger.Named("recommend"))
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("product catalog not found", zap.String("path", cfg.Products.CatalogPath))
		return recommend.New(ctx, nil, embedder, logger.Named("recommend"))
	}
	if err != nil {
		return nil, fmt.Errorf("loading product catalog: %w", err)
	}
	return rec, nil
}

// purgeExpired drops expired sign-in sessions and OAuth states hourly.
func purgeExpired(ctx context.Context, store *auth.Store, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purging expired sessions", zap.Error(err))
				continue
			}
			logger.Debug("purged expired sessions", zap.Int64("count", n))
		}
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
