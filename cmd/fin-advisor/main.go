package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fin-advisor/internal/api"
	"fin-advisor/internal/api/handlers"
	"fin-advisor/internal/prompt"
	"fin-advisor/internal/repository"
	"fin-advisor/internal/service"
	"fin-advisor/internal/session"
	"fin-advisor/pkg/auth"
	"fin-advisor/pkg/config"
	"fin-advisor/pkg/logger"
	"fin-advisor/pkg/postgres"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// @title Fin Advisor API
// @version 1.0
// @description Conversational financial advice grounded in recent market news
// @termsOfService http://swagger.io/terms/

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting fin-advisor service")

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error("Service stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	appLogger.Info("Service stopped")
}

func run(cfg *config.Config, appLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db, appLogger)
	profileRepo := repository.NewProfileRepository(db, appLogger)

	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration, cfg.JWT.RefreshExp)
	verifier, err := newVerifier(ctx, cfg, jwtManager)
	if err != nil {
		return err
	}

	generator, err := service.NewGenerator(&cfg.LLM, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize generative model: %w", err)
	}
	defer generator.Close()

	embedder, err := service.NewEmbedder(cfg)
	if err != nil {
		return err
	}

	persona, err := prompt.LoadPersona(cfg.Prompt.PersonaFile)
	if err != nil {
		return err
	}

	// Initialize services
	hub := service.NewHub(&cfg.Realtime, appLogger)
	newsService := service.NewNewsService(&cfg.News, appLogger)
	ragService := service.NewRAGService(newsService, embedder, &cfg.RAG, appLogger)

	// the index must exist before the first request
	if _, err := ragService.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}

	sessions := session.NewMemoryStore(cfg.Session.TTL, session.WithFollowUpTokens(cfg.Session.FollowUpTokens))
	profileService := service.NewProfileService(profileRepo, hub, appLogger)
	adviceService := service.NewAdviceService(
		sessions,
		ragService,
		profileRepo,
		prompt.NewComposer(persona),
		generator,
		hub,
		appLogger,
	)

	// Initialize handlers
	h := api.Handlers{
		Advice:   handlers.NewAdviceHandler(adviceService, appLogger),
		Profile:  handlers.NewProfileHandler(profileService, appLogger),
		Realtime: handlers.NewRealtimeHandler(hub, appLogger),
	}
	if cfg.Auth.Mode != "oidc" {
		h.Auth = handlers.NewAuthHandler(service.NewAuthService(userRepo, jwtManager, appLogger), appLogger)
	}

	app := api.SetupRouter(h, verifier, &cfg.Server, appLogger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		profileService.Watch(gctx)
		return nil
	})
	g.Go(func() error {
		session.RunJanitor(gctx, sessions, cfg.Session.SweepInterval, func(removed int) {
			appLogger.Debug("Expired sessions swept", zap.Int("removed", removed))
		})
		return nil
	})
	g.Go(func() error {
		ragService.RunRefresher(gctx)
		return nil
	})

	// Start server
	g.Go(func() error {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down server")
		if err := app.Shutdown(); err != nil {
			appLogger.Error("Server shutdown error", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newVerifier(ctx context.Context, cfg *config.Config, jwtManager *auth.JWTManager) (auth.TokenVerifier, error) {
	switch cfg.Auth.Mode {
	case "", "jwt":
		return jwtManager, nil
	case "oidc":
		return auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.OIDCClientID)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
}
