package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mushi-tcg/mushi-server-go/internal/catalog"
	"github.com/mushi-tcg/mushi-server-go/internal/config"
	"github.com/mushi-tcg/mushi-server-go/internal/deck"
	"github.com/mushi-tcg/mushi-server-go/internal/game"
	"github.com/mushi-tcg/mushi-server-go/internal/lobby"
	"github.com/mushi-tcg/mushi-server-go/internal/repository"
	"github.com/mushi-tcg/mushi-server-go/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting Mushi server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	if cfg.Auth.AdminPasswordHash == "" {
		logger.Warn("admin password hash not configured; admin endpoints disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize storage
	store, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	cat, err := loadCatalog(ctx, cfg.Catalog, store)
	if err != nil {
		logger.Fatal("failed to load card catalog", zap.Error(err))
	}
	logger.Info("card catalog loaded",
		zap.String("source", cfg.Catalog.Source),
		zap.Int("cards", cat.Len()),
	)

	// Match registry, optionally recording replays
	var registryOpts []game.RegistryOption
	if cfg.Match.Seed != 0 {
		registryOpts = append(registryOpts, game.WithSeed(cfg.Match.Seed))
	}
	lobbyOpts := []lobby.Option{lobby.WithResults(store)}
	if cfg.Replay.Enabled {
		recorder := game.NewReplayRecorder(logger, cfg.Replay.Directory)
		registryOpts = append(registryOpts, game.WithMatchRecorder(recorder))
		lobbyOpts = append(lobbyOpts, lobby.WithReplays(recorder))
		logger.Info("replay recording enabled", zap.String("directory", cfg.Replay.Directory))
	}
	registry := game.NewRegistry(logger, registryOpts...)

	decks := deck.NewService(store, cat, logger)
	notifier := &lobby.MultiNotifier{}
	lobbyOpts = append(lobbyOpts, lobby.WithDecks(decks), lobby.WithNotifier(notifier))
	lobbySvc := lobby.NewService(registry, cat, cfg.Match, logger, lobbyOpts...)

	// HTTP API and websocket
	api := server.New(lobbySvc, decks, cfg, logger)
	notifier.Add(api.Hub())

	httpServer := &http.Server{
		Addr:         cfg.Server.HTTP.Address,
		Handler:      api,
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
	}
	go func() {
		logger.Info("starting HTTP server", zap.String("address", cfg.Server.HTTP.Address))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(serveErr))
		}
	}()

	// gRPC
	var grpcStop func()
	if cfg.Server.GRPC.Enabled {
		matchServer := server.NewMatchServer(lobbySvc, logger)
		notifier.Add(matchServer)
		grpcServer := server.NewGRPCServer(cfg.Server.GRPC, matchServer, logger)
		grpcStop = grpcServer.GracefulStop

		lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
		if err != nil {
			logger.Fatal("failed to listen", zap.Error(err))
		}
		go func() {
			logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
			if serveErr := grpcServer.Serve(lis); serveErr != nil {
				logger.Error("gRPC server error", zap.Error(serveErr))
			}
		}()
	}

	logger.Info("Mushi server initialized",
		zap.String("version", version),
		zap.String("http_address", cfg.Server.HTTP.Address),
		zap.Bool("grpc_enabled", cfg.Server.GRPC.Enabled),
		zap.String("database", cfg.Database.Driver),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.HTTP.ShutdownTimeout)
	defer stop()

	api.Hub().CloseAll()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	if grpcStop != nil {
		grpcStop()
	}
	lobbySvc.Close()

	logger.Info("Mushi server stopped", zap.Int("open_matches", registry.Len()))
}

// loadCatalog builds the card catalog from the configured source.
func loadCatalog(ctx context.Context, cfg config.CatalogConfig, store repository.Store) (*catalog.Catalog, error) {
	switch cfg.Source {
	case config.CatalogFile:
		return catalog.LoadFile(cfg.Path)
	case config.CatalogPostgres:
		pg, ok := store.(*repository.PostgresStore)
		if !ok {
			return nil, errors.New("catalog source postgres requires database driver postgres")
		}
		cards, err := pg.LoadCards(ctx)
		if err != nil {
			return nil, err
		}
		return catalog.New(cards)
	default:
		return catalog.Embedded()
	}
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
