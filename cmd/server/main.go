package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomchat/internal/history"
	"github.com/Tyrowin/roomchat/internal/rooms"
	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/internal/storage"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		logger.Debug().Err(err).Msg("No .env file loaded")
	}

	cfg, err := server.LoadConfig(args)
	if err != nil {
		return err
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logger = logger.Level(lvl)
	gin.SetMode(gin.ReleaseMode)

	registry, err := rooms.NewRegistry(cfg.RoomList(), cfg.DefaultRoom)
	if err != nil {
		return err
	}

	storageCfg := cfg.StorageConfig()
	storageCfg.Logger = &logger
	sink, err := storage.Open(storageCfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing store")
		}
	}()

	persister := history.NewPersister(history.PersisterConfig{
		Saver:       sink,
		SaveTimeout: cfg.SaveTimeout,
		QueueSize:   cfg.PersistQueue,
		Logger:      &logger,
	})
	store := history.NewStore(history.StoreConfig{
		Rooms:     registry.List(),
		Limit:     cfg.MaxHistory,
		Scheduler: persister,
		Logger:    &logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loadCtx, cancelLoad := context.WithTimeout(ctx, cfg.SaveTimeout)
	store.Load(loadCtx, sink)
	cancelLoad()

	hub := server.NewHub(server.HubConfig{
		Rooms:   registry,
		History: store,
		Client: server.ClientConfig{
			SendBuffer:     cfg.SendBuffer,
			MaxMessageSize: cfg.MaxMessageSize,
			RateLimit:      cfg.RateLimit(),
			Logger:         &logger,
		},
		Logger: &logger,
	})

	handler := server.NewHandler(hub, cfg.OriginList(), &logger)
	httpServer := server.CreateServer(cfg.Addr(), server.SetupRoutes(handler))

	errc := make(chan error, 1)
	go func() {
		errc <- server.StartServer(httpServer, &logger)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Warn().Msg("Interrupted, shutting down gracefully...")
	case serveErr = <-errc:
		if serveErr != nil {
			serveErr = fmt.Errorf("http server: %w", serveErr)
		}
	}

	_ = server.ShutdownServer(httpServer, cfg.ShutdownTimeout, &logger)
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Warn().Err(err).Msg("Hub did not stop cleanly")
	}

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelFlush()
	if err := persister.Close(flushCtx); err != nil {
		logger.Warn().Err(err).Msg("Pending snapshots were not saved")
	}

	if serveErr != nil {
		return serveErr
	}
	logger.Info().Msg("Server stopped cleanly")
	return nil
}
