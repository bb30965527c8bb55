package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nandanugg/geonotify/config"
	"github.com/nandanugg/geonotify/module/geofence"
)

func main() {
	var envFile, seedFile string

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Run the geofence service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), envFile, seedFile)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "optional env file; environment variables take precedence")
	cmd.Flags().StringVar(&seedFile, "seed", "", "YAML list of geofences to add at startup (overrides SEED_FILE)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, envFile, seedFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if seedFile != "" {
		cfg.SeedFile = seedFile
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var db *sql.DB
	if cfg.StoreDriver != "badger" {
		db, err = config.NewDatabase(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
	}

	amqpConn, err := config.NewRabbitMQ(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = amqpConn.Close() }()

	mqttClient, err := config.NewMQTT(cfg)
	if err != nil {
		return err
	}
	defer mqttClient.Disconnect(250)

	module, err := geofence.Build(geofence.Deps{
		StoreDriver:      cfg.StoreDriver,
		DB:               db,
		BadgerDir:        cfg.BadgerDir,
		AMQP:             amqpConn,
		MQTT:             mqttClient,
		DeviceID:         cfg.DeviceID,
		DebounceInterval: cfg.DebounceInterval,
		MonitorCapacity:  cfg.MonitorCapacity,
		FakerEnabled:     cfg.FakerEnabled,
		FakerInterval:    cfg.FakerInterval,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("geofence module: %w", err)
	}
	defer func() {
		if err := module.Close(); err != nil {
			logger.Warn("module close", zap.Error(err))
		}
	}()

	if cfg.SeedFile != "" {
		defs, err := config.LoadSeed(cfg.SeedFile)
		if err != nil {
			return err
		}
		if err := module.Seed(ctx, defs); err != nil {
			return err
		}
	}

	if err := module.StartSubscribers(); err != nil {
		return fmt.Errorf("start subscribers: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	health := config.NewHealthChecker(cfg.StoreDriver, db, amqpConn, mqttClient)
	health.Register(r)
	module.RegisterRoutes(&r.RouterGroup)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return module.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("shutting down")
	return err
}
