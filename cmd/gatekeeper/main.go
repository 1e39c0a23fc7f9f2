package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for TLS brokers in scratch containers

	mqttadapter "github.com/ericfisherdev/gatekeeper/internal/adapter/driven/mqtt"
	"github.com/ericfisherdev/gatekeeper/internal/adapter/driven/simulator"
	sqliteadapter "github.com/ericfisherdev/gatekeeper/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/gatekeeper/internal/adapter/driving/console"
	httphandler "github.com/ericfisherdev/gatekeeper/internal/adapter/driving/http"
	"github.com/ericfisherdev/gatekeeper/internal/application"
	"github.com/ericfisherdev/gatekeeper/internal/config"
	"github.com/ericfisherdev/gatekeeper/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars or tuning file).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
		"mqtt_broker", cfg.MQTT.Broker,
		"config_file", cfg.ConfigFile,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	schemaVersion, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	slog.Info("migrations complete", "schema_version", schemaVersion)

	// 5. Wire stores, peripherals and the remote transport.
	credentialStore := sqliteadapter.NewCredentialRepo(db)
	auditStore := sqliteadapter.NewEventRepo(db)

	card := simulator.NewCardReader()
	finger := simulator.NewFingerprintSensor(cfg.Tuning.Sensor.Capacity)
	display := simulator.NewDisplay(logger)
	servo := simulator.NewServo(logger)
	bench := simulator.NewBench(card, finger, logger)

	lines := console.NewLineReader(logger, bench.HandleLine)
	go lines.Start(ctx, os.Stdin)

	var transport driven.RemoteTransport = mqttadapter.Offline{}
	if cfg.MQTT.Enabled() {
		mt := mqttadapter.NewTransport(mqttadapter.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
		}, logger)
		defer mt.Close()
		transport = mt
	} else {
		slog.Info("no mqtt broker configured, remote channel disabled")
	}

	// 6. Create application services.
	clock := application.SystemClock{}
	lock := application.NewLockActuator(servo, clock, lockConfig(cfg.Tuning), logger)
	sink := application.NewEventSink(transport, auditStore, clock, logger)
	match := application.NewMatchEngine(credentialStore, lock, sink, display, logger)
	enroll := application.NewEnrollmentController(
		credentialStore, card, finger, display, lines, sink, clock,
		enrollmentConfig(cfg.Tuning), logger,
	)
	router := application.NewCommandRouter(credentialStore, lock, sink, display, logger)
	cons := application.NewConsole(enroll, credentialStore, finger, sink, os.Stdout, logger)
	loop := application.NewControlLoop(
		transport, router, cons, lines, card, finger, match, lock, sink, display, clock,
		loopConfig(cfg.Tuning, cfg.PollInterval), logger,
	)

	// 7. Create HTTP handler and start the admin API.
	apiHandler := httphandler.NewHandler(credentialStore, auditStore, loop, transport, cfg.CommandTimeout, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.CommandTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 8. Run the control loop until shutdown.
	slog.Info("gatekeeper started", "listen_addr", cfg.ListenAddr, "poll_interval", cfg.PollInterval)
	loop.Run(ctx)
	slog.Info("shutting down")

	// 9. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
