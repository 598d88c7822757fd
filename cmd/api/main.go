package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jhoicas/stocklink-api/internal/application/inventory"
	"github.com/jhoicas/stocklink-api/internal/infrastructure/backend"
	infrakafka "github.com/jhoicas/stocklink-api/internal/infrastructure/kafka"
	"github.com/jhoicas/stocklink-api/internal/infrastructure/observability"
	infrapdf "github.com/jhoicas/stocklink-api/internal/infrastructure/pdf"
	httpRouter "github.com/jhoicas/stocklink-api/internal/interfaces/http"
	"github.com/jhoicas/stocklink-api/pkg/config"
	"github.com/jhoicas/stocklink-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("backend", cfg.Ledger.Backend).
		Msg("iniciando aplicación")
	if cfg.JWT.Secret == "" {
		log.Warn().Msg("JWT_SECRET vacío: las rutas protegidas responderán 401")
	}

	ctx := context.Background()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.App, cfg.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar trazas")
	}

	store, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("abrir almacenamiento del ledger")
	}
	defer store.Close()

	// Eventos MovementRecorded: Kafka si hay brokers, si no se descartan.
	var publisher inventory.MovementPublisher = inventory.NopPublisher{}
	var kafkaPublisher *infrakafka.MovementPublisher
	if cfg.Kafka.Enabled() {
		kafkaPublisher = infrakafka.NewMovementPublisher(infrakafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.MovementsTopic, log))
		publisher = kafkaPublisher
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.MovementsTopic).Msg("publicación de movimientos en Kafka")
	}

	ledgerUC := inventory.NewLedgerUseCase(inventory.LedgerDeps{
		TxRunner:  store.TxRunner,
		Movements: store.Movements,
		Stock:     store.Stock,
		Publisher: publisher,
		Journal:   infrapdf.NewJournalGenerator(cfg.App.Name),
		Log:       log,
		TxTimeout: cfg.Ledger.TxTimeout,
	})

	app := httpRouter.NewServer(cfg.HTTP, httpRouter.RouterDeps{
		Ledger:      ledgerUC,
		JWTSecret:   cfg.JWT.Secret,
		Log:         log.Named("http"),
		Ping:        store.Ping,
		Backend:     store.Name,
		ServiceName: cfg.App.Name,
		SwaggerFile: "./docs/swagger.json",
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			log.Error().Err(err).Msg("cerrar productor Kafka")
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("vaciar trazas pendientes")
	}

	log.Info().Msg("aplicación detenida")
}
