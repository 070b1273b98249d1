package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-investigator/configs"
	"github.com/enterprise/fraud-investigator/internal/adminserver"
	"github.com/enterprise/fraud-investigator/internal/audit"
	"github.com/enterprise/fraud-investigator/internal/cascade"
	"github.com/enterprise/fraud-investigator/internal/features"
	"github.com/enterprise/fraud-investigator/internal/historystore"
	"github.com/enterprise/fraud-investigator/internal/models"
	"github.com/enterprise/fraud-investigator/internal/patterns"
	"github.com/enterprise/fraud-investigator/internal/persistence"
	"github.com/enterprise/fraud-investigator/internal/sink"
	"github.com/enterprise/fraud-investigator/internal/stream"
	"github.com/enterprise/fraud-investigator/internal/worker"
)

// caseRecorder fans a processed case out to pattern discovery, the
// audit trail, and the Prometheus counter, satisfying
// cascade.CaseRecorder.
type caseRecorder struct {
	discovery *patterns.Discovery
	producer  *audit.Producer
}

func (r caseRecorder) Record(pc models.ProcessedCase) {
	r.discovery.Record(pc)
	r.producer.Publish(pc)
	adminserver.ObserveCaseProcessed()
}

func main() {
	_ = godotenv.Load()

	cfg := configs.Load()
	setupLogging(cfg.Server.Environment)

	log.Info().
		Str("environment", cfg.Server.Environment).
		Int("concurrency", cfg.Worker.Concurrency).
		Msg("starting fraud investigation engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	history, err := historystore.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to history store")
	}
	defer history.Close()

	consumer, err := stream.New(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to input stream")
	}
	defer consumer.Close()

	stateStore := persistence.NewStore(cfg.Server.StatePath)
	state, err := stateStore.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load prior engine state, starting clean")
	}

	discovery := patterns.NewDiscovery(300 * time.Second)

	auditProducer, err := audit.New(cfg.Kafka)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize audit producer")
	}
	defer auditProducer.Close()

	extractor := features.New(history)
	ensemble := cascade.NewGradientEnsemble()
	graph := cascade.NewGraphAnalyzer(history)
	anomaly := cascade.NewAnomalyDetector(state.LearnedPatterns)
	reasoner := cascade.NewReasoner(cfg.LLM)

	recorder := caseRecorder{discovery: discovery, producer: auditProducer}
	orchestrator := cascade.NewOrchestrator(extractor, ensemble, graph, anomaly, reasoner, recorder, cfg.Gray, cfg.Worker.SoftBudget)

	publisher := sink.New(cfg.Sink)
	pool := worker.New(consumer, orchestrator, publisher, cfg.Worker)

	admin := adminserver.New(cfg.Admin.Port, discovery, pool, cfg.Server.Environment)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go discovery.Run(ctx)

	errCh := make(chan error, 2)
	go func() { errCh <- pool.Run(ctx) }()
	go func() { errCh <- admin.Start(ctx) }()

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("a pipeline component exited with an error")
		}
		cancel()
	}

	snapshot := persistence.State{
		LearnedPatterns: discovery.Patterns(),
	}
	if err := stateStore.Save(snapshot); err != nil {
		log.Error().Err(err).Msg("failed to persist engine state at shutdown")
	}

	log.Info().Msg("fraud investigation engine shutdown complete")
}

func setupLogging(env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
