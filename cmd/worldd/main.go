// Command worldd runs the generative-agent world engine HTTP service:
// config -> store -> LM gateway -> memory/reflection/planning -> events ->
// agent loop -> scheduler -> HTTP API, mirroring the teacher's
// main.go wiring order (load config, init observability, build services,
// start server).
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"genworld/internal/agentloop"
	"genworld/internal/config"
	"genworld/internal/events"
	"genworld/internal/httpapi"
	"genworld/internal/llmgateway"
	"genworld/internal/llmgateway/providers/openai"
	"genworld/internal/memorystream"
	"genworld/internal/memorystream/qdrant"
	"genworld/internal/observability"
	"genworld/internal/planning"
	"genworld/internal/reflection"
	"genworld/internal/scheduler"
	"genworld/internal/store"
	"genworld/internal/store/memtest"
	"genworld/internal/store/pg"
	"genworld/internal/worldmodel"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := observability.InitLogger(cfg.Logging.LogPath, cfg.Logging.Level)
	if err != nil {
		panic(err)
	}
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.InitOTel(ctx, observability.TelemetryConfig{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("worldd: otel init failed")
	}
	defer shutdownOTel(context.Background())

	st, closeStore := buildStore(ctx, cfg)
	defer closeStore()

	gw := buildGateway(cfg)

	ann := buildANN(ctx, cfg) // nil unless a Qdrant address is configured and reachable

	stream := memorystream.New(st, gw, ann, cfg.Memory.WindowSize, cfg.Memory.ANNThreshold, cfg.Memory.RecencyHalfLifeHours, memorystream.Callbacks{})
	reflEngine := reflection.New(gw, stream, cfg.Memory.ReflectionThresh)
	planEngine := planning.New(gw, stream)

	var durable events.DurableTransport // always nil here: the Kafka transport is not wired and events.kafka_brokers is not read
	evProcessor := events.New(st, durable, events.AreaObservationRule)

	loop := agentloop.New(st, stream, reflEngine, planEngine, evProcessor)

	perceive := func(ctx context.Context, world *worldmodel.World, agent *worldmodel.Agent) (agentloop.Perception, error) {
		evs, err := st.Events.ListByWorld(ctx, world.ID, world.TickSeq, 20)
		if err != nil {
			return agentloop.Perception{}, err
		}
		return agentloop.Perception{Events: evs}, nil
	}

	sched := scheduler.New(st, loop, evProcessor, perceive, cfg.Scheduler.MaxConcurrentAgents, cfg.Scheduler.TickInterval, cfg.Scheduler.TickDeadline)

	server := httpapi.NewServer(st, sched, evProcessor, loop)

	httpServer := &http.Server{
		Addr:              cfg.Service.HTTPAddr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Service.HTTPAddr).Msg("worldd: listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("worldd: server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("worldd: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

func buildStore(ctx context.Context, cfg config.Config) (*store.Store, func()) {
	if cfg.Store.Driver == "postgres" && cfg.Store.DSN != "" {
		st, pool, err := pg.Open(ctx, cfg.Store.DSN, cfg.Store.MaxConns)
		if err != nil {
			log.Fatal().Err(err).Msg("worldd: postgres store init failed")
		}
		if err := pg.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("worldd: schema migration failed")
		}
		return st, pool.Close
	}
	log.Warn().Msg("worldd: no postgres DSN configured, using in-memory store (data lost on restart)")
	return memtest.New(), func() {}
}

func buildGateway(cfg config.Config) *llmgateway.Gateway {
	apiKey := os.Getenv("OPENAI_API_KEY")
	provider := openai.New(apiKey)
	var cache *llmgateway.Cache
	if cfg.LLM.RedisAddr != "" {
		cache = llmgateway.NewCache(cfg.LLM.RedisAddr, cfg.LLM.CacheTTL)
	}
	return llmgateway.New(provider, cfg.LLM.MaxConcurrentCalls, cfg.LLM.EmbeddingModel, cfg.LLM.CompletionModel, cfg.LLM.MaxRetries,
		llmgateway.WithCache(cache), llmgateway.WithPerWorldConcurrency(cfg.LLM.PerWorldConcurrentCalls))
}

func buildANN(ctx context.Context, cfg config.Config) memorystream.ANNIndex {
	if cfg.Memory.QdrantAddr == "" {
		return nil
	}
	idx, err := qdrant.New(ctx, cfg.Memory.QdrantAddr, uint64(cfg.LLM.EmbeddingDimension))
	if err != nil {
		log.Warn().Err(err).Msg("worldd: qdrant unavailable, falling back to exhaustive memory scan")
		return nil
	}
	return idx
}
