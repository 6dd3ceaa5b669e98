package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tanpawarit/Chative-Concierge/agent/agents/orchestrator"
	"github.com/tanpawarit/Chative-Concierge/agent/agents/responder"
	"github.com/tanpawarit/Chative-Concierge/agent/api"
	"github.com/tanpawarit/Chative-Concierge/agent/cache"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/agent/escalation"
	"github.com/tanpawarit/Chative-Concierge/agent/llm"
	"github.com/tanpawarit/Chative-Concierge/agent/persist"
	"github.com/tanpawarit/Chative-Concierge/agent/prompt"
	"github.com/tanpawarit/Chative-Concierge/agent/retrieval"
	"github.com/tanpawarit/Chative-Concierge/agent/service"
	"github.com/tanpawarit/Chative-Concierge/agent/tool"
	configx "github.com/tanpawarit/Chative-Concierge/pkg/config"
	_ "github.com/tanpawarit/Chative-Concierge/pkg/logger/autoload"
	"github.com/tanpawarit/Chative-Concierge/pkg/natsx"
	openrouterx "github.com/tanpawarit/Chative-Concierge/pkg/openrouter"
	qstashx "github.com/tanpawarit/Chative-Concierge/pkg/qstash"
)

type AppConfig struct {
	EnableQStash  bool          `envconfig:"ENABLE_QSTASH" default:"true"`
	EnableNATS    bool          `envconfig:"ENABLE_NATS" default:"false"`
	EnableQdrant  bool          `envconfig:"ENABLE_QDRANT" default:"true"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"5m"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("")
	llmCfg := configx.MustNew[llm.Config]("OPENROUTER")
	cacheCfg := configx.MustNew[cache.Config]("CACHE")
	retrievalCfg := configx.MustNew[retrieval.Config]("RETRIEVAL")
	dbCfg := configx.MustNew[persist.Config]("DATABASE")
	escalationCfg := configx.MustNew[escalation.Config]("ESCALATION")
	engineCfg := configx.MustNew[orchestrator.Config]("ENGINE")
	loopCfg := configx.MustNew[responder.Config]("ENGINE")
	toolCfg := configx.MustNew[tool.ExecutorConfig]("TOOL")
	domainCfg := configx.MustNew[service.Config]("DOMAIN_API")
	httpCfg := configx.MustNew[api.Config]("HTTP")

	// Persistence
	var (
		store    contractx.ConversationStore
		bunStore *persist.BunStore
	)
	switch dbCfg.Backend {
	case persist.BackendMemory:
		store = persist.NewMemoryStore(time.Now)
	default:
		db := persist.OpenPostgres(*dbCfg)
		defer db.Close()
		bunStore = persist.NewBunStore(db)
		if dbCfg.Migrate {
			if err := bunStore.Migrate(ctx); err != nil {
				log.Fatal().Err(err).Msg("migrate database")
			}
		}
		store = bunStore
	}

	// Caches
	cacheStore := mustCacheStore(*cacheCfg)
	responses := cache.NewResponseCache(cacheStore, cacheCfg.ResponseTTL, cache.WithKeyPrefix(cacheCfg.KeyPrefix))
	contexts := cache.NewContextCache(cacheStore, cacheCfg.ContextTTL, cache.WithKeyPrefix(cacheCfg.KeyPrefix))

	// Retrieval
	embeddingCfg := configx.MustNew[openrouterx.EmbeddingConfig]("EMBEDDING")
	embedder, err := retrieval.NewOpenAIEmbedder(openrouterx.NewEmbeddingClient(*embeddingCfg), embeddingCfg.Model, embeddingCfg.Dimensions, 1024)
	if err != nil {
		log.Fatal().Err(err).Msg("create embedder")
	}
	var general, partitioned retrieval.Backend
	if bunStore != nil {
		general = retrieval.NewPgVectorBackend(bunStore.DB(), embedder, retrievalCfg.Table, retrievalCfg.Namespace)
	}
	if appCfg.EnableQdrant {
		qdrantCfg := configx.MustNew[retrieval.QdrantConfig]("QDRANT")
		qdrant, err := retrieval.NewQdrantBackend(*qdrantCfg, embedder)
		if err != nil {
			log.Fatal().Err(err).Msg("create qdrant backend")
		}
		partitioned = qdrant
	}
	router := retrieval.NewRouter(general, partitioned, contexts, *retrievalCfg)

	// Tools and inference
	domain, err := service.NewHTTPClient(*domainCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create domain api client")
	}
	registry, err := tool.Catalog(domain)
	if err != nil {
		log.Fatal().Err(err).Msg("build tool catalog")
	}
	orCfg := llmCfg.OpenRouter()
	chatModel, err := orCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("create chat model")
	}
	invoker, err := llm.NewInvoker(chatModel, registry.Infos(), *llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create invoker")
	}
	loop, err := responder.New(invoker, tool.NewExecutor(registry, *toolCfg), *loopCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create responder")
	}
	builder, err := prompt.NewBuilder(engineCfg.BusinessName)
	if err != nil {
		log.Fatal().Err(err).Msg("create prompt builder")
	}

	// Escalation
	var channels []escalation.Channel
	if appCfg.EnableQStash {
		qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
		channels = append(channels, escalation.NewQStashChannel(qstashx.MustNew(*qstashCfg)))
	}
	if appCfg.EnableNATS {
		natsCfg := configx.MustNew[natsx.Config]("NATS")
		natsClient, err := natsx.Connect(*natsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("connect nats")
		}
		defer natsClient.Close()
		if err := natsClient.EnsureStream(ctx); err != nil {
			log.Fatal().Err(err).Msg("ensure nats stream")
		}
		channels = append(channels, escalation.NewNATSChannel(natsClient))
	}
	if len(channels) == 0 {
		log.Warn().Err(escalation.ErrNoChannels).Msg("escalations will not notify anyone")
	}
	notifier := escalation.NewNotifier(*escalationCfg, channels, escalation.WithDeliveryHook(orchestrator.RecordDelivery(store)))
	decider := escalation.NewDecider(store, notifier)

	if strings.TrimSpace(engineCfg.ContactInfo) == "" {
		engineCfg.ContactInfo = escalationCfg.ContactInfo
	}
	toolNames := make([]string, 0, len(registry.Names()))
	for _, name := range registry.Names() {
		toolNames = append(toolNames, string(name))
	}
	engine, err := orchestrator.New(orchestrator.Deps{
		Store:     store,
		Responses: responses,
		Retriever: router,
		Prompt:    builder,
		Budget:    llmCfg.Budget(),
		Responder: loop,
		Decider:   decider,
		ToolNames: toolNames,
	}, *engineCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create engine")
	}

	server := &http.Server{
		Addr:         httpCfg.Addr,
		Handler:      api.NewHandler(engine, *httpCfg).Routes(),
		ReadTimeout:  httpCfg.ReadTimeout,
		WriteTimeout: httpCfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", httpCfg.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sweepIdle(gctx, engine, appCfg.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
		}
		if err := notifier.Wait(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("pending escalation notifications dropped")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func mustCacheStore(cfg cache.Config) cache.Store {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case cache.BackendRedis:
		redisCfg := configx.MustNew[cache.RedisConfig]("REDIS")
		s, err := cache.NewRedisStore(cache.NewRedisClient(*redisCfg))
		if err != nil {
			log.Fatal().Err(err).Msg("create redis cache store")
		}
		return s
	case cache.BackendUpstash:
		upstashCfg := configx.MustNew[cache.UpstashConfig]("UPSTASH")
		s, err := cache.NewUpstashStore(*upstashCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("create upstash cache store")
		}
		return s
	default:
		return cache.NewMemoryStore(cfg.MaxEntries, cfg.ResponseTTL)
	}
}

func sweepIdle(ctx context.Context, engine *orchestrator.Engine, every time.Duration) error {
	if every <= 0 {
		return nil
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := engine.SweepIdle(ctx); err != nil {
				log.Error().Err(err).Msg("idle sweep failed")
			}
		}
	}
}
