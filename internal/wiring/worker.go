package wiring

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/QuixiAI/Hexis/internal/amqpbridge"
	"github.com/QuixiAI/Hexis/internal/broker"
	"github.com/QuixiAI/Hexis/internal/config"
	"github.com/QuixiAI/Hexis/internal/heartbeat"
	"github.com/QuixiAI/Hexis/internal/hooks"
	"github.com/QuixiAI/Hexis/internal/llm"
	"github.com/QuixiAI/Hexis/internal/maintenance"
	"github.com/QuixiAI/Hexis/internal/ratelimit"
	"github.com/QuixiAI/Hexis/internal/store"
	"github.com/QuixiAI/Hexis/internal/telemetry"
	"github.com/QuixiAI/Hexis/internal/worker"
)

// WorkerProcess bundles the fully assembled runner with the collaborators
// that need an orderly shutdown (the database pool, the AMQP bridge, the
// Redis client backing the rate limiter and tool config cache).
type WorkerProcess struct {
	Runner *worker.Runner

	pool   *pgxpool.Pool
	bridge *amqpbridge.Bridge
	redis  *redis.Client
}

// Close releases every collaborator the worker process owns, in reverse
// acquisition order. Safe to call with any subset left nil.
func (p *WorkerProcess) Close() {
	if p.bridge != nil {
		_ = p.bridge.Close()
	}
	if p.redis != nil {
		_ = p.redis.Close()
	}
	if p.pool != nil {
		p.pool.Close()
	}
}

// AssembleWorker builds every collaborator named in §4.F from environment
// configuration: the store adapter, the broker, the tool registry, the
// heartbeat driver, the maintenance scheduler, and finally the worker.Runner
// that drives them, selecting Mode from HEXIS_WORKER_MODE.
func AssembleWorker(ctx context.Context, log telemetry.Logger) (*WorkerProcess, error) {
	if log == nil {
		log = telemetry.NoopLogger{}
	}

	pool, err := connectPostgres(ctx)
	if err != nil {
		return nil, fmt.Errorf("wiring: connect postgres: %w", err)
	}

	storeAdapter := store.New(pool)
	loader, err := config.NewLoader(storeAdapter, getenv("HEXIS_CONFIG_FILE", ""))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("wiring: config loader: %w", err)
	}

	if err := checkConsent(ctx, loader); err != nil {
		pool.Close()
		return nil, err
	}

	var redisClient *redis.Client
	if url := getenv("REDIS_URL", ""); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("wiring: parse REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
	}

	limiter := buildLimiter(redisClient)
	providers, err := BuildProviders(getenv("LLM_MODEL", ""), getenvInt("LLM_MAX_TOKENS", 4096), getenvFloat("LLM_TEMPERATURE", 0.7))
	if err != nil {
		pool.Close()
		return nil, err
	}
	providers = WrapWithRateLimit(providers, limiter)
	binding := BuildBinding(loader, providers)

	bus := hooks.NewBus()

	reg, err := BuildRegistry(RegistryOptions{
		Store:           storeAdapter,
		Binding:         binding,
		Config:          loader,
		Log:             log,
		RedisClient:     redisClient,
		DiscordBotToken: getenv("DISCORD_BOT_TOKEN", ""),
		EmailWebhookURL: getenv("EMAIL_WEBHOOK_URL", ""),
		CalendarWebhook: getenv("CALENDAR_WEBHOOK_URL", ""),
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("wiring: build tool registry: %w", err)
	}

	brk := broker.New(pool, storeAdapter)
	reaper := broker.NewReaper(brk, reaperStaleAfter(), getenvInt("WORKER_MAX_RETRIES", 3), log)

	bridge, publish, fetchInbound := BuildBridge(log)

	driver := &heartbeat.Driver{
		Store:      storeAdapter,
		Broker:     brk,
		Tools:      reg,
		Think:      llm.NewThinkFunc(binding, "heartbeat"),
		Bus:        bus,
		Workspace:  getenv("HEXIS_WORKSPACE", "."),
		AllowShell: getenvBool("HEXIS_ALLOW_SHELL", false),
		AllowWrite: getenvBool("HEXIS_ALLOW_WRITE", true),
		MaxRetries: getenvInt("WORKER_MAX_RETRIES", 3),
	}

	scheduler := &maintenance.Scheduler{
		Store:           storeAdapter,
		Reaper:          reaper,
		Decide:          llm.NewDeciderFunc(binding),
		Publish:         publish,
		FetchInbound:    fetchInbound,
		Bus:             bus,
		Log:             log,
		OutboxBatchSize: getenvInt("OUTBOX_BATCH_SIZE", 20),
		InboxBatchSize:  getenvInt("INBOX_BATCH_SIZE", 20),
		InboxPollEvery:  InboxPollInterval(),
	}

	pollInterval := time.Duration(getenvFloat("WORKER_POLL_INTERVAL", 1.0) * float64(time.Second))
	runner := &worker.Runner{
		Mode:                    worker.Mode(getenv("HEXIS_WORKER_MODE", string(worker.ModeBoth))),
		Store:                   storeAdapter,
		Heartbeat:               driver,
		Maintenance:             scheduler,
		HeartbeatPollInterval:   pollInterval,
		MaintenancePollInterval: pollInterval,
		Log:                     log,
	}

	return &WorkerProcess{Runner: runner, pool: pool, bridge: bridge, redis: redisClient}, nil
}

func buildLimiter(redisClient *redis.Client) ratelimit.Limiter {
	if redisClient != nil && getenv("TOOLS_RATE_LIMIT_BACKEND", "") == "redis" {
		return ratelimit.NewRedisWindow(redisClient, int64(getenvInt("LLM_RATE_LIMIT_PER_MINUTE", 60)), 60, "hexis:ratelimit:llm")
	}
	return ratelimit.NewKeyed(getenvFloat("LLM_RATE_LIMIT_PER_SECOND", 1), getenvInt("LLM_RATE_LIMIT_BURST", 4))
}

func reaperStaleAfter() time.Duration {
	secs := getenvFloat("BROKER_REAP_STALE_AFTER_SECONDS", 0)
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
