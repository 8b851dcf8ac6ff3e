package wiring

import (
	"context"
	"regexp"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/QuixiAI/Hexis/internal/config"
	"github.com/QuixiAI/Hexis/internal/llm"
	"github.com/QuixiAI/Hexis/internal/store"
	"github.com/QuixiAI/Hexis/internal/telemetry"
	"github.com/QuixiAI/Hexis/internal/tools"
	"github.com/QuixiAI/Hexis/internal/tools/filesystem"
	memtool "github.com/QuixiAI/Hexis/internal/tools/memory"
	"github.com/QuixiAI/Hexis/internal/tools/messaging"
	"github.com/QuixiAI/Hexis/internal/tools/shell"
	"github.com/QuixiAI/Hexis/internal/tools/web"
)

// RegistryOptions carries the collaborators needed to assemble the full
// tool catalogue described in §4.C. Fields left zero-valued simply mean the
// corresponding family is unavailable (e.g. no Discord token configured),
// matching each handler's own "missing_config" fallback at call time.
type RegistryOptions struct {
	Store          *store.Adapter
	Binding        *llm.Binding
	Config         *config.Loader
	Log            telemetry.Logger
	RedisClient    *redis.Client
	ShellAllowList []string

	DiscordBotToken string
	EmailWebhookURL string
	CalendarWebhook string

	WebSearchProvider web.SearchProvider
}

// BuildRegistry assembles one *tools.Registry registering every static
// handler from the filesystem, memory, web, shell, and messaging families,
// per §4.C. MCP-discovered tools are registered separately by the caller
// once a *mcp.Manager has connected, since that requires its own lifecycle.
func BuildRegistry(opts RegistryOptions) (*tools.Registry, error) {
	reg := tools.NewRegistry(opts.Config, Boundaries(opts.Store))
	if opts.RedisClient != nil && opts.Config != nil {
		if tc, err := config.LoadToolsConfig(context.Background(), opts.Config); err == nil && tc.CacheBackend == "redis" {
			reg = reg.WithRedisCache(opts.RedisClient, "hexis:tools:config")
		}
	}

	logFn := func(msg string, kv ...any) {
		if opts.Log != nil {
			opts.Log.Warn(context.Background(), msg, kv...)
		}
	}

	filesystemHandlers := []tools.Handler{
		filesystem.ReadFile{}, filesystem.WriteFile{}, filesystem.EditFile{},
		filesystem.Glob{}, filesystem.Grep{}, filesystem.ListDirectory{},
	}
	for _, h := range filesystemHandlers {
		if err := reg.Register(h, logFn); err != nil {
			return nil, err
		}
	}

	memStore := NewMemoryStore(opts.Store)
	memoryHandlers := []tools.Handler{
		memtool.Recall{Store: memStore},
		memtool.Remember{Store: memStore},
		memtool.SenseMemoryAvailability{Store: memStore},
		memtool.ExploreConcept{Store: memStore},
		memtool.GetProcedures{Store: memStore},
		memtool.GetStrategies{Store: memStore},
		memtool.CreateGoal{Store: memStore},
		memtool.ScheduleTask{Store: memStore},
		memtool.QueueUserMessage{Store: memStore},
	}
	for _, h := range memoryHandlers {
		if err := reg.Register(h, logFn); err != nil {
			return nil, err
		}
	}

	webFetch := web.NewWebFetch(getenvFloat("WEB_FETCH_QPS", 1), getenvInt("WEB_FETCH_BURST", 2))
	webHandlers := []tools.Handler{
		web.WebSearch{Provider: opts.WebSearchProvider},
		webFetch,
	}
	if opts.Binding != nil {
		webHandlers = append(webHandlers, web.WebSummarize{
			Limiter:   webFetch.Limiter,
			Summarize: NewSummarizeFunc(opts.Binding),
		})
	}
	for _, h := range webHandlers {
		if err := reg.Register(h, logFn); err != nil {
			return nil, err
		}
	}

	shellLimiter := shell.NewLimiter(getenvFloat("SHELL_RATE_PER_SECOND", 1), getenvInt("SHELL_BURST", 2))
	allowList := compileAllowList(opts.ShellAllowList)
	shellHandlers := []tools.Handler{
		shell.Shell{Limiter: shellLimiter, AllowList: allowList},
		shell.SafeShell{Limiter: shellLimiter, AllowList: allowList},
		shell.RunScript{Limiter: shellLimiter},
	}
	for _, h := range shellHandlers {
		if err := reg.Register(h, logFn); err != nil {
			return nil, err
		}
	}

	messagingHandlers := []tools.Handler{
		messaging.SendEmail{Sender: messaging.WebhookSender{URL: opts.EmailWebhookURL}},
		messaging.CreateCalendarEvent{Sender: messaging.WebhookSender{URL: opts.CalendarWebhook}},
	}
	if opts.DiscordBotToken != "" {
		sender, err := messaging.NewDiscordSender(opts.DiscordBotToken)
		if err != nil {
			return nil, err
		}
		messagingHandlers = append(messagingHandlers, messaging.SendDiscordMessage{Sender: sender})
	}
	for _, h := range messagingHandlers {
		if err := reg.Register(h, logFn); err != nil {
			return nil, err
		}
	}

	reg = reg.WithTimeout(time.Duration(getenvFloat("TOOLS_EXECUTION_TIMEOUT_SECONDS", 120)) * time.Second)
	return reg, nil
}

func compileAllowList(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			out = append(out, re)
		}
	}
	return out
}
