package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/chative/lending-agent/internal/agent/graph"
	"github.com/chative/lending-agent/internal/agent/graph/tools"
	"github.com/chative/lending-agent/internal/agent/metrics"
	"github.com/chative/lending-agent/internal/agent/model"
	"github.com/chative/lending-agent/internal/agent/repo"
	"github.com/chative/lending-agent/internal/core"
	logx "github.com/chative/lending-agent/pkg/logger"
	pkgredis "github.com/chative/lending-agent/pkg/redis"
)

// AppConfig defines all configurable parameters for the assistant,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis pkgredis.Config
	// An empty AUDIT_STREAM sends audit events to the log instead of Redis.
	AuditStream string `envconfig:"AUDIT_STREAM" default:"audit:events"`
	AuditMaxLen int64  `envconfig:"AUDIT_MAX_LEN" default:"10000"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	model.ModelsConfig
	Router       model.RouterConfig
	Timeouts     model.TimeoutConfig
	Tools        model.ToolConfig
	Prompt       model.ResponsePromptConfig
	Conversation model.ConversationConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		fmt.Printf("Warning: Could not load .env file: %v\n", err)
	}

	// Load structured config from env
	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to process environment config: %v\n", err)
		os.Exit(1)
	}

	logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(envCfg.Environment),
		Service:     "lending-agent",
	})

	rdb, err := envCfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
	}
	defer rdb.Close()
	logx.Info().Msg("Connected to Redis successfully")

	ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
	if err != nil {
		logx.Fatal().Err(err).Str("value", envCfg.Conversation.TTL).Msg("Invalid CONVERSATION_TTL")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.New(reg)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to register metrics")
	}
	metricsSrv := serveMetrics(envCfg.MetricsAddr, reg)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	checkpoints := repo.NewRedisCheckpointStore(rdb, ttl)
	cfg := graph.Config{
		APIKey:         envCfg.APIKey,
		BaseURL:        envCfg.BaseURL,
		Models:         envCfg.ModelsConfig,
		Router:         envCfg.Router,
		Timeouts:       envCfg.Timeouts,
		Tools:          envCfg.Tools,
		ResponsePrompt: envCfg.Prompt,
		Conversation:   envCfg.Conversation,
		Checkpoints:    checkpoints,
		Audit:          newAuditSink(rdb, envCfg),
		Metrics:        rec,
		ToolTable:      tools.LendingTools(tools.NewMemoryLoanStore(tools.MockApplications...)),
	}

	runner, err := graph.BuildTurnGraph(ctx, cfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build graph")
	}

	testQueries := []struct {
		description string
		caller      model.Caller
		query       string
	}{
		{
			description: "Greeting",
			caller:      model.Caller{UserID: "user-001", Role: tools.RoleBorrower},
			query:       "Hello!",
		},
		{
			description: "Balance lookup",
			caller:      model.Caller{UserID: "user-001", Role: tools.RoleBorrower},
			query:       "What's my current balance?",
		},
		{
			description: "Restricted action by a borrower",
			caller:      model.Caller{UserID: "user-001", Role: tools.RoleBorrower},
			query:       "Please approve my application APP-1001.",
		},
		{
			description: "Restricted action by an underwriter",
			caller:      model.Caller{UserID: "uw-007", Role: tools.RoleUnderwriter},
			query:       "List the open conditions on APP-1002 and suspend it until they are cleared.",
		},
	}

	threadID := "demo-thread-001"
	if err := checkpoints.Clear(ctx, threadID); err != nil {
		logx.Warn().Err(err).Msg("Failed to reset demo thread")
	}

	for i, test := range testQueries {
		fmt.Printf("\n== Test %d: %s (%s)\n", i+1, test.description, test.caller.Role)
		fmt.Printf("Query: %q\n", test.query)

		var answer strings.Builder
		for ev := range runner.Stream(ctx, model.TurnInput{ThreadID: threadID, Query: test.query, Caller: test.caller}) {
			switch ev.Type {
			case model.EventNode:
				fmt.Printf("  -> %s\n", ev.Text)
			case model.EventToken:
				answer.WriteString(ev.Text)
			case model.EventToolInvoked:
				fmt.Printf("  tool: %s\n", ev.Text)
			case model.EventSafetyOverride:
				answer.Reset()
				answer.WriteString(ev.Text)
			case model.EventError:
				logx.Error().Str("error", ev.Text).Int("test", i+1).Msg("Turn failed")
			}
		}
		if ctx.Err() != nil {
			return
		}
		fmt.Printf("Response: %s\n", strings.TrimSpace(answer.String()))
	}

	if n, err := checkpoints.Len(ctx, threadID); err == nil {
		logx.Info().Int("messages", n).Str("thread_id", threadID).Msg("Demo finished")
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Error().Err(err).Str("addr", addr).Msg("Metrics server stopped")
		}
	}()
	logx.Info().Str("addr", addr).Msg("Serving metrics")
	return srv
}

func newAuditSink(rdb *redis.Client, cfg AppConfig) model.AuditSink {
	if strings.TrimSpace(cfg.AuditStream) == "" {
		logx.Warn().Msg("AUDIT_STREAM is empty - audit events go to the log")
		return repo.LogAuditSink{}
	}
	return repo.NewRedisAuditSink(rdb, cfg.AuditStream, cfg.AuditMaxLen)
}
