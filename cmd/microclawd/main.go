// Command microclawd runs the multi-channel agent runtime: it wires the
// tool registry, channel adapters, sandbox router, storage backend, and
// operator-plane HTTP server together and serves until interrupted.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/microclaw/microclaw/internal/agent"
	"github.com/microclaw/microclaw/internal/agent/providers"
	"github.com/microclaw/microclaw/internal/audit"
	"github.com/microclaw/microclaw/internal/auth"
	"github.com/microclaw/microclaw/internal/channels"
	"github.com/microclaw/microclaw/internal/channels/discord"
	"github.com/microclaw/microclaw/internal/channels/telegram"
	"github.com/microclaw/microclaw/internal/channels/web"
	"github.com/microclaw/microclaw/internal/channels/whatsapp"
	"github.com/microclaw/microclaw/internal/config"
	"github.com/microclaw/microclaw/internal/cron"
	"github.com/microclaw/microclaw/internal/metrics"
	browserTool "github.com/microclaw/microclaw/internal/tools/browser"
	cronTool "github.com/microclaw/microclaw/internal/tools/cron"
	execTool "github.com/microclaw/microclaw/internal/tools/exec"
	filesTool "github.com/microclaw/microclaw/internal/tools/files"
	memoryTool "github.com/microclaw/microclaw/internal/tools/memory"
	messageTool "github.com/microclaw/microclaw/internal/tools/message"
	skillsTool "github.com/microclaw/microclaw/internal/tools/skills"
	"github.com/microclaw/microclaw/internal/models"
	"github.com/microclaw/microclaw/internal/ratelimit"
	"github.com/microclaw/microclaw/internal/sandbox"
	"github.com/microclaw/microclaw/internal/sessions"
	"github.com/microclaw/microclaw/internal/skills"
	"github.com/microclaw/microclaw/internal/storage"
	webapi "github.com/microclaw/microclaw/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the daemon config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := buildStorage(ctx, cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	if closer, ok := store.(interface{ Close() }); ok {
		defer closer.Close()
	}

	collector := metrics.New()

	sessionStore := sessions.NewStore()
	registry := channels.NewRegistry()
	registry.SetCollector(collector)
	toolRegistry := agent.NewToolRegistry()
	approvalGate := agent.NewApprovalGate()
	sessionLocker := agent.NewSessionLocker()
	scheduler := cron.New()
	defer scheduler.Stop()

	sandboxRouter := sandbox.NewRouter(sandbox.Config{
		Mode:           sandboxMode(cfg.Sandbox.Enabled),
		Backend:        sandbox.Backend(cfg.Sandbox.Backend),
		Image:          cfg.Sandbox.Image,
		CPULimit:       cfg.Sandbox.CPULimit,
		MemoryLimitMB:  cfg.Sandbox.MemoryLimitMB,
		DefaultTimeout: 30 * time.Second,
		NetworkEnabled: cfg.Sandbox.NetworkEnabled,
		WorkspaceRoot:  cfg.Sandbox.WorkspaceRoot,
	})

	skillManager := skills.NewManager(cfg.Skills.Dir)
	if _, err := skillManager.Sync(); err != nil {
		logger.Warn("initial skill sync failed", "error", err)
	}

	registerChannels(ctx, registry, cfg, logger)
	registerTools(toolRegistry, sandboxRouter, skillManager, registry, memStoreAdapter(store), scheduler)

	provider, err := providers.New(providers.Config{
		APIKey:       cfg.Agent.APIKey,
		DefaultModel: cfg.Agent.Model,
	})
	if err != nil {
		logger.Error("failed to initialize LLM provider", "error", err)
		os.Exit(1)
	}

	executor := agent.NewExecutor(toolRegistry, agent.DefaultExecutorConfig())
	executor.SetCollector(collector)
	loop := agent.NewAgenticLoop(provider, toolRegistry, executor, approvalGate, sessionStore, agent.LoopConfig{
		MaxIterations:   cfg.Tools.MaxIterations,
		MaxToolCalls:    cfg.Tools.MaxToolCalls,
		MaxWallTime:     cfg.Tools.MaxWallTime,
		MaxTokens:       4096,
		DefaultModel:    cfg.Agent.Model,
		DefaultSystem:   cfg.Agent.SystemPrompt,
		RequireApproval: cfg.Tools.RequireApproval,
		ControlChatIDs:  cfg.Auth.ControlChatIDs,
	})
	loop.SetCollector(collector)
	loop.SetMemoryWriter(memStoreAdapter(store))

	authService := auth.NewService(cfg.Auth.BootstrapToken, cfg.Auth.LegacyStaticTokens, cfg.Auth.SessionTTL)
	if cfg.Auth.JWTSecret != "" {
		authService.SetJWTIssuer(auth.NewJWTIssuer(cfg.Auth.JWTSecret))
	}
	auditLog := audit.NewLogger(logger, 10000)
	runHub := webapi.NewRunHub()
	limiter := ratelimit.New(5, 10)
	inFlight := ratelimit.NewInFlight(3)

	handler := webapi.NewHandler(webapi.Config{
		BasePath:       cfg.Server.BasePath,
		AuthService:    authService,
		AuditLog:       auditLog,
		Sessions:       sessionStore,
		Channels:       registry,
		RunHub:         runHub,
		Loop:           loop,
		Registry:       toolRegistry,
		Locker:         sessionLocker,
		Limiter:        limiter,
		InFlight:       inFlight,
		Collector:      collector,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	if err := registry.StartAll(ctx); err != nil {
		logger.Error("failed to start channel adapters", "error", err)
		os.Exit(1)
	}
	defer registry.StopAll(context.Background())

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: handler.Mount(),
	}

	go func() {
		logger.Info("microclawd listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func sandboxMode(enabled bool) sandbox.Mode {
	if enabled {
		return sandbox.ModeAll
	}
	return sandbox.ModeOff
}

func buildStorage(ctx context.Context, cfg config.StorageConfig) (any, error) {
	switch cfg.Backend {
	case "postgres":
		return storage.NewPostgresBackend(ctx, cfg.DSN)
	default:
		return storage.NewMemoryBackend(), nil
	}
}

// memStoreAdapter narrows the storage backend to the MemoryStore interface
// the memory tools depend on.
func memStoreAdapter(store any) storage.MemoryStore {
	return store.(storage.MemoryStore)
}

func registerChannels(ctx context.Context, registry *channels.Registry, cfg *config.Config, logger *slog.Logger) {
	registry.Register(web.New(), channels.Route{
		ChannelName: "web", ConversationKind: models.ConversationLocal, IsLocalOnly: true, AllowsCrossChat: false,
	})

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.New(cfg.Channels.Telegram.Token)
		if err != nil {
			logger.Error("telegram adapter init failed", "error", err)
		} else {
			registry.Register(adapter, channels.Route{ChannelName: "telegram", ConversationKind: models.ConversationDirect, AllowsCrossChat: true})
		}
	}

	if cfg.Channels.Discord.Enabled {
		adapter, err := discord.New(cfg.Channels.Discord.Token)
		if err != nil {
			logger.Error("discord adapter init failed", "error", err)
		} else {
			registry.Register(adapter, channels.Route{ChannelName: "discord", ConversationKind: models.ConversationGroup, AllowsCrossChat: true})
		}
	}

	if cfg.Channels.WhatsApp.Enabled {
		adapter := whatsapp.New(cfg.Channels.WhatsApp.AppSecret, cfg.Channels.WhatsApp.AccessToken, cfg.Channels.WhatsApp.PhoneID)
		registry.Register(adapter, channels.Route{ChannelName: "whatsapp", ConversationKind: models.ConversationDirect, AllowsCrossChat: true})
	}
}

func registerTools(registry *agent.ToolRegistry, router *sandbox.Router, skillManager *skills.Manager, chRegistry *channels.Registry, memStore storage.MemoryStore, scheduler *cron.Scheduler) {
	resolver := filesTool.NewResolver(".")
	registry.Register(&filesTool.ReadFileTool{Resolver: resolver})
	registry.Register(&filesTool.WriteFileTool{Resolver: resolver})
	registry.Register(&filesTool.GlobTool{Resolver: resolver})

	registry.Register(execTool.NewShellTool(router, "default"))
	registry.Register(&skillsTool.SyncTool{Manager: skillManager})
	registry.Register(browserTool.NewTool(browserTool.NewPool()))

	registry.Register(&memoryTool.WriteTool{Store: memStore})
	registry.Register(&memoryTool.SearchTool{Store: memStore})
	registry.Register(&memoryTool.DeleteTool{Store: memStore})
	registry.Register(&memoryTool.UpdateTool{Store: memStore})

	registry.Register(&messageTool.SendTool{Registry: chRegistry})

	registry.Register(&cronTool.ScheduleTool{Scheduler: scheduler, OnFire: func(taskID, chatID, prompt string) {
		slog.Default().Info("scheduled task fired", "task_id", taskID, "chat_id", chatID)
	}})
	registry.Register(cronTool.NewPauseTool(scheduler))
	registry.Register(cronTool.NewResumeTool(scheduler))
	registry.Register(cronTool.NewCancelTool(scheduler))
}
