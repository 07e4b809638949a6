// Command agentbridge runs the multi-channel conversational agent gateway:
// it wires an LLM provider, the tool registry, the approval policy, the
// memory store, the channel router, and every enabled channel adapter, then
// drives inbound ChannelEvents through the agent runtime until terminated.
//
// Configuration is entirely environment-driven (no subcommands, no flag
// parsing) — see the envOr, envInt and os.Getenv calls below for every
// recognized variable.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/agentbridge/agentbridge/internal/agent"
	"github.com/agentbridge/agentbridge/internal/approval"
	"github.com/agentbridge/agentbridge/internal/channels/quic"
	"github.com/agentbridge/agentbridge/internal/channels/telegram"
	"github.com/agentbridge/agentbridge/internal/channels/terminal"
	"github.com/agentbridge/agentbridge/internal/channels/whatsapp"
	"github.com/agentbridge/agentbridge/internal/channels/ws"
	"github.com/agentbridge/agentbridge/internal/cron"
	"github.com/agentbridge/agentbridge/internal/llm"
	"github.com/agentbridge/agentbridge/internal/llm/anthropic"
	"github.com/agentbridge/agentbridge/internal/llm/openai"
	"github.com/agentbridge/agentbridge/internal/memory"
	"github.com/agentbridge/agentbridge/internal/metrics"
	"github.com/agentbridge/agentbridge/internal/router"
	"github.com/agentbridge/agentbridge/internal/skills"
	"github.com/agentbridge/agentbridge/internal/tools"
	"github.com/agentbridge/agentbridge/internal/tools/sandbox"
	"github.com/agentbridge/agentbridge/internal/tools/screenshot"
	"github.com/agentbridge/agentbridge/internal/tools/shell"
	"github.com/agentbridge/agentbridge/internal/tools/skillrt"
	"github.com/agentbridge/agentbridge/pkg/models"

	"github.com/docker/docker/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// adapter is the subset of the adapters' ChannelID/Run/SendResponse methods
// the dispatcher needs:
// enough to route a response back without importing every adapter package
// generically.
type adapter interface {
	ChannelID() models.ChannelID
	SendResponse(ctx context.Context, resp models.AgentResponse) error
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("starting agentbridge", "version", version, "commit", commit, "date", date)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("agentbridge exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	workspace := envOr("AGENTBRIDGE_WORKSPACE", ".")

	store, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("open memory store: %w", err)
	}
	defer store.Close()

	provider, err := buildProvider()
	if err != nil {
		return fmt.Errorf("build llm provider: %w", err)
	}

	wasmRuntime, err := skillrt.New(ctx, workspace)
	if err != nil {
		logger.Warn("wasm skill runtime unavailable", "error", err)
	} else {
		defer wasmRuntime.Close(ctx)
	}

	metricsCollector := metrics.New(prometheus.DefaultRegisterer)
	if addr := os.Getenv("AGENTBRIDGE_METRICS_ADDR"); addr != "" {
		startMetricsServer(addr, logger)
	}

	registry := tools.NewRegistry().WithMetrics(metricsCollector)
	registerTools(registry, workspace, wasmRuntime, logger)

	loader := skills.NewLoader(workspace)
	systemPrompt, err := loader.LoadContext()
	if err != nil {
		logger.Warn("failed to load skill context", "error", err)
	}

	rt := agent.New(provider, registry, store, approval.AutoApprove{}, agent.Config{
		MaxRounds:    envInt("AGENTBRIDGE_MAX_ROUNDS", agent.DefaultMaxRounds),
		Model:        envOr("AGENTBRIDGE_MODEL", ""),
		SystemPrompt: systemPrompt,
	}).WithMetrics(metricsCollector)

	rtr := router.New(envInt("AGENTBRIDGE_OUTBOUND_CAPACITY", 256), logger).WithMetrics(metricsCollector)

	inbound := make(chan models.ChannelEvent, 256)
	adapters := make(map[models.ChannelID]adapter)

	cliAdapter := terminal.New(os.Stdin, os.Stdout)
	adapters[cliAdapter.ChannelID()] = cliAdapter

	var wg sync.WaitGroup
	startAdapter(ctx, &wg, logger, cliAdapter.ChannelID(), func() error { return cliAdapter.Run(ctx, inbound) })

	if token := os.Getenv("AGENTBRIDGE_TELEGRAM_TOKEN"); token != "" {
		tgAdapter := telegram.New(token)
		adapters[tgAdapter.ChannelID()] = tgAdapter
		startAdapter(ctx, &wg, logger, tgAdapter.ChannelID(), func() error { return tgAdapter.Run(ctx, inbound) })
	}

	if addr := os.Getenv("AGENTBRIDGE_WS_ADDR"); addr != "" {
		wsAdapter := ws.New(ws.Config{
			LongLivedToken: os.Getenv("AGENTBRIDGE_WS_TOKEN"),
			Logger:         logger,
		})
		adapters[wsAdapter.ChannelID()] = wsAdapter
		startAdapter(ctx, &wg, logger, wsAdapter.ChannelID(), func() error { return wsAdapter.Run(ctx, addr, inbound) })
	}

	if phoneID := os.Getenv("AGENTBRIDGE_WHATSAPP_PHONE_ID"); phoneID != "" {
		waAdapter := whatsapp.New(whatsapp.Config{
			AccessToken:   os.Getenv("AGENTBRIDGE_WHATSAPP_TOKEN"),
			PhoneNumberID: phoneID,
		})
		adapters[waAdapter.ChannelID()] = waAdapter
		addr := envOr("AGENTBRIDGE_WHATSAPP_ADDR", ":8081")
		startAdapter(ctx, &wg, logger, waAdapter.ChannelID(), func() error { return waAdapter.Run(ctx, addr, inbound) })
	}

	if addr := os.Getenv("AGENTBRIDGE_QUIC_ADDR"); addr != "" {
		// quic's Handler writes its response inline on the request stream
		// (SendResponse is a no-op for this adapter), so it calls the
		// runtime directly instead of going through inbound/Respond.
		quicAdapter := quic.New(quic.Config{Addr: addr}, func(handlerCtx context.Context, event models.ChannelEvent) (models.AgentResponse, error) {
			sink := make(chan models.ProgressEvent, 32)
			go func() {
				for range sink {
				}
			}()
			resp, err := rt.Process(handlerCtx, event, sink)
			close(sink)
			return resp, err
		})
		adapters[quicAdapter.ChannelID()] = quicAdapter
		startAdapter(ctx, &wg, logger, quicAdapter.ChannelID(), func() error { return quicAdapter.Run(ctx, nil) })
	}

	scheduler := cron.New(logger)
	if err := configureCronJobs(scheduler, inbound); err != nil {
		logger.Warn("cron configuration skipped", "error", err)
	}
	scheduler.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = scheduler.Shutdown(shutdownCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatchResponses(ctx, rtr, adapters, logger)
	}()

	mainLoop(ctx, rt, rtr, inbound, logger)

	wg.Wait()
	return nil
}

// mainLoop drains inbound ChannelEvents, runs each through the agent
// runtime, and routes the result onto the router's outbound fan-out queue.
// Each event is processed in its own goroutine so that one session's
// suspended LLM call never blocks another session's progress; per-session
// serialization is enforced inside the runtime itself.
func mainLoop(ctx context.Context, rt *agent.Runtime, rtr *router.Router, inbound <-chan models.ChannelEvent, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-inbound:
			if !ok {
				return
			}
			rtr.BindSession(event.ChannelID, event.SessionID)
			go processEvent(ctx, rt, rtr, event, logger)
		}
	}
}

func processEvent(ctx context.Context, rt *agent.Runtime, rtr *router.Router, event models.ChannelEvent, logger *slog.Logger) {
	sink := make(chan models.ProgressEvent, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range sink {
			// Progress events are not surfaced anywhere in this minimal
			// wiring; a richer deployment would stream them to the
			// originating adapter.
		}
	}()

	resp, err := rt.Process(ctx, event, sink)
	close(sink)
	<-done
	if err != nil {
		logger.Error("agent processing failed", "session_id", event.SessionID, "channel_id", event.ChannelID, "error", err)
	}
	rtr.Respond(resp)
}

// dispatchResponses drains the router's outbound queue and hands each
// response to the adapter that owns its ChannelID.
func dispatchResponses(ctx context.Context, rtr *router.Router, adapters map[models.ChannelID]adapter, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case resp, ok := <-rtr.Outbound():
			if !ok {
				return
			}
			target, ok := resolveAdapter(adapters, resp.ChannelID)
			if !ok {
				logger.Warn("no adapter registered for response channel", "channel_id", resp.ChannelID)
				continue
			}
			if err := target.SendResponse(ctx, resp); err != nil {
				logger.Warn("send response failed", "channel_id", resp.ChannelID, "error", err)
			}
		}
	}
}

// resolveAdapter matches a response's ChannelID against the registered
// adapters, first by exact match (static adapters like terminal/telegram/
// whatsapp/quic) and then by "<adapter-prefix>:" for per-client channel ids
// such as a WebSocket client (e.g. "ws:client-42" routes to the "ws:gateway"
// adapter).
func resolveAdapter(adapters map[models.ChannelID]adapter, channelID models.ChannelID) (adapter, bool) {
	if target, ok := adapters[channelID]; ok {
		return target, true
	}
	prefix := strings.SplitN(string(channelID), ":", 2)[0]
	for id, target := range adapters {
		if strings.HasPrefix(string(id), prefix+":") {
			return target, true
		}
	}
	return nil, false
}

func startAdapter(ctx context.Context, wg *sync.WaitGroup, logger *slog.Logger, channelID models.ChannelID, run func() error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := run(); err != nil && ctx.Err() == nil {
			logger.Error("adapter stopped", "channel_id", channelID, "error", err)
		}
	}()
}

// startMetricsServer exposes the default Prometheus registry at /metrics on
// addr. It runs in the background; a bind failure is logged, not fatal.
func startMetricsServer(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
}

func registerTools(registry *tools.Registry, workspace string, wasmRuntime *skillrt.Runtime, logger *slog.Logger) {
	shellManager := shell.NewManager(workspace)
	registry.Register(shell.NewRunTool(shellManager))
	registry.Register(shell.NewProcessTool(shellManager))

	var wasm skills.WasmRunner
	if wasmRuntime != nil {
		wasm = wasmRuntime
	}
	registry.Register(skills.NewSkillTool(skills.NewRunner(workspace, wasm)))
	registry.Register(screenshot.NewTool(envOr("AGENTBRIDGE_DISPLAY", "0")))

	if image := os.Getenv("AGENTBRIDGE_DOCKER_IMAGE"); image != "" {
		dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			logger.Warn("docker sandbox unavailable", "error", err)
		} else {
			registry.Register(sandbox.NewContainerTool(dockerClient, image, os.Getenv("AGENTBRIDGE_DOCKER_WORKSPACE")))
		}
	}
}

func configureCronJobs(scheduler *cron.Scheduler, inbound chan<- models.ChannelEvent) error {
	spec := os.Getenv("AGENTBRIDGE_CRON_SPEC")
	if spec == "" {
		return nil
	}
	channelID := models.ChannelID(envOr("AGENTBRIDGE_CRON_CHANNEL", "cli:local"))
	sessionID := models.SessionID(envOr("AGENTBRIDGE_CRON_SESSION", "cron"))
	message := envOr("AGENTBRIDGE_CRON_MESSAGE", "scheduled check-in")

	_, err := scheduler.AddJob(spec, channelID, sessionID, message, inbound)
	return err
}

func openStore(ctx context.Context) (memory.Store, error) {
	dsn := os.Getenv("AGENTBRIDGE_DB_PATH")
	if dsn == "" {
		return memory.NewInMemoryStore(), nil
	}
	return memory.Open(ctx, dsn)
}

func buildProvider() (llm.Provider, error) {
	switch strings.ToLower(envOr("AGENTBRIDGE_LLM_PROVIDER", "anthropic")) {
	case "openai":
		return openai.New(openai.Config{
			APIKey:       os.Getenv("OPENAI_API_KEY"),
			BaseURL:      os.Getenv("OPENAI_BASE_URL"),
			DefaultModel: os.Getenv("AGENTBRIDGE_MODEL"),
		})
	default:
		return anthropic.New(anthropic.Config{
			APIKey:       os.Getenv("ANTHROPIC_API_KEY"),
			BaseURL:      os.Getenv("ANTHROPIC_BASE_URL"),
			DefaultModel: os.Getenv("AGENTBRIDGE_MODEL"),
		})
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
