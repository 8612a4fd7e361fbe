package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joshuafuller/mdns-bridge/config"
	"github.com/joshuafuller/mdns-bridge/internal/bridge"
	"github.com/joshuafuller/mdns-bridge/internal/metrics"
)

// multiLevelHandler routes ERROR logs to stderr, everything else to stdout.
type multiLevelHandler struct {
	level        *slog.LevelVar
	infoHandler  slog.Handler
	errorHandler slog.Handler
}

func (h *multiLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *multiLevelHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return h.errorHandler.Handle(ctx, r)
	}
	return h.infoHandler.Handle(ctx, r)
}

func (h *multiLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &multiLevelHandler{
		level:        h.level,
		infoHandler:  h.infoHandler.WithAttrs(attrs),
		errorHandler: h.errorHandler.WithAttrs(attrs),
	}
}

func (h *multiLevelHandler) WithGroup(name string) slog.Handler {
	return &multiLevelHandler{
		level:        h.level,
		infoHandler:  h.infoHandler.WithGroup(name),
		errorHandler: h.errorHandler.WithGroup(name),
	}
}

const Version = "1.0.0"

var (
	GitHash = ""
	Branch  = ""
)

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	// Structured logging with INFO/WARN to stdout, ERROR to stderr.
	level := new(slog.LevelVar)
	handler := &multiLevelHandler{
		level:        level,
		infoHandler:  slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		errorHandler: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}),
	}
	slog.SetDefault(slog.New(handler))

	var (
		configFile = flag.String("c", "/etc/mdns-bridge.yaml", "config file (YAML)")
		example    = flag.Bool("e", false, "print an example config and exit")
		version    = flag.Bool("v", false, "show version")
	)
	flag.Parse()

	if *version {
		versionStr := fmt.Sprintf("mdns-bridge %s", Version)
		if GitHash != "" {
			versionStr += fmt.Sprintf("+%s", GitHash)
		}
		fmt.Println(versionStr)
		os.Exit(0)
	}

	if *example {
		fmt.Print(config.Example())
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		slog.Error("failed to load config", "path", *configFile, "error", err)
		os.Exit(1)
	}
	level.Set(parseLevel(cfg.Logging.Level))

	m, err := metrics.New(cfg.Metrics.OTELEndpoint, cfg.Metrics.PrometheusEndpoint)
	if err != nil {
		slog.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}

	br, err := bridge.New(cfg, m)
	if err != nil {
		slog.Error("failed to start bridge", "error", err)
		os.Exit(1)
	}

	mgr := config.NewManager(*configFile)
	if err := mgr.Start(); err != nil {
		slog.Warn("config change detection unavailable", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("mdns-bridge started", "version", Version, "interfaces", len(cfg.Interfaces))

	if err := br.Run(ctx); err != nil {
		slog.Error("bridge failed", "error", err)
		os.Exit(1)
	}

	mgr.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics shutdown", "error", err)
	}
	slog.Info("mdns-bridge stopped")
}
