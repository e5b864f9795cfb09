// Command refvald serves the reference value provider: it accepts
// provenance submissions over HTTP, runs the extraction pipeline, and
// distributes verified reference values through the configured cache
// and notification channel.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/refval/broadcast"
	"github.com/meigma/refval/broadcast/cloudevent"
	"github.com/meigma/refval/cache"
	"github.com/meigma/refval/cache/disk"
	"github.com/meigma/refval/extractor"
	"github.com/meigma/refval/extractor/intoto"
	"github.com/meigma/refval/extractor/slsaprov"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "refvald:", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("refvald", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to YAML config file")
	listen := flags.String("listen", "", "HTTP listen address (overrides config)")
	channelTarget := flags.String("channel-target", "", "notification channel target URL (overrides config)")
	cacheDir := flags.String("cache-dir", "", "use the disk cache backend rooted at this directory")
	logLevel := flags.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = LoadConfig(*configPath); err != nil {
			return err
		}
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *channelTarget != "" {
		cfg.Channel.Target = *channelTarget
	}
	if *cacheDir != "" {
		cfg.Cache = CacheConfig{Backend: "disk", Dir: *cacheDir}
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)

	store, err := newCache(cfg.Cache)
	if err != nil {
		return err
	}
	channel, err := newChannel(cfg.Channel, logger)
	if err != nil {
		return err
	}

	registry := extractor.NewRegistry()
	registry.Register(intoto.TypeName, func() extractor.Extractor { return intoto.New() })
	registry.Register(slsaprov.TypeName, func() extractor.Extractor { return slsaprov.New() })

	handlerOpts := []extractor.HandlerOption{extractor.WithLogger(logger)}
	if cfg.Validity > 0 {
		handlerOpts = append(handlerOpts, extractor.WithValidity(time.Duration(cfg.Validity)))
	}
	if cfg.ExtractTimeout > 0 {
		handlerOpts = append(handlerOpts, extractor.WithTimeout(time.Duration(cfg.ExtractTimeout)))
	}

	srv := &server{
		handler:     extractor.NewHandler(registry, handlerOpts...),
		broadcaster: broadcast.New(store, channel, broadcast.WithLogger(logger)),
		store:       store,
		logger:      logger,
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", slog.String("addr", cfg.Listen),
			slog.String("cache", cfg.Cache.Backend))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func newCache(cfg CacheConfig) (cache.Cache, error) {
	if cfg.Backend == "disk" {
		return disk.New(cfg.Dir)
	}
	return cache.NewMemory(), nil
}

// newChannel builds the notification channel. Without a target the
// daemon still runs store-and-publish; notifications only reach the
// log.
func newChannel(cfg ChannelConfig, logger *slog.Logger) (broadcast.Channel, error) {
	if cfg.Target == "" {
		return broadcast.ChannelFunc(func(_ context.Context, message []byte) error {
			logger.Info("reference value published", slog.String("message", string(message)))
			return nil
		}), nil
	}
	var opts []cloudevent.Option
	if cfg.Source != "" {
		opts = append(opts, cloudevent.WithSource(cfg.Source))
	}
	if cfg.EventType != "" {
		opts = append(opts, cloudevent.WithEventType(cfg.EventType))
	}
	return cloudevent.New(cfg.Target, opts...)
}
