// Command voicectl drives the voice pipeline from a terminal: it prints
// what it hears, speaks text, or holds a spoken conversation with an LLM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/koscakluka/ema-voice/internal/config"
	"github.com/koscakluka/ema-voice/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const usage = `usage: voicectl [-config path] [-env path] <command> [args]

commands:
  listen          print completed utterances until interrupted
  speak <text>    speak text and exit once it has been played
  chat            answer every utterance with a spoken LLM reply
  schema          print the JSON schema of the configuration file
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "voicectl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("voicectl", flag.ContinueOnError)
	flags.Usage = func() { fmt.Fprint(flags.Output(), usage) }
	configPath := flags.String("config", "", "Path to configuration file")
	envPath := flags.String("env", ".env", "Path to env file")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return errors.New("no command given")
	}

	command, commandArgs := flags.Arg(0), flags.Args()[1:]
	if command == "schema" {
		schema, err := config.Schema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, string(schema))
		return err
	}

	if err := config.LoadEnv(*envPath); err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.SetDefault(newLogger(cfg.Logging))

	var runCommand func(ctx context.Context, cfg *config.Config, m *metrics.Metrics) error
	switch command {
	case "listen":
		runCommand = func(ctx context.Context, cfg *config.Config, m *metrics.Metrics) error {
			return listen(ctx, cfg, m, stdout)
		}
	case "speak":
		text := strings.TrimSpace(strings.Join(commandArgs, " "))
		if text == "" {
			return errors.New("speak needs some text")
		}
		runCommand = func(ctx context.Context, cfg *config.Config, m *metrics.Metrics) error {
			return speak(ctx, cfg, m, text)
		}
	case "chat":
		runCommand = func(ctx context.Context, cfg *config.Config, m *metrics.Metrics) error {
			return chat(ctx, cfg, m, stdout)
		}
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", command)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		m = metrics.NewMetrics(registry)
		g.Go(func() error { return serveMetrics(ctx, cfg.Metrics.Address, registry) })
	}
	g.Go(func() error {
		err := runCommand(ctx, cfg, m)
		stop()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func serveMetrics(ctx context.Context, address string, registry *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	server := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("failed to shut down metrics server", "error", err)
		}
	}()

	slog.Info("serving metrics", "address", address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
