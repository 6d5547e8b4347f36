// Command claude-route runs the proxy server: a loopback HTTP
// adapter that speaks the Anthropic Messages API and routes
// "provider/model" requests to whichever backend the config file
// registers, falling back to a byte-for-byte proxy of api.anthropic.com
// for everything else.
//
// Usage:
//
//	claude-route serve --config providers.yaml
//	claude-route serve --config providers.yaml --watch --addr 127.0.0.1:0
//	claude-route validate --config providers.yaml
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sudip358/claude-route/pkg/config"
	"github.com/sudip358/claude-route/pkg/debugsink"
	"github.com/sudip358/claude-route/pkg/proxyserver"
	"github.com/sudip358/claude-route/pkg/telemetry"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve    ServeCmd    `cmd:"" help:"Start the proxy server."`
	Validate ValidateCmd `cmd:"" help:"Validate a provider config file."`

	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

// ServeCmd starts the proxy server.
type ServeCmd struct {
	Config    string        `short:"c" help:"Path to provider config file (YAML)." type:"path" required:""`
	Watch     bool          `help:"Hot-reload the config file on change."`
	Addr      string        `help:"Address to listen on. Use a :0 port for kernel-assigned." default:"127.0.0.1:8080"`
	Anthropic string        `name:"anthropic-base-url" help:"Base URL for the Anthropic byte-proxy path." default:"https://api.anthropic.com"`
	Timeout   time.Duration `help:"Per-request timeout." default:"60s"`

	DebugDir     string `name:"debug-dir" help:"Directory to write debug-sink error records to. Empty disables the sink." type:"path"`
	DebugVerbose bool   `name:"debug-verbose" help:"Include buffered stream chunks in debug-sink records."`

	OTLPEndpoint string `name:"otlp-endpoint" help:"OTLP/HTTP collector endpoint for driver-invocation spans. Empty disables tracing."`
	OTLPInsecure bool   `name:"otlp-insecure" help:"Use an unencrypted connection to the OTLP endpoint."`
}

func (c *ServeCmd) Run(cli *CLI, log zapLogger) error {
	registry, closeRegistry, err := c.loadRegistry(log)
	if err != nil {
		return fmt.Errorf("failed to load provider config: %w", err)
	}
	defer closeRegistry()

	sink, err := c.buildDebugSink(log)
	if err != nil {
		return fmt.Errorf("failed to build debug sink: %w", err)
	}
	defer sink.Close()

	telemetrySettings, shutdownTelemetry, err := c.buildTelemetry()
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer shutdownTelemetry()

	_, handler := proxyserver.NewServer(proxyserver.Config{
		Registry:         registry,
		DebugSink:        sink,
		ChunkVerbosity:   c.chunkVerbosity(),
		AnthropicBaseURL: c.Anthropic,
		RequestTimeout:   c.Timeout,
		Log:              log.logr,
		Telemetry:        telemetrySettings,
	})

	listener, err := net.Listen("tcp", c.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.Addr, err)
	}
	defer listener.Close()

	log.logr.Info("claude-route listening", "addr", listener.Addr().String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	serveErr := make(chan error, 1)
	go func() { serveErr <- http.Serve(listener, handler) }()

	select {
	case <-sigCh:
		log.logr.Info("shutting down")
		return nil
	case err := <-serveErr:
		return err
	}
}

// registryProvider is the subset of proxyserver.RegistryProvider both
// *config.Static and *config.Watcher satisfy.
type registryProvider = proxyserver.RegistryProvider

func (c *ServeCmd) loadRegistry(log zapLogger) (registryProvider, func() error, error) {
	if c.Watch {
		w, err := config.NewWatcher(c.Config, func(err error) {
			log.logr.Error(err, "config reload failed, keeping previous registry")
		})
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil
	}

	reg, err := config.LoadFile(c.Config)
	if err != nil {
		return nil, nil, err
	}
	return config.NewStatic(reg), func() error { return nil }, nil
}

func (c *ServeCmd) buildDebugSink(log zapLogger) (debugsink.Sink, error) {
	if c.DebugDir == "" {
		return debugsink.Noop{}, nil
	}
	return debugsink.New(c.DebugDir, c.chunkVerbosity(), log.logr)
}

func (c *ServeCmd) chunkVerbosity() debugsink.Verbosity {
	if c.DebugVerbose {
		return debugsink.VerbosityWithChunks
	}
	return debugsink.VerbosityErrorOnly
}

func (c *ServeCmd) buildTelemetry() (*telemetry.Settings, func(), error) {
	noop := func() {}
	if c.OTLPEndpoint == "" {
		return telemetry.DefaultSettings(), noop, nil
	}

	provider, err := telemetry.NewProvider(telemetry.ProviderConfig{
		Endpoint: c.OTLPEndpoint,
		Insecure: c.OTLPInsecure,
	})
	if err != nil {
		return nil, noop, err
	}
	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(ctx)
	}
	return telemetry.DefaultSettings().WithEnabled(true).WithTracer(provider.Tracer()), shutdown, nil
}

// ValidateCmd checks that a provider config file parses and every
// backend names a recognized driver kind, without starting a server.
type ValidateCmd struct {
	Config string `short:"c" help:"Path to provider config file (YAML)." type:"path" required:""`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	reg, err := config.LoadFile(c.Config)
	if err != nil {
		return err
	}
	fmt.Printf("config OK: %d provider(s) registered: %v\n", len(reg.Providers()), reg.Providers())
	return nil
}

// zapLogger is the logr.Logger kong binds into each command's Run,
// backed by zap per kubeminds' cmd/apiserver/main.go bootstrapping.
type zapLogger struct {
	logr logr.Logger
}

func main() {
	_ = godotenv.Load()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("claude-route"),
		kong.Description("Anthropic-shaped proxy that routes provider/model requests to configured backends."),
		kong.UsageOnError(),
	)

	zapLog, err := buildZapLogger(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync()

	log := zapLogger{logr: zapr.NewLogger(zapLog)}

	err = ctx.Run(&cli, log)
	ctx.FatalIfErrorf(err)
}

func buildZapLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	return cfg.Build()
}
