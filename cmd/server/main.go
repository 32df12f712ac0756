// Command server runs the fratpos back-office API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/fratpos/internal/app"
	"github.com/charlesng35/fratpos/pkg/logger"
)

const (
	defaultShutdownTimeout = 15 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

type cliOptions struct {
	configPath string
	port       int
	seedOnly   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:])
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	default:
		fmt.Fprintf(os.Stderr, "fratpos: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (cliOptions, error) {
	var opts cliOptions

	fs := flag.NewFlagSet("fratpos", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "configuration directory or config.yaml path")
	fs.IntVar(&opts.port, "port", 0, "listen port, overrides server.port")
	fs.BoolVar(&opts.seedOnly, "seed-only", false, "migrate and seed the database, then exit")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, nil
}

func run(ctx context.Context, args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}

	generated, err := app.ApplyRuntimeDefaults(cfg)
	if err != nil {
		return err
	}
	if err := app.ConfigureLogging(cfg.Server); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.WithModule("bootstrap")
	if len(generated) > 0 {
		log.Warn("configuration values generated at startup", zap.Strings("keys", generated))
	}

	if opts.seedOnly {
		db, err := prepareStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		closeDatabase(db, log)
		log.Info("reference data seeded")
		return nil
	}

	stack, err := bootstrapRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	return serve(ctx, cfg, stack, log)
}

// serve runs the HTTP server until ctx ends or the listener fails, then
// drains requests and background jobs within the shutdown timeout.
func serve(ctx context.Context, cfg *app.Config, stack *runtimeStack, log *zap.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           stack.Router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	listenErr := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", server.Addr))
		listenErr <- server.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-listenErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("listen: %w", err)
		}
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("graceful shutdown: %w", err)
	}
	stack.Shutdown(shutdownCtx, log)

	if runErr == nil {
		log.Info("stopped")
	}
	return runErr
}

// loadApplicationConfig accepts either a directory holding config.yaml or a
// YAML file of any name. An empty path searches ./config only.
func loadApplicationConfig(path string) (*app.Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return app.LoadConfig()
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("config path %q does not exist", path)
	case err != nil:
		return nil, fmt.Errorf("stat config path: %w", err)
	case info.IsDir():
		return app.LoadConfig(path)
	default:
		return app.LoadConfigFile(path)
	}
}
