package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nomis52/execstore/buildinfo"
	"github.com/nomis52/execstore/config"
	"github.com/nomis52/execstore/logging"
	"github.com/nomis52/execstore/server"
	"github.com/nomis52/execstore/store"
)

type Args struct {
	ConfigPath  string
	ShowVersion bool
	Validate    bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	args := parseArgs()

	if args.ShowVersion {
		fmt.Println(buildinfo.Get())
		return nil
	}

	if args.ConfigPath == "" {
		return fmt.Errorf("config flag (-c or --config) is required")
	}

	cfg, err := config.LoadConfig(args.ConfigPath)
	if err != nil {
		return err
	}

	if args.Validate {
		fmt.Printf("Configuration validation successful: %s\n", args.ConfigPath)
		return nil
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()

	props := buildinfo.Get()
	logger.Info("execstore started",
		"version", props.Version,
		"build_time", props.BuildTime,
		"git_commit", props.GitCommit,
		"config_path", args.ConfigPath,
	)

	backend, err := newBackend(cfg.Store, logger.Logger)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, backend, logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go handleHangup(ctx, args.ConfigPath, logger, srv)

	return srv.Run(ctx)
}

// handleHangup re-reads the log level and the runtime config file on SIGHUP.
// Other config changes need a restart.
func handleHangup(ctx context.Context, configPath string, logger *logging.Logger, srv *server.Server) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			logger.Error("failed to reload config", "error", err)
			continue
		}
		if err := logger.SetLevel(cfg.Logging.Level); err != nil {
			logger.Error("failed to set log level", "error", err)
		}
		if err := srv.Reload(); err != nil && !errors.Is(err, server.ErrNoRuntimeConfigPath) {
			logger.Error("failed to reload runtime config", "error", err)
		}
		logger.Info("reloaded on SIGHUP", "log_level", logger.Level())
	}
}

func newBackend(cfg config.StoreConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendDisk:
		s, err := store.NewDiskStore(cfg.StateDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open disk store: %w", err)
		}
		return s, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

func parseArgs() Args {
	configPath := flag.String("config", "", "Path to config file")
	configPathShort := flag.String("c", "", "Path to config file (shorthand)")
	showVersion := flag.Bool("version", false, "Show version information")
	validate := flag.Bool("validate", false, "Validate configuration and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nexecstore - execution record store\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --config /etc/execstore/config.yaml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -c config.yaml --validate\n", os.Args[0])
	}

	flag.Parse()

	path := *configPath
	if path == "" && *configPathShort != "" {
		path = *configPathShort
	}

	return Args{
		ConfigPath:  path,
		ShowVersion: *showVersion,
		Validate:    *validate,
	}
}
