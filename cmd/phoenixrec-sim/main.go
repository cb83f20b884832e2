package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/skobkin/phoenixrec/internal/app"
	"github.com/skobkin/phoenixrec/internal/config"
	"github.com/skobkin/phoenixrec/internal/version"
)

var (
	buildVersion = "dev"
	buildCommit  = ""
	buildTime    = ""
)

func main() {
	version.Set(version.Info{
		Version:   buildVersion,
		Commit:    buildCommit,
		BuildTime: buildTime,
	})

	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "phoenixrec-sim: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  string
		listen      string
		collector   string
		compression string
		exportDir   string
		interval    time.Duration
		logLevel    string
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("phoenixrec-sim", pflag.ContinueOnError)
	flagSet.StringVar(&configFile, "config", "", "YAML config file (overrides "+config.ConfigFileEnv+")")
	flagSet.StringVar(&listen, "listen", "", "HTTP listen address")
	flagSet.StringVar(&collector, "collector", "", "collector listen address")
	flagSet.StringVar(&compression, "compression", "", "frame compression: lz4 or zstd")
	flagSet.StringVar(&exportDir, "export-dir", "", "directory for the robot-side export file")
	flagSet.DurationVar(&interval, "interval", 0, "time between synthetic records")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: phoenixrec-sim [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Plays a scripted mission into a collector so a recorder can pull it.\n\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if showVersion {
		fmt.Println("phoenixrec-sim", version.Current())
		return nil
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	if configFile != "" {
		if err := os.Setenv(config.ConfigFileEnv, configFile); err != nil {
			return fmt.Errorf("set config file: %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	overrides := map[string]string{
		"APP_LISTEN_ADDR":      listen,
		"APP_COLLECTOR_LISTEN": collector,
		"APP_COMPRESSION":      compression,
		"APP_EXPORT_DIR":       exportDir,
		"APP_LOG_LEVEL":        logLevel,
	}
	if flagSet.Changed("interval") {
		overrides["APP_SIM_INTERVAL"] = interval.String()
	}
	if err := config.ApplyOverrides(&cfg, overrides); err != nil {
		return err
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})
	logger := slog.New(handler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunSimulator(ctx, logger, cfg, app.CurrentHost(logger), nil); err != nil {
		logger.Error("application error", "err", err)
		return err
	}
	return nil
}
