package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

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

type options struct {
	configFile  string
	listen      string
	compression string
	exportDir   string
	logLevel    string
	showVersion bool
}

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
		fmt.Fprintf(os.Stderr, "phoenixrec: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("phoenixrec", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configFile, "config", "", "YAML config file (overrides "+config.ConfigFileEnv+")")
	flagSet.StringVar(&opts.listen, "listen", "", "HTTP listen address")
	flagSet.StringVar(&opts.compression, "compression", "", "frame compression: lz4 or zstd")
	flagSet.StringVar(&opts.exportDir, "export-dir", "", "directory for the session export file")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: phoenixrec [flags] [robot-host[:port]]\n\n")
		fmt.Fprintf(os.Stderr, "Connects to the robot collector (default localhost), records the session\nand writes it to the export directory when the session ends.\n\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Println("phoenixrec", version.Current())
		return nil
	}
	if flagSet.NArg() > 1 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(1))
	}

	if opts.configFile != "" {
		if err := os.Setenv(config.ConfigFileEnv, opts.configFile); err != nil {
			return fmt.Errorf("set config file: %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := applyFlags(&cfg, flagSet, opts); err != nil {
		return err
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})
	logger := slog.New(handler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, logger, cfg, app.CurrentHost(logger)); err != nil {
		logger.Error("application error", "err", err)
		return err
	}
	return nil
}

func applyFlags(cfg *config.Config, flagSet *pflag.FlagSet, opts options) error {
	if host := flagSet.Arg(0); host != "" {
		addr, err := config.CollectorAddrFromHost(host)
		if err != nil {
			return fmt.Errorf("robot host: %w", err)
		}
		cfg.CollectorAddr = addr
	}
	overrides := map[string]string{
		"APP_LISTEN_ADDR": opts.listen,
		"APP_COMPRESSION": opts.compression,
		"APP_EXPORT_DIR":  opts.exportDir,
		"APP_LOG_LEVEL":   opts.logLevel,
	}
	return config.ApplyOverrides(cfg, overrides)
}
