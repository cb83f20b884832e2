// Package app wires up and runs the recorder and simulator services.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skobkin/phoenixrec/internal/collector"
	"github.com/skobkin/phoenixrec/internal/config"
	"github.com/skobkin/phoenixrec/internal/export"
	"github.com/skobkin/phoenixrec/internal/httpserver"
	"github.com/skobkin/phoenixrec/internal/metrics"
	"github.com/skobkin/phoenixrec/internal/producer"
	"github.com/skobkin/phoenixrec/internal/sim"
	"github.com/skobkin/phoenixrec/internal/store"
	"github.com/skobkin/phoenixrec/internal/wire"
)

const shutdownTimeout = 10 * time.Second

// Host identifies who runs the process, for export metadata.
type Host struct {
	User string
	Name string
}

// Run bootstraps the ground-side recorder: it pulls one session from the
// collector at cfg.CollectorAddr, serves it over HTTP and writes the
// export file once the session ends.
func Run(ctx context.Context, baseLogger *slog.Logger, cfg config.Config, host Host) error {
	appLogger := baseLogger.With("component", "app")

	compressor, err := wire.ParseCompression(cfg.Compression)
	if err != nil {
		return fmt.Errorf("init compression: %w", err)
	}

	registry := prometheus.NewRegistry()
	linkMetrics, err := newLinkMetrics(cfg, registry, "producer")
	if err != nil {
		return err
	}

	st := store.New()
	prod := producer.New(cfg.CollectorAddr, st, producer.Options{
		Compressor:    compressor,
		MaxFrameBytes: cfg.MaxFrameBytes,
		DialTimeout:   cfg.DialTimeout,
		CloseTimeout:  cfg.CloseTimeout,
		Metrics:       linkMetrics,
		Logger:        baseLogger,
	})

	meta := export.Metadata{User: host.User, Host: host.Name}
	srv := httpserver.New(cfg, baseLogger.With("component", "http"), httpserver.Options{
		Store:      st,
		Link:       prod,
		Registry:   registry,
		ExportMeta: meta,
	})

	prodCtx, prodCancel := context.WithCancel(ctx)
	defer prodCancel()

	appLogger.Info("connecting to collector", "addr", cfg.CollectorAddr, "compression", compressor.Name())
	prodErrCh := make(chan error, 1)
	go func() {
		prodErrCh <- prod.Run(prodCtx)
	}()

	appLogger.Info("starting HTTP server", "listen_addr", cfg.ListenAddr)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sessionDone := func(err error) error {
		prodErrCh = nil
		if exportErr := writeExport(appLogger, cfg.ExportDir, st, meta); exportErr != nil {
			err = errors.Join(err, exportErr)
		}
		return err
	}

	var sessionErr error
	for {
		select {
		case err := <-errCh:
			prodCancel()
			if prodErrCh != nil {
				sessionErr = sessionDone(<-prodErrCh)
			}
			if err != nil {
				return errors.Join(err, sessionErr)
			}
			return sessionErr
		case err := <-prodErrCh:
			sessionErr = sessionDone(err)
			if sessionErr != nil {
				appLogger.Error("session failed", "err", sessionErr)
				return errors.Join(sessionErr, shutdownHTTP(srv, errCh))
			}
			appLogger.Info("session complete, still serving", "entries", st.Len())
		case <-ctx.Done():
			appLogger.Info("shutdown initiated", "reason", ctx.Err())

			if err := shutdownHTTP(srv, errCh); err != nil {
				return err
			}

			prodCancel()
			if prodErrCh != nil {
				sessionErr = sessionDone(<-prodErrCh)
			}

			appLogger.Info("shutdown complete")
			return sessionErr
		}
	}
}

// RunSimulator bootstraps the robot-side simulator: it drives a store
// with synthetic telemetry, streams it to one producer through a
// collector listening on cfg.CollectorListen and serves the local view
// over HTTP.
func RunSimulator(ctx context.Context, baseLogger *slog.Logger, cfg config.Config, host Host, mission []sim.Step) error {
	appLogger := baseLogger.With("component", "app")

	compressor, err := wire.ParseCompression(cfg.Compression)
	if err != nil {
		return fmt.Errorf("init compression: %w", err)
	}

	registry := prometheus.NewRegistry()
	linkMetrics, err := newLinkMetrics(cfg, registry, "collector")
	if err != nil {
		return err
	}

	st := store.New()
	col := collector.New(cfg.CollectorListen, collector.Options{
		Compressor:    compressor,
		MaxFrameBytes: cfg.MaxFrameBytes,
		CloseTimeout:  cfg.CloseTimeout,
		Metrics:       linkMetrics,
		Logger:        baseLogger,
	})
	if err := col.Listen(); err != nil {
		return fmt.Errorf("start collector: %w", err)
	}
	st.Attach(col)
	defer st.Attach(nil)

	driver, err := sim.New(st, cfg.SimInterval, sim.Options{Mission: mission, Logger: baseLogger})
	if err != nil {
		col.Stop()
		return err
	}

	meta := export.Metadata{User: host.User, Host: host.Name}
	srv := httpserver.New(cfg, baseLogger.With("component", "http"), httpserver.Options{
		Store:      st,
		Link:       col,
		Registry:   registry,
		ExportMeta: meta,
	})

	colCtx, colCancel := context.WithCancel(ctx)
	defer colCancel()
	colErrCh := make(chan error, 1)
	go func() {
		colErrCh <- col.Run(colCtx)
	}()

	simCtx, simCancel := context.WithCancel(ctx)
	defer simCancel()
	simErrCh := make(chan error, 1)
	go func() {
		simErrCh <- driver.Run(simCtx)
	}()

	appLogger.Info("starting HTTP server", "listen_addr", cfg.ListenAddr)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	finish := func() error {
		simCancel()
		var errs []error
		if simErrCh != nil {
			if err := <-simErrCh; err != nil && !errors.Is(err, context.Canceled) {
				errs = append(errs, err)
			}
		}
		col.Stop()
		if colErrCh != nil {
			if err := <-colErrCh; err != nil {
				errs = append(errs, err)
			}
		}
		errs = append(errs, writeExport(appLogger, cfg.ExportDir, st, meta))
		return errors.Join(errs...)
	}

	for {
		select {
		case err := <-errCh:
			errCh = nil
			return errors.Join(err, finish())
		case err := <-simErrCh:
			simErrCh = nil
			if err != nil && !errors.Is(err, context.Canceled) {
				return errors.Join(err, finish(), shutdownHTTP(srv, errCh))
			}
			// The end frame goes out once the queue is drained.
			appLogger.Info("mission finished, closing session", "pending", col.Pending())
			col.Stop()
		case err := <-colErrCh:
			colErrCh = nil
			if err != nil {
				appLogger.Error("collector session failed", "err", err)
				return errors.Join(err, finish(), shutdownHTTP(srv, errCh))
			}
			appLogger.Info("collector session closed")
		case <-ctx.Done():
			appLogger.Info("shutdown initiated", "reason", ctx.Err())

			err := shutdownHTTP(srv, errCh)
			err = errors.Join(err, finish())

			appLogger.Info("shutdown complete")
			return err
		}
	}
}

func newLinkMetrics(cfg config.Config, registry *prometheus.Registry, role string) (*metrics.Link, error) {
	if !cfg.EnablePrometheus {
		return metrics.NewLink(nil, role)
	}
	link, err := metrics.NewLink(registry, role)
	if err != nil {
		return nil, fmt.Errorf("init link metrics: %w", err)
	}
	return link, nil
}

func shutdownHTTP(srv *httpserver.Server, errCh <-chan error) error {
	if errCh == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeExport(logger *slog.Logger, dir string, st *store.Store, meta export.Metadata) error {
	if st.Len() == 0 {
		logger.Info("nothing to export")
		return nil
	}
	meta.CreatedAt = time.Now()
	meta.SessionName = st.SessionName()
	path := filepath.Join(dir, export.FileName(meta.SessionName))
	if err := export.WriteFile(path, st, meta); err != nil {
		return fmt.Errorf("export session: %w", err)
	}
	logger.Info("session exported", "path", path, "entries", st.Len())
	return nil
}
