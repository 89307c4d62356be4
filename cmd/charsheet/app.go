package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"charsheet/internal/blob"
	"charsheet/internal/config"
	"charsheet/internal/core"
	"charsheet/internal/export"
)

// app is the wiring shared by all commands: configuration, logger, record
// store, export blob store and the core service on top of them.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	store    core.RecordStore
	blobs    blob.Store
	exporter *export.Exporter
	svc      *core.Service
	registry *prometheus.Registry
	closers  []io.Closer
}

type appOptions struct {
	interactive bool
	// notifier builds the notification sink once the logger exists.
	notifier func(*zap.Logger) core.Notifier
}

func openApp(ctx context.Context, flags *globalFlags, opts appOptions) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	logger, err := buildLogger(cfg.Log, flags, opts.interactive)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	tpl, err := config.LoadTemplate(cfg.TemplatePath)
	if err != nil {
		a.Close()
		return nil, err
	}
	store, err := core.OpenRecordStore(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	a.store = store
	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open %s blob store: %w", cfg.Blob.Driver, err)
	}
	a.blobs = blobs
	a.exporter = export.NewExporter(blobs)

	svcOpts := []core.ServiceOption{
		core.WithZapLogger(logger),
		core.WithTemplate(tpl.Character, tpl.Status),
		core.WithBackpackCapacity(cfg.BackpackCapacity),
		core.WithQuietPeriod(cfg.Autosave.QuietPeriod),
		core.WithPersistTimeout(cfg.Autosave.PersistTimeout),
		core.WithExporter(a.exporter),
	}
	if opts.notifier != nil {
		svcOpts = append(svcOpts, core.WithNotifier(opts.notifier(logger)))
	}
	if flags.metricsAddr != "" {
		a.registry = prometheus.NewRegistry()
		rec, err := core.NewPrometheusMetricsRecorder(a.registry)
		if err != nil {
			a.Close()
			return nil, err
		}
		svcOpts = append(svcOpts, core.WithMetricsRecorder(rec))
	}
	if flags.traceFile != "" {
		f, err := os.OpenFile(flags.traceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.closers = append(a.closers, f)
		svcOpts = append(svcOpts, core.WithTracer(core.NewJSONTracer(f)))
	}
	a.svc = core.NewService(store, svcOpts...)
	return a, nil
}

// Close closes open sessions, discarding unsaved edits, then the stores.
func (a *app) Close() error {
	var errs []error
	if a.svc != nil {
		a.svc.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

// stderrNotifier prints notifications for the one-shot commands.
func stderrNotifier(w io.Writer) core.Notifier {
	return core.NotifierFunc(func(n core.Notification) {
		if n.Level == core.NotifyInfo {
			return
		}
		if n.Err != nil {
			fmt.Fprintf(w, "%s: %s (%v)\n", n.Level, n.Message, n.Err)
			return
		}
		fmt.Fprintf(w, "%s: %s\n", n.Level, n.Message)
	})
}
