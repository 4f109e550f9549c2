package gamewarden

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/gamewarden/gamewarden/internal/config"
	"github.com/gamewarden/gamewarden/internal/journal"
	"github.com/gamewarden/gamewarden/internal/journal/factory"
	"github.com/gamewarden/gamewarden/internal/logbuf"
	"github.com/gamewarden/gamewarden/internal/metrics"
	"github.com/gamewarden/gamewarden/internal/mods"
	"github.com/gamewarden/gamewarden/internal/publisher"
	"github.com/gamewarden/gamewarden/internal/server"
	"github.com/gamewarden/gamewarden/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = supervisor.Spec

type Snapshot = supervisor.Snapshot

type State = supervisor.State

type Config = config.Config

// LoadConfig reads and validates a TOML config file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// Warden bundles the supervisor with its journal, mod scanner and
// status publisher, all built from one Config.
type Warden struct {
	cfg     *Config
	sup     *supervisor.Supervisor
	scanner *mods.Scanner
	sink    journal.Sink
	pub     *publisher.Publisher
	log     *slog.Logger
}

// New constructs the full daemon wiring from cfg. The child process is
// not started; call Start (or the HTTP API) for that.
func New(cfg *Config, log *slog.Logger) (*Warden, error) {
	sink, err := factory.New(cfg.Journal.DSN)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	spec, err := cfg.SupervisorSpec()
	if err != nil {
		if sink != nil {
			_ = sink.Close()
		}
		return nil, err
	}
	w := &Warden{
		cfg:     cfg,
		sup:     supervisor.New(spec, log, sink),
		scanner: mods.NewScanner(cfg.Mods.Dir, cfg.Mods.CacheTTL),
		sink:    sink,
		log:     log,
	}
	var pubSink publisher.Sink
	if cfg.Publisher.WebhookURL != "" {
		pubSink = publisher.NewWebhookSink(cfg.Publisher.WebhookURL)
	}
	w.pub = publisher.New(w.sup.Status, pubSink, cfg.Publisher.Interval, log)
	return w, nil
}

func (w *Warden) Start() error                      { return w.sup.Start() }
func (w *Warden) Stop() error                       { return w.sup.Stop() }
func (w *Warden) Kill() error                       { return w.sup.Kill() }
func (w *Warden) Status() Snapshot                  { return w.sup.Status() }
func (w *Warden) Tail(n int) []logbuf.Line          { return w.sup.Tail(n) }
func (w *Warden) Restart(ctx context.Context) error { return w.sup.Restart(ctx) }

// Mods scans the configured mods directory.
func (w *Warden) Mods(forceRefresh bool) ([]mods.Info, error) {
	return w.scanner.Scan(forceRefresh)
}

// RunPublisher blocks publishing status summaries until ctx is cancelled.
func (w *Warden) RunPublisher(ctx context.Context) { w.pub.Run(ctx) }

// NewHTTPServer starts the control API on the configured listen address.
func (w *Warden) NewHTTPServer() *http.Server {
	return server.NewServer(w.cfg.HTTP.Listen, w.cfg.HTTP.BasePath, w.sup, w.scanner)
}

// ScheduleRestart installs a cron-driven graceful restart. The returned
// stop function cancels the schedule.
func (w *Warden) ScheduleRestart(schedule string) (func(), error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*w.sup.StopTimeout())
		defer cancel()
		w.log.Info("scheduled restart triggered", "schedule", schedule)
		if err := w.sup.Restart(ctx); err != nil {
			w.log.Error("scheduled restart failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid restart schedule %q: %w", schedule, err)
	}
	c.Start()
	return func() { c.Stop() }, nil
}

// Shutdown tears down the supervisor and closes the journal.
func (w *Warden) Shutdown(ctx context.Context) error {
	err := w.sup.Shutdown(ctx)
	if w.sink != nil {
		if cerr := w.sink.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
