package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamewarden/gamewarden/internal/supervisor"
)

// Summary is the presentation-ready status pushed to a Sink.
type Summary struct {
	State         string `json:"state"`
	Presence      string `json:"presence"`
	PID           int    `json:"pid,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
	LastExitCode  *int   `json:"last_exit_code,omitempty"`
	Forced        bool   `json:"forced,omitempty"`
}

// Presence maps a supervisor state to the short human text shown to players.
func Presence(st supervisor.State) string {
	switch st {
	case supervisor.StateRunning:
		return "server online"
	case supervisor.StateStarting:
		return "starting..."
	case supervisor.StateStopping, supervisor.StateKilling:
		return "stopping..."
	case supervisor.StateCrashed:
		return "server error"
	default:
		return "offline"
	}
}

// Render builds a Summary from a status snapshot.
func Render(snap supervisor.Snapshot) Summary {
	sum := Summary{
		State:         snap.State.String(),
		Presence:      Presence(snap.State),
		PID:           snap.PID,
		UptimeSeconds: int64(snap.Uptime / time.Second),
	}
	if snap.LastExit != nil {
		code := snap.LastExit.Code
		sum.LastExitCode = &code
		sum.Forced = snap.LastExit.Forced
	}
	return sum
}

// Sink receives rendered summaries. Implementations must be safe for reuse
// across ticks but are only called from the publisher goroutine.
type Sink interface {
	Publish(ctx context.Context, sum Summary) error
}

// Publisher samples the supervisor on a fixed interval and pushes the
// summary to its sink. Unchanged summaries are skipped. A failed publish
// is logged and retried on the next tick.
type Publisher struct {
	status   func() supervisor.Snapshot
	sink     Sink
	interval time.Duration
	log      *slog.Logger

	last string
}

func New(status func() supervisor.Snapshot, sink Sink, interval time.Duration, log *slog.Logger) *Publisher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Publisher{status: status, sink: sink, interval: interval, log: log}
}

// Run blocks until ctx is cancelled. The first sample happens immediately.
func (p *Publisher) Run(ctx context.Context) {
	p.tick(ctx)
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.tick(ctx)
		}
	}
}

func (p *Publisher) tick(ctx context.Context) {
	if p.sink == nil {
		return
	}
	sum := Render(p.status())
	key := p.key(sum)
	if key == p.last {
		return
	}
	if err := p.sink.Publish(ctx, sum); err != nil {
		p.log.Warn("status publish failed", "presence", sum.Presence, "error", err)
		return
	}
	p.last = key
}

// key identifies a summary for skip-if-unchanged purposes. Uptime is
// excluded so a quietly running server does not republish every tick.
func (p *Publisher) key(sum Summary) string {
	code := 0
	if sum.LastExitCode != nil {
		code = *sum.LastExitCode
	}
	return fmt.Sprintf("%s|%d|%d|%t", sum.State, sum.PID, code, sum.Forced)
}
