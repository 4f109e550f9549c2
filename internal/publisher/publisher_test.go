package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gamewarden/gamewarden/internal/supervisor"
)

type recordingSink struct {
	published []Summary
	fail      int
}

func (r *recordingSink) Publish(_ context.Context, sum Summary) error {
	if r.fail > 0 {
		r.fail--
		return errors.New("sink unavailable")
	}
	r.published = append(r.published, sum)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPresenceMapping(t *testing.T) {
	cases := map[supervisor.State]string{
		supervisor.StateRunning:  "server online",
		supervisor.StateStarting: "starting...",
		supervisor.StateStopping: "stopping...",
		supervisor.StateKilling:  "stopping...",
		supervisor.StateCrashed:  "server error",
		supervisor.StateStopped:  "offline",
	}
	for st, want := range cases {
		if got := Presence(st); got != want {
			t.Errorf("Presence(%s) = %q, want %q", st, got, want)
		}
	}
}

func TestUnchangedSummaryNotRepublished(t *testing.T) {
	snap := supervisor.Snapshot{State: supervisor.StateRunning, PID: 42, Uptime: time.Minute}
	sink := &recordingSink{}
	p := New(func() supervisor.Snapshot { return snap }, sink, time.Second, discardLogger())

	ctx := context.Background()
	p.tick(ctx)
	snap.Uptime = 2 * time.Minute
	p.tick(ctx)
	p.tick(ctx)
	if len(sink.published) != 1 {
		t.Fatalf("published %d times, want 1", len(sink.published))
	}
	if sink.published[0].Presence != "server online" || sink.published[0].PID != 42 {
		t.Fatalf("summary = %+v", sink.published[0])
	}
}

func TestStateChangeRepublishes(t *testing.T) {
	snap := supervisor.Snapshot{State: supervisor.StateRunning, PID: 42}
	sink := &recordingSink{}
	p := New(func() supervisor.Snapshot { return snap }, sink, time.Second, discardLogger())

	ctx := context.Background()
	p.tick(ctx)
	snap = supervisor.Snapshot{
		State:    supervisor.StateStopped,
		LastExit: &supervisor.ExitStatus{Code: 0, At: time.Now()},
	}
	p.tick(ctx)
	if len(sink.published) != 2 {
		t.Fatalf("published %d times, want 2", len(sink.published))
	}
	if sink.published[1].Presence != "offline" {
		t.Fatalf("second summary = %+v", sink.published[1])
	}
}

func TestFailedPublishRetriedNextTick(t *testing.T) {
	snap := supervisor.Snapshot{State: supervisor.StateRunning, PID: 7}
	sink := &recordingSink{fail: 1}
	p := New(func() supervisor.Snapshot { return snap }, sink, time.Second, discardLogger())

	ctx := context.Background()
	p.tick(ctx)
	if len(sink.published) != 0 {
		t.Fatalf("publish should have failed, got %d", len(sink.published))
	}
	p.tick(ctx)
	if len(sink.published) != 1 {
		t.Fatalf("failed publish not retried: %d", len(sink.published))
	}
}

func TestWebhookSinkPostsJSON(t *testing.T) {
	var got Summary
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	sum := Render(supervisor.Snapshot{State: supervisor.StateRunning, PID: 99, Uptime: 90 * time.Second})
	if err := sink.Publish(context.Background(), sum); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got.Presence != "server online" || got.PID != 99 || got.UptimeSeconds != 90 {
		t.Fatalf("webhook payload = %+v", got)
	}
}

func TestWebhookSinkErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	if err := sink.Publish(context.Background(), Summary{}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
