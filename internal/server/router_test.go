package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/gamewarden/gamewarden/internal/logbuf"
	"github.com/gamewarden/gamewarden/internal/mods"
	"github.com/gamewarden/gamewarden/internal/supervisor"
)

type fakeController struct {
	mu       sync.Mutex
	startErr error
	stopErr  error
	killErr  error
	started  int
	stopped  int
	killed   int
	snap     supervisor.Snapshot
	buf      *logbuf.Buffer
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newFakeController() *fakeController {
	return &fakeController{buf: logbuf.New(30)}
}

func (f *fakeController) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	return f.startErr
}

func (f *fakeController) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return f.stopErr
}

func (f *fakeController) Kill() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed++
	return f.killErr
}

func (f *fakeController) Status() supervisor.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeController) Tail(n int) []logbuf.Line        { return f.buf.Tail(n) }
func (f *fakeController) Subscribe() chan logbuf.Line     { return f.buf.Subscribe() }
func (f *fakeController) Unsubscribe(ch chan logbuf.Line) { f.buf.Unsubscribe(ch) }

type fakeLister struct {
	list []mods.Info
	err  error
}

func (f *fakeLister) Scan(bool) ([]mods.Info, error) { return f.list, f.err }

func newTestServer(t *testing.T, ctl Controller, lister ModLister) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(ctl, lister, "/api").Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func TestStartStopKillEndpoints(t *testing.T) {
	ctl := newFakeController()
	srv := newTestServer(t, ctl, nil)

	for _, ep := range []string{"start", "stop", "kill"} {
		resp, body := postJSON(t, srv.URL+"/api/"+ep)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", ep, resp.StatusCode)
		}
		if body["ok"] != true {
			t.Fatalf("%s body = %v", ep, body)
		}
	}
	if ctl.started != 1 || ctl.stopped != 1 || ctl.killed != 1 {
		t.Fatalf("calls = %d/%d/%d", ctl.started, ctl.stopped, ctl.killed)
	}
}

func TestLifecycleConflictsMapTo409(t *testing.T) {
	ctl := newFakeController()
	ctl.startErr = supervisor.ErrAlreadyRunning
	ctl.stopErr = supervisor.ErrNotRunning
	srv := newTestServer(t, ctl, nil)

	resp, body := postJSON(t, srv.URL+"/api/start")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	if !strings.Contains(body["error"].(string), "already running") {
		t.Fatalf("start error = %v", body)
	}

	resp, _ = postJSON(t, srv.URL+"/api/stop")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("stop status = %d", resp.StatusCode)
	}
}

func TestShuttingDownMapsTo503(t *testing.T) {
	ctl := newFakeController()
	ctl.startErr = supervisor.ErrShuttingDown
	srv := newTestServer(t, ctl, nil)

	resp, _ := postJSON(t, srv.URL+"/api/start")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSpawnFailureMapsTo500(t *testing.T) {
	ctl := newFakeController()
	ctl.startErr = &supervisor.SpawnError{Err: errors.New("no such file")}
	srv := newTestServer(t, ctl, nil)

	resp, _ := postJSON(t, srv.URL+"/api/start")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	ctl := newFakeController()
	ctl.snap = supervisor.Snapshot{
		State:  supervisor.StateRunning,
		PID:    1234,
		Uptime: time.Minute,
	}
	srv := newTestServer(t, ctl, nil)

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var snap supervisor.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.State != supervisor.StateRunning || snap.PID != 1234 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestLogsEndpoint(t *testing.T) {
	ctl := newFakeController()
	for i := 0; i < 5; i++ {
		ctl.buf.Append(logbuf.Line{Time: time.Now(), Text: "line"})
	}
	srv := newTestServer(t, ctl, nil)

	resp, err := http.Get(srv.URL + "/api/logs?n=3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var lines []logbuf.Line
	if err := json.NewDecoder(resp.Body).Decode(&lines); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}

	resp2, err := http.Get(srv.URL + "/api/logs?n=bogus")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad n status = %d", resp2.StatusCode)
	}
}

func TestModsEndpoint(t *testing.T) {
	ctl := newFakeController()
	lister := &fakeLister{list: []mods.Info{{Name: "Sodium", Version: "0.5.8", ModID: "sodium"}}}
	srv := newTestServer(t, ctl, lister)

	resp, err := http.Get(srv.URL + "/api/mods")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var list []mods.Info
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].ModID != "sodium" {
		t.Fatalf("mods = %+v", list)
	}
}

func TestModsEndpointWithoutScanner(t *testing.T) {
	srv := newTestServer(t, newFakeController(), nil)
	resp, err := http.Get(srv.URL + "/api/mods")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestConsoleStreamsLines(t *testing.T) {
	ctl := newFakeController()
	srv := newTestServer(t, ctl, nil)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/console"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	// The handler subscribes asynchronously after the handshake, so keep
	// appending until a line comes back.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		t := time.NewTicker(50 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				ctl.buf.Append(logbuf.Line{Time: time.Now(), Text: "joined the game"})
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg consoleLine
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Text != "joined the game" {
		t.Fatalf("line = %+v", msg)
	}
}

func TestConsoleReplaysTail(t *testing.T) {
	ctl := newFakeController()
	ctl.buf.Append(logbuf.Line{Time: time.Now(), Text: "earlier line"})
	srv := newTestServer(t, ctl, nil)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/console"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg consoleLine
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Text != "earlier line" {
		t.Fatalf("line = %+v", msg)
	}
}

func TestMetricsExposedOutsideBasePath(t *testing.T) {
	srv := newTestServer(t, newFakeController(), nil)
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
}
