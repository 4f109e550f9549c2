package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIdempotent(t *testing.T) {
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestHelpersAndHandler(t *testing.T) {
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatalf("register: %v", err)
	}
	IncStart()
	IncStop()
	IncKill()
	IncCrash()
	IncEscalation()
	IncOutputLines(3)
	RecordStateTransition("stopped", "starting")
	SetCurrentState("running", true)
	SetCurrentState("stopped", false)

	srv := httptest.NewServer(Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(resp.Body)
	body := string(b)
	for _, want := range []string{
		"gamewarden_server_starts_total",
		"gamewarden_server_stop_escalations_total",
		"gamewarden_server_state_transitions_total",
		"gamewarden_server_current_state",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
