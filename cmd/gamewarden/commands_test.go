package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRootHasAllSubcommands(t *testing.T) {
	root := buildRoot()
	want := map[string]bool{
		"serve": false, "start": false, "stop": false, "kill": false,
		"status": false, "logs": false, "mods": false,
	}
	for _, c := range root.Commands() {
		name := strings.Fields(c.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("subcommand %q missing", name)
		}
	}
}

func TestClientCommandFailsWithoutDaemon(t *testing.T) {
	root := buildRoot()
	root.SetArgs([]string{"start", "--api-url", "http://127.0.0.1:1/api", "--api-timeout", "200ms"})
	err := root.Execute()
	if err == nil {
		t.Fatal("expected error when daemon is unreachable")
	}
	if !strings.Contains(err.Error(), "daemon not reachable") {
		t.Fatalf("error = %v", err)
	}
}

func TestStartCommandAgainstFakeDaemon(t *testing.T) {
	var startCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/status":
			_, _ = w.Write([]byte(`{"state":"stopped"}`))
		case "/api/start":
			startCalls++
			_, _ = w.Write([]byte(`{"ok":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	root := buildRoot()
	root.SetArgs([]string{"start", "--api-url", srv.URL + "/api"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if startCalls != 1 {
		t.Fatalf("start calls = %d", startCalls)
	}
}

func TestStatusCommandAgainstFakeDaemon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/status" {
			_, _ = w.Write([]byte(`{"state":"running","pid":77}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	root := buildRoot()
	root.SetArgs([]string{"status", "--api-url", srv.URL + "/api"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
}

func TestServeRejectsMissingConfig(t *testing.T) {
	root := buildRoot()
	root.SetArgs([]string{"serve", "/nonexistent/gamewarden.toml"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
