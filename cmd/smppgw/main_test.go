package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/relaysms/smppgw/internal/gwconfig"
	"github.com/relaysms/smppgw/internal/gwlog"
	"github.com/relaysms/smppgw/internal/route"
)

func TestLoadTopologyEmptyPath(t *testing.T) {
	tc, err := loadTopology("")
	if err != nil {
		t.Fatalf("loadTopology(\"\") = %v", err)
	}
	if len(tc.Connectors) != 0 || len(tc.Routes) != 0 {
		t.Fatalf("expected empty topology, got %+v", tc)
	}
}

func TestLoadTopologyFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "topology.json")
	body, err := json.Marshal(topologyConfig{
		Connectors: []gwconfig.ConnectorConfig{{Name: "conn1"}},
		Routes:     []gwconfig.RouteConfig{{Priority: 1, Type: "default", Targets: []string{"conn1"}}},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	tc, err := loadTopology(path)
	if err != nil {
		t.Fatalf("loadTopology: %v", err)
	}
	if len(tc.Connectors) != 1 || tc.Connectors[0].Name != "conn1" {
		t.Fatalf("unexpected connectors: %+v", tc.Connectors)
	}
	if len(tc.Routes) != 1 || tc.Routes[0].Type != "default" {
		t.Fatalf("unexpected routes: %+v", tc.Routes)
	}
}

func TestLoadTopologyMissingFile(t *testing.T) {
	if _, err := loadTopology("/nonexistent/path.json"); err == nil {
		t.Fatal("expected error for missing topology file")
	}
}

func TestLogLevelFromString(t *testing.T) {
	cases := map[string]gwlog.Level{
		"debug": gwlog.LevelDebug,
		"error": gwlog.LevelError,
		"info":  gwlog.LevelInfo,
		"":      gwlog.LevelInfo,
	}
	for in, want := range cases {
		if got := logLevelFromString(in); got != want {
			t.Errorf("logLevelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestBuildFilterKinds(t *testing.T) {
	if _, ok := buildFilter(gwconfig.FilterConfig{Kind: "connector", Value: "conn1"}).(route.ConnectorFilter); !ok {
		t.Error("expected ConnectorFilter")
	}
	if _, ok := buildFilter(gwconfig.FilterConfig{Kind: "tag", Value: "7"}).(route.TagFilter); !ok {
		t.Error("expected TagFilter")
	}
	if _, ok := buildFilter(gwconfig.FilterConfig{Kind: "source_addr", Pattern: "^1"}).(route.RegexFilter); !ok {
		t.Error("expected RegexFilter for source_addr")
	}
	if _, ok := buildFilter(gwconfig.FilterConfig{Kind: "unknown"}).(route.TransparentFilter); !ok {
		t.Error("expected TransparentFilter fallback")
	}
}

func TestBuildRoute(t *testing.T) {
	r := buildRoute(gwconfig.RouteConfig{
		Priority: 5,
		Type:     "smartrr",
		Targets:  []string{"a", "b"},
		Filters:  []gwconfig.FilterConfig{{Kind: "connector", Value: "a"}},
	})
	if r.Priority != 5 || r.Type != route.TypeSmartRR || len(r.Targets) != 2 || len(r.Filters) != 1 {
		t.Fatalf("unexpected route: %+v", r)
	}
}
