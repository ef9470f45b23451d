package main

import (
	"strings"
	"testing"

	"sift/internal/api"
	"sift/internal/config"
)

func TestRootCommandWiresSubcommands(t *testing.T) {
	root := newRootCommand()
	want := []string{"start", "submit", "status", "pause", "resume", "cancel", "queue", "config"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRenderJobTable(t *testing.T) {
	out := renderJobTable([]api.Job{
		{ID: 1, Title: "Warehouse", Status: "pending", Progress: api.JobProgress{Percent: 0}},
		{ID: 2, SourcePath: "/videos/line.mp4", Status: "failed", ErrorMessage: "probe failed"},
		{ID: 3, Title: "Depot", Status: "frames_filtered", Paused: true},
	})
	for _, want := range []string{"Warehouse", "/videos/line.mp4", "probe failed", "paused"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestMaskSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Annotation.APIKey = "sk-verysecret"
	cfg.Paths.APIToken = "token"

	masked := maskSecrets(cfg)
	if masked.Annotation.APIKey != "***" || masked.Paths.APIToken != "***" {
		t.Fatalf("secrets not masked: %+v", masked.Paths)
	}
	// Empty secrets stay empty rather than being replaced with a marker.
	clean := maskSecrets(config.Default())
	if clean.Annotation.APIKey != "" || clean.Paths.APIToken != "" {
		t.Fatal("empty secrets must stay empty")
	}
}
