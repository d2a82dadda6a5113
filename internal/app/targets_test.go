package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scoutline-hq/prospect-discovery/internal/domain"
)

func TestLoadTargets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.yaml")
	raw := `
targets:
  - platform: LinkedIn
    target: " janedoe "
    target_type: profile
    priority: critical
    timeout_seconds: 30
  - platform: twitter
    target: someone
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write targets file: %v", err)
	}

	targets, err := LoadTargets(path)
	if err != nil {
		t.Fatalf("LoadTargets returned error: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}

	first := targets[0]
	if first.Platform != "linkedin" {
		t.Fatalf("expected lowercase platform, got %q", first.Platform)
	}
	if first.Target != "janedoe" {
		t.Fatalf("expected trimmed target, got %q", first.Target)
	}
	if first.Priority != domain.PriorityCritical {
		t.Fatalf("expected critical priority, got %v", first.Priority)
	}
	if first.Timeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %v", first.Timeout)
	}

	second := targets[1]
	if second.Priority != domain.PriorityMedium {
		t.Fatalf("expected medium default priority, got %v", second.Priority)
	}
	if second.TargetType != domain.TaskTypeProfile {
		t.Fatalf("expected profile default type, got %v", second.TargetType)
	}
}

func TestLoadTargetsRejectsMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.yaml")
	raw := `
targets:
  - platform: linkedin
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write targets file: %v", err)
	}

	if _, err := LoadTargets(path); err == nil {
		t.Fatalf("expected error for target without a name")
	}
}
