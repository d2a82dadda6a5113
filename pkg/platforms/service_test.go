package platforms

import (
	"context"
	"testing"

	"github.com/scoutline-hq/prospect-discovery/internal/domain"
)

func TestServiceRunResolvesPlatformAndAdapter(t *testing.T) {
	file := writeRegistry(t, "platforms.yaml", `
platforms:
  - id: youtube
    name: YouTube
    type: generic
    source_url: https://yt.example/{target}
    response_format: html
`)
	if err := LoadPlatforms(file); err != nil {
		t.Fatalf("LoadPlatforms returned error: %v", err)
	}

	stub := &stubAdapter{id: "generic"}
	svc := NewService(NewTypeAdapterRegistry(map[string]Adapter{"generic": stub}), nil, nil)

	rec, err := svc.Run(context.Background(), domain.ScrapeTask{ID: "task-1", Platform: "YouTube", Target: "creator"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if rec.Source != "youtube" {
		t.Fatalf("unexpected record source: %s", rec.Source)
	}

	if _, err := svc.Run(context.Background(), domain.ScrapeTask{ID: "task-2", Platform: "myspace"}); err == nil {
		t.Fatalf("expected error for unconfigured platform")
	}
}
