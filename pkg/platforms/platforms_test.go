package platforms

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRegistry(t *testing.T, name, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write platforms file: %v", err)
	}
	return file
}

func TestLoadPlatformsYAML(t *testing.T) {
	file := writeRegistry(t, "platforms.yaml", `
platforms:
  - id: LinkedIn
    name: LinkedIn
    type: generic
    source_url: https://www.linkedin.com/in/{target}
    response_format: html
    rate_limits:
      per_minute: 100
      per_hour: 1000
      per_day: 10000
    peak_hours: [9, 10, 11, 17]
    config:
      user_agent: scoutline/1.0
`)

	if err := LoadPlatforms(file); err != nil {
		t.Fatalf("LoadPlatforms returned error: %v", err)
	}

	all := Platforms()
	if len(all) != 1 {
		t.Fatalf("expected 1 platform, got %d", len(all))
	}

	p, ok := PlatformByID("linkedin")
	if !ok {
		t.Fatalf("expected platform id linkedin to be loaded")
	}
	if p.ID != "linkedin" {
		t.Fatalf("expected sanitized lowercase id, got %q", p.ID)
	}
	if p.SourceURL != "https://www.linkedin.com/in/{target}" {
		t.Fatalf("unexpected source_url: %s", p.SourceURL)
	}
	if p.RateLimits.PerMinute != 100 || p.RateLimits.PerDay != 10000 {
		t.Fatalf("unexpected rate limits: %+v", p.RateLimits)
	}
	if len(p.PeakHours) != 4 {
		t.Fatalf("unexpected peak hours: %v", p.PeakHours)
	}
	if got := ConfigString(p, ConfigUserAgentKey, ""); got != "scoutline/1.0" {
		t.Fatalf("unexpected user agent: %q", got)
	}
}

func TestLoadPlatformsDuplicateID(t *testing.T) {
	file := writeRegistry(t, "platforms.yaml", `
platforms:
  - id: twitter
    name: Twitter
    type: generic
    source_url: https://t1.example/{target}
    response_format: html
  - id: Twitter
    name: Twitter Again
    type: generic
    source_url: https://t2.example/{target}
    response_format: html
`)

	if err := LoadPlatforms(file); err == nil {
		t.Fatalf("expected duplicate platform error, got nil")
	}
}

func TestLoadPlatformsRejectsUnknownResponseFormat(t *testing.T) {
	file := writeRegistry(t, "platforms.yaml", `
platforms:
  - id: reddit
    name: Reddit
    type: generic
    source_url: https://reddit.example/{target}
    response_format: xml
`)

	if err := LoadPlatforms(file); err == nil {
		t.Fatalf("expected response_format error, got nil")
	}
}

func TestLoadPlatformsJSON(t *testing.T) {
	file := writeRegistry(t, "platforms.json", `{
  "platforms": [
    {
      "id": "reddit",
      "name": "Reddit",
      "type": "generic",
      "source_url": "https://www.reddit.com/user/{target}/about.json",
      "response_format": "json"
    }
  ]
}`)

	if err := LoadPlatforms(file); err != nil {
		t.Fatalf("LoadPlatforms returned error: %v", err)
	}
	if _, ok := PlatformByID("reddit"); !ok {
		t.Fatalf("expected platform id reddit to be loaded")
	}
}

func TestAdapterRegistrySelection(t *testing.T) {
	byID := &stubAdapter{id: "linkedin"}
	byType := &stubAdapter{id: "generic"}
	reg := NewTypeAdapterRegistry(map[string]Adapter{"generic": byType}, byID)

	got, err := reg.AdapterFor(Platform{ID: "linkedin", Type: "generic"})
	if err != nil {
		t.Fatalf("AdapterFor returned error: %v", err)
	}
	if got != byID {
		t.Fatalf("expected id-specific adapter to win over type adapter")
	}

	got, err = reg.AdapterFor(Platform{ID: "tiktok", Type: "generic"})
	if err != nil {
		t.Fatalf("AdapterFor returned error: %v", err)
	}
	if got != byType {
		t.Fatalf("expected type adapter fallback")
	}

	if _, err := reg.AdapterFor(Platform{ID: "mystery", Type: "rpc"}); err == nil {
		t.Fatalf("expected error for unregistered platform")
	}
}
