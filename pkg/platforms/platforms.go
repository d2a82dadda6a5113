package platforms

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/scoutline-hq/prospect-discovery/internal/ratelimit"
	"gopkg.in/yaml.v3"
)

// Package platforms contains pluggable platform configs (YAML/JSON) helpers
// and the scrape adapters that execute against them.

type Platform struct {
	ID             string           `json:"id" yaml:"id"`
	Name           string           `json:"name" yaml:"name"`
	Type           string           `json:"type" yaml:"type"`
	SourceURL      string           `json:"source_url" yaml:"source_url"`
	ResponseFormat string           `json:"response_format" yaml:"response_format"`
	RateLimits     ratelimit.Limits `json:"rate_limits" yaml:"rate_limits"`
	PeakHours      []int            `json:"peak_hours" yaml:"peak_hours"`
	OffHours       []int            `json:"off_hours" yaml:"off_hours"`
	BusyDays       []int            `json:"busy_days" yaml:"busy_days"`
	Config         map[string]any   `json:"config" yaml:"config"`
}

type registry struct {
	Platforms []Platform `json:"platforms" yaml:"platforms"`
}

var (
	regMu        sync.RWMutex
	currentReg   registry
	platformsIdx map[string]Platform
)

// Platforms returns a copy of the currently loaded platform registry.
func Platforms() []Platform {
	regMu.RLock()
	defer regMu.RUnlock()

	if len(currentReg.Platforms) == 0 {
		return nil
	}

	out := make([]Platform, len(currentReg.Platforms))
	copy(out, currentReg.Platforms)
	return out
}

// PlatformByID returns the platform entry for the given id, if loaded.
func PlatformByID(id string) (Platform, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return Platform{}, false
	}

	regMu.RLock()
	defer regMu.RUnlock()

	if platformsIdx == nil {
		return Platform{}, false
	}

	p, ok := platformsIdx[id]
	return p, ok
}

// LoadPlatforms loads the platform registry from file.
func LoadPlatforms(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("platforms file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open platforms file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read platforms file: %w", err)
	}

	reg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return err
	}

	if len(reg.Platforms) == 0 {
		return errors.New("platforms file contains no platform entries")
	}

	idx := make(map[string]Platform, len(reg.Platforms))
	for i := range reg.Platforms {
		p := sanitizePlatform(reg.Platforms[i])
		if err := validatePlatform(p); err != nil {
			return fmt.Errorf("platform[%d]: %w", i, err)
		}
		if _, exists := idx[p.ID]; exists {
			return fmt.Errorf("duplicate platform id %q", p.ID)
		}
		reg.Platforms[i] = p
		idx[p.ID] = p
	}

	regMu.Lock()
	currentReg = reg
	platformsIdx = idx
	regMu.Unlock()

	return nil
}

func parseRegistry(data []byte, ext string) (registry, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return registry{}, errors.New("platforms file format not recognized (expected YAML or JSON)")
}

type unmarshalFn func([]byte, any) error

func unmarshalRegistry(name string, data []byte, fn unmarshalFn) (registry, error) {
	var reg registry
	if err := fn(data, &reg); err != nil {
		return registry{}, fmt.Errorf("decode %s platforms: %w", name, err)
	}
	return reg, nil
}

func sanitizePlatform(p Platform) Platform {
	p.ID = strings.ToLower(strings.TrimSpace(p.ID))
	p.Name = strings.TrimSpace(p.Name)
	p.Type = strings.ToLower(strings.TrimSpace(p.Type))
	p.SourceURL = strings.TrimSpace(p.SourceURL)
	p.ResponseFormat = strings.ToLower(strings.TrimSpace(p.ResponseFormat))

	if p.Config == nil {
		p.Config = map[string]any{}
	}
	return p
}

func validatePlatform(p Platform) error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required for platform %q", p.ID)
	}
	if p.Type == "" {
		return fmt.Errorf("type is required for platform %q", p.ID)
	}
	if p.SourceURL == "" {
		return fmt.Errorf("source_url is required for platform %q", p.ID)
	}
	switch p.ResponseFormat {
	case "html", "json":
	case "":
		return fmt.Errorf("response_format is required for platform %q", p.ID)
	default:
		return fmt.Errorf("unsupported response_format %q for platform %q", p.ResponseFormat, p.ID)
	}
	return nil
}
