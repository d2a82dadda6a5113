package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/scoutline-hq/prospect-discovery/internal/domain"
	"gopkg.in/yaml.v3"
)

// targetsFile represents the structure of the targets configuration file.
type targetsFile struct {
	Targets []domain.DiscoveryRequest `yaml:"targets"`
}

// LoadTargets reads the discovery target list from a YAML file. Entries are
// normalized (priority name, timeout seconds, default target type) before
// being returned.
func LoadTargets(path string) ([]domain.DiscoveryRequest, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("targets file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open targets file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}

	var tf targetsFile
	if err := yaml.Unmarshal(raw, &tf); err != nil {
		return nil, fmt.Errorf("decode targets file: %w", err)
	}

	out := make([]domain.DiscoveryRequest, 0, len(tf.Targets))
	for i, req := range tf.Targets {
		req.Platform = strings.ToLower(strings.TrimSpace(req.Platform))
		req.Target = strings.TrimSpace(req.Target)
		if req.Platform == "" {
			return nil, fmt.Errorf("targets[%d]: platform is required", i)
		}
		if req.Target == "" {
			return nil, fmt.Errorf("targets[%d]: target is required", i)
		}
		out = append(out, req.Normalize())
	}
	return out, nil
}
