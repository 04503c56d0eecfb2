package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/graph"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/ports"
	"gopkg.in/yaml.v3"
)

// Extensions tried, in order, for a scenario key.
var scenarioExtensions = []string{".json", ".yaml", ".yml"}

// Loader implements ports.ScenarioLoader over a directory. The scenario key is
// the file name without extension; JSON files use the builder export shape
// and YAML files the same keys.
type Loader struct {
	Dir string

	// Validate rejects scenarios with structural problems on load.
	Validate bool
}

var _ ports.ScenarioLoader = (*Loader)(nil)

// NewLoader creates a loader over dir that validates what it loads.
func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir, Validate: true}
}

// Load reads and decodes the scenario stored under key.
func (l *Loader) Load(ctx context.Context, key string) (*domain.Scenario, error) {
	if key == "" || key != filepath.Base(key) {
		return nil, fmt.Errorf("%w: %q", domain.ErrScenarioNotFound, key)
	}

	for _, ext := range scenarioExtensions {
		path := filepath.Join(l.Dir, key+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read scenario %s: %w", key, err)
		}

		sc, err := Decode(key, ext, data)
		if err != nil {
			return nil, err
		}
		if l.Validate {
			if err := graph.Validate(sc); err != nil {
				return nil, err
			}
		}
		return sc, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrScenarioNotFound, key)
}

// List returns the scenario keys found in the directory.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}

	seen := make(map[string]bool)
	keys := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if !isScenarioExt(ext) {
			continue
		}
		key := strings.TrimSuffix(entry.Name(), ext)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func isScenarioExt(ext string) bool {
	for _, e := range scenarioExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Decode parses a scenario document. ext selects JSON or YAML.
func Decode(key, ext string, data []byte) (*domain.Scenario, error) {
	if ext == ".json" {
		var sc domain.Scenario
		if err := json.Unmarshal(data, &sc); err != nil {
			return nil, fmt.Errorf("failed to decode scenario %s: %w", key, err)
		}
		sc.Key = key
		return &sc, nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode scenario %s: %w", key, err)
	}
	sc, err := domain.DecodeScenario(key, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode scenario %s: %w", key, err)
	}
	return sc, nil
}
