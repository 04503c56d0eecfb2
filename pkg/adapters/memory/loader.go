package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
)

// Loader implements ports.ScenarioLoader using an in-memory map.
// Safe for concurrent use.
type Loader struct {
	mu        sync.RWMutex
	scenarios map[string]*domain.Scenario
}

// NewLoader creates a loader holding the given scenarios, keyed by their Key.
func NewLoader(scenarios ...*domain.Scenario) *Loader {
	l := &Loader{scenarios: make(map[string]*domain.Scenario)}
	for _, sc := range scenarios {
		l.Add(sc)
	}
	return l
}

// NewFromJSON creates a loader from builder JSON documents ({nodes, edges})
// keyed by scenario key.
func NewFromJSON(docs map[string]string) (*Loader, error) {
	l := NewLoader()
	for key, doc := range docs {
		var sc domain.Scenario
		if err := json.Unmarshal([]byte(doc), &sc); err != nil {
			return nil, fmt.Errorf("failed to decode scenario %s: %w", key, err)
		}
		sc.Key = key
		l.Add(&sc)
	}
	return l, nil
}

// Add registers or replaces a scenario.
func (l *Loader) Add(sc *domain.Scenario) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scenarios[sc.Key] = sc
}

// Load returns the scenario stored under key.
func (l *Loader) Load(ctx context.Context, key string) (*domain.Scenario, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sc, ok := l.scenarios[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrScenarioNotFound, key)
	}
	return sc, nil
}

// List returns all scenario keys.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]string, 0, len(l.scenarios))
	for k := range l.scenarios {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
