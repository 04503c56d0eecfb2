package ports

import (
	"context"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
)

// ScenarioLoader defines how the engine retrieves scenario graphs.
// This allows the storage layer (Loam, files, memory) to be decoupled.
type ScenarioLoader interface {
	// Load returns the scenario stored under key.
	// Returns domain.ErrScenarioNotFound if the key is unknown.
	Load(ctx context.Context, key string) (*domain.Scenario, error)

	// List returns the keys of all available scenarios.
	// This is used for introspection tools (e.g. 'hamsfam validate').
	List(ctx context.Context) ([]string, error)
}
