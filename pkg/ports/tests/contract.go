package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/ports"
)

// ScenarioLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.ScenarioLoader.
// want maps every scenario key the loader holds to the number of nodes it must decode to.
func ScenarioLoaderContractTest(t *testing.T, loader ports.ScenarioLoader, want map[string]int) {
	t.Helper()
	ctx := context.Background()

	t.Run("Load_Success", func(t *testing.T) {
		for key, nodes := range want {
			sc, err := loader.Load(ctx, key)
			if err != nil {
				t.Fatalf("unexpected error loading scenario %s: %v", key, err)
			}
			if sc.Key != key {
				t.Errorf("key mismatch: got %q, want %q", sc.Key, key)
			}
			if len(sc.Nodes) != nodes {
				t.Errorf("scenario %s: got %d nodes, want %d", key, len(sc.Nodes), nodes)
			}
			for _, n := range sc.Nodes {
				if n.Data == nil || n.Data.Kind() != n.Type {
					t.Errorf("scenario %s: node %s has data %T for type %s", key, n.ID, n.Data, n.Type)
				}
			}
		}
	})

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := loader.Load(ctx, "non-existent-scenario")
		if !errors.Is(err, domain.ErrScenarioNotFound) {
			t.Errorf("expected ErrScenarioNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		keys, err := loader.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing scenarios: %v", err)
		}

		if len(keys) != len(want) {
			t.Errorf("expected %d scenarios, got %d", len(want), len(keys))
		}

		lookup := make(map[string]bool)
		for _, k := range keys {
			lookup[k] = true
		}
		for k := range want {
			if !lookup[k] {
				t.Errorf("scenario %s missing from list", k)
			}
		}
	})
}
