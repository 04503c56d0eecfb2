package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/graph"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/ports"
)

// ErrInvalidScenarios is returned by Validate when any scenario has problems.
var ErrInvalidScenarios = errors.New("invalid scenarios")

// Validate loads every scenario of loader, or only keys when given, and
// checks its structure. Each scenario gets one line on out.
func Validate(ctx context.Context, loader ports.ScenarioLoader, out io.Writer, keys ...string) error {
	if len(keys) == 0 {
		all, err := loader.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list scenarios: %w", err)
		}
		keys = all
	}

	failed := 0
	for _, key := range keys {
		sc, err := loader.Load(ctx, key)
		if err == nil {
			err = graph.Validate(sc)
		}
		if err != nil {
			failed++
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				fmt.Fprintf(out, "✗ %s\n", key)
				for _, p := range verr.Problems {
					fmt.Fprintf(out, "    - %s\n", p)
				}
				continue
			}
			fmt.Fprintf(out, "✗ %s: %v\n", key, err)
			continue
		}
		fmt.Fprintf(out, "✓ %s (%d nodes, %d edges)\n", key, len(sc.Nodes), len(sc.Edges))
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrInvalidScenarios, failed, len(keys))
	}
	return nil
}
