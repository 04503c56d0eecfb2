package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/ports"
)

// ListRuns prints the stored run ids with their scenario and position.
func ListRuns(ctx context.Context, store ports.RunStore, out io.Writer) error {
	ids, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("error listing runs: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(out, "No stored runs found.")
		return nil
	}

	fmt.Fprintln(out, "Stored Runs:")
	for _, id := range ids {
		st, err := store.Load(ctx, id)
		if err != nil {
			fmt.Fprintf(out, "- %s (unreadable: %v)\n", id, err)
			continue
		}
		status := "active"
		if st.Finished {
			status = "finished"
		}
		fmt.Fprintf(out, "- %s  %s @ %s  [%s, %d steps]\n", id, st.ScenarioKey, st.CurrentNodeID, status, len(st.Steps))
	}
	return nil
}

// InspectRun prints the stored snapshot of runID as indented JSON.
func InspectRun(ctx context.Context, store ports.RunStore, runID string, out io.Writer) error {
	st, err := store.Load(ctx, runID)
	if err != nil {
		return fmt.Errorf("error loading run '%s': %w", runID, err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling state: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

// RemoveRuns deletes the snapshots of runIDs, or of every stored run when
// all is set.
func RemoveRuns(ctx context.Context, store ports.RunStore, out io.Writer, all bool, runIDs ...string) error {
	if all {
		ids, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("error listing runs: %w", err)
		}
		runIDs = ids
	}

	var errs []error
	for _, id := range runIDs {
		if err := store.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("error removing '%s': %w", id, err))
			continue
		}
		fmt.Fprintf(out, "Removed run '%s'\n", id)
	}
	return errors.Join(errs...)
}
