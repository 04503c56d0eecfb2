package main

import (
	"fmt"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/cli"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <scenario>",
	Short: "Export the scenario graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the scenario. With --run, the
nodes visited by that stored run and its current node are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		res, err := cli.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer res.Close()

		sc, err := res.Loader.Load(ctx, args[0])
		if err != nil {
			return err
		}

		var overlay *graph.GraphOverlay
		if runID, _ := cmd.Flags().GetString("run"); runID != "" {
			st, err := res.Store.Load(ctx, runID)
			if err != nil {
				return fmt.Errorf("error loading run '%s': %w", runID, err)
			}
			overlay = graph.OverlayFromState(st)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(sc, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("run", "", "Highlight the path of a stored run")
}
