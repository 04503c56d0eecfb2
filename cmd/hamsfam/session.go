package main

import (
	"errors"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/cli"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"runs"},
	Short:   "Manage stored runs",
	Long:    `List, inspect, and remove run snapshots kept by the configured store (file or redis).`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := cli.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer res.Close()
		return cli.ListRuns(cmd.Context(), res.Store, cmd.OutOrStdout())
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <run-id>",
	Short: "Print the snapshot of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := cli.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer res.Close()
		return cli.InspectRun(cmd.Context(), res.Store, args[0], cmd.OutOrStdout())
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <run-id>...",
	Short: "Remove one or more runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) == 0 {
			return errors.New("give at least one run id, or --all")
		}
		res, err := cli.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer res.Close()
		return cli.RemoveRuns(cmd.Context(), res.Store, cmd.OutOrStdout(), all, args...)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
	sessionRmCmd.Flags().Bool("all", false, "Remove every stored run")
}
