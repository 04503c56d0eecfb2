package main

import (
	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [scenario...]",
	Short: "Check scenario documents for structural problems",
	Long:  `Loads every scenario (or the given ones) and reports duplicate ids, dangling edges, unknown node types and missing entry nodes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := cli.OpenLoader(cfg)
		if err != nil {
			return err
		}
		return cli.Validate(cmd.Context(), loader, cmd.OutOrStdout(), args...)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
