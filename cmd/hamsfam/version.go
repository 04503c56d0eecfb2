package main

import (
	"fmt"
	"strings"

	"github.com/Young-Hyun-Ham/hamsfam-sub000"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of hamsfam",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hamsfam version %s\n", strings.TrimSpace(hamsfam.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
