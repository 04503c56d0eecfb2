package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/config"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hamsfam",
	Short: "hamsfam runs chatbot scenarios built as node graphs",
	Long: `hamsfam executes scenario graphs exported by the chatbot builder:
messages, branches, forms, slot filling, API calls and LLM generations.
Runs can be driven from the terminal, over HTTP or through MCP.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default ./"+config.DefaultFile+" when present)")
	flags.String("dir", ".", "Directory containing the scenario documents")
	flags.String("source", config.SourceFile, "Scenario source: file or loam")
	flags.String("store", config.StoreMemory, "Run store: memory, file or redis")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.Bool("debug", false, "Shorthand for --log-level debug")
}

// loadConfig reads the config file and environment, then applies the flags
// the user set explicitly.
func loadConfig(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	required := path != ""
	if path == "" {
		path = config.DefaultFile
	}

	var err error
	cfg, err = config.Load(path, required)
	if err != nil {
		return err
	}

	if flags.Changed("dir") {
		cfg.Dir, _ = flags.GetString("dir")
	}
	if flags.Changed("source") {
		cfg.Source, _ = flags.GetString("source")
	}
	if flags.Changed("store") {
		cfg.Store.Backend, _ = flags.GetString("store")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if debug, _ := flags.GetBool("debug"); debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger = logging.NewWriter(os.Stderr, level, cfg.Log.Format)
	return nil
}
