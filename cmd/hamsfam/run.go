package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Young-Hyun-Ham/hamsfam-sub000"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/cli"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/logging"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/presentation/tui"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/observability"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <scenario>",
	Short: "Run a scenario interactively in the terminal",
	Long: `Starts a run of the scenario and drives it from standard input.
Press enter to continue, pick replies by number or text, and answer form
fields one per line. Type :help for session commands.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		opts := cli.RunOptions{ScenarioKey: args[0]}
		opts.RunID, _ = flags.GetString("run-id")
		opts.Fresh, _ = flags.GetBool("fresh")
		opts.Watch, _ = flags.GetBool("watch")
		opts.JSON, _ = flags.GetBool("json")

		if raw, _ := flags.GetString("slots"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &opts.Slots); err != nil {
				return fmt.Errorf("error parsing --slots JSON: %w", err)
			}
		}
		if opts.Watch && opts.JSON {
			return fmt.Errorf("--watch and --json cannot be used together")
		}

		// The terminal belongs to the conversation unless debugging.
		runLogger := logging.NewNop()
		var hooksOpt []hamsfam.Option
		if strings.EqualFold(cfg.Log.Level, "debug") {
			runLogger = logger
			hooksOpt = append(hooksOpt, hamsfam.WithLifecycleHooks(observability.LogHooks(logger)))
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		eng, res, err := cli.NewEngine(ctx, cfg, runLogger, hooksOpt...)
		if err != nil {
			return err
		}
		defer res.Close()
		defer eng.Shutdown()

		out := cmd.OutOrStdout()
		var printer *tui.Printer
		if !opts.JSON && term.IsTerminal(int(os.Stdout.Fd())) {
			tui.PrintBanner(out, strings.TrimSpace(hamsfam.Version))
			printer = tui.NewPrinter(out, tui.NewRenderer())
		} else {
			printer = tui.NewPrinter(out, tui.PlainRenderer)
		}

		return cli.Execute(ctx, eng, opts, cmd.InOrStdin(), out, printer, runLogger)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("run-id", "", "Run id; a stored run with this id is resumed")
	runCmd.Flags().String("slots", "", "Initial slot values as a JSON object")
	runCmd.Flags().Bool("fresh", false, "Discard the stored run before starting")
	runCmd.Flags().BoolP("watch", "w", false, "Reload the scenario when its document changes (loam source)")
	runCmd.Flags().Bool("json", false, "Read actions and write states as JSON lines")
}
