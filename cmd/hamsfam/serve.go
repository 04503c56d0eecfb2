package main

import (
	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the engine behind a JSON API over HTTP. Runs stream their
progress as server-sent events and Prometheus metrics are served on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.Addr, _ = cmd.Flags().GetString("addr")
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		extra, srv := cli.ServerOptions(logger)
		eng, res, err := cli.NewEngine(ctx, cfg, logger, extra...)
		if err != nil {
			return err
		}
		defer res.Close()
		defer eng.Shutdown()

		logger.Info("serving scenarios", "dir", cfg.Dir, "source", cfg.Source, "store", cfg.Store.Backend)
		err = cli.ListenAndServe(ctx, cfg.Addr, srv.Mount(eng, logger), logger, nil)
		if sig := ctx.Signal(); sig != nil {
			logger.Info("shutting down", "signal", sig.String())
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
}
