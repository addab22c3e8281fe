package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/fxsnapshot/fxsnapshot/internal/app"
)

func init() {
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("now", false, "start a refresh immediately instead of waiting for the first tick")
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (defaults to server.addr, then :8080)")
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Runs one refresh: scrape, store, export and prune the tracked codes.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := a.Refresh(cmd.Context())

		t := newTable()
		t.AppendHeader(table.Row{"Run", "Tracked", "Resolved", "Records", "Failed pages", "Discarded", "Dropped"})
		t.AppendRow(table.Row{rep.RunID, rep.Tracked, rep.Successes, rep.Records, len(rep.FailedURLs), rep.Discarded, len(rep.Removed)})
		t.Render()
		return err
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs refreshes on the configured schedule until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		now, _ := cmd.Flags().GetBool("now")

		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Run(cmd.Context(), now)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the exported snapshot and lookups over HTTP without scraping.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		if cfg.Server.Addr == "" {
			cfg.Server.Addr = ":8080"
		}

		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Serve(cmd.Context())
	},
}
