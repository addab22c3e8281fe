package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/fxsnapshot/fxsnapshot/internal/app"
	"github.com/fxsnapshot/fxsnapshot/internal/sources"
)

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().String("code", "", "extract the value for this currency code instead of printing the markup")
}

var renderCmd = &cobra.Command{
	Use:   "render URL",
	Short: "Renders one page in the browser, for checking selectors and wait settings.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		r, err := app.NewRenderer(cfg)
		if err != nil {
			return err
		}
		markup, err := r.Render(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		code, _ := cmd.Flags().GetString("code")
		if code == "" {
			fmt.Fprintln(cmd.OutOrStdout(), markup)
			return nil
		}
		code = strings.ToUpper(code)
		pair, stats, ok := sources.ExtractSingle(markup, code, cfg.QuoteCurrency, cfg.Source.ValueSelector)
		if !ok {
			return fmt.Errorf("no %s/%s value on page (%d candidates, %d discarded)", code, cfg.QuoteCurrency, stats.Blocks, stats.Discarded)
		}
		t := newTable()
		t.AppendHeader(table.Row{"Code", "Quote", "Raw"})
		t.AppendRow(table.Row{pair.Base, pair.Quote, pair.Raw})
		t.Render()
		return nil
	},
}
