package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/fxsnapshot/fxsnapshot/internal/client"
	"github.com/fxsnapshot/fxsnapshot/internal/config"
	"github.com/fxsnapshot/fxsnapshot/internal/utils"
)

var sourceFlag string

func init() {
	for _, c := range []*cobra.Command{codesCmd, rateCmd} {
		c.Flags().StringVarP(&sourceFlag, "source", "s", "", "URL or path of the exported snapshot (defaults to client.source)")
		rootCmd.AddCommand(c)
	}
}

func newClient() (*client.Client, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	source := sourceFlag
	if source == "" {
		source = cfg.Client.Source
	}
	c := client.New(client.Options{
		QuoteCurrency: cfg.QuoteCurrency,
		CacheTTL:      cfg.Client.CacheTTL.Std(),
	})
	return c, source, nil
}

var codesCmd = &cobra.Command{
	Use:   "codes",
	Short: "Lists the currency codes available in the snapshot.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, source, err := newClient()
		if err != nil {
			return err
		}
		codes, err := c.ListCodes(cmd.Context(), source)
		if err != nil {
			return err
		}

		const perRow = config.CodesPerRow
		t := newTable()
		t.SetTitle(fmt.Sprintf("%d codes", len(codes)))
		for i := 0; i < len(codes); i += perRow {
			row := table.Row{}
			for _, code := range codes[i:min(i+perRow, len(codes))] {
				row = append(row, code)
			}
			t.AppendRow(row)
		}
		t.Render()
		return nil
	},
}

var rateCmd = &cobra.Command{
	Use:   "rate FROM TO",
	Short: "Prints how many units of TO one unit of FROM is worth.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, source, err := newClient()
		if err != nil {
			return err
		}
		r, err := c.Rate(cmd.Context(), source, args[0], args[1])
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"From", "To", "Rate"})
		t.AppendRow(table.Row{args[0], args[1], utils.FormatDecimal(r, 8)})
		t.Render()
		return nil
	},
}
