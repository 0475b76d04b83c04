package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	spendTenant string
	spendDays   int
)

var spendCmd = &cobra.Command{
	Use:     "ledger",
	Aliases: []string{"spend"},
	Short:   "Report provider spend for a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		since := time.Now().AddDate(0, 0, -spendDays)
		lines, err := st.SpendReport(ctx, spendTenant, since)
		if err != nil {
			return eris.Wrap(err, "spend report")
		}

		var total float64
		for _, l := range lines {
			total += l.AmountUSD
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"tenant":    spendTenant,
			"since":     since.Format(time.RFC3339),
			"totalUsd":  total,
			"providers": lines,
		})
	},
}

func init() {
	spendCmd.Flags().StringVar(&spendTenant, "tenant", "default", "tenant to report on")
	spendCmd.Flags().IntVar(&spendDays, "days", 30, "report window in days")
	rootCmd.AddCommand(spendCmd)
}
