package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/invoicely/invoicely/internal/currency"
	"github.com/invoicely/invoicely/internal/engine"
	"github.com/invoicely/invoicely/internal/money"
)

func newRatesCommand() *cobra.Command {
	ratesCmd := &cobra.Command{
		Use:   "rates",
		Short: "Exchange rates",
	}
	ratesCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the current exchange rate table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			proj, err := openProject(cmd)
			if err != nil {
				return err
			}
			table, err := proj.WaitRates(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tSYMBOL\tRATE\tNAME")
			for _, c := range currency.Codes {
				rate := "unavailable"
				if r, err := table.Rate(c); err == nil {
					rate = r.String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c, c.Symbol(), rate, c.Name())
			}
			return tw.Flush()
		},
	})
	return ratesCmd
}

func newConvertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <amount> <from> <to>",
		Short: "Convert an amount between currencies",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("parsing amount %q: %w", args[0], err)
			}
			from, err := currency.Parse(args[1])
			if err != nil {
				return err
			}
			to, err := currency.Parse(args[2])
			if err != nil {
				return err
			}

			var table currency.Rates
			if from != to {
				proj, err := openProject(cmd)
				if err != nil {
					return err
				}
				if table, err = proj.WaitRates(cmd.Context()); err != nil {
					return err
				}
			}

			out, err := engine.ConvertCurrency(amount, from, to, table)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s %s = %s%s %s\n",
				from.Symbol(), money.Format(amount), from, to.Symbol(), money.Format(out), to)
			return nil
		},
	}
}
