package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/invoicely/invoicely/internal/activity"
	"github.com/invoicely/invoicely/internal/currency"
	"github.com/invoicely/invoicely/internal/id"
	"github.com/invoicely/invoicely/internal/model"
	"github.com/invoicely/invoicely/internal/project"
)

func newProductCommand() *cobra.Command {
	productCmd := &cobra.Command{
		Use:   "product",
		Short: "Manage the product catalog",
	}
	productCmd.AddCommand(newProductAddCommand())
	productCmd.AddCommand(newProductListCommand())
	return productCmd
}

func newProductAddCommand() *cobra.Command {
	var p struct {
		id, name, description, rate, currency string
	}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or replace a catalog product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			proj, err := openProject(cmd)
			if err != nil {
				return err
			}

			rate, err := decimal.NewFromString(p.rate)
			if err != nil {
				return fmt.Errorf("parsing rate %q: %w", p.rate, err)
			}
			if rate.IsNegative() {
				return fmt.Errorf("rate %s must not be negative", rate)
			}
			code := proj.Config.DefaultCurrency()
			if p.currency != "" {
				if code, err = currency.Parse(p.currency); err != nil {
					return err
				}
			}
			productID := p.id
			if productID == "" {
				productID = id.NewID()
			}

			product := model.Product{
				ID:          productID,
				Name:        p.name,
				Description: p.description,
				Rate:        rate,
				Currency:    code,
			}
			if err := proj.Products.Upsert(product); err != nil {
				return err
			}

			if _, err := proj.Record(project.Change{
				Actor:   "cli",
				Action:  activity.ActionProductSaved,
				Details: fmt.Sprintf("%s at %s%s", product.Name, code.Symbol(), rate.StringFixed(2)),
			}); err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved product %s (%s)\n", product.Name, product.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&p.id, "id", "", "product id (generated when empty)")
	cmd.Flags().StringVar(&p.name, "name", "", "product name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&p.description, "description", "", "product description")
	cmd.Flags().StringVar(&p.rate, "rate", "", "unit rate (required)")
	_ = cmd.MarkFlagRequired("rate")
	cmd.Flags().StringVar(&p.currency, "currency", "", "currency of the rate (defaults to the project currency)")

	return cmd
}

func newProductListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			proj, err := openProject(cmd)
			if err != nil {
				return err
			}
			all := proj.Products.All()
			if len(all) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No products.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tRATE\tCURRENCY")
			for _, p := range all {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Rate.String(), p.Currency)
			}
			return tw.Flush()
		},
	}
}
