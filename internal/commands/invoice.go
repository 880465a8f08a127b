package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/invoicely/invoicely/internal/activity"
	"github.com/invoicely/invoicely/internal/currency"
	"github.com/invoicely/invoicely/internal/engine"
	"github.com/invoicely/invoicely/internal/form"
	"github.com/invoicely/invoicely/internal/id"
	"github.com/invoicely/invoicely/internal/model"
	"github.com/invoicely/invoicely/internal/money"
	"github.com/invoicely/invoicely/internal/preview"
	"github.com/invoicely/invoicely/internal/project"
)

func newInvoiceCommand() *cobra.Command {
	invoiceCmd := &cobra.Command{
		Use:   "invoice",
		Short: "Create, edit and inspect invoices",
	}
	invoiceCmd.AddCommand(newInvoiceFormCommand(form.ModeNew))
	invoiceCmd.AddCommand(newInvoiceFormCommand(form.ModeCopy))
	invoiceCmd.AddCommand(newInvoiceFormCommand(form.ModeEdit))
	invoiceCmd.AddCommand(newInvoiceShowCommand())
	invoiceCmd.AddCommand(newInvoiceListCommand())
	invoiceCmd.AddCommand(newInvoiceLogCommand())
	return invoiceCmd
}

type formOptions struct {
	file     string
	sets     []string
	currency string
	copyFrom string
	pdf      string
	dryRun   bool
}

func newInvoiceFormCommand(mode form.Mode) *cobra.Command {
	var opts formOptions

	cmd := &cobra.Command{
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := openProject(cmd)
			if err != nil {
				return err
			}
			var sourceID string
			if len(args) > 0 {
				sourceID = args[0]
			}
			return runInvoiceForm(cmd, proj, mode, sourceID, opts)
		},
	}

	switch mode {
	case form.ModeNew:
		cmd.Use = "new"
		cmd.Short = "Create an invoice"
		cmd.Args = cobra.NoArgs
		cmd.Flags().StringVar(&opts.copyFrom, "copy-from", "", "start from the contents of an existing invoice")
	case form.ModeCopy:
		cmd.Use = "copy <invoice-id>"
		cmd.Short = "Create an invoice from a copy of another"
		cmd.Args = cobra.ExactArgs(1)
	case form.ModeEdit:
		cmd.Use = "edit <invoice-id>"
		cmd.Short = "Edit an invoice"
		cmd.Args = cobra.ExactArgs(1)
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "YAML draft with fields and items")
	cmd.Flags().StringArrayVar(&opts.sets, "set", nil,
		"set an invoice field (repeatable), one of: "+strings.Join(engine.Fields, ", "))
	cmd.Flags().StringVar(&opts.currency, "currency", "", "convert the invoice to this currency")
	cmd.Flags().StringVar(&opts.pdf, "pdf", "", "also write the invoice as PDF to this path")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "preview without saving")

	return cmd
}

func runInvoiceForm(cmd *cobra.Command, proj *project.Project, mode form.Mode, sourceID string, opts formOptions) error {
	// Rates are only needed for a currency change; request them up front.
	proj.StartRates(cmd.Context())

	var session *form.Session
	var err error
	switch mode {
	case form.ModeEdit:
		session, err = form.Edit(proj.Deps(), sourceID)
	case form.ModeCopy:
		session, err = form.Copy(proj.Deps(), sourceID)
	default:
		session = form.New(proj.Deps(), proj.Defaults())
	}
	if err != nil {
		return err
	}

	if opts.copyFrom != "" {
		if err := session.CopyFrom(opts.copyFrom); err != nil {
			return err
		}
	}

	draft, err := readDraftFile(opts.file)
	if err != nil {
		return err
	}
	sets, err := parseSets(opts.sets)
	if err != nil {
		return err
	}
	if err := applyFields(session, draft.Fields); err != nil {
		return err
	}
	if err := applyFields(session, sets); err != nil {
		return err
	}
	if err := selectProducts(cmd.Context(), proj, session, draft.Products); err != nil {
		return err
	}
	if err := applyItems(session, draft.Items); err != nil {
		return err
	}
	pruneBlankRows(session)

	target := opts.currency
	if target == "" {
		target = draft.Currency
	}
	if target != "" {
		if err := changeCurrency(cmd.Context(), proj, session, target); err != nil {
			return err
		}
	}

	inv, err := session.Review()
	fmt.Fprint(cmd.OutOrStdout(), preview.Render(inv))
	if err != nil {
		return err
	}
	if opts.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "Dry run, nothing saved.")
		return writePDF(cmd, opts.pdf, inv)
	}

	saved, err := session.Save()
	if err != nil {
		return err
	}

	action := activity.ActionInvoiceCreated
	if mode == form.ModeEdit {
		action = activity.ActionInvoiceUpdated
	}
	details := fmt.Sprintf("%s for %s, total %s", id.FormatInvoiceNumber(saved.InvoiceNumber), saved.BillTo, session.Total())
	if from, to := session.CurrencyChange(); from != "" {
		details += fmt.Sprintf(" (converted %s to %s)", from, to)
	}
	hash, err := proj.Record(project.Change{
		Actor:     "cli",
		Action:    action,
		InvoiceID: saved.ID,
		Details:   details,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)", id.FormatInvoiceNumber(saved.InvoiceNumber), saved.ID)
	if hash != "" {
		fmt.Fprintf(cmd.OutOrStdout(), " in %s", hash)
	}
	fmt.Fprintln(cmd.OutOrStdout())

	return writePDF(cmd, opts.pdf, saved)
}

// selectProducts adds catalog products to the draft. Rates are awaited only
// when a product is priced in another currency.
func selectProducts(ctx context.Context, proj *project.Project, session *form.Session, productIDs []string) error {
	for _, productID := range productIDs {
		err := session.SelectProduct(productID)
		if errors.Is(err, currency.ErrRateUnavailable) && proj.Rates.Snapshot() == nil {
			if _, err := proj.WaitRates(ctx); err != nil {
				return err
			}
			err = session.SelectProduct(productID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func changeCurrency(ctx context.Context, proj *project.Project, session *form.Session, target string) error {
	code, err := currency.Parse(target)
	if err != nil {
		return err
	}
	if session.Draft().Currency == code {
		return nil
	}
	if _, err := proj.WaitRates(ctx); err != nil {
		return err
	}
	return session.ChangeCurrency(code)
}

func writePDF(cmd *cobra.Command, path string, inv model.Invoice) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := preview.PDF(f, inv); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func newInvoiceShowCommand() *cobra.Command {
	var pdfPath string

	cmd := &cobra.Command{
		Use:   "show <invoice-id>",
		Short: "Show an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := openProject(cmd)
			if err != nil {
				return err
			}
			inv, ok := proj.Invoices.Get(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", form.ErrInvoiceNotFound, args[0])
			}
			inv = engine.RecomputeTotals(inv)
			fmt.Fprint(cmd.OutOrStdout(), preview.Render(inv))
			return writePDF(cmd, pdfPath, inv)
		},
	}

	cmd.Flags().StringVar(&pdfPath, "pdf", "", "write the invoice as PDF to this path")
	return cmd
}

func newInvoiceListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List invoices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			proj, err := openProject(cmd)
			if err != nil {
				return err
			}
			all := proj.Invoices.All()
			if len(all) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No invoices.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NUMBER\tID\tBILL TO\tDUE\tTOTAL")
			for _, inv := range all {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s%s\n",
					id.FormatInvoiceNumber(inv.InvoiceNumber), inv.ID, inv.BillTo, inv.DateOfIssue,
					inv.Symbol(), money.Format(inv.Total))
			}
			return tw.Flush()
		},
	}
}

func newInvoiceLogCommand() *cobra.Command {
	var actions []string

	cmd := &cobra.Command{
		Use:   "log <invoice-id>",
		Short: "Show the activity recorded for an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := openProject(cmd)
			if err != nil {
				return err
			}
			filter := activity.Filter{InvoiceID: args[0]}
			for _, a := range actions {
				action := activity.Action(a)
				if !action.Valid() {
					return fmt.Errorf("%w: %q", activity.ErrUnknownAction, a)
				}
				filter.Actions = append(filter.Actions, action)
			}
			events, err := proj.History(filter)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No activity.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tACTION\tBY\tCOMMIT\tDETAILS")
			for _, e := range events {
				commit := e.Commit
				if commit == "" {
					commit = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					e.Timestamp.Local().Format("2006-01-02 15:04"), e.Action, e.Actor, commit, e.Details)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringSliceVar(&actions, "action", nil, "only show these actions, e.g. --action invoice_updated")
	return cmd
}
