package form

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/invoicely/invoicely/internal/engine"
	"github.com/invoicely/invoicely/internal/model"
)

// ValidationError describes a single problem with a draft field.
type ValidationError struct {
	Field       string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// ValidationErrors is returned by Review and Save when a draft is not ready.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return "invalid invoice: " + strings.Join(msgs, "; ")
}

// Validate checks the fields an invoice needs before it can be reviewed and saved.
func Validate(inv model.Invoice) []ValidationError {
	var errs []ValidationError

	if inv.InvoiceNumber < 1 {
		errs = append(errs, ValidationError{
			Field:       engine.FieldInvoiceNumber,
			Description: fmt.Sprintf("must be at least 1, got %d", inv.InvoiceNumber),
		})
	}

	if strings.TrimSpace(inv.DateOfIssue) == "" {
		errs = append(errs, ValidationError{Field: engine.FieldDateOfIssue, Description: "required"})
	} else if _, err := time.Parse(engine.DateFormat, inv.DateOfIssue); err != nil {
		errs = append(errs, ValidationError{
			Field:       engine.FieldDateOfIssue,
			Description: fmt.Sprintf("%q is not a %s date", inv.DateOfIssue, engine.DateFormat),
		})
	}

	required := []struct {
		field string
		value string
	}{
		{engine.FieldBillTo, inv.BillTo},
		{engine.FieldBillToEmail, inv.BillToEmail},
		{engine.FieldBillToAddress, inv.BillToAddress},
		{engine.FieldBillFrom, inv.BillFrom},
		{engine.FieldBillFromEmail, inv.BillFromEmail},
		{engine.FieldBillFromAddress, inv.BillFromAddress},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, ValidationError{Field: r.field, Description: "required"})
		}
	}

	for _, r := range []struct {
		field string
		value string
	}{
		{engine.FieldBillToEmail, inv.BillToEmail},
		{engine.FieldBillFromEmail, inv.BillFromEmail},
	} {
		if strings.TrimSpace(r.value) == "" {
			continue
		}
		if _, err := mail.ParseAddress(r.value); err != nil {
			errs = append(errs, ValidationError{
				Field:       r.field,
				Description: fmt.Sprintf("%q is not an email address", r.value),
			})
		}
	}

	if err := engine.ValidatePercent(inv.TaxRate); err != nil {
		errs = append(errs, ValidationError{Field: engine.FieldTaxRate, Description: err.Error()})
	}
	if err := engine.ValidatePercent(inv.DiscountRate); err != nil {
		errs = append(errs, ValidationError{Field: engine.FieldDiscountRate, Description: err.Error()})
	}

	if !inv.Currency.Valid() {
		errs = append(errs, ValidationError{
			Field:       "currency",
			Description: fmt.Sprintf("unknown currency %q", inv.Currency),
		})
	}

	return errs
}
