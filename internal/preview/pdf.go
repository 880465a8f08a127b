package preview

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/invoicely/invoicely/internal/id"
	"github.com/invoicely/invoicely/internal/model"
	"github.com/invoicely/invoicely/internal/money"
)

// PDF writes inv as an A4 document. Amounts carry the currency code rather
// than the symbol since the core fonts have no glyph for every symbol.
func PDF(w io.Writer, inv model.Invoice) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(fmt.Sprintf("Invoice %s", id.FormatInvoiceNumber(inv.InvoiceNumber)), true)
	pdf.AddPage()

	// Sender
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 8, tr(inv.BillFrom))
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 9)
	for _, line := range lines(inv.BillFromAddress, inv.BillFromEmail) {
		pdf.Cell(0, 5, tr(line))
		pdf.Ln(4)
	}
	pdf.Ln(11)

	pdf.SetFont("Arial", "B", 24)
	pdf.Cell(0, 10, "INVOICE")
	pdf.Ln(15)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(60, 6, fmt.Sprintf("Invoice Number: %s", id.FormatInvoiceNumber(inv.InvoiceNumber)))
	pdf.Cell(60, 6, fmt.Sprintf("Date: %s", inv.CurrentDate))
	pdf.Ln(6)
	pdf.Cell(60, 6, fmt.Sprintf("Due Date: %s", inv.DateOfIssue))
	pdf.Cell(60, 6, fmt.Sprintf("Currency: %s", inv.Currency))
	pdf.Ln(15)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Bill To:")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	for _, line := range lines(inv.BillTo, inv.BillToAddress, inv.BillToEmail) {
		pdf.Cell(0, 5, tr(line))
		pdf.Ln(5)
	}
	pdf.Ln(10)

	// Items
	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(100, 8, "Description", "", 0, "L", true, 0, "")
	pdf.CellFormat(20, 8, "Qty", "", 0, "R", true, 0, "")
	pdf.CellFormat(35, 8, "Rate", "", 0, "R", true, 0, "")
	pdf.CellFormat(35, 8, "Amount", "", 0, "R", true, 0, "")
	pdf.Ln(10)

	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(10, pdf.GetY(), 200, pdf.GetY())
	pdf.Ln(3)

	pdf.SetFont("Arial", "", 10)
	for _, it := range inv.Items {
		pdf.CellFormat(100, 6, tr(it.Name), "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", it.QuantityValue()), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, pdfAmount(inv, money.Round2(it.RateValue()).StringFixed(money.CentPlaces)), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, pdfAmount(inv, money.Format(it.Amount())), "", 0, "R", false, 0, "")
		pdf.Ln(6)
		if it.Description != "" {
			pdf.SetFont("Arial", "I", 8)
			pdf.SetTextColor(100, 100, 100)
			pdf.Cell(100, 4, tr(it.Description))
			pdf.SetTextColor(0, 0, 0)
			pdf.SetFont("Arial", "", 10)
			pdf.Ln(5)
		}
	}
	pdf.Ln(10)

	// Totals
	pdf.SetDrawColor(200, 200, 200)
	pdf.Rect(110, pdf.GetY(), 90, 44, "D")
	totals := []struct {
		label string
		value string
	}{
		{"Subtotal:", money.Format(inv.SubTotal)},
		{fmt.Sprintf("Discount (%s%%):", percent(inv.DiscountRate)), money.Format(inv.DiscountAmount)},
		{fmt.Sprintf("Tax (%s%%):", percent(inv.TaxRate)), money.Format(inv.TaxAmount)},
	}
	for _, t := range totals {
		pdf.SetX(115)
		pdf.Cell(40, 9, t.label)
		pdf.CellFormat(40, 9, pdfAmount(inv, t.value), "", 0, "R", false, 0, "")
		pdf.Ln(9)
	}
	pdf.SetFillColor(245, 245, 245)
	pdf.Rect(110, pdf.GetY(), 90, 15, "F")
	pdf.SetFont("Arial", "B", 14)
	pdf.SetX(115)
	pdf.Cell(40, 15, "Total:")
	pdf.SetTextColor(0, 100, 0)
	pdf.CellFormat(40, 15, pdfAmount(inv, money.Format(inv.Total)), "", 0, "R", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(25)

	if inv.Notes != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 5, tr(inv.Notes), "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("generating PDF: %w", err)
	}
	return nil
}

func pdfAmount(inv model.Invoice, value string) string {
	return value + " " + string(inv.Currency)
}

func lines(parts ...string) []string {
	var out []string
	for _, p := range parts {
		for _, l := range strings.Split(p, "\n") {
			if strings.TrimSpace(l) != "" {
				out = append(out, l)
			}
		}
	}
	return out
}
