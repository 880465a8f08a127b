// Package preview renders an invoice for review: a terminal view and a PDF.
package preview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/invoicely/invoicely/internal/id"
	"github.com/invoicely/invoicely/internal/model"
	"github.com/invoicely/invoicely/internal/money"
)

var (
	accent  = lipgloss.Color("#D97706") // amber
	fg      = lipgloss.Color("#E8E6E3") // warm light gray
	dim     = lipgloss.Color("#6B7280") // muted gray
	faint   = lipgloss.Color("#3F3F46")
	success = lipgloss.Color("#22C55E")
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2).
			Width(72)

	partyStyle = lipgloss.NewStyle().Width(32)

	dimStyle   = lipgloss.NewStyle().Foreground(dim)
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(fg)
	totalStyle = lipgloss.NewStyle().Bold(true).Foreground(success)
	separator  = lipgloss.NewStyle().Foreground(faint).Render(strings.Repeat("─", 64))
)

const (
	nameWidth   = 28
	qtyWidth    = 6
	amountWidth = 14
)

// Render returns a terminal view of inv, the way it will read on paper.
func Render(inv model.Invoice) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("INVOICE " + id.FormatInvoiceNumber(inv.InvoiceNumber)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Issued %s  ·  Due %s", orDash(inv.CurrentDate), orDash(inv.DateOfIssue))))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s (%s)", inv.Currency, inv.Currency.Name())))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		partyStyle.Render(party("Bill to", inv.BillTo, inv.BillToEmail, inv.BillToAddress)),
		partyStyle.Render(party("Bill from", inv.BillFrom, inv.BillFromEmail, inv.BillFromAddress)),
	))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s %s %s %s\n",
		labelStyle.Render(padRight("Item", nameWidth)),
		labelStyle.Render(padLeft("Qty", qtyWidth)),
		labelStyle.Render(padLeft("Rate", amountWidth)),
		labelStyle.Render(padLeft("Amount", amountWidth)),
	)
	b.WriteString(separator + "\n")
	for _, it := range inv.Items {
		fmt.Fprintf(&b, "%s %s %s %s\n",
			padRight(truncate(it.Name, nameWidth), nameWidth),
			padLeft(fmt.Sprintf("%d", it.QuantityValue()), qtyWidth),
			padLeft(amount(inv, money.Round2(it.RateValue()).StringFixed(money.CentPlaces)), amountWidth),
			padLeft(amount(inv, money.Format(it.Amount())), amountWidth),
		)
		if it.Description != "" {
			b.WriteString(dimStyle.Render("  "+truncate(it.Description, nameWidth+qtyWidth)) + "\n")
		}
	}
	b.WriteString(separator + "\n")

	totals := []struct {
		label string
		value string
	}{
		{"Subtotal", money.Format(inv.SubTotal)},
		{fmt.Sprintf("Discount (%s%%)", percent(inv.DiscountRate)), money.Format(inv.DiscountAmount)},
		{fmt.Sprintf("Tax (%s%%)", percent(inv.TaxRate)), money.Format(inv.TaxAmount)},
	}
	for _, t := range totals {
		fmt.Fprintf(&b, "%s %s\n", padLeft(t.label, nameWidth+qtyWidth+amountWidth+2), padLeft(amount(inv, t.value), amountWidth))
	}
	fmt.Fprintf(&b, "%s %s\n",
		labelStyle.Render(padLeft("Total", nameWidth+qtyWidth+amountWidth+2)),
		totalStyle.Render(padLeft(amount(inv, money.Format(inv.Total)), amountWidth)),
	)

	if inv.Notes != "" {
		b.WriteString("\n" + dimStyle.Render(inv.Notes))
	}

	return boxStyle.Render(b.String()) + "\n"
}

func party(title, name, email, address string) string {
	lines := []string{labelStyle.Render(title), orDash(name)}
	if email != "" {
		lines = append(lines, email)
	}
	if address != "" {
		lines = append(lines, address)
	}
	return strings.Join(lines, "\n")
}

func amount(inv model.Invoice, value string) string {
	return inv.Symbol() + value
}

func percent(rate string) string {
	pct, ok := money.ParsePercent(rate)
	if !ok {
		return "0"
	}
	return pct.String()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func padRight(s string, n int) string {
	w := lipgloss.Width(s)
	if w >= n {
		return s
	}
	return s + strings.Repeat(" ", n-w)
}

func padLeft(s string, n int) string {
	w := lipgloss.Width(s)
	if w >= n {
		return s
	}
	return strings.Repeat(" ", n-w) + s
}
