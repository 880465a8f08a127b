package id

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// invoicePrefix is prepended to formatted invoice numbers.
const invoicePrefix = "INV-"

// NewID returns a random identifier for invoices, rows and products.
func NewID() string {
	return uuid.NewString()
}

// FormatInvoiceNumber returns a display number like "INV-0042".
func FormatInvoiceNumber(n int) string {
	return fmt.Sprintf("%s%04d", invoicePrefix, n)
}

// ParseInvoiceNumber parses "INV-0042", "0042" or "42" into 42.
func ParseInvoiceNumber(s string) (int, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), invoicePrefix)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid invoice number %q: %w", s, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid invoice number %q: must be at least 1", s)
	}
	return n, nil
}

// NextInvoiceNumber returns the number assigned to a new invoice when count
// invoices are already stored.
func NextInvoiceNumber(count int) int {
	return count + 1
}
