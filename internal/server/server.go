// Package server exposes a project over a small JSON HTTP API.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

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

// Server serves one project.
type Server struct {
	proj   *project.Project
	router *mux.Router
	logger *log.Logger

	// writes serializes edit sessions so concurrent requests cannot
	// interleave load and save of the same invoice.
	writes sync.Mutex
}

// New creates a Server for proj. Log output goes to logger, or the standard
// logger when nil.
func New(proj *project.Project, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{proj: proj, router: mux.NewRouter(), logger: logger}

	s.router.Use(s.logRequests)
	s.router.HandleFunc("/invoices", s.listInvoices).Methods(http.MethodGet)
	s.router.HandleFunc("/invoices/{id}", s.getInvoice).Methods(http.MethodGet)
	s.router.HandleFunc("/invoices/{id}/preview", s.previewText).Methods(http.MethodGet)
	s.router.HandleFunc("/invoices/{id}/preview.pdf", s.previewPDF).Methods(http.MethodGet)
	s.router.HandleFunc("/invoices/{id}/currency", s.changeCurrency).Methods(http.MethodPost)
	s.router.HandleFunc("/products", s.listProducts).Methods(http.MethodGet)
	s.router.HandleFunc("/rates", s.showRates).Methods(http.MethodGet)
	s.router.HandleFunc("/convert", s.convert).Methods(http.MethodGet)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe requests exchange rates and serves on addr until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.proj.StartRates(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	s.logger.Printf("Serving %s on %s", s.proj.Root, addr)
	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// invoiceSummary is one row of GET /invoices.
type invoiceSummary struct {
	ID            string        `json:"id"`
	InvoiceNumber string        `json:"invoice_number"`
	BillTo        string        `json:"bill_to"`
	DateOfIssue   string        `json:"date_of_issue"`
	Currency      currency.Code `json:"currency"`
	Total         string        `json:"total"`
}

func (s *Server) listInvoices(w http.ResponseWriter, _ *http.Request) {
	all := s.proj.Invoices.All()
	out := make([]invoiceSummary, 0, len(all))
	for _, inv := range all {
		out = append(out, invoiceSummary{
			ID:            inv.ID,
			InvoiceNumber: id.FormatInvoiceNumber(inv.InvoiceNumber),
			BillTo:        inv.BillTo,
			DateOfIssue:   inv.DateOfIssue,
			Currency:      inv.Currency,
			Total:         money.Format(inv.Total),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (model.Invoice, bool) {
	invoiceID := mux.Vars(r)["id"]
	inv, ok := s.proj.Invoices.Get(invoiceID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", form.ErrInvoiceNotFound, invoiceID))
		return model.Invoice{}, false
	}
	return engine.RecomputeTotals(inv), true
}

func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) previewText(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, preview.Render(inv))
}

func (s *Server) previewPDF(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := preview.PDF(&buf, inv); err != nil {
		s.logger.Printf("Error rendering PDF for %s: %v", inv.ID, err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s.pdf", id.FormatInvoiceNumber(inv.InvoiceNumber)))
	_, _ = w.Write(buf.Bytes())
}

type currencyRequest struct {
	Currency string `json:"currency"`
}

func (s *Server) changeCurrency(w http.ResponseWriter, r *http.Request) {
	var req currencyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	code, err := currency.Parse(req.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.writes.Lock()
	defer s.writes.Unlock()

	session, err := form.Edit(s.proj.Deps(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	from := session.Draft().Currency
	if err := session.ChangeCurrency(code); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	inv, err := session.Save()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	if from != code {
		_, err = s.proj.Record(project.Change{
			Actor:     "api",
			Action:    activity.ActionCurrencyChanged,
			InvoiceID: inv.ID,
			Details:   fmt.Sprintf("%s %s to %s", id.FormatInvoiceNumber(inv.InvoiceNumber), from, code),
		})
		if err != nil {
			s.logger.Printf("warning: recording currency change for %s: %v", inv.ID, err)
		}
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) listProducts(w http.ResponseWriter, _ *http.Request) {
	products := s.proj.Products.All()
	if products == nil {
		products = []model.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) showRates(w http.ResponseWriter, _ *http.Request) {
	table := s.proj.Rates.Snapshot()
	if table == nil {
		err := currency.ErrRateUnavailable
		if fetchErr := s.proj.Rates.Err(); fetchErr != nil {
			err = fmt.Errorf("%w: %v", currency.ErrRateUnavailable, fetchErr)
		}
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

type convertResponse struct {
	Amount string        `json:"amount"`
	From   currency.Code `json:"from"`
	To     currency.Code `json:"to"`
	Symbol string        `json:"symbol"`
}

func (s *Server) convert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parsing amount %q: %w", q.Get("amount"), err))
		return
	}
	from, err := currency.Parse(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := currency.Parse(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	out, err := engine.ConvertCurrency(amount, from, to, s.proj.Rates.Snapshot())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, convertResponse{Amount: money.Format(out), From: from, To: to, Symbol: to.Symbol()})
}

func statusFor(err error) int {
	var verrs form.ValidationErrors
	switch {
	case errors.Is(err, form.ErrInvoiceNotFound):
		return http.StatusNotFound
	case errors.Is(err, currency.ErrRateUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, currency.ErrUnknownCurrency), errors.Is(err, engine.ErrInvalidRate):
		return http.StatusBadRequest
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
