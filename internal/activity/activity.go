// Package activity keeps the project's audit trail in logs/activity-log.csv.
//
// Every entry has an ID. When the change is committed, the commit message
// repeats it as an Activity-Id trailer, which is how a log entry finds its
// commit later. The log itself never stores hashes, so it can be committed
// together with the change it describes.
package activity

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/invoicely/invoicely/internal/id"
)

// File is the log path relative to the project root.
const File = "logs/activity-log.csv"

// Trailer is the commit message key that carries an entry ID.
const Trailer = "Activity-Id"

// ErrUnknownAction is returned when appending an entry whose action is not
// one of the known actions.
var ErrUnknownAction = errors.New("unknown activity action")

// Action is what happened.
type Action string

const (
	ActionInit            Action = "init"
	ActionInvoiceCreated  Action = "invoice_created"
	ActionInvoiceUpdated  Action = "invoice_updated"
	ActionCurrencyChanged Action = "currency_changed"
	ActionProductSaved    Action = "product_saved"
)

// Actions lists every known action.
var Actions = []Action{
	ActionInit, ActionInvoiceCreated, ActionInvoiceUpdated,
	ActionCurrencyChanged, ActionProductSaved,
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return slices.Contains(Actions, a)
}

// Entry is one recorded change.
type Entry struct {
	ID        string
	Timestamp time.Time
	Actor     string
	Action    Action
	InvoiceID string
	Details   string
}

// CommitMessage is the message of the commit that records e.
func (e Entry) CommitMessage() string {
	return fmt.Sprintf("%s: %s\n\n%s: %s\n", e.Action, e.Details, Trailer, e.ID)
}

// EntryID returns the entry ID carried by a commit message.
func EntryID(message string) (string, bool) {
	for _, line := range strings.Split(message, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if ok && key == Trailer {
			if v := strings.TrimSpace(value); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// Filter selects entries. Zero fields match everything.
type Filter struct {
	InvoiceID string
	Actions   []Action
	Since     time.Time
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Entry) bool {
	if f.InvoiceID != "" && e.InvoiceID != f.InvoiceID {
		return false
	}
	if len(f.Actions) > 0 && !slices.Contains(f.Actions, e.Action) {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

var columns = []string{"id", "timestamp", "actor", "action", "invoice_id", "details"}

func encode(e Entry) []string {
	return []string{
		e.ID,
		e.Timestamp.UTC().Format(time.RFC3339),
		e.Actor,
		string(e.Action),
		e.InvoiceID,
		e.Details,
	}
}

func decode(row []string) (Entry, error) {
	ts, err := time.Parse(time.RFC3339, row[1])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", row[1], err)
	}
	return Entry{
		ID:        row[0],
		Timestamp: ts,
		Actor:     row[2],
		Action:    Action(row[3]),
		InvoiceID: row[4],
		Details:   row[5],
	}, nil
}

// Append adds entries to the log, creating it if needed. Blank IDs and
// zero timestamps are filled in.
func Append(repoRoot string, entries ...Entry) error {
	for i := range entries {
		if !entries[i].Action.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownAction, entries[i].Action)
		}
	}

	path := filepath.Join(repoRoot, File)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}
	_, statErr := os.Stat(path)
	fresh := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening activity log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(columns); err != nil {
			return fmt.Errorf("writing activity log header: %w", err)
		}
	}
	for _, e := range entries {
		if e.ID == "" {
			e.ID = id.NewID()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = time.Now()
		}
		if err := w.Write(encode(e)); err != nil {
			return fmt.Errorf("writing activity entry %s: %w", e.ID, err)
		}
	}
	w.Flush()
	return w.Error()
}

// Query returns the entries matching f, oldest first. A missing log has
// no entries.
func Query(repoRoot string, f Filter) ([]Entry, error) {
	file, err := os.Open(filepath.Join(repoRoot, File))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening activity log: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(columns)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading activity log header: %w", err)
	}
	if !slices.Equal(header, columns) {
		return nil, fmt.Errorf("activity log header %q, want %q", header, columns)
	}

	var out []Entry
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading activity log: %w", err)
		}
		e, err := decode(row)
		if err != nil {
			return nil, fmt.Errorf("activity log line %d: %w", line, err)
		}
		if f.Match(e) {
			out = append(out, e)
		}
	}
}
