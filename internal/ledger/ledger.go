// Package ledger keeps the append-only record of submitted orders.
//
// The ledger is a single JSON file. Every append reads the full file,
// adds one record and rewrites it atomically via temp file + rename.
// Existing records are never modified. The contract assumes a single
// writer; concurrent writers must serialize externally.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/logging"
)

// Order types recorded in the ledger.
const (
	OrderTypeScene     = "PSScene"
	OrderTypeComposite = "basemap"
)

// ErrNotFound is returned when no record matches an order id.
var ErrNotFound = errors.New("order not found in ledger")

// Record is one submitted order. Immutable once appended.
type Record struct {
	OrderID      string    `json:"order_id"`
	AOIName      string    `json:"aoi_name"`
	OrderType    string    `json:"order_type"`
	StartDate    string    `json:"start_date,omitempty"`
	EndDate      string    `json:"end_date,omitempty"`
	Bands        int       `json:"num_bands,omitempty"`
	SearchBundle string    `json:"search_bundle,omitempty"`
	OrderBundle  string    `json:"product_bundle,omitempty"`
	MosaicName   string    `json:"mosaic_name,omitempty"`
	AreaSqKm     float64   `json:"aoi_area_sqkm,omitempty"`
	BatchID      string    `json:"batch_id,omitempty"`
	SubmittedAt  time.Time `json:"timestamp"`
}

// Ledger is a file-backed order log.
type Ledger struct {
	path string
	log  *slog.Logger
}

// Open points a ledger at a file path. The file is created on first
// append.
func Open(path string) *Ledger {
	return &Ledger{path: path, log: logging.Component("ledger")}
}

// Append adds one record. Called only after the remote service
// confirmed acceptance; an unconfirmed order must never reach the
// ledger.
func (l *Ledger) Append(rec Record) error {
	if rec.OrderID == "" {
		return fmt.Errorf("refusing to append record without order id")
	}
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now().UTC()
	}

	records := l.load()
	records = append(records, rec)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create ledger directory %s: %w", dir, err)
		}
	}

	tempPath := l.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write ledger temp file: %w", err)
	}
	if err := os.Rename(tempPath, l.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename ledger file: %w", err)
	}
	return nil
}

// All returns every record in append order.
func (l *Ledger) All() []Record {
	return l.load()
}

// Find returns the record for an order id.
func (l *Ledger) Find(orderID string) (Record, error) {
	for _, rec := range l.load() {
		if rec.OrderID == orderID {
			return rec, nil
		}
	}
	return Record{}, fmt.Errorf("%w: %s", ErrNotFound, orderID)
}

// FindBatch returns every record sharing a batch id, in append order.
func (l *Ledger) FindBatch(batchID string) []Record {
	var out []Record
	for _, rec := range l.load() {
		if rec.BatchID == batchID {
			out = append(out, rec)
		}
	}
	return out
}

// load reads the ledger file. A missing file is an empty ledger; a
// corrupt file degrades to an empty ledger with a warning rather than
// failing the operation.
func (l *Ledger) load() []Record {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.log.Warn("failed to read ledger, treating as empty", "path", l.path, "error", err)
		}
		return nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		l.log.Warn("ledger content is malformed, treating as empty", "path", l.path, "error", err)
		return nil
	}
	return records
}
