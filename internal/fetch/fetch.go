// Package fetch polls submitted orders and moves delivered artifacts
// into the destination store under deterministic keys. Keys depend
// only on the ledger record and artifact filenames, so a re-run
// transfers nothing that already landed.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/daterange"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/ledger"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/logging"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/planet"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/storage"
)

// Product filename patterns. Acquisition date and scene id are encoded
// in the delivered filename, not carried as artifact metadata.
var (
	datePattern    = regexp.MustCompile(`(\d{4})(\d{2})(\d{2})_`)
	sceneIDPattern = regexp.MustCompile(`\d{8}_(\w+)_`)
)

// API is the slice of the imagery client the fetcher needs.
type API interface {
	GetOrder(ctx context.Context, orderID string) (*planet.OrderStatus, error)
	Download(ctx context.Context, location string) ([]byte, error)
}

// TransferError is a failed download or destination write for one
// artifact. It never aborts sibling artifacts.
type TransferError struct {
	Artifact string
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s: %v", e.Artifact, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Report is the outcome of checking one order.
type Report struct {
	OrderID     string
	State       string
	Pending     bool
	Transferred []string // destination keys written
	Skipped     []string // destination keys that already existed
	Failed      []*TransferError
}

// Options tunes a fetch run.
type Options struct {
	Overwrite bool
}

// Fetcher checks order state and delivers artifacts.
type Fetcher struct {
	api    API
	ledger *ledger.Ledger
	store  storage.ArtifactStore
	log    *slog.Logger
}

// NewFetcher wires a fetcher.
func NewFetcher(api API, led *ledger.Ledger, store storage.ArtifactStore) *Fetcher {
	return &Fetcher{api: api, ledger: led, store: store, log: logging.Component("fetch")}
}

// Check polls one order. A still-running order reports pending; a
// successful one has its artifacts classified and transferred, then
// the full status document is persisted beside them.
func (f *Fetcher) Check(ctx context.Context, orderID string, opts Options) (*Report, error) {
	rec, err := f.ledger.Find(orderID)
	if err != nil {
		f.log.Warn("order not in ledger, using defaults", "order_id", orderID)
		rec = ledger.Record{OrderID: orderID, AOIName: "unknown_aoi", OrderType: ledger.OrderTypeScene}
	}
	log := logging.OrderLogger(orderID, rec.AOIName)

	status, err := f.api.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	report := &Report{OrderID: orderID, State: status.State}
	if status.Pending() {
		report.Pending = true
		log.Info("order still processing", "state", status.State)
		return report, nil
	}
	if status.State != planet.StateSuccess {
		log.Warn("order ended unsuccessfully", "state", status.State)
		return report, nil
	}

	var prefix string
	if rec.OrderType == ledger.OrderTypeComposite || status.SourceType == "basemaps" {
		prefix = compositePrefix(rec)
		f.transferComposite(ctx, status.Artifacts, prefix, opts, report, log)
	} else {
		prefix = scenePrefix(rec)
		f.transferScenes(ctx, status.Artifacts, prefix, opts, report, log)
	}

	metaKey := prefix + "/metadata.json"
	if err := f.store.Write(ctx, metaKey, status.Raw); err != nil {
		report.Failed = append(report.Failed, &TransferError{Artifact: metaKey, Err: err})
		log.Error("failed to persist order metadata", "key", metaKey, "error", err)
	}

	log.Info("fetch complete",
		"transferred", len(report.Transferred),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed))
	return report, nil
}

// sceneArtifact is one deliverable parsed out of its filename.
type sceneArtifact struct {
	artifact  planet.Artifact
	filename  string
	date      string // YYYY_MM_DD
	sceneID   string
	weekStart string
}

// transferScenes keeps one imagery artifact per week and transfers the
// keepers. Quality masks and metadata sidecars are skipped up front.
func (f *Fetcher) transferScenes(ctx context.Context, artifacts []planet.Artifact, prefix string, opts Options, report *Report, log *slog.Logger) {
	seen := make(map[string]bool)
	var candidates []sceneArtifact
	for _, a := range artifacts {
		filename := path.Base(a.Name)
		if seen[filename] {
			continue
		}
		seen[filename] = true

		lower := strings.ToLower(filename)
		if !strings.HasSuffix(lower, ".tif") || strings.Contains(lower, "udm") {
			continue
		}
		date, ok := extractDate(filename)
		if !ok {
			log.Warn("could not extract date from filename", "filename", filename)
			continue
		}
		candidates = append(candidates, sceneArtifact{
			artifact:  a,
			filename:  filename,
			date:      date,
			sceneID:   extractSceneID(filename),
			weekStart: weekStartOf(date),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].weekStart != candidates[j].weekStart {
			return candidates[i].weekStart < candidates[j].weekStart
		}
		return candidates[i].date < candidates[j].date
	})

	kept := make(map[string]sceneArtifact)
	var weeks []string
	for _, c := range candidates {
		if _, ok := kept[c.weekStart]; !ok {
			kept[c.weekStart] = c
			weeks = append(weeks, c.weekStart)
		}
	}
	log.Info("organized scene artifacts", "candidates", len(candidates), "weeks", len(weeks))

	for _, week := range weeks {
		c := kept[week]
		destKey := fmt.Sprintf("%s/%s_%s.tiff", prefix, c.date, c.sceneID)
		f.transfer(ctx, c.artifact, destKey, opts, report, log)
	}
}

// transferComposite moves every deliverable under the mosaic period
// directory, keeping the original filenames.
func (f *Fetcher) transferComposite(ctx context.Context, artifacts []planet.Artifact, prefix string, opts Options, report *Report, log *slog.Logger) {
	for _, a := range artifacts {
		filename := path.Base(a.Name)
		f.transfer(ctx, a, prefix+"/"+filename, opts, report, log)
	}
}

// transfer performs one idempotent artifact move. An existing
// destination key is skipped unless overwrite is set; a failure is
// recorded and isolated to this artifact.
func (f *Fetcher) transfer(ctx context.Context, a planet.Artifact, destKey string, opts Options, report *Report, log *slog.Logger) {
	if !opts.Overwrite {
		exists, err := f.store.Exists(ctx, destKey)
		if err != nil {
			report.Failed = append(report.Failed, &TransferError{Artifact: destKey, Err: err})
			log.Error("existence check failed", "key", destKey, "error", err)
			return
		}
		if exists {
			report.Skipped = append(report.Skipped, destKey)
			log.Info("destination already exists, skipping", "key", destKey)
			return
		}
	}

	data, err := f.api.Download(ctx, a.Location)
	if err != nil {
		report.Failed = append(report.Failed, &TransferError{Artifact: destKey, Err: err})
		log.Error("artifact download failed", "key", destKey, "error", err)
		return
	}
	if err := f.store.Write(ctx, destKey, data); err != nil {
		report.Failed = append(report.Failed, &TransferError{Artifact: destKey, Err: err})
		log.Error("destination write failed", "key", destKey, "error", err)
		return
	}
	report.Transferred = append(report.Transferred, destKey)
	log.Info("artifact transferred", "key", destKey, "uri", f.store.URI(destKey), "bytes", len(data))
}

// BatchOutcome is the per-unit result of a batch sweep.
type BatchOutcome struct {
	OrderID string
	Outcome string // "pending" | "success" | "failed"
	Report  *Report
	Err     error
}

// CheckBatch polls and fetches every order sharing a batch id. One
// order's error never aborts the sweep.
func (f *Fetcher) CheckBatch(ctx context.Context, batchID string, opts Options) ([]BatchOutcome, error) {
	records := f.ledger.FindBatch(batchID)
	if len(records) == 0 {
		return nil, fmt.Errorf("no ledger records for batch %s", batchID)
	}

	outcomes := make([]BatchOutcome, 0, len(records))
	for _, rec := range records {
		outcome := BatchOutcome{OrderID: rec.OrderID}
		report, err := f.Check(ctx, rec.OrderID, opts)
		switch {
		case err != nil:
			outcome.Outcome = "failed"
			outcome.Err = err
			f.log.Error("batch unit check failed", "batch_id", batchID, "order_id", rec.OrderID, "error", err)
		case report.Pending:
			outcome.Outcome = "pending"
			outcome.Report = report
		case report.State != planet.StateSuccess || len(report.Failed) > 0:
			outcome.Outcome = "failed"
			outcome.Report = report
		default:
			outcome.Outcome = "success"
			outcome.Report = report
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func scenePrefix(rec ledger.Record) string {
	return fmt.Sprintf("planetscope analytic/%s/%s", bandsLabel(rec.Bands), rec.AOIName)
}

func compositePrefix(rec ledger.Record) string {
	return fmt.Sprintf("basemaps/%s/%s", rec.AOIName, mosaicPeriod(rec.MosaicName))
}

func bandsLabel(bands int) string {
	switch bands {
	case 8:
		return "eight_bands"
	default:
		return "four_bands"
	}
}

// mosaicPeriod pulls the year_month period out of a mosaic series name
// such as "global_monthly_2024_03_mosaic".
func mosaicPeriod(mosaicName string) string {
	parts := strings.Split(mosaicName, "_")
	if len(parts) >= 4 && len(parts[2]) == 4 {
		return parts[2] + "_" + parts[3]
	}
	return "unknown_date"
}

func extractDate(filename string) (string, bool) {
	m := datePattern.FindStringSubmatch(filename)
	if m == nil {
		return "", false
	}
	return m[1] + "_" + m[2] + "_" + m[3], true
}

func extractSceneID(filename string) string {
	m := sceneIDPattern.FindStringSubmatch(filename)
	if m == nil {
		return "unknown"
	}
	return m[1]
}

// weekStartOf maps a YYYY_MM_DD date onto its week key, Sunday first.
func weekStartOf(date string) string {
	t, err := daterange.ParseDate(strings.ReplaceAll(date, "_", "-"))
	if err != nil {
		return date
	}
	return strings.ReplaceAll(daterange.WeekStart(t).Format(daterange.DateLayout), "-", "_")
}
