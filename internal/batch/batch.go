// Package batch drives many order submissions from a CSV manifest.
// Rows expand into date-range units, each unit is processed in input
// order, and one unit's failure never aborts the sweep.
package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/aoi"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/daterange"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/logging"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/order"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/selector"
)

// Outcome classifies how one unit ended.
type Outcome string

// Unit outcome categories.
const (
	OutcomeSubmitted  Outcome = "submitted"
	OutcomeNoEligible Outcome = "no_eligible_scenes"
	OutcomeFailed     Outcome = "failed"
)

// Row is one parsed manifest row.
type Row struct {
	AOIPath string
	Name    string // optional AOI name override
	Range   daterange.Range
	Line    int
}

// Unit is one submission unit: a manifest row narrowed to one
// sub-range after subdivision.
type Unit struct {
	Row   Row
	Range daterange.Range
}

// UnitResult is the outcome of one processed unit.
type UnitResult struct {
	Unit           Unit
	AOIName        string
	Outcome        Outcome
	OrderID        string
	ScenesFound    int
	ScenesSelected int
	QuotaSqKm      float64
	Err            error
}

// Summary aggregates a whole batch run.
type Summary struct {
	BatchID        string
	Results        []UnitResult
	RowsSkipped    int
	ScenesFound    int
	ScenesSelected int
	QuotaSqKm      float64
}

// Count returns the number of units that ended with the given outcome.
func (s *Summary) Count(o Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// Submitter is the slice of the order pipeline the runner needs.
type Submitter interface {
	Submit(ctx context.Context, req order.Request) (*order.Result, error)
}

// Params configures a batch run. The per-unit order parameters are
// shared across every unit.
type Params struct {
	MaxMonths      int
	Cadence        selector.Cadence
	MinCoveragePct float64
	CloudCoverMax  float64
	BundleOverride string
	EightBand      bool
	DryRun         bool
}

// Runner processes manifest rows sequentially.
type Runner struct {
	submitter Submitter
	log       *slog.Logger
}

// NewRunner wires a batch runner.
func NewRunner(submitter Submitter) *Runner {
	return &Runner{submitter: submitter, log: logging.Component("batch")}
}

// ReadManifest parses a CSV manifest. The header must name aoi_path,
// start_date and end_date columns. Rows with malformed dates are
// skipped with a warning; a missing required column is an error.
func ReadManifest(r io.Reader) ([]Row, int, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read manifest header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range []string{"aoi_path", "start_date", "end_date"} {
		if _, ok := cols[required]; !ok {
			return nil, 0, fmt.Errorf("manifest is missing required column %q", required)
		}
	}

	log := logging.Component("batch")
	var rows []Row
	skipped := 0
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read manifest line %d: %w", line, err)
		}

		start, serr := daterange.ParseDate(record[cols["start_date"]])
		end, eerr := daterange.ParseDate(record[cols["end_date"]])
		if serr != nil || eerr != nil {
			log.Warn("skipping manifest row with malformed date",
				"line", line,
				"start_date", record[cols["start_date"]],
				"end_date", record[cols["end_date"]])
			skipped++
			continue
		}
		row := Row{
			AOIPath: record[cols["aoi_path"]],
			Range:   daterange.Range{Start: start, End: end},
			Line:    line,
		}
		if idx, ok := cols["name"]; ok {
			row.Name = record[idx]
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

// Expand subdivides each row into units of at most maxMonths.
func Expand(rows []Row, maxMonths int) ([]Unit, error) {
	var units []Unit
	for _, row := range rows {
		chunks, err := daterange.Subdivide(row.Range.Start, row.Range.End, maxMonths)
		if err != nil {
			return nil, fmt.Errorf("manifest line %d: %w", row.Line, err)
		}
		for _, c := range chunks {
			units = append(units, Unit{Row: row, Range: c})
		}
	}
	return units, nil
}

// Run processes every unit in order under a fresh batch id. Unit
// failures are recorded and the sweep continues.
func (r *Runner) Run(ctx context.Context, rows []Row, skipped int, p Params) (*Summary, error) {
	units, err := Expand(rows, p.MaxMonths)
	if err != nil {
		return nil, err
	}

	batchID := uuid.NewString()
	summary := &Summary{BatchID: batchID, RowsSkipped: skipped}
	r.log.Info("starting batch", "batch_id", batchID, "rows", len(rows), "units", len(units))

	for i, unit := range units {
		log := logging.UnitLogger(batchID, i+1)
		result := r.runUnit(ctx, batchID, unit, p, log)
		summary.Results = append(summary.Results, result)
		summary.ScenesFound += result.ScenesFound
		summary.ScenesSelected += result.ScenesSelected
		summary.QuotaSqKm += result.QuotaSqKm
	}

	r.log.Info("batch finished",
		"batch_id", batchID,
		"submitted", summary.Count(OutcomeSubmitted),
		"no_eligible_scenes", summary.Count(OutcomeNoEligible),
		"failed", summary.Count(OutcomeFailed),
		"rows_skipped", skipped,
		"quota_sqkm", summary.QuotaSqKm)
	return summary, nil
}

func (r *Runner) runUnit(ctx context.Context, batchID string, unit Unit, p Params, log *slog.Logger) UnitResult {
	result := UnitResult{Unit: unit}

	area, err := aoi.Load(unit.Row.AOIPath)
	if err != nil {
		log.Error("failed to load AOI", "path", unit.Row.AOIPath, "error", err)
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}
	if unit.Row.Name != "" {
		area.Name = aoi.NormalizeName(unit.Row.Name)
	}
	result.AOIName = area.Name

	res, err := r.submitter.Submit(ctx, order.Request{
		AOI:            area,
		Range:          unit.Range,
		Cadence:        p.Cadence,
		MinCoveragePct: p.MinCoveragePct,
		CloudCoverMax:  p.CloudCoverMax,
		BundleOverride: p.BundleOverride,
		EightBand:      p.EightBand,
		BatchID:        batchID,
		DryRun:         p.DryRun,
	})
	if err != nil {
		result.Err = err
		result.Outcome = classify(err)
		if result.Outcome == OutcomeNoEligible {
			log.Info("no eligible scenes", "aoi", area.Name, "range", unit.Range.String())
		} else {
			log.Error("unit failed", "aoi", area.Name, "range", unit.Range.String(), "error", err)
		}
		return result
	}

	result.Outcome = OutcomeSubmitted
	result.OrderID = res.OrderID
	result.ScenesFound = res.ScenesFound
	result.ScenesSelected = res.ScenesSelected
	result.QuotaSqKm = res.QuotaSqKm
	return result
}

// classify maps submission errors onto outcome categories. Empty
// search results and below-threshold results are both expected
// conditions, not failures.
func classify(err error) Outcome {
	if errors.Is(err, selector.ErrNoScenes) || errors.Is(err, selector.ErrNoneEligible) {
		return OutcomeNoEligible
	}
	return OutcomeFailed
}
