package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/order"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/selector"
)

const squareGeoJSON = `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`

func writeAOI(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".geojson")
	require.NoError(t, os.WriteFile(path, []byte(squareGeoJSON), 0644))
	return path
}

type scriptedSubmitter struct {
	errs  []error // one per call, nil means accept
	calls []order.Request
}

func (s *scriptedSubmitter) Submit(_ context.Context, req order.Request) (*order.Result, error) {
	i := len(s.calls)
	s.calls = append(s.calls, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return &order.Result{
		OrderID:        fmt.Sprintf("order-%d", i+1),
		ScenesFound:    5,
		ScenesSelected: 2,
		QuotaSqKm:      100,
	}, nil
}

func TestReadManifestSkipsMalformedDates(t *testing.T) {
	manifest := strings.Join([]string{
		"aoi_path,start_date,end_date",
		"/tmp/a.geojson,2024-01-01,2024-02-01",
		"/tmp/b.geojson,not-a-date,2024-02-01",
		"/tmp/c.geojson,2024-03-01,2024-04-01",
	}, "\n")

	rows, skipped, err := ReadManifest(strings.NewReader(manifest))
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, rows, 2)
	// The row after the malformed one is still processed.
	assert.Equal(t, "/tmp/a.geojson", rows[0].AOIPath)
	assert.Equal(t, "/tmp/c.geojson", rows[1].AOIPath)
	assert.Equal(t, 4, rows[1].Line)
}

func TestReadManifestRequiresColumns(t *testing.T) {
	_, _, err := ReadManifest(strings.NewReader("aoi_path,start_date\nx,2024-01-01"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end_date")
}

func TestExpandSubdividesLongRanges(t *testing.T) {
	manifest := "aoi_path,start_date,end_date\n/tmp/a.geojson,2020-01-15,2021-03-01"
	rows, _, err := ReadManifest(strings.NewReader(manifest))
	require.NoError(t, err)

	units, err := Expand(rows, 6)
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, "2020-01-15..2020-07-14", units[0].Range.String())
	assert.Equal(t, "2020-07-15..2021-01-14", units[1].Range.String())
	assert.Equal(t, "2021-01-15..2021-03-01", units[2].Range.String())
	for _, u := range units {
		assert.Equal(t, rows[0].Line, u.Row.Line)
	}
}

func TestRunClassifiesOutcomesAndContinues(t *testing.T) {
	aoiPath := writeAOI(t, "AOI_rio_grande")
	manifest := fmt.Sprintf("aoi_path,start_date,end_date\n%s,2024-01-01,2024-01-31\n%s,2024-02-01,2024-02-28\n%s,2024-03-01,2024-03-31",
		aoiPath, aoiPath, aoiPath)
	rows, skipped, err := ReadManifest(strings.NewReader(manifest))
	require.NoError(t, err)

	sub := &scriptedSubmitter{errs: []error{
		nil,
		fmt.Errorf("select: %w", selector.ErrNoneEligible),
		errors.New("connection reset"),
	}}
	runner := NewRunner(sub)

	summary, err := runner.Run(context.Background(), rows, skipped, Params{
		MaxMonths:      6,
		Cadence:        selector.CadenceWeekly,
		MinCoveragePct: 99,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, summary.BatchID)
	require.Len(t, summary.Results, 3)
	assert.Equal(t, 1, summary.Count(OutcomeSubmitted))
	assert.Equal(t, 1, summary.Count(OutcomeNoEligible))
	assert.Equal(t, 1, summary.Count(OutcomeFailed))

	// Every unit rides the same batch id so the fetch sweep can find
	// them later.
	require.Len(t, sub.calls, 3)
	for _, call := range sub.calls {
		assert.Equal(t, summary.BatchID, call.BatchID)
	}

	// Totals only count the accepted unit.
	assert.Equal(t, 5, summary.ScenesFound)
	assert.Equal(t, 2, summary.ScenesSelected)
	assert.InDelta(t, 100, summary.QuotaSqKm, 0.01)

	// AOI names come out normalized.
	assert.Equal(t, "rio_grande", summary.Results[0].AOIName)
}

func TestRunNameColumnOverridesAOIName(t *testing.T) {
	aoiPath := writeAOI(t, "AOI_rio_grande")
	manifest := fmt.Sprintf("aoi_path,name,start_date,end_date\n%s,DrySpy_AOI_pecos_north,2024-01-01,2024-01-31", aoiPath)
	rows, skipped, err := ReadManifest(strings.NewReader(manifest))
	require.NoError(t, err)

	runner := NewRunner(&scriptedSubmitter{})
	summary, err := runner.Run(context.Background(), rows, skipped, Params{
		MaxMonths: 6, Cadence: selector.CadenceWeekly, MinCoveragePct: 99,
	})
	require.NoError(t, err)
	assert.Equal(t, "pecos", summary.Results[0].AOIName)
}

func TestRunUnloadableAOIIsAFailedUnit(t *testing.T) {
	manifest := "aoi_path,start_date,end_date\n/nonexistent/missing.geojson,2024-01-01,2024-01-31"
	rows, skipped, err := ReadManifest(strings.NewReader(manifest))
	require.NoError(t, err)

	runner := NewRunner(&scriptedSubmitter{})
	summary, err := runner.Run(context.Background(), rows, skipped, Params{
		MaxMonths: 6, Cadence: selector.CadenceWeekly, MinCoveragePct: 99,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Count(OutcomeFailed))
	require.Error(t, summary.Results[0].Err)
}
