package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempLedger(t *testing.T) *Ledger {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "orders.json"))
}

func TestAppendAndFind(t *testing.T) {
	l := tempLedger(t)

	rec := Record{
		OrderID:      "order-1",
		AOIName:      "rio_grande",
		OrderType:    OrderTypeScene,
		StartDate:    "2024-03-01",
		EndDate:      "2024-03-31",
		Bands:        4,
		SearchBundle: "ortho_analytic_4b_sr",
		OrderBundle:  "analytic_sr_udm2",
		AreaSqKm:     123.4,
	}
	require.NoError(t, l.Append(rec))

	got, err := l.Find("order-1")
	require.NoError(t, err)
	assert.Equal(t, "rio_grande", got.AOIName)
	assert.Equal(t, "ortho_analytic_4b_sr", got.SearchBundle)
	assert.Equal(t, "analytic_sr_udm2", got.OrderBundle)
	assert.False(t, got.SubmittedAt.IsZero())

	_, err = l.Find("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendPreservesExistingRecords(t *testing.T) {
	l := tempLedger(t)

	first := Record{OrderID: "order-1", SubmittedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, l.Append(first))
	require.NoError(t, l.Append(Record{OrderID: "order-2"}))

	all := l.All()
	require.Len(t, all, 2)
	// Earlier entries are untouched by later appends.
	assert.Equal(t, "order-1", all[0].OrderID)
	assert.Equal(t, first.SubmittedAt, all[0].SubmittedAt)
	assert.Equal(t, "order-2", all[1].OrderID)
}

func TestFindBatch(t *testing.T) {
	l := tempLedger(t)
	require.NoError(t, l.Append(Record{OrderID: "a", BatchID: "batch-1"}))
	require.NoError(t, l.Append(Record{OrderID: "b", BatchID: "batch-2"}))
	require.NoError(t, l.Append(Record{OrderID: "c", BatchID: "batch-1"}))

	batch := l.FindBatch("batch-1")
	require.Len(t, batch, 2)
	assert.Equal(t, "a", batch[0].OrderID)
	assert.Equal(t, "c", batch[1].OrderID)
	assert.Empty(t, l.FindBatch("batch-404"))
}

func TestCorruptLedgerDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	l := Open(path)
	assert.Empty(t, l.All())

	// Appending over a corrupt ledger starts fresh instead of failing.
	require.NoError(t, l.Append(Record{OrderID: "order-1"}))
	all := l.All()
	require.Len(t, all, 1)
	assert.Equal(t, "order-1", all[0].OrderID)
}

func TestAppendRejectsEmptyOrderID(t *testing.T) {
	l := tempLedger(t)
	assert.Error(t, l.Append(Record{}))
	assert.Empty(t, l.All())
}
