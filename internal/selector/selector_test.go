package selector

import (
	"testing"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/aoi"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/planet"
)

const (
	fullSquare = `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`
	leftHalf   = `{"type":"Polygon","coordinates":[[[0,0],[0.5,0],[0.5,1],[0,1],[0,0]]]}`
	quarter    = `{"type":"Polygon","coordinates":[[[0,0],[0.5,0],[0.5,0.5],[0,0.5],[0,0]]]}`
)

func testAOI(t *testing.T) *aoi.AOI {
	t.Helper()
	a, err := aoi.FromGeoJSON([]byte(fullSquare), "test")
	require.NoError(t, err)
	return a
}

func footprint(t *testing.T, geojson string) geom.Geometry {
	t.Helper()
	g, err := geom.UnmarshalGeoJSON([]byte(geojson))
	require.NoError(t, err)
	return g
}

func scene(t *testing.T, id, acquired, geojson string) planet.Scene {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, acquired)
	require.NoError(t, err)
	return planet.Scene{ID: id, Acquired: ts, Footprint: footprint(t, geojson)}
}

func TestCoverageBoundsAndMonotonicity(t *testing.T) {
	a := testAOI(t)

	full, err := Coverage(a, footprint(t, fullSquare))
	require.NoError(t, err)
	half, err := Coverage(a, footprint(t, leftHalf))
	require.NoError(t, err)
	qtr, err := Coverage(a, footprint(t, quarter))
	require.NoError(t, err)

	assert.InDelta(t, 100, full, 0.01)
	assert.InDelta(t, 50, half, 0.5)
	assert.InDelta(t, 25, qtr, 0.5)
	// Larger intersections always score higher.
	assert.Greater(t, full, half)
	assert.Greater(t, half, qtr)
	for _, v := range []float64{full, half, qtr} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestSelectWinnerPerInterval(t *testing.T) {
	a := testAOI(t)
	scenes := []planet.Scene{
		scene(t, "half-early", "2024-03-12T10:00:00Z", leftHalf),
		scene(t, "full-late", "2024-03-14T10:00:00Z", fullSquare),
		scene(t, "full-next-week", "2024-03-18T10:00:00Z", fullSquare),
	}

	sel, err := Select(a, scenes, Params{Cadence: CadenceWeekly, MinCoveragePct: 40})
	require.NoError(t, err)
	require.Len(t, sel.Winners, 2)
	assert.Equal(t, 3, sel.TotalFound)

	// Week of 2024-03-10: the full-coverage scene beats the earlier
	// half-coverage one.
	assert.Equal(t, "2024-03-10", sel.Winners[0].IntervalKey)
	assert.Equal(t, "full-late", sel.Winners[0].Scene.ID)
	assert.Equal(t, "2024-03-17", sel.Winners[1].IntervalKey)
	assert.Equal(t, []string{"full-late", "full-next-week"}, sel.SceneIDs())

	// Winner coverage dominates every sibling in its bucket.
	assert.GreaterOrEqual(t, sel.Winners[0].CoveragePct, 50.0)
}

func TestSelectTieBreaks(t *testing.T) {
	a := testAOI(t)

	// Equal coverage: earliest acquisition wins.
	sel, err := Select(a, []planet.Scene{
		scene(t, "b", "2024-03-14T12:00:00Z", fullSquare),
		scene(t, "a", "2024-03-14T08:00:00Z", fullSquare),
	}, Params{Cadence: CadenceWeekly, MinCoveragePct: 99})
	require.NoError(t, err)
	require.Len(t, sel.Winners, 1)
	assert.Equal(t, "a", sel.Winners[0].Scene.ID)

	// Equal coverage and timestamp: lowest id wins.
	sel, err = Select(a, []planet.Scene{
		scene(t, "zz", "2024-03-14T08:00:00Z", fullSquare),
		scene(t, "aa", "2024-03-14T08:00:00Z", fullSquare),
	}, Params{Cadence: CadenceWeekly, MinCoveragePct: 99})
	require.NoError(t, err)
	assert.Equal(t, "aa", sel.Winners[0].Scene.ID)
}

func TestSelectInputOrderInvariance(t *testing.T) {
	a := testAOI(t)
	scenes := []planet.Scene{
		scene(t, "s1", "2024-03-11T10:00:00Z", fullSquare),
		scene(t, "s2", "2024-03-12T10:00:00Z", leftHalf),
		scene(t, "s3", "2024-03-19T10:00:00Z", fullSquare),
		scene(t, "s4", "2024-03-20T10:00:00Z", fullSquare),
	}
	reversed := make([]planet.Scene, len(scenes))
	for i, s := range scenes {
		reversed[len(scenes)-1-i] = s
	}

	p := Params{Cadence: CadenceWeekly, MinCoveragePct: 40}
	forward, err := Select(a, scenes, p)
	require.NoError(t, err)
	backward, err := Select(a, reversed, p)
	require.NoError(t, err)
	assert.Equal(t, forward.SceneIDs(), backward.SceneIDs())
}

func TestSelectEmptyConditionsAreDistinct(t *testing.T) {
	a := testAOI(t)

	_, err := Select(a, nil, Params{Cadence: CadenceWeekly, MinCoveragePct: 99})
	assert.ErrorIs(t, err, ErrNoScenes)

	_, err = Select(a, []planet.Scene{
		scene(t, "tiny", "2024-03-14T10:00:00Z", quarter),
	}, Params{Cadence: CadenceWeekly, MinCoveragePct: 99})
	assert.ErrorIs(t, err, ErrNoneEligible)
	assert.NotErrorIs(t, err, ErrNoScenes)
}

func TestSelectCadenceKeys(t *testing.T) {
	a := testAOI(t)
	scenes := []planet.Scene{
		scene(t, "s1", "2024-03-11T10:00:00Z", fullSquare),
		scene(t, "s2", "2024-03-12T10:00:00Z", fullSquare),
		scene(t, "s3", "2024-03-25T10:00:00Z", fullSquare),
	}

	daily, err := Select(a, scenes, Params{Cadence: CadenceDaily, MinCoveragePct: 99})
	require.NoError(t, err)
	assert.Len(t, daily.Winners, 3)

	weekly, err := Select(a, scenes, Params{Cadence: CadenceWeekly, MinCoveragePct: 99})
	require.NoError(t, err)
	assert.Len(t, weekly.Winners, 2)

	monthly, err := Select(a, scenes, Params{Cadence: CadenceMonthly, MinCoveragePct: 99})
	require.NoError(t, err)
	require.Len(t, monthly.Winners, 1)
	assert.Equal(t, "2024-03", monthly.Winners[0].IntervalKey)
	assert.Equal(t, "s1", monthly.Winners[0].Scene.ID)
}

func TestParseCadence(t *testing.T) {
	for _, ok := range []string{"daily", "weekly", "monthly"} {
		_, err := ParseCadence(ok)
		assert.NoError(t, err)
	}
	_, err := ParseCadence("fortnightly")
	assert.Error(t, err)
}
