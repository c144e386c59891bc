// Package selector scores candidate scenes against an AOI and picks
// one winner per cadence interval.
package selector

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/aoi"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/daterange"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/planet"
)

// Cadence is the temporal bucketing granularity.
type Cadence string

// Supported cadences.
const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// ParseCadence validates a cadence string.
func ParseCadence(s string) (Cadence, error) {
	switch Cadence(s) {
	case CadenceDaily, CadenceWeekly, CadenceMonthly:
		return Cadence(s), nil
	}
	return "", fmt.Errorf("invalid cadence %q (want daily, weekly or monthly)", s)
}

var (
	// ErrNoScenes means the search returned zero candidates.
	ErrNoScenes = errors.New("no scenes returned by search")

	// ErrNoneEligible means candidates were returned but none met the
	// coverage threshold. Never conflated with ErrNoScenes.
	ErrNoneEligible = errors.New("no scenes met the coverage threshold")
)

// Params configures a selection run. MinCoveragePct is explicit
// configuration, never a package constant.
type Params struct {
	Cadence        Cadence
	MinCoveragePct float64
}

// Candidate is a scene with its computed coverage and bucket.
type Candidate struct {
	Scene       planet.Scene
	CoveragePct float64
	IntervalKey string
}

// Selection holds the per-interval winners, sorted by interval key.
type Selection struct {
	Winners    []Candidate
	TotalFound int // candidates seen before threshold filtering
}

// SceneIDs returns the winning scene ids in interval order.
func (s *Selection) SceneIDs() []string {
	ids := make([]string, len(s.Winners))
	for i, w := range s.Winners {
		ids[i] = w.Scene.ID
	}
	return ids
}

// Select filters scenes by coverage and resolves exactly one winner per
// populated interval key. The result is deterministic for identical
// input regardless of input order: winners are ranked by coverage,
// then earliest acquisition, then scene id.
func Select(area *aoi.AOI, scenes []planet.Scene, p Params) (*Selection, error) {
	if len(scenes) == 0 {
		return nil, ErrNoScenes
	}

	buckets := make(map[string][]Candidate)
	for _, sc := range scenes {
		cov, err := Coverage(area, sc.Footprint)
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", sc.ID, err)
		}
		if cov < p.MinCoveragePct {
			continue
		}
		key := intervalKey(p.Cadence, sc.Acquired)
		buckets[key] = append(buckets[key], Candidate{
			Scene:       sc,
			CoveragePct: cov,
			IntervalKey: key,
		})
	}
	if len(buckets) == 0 {
		return nil, ErrNoneEligible
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	winners := make([]Candidate, 0, len(keys))
	for _, k := range keys {
		winners = append(winners, pickWinner(buckets[k]))
	}
	return &Selection{Winners: winners, TotalFound: len(scenes)}, nil
}

func pickWinner(group []Candidate) Candidate {
	best := group[0]
	for _, c := range group[1:] {
		if c.CoveragePct > best.CoveragePct {
			best = c
			continue
		}
		if c.CoveragePct < best.CoveragePct {
			continue
		}
		if c.Scene.Acquired.Before(best.Scene.Acquired) {
			best = c
			continue
		}
		if c.Scene.Acquired.Equal(best.Scene.Acquired) && c.Scene.ID < best.Scene.ID {
			best = c
		}
	}
	return best
}

// Coverage returns the percentage of the AOI covered by a footprint,
// measured on the equal-area plane. Always within [0, 100].
func Coverage(area *aoi.AOI, footprint geom.Geometry) (float64, error) {
	projected, err := aoi.ProjectEqualArea(footprint)
	if err != nil {
		return 0, fmt.Errorf("project footprint: %w", err)
	}
	overlap, err := geom.Intersection(projected, area.EqualArea)
	if err != nil {
		return 0, fmt.Errorf("intersect footprint with AOI: %w", err)
	}
	pct := 100 * overlap.Area() / area.AreaSqKm
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}

func intervalKey(c Cadence, acquired time.Time) string {
	switch c {
	case CadenceDaily:
		return acquired.Format("2006-01-02")
	case CadenceWeekly:
		return daterange.WeekStart(acquired).Format("2006-01-02")
	default:
		return acquired.Format("2006-01")
	}
}
