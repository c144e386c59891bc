// Package aoi loads areas of interest from GeoJSON and measures them.
//
// Geometry arrives in geographic coordinates (lon/lat) and is kept
// that way for catalog filtering. Areas are measured after projecting
// to a Lambert cylindrical equal-area plane so that square-kilometre
// figures do not depend on latitude.
package aoi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/peterstace/simplefeatures/geom"
)

// Mean Earth radius in kilometres.
const earthRadiusKm = 6371.0088

var (
	// ErrNotPolygonal is returned when the input geometry is not a
	// polygon or multipolygon.
	ErrNotPolygonal = errors.New("AOI geometry is not polygonal")

	// ErrEmptyAOI is returned when the input contains no usable geometry.
	ErrEmptyAOI = errors.New("AOI contains no geometry")
)

var (
	namePrefix = regexp.MustCompile(`^(DrySpy_)?AOI_`)
	nameSuffix = regexp.MustCompile(`(?i)_(central|north|south|east|west)$`)
)

// AOI is a named area of interest.
type AOI struct {
	Name      string
	Geometry  geom.Geometry // geographic CRS, for filtering and clipping
	EqualArea geom.Geometry // equal-area plane, for measurement
	AreaSqKm  float64
}

// NormalizeName strips the tooling prefixes and compass-direction
// suffixes that AOI files accumulate.
func NormalizeName(raw string) string {
	cleaned := namePrefix.ReplaceAllString(raw, "")
	return nameSuffix.ReplaceAllString(cleaned, "")
}

// Load reads a GeoJSON file and returns the union of its features as a
// single AOI named after the file.
func Load(path string) (*AOI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read AOI %s: %w", path, err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return FromGeoJSON(data, NormalizeName(stem))
}

// FromGeoJSON builds an AOI from GeoJSON bytes. FeatureCollections and
// Features are unioned into one geometry; bare geometries are used
// directly.
func FromGeoJSON(data []byte, name string) (*AOI, error) {
	g, err := parseGeoJSON(data)
	if err != nil {
		return nil, err
	}
	if g.IsEmpty() {
		return nil, ErrEmptyAOI
	}
	if g.Type() != geom.TypePolygon && g.Type() != geom.TypeMultiPolygon {
		return nil, fmt.Errorf("%w: got %s", ErrNotPolygonal, g.Type())
	}

	projected, err := ProjectEqualArea(g)
	if err != nil {
		return nil, fmt.Errorf("project AOI %s: %w", name, err)
	}
	area := projected.Area()
	if area <= 0 {
		return nil, fmt.Errorf("%w: zero area", ErrEmptyAOI)
	}

	return &AOI{
		Name:      name,
		Geometry:  g,
		EqualArea: projected,
		AreaSqKm:  area,
	}, nil
}

func parseGeoJSON(data []byte) (geom.Geometry, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return geom.Geometry{}, fmt.Errorf("parse GeoJSON: %w", err)
	}

	switch envelope.Type {
	case "FeatureCollection":
		var fc geom.GeoJSONFeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return geom.Geometry{}, fmt.Errorf("parse feature collection: %w", err)
		}
		if len(fc) == 0 {
			return geom.Geometry{}, ErrEmptyAOI
		}
		union := fc[0].Geometry
		for _, f := range fc[1:] {
			var err error
			union, err = geom.Union(union, f.Geometry)
			if err != nil {
				return geom.Geometry{}, fmt.Errorf("union features: %w", err)
			}
		}
		return union, nil
	case "Feature":
		var f geom.GeoJSONFeature
		if err := json.Unmarshal(data, &f); err != nil {
			return geom.Geometry{}, fmt.Errorf("parse feature: %w", err)
		}
		return f.Geometry, nil
	default:
		g, err := geom.UnmarshalGeoJSON(data)
		if err != nil {
			return geom.Geometry{}, fmt.Errorf("parse geometry: %w", err)
		}
		return g, nil
	}
}

// ProjectEqualArea maps geographic coordinates onto a Lambert
// cylindrical equal-area plane with units of kilometres.
func ProjectEqualArea(g geom.Geometry) (geom.Geometry, error) {
	return g.TransformXY(func(p geom.XY) geom.XY {
		return geom.XY{
			X: earthRadiusKm * p.X * math.Pi / 180,
			Y: earthRadiusKm * math.Sin(p.Y*math.Pi/180),
		}
	}), nil
}
