// Package bundle resolves product bundle choices and the crosswalk
// between search-time asset identifiers and order-time bundle
// identifiers. The two names refer to the same conceptual product but
// are not interchangeable on the wire, so they travel together.
package bundle

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed bundles.yaml
var defaultCatalogYAML []byte

var (
	// ErrUnknownBundle is returned when an override names no catalog entry.
	ErrUnknownBundle = errors.New("unknown product bundle")

	// ErrInvalidCatalog is returned when a catalog file fails validation.
	ErrInvalidCatalog = errors.New("invalid bundle catalog")
)

// Choice is one resolvable product bundle. SearchAsset filters the
// catalog search; OrderBundle goes into the order request.
type Choice struct {
	Name        string `yaml:"name"`
	SearchAsset string `yaml:"search_asset"`
	OrderBundle string `yaml:"order_bundle"`
	Bands       int    `yaml:"bands"`
}

// Catalog is the versioned bundle configuration. The cutoff year is
// deliberately external configuration: the eight-band product only
// exists for imagery acquired at or after that year.
type Catalog struct {
	CutoffYear int      `yaml:"cutoff_year"`
	FourBand   string   `yaml:"four_band"`
	EightBand  string   `yaml:"eight_band"`
	Choices    []Choice `yaml:"choices"`

	byName map[string]Choice
}

// Request carries the inputs of a bundle resolution.
type Request struct {
	Override  string // explicit bundle name, empty for defaults
	EightBand bool   // caller asked for the higher band count
	StartYear int    // first acquisition year of the order window
}

// Default returns the catalog shipped with the binary.
func Default() *Catalog {
	cat, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded bundle catalog is invalid: %v", err))
	}
	return cat
}

// LoadFile reads and validates a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse bundle catalog: %w", err)
	}
	if err := cat.validate(); err != nil {
		return nil, err
	}
	cat.byName = make(map[string]Choice, len(cat.Choices))
	for _, c := range cat.Choices {
		cat.byName[c.Name] = c
	}
	return &cat, nil
}

func (c *Catalog) validate() error {
	if c.CutoffYear <= 0 {
		return fmt.Errorf("%w: cutoff_year must be positive", ErrInvalidCatalog)
	}
	if len(c.Choices) == 0 {
		return fmt.Errorf("%w: no choices", ErrInvalidCatalog)
	}
	seen := make(map[string]bool)
	for _, ch := range c.Choices {
		if ch.Name == "" || ch.SearchAsset == "" || ch.OrderBundle == "" {
			return fmt.Errorf("%w: choice %q needs name, search_asset and order_bundle",
				ErrInvalidCatalog, ch.Name)
		}
		if ch.Bands <= 0 {
			return fmt.Errorf("%w: choice %q has no band count", ErrInvalidCatalog, ch.Name)
		}
		if seen[ch.Name] {
			return fmt.Errorf("%w: duplicate choice %q", ErrInvalidCatalog, ch.Name)
		}
		seen[ch.Name] = true
	}
	if !seen[c.FourBand] {
		return fmt.Errorf("%w: four_band default %q not in choices", ErrInvalidCatalog, c.FourBand)
	}
	if !seen[c.EightBand] {
		return fmt.Errorf("%w: eight_band default %q not in choices", ErrInvalidCatalog, c.EightBand)
	}
	return nil
}

// Lookup returns the choice with the given name.
func (c *Catalog) Lookup(name string) (Choice, error) {
	ch, ok := c.byName[name]
	if !ok {
		return Choice{}, fmt.Errorf("%w: %q", ErrUnknownBundle, name)
	}
	return ch, nil
}

// Resolve picks a bundle choice. Precedence: explicit override, then
// the four-band default, then the year-conditional default. Orders
// whose window starts before the cutoff year fall back to four-band
// because no eight-band product exists for them.
func (c *Catalog) Resolve(req Request) (Choice, error) {
	if req.Override != "" {
		return c.Lookup(req.Override)
	}
	if !req.EightBand {
		return c.Lookup(c.FourBand)
	}
	if req.StartYear >= c.CutoffYear {
		return c.Lookup(c.EightBand)
	}
	return c.Lookup(c.FourBand)
}
