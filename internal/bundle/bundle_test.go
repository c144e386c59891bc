package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePrecedence(t *testing.T) {
	cat := Default()

	// Override wins over everything else.
	ch, err := cat.Resolve(Request{Override: "visual", EightBand: true, StartYear: 2023})
	require.NoError(t, err)
	assert.Equal(t, "visual", ch.Name)

	// Four-band request ignores the cutoff year.
	ch, err = cat.Resolve(Request{StartYear: 2023})
	require.NoError(t, err)
	assert.Equal(t, 4, ch.Bands)
}

func TestResolveCutoffYear(t *testing.T) {
	cat := Default()

	// Eight-band before the cutoff falls back to four-band.
	ch, err := cat.Resolve(Request{EightBand: true, StartYear: cat.CutoffYear - 1})
	require.NoError(t, err)
	assert.Equal(t, 4, ch.Bands)

	// At the cutoff year the eight-band product is available.
	ch, err = cat.Resolve(Request{EightBand: true, StartYear: cat.CutoffYear})
	require.NoError(t, err)
	assert.Equal(t, 8, ch.Bands)
}

func TestCrosswalkIdentifiersDiffer(t *testing.T) {
	cat := Default()
	for _, name := range []string{cat.FourBand, cat.EightBand} {
		ch, err := cat.Lookup(name)
		require.NoError(t, err)
		assert.NotEmpty(t, ch.SearchAsset)
		assert.NotEmpty(t, ch.OrderBundle)
		assert.NotEqual(t, ch.SearchAsset, ch.OrderBundle,
			"search-time and order-time identifiers must not be conflated for %s", name)
	}
}

func TestResolveUnknownOverride(t *testing.T) {
	cat := Default()
	_, err := cat.Resolve(Request{Override: "pansharpened_unicorn"})
	assert.ErrorIs(t, err, ErrUnknownBundle)
}

func TestParseValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing cutoff", "four_band: a\neight_band: a\nchoices:\n  - {name: a, search_asset: s, order_bundle: o, bands: 4}\n"},
		{"no choices", "cutoff_year: 2022\nfour_band: a\neight_band: a\n"},
		{"bad default", "cutoff_year: 2022\nfour_band: nope\neight_band: a\nchoices:\n  - {name: a, search_asset: s, order_bundle: o, bands: 4}\n"},
		{"duplicate choice", "cutoff_year: 2022\nfour_band: a\neight_band: a\nchoices:\n  - {name: a, search_asset: s, order_bundle: o, bands: 4}\n  - {name: a, search_asset: s2, order_bundle: o2, bands: 8}\n"},
		{"empty ids", "cutoff_year: 2022\nfour_band: a\neight_band: a\nchoices:\n  - {name: a, search_asset: \"\", order_bundle: o, bands: 4}\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse([]byte(c.yaml))
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}
