package converter

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/iati-activity-converter/internal/config"
	"github.com/ginjaninja78/iati-activity-converter/internal/types"
)

// =============================================================================
// KEY DERIVATION
// =============================================================================
//
// Every row is keyed by its geography. The same chain decides the output
// group, the activity identifier and whether the award reports a recipient
// country or a recipient region, so those three can never disagree.
//
//   1. DAC regional code, as an integer      -> GeoRegional
//   2. ISO alpha code, verbatim              -> GeoISO
//   3. DAC country code 275                  -> GeoNamibia ("NA")
//   4. anything else                         -> GeoUnspecified ("998")
//
// =============================================================================

// UnspecifiedGeo is the "developing countries, unspecified" region code.
const UnspecifiedGeo = "998"

const (
	namibiaCountryCode = "275"
	namibiaISO         = "NA"
)

// GeoSource records which branch of the chain produced a geographic code.
type GeoSource int

const (
	GeoRegional GeoSource = iota
	GeoISO
	GeoNamibia
	GeoUnspecified
)

func (s GeoSource) String() string {
	switch s {
	case GeoRegional:
		return "regional"
	case GeoISO:
		return "iso"
	case GeoNamibia:
		return "namibia"
	default:
		return "unspecified"
	}
}

// Geography is a resolved geographic code.
type Geography struct {
	Code   string
	Source GeoSource
}

// IsCountry reports whether the code names a country rather than a region.
func (g Geography) IsCountry() bool {
	return g.Source == GeoISO || g.Source == GeoNamibia
}

// Keys are the identifiers derived from one row.
type Keys struct {
	Geo Geography

	// Composite identifies the hierarchy-1 activity.
	Composite string

	// Award identifies the hierarchy-3 award.
	Award string

	// Mechanism is the raw award/mechanism id the award id ends with.
	Mechanism string

	// Category is the two-digit sector category. It is part of Composite
	// only in sector-segmented key schemes.
	Category string
}

// Group returns the GroupKey.
func (k Keys) Group() string {
	return k.Geo.Code
}

// KeyDeriver computes Keys for rows of the primary and historical tables.
type KeyDeriver struct {
	orgCode string
	columns config.Columns
	scheme  config.KeyScheme
	markers map[string]bool
}

// NewKeyDeriver creates a KeyDeriver for a dataset revision.
func NewKeyDeriver(ds *config.DatasetConfig) *KeyDeriver {
	markers := make(map[string]bool, len(ds.MissingMarkers))
	for _, m := range ds.MissingMarkers {
		markers[m] = true
	}
	return &KeyDeriver{
		orgCode: ds.OrgCode,
		columns: ds.Columns,
		scheme:  ds.KeyScheme,
		markers: markers,
	}
}

// DeriveGeography runs the geographic fallback chain. It never fails.
func (d *KeyDeriver) DeriveGeography(row types.Row) Geography {
	if code, ok := integerString(row.Get(d.columns.DACRegionalCode)); ok {
		return Geography{Code: code, Source: GeoRegional}
	}

	if iso := row.Get(d.columns.ISOAlphaCode); !d.isMissing(iso) {
		return Geography{Code: iso.Text, Source: GeoISO}
	}

	if code, ok := integerString(row.Get(d.columns.DACCountryCode)); ok && code == namibiaCountryCode {
		return Geography{Code: namibiaISO, Source: GeoNamibia}
	}

	return Geography{Code: UnspecifiedGeo, Source: GeoUnspecified}
}

// Derive computes all keys of a row.
func (d *KeyDeriver) Derive(row types.Row) Keys {
	geo := d.DeriveGeography(row)

	category := d.category(row)
	composite := d.orgCode + "-" + geo.Code
	if d.scheme.SectorSegmented {
		composite += "-" + category
	}

	mechanism := row.Get(d.columns.AwardID).String()

	return Keys{
		Geo:       geo,
		Composite: composite,
		Award:     composite + "-" + mechanism,
		Mechanism: mechanism,
		Category:  category,
	}
}

// category returns the first two digits of the sector code.
func (d *KeyDeriver) category(row types.Row) string {
	code, ok := integerString(row.Get(d.columns.SectorCode))
	if !ok || len(code) < 2 || code[0] == '-' {
		return d.scheme.DefaultCategory
	}
	return code[:2]
}

func (d *KeyDeriver) isMissing(v types.Value) bool {
	return v.Missing || strings.TrimSpace(v.Text) == "" || d.markers[v.Text]
}

// CleanActivityID strips all whitespace from an award identifier. The results
// table is keyed this way.
func CleanActivityID(id string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, id)
}

// integerString coerces a numeric cell to its integer string, truncating
// any fraction ("298.0" -> "298"). Non-numeric values fail.
func integerString(v types.Value) (string, bool) {
	if v.Missing {
		return "", false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v.Text))
	if err != nil {
		return "", false
	}
	return d.Truncate(0).String(), true
}
