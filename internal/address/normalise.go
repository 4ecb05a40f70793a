// Package address canonicalises structured street addresses into keys that
// can be compared byte-for-byte across data sources.
package address

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/sales-tracker/internal/model"
)

// Delimiter separates key fields. Occurrences inside a field are escaped.
const Delimiter = "|"

// streetTypes maps street-type spellings to a canonical abbreviation.
// Only the final token of a street name is looked up.
var streetTypes = map[string]string{
	"street": "st", "st": "st", "str": "st",
	"road": "rd", "rd": "rd",
	"avenue": "ave", "ave": "ave", "av": "ave",
	"drive": "dr", "dr": "dr", "dve": "dr",
	"place": "pl", "pl": "pl",
	"lane": "ln", "la": "ln", "ln": "ln",
	"court": "ct", "ct": "ct", "crt": "ct",
	"crescent": "cres", "cres": "cres", "cr": "cres",
	"parade": "pde", "pde": "pde",
	"highway": "hwy", "hwy": "hwy",
	"terrace": "tce", "tce": "tce", "ter": "tce",
	"close": "cl", "cl": "cl",
	"way": "way",
	"circuit": "cct", "cct": "cct",
	"boulevard": "bvd", "blvd": "bvd", "bvd": "bvd",
	"square": "sq", "sq": "sq",
	"esplanade": "esp", "esp": "esp",
	"grove": "gr", "gr": "gr",
}

var (
	unitPrefix    = regexp.MustCompile(`^(unit|apt|apartment|suite|flat|shop)\.?\s*`)
	unitTrailing  = regexp.MustCompile(`[,\s]+$`)
	unitInHouse   = regexp.MustCompile(`^(\d+[a-z]?)\s*/\s*(.+)$`)
	rangeDash     = regexp.MustCompile(`\s*[\x{2013}\x{2014}\x{2212}-]\s*`)
	streetPunct   = regexp.MustCompile(`[.,'"\x{2018}\x{2019}\x{201C}\x{201D}]+`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Key is a normalised address.
type Key string

// Normalise builds the canonical key "unit|house|street|suburb|postcode".
// It never fails: unrecognised tokens pass through, so odd input yields a
// key that simply matches nothing.
func Normalise(a model.Address) Key {
	fields := []string{
		Unit(a.Unit, a.HouseNumber),
		HouseNumber(a.HouseNumber),
		Street(a.StreetName),
		Suburb(a.Suburb),
		Postcode(a.Postcode),
	}
	for i, f := range fields {
		fields[i] = escape(f)
	}
	return Key(strings.Join(fields, Delimiter))
}

// Unit extracts the unit number from the explicit field, or from a
// "unit/house" house number. A missing unit is the empty string.
func Unit(unit, house string) string {
	if u := fold(unit); u != "" {
		u = unitPrefix.ReplaceAllString(u, "")
		return unitTrailing.ReplaceAllString(u, "")
	}
	if m := unitInHouse.FindStringSubmatch(fold(house)); m != nil {
		return m[1]
	}
	return ""
}

// HouseNumber drops a leading "unit/" and folds range separators to '-'.
func HouseNumber(house string) string {
	h := fold(house)
	if m := unitInHouse.FindStringSubmatch(h); m != nil {
		h = m[2]
	}
	return rangeDash.ReplaceAllString(h, "-")
}

// Street strips punctuation, collapses whitespace and canonicalises the
// trailing street-type token.
func Street(name string) string {
	s := streetPunct.ReplaceAllString(fold(name), "")
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	if canon, ok := streetTypes[words[len(words)-1]]; ok {
		words[len(words)-1] = canon
	}
	return strings.Join(words, " ")
}

// Suburb folds case and whitespace.
func Suburb(suburb string) string {
	return fold(suburb)
}

// Postcode removes all whitespace.
func Postcode(postcode string) string {
	return whitespaceRun.ReplaceAllString(fold(postcode), "")
}

// fold applies compatibility normalisation, Unicode case folding, trimming and
// whitespace collapsing.
func fold(s string) string {
	if s == "" {
		return ""
	}
	s = cases.Fold().String(norm.NFKC.String(s))
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

var escaper = strings.NewReplacer(`\`, `\\`, Delimiter, `\`+Delimiter)

func escape(s string) string {
	return escaper.Replace(s)
}
