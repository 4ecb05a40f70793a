// Package classify decides which authoritative sales are auto-excluded from
// human review and records a classification row for each.
package classify

import (
	"fmt"
	"strings"

	"github.com/sells-group/sales-tracker/internal/model"
)

// Default rule values.
var (
	DefaultAllowedZonings  = []string{"R2", "R3"}
	DefaultExcludeKeywords = []string{"duplex", "dual occ", "torrens", "brand new", "just completed"}
)

const DefaultYearBuiltCutoff = 2010

// KeywordReason is the exclusion reason for a keyword hit.
const KeywordReason = "existing duplex or new build (description keywords)"

// Rules configures auto-exclusion.
type Rules struct {
	AllowedZonings  []string `yaml:"allowed_zonings" mapstructure:"allowed_zonings"`
	YearBuiltCutoff int      `yaml:"year_built_cutoff" mapstructure:"year_built_cutoff"`
	ExcludeKeywords []string `yaml:"exclude_keywords" mapstructure:"exclude_keywords"`
}

// DefaultRules returns the stock rule set.
func DefaultRules() Rules {
	return Rules{
		AllowedZonings:  append([]string(nil), DefaultAllowedZonings...),
		YearBuiltCutoff: DefaultYearBuiltCutoff,
		ExcludeKeywords: append([]string(nil), DefaultExcludeKeywords...),
	}
}

// Classify evaluates the rules in priority order; the first hit wins.
// Unknown attributes never exclude. Classify never returns a decided outcome.
func (r Rules) Classify(e model.Enrichment) model.Outcome {
	if e.Zoning != nil {
		if z := strings.ToUpper(strings.TrimSpace(*e.Zoning)); z != "" && !r.zoningAllowed(z) {
			return model.Excluded(fmt.Sprintf("zoning not allowed (%s)", z))
		}
	}
	if e.YearBuilt != nil && r.YearBuiltCutoff > 0 && *e.YearBuilt > r.YearBuiltCutoff {
		return model.Excluded(fmt.Sprintf("modern build (%d)", *e.YearBuilt))
	}
	if e.HasKeywords {
		return model.Excluded(KeywordReason)
	}
	return model.Pending()
}

// ScanKeywords reports whether text contains any exclusion keyword,
// case-insensitively.
func (r Rules) ScanKeywords(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range r.ExcludeKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (r Rules) zoningAllowed(zone string) bool {
	for _, z := range r.AllowedZonings {
		if strings.EqualFold(strings.TrimSpace(z), zone) {
			return true
		}
	}
	return false
}
