package review

import (
	"net/url"
	"strings"

	"github.com/sells-group/sales-tracker/internal/model"
)

// Listing link defaults.
const (
	DefaultListingBaseURL = "https://www.domain.com.au"
	DefaultListingState   = "NSW"
)

// ListingLinks builds the verification link shown next to a pending sale.
type ListingLinks struct {
	BaseURL string
	State   string
}

// URL returns stored when present, otherwise a search-style URL derived from
// the address: <base>/<street-suburb-state>, lower case, spaces as '-'.
func (l ListingLinks) URL(stored *string, a model.Address) string {
	if stored != nil && strings.TrimSpace(*stored) != "" {
		return strings.TrimSpace(*stored)
	}
	base := strings.TrimRight(l.BaseURL, "/")
	if base == "" {
		base = DefaultListingBaseURL
	}
	state := l.State
	if state == "" {
		state = DefaultListingState
	}

	term := strings.ToLower(strings.Join(strings.Fields(
		a.StreetAddress()+" "+a.Suburb+" "+state), "-"))
	segments := strings.Split(term, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return base + "/" + strings.Join(segments, "/")
}
