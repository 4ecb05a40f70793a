package model

import (
	"strconv"
	"time"
)

// ReviewStatus is the stored tri-state review column.
type ReviewStatus string

const (
	ReviewPending       ReviewStatus = "pending"
	ReviewComparable    ReviewStatus = "comparable"
	ReviewNotComparable ReviewStatus = "not_comparable"
)

// Verdict is a human decision on a pending sale.
type Verdict string

const (
	VerdictComparable    Verdict = "comparable"
	VerdictNotComparable Verdict = "not_comparable"
)

// ParseVerdict accepts the stored spelling of a verdict.
func ParseVerdict(s string) (Verdict, bool) {
	switch Verdict(s) {
	case VerdictComparable, VerdictNotComparable:
		return Verdict(s), true
	}
	return "", false
}

// Status maps a verdict onto the review column.
func (v Verdict) Status() ReviewStatus {
	return ReviewStatus(v)
}

// OutcomeKind discriminates Outcome.
type OutcomeKind int

const (
	OutcomePending OutcomeKind = iota
	OutcomeExcluded
	OutcomeDecided
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeExcluded:
		return "excluded"
	case OutcomeDecided:
		return "decided"
	default:
		return "pending"
	}
}

// Outcome is the classification state of a sale: excluded with a reason,
// pending review, or decided by a human. UseInMedian is derived from it and
// never stored independently.
type Outcome struct {
	kind       OutcomeKind
	reason     string
	verdict    Verdict
	reviewedAt time.Time
}

// Pending returns an outcome awaiting human review.
func Pending() Outcome { return Outcome{kind: OutcomePending} }

// Excluded returns an auto-excluded outcome.
func Excluded(reason string) Outcome { return Outcome{kind: OutcomeExcluded, reason: reason} }

// Decided returns a human-reviewed outcome.
func Decided(v Verdict, at time.Time) Outcome {
	return Outcome{kind: OutcomeDecided, verdict: v, reviewedAt: at}
}

func (o Outcome) Kind() OutcomeKind { return o.kind }

// Reason is the exclusion reason, empty unless excluded.
func (o Outcome) Reason() string { return o.reason }

// Verdict returns the human verdict when decided.
func (o Outcome) Verdict() (Verdict, bool) {
	return o.verdict, o.kind == OutcomeDecided
}

// ReviewedAt returns the review time when decided.
func (o Outcome) ReviewedAt() (time.Time, bool) {
	return o.reviewedAt, o.kind == OutcomeDecided
}

// Status returns the stored review column for this outcome. Excluded rows
// keep the pending column value; the exclusion flag makes them terminal.
func (o Outcome) Status() ReviewStatus {
	if o.kind == OutcomeDecided {
		return o.verdict.Status()
	}
	return ReviewPending
}

// UseInMedian is true only for a human comparable verdict.
func (o Outcome) UseInMedian() bool {
	return o.kind == OutcomeDecided && o.verdict == VerdictComparable
}

// OutcomeFromColumns rebuilds an Outcome from stored columns.
func OutcomeFromColumns(excluded bool, reason *string, status ReviewStatus, reviewedAt *time.Time) Outcome {
	if excluded {
		r := ""
		if reason != nil {
			r = *reason
		}
		return Excluded(r)
	}
	switch status {
	case ReviewComparable, ReviewNotComparable:
		var at time.Time
		if reviewedAt != nil {
			at = *reviewedAt
		}
		return Decided(Verdict(status), at)
	}
	return Pending()
}

const (
	ZoningUnverified = "Zoning unverified"
	YearUnknown      = "Year unknown"
)

// Enrichment is the snapshot of classifier inputs resolved by external
// lookups. Nil means unknown.
type Enrichment struct {
	Zoning      *string `json:"zoning,omitempty"`
	YearBuilt   *int    `json:"year_built,omitempty"`
	HasKeywords bool    `json:"has_keywords"`
}

// ZoningLabel renders the zoning or its fallback.
func (e Enrichment) ZoningLabel() string {
	if e.Zoning == nil || *e.Zoning == "" {
		return ZoningUnverified
	}
	return *e.Zoning
}

// YearLabel renders the build year or its fallback.
func (e Enrichment) YearLabel() string {
	if e.YearBuilt == nil || *e.YearBuilt <= 0 {
		return YearUnknown
	}
	return "Built " + strconv.Itoa(*e.YearBuilt)
}

// SaleClassification is the per-sale review record.
type SaleClassification struct {
	SaleID       string     `json:"sale_id"`
	Address      string     `json:"address"`
	Enrichment   Enrichment `json:"enrichment"`
	Outcome      Outcome    `json:"-"`
	ReviewNotes  *string    `json:"review_notes,omitempty"`
	ListingURL   *string    `json:"listing_url,omitempty"`
	ReviewSentAt *time.Time `json:"review_sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UseInMedian is derived from the outcome.
func (c SaleClassification) UseInMedian() bool {
	return c.Outcome.UseInMedian()
}

// PendingReview is the display projection of a sale awaiting a verdict.
type PendingReview struct {
	SaleID       string     `json:"sale_id"`
	Address      Address    `json:"address"`
	Price        int64      `json:"price"`
	AreaSqm      *float64   `json:"area_sqm,omitempty"`
	ContractDate time.Time  `json:"contract_date"`
	Enrichment   Enrichment `json:"enrichment"`
	ListingURL   *string    `json:"listing_url,omitempty"`
}

// ReviewDigest is an ordered batch of pending sales sent for one decision pass.
type ReviewDigest struct {
	ID        string    `json:"id"`
	Segment   string    `json:"segment"`
	SaleIDs   []string  `json:"sale_ids"`
	CreatedAt time.Time `json:"created_at"`
}
