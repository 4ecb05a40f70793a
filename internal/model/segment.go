package model

import (
	"strings"
	"time"
)

// Segment is a tracked market segment.
type Segment struct {
	Code          string       `json:"code" yaml:"code" mapstructure:"code"`
	Name          string       `json:"name" yaml:"name" mapstructure:"name"`
	Suburbs       []string     `json:"suburbs" yaml:"suburbs" mapstructure:"suburbs"`
	PropertyType  PropertyType `json:"property_type" yaml:"property_type" mapstructure:"property_type"`
	AreaMin       *float64     `json:"area_min,omitempty" yaml:"area_min" mapstructure:"area_min"`
	AreaMax       *float64     `json:"area_max,omitempty" yaml:"area_max" mapstructure:"area_max"`
	RequireReview bool         `json:"require_review" yaml:"require_review" mapstructure:"require_review"`
}

// Contains reports whether a sale in suburb with type t falls in the segment.
func (s Segment) Contains(suburb string, t PropertyType) bool {
	if t != s.PropertyType {
		return false
	}
	suburb = strings.ToLower(strings.TrimSpace(suburb))
	for _, sub := range s.Suburbs {
		if strings.ToLower(strings.TrimSpace(sub)) == suburb {
			return true
		}
	}
	return false
}

// Filter builds the sale filter for this segment over [from, to].
func (s Segment) Filter(from, to time.Time) SaleFilter {
	suburbs := make([]string, 0, len(s.Suburbs))
	for _, sub := range s.Suburbs {
		suburbs = append(suburbs, strings.ToLower(strings.TrimSpace(sub)))
	}
	return SaleFilter{
		Suburbs:      suburbs,
		PropertyType: s.PropertyType,
		AreaMin:      s.AreaMin,
		AreaMax:      s.AreaMax,
		From:         from,
		To:           to,
	}
}

// SaleFilter restricts authoritative sales. Suburbs are matched
// case-insensitively; zero From/To means unbounded.
type SaleFilter struct {
	Suburbs      []string
	PropertyType PropertyType
	AreaMin      *float64
	AreaMax      *float64
	From         time.Time
	To           time.Time
}

// PriceMode selects which authoritative rows feed an aggregate.
type PriceMode int

const (
	// PriceModeAll ignores classification entirely.
	PriceModeAll PriceMode = iota
	// PriceModeReviewed only reads rows a human marked comparable.
	PriceModeReviewed
)

// ModeFor returns the price mode a segment opted into.
func ModeFor(s Segment) PriceMode {
	if s.RequireReview {
		return PriceModeReviewed
	}
	return PriceModeAll
}

// ProvisionalFilter narrows the unconfirmed provisional listing for display.
type ProvisionalFilter struct {
	Suburb       string
	PropertyType PropertyType
	PriceMin     *int64
	PriceMax     *int64
}

// SalePrice is one authoritative price observation fed to aggregation.
type SalePrice struct {
	SaleID       string    `json:"sale_id"`
	ContractDate time.Time `json:"contract_date"`
	Price        int64     `json:"price"`
}
