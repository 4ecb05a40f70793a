package model

import (
	"encoding/json"
	"strings"
	"time"
)

// DateLayout is the civil-date layout used for sale and contract dates.
const DateLayout = "2006-01-02"

// PropertyType classifies a dwelling.
type PropertyType string

const (
	PropertyHouse PropertyType = "house"
	PropertyUnit  PropertyType = "unit"
	PropertyLand  PropertyType = "land"
	PropertyOther PropertyType = "other"
)

// Valid reports whether t is one of the known property types.
func (t PropertyType) Valid() bool {
	switch t {
	case PropertyHouse, PropertyUnit, PropertyLand, PropertyOther:
		return true
	}
	return false
}

// ProvisionalStatus is the lifecycle state of a provisional sale.
type ProvisionalStatus string

const (
	ProvisionalUnconfirmed ProvisionalStatus = "unconfirmed"
	ProvisionalConfirmed   ProvisionalStatus = "confirmed"
	// ProvisionalSuperseded is reserved; nothing in this module sets it.
	ProvisionalSuperseded ProvisionalStatus = "superseded"
)

// Address is a structured street address as delivered by a source.
type Address struct {
	Unit        string `json:"unit,omitempty"`
	HouseNumber string `json:"house_number"`
	StreetName  string `json:"street_name"`
	Suburb      string `json:"suburb"`
	Postcode    string `json:"postcode"`
}

// Locatable reports whether the address carries enough to identify a lot.
func (a Address) Locatable() bool {
	return strings.TrimSpace(a.HouseNumber) != "" && strings.TrimSpace(a.StreetName) != ""
}

// StreetAddress renders "[unit/]house street" for display.
func (a Address) StreetAddress() string {
	house := strings.TrimSpace(a.HouseNumber)
	if u := strings.TrimSpace(a.Unit); u != "" {
		house = u + "/" + house
	}
	return strings.TrimSpace(house + " " + strings.TrimSpace(a.StreetName))
}

// String renders "street address, suburb".
func (a Address) String() string {
	s := a.StreetAddress()
	if sub := strings.TrimSpace(a.Suburb); sub != "" {
		if s == "" {
			return sub
		}
		s += ", " + sub
	}
	return s
}

// ProvisionalRecord is what an ingest collaborator hands over for a
// provisional (unverified) sale observation.
type ProvisionalRecord struct {
	ExternalID   string          `json:"external_id"`
	SourceTag    string          `json:"source_tag"`
	Address      Address         `json:"address"`
	PropertyType PropertyType    `json:"property_type"`
	Price        *int64          `json:"price,omitempty"`
	SoldDate     *time.Time      `json:"sold_date,omitempty"`
	ListingURL   *string         `json:"listing_url,omitempty"`
	RawPayload   json.RawMessage `json:"raw_payload,omitempty"`
}

// ProvisionalSale is a stored provisional observation.
type ProvisionalSale struct {
	ID            string            `json:"id"`
	SourceTag     string            `json:"source_tag"`
	Address       Address           `json:"address"`
	PropertyType  PropertyType      `json:"property_type"`
	Price         *int64            `json:"price,omitempty"`
	SoldDate      *time.Time        `json:"sold_date,omitempty"`
	AddressKey    *string           `json:"address_key,omitempty"`
	MatchedSaleID *string           `json:"matched_sale_id,omitempty"`
	Status        ProvisionalStatus `json:"status"`
	ListingURL    *string           `json:"listing_url,omitempty"`
	RawPayload    json.RawMessage   `json:"raw_payload,omitempty"`
	IngestedAt    time.Time         `json:"ingested_at"`
}

// PriceWithheld reports whether the source did not disclose a price.
func (p ProvisionalSale) PriceWithheld() bool {
	return p.Price == nil
}

// AuthoritativeSale is a settled government-of-record transaction. The
// enrichment columns (ZoneCode, YearBuilt, Description, ListingURL) are filled
// by external collaborators and may be nil.
type AuthoritativeSale struct {
	ID           string       `json:"id"`
	Address      Address      `json:"address"`
	PropertyType PropertyType `json:"property_type"`
	ContractDate time.Time    `json:"contract_date"`
	Price        int64        `json:"price"`
	AreaSqm      *float64     `json:"area_sqm,omitempty"`
	ZoneCode     *string      `json:"zone_code,omitempty"`
	YearBuilt    *int         `json:"year_built,omitempty"`
	Description  *string      `json:"description,omitempty"`
	ListingURL   *string      `json:"listing_url,omitempty"`
}

// ParseDate parses a civil date in DateLayout as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

// CivilDate truncates t to UTC midnight.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the absolute number of whole days between two dates.
func DaysBetween(a, b time.Time) int {
	d := CivilDate(b).Sub(CivilDate(a)) / (24 * time.Hour)
	if d < 0 {
		d = -d
	}
	return int(d)
}
