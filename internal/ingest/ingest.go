// Package ingest decodes provisional and authoritative sale feeds from JSON or
// CSV files into model records ready for the store.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-tracker/internal/model"
)

// Format is a feed file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", eris.Errorf("ingest: unsupported file type %q", filepath.Ext(path))
	}
}

// field holds a raw feed value. JSON numbers and strings both decode into
// it, so CSV and JSON feeds share the same cleaning rules.
type field string

func (f *field) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = field(s)
		return nil
	}
	*f = field(b)
	return nil
}

func (f *field) UnmarshalText(b []byte) error {
	*f = field(b)
	return nil
}

// provisionalRow is one provisional observation as it appears in a feed.
type provisionalRow struct {
	ExternalID   string `json:"external_id" csv:"external_id"`
	Unit         string `json:"unit" csv:"unit"`
	HouseNumber  string `json:"house_number" csv:"house_number"`
	StreetName   string `json:"street_name" csv:"street_name"`
	Suburb       string `json:"suburb" csv:"suburb"`
	Postcode     string `json:"postcode" csv:"postcode"`
	PropertyType string `json:"property_type" csv:"property_type"`
	Price        field  `json:"price" csv:"price"`
	SoldDate     string `json:"sold_date" csv:"sold_date"`
	ListingURL   string `json:"listing_url" csv:"listing_url"`
}

// authoritativeRow is one settled transaction as it appears in a feed.
type authoritativeRow struct {
	ID           string `json:"id" csv:"id"`
	Unit         string `json:"unit" csv:"unit"`
	HouseNumber  string `json:"house_number" csv:"house_number"`
	StreetName   string `json:"street_name" csv:"street_name"`
	Suburb       string `json:"suburb" csv:"suburb"`
	Postcode     string `json:"postcode" csv:"postcode"`
	PropertyType string `json:"property_type" csv:"property_type"`
	ContractDate string `json:"contract_date" csv:"contract_date"`
	Price        field  `json:"price" csv:"price"`
	AreaSqm      field  `json:"area_sqm" csv:"area_sqm"`
	ZoneCode     string `json:"zone_code" csv:"zone_code"`
	YearBuilt    field  `json:"year_built" csv:"year_built"`
	Description  string `json:"description" csv:"description"`
	ListingURL   string `json:"listing_url" csv:"listing_url"`
}

// RowError describes a problem with one feed row. Rows are numbered from 1.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string { return "row " + strconv.Itoa(e.Row) + ": " + e.Err.Error() }

// Report lists rows that were dropped and rows that were kept with a field
// cleared.
type Report struct {
	Skipped  []RowError
	Warnings []RowError
}

func (r *Report) skip(row int, err error) { r.Skipped = append(r.Skipped, RowError{Row: row, Err: err}) }

func (r *Report) warn(row int, errs []error) {
	for _, err := range errs {
		r.Warnings = append(r.Warnings, RowError{Row: row, Err: err})
	}
}

// feedRow pairs a decoded row with the bytes it came from.
type feedRow[T any] struct {
	row T
	raw json.RawMessage
	err error
}

// Provisional decodes a provisional feed. Every record is tagged with source
// and carries its original row as RawPayload. A price or sold date that does
// not parse is cleared with a warning; the record is still returned.
func Provisional(r io.Reader, format Format, source string) ([]model.ProvisionalRecord, Report, error) {
	var rep Report
	if strings.TrimSpace(source) == "" {
		return nil, rep, eris.New("ingest: source tag is required")
	}
	rows, err := decode[provisionalRow](r, format)
	if err != nil {
		return nil, rep, err
	}

	var out []model.ProvisionalRecord
	for i, fr := range rows {
		if fr.err != nil {
			rep.skip(i+1, fr.err)
			continue
		}
		rec, warnings, err := fr.row.record(source)
		if err != nil {
			rep.skip(i+1, err)
			continue
		}
		rep.warn(i+1, warnings)
		rec.RawPayload = fr.raw
		out = append(out, rec)
	}
	return out, rep, nil
}

// Authoritative decodes an authoritative feed. Rows without an id, suburb,
// contract date or price are skipped.
func Authoritative(r io.Reader, format Format) ([]model.AuthoritativeSale, Report, error) {
	var rep Report
	rows, err := decode[authoritativeRow](r, format)
	if err != nil {
		return nil, rep, err
	}

	var out []model.AuthoritativeSale
	for i, fr := range rows {
		if fr.err != nil {
			rep.skip(i+1, fr.err)
			continue
		}
		sale, warnings, err := fr.row.sale()
		if err != nil {
			rep.skip(i+1, err)
			continue
		}
		rep.warn(i+1, warnings)
		out = append(out, sale)
	}
	return out, rep, nil
}

func decode[T any](r io.Reader, format Format) ([]feedRow[T], error) {
	switch format {
	case FormatJSON:
		return decodeJSON[T](r)
	case FormatCSV:
		return decodeCSV[T](r)
	default:
		return nil, eris.Errorf("ingest: unsupported format %q", format)
	}
}

// decodeJSON reads a JSON array. A malformed array fails the feed; an element
// of the wrong shape fails only its row.
func decodeJSON[T any](r io.Reader) ([]feedRow[T], error) {
	var elems []json.RawMessage
	if err := json.NewDecoder(r).Decode(&elems); err != nil {
		return nil, eris.Wrap(err, "ingest: decode json")
	}
	out := make([]feedRow[T], len(elems))
	for i, raw := range elems {
		out[i].raw = raw
		if err := json.Unmarshal(raw, &out[i].row); err != nil {
			out[i].err = eris.Wrap(err, "decode")
		}
	}
	return out, nil
}

// decodeCSV reads a headed CSV. The raw payload of each row is a JSON object
// of every column in the file, including ones the row type ignores.
func decodeCSV[T any](r io.Reader) ([]feedRow[T], error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "ingest: read csv header")
	}
	header := dec.Header()

	var out []feedRow[T]
	for {
		var fr feedRow[T]
		err := dec.Decode(&fr.row)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		var typeErr *csvutil.UnmarshalTypeError
		switch {
		case errors.As(err, &typeErr):
			fr.err = eris.Wrap(err, "decode")
		case err != nil:
			return nil, eris.Wrap(err, "ingest: decode csv")
		}
		fields := make(map[string]string, len(header))
		for j, v := range dec.Record() {
			if j < len(header) {
				fields[header[j]] = v
			}
		}
		if fr.raw, err = json.Marshal(fields); err != nil {
			return nil, eris.Wrap(err, "ingest: encode csv row")
		}
		out = append(out, fr)
	}
}

func (row provisionalRow) record(source string) (model.ProvisionalRecord, []error, error) {
	if strings.TrimSpace(row.ExternalID) == "" {
		return model.ProvisionalRecord{}, nil, eris.New("external_id is required")
	}
	pt, err := propertyType(row.PropertyType)
	if err != nil {
		return model.ProvisionalRecord{}, nil, err
	}

	var warnings []error
	price, err := optionalPrice(string(row.Price))
	if err != nil {
		warnings = append(warnings, eris.Wrap(err, "price withheld"))
	}
	sold, err := optionalDate(row.SoldDate)
	if err != nil {
		warnings = append(warnings, eris.Wrap(err, "sold_date cleared"))
	}

	return model.ProvisionalRecord{
		ExternalID: strings.TrimSpace(row.ExternalID),
		SourceTag:  source,
		Address: model.Address{
			Unit:        strings.TrimSpace(row.Unit),
			HouseNumber: strings.TrimSpace(row.HouseNumber),
			StreetName:  strings.TrimSpace(row.StreetName),
			Suburb:      strings.TrimSpace(row.Suburb),
			Postcode:    strings.TrimSpace(row.Postcode),
		},
		PropertyType: pt,
		Price:        price,
		SoldDate:     sold,
		ListingURL:   optionalString(row.ListingURL),
	}, warnings, nil
}

func (row authoritativeRow) sale() (model.AuthoritativeSale, []error, error) {
	if strings.TrimSpace(row.ID) == "" {
		return model.AuthoritativeSale{}, nil, eris.New("id is required")
	}
	if strings.TrimSpace(row.Suburb) == "" {
		return model.AuthoritativeSale{}, nil, eris.New("suburb is required")
	}
	pt, err := propertyType(row.PropertyType)
	if err != nil {
		return model.AuthoritativeSale{}, nil, err
	}
	contract, err := model.ParseDate(row.ContractDate)
	if err != nil {
		return model.AuthoritativeSale{}, nil, eris.Wrap(err, "contract_date")
	}
	price, err := optionalPrice(string(row.Price))
	if err != nil || price == nil {
		return model.AuthoritativeSale{}, nil, eris.Errorf("price %q is invalid", row.Price)
	}

	var warnings []error
	area, err := optionalFloat(string(row.AreaSqm))
	if err != nil {
		warnings = append(warnings, eris.Wrap(err, "area_sqm cleared"))
	}
	var year *int
	if y, err := optionalPrice(string(row.YearBuilt)); err != nil {
		warnings = append(warnings, eris.Wrap(err, "year_built cleared"))
	} else if y != nil {
		v := int(*y)
		year = &v
	}

	return model.AuthoritativeSale{
		ID: strings.TrimSpace(row.ID),
		Address: model.Address{
			Unit:        strings.TrimSpace(row.Unit),
			HouseNumber: strings.TrimSpace(row.HouseNumber),
			StreetName:  strings.TrimSpace(row.StreetName),
			Suburb:      strings.TrimSpace(row.Suburb),
			Postcode:    strings.TrimSpace(row.Postcode),
		},
		PropertyType: pt,
		ContractDate: contract,
		Price:        *price,
		AreaSqm:      area,
		ZoneCode:     optionalString(row.ZoneCode),
		YearBuilt:    year,
		Description:  optionalString(row.Description),
		ListingURL:   optionalString(row.ListingURL),
	}, warnings, nil
}

func propertyType(s string) (model.PropertyType, error) {
	pt := model.PropertyType(strings.ToLower(strings.TrimSpace(s)))
	switch pt {
	case "apartment", "townhouse":
		pt = model.PropertyUnit
	case "":
		pt = model.PropertyOther
	}
	if !pt.Valid() {
		return "", eris.Errorf("property_type %q is invalid", s)
	}
	return pt, nil
}

// optionalPrice parses "1,250,000", "$1250000" and "1250000.00" style
// amounts to whole dollars. Blank is nil.
func optionalPrice(s string) (*int64, error) {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return nil, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, eris.Errorf("parse %q", s)
	}
	v := int64(math.Round(f))
	return &v, nil
}

func optionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "parse %q", s)
	}
	return &v, nil
}

func optionalDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := model.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
