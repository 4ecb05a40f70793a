package address

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/sales-tracker/internal/model"
)

func TestNormalise(t *testing.T) {
	tests := []struct {
		name string
		in   model.Address
		want Key
	}{
		{
			name: "basic house",
			in:   model.Address{HouseNumber: "11", StreetName: "Alliance Avenue", Suburb: "Revesby", Postcode: "2212"},
			want: "|11|alliance ave|revesby|2212",
		},
		{
			name: "unit in separate field",
			in:   model.Address{Unit: "2", HouseNumber: "10", StreetName: "Smith Street", Suburb: "Revesby", Postcode: "2212"},
			want: "2|10|smith st|revesby|2212",
		},
		{
			name: "unit in house number",
			in:   model.Address{HouseNumber: "2/10", StreetName: "Smith Street", Suburb: "Revesby", Postcode: "2212"},
			want: "2|10|smith st|revesby|2212",
		},
		{
			name: "unit prefix stripped",
			in:   model.Address{Unit: "Unit 5", HouseNumber: "20", StreetName: "Bay Road", Suburb: "Wollstonecraft", Postcode: "2065"},
			want: "5|20|bay rd|wollstonecraft|2065",
		},
		{
			name: "house range",
			in:   model.Address{HouseNumber: "10 – 12", StreetName: "Main Street", Suburb: "Lane Cove", Postcode: "2066"},
			want: "|10-12|main st|lane cove|2066",
		},
		{
			name: "shouting suburb and padded postcode",
			in:   model.Address{HouseNumber: "1", StreetName: "Test St", Suburb: "  LANE   COVE NORTH ", Postcode: " 20 66 "},
			want: "|1|test st|lane cove north|2066",
		},
		{
			name: "delimiter inside a field is escaped",
			in:   model.Address{HouseNumber: "1|2", StreetName: "Odd St", Suburb: "X", Postcode: "1"},
			want: `|1\|2|odd st|x|1`,
		},
		{
			name: "empty input still yields a stable key",
			in:   model.Address{},
			want: "||||",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalise(tt.in))
		})
	}
}

func TestNormalise_StreetTypeSynonymsMatch(t *testing.T) {
	a := model.Address{HouseNumber: "27", StreetName: "Morton St", Suburb: "Wollstonecraft", Postcode: "2065"}
	b := model.Address{HouseNumber: "27", StreetName: "morton  STREET", Suburb: "wollstonecraft", Postcode: "2065"}
	assert.Equal(t, Normalise(a), Normalise(b))
}

func TestNormalise_DistinctNumbersStayDistinct(t *testing.T) {
	base := model.Address{Unit: "9", HouseNumber: "27", StreetName: "Morton St", Suburb: "Wollstonecraft", Postcode: "2065"}

	otherUnit := base
	otherUnit.Unit = "19"
	assert.NotEqual(t, Normalise(base), Normalise(otherUnit))

	otherHouse := base
	otherHouse.HouseNumber = "27A"
	assert.NotEqual(t, Normalise(base), Normalise(otherHouse))

	noUnit := base
	noUnit.Unit = ""
	assert.NotEqual(t, Normalise(base), Normalise(noUnit))
}

func TestUnit(t *testing.T) {
	tests := []struct {
		unit, house, want string
	}{
		{"2", "10", "2"},
		{"Unit 3", "20", "3"},
		{"Apartment 5A", "100", "5a"},
		{"Apt 7", "50", "7"},
		{"5B", "20", "5b"},
		{"", "2/10", "2"},
		{"", "3/10-12", "3"},
		{"", "10", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Unit(tt.unit, tt.house), "Unit(%q, %q)", tt.unit, tt.house)
	}
}

func TestHouseNumber(t *testing.T) {
	tests := map[string]string{
		"10":      "10",
		"10A":     "10a",
		"10-12":   "10-12",
		"10—12":   "10-12",
		"2/10":    "10",
		"3/10-12": "10-12",
	}
	for in, want := range tests {
		assert.Equal(t, want, HouseNumber(in), "HouseNumber(%q)", in)
	}
}

func TestStreet(t *testing.T) {
	tests := map[string]string{
		"Smith Street":      "smith st",
		"Main Road":         "main rd",
		"Collins Avenue":    "collins ave",
		"Park Av":           "park ave",
		"Bay Crescent":      "bay cres",
		"Oak Place":         "oak pl",
		"Short Lane":        "short ln",
		"Long Drive":        "long dr",
		"Smith St":          "smith st",
		"O'Connell Street":  "oconnell st",
		"  Main   Street  ": "main st",
		"Street Road":       "street rd",
		"The Unknownway":    "the unknownway",
		"":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Street(in), "Street(%q)", in)
	}
}
