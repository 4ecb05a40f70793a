package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress(t *testing.T) {
	a := Address{Unit: "4", HouseNumber: " 12 ", StreetName: "Smith St", Suburb: "Chatswood"}
	assert.True(t, a.Locatable())
	assert.Equal(t, "4/12 Smith St", a.StreetAddress())
	assert.Equal(t, "4/12 Smith St, Chatswood", a.String())

	bare := Address{Suburb: "Revesby"}
	assert.False(t, bare.Locatable())
	assert.Equal(t, "Revesby", bare.String())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2026-02-14 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("14/02/2026")
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 2, 1, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 2, 15, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 14, DaysBetween(a, b))
	assert.Equal(t, 14, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))
}

func TestPropertyTypeValid(t *testing.T) {
	for _, pt := range []PropertyType{PropertyHouse, PropertyUnit, PropertyLand, PropertyOther} {
		assert.True(t, pt.Valid(), pt)
	}
	assert.False(t, PropertyType("apartment").Valid())
}

func TestPriceWithheld(t *testing.T) {
	price := int64(900_000)
	assert.True(t, ProvisionalSale{}.PriceWithheld())
	assert.False(t, ProvisionalSale{Price: &price}.PriceWithheld())
}
