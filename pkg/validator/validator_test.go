package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type point struct {
	Lat float64 `validate:"lat"`
	Lng float64 `validate:"lng"`
}

type theme struct {
	Color string `validate:"accent_color"`
}

func TestCoordinates(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(point{Lat: 0, Lng: 0}))
	assert.NoError(t, v.Struct(point{Lat: 37.5665, Lng: 126.9780}))
	assert.Error(t, v.Struct(point{Lat: 91, Lng: 0}))
	assert.Error(t, v.Struct(point{Lat: 0, Lng: -181}))
}

func TestAccentColor(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(theme{Color: "#007AFF"}))
	assert.NoError(t, v.Struct(theme{Color: "#ff9500"}))
	assert.Error(t, v.Struct(theme{Color: "007AFF"}))
	assert.Error(t, v.Struct(theme{Color: "#FFF"}))
	assert.Error(t, v.Struct(theme{Color: "#GG0000"}))
}
