package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundingBox_Validate(t *testing.T) {
	valid := BoundingBox{SWLat: 43.0, SWLng: -80.0, NELat: 43.2, NELng: -79.8}
	assert.NoError(t, valid.Validate())

	invalid := []BoundingBox{
		{SWLat: 43.2, SWLng: -80.0, NELat: 43.0, NELng: -79.8},
		{SWLat: 43.0, SWLng: -79.8, NELat: 43.2, NELng: -80.0},
		{SWLat: 43.0, SWLng: -80.0, NELat: 43.0, NELng: -79.8},
		{SWLat: -91, SWLng: -80.0, NELat: 43.0, NELng: -79.8},
		{SWLat: 43.0, SWLng: -181, NELat: 43.2, NELng: -79.8},
	}
	for _, b := range invalid {
		err := b.Validate()
		var vErr *ValidationError
		assert.True(t, errors.As(err, &vErr), "%+v", b)
		assert.True(t, errors.Is(err, ErrInvalidBounds))
	}
}

func TestBoundingBox_Geometry(t *testing.T) {
	outer := BoundingBox{SWLat: 0, SWLng: 0, NELat: 2, NELng: 2}
	inner := BoundingBox{SWLat: 0.5, SWLng: 0.5, NELat: 1, NELng: 2}
	touching := BoundingBox{SWLat: 2, SWLng: 0, NELat: 3, NELng: 1}

	assert.True(t, outer.Contains(inner))
	assert.False(t, inner.Contains(outer))
	assert.True(t, outer.Intersects(inner))
	assert.False(t, outer.Intersects(touching))
	assert.InDelta(t, 4.0, outer.Area(), 1e-12)

	lat, lng := outer.Midpoint()
	assert.Equal(t, 1.0, lat)
	assert.Equal(t, 1.0, lng)

	assert.Equal(t, outer, BoundingBoxFromBound(outer.Bound()))
}
