package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LeadGrid-App/internal/domain/model"
)

func TestParseBBox(t *testing.T) {
	box, err := parseBBox("-80.0, 43.0,-79.8 ,43.2")
	require.NoError(t, err)
	assert.Equal(t, model.BoundingBox{SWLat: 43.0, SWLng: -80.0, NELat: 43.2, NELng: -79.8}, box)

	_, err = parseBBox("")
	assert.Error(t, err)
	_, err = parseBBox("1,2,3")
	assert.Error(t, err)
	_, err = parseBBox("1,2,x,4")
	assert.EqualError(t, err, "Invalid max_lng value")
}
