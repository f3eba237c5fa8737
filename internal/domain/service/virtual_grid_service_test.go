package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LeadGrid-App/internal/domain/model"
)

func tileContaining(tiles []model.VirtualCell, lat, lng float64) (model.VirtualCell, bool) {
	for _, tile := range tiles {
		b := tile.Bounds
		if lat >= b.SWLat && lat < b.NELat && lng >= b.SWLng && lng < b.NELng {
			return tile, true
		}
	}
	return model.VirtualCell{}, false
}

func TestComputeVirtualTiles_StableAcrossViewports(t *testing.T) {
	lat, lng := 43.1234, -79.8765
	viewports := []model.BoundingBox{
		{SWLat: 43.0, SWLng: -80.0, NELat: 43.2, NELng: -79.7},
		{SWLat: 43.1, SWLng: -79.95, NELat: 43.3, NELng: -79.6},
		{SWLat: 42.9, SWLng: -80.2, NELat: 43.15, NELng: -79.85},
	}

	var keys []string
	for _, vp := range viewports {
		tiles := ComputeVirtualTiles(vp, 5, 500)
		require.NotEmpty(t, tiles)
		tile, ok := tileContaining(tiles, lat, lng)
		require.True(t, ok, "viewport %+v", vp)
		keys = append(keys, tile.Key)
	}
	for _, k := range keys[1:] {
		assert.Equal(t, keys[0], k)
	}
	assert.Equal(t, keys[0], TileKeyFor(lat, lng, 5))
}

func TestComputeVirtualTiles_CoversViewport(t *testing.T) {
	vp := model.BoundingBox{SWLat: 43.0, SWLng: -80.0, NELat: 43.2, NELng: -79.8}
	tiles := ComputeVirtualTiles(vp, 5, 500)
	require.NotEmpty(t, tiles)

	seen := map[string]bool{}
	for _, tile := range tiles {
		assert.False(t, seen[tile.Key], "duplicate key %s", tile.Key)
		seen[tile.Key] = true
		assert.Equal(t, 0, tile.Depth)
		assert.True(t, tile.Bounds.Intersects(vp))
	}
	for _, p := range [][2]float64{{43.0, -80.0}, {43.199, -79.801}, {43.1, -79.9}} {
		_, ok := tileContaining(tiles, p[0], p[1])
		assert.True(t, ok, "point %v not covered", p)
	}
}

func TestComputeVirtualTiles_CapSuppression(t *testing.T) {
	vp := model.BoundingBox{SWLat: 40, SWLng: -85, NELat: 45, NELng: -75}
	tiles := ComputeVirtualTiles(vp, 5, 500)
	assert.NotNil(t, tiles)
	assert.Empty(t, tiles)

	small := model.BoundingBox{SWLat: 43.0, SWLng: -80.0, NELat: 43.2, NELng: -79.8}
	all := ComputeVirtualTiles(small, 5, 500)
	require.Greater(t, len(all), 1)
	assert.Empty(t, ComputeVirtualTiles(small, 5, len(all)-1))
	assert.Len(t, ComputeVirtualTiles(small, 5, len(all)), len(all))
}

func TestComputeVirtualTiles_InvalidInput(t *testing.T) {
	vp := model.BoundingBox{SWLat: 43.0, SWLng: -80.0, NELat: 43.2, NELng: -79.8}
	assert.Empty(t, ComputeVirtualTiles(vp, 0, 500))
	assert.Empty(t, ComputeVirtualTiles(model.BoundingBox{SWLat: 1, SWLng: 1, NELat: 0, NELng: 2}, 5, 500))
	// maxCells <= 0 は既定値
	assert.NotEmpty(t, ComputeVirtualTiles(vp, 5, 0))
}

func TestExcludeActivated(t *testing.T) {
	vp := model.BoundingBox{SWLat: 43.0, SWLng: -80.0, NELat: 43.2, NELng: -79.8}
	tiles := ComputeVirtualTiles(vp, 5, 500)
	require.Greater(t, len(tiles), 2)

	cells := []model.DiscoveryCell{
		{ID: "a", BoundsKey: tiles[0].Key},
		{ID: "b", BoundsKey: tiles[2].Key},
		{ID: "c"},
	}
	remaining := ExcludeActivated(tiles, cells)
	assert.Len(t, remaining, len(tiles)-2)
	for _, tile := range remaining {
		assert.NotEqual(t, tiles[0].Key, tile.Key)
		assert.NotEqual(t, tiles[2].Key, tile.Key)
	}
	assert.Equal(t, tiles, ExcludeActivated(tiles, nil))
}
