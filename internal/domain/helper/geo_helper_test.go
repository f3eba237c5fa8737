package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKm(t *testing.T) {
	t.Run("JFK から LHR", func(t *testing.T) {
		d := HaversineKm(40.6413, -73.7781, 51.4700, -0.4543)
		assert.Greater(t, d, 5530.0)
		assert.Less(t, d, 5560.0)
	})

	t.Run("同一地点は0", func(t *testing.T) {
		assert.Equal(t, 0.0, HaversineKm(43.1, -79.9, 43.1, -79.9))
	})

	t.Run("対称性", func(t *testing.T) {
		a := HaversineKm(35.6812, 139.7671, 34.7025, 135.4959)
		b := HaversineKm(34.7025, 135.4959, 35.6812, 139.7671)
		assert.InDelta(t, a, b, 1e-9)
	})
}

func TestKmToDegrees(t *testing.T) {
	assert.InDelta(t, 1.0, KmToLatDegrees(111), 1e-12)
	assert.InDelta(t, 1.0, KmToLngDegrees(111, 0), 1e-12)
	// 緯度60度では経度1度の距離が半分になる
	assert.InDelta(t, 2.0, KmToLngDegrees(111, 60), 1e-9)
	assert.Greater(t, KmToLngDegrees(5, 45), KmToLatDegrees(5))
}

func TestQuantize(t *testing.T) {
	step := 0.25
	assert.Equal(t, int64(4), QuantizeIndex(1.1, step))
	assert.Equal(t, int64(-5), QuantizeIndex(-1.1, step))
	assert.InDelta(t, 1.0, Quantize(1.1, step), 1e-12)
	assert.InDelta(t, -1.25, Quantize(-1.1, step), 1e-12)
	assert.InDelta(t, 0.5, Quantize(0.5, step), 1e-12)
}

func TestFormatKey(t *testing.T) {
	assert.Equal(t, "43.000000,-80.000000", FormatKey(43, -80))
	assert.Equal(t, "0.123457,-0.000001", FormatKey(0.1234567, -0.000001))
}

func TestQuantizedKey_SameTileSameKey(t *testing.T) {
	latStep := KmToLatDegrees(5)
	lngStep := KmToLngDegrees(5, 43)
	lat := 387*latStep + 0.2*latStep
	lng := -1200*lngStep + 0.2*lngStep

	base := QuantizedKey(lat, lng, latStep, lngStep)
	assert.Equal(t, base, QuantizedKey(lat+0.5*latStep, lng+0.5*lngStep, latStep, lngStep))
	assert.NotEqual(t, base, QuantizedKey(lat+latStep, lng, latStep, lngStep))
	assert.NotEqual(t, base, QuantizedKey(lat, lng-lngStep, latStep, lngStep))
}
