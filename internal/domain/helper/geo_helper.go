package helper

import (
	"math"
	"strconv"

	"LeadGrid-App/internal/domain/model"
)

const (
	// KmPerDegreeLat 緯度1度あたりの距離（km）
	KmPerDegreeLat = 111.0
	// EarthRadiusKm 地球の平均半径（km）
	EarthRadiusKm = 6371.0
)

// KmToLatDegrees km を緯度方向の度数に変換
func KmToLatDegrees(km float64) float64 {
	return km / KmPerDegreeLat
}

// KmToLngDegrees km を経度方向の度数に変換する。
// 経線は極に向かって収束するため、midLat の余弦で補正する。
func KmToLngDegrees(km, midLat float64) float64 {
	return km / (KmPerDegreeLat * math.Cos(midLat*math.Pi/180))
}

// HaversineKm 2点間の大円距離（km）
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// QuantizeIndex value が属する step 格子のインデックス
func QuantizeIndex(value, step float64) int64 {
	return int64(math.Floor(value / step))
}

// Quantize value を step の倍数に切り下げる
func Quantize(value, step float64) float64 {
	return float64(QuantizeIndex(value, step)) * step
}

// FormatKey 緯度経度を固定小数点で連結したキー
func FormatKey(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', model.KeyPrecision, 64) + "," +
		strconv.FormatFloat(lng, 'f', model.KeyPrecision, 64)
}

// QuantizedKey 同じタイルを指す座標であれば、どのビューポートから計算しても同一のキーを返す
func QuantizedKey(lat, lng, latStep, lngStep float64) string {
	return FormatKey(Quantize(lat, latStep), Quantize(lng, lngStep))
}
