package repository

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	"LeadGrid-App/internal/domain/model"
)

// BoundsToPolygon 境界ボックスを閉じた orb.Polygon に変換
func BoundsToPolygon(b model.BoundingBox) orb.Polygon {
	return b.Bound().ToPolygon()
}

// BoundsToWKT 境界ボックスを WKT 文字列に変換（PostGIS の ST_GeomFromText 用）
func BoundsToWKT(b model.BoundingBox) string {
	return wkt.MarshalString(BoundsToPolygon(b))
}

// CellsToFeatureCollection セル一覧を GeoJSON FeatureCollection に変換
func CellsToFeatureCollection(cells []model.CellView) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, cell := range cells {
		feature := geojson.NewFeature(BoundsToPolygon(cell.Bounds))
		feature.ID = cell.ID
		feature.Properties["grid_id"] = cell.GridID
		feature.Properties["depth"] = cell.Depth
		feature.Properties["is_leaf"] = cell.IsLeaf
		feature.Properties["status"] = cell.Status.String()
		if cell.BoundsKey != "" {
			feature.Properties["bounds_key"] = cell.BoundsKey
		}
		if cell.ResultCount != nil {
			feature.Properties["result_count"] = *cell.ResultCount
		}
		if cell.Freshness != model.FreshnessNone {
			feature.Properties["freshness"] = string(cell.Freshness)
		}
		fc.Append(feature)
	}
	return fc
}

// VirtualTilesToFeatureCollection 仮想タイルを GeoJSON に変換
func VirtualTilesToFeatureCollection(tiles []model.VirtualCell) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, tile := range tiles {
		feature := geojson.NewFeature(BoundsToPolygon(tile.Bounds))
		feature.ID = tile.Key
		feature.Properties["virtual"] = true
		feature.Properties["bounds_key"] = tile.Key
		fc.Append(feature)
	}
	return fc
}
