package service

import (
	"math"

	"LeadGrid-App/internal/domain/helper"
	"LeadGrid-App/internal/domain/model"
)

// maxStepLatitude 経度ステップ計算時に使う緯度の上限（cos→0 を避ける）
const maxStepLatitude = 89.0

// RowLngStep 行 row の経度ステップ。
// 行の中心緯度だけで決まるため、ビューポートの位置に依存しない。
func RowLngStep(row int64, latStep, cellSizeKm float64) float64 {
	mid := (float64(row) + 0.5) * latStep
	mid = math.Max(-maxStepLatitude, math.Min(maxStepLatitude, mid))
	return helper.KmToLngDegrees(cellSizeKm, mid)
}

// TileKeyFor 座標 (lat, lng) が属する仮想タイルのキー
func TileKeyFor(lat, lng, cellSizeKm float64) string {
	latStep := helper.KmToLatDegrees(cellSizeKm)
	row := helper.QuantizeIndex(lat, latStep)
	lngStep := RowLngStep(row, latStep, cellSizeKm)
	col := helper.QuantizeIndex(lng, lngStep)
	return helper.FormatKey(float64(row)*latStep, float64(col)*lngStep)
}

// ComputeVirtualTiles ビューポートを覆う仮想タイルを返す。
// タイルは南西端を step 格子に切り下げた原点から並べるため、パンしても境界は変わらない。
// タイル数が maxCells を超える場合は空スライスを返す（描画を抑制するべきズームレベル）。
func ComputeVirtualTiles(viewport model.BoundingBox, cellSizeKm float64, maxCells int) []model.VirtualCell {
	if cellSizeKm <= 0 || viewport.SWLat >= viewport.NELat || viewport.SWLng >= viewport.NELng {
		return []model.VirtualCell{}
	}
	if maxCells <= 0 {
		maxCells = model.DefaultMaxVirtualCells
	}

	latStep := helper.KmToLatDegrees(cellSizeKm)
	rowStart := helper.QuantizeIndex(viewport.SWLat, latStep)
	rowEnd := int64(math.Ceil(viewport.NELat / latStep))
	if rowEnd-rowStart > int64(maxCells) {
		return []model.VirtualCell{}
	}

	type rowSpan struct {
		row              int64
		lngStep          float64
		colStart, colEnd int64
	}
	spans := make([]rowSpan, 0, rowEnd-rowStart)
	total := int64(0)
	for row := rowStart; row < rowEnd; row++ {
		lngStep := RowLngStep(row, latStep, cellSizeKm)
		colStart := helper.QuantizeIndex(viewport.SWLng, lngStep)
		colEnd := int64(math.Ceil(viewport.NELng / lngStep))
		total += colEnd - colStart
		if total > int64(maxCells) {
			return []model.VirtualCell{}
		}
		spans = append(spans, rowSpan{row: row, lngStep: lngStep, colStart: colStart, colEnd: colEnd})
	}

	tiles := make([]model.VirtualCell, 0, total)
	for _, span := range spans {
		south := float64(span.row) * latStep
		north := float64(span.row+1) * latStep
		for col := span.colStart; col < span.colEnd; col++ {
			west := float64(col) * span.lngStep
			east := float64(col+1) * span.lngStep
			tiles = append(tiles, model.VirtualCell{
				Key:    helper.FormatKey(south, west),
				Bounds: model.BoundingBox{SWLat: south, SWLng: west, NELat: north, NELng: east},
				Depth:  0,
			})
		}
	}
	return tiles
}

// ExcludeActivated 活性化済みセルの boundsKey と一致する仮想タイルを取り除く。
// 1つのタイルは常に永続セルか仮想タイルのどちらか一方だけで表現される。
func ExcludeActivated(tiles []model.VirtualCell, cells []model.DiscoveryCell) []model.VirtualCell {
	if len(cells) == 0 {
		return tiles
	}
	activated := make(map[string]struct{}, len(cells))
	for _, cell := range cells {
		if cell.BoundsKey != "" {
			activated[cell.BoundsKey] = struct{}{}
		}
	}
	filtered := make([]model.VirtualCell, 0, len(tiles))
	for _, tile := range tiles {
		if _, ok := activated[tile.Key]; ok {
			continue
		}
		filtered = append(filtered, tile)
	}
	return filtered
}
