package service

import (
	"math"

	"LeadGrid-App/internal/domain/helper"
	"LeadGrid-App/internal/domain/model"
)

// Quadrant 分割後の子セルの位置
type Quadrant int

const (
	QuadrantSW Quadrant = iota
	QuadrantSE
	QuadrantNW
	QuadrantNE
)

func (q Quadrant) String() string {
	switch q {
	case QuadrantSW:
		return "sw"
	case QuadrantSE:
		return "se"
	case QuadrantNW:
		return "nw"
	case QuadrantNE:
		return "ne"
	}
	return "unknown"
}

// SplitBounds 矩形を中心点で4分割する（SW, SE, NW, NE の順）
func SplitBounds(b model.BoundingBox) [4]model.BoundingBox {
	midLat, midLng := b.Midpoint()
	return [4]model.BoundingBox{
		QuadrantSW: {SWLat: b.SWLat, SWLng: b.SWLng, NELat: midLat, NELng: midLng},
		QuadrantSE: {SWLat: b.SWLat, SWLng: midLng, NELat: midLat, NELng: b.NELng},
		QuadrantNW: {SWLat: midLat, SWLng: b.SWLng, NELat: b.NELat, NELng: midLng},
		QuadrantNE: {SWLat: midLat, SWLng: midLng, NELat: b.NELat, NELng: b.NELng},
	}
}

// NewChildCells 親セルから未保存の子セル4つを作成する
func NewChildCells(parent *model.DiscoveryCell) [4]model.DiscoveryCell {
	var children [4]model.DiscoveryCell
	for i, bounds := range SplitBounds(parent.Bounds) {
		children[i] = model.DiscoveryCell{
			GridID:       parent.GridID,
			ParentCellID: parent.ID,
			Bounds:       bounds,
			Depth:        parent.Depth + 1,
			IsLeaf:       true,
			Status:       model.StatusUnsearched,
		}
	}
	return children
}

// SameBounds 浮動小数点誤差を許容して矩形が一致するか
func SameBounds(a, b model.BoundingBox) bool {
	const eps = 1e-9
	return math.Abs(a.SWLat-b.SWLat) < eps &&
		math.Abs(a.SWLng-b.SWLng) < eps &&
		math.Abs(a.NELat-b.NELat) < eps &&
		math.Abs(a.NELng-b.NELng) < eps
}

// GridDimensions 境界を覆うのに必要な行数・列数
func GridDimensions(b model.BoundingBox, cellSizeKm float64) (int, int) {
	const eps = 1e-9
	midLat, _ := b.Midpoint()
	latStep := helper.KmToLatDegrees(cellSizeKm)
	lngStep := helper.KmToLngDegrees(cellSizeKm, midLat)
	rows := int(math.Ceil((b.NELat-b.SWLat)/latStep - eps))
	cols := int(math.Ceil((b.NELng-b.SWLng)/lngStep - eps))
	return max(rows, 1), max(cols, 1)
}

// GenerateGridCells グリッド境界を cellSizeKm のセルで敷き詰める。
// 最終行・最終列はグリッド境界で切り詰めるため、セルは常にグリッド内に収まる。
func GenerateGridCells(grid *model.DiscoveryGrid) []model.DiscoveryCell {
	b := grid.Bounds
	midLat, _ := b.Midpoint()
	latStep := helper.KmToLatDegrees(grid.CellSizeKm)
	lngStep := helper.KmToLngDegrees(grid.CellSizeKm, midLat)
	rows, cols := GridDimensions(b, grid.CellSizeKm)

	cells := make([]model.DiscoveryCell, 0, rows*cols)
	for r := 0; r < rows; r++ {
		south := b.SWLat + float64(r)*latStep
		north := math.Min(b.SWLat+float64(r+1)*latStep, b.NELat)
		if r == rows-1 {
			north = b.NELat
		}
		for c := 0; c < cols; c++ {
			west := b.SWLng + float64(c)*lngStep
			east := math.Min(b.SWLng+float64(c+1)*lngStep, b.NELng)
			if c == cols-1 {
				east = b.NELng
			}
			cells = append(cells, model.DiscoveryCell{
				GridID:    grid.ID,
				Bounds:    model.BoundingBox{SWLat: south, SWLng: west, NELat: north, NELng: east},
				Depth:     0,
				IsLeaf:    true,
				Status:    model.StatusUnsearched,
				BoundsKey: helper.FormatKey(south, west),
			})
		}
	}
	return cells
}
