package model

import (
	"time"

	"github.com/paulmach/orb"
)

// BoundingBox 南西・北東の緯度経度で表す矩形領域
type BoundingBox struct {
	SWLat float64 `json:"sw_lat" db:"sw_lat" firestore:"swLat"` // 南西端の緯度
	SWLng float64 `json:"sw_lng" db:"sw_lng" firestore:"swLng"` // 南西端の経度
	NELat float64 `json:"ne_lat" db:"ne_lat" firestore:"neLat"` // 北東端の緯度
	NELng float64 `json:"ne_lng" db:"ne_lng" firestore:"neLng"` // 北東端の経度
}

// Validate 南西端が北東端より厳密に南・西にあり、座標が有効範囲内かを検証
func (b BoundingBox) Validate() error {
	if b.SWLat >= b.NELat {
		return &ValidationError{Field: "bounds", Message: "sw_lat must be strictly less than ne_lat", Err: ErrInvalidBounds}
	}
	if b.SWLng >= b.NELng {
		return &ValidationError{Field: "bounds", Message: "sw_lng must be strictly less than ne_lng", Err: ErrInvalidBounds}
	}
	if b.SWLat < -90 || b.NELat > 90 {
		return &ValidationError{Field: "bounds", Message: "latitude must be within -90 and 90", Err: ErrInvalidBounds}
	}
	if b.SWLng < -180 || b.NELng > 180 {
		return &ValidationError{Field: "bounds", Message: "longitude must be within -180 and 180", Err: ErrInvalidBounds}
	}
	return nil
}

// Bound orb.Bound に変換（orbは [lng, lat] 順）
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.SWLng, b.SWLat},
		Max: orb.Point{b.NELng, b.NELat},
	}
}

// BoundingBoxFromBound orb.Bound から BoundingBox を作成
func BoundingBoxFromBound(bound orb.Bound) BoundingBox {
	return BoundingBox{
		SWLat: bound.Min.Lat(),
		SWLng: bound.Min.Lon(),
		NELat: bound.Max.Lat(),
		NELng: bound.Max.Lon(),
	}
}

// Midpoint 矩形の中心 (lat, lng)
func (b BoundingBox) Midpoint() (float64, float64) {
	return (b.SWLat + b.NELat) / 2, (b.SWLng + b.NELng) / 2
}

// Contains other が完全に内側にあるか（浮動小数点誤差は eps まで許容）
func (b BoundingBox) Contains(other BoundingBox) bool {
	const eps = 1e-9
	return other.SWLat >= b.SWLat-eps &&
		other.SWLng >= b.SWLng-eps &&
		other.NELat <= b.NELat+eps &&
		other.NELng <= b.NELng+eps
}

// Intersects 2つの矩形が面積を持って重なるか
func (b BoundingBox) Intersects(other BoundingBox) bool {
	return b.SWLat < other.NELat && other.SWLat < b.NELat &&
		b.SWLng < other.NELng && other.SWLng < b.NELng
}

// Area 度数単位での面積（タイリング検証用）
func (b BoundingBox) Area() float64 {
	return (b.NELat - b.SWLat) * (b.NELng - b.SWLng)
}

// DiscoveryGrid 名前付きの探索対象エリア
type DiscoveryGrid struct {
	ID              string      `json:"id" db:"id" firestore:"-"`
	Name            string      `json:"name" db:"name" firestore:"name"`                                      // グリッド名
	Region          string      `json:"region" db:"region" firestore:"region"`                                // 地域ラベル
	Province        string      `json:"province" db:"province" firestore:"province"`                          // 州・行政区ラベル
	Queries         []string    `json:"queries" db:"queries" firestore:"queries"`                             // 検索クエリ一覧
	Bounds          BoundingBox `json:"bounds" db:"-" firestore:"bounds"`                                     // グリッド全体の境界
	CellSizeKm      float64     `json:"cell_size_km" db:"cell_size_km" firestore:"cellSizeKm"`                // 公称セルサイズ(km)
	TotalLeadsFound int         `json:"total_leads_found" db:"total_leads_found" firestore:"totalLeadsFound"` // 累計リード数
	CreatedAt       time.Time   `json:"created_at" db:"created_at" firestore:"createdAt"`                     // 作成日時
}

// QuerySaturation クエリ毎の検索結果件数
type QuerySaturation struct {
	Query string `json:"query" firestore:"query"`
	Count int    `json:"count" firestore:"count"`
}

// DiscoveryCell グリッドの空間木のノード
type DiscoveryCell struct {
	ID              string            `json:"id" db:"id" firestore:"-"`
	GridID          string            `json:"grid_id" db:"grid_id" firestore:"gridId"`
	ParentCellID    string            `json:"parent_cell_id,omitempty" db:"parent_cell_id" firestore:"parentCellId,omitempty"` // 空ならルートセル
	Bounds          BoundingBox       `json:"bounds" db:"-" firestore:"bounds"`
	Depth           int               `json:"depth" db:"depth" firestore:"depth"` // 0 = ルートのタイリング階層
	IsLeaf          bool              `json:"is_leaf" db:"is_leaf" firestore:"isLeaf"`
	Status          CellStatus        `json:"status" db:"status" firestore:"status"`
	ResultCount     *int              `json:"result_count,omitempty" db:"result_count" firestore:"resultCount,omitempty"`
	LastSearchedAt  *time.Time        `json:"last_searched_at,omitempty" db:"last_searched_at" firestore:"lastSearchedAt,omitempty"`
	SearchStartedAt *time.Time        `json:"search_started_at,omitempty" db:"search_started_at" firestore:"searchStartedAt,omitempty"`
	QuerySaturation []QuerySaturation `json:"query_saturation,omitempty" db:"query_saturation" firestore:"querySaturation,omitempty"`
	BoundsKey       string            `json:"bounds_key,omitempty" db:"bounds_key" firestore:"boundsKey,omitempty"` // 量子化キー（重複活性化防止）
}

// VirtualCell 永続化されていない表示用タイル
type VirtualCell struct {
	Key    string      `json:"key"`
	Bounds BoundingBox `json:"bounds"`
	Depth  int         `json:"depth"`
}

// ActivationResult 仮想タイル活性化の結果
type ActivationResult struct {
	CellID         string `json:"cell_id"`
	AlreadyExisted bool   `json:"already_existed"`
}

// SearchResult 外部検索の実行結果
type SearchResult struct {
	QueryCounts []QuerySaturation `json:"query_counts"`
	ResultCount int               `json:"result_count"`
	NewLeads    int               `json:"new_leads"`
}

// DeletionReport カスケード削除の実行結果
type DeletionReport struct {
	GridID       string `json:"grid_id"`
	Batches      int    `json:"batches"`
	CellsDeleted int    `json:"cells_deleted"`
}

// CellView セル本体と表示用の鮮度ティア
type CellView struct {
	DiscoveryCell
	Freshness FreshnessTier `json:"freshness,omitempty"`
}

// ViewportOverlay ビューポート内の永続セルと仮想タイル
type ViewportOverlay struct {
	Cells        []CellView    `json:"cells"`
	VirtualTiles []VirtualCell `json:"virtual_tiles"`
	// Suppressed 仮想タイルが上限超過で抑制されたか
	Suppressed bool `json:"suppressed"`
}

// CreateGridRequest 明示的な境界でグリッドを作成するリクエスト
type CreateGridRequest struct {
	Name       string      `json:"name"`
	Region     string      `json:"region"`
	Province   string      `json:"province"`
	Queries    []string    `json:"queries"`
	Bounds     BoundingBox `json:"bounds"`
	CellSizeKm float64     `json:"cell_size_km"`
}

// GridGenerationResult グリッド作成の結果
type GridGenerationResult struct {
	Grid         *DiscoveryGrid `json:"grid"`
	CellsCreated int            `json:"cells_created"`
}

// ActivateCellRequest 仮想タイルの活性化リクエスト
type ActivateCellRequest struct {
	BoundsKey string      `json:"bounds_key"`
	Bounds    BoundingBox `json:"bounds"`
	Depth     int         `json:"depth"`
}
