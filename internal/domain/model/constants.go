package model

import "time"

// グリッド計算の既定値
const (
	// DefaultMaxVirtualCells 仮想タイルを描画する上限数。超過時は空を返す
	DefaultMaxVirtualCells = 500
	// DeleteBatchSize カスケード削除1回あたりのセル削除数
	DeleteBatchSize = 500
	// SaturationResultCap 外部検索APIが1クエリで返す実質的な上限件数
	SaturationResultCap = 60
	// DefaultSaturationThreshold この件数以上のクエリがあれば saturated とみなす（上限の95%）
	DefaultSaturationThreshold = 57
	// DefaultCellSizeKm 既定グリッドのセルサイズ
	DefaultCellSizeKm = 5.0
	// DefaultSearchingTimeout searching のまま放置されたセルを戻すまでの時間
	DefaultSearchingTimeout = 30 * time.Minute
	// MaxEagerCells 明示的グリッド作成時に一度に生成できるセル数の上限
	MaxEagerCells = 10000
	// KeyPrecision 量子化キーの小数点以下桁数
	KeyPrecision = 6
)

// 既定グリッド（明示的なグリッドが無い場合に遅延作成される）
const (
	DefaultGridName     = "Global Discovery"
	DefaultGridRegion   = "global"
	DefaultGridProvince = ""
)

// DefaultGridBounds 既定グリッドの境界（Webメルカトルで描画可能な範囲）
var DefaultGridBounds = BoundingBox{SWLat: -85, SWLng: -180, NELat: 85, NELng: 180}

// FreshnessTier 最終検索からの経過時間による鮮度
type FreshnessTier string

const (
	FreshnessNone  FreshnessTier = ""
	FreshnessFresh FreshnessTier = "fresh"
	FreshnessAging FreshnessTier = "aging"
	FreshnessStale FreshnessTier = "stale"
)

// 鮮度の境界（下位ティア側に境界値を含む）
const (
	FreshWindow = 30 * 24 * time.Hour
	AgingWindow = 90 * 24 * time.Hour
)
