package repository

import (
	"context"
	"time"

	"LeadGrid-App/internal/domain/model"
)

// DiscoveryGridRepository グリッドの永続化。各メソッドは単独でアトミックな1操作
type DiscoveryGridRepository interface {
	CreateGrid(ctx context.Context, grid *model.DiscoveryGrid) error
	GetGrid(ctx context.Context, id string) (*model.DiscoveryGrid, error)
	// FindFirstGrid 作成日時が最も古いグリッド。無ければ model.ErrGridNotFound
	FindFirstGrid(ctx context.Context) (*model.DiscoveryGrid, error)
	ListGrids(ctx context.Context) ([]model.DiscoveryGrid, error)
	AddLeadsFound(ctx context.Context, id string, delta int) error
	DeleteGrid(ctx context.Context, id string) error
}

// DiscoveryCellRepository セルの永続化
//
// 必要なインデックス: gridId / (gridId, isLeaf) / parentCellId / (gridId, boundsKey)
type DiscoveryCellRepository interface {
	CreateCell(ctx context.Context, cell *model.DiscoveryCell) error
	GetCell(ctx context.Context, id string) (*model.DiscoveryCell, error)
	UpdateCell(ctx context.Context, cell *model.DiscoveryCell) error
	DeleteCell(ctx context.Context, id string) error

	// CreateCellIfAbsent (gridId, boundsKey) で検索し、無ければ作成する。
	// 既存セルがあればそれを返し created=false。
	CreateCellIfAbsent(ctx context.Context, cell *model.DiscoveryCell) (*model.DiscoveryCell, bool, error)
	FindByBoundsKey(ctx context.Context, gridID, boundsKey string) (*model.DiscoveryCell, error)

	// ListCellsByGrid limit <= 0 なら全件
	ListCellsByGrid(ctx context.Context, gridID string, limit int) ([]model.DiscoveryCell, error)
	ListLeafCells(ctx context.Context, gridID string) ([]model.DiscoveryCell, error)
	ListChildCells(ctx context.Context, parentID string) ([]model.DiscoveryCell, error)
	// ListSearchingBefore searchStartedAt が cutoff より前のまま searching のセル
	ListSearchingBefore(ctx context.Context, cutoff time.Time) ([]model.DiscoveryCell, error)
}

// DiscoveryRepository グリッドとセル両方を扱うストア
type DiscoveryRepository interface {
	DiscoveryGridRepository
	DiscoveryCellRepository
}
