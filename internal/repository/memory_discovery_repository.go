package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"LeadGrid-App/internal/domain/model"
	"LeadGrid-App/internal/domain/repository"
)

// MemoryDiscoveryRepository プロセス内メモリで動くストア（開発・テスト用）
type MemoryDiscoveryRepository struct {
	mu    sync.RWMutex
	seq   int64
	grids map[string]*model.DiscoveryGrid
	cells map[string]*memoryCell
	// (gridId, boundsKey) の一意インデックス
	keys map[string]string
}

type memoryCell struct {
	seq  int64
	cell model.DiscoveryCell
}

// NewMemoryDiscoveryRepository 新しいメモリストアを作成
func NewMemoryDiscoveryRepository() *MemoryDiscoveryRepository {
	return &MemoryDiscoveryRepository{
		grids: make(map[string]*model.DiscoveryGrid),
		cells: make(map[string]*memoryCell),
		keys:  make(map[string]string),
	}
}

var _ repository.DiscoveryRepository = (*MemoryDiscoveryRepository)(nil)

func boundsIndexKey(gridID, boundsKey string) string {
	return gridID + "|" + boundsKey
}

func cloneGrid(g *model.DiscoveryGrid) *model.DiscoveryGrid {
	out := *g
	out.Queries = append([]string(nil), g.Queries...)
	return &out
}

func cloneCell(c *model.DiscoveryCell) model.DiscoveryCell {
	out := *c
	if c.ResultCount != nil {
		v := *c.ResultCount
		out.ResultCount = &v
	}
	if c.LastSearchedAt != nil {
		v := *c.LastSearchedAt
		out.LastSearchedAt = &v
	}
	if c.SearchStartedAt != nil {
		v := *c.SearchStartedAt
		out.SearchStartedAt = &v
	}
	if c.QuerySaturation != nil {
		out.QuerySaturation = append([]model.QuerySaturation(nil), c.QuerySaturation...)
	}
	return out
}

func (r *MemoryDiscoveryRepository) CreateGrid(ctx context.Context, grid *model.DiscoveryGrid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if grid.ID == "" {
		grid.ID = uuid.New().String()
	}
	if grid.CreatedAt.IsZero() {
		grid.CreatedAt = time.Now().UTC()
	}
	r.grids[grid.ID] = cloneGrid(grid)
	return nil
}

func (r *MemoryDiscoveryRepository) GetGrid(ctx context.Context, id string) (*model.DiscoveryGrid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grids[id]
	if !ok {
		return nil, model.ErrGridNotFound
	}
	return cloneGrid(g), nil
}

func (r *MemoryDiscoveryRepository) FindFirstGrid(ctx context.Context) (*model.DiscoveryGrid, error) {
	grids, err := r.ListGrids(ctx)
	if err != nil {
		return nil, err
	}
	if len(grids) == 0 {
		return nil, model.ErrGridNotFound
	}
	return &grids[0], nil
}

func (r *MemoryDiscoveryRepository) ListGrids(ctx context.Context) ([]model.DiscoveryGrid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	grids := make([]model.DiscoveryGrid, 0, len(r.grids))
	for _, g := range r.grids {
		grids = append(grids, *cloneGrid(g))
	}
	sort.Slice(grids, func(i, j int) bool {
		if grids[i].CreatedAt.Equal(grids[j].CreatedAt) {
			return grids[i].ID < grids[j].ID
		}
		return grids[i].CreatedAt.Before(grids[j].CreatedAt)
	})
	return grids, nil
}

func (r *MemoryDiscoveryRepository) AddLeadsFound(ctx context.Context, id string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.grids[id]
	if !ok {
		return model.ErrGridNotFound
	}
	g.TotalLeadsFound += delta
	return nil
}

func (r *MemoryDiscoveryRepository) DeleteGrid(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grids, id)
	return nil
}

func (r *MemoryDiscoveryRepository) insertLocked(cell *model.DiscoveryCell) {
	if cell.ID == "" {
		cell.ID = uuid.New().String()
	}
	r.seq++
	r.cells[cell.ID] = &memoryCell{seq: r.seq, cell: cloneCell(cell)}
	if cell.BoundsKey != "" {
		r.keys[boundsIndexKey(cell.GridID, cell.BoundsKey)] = cell.ID
	}
}

func (r *MemoryDiscoveryRepository) CreateCell(ctx context.Context, cell *model.DiscoveryCell) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(cell)
	return nil
}

func (r *MemoryDiscoveryRepository) GetCell(ctx context.Context, id string) (*model.DiscoveryCell, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mc, ok := r.cells[id]
	if !ok {
		return nil, model.ErrCellNotFound
	}
	c := cloneCell(&mc.cell)
	return &c, nil
}

func (r *MemoryDiscoveryRepository) UpdateCell(ctx context.Context, cell *model.DiscoveryCell) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mc, ok := r.cells[cell.ID]
	if !ok {
		return model.ErrCellNotFound
	}
	if mc.cell.BoundsKey != cell.BoundsKey {
		delete(r.keys, boundsIndexKey(mc.cell.GridID, mc.cell.BoundsKey))
		if cell.BoundsKey != "" {
			r.keys[boundsIndexKey(cell.GridID, cell.BoundsKey)] = cell.ID
		}
	}
	mc.cell = cloneCell(cell)
	return nil
}

func (r *MemoryDiscoveryRepository) DeleteCell(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mc, ok := r.cells[id]
	if !ok {
		return nil
	}
	if mc.cell.BoundsKey != "" {
		delete(r.keys, boundsIndexKey(mc.cell.GridID, mc.cell.BoundsKey))
	}
	delete(r.cells, id)
	return nil
}

func (r *MemoryDiscoveryRepository) CreateCellIfAbsent(ctx context.Context, cell *model.DiscoveryCell) (*model.DiscoveryCell, bool, error) {
	if cell.BoundsKey == "" {
		return nil, false, model.ErrInvalidBoundsKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.keys[boundsIndexKey(cell.GridID, cell.BoundsKey)]; ok {
		existing := cloneCell(&r.cells[id].cell)
		return &existing, false, nil
	}
	r.insertLocked(cell)
	created := cloneCell(cell)
	return &created, true, nil
}

func (r *MemoryDiscoveryRepository) FindByBoundsKey(ctx context.Context, gridID, boundsKey string) (*model.DiscoveryCell, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.keys[boundsIndexKey(gridID, boundsKey)]
	if !ok {
		return nil, model.ErrCellNotFound
	}
	c := cloneCell(&r.cells[id].cell)
	return &c, nil
}

// filter 条件に合うセルを挿入順で返す
func (r *MemoryDiscoveryRepository) filter(limit int, match func(*model.DiscoveryCell) bool) []model.DiscoveryCell {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]*memoryCell, 0)
	for _, mc := range r.cells {
		if match(&mc.cell) {
			matched = append(matched, mc)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	cells := make([]model.DiscoveryCell, len(matched))
	for i, mc := range matched {
		cells[i] = cloneCell(&mc.cell)
	}
	return cells
}

func (r *MemoryDiscoveryRepository) ListCellsByGrid(ctx context.Context, gridID string, limit int) ([]model.DiscoveryCell, error) {
	return r.filter(limit, func(c *model.DiscoveryCell) bool { return c.GridID == gridID }), nil
}

func (r *MemoryDiscoveryRepository) ListLeafCells(ctx context.Context, gridID string) ([]model.DiscoveryCell, error) {
	return r.filter(0, func(c *model.DiscoveryCell) bool { return c.GridID == gridID && c.IsLeaf }), nil
}

func (r *MemoryDiscoveryRepository) ListChildCells(ctx context.Context, parentID string) ([]model.DiscoveryCell, error) {
	return r.filter(0, func(c *model.DiscoveryCell) bool { return c.ParentCellID == parentID && parentID != "" }), nil
}

func (r *MemoryDiscoveryRepository) ListSearchingBefore(ctx context.Context, cutoff time.Time) ([]model.DiscoveryCell, error) {
	return r.filter(0, func(c *model.DiscoveryCell) bool {
		return c.Status == model.StatusSearching && c.SearchStartedAt != nil && c.SearchStartedAt.Before(cutoff)
	}), nil
}
