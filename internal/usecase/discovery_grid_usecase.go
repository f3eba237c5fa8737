package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"LeadGrid-App/internal/config"
	"LeadGrid-App/internal/domain/helper"
	"LeadGrid-App/internal/domain/model"
	"LeadGrid-App/internal/domain/repository"
	"LeadGrid-App/internal/domain/service"
	"LeadGrid-App/internal/infrastructure/metrics"
	repoImpl "LeadGrid-App/internal/repository"
)

// cellWriteConcurrency セル一括書き込み時の同時実行数
const cellWriteConcurrency = 8

type DiscoveryGridUseCase interface {
	// GenerateGrid 明示的な境界でグリッドを作成し、セルを敷き詰める
	GenerateGrid(ctx context.Context, req *model.CreateGridRequest) (*model.GridGenerationResult, error)
	// GetOrCreateDefaultGrid 既存の最古のグリッド、無ければ全世界の既定グリッドを返す
	GetOrCreateDefaultGrid(ctx context.Context) (*model.DiscoveryGrid, error)
	ListGrids(ctx context.Context) ([]model.DiscoveryGrid, error)
	GetGrid(ctx context.Context, gridID string) (*model.DiscoveryGrid, error)
	ListCells(ctx context.Context, gridID string, leavesOnly bool) ([]model.CellView, error)
	GetCell(ctx context.Context, cellID string) (*model.CellView, error)
	ExportGeoJSON(ctx context.Context, gridID string) (*geojson.FeatureCollection, error)

	ComputeVirtualTiles(viewport model.BoundingBox, cellSizeKm float64, maxCells int) ([]model.VirtualCell, error)
	ViewportOverlay(ctx context.Context, gridID string, viewport model.BoundingBox) (*model.ViewportOverlay, error)
	ActivateCell(ctx context.Context, gridID string, req *model.ActivateCellRequest) (*model.ActivationResult, error)

	BeginSearch(ctx context.Context, cellID string) (*model.DiscoveryCell, error)
	RecordSearchResult(ctx context.Context, cellID string, result *model.SearchResult) (*model.DiscoveryCell, error)
	AbortSearch(ctx context.Context, cellID string) (*model.DiscoveryCell, error)
	ResetOrphanedSearching(ctx context.Context, timeout time.Duration) (int, error)

	Subdivide(ctx context.Context, cellID string) ([]model.DiscoveryCell, error)
	Undivide(ctx context.Context, cellID string) (*model.DiscoveryCell, error)
}

// discoveryGridUseCaseImpl はDiscoveryGridUseCaseの実装
type discoveryGridUseCaseImpl struct {
	repo   repository.DiscoveryRepository
	cfg    config.GridConfig
	logger *zap.SugaredLogger
	now    func() time.Time

	defaultGrid singleflight.Group
}

// Option DiscoveryGridUseCase の追加設定
type Option func(*discoveryGridUseCaseImpl)

// WithClock 現在時刻の取得関数を差し替える
func WithClock(now func() time.Time) Option {
	return func(u *discoveryGridUseCaseImpl) { u.now = now }
}

// NewDiscoveryGridUseCase は新しいDiscoveryGridUseCaseインスタンスを作成
func NewDiscoveryGridUseCase(repo repository.DiscoveryRepository, cfg config.GridConfig, logger *zap.SugaredLogger, opts ...Option) DiscoveryGridUseCase {
	u := &discoveryGridUseCaseImpl{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *discoveryGridUseCaseImpl) GenerateGrid(ctx context.Context, req *model.CreateGridRequest) (*model.GridGenerationResult, error) {
	if req.Name == "" {
		return nil, &model.ValidationError{Field: "name", Message: "name is required", Err: model.ErrInvalidRequest}
	}
	if err := req.Bounds.Validate(); err != nil {
		return nil, err
	}
	if req.CellSizeKm <= 0 {
		return nil, &model.ValidationError{Field: "cell_size_km", Message: "cell_size_km must be positive", Err: model.ErrInvalidCellSize}
	}
	rows, cols := service.GridDimensions(req.Bounds, req.CellSizeKm)
	if rows*cols > model.MaxEagerCells {
		return nil, &model.ValidationError{
			Field:   "cell_size_km",
			Message: fmt.Sprintf("grid would contain %d cells (max %d); use a larger cell size", rows*cols, model.MaxEagerCells),
			Err:     model.ErrInvalidCellSize,
		}
	}

	u.logger.Infof("🚀 グリッド生成開始: %s (%dx%d セル)", req.Name, rows, cols)

	grid := &model.DiscoveryGrid{
		Name:       req.Name,
		Region:     req.Region,
		Province:   req.Province,
		Queries:    append([]string(nil), req.Queries...),
		Bounds:     req.Bounds,
		CellSizeKm: req.CellSizeKm,
		CreatedAt:  u.now(),
	}
	if err := u.repo.CreateGrid(ctx, grid); err != nil {
		return nil, fmt.Errorf("グリッドの保存に失敗: %w", err)
	}

	cells := service.GenerateGridCells(grid)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cellWriteConcurrency)
	for i := range cells {
		cell := &cells[i]
		g.Go(func() error {
			if err := u.repo.CreateCell(gctx, cell); err != nil {
				return fmt.Errorf("セルの保存に失敗 (%s): %w", cell.BoundsKey, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	u.logger.Infof("✅ グリッド生成完了: %s (%d セル)", grid.ID, len(cells))
	return &model.GridGenerationResult{Grid: grid, CellsCreated: len(cells)}, nil
}

func (u *discoveryGridUseCaseImpl) GetOrCreateDefaultGrid(ctx context.Context) (*model.DiscoveryGrid, error) {
	v, err, _ := u.defaultGrid.Do("default", func() (any, error) {
		// 結果は待機中の呼び出し元全員で共有する
		ctx := context.WithoutCancel(ctx)
		grid, err := u.repo.FindFirstGrid(ctx)
		if err == nil {
			return grid, nil
		}
		if !errors.Is(err, model.ErrGridNotFound) {
			return nil, fmt.Errorf("既定グリッドの取得に失敗: %w", err)
		}

		name := u.cfg.DefaultGridName
		if name == "" {
			name = model.DefaultGridName
		}
		cellSize := u.cfg.DefaultCellSizeKm
		if cellSize <= 0 {
			cellSize = model.DefaultCellSizeKm
		}
		grid = &model.DiscoveryGrid{
			Name:       name,
			Region:     model.DefaultGridRegion,
			Province:   model.DefaultGridProvince,
			Queries:    append([]string(nil), u.cfg.DefaultQueries...),
			Bounds:     model.DefaultGridBounds,
			CellSizeKm: cellSize,
			CreatedAt:  u.now(),
		}
		if err := u.repo.CreateGrid(ctx, grid); err != nil {
			return nil, fmt.Errorf("既定グリッドの作成に失敗: %w", err)
		}
		u.logger.Infof("✅ 既定グリッドを作成: %s", grid.ID)
		return grid, nil
	})
	if err != nil {
		return nil, err
	}
	grid := *v.(*model.DiscoveryGrid)
	return &grid, nil
}

func (u *discoveryGridUseCaseImpl) ListGrids(ctx context.Context) ([]model.DiscoveryGrid, error) {
	return u.repo.ListGrids(ctx)
}

func (u *discoveryGridUseCaseImpl) GetGrid(ctx context.Context, gridID string) (*model.DiscoveryGrid, error) {
	return u.repo.GetGrid(ctx, gridID)
}

func (u *discoveryGridUseCaseImpl) view(cell model.DiscoveryCell, now time.Time) model.CellView {
	tier, _ := service.CellFreshness(&cell, now)
	return model.CellView{DiscoveryCell: cell, Freshness: tier}
}

func (u *discoveryGridUseCaseImpl) ListCells(ctx context.Context, gridID string, leavesOnly bool) ([]model.CellView, error) {
	if _, err := u.repo.GetGrid(ctx, gridID); err != nil {
		return nil, err
	}
	var (
		cells []model.DiscoveryCell
		err   error
	)
	if leavesOnly {
		cells, err = u.repo.ListLeafCells(ctx, gridID)
	} else {
		cells, err = u.repo.ListCellsByGrid(ctx, gridID, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("セル一覧の取得に失敗: %w", err)
	}
	now := u.now()
	views := make([]model.CellView, len(cells))
	for i, cell := range cells {
		views[i] = u.view(cell, now)
	}
	return views, nil
}

func (u *discoveryGridUseCaseImpl) GetCell(ctx context.Context, cellID string) (*model.CellView, error) {
	cell, err := u.repo.GetCell(ctx, cellID)
	if err != nil {
		return nil, err
	}
	v := u.view(*cell, u.now())
	return &v, nil
}

func (u *discoveryGridUseCaseImpl) ExportGeoJSON(ctx context.Context, gridID string) (*geojson.FeatureCollection, error) {
	leaves, err := u.ListCells(ctx, gridID, true)
	if err != nil {
		return nil, err
	}
	return repoImpl.CellsToFeatureCollection(leaves), nil
}

func (u *discoveryGridUseCaseImpl) ComputeVirtualTiles(viewport model.BoundingBox, cellSizeKm float64, maxCells int) ([]model.VirtualCell, error) {
	if err := viewport.Validate(); err != nil {
		return nil, err
	}
	if cellSizeKm < 0 {
		return nil, &model.ValidationError{Field: "cell_size_km", Message: "cell_size_km must be positive", Err: model.ErrInvalidCellSize}
	}
	if cellSizeKm == 0 {
		cellSizeKm = u.cfg.DefaultCellSizeKm
	}
	if maxCells <= 0 {
		maxCells = u.cfg.MaxVirtualCells
	}
	metrics.VirtualTileRequestsTotal.Inc()
	tiles := service.ComputeVirtualTiles(viewport, cellSizeKm, maxCells)
	if len(tiles) == 0 {
		metrics.VirtualTilesSuppressedTotal.Inc()
	}
	return tiles, nil
}

func (u *discoveryGridUseCaseImpl) ViewportOverlay(ctx context.Context, gridID string, viewport model.BoundingBox) (*model.ViewportOverlay, error) {
	if err := viewport.Validate(); err != nil {
		return nil, err
	}
	grid, err := u.repo.GetGrid(ctx, gridID)
	if err != nil {
		return nil, err
	}
	cells, err := u.repo.ListCellsByGrid(ctx, gridID, 0)
	if err != nil {
		return nil, fmt.Errorf("セル一覧の取得に失敗: %w", err)
	}

	now := u.now()
	overlay := &model.ViewportOverlay{Cells: []model.CellView{}, VirtualTiles: []model.VirtualCell{}}
	var leaves []model.DiscoveryCell
	for _, cell := range cells {
		if !cell.IsLeaf {
			continue
		}
		leaves = append(leaves, cell)
		if cell.Bounds.Intersects(viewport) {
			overlay.Cells = append(overlay.Cells, u.view(cell, now))
		}
	}

	tiles, err := u.ComputeVirtualTiles(viewport, grid.CellSizeKm, u.cfg.MaxVirtualCells)
	if err != nil {
		return nil, err
	}
	if len(tiles) == 0 {
		overlay.Suppressed = true
		return overlay, nil
	}
	for _, tile := range service.ExcludeActivated(tiles, cells) {
		if grid.Bounds.Contains(tile.Bounds) && !overlapsAny(tile.Bounds, leaves) {
			overlay.VirtualTiles = append(overlay.VirtualTiles, tile)
		}
	}
	return overlay, nil
}

// overlapsAny b がいずれかのセルと面で重なるか（辺の共有は重なりとみなさない）
func overlapsAny(b model.BoundingBox, cells []model.DiscoveryCell) bool {
	for i := range cells {
		if cells[i].Bounds.Intersects(b) {
			return true
		}
	}
	return false
}

func (u *discoveryGridUseCaseImpl) ActivateCell(ctx context.Context, gridID string, req *model.ActivateCellRequest) (*model.ActivationResult, error) {
	if err := req.Bounds.Validate(); err != nil {
		return nil, err
	}
	if req.Depth < 0 {
		return nil, &model.ValidationError{Field: "depth", Message: "depth must not be negative", Err: model.ErrInvalidRequest}
	}
	key := helper.FormatKey(req.Bounds.SWLat, req.Bounds.SWLng)

	grid, err := u.repo.GetGrid(ctx, gridID)
	if err != nil {
		return nil, err
	}
	if req.BoundsKey != "" && req.BoundsKey != key {
		return nil, &model.ValidationError{
			Field:   "bounds_key",
			Message: fmt.Sprintf("bounds_key %q does not match the south-west corner of bounds (%s)", req.BoundsKey, key),
			Err:     model.ErrInvalidBoundsKey,
		}
	}
	if !grid.Bounds.Contains(req.Bounds) {
		return nil, &model.ValidationError{Field: "bounds", Message: "cell bounds must lie inside the grid bounds", Err: model.ErrCellOutsideGrid}
	}

	existing, err := u.repo.FindByBoundsKey(ctx, gridID, key)
	switch {
	case err == nil:
		metrics.CellActivationsTotal.WithLabelValues("existing").Inc()
		return &model.ActivationResult{CellID: existing.ID, AlreadyExisted: true}, nil
	case !errors.Is(err, model.ErrCellNotFound):
		return nil, fmt.Errorf("セルの検索に失敗: %w", err)
	}

	// 既存の葉セルと重なる範囲は活性化しない
	leaves, err := u.repo.ListLeafCells(ctx, gridID)
	if err != nil {
		return nil, fmt.Errorf("セル一覧の取得に失敗: %w", err)
	}
	for _, leaf := range leaves {
		if leaf.BoundsKey != key && leaf.Bounds.Intersects(req.Bounds) {
			return nil, &model.ConflictError{
				CellID:  leaf.ID,
				Message: "cell bounds overlap an existing cell",
				Err:     model.ErrCellOverlap,
			}
		}
	}

	cell := &model.DiscoveryCell{
		GridID:    gridID,
		Bounds:    req.Bounds,
		Depth:     req.Depth,
		IsLeaf:    true,
		Status:    model.StatusUnsearched,
		BoundsKey: key,
	}
	stored, created, err := u.repo.CreateCellIfAbsent(ctx, cell)
	if err != nil {
		return nil, fmt.Errorf("セルの活性化に失敗: %w", err)
	}
	if created {
		metrics.CellActivationsTotal.WithLabelValues("created").Inc()
		u.logger.Debugf("✅ セルを活性化: %s (key: %s)", stored.ID, key)
	} else {
		metrics.CellActivationsTotal.WithLabelValues("existing").Inc()
	}
	return &model.ActivationResult{CellID: stored.ID, AlreadyExisted: !created}, nil
}

func (u *discoveryGridUseCaseImpl) BeginSearch(ctx context.Context, cellID string) (*model.DiscoveryCell, error) {
	cell, err := u.repo.GetCell(ctx, cellID)
	if err != nil {
		return nil, err
	}
	if !cell.IsLeaf {
		return nil, &model.ConflictError{CellID: cellID, Message: "only leaf cells can be searched", Err: model.ErrCellNotLeaf}
	}
	next, err := cell.Status.Transition(model.EventStartSearch)
	if err != nil {
		return nil, &model.ConflictError{CellID: cellID, Message: "cell is already being searched", Err: err}
	}
	now := u.now()
	cell.Status = next
	cell.SearchStartedAt = &now
	if err := u.repo.UpdateCell(ctx, cell); err != nil {
		return nil, fmt.Errorf("セルの更新に失敗: %w", err)
	}
	return cell, nil
}

func (u *discoveryGridUseCaseImpl) RecordSearchResult(ctx context.Context, cellID string, result *model.SearchResult) (*model.DiscoveryCell, error) {
	if result.ResultCount < 0 || result.NewLeads < 0 {
		return nil, &model.ValidationError{Field: "result_count", Message: "counts must not be negative", Err: model.ErrInvalidRequest}
	}
	cell, err := u.repo.GetCell(ctx, cellID)
	if err != nil {
		return nil, err
	}

	merged := service.MergeQuerySaturation(cell.QuerySaturation, result.QueryCounts)
	next, err := cell.Status.Transition(service.ClassifySaturation(merged, u.cfg.SaturationThreshold))
	if err != nil {
		return nil, &model.ConflictError{CellID: cellID, Message: "cell is not being searched", Err: err}
	}

	now := u.now()
	count := result.ResultCount
	cell.Status = next
	cell.QuerySaturation = merged
	cell.ResultCount = &count
	cell.LastSearchedAt = &now
	cell.SearchStartedAt = nil
	if err := u.repo.UpdateCell(ctx, cell); err != nil {
		return nil, fmt.Errorf("検索結果の保存に失敗: %w", err)
	}

	if result.NewLeads > 0 {
		if err := u.repo.AddLeadsFound(ctx, cell.GridID, result.NewLeads); err != nil {
			return nil, fmt.Errorf("リード数の更新に失敗: %w", err)
		}
	}
	metrics.SearchResultsTotal.WithLabelValues(next.String()).Inc()
	u.logger.Infof("✅ 検索結果を記録: %s → %s (%d件)", cellID, next, count)
	return cell, nil
}

func (u *discoveryGridUseCaseImpl) AbortSearch(ctx context.Context, cellID string) (*model.DiscoveryCell, error) {
	cell, err := u.repo.GetCell(ctx, cellID)
	if err != nil {
		return nil, err
	}
	// 過去に検索済みなら保存済みの件数から状態を戻す
	event := model.EventAbortSearch
	if cell.LastSearchedAt != nil {
		event = service.ClassifySaturation(cell.QuerySaturation, u.cfg.SaturationThreshold)
	}
	next, err := cell.Status.Transition(event)
	if err != nil {
		return nil, &model.ConflictError{CellID: cellID, Message: "cell is not being searched", Err: err}
	}
	cell.Status = next
	cell.SearchStartedAt = nil
	if err := u.repo.UpdateCell(ctx, cell); err != nil {
		return nil, fmt.Errorf("セルの更新に失敗: %w", err)
	}
	return cell, nil
}

func (u *discoveryGridUseCaseImpl) ResetOrphanedSearching(ctx context.Context, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		timeout = u.cfg.SearchingTimeout
	}
	cutoff := u.now().Add(-timeout)
	cells, err := u.repo.ListSearchingBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("searching セルの取得に失敗: %w", err)
	}

	reset := 0
	for _, cell := range cells {
		if _, err := u.AbortSearch(ctx, cell.ID); err != nil {
			// 取得後に検索が完了したセルは対象外
			if errors.Is(err, model.ErrInvalidTransition) || errors.Is(err, model.ErrCellNotFound) {
				continue
			}
			return reset, err
		}
		reset++
	}
	if reset > 0 {
		metrics.OrphanedSearchResetsTotal.Add(float64(reset))
		u.logger.Warnf("⚠️ %d件の放置された searching セルをリセット", reset)
	}
	return reset, nil
}

func (u *discoveryGridUseCaseImpl) Subdivide(ctx context.Context, cellID string) ([]model.DiscoveryCell, error) {
	cell, err := u.repo.GetCell(ctx, cellID)
	if err != nil {
		return nil, err
	}
	if _, err := cell.Status.Transition(model.EventSplit); err != nil {
		return nil, &model.ConflictError{CellID: cellID, Message: "cannot subdivide while cell is being searched", Err: err}
	}
	if !cell.IsLeaf {
		return nil, &model.ConflictError{CellID: cellID, Message: "cell has already been subdivided", Err: model.ErrCellNotLeaf}
	}

	existing, err := u.repo.ListChildCells(ctx, cell.ID)
	if err != nil {
		return nil, fmt.Errorf("子セルの取得に失敗: %w", err)
	}

	children := service.NewChildCells(cell)
	for i := range children {
		reused := false
		for _, ex := range existing {
			if service.SameBounds(ex.Bounds, children[i].Bounds) {
				children[i] = ex
				reused = true
				break
			}
		}
		if reused {
			continue
		}
		if err := u.repo.CreateCell(ctx, &children[i]); err != nil {
			return nil, fmt.Errorf("子セル(%s)の作成に失敗: %w", service.Quadrant(i), err)
		}
	}

	cell.IsLeaf = false
	if err := u.repo.UpdateCell(ctx, cell); err != nil {
		return nil, fmt.Errorf("親セルの更新に失敗: %w", err)
	}
	metrics.CellSubdivisionsTotal.Inc()
	u.logger.Infof("✅ セルを4分割: %s (depth %d → %d)", cell.ID, cell.Depth, cell.Depth+1)
	return children[:], nil
}

func (u *discoveryGridUseCaseImpl) Undivide(ctx context.Context, cellID string) (*model.DiscoveryCell, error) {
	cell, err := u.repo.GetCell(ctx, cellID)
	if err != nil {
		return nil, err
	}
	if cell.Depth == 0 {
		return nil, &model.ConflictError{CellID: cellID, Message: "cannot merge a root cell", Err: model.ErrRootCellMerge}
	}

	parent, err := u.resolveParent(ctx, cell)
	if err != nil {
		return nil, err
	}
	descendants, err := u.collectDescendants(ctx, parent)
	if err != nil {
		return nil, err
	}

	mergeConflict := func(id string) error {
		return &model.ConflictError{CellID: id, Message: "cannot merge while a cell is being searched", Err: model.ErrCellSearching}
	}
	if _, err := parent.Status.Transition(model.EventMerge); err != nil {
		return nil, mergeConflict(parent.ID)
	}
	for _, d := range descendants {
		if _, err := d.Status.Transition(model.EventMerge); err != nil {
			return nil, mergeConflict(d.ID)
		}
	}

	// 深い階層から削除する
	sort.SliceStable(descendants, func(i, j int) bool { return descendants[i].Depth > descendants[j].Depth })
	for _, d := range descendants {
		if err := u.repo.DeleteCell(ctx, d.ID); err != nil {
			return nil, fmt.Errorf("子孫セル(%s)の削除に失敗: %w", d.ID, err)
		}
	}

	parent.IsLeaf = true
	if err := u.repo.UpdateCell(ctx, parent); err != nil {
		return nil, fmt.Errorf("親セルの更新に失敗: %w", err)
	}
	metrics.CellMergesTotal.Inc()
	u.logger.Infof("✅ セルを統合: %s (%d件の子孫を削除)", parent.ID, len(descendants))
	return parent, nil
}

// resolveParent parentCellId を優先し、未設定なら同じグリッド内で
// 1階層浅く、セルを包含する分割済みセルを探す
func (u *discoveryGridUseCaseImpl) resolveParent(ctx context.Context, cell *model.DiscoveryCell) (*model.DiscoveryCell, error) {
	if cell.ParentCellID != "" {
		parent, err := u.repo.GetCell(ctx, cell.ParentCellID)
		if errors.Is(err, model.ErrCellNotFound) {
			return nil, fmt.Errorf("%w: %s", model.ErrParentNotFound, cell.ParentCellID)
		}
		return parent, err
	}

	cells, err := u.repo.ListCellsByGrid(ctx, cell.GridID, 0)
	if err != nil {
		return nil, fmt.Errorf("セル一覧の取得に失敗: %w", err)
	}
	for i := range cells {
		c := &cells[i]
		if c.ID != cell.ID && c.Depth == cell.Depth-1 && !c.IsLeaf && c.Bounds.Contains(cell.Bounds) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", model.ErrParentNotFound, cell.ID)
}

// collectDescendants 親セル配下の全セルを幅優先で集める。
// parentCellId を持たない古いセルは包含関係で補う。
func (u *discoveryGridUseCaseImpl) collectDescendants(ctx context.Context, parent *model.DiscoveryCell) ([]model.DiscoveryCell, error) {
	seen := map[string]bool{parent.ID: true}
	var result []model.DiscoveryCell
	queue := []string{parent.ID}

	cells, err := u.repo.ListCellsByGrid(ctx, parent.GridID, 0)
	if err != nil {
		return nil, fmt.Errorf("セル一覧の取得に失敗: %w", err)
	}
	for _, c := range cells {
		if c.ParentCellID == "" && c.Depth > parent.Depth && parent.Bounds.Contains(c.Bounds) && !seen[c.ID] {
			seen[c.ID] = true
			result = append(result, c)
			queue = append(queue, c.ID)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		children, err := u.repo.ListChildCells(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("子セルの取得に失敗: %w", err)
		}
		for _, child := range children {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			result = append(result, child)
			queue = append(queue, child.ID)
		}
	}
	return result, nil
}
