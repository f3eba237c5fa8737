package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"

	"LeadGrid-App/internal/domain/model"
	"LeadGrid-App/internal/domain/repository"
	"LeadGrid-App/internal/infrastructure/database"
)

const (
	supabaseGridsTable = "discovery_grids"
	supabaseCellsTable = "discovery_cells"
)

// SupabaseDiscoveryRepository Supabase(PostgREST)経由のストア。テーブル定義はSQLストアと共通
type SupabaseDiscoveryRepository struct {
	client  *database.SupabaseClient
	lastSeq atomic.Int64
}

// NewSupabaseDiscoveryRepository 新しいSupabaseDiscoveryRepositoryインスタンスを作成
func NewSupabaseDiscoveryRepository(client *database.SupabaseClient) *SupabaseDiscoveryRepository {
	return &SupabaseDiscoveryRepository{client: client}
}

var _ repository.DiscoveryRepository = (*SupabaseDiscoveryRepository)(nil)

type supabaseGridRow struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Region          string  `json:"region"`
	Province        string  `json:"province"`
	Queries         string  `json:"queries"`
	SWLat           float64 `json:"sw_lat"`
	SWLng           float64 `json:"sw_lng"`
	NELat           float64 `json:"ne_lat"`
	NELng           float64 `json:"ne_lng"`
	CellSizeKm      float64 `json:"cell_size_km"`
	TotalLeadsFound int     `json:"total_leads_found"`
	CreatedAt       int64   `json:"created_at"`
}

type supabaseCellRow struct {
	ID              string  `json:"id"`
	GridID          string  `json:"grid_id"`
	ParentCellID    *string `json:"parent_cell_id"`
	SWLat           float64 `json:"sw_lat"`
	SWLng           float64 `json:"sw_lng"`
	NELat           float64 `json:"ne_lat"`
	NELng           float64 `json:"ne_lng"`
	Depth           int     `json:"depth"`
	IsLeaf          bool    `json:"is_leaf"`
	Status          string  `json:"status"`
	ResultCount     *int    `json:"result_count"`
	LastSearchedAt  *int64  `json:"last_searched_at"`
	SearchStartedAt *int64  `json:"search_started_at"`
	QuerySaturation *string `json:"query_saturation"`
	BoundsKey       *string `json:"bounds_key"`
	Seq             int64   `json:"seq,omitempty"`
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func optionalMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.UnixMilli()
	return &v
}

func fromMillis(v *int64) *time.Time {
	if v == nil {
		return nil
	}
	t := time.UnixMilli(*v).UTC()
	return &t
}

func toSupabaseCellRow(c *model.DiscoveryCell) (supabaseCellRow, error) {
	row := supabaseCellRow{
		ID:              c.ID,
		GridID:          c.GridID,
		ParentCellID:    optionalString(c.ParentCellID),
		SWLat:           c.Bounds.SWLat,
		SWLng:           c.Bounds.SWLng,
		NELat:           c.Bounds.NELat,
		NELng:           c.Bounds.NELng,
		Depth:           c.Depth,
		IsLeaf:          c.IsLeaf,
		Status:          c.Status.String(),
		ResultCount:     c.ResultCount,
		LastSearchedAt:  optionalMillis(c.LastSearchedAt),
		SearchStartedAt: optionalMillis(c.SearchStartedAt),
		BoundsKey:       optionalString(c.BoundsKey),
	}
	if c.QuerySaturation != nil {
		b, err := json.Marshal(c.QuerySaturation)
		if err != nil {
			return row, fmt.Errorf("飽和情報のJSONマーシャル失敗: %w", err)
		}
		s := string(b)
		row.QuerySaturation = &s
	}
	return row, nil
}

func (row supabaseCellRow) toModel() (*model.DiscoveryCell, error) {
	st, err := model.ParseCellStatus(row.Status)
	if err != nil {
		return nil, err
	}
	c := &model.DiscoveryCell{
		ID:              row.ID,
		GridID:          row.GridID,
		Bounds:          model.BoundingBox{SWLat: row.SWLat, SWLng: row.SWLng, NELat: row.NELat, NELng: row.NELng},
		Depth:           row.Depth,
		IsLeaf:          row.IsLeaf,
		Status:          st,
		ResultCount:     row.ResultCount,
		LastSearchedAt:  fromMillis(row.LastSearchedAt),
		SearchStartedAt: fromMillis(row.SearchStartedAt),
	}
	if row.ParentCellID != nil {
		c.ParentCellID = *row.ParentCellID
	}
	if row.BoundsKey != nil {
		c.BoundsKey = *row.BoundsKey
	}
	if row.QuerySaturation != nil {
		if err := json.Unmarshal([]byte(*row.QuerySaturation), &c.QuerySaturation); err != nil {
			return nil, fmt.Errorf("飽和情報のJSONアンマーシャル失敗: %w", err)
		}
	}
	return c, nil
}

func (row supabaseGridRow) toModel() (*model.DiscoveryGrid, error) {
	g := &model.DiscoveryGrid{
		ID:              row.ID,
		Name:            row.Name,
		Region:          row.Region,
		Province:        row.Province,
		Bounds:          model.BoundingBox{SWLat: row.SWLat, SWLng: row.SWLng, NELat: row.NELat, NELng: row.NELng},
		CellSizeKm:      row.CellSizeKm,
		TotalLeadsFound: row.TotalLeadsFound,
		CreatedAt:       time.UnixMilli(row.CreatedAt).UTC(),
	}
	if err := json.Unmarshal([]byte(row.Queries), &g.Queries); err != nil {
		return nil, fmt.Errorf("クエリ一覧のJSONアンマーシャル失敗: %w", err)
	}
	return g, nil
}

func decodeGrids(data []byte) ([]model.DiscoveryGrid, error) {
	var rows []supabaseGridRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("グリッドデータのJSONアンマーシャル失敗: %w", err)
	}
	grids := make([]model.DiscoveryGrid, 0, len(rows))
	for _, row := range rows {
		g, err := row.toModel()
		if err != nil {
			return nil, err
		}
		grids = append(grids, *g)
	}
	return grids, nil
}

func decodeCells(data []byte) ([]model.DiscoveryCell, error) {
	var rows []supabaseCellRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("セルデータのJSONアンマーシャル失敗: %w", err)
	}
	cells := make([]model.DiscoveryCell, 0, len(rows))
	for _, row := range rows {
		c, err := row.toModel()
		if err != nil {
			return nil, err
		}
		cells = append(cells, *c)
	}
	return cells, nil
}

func (r *SupabaseDiscoveryRepository) nextSeq() int64 {
	for {
		prev := r.lastSeq.Load()
		next := time.Now().UnixNano()
		if next <= prev {
			next = prev + 1
		}
		if r.lastSeq.CompareAndSwap(prev, next) {
			return next
		}
	}
}

var seqAscending = &postgrest.OrderOpts{Ascending: true}

func (r *SupabaseDiscoveryRepository) CreateGrid(ctx context.Context, grid *model.DiscoveryGrid) error {
	if grid.ID == "" {
		grid.ID = uuid.New().String()
	}
	if grid.CreatedAt.IsZero() {
		grid.CreatedAt = time.Now().UTC()
	}
	queries, err := json.Marshal(grid.Queries)
	if err != nil {
		return fmt.Errorf("クエリ一覧のJSONマーシャル失敗: %w", err)
	}
	row := supabaseGridRow{
		ID: grid.ID, Name: grid.Name, Region: grid.Region, Province: grid.Province, Queries: string(queries),
		SWLat: grid.Bounds.SWLat, SWLng: grid.Bounds.SWLng, NELat: grid.Bounds.NELat, NELng: grid.Bounds.NELng,
		CellSizeKm: grid.CellSizeKm, TotalLeadsFound: grid.TotalLeadsFound, CreatedAt: grid.CreatedAt.UnixMilli(),
	}
	if _, _, err := r.client.GetClient().From(supabaseGridsTable).Insert(row, false, "", "", "").Execute(); err != nil {
		return fmt.Errorf("グリッドデータの作成失敗: %w", err)
	}
	return nil
}

func (r *SupabaseDiscoveryRepository) GetGrid(ctx context.Context, id string) (*model.DiscoveryGrid, error) {
	data, _, err := r.client.GetClient().From(supabaseGridsTable).Select("*", "", false).Eq("id", id).Execute()
	if err != nil {
		return nil, fmt.Errorf("グリッドデータの取得失敗: %w", err)
	}
	grids, err := decodeGrids(data)
	if err != nil {
		return nil, err
	}
	if len(grids) == 0 {
		return nil, model.ErrGridNotFound
	}
	return &grids[0], nil
}

func (r *SupabaseDiscoveryRepository) FindFirstGrid(ctx context.Context) (*model.DiscoveryGrid, error) {
	data, _, err := r.client.GetClient().From(supabaseGridsTable).Select("*", "", false).
		Order("created_at", seqAscending).Limit(1, "").Execute()
	if err != nil {
		return nil, fmt.Errorf("グリッドデータの取得失敗: %w", err)
	}
	grids, err := decodeGrids(data)
	if err != nil {
		return nil, err
	}
	if len(grids) == 0 {
		return nil, model.ErrGridNotFound
	}
	return &grids[0], nil
}

func (r *SupabaseDiscoveryRepository) ListGrids(ctx context.Context) ([]model.DiscoveryGrid, error) {
	data, _, err := r.client.GetClient().From(supabaseGridsTable).Select("*", "", false).
		Order("created_at", seqAscending).Execute()
	if err != nil {
		return nil, fmt.Errorf("全グリッドデータの取得失敗: %w", err)
	}
	return decodeGrids(data)
}

// AddLeadsFound PostgreSQL関数 discovery_add_leads_found(grid_id, delta) を呼び出し、1回の更新で加算する
func (r *SupabaseDiscoveryRepository) AddLeadsFound(ctx context.Context, id string, delta int) error {
	if _, err := r.GetGrid(ctx, id); err != nil {
		return err
	}
	r.client.GetClient().Rpc("discovery_add_leads_found", "", map[string]interface{}{
		"grid_id": id,
		"delta":   delta,
	})
	return nil
}

func (r *SupabaseDiscoveryRepository) DeleteGrid(ctx context.Context, id string) error {
	if _, _, err := r.client.GetClient().From(supabaseGridsTable).Delete("", "").Eq("id", id).Execute(); err != nil {
		return fmt.Errorf("グリッドデータの削除失敗: %w", err)
	}
	return nil
}

func (r *SupabaseDiscoveryRepository) CreateCell(ctx context.Context, cell *model.DiscoveryCell) error {
	if cell.ID == "" {
		cell.ID = uuid.New().String()
	}
	row, err := toSupabaseCellRow(cell)
	if err != nil {
		return err
	}
	row.Seq = r.nextSeq()
	if _, _, err := r.client.GetClient().From(supabaseCellsTable).Insert(row, false, "", "", "").Execute(); err != nil {
		return fmt.Errorf("セルデータの作成失敗: %w", err)
	}
	return nil
}

func (r *SupabaseDiscoveryRepository) selectCells(column, value string) ([]model.DiscoveryCell, error) {
	data, _, err := r.client.GetClient().From(supabaseCellsTable).Select("*", "", false).
		Eq(column, value).Order("seq", seqAscending).Execute()
	if err != nil {
		return nil, fmt.Errorf("セルデータの取得失敗: %w", err)
	}
	return decodeCells(data)
}

func (r *SupabaseDiscoveryRepository) GetCell(ctx context.Context, id string) (*model.DiscoveryCell, error) {
	cells, err := r.selectCells("id", id)
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, model.ErrCellNotFound
	}
	return &cells[0], nil
}

func (r *SupabaseDiscoveryRepository) UpdateCell(ctx context.Context, cell *model.DiscoveryCell) error {
	row, err := toSupabaseCellRow(cell)
	if err != nil {
		return err
	}
	data, _, err := r.client.GetClient().From(supabaseCellsTable).Update(row, "representation", "").Eq("id", cell.ID).Execute()
	if err != nil {
		return fmt.Errorf("セルデータの更新失敗: %w", err)
	}
	updated, err := decodeCells(data)
	if err == nil && len(updated) == 0 {
		return model.ErrCellNotFound
	}
	return nil
}

func (r *SupabaseDiscoveryRepository) DeleteCell(ctx context.Context, id string) error {
	if _, _, err := r.client.GetClient().From(supabaseCellsTable).Delete("", "").Eq("id", id).Execute(); err != nil {
		return fmt.Errorf("セルデータの削除失敗: %w", err)
	}
	return nil
}

// CreateCellIfAbsent 確認してから挿入する。一意制約違反なら同時に作成された既存セルを返す
func (r *SupabaseDiscoveryRepository) CreateCellIfAbsent(ctx context.Context, cell *model.DiscoveryCell) (*model.DiscoveryCell, bool, error) {
	if cell.BoundsKey == "" {
		return nil, false, model.ErrInvalidBoundsKey
	}
	existing, err := r.FindByBoundsKey(ctx, cell.GridID, cell.BoundsKey)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, model.ErrCellNotFound) {
		return nil, false, err
	}
	id := cell.ID
	if err := r.CreateCell(ctx, cell); err != nil {
		cell.ID = id
		if IsUniqueViolation(err) {
			existing, findErr := r.FindByBoundsKey(ctx, cell.GridID, cell.BoundsKey)
			if findErr != nil {
				return nil, false, findErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	created := *cell
	return &created, true, nil
}

func (r *SupabaseDiscoveryRepository) FindByBoundsKey(ctx context.Context, gridID, boundsKey string) (*model.DiscoveryCell, error) {
	data, _, err := r.client.GetClient().From(supabaseCellsTable).Select("*", "", false).
		Eq("grid_id", gridID).Eq("bounds_key", boundsKey).Limit(1, "").Execute()
	if err != nil {
		return nil, fmt.Errorf("セルデータの取得失敗: %w", err)
	}
	cells, err := decodeCells(data)
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, model.ErrCellNotFound
	}
	return &cells[0], nil
}

func (r *SupabaseDiscoveryRepository) ListCellsByGrid(ctx context.Context, gridID string, limit int) ([]model.DiscoveryCell, error) {
	q := r.client.GetClient().From(supabaseCellsTable).Select("*", "", false).
		Eq("grid_id", gridID).Order("seq", seqAscending)
	if limit > 0 {
		q = q.Limit(limit, "")
	}
	data, _, err := q.Execute()
	if err != nil {
		return nil, fmt.Errorf("セルデータの取得失敗: %w", err)
	}
	return decodeCells(data)
}

func (r *SupabaseDiscoveryRepository) ListLeafCells(ctx context.Context, gridID string) ([]model.DiscoveryCell, error) {
	data, _, err := r.client.GetClient().From(supabaseCellsTable).Select("*", "", false).
		Eq("grid_id", gridID).Eq("is_leaf", "true").Order("seq", seqAscending).Execute()
	if err != nil {
		return nil, fmt.Errorf("リーフセルの取得失敗: %w", err)
	}
	return decodeCells(data)
}

func (r *SupabaseDiscoveryRepository) ListChildCells(ctx context.Context, parentID string) ([]model.DiscoveryCell, error) {
	return r.selectCells("parent_cell_id", parentID)
}

func (r *SupabaseDiscoveryRepository) ListSearchingBefore(ctx context.Context, cutoff time.Time) ([]model.DiscoveryCell, error) {
	data, _, err := r.client.GetClient().From(supabaseCellsTable).Select("*", "", false).
		Eq("status", model.StatusSearching.String()).
		Lt("search_started_at", strconv.FormatInt(cutoff.UnixMilli(), 10)).
		Order("seq", seqAscending).Execute()
	if err != nil {
		return nil, fmt.Errorf("検索中セルの取得失敗: %w", err)
	}
	return decodeCells(data)
}
