package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"LeadGrid-App/internal/domain/model"
	"LeadGrid-App/internal/domain/repository"
	"LeadGrid-App/internal/infrastructure/database"
)

// SQLDiscoveryRepository PostgreSQL / SQLite 共通のストア
type SQLDiscoveryRepository struct {
	client  *database.SQLClient
	lastSeq atomic.Int64
}

// NewSQLDiscoveryRepository 新しいSQLストアを作成
func NewSQLDiscoveryRepository(client *database.SQLClient) *SQLDiscoveryRepository {
	return &SQLDiscoveryRepository{client: client}
}

var _ repository.DiscoveryRepository = (*SQLDiscoveryRepository)(nil)

const cellColumns = `id, grid_id, parent_cell_id, sw_lat, sw_lng, ne_lat, ne_lng, depth, is_leaf, status,
	result_count, last_searched_at, search_started_at, query_saturation, bounds_key`

const gridColumns = `id, name, region, province, queries, sw_lat, sw_lng, ne_lat, ne_lng, cell_size_km, total_leads_found, created_at`

// nextSeq 挿入順を保つ単調増加の値
func (r *SQLDiscoveryRepository) nextSeq() int64 {
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

func (r *SQLDiscoveryRepository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.client.DB.ExecContext(ctx, r.client.Rebind(query), args...)
}

func (r *SQLDiscoveryRepository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.client.DB.QueryContext(ctx, r.client.Rebind(query), args...)
}

func (r *SQLDiscoveryRepository) CreateGrid(ctx context.Context, grid *model.DiscoveryGrid) error {
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
	_, err = r.exec(ctx, `INSERT INTO discovery_grids (`+gridColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		grid.ID, grid.Name, grid.Region, grid.Province, string(queries),
		grid.Bounds.SWLat, grid.Bounds.SWLng, grid.Bounds.NELat, grid.Bounds.NELng,
		grid.CellSizeKm, grid.TotalLeadsFound, grid.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("グリッドの作成失敗: %w", err)
	}
	return nil
}

func scanGrid(scan func(dest ...any) error) (*model.DiscoveryGrid, error) {
	var g model.DiscoveryGrid
	var queries string
	var createdAt int64
	if err := scan(&g.ID, &g.Name, &g.Region, &g.Province, &queries,
		&g.Bounds.SWLat, &g.Bounds.SWLng, &g.Bounds.NELat, &g.Bounds.NELng,
		&g.CellSizeKm, &g.TotalLeadsFound, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(queries), &g.Queries); err != nil {
		return nil, fmt.Errorf("クエリ一覧のJSONアンマーシャル失敗: %w", err)
	}
	g.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &g, nil
}

func (r *SQLDiscoveryRepository) listGrids(ctx context.Context, query string, args ...any) ([]model.DiscoveryGrid, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("グリッドの取得失敗: %w", err)
	}
	defer rows.Close()
	var grids []model.DiscoveryGrid
	for rows.Next() {
		g, err := scanGrid(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("グリッド行の読み取り失敗: %w", err)
		}
		grids = append(grids, *g)
	}
	return grids, rows.Err()
}

func (r *SQLDiscoveryRepository) GetGrid(ctx context.Context, id string) (*model.DiscoveryGrid, error) {
	grids, err := r.listGrids(ctx, `SELECT `+gridColumns+` FROM discovery_grids WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(grids) == 0 {
		return nil, model.ErrGridNotFound
	}
	return &grids[0], nil
}

func (r *SQLDiscoveryRepository) FindFirstGrid(ctx context.Context) (*model.DiscoveryGrid, error) {
	grids, err := r.listGrids(ctx, `SELECT `+gridColumns+` FROM discovery_grids ORDER BY created_at, id LIMIT 1`)
	if err != nil {
		return nil, err
	}
	if len(grids) == 0 {
		return nil, model.ErrGridNotFound
	}
	return &grids[0], nil
}

func (r *SQLDiscoveryRepository) ListGrids(ctx context.Context) ([]model.DiscoveryGrid, error) {
	return r.listGrids(ctx, `SELECT `+gridColumns+` FROM discovery_grids ORDER BY created_at, id`)
}

func (r *SQLDiscoveryRepository) AddLeadsFound(ctx context.Context, id string, delta int) error {
	res, err := r.exec(ctx, `UPDATE discovery_grids SET total_leads_found = total_leads_found + ? WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("リード数の更新失敗: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrGridNotFound
	}
	return nil
}

func (r *SQLDiscoveryRepository) DeleteGrid(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM discovery_grids WHERE id = ?`, id); err != nil {
		return fmt.Errorf("グリッドの削除失敗: %w", err)
	}
	return nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func saturationJSON(entries []model.QuerySaturation) (sql.NullString, error) {
	if entries == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("飽和情報のJSONマーシャル失敗: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func scanCell(scan func(dest ...any) error) (*model.DiscoveryCell, error) {
	var c model.DiscoveryCell
	var parent, status, boundsKey, saturation sql.NullString
	var resultCount, lastSearched, searchStarted sql.NullInt64
	if err := scan(&c.ID, &c.GridID, &parent,
		&c.Bounds.SWLat, &c.Bounds.SWLng, &c.Bounds.NELat, &c.Bounds.NELng,
		&c.Depth, &c.IsLeaf, &status, &resultCount, &lastSearched, &searchStarted,
		&saturation, &boundsKey); err != nil {
		return nil, err
	}
	c.ParentCellID = parent.String
	c.BoundsKey = boundsKey.String
	parsed, err := model.ParseCellStatus(status.String)
	if err != nil {
		return nil, err
	}
	c.Status = parsed
	if resultCount.Valid {
		v := int(resultCount.Int64)
		c.ResultCount = &v
	}
	if lastSearched.Valid {
		t := time.UnixMilli(lastSearched.Int64).UTC()
		c.LastSearchedAt = &t
	}
	if searchStarted.Valid {
		t := time.UnixMilli(searchStarted.Int64).UTC()
		c.SearchStartedAt = &t
	}
	if saturation.Valid {
		if err := json.Unmarshal([]byte(saturation.String), &c.QuerySaturation); err != nil {
			return nil, fmt.Errorf("飽和情報のJSONアンマーシャル失敗: %w", err)
		}
	}
	return &c, nil
}

func (r *SQLDiscoveryRepository) listCells(ctx context.Context, query string, args ...any) ([]model.DiscoveryCell, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("セルの取得失敗: %w", err)
	}
	defer rows.Close()
	cells := []model.DiscoveryCell{}
	for rows.Next() {
		c, err := scanCell(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("セル行の読み取り失敗: %w", err)
		}
		cells = append(cells, *c)
	}
	return cells, rows.Err()
}

// insertCell 挿入できた場合だけ cell.ID を確定させる
func (r *SQLDiscoveryRepository) insertCell(ctx context.Context, cell *model.DiscoveryCell, onConflict string) (bool, error) {
	id := cell.ID
	if id == "" {
		id = uuid.New().String()
	}
	saturation, err := saturationJSON(cell.QuerySaturation)
	if err != nil {
		return false, err
	}
	res, err := r.exec(ctx, `INSERT INTO discovery_cells (`+cellColumns+`, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`+onConflict,
		id, cell.GridID, nullString(cell.ParentCellID),
		cell.Bounds.SWLat, cell.Bounds.SWLng, cell.Bounds.NELat, cell.Bounds.NELng,
		cell.Depth, cell.IsLeaf, cell.Status.String(), nullInt(cell.ResultCount),
		nullTime(cell.LastSearchedAt), nullTime(cell.SearchStartedAt), saturation,
		nullString(cell.BoundsKey), r.nextSeq())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("挿入件数の取得失敗: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	cell.ID = id
	return true, nil
}

func (r *SQLDiscoveryRepository) CreateCell(ctx context.Context, cell *model.DiscoveryCell) error {
	if _, err := r.insertCell(ctx, cell, ""); err != nil {
		return fmt.Errorf("セルの作成失敗: %w", err)
	}
	return nil
}

func (r *SQLDiscoveryRepository) GetCell(ctx context.Context, id string) (*model.DiscoveryCell, error) {
	cells, err := r.listCells(ctx, `SELECT `+cellColumns+` FROM discovery_cells WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, model.ErrCellNotFound
	}
	return &cells[0], nil
}

func (r *SQLDiscoveryRepository) UpdateCell(ctx context.Context, cell *model.DiscoveryCell) error {
	saturation, err := saturationJSON(cell.QuerySaturation)
	if err != nil {
		return err
	}
	res, err := r.exec(ctx, `UPDATE discovery_cells SET
		parent_cell_id = ?, sw_lat = ?, sw_lng = ?, ne_lat = ?, ne_lng = ?, depth = ?, is_leaf = ?, status = ?,
		result_count = ?, last_searched_at = ?, search_started_at = ?, query_saturation = ?, bounds_key = ?
		WHERE id = ?`,
		nullString(cell.ParentCellID), cell.Bounds.SWLat, cell.Bounds.SWLng, cell.Bounds.NELat, cell.Bounds.NELng,
		cell.Depth, cell.IsLeaf, cell.Status.String(), nullInt(cell.ResultCount),
		nullTime(cell.LastSearchedAt), nullTime(cell.SearchStartedAt), saturation, nullString(cell.BoundsKey),
		cell.ID)
	if err != nil {
		return fmt.Errorf("セルの更新失敗: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrCellNotFound
	}
	return nil
}

func (r *SQLDiscoveryRepository) DeleteCell(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM discovery_cells WHERE id = ?`, id); err != nil {
		return fmt.Errorf("セルの削除失敗: %w", err)
	}
	return nil
}

// CreateCellIfAbsent 一意インデックスと ON CONFLICT DO NOTHING で重複作成を防ぐ
func (r *SQLDiscoveryRepository) CreateCellIfAbsent(ctx context.Context, cell *model.DiscoveryCell) (*model.DiscoveryCell, bool, error) {
	if cell.BoundsKey == "" {
		return nil, false, model.ErrInvalidBoundsKey
	}
	inserted, err := r.insertCell(ctx, cell, ` ON CONFLICT (grid_id, bounds_key) DO NOTHING`)
	if err != nil {
		return nil, false, fmt.Errorf("セルの活性化失敗: %w", err)
	}
	if inserted {
		created := *cell
		return &created, true, nil
	}
	existing, err := r.FindByBoundsKey(ctx, cell.GridID, cell.BoundsKey)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *SQLDiscoveryRepository) FindByBoundsKey(ctx context.Context, gridID, boundsKey string) (*model.DiscoveryCell, error) {
	cells, err := r.listCells(ctx, `SELECT `+cellColumns+` FROM discovery_cells WHERE grid_id = ? AND bounds_key = ?`, gridID, boundsKey)
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, model.ErrCellNotFound
	}
	return &cells[0], nil
}

func (r *SQLDiscoveryRepository) ListCellsByGrid(ctx context.Context, gridID string, limit int) ([]model.DiscoveryCell, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + cellColumns + ` FROM discovery_cells WHERE grid_id = ? ORDER BY seq`)
	args := []any{gridID}
	if limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, limit)
	}
	return r.listCells(ctx, b.String(), args...)
}

func (r *SQLDiscoveryRepository) ListLeafCells(ctx context.Context, gridID string) ([]model.DiscoveryCell, error) {
	return r.listCells(ctx, `SELECT `+cellColumns+` FROM discovery_cells WHERE grid_id = ? AND is_leaf = ? ORDER BY seq`, gridID, true)
}

func (r *SQLDiscoveryRepository) ListChildCells(ctx context.Context, parentID string) ([]model.DiscoveryCell, error) {
	return r.listCells(ctx, `SELECT `+cellColumns+` FROM discovery_cells WHERE parent_cell_id = ? ORDER BY seq`, parentID)
}

func (r *SQLDiscoveryRepository) ListSearchingBefore(ctx context.Context, cutoff time.Time) ([]model.DiscoveryCell, error) {
	return r.listCells(ctx, `SELECT `+cellColumns+` FROM discovery_cells
		WHERE status = ? AND search_started_at IS NOT NULL AND search_started_at < ? ORDER BY seq`,
		model.StatusSearching.String(), cutoff.UnixMilli())
}

// IsUniqueViolation 一意制約違反かを判定する（ドライバ非依存の簡易判定）
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate") || strings.Contains(msg, "23505")
}
