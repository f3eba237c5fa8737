package repository

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"LeadGrid-App/internal/domain/model"
	"LeadGrid-App/internal/domain/repository"
)

const (
	firestoreGridsCollection = "discoveryGrids"
	firestoreCellsCollection = "discoveryCells"
)

// FirestoreDiscoveryRepository Firestoreを使用したグリッド・セルのストア
type FirestoreDiscoveryRepository struct {
	client *firestore.Client
}

// NewFirestoreDiscoveryRepository 新しいFirestoreDiscoveryRepositoryインスタンスを作成
func NewFirestoreDiscoveryRepository(client *firestore.Client) *FirestoreDiscoveryRepository {
	return &FirestoreDiscoveryRepository{client: client}
}

var _ repository.DiscoveryRepository = (*FirestoreDiscoveryRepository)(nil)

// firestoreCell Firestore上のセルドキュメント（status は文字列で保存）
type firestoreCell struct {
	GridID          string                  `firestore:"gridId"`
	ParentCellID    string                  `firestore:"parentCellId"`
	Bounds          model.BoundingBox       `firestore:"bounds"`
	Depth           int                     `firestore:"depth"`
	IsLeaf          bool                    `firestore:"isLeaf"`
	Status          string                  `firestore:"status"`
	ResultCount     *int                    `firestore:"resultCount"`
	LastSearchedAt  *time.Time              `firestore:"lastSearchedAt"`
	SearchStartedAt *time.Time              `firestore:"searchStartedAt"`
	QuerySaturation []model.QuerySaturation `firestore:"querySaturation"`
	BoundsKey       string                  `firestore:"boundsKey"`
	CreatedAt       time.Time               `firestore:"createdAt"`
}

func toFirestoreCell(c *model.DiscoveryCell) firestoreCell {
	return firestoreCell{
		GridID:          c.GridID,
		ParentCellID:    c.ParentCellID,
		Bounds:          c.Bounds,
		Depth:           c.Depth,
		IsLeaf:          c.IsLeaf,
		Status:          c.Status.String(),
		ResultCount:     c.ResultCount,
		LastSearchedAt:  c.LastSearchedAt,
		SearchStartedAt: c.SearchStartedAt,
		QuerySaturation: c.QuerySaturation,
		BoundsKey:       c.BoundsKey,
		CreatedAt:       time.Now().UTC(),
	}
}

func (d firestoreCell) toModel(id string) (*model.DiscoveryCell, error) {
	st, err := model.ParseCellStatus(d.Status)
	if err != nil {
		return nil, fmt.Errorf("セル %s のステータスが不正です: %w", id, err)
	}
	return &model.DiscoveryCell{
		ID:              id,
		GridID:          d.GridID,
		ParentCellID:    d.ParentCellID,
		Bounds:          d.Bounds,
		Depth:           d.Depth,
		IsLeaf:          d.IsLeaf,
		Status:          st,
		ResultCount:     d.ResultCount,
		LastSearchedAt:  d.LastSearchedAt,
		SearchStartedAt: d.SearchStartedAt,
		QuerySaturation: d.QuerySaturation,
		BoundsKey:       d.BoundsKey,
	}, nil
}

// activationDocID (gridId, boundsKey) から決まる決定的なドキュメントID
func activationDocID(gridID, boundsKey string) string {
	sum := sha1.Sum([]byte(gridID + "|" + boundsKey))
	return "key_" + hex.EncodeToString(sum[:])
}

// cellDocID boundsKey を持つセルは活性化と同じ決定的ID、それ以外はランダムなID
func cellDocID(cell *model.DiscoveryCell) string {
	if cell.ID != "" {
		return cell.ID
	}
	if cell.BoundsKey != "" {
		return activationDocID(cell.GridID, cell.BoundsKey)
	}
	return uuid.New().String()
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (r *FirestoreDiscoveryRepository) CreateGrid(ctx context.Context, grid *model.DiscoveryGrid) error {
	if grid.ID == "" {
		grid.ID = uuid.New().String()
	}
	if grid.CreatedAt.IsZero() {
		grid.CreatedAt = time.Now().UTC()
	}
	if _, err := r.client.Collection(firestoreGridsCollection).Doc(grid.ID).Create(ctx, grid); err != nil {
		return fmt.Errorf("グリッドの保存に失敗しました: %w", err)
	}
	return nil
}

func (r *FirestoreDiscoveryRepository) gridFromSnapshot(doc *firestore.DocumentSnapshot) (*model.DiscoveryGrid, error) {
	var grid model.DiscoveryGrid
	if err := doc.DataTo(&grid); err != nil {
		return nil, fmt.Errorf("データの変換に失敗しました: %w", err)
	}
	grid.ID = doc.Ref.ID
	return &grid, nil
}

func (r *FirestoreDiscoveryRepository) GetGrid(ctx context.Context, id string) (*model.DiscoveryGrid, error) {
	doc, err := r.client.Collection(firestoreGridsCollection).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, model.ErrGridNotFound
		}
		return nil, fmt.Errorf("グリッドの取得に失敗しました: %w", err)
	}
	return r.gridFromSnapshot(doc)
}

func (r *FirestoreDiscoveryRepository) FindFirstGrid(ctx context.Context) (*model.DiscoveryGrid, error) {
	docs, err := r.client.Collection(firestoreGridsCollection).OrderBy("createdAt", firestore.Asc).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("グリッドの取得に失敗しました: %w", err)
	}
	if len(docs) == 0 {
		return nil, model.ErrGridNotFound
	}
	return r.gridFromSnapshot(docs[0])
}

func (r *FirestoreDiscoveryRepository) ListGrids(ctx context.Context) ([]model.DiscoveryGrid, error) {
	docs, err := r.client.Collection(firestoreGridsCollection).OrderBy("createdAt", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("グリッド一覧の取得に失敗しました: %w", err)
	}
	grids := make([]model.DiscoveryGrid, 0, len(docs))
	for _, doc := range docs {
		grid, err := r.gridFromSnapshot(doc)
		if err != nil {
			return nil, err
		}
		grids = append(grids, *grid)
	}
	return grids, nil
}

func (r *FirestoreDiscoveryRepository) AddLeadsFound(ctx context.Context, id string, delta int) error {
	_, err := r.client.Collection(firestoreGridsCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "totalLeadsFound", Value: firestore.Increment(delta)},
	})
	if err != nil {
		if isNotFound(err) {
			return model.ErrGridNotFound
		}
		return fmt.Errorf("リード数の更新に失敗しました: %w", err)
	}
	return nil
}

func (r *FirestoreDiscoveryRepository) DeleteGrid(ctx context.Context, id string) error {
	if _, err := r.client.Collection(firestoreGridsCollection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("グリッドの削除に失敗しました: %w", err)
	}
	return nil
}

func (r *FirestoreDiscoveryRepository) CreateCell(ctx context.Context, cell *model.DiscoveryCell) error {
	cell.ID = cellDocID(cell)
	if _, err := r.client.Collection(firestoreCellsCollection).Doc(cell.ID).Set(ctx, toFirestoreCell(cell)); err != nil {
		return fmt.Errorf("セルの保存に失敗しました: %w", err)
	}
	return nil
}

func (r *FirestoreDiscoveryRepository) cellFromSnapshot(doc *firestore.DocumentSnapshot) (*model.DiscoveryCell, error) {
	var data firestoreCell
	if err := doc.DataTo(&data); err != nil {
		return nil, fmt.Errorf("データの変換に失敗しました: %w", err)
	}
	return data.toModel(doc.Ref.ID)
}

func (r *FirestoreDiscoveryRepository) GetCell(ctx context.Context, id string) (*model.DiscoveryCell, error) {
	doc, err := r.client.Collection(firestoreCellsCollection).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, model.ErrCellNotFound
		}
		return nil, fmt.Errorf("セルの取得に失敗しました: %w", err)
	}
	return r.cellFromSnapshot(doc)
}

func (r *FirestoreDiscoveryRepository) UpdateCell(ctx context.Context, cell *model.DiscoveryCell) error {
	ref := r.client.Collection(firestoreCellsCollection).Doc(cell.ID)
	data := toFirestoreCell(cell)
	// 作成日時は保持する
	_, err := ref.Set(ctx, map[string]interface{}{
		"gridId":          data.GridID,
		"parentCellId":    data.ParentCellID,
		"bounds":          data.Bounds,
		"depth":           data.Depth,
		"isLeaf":          data.IsLeaf,
		"status":          data.Status,
		"resultCount":     data.ResultCount,
		"lastSearchedAt":  data.LastSearchedAt,
		"searchStartedAt": data.SearchStartedAt,
		"querySaturation": data.QuerySaturation,
		"boundsKey":       data.BoundsKey,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("セルの更新に失敗しました: %w", err)
	}
	return nil
}

func (r *FirestoreDiscoveryRepository) DeleteCell(ctx context.Context, id string) error {
	if _, err := r.client.Collection(firestoreCellsCollection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("セルの削除に失敗しました: %w", err)
	}
	return nil
}

// CreateCellIfAbsent 決定的IDのドキュメントを Create する。既に存在すれば AlreadyExists になるため重複しない
func (r *FirestoreDiscoveryRepository) CreateCellIfAbsent(ctx context.Context, cell *model.DiscoveryCell) (*model.DiscoveryCell, bool, error) {
	if cell.BoundsKey == "" {
		return nil, false, model.ErrInvalidBoundsKey
	}
	id := activationDocID(cell.GridID, cell.BoundsKey)
	_, err := r.client.Collection(firestoreCellsCollection).Doc(id).Create(ctx, toFirestoreCell(cell))
	if err == nil {
		cell.ID = id
		created := *cell
		return &created, true, nil
	}
	if status.Code(err) != codes.AlreadyExists {
		return nil, false, fmt.Errorf("セルの活性化に失敗しました: %w", err)
	}
	existing, err := r.GetCell(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *FirestoreDiscoveryRepository) FindByBoundsKey(ctx context.Context, gridID, boundsKey string) (*model.DiscoveryCell, error) {
	docs, err := r.client.Collection(firestoreCellsCollection).
		Where("gridId", "==", gridID).
		Where("boundsKey", "==", boundsKey).
		Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("セルの取得に失敗しました: %w", err)
	}
	if len(docs) == 0 {
		return nil, model.ErrCellNotFound
	}
	return r.cellFromSnapshot(docs[0])
}

func (r *FirestoreDiscoveryRepository) collectCells(iter *firestore.DocumentIterator) ([]model.DiscoveryCell, error) {
	defer iter.Stop()
	cells := []model.DiscoveryCell{}
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("セル一覧の取得に失敗しました: %w", err)
		}
		cell, err := r.cellFromSnapshot(doc)
		if err != nil {
			return nil, err
		}
		cells = append(cells, *cell)
	}
	return cells, nil
}

func (r *FirestoreDiscoveryRepository) ListCellsByGrid(ctx context.Context, gridID string, limit int) ([]model.DiscoveryCell, error) {
	q := r.client.Collection(firestoreCellsCollection).Where("gridId", "==", gridID)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return r.collectCells(q.Documents(ctx))
}

func (r *FirestoreDiscoveryRepository) ListLeafCells(ctx context.Context, gridID string) ([]model.DiscoveryCell, error) {
	q := r.client.Collection(firestoreCellsCollection).Where("gridId", "==", gridID).Where("isLeaf", "==", true)
	return r.collectCells(q.Documents(ctx))
}

func (r *FirestoreDiscoveryRepository) ListChildCells(ctx context.Context, parentID string) ([]model.DiscoveryCell, error) {
	q := r.client.Collection(firestoreCellsCollection).Where("parentCellId", "==", parentID)
	return r.collectCells(q.Documents(ctx))
}

func (r *FirestoreDiscoveryRepository) ListSearchingBefore(ctx context.Context, cutoff time.Time) ([]model.DiscoveryCell, error) {
	q := r.client.Collection(firestoreCellsCollection).
		Where("status", "==", model.StatusSearching.String()).
		Where("searchStartedAt", "<", cutoff)
	return r.collectCells(q.Documents(ctx))
}
