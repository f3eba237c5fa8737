package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"LeadGrid-App/internal/domain/model"
	"LeadGrid-App/internal/domain/repository"
	"LeadGrid-App/internal/infrastructure/metrics"
	"LeadGrid-App/internal/infrastructure/queue"
)

// deleteConcurrency バッチ内のセル削除の同時実行数
const deleteConcurrency = 8

type GridDeletionUseCase interface {
	// DeleteCellBatch グリッドのセルを最大バッチサイズ分削除し、削除件数を返す
	DeleteCellBatch(ctx context.Context, gridID string) (int, error)
	// CascadeDelete セルが無くなるまでバッチ削除を繰り返し、最後にグリッドを削除する
	CascadeDelete(ctx context.Context, gridID string) (*model.DeletionReport, error)
	// RequestDeleteGrid 存在確認後に削除ジョブを登録してすぐに戻る
	RequestDeleteGrid(ctx context.Context, gridID string) error
	// SetScheduler 削除ジョブのスケジューラーを設定する
	SetScheduler(scheduler queue.Scheduler)
	// Worker スケジューラーに渡すジョブ関数
	Worker() queue.Worker
}

// gridDeletionUseCaseImpl はGridDeletionUseCaseの実装
type gridDeletionUseCaseImpl struct {
	repo      repository.DiscoveryRepository
	batchSize int
	logger    *zap.SugaredLogger
	scheduler queue.Scheduler
}

// NewGridDeletionUseCase は新しいGridDeletionUseCaseインスタンスを作成
func NewGridDeletionUseCase(repo repository.DiscoveryRepository, batchSize int, logger *zap.SugaredLogger) GridDeletionUseCase {
	if batchSize <= 0 {
		batchSize = model.DeleteBatchSize
	}
	return &gridDeletionUseCaseImpl{
		repo:      repo,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (u *gridDeletionUseCaseImpl) SetScheduler(scheduler queue.Scheduler) {
	u.scheduler = scheduler
}

func (u *gridDeletionUseCaseImpl) Worker() queue.Worker {
	return func(ctx context.Context, gridID string) error {
		_, err := u.CascadeDelete(ctx, gridID)
		return err
	}
}

func (u *gridDeletionUseCaseImpl) DeleteCellBatch(ctx context.Context, gridID string) (int, error) {
	cells, err := u.repo.ListCellsByGrid(ctx, gridID, u.batchSize)
	if err != nil {
		return 0, fmt.Errorf("削除対象セルの取得に失敗: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deleteConcurrency)
	for _, cell := range cells {
		id := cell.ID
		g.Go(func() error {
			return u.repo.DeleteCell(gctx, id)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("セルの削除に失敗: %w", err)
	}
	return len(cells), nil
}

func (u *gridDeletionUseCaseImpl) CascadeDelete(ctx context.Context, gridID string) (*model.DeletionReport, error) {
	start := time.Now()
	u.logger.Infof("🚀 グリッド削除開始: %s", gridID)

	report := &model.DeletionReport{GridID: gridID}
	for {
		deleted, err := u.DeleteCellBatch(ctx, gridID)
		if err != nil {
			metrics.GridDeletionsTotal.WithLabelValues("failed").Inc()
			u.logger.Errorf("❌ グリッド削除を中断: %s (バッチ %d, 削除済み %d件): %v", gridID, report.Batches+1, report.CellsDeleted, err)
			return report, err
		}
		report.Batches++
		report.CellsDeleted += deleted
		metrics.DeletionBatchesTotal.Inc()
		metrics.CellsDeletedTotal.Add(float64(deleted))
		u.logger.Debugf("🗑️ バッチ %d: %d件削除", report.Batches, deleted)
		if deleted < u.batchSize {
			break
		}
	}

	if err := u.repo.DeleteGrid(ctx, gridID); err != nil {
		metrics.GridDeletionsTotal.WithLabelValues("failed").Inc()
		return report, fmt.Errorf("グリッドの削除に失敗: %w", err)
	}

	metrics.GridDeletionsTotal.WithLabelValues("completed").Inc()
	metrics.DeletionDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	u.logger.Infof("✅ グリッド削除完了: %s (%dバッチ, %d件)", gridID, report.Batches, report.CellsDeleted)
	return report, nil
}

func (u *gridDeletionUseCaseImpl) RequestDeleteGrid(ctx context.Context, gridID string) error {
	if _, err := u.repo.GetGrid(ctx, gridID); err != nil {
		return err
	}
	if u.scheduler == nil {
		return fmt.Errorf("削除スケジューラーが設定されていません")
	}
	if err := u.scheduler.Enqueue(ctx, gridID); err != nil {
		return fmt.Errorf("削除ジョブの登録に失敗: %w", err)
	}
	metrics.GridDeletionsTotal.WithLabelValues("requested").Inc()
	u.logger.Infof("📨 グリッド削除を受付: %s", gridID)
	return nil
}
