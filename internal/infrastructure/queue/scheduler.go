package queue

import (
	"context"
	"errors"
)

// ErrSchedulerClosed Close 後に Enqueue された
var ErrSchedulerClosed = errors.New("deletion scheduler is closed")

// Worker キューから取り出したグリッドIDを処理する関数
type Worker func(ctx context.Context, gridID string) error

// Scheduler グリッド削除ジョブの非同期スケジューラー
type Scheduler interface {
	// Enqueue ジョブを登録してすぐに戻る
	Enqueue(ctx context.Context, gridID string) error
	// Close ワーカーを停止し、実行中のジョブの終了を待つ
	Close() error
}
