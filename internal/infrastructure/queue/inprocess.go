package queue

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// InProcessScheduler バッファ付きチャネルとワーカーgoroutineによるスケジューラー
type InProcessScheduler struct {
	jobs   chan string
	worker Worker
	logger *zap.SugaredLogger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewInProcessScheduler workers 本のワーカーを起動する
func NewInProcessScheduler(worker Worker, workers, buffer int, logger *zap.SugaredLogger) *InProcessScheduler {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	s := &InProcessScheduler{
		jobs:   make(chan string, buffer),
		worker: worker,
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.run()
	}
	return s
}

var _ Scheduler = (*InProcessScheduler)(nil)

func (s *InProcessScheduler) run() {
	defer s.wg.Done()
	for gridID := range s.jobs {
		// リクエストのコンテキストとは切り離して実行する
		if err := s.worker(context.Background(), gridID); err != nil {
			s.logger.Errorf("❌ グリッド削除ジョブ失敗 (grid: %s): %v", gridID, err)
		}
	}
}

func (s *InProcessScheduler) Enqueue(ctx context.Context, gridID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSchedulerClosed
	}
	select {
	case s.jobs <- gridID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close キュー済みのジョブを処理し終えるまで待つ
func (s *InProcessScheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
