package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRedisQueueKey 削除ジョブを積むリストのキー
const DefaultRedisQueueKey = "leadgrid:grid-deletions"

const redisPopTimeout = 2 * time.Second

// RedisScheduler Redis リスト (LPUSH / BRPOP) によるスケジューラー
//
// 複数プロセスが同じキーを購読しても1ジョブは1ワーカーにだけ渡る。
type RedisScheduler struct {
	client *redis.Client
	key    string
	worker Worker
	logger *zap.SugaredLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// OpenRedis アドレスとパスワード、DB番号から Redis クライアントを作成
func OpenRedis(addr, pass string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}

// NewRedisScheduler 疎通確認後に workers 本のワーカーを起動する
func NewRedisScheduler(ctx context.Context, client *redis.Client, key string, worker Worker, workers int, logger *zap.SugaredLogger) (*RedisScheduler, error) {
	if client == nil {
		return nil, fmt.Errorf("Redisクライアントが初期化されていません")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redisへの接続に失敗: %w", err)
	}
	if key == "" {
		key = DefaultRedisQueueKey
	}
	if workers <= 0 {
		workers = 1
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &RedisScheduler{
		client: client,
		key:    key,
		worker: worker,
		logger: logger,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.run(runCtx)
	}
	logger.Infof("✅ Redis削除キュー開始 (key: %s, workers: %d)", key, workers)
	return s, nil
}

var _ Scheduler = (*RedisScheduler)(nil)

func (s *RedisScheduler) run(ctx context.Context) {
	defer s.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		res, err := s.client.BRPop(ctx, redisPopTimeout, s.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.logger.Warnf("⚠️ Redis BRPOP失敗: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		// res = [key, value]
		if len(res) != 2 {
			continue
		}
		gridID := res[1]
		if err := s.worker(context.Background(), gridID); err != nil {
			s.logger.Errorf("❌ グリッド削除ジョブ失敗 (grid: %s): %v", gridID, err)
		}
	}
}

func (s *RedisScheduler) Enqueue(ctx context.Context, gridID string) error {
	if err := s.client.LPush(ctx, s.key, gridID).Err(); err != nil {
		return fmt.Errorf("削除ジョブの登録に失敗: %w", err)
	}
	return nil
}

// Close ワーカーを停止する。クライアントのクローズは呼び出し側が行う
func (s *RedisScheduler) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
	return nil
}
