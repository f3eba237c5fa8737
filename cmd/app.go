package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"LeadGrid-App/internal/config"
	"LeadGrid-App/internal/domain/repository"
	"LeadGrid-App/internal/infrastructure/database"
	"LeadGrid-App/internal/infrastructure/firestore"
	"LeadGrid-App/internal/infrastructure/logger"
	"LeadGrid-App/internal/infrastructure/queue"
	repoImpl "LeadGrid-App/internal/repository"
	"LeadGrid-App/internal/usecase"
)

// app 設定・ロガー・ストア・ユースケースをまとめたもの
type app struct {
	cfg      *config.Config
	logger   *zap.SugaredLogger
	repo     repository.DiscoveryRepository
	grids    usecase.DiscoveryGridUseCase
	deletion usecase.GridDeletionUseCase
	closers  []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("ロガーの初期化に失敗: %w", err)
	}

	a := &app{cfg: cfg, logger: log}
	if err := a.openRepository(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.grids = usecase.NewDiscoveryGridUseCase(a.repo, cfg.Grid, log)
	a.deletion = usecase.NewGridDeletionUseCase(a.repo, cfg.Grid.DeleteBatchSize, log)
	return a, nil
}

func (a *app) openRepository(ctx context.Context) error {
	a.logger.Infof("🔧 ストアを初期化: %s", a.cfg.StoreBackend)

	switch a.cfg.StoreBackend {
	case config.BackendMemory:
		a.repo = repoImpl.NewMemoryDiscoveryRepository()

	case config.BackendPostgres, config.BackendSQLite:
		var (
			client *database.SQLClient
			err    error
		)
		if a.cfg.StoreBackend == config.BackendPostgres {
			client, err = database.NewPostgreSQLClientWithRetry(a.cfg.DatabaseURL, 5, 2*time.Second)
		} else {
			client, err = database.NewSQLiteClient(a.cfg.SQLitePath)
		}
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)
		if err := client.EnsureSchema(ctx); err != nil {
			return err
		}
		a.repo = repoImpl.NewSQLDiscoveryRepository(client)

	case config.BackendFirestore:
		client, err := firestore.NewFirestoreClient(ctx, a.cfg.FirestoreProjectID, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)
		a.repo = repoImpl.NewFirestoreDiscoveryRepository(client.GetClient())

	case config.BackendSupabase:
		client, err := database.NewSupabaseClient(a.cfg.SupabaseURL, a.cfg.SupabaseAnonKey)
		if err != nil {
			return err
		}
		if err := client.HealthCheck(); err != nil {
			return fmt.Errorf("Supabaseヘルスチェック失敗: %w", err)
		}
		a.repo = repoImpl.NewSupabaseDiscoveryRepository(client)

	default:
		return fmt.Errorf("不明な STORE_BACKEND: %q", a.cfg.StoreBackend)
	}

	a.logger.Infof("✅ ストア初期化完了: %s", a.cfg.StoreBackend)
	return nil
}

// startScheduler 削除キューを起動してユースケースに接続する
func (a *app) startScheduler(ctx context.Context) (queue.Scheduler, error) {
	var (
		scheduler queue.Scheduler
		err       error
	)
	switch a.cfg.DeletionQueue {
	case config.QueueRedis:
		client := queue.OpenRedis(a.cfg.RedisAddr(), a.cfg.RedisPass, a.cfg.RedisDB)
		scheduler, err = queue.NewRedisScheduler(ctx, client, queue.DefaultRedisQueueKey, a.deletion.Worker(), 2, a.logger)
		if err != nil {
			if client != nil {
				client.Close()
			}
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
	default:
		scheduler = queue.NewInProcessScheduler(a.deletion.Worker(), 2, 64, a.logger)
	}
	a.deletion.SetScheduler(scheduler)
	return scheduler, nil
}

// Close 後から開いたものを先に閉じる
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warnf("⚠️ クローズ処理でエラー: %v", err)
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}
