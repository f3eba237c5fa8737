package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect SQL方言
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQLClient database/sql 接続と方言のラッパー
type SQLClient struct {
	DB      *sql.DB
	Dialect Dialect
}

// NewPostgreSQLClient DSN から PostgreSQL クライアントを作成
func NewPostgreSQLClient(dsn string) (*SQLClient, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL環境変数が設定されていません")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("PostgreSQL接続の初期化に失敗: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)

	// 接続テスト
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("PostgreSQLへの接続に失敗: %w", err)
	}

	return &SQLClient{DB: db, Dialect: DialectPostgres}, nil
}

// NewPostgreSQLClientWithRetry 起動直後のDBに備えてリトライ付きで接続する
func NewPostgreSQLClientWithRetry(dsn string, attempts int, wait time.Duration) (*SQLClient, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		client, err := NewPostgreSQLClient(dsn)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(wait)
	}
	return nil, fmt.Errorf("PostgreSQL接続リトライ上限(%d回)に到達: %w", attempts, lastErr)
}

// NewSQLiteClient SQLite ファイル（":memory:" 可）を開く
func NewSQLiteClient(path string) (*SQLClient, error) {
	if path == "" {
		path = "leadgrid.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("SQLite接続の初期化に失敗: %w", err)
	}
	// SQLite は単一ライター。":memory:" は接続毎に別DBになるため1本に固定する
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("SQLite初期設定に失敗: %w", err)
	}
	return &SQLClient{DB: db, Dialect: DialectSQLite}, nil
}

// Rebind "?" プレースホルダを方言に合わせて書き換える
func (c *SQLClient) Rebind(query string) string {
	if c.Dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var discoverySchema = []string{
	`CREATE TABLE IF NOT EXISTS discovery_grids (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		region TEXT NOT NULL DEFAULT '',
		province TEXT NOT NULL DEFAULT '',
		queries TEXT NOT NULL DEFAULT '[]',
		sw_lat DOUBLE PRECISION NOT NULL,
		sw_lng DOUBLE PRECISION NOT NULL,
		ne_lat DOUBLE PRECISION NOT NULL,
		ne_lng DOUBLE PRECISION NOT NULL,
		cell_size_km DOUBLE PRECISION NOT NULL,
		total_leads_found INTEGER NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS discovery_cells (
		id TEXT PRIMARY KEY,
		grid_id TEXT NOT NULL,
		parent_cell_id TEXT,
		sw_lat DOUBLE PRECISION NOT NULL,
		sw_lng DOUBLE PRECISION NOT NULL,
		ne_lat DOUBLE PRECISION NOT NULL,
		ne_lng DOUBLE PRECISION NOT NULL,
		depth INTEGER NOT NULL,
		is_leaf BOOLEAN NOT NULL,
		status TEXT NOT NULL,
		result_count INTEGER,
		last_searched_at BIGINT,
		search_started_at BIGINT,
		query_saturation TEXT,
		bounds_key TEXT,
		seq BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_discovery_cells_grid ON discovery_cells (grid_id, seq)`,
	`CREATE INDEX IF NOT EXISTS idx_discovery_cells_grid_leaf ON discovery_cells (grid_id, is_leaf)`,
	`CREATE INDEX IF NOT EXISTS idx_discovery_cells_parent ON discovery_cells (parent_cell_id)`,
	`CREATE INDEX IF NOT EXISTS idx_discovery_cells_status ON discovery_cells (status, search_started_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_discovery_cells_bounds_key ON discovery_cells (grid_id, bounds_key)`,
}

// EnsureSchema グリッド・セルのテーブルとインデックスを作成する
func (c *SQLClient) EnsureSchema(ctx context.Context) error {
	for _, stmt := range discoverySchema {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("スキーマ作成に失敗: %w", err)
		}
	}
	return nil
}

// Close データベース接続を閉じる
func (c *SQLClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// HealthCheck データベース接続のヘルスチェック
func (c *SQLClient) HealthCheck() error {
	if c.DB == nil {
		return fmt.Errorf("SQLクライアントが初期化されていません")
	}
	return c.DB.Ping()
}
