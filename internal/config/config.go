package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"LeadGrid-App/internal/domain/model"
)

// ストアバックエンド
const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
	BackendSupabase  = "supabase"
)

// 削除キュー
const (
	QueueInProcess = "inprocess"
	QueueRedis     = "redis"
)

// Config アプリケーション設定
type Config struct {
	Port         string `yaml:"port"`
	StoreBackend string `yaml:"store_backend"`

	DatabaseURL        string `yaml:"database_url"`
	SQLitePath         string `yaml:"sqlite_path"`
	FirestoreProjectID string `yaml:"firestore_project_id"`
	SupabaseURL        string `yaml:"supabase_url"`
	SupabaseAnonKey    string `yaml:"supabase_anon_key"`

	DeletionQueue string `yaml:"deletion_queue"`
	RedisHost     string `yaml:"redis_host"`
	RedisPort     string `yaml:"redis_port"`
	RedisPass     string `yaml:"redis_pass"`
	RedisDB       int    `yaml:"redis_db"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Grid GridConfig `yaml:"grid"`
}

// GridConfig ディスカバリーグリッドのチューニング値
type GridConfig struct {
	DefaultCellSizeKm   float64       `yaml:"default_cell_size_km"`
	MaxVirtualCells     int           `yaml:"max_virtual_cells"`
	DeleteBatchSize     int           `yaml:"delete_batch_size"`
	SaturationThreshold int           `yaml:"saturation_threshold"`
	SearchingTimeout    time.Duration `yaml:"searching_timeout"`
	DefaultGridName     string        `yaml:"default_grid_name"`
	DefaultQueries      []string      `yaml:"default_queries"`
}

// Default デフォルト設定
func Default() *Config {
	return &Config{
		Port:          "8080",
		StoreBackend:  BackendMemory,
		SQLitePath:    "leadgrid.db",
		DeletionQueue: QueueInProcess,
		RedisHost:     "localhost",
		RedisPort:     "6379",
		LogLevel:      "info",
		LogFormat:     "console",
		Grid:          DefaultGridConfig(),
	}
}

// DefaultGridConfig グリッド関連のデフォルト値
func DefaultGridConfig() GridConfig {
	return GridConfig{
		DefaultCellSizeKm:   model.DefaultCellSizeKm,
		MaxVirtualCells:     model.DefaultMaxVirtualCells,
		DeleteBatchSize:     model.DeleteBatchSize,
		SaturationThreshold: model.DefaultSaturationThreshold,
		SearchingTimeout:    model.DefaultSearchingTimeout,
		DefaultGridName:     model.DefaultGridName,
	}
}

// Load .env → CONFIG_FILE(YAML) → 環境変数 の順に設定を読み込む
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: .env file not found, using system environment variables")
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗 (%s): %w", path, err)
	}
	return nil
}

// applyEnv 環境変数で上書きする。lookup はテストで差し替える
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("STORE_BACKEND", &c.StoreBackend)
	str("DATABASE_URL", &c.DatabaseURL)
	str("SQLITE_PATH", &c.SQLitePath)
	str("FIRESTORE_PROJECT_ID", &c.FirestoreProjectID)
	str("SUPABASE_URL", &c.SupabaseURL)
	str("SUPABASE_ANON_KEY", &c.SupabaseAnonKey)
	str("DELETION_QUEUE", &c.DeletionQueue)
	str("REDIS_HOST", &c.RedisHost)
	str("REDIS_PORT", &c.RedisPort)
	str("REDIS_PASS", &c.RedisPass)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("DEFAULT_GRID_NAME", &c.Grid.DefaultGridName)

	if v, ok := lookup("DEFAULT_GRID_QUERIES"); ok && v != "" {
		var queries []string
		for _, q := range strings.Split(v, ",") {
			if q = strings.TrimSpace(q); q != "" {
				queries = append(queries, q)
			}
		}
		c.Grid.DefaultQueries = queries
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"REDIS_DB", &c.RedisDB},
		{"MAX_VIRTUAL_CELLS", &c.Grid.MaxVirtualCells},
		{"DELETE_BATCH_SIZE", &c.Grid.DeleteBatchSize},
		{"SATURATION_THRESHOLD", &c.Grid.SaturationThreshold},
	}
	for _, it := range ints {
		v, ok := lookup(it.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s の値が不正です: %q", it.key, v)
		}
		*it.dst = n
	}

	if v, ok := lookup("DEFAULT_CELL_SIZE_KM"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("DEFAULT_CELL_SIZE_KM の値が不正です: %q", v)
		}
		c.Grid.DefaultCellSizeKm = f
	}
	if v, ok := lookup("SEARCHING_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SEARCHING_TIMEOUT の値が不正です: %q", v)
		}
		c.Grid.SearchingTimeout = d
	}
	return nil
}

// Validate 設定値の整合性チェック
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendPostgres, BackendSQLite, BackendFirestore, BackendSupabase:
	default:
		return fmt.Errorf("不明な STORE_BACKEND: %q", c.StoreBackend)
	}
	switch c.DeletionQueue {
	case QueueInProcess, QueueRedis:
	default:
		return fmt.Errorf("不明な DELETION_QUEUE: %q", c.DeletionQueue)
	}
	if c.StoreBackend == BackendPostgres && c.DatabaseURL == "" {
		return fmt.Errorf("STORE_BACKEND=postgres には DATABASE_URL が必要です")
	}
	if c.StoreBackend == BackendFirestore && c.FirestoreProjectID == "" {
		return fmt.Errorf("STORE_BACKEND=firestore には FIRESTORE_PROJECT_ID が必要です")
	}
	if c.StoreBackend == BackendSupabase && (c.SupabaseURL == "" || c.SupabaseAnonKey == "") {
		return fmt.Errorf("STORE_BACKEND=supabase には SUPABASE_URL と SUPABASE_ANON_KEY が必要です")
	}

	g := c.Grid
	if g.DefaultCellSizeKm <= 0 {
		return fmt.Errorf("DEFAULT_CELL_SIZE_KM は正の値である必要があります")
	}
	if g.MaxVirtualCells <= 0 {
		return fmt.Errorf("MAX_VIRTUAL_CELLS は正の値である必要があります")
	}
	if g.DeleteBatchSize <= 0 {
		return fmt.Errorf("DELETE_BATCH_SIZE は正の値である必要があります")
	}
	if g.SaturationThreshold <= 0 {
		return fmt.Errorf("SATURATION_THRESHOLD は正の値である必要があります")
	}
	if g.SearchingTimeout <= 0 {
		return fmt.Errorf("SEARCHING_TIMEOUT は正の値である必要があります")
	}
	return nil
}

// RedisAddr host:port
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}
