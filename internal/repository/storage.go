package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"crop-outbreaks/internal/config"
)

// Storage owns the Postgres pool and the Redis client backing the feed.
type Storage struct {
	db    *sql.DB
	redis *redis.Client
}

func NewPostgresDB(dbURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	return db, nil
}

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		Username:     cfg.User,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}

	return client, nil
}

func NewStorage(ctx context.Context, dbURL string, redisCfg config.RedisConfig) (*Storage, error) {
	db, err := NewPostgresDB(dbURL)
	if err != nil {
		return nil, err
	}
	client, err := NewRedisClient(ctx, redisCfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Storage{db: db, redis: client}, nil
}

func (s *Storage) CreateTables(ctx context.Context) error {
	return CreateTables(ctx, s.db)
}

func (s *Storage) Reports() *PostgresReportStore {
	return NewPostgresReportStore(s.db)
}

func (s *Storage) Alerts() *PostgresAlertStore {
	return NewPostgresAlertStore(s.db)
}

func (s *Storage) Redis() *redis.Client {
	return s.redis
}

// Ping checks both backends independently.
func (s *Storage) Ping(ctx context.Context) (dbErr, redisErr error) {
	if s.db != nil {
		dbErr = s.db.PingContext(ctx)
	}
	if s.redis != nil {
		redisErr = s.redis.Ping(ctx).Err()
	}
	return dbErr, redisErr
}

func (s *Storage) Close() error {
	var errPostgres, errRedis error

	if s.db != nil {
		errPostgres = s.db.Close()
	}
	if s.redis != nil {
		errRedis = s.redis.Close()
	}

	if errPostgres != nil || errRedis != nil {
		return fmt.Errorf("close errors: postgres=%v, redis=%v", errPostgres, errRedis)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS reports (
    id              UUID PRIMARY KEY,
    user_id         TEXT             NOT NULL,
    predicted_label TEXT             NOT NULL,
    confidence      DOUBLE PRECISION NOT NULL,
    notes           TEXT,
    lat             DOUBLE PRECISION,
    lng             DOUBLE PRECISION,
    created_at      TIMESTAMPTZ      NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS reports_created_at_idx ON reports (created_at DESC);

CREATE TABLE IF NOT EXISTS outbreak_alerts (
    id               UUID PRIMARY KEY,
    source_report_id TEXT             NOT NULL,
    created_by       TEXT             NOT NULL,
    disease_label    TEXT             NOT NULL,
    summary          TEXT             NOT NULL,
    is_outbreak      BOOLEAN          NOT NULL DEFAULT TRUE,
    severity         TEXT,
    lat              DOUBLE PRECISION NOT NULL,
    lng              DOUBLE PRECISION NOT NULL,
    radius_km        DOUBLE PRECISION NOT NULL CHECK (radius_km > 0 AND radius_km <= 100),
    nearby_count     INTEGER          NOT NULL CHECK (nearby_count >= 0),
    evaluated_at     TIMESTAMPTZ      NOT NULL,
    created_at       TIMESTAMPTZ      NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS outbreak_alerts_label_created_idx ON outbreak_alerts (disease_label, created_at DESC);
`

func CreateTables(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "create tables")
	}
	return nil
}
