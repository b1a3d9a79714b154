package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
	"github.com/thisisjab/docquery/entity"
)

type ClickHouseStorageConfig struct {
	Addr     []string `yaml:"addr"`
	Database string   `yaml:"database"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
}

// ClickHouseStorage keeps an audit log of client requests in ClickHouse.
type ClickHouseStorage struct {
	conn clickhouse.Conn
	cfg  ClickHouseStorageConfig
}

func NewClickHouseStorage(cfg ClickHouseStorageConfig) (*ClickHouseStorage, error) {
	if len(cfg.Addr) == 0 {
		return nil, fmt.Errorf("clickhouse addr is required")
	}

	return &ClickHouseStorage{cfg: cfg}, nil
}

func setupClickHouseTables(ctx context.Context, conn driver.Conn) error {
	// request_body holds the encoded query; ClickHouse handles bytes as String.
	return conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS request_log (
			id UUID,
			timestamp DateTime64(3),
			method LowCardinality(String),
			url String,
			collection String,
			action LowCardinality(String),
			status UInt16,
			duration_ms UInt64,
			error String,
			request_body String
		)
		ENGINE = MergeTree
		ORDER BY (collection, timestamp, id)
		PARTITION BY toYYYYMM(timestamp)
	`)
}

func (s *ClickHouseStorage) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: s.cfg.Addr,
		Auth: clickhouse.Auth{
			Database: s.cfg.Database,
			Username: s.cfg.Username,
			Password: s.cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return fmt.Errorf("failed to connect: %v", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping the database: %w", err)
	}

	s.conn = conn

	if err := setupClickHouseTables(ctx, conn); err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	return nil
}

func (s *ClickHouseStorage) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}

	return s.conn.Close()
}

func (s *ClickHouseStorage) StoreRequests(ctx context.Context, records ...entity.RequestRecord) error {
	if len(records) == 0 {
		return nil
	}

	if s.conn == nil {
		return fmt.Errorf("clickhouse storage is not connected")
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO request_log (id, timestamp, method, url, collection, action, status, duration_ms, error, request_body)")
	if err != nil {
		return fmt.Errorf("couldn't prepare batch: %w", err)
	}

	for _, rec := range records {
		err = batch.Append(row(rec)...)

		if err != nil {
			return fmt.Errorf("couldn't append record to batch: %w", err)
		}
	}

	err = batch.Send()
	if err != nil {
		return fmt.Errorf("couldn't send batch: %w", err)
	}

	return nil
}

// row maps a record onto the request_log columns.
func row(rec entity.RequestRecord) []any {
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	return []any{
		id,
		rec.Timestamp,
		rec.Method,
		rec.URL,
		rec.Collection,
		rec.Action,
		uint16(rec.Status),
		uint64(rec.Duration.Milliseconds()),
		rec.Error,
		string(rec.RequestBody),
	}
}
