package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pricecrawl/pricecrawl/internal/config"
	"github.com/pricecrawl/pricecrawl/internal/record"
)

// pgxDB is the subset of pgxpool.Pool the backend needs; satisfied by
// pgxmock in tests.
type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Close()
}

// PostgresStorage persists records into a Postgres table via batched inserts.
type PostgresStorage struct {
	db     pgxDB
	logger *zap.Logger
}

func newPostgresStorage(cfg config.StorageConfig, logger *zap.Logger) (Storage, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage kind %q requires storage.dsn", cfg.Kind)
	}
	pool, err := pgxpool.New(context.Background(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresStorage(pool, logger), nil
}

// NewPostgresStorage wraps an existing connection pool.
func NewPostgresStorage(db pgxDB, logger *zap.Logger) *PostgresStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStorage{db: db, logger: logger}
}

// Save creates the destination table if needed and batch-inserts all items.
func (s *PostgresStorage) Save(ctx context.Context, items []record.Record, destination string) error {
	if len(items) == 0 {
		return nil
	}

	table := pgx.Identifier{destination}.Sanitize()
	createSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		shop_name TEXT NOT NULL,
		sku TEXT,
		name TEXT NOT NULL,
		price_regular DOUBLE PRECISION NOT NULL,
		price_promo DOUBLE PRECISION,
		scrape_time TIMESTAMPTZ NOT NULL,
		url TEXT NOT NULL
	)`, table)
	if _, err := s.db.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("create table %s: %w", destination, err)
	}

	insertSQL := fmt.Sprintf(
		`INSERT INTO %s (shop_name, sku, name, price_regular, price_promo, scrape_time, url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`, table)

	batch := &pgx.Batch{}
	for _, item := range items {
		var promo *float64
		if item.PricePromo != 0 {
			v := item.PricePromo
			promo = &v
		}
		var sku *string
		if item.SKU != "" {
			v := item.SKU
			sku = &v
		}
		batch.Queue(insertSQL, item.ShopName, sku, item.Name, item.PriceRegular, promo, item.ScrapeTime, item.URL)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()
	for range items {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert into %s: %w", destination, err)
		}
	}

	s.logger.Info("postgres results written",
		zap.Int("items", len(items)),
		zap.String("table", destination),
	)
	return nil
}

// Close releases the connection pool.
func (s *PostgresStorage) Close() error {
	s.db.Close()
	return nil
}
