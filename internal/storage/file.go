package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pricecrawl/pricecrawl/internal/config"
	"github.com/pricecrawl/pricecrawl/internal/record"
)

// CSVStorage writes records to a semicolon-delimited CSV file.
type CSVStorage struct {
	logger *zap.Logger
}

func newCSVStorage(_ config.StorageConfig, logger *zap.Logger) (Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVStorage{logger: logger}, nil
}

// Save writes all items to the destination file, header first.
func (s *CSVStorage) Save(ctx context.Context, items []record.Record, destination string) error {
	if len(items) == 0 {
		return nil
	}
	if err := ensureDir(destination); err != nil {
		return err
	}

	f, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ';'

	if err := w.Write(record.FieldNames()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := []string{
			item.ShopName,
			item.SKU,
			item.Name,
			strconv.FormatFloat(item.PriceRegular, 'f', -1, 64),
			formatOptionalPrice(item.PricePromo),
			item.ScrapeTime.Format(time.RFC3339),
			item.URL,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	s.logger.Info("csv results written", zap.Int("items", len(items)), zap.String("file", destination))
	return nil
}

// Close is a no-op; each Save owns its file handle.
func (s *CSVStorage) Close() error {
	return nil
}

// JSONStorage writes records as an indented JSON array.
type JSONStorage struct {
	logger *zap.Logger
}

func newJSONStorage(_ config.StorageConfig, logger *zap.Logger) (Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONStorage{logger: logger}, nil
}

// Save writes all items to the destination file.
func (s *JSONStorage) Save(ctx context.Context, items []record.Record, destination string) error {
	if len(items) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ensureDir(destination); err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json records: %w", err)
	}
	if err := os.WriteFile(destination, encoded, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	s.logger.Info("json results written", zap.Int("items", len(items)), zap.String("file", destination))
	return nil
}

// Close is a no-op; each Save owns its file handle.
func (s *JSONStorage) Close() error {
	return nil
}

func formatOptionalPrice(p float64) string {
	if p == 0 {
		return ""
	}
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
