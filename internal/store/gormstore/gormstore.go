// Package gormstore persists the trade ledger and grid levels in SQLite
// through gorm.
package gormstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"cryptoden/internal/grid"
	"cryptoden/internal/store"
	"cryptoden/internal/trade"
)

type GormStore struct {
	db *gorm.DB
}

var (
	_ store.Store     = (*GormStore)(nil)
	_ trade.Persister = (*GormStore)(nil)
)

func New(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return NewFromDB(db)
}

func NewFromDB(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	if err := db.AutoMigrate(&openTradeModel{}, &closedTradeModel{}, &gridLevelModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) SaveOpenTrade(t trade.Trade) error {
	m, err := toOpenModel(t)
	if err != nil {
		return err
	}
	return s.db.Save(&m).Error
}

func (s *GormStore) DeleteOpenTrade(id string) error {
	return s.db.Delete(&openTradeModel{}, "id = ?", id).Error
}

func (s *GormStore) ListOpenTrades() ([]trade.Trade, error) {
	var models []openTradeModel
	if err := s.db.Order("opened_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]trade.Trade, 0, len(models))
	for _, m := range models {
		out = append(out, fromOpenModel(m))
	}
	return out, nil
}

func (s *GormStore) AppendClosedTrade(t trade.Trade) error {
	m, err := toClosedModel(t)
	if err != nil {
		return err
	}
	return s.db.Create(&m).Error
}

func (s *GormStore) ListClosedTrades(limit int) ([]trade.Trade, error) {
	var models []closedTradeModel
	q := s.db.Order("closed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]trade.Trade, 0, len(models))
	for _, m := range models {
		out = append(out, fromClosedModel(m))
	}
	return out, nil
}

// SaveGridLevels replaces the symbol's level set wholesale so the table
// always mirrors the in-memory ladder.
func (s *GormStore) SaveGridLevels(symbol string, levels []grid.Level) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&gridLevelModel{}, "symbol = ?", symbol).Error; err != nil {
			return err
		}
		for _, lv := range levels {
			m, err := toLevelModel(lv)
			if err != nil {
				return err
			}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) LoadGridLevels(symbol string) ([]grid.Level, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	var models []gridLevelModel
	if err := s.db.Where("symbol = ?", symbol).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]grid.Level, 0, len(models))
	for _, m := range models {
		out = append(out, fromLevelModel(m))
	}
	return out, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
