// Package copylog 持久化每次跟单尝试的流水，方便复盘延迟与胜率。
package copylog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"polycopy/internal/copytrade"
)

// CopyRecordModel is one dispatch attempt, successful or not.
type CopyRecordModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	Target        string         `gorm:"column:target;index"`
	TradeIdentity string         `gorm:"column:trade_identity;index"`
	Coin          string         `gorm:"column:coin"`
	Market        string         `gorm:"column:market"`
	Outcome       string         `gorm:"column:outcome"`
	Side          string         `gorm:"column:side"`
	Price         float64        `gorm:"column:price"`
	Shares        float64        `gorm:"column:shares"`
	CostUSD       float64        `gorm:"column:cost_usd"`
	Success       int            `gorm:"column:success"`
	OrderID       string         `gorm:"column:order_id"`
	LatencyMS     int64          `gorm:"column:latency_ms"`
	Detail        string         `gorm:"column:detail"`
	ActionJSON    datatypes.JSON `gorm:"column:action_json;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
}

func (CopyRecordModel) TableName() string { return "copy_records" }

type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
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
	return NewStoreFromDB(db)
}

func NewStoreFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db 不能为空")
	}
	if err := db.AutoMigrate(&CopyRecordModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

// RecordCopy implements copytrade.AuditSink.
func (s *Store) RecordCopy(ctx context.Context, target string, act *copytrade.ActionDescriptor, out *copytrade.ExecutionOutcome) error {
	if s == nil || s.db == nil {
		return nil
	}
	success := 0
	if out.Success {
		success = 1
	}
	cost, _ := out.CostUSD.Float64()
	raw, _ := json.Marshal(act)
	rec := CopyRecordModel{
		Target:        target,
		TradeIdentity: act.Identity,
		Coin:          act.Coin,
		Market:        act.Market,
		Outcome:       act.Outcome,
		Side:          string(act.Side),
		Price:         act.Price,
		Shares:        out.Shares,
		CostUSD:       cost,
		Success:       success,
		OrderID:       out.OrderID,
		LatencyMS:     out.Latency.Milliseconds(),
		Detail:        out.Detail,
		ActionJSON:    datatypes.JSON(raw),
		CreatedAtUnix: time.Now().Unix(),
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// ListRecent returns the newest records first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]CopyRecordModel, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []CopyRecordModel
	err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// RunStats aggregates a target's copy history.
type RunStats struct {
	Attempts   int64
	Successes  int64
	SpentUSD   float64
	AvgLatency float64
}

// StatsByTarget summarizes all attempts recorded for one target.
func (s *Store) StatsByTarget(ctx context.Context, target string) (*RunStats, error) {
	var st RunStats
	row := s.db.WithContext(ctx).Model(&CopyRecordModel{}).
		Select("COUNT(*), COALESCE(SUM(success),0), COALESCE(SUM(cost_usd),0), COALESCE(AVG(latency_ms),0)").
		Where("target = ?", target).Row()
	if err := row.Scan(&st.Attempts, &st.Successes, &st.SpentUSD, &st.AvgLatency); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
