package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"podcred/internal/models"
)

var ErrNotFound = errors.New("transaction not found")

// Ledger records submitted transactions and their outcome.
type Ledger interface {
	Record(ctx context.Context, tx *models.Transaction) error
	MarkConfirmed(ctx context.Context, hash string, blockNumber, gasUsed uint64) error
	MarkFailed(ctx context.Context, hash, reason string) error
	Get(ctx context.Context, hash string) (*models.Transaction, error)
	List(ctx context.Context, signer string, limit int) ([]models.Transaction, error)
	// Pending returns pending rows created before the cutoff, oldest first.
	Pending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error)
}

// Open connects to postgres and migrates the ledger table.
func Open(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	logger.Info("Connected to database")

	if err = conn.AutoMigrate(&models.Transaction{}); err != nil {
		return nil, err
	}

	return conn, nil
}

type GormLedger struct {
	db *gorm.DB
}

var _ Ledger = (*GormLedger)(nil)

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (l *GormLedger) Record(ctx context.Context, tx *models.Transaction) error {
	return l.db.WithContext(ctx).Create(tx).Error
}

func (l *GormLedger) MarkConfirmed(ctx context.Context, hash string, blockNumber, gasUsed uint64) error {
	return l.update(ctx, hash, map[string]any{
		"status":       models.TransactionConfirmed,
		"block_number": blockNumber,
		"gas_used":     gasUsed,
		"error":        "",
	})
}

func (l *GormLedger) MarkFailed(ctx context.Context, hash, reason string) error {
	return l.update(ctx, hash, map[string]any{
		"status": models.TransactionFailed,
		"error":  reason,
	})
}

func (l *GormLedger) update(ctx context.Context, hash string, fields map[string]any) error {
	res := l.db.WithContext(ctx).Model(&models.Transaction{}).Where("tx_hash = ?", strings.ToLower(hash)).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (l *GormLedger) Get(ctx context.Context, hash string) (*models.Transaction, error) {
	var tx models.Transaction
	err := l.db.WithContext(ctx).Where("tx_hash = ?", strings.ToLower(hash)).First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (l *GormLedger) List(ctx context.Context, signer string, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	q := l.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if signer != "" {
		q = q.Where("LOWER(signer) = LOWER(?)", signer)
	}
	if err := q.Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

func (l *GormLedger) Pending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := l.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.TransactionPending, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}
