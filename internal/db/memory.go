package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"podcred/internal/models"
)

// MemoryLedger keeps the ledger in process memory. It is used when no
// database is configured; entries do not survive a restart.
type MemoryLedger struct {
	mu  sync.Mutex
	txs map[string]models.Transaction
	now func() time.Time
}

var _ Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{txs: make(map[string]models.Transaction), now: time.Now}
}

func (l *MemoryLedger) Record(_ context.Context, tx *models.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.Status == "" {
		tx.Status = models.TransactionPending
	}
	now := l.now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	l.txs[strings.ToLower(tx.TxHash)] = *tx
	return nil
}

func (l *MemoryLedger) update(hash string, fn func(*models.Transaction)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := strings.ToLower(hash)
	tx, ok := l.txs[key]
	if !ok {
		return ErrNotFound
	}
	fn(&tx)
	tx.UpdatedAt = l.now()
	l.txs[key] = tx
	return nil
}

func (l *MemoryLedger) MarkConfirmed(_ context.Context, hash string, blockNumber, gasUsed uint64) error {
	return l.update(hash, func(tx *models.Transaction) {
		tx.Status = models.TransactionConfirmed
		tx.BlockNumber = blockNumber
		tx.GasUsed = gasUsed
		tx.Error = ""
	})
}

func (l *MemoryLedger) MarkFailed(_ context.Context, hash, reason string) error {
	return l.update(hash, func(tx *models.Transaction) {
		tx.Status = models.TransactionFailed
		tx.Error = reason
	})
}

func (l *MemoryLedger) Get(_ context.Context, hash string) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.txs[strings.ToLower(hash)]
	if !ok {
		return nil, ErrNotFound
	}
	return &tx, nil
}

func (l *MemoryLedger) filter(keep func(models.Transaction) bool) []models.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.Transaction
	for _, tx := range l.txs {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	return out
}

func (l *MemoryLedger) List(_ context.Context, signer string, limit int) ([]models.Transaction, error) {
	out := l.filter(func(tx models.Transaction) bool {
		return signer == "" || strings.EqualFold(tx.Signer, signer)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *MemoryLedger) Pending(_ context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error) {
	out := l.filter(func(tx models.Transaction) bool {
		return tx.Status == models.TransactionPending && tx.CreatedAt.Before(createdBefore)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
