// Package confirm follows submitted transactions to inclusion, then drops
// the cached reads they affect and updates the ledger.
package confirm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"podcred/internal/chain"
	"podcred/internal/config"
	"podcred/internal/db"
	"podcred/internal/issuance"
	"podcred/internal/models"
)

// Invalidator drops cached reads. *queries.Queries implements it.
type Invalidator interface {
	InvalidateUniversity(ctx context.Context, addr common.Address)
	InvalidateStudent(ctx context.Context, student common.Address)
	InvalidateDiploma(ctx context.Context, id common.Hash)
}

type Tracker struct {
	logger      *zap.Logger
	writer      chain.Writer
	ledger      db.Ledger
	invalidator Invalidator

	pollInterval   time.Duration
	settleDelay    time.Duration
	receiptTimeout time.Duration

	wg sync.WaitGroup
}

func NewTracker(cfg config.Issuance, logger *zap.Logger, writer chain.Writer, ledger db.Ledger, invalidator Invalidator) *Tracker {
	return &Tracker{
		logger:         logger,
		writer:         writer,
		ledger:         ledger,
		invalidator:    invalidator,
		pollInterval:   cfg.PollInterval,
		settleDelay:    cfg.SettleDelay,
		receiptTimeout: cfg.ReceiptTimeout,
	}
}

// Record stores a pending ledger row for sub. Cancelled submissions are not
// recorded.
func (t *Tracker) Record(ctx context.Context, sub issuance.Submission) error {
	if sub.Cancelled {
		return nil
	}
	return t.ledger.Record(ctx, rowFor(sub))
}

// Await blocks until sub is mined, waits the settle delay, invalidates the
// reads it touched and marks the ledger row.
func (t *Tracker) Await(ctx context.Context, sub issuance.Submission) (*chain.Receipt, error) {
	return t.await(ctx, rowFor(sub))
}

// Track records sub and awaits it in the background.
func (t *Tracker) Track(sub issuance.Submission) {
	if sub.Cancelled {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.receiptTimeout+t.settleDelay)
	if err := t.Record(ctx, sub); err != nil {
		t.logger.Warn("Failed to record transaction", zap.String("tx_hash", sub.TxHash.Hex()), zap.Error(err))
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		if _, err := t.Await(ctx, sub); err != nil {
			t.logger.Warn("Transaction not confirmed", zap.String("tx_hash", sub.TxHash.Hex()), zap.Error(err))
		}
	}()
}

// Wait blocks until every background Track has finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) await(ctx context.Context, row *models.Transaction) (*chain.Receipt, error) {
	hash := common.HexToHash(row.TxHash)
	log := t.logger.With(zap.String("tx_hash", row.TxHash), zap.String("kind", row.Kind))

	waitCtx, cancel := context.WithTimeout(ctx, t.receiptTimeout)
	defer cancel()

	receipt, err := chain.WaitMined(waitCtx, t.writer, hash, t.pollInterval)
	if errors.Is(err, chain.ErrTransactionFailed) {
		log.Warn("Transaction reverted on chain")
		t.markFailed(ctx, row.TxHash, "transaction reverted")
		return receipt, err
	} else if err != nil {
		return nil, err
	}

	// The node that served the receipt may be ahead of the one serving reads.
	select {
	case <-ctx.Done():
		return receipt, ctx.Err()
	case <-time.After(t.settleDelay):
	}

	t.invalidate(ctx, row)
	if err := t.ledger.MarkConfirmed(ctx, row.TxHash, receipt.BlockNumber, receipt.GasUsed); err != nil && !errors.Is(err, db.ErrNotFound) {
		log.Warn("Failed to update ledger", zap.Error(err))
	}

	log.Info("Transaction confirmed", zap.Uint64("block", receipt.BlockNumber), zap.Uint64("gas_used", receipt.GasUsed))
	return receipt, nil
}

func (t *Tracker) markFailed(ctx context.Context, hash, reason string) {
	if err := t.ledger.MarkFailed(ctx, hash, reason); err != nil && !errors.Is(err, db.ErrNotFound) {
		t.logger.Warn("Failed to update ledger", zap.String("tx_hash", hash), zap.Error(err))
	}
}

func (t *Tracker) invalidate(ctx context.Context, row *models.Transaction) {
	if row.University != "" {
		t.invalidator.InvalidateUniversity(ctx, common.HexToAddress(row.University))
	}
	for _, s := range splitStudents(row.Students) {
		t.invalidator.InvalidateStudent(ctx, common.HexToAddress(s))
	}
	if row.DiplomaID != "" {
		t.invalidator.InvalidateDiploma(ctx, common.HexToHash(row.DiplomaID))
	}
}

const sweepBatch = 50

// Sweep re-checks pending ledger rows older than one poll interval. Rows
// whose receipt is still missing after the receipt timeout are marked failed.
func (t *Tracker) Sweep(ctx context.Context) {
	now := time.Now()
	rows, err := t.ledger.Pending(ctx, now.Add(-t.pollInterval), sweepBatch)
	if err != nil {
		t.logger.Warn("Failed to list pending transactions", zap.Error(err))
		return
	}

	for i := range rows {
		row := &rows[i]
		receipt, err := t.writer.Receipt(ctx, common.HexToHash(row.TxHash))
		switch {
		case errors.Is(err, chain.ErrReceiptNotFound):
			if now.Sub(row.CreatedAt) > t.receiptTimeout {
				t.markFailed(ctx, row.TxHash, "no receipt within timeout")
			}
		case err != nil:
			t.logger.Warn("Receipt lookup failed", zap.String("tx_hash", row.TxHash), zap.Error(err))
		case !receipt.Success:
			t.markFailed(ctx, row.TxHash, "transaction reverted")
		default:
			t.invalidate(ctx, row)
			if err := t.ledger.MarkConfirmed(ctx, row.TxHash, receipt.BlockNumber, receipt.GasUsed); err != nil {
				t.logger.Warn("Failed to update ledger", zap.String("tx_hash", row.TxHash), zap.Error(err))
			}
		}
	}
}

// StartSweeper runs Sweep on schedule (standard cron spec or @every).
func (t *Tracker) StartSweeper(schedule string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		t.Sweep(ctx)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func rowFor(sub issuance.Submission) *models.Transaction {
	row := &models.Transaction{
		Kind:     string(sub.Kind),
		TxHash:   sub.TxHash.Hex(),
		Signer:   sub.Signer.Hex(),
		Attempts: sub.Attempts,
		GasLabel: sub.Gas.Label,
		GasLimit: sub.Gas.GasLimit,
		Status:   models.TransactionPending,
	}
	if sub.University != (common.Address{}) {
		row.University = sub.University.Hex()
	}
	if sub.DiplomaID != (common.Hash{}) {
		row.DiplomaID = sub.DiplomaID.Hex()
	}
	students := make([]string, len(sub.Students))
	for i, s := range sub.Students {
		students[i] = s.Hex()
	}
	row.Students = strings.Join(students, ",")
	return row
}

func splitStudents(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
