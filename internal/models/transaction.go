package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionConfirmed TransactionStatus = "confirmed"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction is one submitted write. The chain remains the source of truth;
// rows only track what this service sent and what became of it.
type Transaction struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Kind        string            `gorm:"index;not null" json:"kind"`
	TxHash      string            `gorm:"uniqueIndex;size:66;not null" json:"tx_hash"`
	Signer      string            `gorm:"index;size:42" json:"signer"`
	Attempts    int               `json:"attempts"`
	GasLabel    string            `json:"gas_label"`
	GasLimit    uint64            `json:"gas_limit"`
	Status      TransactionStatus `gorm:"index;size:16;not null" json:"status"`
	Error       string            `json:"error,omitempty"`
	University  string            `gorm:"size:42" json:"university,omitempty"`
	DiplomaID   string            `gorm:"size:66" json:"diploma_id,omitempty"`
	Students    string            `gorm:"type:text" json:"students,omitempty"` // comma separated
	BlockNumber uint64            `json:"block_number,omitempty"`
	GasUsed     uint64            `json:"gas_used,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = TransactionPending
	}
	return nil
}
