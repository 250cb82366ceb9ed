package pgstore

import (
	"time"

	"github.com/jackc/pgtype"
)

// Record is one encoded ledger account.
type Record struct {
	Key       string       `gorm:"primaryKey;size:255"`
	Kind      string       `gorm:"not null;index"`
	Data      pgtype.JSONB `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

func (Record) TableName() string {
	return "ledger_records"
}

// TransferRow is a journaled token movement.
type TransferRow struct {
	ID        string `gorm:"primaryKey;type:uuid"`
	Program   string `gorm:"not null;index:idx_transfers_op"`
	Op        string `gorm:"not null;index:idx_transfers_op"`
	From      string `gorm:"index"`
	To        string `gorm:"not null;index"`
	Authority string `gorm:"not null"`
	Mint      string `gorm:"not null"`
	Amount    uint64 `gorm:"type:numeric(20,0);not null"`
	At        int64  `gorm:"not null"`
	CreatedAt time.Time
}

func (TransferRow) TableName() string {
	return "ledger_transfers"
}
