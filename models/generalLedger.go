package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GeneralLedgerEntry is an immutable journal row. Exactly one of Debit/Credit
// carries a non-zero amount. Rows are removed only by a registered rollback
// of the operation that created them.
type GeneralLedgerEntry struct {
	ID                 int                 `gorm:"primary_key" json:"id"`
	BusinessId         string              `gorm:"index;not null" json:"business_id"`
	AccountId          int                 `gorm:"index;not null" json:"account_id"`
	ReferenceAccountId int                 `gorm:"index" json:"reference_account_id"`
	Debit              decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"debit"`
	Credit             decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"credit"`
	Details            GeneralLedgerDetail `gorm:"index;size:50;not null" json:"details"`
	Description        string              `gorm:"size:255" json:"description"`
	ReferenceId        int                 `gorm:"index" json:"reference_id"`
	CreatedBy          int                 `gorm:"index" json:"created_by"`
	CreatedAt          time.Time           `gorm:"autoCreateTime;index" json:"created_at"`
}
