package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceStatus is one FIFO cost layer of a product. OldPrice/NewPrice are per
// pack; RemainingQuantity is in base units and signed. A negative remaining
// quantity records stock sold beyond what was on hand (borrowed against this
// layer at its price). Rows are append-only audit history; they are deleted
// only by a registered rollback of the operation that created them.
type PriceStatus struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BusinessId        string          `gorm:"index;not null" json:"business_id"`
	ProductId         int             `gorm:"index;not null" json:"product_id"`
	OldPrice          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"old_price"`
	NewPrice          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"new_price"`
	RemainingQuantity decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"remaining_quantity"`
	ChangedBy         int             `gorm:"index" json:"changed_by"`
	CreatedAt         time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
