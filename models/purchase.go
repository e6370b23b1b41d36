package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase is a vendor bill. The vendor is either a supplier account or a
// company account; VendorAccountId points at the individual account either way.
type Purchase struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"index;not null" json:"business_id"`
	BillNo          string          `gorm:"index;size:50" json:"bill_no"`
	VendorAccountId int             `gorm:"index;not null" json:"vendor_account_id"`
	VendorName      string          `gorm:"size:100" json:"vendor_name"`
	Items           []PurchaseItem  `gorm:"foreignKey:PurchaseId" json:"items"`
	FlatDiscount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"flat_discount"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	PurchaseDate    time.Time       `gorm:"not null;index" json:"purchase_date"`
	CreatedBy       int             `gorm:"index" json:"created_by"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	PurchaseId  int             `gorm:"index;not null" json:"purchase_id"`
	ProductId   int             `gorm:"index;not null" json:"product_id"`
	ProductName string          `gorm:"size:100" json:"product_name"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	PackSize    decimal.Decimal `gorm:"type:decimal(20,4);default:1" json:"pack_size"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	Discount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
}

type NewPurchase struct {
	BillNo          string            `json:"bill_no"`
	VendorAccountId int               `json:"vendor_account_id" binding:"required"`
	Items           []NewPurchaseItem `json:"items" binding:"required"`
	FlatDiscount    decimal.Decimal   `json:"flat_discount"`
	PaidAmount      decimal.Decimal   `json:"paid_amount"`
	PurchaseDate    time.Time         `json:"purchase_date"`
}

type NewPurchaseItem struct {
	ProductId int             `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

type NewPurchaseReturn struct {
	PurchaseId      int                     `json:"purchase_id"`
	VendorAccountId int                     `json:"vendor_account_id" binding:"required"`
	Items           []NewPurchaseReturnItem `json:"items" binding:"required"`
	Reason          string                  `json:"reason"`
}

type NewPurchaseReturnItem struct {
	ProductId int             `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// LineTotal is the item's amount after per-item discount.
func (i *PurchaseItem) LineTotal() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice).Sub(i.Discount)
}

// BaseUnits is the purchased quantity in base units.
func (i *PurchaseItem) BaseUnits() decimal.Decimal {
	return i.Quantity.Mul(i.PackSize)
}
