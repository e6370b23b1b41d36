package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleReturn records goods coming back from a customer, either directly or
// against a specific bill. ReturnPrice per item is what is credited back;
// PurchaseAmount is the FIFO cost credited back into inventory.
type SaleReturn struct {
	ID                int              `gorm:"primary_key" json:"id"`
	BusinessId        string           `gorm:"index;not null" json:"business_id"`
	CustomerId        *int             `gorm:"index" json:"customer_id"`
	CustomerName      string           `gorm:"size:100" json:"customer_name"`
	BillId            *int             `gorm:"index" json:"bill_id"`
	ReturnType        ReturnType       `gorm:"type:enum('direct','againstBill');default:'direct';not null" json:"return_type"`
	Items             []SaleReturnItem `gorm:"foreignKey:SaleReturnId" json:"items"`
	TotalReturnAmount decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_return_amount"`
	Reason            string           `gorm:"size:255" json:"reason"`
	ReturnDate        time.Time        `gorm:"not null;index" json:"return_date"`
	CreatedBy         int              `gorm:"index" json:"created_by"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type SaleReturnItem struct {
	ID             int             `gorm:"primary_key" json:"id"`
	SaleReturnId   int             `gorm:"index;not null" json:"sale_return_id"`
	ProductId      int             `gorm:"index;not null" json:"product_id"`
	ProductName    string          `gorm:"size:100" json:"product_name"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	PackSize       decimal.Decimal `gorm:"type:decimal(20,4);default:1" json:"pack_size"`
	ReturnPrice    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"return_price"`
	PurchaseAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_amount"`
}

type NewSaleReturn struct {
	CustomerId   *int                `json:"customer_id"`
	CustomerName string              `json:"customer_name"`
	BillId       *int                `json:"bill_id"`
	ReturnType   ReturnType          `json:"return_type"`
	Items        []NewSaleReturnItem `json:"items" binding:"required"`
	Reason       string              `json:"reason"`
	ReturnDate   time.Time           `json:"return_date"`
}

type NewSaleReturnItem struct {
	ProductId   int             `json:"product_id" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	ReturnPrice decimal.Decimal `json:"return_price"`
}

// BaseUnits is the returned quantity in base units.
func (i *SaleReturnItem) BaseUnits() decimal.Decimal {
	return i.Quantity.Mul(i.PackSize)
}
