package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill is a sales invoice. TotalPurchaseAmount freezes the FIFO cost of goods
// sold at registration time so later price changes never alter recorded
// revenue. MergedInto marks a bill folded into another one.
type Bill struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	BusinessId          string          `gorm:"index;not null" json:"business_id"`
	BillNo              string          `gorm:"index;size:20;not null" json:"bill_no"`
	BillType            BillType        `gorm:"type:enum('A4','thermal');default:'A4';not null" json:"bill_type"`
	CustomerId          *int            `gorm:"index" json:"customer_id"`
	CustomerName        string          `gorm:"size:100" json:"customer_name"`
	Items               []BillItem      `gorm:"foreignKey:BillId" json:"items"`
	ExtraItems          []BillExtraItem `gorm:"foreignKey:BillId" json:"extra_items"`
	FlatDiscount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"flat_discount"`
	TotalAmount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	PaidAmount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	TotalPurchaseAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_purchase_amount"`
	BillRevenue         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bill_revenue"`
	BillStatus          BillStatus      `gorm:"type:enum('unpaid','partiallypaid','paid');default:'unpaid';not null;index" json:"bill_status"`
	IsPosted            *bool           `gorm:"not null;default:false;index" json:"is_posted"`
	DueDate             *time.Time      `json:"due_date"`
	MergedInto          *int            `gorm:"index" json:"merged_into"`
	BillDate            time.Time       `gorm:"not null;index" json:"bill_date"`
	CreatedBy           int             `gorm:"index" json:"created_by"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type BillItem struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BillId         int             `gorm:"index;not null" json:"bill_id"`
	ProductId      int             `gorm:"index;not null" json:"product_id"`
	ProductName    string          `gorm:"size:100" json:"product_name"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	PackSize       decimal.Decimal `gorm:"type:decimal(20,4);default:1" json:"pack_size"`
	LooseQuantity  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"loose_quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	Discount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	PurchaseAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_amount"`
}

// BillExtraItem is a non-stock line (services, delivery fees); it carries no
// cost layer and is excluded from revenue.
type BillExtraItem struct {
	ID     int             `gorm:"primary_key" json:"id"`
	BillId int             `gorm:"index;not null" json:"bill_id"`
	Name   string          `gorm:"size:100;not null" json:"name"`
	Amount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
}

type NewBill struct {
	BillType     BillType           `json:"bill_type"`
	CustomerId   *int               `json:"customer_id"`
	CustomerName string             `json:"customer_name"`
	Items        []NewBillItem      `json:"items" binding:"required"`
	ExtraItems   []NewBillExtraItem `json:"extra_items"`
	FlatDiscount decimal.Decimal    `json:"flat_discount"`
	PaidAmount   decimal.Decimal    `json:"paid_amount"`
	DueDate      *time.Time         `json:"due_date"`
	BillDate     time.Time          `json:"bill_date"`
}

type NewBillItem struct {
	ProductId     int             `json:"product_id" binding:"required"`
	Quantity      decimal.Decimal `json:"quantity"`
	LooseQuantity decimal.Decimal `json:"loose_quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Discount      decimal.Decimal `json:"discount"`
}

type NewBillExtraItem struct {
	Name   string          `json:"name" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type NewBillPayment struct {
	BillNo       string          `json:"bill_no" binding:"required"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	FlatDiscount decimal.Decimal `json:"flat_discount"`
}

// NewBillMerge folds child bills into a parent. Exactly one of ParentBillId
// (existing bill) may be set; when nil a fresh parent bill is created.
type NewBillMerge struct {
	ParentBillId *int  `json:"parent_bill_id"`
	ChildBillIds []int `json:"child_bill_ids" binding:"required"`
}

// LineTotal is the item's gross amount before per-item discount.
func (i *BillItem) LineTotal() decimal.Decimal {
	packs := i.Quantity.Mul(i.UnitPrice)
	var loose decimal.Decimal
	if !i.PackSize.IsZero() {
		loose = i.LooseQuantity.Mul(i.UnitPrice).Div(i.PackSize)
	}
	return packs.Add(loose)
}

// BaseUnits is the item quantity in base units.
func (i *BillItem) BaseUnits() decimal.Decimal {
	return i.Quantity.Mul(i.PackSize).Add(i.LooseQuantity)
}

// RecomputeTotals re-derives TotalAmount and TotalPurchaseAmount from the
// stored items; used after a return against the bill shrinks item quantities.
func (b *Bill) RecomputeTotals() {
	total := decimal.Zero
	purchase := decimal.Zero
	for i := range b.Items {
		item := &b.Items[i]
		total = total.Add(item.LineTotal())
		purchase = purchase.Add(item.PurchaseAmount)
	}
	b.TotalAmount = total
	b.TotalPurchaseAmount = purchase
}

// ExtraItemsTotal sums the non-stock lines.
func (b *Bill) ExtraItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, extra := range b.ExtraItems {
		total = total.Add(extra.Amount)
	}
	return total
}

// ItemDiscountsTotal sums per-item discounts.
func (b *Bill) ItemDiscountsTotal() decimal.Decimal {
	total := decimal.Zero
	for i := range b.Items {
		total = total.Add(b.Items[i].Discount)
	}
	return total
}

// RemainingBalance is what the customer still owes on this bill.
func (b *Bill) RemainingBalance() decimal.Decimal {
	return b.TotalAmount.Sub(b.PaidAmount).Sub(b.FlatDiscount)
}
