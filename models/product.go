package models

import (
	"context"
	"time"

	"github.com/parkodev/backoffice_backend/config"
	"github.com/parkodev/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

// Product quantities are tracked in base units; PackSize converts a pack of
// this product into base units. PurchasePrice is the current cost per pack.
// TotalQuantity is a running counter and may diverge transiently from the sum
// of cost-layer remaining quantities.
type Product struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id"`
	Name          string          `gorm:"index;size:100;not null" json:"name"`
	Code          string          `gorm:"index;size:100" json:"code"`
	PackSize      decimal.Decimal `gorm:"type:decimal(20,4);default:1" json:"pack_size"`
	TotalQuantity decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_quantity"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_price"`
	SellingPrice  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"selling_price"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name          string          `json:"name" binding:"required"`
	Code          string          `json:"code"`
	PackSize      decimal.Decimal `json:"pack_size"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
}

// BaseUnits converts a pack count plus loose units into base units.
func (p *Product) BaseUnits(packs decimal.Decimal, loose decimal.Decimal) decimal.Decimal {
	return packs.Mul(p.PackSize).Add(loose)
}

func (input *NewProduct) validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Product](ctx, businessId, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateUnique[Product](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	if input.PackSize.IsNegative() || input.PackSize.IsZero() {
		return utils.ValidationError("pack size must be positive")
	}
	if input.PurchasePrice.IsNegative() {
		return utils.ValidationError("purchase price cannot be negative")
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.AuthorizationError("business id is required")
	}
	if input.PackSize.IsZero() {
		input.PackSize = decimal.NewFromInt(1)
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	db := config.GetDB()
	product := Product{
		BusinessId:    businessId,
		Name:          input.Name,
		Code:          input.Code,
		PackSize:      input.PackSize,
		PurchasePrice: input.PurchasePrice,
		SellingPrice:  input.SellingPrice,
		TotalQuantity: decimal.Zero,
		IsActive:      utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, utils.InternalError("cannot create product", err)
	}
	return &product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.AuthorizationError("business id is required")
	}
	return utils.FetchModel[Product](ctx, businessId, id)
}
