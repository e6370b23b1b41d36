package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/parkodev/backoffice_backend/config"
	"github.com/parkodev/backoffice_backend/utils"
	"gorm.io/gorm"
)

type Business struct {
	ID        string    `gorm:"primary_key;size:36" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Address   string    `gorm:"size:255" json:"address"`
	Phone     string    `gorm:"size:50" json:"phone"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusiness struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// SystemAccountNames are the book accounts every business starts with. The
// posting workflows resolve them by name.
var SystemAccountNames = []string{
	"Cash",
	"Inventory",
	"Sales Revenue",
	"Account Receivables",
	"Account Payables",
}

// CreateBusiness creates the business together with its system accounts.
func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {
	db := config.GetDB()
	business := Business{
		ID:       uuid.NewString(),
		Name:     input.Name,
		Address:  input.Address,
		Phone:    input.Phone,
		IsActive: utils.NewTrue(),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&business).Error; err != nil {
			return err
		}
		for _, name := range SystemAccountNames {
			account := IndividualAccount{
				BusinessId: business.ID,
				Name:       name,
				Kind:       AccountKindStandalone,
				IsActive:   utils.NewTrue(),
			}
			if err := tx.Create(&account).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, utils.InternalError("cannot create business", err)
	}
	return &business, nil
}
