package models

import (
	"context"
	"time"

	"github.com/parkodev/backoffice_backend/config"
	"github.com/parkodev/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

// IndividualAccount is one row of the per-party ledger. Kind tags which
// reference id is populated; NewIndividualAccount enforces exactly one.
// MergedInto points at the account this one was merged into; posting follows
// the chain to its root before applying deltas.
type IndividualAccount struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"index;not null" json:"business_id"`
	Name            string          `gorm:"index;size:100;not null" json:"name"`
	Kind            AccountKind     `gorm:"type:enum('standalone','customer','supplier','company');default:'standalone';not null" json:"kind"`
	CustomerId      *int            `gorm:"index" json:"customer_id"`
	SupplierId      *int            `gorm:"index" json:"supplier_id"`
	CompanyId       *int            `gorm:"index" json:"company_id"`
	ParentAccountId int             `gorm:"index" json:"parent_account_id"`
	Balance         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	MergedInto      *int            `gorm:"index" json:"merged_into"`
	IsActive        *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewIndividualAccount struct {
	Name            string          `json:"name" binding:"required"`
	Kind            AccountKind     `json:"kind"`
	CustomerId      *int            `json:"customer_id"`
	SupplierId      *int            `json:"supplier_id"`
	CompanyId       *int            `json:"company_id"`
	ParentAccountId int             `json:"parent_account_id"`
	Balance         decimal.Decimal `json:"balance"`
}

// NewAccountMerge folds child accounts into a parent: an existing account
// when ExistingParentAccountId is set, otherwise a freshly created one named
// ParentAccountName. Exactly one of the two must be provided.
type NewAccountMerge struct {
	ParentAccountName       string `json:"parent_account_name"`
	ExistingParentAccountId *int   `json:"existing_parent_account_id"`
	ChildAccountIds         []int  `json:"child_account_ids" binding:"required"`
}

type NewAccountBalanceOpen struct {
	AccountId int             `json:"account_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

type NewAccountBalanceAdjustment struct {
	AccountId int             `json:"account_id" binding:"required"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Reason    string          `json:"reason"`
}

// NewPartyJournalEntry is a manual cash entry against a vendor or customer
// account.
type NewPartyJournalEntry struct {
	AccountId   int             `json:"account_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (input *NewIndividualAccount) validate(ctx context.Context, businessId string, id int) error {
	if input.Kind == "" {
		input.Kind = AccountKindStandalone
	}
	if _, err := ParseAccountKind(string(input.Kind)); err != nil {
		return utils.ValidationError("invalid account kind %q", input.Kind)
	}

	refs := 0
	if input.CustomerId != nil {
		refs++
	}
	if input.SupplierId != nil {
		refs++
	}
	if input.CompanyId != nil {
		refs++
	}
	switch input.Kind {
	case AccountKindStandalone:
		if refs != 0 {
			return utils.ValidationError("standalone account cannot carry a reference id")
		}
	case AccountKindCustomer:
		if refs != 1 || input.CustomerId == nil {
			return utils.ValidationError("customer account requires exactly a customer id")
		}
	case AccountKindSupplier:
		if refs != 1 || input.SupplierId == nil {
			return utils.ValidationError("supplier account requires exactly a supplier id")
		}
	case AccountKindCompany:
		if refs != 1 || input.CompanyId == nil {
			return utils.ValidationError("company account requires exactly a company id")
		}
	}

	if err := utils.ValidateUnique[IndividualAccount](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	if input.ParentAccountId > 0 {
		if id > 0 && id == input.ParentAccountId {
			return utils.ValidationError("self-parent not allowed")
		}
		if err := utils.ValidateResourceId[IndividualAccount](ctx, businessId, input.ParentAccountId); err != nil {
			return utils.NotFoundError("parent account not found")
		}
	}
	return nil
}

func CreateIndividualAccount(ctx context.Context, input *NewIndividualAccount) (*IndividualAccount, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.AuthorizationError("business id is required")
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	db := config.GetDB()
	account := IndividualAccount{
		BusinessId:      businessId,
		Name:            input.Name,
		Kind:            input.Kind,
		CustomerId:      input.CustomerId,
		SupplierId:      input.SupplierId,
		CompanyId:       input.CompanyId,
		ParentAccountId: input.ParentAccountId,
		Balance:         input.Balance,
		IsActive:        utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, utils.InternalError("cannot create account", err)
	}
	return &account, nil
}
