package workflow

import (
	"context"
	"errors"

	"github.com/parkodev/backoffice_backend/config"
	"github.com/parkodev/backoffice_backend/models"
	"github.com/parkodev/backoffice_backend/utils"
	"gorm.io/gorm"
)

// System account names seeded per business; posting resolves them by name.
const (
	AccountNameCash         = "Cash"
	AccountNameInventory    = "Inventory"
	AccountNameSalesRevenue = "Sales Revenue"
	AccountNameReceivables  = "Account Receivables"
	AccountNamePayables     = "Account Payables"
)

// LayerStore is the persistence surface of the FIFO cost-layer queue. The
// valuation engine mutates layers only through it so tests can swap in an
// in-memory double.
type LayerStore interface {
	CreateLayer(ctx context.Context, layer *models.PriceStatus) error
	// LayersOldestFirst returns the product's layers in FIFO order
	// (created_at asc, id asc as tiebreak).
	LayersOldestFirst(ctx context.Context, businessId string, productId int) ([]*models.PriceStatus, error)
	// LatestLayer returns the newest layer, or (nil, nil) when none exists.
	LatestLayer(ctx context.Context, businessId string, productId int) (*models.PriceStatus, error)
	SaveLayer(ctx context.Context, layer *models.PriceStatus) error
	DeleteLayer(ctx context.Context, id int) error
}

type ProductStore interface {
	GetProduct(ctx context.Context, businessId string, id int) (*models.Product, error)
	SaveProduct(ctx context.Context, product *models.Product) error
}

type AccountStore interface {
	GetAccount(ctx context.Context, businessId string, id int) (*models.IndividualAccount, error)
	GetAccountByName(ctx context.Context, businessId string, name string) (*models.IndividualAccount, error)
	GetCustomerAccount(ctx context.Context, businessId string, customerId int) (*models.IndividualAccount, error)
	SaveAccount(ctx context.Context, account *models.IndividualAccount) error
}

type LedgerStore interface {
	CreateEntry(ctx context.Context, entry *models.GeneralLedgerEntry) error
	DeleteEntry(ctx context.Context, id int) error
	// EntriesForAccount returns the account's rows in created_at asc, id asc.
	EntriesForAccount(ctx context.Context, businessId string, accountId int) ([]*models.GeneralLedgerEntry, error)
}

// Stores bundles the gorm-backed implementations the workflows run on.
type Stores struct {
	db *gorm.DB
}

func NewStores(db *gorm.DB) *Stores {
	return &Stores{db: db}
}

func DefaultStores() *Stores {
	return &Stores{db: config.GetDB()}
}

func (s *Stores) CreateLayer(ctx context.Context, layer *models.PriceStatus) error {
	return s.db.WithContext(ctx).Create(layer).Error
}

func (s *Stores) LayersOldestFirst(ctx context.Context, businessId string, productId int) ([]*models.PriceStatus, error) {
	var layers []*models.PriceStatus
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND product_id = ?", businessId, productId).
		Order("created_at asc, id asc").
		Find(&layers).Error
	if err != nil {
		return nil, err
	}
	return layers, nil
}

func (s *Stores) LatestLayer(ctx context.Context, businessId string, productId int) (*models.PriceStatus, error) {
	var layer models.PriceStatus
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND product_id = ?", businessId, productId).
		Order("created_at desc, id desc").
		First(&layer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &layer, nil
}

func (s *Stores) SaveLayer(ctx context.Context, layer *models.PriceStatus) error {
	return s.db.WithContext(ctx).Save(layer).Error
}

func (s *Stores) DeleteLayer(ctx context.Context, id int) error {
	return s.db.WithContext(ctx).Delete(&models.PriceStatus{}, id).Error
}

func (s *Stores) GetProduct(ctx context.Context, businessId string, id int) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).
		Where("business_id = ?", businessId).
		First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError("product %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Stores) SaveProduct(ctx context.Context, product *models.Product) error {
	return s.db.WithContext(ctx).Save(product).Error
}

func (s *Stores) GetAccount(ctx context.Context, businessId string, id int) (*models.IndividualAccount, error) {
	var account models.IndividualAccount
	err := s.db.WithContext(ctx).
		Where("business_id = ?", businessId).
		First(&account, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError("account %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Stores) GetAccountByName(ctx context.Context, businessId string, name string) (*models.IndividualAccount, error) {
	var account models.IndividualAccount
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND name = ?", businessId, name).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError("account %q not found", name)
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Stores) GetCustomerAccount(ctx context.Context, businessId string, customerId int) (*models.IndividualAccount, error) {
	var account models.IndividualAccount
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND customer_id = ?", businessId, customerId).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError("customer account for customer %d not found", customerId)
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Stores) SaveAccount(ctx context.Context, account *models.IndividualAccount) error {
	return s.db.WithContext(ctx).Save(account).Error
}

func (s *Stores) CreateEntry(ctx context.Context, entry *models.GeneralLedgerEntry) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *Stores) DeleteEntry(ctx context.Context, id int) error {
	return s.db.WithContext(ctx).Delete(&models.GeneralLedgerEntry{}, id).Error
}

func (s *Stores) EntriesForAccount(ctx context.Context, businessId string, accountId int) ([]*models.GeneralLedgerEntry, error) {
	var entries []*models.GeneralLedgerEntry
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND account_id = ?", businessId, accountId).
		Order("created_at asc, id asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Stores) DB() *gorm.DB {
	return s.db
}
