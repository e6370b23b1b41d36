package workflow

import (
	"context"

	"github.com/parkodev/backoffice_backend/models"
	"github.com/parkodev/backoffice_backend/utils"
)

// memStore is an in-memory double of the four store interfaces. Reads hand
// out copies and saves write them back by id, so a mutation is only visible
// to later reads once the engine saves it, the same as the gorm-backed store.
type memStore struct {
	nextLayerId int
	layers      []*models.PriceStatus

	products map[int]*models.Product
	accounts map[int]*models.IndividualAccount

	nextEntryId int
	entries     []*models.GeneralLedgerEntry
}

func newMemStore() *memStore {
	return &memStore{
		products: map[int]*models.Product{},
		accounts: map[int]*models.IndividualAccount{},
	}
}

func (m *memStore) addLayer(layer models.PriceStatus) *models.PriceStatus {
	m.nextLayerId++
	layer.ID = m.nextLayerId
	stored := layer
	m.layers = append(m.layers, &stored)
	return &stored
}

func (m *memStore) addProduct(product models.Product) {
	stored := product
	m.products[product.ID] = &stored
}

func (m *memStore) addAccount(account models.IndividualAccount) {
	stored := account
	m.accounts[account.ID] = &stored
}

func (m *memStore) addEntry(entry models.GeneralLedgerEntry) {
	m.nextEntryId++
	entry.ID = m.nextEntryId
	stored := entry
	m.entries = append(m.entries, &stored)
}

func (m *memStore) layerById(id int) *models.PriceStatus {
	for _, layer := range m.layers {
		if layer.ID == id {
			return layer
		}
	}
	return nil
}

func (m *memStore) CreateLayer(ctx context.Context, layer *models.PriceStatus) error {
	m.nextLayerId++
	layer.ID = m.nextLayerId
	stored := *layer
	m.layers = append(m.layers, &stored)
	return nil
}

func (m *memStore) LayersOldestFirst(ctx context.Context, businessId string, productId int) ([]*models.PriceStatus, error) {
	var out []*models.PriceStatus
	for _, layer := range m.layers {
		if layer.BusinessId == businessId && layer.ProductId == productId {
			copied := *layer
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memStore) LatestLayer(ctx context.Context, businessId string, productId int) (*models.PriceStatus, error) {
	var latest *models.PriceStatus
	for _, layer := range m.layers {
		if layer.BusinessId == businessId && layer.ProductId == productId {
			latest = layer
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (m *memStore) SaveLayer(ctx context.Context, layer *models.PriceStatus) error {
	for i, stored := range m.layers {
		if stored.ID == layer.ID {
			copied := *layer
			m.layers[i] = &copied
			return nil
		}
	}
	return utils.NotFoundError("layer %d not found", layer.ID)
}

func (m *memStore) DeleteLayer(ctx context.Context, id int) error {
	for i, stored := range m.layers {
		if stored.ID == id {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memStore) GetProduct(ctx context.Context, businessId string, id int) (*models.Product, error) {
	product, ok := m.products[id]
	if !ok || product.BusinessId != businessId {
		return nil, utils.NotFoundError("product %d not found", id)
	}
	copied := *product
	return &copied, nil
}

func (m *memStore) SaveProduct(ctx context.Context, product *models.Product) error {
	copied := *product
	m.products[product.ID] = &copied
	return nil
}

func (m *memStore) GetAccount(ctx context.Context, businessId string, id int) (*models.IndividualAccount, error) {
	account, ok := m.accounts[id]
	if !ok || account.BusinessId != businessId {
		return nil, utils.NotFoundError("account %d not found", id)
	}
	copied := *account
	return &copied, nil
}

func (m *memStore) GetAccountByName(ctx context.Context, businessId string, name string) (*models.IndividualAccount, error) {
	for _, account := range m.accounts {
		if account.BusinessId == businessId && account.Name == name {
			copied := *account
			return &copied, nil
		}
	}
	return nil, utils.NotFoundError("account %q not found", name)
}

func (m *memStore) GetCustomerAccount(ctx context.Context, businessId string, customerId int) (*models.IndividualAccount, error) {
	for _, account := range m.accounts {
		if account.BusinessId == businessId && account.CustomerId != nil && *account.CustomerId == customerId {
			copied := *account
			return &copied, nil
		}
	}
	return nil, utils.NotFoundError("customer account for customer %d not found", customerId)
}

func (m *memStore) SaveAccount(ctx context.Context, account *models.IndividualAccount) error {
	copied := *account
	m.accounts[account.ID] = &copied
	return nil
}

func (m *memStore) CreateEntry(ctx context.Context, entry *models.GeneralLedgerEntry) error {
	m.nextEntryId++
	entry.ID = m.nextEntryId
	stored := *entry
	m.entries = append(m.entries, &stored)
	return nil
}

func (m *memStore) DeleteEntry(ctx context.Context, id int) error {
	for i, stored := range m.entries {
		if stored.ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memStore) EntriesForAccount(ctx context.Context, businessId string, accountId int) ([]*models.GeneralLedgerEntry, error) {
	var out []*models.GeneralLedgerEntry
	for _, entry := range m.entries {
		if entry.BusinessId == businessId && entry.AccountId == accountId {
			copied := *entry
			out = append(out, &copied)
		}
	}
	return out, nil
}
