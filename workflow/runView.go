package workflow

import (
	"context"

	"github.com/parkodev/backoffice_backend/models"
)

// runView serves repeated product and layer reads within one posting run
// from the same in-memory instances. A document can list the same product on
// several lines; reads going straight to the store would hand each line its
// own copy, so every line would allocate against the same remaining
// quantities and the deferred saves would overwrite each other. Writes pass
// straight through. A view lives for exactly one runner.
type runView struct {
	products ProductStore
	layers   LayerStore

	productById     map[int]*models.Product
	layersByProduct map[int][]*models.PriceStatus
}

func newRunView(products ProductStore, layers LayerStore) *runView {
	return &runView{
		products:        products,
		layers:          layers,
		productById:     make(map[int]*models.Product),
		layersByProduct: make(map[int][]*models.PriceStatus),
	}
}

func (v *runView) GetProduct(ctx context.Context, businessId string, id int) (*models.Product, error) {
	if p, ok := v.productById[id]; ok {
		return p, nil
	}
	p, err := v.products.GetProduct(ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	v.productById[id] = p
	return p, nil
}

func (v *runView) SaveProduct(ctx context.Context, product *models.Product) error {
	return v.products.SaveProduct(ctx, product)
}

func (v *runView) LayersOldestFirst(ctx context.Context, businessId string, productId int) ([]*models.PriceStatus, error) {
	if layers, ok := v.layersByProduct[productId]; ok {
		return layers, nil
	}
	layers, err := v.layers.LayersOldestFirst(ctx, businessId, productId)
	if err != nil {
		return nil, err
	}
	v.layersByProduct[productId] = layers
	return layers, nil
}

// LatestLayer goes through the cached FIFO slice so callers mixing
// LatestLayer and LayersOldestFirst see one set of instances.
func (v *runView) LatestLayer(ctx context.Context, businessId string, productId int) (*models.PriceStatus, error) {
	layers, err := v.LayersOldestFirst(ctx, businessId, productId)
	if err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return nil, nil
	}
	return layers[len(layers)-1], nil
}

func (v *runView) CreateLayer(ctx context.Context, layer *models.PriceStatus) error {
	if err := v.layers.CreateLayer(ctx, layer); err != nil {
		return err
	}
	if cached, ok := v.layersByProduct[layer.ProductId]; ok {
		v.layersByProduct[layer.ProductId] = append(cached, layer)
	}
	return nil
}

func (v *runView) SaveLayer(ctx context.Context, layer *models.PriceStatus) error {
	return v.layers.SaveLayer(ctx, layer)
}

func (v *runView) DeleteLayer(ctx context.Context, id int) error {
	return v.layers.DeleteLayer(ctx, id)
}
