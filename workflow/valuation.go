package workflow

import (
	"context"

	"github.com/parkodev/backoffice_backend/apptx"
	"github.com/parkodev/backoffice_backend/models"
	"github.com/parkodev/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

// ValuationEngine walks a product's FIFO cost layers to price outgoing and
// incoming stock. All layer mutations are enrolled in the caller's runner;
// nothing is written until the runner executes.
type ValuationEngine struct {
	layers   LayerStore
	products ProductStore
}

func NewValuationEngine(layers LayerStore, products ProductStore) *ValuationEngine {
	return &ValuationEngine{layers: layers, products: products}
}

// AllocateCost prices requiredBaseUnits of outgoing stock against the FIFO
// queue and decrements layer remaining quantities (enrolled). When the queue
// runs dry the shortage is borrowed against the last layer at its price,
// driving its remaining quantity negative; a sale is never blocked for lack
// of stock.
func (e *ValuationEngine) AllocateCost(ctx context.Context, txn *apptx.Runner, product *models.Product, requiredBaseUnits decimal.Decimal) (decimal.Decimal, error) {
	layers, err := e.layers.LayersOldestFirst(ctx, product.BusinessId, product.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if len(layers) == 0 {
		return decimal.Zero, utils.ValidationError("product %d has no cost layers", product.ID)
	}
	if product.PackSize.IsZero() {
		return decimal.Zero, utils.ValidationError("product %d has zero pack size", product.ID)
	}

	needed := requiredBaseUnits
	totalCost := decimal.Zero

	for _, layer := range layers {
		if !needed.IsPositive() {
			break
		}
		used := decimal.Zero
		if layer.RemainingQuantity.IsPositive() {
			used = decimal.Min(layer.RemainingQuantity, needed)
		}
		totalCost = totalCost.Add(used.Mul(layer.NewPrice).Div(product.PackSize))
		needed = needed.Sub(used)

		layer := layer
		original := layer.RemainingQuantity
		layer.RemainingQuantity = layer.RemainingQuantity.Sub(used)
		if err := txn.AddOperation(
			func(ctx context.Context) error { return e.layers.SaveLayer(ctx, layer) },
			func(ctx context.Context) error {
				layer.RemainingQuantity = original
				return e.layers.SaveLayer(ctx, layer)
			},
		); err != nil {
			return decimal.Zero, err
		}
	}

	// shortage: borrow against the newest layer at its price
	if needed.IsPositive() {
		last := layers[len(layers)-1]
		totalCost = totalCost.Add(needed.Mul(last.NewPrice).Div(product.PackSize))

		original := last.RemainingQuantity
		last.RemainingQuantity = last.RemainingQuantity.Sub(needed)
		if err := txn.AddOperation(
			func(ctx context.Context) error { return e.layers.SaveLayer(ctx, last) },
			func(ctx context.Context) error {
				last.RemainingQuantity = original
				return e.layers.SaveLayer(ctx, last)
			},
		); err != nil {
			return decimal.Zero, err
		}
	}

	return utils.RoundMoney(totalCost), nil
}

// PreviewCost runs the same arithmetic as AllocateCost without touching any
// layer. Calling it repeatedly always returns the same result.
func (e *ValuationEngine) PreviewCost(ctx context.Context, product *models.Product, requiredBaseUnits decimal.Decimal) (decimal.Decimal, error) {
	layers, err := e.layers.LayersOldestFirst(ctx, product.BusinessId, product.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if len(layers) == 0 {
		return decimal.Zero, utils.ValidationError("product %d has no cost layers", product.ID)
	}
	if product.PackSize.IsZero() {
		return decimal.Zero, utils.ValidationError("product %d has zero pack size", product.ID)
	}

	needed := requiredBaseUnits
	totalCost := decimal.Zero
	for _, layer := range layers {
		if !needed.IsPositive() {
			break
		}
		used := decimal.Zero
		if layer.RemainingQuantity.IsPositive() {
			used = decimal.Min(layer.RemainingQuantity, needed)
		}
		totalCost = totalCost.Add(used.Mul(layer.NewPrice).Div(product.PackSize))
		needed = needed.Sub(used)
	}
	if needed.IsPositive() {
		last := layers[len(layers)-1]
		totalCost = totalCost.Add(needed.Mul(last.NewPrice).Div(product.PackSize))
	}
	return utils.RoundMoney(totalCost), nil
}

// CreditReturn puts returnedBaseUnits back on a layer and prices the credit
// at that layer's cost. The layer is the oldest one with stock remaining, or
// the newest layer when every layer is empty. This is a deliberate
// approximation: returned units are credited where stock still sits rather
// than traced back to the exact layers the sale consumed.
func (e *ValuationEngine) CreditReturn(ctx context.Context, txn *apptx.Runner, product *models.Product, returnedBaseUnits decimal.Decimal) (decimal.Decimal, error) {
	layers, err := e.layers.LayersOldestFirst(ctx, product.BusinessId, product.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if len(layers) == 0 {
		return decimal.Zero, utils.ValidationError("product %d has no cost layers", product.ID)
	}
	if product.PackSize.IsZero() {
		return decimal.Zero, utils.ValidationError("product %d has zero pack size", product.ID)
	}

	var target *models.PriceStatus
	for _, layer := range layers {
		if layer.RemainingQuantity.IsPositive() {
			target = layer
			break
		}
	}
	if target == nil {
		target = layers[len(layers)-1]
	}

	original := target.RemainingQuantity
	target.RemainingQuantity = target.RemainingQuantity.Add(returnedBaseUnits)
	if err := txn.AddOperation(
		func(ctx context.Context) error { return e.layers.SaveLayer(ctx, target) },
		func(ctx context.Context) error {
			target.RemainingQuantity = original
			return e.layers.SaveLayer(ctx, target)
		},
	); err != nil {
		return decimal.Zero, err
	}

	return utils.RoundMoney(returnedBaseUnits.Mul(target.NewPrice).Div(product.PackSize)), nil
}

// ConsumePurchase takes purchasedBaseUnits into the FIFO queue at newPrice.
// An unchanged price extends the newest layer. A changed price creates a
// fresh layer, except when the newest layer is negative: the purchase first
// offsets the deficit toward zero (a zero-priced deficit layer adopts the
// product's current price) and only the leftover becomes a new layer at
// newPrice. Product purchase price and running total quantity updates are
// enrolled as well.
func (e *ValuationEngine) ConsumePurchase(ctx context.Context, txn *apptx.Runner, product *models.Product, purchasedBaseUnits decimal.Decimal, newPrice decimal.Decimal, actor int) error {
	latest, err := e.layers.LatestLayer(ctx, product.BusinessId, product.ID)
	if err != nil {
		return err
	}

	priceChanged := !newPrice.Equal(product.PurchasePrice)

	switch {
	case latest == nil:
		oldPrice := product.PurchasePrice
		if !priceChanged {
			oldPrice = newPrice
		}
		if err := e.enrollCreateLayer(txn, product, oldPrice, newPrice, purchasedBaseUnits, actor); err != nil {
			return err
		}

	case !priceChanged:
		original := latest.RemainingQuantity
		latest.RemainingQuantity = latest.RemainingQuantity.Add(purchasedBaseUnits)
		if err := txn.AddOperation(
			func(ctx context.Context) error { return e.layers.SaveLayer(ctx, latest) },
			func(ctx context.Context) error {
				latest.RemainingQuantity = original
				return e.layers.SaveLayer(ctx, latest)
			},
		); err != nil {
			return err
		}

	case latest.RemainingQuantity.IsNegative():
		// settle the deficit first
		originalQty := latest.RemainingQuantity
		originalPrice := latest.NewPrice

		deficit := latest.RemainingQuantity.Neg()
		leftover := purchasedBaseUnits.Sub(deficit)

		if latest.NewPrice.IsZero() {
			latest.NewPrice = product.PurchasePrice
		}
		if leftover.IsPositive() {
			latest.RemainingQuantity = decimal.Zero
		} else {
			latest.RemainingQuantity = latest.RemainingQuantity.Add(purchasedBaseUnits)
		}
		if err := txn.AddOperation(
			func(ctx context.Context) error { return e.layers.SaveLayer(ctx, latest) },
			func(ctx context.Context) error {
				latest.RemainingQuantity = originalQty
				latest.NewPrice = originalPrice
				return e.layers.SaveLayer(ctx, latest)
			},
		); err != nil {
			return err
		}

		if leftover.IsPositive() {
			if err := e.enrollCreateLayer(txn, product, product.PurchasePrice, newPrice, leftover, actor); err != nil {
				return err
			}
		}

	default:
		if err := e.enrollCreateLayer(txn, product, product.PurchasePrice, newPrice, purchasedBaseUnits, actor); err != nil {
			return err
		}
	}

	originalTotal := product.TotalQuantity
	originalPurchasePrice := product.PurchasePrice
	product.TotalQuantity = product.TotalQuantity.Add(purchasedBaseUnits)
	if priceChanged {
		product.PurchasePrice = newPrice
	}
	return txn.AddOperation(
		func(ctx context.Context) error { return e.products.SaveProduct(ctx, product) },
		func(ctx context.Context) error {
			product.TotalQuantity = originalTotal
			product.PurchasePrice = originalPurchasePrice
			return e.products.SaveProduct(ctx, product)
		},
	)
}

func (e *ValuationEngine) enrollCreateLayer(txn *apptx.Runner, product *models.Product, oldPrice, newPrice, qty decimal.Decimal, actor int) error {
	layer := &models.PriceStatus{
		BusinessId:        product.BusinessId,
		ProductId:         product.ID,
		OldPrice:          oldPrice,
		NewPrice:          newPrice,
		RemainingQuantity: qty,
		ChangedBy:         actor,
	}
	return txn.AddOperation(
		func(ctx context.Context) error { return e.layers.CreateLayer(ctx, layer) },
		func(ctx context.Context) error { return e.layers.DeleteLayer(ctx, layer.ID) },
	)
}
