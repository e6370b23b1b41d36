package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/parkodev/backoffice_backend/apptx"
	"github.com/parkodev/backoffice_backend/models"
	"github.com/parkodev/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

const testBusiness = "biz-1"

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func testProduct(store *memStore, packSize, purchasePrice int64) *models.Product {
	product := models.Product{
		ID:            1,
		BusinessId:    testBusiness,
		Name:          "Rice 10kg",
		PackSize:      d(packSize),
		PurchasePrice: d(purchasePrice),
	}
	store.addProduct(product)
	copied := product
	return &copied
}

func TestAllocateCostWalksLayersInOrder(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	product := testProduct(store, 10, 120)
	first := store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(100), RemainingQuantity: d(20)})
	second := store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(120), RemainingQuantity: d(30)})

	engine := NewValuationEngine(store, store)

	var cost decimal.Decimal
	err := apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		var err error
		cost, err = engine.AllocateCost(ctx, txn, product, d(25))
		return err
	})
	if err != nil {
		t.Fatalf("AllocateCost: %v", err)
	}

	// 20 units from the first layer at 100/pack + 5 from the second at 120/pack
	want := d(20).Mul(d(100)).Div(d(10)).Add(d(5).Mul(d(120)).Div(d(10)))
	if !cost.Equal(want) {
		t.Fatalf("cost = %s, want %s", cost, want)
	}
	if got := store.layerById(first.ID).RemainingQuantity; !got.Equal(d(0)) {
		t.Fatalf("first layer remaining = %s, want 0", got)
	}
	if got := store.layerById(second.ID).RemainingQuantity; !got.Equal(d(25)) {
		t.Fatalf("second layer remaining = %s, want 25", got)
	}
}

func TestAllocateCostBorrowsAgainstNewestLayer(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	product := testProduct(store, 10, 120)
	store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(100), RemainingQuantity: d(0)})
	last := store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(120), RemainingQuantity: d(5)})

	engine := NewValuationEngine(store, store)

	var cost decimal.Decimal
	err := apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		var err error
		cost, err = engine.AllocateCost(ctx, txn, product, d(15))
		return err
	})
	if err != nil {
		t.Fatalf("AllocateCost: %v", err)
	}

	// all 15 units priced at the newest layer's 120/pack
	want := d(15).Mul(d(120)).Div(d(10))
	if !cost.Equal(want) {
		t.Fatalf("cost = %s, want %s", cost, want)
	}
	if got := store.layerById(last.ID).RemainingQuantity; !got.Equal(d(-10)) {
		t.Fatalf("newest layer remaining = %s, want -10", got)
	}
}

func TestAllocateCostWithoutLayersRejected(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	product := testProduct(store, 10, 120)

	engine := NewValuationEngine(store, store)

	err := apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		_, err := engine.AllocateCost(ctx, txn, product, d(5))
		return err
	})
	if utils.KindOf(err) != utils.ErrorKindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestPreviewCostLeavesLayersUntouched(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	product := testProduct(store, 10, 120)
	first := store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(100), RemainingQuantity: d(20)})

	engine := NewValuationEngine(store, store)

	one, err := engine.PreviewCost(ctx, product, d(8))
	if err != nil {
		t.Fatalf("PreviewCost: %v", err)
	}
	two, err := engine.PreviewCost(ctx, product, d(8))
	if err != nil {
		t.Fatalf("PreviewCost again: %v", err)
	}
	if !one.Equal(two) {
		t.Fatalf("preview not repeatable: %s then %s", one, two)
	}
	if got := store.layerById(first.ID).RemainingQuantity; !got.Equal(d(20)) {
		t.Fatalf("layer remaining = %s, want untouched 20", got)
	}
}

func TestPreviewCostMatchesAllocation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	product := testProduct(store, 10, 120)
	store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(100), RemainingQuantity: d(20)})
	store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(120), RemainingQuantity: d(30)})

	engine := NewValuationEngine(store, store)

	preview, err := engine.PreviewCost(ctx, product, d(25))
	if err != nil {
		t.Fatalf("PreviewCost: %v", err)
	}
	var allocated decimal.Decimal
	err = apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		var err error
		allocated, err = engine.AllocateCost(ctx, txn, product, d(25))
		return err
	})
	if err != nil {
		t.Fatalf("AllocateCost: %v", err)
	}
	if !preview.Equal(allocated) {
		t.Fatalf("preview %s != allocated %s", preview, allocated)
	}
}

func TestAllocateCostRollbackRestoresLayers(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	product := testProduct(store, 10, 120)
	first := store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(100), RemainingQuantity: d(20)})
	second := store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(120), RemainingQuantity: d(30)})

	engine := NewValuationEngine(store, store)

	boom := errors.New("ledger write failed")
	err := apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		if _, err := engine.AllocateCost(ctx, txn, product, d(25)); err != nil {
			return err
		}
		return txn.AddOperation(
			func(ctx context.Context) error { return boom },
			func(ctx context.Context) error { return nil },
		)
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if got := store.layerById(first.ID).RemainingQuantity; !got.Equal(d(20)) {
		t.Fatalf("first layer remaining = %s, want restored 20", got)
	}
	if got := store.layerById(second.ID).RemainingQuantity; !got.Equal(d(30)) {
		t.Fatalf("second layer remaining = %s, want restored 30", got)
	}
}

func TestConsumePurchaseSamePriceExtendsNewestLayer(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	product := testProduct(store, 10, 120)
	product.TotalQuantity = d(50)
	store.addProduct(*product)
	last := store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(120), RemainingQuantity: d(30)})

	engine := NewValuationEngine(store, store)

	err := apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		return engine.ConsumePurchase(ctx, txn, product, d(40), d(120), 7)
	})
	if err != nil {
		t.Fatalf("ConsumePurchase: %v", err)
	}
	if got := len(store.layers); got != 1 {
		t.Fatalf("layer count = %d, want 1", got)
	}
	if got := store.layerById(last.ID).RemainingQuantity; !got.Equal(d(70)) {
		t.Fatalf("layer remaining = %s, want 70", got)
	}
	if got := store.products[1].TotalQuantity; !got.Equal(d(90)) {
		t.Fatalf("total quantity = %s, want 90", got)
	}
}

func TestConsumePurchaseNewPriceCreatesLayer(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	product := testProduct(store, 10, 120)
	store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(120), RemainingQuantity: d(30)})

	engine := NewValuationEngine(store, store)

	err := apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		return engine.ConsumePurchase(ctx, txn, product, d(40), d(150), 7)
	})
	if err != nil {
		t.Fatalf("ConsumePurchase: %v", err)
	}
	if got := len(store.layers); got != 2 {
		t.Fatalf("layer count = %d, want 2", got)
	}
	created := store.layers[1]
	if !created.NewPrice.Equal(d(150)) || !created.OldPrice.Equal(d(120)) {
		t.Fatalf("created layer prices = %s/%s, want 120/150", created.OldPrice, created.NewPrice)
	}
	if !created.RemainingQuantity.Equal(d(40)) {
		t.Fatalf("created layer remaining = %s, want 40", created.RemainingQuantity)
	}
	if got := store.products[1].PurchasePrice; !got.Equal(d(150)) {
		t.Fatalf("product purchase price = %s, want 150", got)
	}
}

func TestConsumePurchaseSettlesDeficitBeforeNewLayer(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	product := testProduct(store, 10, 120)
	product.TotalQuantity = d(-10)
	store.addProduct(*product)
	last := store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(120), RemainingQuantity: d(-10)})

	engine := NewValuationEngine(store, store)

	err := apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		return engine.ConsumePurchase(ctx, txn, product, d(50), d(150), 7)
	})
	if err != nil {
		t.Fatalf("ConsumePurchase: %v", err)
	}

	if got := store.layerById(last.ID).RemainingQuantity; !got.Equal(d(0)) {
		t.Fatalf("deficit layer remaining = %s, want 0", got)
	}
	if got := len(store.layers); got != 2 {
		t.Fatalf("layer count = %d, want 2", got)
	}
	created := store.layers[1]
	if !created.RemainingQuantity.Equal(d(40)) || !created.NewPrice.Equal(d(150)) {
		t.Fatalf("created layer = %s at %s, want 40 at 150", created.RemainingQuantity, created.NewPrice)
	}
	// total quantity rises by exactly the purchased quantity
	if got := store.products[1].TotalQuantity; !got.Equal(d(40)) {
		t.Fatalf("total quantity = %s, want 40", got)
	}
}

func TestConsumePurchaseZeroPricedDeficitAdoptsCurrentPrice(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	product := testProduct(store, 10, 120)
	last := store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(0), RemainingQuantity: d(-10)})

	engine := NewValuationEngine(store, store)

	err := apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		return engine.ConsumePurchase(ctx, txn, product, d(4), d(150), 7)
	})
	if err != nil {
		t.Fatalf("ConsumePurchase: %v", err)
	}

	// purchase smaller than the deficit only shrinks it; no new layer
	got := store.layerById(last.ID)
	if !got.RemainingQuantity.Equal(d(-6)) {
		t.Fatalf("deficit layer remaining = %s, want -6", got.RemainingQuantity)
	}
	if !got.NewPrice.Equal(d(120)) {
		t.Fatalf("deficit layer price = %s, want adopted 120", got.NewPrice)
	}
	if count := len(store.layers); count != 1 {
		t.Fatalf("layer count = %d, want 1", count)
	}
}

func TestCreditReturnThenAllocateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	product := testProduct(store, 10, 120)
	store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(100), RemainingQuantity: d(0)})
	last := store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(120), RemainingQuantity: d(0)})

	engine := NewValuationEngine(store, store)

	var credited decimal.Decimal
	err := apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		var err error
		credited, err = engine.CreditReturn(ctx, txn, product, d(10))
		return err
	})
	if err != nil {
		t.Fatalf("CreditReturn: %v", err)
	}
	// with every layer empty the return lands on the newest one
	if got := store.layerById(last.ID).RemainingQuantity; !got.Equal(d(10)) {
		t.Fatalf("credited layer remaining = %s, want 10", got)
	}

	var cost decimal.Decimal
	err = apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		var err error
		cost, err = engine.AllocateCost(ctx, txn, product, d(10))
		return err
	})
	if err != nil {
		t.Fatalf("AllocateCost: %v", err)
	}
	if !cost.Equal(credited) {
		t.Fatalf("re-allocating the returned units cost %s, credited %s", cost, credited)
	}
}

func TestCreditReturnPrefersOldestLayerWithStock(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	product := testProduct(store, 10, 120)
	first := store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(100), RemainingQuantity: d(5)})
	store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(120), RemainingQuantity: d(30)})

	engine := NewValuationEngine(store, store)

	var credited decimal.Decimal
	err := apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		var err error
		credited, err = engine.CreditReturn(ctx, txn, product, d(10))
		return err
	})
	if err != nil {
		t.Fatalf("CreditReturn: %v", err)
	}
	if want := d(10).Mul(d(100)).Div(d(10)); !credited.Equal(want) {
		t.Fatalf("credit = %s, want %s", credited, want)
	}
	if got := store.layerById(first.ID).RemainingQuantity; !got.Equal(d(15)) {
		t.Fatalf("oldest layer remaining = %s, want 15", got)
	}
}

func TestAllocateCostTwiceInOneRunSharesLayerState(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	product := testProduct(store, 1, 100)
	layer := store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(100), RemainingQuantity: d(5)})

	view := newRunView(store, store)
	engine := NewValuationEngine(view, view)

	var firstCost, secondCost decimal.Decimal
	err := apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		var err error
		if firstCost, err = engine.AllocateCost(ctx, txn, product, d(5)); err != nil {
			return err
		}
		secondCost, err = engine.AllocateCost(ctx, txn, product, d(5))
		return err
	})
	if err != nil {
		t.Fatalf("AllocateCost: %v", err)
	}

	// the second allocation sees the first one's spend and borrows, it must
	// not re-spend the same five units
	if !firstCost.Equal(d(500)) || !secondCost.Equal(d(500)) {
		t.Fatalf("costs = %s, %s, want 500 each", firstCost, secondCost)
	}
	if got := store.layerById(layer.ID).RemainingQuantity; !got.Equal(d(-5)) {
		t.Fatalf("layer remaining = %s, want -5", got)
	}
}

func TestRunViewServesOneProductInstance(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	testProduct(store, 10, 100)

	view := newRunView(store, store)
	first, err := view.GetProduct(ctx, testBusiness, 1)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	second, err := view.GetProduct(ctx, testBusiness, 1)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if first != second {
		t.Fatal("repeated reads returned different product instances")
	}

	first.TotalQuantity = first.TotalQuantity.Sub(d(30))
	if !second.TotalQuantity.Equal(d(-30)) {
		t.Fatalf("second read total = %s, want -30", second.TotalQuantity)
	}
}

func TestAllocateCostRoundsToLedgerPrecision(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	product := testProduct(store, 3, 100)
	store.addLayer(models.PriceStatus{BusinessId: testBusiness, ProductId: 1, NewPrice: d(100), RemainingQuantity: d(10)})

	engine := NewValuationEngine(store, store)

	preview, err := engine.PreviewCost(ctx, product, d(1))
	if err != nil {
		t.Fatalf("PreviewCost: %v", err)
	}

	var cost decimal.Decimal
	err = apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		var err error
		cost, err = engine.AllocateCost(ctx, txn, product, d(1))
		return err
	})
	if err != nil {
		t.Fatalf("AllocateCost: %v", err)
	}

	// 100/3 held to the ledger's decimal(20,4) precision
	want := decimal.RequireFromString("33.3333")
	if !cost.Equal(want) {
		t.Fatalf("cost = %s, want %s", cost, want)
	}
	if !preview.Equal(cost) {
		t.Fatalf("preview = %s, allocation = %s", preview, cost)
	}
}
