package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/parkodev/backoffice_backend/apptx"
	"github.com/parkodev/backoffice_backend/models"
	"github.com/parkodev/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

// RegisterPurchase takes vendor stock into the FIFO queue and posts the
// deltas: inventory up by the full cost, cash down by what was paid on the
// spot, payables and the vendor (merge-propagated) up by what remains owed.
func (w *Workflows) RegisterPurchase(ctx context.Context, input *models.NewPurchase) (*models.Purchase, error) {
	businessId, userId, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if len(input.Items) == 0 {
		return nil, utils.ValidationError("purchase requires at least one item")
	}
	if input.PaidAmount.IsNegative() || input.FlatDiscount.IsNegative() {
		return nil, utils.ValidationError("paid amount and discount cannot be negative")
	}

	productIds := make([]int, 0, len(input.Items))
	for _, item := range input.Items {
		productIds = append(productIds, item.ProductId)
	}
	releaseLocks, err := w.lockProducts(ctx, businessId, productIds)
	if err != nil {
		return nil, err
	}
	defer releaseLocks()

	view := newRunView(w.stores, w.stores)
	valuation := NewValuationEngine(view, view)

	var purchase *models.Purchase
	err = w.runPosting(ctx, businessId, func(txn *apptx.Runner) error {
		vendor, err := w.stores.GetAccount(ctx, businessId, input.VendorAccountId)
		if err != nil {
			return err
		}
		if vendor.Kind != models.AccountKindSupplier && vendor.Kind != models.AccountKindCompany {
			return utils.ValidationError("account %d is not a vendor account", vendor.ID)
		}

		purchaseDate := input.PurchaseDate
		if purchaseDate.IsZero() {
			purchaseDate = time.Now()
		}
		purchase = &models.Purchase{
			BusinessId:      businessId,
			BillNo:          input.BillNo,
			VendorAccountId: vendor.ID,
			VendorName:      vendor.Name,
			FlatDiscount:    input.FlatDiscount,
			PaidAmount:      input.PaidAmount,
			PurchaseDate:    purchaseDate,
			CreatedBy:       userId,
		}

		totalCost := decimal.Zero
		for _, in := range input.Items {
			product, err := view.GetProduct(ctx, businessId, in.ProductId)
			if err != nil {
				return err
			}
			if in.Quantity.IsNegative() || in.Quantity.IsZero() {
				return utils.ValidationError("purchase quantity for product %d must be positive", product.ID)
			}

			item := models.PurchaseItem{
				ProductId:   product.ID,
				ProductName: product.Name,
				Quantity:    in.Quantity,
				PackSize:    product.PackSize,
				UnitPrice:   in.UnitPrice,
				Discount:    in.Discount,
			}

			if err := valuation.ConsumePurchase(ctx, txn, product, item.BaseUnits(), in.UnitPrice, userId); err != nil {
				return err
			}

			purchase.Items = append(purchase.Items, item)
			totalCost = totalCost.Add(in.UnitPrice.Mul(in.Quantity))
		}

		owed := totalCost.Sub(input.FlatDiscount).Sub(input.PaidAmount)
		purchase.TotalAmount = owed

		inventory, err := w.stores.GetAccountByName(ctx, businessId, AccountNameInventory)
		if err != nil {
			return err
		}
		if err := w.posting.ApplyDelta(txn, inventory, totalCost); err != nil {
			return err
		}

		if input.PaidAmount.IsPositive() {
			cash, err := w.stores.GetAccountByName(ctx, businessId, AccountNameCash)
			if err != nil {
				return err
			}
			if err := w.posting.ApplyDelta(txn, cash, input.PaidAmount.Neg()); err != nil {
				return err
			}
		}

		if owed.IsPositive() {
			payables, err := w.stores.GetAccountByName(ctx, businessId, AccountNamePayables)
			if err != nil {
				return err
			}
			if err := w.posting.ApplyDelta(txn, payables, owed); err != nil {
				return err
			}
		}

		vendorRoot, err := w.posting.ApplyDeltaWithMerge(ctx, txn, vendor, owed)
		if err != nil {
			return err
		}

		if err := txn.AddOperation(
			func(ctx context.Context) error { return w.stores.DB().WithContext(ctx).Create(purchase).Error },
			func(ctx context.Context) error {
				return w.stores.DB().WithContext(ctx).Select("Items").Delete(purchase).Error
			},
		); err != nil {
			return err
		}

		if err := w.posting.CreditEntry(txn, businessId, vendorRoot.ID, vendorRoot.ID,
			totalCost, models.DetailPurchase,
			fmt.Sprintf("Purchase Invoice %s", purchase.BillNo), 0, userId); err != nil {
			return err
		}
		if input.PaidAmount.IsPositive() {
			if err := w.posting.DebitEntry(txn, businessId, vendorRoot.ID, vendorRoot.ID,
				input.PaidAmount, models.DetailPurchase,
				fmt.Sprintf("Payment of %s", purchase.BillNo), 0, userId); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

// RegisterPurchaseReturn sends stock back to a vendor at the product's
// current purchase price. Returning more than is on hand is rejected.
func (w *Workflows) RegisterPurchaseReturn(ctx context.Context, input *models.NewPurchaseReturn) (decimal.Decimal, error) {
	businessId, userId, err := callerFromContext(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if len(input.Items) == 0 {
		return decimal.Zero, utils.ValidationError("return items required")
	}

	productIds := make([]int, 0, len(input.Items))
	for _, item := range input.Items {
		productIds = append(productIds, item.ProductId)
	}
	releaseLocks, err := w.lockProducts(ctx, businessId, productIds)
	if err != nil {
		return decimal.Zero, err
	}
	defer releaseLocks()

	view := newRunView(w.stores, w.stores)

	totalReturn := decimal.Zero
	err = w.runPosting(ctx, businessId, func(txn *apptx.Runner) error {
		vendor, err := w.stores.GetAccount(ctx, businessId, input.VendorAccountId)
		if err != nil {
			return err
		}

		var firstProductName string
		for _, in := range input.Items {
			product, err := view.GetProduct(ctx, businessId, in.ProductId)
			if err != nil {
				return err
			}
			if firstProductName == "" {
				firstProductName = product.Name
			}

			returnCost := product.PurchasePrice.Mul(in.Quantity)
			totalReturn = totalReturn.Add(returnCost)

			originalQty := product.TotalQuantity
			product.TotalQuantity = product.TotalQuantity.Sub(in.Quantity.Mul(product.PackSize))
			if product.TotalQuantity.IsNegative() {
				return utils.ValidationError("invalid return quantity for product %d", product.ID)
			}
			if err := txn.AddOperation(
				func(ctx context.Context) error { return w.stores.SaveProduct(ctx, product) },
				func(ctx context.Context) error {
					product.TotalQuantity = originalQty
					return w.stores.SaveProduct(ctx, product)
				},
			); err != nil {
				return err
			}
		}

		vendorRoot, err := w.posting.ApplyDeltaWithMerge(ctx, txn, vendor, totalReturn.Neg())
		if err != nil {
			return err
		}

		inventory, err := w.stores.GetAccountByName(ctx, businessId, AccountNameInventory)
		if err != nil {
			return err
		}
		if err := w.posting.ApplyDelta(txn, inventory, totalReturn.Neg()); err != nil {
			return err
		}

		payables, err := w.stores.GetAccountByName(ctx, businessId, AccountNamePayables)
		if err != nil {
			return err
		}
		if err := w.posting.ApplyDelta(txn, payables, totalReturn.Neg()); err != nil {
			return err
		}

		description := fmt.Sprintf("Purchase Return of %d items", len(input.Items))
		if len(input.Items) == 1 {
			description = fmt.Sprintf("Purchase Return of %s", firstProductName)
		}
		if input.Reason != "" {
			description = fmt.Sprintf("%s: %s", description, input.Reason)
		}
		return w.posting.DebitEntry(txn, businessId, vendorRoot.ID, vendorRoot.ID,
			totalReturn, models.DetailPurchaseReturn, description, input.PurchaseId, userId)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return totalReturn, nil
}
