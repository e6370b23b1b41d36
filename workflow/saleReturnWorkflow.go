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

// RegisterSaleReturn takes goods back from a customer. Stock is credited to
// the cost layers at CreditReturn's layer price, cash goes down by the
// refunded amount, revenue by the margin, and the customer (merge-propagated)
// by the refund. A return against a bill also shrinks the bill's stored item
// quantities, re-derives its totals and corrects its status.
func (w *Workflows) RegisterSaleReturn(ctx context.Context, input *models.NewSaleReturn) (*models.SaleReturn, error) {
	businessId, userId, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if len(input.Items) == 0 {
		return nil, utils.ValidationError("return items required")
	}
	if input.ReturnType == "" {
		input.ReturnType = models.ReturnTypeDirect
	}
	if _, err := models.ParseReturnType(string(input.ReturnType)); err != nil {
		return nil, utils.ValidationError("invalid return type %q", input.ReturnType)
	}
	if input.ReturnType == models.ReturnTypeAgainstBill && input.BillId == nil {
		return nil, utils.ValidationError("bill id is required for return against bill")
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

	var saleReturn *models.SaleReturn
	err = w.runPosting(ctx, businessId, func(txn *apptx.Runner) error {
		returnDate := input.ReturnDate
		if returnDate.IsZero() {
			returnDate = time.Now()
		}
		saleReturn = &models.SaleReturn{
			BusinessId:   businessId,
			CustomerId:   input.CustomerId,
			CustomerName: input.CustomerName,
			BillId:       input.BillId,
			ReturnType:   input.ReturnType,
			Reason:       input.Reason,
			ReturnDate:   returnDate,
			CreatedBy:    userId,
		}

		totalPurchasePrice := decimal.Zero
		totalReturnAmount := decimal.Zero

		for _, in := range input.Items {
			product, err := view.GetProduct(ctx, businessId, in.ProductId)
			if err != nil {
				return err
			}

			item := models.SaleReturnItem{
				ProductId:   product.ID,
				ProductName: product.Name,
				Quantity:    in.Quantity,
				PackSize:    product.PackSize,
				ReturnPrice: in.ReturnPrice,
			}
			baseUnits := item.BaseUnits()

			credit, err := valuation.CreditReturn(ctx, txn, product, baseUnits)
			if err != nil {
				return err
			}
			item.PurchaseAmount = credit
			totalPurchasePrice = totalPurchasePrice.Add(credit)
			totalReturnAmount = totalReturnAmount.Add(in.ReturnPrice.Mul(in.Quantity))

			originalQty := product.TotalQuantity
			product.TotalQuantity = product.TotalQuantity.Add(baseUnits)
			if err := txn.AddOperation(
				func(ctx context.Context) error { return w.stores.SaveProduct(ctx, product) },
				func(ctx context.Context) error {
					product.TotalQuantity = originalQty
					return w.stores.SaveProduct(ctx, product)
				},
			); err != nil {
				return err
			}

			saleReturn.Items = append(saleReturn.Items, item)
		}
		saleReturn.TotalReturnAmount = totalReturnAmount

		if input.BillId != nil {
			if err := w.applyReturnToBill(ctx, txn, businessId, *input.BillId, input.Items); err != nil {
				return err
			}
		}

		inventory, err := w.stores.GetAccountByName(ctx, businessId, AccountNameInventory)
		if err != nil {
			return err
		}
		cash, err := w.stores.GetAccountByName(ctx, businessId, AccountNameCash)
		if err != nil {
			return err
		}
		revenue, err := w.stores.GetAccountByName(ctx, businessId, AccountNameSalesRevenue)
		if err != nil {
			return err
		}

		if err := w.posting.ApplyDelta(txn, inventory, totalPurchasePrice); err != nil {
			return err
		}
		if err := w.posting.ApplyDelta(txn, cash, totalReturnAmount.Neg()); err != nil {
			return err
		}
		if err := w.posting.ApplyDelta(txn, revenue, totalReturnAmount.Sub(totalPurchasePrice).Neg()); err != nil {
			return err
		}

		if input.CustomerId != nil {
			customer, err := w.stores.GetCustomerAccount(ctx, businessId, *input.CustomerId)
			if err != nil {
				return err
			}
			customerRoot, err := w.posting.ApplyDeltaWithMerge(ctx, txn, customer, totalReturnAmount.Neg())
			if err != nil {
				return err
			}

			description := "Sale Return for Direct Return"
			if input.ReturnType == models.ReturnTypeAgainstBill {
				description = fmt.Sprintf("Sale Return for Bill %d", *input.BillId)
			}
			if err := w.posting.CreditEntry(txn, businessId, customerRoot.ID, customerRoot.ID,
				totalReturnAmount, models.DetailSaleReturn, description, 0, userId); err != nil {
				return err
			}
		}

		return txn.AddOperation(
			func(ctx context.Context) error { return w.stores.DB().WithContext(ctx).Create(saleReturn).Error },
			func(ctx context.Context) error {
				return w.stores.DB().WithContext(ctx).Select("Items").Delete(saleReturn).Error
			},
		)
	})
	if err != nil {
		return nil, err
	}
	return saleReturn, nil
}

// applyReturnToBill shrinks the bill's stored item quantities by what came
// back, re-derives the totals and corrects the status: a paid bill that is
// now underpaid drops to partially paid, a partially paid bill whose payments
// now cover the smaller total becomes paid, and an unpaid bill stays unpaid
// with its paid amount forced to zero.
func (w *Workflows) applyReturnToBill(ctx context.Context, txn *apptx.Runner, businessId string, billId int, returned []models.NewSaleReturnItem) error {
	var bill models.Bill
	err := w.stores.DB().WithContext(ctx).
		Preload("Items").Preload("ExtraItems").
		Where("business_id = ?", businessId).
		First(&bill, billId).Error
	if err != nil {
		return utils.NotFoundError("bill %d not found", billId)
	}

	originalItems := make([]models.BillItem, len(bill.Items))
	copy(originalItems, bill.Items)
	originalTotal := bill.TotalAmount
	originalPurchase := bill.TotalPurchaseAmount
	originalRevenue := bill.BillRevenue
	originalPaid := bill.PaidAmount
	originalStatus := bill.BillStatus

	if err := applyReturnItems(&bill, returned); err != nil {
		return err
	}

	return txn.AddOperation(
		func(ctx context.Context) error {
			if err := w.saveBillHeader(ctx, &bill); err != nil {
				return err
			}
			for i := range bill.Items {
				if err := w.stores.DB().WithContext(ctx).Save(&bill.Items[i]).Error; err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context) error {
			bill.TotalAmount = originalTotal
			bill.TotalPurchaseAmount = originalPurchase
			bill.BillRevenue = originalRevenue
			bill.PaidAmount = originalPaid
			bill.BillStatus = originalStatus
			bill.Items = originalItems
			if err := w.saveBillHeader(ctx, &bill); err != nil {
				return err
			}
			for i := range bill.Items {
				if err := w.stores.DB().WithContext(ctx).Save(&bill.Items[i]).Error; err != nil {
					return err
				}
			}
			return nil
		},
	)
}

// applyReturnItems mutates the bill in place: shrinks the returned item
// quantities proportionally with their frozen cost, re-derives the totals
// and revenue, and corrects the status three ways.
func applyReturnItems(bill *models.Bill, returned []models.NewSaleReturnItem) error {
	originalStatus := bill.BillStatus

	for _, ret := range returned {
		found := false
		for i := range bill.Items {
			item := &bill.Items[i]
			if item.ProductId != ret.ProductId {
				continue
			}
			found = true
			if ret.Quantity.GreaterThan(item.Quantity) {
				return utils.ValidationError("return quantity exceeds billed quantity for product %d", ret.ProductId)
			}
			ratio := decimal.Zero
			if !item.Quantity.IsZero() {
				ratio = ret.Quantity.Div(item.Quantity)
			}
			item.PurchaseAmount = item.PurchaseAmount.Sub(item.PurchaseAmount.Mul(ratio))
			item.Quantity = item.Quantity.Sub(ret.Quantity)
			break
		}
		if !found {
			return utils.ValidationError("product %d is not on bill %s", ret.ProductId, bill.BillNo)
		}
	}

	bill.RecomputeTotals()
	bill.TotalAmount = bill.TotalAmount.Add(bill.ExtraItemsTotal())
	bill.BillRevenue = bill.TotalAmount.Sub(bill.FlatDiscount).Sub(bill.TotalPurchaseAmount).Sub(bill.ExtraItemsTotal())

	remaining := bill.RemainingBalance()
	switch originalStatus {
	case models.BillStatusPaid:
		if remaining.IsPositive() {
			bill.BillStatus = models.BillStatusPartiallyPaid
		}
	case models.BillStatusPartiallyPaid:
		if !remaining.IsPositive() {
			bill.BillStatus = models.BillStatusPaid
		}
	case models.BillStatusUnpaid:
		bill.PaidAmount = decimal.Zero
	}
	return nil
}
