package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/parkodev/backoffice_backend/apptx"
	"github.com/parkodev/backoffice_backend/models"
	"github.com/parkodev/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RegisterSale creates a bill, prices its items against the FIFO cost layers
// and posts the resulting deltas: inventory down by cost of goods sold,
// revenue up by the margin, cash up by what was paid, and the customer (and
// their merge root) up by what is still outstanding.
func (w *Workflows) RegisterSale(ctx context.Context, input *models.NewBill) (*models.Bill, error) {
	businessId, userId, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if len(input.Items) == 0 {
		return nil, utils.ValidationError("bill requires at least one item")
	}
	if input.BillType == "" {
		input.BillType = models.BillTypeA4
	}
	if _, err := models.ParseBillType(string(input.BillType)); err != nil {
		return nil, utils.ValidationError("invalid bill type %q", input.BillType)
	}
	if input.PaidAmount.IsNegative() {
		return nil, utils.ValidationError("paid amount cannot be negative")
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

	var bill *models.Bill
	err = w.runPosting(ctx, businessId, func(txn *apptx.Runner) error {
		billNo, err := NextBillNo(ctx, w.stores.DB(), businessId, input.BillType)
		if err != nil {
			return err
		}

		billDate := input.BillDate
		if billDate.IsZero() {
			billDate = time.Now()
		}
		bill = &models.Bill{
			BusinessId:   businessId,
			BillNo:       billNo,
			BillType:     input.BillType,
			CustomerId:   input.CustomerId,
			CustomerName: input.CustomerName,
			FlatDiscount: input.FlatDiscount,
			PaidAmount:   input.PaidAmount,
			DueDate:      input.DueDate,
			BillDate:     billDate,
			IsPosted:     utils.NewFalse(),
			CreatedBy:    userId,
		}

		totalAmount := decimal.Zero
		totalPurchase := decimal.Zero
		itemDiscounts := decimal.Zero

		for _, in := range input.Items {
			product, err := view.GetProduct(ctx, businessId, in.ProductId)
			if err != nil {
				return err
			}

			item := models.BillItem{
				ProductId:     product.ID,
				ProductName:   product.Name,
				Quantity:      in.Quantity,
				PackSize:      product.PackSize,
				LooseQuantity: in.LooseQuantity,
				UnitPrice:     in.UnitPrice,
				Discount:      in.Discount,
			}
			baseUnits := item.BaseUnits()

			cost, err := valuation.AllocateCost(ctx, txn, product, baseUnits)
			if err != nil {
				return err
			}
			item.PurchaseAmount = cost

			originalQty := product.TotalQuantity
			product.TotalQuantity = product.TotalQuantity.Sub(baseUnits)
			if err := txn.AddOperation(
				func(ctx context.Context) error { return w.stores.SaveProduct(ctx, product) },
				func(ctx context.Context) error {
					product.TotalQuantity = originalQty
					return w.stores.SaveProduct(ctx, product)
				},
			); err != nil {
				return err
			}

			bill.Items = append(bill.Items, item)
			totalAmount = totalAmount.Add(item.LineTotal())
			totalPurchase = totalPurchase.Add(cost)
			itemDiscounts = itemDiscounts.Add(in.Discount)
		}

		extraTotal := decimal.Zero
		for _, extra := range input.ExtraItems {
			bill.ExtraItems = append(bill.ExtraItems, models.BillExtraItem{
				Name:   extra.Name,
				Amount: extra.Amount,
			})
			extraTotal = extraTotal.Add(extra.Amount)
		}
		totalAmount = totalAmount.Add(extraTotal)

		outstanding := totalAmount.Sub(input.PaidAmount).Sub(input.FlatDiscount).Sub(itemDiscounts)
		if outstanding.IsPositive() && input.CustomerId == nil {
			return utils.ValidationError("customer is required for receivables")
		}

		salesRevenue := totalAmount.Sub(input.FlatDiscount).Sub(totalPurchase).Sub(extraTotal)

		bill.TotalAmount = totalAmount
		bill.TotalPurchaseAmount = totalPurchase
		bill.BillRevenue = salesRevenue
		bill.BillStatus = billStatusFor(totalAmount, input.PaidAmount, input.FlatDiscount)

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

		if err := w.posting.ApplyDelta(txn, inventory, totalPurchase.Neg()); err != nil {
			return err
		}
		if err := w.posting.ApplyDelta(txn, revenue, salesRevenue); err != nil {
			return err
		}
		if err := w.posting.ApplyDelta(txn, cash, input.PaidAmount); err != nil {
			return err
		}

		if outstanding.IsPositive() {
			receivable, err := w.stores.GetAccountByName(ctx, businessId, AccountNameReceivables)
			if err != nil {
				return err
			}
			if err := w.posting.ApplyDelta(txn, receivable, outstanding); err != nil {
				return err
			}
		}

		var customerRoot *models.IndividualAccount
		if input.CustomerId != nil {
			customer, err := w.stores.GetCustomerAccount(ctx, businessId, *input.CustomerId)
			if err != nil {
				return err
			}
			customerRoot, err = w.posting.ApplyDeltaWithMerge(ctx, txn, customer, outstanding)
			if err != nil {
				return err
			}
		}

		if err := txn.AddOperation(
			func(ctx context.Context) error { return w.stores.DB().WithContext(ctx).Create(bill).Error },
			func(ctx context.Context) error {
				return w.stores.DB().WithContext(ctx).Select("Items", "ExtraItems").Delete(bill).Error
			},
		); err != nil {
			return err
		}

		if customerRoot != nil {
			rootId := customerRoot.ID
			if err := w.enrollBillEntry(txn, bill, func(b *models.Bill) *models.GeneralLedgerEntry {
				return &models.GeneralLedgerEntry{
					BusinessId:         businessId,
					AccountId:          rootId,
					ReferenceAccountId: rootId,
					Debit:              b.TotalAmount.Sub(b.FlatDiscount),
					Details:            models.DetailSale,
					Description:        fmt.Sprintf("Bill %s", b.BillNo),
					CreatedBy:          userId,
				}
			}); err != nil {
				return err
			}
			if err := w.enrollBillEntry(txn, bill, func(b *models.Bill) *models.GeneralLedgerEntry {
				return &models.GeneralLedgerEntry{
					BusinessId:         businessId,
					AccountId:          revenue.ID,
					ReferenceAccountId: rootId,
					Credit:             salesRevenue,
					Details:            models.DetailSale,
					Description:        fmt.Sprintf("Revenue for Bill %s", b.BillNo),
					CreatedBy:          userId,
				}
			}); err != nil {
				return err
			}
			if input.PaidAmount.IsPositive() {
				if err := w.enrollBillEntry(txn, bill, func(b *models.Bill) *models.GeneralLedgerEntry {
					return &models.GeneralLedgerEntry{
						BusinessId:         businessId,
						AccountId:          rootId,
						ReferenceAccountId: rootId,
						Credit:             b.PaidAmount,
						Details:            models.DetailSale,
						Description:        fmt.Sprintf("Cash received for Bill %s", b.BillNo),
						CreatedBy:          userId,
					}
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// enrollBillEntry defers building the ledger row until execution so it can
// reference the bill id assigned by the bill's own create.
func (w *Workflows) enrollBillEntry(txn *apptx.Runner, bill *models.Bill, build func(b *models.Bill) *models.GeneralLedgerEntry) error {
	var entry *models.GeneralLedgerEntry
	return txn.AddOperation(
		func(ctx context.Context) error {
			entry = build(bill)
			entry.ReferenceId = bill.ID
			return w.stores.CreateEntry(ctx, entry)
		},
		func(ctx context.Context) error {
			if entry == nil {
				return nil
			}
			return w.stores.DeleteEntry(ctx, entry.ID)
		},
	)
}

func billStatusFor(total, paid, flatDiscount decimal.Decimal) models.BillStatus {
	remaining := total.Sub(paid).Sub(flatDiscount)
	switch {
	case !remaining.IsPositive():
		return models.BillStatusPaid
	case paid.IsPositive():
		return models.BillStatusPartiallyPaid
	default:
		return models.BillStatusUnpaid
	}
}

// BillPayment records a payment (and optional extra discount) against a bill.
// Paying more than the remaining balance is rejected.
func (w *Workflows) BillPayment(ctx context.Context, input *models.NewBillPayment) (*models.Bill, error) {
	businessId, userId, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if input.AmountPaid.IsNegative() {
		return nil, utils.ValidationError("amount paid must be greater than zero")
	}
	if !input.AmountPaid.IsPositive() && !input.FlatDiscount.IsPositive() {
		return nil, utils.ValidationError("amount or discount required")
	}

	var bill *models.Bill
	err = w.runPosting(ctx, businessId, func(txn *apptx.Runner) error {
		bill, err = w.getBillByNo(ctx, businessId, input.BillNo)
		if err != nil {
			return err
		}

		remaining := bill.RemainingBalance()
		if input.AmountPaid.GreaterThan(remaining) {
			return utils.ValidationError("payment exceeds remaining balance, remaining: %s", remaining)
		}

		originalPaid := bill.PaidAmount
		originalFlat := bill.FlatDiscount
		originalStatus := bill.BillStatus

		bill.PaidAmount = bill.PaidAmount.Add(input.AmountPaid)
		if input.FlatDiscount.IsPositive() {
			bill.FlatDiscount = bill.FlatDiscount.Add(input.FlatDiscount)
		}
		if bill.PaidAmount.Add(bill.FlatDiscount).GreaterThanOrEqual(bill.TotalAmount) {
			bill.BillStatus = models.BillStatusPaid
		} else {
			bill.BillStatus = models.BillStatusPartiallyPaid
		}
		if err := txn.AddOperation(
			func(ctx context.Context) error { return w.saveBillHeader(ctx, bill) },
			func(ctx context.Context) error {
				bill.PaidAmount = originalPaid
				bill.FlatDiscount = originalFlat
				bill.BillStatus = originalStatus
				return w.saveBillHeader(ctx, bill)
			},
		); err != nil {
			return err
		}

		cash, err := w.stores.GetAccountByName(ctx, businessId, AccountNameCash)
		if err != nil {
			return err
		}
		receivable, err := w.stores.GetAccountByName(ctx, businessId, AccountNameReceivables)
		if err != nil {
			return err
		}
		revenue, err := w.stores.GetAccountByName(ctx, businessId, AccountNameSalesRevenue)
		if err != nil {
			return err
		}
		if bill.CustomerId == nil {
			return utils.ValidationError("bill %s has no customer", bill.BillNo)
		}
		customer, err := w.stores.GetCustomerAccount(ctx, businessId, *bill.CustomerId)
		if err != nil {
			return err
		}

		if err := w.posting.ApplyDelta(txn, receivable, input.AmountPaid.Neg()); err != nil {
			return err
		}
		customerRoot, err := w.posting.ApplyDeltaWithMerge(ctx, txn, customer, input.AmountPaid.Add(input.FlatDiscount).Neg())
		if err != nil {
			return err
		}
		if err := w.posting.ApplyDelta(txn, revenue, input.FlatDiscount.Neg()); err != nil {
			return err
		}
		if err := w.posting.ApplyDelta(txn, cash, input.AmountPaid); err != nil {
			return err
		}

		return w.posting.CreditEntry(txn, businessId, customerRoot.ID, customerRoot.ID,
			input.AmountPaid, models.DetailBillPayment,
			fmt.Sprintf("Bill Payment for Bill %s", bill.BillNo), bill.ID, userId)
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// MarkBillPosted flags a bill as posted to the ledger books.
func (w *Workflows) MarkBillPosted(ctx context.Context, billNo string) (*models.Bill, error) {
	businessId, _, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var bill *models.Bill
	err = w.runPosting(ctx, businessId, func(txn *apptx.Runner) error {
		bill, err = w.getBillByNo(ctx, businessId, billNo)
		if err != nil {
			return err
		}
		bill.IsPosted = utils.NewTrue()
		return txn.AddOperation(
			func(ctx context.Context) error { return w.saveBillHeader(ctx, bill) },
			func(ctx context.Context) error {
				bill.IsPosted = utils.NewFalse()
				return w.saveBillHeader(ctx, bill)
			},
		)
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// MergeBills folds the child bills into a parent: an existing bill when
// ParentBillId is set, otherwise a fresh bill numbered like any other of the
// first child's type. Children keep their rows and point at the parent via
// MergedInto.
func (w *Workflows) MergeBills(ctx context.Context, input *models.NewBillMerge) (*models.Bill, error) {
	businessId, userId, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if len(input.ChildBillIds) == 0 {
		return nil, utils.ValidationError("child bill ids are required")
	}

	var parent *models.Bill
	err = w.runPosting(ctx, businessId, func(txn *apptx.Runner) error {
		var children []*models.Bill
		err := w.stores.DB().WithContext(ctx).
			Preload("Items").Preload("ExtraItems").
			Where("business_id = ? AND id IN ? AND merged_into IS NULL", businessId, input.ChildBillIds).
			Find(&children).Error
		if err != nil {
			return err
		}
		if len(children) != len(input.ChildBillIds) {
			return utils.NotFoundError("some bills not found or already merged")
		}

		childTotal := decimal.Zero
		childPaid := decimal.Zero
		childFlat := decimal.Zero
		childPurchase := decimal.Zero
		for _, child := range children {
			childTotal = childTotal.Add(child.TotalAmount)
			childPaid = childPaid.Add(child.PaidAmount)
			childFlat = childFlat.Add(child.FlatDiscount)
			childPurchase = childPurchase.Add(child.TotalPurchaseAmount)
		}

		if input.ParentBillId != nil {
			for _, id := range input.ChildBillIds {
				if id == *input.ParentBillId {
					return utils.ValidationError("parent bill cannot be in child bills list")
				}
			}
			parent = &models.Bill{}
			err := w.stores.DB().WithContext(ctx).
				Preload("Items").Preload("ExtraItems").
				Where("business_id = ? AND id = ? AND merged_into IS NULL", businessId, *input.ParentBillId).
				First(parent).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NotFoundError("parent bill not found or already merged")
			}
			if err != nil {
				return err
			}

			originalTotal := parent.TotalAmount
			originalPaid := parent.PaidAmount
			originalFlat := parent.FlatDiscount
			originalPurchase := parent.TotalPurchaseAmount
			originalStatus := parent.BillStatus

			parent.TotalAmount = parent.TotalAmount.Add(childTotal)
			parent.PaidAmount = parent.PaidAmount.Add(childPaid)
			parent.FlatDiscount = parent.FlatDiscount.Add(childFlat)
			parent.TotalPurchaseAmount = parent.TotalPurchaseAmount.Add(childPurchase)
			parent.BillStatus = billStatusFor(parent.TotalAmount, parent.PaidAmount, parent.FlatDiscount)

			if err := txn.AddOperation(
				func(ctx context.Context) error { return w.saveBillHeader(ctx, parent) },
				func(ctx context.Context) error {
					parent.TotalAmount = originalTotal
					parent.PaidAmount = originalPaid
					parent.FlatDiscount = originalFlat
					parent.TotalPurchaseAmount = originalPurchase
					parent.BillStatus = originalStatus
					return w.saveBillHeader(ctx, parent)
				},
			); err != nil {
				return err
			}
		} else {
			first := children[0]
			billNo, err := NextBillNo(ctx, w.stores.DB(), businessId, first.BillType)
			if err != nil {
				return err
			}
			parent = &models.Bill{
				BusinessId:          businessId,
				BillNo:              billNo,
				BillType:            first.BillType,
				CustomerId:          first.CustomerId,
				CustomerName:        first.CustomerName,
				FlatDiscount:        childFlat,
				TotalAmount:         childTotal,
				PaidAmount:          childPaid,
				TotalPurchaseAmount: childPurchase,
				BillStatus:          billStatusFor(childTotal, childPaid, childFlat),
				BillDate:            time.Now(),
				IsPosted:            utils.NewFalse(),
				CreatedBy:           userId,
			}
			if err := txn.AddOperation(
				func(ctx context.Context) error { return w.stores.DB().WithContext(ctx).Create(parent).Error },
				func(ctx context.Context) error { return w.stores.DB().WithContext(ctx).Delete(parent).Error },
			); err != nil {
				return err
			}
		}

		for _, child := range children {
			child := child
			if err := txn.AddOperation(
				func(ctx context.Context) error {
					return w.stores.DB().WithContext(ctx).Model(&models.Bill{}).
						Where("id = ?", child.ID).
						Update("merged_into", parent.ID).Error
				},
				func(ctx context.Context) error {
					return w.stores.DB().WithContext(ctx).Model(&models.Bill{}).
						Where("id = ?", child.ID).
						Update("merged_into", nil).Error
				},
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return parent, nil
}

func (w *Workflows) getBillByNo(ctx context.Context, businessId, billNo string) (*models.Bill, error) {
	var bill models.Bill
	err := w.stores.DB().WithContext(ctx).
		Preload("Items").Preload("ExtraItems").
		Where("business_id = ? AND bill_no = ?", businessId, billNo).
		First(&bill).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError("bill %s not found", billNo)
	}
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// saveBillHeader persists the bill row without touching its item rows.
func (w *Workflows) saveBillHeader(ctx context.Context, bill *models.Bill) error {
	return w.stores.DB().WithContext(ctx).Omit("Items", "ExtraItems").Save(bill).Error
}
