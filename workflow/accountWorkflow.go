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

// MergeAccounts folds child accounts into a parent. The parent takes over
// the children's summed balances exactly once; children stay in place with
// MergedInto pointing at the parent so later postings land on the root.
func (w *Workflows) MergeAccounts(ctx context.Context, input *models.NewAccountMerge) (*models.IndividualAccount, error) {
	businessId, userId, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if len(input.ChildAccountIds) == 0 {
		return nil, utils.ValidationError("child account ids are required")
	}
	if input.ParentAccountName == "" && input.ExistingParentAccountId == nil {
		return nil, utils.ValidationError("either new parent account name or existing parent account must be provided")
	}
	if input.ParentAccountName != "" && input.ExistingParentAccountId != nil {
		return nil, utils.ValidationError("cannot provide both new parent account name and existing parent account")
	}

	var parent *models.IndividualAccount
	err = w.runPosting(ctx, businessId, func(txn *apptx.Runner) error {
		children := make([]*models.IndividualAccount, 0, len(input.ChildAccountIds))
		childBalance := decimal.Zero
		for _, id := range input.ChildAccountIds {
			if input.ExistingParentAccountId != nil && id == *input.ExistingParentAccountId {
				return utils.ValidationError("parent account cannot be in child accounts list")
			}
			child, err := w.stores.GetAccount(ctx, businessId, id)
			if err != nil {
				return err
			}
			if child.MergedInto != nil {
				return utils.ConflictError("account %d is already merged", child.ID)
			}
			children = append(children, child)
			childBalance = childBalance.Add(child.Balance)
		}

		if input.ExistingParentAccountId != nil {
			parent, err = w.stores.GetAccount(ctx, businessId, *input.ExistingParentAccountId)
			if err != nil {
				return err
			}
			if err := w.posting.ApplyDelta(txn, parent, childBalance); err != nil {
				return err
			}
		} else {
			first := children[0]
			parent = &models.IndividualAccount{
				BusinessId:      businessId,
				Name:            input.ParentAccountName,
				Kind:            first.Kind,
				CustomerId:      first.CustomerId,
				SupplierId:      first.SupplierId,
				CompanyId:       first.CompanyId,
				ParentAccountId: first.ParentAccountId,
				Balance:         childBalance,
				IsActive:        utils.NewTrue(),
			}
			if err := txn.AddOperation(
				func(ctx context.Context) error {
					return w.stores.DB().WithContext(ctx).Create(parent).Error
				},
				func(ctx context.Context) error {
					return w.stores.DB().WithContext(ctx).Delete(parent).Error
				},
			); err != nil {
				return err
			}
		}

		for _, child := range children {
			child := child
			if err := txn.AddOperation(
				func(ctx context.Context) error {
					child.MergedInto = &parent.ID
					return w.stores.SaveAccount(ctx, child)
				},
				func(ctx context.Context) error {
					child.MergedInto = nil
					return w.stores.SaveAccount(ctx, child)
				},
			); err != nil {
				return err
			}
		}

		if !childBalance.IsZero() {
			// the parent may be created in this run, so the row is built at
			// execution time once its id exists
			var mergeEntry *models.GeneralLedgerEntry
			if err := txn.AddOperation(
				func(ctx context.Context) error {
					entry := &models.GeneralLedgerEntry{
						BusinessId:         businessId,
						AccountId:          parent.ID,
						ReferenceAccountId: parent.ID,
						Details:            models.DetailAccountMerge,
						Description:        fmt.Sprintf("Merged %d accounts", len(children)),
						CreatedBy:          userId,
					}
					if childBalance.IsNegative() {
						entry.Credit = childBalance.Abs()
					} else {
						entry.Debit = childBalance
					}
					mergeEntry = entry
					return w.stores.CreateEntry(ctx, entry)
				},
				func(ctx context.Context) error {
					if mergeEntry == nil {
						return nil
					}
					return w.stores.DeleteEntry(ctx, mergeEntry.ID)
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

// OpenAccountBalance seeds an account with an opening amount and writes the
// "Opening Balance" ledger row that close-balance windows anchor on.
func (w *Workflows) OpenAccountBalance(ctx context.Context, input *models.NewAccountBalanceOpen) error {
	businessId, userId, err := callerFromContext(ctx)
	if err != nil {
		return err
	}
	if input.Amount.IsZero() {
		return utils.ValidationError("amount is required")
	}

	return w.runPosting(ctx, businessId, func(txn *apptx.Runner) error {
		account, err := w.stores.GetAccount(ctx, businessId, input.AccountId)
		if err != nil {
			return err
		}
		if err := w.posting.ApplyDelta(txn, account, input.Amount); err != nil {
			return err
		}

		if input.Amount.IsNegative() {
			return w.posting.CreditEntry(txn, businessId, account.ID, account.ID,
				input.Amount.Abs(), models.DetailOpeningBalance,
				"Opening Balance for the Account", 0, userId)
		}
		return w.posting.DebitEntry(txn, businessId, account.ID, account.ID,
			input.Amount, models.DetailOpeningBalance,
			"Opening Balance for the Account", 0, userId)
	})
}

// CloseAccountBalance sums the account's ledger activity since the latest
// opening row, writes a balancing "Closing Balance" row and carries the
// balance into the next period with a fresh "Opening Balance" row.
func (w *Workflows) CloseAccountBalance(ctx context.Context, accountId int) error {
	businessId, userId, err := callerFromContext(ctx)
	if err != nil {
		return err
	}

	return w.runPosting(ctx, businessId, func(txn *apptx.Runner) error {
		account, err := w.stores.GetAccount(ctx, businessId, accountId)
		if err != nil {
			return err
		}

		closing, err := w.posting.BalanceSinceLastOpening(ctx, businessId, account.ID)
		if err != nil {
			return err
		}

		isDebit := closing.IsPositive()
		amount := closing.Abs()
		period := time.Now().Format("January 2006")

		if isDebit {
			if err := w.posting.CreditEntry(txn, businessId, account.ID, account.ID,
				amount, models.DetailClosingBalance, "", 0, userId); err != nil {
				return err
			}
			return w.posting.DebitEntry(txn, businessId, account.ID, account.ID,
				amount, models.DetailOpeningBalance,
				fmt.Sprintf("Opening Balance for %s", period), 0, userId)
		}
		if err := w.posting.DebitEntry(txn, businessId, account.ID, account.ID,
			amount, models.DetailClosingBalance, "", 0, userId); err != nil {
			return err
		}
		return w.posting.CreditEntry(txn, businessId, account.ID, account.ID,
			amount, models.DetailOpeningBalance,
			fmt.Sprintf("Opening Balance for %s", period), 0, userId)
	})
}

// AdjustAccountBalance applies a manual debit/credit correction with its
// audit row.
func (w *Workflows) AdjustAccountBalance(ctx context.Context, input *models.NewAccountBalanceAdjustment) error {
	businessId, userId, err := callerFromContext(ctx)
	if err != nil {
		return err
	}
	if input.Debit.IsNegative() || input.Credit.IsNegative() {
		return utils.ValidationError("debit and credit cannot be negative")
	}

	return w.runPosting(ctx, businessId, func(txn *apptx.Runner) error {
		account, err := w.stores.GetAccount(ctx, businessId, input.AccountId)
		if err != nil {
			return err
		}
		if err := w.posting.ApplyDelta(txn, account, input.Debit.Sub(input.Credit)); err != nil {
			return err
		}
		return w.posting.EnrollEntry(txn, &models.GeneralLedgerEntry{
			BusinessId:         businessId,
			AccountId:          account.ID,
			ReferenceAccountId: account.ID,
			Debit:              input.Debit,
			Credit:             input.Credit,
			Details:            models.DetailBalanceAdjustment,
			Description:        input.Reason,
			CreatedBy:          userId,
		})
	})
}

// PostVendorJournalEntry records cash given to a vendor outside a purchase:
// vendor, cash and payables all go down by the amount, the vendor's merge
// root with them, and the debit lands on the root's ledger.
func (w *Workflows) PostVendorJournalEntry(ctx context.Context, input *models.NewPartyJournalEntry) error {
	businessId, userId, err := callerFromContext(ctx)
	if err != nil {
		return err
	}
	if !input.Amount.IsPositive() {
		return utils.ValidationError("amount is required")
	}

	return w.runPosting(ctx, businessId, func(txn *apptx.Runner) error {
		vendor, err := w.stores.GetAccount(ctx, businessId, input.AccountId)
		if err != nil {
			return err
		}
		if vendor.Kind != models.AccountKindSupplier && vendor.Kind != models.AccountKindCompany {
			return utils.ValidationError("account %d is not a vendor account", vendor.ID)
		}

		cash, err := w.stores.GetAccountByName(ctx, businessId, AccountNameCash)
		if err != nil {
			return err
		}
		payables, err := w.stores.GetAccountByName(ctx, businessId, AccountNamePayables)
		if err != nil {
			return err
		}

		vendorRoot, err := w.posting.ApplyDeltaWithMerge(ctx, txn, vendor, input.Amount.Neg())
		if err != nil {
			return err
		}
		if err := w.posting.ApplyDelta(txn, cash, input.Amount.Neg()); err != nil {
			return err
		}
		if err := w.posting.ApplyDelta(txn, payables, input.Amount.Neg()); err != nil {
			return err
		}

		return w.posting.DebitEntry(txn, businessId, vendorRoot.ID, vendorRoot.ID,
			input.Amount, models.DetailVendorJournalEntry, input.Description, 0, userId)
	})
}

// PostCustomerJournalEntry records cash received from a customer outside a
// bill payment: customer, cash and receivables all go down by the amount
// (the customer owed it, the receivable is settled in cash terms elsewhere),
// with the credit on the customer's merge root.
func (w *Workflows) PostCustomerJournalEntry(ctx context.Context, input *models.NewPartyJournalEntry) error {
	businessId, userId, err := callerFromContext(ctx)
	if err != nil {
		return err
	}
	if !input.Amount.IsPositive() {
		return utils.ValidationError("amount is required")
	}

	return w.runPosting(ctx, businessId, func(txn *apptx.Runner) error {
		customer, err := w.stores.GetAccount(ctx, businessId, input.AccountId)
		if err != nil {
			return err
		}
		if customer.Kind != models.AccountKindCustomer {
			return utils.ValidationError("account %d is not a customer account", customer.ID)
		}

		cash, err := w.stores.GetAccountByName(ctx, businessId, AccountNameCash)
		if err != nil {
			return err
		}
		receivables, err := w.stores.GetAccountByName(ctx, businessId, AccountNameReceivables)
		if err != nil {
			return err
		}

		customerRoot, err := w.posting.ApplyDeltaWithMerge(ctx, txn, customer, input.Amount.Neg())
		if err != nil {
			return err
		}
		if err := w.posting.ApplyDelta(txn, cash, input.Amount.Neg()); err != nil {
			return err
		}
		if err := w.posting.ApplyDelta(txn, receivables, input.Amount.Neg()); err != nil {
			return err
		}

		return w.posting.CreditEntry(txn, businessId, customerRoot.ID, customerRoot.ID,
			input.Amount, models.DetailCustomerJournalEntry, input.Description, 0, userId)
	})
}
