package workflow

import (
	"context"

	"github.com/parkodev/backoffice_backend/apptx"
	"github.com/parkodev/backoffice_backend/models"
	"github.com/parkodev/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

// PostingEngine applies balance deltas to individual accounts and writes the
// matching general-ledger rows. Every save and every row create is enrolled
// in the caller's runner. Deltas aimed at a merged account land on the
// ultimate root of its merge chain.
type PostingEngine struct {
	accounts AccountStore
	ledger   LedgerStore
}

func NewPostingEngine(accounts AccountStore, ledger LedgerStore) *PostingEngine {
	return &PostingEngine{accounts: accounts, ledger: ledger}
}

// ResolveMergeRoot follows MergedInto pointers to the chain's root. A cycle
// is a data fault and reported as a conflict. Interior accounts are
// compressed to point directly at the root (enrolled) so later resolutions
// are single-hop.
func (e *PostingEngine) ResolveMergeRoot(ctx context.Context, txn *apptx.Runner, account *models.IndividualAccount) (*models.IndividualAccount, error) {
	if account.MergedInto == nil {
		return account, nil
	}

	seen := map[int]bool{account.ID: true}
	var path []*models.IndividualAccount

	current := account
	for current.MergedInto != nil {
		next, err := e.accounts.GetAccount(ctx, current.BusinessId, *current.MergedInto)
		if err != nil {
			return nil, err
		}
		if seen[next.ID] {
			return nil, utils.ConflictError("merge chain cycle at account %d", next.ID)
		}
		seen[next.ID] = true
		path = append(path, current)
		current = next
	}

	root := current
	for _, hop := range path {
		if hop.MergedInto != nil && *hop.MergedInto == root.ID {
			continue
		}
		hop := hop
		original := hop.MergedInto
		rootId := root.ID
		hop.MergedInto = &rootId
		if err := txn.AddOperation(
			func(ctx context.Context) error { return e.accounts.SaveAccount(ctx, hop) },
			func(ctx context.Context) error {
				hop.MergedInto = original
				return e.accounts.SaveAccount(ctx, hop)
			},
		); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// ApplyDelta adds delta to the account's balance, enrolled with a restoring
// undo.
func (e *PostingEngine) ApplyDelta(txn *apptx.Runner, account *models.IndividualAccount, delta decimal.Decimal) error {
	original := account.Balance
	account.Balance = account.Balance.Add(delta)
	return txn.AddOperation(
		func(ctx context.Context) error { return e.accounts.SaveAccount(ctx, account) },
		func(ctx context.Context) error {
			account.Balance = original
			return e.accounts.SaveAccount(ctx, account)
		},
	)
}

// ApplyDeltaWithMerge applies delta to the account and, when the account was
// merged away, to its merge root as well. It returns the account the ledger
// rows should reference (the root when one exists).
func (e *PostingEngine) ApplyDeltaWithMerge(ctx context.Context, txn *apptx.Runner, account *models.IndividualAccount, delta decimal.Decimal) (*models.IndividualAccount, error) {
	if err := e.ApplyDelta(txn, account, delta); err != nil {
		return nil, err
	}
	root, err := e.ResolveMergeRoot(ctx, txn, account)
	if err != nil {
		return nil, err
	}
	if root.ID != account.ID {
		if err := e.ApplyDelta(txn, root, delta); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// EnrollEntry enrolls a ledger row create; undo deletes the row again.
func (e *PostingEngine) EnrollEntry(txn *apptx.Runner, entry *models.GeneralLedgerEntry) error {
	return txn.AddOperation(
		func(ctx context.Context) error { return e.ledger.CreateEntry(ctx, entry) },
		func(ctx context.Context) error { return e.ledger.DeleteEntry(ctx, entry.ID) },
	)
}

// DebitEntry builds and enrolls a debit row.
func (e *PostingEngine) DebitEntry(txn *apptx.Runner, businessId string, accountId int, refAccountId int, amount decimal.Decimal, details models.GeneralLedgerDetail, description string, refId int, actor int) error {
	return e.EnrollEntry(txn, &models.GeneralLedgerEntry{
		BusinessId:         businessId,
		AccountId:          accountId,
		ReferenceAccountId: refAccountId,
		Debit:              amount,
		Details:            details,
		Description:        description,
		ReferenceId:        refId,
		CreatedBy:          actor,
	})
}

// CreditEntry builds and enrolls a credit row.
func (e *PostingEngine) CreditEntry(txn *apptx.Runner, businessId string, accountId int, refAccountId int, amount decimal.Decimal, details models.GeneralLedgerDetail, description string, refId int, actor int) error {
	return e.EnrollEntry(txn, &models.GeneralLedgerEntry{
		BusinessId:         businessId,
		AccountId:          accountId,
		ReferenceAccountId: refAccountId,
		Credit:             amount,
		Details:            details,
		Description:        description,
		ReferenceId:        refId,
		CreatedBy:          actor,
	})
}

// BalanceSinceLastOpening sums debit minus credit over the account's rows
// starting at the latest "Opening Balance" row (inclusive, it carries the
// prior period forward); when no opening row exists the whole history counts.
func (e *PostingEngine) BalanceSinceLastOpening(ctx context.Context, businessId string, accountId int) (decimal.Decimal, error) {
	entries, err := e.ledger.EntriesForAccount(ctx, businessId, accountId)
	if err != nil {
		return decimal.Zero, err
	}

	start := 0
	for i, entry := range entries {
		if entry.Details == models.DetailOpeningBalance {
			start = i
		}
	}

	total := decimal.Zero
	for _, entry := range entries[start:] {
		total = total.Add(entry.Debit).Sub(entry.Credit)
	}
	return total, nil
}
