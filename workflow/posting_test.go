package workflow

import (
	"context"
	"testing"

	"github.com/parkodev/backoffice_backend/apptx"
	"github.com/parkodev/backoffice_backend/models"
	"github.com/parkodev/backoffice_backend/utils"
)

func intPtr(v int) *int {
	return &v
}

func TestApplyDeltaWithMergePropagatesToRoot(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	// chain: 1 -> 2 -> 3, root is 3
	store.addAccount(models.IndividualAccount{ID: 1, BusinessId: testBusiness, Name: "U Ba", Balance: d(100), MergedInto: intPtr(2)})
	store.addAccount(models.IndividualAccount{ID: 2, BusinessId: testBusiness, Name: "U Ba (old)", Balance: d(0), MergedInto: intPtr(3)})
	store.addAccount(models.IndividualAccount{ID: 3, BusinessId: testBusiness, Name: "U Ba (root)", Balance: d(500)})

	engine := NewPostingEngine(store, store)

	leaf, err := store.GetAccount(ctx, testBusiness, 1)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}

	var root *models.IndividualAccount
	err = apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		var err error
		root, err = engine.ApplyDeltaWithMerge(ctx, txn, leaf, d(50))
		return err
	})
	if err != nil {
		t.Fatalf("ApplyDeltaWithMerge: %v", err)
	}

	if root.ID != 3 {
		t.Fatalf("root = %d, want 3", root.ID)
	}
	if got := store.accounts[1].Balance; !got.Equal(d(150)) {
		t.Fatalf("leaf balance = %s, want 150", got)
	}
	if got := store.accounts[3].Balance; !got.Equal(d(550)) {
		t.Fatalf("root balance = %s, want 550", got)
	}
	// interior hop untouched; leaf compressed to point at the root
	if got := store.accounts[2].Balance; !got.Equal(d(0)) {
		t.Fatalf("interior balance = %s, want 0", got)
	}
	if got := store.accounts[1].MergedInto; got == nil || *got != 3 {
		t.Fatalf("leaf merged_into = %v, want 3", got)
	}
}

func TestResolveMergeRootDetectsCycle(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addAccount(models.IndividualAccount{ID: 1, BusinessId: testBusiness, Name: "A", MergedInto: intPtr(2)})
	store.addAccount(models.IndividualAccount{ID: 2, BusinessId: testBusiness, Name: "B", MergedInto: intPtr(1)})

	engine := NewPostingEngine(store, store)

	account, err := store.GetAccount(ctx, testBusiness, 1)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}

	err = apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		_, err := engine.ResolveMergeRoot(ctx, txn, account)
		return err
	})
	if utils.KindOf(err) != utils.ErrorKindConflict {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestResolveMergeRootWithoutMergeReturnsAccount(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addAccount(models.IndividualAccount{ID: 1, BusinessId: testBusiness, Name: "A", Balance: d(10)})

	engine := NewPostingEngine(store, store)

	account, err := store.GetAccount(ctx, testBusiness, 1)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}

	err = apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		root, err := engine.ResolveMergeRoot(ctx, txn, account)
		if err != nil {
			return err
		}
		if root.ID != account.ID {
			t.Fatalf("root = %d, want %d", root.ID, account.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ResolveMergeRoot: %v", err)
	}
}

func TestBalanceSinceLastOpeningCountsFromOpeningRow(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addEntry(models.GeneralLedgerEntry{BusinessId: testBusiness, AccountId: 9, Debit: d(100), Details: models.DetailSale})
	store.addEntry(models.GeneralLedgerEntry{BusinessId: testBusiness, AccountId: 9, Credit: d(30), Details: models.DetailBillPayment})
	store.addEntry(models.GeneralLedgerEntry{BusinessId: testBusiness, AccountId: 9, Debit: d(500), Details: models.DetailOpeningBalance})
	store.addEntry(models.GeneralLedgerEntry{BusinessId: testBusiness, AccountId: 9, Debit: d(70), Details: models.DetailSale})

	engine := NewPostingEngine(store, store)

	got, err := engine.BalanceSinceLastOpening(ctx, testBusiness, 9)
	if err != nil {
		t.Fatalf("BalanceSinceLastOpening: %v", err)
	}
	// the opening row itself counts; rows before it do not
	if !got.Equal(d(570)) {
		t.Fatalf("balance = %s, want 570", got)
	}
}

func TestBalanceSinceLastOpeningWholeHistoryWithoutOpening(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addEntry(models.GeneralLedgerEntry{BusinessId: testBusiness, AccountId: 9, Debit: d(100), Details: models.DetailSale})
	store.addEntry(models.GeneralLedgerEntry{BusinessId: testBusiness, AccountId: 9, Credit: d(30), Details: models.DetailBillPayment})

	engine := NewPostingEngine(store, store)

	got, err := engine.BalanceSinceLastOpening(ctx, testBusiness, 9)
	if err != nil {
		t.Fatalf("BalanceSinceLastOpening: %v", err)
	}
	if !got.Equal(d(70)) {
		t.Fatalf("balance = %s, want 70", got)
	}
}

func TestApplyDeltaRollbackRestoresBalance(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addAccount(models.IndividualAccount{ID: 1, BusinessId: testBusiness, Name: "A", Balance: d(100)})

	engine := NewPostingEngine(store, store)

	account, err := store.GetAccount(ctx, testBusiness, 1)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}

	boom := utils.InternalError("write failed", nil)
	err = apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		if err := engine.ApplyDelta(txn, account, d(40)); err != nil {
			return err
		}
		return txn.AddOperation(
			func(ctx context.Context) error { return boom },
			func(ctx context.Context) error { return nil },
		)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := store.accounts[1].Balance; !got.Equal(d(100)) {
		t.Fatalf("balance = %s, want restored 100", got)
	}
}

func TestDebitAndCreditEntriesAreWritten(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	engine := NewPostingEngine(store, store)

	err := apptx.NewRunner().Run(ctx, func(txn *apptx.Runner) error {
		if err := engine.DebitEntry(txn, testBusiness, 9, 9, d(250), models.DetailSale, "Bill 00004", 4, 7); err != nil {
			return err
		}
		return engine.CreditEntry(txn, testBusiness, 9, 9, d(50), models.DetailBillPayment, "Payment for Bill 00004", 4, 7)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	entries, err := store.EntriesForAccount(ctx, testBusiness, 9)
	if err != nil {
		t.Fatalf("EntriesForAccount: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entry count = %d, want 2", len(entries))
	}
	if !entries[0].Debit.Equal(d(250)) || !entries[0].Credit.IsZero() {
		t.Fatalf("first entry = debit %s credit %s, want debit 250", entries[0].Debit, entries[0].Credit)
	}
	if !entries[1].Credit.Equal(d(50)) || !entries[1].Debit.IsZero() {
		t.Fatalf("second entry = debit %s credit %s, want credit 50", entries[1].Debit, entries[1].Credit)
	}
	if entries[0].Details != models.DetailSale || entries[1].Details != models.DetailBillPayment {
		t.Fatalf("details = %s/%s", entries[0].Details, entries[1].Details)
	}
}
