package models

import (
	"errors"
)

type AccountKind string

const (
	AccountKindStandalone AccountKind = "standalone"
	AccountKindCustomer   AccountKind = "customer"
	AccountKindSupplier   AccountKind = "supplier"
	AccountKindCompany    AccountKind = "company"
)

func ParseAccountKind(s string) (AccountKind, error) {
	switch AccountKind(s) {
	case AccountKindStandalone, AccountKindCustomer, AccountKindSupplier, AccountKindCompany:
		return AccountKind(s), nil
	}
	return "", errors.New("invalid account kind")
}

type BillType string

const (
	BillTypeA4      BillType = "A4"
	BillTypeThermal BillType = "thermal"
)

func ParseBillType(s string) (BillType, error) {
	switch BillType(s) {
	case BillTypeA4, BillTypeThermal:
		return BillType(s), nil
	}
	return "", errors.New("invalid bill type")
}

type BillStatus string

const (
	BillStatusUnpaid        BillStatus = "unpaid"
	BillStatusPartiallyPaid BillStatus = "partiallypaid"
	BillStatusPaid          BillStatus = "paid"
)

type ReturnType string

const (
	ReturnTypeDirect      ReturnType = "direct"
	ReturnTypeAgainstBill ReturnType = "againstBill"
)

func ParseReturnType(s string) (ReturnType, error) {
	switch ReturnType(s) {
	case ReturnTypeDirect, ReturnTypeAgainstBill:
		return ReturnType(s), nil
	}
	return "", errors.New("invalid return type")
}

// GeneralLedgerDetail classifies ledger rows; closing-balance windows query
// on it to find their anchoring opening row.
type GeneralLedgerDetail string

const (
	DetailSale                 GeneralLedgerDetail = "Sale"
	DetailPurchase             GeneralLedgerDetail = "Purchase"
	DetailBillPayment          GeneralLedgerDetail = "Bill Payment"
	DetailSaleReturn           GeneralLedgerDetail = "Sale Return"
	DetailPurchaseReturn       GeneralLedgerDetail = "Purchase Return"
	DetailOpeningBalance       GeneralLedgerDetail = "Opening Balance"
	DetailClosingBalance       GeneralLedgerDetail = "Closing Balance"
	DetailBalanceAdjustment    GeneralLedgerDetail = "Balance Adjustment"
	DetailAccountMerge         GeneralLedgerDetail = "Account Merge"
	DetailVendorJournalEntry   GeneralLedgerDetail = "Vendor Journal Entry"
	DetailCustomerJournalEntry GeneralLedgerDetail = "Customer Journal Entry"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)
