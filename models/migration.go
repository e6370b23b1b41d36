package models

import (
	"log"

	"github.com/parkodev/backoffice_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{},
		&Product{}, &PriceStatus{},
		&IndividualAccount{}, &GeneralLedgerEntry{},
		&Bill{}, &BillItem{}, &BillExtraItem{},
		&Purchase{}, &PurchaseItem{},
		&SaleReturn{}, &SaleReturnItem{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
