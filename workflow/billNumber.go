package workflow

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/parkodev/backoffice_backend/config"
	"github.com/parkodev/backoffice_backend/models"
	"github.com/parkodev/backoffice_backend/utils"
	"gorm.io/gorm"
)

var billSeqPattern = regexp.MustCompile(`\d+$`)

// NextBillNo issues the next per-type bill number for a business: "00001"
// for A4, "TH00001" for thermal. The redis counter is the fast path; on a
// cold counter it is seeded from the newest bill of that type in the DB.
func NextBillNo(ctx context.Context, db *gorm.DB, businessId string, billType models.BillType) (string, error) {
	key := fmt.Sprintf("billno:%s:%s", businessId, billType)

	seq, err := config.GetRedisCounter(ctx, key)
	if err != nil || seq <= 1 {
		dbSeq, dbErr := nextSequenceFromDB(ctx, db, businessId, billType)
		if dbErr != nil {
			return "", dbErr
		}
		if dbSeq > seq {
			seq = dbSeq
			// seed the counter so the next issue increments past this one
			config.SetRedisObject(key, seq, 0)
		}
	}
	return FormatBillNo(billType, seq)
}

func nextSequenceFromDB(ctx context.Context, db *gorm.DB, businessId string, billType models.BillType) (int64, error) {
	var last models.Bill
	err := db.WithContext(ctx).
		Select("bill_no").
		Where("business_id = ? AND bill_type = ?", businessId, billType).
		Order("created_at desc, id desc").
		First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	match := billSeqPattern.FindString(last.BillNo)
	if match == "" {
		return 1, nil
	}
	lastSeq, err := strconv.ParseInt(match, 10, 64)
	if err != nil {
		return 1, nil
	}
	return lastSeq + 1, nil
}

func FormatBillNo(billType models.BillType, seq int64) (string, error) {
	switch billType {
	case models.BillTypeA4:
		return fmt.Sprintf("%05d", seq), nil
	case models.BillTypeThermal:
		return fmt.Sprintf("TH%05d", seq), nil
	}
	return "", utils.ValidationError("invalid bill type %q", billType)
}
