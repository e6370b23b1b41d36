package utils

import (
	"context"

	"github.com/parkodev/backoffice_backend/config"
)

/* DB fetching */

// FetchModel fetches a tenant-scoped model from db.
// (ctx's business_id is used in query's WHERE, may return ErrorRecordNotFound)
func FetchModel[T any](ctx context.Context, businessId string, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// ValidateResourceId checks that a tenant-scoped row with the id exists.
func ValidateResourceId[T any](ctx context.Context, businessId string, id int) error {
	if id == 0 {
		return nil
	}
	db := config.GetDB()
	var count int64
	var v T
	if err := db.WithContext(ctx).Model(&v).
		Where("business_id = ? AND id = ?", businessId, id).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// ValidateUnique checks no other row has the same value for field.
// (id = 0 for create, otherwise the row being updated is excluded)
func ValidateUnique[T any](ctx context.Context, businessId string, field string, value any, id int) error {
	db := config.GetDB()
	var count int64
	var v T
	dbCtx := db.WithContext(ctx).Model(&v).
		Where("business_id = ? AND "+field+" = ?", businessId, value)
	if id > 0 {
		dbCtx = dbCtx.Where("id <> ?", id)
	}
	if err := dbCtx.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ConflictError("%s already in use", field)
	}
	return nil
}
