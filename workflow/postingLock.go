package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/parkodev/backoffice_backend/config"
	"gorm.io/gorm"
)

// AcquireBusinessPostingLock serializes posting per business across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same *gorm.DB that will do the posting writes.
func AcquireBusinessPostingLock(tx *gorm.DB, businessId string) error {
	lockName := fmt.Sprintf("posting:%s", businessId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for business_id=%s", businessId)
	}
	return nil
}

func ReleaseBusinessPostingLock(tx *gorm.DB, businessId string) {
	lockName := fmt.Sprintf("posting:%s", businessId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}

// AcquireProductLock serializes FIFO layer mutation per product across
// instances. Concurrent allocations against the same product would read the
// same remaining quantities and double-spend them; the per-business posting
// lock already covers workflows on one business, this guards direct callers.
func AcquireProductLock(ctx context.Context, businessId string, productId int) (*redislock.Lock, error) {
	locker := config.GetRedisLock()
	key := fmt.Sprintf("fifo:%s:%d", businessId, productId)
	return locker.Obtain(ctx, key, 30*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	})
}
