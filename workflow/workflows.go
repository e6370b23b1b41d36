package workflow

import (
	"context"

	"github.com/bsm/redislock"
	"github.com/parkodev/backoffice_backend/apptx"
	"github.com/parkodev/backoffice_backend/config"
	"github.com/parkodev/backoffice_backend/models"
	"github.com/parkodev/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

// Workflows bundles the posting operations. Every workflow follows the same
// shape: acquire the per-business posting lock, collect all writes into one
// runner, execute. Nothing is written outside the runner.
type Workflows struct {
	stores    *Stores
	valuation *ValuationEngine
	posting   *PostingEngine
}

func NewWorkflows(stores *Stores) *Workflows {
	return &Workflows{
		stores:    stores,
		valuation: NewValuationEngine(stores, stores),
		posting:   NewPostingEngine(stores, stores),
	}
}

func (w *Workflows) runPosting(ctx context.Context, businessId string, body func(txn *apptx.Runner) error) error {
	db := w.stores.DB()
	if err := AcquireBusinessPostingLock(db, businessId); err != nil {
		return utils.InternalError("cannot acquire posting lock", err)
	}
	defer ReleaseBusinessPostingLock(db, businessId)

	runner := apptx.NewRunner()
	return runner.Run(ctx, func(r *apptx.Runner) error {
		return body(r)
	})
}

// lockProducts obtains the per-product FIFO locks for every distinct product
// id. Released by the returned func whether posting succeeded or not.
func (w *Workflows) lockProducts(ctx context.Context, businessId string, productIds []int) (func(), error) {
	if config.GetRedisLock() == nil {
		return func() {}, nil
	}
	var locks []*redislock.Lock
	release := func() {
		for _, l := range locks {
			_ = l.Release(context.Background())
		}
	}
	for _, id := range utils.MergeIntSlices(productIds, nil) {
		lock, err := AcquireProductLock(ctx, businessId, id)
		if err != nil {
			release()
			return nil, utils.InternalError("cannot acquire product lock", err)
		}
		locks = append(locks, lock)
	}
	return release, nil
}

// PreviewProductCost reports what a sale of the given base units would cost
// under the current layer state without consuming anything.
func (w *Workflows) PreviewProductCost(ctx context.Context, productId int, baseUnits decimal.Decimal) (decimal.Decimal, error) {
	if baseUnits.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, utils.ValidationError("quantity must be positive")
	}
	product, err := models.GetProduct(ctx, productId)
	if err != nil {
		return decimal.Zero, err
	}
	return w.valuation.PreviewCost(ctx, product, baseUnits)
}

func callerFromContext(ctx context.Context) (businessId string, userId int, err error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return "", 0, utils.AuthorizationError("business id is required")
	}
	userId, _ = utils.GetUserIdFromContext(ctx)
	return businessId, userId, nil
}
