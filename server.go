package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/parkodev/backoffice_backend/config"
	"github.com/parkodev/backoffice_backend/middlewares"
	"github.com/parkodev/backoffice_backend/models"
	"github.com/parkodev/backoffice_backend/utils"
	"github.com/parkodev/backoffice_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(utils.HTTPStatus(err), gin.H{"error": err.Error()})
}

// withIdempotency reprocess-guards a posting handler when the caller sends an
// Idempotency-Key header. Replays of a succeeded key short-circuit with 200.
func withIdempotency(handlerName string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		messageId := c.GetHeader("Idempotency-Key")
		if messageId == "" {
			h(c)
			return
		}
		businessId, _ := utils.GetBusinessIdFromContext(c.Request.Context())
		db := config.GetDB()
		skip, err := workflow.BeginIdempotency(db, businessId, handlerName, messageId)
		if err != nil {
			if errors.Is(err, workflow.ErrIdempotencyInProgress) {
				c.JSON(http.StatusConflict, gin.H{"error": "request is already being processed"})
				return
			}
			respondError(c, err)
			return
		}
		if skip {
			c.JSON(http.StatusOK, gin.H{"status": "already processed"})
			return
		}

		h(c)

		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			_ = workflow.MarkIdempotencyFailed(db, businessId, handlerName, messageId, errors.New(http.StatusText(status)))
		} else {
			_ = workflow.MarkIdempotencySucceeded(db, businessId, handlerName, messageId)
		}
	}
}

func registerBillHandler(w *workflow.Workflows) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewBill
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, utils.ValidationError("invalid request body: %v", err))
			return
		}
		bill, err := w.RegisterSale(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, bill)
	}
}

func billPaymentHandler(w *workflow.Workflows) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewBillPayment
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, utils.ValidationError("invalid request body: %v", err))
			return
		}
		bill, err := w.BillPayment(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bill)
	}
}

func billPostingHandler(w *workflow.Workflows) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			BillNo string `json:"bill_no" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, utils.ValidationError("invalid request body: %v", err))
			return
		}
		bill, err := w.MarkBillPosted(c.Request.Context(), input.BillNo)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bill)
	}
}

func billMergeHandler(w *workflow.Workflows) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewBillMerge
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, utils.ValidationError("invalid request body: %v", err))
			return
		}
		parent, err := w.MergeBills(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, parent)
	}
}

func registerPurchaseHandler(w *workflow.Workflows) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPurchase
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, utils.ValidationError("invalid request body: %v", err))
			return
		}
		purchase, err := w.RegisterPurchase(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, purchase)
	}
}

func purchaseReturnHandler(w *workflow.Workflows) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPurchaseReturn
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, utils.ValidationError("invalid request body: %v", err))
			return
		}
		total, err := w.RegisterPurchaseReturn(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"total_return_amount": total})
	}
}

func saleReturnHandler(w *workflow.Workflows) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSaleReturn
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, utils.ValidationError("invalid request body: %v", err))
			return
		}
		saleReturn, err := w.RegisterSaleReturn(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, saleReturn)
	}
}

func accountMergeHandler(w *workflow.Workflows) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewAccountMerge
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, utils.ValidationError("invalid request body: %v", err))
			return
		}
		parent, err := w.MergeAccounts(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, parent)
	}
}

func accountOpenBalanceHandler(w *workflow.Workflows) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewAccountBalanceOpen
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, utils.ValidationError("invalid request body: %v", err))
			return
		}
		if err := w.OpenAccountBalance(c.Request.Context(), &input); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func accountCloseBalanceHandler(w *workflow.Workflows) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			AccountId int `json:"account_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, utils.ValidationError("invalid request body: %v", err))
			return
		}
		if err := w.CloseAccountBalance(c.Request.Context(), input.AccountId); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func accountAdjustHandler(w *workflow.Workflows) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewAccountBalanceAdjustment
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, utils.ValidationError("invalid request body: %v", err))
			return
		}
		if err := w.AdjustAccountBalance(c.Request.Context(), &input); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func vendorEntryHandler(w *workflow.Workflows) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPartyJournalEntry
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, utils.ValidationError("invalid request body: %v", err))
			return
		}
		if err := w.PostVendorJournalEntry(c.Request.Context(), &input); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func customerEntryHandler(w *workflow.Workflows) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPartyJournalEntry
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, utils.ValidationError("invalid request body: %v", err))
			return
		}
		if err := w.PostCustomerJournalEntry(c.Request.Context(), &input); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func costPreviewHandler(w *workflow.Workflows) gin.HandlerFunc {
	return func(c *gin.Context) {
		productId, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			respondError(c, utils.ValidationError("invalid product id"))
			return
		}
		baseUnits, err := decimal.NewFromString(c.Query("base_units"))
		if err != nil {
			respondError(c, utils.ValidationError("invalid base_units"))
			return
		}
		cost, err := w.PreviewProductCost(c.Request.Context(), productId, baseUnits)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product_id": productId, "base_units": baseUnits, "cost": cost})
	}
}

// customErrorLogger logs only requests that recorded errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server before the dependencies are ready so the startup
	// probe passes; app endpoints return 503 until DB and Redis are up.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Deny all when the allowlist is not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "X-Business-Id", "X-User-Id", "X-User-Name", "X-Correlation-Id", "Idempotency-Key")
	corsConfig.AddExposeHeaders("Content-Length", "X-Correlation-Id")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.SessionMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	workflows := workflow.NewWorkflows(workflow.DefaultStores())

	r.POST("/bills", withIdempotency("register_bill", registerBillHandler(workflows)))
	r.POST("/bills/payment", withIdempotency("bill_payment", billPaymentHandler(workflows)))
	r.POST("/bills/posting", billPostingHandler(workflows))
	r.POST("/bills/merge", billMergeHandler(workflows))
	r.POST("/purchases", withIdempotency("register_purchase", registerPurchaseHandler(workflows)))
	r.POST("/purchases/return", withIdempotency("purchase_return", purchaseReturnHandler(workflows)))
	r.POST("/sale-returns", withIdempotency("sale_return", saleReturnHandler(workflows)))
	r.POST("/accounts/merge", accountMergeHandler(workflows))
	r.POST("/accounts/open-balance", accountOpenBalanceHandler(workflows))
	r.POST("/accounts/close-balance", accountCloseBalanceHandler(workflows))
	r.POST("/accounts/adjust", accountAdjustHandler(workflows))
	r.POST("/accounts/vendor-entry", vendorEntryHandler(workflows))
	r.POST("/accounts/customer-entry", customerEntryHandler(workflows))
	r.GET("/products/:id/cost-preview", costPreviewHandler(workflows))

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations as
	// a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Posting reads must not see other sessions' uncommitted writes.
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
