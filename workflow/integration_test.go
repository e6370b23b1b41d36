package workflow_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/parkodev/backoffice_backend/config"
	"github.com/parkodev/backoffice_backend/models"
	"github.com/parkodev/backoffice_backend/utils"
	"github.com/parkodev/backoffice_backend/workflow"
	"github.com/shopspring/decimal"
)

func TestSalePaymentLifecycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "backoffice_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{Name: "Lifecycle Co"})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID)

	supplierId := 1
	vendor, err := models.CreateIndividualAccount(ctx, &models.NewIndividualAccount{
		Name:       "Main Vendor",
		Kind:       models.AccountKindSupplier,
		SupplierId: &supplierId,
	})
	if err != nil {
		t.Fatalf("create vendor account: %v", err)
	}
	customerId := 1
	if _, err := models.CreateIndividualAccount(ctx, &models.NewIndividualAccount{
		Name:       "Daw Mya",
		Kind:       models.AccountKindCustomer,
		CustomerId: &customerId,
	}); err != nil {
		t.Fatalf("create customer account: %v", err)
	}

	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:          "Rice 10kg",
		PackSize:      decimal.NewFromInt(10),
		PurchasePrice: decimal.NewFromInt(100),
		SellingPrice:  decimal.NewFromInt(150),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	stores := workflow.NewStores(config.GetDB())
	workflows := workflow.NewWorkflows(stores)

	// stock in 10 packs at the current price
	if _, err := workflows.RegisterPurchase(ctx, &models.NewPurchase{
		VendorAccountId: vendor.ID,
		Items: []models.NewPurchaseItem{
			{ProductId: product.ID, Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(100)},
		},
		PaidAmount: decimal.NewFromInt(1000),
	}); err != nil {
		t.Fatalf("RegisterPurchase: %v", err)
	}

	stocked, err := stores.GetProduct(ctx, biz.ID, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if !stocked.TotalQuantity.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("total quantity = %s, want 100 base units", stocked.TotalQuantity)
	}

	// sell 4 packs on credit
	bill, err := workflows.RegisterSale(ctx, &models.NewBill{
		CustomerId: &customerId,
		Items: []models.NewBillItem{
			{ProductId: product.ID, Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(150)},
		},
	})
	if err != nil {
		t.Fatalf("RegisterSale: %v", err)
	}
	if bill.BillNo != "00001" {
		t.Fatalf("bill no = %q, want 00001", bill.BillNo)
	}
	if bill.BillStatus != models.BillStatusUnpaid {
		t.Fatalf("status = %s, want unpaid", bill.BillStatus)
	}
	if !bill.TotalPurchaseAmount.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("cost of goods sold = %s, want 400", bill.TotalPurchaseAmount)
	}

	// paying more than the 600 outstanding is rejected
	_, err = workflows.BillPayment(ctx, &models.NewBillPayment{
		BillNo:     bill.BillNo,
		AmountPaid: decimal.NewFromInt(700),
	})
	if utils.KindOf(err) != utils.ErrorKindValidation {
		t.Fatalf("overpayment err = %v, want validation error", err)
	}

	paid, err := workflows.BillPayment(ctx, &models.NewBillPayment{
		BillNo:     bill.BillNo,
		AmountPaid: decimal.NewFromInt(600),
	})
	if err != nil {
		t.Fatalf("BillPayment: %v", err)
	}
	if paid.BillStatus != models.BillStatusPaid {
		t.Fatalf("status = %s, want paid", paid.BillStatus)
	}

	cash, err := stores.GetAccountByName(ctx, biz.ID, workflow.AccountNameCash)
	if err != nil {
		t.Fatalf("cash account: %v", err)
	}
	// -1000 paid on the purchase, +600 collected on the bill
	if !cash.Balance.Equal(decimal.NewFromInt(-400)) {
		t.Fatalf("cash balance = %s, want -400", cash.Balance)
	}
	receivable, err := stores.GetAccountByName(ctx, biz.ID, workflow.AccountNameReceivables)
	if err != nil {
		t.Fatalf("receivables account: %v", err)
	}
	if !receivable.Balance.IsZero() {
		t.Fatalf("receivables balance = %s, want 0", receivable.Balance)
	}
	customer, err := stores.GetCustomerAccount(ctx, biz.ID, customerId)
	if err != nil {
		t.Fatalf("customer account: %v", err)
	}
	if !customer.Balance.IsZero() {
		t.Fatalf("customer balance = %s, want 0", customer.Balance)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("backoffice-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("backoffice-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=backoffice_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
