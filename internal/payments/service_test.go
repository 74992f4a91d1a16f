package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wbenromdhane/tijara-backend/internal/orders"
	"github.com/wbenromdhane/tijara-backend/internal/products"
	"github.com/wbenromdhane/tijara-backend/pkg/db"
	"github.com/wbenromdhane/tijara-backend/pkg/db/models"
	"github.com/wbenromdhane/tijara-backend/pkg/enums"
	pkgerrors "github.com/wbenromdhane/tijara-backend/pkg/errors"
	"github.com/wbenromdhane/tijara-backend/pkg/konnect"
	"github.com/wbenromdhane/tijara-backend/pkg/outbox"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newPaymentsDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.PaymentVerification{},
		&models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newPaymentsService(t *testing.T, conn *gorm.DB, transport roundTripFunc) Service {
	t.Helper()
	gateway, err := konnect.NewClient("test-key", "wallet-1",
		konnect.WithHTTPClient(&http.Client{Transport: transport}))
	if err != nil {
		t.Fatalf("new gateway client: %v", err)
	}
	ordersRepo := orders.NewRepository(conn)
	publisher := outbox.NewService(outbox.NewRepository(conn), nil)
	ordersSvc, err := orders.NewService(ordersRepo, products.NewRepository(conn), db.FromGorm(conn), publisher)
	if err != nil {
		t.Fatalf("new orders service: %v", err)
	}
	svc, err := NewService(gateway, ordersRepo, ordersSvc, nil, "https://api.tijara.tn/webhooks/konnect")
	if err != nil {
		t.Fatalf("new payments service: %v", err)
	}
	return svc
}

func seedOnlineOrder(t *testing.T, conn *gorm.DB, total string, paymentRef *string) models.Order {
	t.Helper()
	userID := uuid.New()
	order := models.Order{
		ID:            uuid.New(),
		UserID:        &userID,
		OrderNumber:   "ORD-20260830-" + uuid.NewString()[:4],
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodOnline,
		PaymentStatus: enums.PaymentStatusPending,
		Subtotal:      decimal.RequireFromString(total),
		Shipping:      decimal.Zero,
		Fee:           decimal.Zero,
		Discount:      decimal.Zero,
		Total:         decimal.RequireFromString(total),
		PaymentRef:    paymentRef,
	}
	if err := conn.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func TestInitiateStoresPaymentRef(t *testing.T) {
	t.Parallel()

	conn := newPaymentsDB(t)
	order := seedOnlineOrder(t, conn, "61.500", nil)

	var captured konnect.InitPaymentRequest
	svc := newPaymentsService(t, conn, func(req *http.Request) (*http.Response, error) {
		if !strings.HasSuffix(req.URL.Path, "/payments/init-payment") {
			return nil, fmt.Errorf("unexpected path %s", req.URL.Path)
		}
		if err := json.NewDecoder(req.Body).Decode(&captured); err != nil {
			return nil, err
		}
		return jsonResponse(http.StatusOK, `{"paymentRef":"pay_abc","payUrl":"https://gateway.konnect.network/pay?ref=pay_abc"}`), nil
	})

	result, err := svc.Initiate(context.Background(), InitiateInput{
		OrderID: order.ID,
		UserID:  order.UserID,
		Email:   "client@example.tn",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if captured.Amount != 61500 {
		t.Fatalf("expected 61500 millimes on the wire, got %d", captured.Amount)
	}
	if captured.OrderID != order.OrderNumber {
		t.Fatalf("expected order number as gateway correlation, got %q", captured.OrderID)
	}
	if result.PayURL == "" || result.PaymentRef != "pay_abc" {
		t.Fatalf("unexpected result %+v", result)
	}

	var reloaded models.Order
	if err := conn.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.PaymentRef == nil || *reloaded.PaymentRef != "pay_abc" {
		t.Fatalf("payment ref must be persisted on the order")
	}
}

func TestInitiateRejectsCashOnDelivery(t *testing.T) {
	t.Parallel()

	conn := newPaymentsDB(t)
	order := seedOnlineOrder(t, conn, "10.000", nil)
	if err := conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("payment_method", enums.PaymentMethodCOD).Error; err != nil {
		t.Fatalf("update method: %v", err)
	}

	svc := newPaymentsService(t, conn, func(req *http.Request) (*http.Response, error) {
		t.Fatal("gateway must not be called")
		return nil, nil
	})

	_, err := svc.Initiate(context.Background(), InitiateInput{OrderID: order.ID})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInitiateRejectsPaidOrder(t *testing.T) {
	t.Parallel()

	conn := newPaymentsDB(t)
	order := seedOnlineOrder(t, conn, "10.000", nil)
	if err := conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("payment_status", enums.PaymentStatusPaid).Error; err != nil {
		t.Fatalf("update status: %v", err)
	}

	svc := newPaymentsService(t, conn, func(req *http.Request) (*http.Response, error) {
		t.Fatal("gateway must not be called")
		return nil, nil
	})

	_, err := svc.Initiate(context.Background(), InitiateInput{OrderID: order.ID})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestVerifyCompletedMarksPaid(t *testing.T) {
	t.Parallel()

	conn := newPaymentsDB(t)
	ref := "pay_done"
	order := seedOnlineOrder(t, conn, "27.000", &ref)

	svc := newPaymentsService(t, conn, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"payment":{"id":"pay_done","status":"completed","amount":27000,"reachedAmount":27000,"token":"TND"}}`), nil
	})

	result, err := svc.Verify(context.Background(), ref)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Paid {
		t.Fatalf("expected paid result")
	}
	if result.Order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected paid payment, got %s", result.Order.PaymentStatus)
	}
	if result.Order.Status != enums.OrderStatusProcessing {
		t.Fatalf("expected processing order, got %s", result.Order.Status)
	}

	var audit models.PaymentVerification
	if err := conn.First(&audit, "order_id = ?", order.ID).Error; err != nil {
		t.Fatalf("load audit row: %v", err)
	}
	if audit.Actor != enums.VerificationActorSystem || audit.ActorID != nil {
		t.Fatalf("gateway verifications carry the system actor with no id")
	}
	if audit.VerifiedAmount.StringFixed(3) != "27.000" {
		t.Fatalf("unexpected verified amount %s", audit.VerifiedAmount)
	}
}

func TestVerifyIsIdempotent(t *testing.T) {
	t.Parallel()

	conn := newPaymentsDB(t)
	ref := "pay_twice"
	order := seedOnlineOrder(t, conn, "27.000", &ref)

	var gatewayCalls int
	svc := newPaymentsService(t, conn, func(req *http.Request) (*http.Response, error) {
		gatewayCalls++
		return jsonResponse(http.StatusOK, `{"payment":{"id":"pay_twice","status":"completed","amount":27000,"reachedAmount":27000,"token":"TND"}}`), nil
	})

	if _, err := svc.Verify(context.Background(), ref); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	second, err := svc.Verify(context.Background(), ref)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if !second.Paid {
		t.Fatalf("replay must still report paid")
	}
	if gatewayCalls != 1 {
		t.Fatalf("already-paid orders must not hit the gateway again, got %d calls", gatewayCalls)
	}

	var auditCount int64
	if err := conn.Model(&models.PaymentVerification{}).Where("order_id = ?", order.ID).Count(&auditCount).Error; err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	if auditCount != 1 {
		t.Fatalf("expected one audit row, got %d", auditCount)
	}
}

func TestVerifyConcurrentCallsWriteOneAuditRow(t *testing.T) {
	t.Parallel()

	conn := newPaymentsDB(t)
	ref := "pay_race"
	order := seedOnlineOrder(t, conn, "27.000", &ref)

	svc := newPaymentsService(t, conn, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"payment":{"id":"pay_race","status":"completed","amount":27000,"reachedAmount":27000,"token":"TND"}}`), nil
	})

	type outcome struct {
		result *VerifyResult
		err    error
	}
	outcomes := make(chan outcome, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Verify(context.Background(), ref)
			outcomes <- outcome{result: res, err: err}
		}()
	}
	wg.Wait()
	close(outcomes)

	// the loser may see the winner's commit or lose the write lock, but at
	// least one call must land the payment
	var paid int
	for o := range outcomes {
		if o.err == nil && o.result.Paid {
			paid++
		}
	}
	if paid < 1 {
		t.Fatal("expected at least one verification to report paid")
	}

	var reloaded models.Order
	if err := conn.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected paid payment, got %s", reloaded.PaymentStatus)
	}
	if reloaded.Status != enums.OrderStatusProcessing {
		t.Fatalf("expected processing order, got %s", reloaded.Status)
	}

	var auditCount int64
	if err := conn.Model(&models.PaymentVerification{}).Where("order_id = ?", order.ID).Count(&auditCount).Error; err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	if auditCount != 1 {
		t.Fatalf("racing verifications must record the payment once, got %d audit rows", auditCount)
	}
}

func TestVerifyPendingLeavesOrderUntouched(t *testing.T) {
	t.Parallel()

	conn := newPaymentsDB(t)
	ref := "pay_waiting"
	order := seedOnlineOrder(t, conn, "27.000", &ref)

	svc := newPaymentsService(t, conn, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"payment":{"id":"pay_waiting","status":"pending","amount":27000,"reachedAmount":0,"token":"TND"}}`), nil
	})

	result, err := svc.Verify(context.Background(), ref)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Paid {
		t.Fatalf("pending gateway payment must not mark the order paid")
	}
	if result.GatewayStatus != konnect.StatusPending {
		t.Fatalf("unexpected gateway status %q", result.GatewayStatus)
	}

	var reloaded models.Order
	if err := conn.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusPending || reloaded.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("order must stay pending/pending, got %s/%s", reloaded.Status, reloaded.PaymentStatus)
	}

	var auditCount int64
	if err := conn.Model(&models.PaymentVerification{}).Where("order_id = ?", order.ID).Count(&auditCount).Error; err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	if auditCount != 0 {
		t.Fatalf("pending verifications write no audit rows, got %d", auditCount)
	}
}

func TestVerifyTransportErrorIsRetryable(t *testing.T) {
	t.Parallel()

	conn := newPaymentsDB(t)
	ref := "pay_flaky"
	seedOnlineOrder(t, conn, "27.000", &ref)

	svc := newPaymentsService(t, conn, func(req *http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("connection reset")
	})

	_, err := svc.Verify(context.Background(), ref)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("transport failures must surface as dependency errors, got %v", err)
	}
}

func TestVerifyUnknownReference(t *testing.T) {
	t.Parallel()

	conn := newPaymentsDB(t)
	svc := newPaymentsService(t, conn, func(req *http.Request) (*http.Response, error) {
		t.Fatal("gateway must not be called")
		return nil, nil
	})

	_, err := svc.Verify(context.Background(), "pay_missing")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
