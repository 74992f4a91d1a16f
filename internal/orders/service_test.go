package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wbenromdhane/tijara-backend/internal/products"
	"github.com/wbenromdhane/tijara-backend/pkg/db"
	"github.com/wbenromdhane/tijara-backend/pkg/db/models"
	"github.com/wbenromdhane/tijara-backend/pkg/enums"
	pkgerrors "github.com/wbenromdhane/tijara-backend/pkg/errors"
	"github.com/wbenromdhane/tijara-backend/pkg/outbox"
)

func newOrdersDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
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

func newOrdersService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	publisher := outbox.NewService(outbox.NewRepository(conn), nil)
	svc, err := NewService(NewRepository(conn), products.NewRepository(conn), db.FromGorm(conn), publisher)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, conn *gorm.DB, stock int) models.Product {
	t.Helper()
	product := models.Product{
		ID:          uuid.New(),
		NameAr:      "منتج",
		NameFr:      "produit",
		RetailPrice: decimal.RequireFromString("10.000"),
		StockQty:    stock,
		IsActive:    true,
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func seedOrder(t *testing.T, conn *gorm.DB, userID uuid.UUID, status enums.OrderStatus, payment enums.PaymentStatus, items ...models.OrderItem) models.Order {
	t.Helper()
	order := models.Order{
		ID:            uuid.New(),
		UserID:        &userID,
		OrderNumber:   "ORD-20260830-" + uuid.NewString()[:4],
		Status:        status,
		PaymentMethod: enums.PaymentMethodOnline,
		PaymentStatus: payment,
		Subtotal:      decimal.RequireFromString("20.000"),
		Shipping:      decimal.RequireFromString("7.000"),
		Fee:           decimal.Zero,
		Discount:      decimal.Zero,
		Total:         decimal.RequireFromString("27.000"),
	}
	if err := conn.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	for i := range items {
		items[i].ID = uuid.New()
		items[i].OrderID = order.ID
		if err := conn.Create(&items[i]).Error; err != nil {
			t.Fatalf("seed order item: %v", err)
		}
	}
	return order
}

func orderStock(t *testing.T, conn *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := conn.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return product.StockQty
}

func auditRows(t *testing.T, conn *gorm.DB, orderID uuid.UUID) int64 {
	t.Helper()
	var count int64
	err := conn.Model(&models.PaymentVerification{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count verifications: %v", err)
	}
	return count
}

func TestCancelRestoresStock(t *testing.T) {
	t.Parallel()

	conn := newOrdersDB(t)
	svc := newOrdersService(t, conn)
	ctx := context.Background()
	userID := uuid.New()

	// stock reflects the settled order having already taken 2 units
	product := seedProduct(t, conn, 3)
	order := seedOrder(t, conn, userID, enums.OrderStatusPending, enums.PaymentStatusPending, models.OrderItem{
		ProductID: product.ID,
		Quantity:  2,
		UnitPrice: decimal.RequireFromString("10.000"),
		LineTotal: decimal.RequireFromString("20.000"),
	})

	cancelled, err := svc.Cancel(ctx, order.ID, userID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if got := orderStock(t, conn, product.ID); got != 5 {
		t.Fatalf("expected stock restored to 5, got %d", got)
	}

	var events int64
	if err := conn.Model(&models.OutboxEvent{}).Where("aggregate_id = ?", order.ID).Count(&events).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected one outbox event, got %d", events)
	}
}

func TestCancelRejectsShippedOrder(t *testing.T) {
	t.Parallel()

	conn := newOrdersDB(t)
	svc := newOrdersService(t, conn)
	userID := uuid.New()

	product := seedProduct(t, conn, 3)
	order := seedOrder(t, conn, userID, enums.OrderStatusShipped, enums.PaymentStatusPending, models.OrderItem{
		ProductID: product.ID,
		Quantity:  2,
		UnitPrice: decimal.RequireFromString("10.000"),
		LineTotal: decimal.RequireFromString("20.000"),
	})

	_, err := svc.Cancel(context.Background(), order.ID, userID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if got := orderStock(t, conn, product.ID); got != 3 {
		t.Fatalf("rejected cancel must not touch stock, got %d", got)
	}
}

func TestCancelRejectsForeignOrder(t *testing.T) {
	t.Parallel()

	conn := newOrdersDB(t)
	svc := newOrdersService(t, conn)

	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusPending, enums.PaymentStatusPending)

	_, err := svc.Cancel(context.Background(), order.ID, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("foreign orders must come back not found, got %v", err)
	}
}

func TestApplyVerificationApprovesOnce(t *testing.T) {
	t.Parallel()

	conn := newOrdersDB(t)
	svc := newOrdersService(t, conn)
	ctx := context.Background()

	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusPending, enums.PaymentStatusPending)
	ref := "pay_123"
	input := VerificationInput{
		OrderID:          order.ID,
		Action:           enums.VerificationActionApprove,
		Actor:            enums.VerificationActorSystem,
		GatewayPaymentID: &ref,
		VerifiedAmount:   decimal.RequireFromString("27.000"),
	}

	first, err := svc.ApplyVerification(ctx, input)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !first.Applied {
		t.Fatalf("first verification must apply")
	}
	if first.Order.Status != enums.OrderStatusProcessing || first.Order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected processing/paid, got %s/%s", first.Order.Status, first.Order.PaymentStatus)
	}
	if first.Order.PaidAt == nil {
		t.Fatalf("expected paid timestamp")
	}
	if got := auditRows(t, conn, order.ID); got != 1 {
		t.Fatalf("expected one audit row, got %d", got)
	}

	second, err := svc.ApplyVerification(ctx, input)
	if err != nil {
		t.Fatalf("replayed verify: %v", err)
	}
	if second.Applied {
		t.Fatalf("replayed verification must not apply again")
	}
	if got := auditRows(t, conn, order.ID); got != 1 {
		t.Fatalf("replay must not add audit rows, got %d", got)
	}
}

func TestApplyVerificationReject(t *testing.T) {
	t.Parallel()

	conn := newOrdersDB(t)
	svc := newOrdersService(t, conn)
	adminID := uuid.New()

	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusPending, enums.PaymentStatusPending)

	result, err := svc.ApplyVerification(context.Background(), VerificationInput{
		OrderID:        order.ID,
		Action:         enums.VerificationActionReject,
		Actor:          enums.VerificationActorAdmin,
		ActorID:        &adminID,
		VerifiedAmount: decimal.Zero,
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if result.Order.Status != enums.OrderStatusPending {
		t.Fatalf("rejection must leave the order pending, got %s", result.Order.Status)
	}
	if result.Order.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("expected failed payment, got %s", result.Order.PaymentStatus)
	}
	if result.Order.PaidAt != nil {
		t.Fatalf("rejection must not stamp paid time")
	}
	if got := auditRows(t, conn, order.ID); got != 1 {
		t.Fatalf("expected one audit row, got %d", got)
	}
}

func TestApplyVerificationRequiresAdminID(t *testing.T) {
	t.Parallel()

	conn := newOrdersDB(t)
	svc := newOrdersService(t, conn)
	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusPending, enums.PaymentStatusPending)

	_, err := svc.ApplyVerification(context.Background(), VerificationInput{
		OrderID:        order.ID,
		Action:         enums.VerificationActionApprove,
		Actor:          enums.VerificationActorAdmin,
		VerifiedAmount: decimal.Zero,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("admin verification without id must fail validation, got %v", err)
	}
}

func TestFulfillAdvancesOrder(t *testing.T) {
	t.Parallel()

	conn := newOrdersDB(t)
	svc := newOrdersService(t, conn)
	ctx := context.Background()

	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusPending, enums.PaymentStatusPending)

	processed, err := svc.Fulfill(ctx, order.ID, EventProcess)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if processed.Status != enums.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", processed.Status)
	}

	shipped, err := svc.Fulfill(ctx, order.ID, EventShip)
	if err != nil {
		t.Fatalf("ship: %v", err)
	}
	if shipped.Status != enums.OrderStatusShipped {
		t.Fatalf("expected shipped, got %s", shipped.Status)
	}

	delivered, err := svc.Fulfill(ctx, order.ID, EventDeliver)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if delivered.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", delivered.Status)
	}

	// no skipping ahead or moving back
	if _, err := svc.Fulfill(ctx, order.ID, EventProcess); err == nil {
		t.Fatalf("delivered order must not move backward")
	}
}

func TestFulfillRejectsUnknownEvent(t *testing.T) {
	t.Parallel()

	conn := newOrdersDB(t)
	svc := newOrdersService(t, conn)
	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusPending, enums.PaymentStatusPending)

	_, err := svc.Fulfill(context.Background(), order.ID, EventCancel)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("cancel is not a fulfillment event, got %v", err)
	}
}

func TestRefundDeliveredPaidOrder(t *testing.T) {
	t.Parallel()

	conn := newOrdersDB(t)
	svc := newOrdersService(t, conn)

	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusDelivered, enums.PaymentStatusPaid)

	refunded, err := svc.Refund(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunded.Status != enums.OrderStatusRefunded || refunded.PaymentStatus != enums.PaymentStatusRefunded {
		t.Fatalf("expected refunded/refunded, got %s/%s", refunded.Status, refunded.PaymentStatus)
	}
}

func TestGetForUserScopesOwnership(t *testing.T) {
	t.Parallel()

	conn := newOrdersDB(t)
	svc := newOrdersService(t, conn)
	ctx := context.Background()
	userID := uuid.New()

	order := seedOrder(t, conn, userID, enums.OrderStatusPending, enums.PaymentStatusPending)

	found, err := svc.GetForUser(ctx, order.ID, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found.ID != order.ID {
		t.Fatalf("wrong order returned")
	}

	if _, err := svc.GetForUser(ctx, order.ID, uuid.New()); err == nil {
		t.Fatalf("other users must not see the order")
	}
}
