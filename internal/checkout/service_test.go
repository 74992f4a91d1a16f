package checkout

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wbenromdhane/tijara-backend/internal/cart"
	"github.com/wbenromdhane/tijara-backend/internal/orders"
	"github.com/wbenromdhane/tijara-backend/internal/products"
	"github.com/wbenromdhane/tijara-backend/pkg/db"
	"github.com/wbenromdhane/tijara-backend/pkg/db/models"
	"github.com/wbenromdhane/tijara-backend/pkg/enums"
	pkgerrors "github.com/wbenromdhane/tijara-backend/pkg/errors"
	"github.com/wbenromdhane/tijara-backend/pkg/metrics"
	"github.com/wbenromdhane/tijara-backend/pkg/outbox"
)

func newCheckoutDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.Product{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderSequence{},
		&models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newCheckoutService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	publisher := outbox.NewService(outbox.NewRepository(conn), nil)
	svc, err := NewService(
		db.FromGorm(conn),
		products.NewRepository(conn),
		orders.NewRepository(conn),
		cart.NewRepository(conn),
		publisher,
		metrics.NewSettlementMetrics(nil),
		50,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedCheckoutProduct(t *testing.T, conn *gorm.DB, price string, stock int) models.Product {
	t.Helper()
	product := models.Product{
		ID:          uuid.New(),
		NameAr:      "منتج",
		NameFr:      "produit",
		RetailPrice: decimal.RequireFromString(price),
		StockQty:    stock,
		IsActive:    true,
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func stockOf(t *testing.T, conn *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := conn.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return product.StockQty
}

func TestExecuteSettlesCashOnDeliveryOrder(t *testing.T) {
	t.Parallel()

	conn := newCheckoutDB(t)
	svc := newCheckoutService(t, conn)
	ctx := context.Background()
	userID := uuid.New()

	productA := seedCheckoutProduct(t, conn, "10.000", 2)
	productB := seedCheckoutProduct(t, conn, "4.500", 10)

	result, err := svc.Execute(ctx, CheckoutInput{
		UserID:        &userID,
		Address:       testAddress(),
		PaymentMethod: enums.PaymentMethodCOD,
		Items: []ItemInput{
			{ProductID: productA.ID, Quantity: 2},
			{ProductID: productB.ID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if !orderNumberRe.MatchString(result.OrderNumber) {
		t.Fatalf("bad order number %q", result.OrderNumber)
	}
	if result.Order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending order, got %s", result.Order.Status)
	}
	if result.Order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %s", result.Order.PaymentStatus)
	}
	if len(result.Order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Order.Items))
	}
	if result.Order.Subtotal.StringFixed(3) != "24.500" {
		t.Fatalf("unexpected subtotal %s", result.Order.Subtotal)
	}

	if got := stockOf(t, conn, productA.ID); got != 0 {
		t.Fatalf("expected product A stock 0, got %d", got)
	}
	if got := stockOf(t, conn, productB.ID); got != 9 {
		t.Fatalf("expected product B stock 9, got %d", got)
	}

	var events int64
	if err := conn.Model(&models.OutboxEvent{}).Where("aggregate_id = ?", result.OrderID).Count(&events).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected one outbox event, got %d", events)
	}
}

func TestExecuteRejectsOversellAndRollsBack(t *testing.T) {
	t.Parallel()

	conn := newCheckoutDB(t)
	svc := newCheckoutService(t, conn)
	ctx := context.Background()
	userID := uuid.New()

	scarce := seedCheckoutProduct(t, conn, "10.000", 2)
	plenty := seedCheckoutProduct(t, conn, "1.000", 10)

	_, err := svc.Execute(ctx, CheckoutInput{
		UserID:        &userID,
		Address:       testAddress(),
		PaymentMethod: enums.PaymentMethodCOD,
		Items: []ItemInput{
			{ProductID: plenty.ID, Quantity: 1},
			{ProductID: scarce.ID, Quantity: 3},
		},
	})
	if !pkgerrors.IsStockConflict(err) {
		t.Fatalf("expected stock conflict, got %v", err)
	}

	if got := stockOf(t, conn, scarce.ID); got != 2 {
		t.Fatalf("stock must be untouched after rollback, got %d", got)
	}
	if got := stockOf(t, conn, plenty.ID); got != 10 {
		t.Fatalf("other stock must be untouched after rollback, got %d", got)
	}

	var headers int64
	if err := conn.Model(&models.Order{}).Count(&headers).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if headers != 0 {
		t.Fatalf("no order row may survive a rollback, found %d", headers)
	}
	var items int64
	if err := conn.Model(&models.OrderItem{}).Count(&items).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if items != 0 {
		t.Fatalf("no item rows may survive a rollback, found %d", items)
	}
}

func TestExecuteConcurrentSettlementsLastUnit(t *testing.T) {
	t.Parallel()

	conn := newCheckoutDB(t)
	svc := newCheckoutService(t, conn)
	userID := uuid.New()
	scarce := seedCheckoutProduct(t, conn, "10.000", 1)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Execute(context.Background(), CheckoutInput{
				UserID:        &userID,
				Address:       testAddress(),
				PaymentMethod: enums.PaymentMethodCOD,
				Items:         []ItemInput{{ProductID: scarce.ID, Quantity: 1}},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	// however the race lands, the single unit settles at most one order
	var successes int
	for err := range errs {
		if err == nil {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one settlement to win, got %d", successes)
	}
	if got := stockOf(t, conn, scarce.ID); got != 0 {
		t.Fatalf("expected stock 0 after the race, got %d", got)
	}

	var headers int64
	if err := conn.Model(&models.Order{}).Count(&headers).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if headers != 1 {
		t.Fatalf("expected exactly one order row, got %d", headers)
	}
	var items int64
	if err := conn.Model(&models.OrderItem{}).Count(&items).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if items != 1 {
		t.Fatalf("expected exactly one item row, got %d", items)
	}
}

func TestExecuteAssignsIncreasingOrderNumbers(t *testing.T) {
	t.Parallel()

	conn := newCheckoutDB(t)
	svc := newCheckoutService(t, conn)
	ctx := context.Background()
	userID := uuid.New()
	product := seedCheckoutProduct(t, conn, "2.000", 10)

	first, err := svc.Execute(ctx, CheckoutInput{
		UserID:        &userID,
		Address:       testAddress(),
		PaymentMethod: enums.PaymentMethodCOD,
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("first execute: %v", err)
	}
	second, err := svc.Execute(ctx, CheckoutInput{
		UserID:        &userID,
		Address:       testAddress(),
		PaymentMethod: enums.PaymentMethodCOD,
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("second execute: %v", err)
	}

	if first.OrderNumber == second.OrderNumber {
		t.Fatalf("order numbers must be unique, both %q", first.OrderNumber)
	}
	if second.OrderNumber < first.OrderNumber {
		t.Fatalf("sequences must increase: %q then %q", first.OrderNumber, second.OrderNumber)
	}
}

func TestExecuteClearsCartWhenRequested(t *testing.T) {
	t.Parallel()

	conn := newCheckoutDB(t)
	svc := newCheckoutService(t, conn)
	ctx := context.Background()
	userID := uuid.New()
	product := seedCheckoutProduct(t, conn, "2.000", 10)

	cartRepo := cart.NewRepository(conn)
	record, err := cartRepo.FindOrCreateByUser(ctx, userID)
	if err != nil {
		t.Fatalf("create cart: %v", err)
	}
	if err := cartRepo.UpsertItem(ctx, &models.CartItem{CartID: record.ID, ProductID: product.ID, Quantity: 1}); err != nil {
		t.Fatalf("seed cart item: %v", err)
	}

	_, err = svc.Execute(ctx, CheckoutInput{
		UserID:        &userID,
		Address:       testAddress(),
		PaymentMethod: enums.PaymentMethodCOD,
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 1}},
		ClearCart:     true,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	items, err := cartRepo.ListItems(ctx, record.ID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected cart cleared, found %d items", len(items))
	}
}

func TestExecuteUnknownProduct(t *testing.T) {
	t.Parallel()

	conn := newCheckoutDB(t)
	svc := newCheckoutService(t, conn)
	userID := uuid.New()

	_, err := svc.Execute(context.Background(), CheckoutInput{
		UserID:        &userID,
		Address:       testAddress(),
		PaymentMethod: enums.PaymentMethodCOD,
		Items:         []ItemInput{{ProductID: uuid.New(), Quantity: 1}},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExecuteRejectsDuplicateLines(t *testing.T) {
	t.Parallel()

	conn := newCheckoutDB(t)
	svc := newCheckoutService(t, conn)
	userID := uuid.New()
	product := seedCheckoutProduct(t, conn, "2.000", 10)

	_, err := svc.Execute(context.Background(), CheckoutInput{
		UserID:        &userID,
		Address:       testAddress(),
		PaymentMethod: enums.PaymentMethodCOD,
		Items: []ItemInput{
			{ProductID: product.ID, Quantity: 1},
			{ProductID: product.ID, Quantity: 2},
		},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
