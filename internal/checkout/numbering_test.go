package checkout

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wbenromdhane/tijara-backend/pkg/db/models"
)

var orderNumberRe = regexp.MustCompile(`^ORD-\d{8}-\d{4}$`)

func newNumberingDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:numbering_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.OrderSequence{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestNextOrderNumberFormatAndSequence(t *testing.T) {
	t.Parallel()

	conn := newNumberingDB(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)

	first, err := NextOrderNumber(ctx, conn, now)
	if err != nil {
		t.Fatalf("first number: %v", err)
	}
	second, err := NextOrderNumber(ctx, conn, now)
	if err != nil {
		t.Fatalf("second number: %v", err)
	}

	if !orderNumberRe.MatchString(first) {
		t.Fatalf("number %q does not match format", first)
	}
	if first != "ORD-20260830-0001" {
		t.Fatalf("unexpected first number %q", first)
	}
	if second != "ORD-20260830-0002" {
		t.Fatalf("unexpected second number %q", second)
	}
}

func TestNextOrderNumberResetsPerDay(t *testing.T) {
	t.Parallel()

	conn := newNumberingDB(t)
	ctx := context.Background()

	dayOne := time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)
	dayTwo := time.Date(2026, 8, 31, 0, 1, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if _, err := NextOrderNumber(ctx, conn, dayOne); err != nil {
			t.Fatalf("day one number: %v", err)
		}
	}

	next, err := NextOrderNumber(ctx, conn, dayTwo)
	if err != nil {
		t.Fatalf("day two number: %v", err)
	}
	if next != "ORD-20260831-0001" {
		t.Fatalf("expected sequence reset on new day, got %q", next)
	}
}
