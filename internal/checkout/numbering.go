package checkout

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wbenromdhane/tijara-backend/pkg/db/models"
)

const orderNumberPrefix = "ORD"

// NextOrderNumber assigns the next ORD-YYYYMMDD-NNNN number inside the
// caller's transaction. The per-day counter row is taken FOR UPDATE so
// concurrent settlements for the same day queue up on it and sequences
// never collide. The counter resets naturally when the day changes because
// each day keys its own row.
func NextOrderNumber(ctx context.Context, tx *gorm.DB, now time.Time) (string, error) {
	day := now.Format("20060102")

	seed := models.OrderSequence{Day: day, LastValue: 0}
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "day"}},
			DoNothing: true,
		}).
		Create(&seed).Error; err != nil {
		return "", fmt.Errorf("seeding order sequence: %w", err)
	}

	var row models.OrderSequence
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("day = ?", day).
		First(&row).Error; err != nil {
		return "", fmt.Errorf("locking order sequence: %w", err)
	}

	next := row.LastValue + 1
	if err := tx.WithContext(ctx).
		Model(&models.OrderSequence{}).
		Where("day = ?", day).
		UpdateColumn("last_value", next).Error; err != nil {
		return "", fmt.Errorf("advancing order sequence: %w", err)
	}

	return fmt.Sprintf("%s-%s-%04d", orderNumberPrefix, day, next), nil
}
