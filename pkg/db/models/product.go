package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product is the catalog listing. Catalog management owns every column here
// except StockQty, which only the settlement transaction decrements and the
// cancellation path restores.
type Product struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	NameAr          string           `gorm:"column:name_ar;not null"`
	NameFr          string           `gorm:"column:name_fr;not null"`
	Images          pq.StringArray   `gorm:"column:images;type:text[]"`
	RetailPrice     decimal.Decimal  `gorm:"column:retail_price;type:numeric(12,3);not null"`
	WholesalePrice  *decimal.Decimal `gorm:"column:wholesale_price;type:numeric(12,3)"`
	WholesaleMinQty int              `gorm:"column:wholesale_min_qty;not null;default:0"`
	StockQty        int              `gorm:"column:stock_qty;not null;default:0;check:stock_qty >= 0"`
	IsActive        bool             `gorm:"column:is_active;not null;default:true"`
	WholesaleOnly   bool             `gorm:"column:wholesale_only;not null;default:false"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// FirstImage returns the snapshot image for order items.
func (p Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
