package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wbenromdhane/tijara-backend/pkg/db/models"
	pkgerrors "github.com/wbenromdhane/tijara-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productCatalog interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// Service exposes account cart operations.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.Cart, error)
	UpdateItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	Merge(ctx context.Context, userID uuid.UUID, items []MergeItem) (*MergeResult, error)
}

type service struct {
	repo     *Repository
	tx       txRunner
	products productCatalog
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo *Repository, tx txRunner, products productCatalog) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	return &service{repo: repo, tx: tx, products: products}, nil
}

// MergeItem is one line carried over from a guest cart.
type MergeItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// SkippedItem records a merge line that could not be applied.
type SkippedItem struct {
	ProductID uuid.UUID `json:"productId"`
	Reason    string    `json:"reason"`
}

// MergeResult is the post-merge cart plus the lines that were dropped.
type MergeResult struct {
	Cart    *models.Cart
	Skipped []SkippedItem
}

// Get returns the user's cart, creating an empty one on first access.
func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.FindOrCreateByUser(ctx, userID)
}

// AddItem adds qty of the product to the cart, stacking on any existing line.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is no longer available")
	}
	if product.StockQty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is out of stock")
	}

	var result *models.Cart
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := repo.FindOrCreateByUser(ctx, userID)
		if err != nil {
			return err
		}
		target := qty
		for _, item := range record.Items {
			if item.ProductID == productID {
				target += item.Quantity
				break
			}
		}
		if target > product.StockQty {
			target = product.StockQty
		}
		if err := repo.UpsertItem(ctx, &models.CartItem{
			CartID:    record.ID,
			ProductID: productID,
			Quantity:  target,
		}); err != nil {
			return err
		}
		result, err = repo.FindByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateItem sets the quantity on an existing cart line.
func (s *service) UpdateItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := repo.FindByUser(ctx, userID)
		if err != nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		touched, err := repo.UpdateItemQuantity(ctx, record.ID, productID, qty)
		if err != nil {
			return err
		}
		if touched == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		result, err = repo.FindByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveItem deletes one product line from the cart.
func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := repo.FindByUser(ctx, userID)
		if err != nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		if err := repo.RemoveItem(ctx, record.ID, productID); err != nil {
			return err
		}
		result, err = repo.FindByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Clear empties the cart.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := repo.FindByUser(ctx, userID)
		if err != nil {
			return nil
		}
		return repo.ClearItems(ctx, record.ID)
	})
}

// Merge folds a guest cart into the account cart. Lines present in both
// keep the larger quantity rather than the sum, so replaying the same
// merge, or merging after a refresh, cannot inflate the cart. Unknown and
// inactive products are dropped and reported back instead of failing the
// whole merge.
func (s *service) Merge(ctx context.Context, userID uuid.UUID, items []MergeItem) (*MergeResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	incoming := map[uuid.UUID]int{}
	order := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "merge quantities must be positive")
		}
		if _, seen := incoming[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		// duplicate guest lines for the same product collapse to the max
		if item.Quantity > incoming[item.ProductID] {
			incoming[item.ProductID] = item.Quantity
		}
	}

	result := &MergeResult{Skipped: []SkippedItem{}}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record, err := repo.FindOrCreateByUser(ctx, userID)
		if err != nil {
			return err
		}

		products, err := s.products.FindActiveByIDs(ctx, order)
		if err != nil {
			return err
		}
		known := make(map[uuid.UUID]models.Product, len(products))
		for _, p := range products {
			known[p.ID] = p
		}

		existing := make(map[uuid.UUID]int, len(record.Items))
		for _, item := range record.Items {
			existing[item.ProductID] = item.Quantity
		}

		for _, productID := range order {
			product, ok := known[productID]
			if !ok {
				result.Skipped = append(result.Skipped, SkippedItem{ProductID: productID, Reason: "unavailable"})
				continue
			}
			if product.StockQty <= 0 {
				result.Skipped = append(result.Skipped, SkippedItem{ProductID: productID, Reason: "out_of_stock"})
				continue
			}

			target := incoming[productID]
			if current, ok := existing[productID]; ok && current > target {
				target = current
			}
			if target > product.StockQty {
				target = product.StockQty
			}
			if current, ok := existing[productID]; ok && current == target {
				// nothing changed, skip the write so merges stay idempotent
				continue
			}

			if err := repo.UpsertItem(ctx, &models.CartItem{
				CartID:    record.ID,
				ProductID: productID,
				Quantity:  target,
			}); err != nil {
				return err
			}
		}

		result.Cart, err = repo.FindByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
