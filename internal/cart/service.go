package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-core/pkg/db"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes cart mutations. Stock is not checked here; checkout owns that.
type Service interface {
	AddItem(ctx context.Context, tenantID uuid.UUID, owner Owner, productID uuid.UUID, quantity int64) (*View, error)
	UpdateQuantity(ctx context.Context, tenantID uuid.UUID, owner Owner, productID uuid.UUID, quantity int64) (*View, error)
	RemoveItem(ctx context.Context, tenantID uuid.UUID, owner Owner, productID uuid.UUID) (*View, error)
	Clear(ctx context.Context, tenantID uuid.UUID, owner Owner) error
	Snapshot(ctx context.Context, tenantID uuid.UUID, owner Owner) (*View, error)
	SnapshotTx(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, owner Owner) (*View, error)
	ClearTx(ctx context.Context, tx *gorm.DB, tenantID, cartID uuid.UUID) error
	MergeGuestCart(ctx context.Context, tenantID uuid.UUID, guestToken string, customerID uuid.UUID) (*View, error)
}

// View is the read model of a cart.
type View struct {
	ID    uuid.UUID `json:"id"`
	Items []Line    `json:"items"`
}

// Line is one cart entry; quantities are unique per product.
type Line struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int64     `json:"quantity"`
}

// IsEmpty reports whether the cart holds no lines.
func (v *View) IsEmpty() bool {
	return v == nil || len(v.Items) == 0
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) AddItem(ctx context.Context, tenantID uuid.UUID, owner Owner, productID uuid.UUID, quantity int64) (*View, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.ensureProduct(ctx, repo, tenantID, productID); err != nil {
			return err
		}
		cart, err := s.loadOrCreate(ctx, repo, tenantID, owner)
		if err != nil {
			return err
		}
		if err := repo.AddQuantity(ctx, models.CartItem{
			CartID:    cart.ID,
			TenantID:  tenantID,
			ProductID: productID,
			Quantity:  quantity,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart item")
		}
		view, err = s.view(ctx, repo, tenantID, cart.ID)
		return err
	})
	return view, err
}

// UpdateQuantity sets the line quantity; zero removes the line.
func (s *service) UpdateQuantity(ctx context.Context, tenantID uuid.UUID, owner Owner, productID uuid.UUID, quantity int64) (*View, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, tenantID, owner, productID)
	}
	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.load(ctx, repo, tenantID, owner)
		if err != nil {
			return err
		}
		ok, err := repo.SetQuantity(ctx, tenantID, cart.ID, productID, quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		view, err = s.view(ctx, repo, tenantID, cart.ID)
		return err
	})
	return view, err
}

func (s *service) RemoveItem(ctx context.Context, tenantID uuid.UUID, owner Owner, productID uuid.UUID) (*View, error) {
	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.load(ctx, repo, tenantID, owner)
		if err != nil {
			return err
		}
		ok, err := repo.DeleteItem(ctx, tenantID, cart.ID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		view, err = s.view(ctx, repo, tenantID, cart.ID)
		return err
	})
	return view, err
}

func (s *service) Clear(ctx context.Context, tenantID uuid.UUID, owner Owner) error {
	if err := s.validate(tenantID, owner); err != nil {
		return err
	}
	cart, err := s.repo.FindByOwner(ctx, tenantID, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if err := s.repo.ClearItems(ctx, tenantID, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// Snapshot returns the owner's cart; a missing cart reads as empty.
func (s *service) Snapshot(ctx context.Context, tenantID uuid.UUID, owner Owner) (*View, error) {
	return s.SnapshotTx(ctx, nil, tenantID, owner)
}

func (s *service) SnapshotTx(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, owner Owner) (*View, error) {
	if err := s.validate(tenantID, owner); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	cart, err := repo.FindByOwner(ctx, tenantID, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &View{Items: []Line{}}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return s.view(ctx, repo, tenantID, cart.ID)
}

func (s *service) ClearTx(ctx context.Context, tx *gorm.DB, tenantID, cartID uuid.UUID) error {
	if err := s.repo.WithTx(tx).ClearItems(ctx, tenantID, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// MergeGuestCart folds a guest cart into the customer's cart on sign-in and
// drops the guest cart. Quantities for the same product add up.
func (s *service) MergeGuestCart(ctx context.Context, tenantID uuid.UUID, guestToken string, customerID uuid.UUID) (*View, error) {
	guest := GuestOwner{Token: guestToken}
	customer := CustomerOwner{CustomerID: customerID}
	if err := s.validate(tenantID, guest); err != nil {
		return nil, err
	}
	if err := s.validate(tenantID, customer); err != nil {
		return nil, err
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		target, err := s.loadOrCreate(ctx, repo, tenantID, customer)
		if err != nil {
			return err
		}
		source, err := repo.FindByOwner(ctx, tenantID, guest)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
		}
		if source != nil {
			items, err := repo.ListItems(ctx, tenantID, source.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list guest cart items")
			}
			for _, item := range items {
				if err := repo.AddQuantity(ctx, models.CartItem{
					CartID:    target.ID,
					TenantID:  tenantID,
					ProductID: item.ProductID,
					Quantity:  item.Quantity,
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart item")
				}
			}
			if err := repo.Delete(ctx, tenantID, source.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drop guest cart")
			}
		}
		view, err = s.view(ctx, repo, tenantID, target.ID)
		return err
	})
	return view, err
}

func (s *service) validate(tenantID uuid.UUID, owner Owner) error {
	if tenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if owner == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart owner required")
	}
	return owner.validate()
}

func (s *service) ensureProduct(ctx context.Context, repo Repository, tenantID, productID uuid.UUID) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if _, err := repo.ActiveProduct(ctx, tenantID, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return nil
}

func (s *service) load(ctx context.Context, repo Repository, tenantID uuid.UUID, owner Owner) (*models.Cart, error) {
	if err := s.validate(tenantID, owner); err != nil {
		return nil, err
	}
	cart, err := repo.FindByOwner(ctx, tenantID, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) loadOrCreate(ctx context.Context, repo Repository, tenantID uuid.UUID, owner Owner) (*models.Cart, error) {
	if err := s.validate(tenantID, owner); err != nil {
		return nil, err
	}
	cart, err := repo.FindByOwner(ctx, tenantID, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	cart = &models.Cart{TenantID: tenantID}
	owner.apply(cart)
	if err := repo.Create(ctx, cart); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart created concurrently, retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return cart, nil
}

func (s *service) view(ctx context.Context, repo Repository, tenantID, cartID uuid.UUID) (*View, error) {
	items, err := repo.ListItems(ctx, tenantID, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	view := &View{ID: cartID, Items: make([]Line, 0, len(items))}
	for _, item := range items {
		view.Items = append(view.Items, Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return view, nil
}
