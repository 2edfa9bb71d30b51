package cart

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"storefront-backend/apperrors"
	"storefront-backend/logger"
	"storefront-backend/models"
	"storefront-backend/pricing"
	"storefront-backend/revalidate"

	"github.com/google/uuid"
)

// Identity is who a cart operation acts for. UserID is nil for anonymous
// callers; SessionID comes from the sessionCartId cookie.
type Identity struct {
	SessionID string
	UserID    *uuid.UUID
}

// Result is the uniform outcome of every cart mutation. Code is empty on
// success and otherwise names the failure category for the transport layer.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Code    apperrors.Code `json:"code,omitempty"`
}

type Service struct {
	store    Store
	products ProductLookup
	pages    revalidate.PageCache
	log      *logger.Logger
}

// NewService builds a cart service. pages and logg may be nil.
func NewService(store Store, products ProductLookup, pages revalidate.PageCache, logg *logger.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	if pages == nil {
		pages = revalidate.Noop{}
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{store: store, products: products, pages: pages, log: logg}, nil
}

// lookup resolves the caller's cart. A signed-in caller only ever sees the
// user-owned cart, whatever session cookie they still carry.
func lookup(ctx context.Context, store Store, id Identity) (*models.Cart, error) {
	if id.UserID != nil {
		return store.FindByUser(ctx, *id.UserID)
	}
	return store.FindBySession(ctx, id.SessionID)
}

// Get returns the caller's cart, or nil when they have none.
func (s *Service) Get(ctx context.Context, id Identity) (*models.Cart, error) {
	cart, err := lookup(ctx, s.store, id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStore, err, "loading cart failed")
	}
	return cart, nil
}

func (s *Service) AddItem(ctx context.Context, id Identity, item models.CartItem) Result {
	res, err := s.addItem(ctx, id, item)
	if err != nil {
		return s.fail(ctx, "cart.add_item", err)
	}
	return res
}

func (s *Service) addItem(ctx context.Context, id Identity, item models.CartItem) (Result, error) {
	if err := item.Validate(); err != nil {
		return Result{}, apperrors.New(apperrors.CodeValidation, err.Error())
	}
	productID := uuid.MustParse(item.ProductID)

	product, err := s.products.FindProduct(ctx, productID)
	if err != nil {
		return Result{}, err
	}
	if product == nil {
		return Result{}, apperrors.New(apperrors.CodeNotFound, "Product not found")
	}
	if id.SessionID == "" {
		id.SessionID = uuid.NewString()
	}

	var added bool
	write := func(tx Store) error {
		added = false
		cart, err := lookup(ctx, tx, id)
		if err != nil {
			return err
		}

		if cart == nil {
			if product.Stock < item.Qty {
				return notEnoughStock()
			}
			cart = &models.Cart{
				SessionID: id.SessionID,
				UserID:    id.UserID,
				Items:     []models.CartItem{item},
			}
			if err := pricing.Apply(cart); err != nil {
				return err
			}
			added = true
			return tx.Create(ctx, cart)
		}

		items := slices.Clone(cart.Items)
		if idx := cart.FindItem(item.ProductID); idx >= 0 {
			qty := items[idx].Qty + 1
			if product.Stock < qty {
				return notEnoughStock()
			}
			items[idx].Qty = qty
		} else {
			if product.Stock < item.Qty {
				return notEnoughStock()
			}
			items = append(items, item)
			added = true
		}

		cart.Items = items
		if err := pricing.Apply(cart); err != nil {
			return err
		}
		return tx.UpdateItems(ctx, cart)
	}

	// A concurrent first add for the same owner can create the cart between
	// our lookup and insert. The retry then finds and locks that row.
	err = s.store.WithTx(ctx, write)
	if errors.Is(err, ErrCartExists) {
		err = s.store.WithTx(ctx, write)
	}
	if err != nil {
		return Result{}, err
	}

	s.pages.Revalidate(ctx, revalidate.ProductPath(product.Slug))

	verb := "updated in"
	if added {
		verb = "added to"
	}
	return Result{Success: true, Message: fmt.Sprintf("%s %s cart", product.Name, verb)}, nil
}

func (s *Service) RemoveItem(ctx context.Context, id Identity, productID string) Result {
	res, err := s.removeItem(ctx, id, productID)
	if err != nil {
		return s.fail(ctx, "cart.remove_item", err)
	}
	return res
}

// removeItem takes one unit off the line for productID. Removing the last
// unit drops the line, and dropping the last line deletes the cart.
func (s *Service) removeItem(ctx context.Context, id Identity, productID string) (Result, error) {
	var removed models.CartItem
	err := s.store.WithTx(ctx, func(tx Store) error {
		cart, err := lookup(ctx, tx, id)
		if err != nil {
			return err
		}
		if cart == nil {
			return apperrors.New(apperrors.CodeNotFound, "Cart not found")
		}
		idx := cart.FindItem(productID)
		if idx < 0 {
			return apperrors.New(apperrors.CodeNotFound, "Item not found")
		}

		items := slices.Clone(cart.Items)
		removed = items[idx]
		if items[idx].Qty <= 1 {
			items = slices.Delete(items, idx, idx+1)
		} else {
			items[idx].Qty--
		}

		if len(items) == 0 {
			return tx.Delete(ctx, cart.ID)
		}
		cart.Items = items
		if err := pricing.Apply(cart); err != nil {
			return err
		}
		return tx.UpdateItems(ctx, cart)
	})
	if err != nil {
		return Result{}, err
	}

	s.pages.Revalidate(ctx, revalidate.ProductPath(removed.Slug))
	return Result{Success: true, Message: fmt.Sprintf("%s was removed from cart", removed.Name)}, nil
}

// Clear deletes the caller's cart outright.
func (s *Service) Clear(ctx context.Context, id Identity) Result {
	var cleared []models.CartItem
	err := s.store.WithTx(ctx, func(tx Store) error {
		cart, err := lookup(ctx, tx, id)
		if err != nil {
			return err
		}
		if cart == nil {
			return apperrors.New(apperrors.CodeNotFound, "Cart not found")
		}
		cleared = cart.Items
		return tx.Delete(ctx, cart.ID)
	})
	if err != nil {
		return s.fail(ctx, "cart.clear", err)
	}
	for _, item := range cleared {
		s.pages.Revalidate(ctx, revalidate.ProductPath(item.Slug))
	}
	return Result{Success: true, Message: "Cart cleared"}
}

// Merge folds the anonymous cart for sessionID into the cart of userID. It
// runs once, when a session signs in or signs up, inside one transaction.
func (s *Service) Merge(ctx context.Context, sessionID string, userID uuid.UUID) Result {
	msg := "Nothing to merge"
	err := s.store.WithTx(ctx, func(tx Store) error {
		sessionCart, err := tx.FindBySession(ctx, sessionID)
		if err != nil || sessionCart == nil {
			return err
		}

		userCart, err := tx.FindByUser(ctx, userID)
		if err != nil {
			return err
		}
		if userCart == nil {
			msg = "Cart transferred to your account"
			return tx.Reassign(ctx, sessionCart.ID, userID)
		}

		userCart.Items = MergeItems(userCart.Items, sessionCart.Items)
		if err := pricing.Apply(userCart); err != nil {
			return err
		}
		if err := tx.UpdateItems(ctx, userCart); err != nil {
			return err
		}
		msg = "Cart merged"
		return tx.Delete(ctx, sessionCart.ID)
	})
	if err != nil {
		return s.fail(s.log.WithUserID(ctx, userID.String()), "cart.merge", err)
	}
	return Result{Success: true, Message: msg}
}

// MaxMergedQty bounds a line produced by merging. Merge does not consult
// stock, so checkout remains the authoritative gate.
const MaxMergedQty = 999

// MergeItems sums quantities per product, capped at MaxMergedQty. Lines from
// existing keep their order and snapshot; products only present in incoming
// are appended.
func MergeItems(existing, incoming []models.CartItem) []models.CartItem {
	merged := slices.Clone(existing)
	for _, item := range incoming {
		found := false
		for i := range merged {
			if merged[i].ProductID == item.ProductID {
				merged[i].Qty = min(merged[i].Qty+item.Qty, MaxMergedQty)
				found = true
				break
			}
		}
		if !found {
			item.Qty = min(item.Qty, MaxMergedQty)
			merged = append(merged, item)
		}
	}
	return merged
}

func notEnoughStock() error {
	return apperrors.New(apperrors.CodeInsufficientStock, "Not enough stock")
}

// fail converts err into a failed Result. Errors without a code come from the
// store and are reported as storage failures.
func (s *Service) fail(ctx context.Context, op string, err error) Result {
	typed := apperrors.As(err)
	if typed == nil {
		typed = apperrors.Wrap(apperrors.CodeStore, err, "Cart could not be saved, please try again")
	}
	ctx = s.log.WithFields(ctx, map[string]any{"op": op, "code": string(typed.Code())})

	switch typed.Code() {
	case apperrors.CodeStore, apperrors.CodeInternal:
		s.log.Error(ctx, "cart operation failed", err)
	default:
		s.log.Warn(ctx, typed.Message())
	}
	return Result{Success: false, Message: typed.Message(), Code: typed.Code()}
}
