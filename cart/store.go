package cart

import (
	"context"
	"errors"

	"storefront-backend/database"
	"storefront-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrCartExists is returned by Create when the session or user already owns a
// cart, which happens when two first writes for the same owner race.
var ErrCartExists = errors.New("cart already exists for owner")

// Store persists carts. Find methods return (nil, nil) when nothing matches.
type Store interface {
	FindBySession(ctx context.Context, sessionID string) (*models.Cart, error)
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	UpdateItems(ctx context.Context, cart *models.Cart) error
	Reassign(ctx context.Context, cartID, userID uuid.UUID) error
	Delete(ctx context.Context, cartID uuid.UUID) error
	// WithTx runs fn against a Store bound to one transaction. Rows read
	// through it are locked until the transaction ends.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db   *gorm.DB
	inTx bool
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) query(ctx context.Context) *gorm.DB {
	q := s.db.WithContext(ctx)
	if s.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (s *gormStore) first(q *gorm.DB) (*models.Cart, error) {
	var cart models.Cart
	if err := q.First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

// FindBySession only matches anonymous carts; once a cart is reassigned to a
// user its session id no longer identifies it.
func (s *gormStore) FindBySession(ctx context.Context, sessionID string) (*models.Cart, error) {
	if sessionID == "" {
		return nil, nil
	}
	return s.first(s.query(ctx).Where("session_id = ? AND user_id IS NULL", sessionID))
}

func (s *gormStore) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return s.first(s.query(ctx).Where("user_id = ?", userID))
}

func (s *gormStore) Create(ctx context.Context, cart *models.Cart) error {
	err := s.db.WithContext(ctx).Create(cart).Error
	if database.IsUniqueViolation(err) {
		return ErrCartExists
	}
	return err
}

func (s *gormStore) UpdateItems(ctx context.Context, cart *models.Cart) error {
	return s.db.WithContext(ctx).
		Model(cart).
		Select("items", "items_price", "shipping_price", "tax_price", "total_price").
		Updates(cart).Error
}

func (s *gormStore) Reassign(ctx context.Context, cartID, userID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("user_id", userID).Error
}

func (s *gormStore) Delete(ctx context.Context, cartID uuid.UUID) error {
	return s.db.WithContext(ctx).Delete(&models.Cart{}, "id = ?", cartID).Error
}

func (s *gormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx, inTx: true})
	})
}

// Product is the slice of catalog data the cart needs.
type Product struct {
	ID    uuid.UUID
	Slug  string
	Name  string
	Stock int
}

// ProductLookup finds products by id, returning (nil, nil) when absent.
type ProductLookup interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*Product, error)
}

type gormCatalog struct {
	db *gorm.DB
}

func NewProductLookup(db *gorm.DB) ProductLookup {
	return &gormCatalog{db: db}
}

func (c *gormCatalog) FindProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	var p models.Product
	err := c.db.WithContext(ctx).
		Select("id", "slug", "name", "stock").
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &Product{ID: p.ID, Slug: p.Slug, Name: p.Name, Stock: p.Stock}, nil
}
