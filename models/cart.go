package models

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var priceFormat = regexp.MustCompile(`^\d+\.\d{2}$`)

var itemValidate = newItemValidator()

func newItemValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("price2dp", func(fl validator.FieldLevel) bool {
		return priceFormat.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("imageref", func(fl validator.FieldLevel) bool {
		return isImageRef(fl.Field().String())
	})
	return v
}

// isImageRef accepts an absolute http(s) URL or a path rooted at "/".
func isImageRef(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	if u.Scheme == "" {
		return u.Host == "" && strings.HasPrefix(u.Path, "/")
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// CartItem is one line of a cart: a product paired with a quantity and the
// price captured when it was added.
type CartItem struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Name      string `json:"name" validate:"required"`
	Slug      string `json:"slug" validate:"required"`
	Qty       int    `json:"qty" validate:"gte=0"`
	Image     string `json:"image" validate:"required,imageref"`
	Price     string `json:"price" validate:"required,price2dp"`
}

// Validate checks a single line against the item schema.
func (i CartItem) Validate() error {
	if err := itemValidate.Struct(i); err != nil {
		return describeItemError(err)
	}
	return nil
}

func describeItemError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "price2dp":
			msgs = append(msgs, fmt.Sprintf("%s must have exactly two decimal places", field))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must not be negative", field))
		case "imageref":
			msgs = append(msgs, fmt.Sprintf("%s must be an http(s) URL or an absolute path", field))
		case "uuid":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid id", field))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return fmt.Errorf("invalid cart item: %s", strings.Join(msgs, "; "))
}

// ValidateCartItems checks every line and that no product appears twice.
func ValidateCartItems(items []CartItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
		if _, dup := seen[item.ProductID]; dup {
			return fmt.Errorf("invalid cart item: product %s appears more than once", item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

// Cart belongs to either an anonymous session or a signed-in user. The four
// price fields are always derived from Items by the pricing package. A session
// owns at most one anonymous cart and a user at most one cart.
type Cart struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	SessionID     string     `gorm:"not null;index;uniqueIndex:idx_carts_anonymous_session,where:user_id IS NULL" json:"session_id"`
	UserID        *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"user_id,omitempty"`
	Items         []CartItem `gorm:"type:jsonb;serializer:json;not null" json:"items"`
	ItemsPrice    Money      `gorm:"type:numeric(12,2);not null" json:"items_price"`
	ShippingPrice Money      `gorm:"type:numeric(12,2);not null" json:"shipping_price"`
	TaxPrice      Money      `gorm:"type:numeric(12,2);not null" json:"tax_price"`
	TotalPrice    Money      `gorm:"type:numeric(12,2);not null" json:"total_price"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *Cart) BeforeSave(tx *gorm.DB) error {
	if c.Items == nil {
		c.Items = []CartItem{}
	}
	return ValidateCartItems(c.Items)
}

// FindItem returns the index of the line holding productID, or -1.
func (c *Cart) FindItem(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}
