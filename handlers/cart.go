package handlers

import (
	"net/http"

	"storefront-backend/apperrors"
	"storefront-backend/cart"
	"storefront-backend/logger"
	"storefront-backend/metrics"
	"storefront-backend/middleware"
	"storefront-backend/models"

	"github.com/gin-gonic/gin"
)

type CartHandler struct {
	Carts   *cart.Service
	Metrics *metrics.Metrics
	Log     *logger.Logger
}

func identity(c *gin.Context) cart.Identity {
	return cart.Identity{
		SessionID: middleware.SessionID(c),
		UserID:    middleware.UserID(c),
	}
}

func (h *CartHandler) GetCart(c *gin.Context) {
	userCart, err := h.Carts.Get(c.Request.Context(), identity(c))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	if userCart == nil {
		zero := models.Money{}
		c.JSON(http.StatusOK, gin.H{
			"items":          []models.CartItem{},
			"items_price":    zero,
			"shipping_price": zero,
			"tax_price":      zero,
			"total_price":    zero,
		})
		return
	}
	c.JSON(http.StatusOK, userCart)
}

func (h *CartHandler) AddToCart(c *gin.Context) {
	var item models.CartItem
	if err := c.ShouldBindJSON(&item); err != nil {
		res := cart.Result{Message: "Invalid request body", Code: apperrors.CodeValidation}
		h.Metrics.CartOperation("add_item", string(res.Code))
		respondResult(c, res)
		return
	}

	res := h.Carts.AddItem(c.Request.Context(), identity(c), item)
	h.Metrics.CartOperation("add_item", string(res.Code))
	respondResult(c, res)
}

func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	res := h.Carts.RemoveItem(c.Request.Context(), identity(c), c.Param("productId"))
	h.Metrics.CartOperation("remove_item", string(res.Code))
	respondResult(c, res)
}

func (h *CartHandler) ClearCart(c *gin.Context) {
	res := h.Carts.Clear(c.Request.Context(), identity(c))
	h.Metrics.CartOperation("clear", string(res.Code))
	respondResult(c, res)
}
