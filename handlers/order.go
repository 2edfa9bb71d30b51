package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront-backend/apperrors"
	"storefront-backend/logger"
	"storefront-backend/middleware"
	"storefront-backend/models"
	"storefront-backend/pricing"
	"storefront-backend/revalidate"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderHandler struct {
	DB    *gorm.DB
	Pages revalidate.PageCache
	Log   *logger.Logger
}

func (h *OrderHandler) loadOrder(tx *gorm.DB, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := tx.Preload("Items").Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrder checks out the caller's cart. Stock is reserved, the order is
// written and the cart removed in one transaction.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		ShippingAddress models.ShippingAddress `json:"shipping_address" binding:"required"`
		PaymentMethod   string                 `json:"payment_method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}
	if !models.IsValidPaymentMethod(req.PaymentMethod) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("payment_method must be one of %v", models.PaymentMethods)})
		return
	}

	ctx := c.Request.Context()
	var order models.Order
	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var userCart models.Cart
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", *userID).First(&userCart).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && len(userCart.Items) == 0) {
			return apperrors.New(apperrors.CodeValidation, "Cart is empty")
		}
		if err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(userCart.Items))
		for _, line := range userCart.Items {
			var product models.Product
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", line.ProductID).First(&product).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperrors.Newf(apperrors.CodeNotFound, "Product %s is no longer available", line.Name)
				}
				return err
			}
			if product.Stock < line.Qty {
				return apperrors.Newf(apperrors.CodeInsufficientStock, "Insufficient stock for %s", product.Name)
			}
			if err := tx.Model(&product).Update("stock", gorm.Expr("stock - ?", line.Qty)).Error; err != nil {
				return err
			}

			price, err := models.ParseMoney(line.Price)
			if err != nil {
				return err
			}
			items = append(items, models.OrderItem{
				ProductID: product.ID,
				Name:      line.Name,
				Slug:      line.Slug,
				Image:     line.Image,
				Qty:       line.Qty,
				Price:     price,
			})
		}

		totals, err := pricing.Calc(userCart.Items)
		if err != nil {
			return err
		}

		order = models.Order{
			UserID:          *userID,
			Status:          models.OrderStatusPending,
			ShippingAddress: req.ShippingAddress,
			PaymentMethod:   req.PaymentMethod,
			ItemsPrice:      totals.ItemsPrice,
			ShippingPrice:   totals.ShippingPrice,
			TaxPrice:        totals.TaxPrice,
			TotalPrice:      totals.TotalPrice,
			Items:           items,
		}
		if err := tx.Omit("User").Create(&order).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Cart{}, "id = ?", userCart.ID).Error
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	for _, item := range order.Items {
		h.Pages.Revalidate(ctx, revalidate.ProductPath(item.Slug))
	}
	h.Log.Info(h.Log.WithField(ctx, "order_number", order.OrderNumber), "order placed")

	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetOrders(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	query := h.DB.WithContext(c.Request.Context()).Preload("Items")
	if !middleware.IsAdmin(c) {
		query = query.Where("user_id = ?", *userID)
	}

	var orders []models.Order
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	query := h.DB.WithContext(c.Request.Context()).Preload("Items").Where("id = ?", id)
	if !middleware.IsAdmin(c) {
		query = query.Where("user_id = ?", *userID)
	}

	var order models.Order
	if err := query.First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetAdminOrders lists every order, newest first, optionally by status.
func (h *OrderHandler) GetAdminOrders(c *gin.Context) {
	page := parsePagination(c, 20)
	query := h.DB.WithContext(c.Request.Context()).Model(&models.Order{})
	if status := c.Query("status"); status != "" {
		if _, known := models.AllowedTransitions[models.OrderStatus(status)]; !known {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
			return
		}
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, h.Log, err)
		return
	}

	var orders []models.Order
	if err := query.Preload("Items").Preload("User").Order("created_at DESC").Offset(page.offset()).Limit(page.Limit).Find(&orders).Error; err != nil {
		respondError(c, h.Log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  total,
		"page":   page.Page,
		"limit":  page.Limit,
	})
}

func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status models.OrderStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	ctx := c.Request.Context()
	var order *models.Order
	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "Order not found")
			}
			return err
		}
		if !models.IsValidTransition(current.Status, req.Status) {
			return apperrors.Newf(apperrors.CodeValidation, "Invalid status transition from '%s' to '%s'", current.Status, req.Status)
		}

		updates := map[string]any{"status": req.Status}
		now := time.Now()
		switch req.Status {
		case models.OrderStatusPaid:
			updates["paid_at"] = now
		case models.OrderStatusDelivered:
			updates["delivered_at"] = now
		}
		if err := tx.Model(&current).Updates(updates).Error; err != nil {
			return err
		}

		if req.Status == models.OrderStatusCancelled {
			var items []models.OrderItem
			if err := tx.Where("order_id = ?", current.ID).Find(&items).Error; err != nil {
				return err
			}
			for _, item := range items {
				if err := tx.Model(&models.Product{}).Where("id = ?", item.ProductID).
					Update("stock", gorm.Expr("stock + ?", item.Qty)).Error; err != nil {
					return err
				}
			}
		}

		var err error
		order, err = h.loadOrder(tx, current.ID)
		return err
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	if req.Status == models.OrderStatusCancelled {
		for _, item := range order.Items {
			h.Pages.Revalidate(ctx, revalidate.ProductPath(item.Slug))
		}
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) GetOrderTransitions(c *gin.Context) {
	c.JSON(http.StatusOK, models.AllowedTransitions)
}
