package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"storefront-backend/database"
	"storefront-backend/logger"
	"storefront-backend/metrics"
	"storefront-backend/models"
	"storefront-backend/revalidate"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type ProductHandler struct {
	DB      *gorm.DB
	Pages   revalidate.PageCache
	Metrics *metrics.Metrics
	Log     *logger.Logger
}

var productSorts = map[string]string{
	"newest":  "created_at DESC",
	"lowest":  "price ASC",
	"highest": "price DESC",
}

func (h *ProductHandler) listProducts(c *gin.Context, defaultLimit int) {
	var q struct {
		Search     string `form:"search"`
		CategoryID string `form:"category_id" binding:"omitempty,uuid"`
		MinPrice   string `form:"min_price"`
		MaxPrice   string `form:"max_price"`
		Sort       string `form:"sort" binding:"omitempty,oneof=newest lowest highest"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}
	page := parsePagination(c, defaultLimit)

	query := h.DB.WithContext(c.Request.Context()).Model(&models.Product{})
	if q.CategoryID != "" {
		query = query.Where("category_id = ?", q.CategoryID)
	}
	if q.Search != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+q.Search+"%")
	}
	if q.MinPrice != "" {
		minPrice, err := models.ParseMoney(q.MinPrice)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid min_price"})
			return
		}
		query = query.Where("price >= ?", minPrice)
	}
	if q.MaxPrice != "" {
		maxPrice, err := models.ParseMoney(q.MaxPrice)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid max_price"})
			return
		}
		query = query.Where("price <= ?", maxPrice)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, h.Log, err)
		return
	}

	order := productSorts["newest"]
	if q.Sort != "" {
		order = productSorts[q.Sort]
	}

	var products []models.Product
	if err := query.Preload("Category").Order(order).Offset(page.offset()).Limit(page.Limit).Find(&products).Error; err != nil {
		respondError(c, h.Log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"total":    total,
		"page":     page.Page,
		"limit":    page.Limit,
	})
}

func (h *ProductHandler) GetProducts(c *gin.Context) {
	h.listProducts(c, 12)
}

func (h *ProductHandler) GetProductsAdmin(c *gin.Context) {
	h.listProducts(c, 20)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var product models.Product
	if err := h.DB.WithContext(c.Request.Context()).Preload("Category").Where("id = ?", id).First(&product).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	c.JSON(http.StatusOK, product)
}

// GetProductBySlug serves the product page, from the page cache when a
// rendered copy is still valid.
func (h *ProductHandler) GetProductBySlug(c *gin.Context) {
	ctx := c.Request.Context()
	path := revalidate.ProductPath(c.Param("slug"))

	if body, ok := h.Pages.Get(ctx, path); ok {
		h.Metrics.PageCacheLookup(true)
		c.Header("X-Cache", "HIT")
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}
	h.Metrics.PageCacheLookup(false)

	var product models.Product
	if err := h.DB.WithContext(ctx).Preload("Category").Where("slug = ?", c.Param("slug")).First(&product).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	body, err := json.Marshal(product)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	h.Pages.Set(ctx, path, body)

	c.Header("X-Cache", "MISS")
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

type productRequest struct {
	Name        *string    `json:"name" binding:"omitempty,min=1,max=200"`
	Slug        *string    `json:"slug" binding:"omitempty,max=200"`
	CategoryID  *uuid.UUID `json:"category_id"`
	Brand       *string    `json:"brand"`
	Description *string    `json:"description"`
	Images      []string   `json:"images" binding:"omitempty,dive,required"`
	Price       *string    `json:"price"`
	Stock       *int       `json:"stock" binding:"omitempty,gte=0"`
	IsFeatured  *bool      `json:"is_featured"`
}

// apply copies the set fields of req onto p.
func (req productRequest) apply(p *models.Product) error {
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Slug != nil {
		p.Slug = slug.Make(*req.Slug)
	}
	if req.CategoryID != nil {
		p.CategoryID = req.CategoryID
	}
	if req.Brand != nil {
		p.Brand = *req.Brand
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Images != nil {
		p.Images = req.Images
	}
	if req.Price != nil {
		price, err := models.ParseMoney(*req.Price)
		if err != nil || price.IsNegative() {
			return errors.New("price must be a non-negative amount")
		}
		p.Price = models.NewMoney(price.Round(2))
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.IsFeatured != nil {
		p.IsFeatured = *req.IsFeatured
	}
	return nil
}

func (h *ProductHandler) categoryExists(c *gin.Context, id *uuid.UUID) bool {
	if id == nil {
		return true
	}
	var count int64
	h.DB.WithContext(c.Request.Context()).Model(&models.Category{}).Where("id = ?", *id).Count(&count)
	return count > 0
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}
	if req.Name == nil || req.Price == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and price are required"})
		return
	}

	var product models.Product
	if err := req.apply(&product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if product.Slug == "" {
		product.Slug = slug.Make(product.Name)
	}
	if product.Slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slug could not be derived from name"})
		return
	}
	if !h.categoryExists(c, product.CategoryID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Category not found"})
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).Omit("Category").Create(&product).Error; err != nil {
		if database.IsUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "A product with this slug already exists"})
			return
		}
		respondError(c, h.Log, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	ctx := c.Request.Context()
	var product models.Product
	if err := h.DB.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	oldSlug := product.Slug

	if err := req.apply(&product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if product.Name == "" || product.Slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and slug must not be empty"})
		return
	}
	if !h.categoryExists(c, product.CategoryID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Category not found"})
		return
	}

	if err := h.DB.WithContext(ctx).Omit("Category").Save(&product).Error; err != nil {
		if database.IsUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "A product with this slug already exists"})
			return
		}
		respondError(c, h.Log, err)
		return
	}

	h.Pages.Revalidate(ctx, revalidate.ProductPath(oldSlug))
	if product.Slug != oldSlug {
		h.Pages.Revalidate(ctx, revalidate.ProductPath(product.Slug))
	}

	h.DB.WithContext(ctx).Preload("Category").First(&product, "id = ?", product.ID)
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var product models.Product
	if err := h.DB.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	if err := h.DB.WithContext(ctx).Delete(&product).Error; err != nil {
		respondError(c, h.Log, err)
		return
	}

	h.Pages.Revalidate(ctx, revalidate.ProductPath(product.Slug))
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}
