package handlers

import (
	"net/http"

	"storefront-backend/models"

	"github.com/gin-gonic/gin"
)

// GetProductsExport returns every live product, unpaginated, for the admin
// spreadsheet export.
func (h *ProductHandler) GetProductsExport(c *gin.Context) {
	var products []models.Product
	if err := h.DB.WithContext(c.Request.Context()).Preload("Category").Order("name ASC").Find(&products).Error; err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, products)
}
