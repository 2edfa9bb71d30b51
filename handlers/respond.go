package handlers

import (
	"net/http"
	"strconv"

	"storefront-backend/apperrors"
	"storefront-backend/cart"
	"storefront-backend/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondError writes err as {"error": ...}. Errors without a code are logged
// and hidden behind a generic 500.
func respondError(c *gin.Context, logg *logger.Logger, err error) {
	typed := apperrors.As(err)
	if typed == nil {
		logg.Error(c.Request.Context(), "request failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	status := apperrors.HTTPStatus(typed.Code())
	if status >= http.StatusInternalServerError {
		logg.Error(c.Request.Context(), "request failed", err)
	}
	c.JSON(status, gin.H{"error": typed.Message(), "code": typed.Code()})
}

// respondResult writes a cart Result. Failures keep the Result shape and add
// the usual error field.
func respondResult(c *gin.Context, res cart.Result) {
	if res.Success {
		c.JSON(http.StatusOK, res)
		return
	}
	c.JSON(apperrors.HTTPStatus(res.Code), gin.H{
		"success": false,
		"message": res.Message,
		"code":    res.Code,
		"error":   res.Message,
	})
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

type pagination struct {
	Page  int
	Limit int
}

func (p pagination) offset() int {
	return (p.Page - 1) * p.Limit
}

const maxPageSize = 100

func parsePagination(c *gin.Context, defaultLimit int) pagination {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return pagination{Page: page, Limit: limit}
}
