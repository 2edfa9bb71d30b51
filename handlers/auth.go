package handlers

import (
	"errors"
	"net/http"
	"strings"

	"storefront-backend/cart"
	"storefront-backend/database"
	"storefront-backend/logger"
	"storefront-backend/metrics"
	"storefront-backend/middleware"
	"storefront-backend/models"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB           *gorm.DB
	Tokens       *utils.TokenManager
	Carts        *cart.Service
	CookieSecure bool
	Metrics      *metrics.Metrics
	Log          *logger.Logger
}

func userJSON(user models.User) gin.H {
	return gin.H{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
		"role":  user.Role,
	}
}

// mergeSessionCart folds the caller's anonymous cart into the user's cart and
// rotates the session cookie so the old id cannot reach the merged cart. A
// failed merge does not fail the sign-in; the cookie is kept for a retry.
func (h *AuthHandler) mergeSessionCart(c *gin.Context, userID uuid.UUID) *cart.Result {
	sessionID := middleware.SessionID(c)
	if sessionID == "" {
		return nil
	}

	ctx := h.Log.WithUserID(c.Request.Context(), userID.String())
	res := h.Carts.Merge(ctx, sessionID, userID)
	h.Metrics.CartOperation("merge", string(res.Code))
	if !res.Success {
		h.Log.Warn(ctx, "session cart merge failed: "+res.Message)
		return &res
	}
	middleware.SetSessionCookie(c, uuid.NewString(), h.CookieSecure)
	return &res
}

func (h *AuthHandler) issue(c *gin.Context, status int, user models.User) {
	token, err := h.Tokens.Generate(user.ID, user.Email, user.Role)
	if err != nil {
		h.Log.Error(c.Request.Context(), "token generation failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	response := gin.H{
		"token": token,
		"user":  userJSON(user),
	}
	if merge := h.mergeSessionCart(c, user.ID); merge != nil {
		response["cart"] = merge
	}
	c.JSON(status, response)
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
		Name     string `json:"name" binding:"max=100"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		Email:    email,
		Password: string(hashedPassword),
		Name:     req.Name,
		Role:     models.RoleCustomer,
	}

	if err := h.DB.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		h.Log.Error(c.Request.Context(), "user create failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	h.issue(c, http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	var user models.User
	err := h.DB.WithContext(c.Request.Context()).
		Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).
		First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.Log.Error(c.Request.Context(), "user lookup failed", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	h.issue(c, http.StatusOK, user)
}

func (h *AuthHandler) currentUser(c *gin.Context) (*models.User, bool) {
	userID := middleware.UserID(c)
	if userID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).Where("id = ?", *userID).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return nil, false
	}
	return &user, true
}

func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, userJSON(*user))
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req struct {
		Name *string `json:"name" binding:"omitempty,max=100"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if req.Name != nil {
		user.Name = *req.Name
	}

	if err := h.DB.WithContext(c.Request.Context()).Model(user).Update("name", user.Name).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}
	c.JSON(http.StatusOK, userJSON(*user))
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Current password is incorrect"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).Model(user).Update("password", string(hashedPassword)).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}
