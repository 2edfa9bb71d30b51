package routes

import (
	"storefront-backend/cart"
	"storefront-backend/handlers"
	"storefront-backend/logger"
	"storefront-backend/metrics"
	"storefront-backend/middleware"
	"storefront-backend/revalidate"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Deps carries everything the HTTP layer needs. Pages, Metrics, Gatherer and
// AuthLimiter are optional.
type Deps struct {
	DB           *gorm.DB
	Carts        *cart.Service
	Tokens       *utils.TokenManager
	Pages        revalidate.PageCache
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	AuthLimiter  *middleware.RateLimiter
	CookieSecure bool
	Log          *logger.Logger
}

func SetupRoutes(r *gin.Engine, d Deps) {
	if d.Pages == nil {
		d.Pages = revalidate.Noop{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}

	authHandler := &handlers.AuthHandler{DB: d.DB, Tokens: d.Tokens, Carts: d.Carts, CookieSecure: d.CookieSecure, Metrics: d.Metrics, Log: d.Log}
	productHandler := &handlers.ProductHandler{DB: d.DB, Pages: d.Pages, Metrics: d.Metrics, Log: d.Log}
	categoryHandler := &handlers.CategoryHandler{DB: d.DB, Log: d.Log}
	cartHandler := &handlers.CartHandler{Carts: d.Carts, Metrics: d.Metrics, Log: d.Log}
	orderHandler := &handlers.OrderHandler{DB: d.DB, Pages: d.Pages, Log: d.Log}

	readSession := middleware.SessionCart(false, d.CookieSecure)
	mintSession := middleware.SessionCart(true, d.CookieSecure)

	api := r.Group("/api")
	{
		// Auth routes; a sign-in merges the session cart
		auth := api.Group("/auth")
		if d.AuthLimiter != nil {
			auth.Use(d.AuthLimiter.Middleware())
		}
		auth.POST("/register", readSession, authHandler.Register)
		auth.POST("/login", readSession, authHandler.Login)

		// Public catalog
		api.GET("/products", productHandler.GetProducts)
		api.GET("/products/slug/:slug", productHandler.GetProductBySlug)
		api.GET("/products/:id", productHandler.GetProduct)
		api.GET("/categories", categoryHandler.GetCategories)
		api.GET("/categories/:id", categoryHandler.GetCategory)

		// Cart routes work for anonymous and signed-in callers
		carts := api.Group("/cart")
		carts.Use(middleware.OptionalAuth(d.Tokens))
		carts.GET("", readSession, cartHandler.GetCart)
		carts.POST("/items", mintSession, cartHandler.AddToCart)
		carts.DELETE("/items/:productId", readSession, cartHandler.RemoveFromCart)
		carts.DELETE("", readSession, cartHandler.ClearCart)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(d.Tokens))
	{
		protected.GET("/auth/profile", authHandler.GetProfile)
		protected.PUT("/auth/profile", authHandler.UpdateProfile)
		protected.PUT("/auth/password", authHandler.ChangePassword)

		protected.POST("/orders", orderHandler.CreateOrder)
		protected.GET("/orders", orderHandler.GetOrders)
		protected.GET("/orders/:id", orderHandler.GetOrder)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(d.Tokens), middleware.AdminMiddleware())
	{
		admin.GET("/products", productHandler.GetProductsAdmin)
		admin.GET("/products/export", productHandler.GetProductsExport)
		admin.POST("/products", productHandler.CreateProduct)
		admin.PUT("/products/:id", productHandler.UpdateProduct)
		admin.DELETE("/products/:id", productHandler.DeleteProduct)

		admin.POST("/categories", categoryHandler.CreateCategory)
		admin.PUT("/categories/:id", categoryHandler.UpdateCategory)
		admin.DELETE("/categories/:id", categoryHandler.DeleteCategory)

		admin.GET("/orders", orderHandler.GetAdminOrders)
		admin.GET("/orders/transitions", orderHandler.GetOrderTransitions)
		admin.PUT("/orders/:id/status", orderHandler.UpdateOrderStatus)
	}

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(d.Gatherer)))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
