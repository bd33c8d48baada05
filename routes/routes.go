package routes

import (
	"grocery-delivery-api/cache"
	"grocery-delivery-api/handlers"
	"grocery-delivery-api/middleware"
	"grocery-delivery-api/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries everything the route tree needs. Handlers receive their
// collaborators here instead of reaching for globals.
type Deps struct {
	DB        *gorm.DB
	Cache     cache.Service
	JWTSecret []byte

	Status    *handlers.StatusHandler
	Auth      *handlers.AuthHandler
	Users     *handlers.UserHandler
	Products  *handlers.ProductHandler
	Stores    *handlers.StoreHandler
	Orders    *handlers.OrderHandler
	Delivery  *handlers.DeliveryHandler
	Payments  *handlers.PaymentHandler
	Analytics *handlers.AnalyticsHandler
}

func SetupRoutes(r *gin.Engine, d Deps) {
	authRequired := middleware.AuthRequired(d.DB, d.Cache, d.JWTSecret)

	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		public.GET("/health", d.Status.Health)
		public.GET("/status", d.Status.Status)
		public.GET("/state-machine", d.Status.StateMachine)

		public.POST("/auth/register", d.Auth.Register)
		public.POST("/auth/login", d.Auth.Login)
		public.POST("/auth/forgot-password", d.Auth.ForgotPassword)
		public.POST("/auth/reset-password", d.Auth.ResetPassword)

		public.GET("/stores", d.Stores.List)
		public.GET("/stores/nearby", d.Stores.Nearby)
		public.GET("/stores/:id", d.Stores.Get)
		public.GET("/stores/:id/products", d.Stores.Products)

		public.GET("/products", d.Products.List)
		public.GET("/products/search", d.Products.SearchProducts)
		public.GET("/products/featured", d.Products.Featured)
		public.GET("/products/categories", d.Products.Categories)
		public.GET("/products/:id", d.Products.Get)

		// Tracking is keyed by order number, safe to leave open.
		public.GET("/orders/track/:number", d.Orders.Track)

		// The gateway authenticates webhooks by signature, not by JWT.
		public.POST("/payments/webhook", d.Payments.Webhook)
	}

	// ── Authenticated routes (any role) ────────────────────────────
	auth := r.Group("/api")
	auth.Use(authRequired)
	{
		auth.GET("/auth/me", d.Auth.Me)
		auth.POST("/auth/logout", d.Auth.Logout)

		auth.GET("/profile", d.Users.GetProfile)
		auth.PUT("/profile", d.Users.UpdateProfile)
		auth.POST("/profile/avatar", d.Users.UploadAvatar)
		auth.PUT("/profile/password", d.Users.ChangePassword)

		auth.GET("/orders", d.Orders.List)
		auth.GET("/orders/:id", d.Orders.Get)
		auth.GET("/orders/:id/history", d.Orders.History)
		auth.GET("/orders/:id/payment", d.Payments.GetByOrder)
	}

	// ── Customer routes ────────────────────────────────────────────
	customer := r.Group("/api/customer")
	customer.Use(authRequired, middleware.RoleRequired(models.RoleCustomer))
	{
		customer.POST("/orders", d.Orders.Create)
		customer.PUT("/orders/:id/cancel", d.Orders.Cancel)
		customer.POST("/orders/:id/rating", d.Orders.Rate)
		customer.POST("/products/:id/rating", d.Products.Rate)

		customer.POST("/payments/order", d.Payments.CreateOrder)
		customer.POST("/payments/verify", d.Payments.Verify)
		customer.GET("/payments/history", d.Payments.History)
	}

	// ── Store owner routes ─────────────────────────────────────────
	owner := r.Group("/api/store")
	owner.Use(authRequired, middleware.RoleRequired(models.RoleStoreOwner, models.RoleAdmin))
	{
		owner.GET("/mine", d.Stores.MyStores)
		owner.POST("", d.Stores.Create)
		owner.PUT("/:id", d.Stores.Update)
		owner.PUT("/:id/hours", d.Stores.UpdateOperatingHours)
		owner.POST("/:id/logo", d.Stores.UploadLogo)
		owner.POST("/:id/banner", d.Stores.UploadBanner)
		owner.DELETE("/:id", d.Stores.Delete)

		owner.POST("/products", d.Products.Create)
		owner.PUT("/products/:id", d.Products.Update)
		owner.PUT("/products/:id/stock", d.Products.UpdateStock)
		owner.POST("/products/:id/images", d.Products.UploadImages)
		owner.DELETE("/products/:id", d.Products.Delete)

		owner.PUT("/orders/:id/status", d.Orders.UpdateStatus)
		owner.PUT("/orders/:id/assign", d.Orders.AssignDelivery)
		owner.GET("/delivery-partners", d.Users.ListDeliveryPartners)
	}

	// ── Delivery partner routes ────────────────────────────────────
	partner := r.Group("/api/delivery")
	partner.Use(authRequired, middleware.RoleRequired(models.RoleDeliveryPartner))
	{
		partner.GET("/orders/available", d.Delivery.AvailableOrders)
		partner.GET("/orders/mine", d.Delivery.MyDeliveries)
		partner.PUT("/orders/:id/accept", d.Delivery.Accept)
		partner.PUT("/orders/:id/pickup", d.Delivery.Start)
		partner.PUT("/orders/:id/deliver", d.Delivery.Complete)
		partner.PUT("/location", d.Delivery.UpdateLocation)
		partner.GET("/route", d.Delivery.Route)
		partner.GET("/earnings", d.Delivery.Earnings)
	}

	// ── Admin routes ───────────────────────────────────────────────
	admin := r.Group("/api/admin")
	admin.Use(authRequired, middleware.RoleRequired(models.RoleAdmin))
	{
		admin.GET("/users", d.Users.AdminListUsers)
		admin.GET("/users/:id", d.Users.AdminGetUser)
		admin.PUT("/users/:id", d.Users.AdminUpdateUser)
		admin.DELETE("/users/:id", d.Users.AdminDeactivateUser)

		admin.PUT("/stores/:id/verify", d.Stores.Verify)
		admin.PUT("/orders/:id/status", d.Orders.UpdateStatus)
		admin.POST("/payments/refund", d.Payments.Refund)
		admin.GET("/payments/analytics", d.Payments.Analytics)

		admin.GET("/analytics/dashboard", d.Analytics.Dashboard)
		admin.GET("/analytics/sales", d.Analytics.Sales)
		admin.GET("/analytics/products", d.Analytics.Products)
		admin.GET("/analytics/customers", d.Analytics.Customers)
		admin.GET("/analytics/delivery", d.Analytics.Delivery)
		admin.GET("/analytics/revenue", d.Analytics.Revenue)
	}
}
