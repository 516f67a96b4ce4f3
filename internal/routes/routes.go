package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/freshmart/internal/config"
	"github.com/example/freshmart/internal/handlers"
	"github.com/example/freshmart/internal/middleware"
	"github.com/example/freshmart/internal/services"
)

// Deps carries the constructed services the routes need.
type Deps struct {
	Resolver *services.StoreResolver
	Ledger   *services.LedgerService
	Checkout *services.CheckoutService
	Orders   *services.OrderService
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, deps Deps) {
	authHandler := handlers.NewAuthHandler(db, cfg)
	orderHandler := handlers.NewOrderHandler(db, deps.Checkout, deps.Orders)
	paymentHandler := handlers.NewPaymentHandler(db, deps.Orders)
	storeHandler := handlers.NewStoreHandler(deps.Resolver)
	profileHandler := handlers.NewProfileHandler(db)
	inventoryHandler := handlers.NewInventoryHandler(db, deps.Ledger)
	adminHandler := handlers.NewAdminHandler(db, deps.Orders)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Payment gateway callback, shared-secret authenticated
	api.Post("/payments/webhook",
		middleware.WebhookAuthMiddleware(cfg.WebhookSecret),
		paymentHandler.Webhook)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Get("/stores/nearest", storeHandler.Nearest)

	protected.Post("/orders", orderHandler.Create)
	protected.Get("/orders", orderHandler.List)
	protected.Get("/orders/:id", orderHandler.Get)
	protected.Patch("/orders/:id/cancel", orderHandler.Cancel)
	protected.Patch("/orders/:id/confirm", orderHandler.ConfirmReceipt)
	protected.Post("/orders/:id/payment-proof", orderHandler.UploadPaymentProof)

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)
	protected.Get("/profile/addresses", profileHandler.ListAddresses)
	protected.Post("/profile/addresses", profileHandler.CreateAddress)
	protected.Put("/profile/addresses/:id", profileHandler.UpdateAddress)
	protected.Delete("/profile/addresses/:id", profileHandler.DeleteAddress)

	// Admin routes
	admin := protected.Group("/admin", middleware.RequireAdmin())

	admin.Get("/dashboard", adminHandler.DashboardStats)
	admin.Get("/orders", adminHandler.ListAllOrders)
	admin.Get("/orders/counts", adminHandler.OrderCounts)
	admin.Patch("/orders/:id/payment/confirm", adminHandler.ConfirmPayment)
	admin.Patch("/orders/:id/payment/reject", adminHandler.RejectPayment)
	admin.Patch("/orders/:id/ship", adminHandler.Ship)
	admin.Patch("/orders/:id/cancel", adminHandler.Cancel)

	admin.Get("/inventory", inventoryHandler.Levels)
	admin.Get("/inventory/journal", inventoryHandler.Journal)
	admin.Post("/inventory/adjust", inventoryHandler.Adjust)
	admin.Post("/inventory/transfer", inventoryHandler.Transfer)
}
