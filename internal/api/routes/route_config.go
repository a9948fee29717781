package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/MVictoriaDoll/NutriChoice/internal/api/handlers"
	"github.com/MVictoriaDoll/NutriChoice/internal/middleware"
	"github.com/MVictoriaDoll/NutriChoice/pkg/jwt"
	"github.com/MVictoriaDoll/NutriChoice/pkg/user"
)

type Config struct {
	App            *fiber.App
	ReceiptHandler handlers.ReceiptHandler
	UserHandler    handlers.UserHandler
	Middleware     middleware.Middleware
	JWTService     jwt.JWTService
	UserService    user.UserService
}

func (c *Config) Setup() {
	c.App.Use(c.Middleware.CORSMiddleware())
	c.Receipts()
	c.Analysis()
	c.Users()
	c.GuestRoute()
}

func (c *Config) authenticated() []fiber.Handler {
	return []fiber.Handler{
		c.Middleware.AuthMiddleware(c.JWTService),
		c.Middleware.UserContextMiddleware(c.UserService),
	}
}

func (c *Config) Receipts() {
	auth := c.authenticated()
	receipts := c.App.Group("/api/v1/receipts", auth...)

	receipts.Post("/upload", c.ReceiptHandler.UploadReceipt)
	receipts.Get("", c.ReceiptHandler.GetReceipts)
	receipts.Get("/:id", c.ReceiptHandler.GetReceiptDetails)
	receipts.Put("/:id/verify", c.ReceiptHandler.VerifyReceipt)
}

func (c *Config) Analysis() {
	auth := c.authenticated()
	analysis := c.App.Group("/api/v1/analysis", auth...)

	analysis.Get("/summary", c.ReceiptHandler.GetNutritionSummary)
}

func (c *Config) Users() {
	auth := c.authenticated()
	users := c.App.Group("/api/v1/users", auth...)

	users.Get("/me", c.UserHandler.Me)
	users.Put("/me/profile", c.UserHandler.UpdateProfile)
}

func (c *Config) GuestRoute() {
	c.App.Get("/api/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "pong"})
	})
}
