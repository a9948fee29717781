package config

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MVictoriaDoll/NutriChoice/internal/api/handlers"
	"github.com/MVictoriaDoll/NutriChoice/internal/api/routes"
	"github.com/MVictoriaDoll/NutriChoice/internal/middleware"
	"github.com/MVictoriaDoll/NutriChoice/internal/utils"
	"github.com/MVictoriaDoll/NutriChoice/internal/utils/storage"
	"github.com/MVictoriaDoll/NutriChoice/pkg/ai"
	"github.com/MVictoriaDoll/NutriChoice/pkg/extraction"
	"github.com/MVictoriaDoll/NutriChoice/pkg/jwt"
	"github.com/MVictoriaDoll/NutriChoice/pkg/receipt"
	"github.com/MVictoriaDoll/NutriChoice/pkg/user"
)

func NewApp(db *gorm.DB, appLogger *zap.Logger) (*fiber.App, error) {
	utils.InitValidator()
	app := fiber.New(fiber.Config{
		EnablePrintRoutes: true,
		BodyLimit:         8 * 1024 * 1024,
	})
	middlewares := middleware.NewMiddleware()
	validator := utils.Validate

	// setting up logging and limiter
	err := os.MkdirAll("./logs", os.ModePerm)
	if err != nil {
		log.Fatalf("error creating logs directory: %v", err)
	}
	file, err := os.OpenFile(
		"./logs/app.log",
		os.O_RDWR|os.O_CREATE|os.O_APPEND,
		0666,
	)
	if err != nil {
		log.Fatalf("error opening file: %v", err)
	}
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
		Output:     file,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Second,
	}))

	// utils
	s3 := storage.NewAwsS3()
	aiService := ai.NewGeminiService(
		utils.GetConfig("GEMINI_API_KEY"),
		utils.GetConfig("GEMINI_MODEL"),
		appLogger,
	)

	// Repository
	userRepository := user.NewUserRepository(db)
	receiptRepository := receipt.NewReceiptRepository(db)

	// Service
	jwtService := jwt.NewJWTService()
	userService := user.NewUserService(userRepository)
	extractor := extraction.NewTextExtractor(aiService, appLogger)
	analyzer := receipt.NewReceiptAnalyzer(aiService, appLogger)
	receiptService := receipt.NewReceiptService(receiptRepository, analyzer, extractor, s3, appLogger)

	// Handler
	userHandler := handlers.NewUserHandler(userService, validator)
	receiptHandler := handlers.NewReceiptHandler(receiptService, validator)

	// routes
	routesConfig := routes.Config{
		App:            app,
		ReceiptHandler: receiptHandler,
		UserHandler:    userHandler,
		Middleware:     middlewares,
		JWTService:     jwtService,
		UserService:    userService,
	}
	routesConfig.Setup()
	return app, nil
}
