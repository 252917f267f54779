package api

import (
	"errors"

	"fin-advisor/docs"
	"fin-advisor/internal/api/handlers"
	"fin-advisor/pkg/auth"
	"fin-advisor/pkg/config"
	"fin-advisor/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
)

// Handlers groups the HTTP handlers. A nil Auth handler leaves the local
// account routes unmounted, which is the case when tokens come from OIDC.
type Handlers struct {
	Auth     *handlers.AuthHandler
	Advice   *handlers.AdviceHandler
	Profile  *handlers.ProfileHandler
	Realtime *handlers.RealtimeHandler
}

func SetupRouter(h Handlers, verifier auth.TokenVerifier, serverCfg *config.ServerConfig, appLogger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal server error"
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
				message = e.Message
			} else {
				appLogger.Error("Unhandled request error", zap.Error(err), zap.String("path", c.Path()))
			}
			return c.Status(code).JSON(fiber.Map{
				"error": message,
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())

	// importing docs registers the spec with swag
	_ = docs.SwaggerInfo
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Welcome to GenAI Financial Assistant!"})
	})
	app.Get("/healthcheck", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "OK"})
	})

	if h.Auth != nil {
		authRoutes := app.Group("/user/auth")
		authRoutes.Post("/register", h.Auth.Register)
		authRoutes.Post("/login", h.Auth.Login)
		authRoutes.Post("/refresh", h.Auth.RefreshToken)
	}

	// Protected routes
	protected := app.Group("/api/v1", middleware.AuthMiddleware(verifier, appLogger))

	protected.Post("/ask", h.Advice.Ask)
	protected.Post("/recommend", h.Advice.Recommend)
	protected.Post("/corpus/refresh", h.Advice.RefreshCorpus)

	protected.Get("/profile", h.Profile.GetProfile)
	protected.Put("/profile", h.Profile.UpdateProfile)

	protected.Get("/ws", h.Realtime.RequireUpgrade, h.Realtime.Stream())

	return app
}
