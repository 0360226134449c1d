package routes

import (
	"time"

	"github.com/caretide/provider-admin/internal/config"
	"github.com/caretide/provider-admin/internal/handlers"
	"github.com/caretide/provider-admin/internal/metrics"
	"github.com/caretide/provider-admin/internal/middleware"
	"github.com/caretide/provider-admin/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	authService *services.AuthService,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	userHandler *handlers.UserHandler,
	providerHandler *handlers.ProviderHandler,
	customerHandler *handlers.CustomerHandler,
	syncHandler *handlers.SyncHandler,
) {
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api")

	// General API rate limiter: 120 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               120,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Auth routes get a stricter rate limit; login needs no session
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/login", authHandler.Login)

	// Everything below needs a verified JWT plus a live session row.
	protected := []fiber.Handler{
		middleware.JWTProtected(cfg),
		middleware.RequireSession(authService),
	}

	api.Post("/auth/logout", append(protected, authHandler.Logout)...)
	api.Post("/auth/change-password", append(protected, authHandler.ChangePassword)...)

	api.Get("/users", append(protected, userHandler.List)...)
	api.Get("/users/:id", append(protected, userHandler.Get)...)
	api.Post("/users", append(protected, userHandler.Mutate)...)

	api.Get("/providers", append(protected, providerHandler.List)...)
	api.Get("/providers/:id", append(protected, providerHandler.Get)...)
	api.Post("/providers", append(protected, providerHandler.Mutate)...)

	api.Get("/submissions", append(protected, providerHandler.ListSubmissions)...)

	api.Get("/customers", append(protected, customerHandler.ListCustomers)...)
	api.Post("/customers", append(protected, customerHandler.MutateCustomer)...)

	api.Get("/provider-groups", append(protected, customerHandler.ListGroups)...)
	api.Post("/provider-groups", append(protected, customerHandler.MutateGroup)...)

	api.Post("/sync/providers/:customerId", append(protected, syncHandler.Run)...)
}
