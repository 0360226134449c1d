package middleware

import (
	"errors"

	"github.com/caretide/provider-admin/internal/config"
	"github.com/caretide/provider-admin/internal/dto"
	"github.com/caretide/provider-admin/internal/scope"
	"github.com/caretide/provider-admin/internal/services"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionLocal = "session_id"

func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Unauthorized: invalid or expired token",
			})
		},
	})
}

// RequireSession runs after JWTProtected: the signature is already
// verified, so the session row in the database decides whether the token
// is still good. It builds the scope caller for everything downstream.
func RequireSession(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals("user").(*jwt.Token)
		if !ok || token == nil {
			return unauthorized(c, "Unauthorized")
		}

		user, session, err := auth.Authenticate(token.Raw)
		if err != nil {
			if errors.Is(err, services.ErrInactiveAccount) {
				return unauthorized(c, "Account is deactivated")
			}
			return unauthorized(c, "Session expired, please sign in again")
		}

		scope.SetCaller(c, services.CallerFor(user))
		c.Locals(sessionLocal, session.ID)

		// A forced password change blocks everything except completing it.
		if user.MustChangePassword {
			path := c.Path()
			if path != "/api/auth/change-password" && path != "/api/auth/logout" {
				return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
					Error:   true,
					Message: "Password change required before continuing",
				})
			}
		}
		return c.Next()
	}
}

// SessionIDFromCtx returns the current session id placed by RequireSession.
func SessionIDFromCtx(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := c.Locals(sessionLocal).(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("no session in context")
	}
	return id, nil
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error:   true,
		Message: msg,
	})
}
