package scope

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

const callerLocal = "caller"

// SetCaller stores the resolved caller in Fiber context locals.
func SetCaller(c *fiber.Ctx, caller Caller) {
	c.Locals(callerLocal, caller)
}

// CallerFromCtx extracts the caller placed by the auth middleware.
func CallerFromCtx(c *fiber.Ctx) (Caller, error) {
	caller, ok := c.Locals(callerLocal).(Caller)
	if !ok {
		return Caller{}, errors.New("no caller in context")
	}
	return caller, nil
}
