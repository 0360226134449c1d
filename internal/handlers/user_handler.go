package handlers

import (
	"github.com/caretide/provider-admin/internal/dto"
	"github.com/caretide/provider-admin/internal/scope"
	"github.com/caretide/provider-admin/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) List(c *fiber.Ctx) error {
	caller, err := scope.CallerFromCtx(c)
	if err != nil {
		return unauthorized(c)
	}

	users, err := h.users.List(caller)
	if err != nil {
		return respondServiceError(c, err)
	}

	out := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, services.UserToResponse(&users[i]))
	}
	return c.JSON(out)
}

func (h *UserHandler) Get(c *fiber.Ctx) error {
	caller, err := scope.CallerFromCtx(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid user id")
	}

	user, err := h.users.Get(caller, id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(services.UserToResponse(user))
}

// Mutate dispatches the user form submission on its intent field.
func (h *UserHandler) Mutate(c *fiber.Ctx) error {
	caller, err := scope.CallerFromCtx(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.UserMutationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	switch req.Intent {
	case dto.IntentCreate:
		user, err := h.users.Create(caller, &req)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(
			dto.SuccessToast("User created", user.Name+" has been created and emailed their temporary password.", "/users"))

	case dto.IntentUpdate:
		user, err := h.users.Update(caller, &req)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(dto.SuccessToast("User updated", user.Name+" has been updated.", "/users"))

	case dto.IntentDelete:
		if err := h.users.Delete(caller, &req); err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(dto.SuccessToast("User deleted", "The user and their sessions have been removed.", "/users"))

	case dto.IntentResetPassword:
		if err := h.users.ResetPassword(caller, &req); err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(dto.SuccessToast("Password reset", "A new temporary password has been issued.", "/users"))

	case dto.IntentAssignNPIs:
		if err := h.users.AssignNPIs(caller, &req); err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(dto.SuccessToast("NPIs assigned", "Provider assignments have been replaced.", "/users"))

	case dto.IntentSetActive:
		if err := h.users.SetActive(caller, &req); err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(dto.SuccessToast("Status changed", "The account status has been updated.", "/users"))

	case dto.IntentCheckAvailability:
		exists, err := h.users.CheckAvailability(req.Field, req.Value)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(dto.AvailabilityResponse{Exists: exists})
	}

	return respondServiceError(c, services.ErrUnknownIntent)
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Unauthorized",
	})
}
