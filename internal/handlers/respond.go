package handlers

import (
	"errors"

	"github.com/caretide/provider-admin/internal/dto"
	"github.com/caretide/provider-admin/internal/services"
	"github.com/gofiber/fiber/v2"
)

// respondServiceError maps the service error taxonomy onto HTTP:
// validation failures become field errors, scope misses 404, privilege
// problems 403, business-invariant violations an error toast with 409.
func respondServiceError(c *fiber.Ctx, err error) error {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ValidationResponse{
			Error:  true,
			Fields: ve.Fields,
		})
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Not found",
		})
	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrSystemAdminProtected):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, services.ErrSelfAction),
		errors.Is(err, services.ErrLastCustomerAdmin),
		errors.Is(err, services.ErrConfirmMismatch),
		errors.Is(err, services.ErrHasNPIAssignments),
		errors.Is(err, services.ErrNPIGroupMismatch),
		errors.Is(err, services.ErrNPITaken),
		errors.Is(err, services.ErrNameTaken),
		errors.Is(err, services.ErrCustomerInUse),
		errors.Is(err, services.ErrGroupInUse),
		errors.Is(err, services.ErrNotLinkedToPCG):
		return errorToast(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrRegistrationCall):
		return errorToast(c, fiber.StatusBadGateway, "The registration service is unavailable, please try again")
	case errors.Is(err, services.ErrUnknownIntent):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Unknown intent",
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Message: "Internal server error",
	})
}

func errorToast(c *fiber.Ctx, status int, description string) error {
	return c.Status(status).JSON(dto.MutationResponse{
		Toast: dto.Toast{Type: "error", Title: "Action failed", Description: description},
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: msg,
	})
}
