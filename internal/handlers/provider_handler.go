package handlers

import (
	"github.com/caretide/provider-admin/internal/dto"
	"github.com/caretide/provider-admin/internal/models"
	"github.com/caretide/provider-admin/internal/scope"
	"github.com/caretide/provider-admin/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ProviderHandler struct {
	providers *services.ProviderService
}

func NewProviderHandler(providers *services.ProviderService) *ProviderHandler {
	return &ProviderHandler{providers: providers}
}

func (h *ProviderHandler) List(c *fiber.Ctx) error {
	caller, err := scope.CallerFromCtx(c)
	if err != nil {
		return unauthorized(c)
	}

	providers, err := h.providers.List(caller)
	if err != nil {
		return respondServiceError(c, err)
	}

	out := make([]dto.ProviderResponse, 0, len(providers))
	for i := range providers {
		out = append(out, h.toResponse(&providers[i]))
	}
	return c.JSON(out)
}

func (h *ProviderHandler) Get(c *fiber.Ctx) error {
	caller, err := scope.CallerFromCtx(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid provider id")
	}

	provider, err := h.providers.Get(caller, id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(h.toResponse(provider))
}

func (h *ProviderHandler) Mutate(c *fiber.Ctx) error {
	caller, err := scope.CallerFromCtx(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.ProviderMutationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	switch req.Intent {
	case dto.IntentCreate:
		provider, err := h.providers.Create(caller, &req)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(
			dto.SuccessToast("Provider created", provider.Name+" ("+provider.NPI+") has been added.", "/providers"))

	case dto.IntentUpdate:
		provider, err := h.providers.Update(caller, &req)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(dto.SuccessToast("Provider updated", provider.Name+" has been updated.", "/providers"))

	case dto.IntentRegisterEmdr, dto.IntentDeregisterEmdr, dto.IntentElectronicOnly:
		if _, err := h.providers.SetEmdr(caller, &req); err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(dto.SuccessToast("Registration updated", "The eMDR registration state has been changed.", "/providers"))
	}

	return respondServiceError(c, services.ErrUnknownIntent)
}

func (h *ProviderHandler) ListSubmissions(c *fiber.Ctx) error {
	caller, err := scope.CallerFromCtx(c)
	if err != nil {
		return unauthorized(c)
	}

	submissions, err := h.providers.ListSubmissions(caller)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(submissions)
}

func (h *ProviderHandler) toResponse(p *models.Provider) dto.ProviderResponse {
	resp := dto.ProviderResponse{
		ID:              p.ID,
		CustomerID:      p.CustomerID,
		ProviderGroupID: p.ProviderGroupID,
		NPI:             p.NPI,
		Name:            p.Name,
		Active:          p.Active,
	}
	if status := h.providers.RegistrationFor(p.ID); status != nil {
		resp.Registration = &dto.RegistrationStatusResponse{
			RegStatus:      status.RegStatus,
			Stage:          status.Stage,
			TransactionID:  status.TransactionID,
			EmdrRegistered: status.EmdrRegistered,
			ElectronicOnly: status.ElectronicOnly,
			Errors:         status.Errors,
			FetchedAt:      status.FetchedAt,
		}
	}
	return resp
}
