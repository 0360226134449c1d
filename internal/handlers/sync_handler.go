package handlers

import (
	"github.com/caretide/provider-admin/internal/scope"
	"github.com/caretide/provider-admin/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type SyncHandler struct {
	sync *services.SyncService
}

func NewSyncHandler(sync *services.SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// Run triggers a full provider/eMDR sync against PCG for one customer.
// System admins only; the call is synchronous and can take a while on
// large registries.
func (h *SyncHandler) Run(c *fiber.Ctx) error {
	caller, err := scope.CallerFromCtx(c)
	if err != nil {
		return unauthorized(c)
	}

	customerID, err := uuid.Parse(c.Params("customerId"))
	if err != nil {
		return badRequest(c, "Invalid customer id")
	}

	resp, err := h.sync.SyncProviders(caller, customerID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(resp)
}
