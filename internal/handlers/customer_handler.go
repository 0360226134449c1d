package handlers

import (
	"github.com/caretide/provider-admin/internal/dto"
	"github.com/caretide/provider-admin/internal/scope"
	"github.com/caretide/provider-admin/internal/services"
	"github.com/gofiber/fiber/v2"
)

type CustomerHandler struct {
	customers *services.CustomerService
}

func NewCustomerHandler(customers *services.CustomerService) *CustomerHandler {
	return &CustomerHandler{customers: customers}
}

func (h *CustomerHandler) ListCustomers(c *fiber.Ctx) error {
	caller, err := scope.CallerFromCtx(c)
	if err != nil {
		return unauthorized(c)
	}
	customers, err := h.customers.ListCustomers(caller)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(customers)
}

func (h *CustomerHandler) MutateCustomer(c *fiber.Ctx) error {
	caller, err := scope.CallerFromCtx(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.CustomerMutationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	switch req.Intent {
	case dto.IntentCreate:
		customer, err := h.customers.CreateCustomer(caller, &req)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(
			dto.SuccessToast("Customer created", customer.Name+" has been created.", "/customers"))

	case dto.IntentUpdate:
		customer, err := h.customers.UpdateCustomer(caller, &req)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(dto.SuccessToast("Customer updated", customer.Name+" has been updated.", "/customers"))

	case dto.IntentDelete:
		if err := h.customers.DeleteCustomer(caller, &req); err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(dto.SuccessToast("Customer deleted", "The customer has been removed.", "/customers"))
	}

	return respondServiceError(c, services.ErrUnknownIntent)
}

func (h *CustomerHandler) ListGroups(c *fiber.Ctx) error {
	caller, err := scope.CallerFromCtx(c)
	if err != nil {
		return unauthorized(c)
	}
	groups, err := h.customers.ListGroups(caller)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(groups)
}

func (h *CustomerHandler) MutateGroup(c *fiber.Ctx) error {
	caller, err := scope.CallerFromCtx(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.GroupMutationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	switch req.Intent {
	case dto.IntentCreate:
		group, err := h.customers.CreateGroup(caller, &req)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(
			dto.SuccessToast("Provider group created", group.Name+" has been created.", "/groups"))

	case dto.IntentUpdate:
		group, err := h.customers.UpdateGroup(caller, &req)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(dto.SuccessToast("Provider group updated", group.Name+" has been updated.", "/groups"))

	case dto.IntentDelete:
		if err := h.customers.DeleteGroup(caller, &req); err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(dto.SuccessToast("Provider group deleted", "The provider group has been removed.", "/groups"))
	}

	return respondServiceError(c, services.ErrUnknownIntent)
}
