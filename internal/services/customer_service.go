package services

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caretide/provider-admin/internal/dto"
	"github.com/caretide/provider-admin/internal/models"
	"github.com/caretide/provider-admin/internal/scope"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrCustomerInUse = errors.New("customer still has users or providers")
	ErrGroupInUse    = errors.New("provider group still has users or providers")
	ErrNameTaken     = errors.New("name is already in use")
)

type CustomerService struct {
	db *gorm.DB
}

func NewCustomerService(db *gorm.DB) *CustomerService {
	return &CustomerService{db: db}
}

func (s *CustomerService) ListCustomers(caller scope.Caller) ([]models.Customer, error) {
	var customers []models.Customer
	err := s.db.Scopes(scope.CustomersVisible(caller)).Order("name ASC").Find(&customers).Error
	return customers, err
}

// CreateCustomer provisions a new tenant. System admins only.
func (s *CustomerService) CreateCustomer(caller scope.Caller, req *dto.CustomerMutationRequest) (*models.Customer, error) {
	if !caller.Role.IsSystemAdmin() {
		return nil, ErrForbidden
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Fields: dto.FieldErrors{"name": "name is required"}}
	}

	var count int64
	if err := s.db.Model(&models.Customer{}).Where("LOWER(name) = ?", strings.ToLower(name)).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrNameTaken
	}

	customer := models.Customer{
		ID:           uuid.New(),
		Name:         name,
		ContactName:  strings.TrimSpace(req.ContactName),
		ContactEmail: strings.ToLower(strings.TrimSpace(req.ContactEmail)),
		Active:       true,
	}
	if err := s.db.Create(&customer).Error; err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	slog.Info("customer created", "customer_id", customer.ID.String(), "action", "customer.create")
	return &customer, nil
}

func (s *CustomerService) UpdateCustomer(caller scope.Caller, req *dto.CustomerMutationRequest) (*models.Customer, error) {
	if !caller.Role.IsSystemAdmin() {
		return nil, ErrForbidden
	}

	id, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return nil, ErrNotFound
	}
	var customer models.Customer
	if err := s.db.First(&customer, "id = ?", id).Error; err != nil {
		return nil, ErrNotFound
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Fields: dto.FieldErrors{"name": "name is required"}}
	}

	updates := map[string]interface{}{
		"name":          name,
		"contact_name":  strings.TrimSpace(req.ContactName),
		"contact_email": strings.ToLower(strings.TrimSpace(req.ContactEmail)),
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if err := s.db.Model(&customer).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}
	return &customer, nil
}

// DeleteCustomer refuses while any users or providers remain.
func (s *CustomerService) DeleteCustomer(caller scope.Caller, req *dto.CustomerMutationRequest) error {
	if !caller.Role.IsSystemAdmin() {
		return ErrForbidden
	}

	id, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return ErrNotFound
	}
	var customer models.Customer
	if err := s.db.First(&customer, "id = ?", id).Error; err != nil {
		return ErrNotFound
	}

	var users, providers int64
	if err := s.db.Model(&models.User{}).Where("customer_id = ?", id).Count(&users).Error; err != nil {
		return err
	}
	if err := s.db.Model(&models.Provider{}).Where("customer_id = ?", id).Count(&providers).Error; err != nil {
		return err
	}
	if users > 0 || providers > 0 {
		return ErrCustomerInUse
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("customer_id = ?", id).Delete(&models.ProviderGroup{}).Error; err != nil {
			return err
		}
		return tx.Delete(&customer).Error
	})
}

func (s *CustomerService) ListGroups(caller scope.Caller) ([]models.ProviderGroup, error) {
	var groups []models.ProviderGroup
	err := s.db.Scopes(scope.GroupsVisible(caller)).Order("name ASC").Find(&groups).Error
	return groups, err
}

func (s *CustomerService) CreateGroup(caller scope.Caller, req *dto.GroupMutationRequest) (*models.ProviderGroup, error) {
	if !caller.Role.AdminForCustomer() {
		return nil, ErrForbidden
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Fields: dto.FieldErrors{"name": "name is required"}}
	}

	var count int64
	err := s.db.Model(&models.ProviderGroup{}).
		Where("customer_id = ? AND LOWER(name) = ?", caller.CustomerID, strings.ToLower(name)).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrNameTaken
	}

	group := models.ProviderGroup{
		ID:         uuid.New(),
		CustomerID: caller.CustomerID,
		Name:       name,
	}
	if err := s.db.Create(&group).Error; err != nil {
		return nil, fmt.Errorf("failed to create provider group: %w", err)
	}

	slog.Info("provider group created", "group_id", group.ID.String(), "action", "group.create")
	return &group, nil
}

func (s *CustomerService) UpdateGroup(caller scope.Caller, req *dto.GroupMutationRequest) (*models.ProviderGroup, error) {
	if !caller.Role.AdminForCustomer() {
		return nil, ErrForbidden
	}

	group, err := s.groupInScope(caller, req.GroupID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Fields: dto.FieldErrors{"name": "name is required"}}
	}
	if err := s.db.Model(group).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("failed to update provider group: %w", err)
	}
	return group, nil
}

// DeleteGroup refuses while users or providers are still attached; they
// must be reassigned first.
func (s *CustomerService) DeleteGroup(caller scope.Caller, req *dto.GroupMutationRequest) error {
	if !caller.Role.AdminForCustomer() {
		return ErrForbidden
	}

	group, err := s.groupInScope(caller, req.GroupID)
	if err != nil {
		return err
	}

	var users, providers int64
	if err := s.db.Model(&models.User{}).Where("provider_group_id = ?", group.ID).Count(&users).Error; err != nil {
		return err
	}
	if err := s.db.Model(&models.Provider{}).Where("provider_group_id = ?", group.ID).Count(&providers).Error; err != nil {
		return err
	}
	if users > 0 || providers > 0 {
		return ErrGroupInUse
	}

	return s.db.Delete(group).Error
}

func (s *CustomerService) groupInScope(caller scope.Caller, rawID string) (*models.ProviderGroup, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrNotFound
	}
	var group models.ProviderGroup
	if err := s.db.Scopes(scope.GroupsVisible(caller)).First(&group, "provider_groups.id = ?", id).Error; err != nil {
		return nil, ErrNotFound
	}
	return &group, nil
}
