package services

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/caretide/provider-admin/internal/config"
	"github.com/caretide/provider-admin/internal/dto"
	"github.com/caretide/provider-admin/internal/mailer"
	"github.com/caretide/provider-admin/internal/models"
	"github.com/caretide/provider-admin/internal/password"
	"github.com/caretide/provider-admin/internal/scope"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrForbidden            = errors.New("operation not permitted")
	ErrNotFound             = errors.New("record not found")
	ErrSelfAction           = errors.New("cannot perform this action on your own account")
	ErrSystemAdminProtected = errors.New("system administrator accounts cannot be managed here")
	ErrLastCustomerAdmin    = errors.New("the last customer admin for a customer cannot be deleted")
	ErrConfirmMismatch      = errors.New("username confirmation does not match")
	ErrHasNPIAssignments    = errors.New("user still holds NPI assignments; remove them first")
	ErrNPIGroupMismatch     = errors.New("one or more providers are outside the user's provider group")
	ErrUnknownIntent        = errors.New("unknown intent")
)

// ValidationError carries field-level form errors. No mutation has been
// applied when it is returned.
type ValidationError struct {
	Fields dto.FieldErrors
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

type UserService struct {
	db     *gorm.DB
	cfg    *config.Config
	mailer mailer.Mailer
}

func NewUserService(db *gorm.DB, cfg *config.Config, m mailer.Mailer) *UserService {
	return &UserService{db: db, cfg: cfg, mailer: m}
}

// List returns the users visible to the caller.
func (s *UserService) List(caller scope.Caller) ([]models.User, error) {
	var users []models.User
	err := s.db.Scopes(scope.UsersVisible(caller)).Order("name ASC").Find(&users).Error
	return users, err
}

// Get returns one user if the caller may see them; out-of-scope ids are
// indistinguishable from missing ones.
func (s *UserService) Get(caller scope.Caller, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.Scopes(scope.UsersVisible(caller)).First(&user, "users.id = ?", id).Error; err != nil {
		return nil, ErrNotFound
	}
	return &user, nil
}

// Create provisions a user with a generated temporary password and sends
// the registration email best-effort.
func (s *UserService) Create(caller scope.Caller, req *dto.UserMutationRequest) (*models.User, error) {
	if !canManageUsers(caller) {
		return nil, ErrForbidden
	}

	fields := dto.FieldErrors{}
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.ToLower(strings.TrimSpace(req.Username))
	role := scope.Role(req.Role)

	if name == "" {
		fields["name"] = "name is required"
	}
	if !emailRe.MatchString(email) {
		fields["email"] = "a valid email address is required"
	}
	if !usernameRe.MatchString(username) {
		fields["username"] = "username must be 3-32 characters, letters, digits and underscore only"
	}
	if !role.Assignable() {
		fields["role"] = "role must be one of customer-admin, provider-group-admin, basic-user"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if role.IsCustomerAdmin() && !caller.Role.AdminForCustomer() {
		return nil, ErrForbidden
	}

	// Duplicate checks are case-insensitive and surfaced per field.
	if exists, err := s.loginTaken("email", email); err != nil {
		return nil, err
	} else if exists {
		fields["email"] = "email is already in use"
	}
	if exists, err := s.loginTaken("username", username); err != nil {
		return nil, err
	} else if exists {
		fields["username"] = "username is already in use"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	customerID, err := s.resolveCustomer(caller, req.CustomerID)
	if err != nil {
		return nil, err
	}

	groupID, groupName, err := s.resolveGroup(caller, customerID, role, req.ProviderGroupID)
	if err != nil {
		return nil, err
	}

	tempPassword, err := password.Generate()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	user := models.User{
		ID:                 uuid.New(),
		CustomerID:         customerID,
		ProviderGroupID:    groupID,
		Name:               name,
		Email:              email,
		Username:           username,
		Role:               string(role),
		PasswordHash:       string(hash),
		Active:             active,
		MustChangePassword: true,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	var customer models.Customer
	customerName := ""
	if err := s.db.First(&customer, "id = ?", customerID).Error; err == nil {
		customerName = customer.Name
	}

	mailer.SendBestEffort(s.mailer, &mailer.Message{
		To:                email,
		Template:          "registration",
		UserName:          name,
		UserRole:          string(role),
		CustomerName:      customerName,
		TempPassword:      tempPassword,
		LoginURL:          s.cfg.LoginURL,
		Username:          username,
		ProviderGroupName: groupName,
	})

	slog.Info("user created",
		"user_id", user.ID.String(),
		"customer_id", customerID.String(),
		"role", user.Role,
		"action", "user.create")
	return &user, nil
}

// Update edits name, role, group and active flag. Email and username are
// immutable through this path. The role is replaced wholesale.
func (s *UserService) Update(caller scope.Caller, req *dto.UserMutationRequest) (*models.User, error) {
	if !canManageUsers(caller) {
		return nil, ErrForbidden
	}

	target, err := s.targetInScope(caller, req.UserID)
	if err != nil {
		return nil, err
	}
	if scope.Role(target.Role).IsSystemAdmin() {
		return nil, ErrSystemAdminProtected
	}
	// Touching an existing customer-admin needs customer-admin privilege.
	if scope.Role(target.Role).IsCustomerAdmin() && !caller.Role.AdminForCustomer() {
		return nil, ErrForbidden
	}

	fields := dto.FieldErrors{}
	name := strings.TrimSpace(req.Name)
	role := scope.Role(req.Role)
	if name == "" {
		fields["name"] = "name is required"
	}
	if !role.Assignable() {
		fields["role"] = "role must be one of customer-admin, provider-group-admin, basic-user"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	if role.IsCustomerAdmin() && !caller.Role.AdminForCustomer() {
		return nil, ErrForbidden
	}

	groupID, _, err := s.resolveGroup(caller, target.CustomerID, role, req.ProviderGroupID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"name":              name,
		"role":              string(role),
		"provider_group_id": groupID,
	}

	if req.Active != nil && *req.Active != target.Active {
		if err := s.guardActiveTransition(caller, target, *req.Active); err != nil {
			return nil, err
		}
		updates["active"] = *req.Active
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(target).Updates(updates).Error; err != nil {
			return err
		}
		if active, ok := updates["active"].(bool); ok && !active {
			return tx.Where("user_id = ?", target.ID).Delete(&models.Session{}).Error
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	slog.Info("user updated", "user_id", target.ID.String(), "action", "user.update")
	return target, nil
}

// Delete removes a user, their NPI assignments and sessions in one
// transaction. Guards run in order; the first failure wins with no
// partial effects.
func (s *UserService) Delete(caller scope.Caller, req *dto.UserMutationRequest) error {
	if !canManageUsers(caller) {
		return ErrForbidden
	}

	target, err := s.targetInScope(caller, req.UserID)
	if err != nil {
		return err
	}
	if scope.Role(target.Role).IsSystemAdmin() {
		return ErrSystemAdminProtected
	}
	if target.ID == caller.UserID {
		return ErrSelfAction
	}
	if caller.Role.IsSystemAdmin() &&
		!strings.EqualFold(strings.TrimSpace(req.ConfirmUsername), target.Username) {
		return ErrConfirmMismatch
	}
	if scope.Role(target.Role).IsCustomerAdmin() {
		last, err := s.isLastCustomerAdmin(target)
		if err != nil {
			return err
		}
		if last {
			return ErrLastCustomerAdmin
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Assignments and sessions must go before the user row.
		if err := tx.Where("user_id = ?", target.ID).Delete(&models.UserNPI{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", target.ID).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		return tx.Delete(target).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user deleted", "user_id", target.ID.String(), "action", "user.delete")
	return nil
}

// ResetPassword sets a new password (generated or admin-supplied), revokes
// every session and forces a change on next login. The notification email
// is best-effort.
func (s *UserService) ResetPassword(caller scope.Caller, req *dto.UserMutationRequest) error {
	if !canManageUsers(caller) {
		return ErrForbidden
	}

	target, err := s.targetInScope(caller, req.UserID)
	if err != nil {
		return err
	}
	if scope.Role(target.Role).IsSystemAdmin() {
		return ErrSystemAdminProtected
	}

	var newPassword string
	switch req.Mode {
	case "auto", "":
		newPassword, err = password.Generate()
		if err != nil {
			return err
		}
	case "manual":
		if err := password.Validate(req.NewPassword); err != nil {
			return &ValidationError{Fields: dto.FieldErrors{
				"new_password": "password must be at least 12 characters with upper, lower, digit and special characters",
			}}
		}
		newPassword = req.NewPassword
	default:
		return &ValidationError{Fields: dto.FieldErrors{"mode": "mode must be auto or manual"}}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(target).Updates(map[string]interface{}{
			"password_hash":        string(hash),
			"must_change_password": true,
		}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", target.ID).Delete(&models.Session{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	mailer.SendBestEffort(s.mailer, &mailer.Message{
		To:           target.Email,
		Template:     "password-reset",
		UserName:     target.Name,
		UserRole:     target.Role,
		TempPassword: newPassword,
		LoginURL:     s.cfg.LoginURL,
		Username:     target.Username,
	})

	slog.Info("password reset", "user_id", target.ID.String(), "action", "user.reset-password")
	return nil
}

// AssignNPIs replaces the target's provider assignments with the
// submitted set. The group invariant is checked across the whole set
// before anything is written: one bad id rejects the entire submission.
func (s *UserService) AssignNPIs(caller scope.Caller, req *dto.UserMutationRequest) error {
	if !canManageUsers(caller) {
		return ErrForbidden
	}

	target, err := s.targetInScope(caller, req.UserID)
	if err != nil {
		return err
	}
	if scope.Role(target.Role).IsSystemAdmin() {
		return ErrSystemAdminProtected
	}

	providerIDs := make([]uuid.UUID, 0, len(req.ProviderIDs))
	for _, raw := range req.ProviderIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return &ValidationError{Fields: dto.FieldErrors{"provider_ids": "invalid provider id: " + raw}}
		}
		providerIDs = append(providerIDs, id)
	}

	var providers []models.Provider
	if len(providerIDs) > 0 {
		err = s.db.Scopes(scope.ProvidersVisible(caller)).
			Where("providers.id IN ? AND providers.customer_id = ? AND providers.active = ?",
				providerIDs, target.CustomerID, true).
			Find(&providers).Error
		if err != nil {
			return err
		}
		if len(providers) != len(providerIDs) {
			return &ValidationError{Fields: dto.FieldErrors{
				"provider_ids": "one or more providers do not exist, are inactive or are out of scope",
			}}
		}
		for _, p := range providers {
			if !sameGroup(target.ProviderGroupID, p.ProviderGroupID) {
				return ErrNPIGroupMismatch
			}
		}
	}

	assignments := make([]models.UserNPI, 0, len(providers))
	for _, p := range providers {
		assignments = append(assignments, models.UserNPI{
			ID:         uuid.New(),
			UserID:     target.ID,
			ProviderID: p.ID,
		})
	}

	// Full replace, not a diff: concurrent submissions for the same user
	// are last-write-wins.
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", target.ID).Delete(&models.UserNPI{}).Error; err != nil {
			return err
		}
		if len(assignments) == 0 {
			return nil
		}
		return tx.Create(&assignments).Error
	})
	if err != nil {
		return fmt.Errorf("failed to assign providers: %w", err)
	}

	slog.Info("npi assignments replaced",
		"user_id", target.ID.String(),
		"count", len(assignments),
		"action", "user.assign-npis")
	return nil
}

// SetActive flips the active flag. Deactivation is refused while the
// target holds NPI assignments and always revokes sessions.
func (s *UserService) SetActive(caller scope.Caller, req *dto.UserMutationRequest) error {
	if !canManageUsers(caller) {
		return ErrForbidden
	}
	if req.Active == nil {
		return &ValidationError{Fields: dto.FieldErrors{"active": "active is required"}}
	}

	target, err := s.targetInScope(caller, req.UserID)
	if err != nil {
		return err
	}
	if scope.Role(target.Role).IsSystemAdmin() {
		return ErrSystemAdminProtected
	}
	if err := s.guardActiveTransition(caller, target, *req.Active); err != nil {
		return err
	}
	if *req.Active == target.Active {
		return nil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(target).Update("active", *req.Active).Error; err != nil {
			return err
		}
		if !*req.Active {
			return tx.Where("user_id = ?", target.ID).Delete(&models.Session{}).Error
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to change active state: %w", err)
	}

	slog.Info("user active state changed",
		"user_id", target.ID.String(),
		"active", *req.Active,
		"action", "user.set-active")
	return nil
}

// CheckAvailability answers the live form check for email and username.
func (s *UserService) CheckAvailability(field, value string) (bool, error) {
	switch field {
	case "email", "username":
	default:
		return false, &ValidationError{Fields: dto.FieldErrors{"field": "field must be email or username"}}
	}
	return s.loginTaken(field, strings.ToLower(strings.TrimSpace(value)))
}

func (s *UserService) loginTaken(column, value string) (bool, error) {
	var count int64
	err := s.db.Model(&models.User{}).
		Where("LOWER("+column+") = ?", value).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", column, err)
	}
	return count > 0, nil
}

func (s *UserService) targetInScope(caller scope.Caller, rawID string) (*models.User, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.Get(caller, id)
}

func (s *UserService) resolveCustomer(caller scope.Caller, rawID string) (uuid.UUID, error) {
	if caller.Role.IsSystemAdmin() && rawID != "" {
		id, err := uuid.Parse(rawID)
		if err != nil {
			return uuid.Nil, &ValidationError{Fields: dto.FieldErrors{"customer_id": "invalid customer id"}}
		}
		var customer models.Customer
		if err := s.db.First(&customer, "id = ?", id).Error; err != nil {
			return uuid.Nil, &ValidationError{Fields: dto.FieldErrors{"customer_id": "customer not found"}}
		}
		return id, nil
	}
	return caller.CustomerID, nil
}

// resolveGroup computes the effective provider group for a create/update:
// forced nil for customer-admin targets, forced to the caller's own group
// for provider-group-admin callers, otherwise validated against the
// target customer.
func (s *UserService) resolveGroup(caller scope.Caller, customerID uuid.UUID, role scope.Role, rawID string) (*uuid.UUID, string, error) {
	if role.IsCustomerAdmin() {
		return nil, "", nil
	}
	if caller.Role.IsProviderGroupAdmin() {
		if caller.ProviderGroupID == nil {
			return nil, "", ErrForbidden
		}
		if rawID != "" && rawID != caller.ProviderGroupID.String() {
			return nil, "", ErrForbidden
		}
		rawID = caller.ProviderGroupID.String()
	}
	if rawID == "" {
		return nil, "", nil
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, "", &ValidationError{Fields: dto.FieldErrors{"provider_group_id": "invalid provider group id"}}
	}
	var group models.ProviderGroup
	if err := s.db.First(&group, "id = ? AND customer_id = ?", id, customerID).Error; err != nil {
		return nil, "", &ValidationError{Fields: dto.FieldErrors{"provider_group_id": "provider group does not belong to this customer"}}
	}
	return &id, group.Name, nil
}

func (s *UserService) guardActiveTransition(caller scope.Caller, target *models.User, active bool) error {
	if active {
		return nil
	}
	if target.ID == caller.UserID {
		return ErrSelfAction
	}
	var count int64
	if err := s.db.Model(&models.UserNPI{}).Where("user_id = ?", target.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrHasNPIAssignments
	}
	return nil
}

func (s *UserService) isLastCustomerAdmin(target *models.User) (bool, error) {
	var count int64
	err := s.db.Model(&models.User{}).
		Where("customer_id = ? AND role = ? AND id <> ?",
			target.CustomerID, string(scope.RoleCustomerAdmin), target.ID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func canManageUsers(caller scope.Caller) bool {
	switch caller.Role {
	case scope.RoleSystemAdmin, scope.RoleCustomerAdmin, scope.RoleProviderGroupAdmin:
		return true
	}
	return false
}

func sameGroup(a, b *uuid.UUID) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
