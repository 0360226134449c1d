package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/caretide/provider-admin/internal/dto"
	"github.com/caretide/provider-admin/internal/models"
	"github.com/caretide/provider-admin/internal/pcg"
	"github.com/caretide/provider-admin/internal/scope"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNPITaken         = errors.New("a provider with this NPI already exists")
	ErrNotLinkedToPCG   = errors.New("provider is not linked to the registration service")
	ErrRegistrationCall = errors.New("registration service call failed")
)

var npiRe = regexp.MustCompile(`^[0-9]{10}$`)

// RegistrationClient is the outbound contract to the PCG service. The
// concrete client lives in internal/pcg; tests substitute a fake.
type RegistrationClient interface {
	ListProviders(page, pageSize int) ([]pcg.ProviderRecord, int, error)
	UpdateProvider(pcgProviderID string, req *pcg.UpdateProviderRequest) (json.RawMessage, error)
	RegisterEmdr(pcgProviderID string) (*pcg.RegistrationStatus, error)
	DeregisterEmdr(pcgProviderID string) (*pcg.RegistrationStatus, error)
	SetElectronicOnly(pcgProviderID string) (*pcg.RegistrationStatus, error)
	GetRegistrationStatus(pcgProviderID string) (*pcg.RegistrationStatus, error)
}

type ProviderService struct {
	db  *gorm.DB
	pcg RegistrationClient
}

func NewProviderService(db *gorm.DB, client RegistrationClient) *ProviderService {
	return &ProviderService{db: db, pcg: client}
}

func (s *ProviderService) List(caller scope.Caller) ([]models.Provider, error) {
	var providers []models.Provider
	err := s.db.Scopes(scope.ProvidersVisible(caller)).Order("name ASC").Find(&providers).Error
	return providers, err
}

func (s *ProviderService) Get(caller scope.Caller, id uuid.UUID) (*models.Provider, error) {
	var provider models.Provider
	if err := s.db.Scopes(scope.ProvidersVisible(caller)).First(&provider, "providers.id = ?", id).Error; err != nil {
		return nil, ErrNotFound
	}
	return &provider, nil
}

// RegistrationFor returns the stored registration snapshot, nil if the
// sync has not reached this provider yet.
func (s *ProviderService) RegistrationFor(providerID uuid.UUID) *models.ProviderRegistrationStatus {
	var status models.ProviderRegistrationStatus
	if err := s.db.First(&status, "provider_id = ?", providerID).Error; err != nil {
		return nil
	}
	return &status
}

func (s *ProviderService) Create(caller scope.Caller, req *dto.ProviderMutationRequest) (*models.Provider, error) {
	if !caller.Role.AdminForCustomer() {
		return nil, ErrForbidden
	}

	fields := dto.FieldErrors{}
	npi := strings.TrimSpace(req.NPI)
	name := strings.TrimSpace(req.Name)
	if !npiRe.MatchString(npi) {
		fields["npi"] = "NPI must be exactly 10 digits"
	}
	if name == "" {
		fields["name"] = "name is required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	var count int64
	if err := s.db.Model(&models.Provider{}).Where("npi = ?", npi).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrNPITaken
	}

	groupID, err := s.resolveGroup(caller.CustomerID, req.ProviderGroupID)
	if err != nil {
		return nil, err
	}

	provider := models.Provider{
		ID:              uuid.New(),
		CustomerID:      caller.CustomerID,
		ProviderGroupID: groupID,
		NPI:             npi,
		Name:            name,
		AddressLine1:    strings.TrimSpace(req.AddressLine1),
		AddressLine2:    strings.TrimSpace(req.AddressLine2),
		City:            strings.TrimSpace(req.City),
		State:           strings.ToUpper(strings.TrimSpace(req.State)),
		Zip:             strings.TrimSpace(req.Zip),
		Active:          true,
	}
	if err := s.db.Create(&provider).Error; err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	slog.Info("provider created", "provider_id", provider.ID.String(), "npi", npi, "action", "provider.create")
	return &provider, nil
}

// Update writes local changes and pushes them to PCG when the provider is
// linked. The PCG push is best-effort: the local write stands even when
// the outbound call fails.
func (s *ProviderService) Update(caller scope.Caller, req *dto.ProviderMutationRequest) (*models.Provider, error) {
	if !caller.Role.AdminForCustomer() {
		return nil, ErrForbidden
	}

	provider, err := s.targetInScope(caller, req.ProviderID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Fields: dto.FieldErrors{"name": "name is required"}}
	}

	groupID, err := s.resolveGroup(provider.CustomerID, req.ProviderGroupID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"name":              name,
		"provider_group_id": groupID,
		"address_line1":     strings.TrimSpace(req.AddressLine1),
		"address_line2":     strings.TrimSpace(req.AddressLine2),
		"city":              strings.TrimSpace(req.City),
		"state":             strings.ToUpper(strings.TrimSpace(req.State)),
		"zip":               strings.TrimSpace(req.Zip),
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if err := s.db.Model(provider).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update provider: %w", err)
	}

	if provider.PCGProviderID != "" {
		raw, err := s.pcg.UpdateProvider(provider.PCGProviderID, &pcg.UpdateProviderRequest{
			NPI:          provider.NPI,
			Name:         name,
			AddressLine1: provider.AddressLine1,
			AddressLine2: provider.AddressLine2,
			City:         provider.City,
			State:        provider.State,
			Zip:          provider.Zip,
		})
		if err != nil {
			slog.Error("PCG provider update failed",
				"provider_id", provider.ID.String(),
				"action", "provider.update",
				"error", err)
		} else if len(raw) > 0 {
			s.db.Model(provider).Update("last_update_response", datatypes.JSON(raw))
		}
	}

	slog.Info("provider updated", "provider_id", provider.ID.String(), "action", "provider.update")
	return provider, nil
}

// SetEmdr drives the register / deregister / electronic-only transitions
// via PCG and persists the returned snapshot. Unlike the demographic
// push, a failed PCG call here fails the whole operation.
func (s *ProviderService) SetEmdr(caller scope.Caller, req *dto.ProviderMutationRequest) (*models.ProviderRegistrationStatus, error) {
	if !caller.Role.AdminForCustomer() {
		return nil, ErrForbidden
	}

	provider, err := s.targetInScope(caller, req.ProviderID)
	if err != nil {
		return nil, err
	}
	if provider.PCGProviderID == "" {
		return nil, ErrNotLinkedToPCG
	}

	var status *pcg.RegistrationStatus
	switch req.Intent {
	case dto.IntentRegisterEmdr:
		status, err = s.pcg.RegisterEmdr(provider.PCGProviderID)
	case dto.IntentDeregisterEmdr:
		status, err = s.pcg.DeregisterEmdr(provider.PCGProviderID)
	case dto.IntentElectronicOnly:
		status, err = s.pcg.SetElectronicOnly(provider.PCGProviderID)
	default:
		return nil, ErrUnknownIntent
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistrationCall, err)
	}

	record, err := s.upsertStatus(s.db, provider.ID, status, "")
	if err != nil {
		return nil, err
	}

	slog.Info("emdr state changed",
		"provider_id", provider.ID.String(),
		"intent", req.Intent,
		"action", "provider.emdr")
	return record, nil
}

func (s *ProviderService) ListSubmissions(caller scope.Caller) ([]models.Submission, error) {
	var submissions []models.Submission
	err := s.db.Scopes(scope.SubmissionsVisible(caller)).
		Order("submitted_at DESC").Limit(500).Find(&submissions).Error
	return submissions, err
}

func (s *ProviderService) targetInScope(caller scope.Caller, rawID string) (*models.Provider, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.Get(caller, id)
}

func (s *ProviderService) resolveGroup(customerID uuid.UUID, rawID string) (*uuid.UUID, error) {
	if rawID == "" {
		return nil, nil
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, &ValidationError{Fields: dto.FieldErrors{"provider_group_id": "invalid provider group id"}}
	}
	var group models.ProviderGroup
	if err := s.db.First(&group, "id = ? AND customer_id = ?", id, customerID).Error; err != nil {
		return nil, &ValidationError{Fields: dto.FieldErrors{"provider_group_id": "provider group does not belong to this customer"}}
	}
	return &id, nil
}

// upsertStatus overwrites the stored registration snapshot for one
// provider. A nil status with a non-empty fetchErr records the failure so
// one bad lookup never blocks the rest of a sync run.
func (s *ProviderService) upsertStatus(db *gorm.DB, providerID uuid.UUID, status *pcg.RegistrationStatus, fetchErr string) (*models.ProviderRegistrationStatus, error) {
	record := models.ProviderRegistrationStatus{
		ID:         uuid.New(),
		ProviderID: providerID,
		Errors:     fetchErr,
		FetchedAt:  time.Now(),
	}
	if status != nil {
		record.RegStatus = status.RegStatus
		record.Stage = status.Stage
		record.TransactionID = status.TransactionID
		record.EmdrRegistered = status.EmdrRegistered
		record.ElectronicOnly = status.ElectronicOnly
	}

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"reg_status", "stage", "transaction_id",
			"emdr_registered", "electronic_only", "errors", "fetched_at", "updated_at",
		}),
	}).Create(&record).Error
	if err != nil {
		return nil, fmt.Errorf("failed to store registration status: %w", err)
	}
	return &record, nil
}
