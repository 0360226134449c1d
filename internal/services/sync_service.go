package services

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/caretide/provider-admin/internal/dto"
	"github.com/caretide/provider-admin/internal/models"
	"github.com/caretide/provider-admin/internal/pcg"
	"github.com/caretide/provider-admin/internal/scope"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// syncBatchSize bounds each upsert transaction; batching is for
// transaction size, not parallelism.
const syncBatchSize = 100

type SyncService struct {
	db        *gorm.DB
	pcg       RegistrationClient
	providers *ProviderService
	pageSize  int
}

func NewSyncService(db *gorm.DB, client RegistrationClient, providers *ProviderService, pageSize int) *SyncService {
	return &SyncService{db: db, pcg: client, providers: providers, pageSize: pageSize}
}

// SyncProviders pulls the full provider registry from PCG and merges it
// into the given customer: known NPIs are updated, unknown ones created.
// Each batch commits independently, so a failing batch costs only its own
// rows; partial overall progress is accepted. Registration detail fetches
// run serially afterwards with per-provider fallback error records.
func (s *SyncService) SyncProviders(caller scope.Caller, customerID uuid.UUID) (*dto.SyncResponse, error) {
	if !caller.Role.IsSystemAdmin() {
		return nil, ErrForbidden
	}

	var customer models.Customer
	if err := s.db.First(&customer, "id = ?", customerID).Error; err != nil {
		return nil, ErrNotFound
	}

	records, err := s.fetchAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistrationCall, err)
	}

	resp := &dto.SyncResponse{Fetched: len(records)}
	if len(records) == 0 {
		return resp, nil
	}

	npis := make([]string, 0, len(records))
	for _, r := range records {
		npis = append(npis, r.NPI)
	}

	existing := make(map[string]models.Provider)
	var known []models.Provider
	if err := s.db.Where("npi IN ?", npis).Find(&known).Error; err != nil {
		return nil, err
	}
	for _, p := range known {
		existing[p.NPI] = p
	}

	var toCreate, toUpdate []pcg.ProviderRecord
	for _, r := range records {
		if _, ok := existing[r.NPI]; ok {
			toUpdate = append(toUpdate, r)
		} else {
			toCreate = append(toCreate, r)
		}
	}

	for _, batch := range chunk(toCreate, syncBatchSize) {
		batch := batch
		err := s.db.Transaction(func(tx *gorm.DB) error {
			rows := make([]models.Provider, 0, len(batch))
			for _, r := range batch {
				rows = append(rows, models.Provider{
					ID:            uuid.New(),
					CustomerID:    customer.ID,
					NPI:           r.NPI,
					Name:          r.Name,
					AddressLine1:  r.AddressLine1,
					AddressLine2:  r.AddressLine2,
					City:          r.City,
					State:         r.State,
					Zip:           r.Zip,
					PCGProviderID: r.PCGProviderID,
					LastSnapshot:  snapshot(r),
					Active:        true,
				})
			}
			return tx.Create(&rows).Error
		})
		if err != nil {
			resp.Failed += len(batch)
			slog.Error("provider sync create batch failed", "size", len(batch), "action", "sync.providers", "error", err)
			continue
		}
		resp.Created += len(batch)
	}

	for _, batch := range chunk(toUpdate, syncBatchSize) {
		batch := batch
		err := s.db.Transaction(func(tx *gorm.DB) error {
			for _, r := range batch {
				err := tx.Model(&models.Provider{}).Where("npi = ?", r.NPI).Updates(map[string]interface{}{
					"name":            r.Name,
					"address_line1":   r.AddressLine1,
					"address_line2":   r.AddressLine2,
					"city":            r.City,
					"state":           r.State,
					"zip":             r.Zip,
					"pcg_provider_id": r.PCGProviderID,
					"last_snapshot":   snapshot(r),
				}).Error
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			resp.Failed += len(batch)
			slog.Error("provider sync update batch failed", "size", len(batch), "action", "sync.providers", "error", err)
			continue
		}
		resp.Updated += len(batch)
	}

	resp.Statuses = s.refreshStatuses()

	slog.Info("provider sync completed",
		"fetched", resp.Fetched,
		"created", resp.Created,
		"updated", resp.Updated,
		"failed", resp.Failed,
		"statuses", resp.Statuses,
		"action", "sync.providers")
	return resp, nil
}

func (s *SyncService) fetchAll() ([]pcg.ProviderRecord, error) {
	var all []pcg.ProviderRecord
	page := 1
	for {
		records, totalPages, err := s.pcg.ListProviders(page, s.pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
		if page >= totalPages || len(records) == 0 {
			break
		}
		page++
	}
	return all, nil
}

// refreshStatuses walks every linked provider serially. A failed lookup
// persists a fallback error record and moves on.
func (s *SyncService) refreshStatuses() int {
	var linked []models.Provider
	if err := s.db.Where("pcg_provider_id <> ''").Find(&linked).Error; err != nil {
		slog.Error("status refresh query failed", "action", "sync.statuses", "error", err)
		return 0
	}

	stored := 0
	for i := range linked {
		p := &linked[i]
		status, err := s.pcg.GetRegistrationStatus(p.PCGProviderID)
		if err != nil {
			if _, uerr := s.providers.upsertStatus(s.db, p.ID, nil, err.Error()); uerr != nil {
				slog.Error("failed to persist status fallback", "provider_id", p.ID.String(), "error", uerr)
			}
			continue
		}
		if _, err := s.providers.upsertStatus(s.db, p.ID, status, ""); err != nil {
			slog.Error("failed to persist registration status", "provider_id", p.ID.String(), "error", err)
			continue
		}
		stored++
	}
	return stored
}

func snapshot(r pcg.ProviderRecord) datatypes.JSON {
	b, _ := json.Marshal(r)
	return datatypes.JSON(b)
}

func chunk(records []pcg.ProviderRecord, size int) [][]pcg.ProviderRecord {
	if size <= 0 {
		size = syncBatchSize
	}
	var batches [][]pcg.ProviderRecord
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}
