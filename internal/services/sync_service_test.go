package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/caretide/provider-admin/internal/models"
	"github.com/caretide/provider-admin/internal/pcg"
	"github.com/caretide/provider-admin/internal/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(npi, name, pcgID string) pcg.ProviderRecord {
	return pcg.ProviderRecord{NPI: npi, Name: name, PCGProviderID: pcgID}
}

func TestSyncProviders_CreatesAndUpdates(t *testing.T) {
	db := setupTestDB(t)
	client := &fakePCG{
		ListProvidersFunc: func(page, pageSize int) ([]pcg.ProviderRecord, int, error) {
			return []pcg.ProviderRecord{
				record("1111111111", "Known Clinic Renamed", "pcg-1"),
				record("2222222222", "New Clinic", "pcg-2"),
			}, 1, nil
		},
	}
	providers := NewProviderService(db, client)
	svc := NewSyncService(db, client, providers, 100)

	customer := seedCustomer(t, db, "Acme Health")
	sysadmin := seedUser(t, db, customer, nil, scope.RoleSystemAdmin, "root")
	existing := seedProvider(t, db, customer, nil, "1111111111", true)

	resp, err := svc.SyncProviders(callerFor(sysadmin), customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Fetched)
	assert.Equal(t, 1, resp.Created)
	assert.Equal(t, 1, resp.Updated)
	assert.Zero(t, resp.Failed)
	assert.Equal(t, 2, resp.Statuses)

	var updated models.Provider
	require.NoError(t, db.First(&updated, "id = ?", existing.ID).Error)
	assert.Equal(t, "Known Clinic Renamed", updated.Name)
	assert.Equal(t, "pcg-1", updated.PCGProviderID)
	assert.NotEmpty(t, updated.LastSnapshot)

	var created models.Provider
	require.NoError(t, db.First(&created, "npi = ?", "2222222222").Error)
	assert.Equal(t, customer.ID, created.CustomerID)
	assert.True(t, created.Active)

	status := providers.RegistrationFor(created.ID)
	require.NotNil(t, status)
	assert.Equal(t, "registered", status.RegStatus)
}

func TestSyncProviders_WalksAllPages(t *testing.T) {
	db := setupTestDB(t)
	var pages []int
	client := &fakePCG{
		ListProvidersFunc: func(page, pageSize int) ([]pcg.ProviderRecord, int, error) {
			pages = append(pages, page)
			npi := fmt.Sprintf("%010d", page)
			return []pcg.ProviderRecord{record(npi, "Clinic "+npi, "")}, 3, nil
		},
	}
	providers := NewProviderService(db, client)
	svc := NewSyncService(db, client, providers, 1)

	customer := seedCustomer(t, db, "Acme Health")
	sysadmin := seedUser(t, db, customer, nil, scope.RoleSystemAdmin, "root")

	resp, err := svc.SyncProviders(callerFor(sysadmin), customer.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, pages)
	assert.Equal(t, 3, resp.Fetched)
	assert.Equal(t, 3, resp.Created)
}

func TestSyncProviders_FetchErrorAbortsEarly(t *testing.T) {
	db := setupTestDB(t)
	client := &fakePCG{
		ListProvidersFunc: func(page, pageSize int) ([]pcg.ProviderRecord, int, error) {
			return nil, 0, errors.New("upstream down")
		},
	}
	providers := NewProviderService(db, client)
	svc := NewSyncService(db, client, providers, 100)

	customer := seedCustomer(t, db, "Acme Health")
	sysadmin := seedUser(t, db, customer, nil, scope.RoleSystemAdmin, "root")

	_, err := svc.SyncProviders(callerFor(sysadmin), customer.ID)
	assert.ErrorIs(t, err, ErrRegistrationCall)

	var count int64
	db.Model(&models.Provider{}).Count(&count)
	assert.Zero(t, count)
}

func TestSyncProviders_SystemAdminOnly(t *testing.T) {
	db := setupTestDB(t)
	client := &fakePCG{}
	providers := NewProviderService(db, client)
	svc := NewSyncService(db, client, providers, 100)

	customer := seedCustomer(t, db, "Acme Health")
	admin := seedUser(t, db, customer, nil, scope.RoleCustomerAdmin, "admin1")

	_, err := svc.SyncProviders(callerFor(admin), customer.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSyncProviders_UnknownCustomer(t *testing.T) {
	db := setupTestDB(t)
	client := &fakePCG{}
	providers := NewProviderService(db, client)
	svc := NewSyncService(db, client, providers, 100)

	customer := seedCustomer(t, db, "Acme Health")
	sysadmin := seedUser(t, db, customer, nil, scope.RoleSystemAdmin, "root")
	other := seedCustomer(t, db, "Other Health")
	require.NoError(t, db.Delete(other).Error)

	_, err := svc.SyncProviders(callerFor(sysadmin), other.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncProviders_StatusFailureWritesFallbackRecord(t *testing.T) {
	db := setupTestDB(t)
	client := &fakePCG{
		ListProvidersFunc: func(page, pageSize int) ([]pcg.ProviderRecord, int, error) {
			return []pcg.ProviderRecord{
				record("1111111111", "Healthy Clinic", "pcg-ok"),
				record("2222222222", "Broken Clinic", "pcg-bad"),
			}, 1, nil
		},
		GetRegistrationStatusFunc: func(id string) (*pcg.RegistrationStatus, error) {
			if id == "pcg-bad" {
				return nil, errors.New("status endpoint 500")
			}
			return &pcg.RegistrationStatus{RegStatus: "registered", EmdrRegistered: true}, nil
		},
	}
	providers := NewProviderService(db, client)
	svc := NewSyncService(db, client, providers, 100)

	customer := seedCustomer(t, db, "Acme Health")
	sysadmin := seedUser(t, db, customer, nil, scope.RoleSystemAdmin, "root")

	resp, err := svc.SyncProviders(callerFor(sysadmin), customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Statuses)

	var good, bad models.Provider
	require.NoError(t, db.First(&good, "npi = ?", "1111111111").Error)
	require.NoError(t, db.First(&bad, "npi = ?", "2222222222").Error)

	okStatus := providers.RegistrationFor(good.ID)
	require.NotNil(t, okStatus)
	assert.True(t, okStatus.EmdrRegistered)
	assert.Empty(t, okStatus.Errors)

	fallback := providers.RegistrationFor(bad.ID)
	require.NotNil(t, fallback)
	assert.Empty(t, fallback.RegStatus)
	assert.Contains(t, fallback.Errors, "status endpoint 500")
}

func TestSyncProviders_EmptyRegistry(t *testing.T) {
	db := setupTestDB(t)
	client := &fakePCG{}
	providers := NewProviderService(db, client)
	svc := NewSyncService(db, client, providers, 100)

	customer := seedCustomer(t, db, "Acme Health")
	sysadmin := seedUser(t, db, customer, nil, scope.RoleSystemAdmin, "root")

	resp, err := svc.SyncProviders(callerFor(sysadmin), customer.ID)
	require.NoError(t, err)
	assert.Zero(t, resp.Fetched)
	assert.Zero(t, resp.Created)
}
