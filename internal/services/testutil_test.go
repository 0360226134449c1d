package services

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/caretide/provider-admin/internal/config"
	"github.com/caretide/provider-admin/internal/mailer"
	"github.com/caretide/provider-admin/internal/models"
	"github.com/caretide/provider-admin/internal/pcg"
	"github.com/caretide/provider-admin/internal/scope"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite test database: %v", err)
	}

	// every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sqlite pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Customer{},
		&models.ProviderGroup{},
		&models.Provider{},
		&models.ProviderRegistrationStatus{},
		&models.User{},
		&models.Session{},
		&models.UserNPI{},
		&models.Submission{},
		&models.SystemLog{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:     "test-secret",
		SessionExpiry: time.Hour,
		LoginURL:      "https://portal.test/login",
		PCGPageSize:   100,
	}
}

// fakeMailer records sends instead of calling a relay.
type fakeMailer struct {
	sent []mailer.Message
	fail bool
}

func (m *fakeMailer) Send(msg *mailer.Message) error {
	if m.fail {
		return errors.New("relay down")
	}
	m.sent = append(m.sent, *msg)
	return nil
}

// fakePCG implements RegistrationClient with overridable funcs.
type fakePCG struct {
	ListProvidersFunc         func(page, pageSize int) ([]pcg.ProviderRecord, int, error)
	UpdateProviderFunc        func(id string, req *pcg.UpdateProviderRequest) (json.RawMessage, error)
	RegisterEmdrFunc          func(id string) (*pcg.RegistrationStatus, error)
	DeregisterEmdrFunc        func(id string) (*pcg.RegistrationStatus, error)
	SetElectronicOnlyFunc     func(id string) (*pcg.RegistrationStatus, error)
	GetRegistrationStatusFunc func(id string) (*pcg.RegistrationStatus, error)
}

func (f *fakePCG) ListProviders(page, pageSize int) ([]pcg.ProviderRecord, int, error) {
	if f.ListProvidersFunc != nil {
		return f.ListProvidersFunc(page, pageSize)
	}
	return nil, 1, nil
}

func (f *fakePCG) UpdateProvider(id string, req *pcg.UpdateProviderRequest) (json.RawMessage, error) {
	if f.UpdateProviderFunc != nil {
		return f.UpdateProviderFunc(id, req)
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func (f *fakePCG) RegisterEmdr(id string) (*pcg.RegistrationStatus, error) {
	if f.RegisterEmdrFunc != nil {
		return f.RegisterEmdrFunc(id)
	}
	return &pcg.RegistrationStatus{RegStatus: "registered", EmdrRegistered: true}, nil
}

func (f *fakePCG) DeregisterEmdr(id string) (*pcg.RegistrationStatus, error) {
	if f.DeregisterEmdrFunc != nil {
		return f.DeregisterEmdrFunc(id)
	}
	return &pcg.RegistrationStatus{RegStatus: "deregistered"}, nil
}

func (f *fakePCG) SetElectronicOnly(id string) (*pcg.RegistrationStatus, error) {
	if f.SetElectronicOnlyFunc != nil {
		return f.SetElectronicOnlyFunc(id)
	}
	return &pcg.RegistrationStatus{RegStatus: "registered", ElectronicOnly: true}, nil
}

func (f *fakePCG) GetRegistrationStatus(id string) (*pcg.RegistrationStatus, error) {
	if f.GetRegistrationStatusFunc != nil {
		return f.GetRegistrationStatusFunc(id)
	}
	return &pcg.RegistrationStatus{RegStatus: "registered"}, nil
}

// --- fixtures ---

func seedCustomer(t *testing.T, db *gorm.DB, name string) *models.Customer {
	t.Helper()
	customer := &models.Customer{ID: uuid.New(), Name: name, Active: true}
	if err := db.Create(customer).Error; err != nil {
		t.Fatalf("failed to seed customer: %v", err)
	}
	return customer
}

func seedGroup(t *testing.T, db *gorm.DB, customer *models.Customer, name string) *models.ProviderGroup {
	t.Helper()
	group := &models.ProviderGroup{ID: uuid.New(), CustomerID: customer.ID, Name: name}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("failed to seed group: %v", err)
	}
	return group
}

func seedProvider(t *testing.T, db *gorm.DB, customer *models.Customer, group *models.ProviderGroup, npi string, active bool) *models.Provider {
	t.Helper()
	provider := &models.Provider{
		ID:         uuid.New(),
		CustomerID: customer.ID,
		NPI:        npi,
		Name:       "Provider " + npi,
		Active:     active,
	}
	if group != nil {
		provider.ProviderGroupID = &group.ID
	}
	if err := db.Create(provider).Error; err != nil {
		t.Fatalf("failed to seed provider: %v", err)
	}
	return provider
}

// seedPassword is the known-good credential every fixture user starts with.
const seedPassword = "Sturdy-Pass-99!"

func seedUser(t *testing.T, db *gorm.DB, customer *models.Customer, group *models.ProviderGroup, role scope.Role, username string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash fixture password: %v", err)
	}
	user := &models.User{
		ID:           uuid.New(),
		CustomerID:   customer.ID,
		Name:         "Test " + username,
		Email:        username + "@example.com",
		Username:     username,
		Role:         string(role),
		PasswordHash: string(hash),
		Active:       true,
	}
	if group != nil {
		user.ProviderGroupID = &group.ID
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func seedSession(t *testing.T, db *gorm.DB, user *models.User) *models.Session {
	t.Helper()
	session := &models.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: HashToken(uuid.NewString()),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := db.Create(session).Error; err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	return session
}

func seedAssignment(t *testing.T, db *gorm.DB, user *models.User, provider *models.Provider) *models.UserNPI {
	t.Helper()
	assignment := &models.UserNPI{ID: uuid.New(), UserID: user.ID, ProviderID: provider.ID}
	if err := db.Create(assignment).Error; err != nil {
		t.Fatalf("failed to seed assignment: %v", err)
	}
	return assignment
}

func callerFor(user *models.User) scope.Caller {
	return CallerFor(user)
}
