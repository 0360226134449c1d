package services

import (
	"errors"
	"testing"

	"github.com/caretide/provider-admin/internal/dto"
	"github.com/caretide/provider-admin/internal/models"
	"github.com/caretide/provider-admin/internal/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func boolPtr(b bool) *bool { return &b }

func TestCreateUser_Success(t *testing.T) {
	db := setupTestDB(t)
	mail := &fakeMailer{}
	svc := NewUserService(db, testConfig(), mail)

	customer := seedCustomer(t, db, "Acme Health")
	admin := seedUser(t, db, customer, nil, scope.RoleCustomerAdmin, "admin1")

	user, err := svc.Create(callerFor(admin), &dto.UserMutationRequest{
		Intent:   dto.IntentCreate,
		Name:     "Jane Doe",
		Email:    "Jane@X.com",
		Username: "JDoe",
		Role:     string(scope.RoleBasicUser),
	})
	require.NoError(t, err)

	assert.Equal(t, "jane@x.com", user.Email)
	assert.Equal(t, "jdoe", user.Username)
	assert.Equal(t, customer.ID, user.CustomerID)
	assert.True(t, user.MustChangePassword)
	assert.True(t, user.Active)
	assert.NotEmpty(t, user.PasswordHash)

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "jane@x.com", mail.sent[0].To)
	assert.Equal(t, "registration", mail.sent[0].Template)
	assert.NotEmpty(t, mail.sent[0].TempPassword)
	// the plaintext temp password must match the stored hash
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(mail.sent[0].TempPassword)))
}

func TestCreateUser_EmailSendFailureDoesNotRollBack(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, testConfig(), &fakeMailer{fail: true})

	customer := seedCustomer(t, db, "Acme Health")
	admin := seedUser(t, db, customer, nil, scope.RoleCustomerAdmin, "admin1")

	user, err := svc.Create(callerFor(admin), &dto.UserMutationRequest{
		Name: "Jane Doe", Email: "jane@x.com", Username: "jdoe", Role: "basic-user",
	})
	require.NoError(t, err)

	var count int64
	db.Model(&models.User{}).Where("id = ?", user.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestCreateUser_DuplicatesAreCaseInsensitiveFieldErrors(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, testConfig(), &fakeMailer{})

	customer := seedCustomer(t, db, "Acme Health")
	admin := seedUser(t, db, customer, nil, scope.RoleCustomerAdmin, "admin1")
	seedUser(t, db, customer, nil, scope.RoleBasicUser, "jdoe") // jdoe@example.com

	_, err := svc.Create(callerFor(admin), &dto.UserMutationRequest{
		Name: "Copy Cat", Email: "JDOE@Example.COM", Username: "JDOE", Role: "basic-user",
	})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "email")
	assert.Contains(t, ve.Fields, "username")
}

func TestCreateUser_FieldValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, testConfig(), &fakeMailer{})

	customer := seedCustomer(t, db, "Acme Health")
	admin := seedUser(t, db, customer, nil, scope.RoleCustomerAdmin, "admin1")

	_, err := svc.Create(callerFor(admin), &dto.UserMutationRequest{
		Name: "", Email: "not-an-email", Username: "x!", Role: "system-admin",
	})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "name")
	assert.Contains(t, ve.Fields, "email")
	assert.Contains(t, ve.Fields, "username")
	assert.Contains(t, ve.Fields, "role")
}

func TestCreateUser_CustomerAdminRoleNeedsPrivilege(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, testConfig(), &fakeMailer{})

	customer := seedCustomer(t, db, "Acme Health")
	group := seedGroup(t, db, customer, "Group One")
	groupAdmin := seedUser(t, db, customer, group, scope.RoleProviderGroupAdmin, "gadmin")

	_, err := svc.Create(callerFor(groupAdmin), &dto.UserMutationRequest{
		Name: "Wannabe", Email: "w@x.com", Username: "wannabe", Role: "customer-admin",
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateUser_GroupAdminPinnedToOwnGroup(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, testConfig(), &fakeMailer{})

	customer := seedCustomer(t, db, "Acme Health")
	g1 := seedGroup(t, db, customer, "Group One")
	g2 := seedGroup(t, db, customer, "Group Two")
	groupAdmin := seedUser(t, db, customer, g1, scope.RoleProviderGroupAdmin, "gadmin")

	// other group rejected outright
	_, err := svc.Create(callerFor(groupAdmin), &dto.UserMutationRequest{
		Name: "New User", Email: "n@x.com", Username: "newuser",
		Role: "basic-user", ProviderGroupID: g2.ID.String(),
	})
	assert.ErrorIs(t, err, ErrForbidden)

	// no group given: forced into the caller's own group
	user, err := svc.Create(callerFor(groupAdmin), &dto.UserMutationRequest{
		Name: "New User", Email: "n@x.com", Username: "newuser", Role: "basic-user",
	})
	require.NoError(t, err)
	require.NotNil(t, user.ProviderGroupID)
	assert.Equal(t, g1.ID, *user.ProviderGroupID)
}

func TestCreateUser_CustomerAdminRoleForcesNilGroup(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, testConfig(), &fakeMailer{})

	customer := seedCustomer(t, db, "Acme Health")
	group := seedGroup(t, db, customer, "Group One")
	admin := seedUser(t, db, customer, nil, scope.RoleCustomerAdmin, "admin1")

	user, err := svc.Create(callerFor(admin), &dto.UserMutationRequest{
		Name: "New Admin", Email: "na@x.com", Username: "newadmin",
		Role: "customer-admin", ProviderGroupID: group.ID.String(),
	})
	require.NoError(t, err)
	assert.Nil(t, user.ProviderGroupID)
}

func TestCreateUser_GroupMustBelongToCustomer(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, testConfig(), &fakeMailer{})

	customerA := seedCustomer(t, db, "Customer A")
	customerB := seedCustomer(t, db, "Customer B")
	foreignGroup := seedGroup(t, db, customerB, "B Group")
	admin := seedUser(t, db, customerA, nil, scope.RoleCustomerAdmin, "admin1")

	_, err := svc.Create(callerFor(admin), &dto.UserMutationRequest{
		Name: "New User", Email: "n@x.com", Username: "newuser",
		Role: "basic-user", ProviderGroupID: foreignGroup.ID.String(),
	})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "provider_group_id")
}

func TestUpdateUser_ReplacesRoleWholesale(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, testConfig(), &fakeMailer{})

	customer := seedCustomer(t, db, "Acme Health")
	group := seedGroup(t, db, customer, "Group One")
	admin := seedUser(t, db, customer, nil, scope.RoleCustomerAdmin, "admin1")
	target := seedUser(t, db, customer, group, scope.RoleBasicUser, "basic1")

	updated, err := svc.Update(callerFor(admin), &dto.UserMutationRequest{
		UserID:          target.ID.String(),
		Name:            "Promoted User",
		Role:            string(scope.RoleProviderGroupAdmin),
		ProviderGroupID: group.ID.String(),
	})
	require.NoError(t, err)

	var fresh models.User
	require.NoError(t, db.First(&fresh, "id = ?", updated.ID).Error)
	assert.Equal(t, string(scope.RoleProviderGroupAdmin), fresh.Role)
	assert.Equal(t, "Promoted User", fresh.Name)
	// email and username are immutable on this path
	assert.Equal(t, target.Email, fresh.Email)
	assert.Equal(t, target.Username, fresh.Username)
}

func TestUpdateUser_SystemAdminProtected(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, testConfig(), &fakeMailer{})

	customer := seedCustomer(t, db, "Acme Health")
	admin := seedUser(t, db, customer, nil, scope.RoleCustomerAdmin, "admin1")
	sysadmin := seedUser(t, db, customer, nil, scope.RoleSystemAdmin, "root")

	_, err := svc.Update(callerFor(admin), &dto.UserMutationRequest{
		UserID: sysadmin.ID.String(), Name: "Hax", Role: "basic-user",
	})
	assert.ErrorIs(t, err, ErrSystemAdminProtected)

	err = svc.Delete(callerFor(admin), &dto.UserMutationRequest{UserID: sysadmin.ID.String()})
	assert.ErrorIs(t, err, ErrSystemAdminProtected)

	err = svc.ResetPassword(callerFor(admin), &dto.UserMutationRequest{UserID: sysadmin.ID.String(), Mode: "auto"})
	assert.ErrorIs(t, err, ErrSystemAdminProtected)
}

func TestUpdateUser_OutOfScopeLooksMissing(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, testConfig(), &fakeMailer{})

	customerA := seedCustomer(t, db, "Customer A")
	customerB := seedCustomer(t, db, "Customer B")
	adminA := seedUser(t, db, customerA, nil, scope.RoleCustomerAdmin, "admina")
	targetB := seedUser(t, db, customerB, nil, scope.RoleBasicUser, "basicb")

	_, err := svc.Update(callerFor(adminA), &dto.UserMutationRequest{
		UserID: targetB.ID.String(), Name: "Reach", Role: "basic-user",
	})
	assert.ErrorIs(t, err, ErrNotFound)

	// and nothing changed
	var fresh models.User
	require.NoError(t, db.First(&fresh, "id = ?", targetB.ID).Error)
	assert.Equal(t, targetB.Name, fresh.Name)
}

func TestDeleteUser_SelfProtection(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, testConfig(), &fakeMailer{})

	customer := seedCustomer(t, db, "Acme Health")
	admin := seedUser(t, db, customer, nil, scope.RoleCustomerAdmin, "admin1")
	seedUser(t, db, customer, nil, scope.RoleCustomerAdmin, "admin2")

	err := svc.Delete(callerFor(admin), &dto.UserMutationRequest{UserID: admin.ID.String()})
	assert.ErrorIs(t, err, ErrSelfAction)
}

func TestDeleteUser_LastCustomerAdminGuard(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, testConfig(), &fakeMailer{})

	customer := seedCustomer(t, db, "Acme Health")
	sysadmin := seedUser(t, db, customer, nil, scope.RoleSystemAdmin, "root")
	first := seedUser(t, db, customer, nil, scope.RoleCustomerAdmin, "admin1")
	second := seedUser(t, db, customer, nil, scope.RoleCustomerAdmin, "admin2")

	// deleting the second-to-last succeeds
	err := svc.Delete(callerFor(sysadmin), &dto.UserMutationRequest{
		UserID: second.ID.String(), ConfirmUsername: "ADMIN2",
	})
	require.NoError(t, err)

	// the survivor is now undeletable
	err = svc.Delete(callerFor(sysadmin), &dto.UserMutationRequest{
		UserID: first.ID.String(), ConfirmUsername: "admin1",
	})
	assert.ErrorIs(t, err, ErrLastCustomerAdmin)

	var count int64
	db.Model(&models.User{}).Where("id = ?", first.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestDeleteUser_SystemRouteRequiresConfirmation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, testConfig(), &fakeMailer{})

	customer := seedCustomer(t, db, "Acme Health")
	sysadmin := seedUser(t, db, customer, nil, scope.RoleSystemAdmin, "root")
	target := seedUser(t, db, customer, nil, scope.RoleBasicUser, "basic1")

	err := svc.Delete(callerFor(sysadmin), &dto.UserMutationRequest{
		UserID: target.ID.String(), ConfirmUsername: "wrong-name",
	})
	assert.ErrorIs(t, err, ErrConfirmMismatch)
}

func TestDeleteUser_RemovesSessionsAndAssignments(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, testConfig(), &fakeMailer{})

	customer := seedCustomer(t, db, "Acme Health")
	admin := seedUser(t, db, customer, nil, scope.RoleCustomerAdmin, "admin1")
	target := seedUser(t, db, customer, nil, scope.RoleBasicUser, "basic1")
	provider := seedProvider(t, db, customer, nil, "1234567890", true)
	seedSession(t, db, target)
	seedSession(t, db, target)
	seedAssignment(t, db, target, provider)

	err := svc.Delete(callerFor(admin), &dto.UserMutationRequest{UserID: target.ID.String()})
	require.NoError(t, err)

	var sessions, assignments, users int64
	db.Model(&models.Session{}).Where("user_id = ?", target.ID).Count(&sessions)
	db.Model(&models.UserNPI{}).Where("user_id = ?", target.ID).Count(&assignments)
	db.Model(&models.User{}).Where("id = ?", target.ID).Count(&users)
	assert.Zero(t, sessions)
	assert.Zero(t, assignments)
	assert.Zero(t, users)
}

func TestResetPassword_AutoRevokesSessions(t *testing.T) {
	db := setupTestDB(t)
	mail := &fakeMailer{}
	svc := NewUserService(db, testConfig(), mail)

	customer := seedCustomer(t, db, "Acme Health")
	admin := seedUser(t, db, customer, nil, scope.RoleCustomerAdmin, "admin1")
	target := seedUser(t, db, customer, nil, scope.RoleBasicUser, "basic1")
	seedSession(t, db, target)
	oldHash := target.PasswordHash

	err := svc.ResetPassword(callerFor(admin), &dto.UserMutationRequest{
		UserID: target.ID.String(), Mode: "auto",
	})
	require.NoError(t, err)

	var fresh models.User
	require.NoError(t, db.First(&fresh, "id = ?", target.ID).Error)
	assert.NotEqual(t, oldHash, fresh.PasswordHash)
	assert.True(t, fresh.MustChangePassword)

	var sessions int64
	db.Model(&models.Session{}).Where("user_id = ?", target.ID).Count(&sessions)
	assert.Zero(t, sessions)

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "password-reset", mail.sent[0].Template)
}

func TestResetPassword_ManualRejectsWeakWithoutMutation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, testConfig(), &fakeMailer{})

	customer := seedCustomer(t, db, "Acme Health")
	admin := seedUser(t, db, customer, nil, scope.RoleCustomerAdmin, "admin1")
	target := seedUser(t, db, customer, nil, scope.RoleBasicUser, "basic1")
	session := seedSession(t, db, target)

	err := svc.ResetPassword(callerFor(admin), &dto.UserMutationRequest{
		UserID: target.ID.String(), Mode: "manual", NewPassword: "short",
	})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "new_password")

	var fresh models.User
	require.NoError(t, db.First(&fresh, "id = ?", target.ID).Error)
	assert.Equal(t, target.PasswordHash, fresh.PasswordHash)
	assert.False(t, fresh.MustChangePassword)

	var sessions int64
	db.Model(&models.Session{}).Where("id = ?", session.ID).Count(&sessions)
	assert.EqualValues(t, 1, sessions)
}

func TestCheckAvailability_CaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, testConfig(), &fakeMailer{})

	customer := seedCustomer(t, db, "Acme Health")
	seedUser(t, db, customer, nil, scope.RoleBasicUser, "jdoe")

	exists, err := svc.CheckAvailability("email", "JDOE@Example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = svc.CheckAvailability("username", "JDoe")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = svc.CheckAvailability("username", "someone-else")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = svc.CheckAvailability("role", "x")
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestBasicUserCannotMutate(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, testConfig(), &fakeMailer{})

	customer := seedCustomer(t, db, "Acme Health")
	basic := seedUser(t, db, customer, nil, scope.RoleBasicUser, "basic1")
	other := seedUser(t, db, customer, nil, scope.RoleBasicUser, "basic2")

	_, err := svc.Create(callerFor(basic), &dto.UserMutationRequest{
		Name: "X", Email: "x@x.com", Username: "xuser", Role: "basic-user",
	})
	assert.ErrorIs(t, err, ErrForbidden)

	err = svc.Delete(callerFor(basic), &dto.UserMutationRequest{UserID: other.ID.String()})
	assert.ErrorIs(t, err, ErrForbidden)
}
