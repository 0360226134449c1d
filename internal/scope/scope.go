package scope

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Caller is the resolved identity of the requesting user. It is built once
// by the auth middleware and passed explicitly into every service call;
// nothing downstream reads ambient request state.
type Caller struct {
	UserID          uuid.UUID
	CustomerID      uuid.UUID
	ProviderGroupID *uuid.UUID
	Role            Role
}

// denyAll is the fail-closed scope: any ambiguity in a caller's linkage
// resolves to "no rows", never to wider visibility.
func denyAll(db *gorm.DB) *gorm.DB {
	return db.Where("1 = 0")
}

// UsersVisible restricts a users query to the rows the caller may see.
func UsersVisible(caller Caller) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch caller.Role {
		case RoleSystemAdmin:
			return db
		case RoleCustomerAdmin:
			return db.Where("users.customer_id = ?", caller.CustomerID)
		case RoleProviderGroupAdmin:
			if caller.ProviderGroupID == nil {
				return denyAll(db)
			}
			return db.Where("users.customer_id = ? AND users.provider_group_id = ?",
				caller.CustomerID, *caller.ProviderGroupID)
		case RoleBasicUser:
			return db.Where("users.id = ?", caller.UserID)
		}
		return denyAll(db)
	}
}

// ProvidersVisible restricts a providers query to the caller's scope.
// Basic users only see providers assigned to them through user_npis.
func ProvidersVisible(caller Caller) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch caller.Role {
		case RoleSystemAdmin:
			return db
		case RoleCustomerAdmin:
			return db.Where("providers.customer_id = ?", caller.CustomerID)
		case RoleProviderGroupAdmin:
			if caller.ProviderGroupID == nil {
				return denyAll(db)
			}
			return db.Where("providers.customer_id = ? AND providers.provider_group_id = ?",
				caller.CustomerID, *caller.ProviderGroupID)
		case RoleBasicUser:
			return db.Where("providers.id IN (?)",
				db.Session(&gorm.Session{NewDB: true}).
					Table("user_npis").
					Select("provider_id").
					Where("user_id = ?", caller.UserID))
		}
		return denyAll(db)
	}
}

// GroupsVisible restricts a provider_groups query to the caller's scope.
func GroupsVisible(caller Caller) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch caller.Role {
		case RoleSystemAdmin:
			return db
		case RoleCustomerAdmin:
			return db.Where("provider_groups.customer_id = ?", caller.CustomerID)
		case RoleProviderGroupAdmin:
			if caller.ProviderGroupID == nil {
				return denyAll(db)
			}
			return db.Where("provider_groups.id = ?", *caller.ProviderGroupID)
		}
		return denyAll(db)
	}
}

// SubmissionsVisible restricts a submissions query to the caller's scope.
func SubmissionsVisible(caller Caller) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch caller.Role {
		case RoleSystemAdmin:
			return db
		case RoleCustomerAdmin:
			return db.Where("submissions.customer_id = ?", caller.CustomerID)
		case RoleProviderGroupAdmin:
			if caller.ProviderGroupID == nil {
				return denyAll(db)
			}
			return db.Where("submissions.customer_id = ? AND submissions.provider_id IN (?)",
				caller.CustomerID,
				db.Session(&gorm.Session{NewDB: true}).
					Table("providers").
					Select("id").
					Where("provider_group_id = ?", *caller.ProviderGroupID))
		case RoleBasicUser:
			return db.Where("submissions.provider_id IN (?)",
				db.Session(&gorm.Session{NewDB: true}).
					Table("user_npis").
					Select("provider_id").
					Where("user_id = ?", caller.UserID))
		}
		return denyAll(db)
	}
}

// CustomersVisible restricts a customers query. Non-system callers see
// only their own customer row.
func CustomersVisible(caller Caller) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if caller.Role == RoleSystemAdmin {
			return db
		}
		return db.Where("customers.id = ?", caller.CustomerID)
	}
}
