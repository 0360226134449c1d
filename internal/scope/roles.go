package scope

// Role is the closed set of account roles. A user holds exactly one role
// at a time; updates replace it wholesale rather than merging.
type Role string

const (
	RoleSystemAdmin        Role = "system-admin"
	RoleCustomerAdmin      Role = "customer-admin"
	RoleProviderGroupAdmin Role = "provider-group-admin"
	RoleBasicUser          Role = "basic-user"
)

// AssignableRoles are the roles the admin routes may grant. system-admin
// is provisioned out of band and is never assignable here.
var AssignableRoles = []Role{RoleCustomerAdmin, RoleProviderGroupAdmin, RoleBasicUser}

func (r Role) Valid() bool {
	switch r {
	case RoleSystemAdmin, RoleCustomerAdmin, RoleProviderGroupAdmin, RoleBasicUser:
		return true
	}
	return false
}

func (r Role) Assignable() bool {
	for _, a := range AssignableRoles {
		if r == a {
			return true
		}
	}
	return false
}

func (r Role) IsSystemAdmin() bool        { return r == RoleSystemAdmin }
func (r Role) IsCustomerAdmin() bool      { return r == RoleCustomerAdmin }
func (r Role) IsProviderGroupAdmin() bool { return r == RoleProviderGroupAdmin }
func (r Role) IsBasicUser() bool          { return r == RoleBasicUser }

// AdminForCustomer reports whether the role may manage accounts within its
// own customer (system-admin manages every customer).
func (r Role) AdminForCustomer() bool {
	return r == RoleSystemAdmin || r == RoleCustomerAdmin
}
