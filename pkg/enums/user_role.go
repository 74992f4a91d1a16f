package enums

// UserRole is the authorization role carried in access tokens.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	return r == UserRoleCustomer || r == UserRoleAdmin
}
