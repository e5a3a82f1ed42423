package enums

// AccountRole gates the admin surface.
type AccountRole string

const (
	AccountRoleBuyer AccountRole = "buyer"
	AccountRoleAdmin AccountRole = "admin"
)

var validAccountRoles = []AccountRole{
	AccountRoleBuyer,
	AccountRoleAdmin,
}

func (r AccountRole) String() string {
	return string(r)
}

func (r AccountRole) IsValid() bool {
	for _, candidate := range validAccountRoles {
		if candidate == r {
			return true
		}
	}
	return false
}
