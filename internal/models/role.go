package models

// Role groups permissions under a unique name.
type Role struct {
	BaseModel

	Name        string `gorm:"uniqueIndex;not null;size:128" json:"name"`
	Description string `json:"description"`

	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions,omitempty"`
	Users       []User       `gorm:"many2many:user_roles;" json:"-"`
}

// PermissionNames lists the identifiers held by the role in stored order.
func (r Role) PermissionNames() []string {
	names := make([]string, 0, len(r.Permissions))
	for _, perm := range r.Permissions {
		names = append(names, perm.Name)
	}
	return names
}

// HasPermission reports whether the role holds the named permission.
func (r Role) HasPermission(name string) bool {
	for _, perm := range r.Permissions {
		if perm.Name == name {
			return true
		}
	}
	return false
}
