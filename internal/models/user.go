package models

import "strings"

// User is a member of the fraternity who can buy at the POS and, given the
// right roles, operate the back office.
type User struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Nickname  string  `json:"nickname"`
	Balance   float64 `gorm:"not null;default:0" json:"balance"`
	Active    bool    `json:"active"`

	StatusID *string `gorm:"type:uuid;index" json:"status_id"`
	Status   *Status `json:"status,omitempty"`

	Roles   []Role       `gorm:"many2many:user_roles;" json:"roles,omitempty"`
	Profile *UserProfile `gorm:"foreignKey:UserID" json:"profile,omitempty"`
}

// Label returns a human readable name used in logs and receipts.
func (u User) Label() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return u.Email
}

// HasRole reports whether the user holds a role with the given id.
func (u User) HasRole(roleID string) bool {
	for _, role := range u.Roles {
		if role.ID == roleID {
			return true
		}
	}
	return false
}

// UserProfile holds optional contact details kept apart from the account.
type UserProfile struct {
	BaseModel

	UserID      string `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	StudentCode string `json:"student_code"`
	Notes       string `json:"notes"`
}
