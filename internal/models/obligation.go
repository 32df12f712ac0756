package models

import "time"

// Obligation is a named charge (membership fee, damages) that can be assigned to users.
type Obligation struct {
	BaseModel

	Name        string  `gorm:"not null" json:"name"`
	Amount      float64 `gorm:"not null" json:"amount"`
	Description string  `json:"description"`
}

// UserObligation records an obligation charged to a user. Recurring entries are
// templates charged again on DayOfMonth each month.
type UserObligation struct {
	BaseModel

	UserID       string      `gorm:"type:uuid;index;not null" json:"user_id"`
	User         *User       `json:"-"`
	ObligationID string      `gorm:"type:uuid;index;not null" json:"obligation_id"`
	Obligation   *Obligation `json:"obligation,omitempty"`

	Amount        float64    `gorm:"not null" json:"amount"`
	Description   string     `json:"description"`
	Recurring     bool       `gorm:"default:false;index" json:"recurring"`
	DayOfMonth    int        `json:"day_of_month,omitempty"`
	LastAppliedAt *time.Time `json:"last_applied_at,omitempty"`
}

// DueOn reports whether a recurring obligation should be charged at now.
func (o UserObligation) DueOn(now time.Time) bool {
	if !o.Recurring {
		return false
	}
	day := o.DayOfMonth
	if last := lastDayOfMonth(now); day > last {
		day = last
	}
	if now.Day() < day {
		return false
	}
	if o.LastAppliedAt == nil {
		return true
	}
	applied := o.LastAppliedAt.In(now.Location())
	return applied.Year() != now.Year() || applied.Month() != now.Month()
}

func lastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
