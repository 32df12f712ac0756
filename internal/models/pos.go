package models

// Status classifies users (member, alumni, guest) and gates which paytypes they may use.
type Status struct {
	BaseModel

	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description"`
}

// Paytype describes how a transaction is settled.
type Paytype struct {
	BaseModel

	Name            string `gorm:"uniqueIndex;not null" json:"name"`
	AffectsBalance  bool   `gorm:"default:false" json:"affects_balance"`
	AffectsQuantity bool   `json:"affects_quantity"`
	Credit          bool   `gorm:"default:false" json:"credit"`

	AllowedForStatus []Status `gorm:"many2many:paytype_statuses;" json:"allowed_for_status"`
}

// IsAllowed reports whether a user with the given status may pay with this paytype.
// Users without a status are never allowed.
func (p Paytype) IsAllowed(status *Status) bool {
	if status == nil {
		return false
	}
	for _, allowed := range p.AllowedForStatus {
		if allowed.ID == status.ID {
			return true
		}
	}
	return false
}

// Product is an item sold at the POS.
type Product struct {
	BaseModel

	Name     string  `gorm:"uniqueIndex;not null" json:"name"`
	Price    float64 `gorm:"not null;default:0" json:"price"`
	Quantity int     `gorm:"not null;default:0" json:"quantity"`
	Active   bool    `json:"active"`
}

// Feedback is a free-form message left at the POS.
type Feedback struct {
	BaseModel

	Content  string  `gorm:"not null" json:"content"`
	AuthorID *string `gorm:"type:uuid;index" json:"author_id"`
}
