package models

// Transaction is a POS sale. Invalidated transactions are kept for history.
type Transaction struct {
	BaseModel

	UserID    string   `gorm:"type:uuid;index;not null" json:"user_id"`
	User      *User    `json:"user,omitempty"`
	PaytypeID string   `gorm:"type:uuid;index;not null" json:"paytype_id"`
	Paytype   *Paytype `json:"paytype,omitempty"`

	Sum     float64 `gorm:"not null" json:"sum"`
	Invalid bool    `gorm:"default:false;index" json:"invalid"`

	// Effects applied at sale time; invalidation reverses exactly these.
	AffectedBalance  bool `json:"affected_balance"`
	AffectedQuantity bool `json:"affected_quantity"`

	Products []TransactionProduct `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE" json:"products"`
}

// TransactionProduct is a line item. Name and price are captured at sale time.
type TransactionProduct struct {
	BaseModel

	TransactionID string  `gorm:"type:uuid;index;not null" json:"transaction_id"`
	ProductID     string  `gorm:"type:uuid;index;not null" json:"product_id"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Quantity      int     `json:"quantity"`
}

// Total returns price times quantity.
func (p TransactionProduct) Total() float64 {
	return p.Price * float64(p.Quantity)
}
