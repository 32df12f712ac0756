package models

// Permission is the stored form of a catalog permission identifier. Records are
// created once by the startup seeder and never renamed.
type Permission struct {
	BaseModel

	Name string `gorm:"uniqueIndex;not null;size:64" json:"name"`

	Roles []Role `gorm:"many2many:role_permissions;" json:"-"`
}
