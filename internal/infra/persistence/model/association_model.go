package model

// FamilyDisposalMethodModel mirrors the 'family_disposal_methods' join table.
type FamilyDisposalMethodModel struct {
	ID               int64 `gorm:"primaryKey;autoIncrement"`
	FamilyID         int64 `gorm:"not null;uniqueIndex:uq_family_disposal_methods,priority:1"`
	DisposalMethodID int64 `gorm:"not null;uniqueIndex:uq_family_disposal_methods,priority:2"`
}

// TableName explicitly sets the table name for GORM.
func (FamilyDisposalMethodModel) TableName() string {
	return "family_disposal_methods"
}

// FamilyWaterSystemModel mirrors the 'family_water_systems' join table.
type FamilyWaterSystemModel struct {
	ID            int64 `gorm:"primaryKey;autoIncrement"`
	FamilyID      int64 `gorm:"not null;uniqueIndex:uq_family_water_systems,priority:1"`
	WaterSystemID int64 `gorm:"not null;uniqueIndex:uq_family_water_systems,priority:2"`
}

// TableName explicitly sets the table name for GORM.
func (FamilyWaterSystemModel) TableName() string {
	return "family_water_systems"
}

// FamilyHousingTypeModel mirrors the 'family_housing_types' join table.
type FamilyHousingTypeModel struct {
	ID            int64 `gorm:"primaryKey;autoIncrement"`
	FamilyID      int64 `gorm:"not null;uniqueIndex:uq_family_housing_types,priority:1"`
	HousingTypeID int64 `gorm:"not null;uniqueIndex:uq_family_housing_types,priority:2"`
}

// TableName explicitly sets the table name for GORM.
func (FamilyHousingTypeModel) TableName() string {
	return "family_housing_types"
}
