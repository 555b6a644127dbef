package model

import "time"

// PersonModel mirrors the 'persons' table. Deceased members share the table and are
// told apart by is_deceased; the remaining death columns are null for living members.
type PersonModel struct {
	ID                   int64      `gorm:"primaryKey;autoIncrement"`
	FamilyID             int64      `gorm:"not null;index"`
	FirstName            string     `gorm:"type:varchar(100);not null"`
	MiddleName           string     `gorm:"type:varchar(100)"`
	FirstSurname         string     `gorm:"type:varchar(100)"`
	SecondSurname        string     `gorm:"type:varchar(100)"`
	BirthDate            *time.Time `gorm:"type:date"`
	Phone                string     `gorm:"type:varchar(50)"`
	Email                string     `gorm:"type:varchar(255)"`
	IdentificationTypeID *int64
	IdentificationNumber string `gorm:"type:varchar(64);uniqueIndex;not null"`
	SexID                *int64
	CivilStatusID        *int64
	EducationLevelID     *int64
	LeadershipRole       string `gorm:"type:varchar(150)"`
	ShirtSize            string `gorm:"type:varchar(10)"`
	PantsSize            string `gorm:"type:varchar(10)"`
	ShoeSize             string `gorm:"type:varchar(10)"`
	HealthNeeds          string `gorm:"type:text"`

	IsDeceased       bool       `gorm:"not null;default:false;index"`
	DeathAnniversary *time.Time `gorm:"type:date"`
	WasFather        bool       `gorm:"not null;default:false"`
	WasMother        bool       `gorm:"not null;default:false"`
	CauseOfDeath     string     `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Family *FamilyModel `gorm:"foreignKey:FamilyID;constraint:OnDelete:RESTRICT"`
}

// TableName explicitly sets the table name for GORM.
func (PersonModel) TableName() string {
	return "persons"
}
