package model

// LocationModel is the shape shared by the read-only location catalogs.
// The table is chosen per query with db.Table(LocationTables[kind]).
type LocationModel struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"type:varchar(150);not null"`
}

// LocationTables maps a location kind to its catalog table.
//
//nolint:gochecknoglobals
var LocationTables = map[string]string{
	"sector":       "sectors",
	"vereda":       "veredas",
	"municipality": "municipalities",
	"parish":       "parishes",
}
