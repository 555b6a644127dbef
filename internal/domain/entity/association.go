package entity

// AssociationKind names one family-to-catalog join table.
type AssociationKind string

const (
	AssociationDisposal AssociationKind = "disposal"
	AssociationWater    AssociationKind = "water"
	AssociationHousing  AssociationKind = "housing"
)

// AssociationKinds lists every join table in deletion order.
var AssociationKinds = []AssociationKind{AssociationDisposal, AssociationWater, AssociationHousing}

// String returns the string representation of the AssociationKind.
func (k AssociationKind) String() string {
	return string(k)
}

// IsValid checks if the AssociationKind is a known join table.
func (k AssociationKind) IsValid() bool {
	switch k {
	case AssociationDisposal, AssociationWater, AssociationHousing:
		return true
	default:
		return false
	}
}

// FamilyAssociation links a family to one catalog item. Unique per (FamilyID, Kind, CatalogID).
type FamilyAssociation struct {
	FamilyID  int64
	Kind      AssociationKind
	CatalogID int64
}
