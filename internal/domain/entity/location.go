package entity

// LocationKind names one hop of the sector → vereda → municipality → parish chain.
type LocationKind string

const (
	LocationSector       LocationKind = "sector"
	LocationVereda       LocationKind = "vereda"
	LocationMunicipality LocationKind = "municipality"
	LocationParish       LocationKind = "parish"
)

// LocationRef is a resolved location catalog entry.
type LocationRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
