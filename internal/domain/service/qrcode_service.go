package service

// FamilyCard is the content encoded in the QR code printed on a household's door card.
type FamilyCard struct {
	FamilyID int64  `json:"family_id"`
	Code     string `json:"code"`
	Type     string `json:"type"`
}

// QRCodeService defines the interface for QR code generation and parsing services
type QRCodeService interface {
	// GenerateFamilyCard renders a PNG QR code identifying the family
	GenerateFamilyCard(familyID int64, code string) ([]byte, error)

	// ParseFamilyCard parses scanned QR code text back into the card content
	ParseFamilyCard(qrData string) (*FamilyCard, error)
}
