package qrcode

import (
	"encoding/json"
	"fmt"
	"strings"

	"censo/internal/domain/service"

	"github.com/skip2/go-qrcode"
)

const familyCardType = "family_card"

type qrcodeService struct {
	size                 int
	errorCorrectionLevel qrcode.RecoveryLevel
}

// NewQRCodeService creates a new QR code service instance
func NewQRCodeService(size int, errorCorrectionLevel string) service.QRCodeService {
	var level qrcode.RecoveryLevel
	switch strings.ToUpper(errorCorrectionLevel) {
	case "L":
		level = qrcode.Low
	case "M":
		level = qrcode.Medium
	case "Q":
		level = qrcode.High
	case "H":
		level = qrcode.Highest
	default:
		level = qrcode.Medium
	}

	return &qrcodeService{
		size:                 size,
		errorCorrectionLevel: level,
	}
}

// GenerateFamilyCard renders the door card QR code for a family
func (s *qrcodeService) GenerateFamilyCard(familyID int64, code string) ([]byte, error) {
	if familyID <= 0 || code == "" {
		return nil, fmt.Errorf("family card needs an id and a code, got %d %q", familyID, code)
	}

	jsonData, err := json.Marshal(service.FamilyCard{
		FamilyID: familyID,
		Code:     code,
		Type:     familyCardType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal QR code data: %w", err)
	}

	qrCode, err := qrcode.New(string(jsonData), s.errorCorrectionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}

	pngBytes, err := qrCode.PNG(s.size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PNG: %w", err)
	}

	return pngBytes, nil
}

// ParseFamilyCard parses scanned QR text into the family card content
func (s *qrcodeService) ParseFamilyCard(qrData string) (*service.FamilyCard, error) {
	var card service.FamilyCard
	if err := json.Unmarshal([]byte(qrData), &card); err != nil {
		return nil, fmt.Errorf("failed to unmarshal QR code data: %w", err)
	}

	if card.Type != familyCardType {
		return nil, fmt.Errorf("invalid QR code type: expected '%s', got '%s'", familyCardType, card.Type)
	}
	if card.FamilyID <= 0 {
		return nil, fmt.Errorf("invalid family id in QR code: %d", card.FamilyID)
	}
	if card.Code == "" {
		return nil, fmt.Errorf("missing family code in QR code")
	}

	return &card, nil
}
