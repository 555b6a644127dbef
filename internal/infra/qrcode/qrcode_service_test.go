package qrcode

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQRCodeService(t *testing.T) {
	tests := []struct {
		name                 string
		size                 int
		errorCorrectionLevel string
	}{
		{"Low error correction", 256, "L"},
		{"Medium error correction", 256, "M"},
		{"High error correction", 256, "Q"},
		{"Highest error correction", 256, "h"},
		{"Default error correction", 256, "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewQRCodeService(tt.size, tt.errorCorrectionLevel)
			assert.NotNil(t, service)
		})
	}
}

func TestQRCodeService_GenerateFamilyCard(t *testing.T) {
	service := NewQRCodeService(256, "M")

	qrBytes, err := service.GenerateFamilyCard(42, "FAM-LOYW3V28-1A2B")
	require.NoError(t, err)
	require.Greater(t, len(qrBytes), 4)

	// PNG magic number
	assert.Equal(t, []byte{0x89, 0x50, 0x4E, 0x47}, qrBytes[:4])
}

func TestQRCodeService_GenerateFamilyCard_InvalidInput(t *testing.T) {
	service := NewQRCodeService(256, "M")

	_, err := service.GenerateFamilyCard(0, "FAM-1")
	assert.Error(t, err)

	_, err = service.GenerateFamilyCard(7, "")
	assert.Error(t, err)
}

func TestQRCodeService_ParseFamilyCard(t *testing.T) {
	service := NewQRCodeService(256, "M")

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid card", `{"family_id":42,"code":"FAM-1","type":"family_card"}`, false},
		{"wrong type", `{"family_id":42,"code":"FAM-1","type":"subscription"}`, true},
		{"missing id", `{"code":"FAM-1","type":"family_card"}`, true},
		{"negative id", `{"family_id":-3,"code":"FAM-1","type":"family_card"}`, true},
		{"missing code", `{"family_id":42,"type":"family_card"}`, true},
		{"not json", `FAM-1`, true},
		{"empty", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, err := service.ParseFamilyCard(tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, card)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(42), card.FamilyID)
			assert.Equal(t, "FAM-1", card.Code)
		})
	}
}

func TestQRCodeService_FamilyCardPayloadShape(t *testing.T) {
	payload, err := json.Marshal(map[string]any{"family_id": 9, "code": "FAM-9", "type": familyCardType})
	require.NoError(t, err)

	card, err := NewQRCodeService(128, "L").ParseFamilyCard(string(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(9), card.FamilyID)
	assert.Equal(t, familyCardType, card.Type)
}
