package impl

import (
	"encoding/json"
	"strings"

	"censo/internal/domain/catalog"
	"censo/internal/domain/entity"
	"censo/internal/usecase"
)

// Keys of the packed payload older deceased rows keep in health_needs.
const (
	legacyAnniversaryKey = "fecha_aniversario"
	legacyWasFatherKey   = "era_padre"
	legacyWasMotherKey   = "era_madre"
	legacyCauseKey       = "causa_fallecimiento"
)

// decodeDeceased reads deceased details from first-class columns, then from the legacy
// packed payload, and finally infers the parental role from sex.
func decodeDeceased(p *entity.Person) usecase.DeceasedView {
	view := usecase.DeceasedView{
		ID:                   p.ID,
		FullName:             p.FullName(),
		IdentificationNumber: p.IdentificationNumber,
		Sex:                  catalogRef(catalog.KindSex, p.SexID),
	}

	if p.Deceased != nil {
		view.Anniversary = p.Deceased.Anniversary
		view.WasFather = p.Deceased.WasFather
		view.WasMother = p.Deceased.WasMother
		view.Cause = p.Deceased.Cause
		view.Source = usecase.DeceasedSourceColumns

		return view
	}

	if legacy, ok := decodeLegacyPayload(p.HealthNeeds); ok {
		view.Anniversary = legacy.Anniversary
		view.WasFather = legacy.WasFather
		view.WasMother = legacy.WasMother
		view.Cause = legacy.Cause
		view.Source = usecase.DeceasedSourceLegacy

		return view
	}

	view.Source = usecase.DeceasedSourceInferred
	view.RoleInferred = true
	if p.SexID != nil {
		switch {
		case sameID(p.SexID, catalog.ResolveSex("masculino")):
			view.WasFather = true
		case sameID(p.SexID, catalog.ResolveSex("femenino")):
			view.WasMother = true
		}
	}

	return view
}

func decodeLegacyPayload(raw string) (*entity.DeceasedDetails, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") {
		return nil, false
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, false
	}

	details := &entity.DeceasedDetails{
		WasFather: truthy(payload[legacyWasFatherKey]),
		WasMother: truthy(payload[legacyWasMotherKey]),
	}
	if cause, ok := payload[legacyCauseKey].(string); ok {
		details.Cause = strings.TrimSpace(cause)
	}
	if text, ok := payload[legacyAnniversaryKey].(string); ok {
		if encoded, err := json.Marshal(text); err == nil {
			if date, err := parseLenientDate(encoded); err == nil {
				details.Anniversary = date
			}
		}
	}

	return details, true
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch catalog.Normalize(val) {
		case "true", "si", "1", "x":
			return true
		}
	case float64:
		return val != 0
	}

	return false
}

func sameID(a, b *int64) bool {
	return a != nil && b != nil && *a == *b
}

func catalogRef(kind catalog.Kind, id *int64) *usecase.CatalogRef {
	if id == nil {
		return nil
	}

	return &usecase.CatalogRef{ID: *id, Label: catalog.LabelOf(kind, id)}
}
