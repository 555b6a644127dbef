package impl

import (
	"testing"
	"time"

	"censo/internal/domain/entity"
	"censo/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDeceased(t *testing.T) {
	male := int64(1)
	female := int64(2)
	anniversary := time.Date(2019, 11, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name            string
		person          entity.Person
		wantSource      string
		wantFather      bool
		wantMother      bool
		wantInferred    bool
		wantCause       string
		wantAnniversary *time.Time
	}{
		{
			name: "first-class columns",
			person: entity.Person{
				Kind:      entity.PersonKindDeceased,
				FirstName: "Luis",
				SexID:     &female,
				Deceased:  &entity.DeceasedDetails{Anniversary: &anniversary, WasFather: true, Cause: "Infarto"},
			},
			wantSource:      usecase.DeceasedSourceColumns,
			wantFather:      true,
			wantCause:       "Infarto",
			wantAnniversary: &anniversary,
		},
		{
			name: "legacy packed payload",
			person: entity.Person{
				Kind:                 entity.PersonKindDeceased,
				FirstName:            "Rosa",
				IdentificationNumber: "DECEASED-abc-1",
				HealthNeeds:          `{"fecha_aniversario":"2019-11-02","era_padre":false,"era_madre":"sí","causa_fallecimiento":" Covid "}`,
			},
			wantSource:      usecase.DeceasedSourceLegacy,
			wantMother:      true,
			wantCause:       "Covid",
			wantAnniversary: &anniversary,
		},
		{
			name: "inferred father from sex",
			person: entity.Person{
				Kind:        entity.PersonKindDeceased,
				FirstName:   "Pedro",
				SexID:       &male,
				HealthNeeds: "hipertensión",
			},
			wantSource:   usecase.DeceasedSourceInferred,
			wantFather:   true,
			wantInferred: true,
		},
		{
			name: "inferred without sex",
			person: entity.Person{
				Kind:        entity.PersonKindDeceased,
				FirstName:   "NN",
				HealthNeeds: "{not json",
			},
			wantSource:   usecase.DeceasedSourceInferred,
			wantInferred: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := decodeDeceased(&tt.person)
			assert.Equal(t, tt.wantSource, view.Source)
			assert.Equal(t, tt.wantFather, view.WasFather)
			assert.Equal(t, tt.wantMother, view.WasMother)
			assert.Equal(t, tt.wantInferred, view.RoleInferred)
			assert.Equal(t, tt.wantCause, view.Cause)
			if tt.wantAnniversary== nil {
				assert.Nil(t, view.Anniversary)
			} else {
				require.NotNil(t, view.Anniversary)
				assert.True(t, tt.wantAnniversary.Equal(*view.Anniversary))
			}
		})
	}
}
