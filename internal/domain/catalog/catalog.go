// Package catalog resolves interviewer-entered labels to catalog identifiers.
// Every lookup is total: unknown input yields nil (or the documented fallback), never an error.
package catalog

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Kind names a static catalog.
type Kind string

const (
	KindSex                Kind = "sex"
	KindIdentificationType Kind = "identification_type"
	KindCivilStatus        Kind = "civil_status"
	KindEducationLevel     Kind = "education_level"
	KindDisposalMethod     Kind = "disposal_method"
	KindWaterSystem        Kind = "water_system"
	KindHousingType        Kind = "housing_type"
)

// IdentificationFallbackID is used for any non-blank identification code that is not recognized (CC).
const IdentificationFallbackID int64 = 1

type entry struct {
	id      int64
	label   string
	aliases []string
}

var tables = map[Kind][]entry{
	KindSex: {
		{1, "Masculino", []string{"m", "hombre", "male"}},
		{2, "Femenino", []string{"f", "mujer", "female"}},
		{3, "Otro", []string{"o", "otro", "no binario"}},
	},
	KindIdentificationType: {
		{1, "Cédula de ciudadanía", []string{"cc", "cedula"}},
		{2, "Tarjeta de identidad", []string{"ti"}},
		{3, "Registro civil", []string{"rc"}},
		{4, "Cédula de extranjería", []string{"ce"}},
		{5, "Pasaporte", []string{"pa", "pp"}},
		{6, "NUIP", []string{"nuip"}},
		{7, "Permiso especial de permanencia", []string{"pep", "ppt"}},
	},
	KindCivilStatus: {
		{1, "Soltero(a)", []string{"soltero", "soltera"}},
		{2, "Casado(a)", []string{"casado", "casada"}},
		{3, "Unión libre", []string{"union libre", "union marital"}},
		{4, "Viudo(a)", []string{"viudo", "viuda"}},
		{5, "Separado(a)", []string{"separado", "separada"}},
		{6, "Divorciado(a)", []string{"divorciado", "divorciada"}},
	},
	KindEducationLevel: {
		{1, "Ninguno", []string{"ninguna", "sin estudio"}},
		{2, "Primaria", []string{"basica primaria"}},
		{3, "Secundaria", []string{"bachillerato", "basica secundaria"}},
		{4, "Técnico", []string{"tecnica"}},
		{5, "Tecnólogo", []string{"tecnologia"}},
		{6, "Universitario", []string{"profesional", "pregrado"}},
		{7, "Posgrado", []string{"especializacion", "maestria", "doctorado"}},
	},
	KindDisposalMethod: {
		{1, "Recolección municipal", []string{"recoleccion"}},
		{2, "Quema", nil},
		{3, "Entierro", []string{"entierra"}},
		{4, "Reciclaje", []string{"recicla"}},
		{5, "A campo abierto", []string{"aire libre", "botadero"}},
		{6, "Otro", nil},
	},
	KindWaterSystem: {
		{1, "Acueducto", []string{"acueducto publico"}},
		{2, "Pozo", []string{"aljibe"}},
		{3, "Río o quebrada", []string{"rio", "quebrada", "nacimiento"}},
		{4, "Agua lluvia", []string{"lluvia"}},
		{5, "Carrotanque", nil},
		{6, "Otro", nil},
	},
	KindHousingType: {
		{1, "Casa", nil},
		{2, "Apartamento", []string{"apto"}},
		{3, "Finca", []string{"casa finca"}},
		{4, "Cuarto", []string{"habitacion", "pieza"}},
		{5, "Rancho", []string{"vivienda improvisada", "improvisada"}},
		{6, "Otro", nil},
	},
}

var index = buildIndex()

func buildIndex() map[Kind]map[string]int64 {
	idx := make(map[Kind]map[string]int64, len(tables))
	for kind, entries := range tables {
		byLabel := make(map[string]int64, len(entries)*2)
		for _, e := range entries {
			byLabel[Normalize(e.label)] = e.id
			for _, alias := range e.aliases {
				byLabel[Normalize(alias)] = e.id
			}
		}
		idx[kind] = byLabel
	}

	return idx
}

// Normalize lower-cases, strips diacritics and collapses whitespace.
func Normalize(label string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, label)
	if err != nil {
		stripped = label
	}

	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

// Resolve looks up a label in the given catalog. Blank or unknown labels yield nil.
func Resolve(kind Kind, label string) *int64 {
	key := Normalize(label)
	if key == "" {
		return nil
	}
	if id, ok := index[kind][key]; ok {
		return &id
	}

	return nil
}

// ResolveSex maps a sex label; unknown or blank yields nil.
func ResolveSex(label string) *int64 {
	return Resolve(KindSex, label)
}

// ResolveCivilStatus maps a civil status label; unknown or blank yields nil.
func ResolveCivilStatus(label string) *int64 {
	return Resolve(KindCivilStatus, label)
}

// ResolveEducationLevel maps an education level label; unknown or blank yields nil.
func ResolveEducationLevel(label string) *int64 {
	return Resolve(KindEducationLevel, label)
}

// ResolveHousingType maps a housing type label; unknown or blank yields nil.
func ResolveHousingType(label string) *int64 {
	return Resolve(KindHousingType, label)
}

// ResolveIdentificationType maps an identification code. Blank yields nil;
// any other unrecognized code falls back to CC.
func ResolveIdentificationType(code string) *int64 {
	if Normalize(code) == "" {
		return nil
	}
	if id := Resolve(KindIdentificationType, code); id != nil {
		return id
	}
	fallback := IdentificationFallbackID

	return &fallback
}

// Label returns the display label for a catalog id, or "" when unknown.
func Label(kind Kind, id int64) string {
	for _, e := range tables[kind] {
		if e.id == id {
			return e.label
		}
	}

	return ""
}

// LabelOf is Label for optional ids.
func LabelOf(kind Kind, id *int64) string {
	if id == nil {
		return ""
	}

	return Label(kind, *id)
}

// DisposalFlags are the waste-disposal checkboxes of the interview form.
type DisposalFlags struct {
	Collection bool `json:"recoleccion"`
	Burning    bool `json:"quema"`
	Burial     bool `json:"entierro"`
	Recycling  bool `json:"reciclaje"`
	OpenAir    bool `json:"campo_abierto"`
	Other      bool `json:"otro"`
}

// WaterFlags are the water-supply checkboxes of the interview form.
type WaterFlags struct {
	Aqueduct  bool `json:"acueducto"`
	Well      bool `json:"pozo"`
	River     bool `json:"rio"`
	Rainwater bool `json:"lluvia"`
	TankTruck bool `json:"carrotanque"`
	Other     bool `json:"otro"`
}

// DisposalMethods returns the catalog ids of every true flag, in catalog order.
func DisposalMethods(flags DisposalFlags) []int64 {
	return collect([]bool{
		flags.Collection, flags.Burning, flags.Burial, flags.Recycling, flags.OpenAir, flags.Other,
	}, []int64{1, 2, 3, 4, 5, 6})
}

// WaterSystems returns the catalog ids of every true flag, in catalog order.
func WaterSystems(flags WaterFlags) []int64 {
	return collect([]bool{
		flags.Aqueduct, flags.Well, flags.River, flags.Rainwater, flags.TankTruck, flags.Other,
	}, []int64{1, 2, 3, 4, 5, 6})
}

func collect(flags []bool, ids []int64) []int64 {
	out := make([]int64, 0, len(flags))
	for i, set := range flags {
		if set && !slices.Contains(out, ids[i]) {
			out = append(out, ids[i])
		}
	}

	return out
}
