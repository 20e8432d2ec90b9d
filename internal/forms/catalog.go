package forms

import "github.com/shopspring/decimal"

// Section is one of the three ITVR scoring groups
type Section string

const (
	SectionThreat        Section = "THREAT"
	SectionSpecificRisk  Section = "SPECIFIC_RISK"
	SectionVulnerability Section = "VULNERABILITY"
)

// Sections lists the ITVR sections in document order
var Sections = []Section{SectionThreat, SectionSpecificRisk, SectionVulnerability}

// Label returns the printed section title
func (s Section) Label() string {
	switch s {
	case SectionThreat:
		return "Amenaza"
	case SectionSpecificRisk:
		return "Riesgo específico"
	case SectionVulnerability:
		return "Vulnerabilidad"
	}
	return string(s)
}

// Option is a qualitative answer to a factor
type Option string

const (
	OptionNotApplicable Option = "NO_APLICA"
	OptionLow           Option = "BAJO"
	OptionMedium        Option = "MEDIO"
	OptionHigh          Option = "ALTO"
)

// Options lists the legal answers in ascending weight
var Options = []Option{OptionNotApplicable, OptionLow, OptionMedium, OptionHigh}

var optionFactor = map[Option]decimal.Decimal{
	OptionNotApplicable: decimal.Zero,
	OptionLow:           decimal.RequireFromString("0.33"),
	OptionMedium:        decimal.RequireFromString("0.66"),
	OptionHigh:          decimal.NewFromInt(1),
}

// Factor is a weighted item of the instrument
type Factor struct {
	ID      string          `json:"id"`
	Section Section         `json:"section"`
	Label   string          `json:"label"`
	Max     decimal.Decimal `json:"max"`
}

// Weight returns the legal weight for an option
func (f Factor) Weight(o Option) (decimal.Decimal, bool) {
	k, ok := optionFactor[o]
	if !ok {
		return decimal.Zero, false
	}
	return f.Max.Mul(k).Round(2), true
}

func factor(id string, s Section, maxWeight int64, label string) Factor {
	return Factor{ID: id, Section: s, Label: label, Max: decimal.NewFromInt(maxWeight)}
}

// Catalog is the fixed ITVR factor list. Section maxima are 40, 35 and 25.
var Catalog = []Factor{
	factor("T01", SectionThreat, 8, "Amenazas directas recibidas"),
	factor("T02", SectionThreat, 6, "Capacidad del agresor para materializar la amenaza"),
	factor("T03", SectionThreat, 6, "Antecedentes de agresiones al candidato o su núcleo"),
	factor("T04", SectionThreat, 6, "Presencia de actores armados en la zona"),
	factor("T05", SectionThreat, 5, "Seguimientos o vigilancia reportados"),
	factor("T06", SectionThreat, 5, "Amenazas a través de terceros o medios"),
	factor("T07", SectionThreat, 4, "Vigencia temporal de la amenaza"),
	factor("R01", SectionSpecificRisk, 7, "Relevancia de la participación procesal"),
	factor("R02", SectionSpecificRisk, 6, "Etapa del proceso penal"),
	factor("R03", SectionSpecificRisk, 6, "Exposición pública del candidato"),
	factor("R04", SectionSpecificRisk, 5, "Cercanía con el agresor"),
	factor("R05", SectionSpecificRisk, 5, "Riesgo derivado de la actividad laboral"),
	factor("R06", SectionSpecificRisk, 3, "Desplazamiento forzado previo"),
	factor("R07", SectionSpecificRisk, 3, "Afectación al núcleo familiar"),
	factor("V01", SectionVulnerability, 5, "Condiciones de seguridad de la vivienda"),
	factor("V02", SectionVulnerability, 4, "Dependencia económica"),
	factor("V03", SectionVulnerability, 4, "Condición de salud o discapacidad"),
	factor("V04", SectionVulnerability, 4, "Menores o adultos mayores a cargo"),
	factor("V05", SectionVulnerability, 4, "Acceso a redes de apoyo"),
	factor("V06", SectionVulnerability, 4, "Rutas de desplazamiento expuestas"),
}

// FindFactor looks a factor up by ID
func FindFactor(id string) (Factor, bool) {
	for _, f := range Catalog {
		if f.ID == id {
			return f, true
		}
	}
	return Factor{}, false
}

// SectionMax sums the factor maxima of a section
func SectionMax(s Section) decimal.Decimal {
	total := decimal.Zero
	for _, f := range Catalog {
		if f.Section == s {
			total = total.Add(f.Max)
		}
	}
	return total
}
