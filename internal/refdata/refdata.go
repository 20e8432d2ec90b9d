// Package refdata holds the static reference tables used by intake, case
// opening and the mission forms.
package refdata

import (
	"sort"
	"strings"
)

// Option is a code/label pair suitable for a select control
type Option struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Official is a member of the officials roster
type Official struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Regional string `json:"regional"`
}

// Document types accepted for applicants, requesters and family members.
var DocumentTypes = []Option{
	{Code: "CC", Label: "Cédula de Ciudadanía"},
	{Code: "TI", Label: "Tarjeta de Identidad"},
	{Code: "CE", Label: "Cédula de Extranjería"},
	{Code: "PA", Label: "Pasaporte"},
	{Code: "RC", Label: "Registro Civil"},
	{Code: "PEP", Label: "Permiso Especial de Permanencia"},
	{Code: "PPT", Label: "Permiso por Protección Temporal"},
}

// Regionals are the regional units missions are routed to.
var Regionals = []string{
	"Antioquia",
	"Bogotá",
	"Caribe",
	"Centro Sur",
	"Eje Cafetero",
	"Nororiental",
	"Orinoquía",
	"Pacífico",
}

// Departments maps each department to its cities.
var Departments = map[string][]string{
	"Antioquia":          {"Medellín", "Bello", "Itagüí", "Apartadó", "Rionegro"},
	"Atlántico":          {"Barranquilla", "Soledad", "Malambo"},
	"Bogotá D.C.":        {"Bogotá"},
	"Bolívar":            {"Cartagena", "Magangué", "El Carmen de Bolívar"},
	"Caquetá":            {"Florencia", "San Vicente del Caguán"},
	"Cauca":              {"Popayán", "Santander de Quilichao", "El Tambo"},
	"Huila":              {"Neiva", "Pitalito", "Garzón"},
	"Meta":               {"Villavicencio", "Granada", "Puerto López"},
	"Nariño":             {"Pasto", "Tumaco", "Ipiales"},
	"Norte de Santander": {"Cúcuta", "Ocaña", "Tibú"},
	"Risaralda":          {"Pereira", "Dosquebradas"},
	"Santander":          {"Bucaramanga", "Barrancabermeja", "Floridablanca"},
	"Tolima":             {"Ibagué", "Espinal", "Chaparral"},
	"Valle del Cauca":    {"Cali", "Buenaventura", "Palmira", "Tuluá"},
}

// Officials is the roster of leads and officials.
var Officials = []Official{
	{ID: "off-001", Name: "A. Ruiz", Role: "OFFICIAL", Regional: "Centro Sur"},
	{ID: "off-002", Name: "M. Castaño", Role: "OFFICIAL", Regional: "Antioquia"},
	{ID: "off-003", Name: "J. Mosquera", Role: "OFFICIAL", Regional: "Pacífico"},
	{ID: "off-004", Name: "L. Pérez", Role: "OFFICIAL", Regional: "Caribe"},
	{ID: "off-005", Name: "D. Rincón", Role: "OFFICIAL", Regional: "Bogotá"},
	{ID: "lead-001", Name: "C. Gómez", Role: "REGIONAL_LEAD", Regional: "Centro Sur"},
	{ID: "lead-002", Name: "R. Valencia", Role: "REGIONAL_LEAD", Regional: "Pacífico"},
	{ID: "lead-003", Name: "S. Herrera", Role: "REGIONAL_LEAD", Regional: "Antioquia"},
	{ID: "nat-001", Name: "P. Londoño", Role: "NATIONAL_LEAD", Regional: ""},
}

// MissionTypes is the catalog of work order types.
var MissionTypes = []Option{
	{Code: "EVR", Label: "Evaluación de riesgo"},
	{Code: "VRF", Label: "Verificación de información"},
	{Code: "ENT", Label: "Entrevista técnica"},
	{Code: "ACP", Label: "Acompañamiento"},
	{Code: "REE", Label: "Reevaluación de medidas"},
}

// ExtensionReasons are the four causal reasons accepted for a due date extension.
var ExtensionReasons = []Option{
	{Code: "DIFICIL_ACCESO", Label: "Difícil acceso a la zona o al candidato"},
	{Code: "ORDEN_PUBLICO", Label: "Situación de orden público"},
	{Code: "CANDIDATO_NO_UBICADO", Label: "Candidato no ubicado o no disponible"},
	{Code: "INFORMACION_PENDIENTE", Label: "Información pendiente de entidades externas"},
}

// Relationships are the family relationship labels.
var Relationships = []Option{
	{Code: "CONYUGE", Label: "Cónyuge o compañero(a)"},
	{Code: "HIJO", Label: "Hijo(a)"},
	{Code: "PADRE", Label: "Padre"},
	{Code: "MADRE", Label: "Madre"},
	{Code: "HERMANO", Label: "Hermano(a)"},
	{Code: "OTRO", Label: "Otro"},
}

// CandidateClassifications are the program's candidate categories.
var CandidateClassifications = []Option{
	{Code: "VICTIMA", Label: "Víctima"},
	{Code: "TESTIGO", Label: "Testigo"},
	{Code: "INTERVINIENTE", Label: "Interviniente"},
	{Code: "SERVIDOR", Label: "Servidor de la Fiscalía"},
}

// Areas are the sections a case or mission can be assigned to.
var Areas = []Option{
	{Code: "PROTECCION", Label: "Sección de Protección"},
	{Code: "ASISTENCIA", Label: "Sección de Asistencia"},
	{Code: "EVALUACION", Label: "Grupo de Evaluación de Riesgo"},
}

// IsExtensionReason reports whether code is one of the accepted extension reasons
func IsExtensionReason(code string) bool {
	_, ok := Lookup(ExtensionReasons, code)
	return ok
}

// IsRegional reports whether name is a known regional unit
func IsRegional(name string) bool {
	for _, r := range Regionals {
		if strings.EqualFold(r, name) {
			return true
		}
	}
	return false
}

// Lookup finds an option by code
func Lookup(options []Option, code string) (Option, bool) {
	for _, o := range options {
		if o.Code == code {
			return o, true
		}
	}
	return Option{}, false
}

// FindOfficial finds a roster entry by ID or name
func FindOfficial(key string) (Official, bool) {
	for _, o := range Officials {
		if o.ID == key || strings.EqualFold(o.Name, key) {
			return o, true
		}
	}
	return Official{}, false
}

// OfficialsIn returns the officials of a regional
func OfficialsIn(regional string) []Official {
	var out []Official
	for _, o := range Officials {
		if o.Role == "OFFICIAL" && strings.EqualFold(o.Regional, regional) {
			out = append(out, o)
		}
	}
	return out
}

// Table returns a reference table by name for the refdata endpoint
func Table(name string) (interface{}, bool) {
	switch name {
	case "document-types":
		return DocumentTypes, true
	case "regionals":
		return Regionals, true
	case "departments":
		names := make([]string, 0, len(Departments))
		for d := range Departments {
			names = append(names, d)
		}
		sort.Strings(names)
		out := make([]map[string]interface{}, 0, len(names))
		for _, d := range names {
			out = append(out, map[string]interface{}{"department": d, "cities": Departments[d]})
		}
		return out, true
	case "officials":
		return Officials, true
	case "mission-types":
		return MissionTypes, true
	case "extension-reasons":
		return ExtensionReasons, true
	case "relationships":
		return Relationships, true
	case "candidate-classifications":
		return CandidateClassifications, true
	case "areas":
		return Areas, true
	}
	return nil, false
}
