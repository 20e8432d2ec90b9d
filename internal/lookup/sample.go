package lookup

import (
	"time"

	"protectbox/internal/model"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// SampleRegistry is the dictionary served when no registry integration is configured
func SampleRegistry() *MockRegistry {
	return NewMockRegistry(map[string]RegistryRecord{
		"52000111": {
			Identity: model.Identity{
				PersonName:     model.PersonName{FirstName: "Ana", SecondName: "María", FirstSurname: "Díaz", SecondSurname: "Rojas"},
				DocumentType:   "CC",
				DocumentNumber: "52000111",
			},
			BirthDate:  day(1985, time.June, 14),
			Department: "Huila",
			City:       "Neiva",
		},
		"1010202030": {
			Identity: model.Identity{
				PersonName:     model.PersonName{FirstName: "Carlos", FirstSurname: "Mejía", SecondSurname: "Ortiz"},
				DocumentType:   "CC",
				DocumentNumber: "1010202030",
			},
			BirthDate:  day(1992, time.February, 29),
			Department: "Valle del Cauca",
			City:       "Cali",
		},
		"1122334455": {
			Identity: model.Identity{
				PersonName:     model.PersonName{FirstName: "Lucía", FirstSurname: "Pérez"},
				DocumentType:   "TI",
				DocumentNumber: "1122334455",
			},
			BirthDate:  day(2010, time.October, 3),
			Department: "Nariño",
			City:       "Tumaco",
		},
	})
}

// SampleCriminalCases is the dictionary served when no case-system integration is configured
func SampleCriminalCases() *MockCriminalCases {
	return NewMockCriminalCases(map[string][]CriminalCase{
		"52000111": {
			{NUNC: "410016000584202300123", Crime: "Homicidio agravado", Role: "TESTIGO", Prosecutor: "Fiscalía 12 Seccional Neiva", Status: "JUICIO"},
		},
		"1010202030": {
			{NUNC: "760016000193202200456", Crime: "Concierto para delinquir", Role: "VICTIMA", Prosecutor: "Fiscalía 4 Especializada Cali", Status: "INDAGACION"},
			{NUNC: "760016000193202400789", Crime: "Amenazas", Role: "VICTIMA", Prosecutor: "Fiscalía 30 Local Cali", Status: "INVESTIGACION"},
		},
	})
}
