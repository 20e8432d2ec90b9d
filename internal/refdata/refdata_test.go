package refdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionReasons(t *testing.T) {
	require.Len(t, ExtensionReasons, 4)
	assert.True(t, IsExtensionReason("ORDEN_PUBLICO"))
	assert.False(t, IsExtensionReason("orden_publico"))
	assert.False(t, IsExtensionReason(""))
}

func TestRegionalsAndRoster(t *testing.T) {
	assert.True(t, IsRegional("centro sur"))
	assert.False(t, IsRegional("Amazonas"))

	o, ok := FindOfficial("off-003")
	require.True(t, ok)
	assert.Equal(t, "Pacífico", o.Regional)

	o, ok = FindOfficial("c. gómez")
	require.True(t, ok)
	assert.Equal(t, "REGIONAL_LEAD", o.Role)

	for _, off := range OfficialsIn("Pacífico") {
		assert.Equal(t, "OFFICIAL", off.Role)
	}
	assert.Len(t, OfficialsIn("Pacífico"), 1)
	assert.Empty(t, OfficialsIn("Orinoquía"))

	// every roster regional must be a known regional unit
	for _, off := range Officials {
		if off.Regional != "" {
			assert.True(t, IsRegional(off.Regional), off.ID)
		}
	}
}

func TestTable(t *testing.T) {
	for _, name := range []string{"document-types", "regionals", "departments", "officials", "mission-types", "extension-reasons", "relationships", "candidate-classifications", "areas"} {
		_, ok := Table(name)
		assert.True(t, ok, name)
	}
	_, ok := Table("planets")
	assert.False(t, ok)

	deps, _ := Table("departments")
	rows := deps.([]map[string]interface{})
	require.Len(t, rows, len(Departments))
	assert.Equal(t, "Antioquia", rows[0]["department"])

	opt, ok := Lookup(DocumentTypes, "PPT")
	require.True(t, ok)
	assert.Equal(t, "Permiso por Protección Temporal", opt.Label)
}
