package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/entrysync/internal/entry"
	"github.com/isometry/entrysync/internal/mapper"
)

func TestOUMapper(t *testing.T) {
	m := NewOUMapper("DC=example,DC=com")

	e := entry.NewEntry("OU=Engineering,OU=Departments,DC=example,DC=com",
		entry.NewTextAttribute("ou", "Engineering"),
		entry.NewTextAttribute("description", "Engineering department"),
		entry.NewTextAttribute("whenChanged", "20240315101112.0Z"),
	)

	ou, err := m.ToObject(e)
	require.NoError(t, err)
	assert.Equal(t, "Engineering", ou.Name)
	assert.Equal(t, "OU=Departments,DC=example,DC=com", ou.Parent)
	assert.Nil(t, ou.AdvancedViewOnly)
	assert.Equal(t, 15, ou.WhenChanged.Day())
	assert.Equal(t, "ou=Engineering,OU=Departments,DC=example,DC=com", m.DN(ou))

	hidden := true
	ou.AdvancedViewOnly = &hidden
	ou.Description = ""

	mods, err := m.Reconcile(ou, e)
	require.NoError(t, err)
	require.Len(t, mods, 2)
	assert.Equal(t, entry.Delete, mods[0].Kind)
	assert.Equal(t, "description", mods[0].Attribute.Name)
	assert.Equal(t, entry.Add, mods[1].Kind)
	assert.Equal(t, []string{"TRUE"}, mods[1].Attribute.StringValues())
}

func TestOUMapper_NewEntryUnderBase(t *testing.T) {
	m := NewOUMapper("DC=example,DC=com")

	e, err := mapper.NewEntry[*OrganizationalUnit](m, &OrganizationalUnit{Name: "Servers"})
	require.NoError(t, err)
	assert.Equal(t, "ou=Servers,DC=example,DC=com", e.DN)
	assert.Equal(t, []string{"objectClass", "ou"}, e.Names())
}
