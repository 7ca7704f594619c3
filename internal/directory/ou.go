package directory

import (
	"time"

	"github.com/google/uuid"

	"github.com/isometry/entrysync/internal/entry"
	"github.com/isometry/entrysync/internal/mapper"
)

// OrganizationalUnit is an Active Directory organizational unit.
type OrganizationalUnit struct {
	DistinguishedName string
	Parent            string

	Name        string // ou
	Description string

	// AdvancedViewOnly hides the OU outside the advanced view. nil leaves
	// showInAdvancedViewOnly unset.
	AdvancedViewOnly *bool

	ObjectGUID  uuid.UUID
	WhenCreated time.Time
	WhenChanged time.Time
}

// NewOUMapper maps organizational units. OUs without a Parent are placed
// directly under baseDN.
func NewOUMapper(baseDN string) *mapper.Mapper[*OrganizationalUnit] {
	return mapper.MustNew(mapper.Spec[*OrganizationalUnit]{
		ObjectClasses: []string{"top", "organizationalUnit"},
		New:           func() *OrganizationalUnit { return &OrganizationalUnit{} },
		DN: func(ou *OrganizationalUnit) string {
			return childDN("ou", ou.Name, ou.Parent, baseDN)
		},
		SetDN: func(ou *OrganizationalUnit, dn string) {
			ou.DistinguishedName = dn
			ou.Parent = parentOf(dn)
		},
		Fields: []mapper.Field[*OrganizationalUnit]{
			mapper.Text("ou",
				func(ou *OrganizationalUnit) string { return ou.Name },
				func(ou *OrganizationalUnit, v string) { ou.Name = v }),
			mapper.Text("description",
				func(ou *OrganizationalUnit) string { return ou.Description },
				func(ou *OrganizationalUnit, v string) { ou.Description = v }),
			mapper.Optional("showInAdvancedViewOnly", false, entry.Bool,
				func(ou *OrganizationalUnit) *bool { return ou.AdvancedViewOnly },
				func(ou *OrganizationalUnit, v *bool) { ou.AdvancedViewOnly = v }),
			mapper.ReadOnly("objectGUID", true, entry.ObjectGUID,
				func(ou *OrganizationalUnit, v uuid.UUID) { ou.ObjectGUID = v }),
			mapper.ReadOnly("whenCreated", false, entry.GeneralizedTime,
				func(ou *OrganizationalUnit, v time.Time) { ou.WhenCreated = v }),
			mapper.ReadOnly("whenChanged", false, entry.GeneralizedTime,
				func(ou *OrganizationalUnit, v time.Time) { ou.WhenChanged = v }),
		},
	})
}
