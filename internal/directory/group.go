package directory

import (
	"time"

	"github.com/google/uuid"

	"github.com/isometry/entrysync/internal/entry"
	"github.com/isometry/entrysync/internal/mapper"
)

// GroupScope represents the scope of an Active Directory group.
type GroupScope string

const (
	GroupScopeGlobal      GroupScope = "Global"
	GroupScopeUniversal   GroupScope = "Universal"
	GroupScopeDomainLocal GroupScope = "DomainLocal"
)

func (gs GroupScope) String() string {
	return string(gs)
}

// GroupCategory represents the category of an Active Directory group.
type GroupCategory string

const (
	GroupCategorySecurity     GroupCategory = "Security"
	GroupCategoryDistribution GroupCategory = "Distribution"
)

func (gc GroupCategory) String() string {
	return string(gc)
}

// Active Directory groupType bit flags.
const (
	GroupTypeFlagGlobal      int32 = 0x00000002 // ADS_GROUP_TYPE_GLOBAL_GROUP
	GroupTypeFlagDomainLocal int32 = 0x00000004 // ADS_GROUP_TYPE_DOMAIN_LOCAL_GROUP
	GroupTypeFlagUniversal   int32 = 0x00000008 // ADS_GROUP_TYPE_UNIVERSAL_GROUP

	GroupTypeFlagBuiltinLocal int32 = 0x00000001 // ADS_GROUP_TYPE_BUILTIN_LOCAL_GROUP
	GroupTypeFlagAppBasic     int32 = 0x00000010 // ADS_GROUP_TYPE_APP_BASIC_GROUP
	GroupTypeFlagAppQuery     int32 = 0x00000020 // ADS_GROUP_TYPE_APP_QUERY_GROUP

	GroupTypeFlagSecurity int32 = -2147483648 // ADS_GROUP_TYPE_SECURITY_ENABLED (0x80000000 as signed int32)
)

// groupTypeManagedBits are the groupType bits derived from scope and category.
const groupTypeManagedBits = GroupTypeFlagGlobal | GroupTypeFlagDomainLocal | GroupTypeFlagUniversal | GroupTypeFlagSecurity

// Group is an Active Directory group.
type Group struct {
	DistinguishedName string
	Container         string

	Name string // cn
	// SAMAccountName defaults to Name when empty and Name is a valid
	// account name of at most 64 characters.
	SAMAccountName string
	Description    string
	Mail           string
	MailNickname   string
	Scope          GroupScope
	Category       GroupCategory

	// MemberDNs are kept in directory order.
	MemberDNs []string

	// Server-managed.
	ObjectGUID  uuid.UUID
	ObjectSid   string
	GroupType   int32 // as loaded; flags outside Scope and Category are preserved
	MemberOf    []string
	WhenCreated time.Time
	WhenChanged time.Time
}

// CalculateGroupType computes the groupType value for scope and category.
// Unknown scopes fall back to Global.
func CalculateGroupType(scope GroupScope, category GroupCategory) int32 {
	var groupType int32

	switch scope {
	case GroupScopeDomainLocal:
		groupType |= GroupTypeFlagDomainLocal
	case GroupScopeUniversal:
		groupType |= GroupTypeFlagUniversal
	default:
		groupType |= GroupTypeFlagGlobal
	}

	if category == GroupCategorySecurity {
		groupType |= GroupTypeFlagSecurity
	}

	return groupType
}

// MergeGroupType replaces the scope and category bits of current, keeping
// server-owned flags such as GroupTypeFlagBuiltinLocal. current is returned
// as is when it already carries scope and category.
func MergeGroupType(current int32, scope GroupScope, category GroupCategory) int32 {
	if current != 0 {
		if s, c := ParseGroupType(current); s == scope && c == category {
			return current
		}
	}
	return current&^groupTypeManagedBits | CalculateGroupType(scope, category)
}

// ParseGroupType splits a groupType value into scope and category.
func ParseGroupType(groupType int32) (GroupScope, GroupCategory) {
	scope := GroupScopeGlobal
	switch {
	case groupType&GroupTypeFlagDomainLocal != 0:
		scope = GroupScopeDomainLocal
	case groupType&GroupTypeFlagUniversal != 0:
		scope = GroupScopeUniversal
	}

	category := GroupCategoryDistribution
	if groupType&GroupTypeFlagSecurity != 0 {
		category = GroupCategorySecurity
	}

	return scope, category
}

// NewGroupMapper maps groups. Groups without a Container are placed
// directly under baseDN.
func NewGroupMapper(baseDN string) *mapper.Mapper[*Group] {
	return mapper.MustNew(mapper.Spec[*Group]{
		ObjectClasses: []string{"top", "group"},
		New:           func() *Group { return &Group{} },
		DN: func(g *Group) string {
			return childDN("cn", g.Name, g.Container, baseDN)
		},
		SetDN: func(g *Group, dn string) {
			g.DistinguishedName = dn
			g.Container = parentOf(dn)
		},
		Fields: []mapper.Field[*Group]{
			mapper.Text("cn",
				func(g *Group) string { return g.Name },
				func(g *Group, v string) { g.Name = v }),
			mapper.Text("sAMAccountName",
				func(g *Group) string { return samAccountName(g.SAMAccountName, g.Name, groupSAMAccountNameLimit) },
				func(g *Group, v string) { g.SAMAccountName = v }),
			mapper.Text("description",
				func(g *Group) string { return g.Description },
				func(g *Group, v string) { g.Description = v }),
			mapper.Text("mail",
				func(g *Group) string { return g.Mail },
				func(g *Group, v string) { g.Mail = v }),
			mapper.Text("mailNickname",
				func(g *Group) string { return g.MailNickname },
				func(g *Group, v string) { g.MailNickname = v }),
			mapper.Value("groupType", false, entry.Int32,
				func(g *Group) int32 { return MergeGroupType(g.GroupType, g.Scope, g.Category) },
				func(g *Group, v int32) {
					g.GroupType = v
					g.Scope, g.Category = ParseGroupType(v)
				}),
			mapper.Values("member", false, entry.DistinguishedName,
				func(g *Group) []string { return g.MemberDNs },
				func(g *Group, v []string) { g.MemberDNs = v }),
			mapper.ReadOnlyValues("memberOf", false, entry.DistinguishedName,
				func(g *Group, v []string) { g.MemberOf = v }),
			mapper.ReadOnly("objectGUID", true, entry.ObjectGUID,
				func(g *Group, v uuid.UUID) { g.ObjectGUID = v }),
			mapper.ReadOnly("objectSid", true, entry.ObjectSID,
				func(g *Group, v string) { g.ObjectSid = v }),
			mapper.ReadOnly("whenCreated", false, entry.GeneralizedTime,
				func(g *Group, v time.Time) { g.WhenCreated = v }),
			mapper.ReadOnly("whenChanged", false, entry.GeneralizedTime,
				func(g *Group, v time.Time) { g.WhenChanged = v }),
		},
	})
}
