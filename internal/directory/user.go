package directory

import (
	"time"

	"github.com/google/uuid"

	"github.com/isometry/entrysync/internal/entry"
	"github.com/isometry/entrysync/internal/mapper"
)

// userAccountControl flags.
const (
	UACAccountDisabled      int32 = 0x00000002
	UACPasswordNotRequired  int32 = 0x00000020
	UACPasswordCantChange   int32 = 0x00000040
	UACNormalAccount        int32 = 0x00000200
	UACPasswordNeverExpires int32 = 0x00010000
	UACSmartCardRequired    int32 = 0x00040000
	UACTrustedForDelegation int32 = 0x00080000
	UACPasswordExpired      int32 = 0x00800000
)

// User is an Active Directory user account.
type User struct {
	DistinguishedName string
	Container         string

	CommonName        string // cn
	Surname           string
	GivenName         string
	Initials          string
	DisplayName       string
	Description       string
	SAMAccountName    string // defaults to CommonName when that is a valid name of at most 20 characters
	UserPrincipalName string
	EmailAddress      string
	TelephoneNumbers  []string
	Title             string
	Department        string
	Company           string
	Manager           string // DN
	EmployeeID        string
	Photo             []byte // jpegPhoto

	// UserAccountControl is left untouched when nil.
	UserAccountControl *int32

	// Server-managed.
	ObjectGUID  uuid.UUID
	ObjectSid   string
	MemberOf    []string
	WhenCreated time.Time
	WhenChanged time.Time
}

// Enabled reports whether the account is enabled. Accounts without a
// userAccountControl value are reported as disabled.
func (u *User) Enabled() bool {
	return u.UserAccountControl != nil && *u.UserAccountControl&UACAccountDisabled == 0
}

// SetEnabled sets or clears the disabled flag, starting from a normal
// account when no userAccountControl value is present.
func (u *User) SetEnabled(enabled bool) {
	uac := UACNormalAccount
	if u.UserAccountControl != nil {
		uac = *u.UserAccountControl
	}
	if enabled {
		uac &^= UACAccountDisabled
	} else {
		uac |= UACAccountDisabled
	}
	u.UserAccountControl = &uac
}

// NewUserMapper maps user accounts. Users without a Container are placed
// directly under baseDN.
func NewUserMapper(baseDN string) *mapper.Mapper[*User] {
	return mapper.MustNew(mapper.Spec[*User]{
		ObjectClasses: []string{"top", "person", "organizationalPerson", "user"},
		New:           func() *User { return &User{} },
		DN: func(u *User) string {
			return childDN("cn", u.CommonName, u.Container, baseDN)
		},
		SetDN: func(u *User, dn string) {
			u.DistinguishedName = dn
			u.Container = parentOf(dn)
		},
		Fields: []mapper.Field[*User]{
			mapper.Text("cn",
				func(u *User) string { return u.CommonName },
				func(u *User, v string) { u.CommonName = v }),
			mapper.Text("sn",
				func(u *User) string { return u.Surname },
				func(u *User, v string) { u.Surname = v }),
			mapper.Text("givenName",
				func(u *User) string { return u.GivenName },
				func(u *User, v string) { u.GivenName = v }),
			mapper.Text("initials",
				func(u *User) string { return u.Initials },
				func(u *User, v string) { u.Initials = v }),
			mapper.Text("displayName",
				func(u *User) string { return u.DisplayName },
				func(u *User, v string) { u.DisplayName = v }),
			mapper.Text("description",
				func(u *User) string { return u.Description },
				func(u *User, v string) { u.Description = v }),
			mapper.Text("sAMAccountName",
				func(u *User) string { return samAccountName(u.SAMAccountName, u.CommonName, userSAMAccountNameLimit) },
				func(u *User, v string) { u.SAMAccountName = v }),
			mapper.Text("userPrincipalName",
				func(u *User) string { return u.UserPrincipalName },
				func(u *User, v string) { u.UserPrincipalName = v }),
			mapper.Text("mail",
				func(u *User) string { return u.EmailAddress },
				func(u *User, v string) { u.EmailAddress = v }),
			mapper.Values("telephoneNumber", false, entry.String,
				func(u *User) []string { return u.TelephoneNumbers },
				func(u *User, v []string) { u.TelephoneNumbers = v }),
			mapper.Text("title",
				func(u *User) string { return u.Title },
				func(u *User, v string) { u.Title = v }),
			mapper.Text("department",
				func(u *User) string { return u.Department },
				func(u *User, v string) { u.Department = v }),
			mapper.Text("company",
				func(u *User) string { return u.Company },
				func(u *User, v string) { u.Company = v }),
			mapper.Value("manager", false, entry.DistinguishedName,
				func(u *User) string { return u.Manager },
				func(u *User, v string) { u.Manager = v }),
			mapper.Text("employeeID",
				func(u *User) string { return u.EmployeeID },
				func(u *User, v string) { u.EmployeeID = v }),
			mapper.Value("jpegPhoto", true, entry.Bytes,
				func(u *User) []byte { return u.Photo },
				func(u *User, v []byte) { u.Photo = v }),
			mapper.IfSet("userAccountControl", false, entry.Int32,
				func(u *User) *int32 { return u.UserAccountControl },
				func(u *User, v *int32) { u.UserAccountControl = v }),
			mapper.ReadOnlyValues("memberOf", false, entry.DistinguishedName,
				func(u *User, v []string) { u.MemberOf = v }),
			mapper.ReadOnly("objectGUID", true, entry.ObjectGUID,
				func(u *User, v uuid.UUID) { u.ObjectGUID = v }),
			mapper.ReadOnly("objectSid", true, entry.ObjectSID,
				func(u *User, v string) { u.ObjectSid = v }),
			mapper.ReadOnly("whenCreated", false, entry.GeneralizedTime,
				func(u *User, v time.Time) { u.WhenCreated = v }),
			mapper.ReadOnly("whenChanged", false, entry.GeneralizedTime,
				func(u *User, v time.Time) { u.WhenChanged = v }),
		},
	})
}
