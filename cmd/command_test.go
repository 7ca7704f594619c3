package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/entrysync/internal/entry"
	"github.com/isometry/entrysync/internal/ldap"
)

// fakeClient answers every search with one fixture entry and records
// modify requests.
type fakeClient struct {
	attrs    []*goldap.EntryAttribute
	searches int
	modified []*entry.ModifyRequest
}

func (f *fakeClient) Connect(context.Context) error { return nil }
func (f *fakeClient) Close() error                  { return nil }
func (f *fakeClient) Ping(context.Context) error    { return nil }
func (f *fakeClient) Stats() ldap.PoolStats         { return ldap.PoolStats{} }

func (f *fakeClient) Search(_ context.Context, req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	f.searches++
	return &ldap.SearchResult{Entries: []*goldap.Entry{{DN: req.BaseDN, Attributes: f.attrs}}}, nil
}

func (f *fakeClient) Add(context.Context, *entry.Entry) error { return nil }

func (f *fakeClient) Modify(_ context.Context, req *entry.ModifyRequest) error {
	f.modified = append(f.modified, req)
	return nil
}

func (f *fakeClient) Delete(context.Context, string) error { return nil }

func newOUClient(description string) *fakeClient {
	return &fakeClient{attrs: []*goldap.EntryAttribute{
		{Name: "ou", Values: []string{"Servers"}},
		{Name: "description", Values: []string{description}},
	}}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "entrysync dev")
	assert.Contains(t, out, "Go version:")
}

func TestCommands_Arguments(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"show needs a DN", []string{"show", "user"}, "accepts 2 arg(s)"},
		{"describe needs a description", []string{"describe", "ou", "OU=Servers,DC=example,DC=com"}, "accepts 3 arg(s)"},
		{"check takes no arguments", []string{"check", "extra"}, "unknown command"},
		{"show rejects a malformed DN", []string{"show", "user", "alice"}, `invalid distinguished name "alice"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCheckCommand_InvalidConfiguration(t *testing.T) {
	t.Setenv("ENTRYSYNC_DOMAIN", "")
	t.Setenv("ENTRYSYNC_LDAP_URLS", "")

	_, err := execute(t, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "either domain or ldap_urls must be set")
}

func TestLookupKind(t *testing.T) {
	for _, name := range []string{"user", "Group", "OU"} {
		_, err := lookupKind(name, "DC=example,DC=com")
		assert.NoError(t, err, name)
	}

	_, err := lookupKind("computer", "DC=example,DC=com")
	require.Error(t, err)
	assert.Equal(t, `unknown kind "computer" (expected one of group, ou, user)`, err.Error())
}

func TestKind_Describe(t *testing.T) {
	ctx := context.Background()
	dn := "OU=Servers,DC=example,DC=com"

	k, err := lookupKind("ou", "DC=example,DC=com")
	require.NoError(t, err)

	t.Run("dry run sends nothing", func(t *testing.T) {
		c := newOUClient("old")

		req, err := k.describe(ctx, ldap.NewSession(c), dn, "new", true)
		require.NoError(t, err)

		require.Len(t, req.Modifications, 1)
		assert.Equal(t, entry.Replace, req.Modifications[0].Kind)
		assert.Equal(t, []string{"new"}, req.Modifications[0].Attribute.StringValues())
		assert.Empty(t, c.modified)
	})

	t.Run("changes are applied", func(t *testing.T) {
		c := newOUClient("old")

		req, err := k.describe(ctx, ldap.NewSession(c), dn, "new", false)
		require.NoError(t, err)

		require.Len(t, c.modified, 1)
		assert.Same(t, req, c.modified[0])
	})

	t.Run("up to date", func(t *testing.T) {
		c := newOUClient("same")

		req, err := k.describe(ctx, ldap.NewSession(c), dn, "same", false)
		require.NoError(t, err)

		assert.True(t, req.IsEmpty())
		assert.Empty(t, c.modified)
	})
}

func TestKind_Load(t *testing.T) {
	k, err := lookupKind("ou", "DC=example,DC=com")
	require.NoError(t, err)

	obj, err := k.load(context.Background(), ldap.NewSession(newOUClient("servers")), "OU=Servers,DC=example,DC=com")
	require.NoError(t, err)
	assert.NotNil(t, obj)
}

func TestPrintModifyRequest(t *testing.T) {
	var out bytes.Buffer

	printModifyRequest(&out, &entry.ModifyRequest{DN: "OU=Servers,DC=example,DC=com"}, false)
	assert.Equal(t, "OU=Servers,DC=example,DC=com: up to date\n", out.String())

	out.Reset()
	printModifyRequest(&out, &entry.ModifyRequest{
		DN: "OU=Servers,DC=example,DC=com",
		Modifications: []entry.Modification{
			{Kind: entry.Replace, Attribute: entry.NewTextAttribute("description", "new")},
		},
	}, true)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "OU=Servers,DC=example,DC=com: 1 modification(s) pending", lines[0])
	assert.Equal(t, `  replace description ["new"]`, lines[1])
}

func TestWriteMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := ldap.NewMetrics(reg)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, writeMetrics(&out, reg))
	assert.Contains(t, out.String(), "# TYPE entrysync_ldap_modify_duration_seconds histogram")
}

func TestValidateDN(t *testing.T) {
	tests := []struct {
		dn      string
		wantErr string
	}{
		{dn: "CN=Alice,OU=Users,DC=example,DC=com"},
		{dn: `CN=Smith\, John,DC=example,DC=com`},
		{dn: "", wantErr: "DN cannot be empty"},
		{dn: "not-a-dn", wantErr: `invalid distinguished name "not-a-dn"`},
	}

	for _, tt := range tests {
		t.Run(tt.dn, func(t *testing.T) {
			err := validateDN(tt.dn)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExplain(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHint string
	}{
		{"authentication", ldap.NewLDAPError("bind", goldap.NewError(goldap.LDAPResultInvalidCredentials, errors.New("bad credentials"))), "check username, password or Kerberos settings"},
		{"permission", ldap.NewLDAPError("modify", goldap.NewError(goldap.LDAPResultInsufficientAccessRights, errors.New("denied"))), "lacks rights"},
		{"not found", ldap.NewLDAPError("search", goldap.NewError(goldap.LDAPResultNoSuchObject, errors.New("missing"))), "check the DN and base_dn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := explain(tt.err)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantHint)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, explain(nil))

	conflict := ldap.NewLDAPError("add", goldap.NewError(goldap.LDAPResultEntryAlreadyExists, errors.New("exists")))
	assert.Same(t, error(conflict), explain(conflict))
}
