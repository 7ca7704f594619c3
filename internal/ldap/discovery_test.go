package ldap

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResolver answers SRV lookups from a fixed table keyed by record name.
type fakeResolver struct {
	records map[string][]*net.SRV
	err     error
	queried []string
}

func (f *fakeResolver) LookupSRV(ctx context.Context, _, _, name string) (string, []*net.SRV, error) {
	f.queried = append(f.queried, name)
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	if f.err != nil {
		return "", nil, f.err
	}
	records, ok := f.records[name]
	if !ok {
		return "", nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}
	return "", records, nil
}

func TestSRVDiscovery_DiscoverServers(t *testing.T) {
	tests := []struct {
		name      string
		domain    string
		records   map[string][]*net.SRV
		wantErr   string
		wantHosts []string
		wantTLS   bool
		wantQuery []string
	}{
		{
			name:    "empty domain",
			wantErr: "domain cannot be empty",
		},
		{
			name:   "ldaps records end the search",
			domain: "example.com",
			records: map[string][]*net.SRV{
				"_ldaps._tcp.example.com": {
					{Target: "dc2.example.com.", Port: 636, Priority: 10, Weight: 50},
					{Target: "dc1.example.com.", Port: 636, Priority: 0, Weight: 100},
				},
				"_ldap._tcp.example.com": {
					{Target: "dc3.example.com.", Port: 389},
				},
			},
			wantHosts: []string{"dc1.example.com", "dc2.example.com"},
			wantTLS:   true,
			wantQuery: []string{"_ldaps._tcp.example.com"},
		},
		{
			name:   "ldap and gc records are merged",
			domain: "example.com",
			records: map[string][]*net.SRV{
				"_ldap._tcp.example.com": {
					{Target: "dc1.example.com.", Port: 389, Priority: 0, Weight: 100},
				},
				"_gc._tcp.example.com": {
					{Target: "gc1.example.com.", Port: 3268, Priority: 5, Weight: 100},
				},
			},
			wantHosts: []string{"dc1.example.com", "gc1.example.com"},
			wantQuery: []string{"_ldaps._tcp.example.com", "_ldap._tcp.example.com", "_gc._tcp.example.com"},
		},
		{
			name:      "fallback to the domain name",
			domain:    "example.com",
			wantHosts: []string{"example.com", "example.com"},
			wantTLS:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &fakeResolver{records: tt.records}
			discovery := &SRVDiscovery{ctx: context.Background(), resolver: resolver}

			servers, err := discovery.DiscoverServers(context.Background(), tt.domain)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			hosts := make([]string, 0, len(servers))
			for _, server := range servers {
				require.NoError(t, ValidateServerInfo(server))
				hosts = append(hosts, server.Host)
			}
			assert.Equal(t, tt.wantHosts, hosts)
			assert.Equal(t, tt.wantTLS, servers[0].UseTLS)
			if tt.wantQuery != nil {
				assert.Equal(t, tt.wantQuery, resolver.queried)
			}
		})
	}
}

func TestSRVDiscovery_Fallback(t *testing.T) {
	discovery := &SRVDiscovery{
		ctx:      context.Background(),
		resolver: &fakeResolver{err: errors.New("server misbehaving")},
	}

	servers, err := discovery.DiscoverServers(context.Background(), "corp.local")
	require.NoError(t, err)
	require.Len(t, servers, 2)

	assert.Equal(t, &ServerInfo{Host: "corp.local", Port: 636, UseTLS: true, Priority: 0, Weight: 100, Source: "fallback"}, servers[0])
	assert.Equal(t, &ServerInfo{Host: "corp.local", Port: 389, UseTLS: false, Priority: 1, Weight: 100, Source: "fallback"}, servers[1])
}

func TestSRVDiscovery_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	discovery := &SRVDiscovery{ctx: context.Background(), resolver: &fakeResolver{}}

	_, err := discovery.DiscoverServers(ctx, "example.com")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseLDAPURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    *ServerInfo
		wantErr string
	}{
		{
			name: "ldaps with port",
			url:  "ldaps://dc1.example.com:3269",
			want: &ServerInfo{Host: "dc1.example.com", Port: 3269, UseTLS: true, Weight: 100, Source: "config"},
		},
		{
			name: "ldap with port",
			url:  "ldap://dc1.example.com:389",
			want: &ServerInfo{Host: "dc1.example.com", Port: 389, Weight: 100, Source: "config"},
		},
		{
			name: "ldaps default port",
			url:  "ldaps://dc1.example.com",
			want: &ServerInfo{Host: "dc1.example.com", Port: 636, UseTLS: true, Weight: 100, Source: "config"},
		},
		{
			name: "ldap default port",
			url:  "LDAP://dc1.example.com",
			want: &ServerInfo{Host: "dc1.example.com", Port: 389, Weight: 100, Source: "config"},
		},
		{
			name: "ipv6 literal",
			url:  "ldap://[2001:db8::1]:389",
			want: &ServerInfo{Host: "2001:db8::1", Port: 389, Weight: 100, Source: "config"},
		},
		{
			name:    "empty URL",
			wantErr: "URL cannot be empty",
		},
		{
			name:    "unsupported scheme",
			url:     "https://dc1.example.com",
			wantErr: "unsupported scheme",
		},
		{
			name:    "invalid port",
			url:     "ldap://dc1.example.com:abc",
			wantErr: "invalid",
		},
		{
			name:    "missing host",
			url:     "ldap://:389",
			wantErr: "server host cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLDAPURL(tt.url)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateServerInfo(t *testing.T) {
	tests := []struct {
		name    string
		server  *ServerInfo
		wantErr bool
	}{
		{"valid server", &ServerInfo{Host: "dc1.example.com", Port: 636, UseTLS: true, Weight: 100}, false},
		{"nil server", nil, true},
		{"empty host", &ServerInfo{Port: 636}, true},
		{"port zero", &ServerInfo{Host: "dc1.example.com"}, true},
		{"port too high", &ServerInfo{Host: "dc1.example.com", Port: 70000}, true},
		{"negative priority", &ServerInfo{Host: "dc1.example.com", Port: 636, Priority: -1}, true},
		{"negative weight", &ServerInfo{Host: "dc1.example.com", Port: 636, Weight: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateServerInfo(tt.server)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServerInfoToURL(t *testing.T) {
	assert.Equal(t, "ldaps://dc1.example.com:636", ServerInfoToURL(&ServerInfo{Host: "dc1.example.com", Port: 636, UseTLS: true}))
	assert.Equal(t, "ldap://dc1.example.com:389", ServerInfoToURL(&ServerInfo{Host: "dc1.example.com", Port: 389}))
	assert.Equal(t, "ldap://[2001:db8::1]:389", ServerInfoToURL(&ServerInfo{Host: "2001:db8::1", Port: 389}))
}

func TestSortServersByPriority(t *testing.T) {
	servers := []*ServerInfo{
		{Host: "dc3", Priority: 2, Weight: 50},
		{Host: "dc1", Priority: 1, Weight: 100},
		{Host: "dc2", Priority: 1, Weight: 50},
		{Host: "dc4", Priority: 0, Weight: 100},
	}

	sortServersByPriority(servers)

	hosts := make([]string, len(servers))
	for i, s := range servers {
		hosts[i] = s.Host
	}
	assert.Equal(t, []string{"dc4", "dc1", "dc2", "dc3"}, hosts)
}
