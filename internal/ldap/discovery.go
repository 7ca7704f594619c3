package ldap

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// srvResolver is satisfied by *net.Resolver.
type srvResolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

// SRVDiscovery finds domain controllers through DNS SRV records.
type SRVDiscovery struct {
	ctx      context.Context // logging context with the ldap subsystem
	resolver srvResolver
}

func NewSRVDiscovery(ctx context.Context) *SRVDiscovery {
	return &SRVDiscovery{
		ctx:      ctx,
		resolver: net.DefaultResolver,
	}
}

// DiscoverServers queries, in order, _ldaps._tcp, _ldap._tcp and _gc._tcp
// for domain. LDAPS hits end the search. With no records at all it falls
// back to the domain name itself on 636 and 389.
func (d *SRVDiscovery) DiscoverServers(ctx context.Context, domain string) ([]*ServerInfo, error) {
	if domain == "" {
		return nil, errors.New("domain cannot be empty")
	}

	start := time.Now()
	records := []struct {
		name   string
		useTLS bool
	}{
		{"_ldaps._tcp." + domain, true},
		{"_ldap._tcp." + domain, false},
		{"_gc._tcp." + domain, false},
	}

	var servers []*ServerInfo
	for _, record := range records {
		found, err := d.lookupSRV(ctx, record.name, record.useTLS)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		servers = append(servers, found...)
		if record.useTLS {
			break
		}
	}

	if len(servers) == 0 {
		tflog.SubsystemDebug(d.ctx, "ldap", "No SRV records found, using fallback servers", map[string]any{
			"domain":   domain,
			"duration": time.Since(start).String(),
		})
		return fallbackServers(domain), nil
	}

	sortServersByPriority(servers)

	tflog.SubsystemDebug(d.ctx, "ldap", "Server discovery completed", map[string]any{
		"domain":       domain,
		"duration":     time.Since(start).String(),
		"server_count": len(servers),
	})
	return servers, nil
}

func (d *SRVDiscovery) lookupSRV(ctx context.Context, name string, useTLS bool) ([]*ServerInfo, error) {
	_, records, err := d.resolver.LookupSRV(ctx, "", "", name)
	if err != nil {
		tflog.SubsystemDebug(d.ctx, "ldap", "SRV lookup failed", map[string]any{
			"service": name,
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("SRV lookup failed for %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no SRV records found for %s", name)
	}

	servers := make([]*ServerInfo, 0, len(records))
	for _, srv := range records {
		servers = append(servers, &ServerInfo{
			Host:     strings.TrimSuffix(srv.Target, "."),
			Port:     int(srv.Port),
			UseTLS:   useTLS,
			Priority: int(srv.Priority),
			Weight:   int(srv.Weight),
			Source:   "srv",
		})
	}
	return servers, nil
}

func fallbackServers(domain string) []*ServerInfo {
	return []*ServerInfo{
		{Host: domain, Port: 636, UseTLS: true, Priority: 0, Weight: 100, Source: "fallback"},
		{Host: domain, Port: 389, UseTLS: false, Priority: 1, Weight: 100, Source: "fallback"},
	}
}

// sortServersByPriority orders by ascending priority, then descending
// weight (RFC 2782).
func sortServersByPriority(servers []*ServerInfo) {
	slices.SortStableFunc(servers, func(a, b *ServerInfo) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(b.Weight, a.Weight)
	})
}

func ValidateServerInfo(server *ServerInfo) error {
	switch {
	case server == nil:
		return errors.New("server info cannot be nil")
	case server.Host == "":
		return errors.New("server host cannot be empty")
	case server.Port <= 0 || server.Port > 65535:
		return fmt.Errorf("invalid port number: %d", server.Port)
	case server.Priority < 0:
		return fmt.Errorf("priority cannot be negative: %d", server.Priority)
	case server.Weight < 0:
		return fmt.Errorf("weight cannot be negative: %d", server.Weight)
	}
	return nil
}

func ServerInfoToURL(server *ServerInfo) string {
	scheme := "ldap"
	if server.UseTLS {
		scheme = "ldaps"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(server.Host, strconv.Itoa(server.Port)))
}

// ParseLDAPURL parses an ldap:// or ldaps:// URL. Missing ports default to
// 389 and 636.
func ParseLDAPURL(raw string) (*ServerInfo, error) {
	if raw == "" {
		return nil, errors.New("URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	server := &ServerInfo{Priority: 0, Weight: 100, Source: "config"}
	switch strings.ToLower(u.Scheme) {
	case "ldaps":
		server.UseTLS = true
		server.Port = 636
	case "ldap":
		server.Port = 389
	default:
		return nil, errors.New("unsupported scheme, must be ldap:// or ldaps://")
	}

	server.Host = u.Hostname()
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid port number: %s", p)
		}
		server.Port = port
	}

	return server, ValidateServerInfo(server)
}
