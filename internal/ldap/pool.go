package ldap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// MaxConnectionPoolLimit caps ConnectionConfig.MaxConnections.
const MaxConnectionPoolLimit = 100

// reauthAfter is how long a bind is trusted before a pooled connection is
// re-authenticated.
const reauthAfter = 5 * time.Minute

var errPoolClosed = errors.New("connection pool is closed")

type connectionPool struct {
	ctx       context.Context // logging context with the ldap subsystem
	config    *ConnectionConfig
	discovery *SRVDiscovery
	dial      func(ctx context.Context, server *ServerInfo) (*PooledConnection, error)

	mu      sync.RWMutex
	servers []*ServerInfo
	idle    chan *PooledConnection
	closed  bool

	active    atomic.Int64
	created   atomic.Int64
	errors    atomic.Int64
	startTime time.Time

	healthStop chan struct{}
	healthWg   sync.WaitGroup
}

// NewConnectionPool validates config, resolves the server list and, when
// config.HealthCheck is positive, starts a background health checker. No
// connection is opened until Get is called.
func NewConnectionPool(ctx context.Context, config *ConnectionConfig) (ConnectionPool, error) {
	start := time.Now()
	tflog.SubsystemDebug(ctx, "ldap", "Creating connection pool", map[string]any{
		"pooled":          config != nil && config.Pooled,
		"max_connections": configMaxConnections(config),
	})

	if config == nil {
		config = DefaultConfig()
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := prepareTLSConfig(config); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	p := &connectionPool{
		ctx:        ctx,
		config:     config,
		discovery:  NewSRVDiscovery(ctx),
		idle:       make(chan *PooledConnection, config.MaxConnections),
		startTime:  time.Now(),
		healthStop: make(chan struct{}),
	}
	p.dial = p.dialServer

	if err := p.discoverServers(ctx); err != nil {
		return nil, fmt.Errorf("server discovery failed: %w", err)
	}

	if config.Pooled && config.HealthCheck > 0 {
		p.startHealthChecker()
	}

	LogPoolEvent(ctx, "pool_initialized", map[string]any{
		"duration":     time.Since(start).String(),
		"server_count": len(p.servers),
	})
	return p, nil
}

func configMaxConnections(config *ConnectionConfig) int {
	if config == nil {
		return 0
	}
	return config.MaxConnections
}

func (p *connectionPool) discoverServers(ctx context.Context) error {
	var servers []*ServerInfo

	switch {
	case len(p.config.LDAPURLs) > 0:
		for _, u := range p.config.LDAPURLs {
			server, err := ParseLDAPURL(u)
			if err != nil {
				return fmt.Errorf("invalid LDAP URL %s: %w", u, err)
			}
			servers = append(servers, server)
		}
		tflog.SubsystemDebug(p.ctx, "ldap", "Using configured LDAP URLs", map[string]any{
			"urls": p.config.LDAPURLs,
		})
	case p.config.Domain != "":
		lookupCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()

		discovered, err := p.discovery.DiscoverServers(lookupCtx, p.config.Domain)
		if err != nil {
			return err
		}
		servers = discovered
	default:
		return errors.New("either domain or LDAP URLs must be specified")
	}

	if len(servers) == 0 {
		return errors.New("no servers discovered")
	}

	p.mu.Lock()
	p.servers = servers
	p.mu.Unlock()
	return nil
}

// Get returns an idle connection when one is healthy, otherwise dials a new
// one, walking the server list with exponential backoff between rounds.
func (p *connectionPool) Get(ctx context.Context) (*PooledConnection, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, errPoolClosed
	}

	for {
		var pc *PooledConnection
		select {
		case pc = <-p.idle:
		default:
		}
		if pc == nil {
			break
		}

		if !p.isConnectionHealthy(pc) {
			p.closeConnection(pc)
			continue
		}
		if p.config.HasAuthentication() && p.needsReAuthentication(pc) {
			if err := p.authenticateConnection(pc); err != nil {
				LogPoolEvent(p.ctx, "connection_failed", map[string]any{
					"reason": "reauthentication",
					"error":  err.Error(),
				})
				p.closeConnection(pc)
				continue
			}
		}
		pc.lastUsed = time.Now()
		p.active.Add(1)
		LogPoolEvent(p.ctx, "connection_reused", map[string]any{
			"server": pc.serverInfo.Host,
		})
		return pc, nil
	}

	return p.createConnection(ctx)
}

func (p *connectionPool) createConnection(ctx context.Context) (*PooledConnection, error) {
	p.mu.RLock()
	servers := p.servers
	p.mu.RUnlock()

	var lastErr error
	backoff := p.config.InitialBackoff

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		for _, server := range servers {
			pc, err := p.dial(ctx, server)
			if err != nil {
				lastErr = err
				p.errors.Add(1)
				LogConnectionEvent(p.ctx, "connection_failed", map[string]any{
					"server":  ServerInfoToURL(server),
					"attempt": attempt + 1,
					"error":   err.Error(),
				})
				continue
			}

			pc.release = p.release
			p.created.Add(1)
			p.active.Add(1)
			LogConnectionEvent(p.ctx, "connection_established", map[string]any{
				"server": ServerInfoToURL(server),
			})
			return pc, nil
		}

		if attempt < p.config.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff = min(time.Duration(float64(backoff)*p.config.BackoffFactor), p.config.MaxBackoff)
			}
		}
	}

	return nil, NewConnectionError("failed to create connection after retries", true, lastErr)
}

// dialServer connects to one server, upgrading with StartTLS where
// configured, and binds.
func (p *connectionPool) dialServer(_ context.Context, server *ServerInfo) (*PooledConnection, error) {
	url := ServerInfoToURL(server)
	tlsConfig := serverTLSConfig(p.config.TLSConfig, server.Host)

	var conn *ldap.Conn
	var err error
	if server.UseTLS {
		conn, err = ldap.DialURL(url, ldap.DialWithTLSConfig(tlsConfig))
	} else {
		conn, err = ldap.DialURL(url)
		if err == nil && p.config.UseTLS && !p.config.SkipTLS {
			if err = conn.StartTLS(tlsConfig); err != nil {
				conn.Close()
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	conn.SetTimeout(p.config.Timeout)

	pc := &PooledConnection{
		conn:       conn,
		serverInfo: server,
		lastUsed:   time.Now(),
		healthy:    true,
	}

	if p.config.HasAuthentication() {
		if err := p.authenticateConnection(pc); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to authenticate connection to %s: %w", url, err)
		}
	}

	return pc, nil
}

func (p *connectionPool) authenticateConnection(pc *PooledConnection) error {
	if pc == nil || pc.conn == nil {
		return errors.New("connection is nil")
	}

	method := p.config.GetAuthMethod()
	err := bind(p.ctx, pc.conn, p.config, pc.serverInfo)
	if err != nil {
		pc.authenticated = false
		pc.authTime = time.Time{}
		LogConnectionEvent(p.ctx, "authentication_failed", map[string]any{
			"auth_method": method.String(),
			"error":       err.Error(),
		})
		return err
	}

	pc.authenticated = true
	pc.authTime = time.Now()
	LogConnectionEvent(p.ctx, "authentication_success", map[string]any{
		"auth_method": method.String(),
	})
	return nil
}

func (p *connectionPool) needsReAuthentication(pc *PooledConnection) bool {
	if pc == nil || !pc.authenticated {
		return true
	}
	return time.Since(pc.authTime) > reauthAfter
}

// release returns a connection to the idle channel, or closes it when the
// pool is closed, full, unpooled, or the connection has gone bad.
func (p *connectionPool) release(pc *PooledConnection) {
	if pc == nil {
		return
	}

	p.active.Add(-1)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || !p.config.Pooled || !p.isConnectionHealthy(pc) {
		p.closeConnection(pc)
		return
	}

	select {
	case p.idle <- pc:
		LogPoolEvent(p.ctx, "connection_released", nil)
	default:
		p.closeConnection(pc)
	}
}

func (p *connectionPool) isConnectionHealthy(pc *PooledConnection) bool {
	if pc == nil || pc.conn == nil || !pc.IsHealthy() {
		return false
	}
	if pc.conn.IsClosing() {
		return false
	}
	if time.Since(pc.LastUsed()) > p.config.MaxIdleTime {
		return false
	}
	if p.config.HasAuthentication() && !pc.authenticated {
		return false
	}
	return true
}

func (p *connectionPool) closeConnection(pc *PooledConnection) {
	if pc == nil || pc.conn == nil {
		return
	}
	pc.conn.Close()
	pc.healthy = false
	pc.authenticated = false
	pc.authTime = time.Time{}
}

// Close stops the health checker and closes all idle connections.
// Connections still checked out are closed as they are released.
func (p *connectionPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.healthStop)
	p.healthWg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	close(p.idle)
	for pc := range p.idle {
		p.closeConnection(pc)
	}

	LogPoolEvent(p.ctx, "pool_closed", map[string]any{
		"created": p.created.Load(),
		"errors":  p.errors.Load(),
	})
	return nil
}

func (p *connectionPool) Stats() PoolStats {
	return PoolStats{
		Idle:    len(p.idle),
		Active:  p.active.Load(),
		Created: p.created.Load(),
		Errors:  p.errors.Load(),
		Uptime:  time.Since(p.startTime),
	}
}

// HealthCheck checks the idle connections now instead of waiting for the
// next tick.
func (p *connectionPool) HealthCheck(ctx context.Context) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return errPoolClosed
	}

	p.performHealthCheck(ctx)
	return nil
}

func (p *connectionPool) startHealthChecker() {
	ticker := time.NewTicker(p.config.HealthCheck)

	p.healthWg.Go(func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(p.ctx, p.config.Timeout)
				p.performHealthCheck(ctx)
				cancel()
			case <-p.healthStop:
				return
			}
		}
	})
}

// performHealthCheck tests up to three idle connections with a root DSE
// read.
func (p *connectionPool) performHealthCheck(ctx context.Context) {
	var toCheck []*PooledConnection

drain:
	for range 3 {
		select {
		case pc, ok := <-p.idle:
			if !ok {
				return
			}
			toCheck = append(toCheck, pc)
		default:
			break drain
		}
	}

	for _, pc := range toCheck {
		if !p.testConnection(ctx, pc) {
			LogPoolEvent(p.ctx, "health_check_failed", map[string]any{
				"server": pc.serverInfo.Host,
			})
			p.closeConnection(pc)
			continue
		}
		p.active.Add(1)
		p.release(pc)
	}
}

func (p *connectionPool) testConnection(ctx context.Context, pc *PooledConnection) bool {
	if pc == nil || pc.conn == nil {
		return false
	}
	if ctx.Err() != nil {
		return false
	}

	if p.config.HasAuthentication() && p.needsReAuthentication(pc) {
		if err := p.authenticateConnection(pc); err != nil {
			return false
		}
	}

	if err := pingConn(pc.conn); err != nil {
		pc.authenticated = false
		pc.authTime = time.Time{}
		return false
	}

	pc.lastUsed = time.Now()
	return true
}

func validateConfig(config *ConnectionConfig) error {
	if config.MaxConnections <= 0 {
		return errors.New("MaxConnections must be positive")
	}
	if config.MaxConnections > MaxConnectionPoolLimit {
		return fmt.Errorf("MaxConnections too high (max %d)", MaxConnectionPoolLimit)
	}
	if config.MaxIdleTime <= 0 {
		return errors.New("MaxIdleTime must be positive")
	}
	if config.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if config.MaxRetries < 0 {
		return errors.New("MaxRetries cannot be negative")
	}
	if config.BackoffFactor <= 1.0 {
		return errors.New("BackoffFactor must be greater than 1.0")
	}
	return nil
}

// Release hands the connection back to its pool.
func (pc *PooledConnection) Release() {
	if pc.release != nil {
		pc.release(pc)
	}
}

func (pc *PooledConnection) Conn() *ldap.Conn {
	return pc.conn
}

func (pc *PooledConnection) ServerInfo() *ServerInfo {
	return pc.serverInfo
}

func (pc *PooledConnection) IsHealthy() bool {
	return pc.healthy
}

func (pc *PooledConnection) LastUsed() time.Time {
	return pc.lastUsed
}
