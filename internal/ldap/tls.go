package ldap

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// prepareTLSConfig fills config.TLSConfig with the CA pool and client
// certificate named by the TLS* fields.
func prepareTLSConfig(config *ConnectionConfig) error {
	if config.TLSConfig == nil {
		config.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if config.TLSConfig.RootCAs == nil {
		pool, err := buildCertPool(config.TLSCACertFile, config.TLSCACert)
		if err != nil {
			return err
		}
		config.TLSConfig.RootCAs = pool
	}

	if config.TLSClientCertFile != "" || config.TLSClientKeyFile != "" {
		if config.TLSClientCertFile == "" || config.TLSClientKeyFile == "" {
			return errors.New("both client certificate and key files are required")
		}
		cert, err := tls.LoadX509KeyPair(config.TLSClientCertFile, config.TLSClientKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load client certificate: %w", err)
		}
		config.TLSConfig.Certificates = []tls.Certificate{cert}
	}

	return nil
}

// buildCertPool starts from the system pool and appends the CA from file
// and/or PEM content.
func buildCertPool(caFile, caPEM string) (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}

	if caFile != "" {
		data, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file %s: %w", caFile, err)
		}
		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("invalid PEM format in CA certificate file %s", caFile)
		}
	}

	if caPEM != "" {
		if !pool.AppendCertsFromPEM([]byte(caPEM)) {
			return nil, errors.New("invalid PEM format in CA certificate content")
		}
	}

	return pool, nil
}

// serverTLSConfig clones base and pins ServerName to host unless
// verification is disabled.
func serverTLSConfig(base *tls.Config, host string) *tls.Config {
	if base == nil {
		return nil
	}
	cfg := base.Clone()
	if !cfg.InsecureSkipVerify {
		cfg.ServerName = host
	}
	return cfg
}
