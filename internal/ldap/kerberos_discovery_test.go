package ldap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRuntimeKrb5Conf(t *testing.T) {
	ctx := context.Background()

	t.Run("realm and domain", func(t *testing.T) {
		config, err := generateRuntimeKrb5Conf(ctx, &ConnectionConfig{
			Domain:        "Corp.Example.com",
			KerberosRealm: "example.com",
		})
		require.NoError(t, err)

		assert.Contains(t, config, "default_realm = EXAMPLE.COM")
		assert.Contains(t, config, "dns_lookup_kdc = true")
		assert.Contains(t, config, "EXAMPLE.COM = {")
		assert.Contains(t, config, ".corp.example.com = EXAMPLE.COM")
	})

	t.Run("domain defaults to realm", func(t *testing.T) {
		config, err := generateRuntimeKrb5Conf(ctx, &ConnectionConfig{KerberosRealm: "EXAMPLE.COM"})
		require.NoError(t, err)
		assert.Contains(t, config, ".example.com = EXAMPLE.COM")
	})

	t.Run("missing realm", func(t *testing.T) {
		_, err := generateRuntimeKrb5Conf(ctx, &ConnectionConfig{Domain: "example.com"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kerberos realm is required")
	})
}

func TestExampleKrb5Conf(t *testing.T) {
	assert.Contains(t, exampleKrb5Conf(""), "default_realm = EXAMPLE.COM")
	assert.Contains(t, exampleKrb5Conf("corp.local"), "kdc = dc.corp.local:88")
}
