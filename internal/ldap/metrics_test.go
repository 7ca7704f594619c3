package ldap

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/entrysync/internal/entry"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := NewMetrics(reg)
	require.NoError(t, err)
	assert.Len(t, m.Collectors(), 4)

	_, err = NewMetrics(reg)
	assert.Error(t, err, "registering twice fails")
}

func TestMetrics_ObserveModify(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	req := &entry.ModifyRequest{
		DN: "CN=Admins,DC=example,DC=com",
		Modifications: []entry.Modification{
			{Kind: entry.Replace, Attribute: entry.NewTextAttribute("description", "admins")},
			{Kind: entry.Add, Attribute: entry.NewTextAttribute("member", "CN=Alice,DC=example,DC=com")},
			{Kind: entry.Add, Attribute: entry.NewTextAttribute("info", "x")},
		},
	}

	m.observeModify(req, 20*time.Millisecond, nil)
	m.observeModify(req, 30*time.Millisecond, errors.New("busy"))
	m.observeModify(&entry.ModifyRequest{DN: req.DN}, 0, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.modifyRequests.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modifyRequests.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modifyRequests.WithLabelValues("empty")))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.modifications.WithLabelValues("add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modifications.WithLabelValues("replace")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.modifications.WithLabelValues("delete")), "failed requests are not counted per modification")

	assert.Equal(t, 1, testutil.CollectAndCount(m.modifyDuration))
}

func TestMetrics_ObserveAdd(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.observeAdd(nil)
	m.observeAdd(nil)
	m.observeAdd(errors.New("exists"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.adds.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.adds.WithLabelValues("error")))
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.observeModify(&entry.ModifyRequest{}, time.Second, nil)
		m.observeAdd(errors.New("x"))
	})
}
