package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Mutation("save")
	m.Mutation("save")
	m.Switches.WithLabelValues(ResultBusy).Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StoreMutations.WithLabelValues("save")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Switches.WithLabelValues(ResultBusy)))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "workspaces_store_mutations_total")
	assert.Contains(t, names, "workspaces_switches_total")
}

func TestNew_NilRegisterer(t *testing.T) {
	m := New(nil)
	m.SyncApplied.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncApplied))
}
