package metrics_test

import (
	"errors"
	"testing"

	"github.com/cottand/typecore/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegisterOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.Declarations.WithLabelValues(metrics.Outcome(nil)).Inc()
	m.Declarations.WithLabelValues(metrics.Outcome(errors.New("x"))).Add(2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Declarations.WithLabelValues(metrics.OutcomeOK)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Declarations.WithLabelValues(metrics.OutcomeFailed)))

	count, err := testutil.GatherAndCount(reg, "typecore_driver_declarations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDiscardCanBeCreatedRepeatedly(t *testing.T) {
	assert.NotPanics(t, func() {
		metrics.Discard().SubtypeDepthExceeded.Inc()
		metrics.Discard().SubtypeDepthExceeded.Inc()
	})
}
