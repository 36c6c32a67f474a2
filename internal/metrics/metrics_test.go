package metrics_test

import (
	"testing"

	"github.com/factwatch/factwatch/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsObservations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveLine()
	m.ObserveLine()
	m.ObserveEvent("join")
	m.ObserveDelivery(nil)
	m.ObserveDelivery(assert.AnError)
	m.ObserveDelivery(assert.AnError)
	m.SetServerUp(true)

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			key := family.GetName()
			for _, label := range metric.GetLabel() {
				key += ":" + label.GetValue()
			}
			if c := metric.GetCounter(); c != nil {
				values[key] = c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				values[key] = g.GetValue()
			}
		}
	}

	assert.Equal(t, 2.0, values["factwatch_pump_lines_total"])
	assert.Equal(t, 1.0, values["factwatch_pump_events_total:join"])
	assert.Equal(t, 1.0, values["factwatch_notify_deliveries_total:success"])
	assert.Equal(t, 2.0, values["factwatch_notify_deliveries_total:failure"])
	assert.Equal(t, 1.0, values["factwatch_supervisor_server_up"])
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.ObserveLine()
		m.ObserveDecodeError()
		m.ObserveEvent("leave")
		m.ObserveDelivery(nil)
		m.SetServerUp(false)
	})
}

func TestMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)

	assert.Panics(t, func() { metrics.New(reg) })
}

func TestMetrics_DecodeErrorsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveDecodeError()

	count, err := testutil.GatherAndCount(reg, "factwatch_pump_decode_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
