package exporter

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTBurke/oscmon"
	"github.com/BTBurke/oscmon/pkg/fsm"
	"github.com/BTBurke/oscmon/pkg/pipeline"
	"github.com/BTBurke/oscmon/pkg/sample"
	"github.com/BTBurke/oscmon/pkg/stat"
	"github.com/BTBurke/oscmon/pkg/store"
	"github.com/BTBurke/oscmon/pkg/view"
)

type fakeProvider struct {
	status oscmon.Status
	stats  map[store.Channel]stat.Summary
	curves map[view.Target][]stat.AllanPoint
}

func (f fakeProvider) CurrentStatistics() map[store.Channel]stat.Summary { return f.stats }
func (f fakeProvider) AllanCurve(t view.Target) []stat.AllanPoint { return f.curves[t] }
func (f fakeProvider) Status() oscmon.Status { return f.status }

func activeProvider() fakeProvider {
	return fakeProvider{
		status: oscmon.Status{
			State:       fsm.Monitoring,
			AllanTarget: view.Temperature,
			Len:         3,
			Capacity:    100,
			Ingested:    5,
			Dropped:     1,
			AllanRuns:   2,
			Locked:      true,
			Cadence:     pipeline.Cadence{Count: 2, P50: time.Second, P99: 2 * time.Second, Max: 2 * time.Second},
			Alerts:      map[string]bool{"threshold/voltage": true, "not_locked/lock_status": false},
		},
		stats: map[store.Channel]stat.Summary{
			store.FrequencyError: {Count: 3, Mean: 1, StdDev: 0.5, Min: 0, Max: 2, Drift: 1},
			store.Temperature:    {Count: 1, Mean: 25, Min: 25, Max: 25, Drift: math.NaN()},
			store.Voltage:        {Mean: math.NaN(), StdDev: math.NaN()},
		},
		curves: map[view.Target][]stat.AllanPoint{
			view.Frequency:   {{Tau: 1, Deviation: 9}},
			view.Temperature: {{Tau: 1, Deviation: 0.25}, {Tau: 2, Deviation: 0.125}},
		},
	}
}

func TestCollect(t *testing.T) {
	c := New(activeProvider())

	expected := `
# HELP oscmon_up Is a monitoring session active.
# TYPE oscmon_up gauge
oscmon_up 1
# HELP oscmon_window_length Samples currently retained per channel.
# TYPE oscmon_window_length gauge
oscmon_window_length 3
# HELP oscmon_samples_ingested_total Samples ingested.
# TYPE oscmon_samples_ingested_total counter
oscmon_samples_ingested_total 5
# HELP oscmon_samples_dropped_total Samples dropped because no session was active.
# TYPE oscmon_samples_dropped_total counter
oscmon_samples_dropped_total 1
# HELP oscmon_allan_recomputations_total Allan deviation recomputations.
# TYPE oscmon_allan_recomputations_total counter
oscmon_allan_recomputations_total 2
# HELP oscmon_lock_status Lock flag of the most recent sample.
# TYPE oscmon_lock_status gauge
oscmon_lock_status 1
# HELP oscmon_holdover_status Holdover flag of the most recent sample.
# TYPE oscmon_holdover_status gauge
oscmon_holdover_status 0
# HELP oscmon_channel_mean Window mean.
# TYPE oscmon_channel_mean gauge
oscmon_channel_mean{channel="frequency_error"} 1
oscmon_channel_mean{channel="temperature"} 25
# HELP oscmon_channel_max Window maximum.
# TYPE oscmon_channel_max gauge
oscmon_channel_max{channel="frequency_error"} 2
oscmon_channel_max{channel="temperature"} 25
# HELP oscmon_channel_drift Least squares slope of the window per sample.
# TYPE oscmon_channel_drift gauge
oscmon_channel_drift{channel="frequency_error"} 1
# HELP oscmon_alert_active Is an alert rule firing.
# TYPE oscmon_alert_active gauge
oscmon_alert_active{alert="not_locked",channel="lock_status"} 0
oscmon_alert_active{alert="threshold",channel="voltage"} 1
# HELP oscmon_allan_deviation Overlapping Allan deviation by averaging time in samples.
# TYPE oscmon_allan_deviation gauge
oscmon_allan_deviation{target="temperature",tau="1"} 0.25
oscmon_allan_deviation{target="temperature",tau="2"} 0.125
# HELP oscmon_sample_interval_seconds Time between consecutive samples.
# TYPE oscmon_sample_interval_seconds gauge
oscmon_sample_interval_seconds{quantile="0.5"} 1
oscmon_sample_interval_seconds{quantile="0.99"} 2
oscmon_sample_interval_seconds{quantile="1"} 2
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"oscmon_up",
		"oscmon_window_length",
		"oscmon_samples_ingested_total",
		"oscmon_samples_dropped_total",
		"oscmon_allan_recomputations_total",
		"oscmon_lock_status",
		"oscmon_holdover_status",
		"oscmon_channel_mean",
		"oscmon_channel_max",
		"oscmon_channel_drift",
		"oscmon_alert_active",
		"oscmon_allan_deviation",
		"oscmon_sample_interval_seconds",
	)
	assert.NoError(t, err)
}

func TestCollectIdle(t *testing.T) {
	c := New(fakeProvider{status: oscmon.Status{State: fsm.Idle, Capacity: 100}})

	expected := `
# HELP oscmon_up Is a monitoring session active.
# TYPE oscmon_up gauge
oscmon_up 0
# HELP oscmon_window_length Samples currently retained per channel.
# TYPE oscmon_window_length gauge
oscmon_window_length 0
`
	assert.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "oscmon_up", "oscmon_window_length"))
	// no samples: no flags, channel stats, curve points or cadence
	assert.Equal(t, 7, testutil.CollectAndCount(c))
}

func TestRegistersCleanly(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(New(activeProvider())))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, n := range []string{"oscmon_channel_stddev", "oscmon_channel_min", "oscmon_window_capacity", "oscmon_exporter_scrapes_total"} {
		assert.True(t, names[n], n)
	}
}

func TestMonitorProvider(t *testing.T) {
	m, errs := oscmon.New(oscmon.Capacity("10"), oscmon.AllanEvery("5"))
	require.Empty(t, errs)
	require.NoError(t, m.Start())
	for i := 0; i < 5; i++ {
		m.Ingest(sample.Sample{FrequencyError: float64(i % 2), Voltage: 12, LockStatus: true})
	}

	expected := `
# HELP oscmon_channel_mean Window mean.
# TYPE oscmon_channel_mean gauge
oscmon_channel_mean{channel="current"} 0
oscmon_channel_mean{channel="frequency_error"} 0.4
oscmon_channel_mean{channel="temperature"} 0
oscmon_channel_mean{channel="voltage"} 12
# HELP oscmon_lock_status Lock flag of the most recent sample.
# TYPE oscmon_lock_status gauge
oscmon_lock_status 1
`
	c := New(m)
	assert.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "oscmon_channel_mean", "oscmon_lock_status"))
	// five samples give taus 1 and 2
	assert.Equal(t, 2, testutil.CollectAndCount(c, "oscmon_allan_deviation"))
}
