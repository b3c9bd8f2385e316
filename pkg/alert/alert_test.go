package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTBurke/oscmon/pkg/sample"
	"github.com/BTBurke/oscmon/pkg/store"
)

var at = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNew(t *testing.T) {
	tt := []struct {
		name       string
		thresholds map[store.Channel]float64
		status     []string
		rules      int
		err        bool
	}{
		{name: "defaults", thresholds: DefaultThresholds, status: DefaultStatus, rules: 6},
		{name: "none", rules: 0},
		{name: "duplicate and blank status", status: []string{"error", "ERROR", " ", "holdover"}, rules: 2},
		{name: "zero threshold", thresholds: map[store.Channel]float64{store.Voltage: 0}, err: true},
		{name: "negative threshold", thresholds: map[store.Channel]float64{store.Voltage: -1}, err: true},
		{name: "unknown channel", thresholds: map[store.Channel]float64{store.Channel("phase"): 1}, err: true},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New(tc.thresholds, tc.status)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.rules, c.Len())
		})
	}
}

func TestThresholdEdges(t *testing.T) {
	c, err := New(map[store.Channel]float64{store.Temperature: 50}, nil)
	require.NoError(t, err)

	assert.Empty(t, c.Check(sample.Sample{Temperature: 49}, at))

	fired := c.Check(sample.Sample{Temperature: 51}, at)
	require.Len(t, fired, 1)
	assert.Equal(t, Alert{Name: Threshold, Channel: "temperature", Value: 51, Threshold: 50, Firing: true, Time: at}, fired[0])
	assert.Equal(t, "firing temperature: |51| > 50", fired[0].String())

	// still above: no new edge
	assert.Empty(t, c.Check(sample.Sample{Temperature: 55}, at))
	assert.True(t, c.Active()["threshold/temperature"])

	cleared := c.Check(sample.Sample{Temperature: 50}, at)
	require.Len(t, cleared, 1)
	assert.False(t, cleared[0].Firing)
	assert.False(t, c.Active()["threshold/temperature"])
}

func TestThresholdIsAbsolute(t *testing.T) {
	c, err := New(map[store.Channel]float64{store.FrequencyError: 1e-8}, nil)
	require.NoError(t, err)
	fired := c.Check(sample.Sample{FrequencyError: -2e-8}, at)
	require.Len(t, fired, 1)
	assert.True(t, fired[0].Firing)
	assert.Equal(t, "frequency_error", fired[0].Channel)
}

func TestStatusConditions(t *testing.T) {
	c, err := New(nil, []string{"NOT_LOCKED", "holdover", "ERROR"})
	require.NoError(t, err)

	fired := c.Check(sample.Sample{LockStatus: false, HoldoverStatus: true, Status: "error"}, at)
	require.Len(t, fired, 3)
	assert.Equal(t, "not_locked/lock_status", fired[0].Key())
	assert.Equal(t, "holdover/holdover_status", fired[1].Key())
	assert.Equal(t, "error/status", fired[2].Key())

	cleared := c.Check(sample.Sample{LockStatus: true, Status: "LOCKED"}, at)
	assert.Len(t, cleared, 3)
	for _, a := range cleared {
		assert.False(t, a.Firing, a.Key())
	}
}

func TestEmptySampleWithDefaults(t *testing.T) {
	c, err := New(DefaultThresholds, DefaultStatus)
	require.NoError(t, err)
	// an empty sample is not locked
	fired := c.Check(sample.Sample{}, at)
	require.Len(t, fired, 1)
	assert.Equal(t, NotLocked, fired[0].Name)
}

func TestReset(t *testing.T) {
	c, err := New(map[store.Channel]float64{store.Current: 2}, nil)
	require.NoError(t, err)
	require.Len(t, c.Check(sample.Sample{Current: 3}, at), 1)

	c.Reset()
	assert.False(t, c.Active()["threshold/current"])
	// a breach after reset is reported again
	assert.Len(t, c.Check(sample.Sample{Current: 3}, at), 1)
}

func TestSplitKey(t *testing.T) {
	name, ch := SplitKey("threshold/voltage")
	assert.Equal(t, Threshold, name)
	assert.Equal(t, "voltage", ch)

	name, ch = SplitKey("bare")
	assert.Equal(t, "bare", name)
	assert.Equal(t, "", ch)
}
