package oscmon

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/common/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTBurke/oscmon/pkg/alert"
	"github.com/BTBurke/oscmon/pkg/eventbus"
	"github.com/BTBurke/oscmon/pkg/fsm"
	"github.com/BTBurke/oscmon/pkg/pipeline"
	"github.com/BTBurke/oscmon/pkg/sample"
	"github.com/BTBurke/oscmon/pkg/source"
	"github.com/BTBurke/oscmon/pkg/stat"
	"github.com/BTBurke/oscmon/pkg/store"
	"github.com/BTBurke/oscmon/pkg/view"
)

type recordingReporter struct {
	mutex sync.Mutex
	errs  []error
}

func (r *recordingReporter) ReportError(err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recordingReporter) reported() []error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]error{}, r.errs...)
}

func newMonitor(t *testing.T, options ...ConfigOption) (*Monitor, *recordingReporter) {
	t.Helper()
	m, errs := New(options...)
	require.Empty(t, errs)
	rep := &recordingReporter{}
	m.errors = rep
	m.log = log.NewNopLogger()
	return m, rep
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func reading(i int) sample.Sample {
	return sample.Sample{
		Timestamp:      base.Add(time.Duration(i) * time.Second),
		FrequencyError: float64(i) * 1e-4,
		Temperature:    25 + float64(i%4),
		Voltage:        12,
		Current:        0.5,
		LockStatus:     i%10 != 0,
		HoldoverStatus: i%10 == 0,
	}
}

func TestNewReturnsConfigErrors(t *testing.T) {
	_, errs := New(Capacity("0"), Source("serial"))
	assert.Len(t, errs, 2)
}

func TestIngestRequiresSession(t *testing.T) {
	m, _ := newMonitor(t)
	m.Ingest(reading(1))
	assert.Equal(t, 0, m.Status().Len)
	assert.Equal(t, uint64(1), m.Status().Dropped)

	require.NoError(t, m.Start())
	m.Ingest(reading(2))
	assert.Equal(t, 1, m.Status().Len)

	require.NoError(t, m.Stop())
	m.Ingest(reading(3))
	st := m.Status()
	assert.Equal(t, fsm.Stopped, st.State)
	assert.Equal(t, 1, st.Len)
	assert.Equal(t, uint64(2), st.Dropped)
}

func TestLifecycle(t *testing.T) {
	m, _ := newMonitor(t)
	var notAllowed fsm.TransitionNotAllowed
	assert.ErrorAs(t, m.Stop(), &notAllowed)

	require.NoError(t, m.Start())
	assert.Error(t, m.Start())
	for i := 0; i < 5; i++ {
		m.Ingest(reading(i))
	}
	require.NoError(t, m.Stop())
	// history stays readable after stop
	assert.Len(t, m.CurrentWindows()[store.Voltage], 5)

	// a new session starts empty
	require.NoError(t, m.Start())
	assert.Equal(t, 0, m.Status().Len)
	assert.Empty(t, m.CurrentStatistics())
	assert.Equal(t, uint64(5), m.Status().Ingested)
}

func TestEmptySampleIngest(t *testing.T) {
	m, _ := newMonitor(t)
	require.NoError(t, m.Start())
	m.Ingest(sample.Sample{})

	windows := m.CurrentWindows()
	for _, ch := range store.Channels {
		assert.Len(t, windows[ch], 1, ch.String())
	}
	for _, ch := range store.Channels {
		assert.Equal(t, []float64{0}, windows[ch], ch.String())
	}
	// the arrival time is reported without being stored
	assert.False(t, m.Status().LastSample.IsZero())
}

func TestStatisticsAndAllan(t *testing.T) {
	m, _ := newMonitor(t, Capacity("20"))
	require.NoError(t, m.Start())
	for i := 0; i < 25; i++ {
		m.Ingest(reading(i))
	}

	windows := m.CurrentWindows()
	require.Len(t, windows[store.FrequencyError], 20)
	assert.InDelta(t, 5e-4, windows[store.FrequencyError][0], 1e-12)

	stats := m.CurrentStatistics()
	mean, stddev := stat.MeanAndStdDev(windows[store.Temperature])
	assert.InDelta(t, mean, stats[store.Temperature].Mean, 1e-12)
	assert.InDelta(t, stddev, stats[store.Temperature].StdDev, 1e-12)

	st := m.Status()
	assert.True(t, st.Cached)
	assert.Equal(t, stat.Curve(windows[store.FrequencyError]), m.AllanCurve(view.Frequency))
	assert.Equal(t, stat.Curve(windows[store.Temperature]), m.AllanCurve(view.Temperature))

	m.SetAllanTarget(view.Temperature)
	assert.Equal(t, view.Temperature, m.AllanTarget())
	assert.False(t, m.Status().Cached)
}

func TestLinearDriftHasNoAllanDeviation(t *testing.T) {
	m, _ := newMonitor(t)
	require.NoError(t, m.Start())
	for i := 0; i < 10; i++ {
		m.Ingest(reading(i))
	}
	for _, p := range m.AllanCurve(view.Frequency) {
		assert.InDelta(t, 0, p.Deviation, 1e-12)
	}
}

func TestProjectionAndModes(t *testing.T) {
	m, _ := newMonitor(t, DisplayMode("electrical"))
	require.NoError(t, m.Start())
	m.Ingest(reading(1))

	p, err := m.Projection()
	require.NoError(t, err)
	assert.Equal(t, "voltage", p.LabelA)
	assert.Equal(t, []float64{12}, p.SeriesA)

	m.SetDisplayMode(view.Allan)
	assert.Equal(t, view.Allan, m.DisplayMode())
	_, err = m.Projection()
	assert.Equal(t, view.ErrAllanMode, err)
}

func TestSmoothed(t *testing.T) {
	m, _ := newMonitor(t, SmoothingWindow("2"))
	require.NoError(t, m.Start())
	for _, v := range []float64{1, 2, 3, 4} {
		m.Ingest(sample.Sample{Voltage: v})
	}
	out, err := m.Smoothed(store.Voltage)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1.5, 2.5, 3.5}, out)
}

func TestSubscribe(t *testing.T) {
	m, _ := newMonitor(t, AllanEvery("2"))
	updates, _ := m.Subscribe(pipeline.TopicUpdates)
	allan, _ := m.Subscribe(pipeline.TopicAllan)
	session, _ := m.Subscribe(TopicSession)

	require.NoError(t, m.Start())
	m.Ingest(reading(1))
	m.Ingest(reading(2))
	require.NoError(t, m.Shutdown(context.Background()))

	n := 0
	for e := range updates {
		assert.Equal(t, pipeline.EventSnapshot, e.EventType)
		n++
	}
	assert.Equal(t, 2, n)

	n = 0
	for range allan {
		n++
	}
	assert.Equal(t, 1, n)

	var changes []StateChange
	for e := range session {
		changes = append(changes, e.Data.(StateChange))
	}
	assert.Equal(t, []StateChange{{fsm.Idle, fsm.Monitoring}, {fsm.Monitoring, fsm.Stopped}}, changes)
}

func TestAlertsFromConfig(t *testing.T) {
	m, _ := newMonitor(t, AlertThreshold(store.Voltage, "13"), StatusAlerts("none"))
	alerts, _ := m.Subscribe(pipeline.TopicAlerts)
	require.NoError(t, m.Start())

	m.Ingest(reading(1))
	assert.False(t, m.Status().Alerts["threshold/voltage"])
	m.Ingest(sample.Sample{Timestamp: base.Add(2 * time.Second), Voltage: 14})
	st := m.Status()
	assert.True(t, st.Alerts["threshold/voltage"])
	assert.Len(t, st.Alerts, 4)

	// a new session starts with every rule clear
	require.NoError(t, m.Stop())
	require.NoError(t, m.Start())
	assert.False(t, m.Status().Alerts["threshold/voltage"])

	require.NoError(t, m.Shutdown(context.Background()))
	var edges []alert.Alert
	for e := range alerts {
		if a := e.Data.(alert.Alert); a.Channel == "voltage" {
			edges = append(edges, a)
		}
	}
	require.Len(t, edges, 1)
	assert.Equal(t, "voltage", edges[0].Channel)
	assert.Equal(t, 14.0, edges[0].Value)
}

func TestAlertsDisabled(t *testing.T) {
	m, _ := newMonitor(t, NoAlerts())
	require.NoError(t, m.Start())
	m.Ingest(sample.Sample{Voltage: 100})
	assert.Empty(t, m.Status().Alerts)
}

type scriptedSource struct {
	samples []sample.Sample
	err     error
}

func (s scriptedSource) Run(ctx context.Context, out chan<- sample.Sample) error {
	for _, smp := range s.samples {
		select {
		case out <- smp:
		case <-ctx.Done():
			return nil
		}
	}
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return nil
}

func TestRun(t *testing.T) {
	t.Run("until cancelled", func(t *testing.T) {
		m, rep := newMonitor(t)
		src := scriptedSource{samples: []sample.Sample{reading(1), reading(2), reading(3)}}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() { done <- m.Run(ctx, src) }()

		require.Eventually(t, func() bool { return m.Status().Len == 3 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, fsm.Monitoring, m.Status().State)
		cancel()
		assert.NoError(t, <-done)
		assert.Equal(t, fsm.Stopped, m.Status().State)
		assert.Empty(t, rep.reported())
	})

	t.Run("source failure is reported", func(t *testing.T) {
		m, rep := newMonitor(t)
		errs, _ := m.Subscribe(eventbus.OnErrorTopic())
		boom := errors.New("device unplugged")
		err := m.Run(context.Background(), scriptedSource{samples: []sample.Sample{reading(1)}, err: boom})

		assert.Equal(t, boom, err)
		assert.Equal(t, 1, m.Status().Len)
		assert.Equal(t, []error{boom}, rep.reported())
		e := <-errs
		assert.Equal(t, eventbus.ErrorEvent, e.EventType)
	})
}

func TestRunSimulator(t *testing.T) {
	m, _ := newMonitor(t, PollInterval("1ms"), Seed("4"))
	_, ok := m.Source().(*source.Simulator)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- m.Run(ctx, m.Source()) }()
	require.Eventually(t, func() bool { return m.Status().Len >= 10 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	for _, p := range m.AllanCurve(view.Temperature) {
		assert.False(t, math.IsNaN(p.Deviation))
	}
}

func TestHTTPSourceSelected(t *testing.T) {
	m, _ := newMonitor(t, PollURL("http://127.0.0.1:1"))
	p, ok := m.Source().(*source.Poller)
	require.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:1/status", p.URL())
}

func TestConcurrentReaders(t *testing.T) {
	m, _ := newMonitor(t, Capacity("50"), AllanEvery("1"))
	require.NoError(t, m.Start())

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				w := m.CurrentWindows()
				n := len(w[store.Timestamps])
				for _, ch := range store.Channels {
					assert.Len(t, w[ch], n)
				}
				_ = m.AllanCurve(view.Frequency)
				_ = m.Status()
			}
		}()
	}
	for i := 0; i < 200; i++ {
		m.Ingest(reading(i))
	}
	close(stop)
	wg.Wait()
	assert.Equal(t, 50, m.Status().Len)
}
