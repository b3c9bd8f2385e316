// Package oscmon is a live monitor for a precision oscillator module.  It keeps a bounded,
// synchronized history of every reading channel, derives window statistics and the Allan
// deviation of the frequency (or temperature) channel, and serves them to the terminal
// dashboard, the Prometheus exporter and any event bus subscriber.
package oscmon

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/common/log"

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

// Session topic and event, published on every lifecycle transition.
const (
	TopicSession eventbus.Topic     = "session"
	EventState   eventbus.EventType = "state"
)

// StateChange is the data of an EventState event.
type StateChange struct {
	From fsm.State
	To   fsm.State
}

// Status is a point-in-time summary of the monitor.
type Status struct {
	State       fsm.State
	Mode        view.Mode
	AllanTarget view.Target
	Len         int
	Capacity    int
	Ingested    uint64
	AllanRuns   uint64
	Dropped     uint64
	BusDropped  uint64
	Cached      bool
	Locked      bool
	Holdover    bool
	LastSample  time.Time
	Cadence     pipeline.Cadence
	// Alerts maps every configured rule (see alert.Alert.Key) to whether it is firing.
	Alerts map[string]bool
}

// Monitor owns one monitoring session.  Ingest is the only writer; every reader receives
// copies, so it is safe to call any method from any goroutine.
type Monitor struct {
	config   Config
	store    *store.Store
	pipeline *pipeline.Pipeline
	bus      *eventbus.EventBus
	session  *fsm.Machine
	errors   ErrorReporter
	log      log.Logger

	mutex   sync.RWMutex
	mode    view.Mode
	last    sample.Sample
	lastAt  time.Time
	dropped uint64
}

// New creates an idle monitor.  Configuration errors are collected and returned together.
func New(options ...ConfigOption) (*Monitor, []error) {
	c, errs := newConfig(options...)
	if len(errs) > 0 {
		return nil, errs
	}

	st, err := store.New(c.Capacity)
	if err != nil {
		return nil, []error{err}
	}

	m := &Monitor{
		config: c,
		store:  st,
		bus:    eventbus.New(eventbus.DefaultBuffer),
		errors: errorService{},
		log:    log.Base().With("component", "monitor"),
		mode:   c.DisplayMode,
	}
	opts := []pipeline.Option{
		pipeline.WithAllanEvery(c.AllanEvery),
		pipeline.WithTarget(c.AllanTarget),
		pipeline.WithBus(m.bus),
	}
	if c.Alerts {
		checker, err := alert.New(c.AlertThresholds, c.StatusAlerts)
		if err != nil {
			return nil, []error{err}
		}
		opts = append(opts, pipeline.WithAlerts(checker))
	}
	m.pipeline, err = pipeline.New(st, opts...)
	if err != nil {
		return nil, []error{err}
	}
	m.session, err = fsm.NewSession(fsm.WithHook(m.onTransition))
	if err != nil {
		return nil, []error{err}
	}
	return m, nil
}

// Config returns the configuration the monitor was built with.
func (m *Monitor) Config() Config {
	return m.config
}

func (m *Monitor) onTransition(from, to fsm.State) {
	m.log.Infof("session %s -> %s", from, to)
	m.bus.Dispatch(eventbus.NewEvent(EventState, StateChange{From: from, To: to}), TopicSession)
}

// Start begins a monitoring session.  Starting again after Stop discards the previous
// session's history.
func (m *Monitor) Start() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	restart := m.session.Is(fsm.Stopped)
	if err := m.session.Transition(fsm.Monitoring); err != nil {
		return err
	}
	if restart {
		m.pipeline.Reset()
		m.last = sample.Sample{}
		m.lastAt = time.Time{}
	}
	return nil
}

// Stop ends the session.  The history stays readable until the next Start.
func (m *Monitor) Stop() error {
	return m.session.Transition(fsm.Stopped)
}

// Ingest adds one sample to the active session.  Samples that arrive while no session is
// active are counted and dropped.
func (m *Monitor) Ingest(s sample.Sample) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.session.Is(fsm.Monitoring) {
		atomic.AddUint64(&m.dropped, 1)
		return
	}
	u := m.pipeline.Ingest(s)
	m.last = u.Sample
	m.lastAt = u.Received
}

// Run starts a session if needed and feeds it from src until ctx is done or the source
// fails.  The session is stopped on return.
func (m *Monitor) Run(ctx context.Context, src source.Source) error {
	if !m.session.Is(fsm.Monitoring) {
		if err := m.Start(); err != nil {
			return err
		}
	}

	out := make(chan sample.Sample)
	errc := make(chan error, 1)
	go func() {
		errc <- src.Run(ctx, out)
	}()

	for {
		select {
		case s := <-out:
			m.Ingest(s)
		case err := <-errc:
			if stopErr := m.Stop(); stopErr != nil {
				m.log.Debugf("stop after source exit: %v", stopErr)
			}
			if err != nil {
				m.ReportError(err)
				return err
			}
			return nil
		}
	}
}

// ReportError logs err, publishes it on the error topic and forwards it to the error
// reporter.
func (m *Monitor) ReportError(err error) {
	if err == nil {
		return
	}
	m.log.Errorf("%v", err)
	m.bus.Dispatch(eventbus.NewErrorEvent(err), eventbus.OnErrorTopic())
	m.errors.ReportError(err)
}

// CurrentWindows returns a copy of every channel, oldest first.
func (m *Monitor) CurrentWindows() map[store.Channel][]float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.store.Windows()
}

// CurrentStatistics returns the summaries computed on the last ingest.
func (m *Monitor) CurrentStatistics() map[store.Channel]stat.Summary {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.pipeline.Statistics()
}

// AllanCurve returns the Allan deviation curve for t.  The curve cached by the pipeline is
// used when t is the selected target and one has been computed since the target changed;
// otherwise it is computed from the current window.
func (m *Monitor) AllanCurve(t view.Target) []stat.AllanPoint {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.pipeline.AllanCurve(t)
}

// Smoothed returns the moving average of one channel using the configured width.
func (m *Monitor) Smoothed(ch store.Channel) ([]float64, error) {
	m.mutex.RLock()
	w := m.store.Window(ch)
	m.mutex.RUnlock()
	return stat.MovingAverage(w, m.config.SmoothingWindow)
}

func (m *Monitor) SetDisplayMode(mode view.Mode) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.mode = mode
}

func (m *Monitor) DisplayMode() view.Mode {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.mode
}

// SetAllanTarget switches the channel the periodic Allan curve is computed over.
func (m *Monitor) SetAllanTarget(t view.Target) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.pipeline.SetTarget(t)
}

func (m *Monitor) AllanTarget() view.Target {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.pipeline.Target()
}

// Projection returns the two series of the current display mode.  In Allan mode it returns
// view.ErrAllanMode and the caller should draw AllanCurve(AllanTarget()) instead.
func (m *Monitor) Projection() (view.Projection, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return view.Project(m.store, m.mode)
}

// Subscribe registers for monitor events.  See pipeline.TopicUpdates, pipeline.TopicAllan,
// pipeline.TopicAlerts, TopicSession and eventbus.OnErrorTopic.
func (m *Monitor) Subscribe(topics ...eventbus.Topic) (<-chan eventbus.Event, eventbus.Unsubscribe) {
	return m.bus.Subscribe(topics...)
}

func (m *Monitor) Status() Status {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return Status{
		State:       m.session.State(),
		Mode:        m.mode,
		AllanTarget: m.pipeline.Target(),
		Len:         m.store.Len(),
		Capacity:    m.store.Cap(),
		Ingested:    m.pipeline.Ingested(),
		AllanRuns:   m.pipeline.AllanRuns(),
		Dropped:     atomic.LoadUint64(&m.dropped),
		BusDropped:  m.bus.Dropped(),
		Cached:      m.pipeline.Cached(),
		Locked:      m.last.LockStatus,
		Holdover:    m.last.HoldoverStatus,
		LastSample:  m.lastAt,
		Cadence:     m.pipeline.Cadence(),
		Alerts:      m.pipeline.Alerts(),
	}
}

// Shutdown stops an active session and closes every subscription.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.session.Is(fsm.Monitoring) {
		if err := m.Stop(); err != nil {
			return err
		}
	}
	return m.bus.Shutdown(ctx)
}
