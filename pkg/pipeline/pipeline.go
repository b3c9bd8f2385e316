// Package pipeline turns each incoming sample into an updated store, fresh channel statistics
// and, periodically, a new Allan deviation curve.
package pipeline

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/common/log"

	"github.com/BTBurke/oscmon/pkg/alert"
	"github.com/BTBurke/oscmon/pkg/eventbus"
	"github.com/BTBurke/oscmon/pkg/sample"
	"github.com/BTBurke/oscmon/pkg/stat"
	"github.com/BTBurke/oscmon/pkg/store"
	"github.com/BTBurke/oscmon/pkg/view"
)

// DefaultAllanEvery is how many retained samples separate Allan recomputations.
const DefaultAllanEvery = 10

// Topics and event types published after each ingest.
const (
	TopicUpdates eventbus.Topic = "updates"
	TopicAllan   eventbus.Topic = "allan"
	TopicAlerts  eventbus.Topic = "alerts"

	EventSnapshot   eventbus.EventType = "snapshot"
	EventAllanCurve eventbus.EventType = "allan_curve"
	EventAlert      eventbus.EventType = "alert"
)

// StatChannels are summarized on every ingest.
var StatChannels = []store.Channel{store.FrequencyError, store.Temperature, store.Voltage, store.Current}

// inter-arrival histogram bounds in microseconds
const (
	histMin     = 1
	histMax     = int64(time.Hour / time.Microsecond)
	histSigFigs = 3
)

// Clock returns the arrival time of samples that carry no timestamp.  The sample itself is
// stored unchanged.
type Clock func() time.Time

// Update is the result of one ingest.  Allan is only set when the curve was recomputed and
// Alerts only holds rules that changed state.
type Update struct {
	Sample          sample.Sample
	Received        time.Time
	Len             int
	Statistics      map[store.Channel]stat.Summary
	AllanTarget     view.Target
	AllanRecomputed bool
	Allan           []stat.AllanPoint
	Alerts          []alert.Alert
}

// Cadence summarizes the time between consecutive samples.
type Cadence struct {
	Count int64
	P50   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// Pipeline is the single writer of a store.  It is not safe for concurrent use; callers
// serialize Ingest with every other method.
type Pipeline struct {
	store  *store.Store
	every  int
	target view.Target
	bus    *eventbus.EventBus
	clock  Clock
	alerts *alert.Checker
	log    log.Logger

	stats      map[store.Channel]stat.Summary
	curve      []stat.AllanPoint
	curveValid bool

	ingested  uint64
	allanRuns uint64

	cadence     *hdrhistogram.Histogram
	lastArrival time.Time
}

// New returns a pipeline writing into st.
func New(st *store.Store, opts ...Option) (*Pipeline, error) {
	if st == nil {
		return nil, ErrNoStore
	}
	p := &Pipeline{
		store:   st,
		every:   DefaultAllanEvery,
		target:  view.Frequency,
		clock:   time.Now,
		log:     log.Base().With("component", "pipeline"),
		stats:   make(map[store.Channel]stat.Summary),
		cadence: hdrhistogram.New(histMin, histMax, histSigFigs),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Ingest appends the sample, refreshes the statistics of every summarized channel and, when
// the number of retained samples is a multiple of the Allan interval, recomputes the Allan
// curve of the selected target.  It never fails.
func (p *Pipeline) Ingest(s sample.Sample) Update {
	received := s.Timestamp
	if received.IsZero() {
		received = p.clock()
	}
	p.recordArrival(received)
	p.store.Append(s)
	p.ingested++

	n := p.store.Len()
	if n > 0 {
		for _, ch := range StatChannels {
			p.stats[ch] = stat.Summarize(p.store.Window(ch))
		}
	}

	u := Update{
		Sample:      s,
		Received:    received,
		Len:         n,
		Statistics:  p.Statistics(),
		AllanTarget: p.target,
	}
	if n > 0 && n%p.every == 0 {
		p.curve = stat.Curve(p.store.Window(p.target.Channel()))
		p.curveValid = true
		p.allanRuns++
		u.AllanRecomputed = true
		u.Allan = copyCurve(p.curve)
		p.log.Debugf("recomputed allan curve for %s over %d samples (%d points)", p.target, n, len(p.curve))
	}

	if p.alerts != nil {
		u.Alerts = p.alerts.Check(s, received)
		for _, a := range u.Alerts {
			if a.Firing {
				p.log.Warnf("alert %s", a)
			} else {
				p.log.Infof("alert %s", a)
			}
		}
	}

	p.publish(u)
	return u
}

func (p *Pipeline) publish(u Update) {
	if p.bus == nil {
		return
	}
	p.bus.Dispatch(eventbus.NewEvent(EventSnapshot, u), TopicUpdates)
	if u.AllanRecomputed {
		p.bus.Dispatch(eventbus.NewEvent(EventAllanCurve, u.Allan), TopicAllan)
	}
	for _, a := range u.Alerts {
		p.bus.Dispatch(eventbus.NewEvent(EventAlert, a), TopicAlerts)
	}
}

func (p *Pipeline) recordArrival(ts time.Time) {
	if !p.lastArrival.IsZero() {
		if d := ts.Sub(p.lastArrival); d > 0 {
			us := int64(d / time.Microsecond)
			if us < histMin {
				us = histMin
			}
			if us > histMax {
				us = histMax
			}
			if err := p.cadence.RecordValue(us); err != nil {
				p.log.Warnf("dropping inter-arrival time %s: %v", d, err)
			}
		}
	}
	p.lastArrival = ts
}

// Statistics returns a copy of the summaries computed on the last ingest.  It is empty
// before the first sample.
func (p *Pipeline) Statistics() map[store.Channel]stat.Summary {
	out := make(map[store.Channel]stat.Summary, len(p.stats))
	for ch, s := range p.stats {
		out[ch] = s
	}
	return out
}

// AllanCurve returns the cached curve when t is the pipeline's target and a curve has been
// computed since the target last changed.  Otherwise the curve is computed from the current
// window of t without touching the cache.
func (p *Pipeline) AllanCurve(t view.Target) []stat.AllanPoint {
	if t == p.target && p.curveValid {
		return copyCurve(p.curve)
	}
	return stat.Curve(p.store.Window(t.Channel()))
}

// Cached reports whether a curve for the current target is cached.
func (p *Pipeline) Cached() bool {
	return p.curveValid
}

// Target is the channel the periodic Allan curve is computed over.
func (p *Pipeline) Target() view.Target {
	return p.target
}

// SetTarget switches the Allan target and drops the cached curve.
func (p *Pipeline) SetTarget(t view.Target) {
	if t == p.target {
		return
	}
	p.target = t
	p.curve = nil
	p.curveValid = false
}

// Ingested is the number of samples ingested since the pipeline was created.
func (p *Pipeline) Ingested() uint64 {
	return p.ingested
}

// AllanRuns is the number of Allan recomputations since the pipeline was created.
func (p *Pipeline) AllanRuns() uint64 {
	return p.allanRuns
}

// Alerts reports every configured rule keyed by alert.Alert.Key with whether it is firing.
// It is empty when no checker is configured.
func (p *Pipeline) Alerts() map[string]bool {
	if p.alerts == nil {
		return map[string]bool{}
	}
	return p.alerts.Active()
}

// Cadence returns inter-arrival quantiles over every sample seen since the last Reset.
func (p *Pipeline) Cadence() Cadence {
	return Cadence{
		Count: p.cadence.TotalCount(),
		P50:   time.Duration(p.cadence.ValueAtQuantile(50)) * time.Microsecond,
		P99:   time.Duration(p.cadence.ValueAtQuantile(99)) * time.Microsecond,
		Max:   time.Duration(p.cadence.Max()) * time.Microsecond,
	}
}

// Reset clears the store, statistics, cached curve, cadence and alert states.  Counters keep
// running.
func (p *Pipeline) Reset() {
	p.store.Reset()
	p.stats = make(map[store.Channel]stat.Summary)
	p.curve = nil
	p.curveValid = false
	p.cadence.Reset()
	p.lastArrival = time.Time{}
	if p.alerts != nil {
		p.alerts.Reset()
	}
}

func copyCurve(c []stat.AllanPoint) []stat.AllanPoint {
	if c == nil {
		return nil
	}
	return append([]stat.AllanPoint{}, c...)
}
