// Package exporter exposes monitor state as Prometheus metrics.
package exporter

import (
	"math"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/BTBurke/oscmon"
	"github.com/BTBurke/oscmon/pkg/alert"
	"github.com/BTBurke/oscmon/pkg/fsm"
	"github.com/BTBurke/oscmon/pkg/stat"
	"github.com/BTBurke/oscmon/pkg/store"
	"github.com/BTBurke/oscmon/pkg/view"
)

const namespace = "oscmon"

var channelLabelNames = []string{"channel"}

func newChannelMetric(metricName, docString string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, "channel", metricName), docString, channelLabelNames, nil)
}

var (
	upMetric           = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "up"), "Is a monitoring session active.", nil, nil)
	windowLengthMetric = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "window_length"), "Samples currently retained per channel.", nil, nil)
	windowCapMetric    = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "window_capacity"), "Maximum samples retained per channel.", nil, nil)
	ingestedMetric     = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "samples_ingested_total"), "Samples ingested.", nil, nil)
	droppedMetric      = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "samples_dropped_total"), "Samples dropped because no session was active.", nil, nil)
	allanRunsMetric    = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "allan_recomputations_total"), "Allan deviation recomputations.", nil, nil)
	lockMetric         = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "lock_status"), "Lock flag of the most recent sample.", nil, nil)
	holdoverMetric     = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "holdover_status"), "Holdover flag of the most recent sample.", nil, nil)
	allanMetric        = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "allan_deviation"), "Overlapping Allan deviation by averaging time in samples.", []string{"target", "tau"}, nil)
	intervalMetric     = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "sample_interval_seconds"), "Time between consecutive samples.", []string{"quantile"}, nil)
	alertMetric        = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "alert_active"), "Is an alert rule firing.", []string{"alert", "channel"}, nil)

	channelMetrics = map[string]*prometheus.Desc{
		"mean":   newChannelMetric("mean", "Window mean."),
		"stddev": newChannelMetric("stddev", "Window population standard deviation."),
		"min":    newChannelMetric("min", "Window minimum."),
		"max":    newChannelMetric("max", "Window maximum."),
		"drift":  newChannelMetric("drift", "Least squares slope of the window per sample."),
	}
)

// Provider is the read side of a monitor.
type Provider interface {
	CurrentStatistics() map[store.Channel]stat.Summary
	AllanCurve(t view.Target) []stat.AllanPoint
	Status() oscmon.Status
}

// Collector reads a provider on every scrape.
type Collector struct {
	provider Provider
	mutex    sync.Mutex

	totalScrapes prometheus.Counter
}

// New returns a collector over p.
func New(p Provider) *Collector {
	return &Collector{
		provider: p,
		totalScrapes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exporter_scrapes_total",
			Help:      "Current total scrapes.",
		}),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range channelMetrics {
		ch <- m
	}
	ch <- upMetric
	ch <- windowLengthMetric
	ch <- windowCapMetric
	ch <- ingestedMetric
	ch <- droppedMetric
	ch <- allanRunsMetric
	ch <- lockMetric
	ch <- holdoverMetric
	ch <- allanMetric
	ch <- intervalMetric
	ch <- alertMetric
	ch <- c.totalScrapes.Desc()
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.totalScrapes.Inc()
	st := c.provider.Status()

	up := 0.0
	if st.State == fsm.Monitoring {
		up = 1
	}
	ch <- prometheus.MustNewConstMetric(upMetric, prometheus.GaugeValue, up)
	ch <- prometheus.MustNewConstMetric(windowLengthMetric, prometheus.GaugeValue, float64(st.Len))
	ch <- prometheus.MustNewConstMetric(windowCapMetric, prometheus.GaugeValue, float64(st.Capacity))
	ch <- prometheus.MustNewConstMetric(ingestedMetric, prometheus.CounterValue, float64(st.Ingested))
	ch <- prometheus.MustNewConstMetric(droppedMetric, prometheus.CounterValue, float64(st.Dropped))
	ch <- prometheus.MustNewConstMetric(allanRunsMetric, prometheus.CounterValue, float64(st.AllanRuns))

	if st.Len > 0 {
		ch <- prometheus.MustNewConstMetric(lockMetric, prometheus.GaugeValue, bit(st.Locked))
		ch <- prometheus.MustNewConstMetric(holdoverMetric, prometheus.GaugeValue, bit(st.Holdover))
	}

	for chName, s := range c.provider.CurrentStatistics() {
		if s.Count == 0 || math.IsNaN(s.Mean) {
			continue
		}
		label := chName.String()
		ch <- prometheus.MustNewConstMetric(channelMetrics["mean"], prometheus.GaugeValue, s.Mean, label)
		ch <- prometheus.MustNewConstMetric(channelMetrics["stddev"], prometheus.GaugeValue, s.StdDev, label)
		ch <- prometheus.MustNewConstMetric(channelMetrics["min"], prometheus.GaugeValue, s.Min, label)
		ch <- prometheus.MustNewConstMetric(channelMetrics["max"], prometheus.GaugeValue, s.Max, label)
		if !math.IsNaN(s.Drift) {
			ch <- prometheus.MustNewConstMetric(channelMetrics["drift"], prometheus.GaugeValue, s.Drift, label)
		}
	}

	target := st.AllanTarget.String()
	for _, p := range c.provider.AllanCurve(st.AllanTarget) {
		ch <- prometheus.MustNewConstMetric(allanMetric, prometheus.GaugeValue, p.Deviation, target, strconv.Itoa(p.Tau))
	}

	if st.Cadence.Count > 0 {
		ch <- prometheus.MustNewConstMetric(intervalMetric, prometheus.GaugeValue, st.Cadence.P50.Seconds(), "0.5")
		ch <- prometheus.MustNewConstMetric(intervalMetric, prometheus.GaugeValue, st.Cadence.P99.Seconds(), "0.99")
		ch <- prometheus.MustNewConstMetric(intervalMetric, prometheus.GaugeValue, st.Cadence.Max.Seconds(), "1")
	}

	for key, firing := range st.Alerts {
		name, channel := alert.SplitKey(key)
		ch <- prometheus.MustNewConstMetric(alertMetric, prometheus.GaugeValue, bit(firing), name, channel)
	}

	ch <- c.totalScrapes
}

func bit(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
