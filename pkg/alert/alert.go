// Package alert checks samples against channel thresholds and device status conditions and
// reports when a condition starts or stops.
package alert

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/BTBurke/oscmon/pkg/fsm"
	"github.com/BTBurke/oscmon/pkg/sample"
	"github.com/BTBurke/oscmon/pkg/store"
)

// Rule names.  Status conditions other than NotLocked and Holdover match the sample's status
// word and are named after it in lower case.
const (
	Threshold = "threshold"
	NotLocked = "not_locked"
	Holdover  = "holdover"
)

// statusChannel is reported for conditions on the free-form status word.
const statusChannel = "status"

// DefaultThresholds are the absolute limits checked when none are configured.
var DefaultThresholds = map[store.Channel]float64{
	store.FrequencyError: 1e-8,
	store.Temperature:    50,
	store.Voltage:        15,
	store.Current:        2,
}

// DefaultStatus are the status conditions checked when none are configured.
var DefaultStatus = []string{"ERROR", "NOT_LOCKED"}

// Alert is one edge of a rule: Firing is true when the condition started and false when it
// cleared.
type Alert struct {
	Name      string
	Channel   string
	Value     float64
	Threshold float64
	Firing    bool
	Time      time.Time
}

func (a Alert) String() string {
	state := "resolved"
	if a.Firing {
		state = "firing"
	}
	if a.Name == Threshold {
		return fmt.Sprintf("%s %s: |%g| > %g", state, a.Channel, a.Value, a.Threshold)
	}
	return fmt.Sprintf("%s %s on %s", state, a.Name, a.Channel)
}

// Key identifies a rule.
func (a Alert) Key() string {
	return a.Name + "/" + a.Channel
}

type rule struct {
	name      string
	channel   string
	threshold float64
	test      func(s sample.Sample) (value float64, breach bool)
	state     *fsm.Machine
}

// Checker holds one state machine per rule.  It is not safe for concurrent use.
type Checker struct {
	rules []*rule
}

// New builds a checker from absolute channel thresholds and status condition names.  A
// threshold must be positive.
func New(thresholds map[store.Channel]float64, status []string) (*Checker, error) {
	c := &Checker{}

	channels := make([]store.Channel, 0, len(thresholds))
	for ch := range thresholds {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })

	for _, ch := range channels {
		limit := thresholds[ch]
		if limit <= 0 || math.IsNaN(limit) {
			return nil, fmt.Errorf("alert: threshold for %s must be positive, got %g", ch, limit)
		}
		if _, err := store.ChannelValue(ch, sample.Sample{}); err != nil {
			return nil, fmt.Errorf("alert: %v", err)
		}
		ch := ch
		if err := c.add(Threshold, ch.String(), limit, func(s sample.Sample) (float64, bool) {
			v, _ := store.ChannelValue(ch, s)
			return v, math.Abs(v) > limit
		}); err != nil {
			return nil, err
		}
	}

	seen := map[string]bool{}
	for _, name := range status {
		name = strings.ToUpper(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		var err error
		switch name {
		case "NOT_LOCKED":
			err = c.add(NotLocked, store.LockStatus.String(), 0, func(s sample.Sample) (float64, bool) {
				return sample.Bit(s.LockStatus), !s.LockStatus
			})
		case "HOLDOVER":
			err = c.add(Holdover, store.HoldoverStatus.String(), 0, func(s sample.Sample) (float64, bool) {
				return sample.Bit(s.HoldoverStatus), s.HoldoverStatus
			})
		default:
			word := name
			err = c.add(strings.ToLower(word), statusChannel, 0, func(s sample.Sample) (float64, bool) {
				match := strings.EqualFold(strings.TrimSpace(s.Status), word)
				return sample.Bit(match), match
			})
		}
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Checker) add(name, channel string, threshold float64, test func(sample.Sample) (float64, bool)) error {
	m, err := newMachine()
	if err != nil {
		return err
	}
	c.rules = append(c.rules, &rule{name: name, channel: channel, threshold: threshold, test: test, state: m})
	return nil
}

// Check evaluates every rule against s and returns the rules whose state changed.
func (c *Checker) Check(s sample.Sample, at time.Time) []Alert {
	var out []Alert
	for _, r := range c.rules {
		value, breach := r.test(s)
		to := Clear
		if breach {
			to = Firing
		}
		if r.state.Is(to) {
			continue
		}
		if err := r.state.Transition(to); err != nil {
			continue
		}
		out = append(out, Alert{
			Name:      r.name,
			Channel:   r.channel,
			Value:     value,
			Threshold: r.threshold,
			Firing:    breach,
			Time:      at,
		})
	}
	return out
}

// Active returns every rule keyed by Alert.Key with whether it is firing.
func (c *Checker) Active() map[string]bool {
	out := make(map[string]bool, len(c.rules))
	for _, r := range c.rules {
		out[r.name+"/"+r.channel] = r.state.Is(Firing)
	}
	return out
}

// Len is the number of rules.
func (c *Checker) Len() int {
	return len(c.rules)
}

// Reset clears every rule without reporting.
func (c *Checker) Reset() {
	for _, r := range c.rules {
		r.state.Reset()
	}
}

// SplitKey returns the rule name and channel of an Active key.
func SplitKey(key string) (name, channel string) {
	i := strings.Index(key, "/")
	if i < 0 {
		return key, ""
	}
	return key[:i], key[i+1:]
}
