package oscmon

import (
	"github.com/BTBurke/oscmon/pkg/source"
)

// Source builds the configured sample source.  Polling failures are routed through
// ReportError so they reach the log, the error topic and the error reporter.
func (m *Monitor) Source() source.Source {
	c := m.config
	switch c.Source {
	case SourceHTTP:
		return source.NewPoller(c.PollURL, c.PollInterval,
			source.WithRetries(c.PollRetries),
			source.WithErrorFunc(m.ReportError),
		)
	default:
		opts := []source.SimulatorOption{source.WithDrift(c.Drift)}
		if c.seeded {
			opts = append(opts, source.WithSeed(c.Seed))
		}
		return source.NewSimulator(c.PollInterval, opts...)
	}
}
