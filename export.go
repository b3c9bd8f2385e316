package oscmon

import (
	"io"
	"math"
	"time"

	"github.com/go-logfmt/logfmt"

	"github.com/BTBurke/oscmon/pkg/store"
)

// exportChannels are written after the timestamp, in this order.
var exportChannels = []store.Channel{
	store.FrequencyError,
	store.Temperature,
	store.Voltage,
	store.Current,
	store.LockStatus,
	store.HoldoverStatus,
}

// Export writes the retained history as logfmt, one record per sample, oldest first:
//
//	ts=2024-03-01T12:00:01Z frequency_error=0.0001 temperature=25.2 voltage=12 current=0.5 lock_status=1 holdover_status=0
func (m *Monitor) Export(w io.Writer) error {
	windows := m.CurrentWindows()
	enc := logfmt.NewEncoder(w)

	for i, ts := range windows[store.Timestamps] {
		if err := enc.EncodeKeyval("ts", formatUnix(ts)); err != nil {
			return err
		}
		for _, ch := range exportChannels {
			if err := enc.EncodeKeyval(ch.String(), windows[ch][i]); err != nil {
				return err
			}
		}
		if err := enc.EndRecord(); err != nil {
			return err
		}
	}
	return nil
}

func formatUnix(secs float64) string {
	whole, frac := math.Modf(secs)
	t := time.Unix(int64(whole), int64(math.Round(frac*1e6))*int64(time.Microsecond))
	return t.UTC().Format(time.RFC3339Nano)
}
