// Package sample defines the status reading produced by an oscillator module and its
// tolerant JSON decoding.  Any numeric field that is absent or null decodes to 0 and any
// boolean that is absent or null decodes to false.
package sample

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Sample is one status reading.  It is passed by value and never modified after it is
// constructed.
type Sample struct {
	Timestamp      time.Time
	FrequencyError float64 // ppm
	Temperature    float64 // degrees Celsius
	Voltage        float64
	Current        float64
	LockStatus     bool
	HoldoverStatus bool
	// Status is the device status word (e.g. LOCKED).  It is informational only.
	Status string
}

// timestamp layouts accepted on the wire, tried in order.  The device web service emits
// ISO-8601 without a zone, which is read as UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// wire is the transport shape.  json.RawMessage lets every field be absent, null, or
// carry a loosely typed value without failing the whole sample.
type wire struct {
	Timestamp      json.RawMessage `json:"timestamp"`
	FrequencyError json.RawMessage `json:"frequency_error"`
	Temperature    json.RawMessage `json:"temperature"`
	Voltage        json.RawMessage `json:"voltage"`
	Current        json.RawMessage `json:"current"`
	LockStatus     json.RawMessage `json:"lock_status"`
	HoldoverStatus json.RawMessage `json:"holdover_status"`
	Status         json.RawMessage `json:"status"`
}

// Decode parses a sample from JSON.  Only malformed JSON is an error; missing or
// mistyped fields fall back to their zero value.
func Decode(data []byte) (Sample, error) {
	var s Sample
	if err := json.Unmarshal(data, &s); err != nil {
		return Sample{}, err
	}
	return s, nil
}

// UnmarshalJSON implements json.Unmarshaler with the defaulting rules of the package.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("sample: malformed status object: %v", err)
	}
	*s = Sample{
		Timestamp:      parseTime(w.Timestamp),
		FrequencyError: parseFloat(w.FrequencyError),
		Temperature:    parseFloat(w.Temperature),
		Voltage:        parseFloat(w.Voltage),
		Current:        parseFloat(w.Current),
		LockStatus:     parseBool(w.LockStatus),
		HoldoverStatus: parseBool(w.HoldoverStatus),
		Status:         parseString(w.Status),
	}
	return nil
}

// MarshalJSON writes the sample in the transport shape with an RFC3339 timestamp.
func (s Sample) MarshalJSON() ([]byte, error) {
	out := struct {
		Timestamp      string  `json:"timestamp,omitempty"`
		FrequencyError float64 `json:"frequency_error"`
		Temperature    float64 `json:"temperature"`
		Voltage        float64 `json:"voltage"`
		Current        float64 `json:"current"`
		LockStatus     bool    `json:"lock_status"`
		HoldoverStatus bool    `json:"holdover_status"`
		Status         string  `json:"status,omitempty"`
	}{
		FrequencyError: s.FrequencyError,
		Temperature:    s.Temperature,
		Voltage:        s.Voltage,
		Current:        s.Current,
		LockStatus:     s.LockStatus,
		HoldoverStatus: s.HoldoverStatus,
		Status:         s.Status,
	}
	if !s.Timestamp.IsZero() {
		out.Timestamp = s.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

// Unix returns the timestamp as fractional Unix seconds, or 0 for the zero time.
func (s Sample) Unix() float64 {
	if s.Timestamp.IsZero() {
		return 0
	}
	return float64(s.Timestamp.UnixNano()) / float64(time.Second)
}

// Bit converts a flag to the 0/1 encoding used by the status channels.
func Bit(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func parseFloat(raw json.RawMessage) float64 {
	if isNull(raw) {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return finite(f)
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			return finite(f)
		}
	}
	return 0
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func parseBool(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f != 0
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		b, _ := strconv.ParseBool(strings.TrimSpace(str))
		return b
	}
	return false
}

func parseString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return ""
	}
	return str
}

func parseTime(raw json.RawMessage) time.Time {
	if isNull(raw) {
		return time.Time{}
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		str = strings.TrimSpace(str)
		for _, layout := range layouts {
			if t, err := time.Parse(layout, str); err == nil {
				return t
			}
		}
		return time.Time{}
	}
	var secs float64
	if err := json.Unmarshal(raw, &secs); err == nil && secs > 0 {
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC()
	}
	return time.Time{}
}
