package oscmon

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BTBurke/oscmon/pkg/alert"
	"github.com/BTBurke/oscmon/pkg/pipeline"
	"github.com/BTBurke/oscmon/pkg/source"
	"github.com/BTBurke/oscmon/pkg/store"
	"github.com/BTBurke/oscmon/pkg/view"
)

// Sources a monitor can be fed from.
const (
	SourceSimulator = "simulator"
	SourceHTTP      = "http"
)

type Config struct {
	Capacity        int
	AllanEvery      int
	SmoothingWindow int
	AllanTarget     view.Target
	DisplayMode     view.Mode
	Source          string
	PollURL         string
	PollInterval    time.Duration
	PollRetries     uint64
	Seed            int64
	Drift           float64
	Listen          string
	MetricsPath     string
	LogLevel        string
	TUI             bool
	ExportPath      string
	Alerts          bool
	AlertThresholds map[store.Channel]float64
	StatusAlerts    []string

	seeded bool
}

type ConfigOption func(c *Config) error

func newConfig(options ...ConfigOption) (Config, []error) {
	c := Config{
		Capacity:        store.DefaultCapacity,
		AllanEvery:      pipeline.DefaultAllanEvery,
		SmoothingWindow: 10,
		AllanTarget:     view.Frequency,
		DisplayMode:     view.FreqTemp,
		Source:          SourceSimulator,
		PollInterval:    time.Second,
		PollRetries:     source.DefaultRetries,
		Drift:           source.DefaultDrift,
		Listen:          ":9624",
		MetricsPath:     "/metrics",
		LogLevel:        "info",
		Alerts:          true,
		AlertThresholds: make(map[store.Channel]float64, len(alert.DefaultThresholds)),
		StatusAlerts:    append([]string{}, alert.DefaultStatus...),
	}
	for ch, limit := range alert.DefaultThresholds {
		c.AlertThresholds[ch] = limit
	}

	var errors []error
	for _, option := range options {
		err := option(&c)
		if err != nil {
			errors = append(errors, err)
		}
	}
	if c.Source == SourceHTTP && len(c.PollURL) == 0 {
		errors = append(errors, fmt.Errorf("source http requires --poll-url"))
	}

	if len(errors) > 0 {
		return Config{}, errors
	}
	return c, nil
}

func positiveInt(name string, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("could not convert %s to integer", name)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s must be at least 1, got %d", name, n)
	}
	return n, nil
}

// Capacity is the number of samples kept per channel.
func Capacity(value string) ConfigOption {
	return func(c *Config) error {
		n, err := positiveInt("capacity", value)
		if err != nil {
			return err
		}
		c.Capacity = n
		return nil
	}
}

// AllanEvery sets how many retained samples separate Allan recomputations.
func AllanEvery(value string) ConfigOption {
	return func(c *Config) error {
		n, err := positiveInt("allan-every", value)
		if err != nil {
			return err
		}
		c.AllanEvery = n
		return nil
	}
}

func SmoothingWindow(value string) ConfigOption {
	return func(c *Config) error {
		n, err := positiveInt("smoothing", value)
		if err != nil {
			return err
		}
		c.SmoothingWindow = n
		return nil
	}
}

func AllanTarget(value string) ConfigOption {
	return func(c *Config) error {
		t, err := view.ParseTarget(value)
		if err != nil {
			return err
		}
		c.AllanTarget = t
		return nil
	}
}

func DisplayMode(value string) ConfigOption {
	return func(c *Config) error {
		m, err := view.ParseMode(value)
		if err != nil {
			return err
		}
		c.DisplayMode = m
		return nil
	}
}

// Source selects where samples come from: simulator or http.
func Source(value string) ConfigOption {
	return func(c *Config) error {
		switch value {
		case SourceSimulator, SourceHTTP:
			c.Source = value
			return nil
		default:
			return fmt.Errorf("unknown source %q, use simulator or http", value)
		}
	}
}

// PollURL is the base URL of the module's web service.  Setting it implies the http source.
func PollURL(value string) ConfigOption {
	return func(c *Config) error {
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid poll url: %s", value)
		}
		c.PollURL = strings.TrimRight(value, "/")
		c.Source = SourceHTTP
		return nil
	}
}

func PollInterval(value string) ConfigOption {
	return func(c *Config) error {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("unrecognized poll interval duration: %s", value)
		}
		if d <= 0 {
			return fmt.Errorf("poll interval must be positive, got %s", value)
		}
		c.PollInterval = d
		return nil
	}
}

func PollRetries(value string) ConfigOption {
	return func(c *Config) error {
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("could not convert poll-retries to integer")
		}
		c.PollRetries = n
		return nil
	}
}

// Seed makes the simulator reproducible.
func Seed(value string) ConfigOption {
	return func(c *Config) error {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("could not convert seed to integer")
		}
		c.Seed = n
		c.seeded = true
		return nil
	}
}

func Drift(value string) ConfigOption {
	return func(c *Config) error {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("could not convert drift to number")
		}
		c.Drift = f
		return nil
	}
}

func Listen(value string) ConfigOption {
	return func(c *Config) error {
		c.Listen = value
		return nil
	}
}

func MetricsPath(value string) ConfigOption {
	return func(c *Config) error {
		if !strings.HasPrefix(value, "/") {
			return fmt.Errorf("metrics path must start with /, got %s", value)
		}
		c.MetricsPath = value
		return nil
	}
}

func LogLevel(value string) ConfigOption {
	return func(c *Config) error {
		switch value {
		case "debug", "info", "warn", "error", "fatal":
			c.LogLevel = value
			return nil
		default:
			return fmt.Errorf("unknown log level %s, use debug, info, warn or error", value)
		}
	}
}

// TUI runs the terminal dashboard in the foreground.
func TUI() ConfigOption {
	return func(c *Config) error {
		c.TUI = true
		return nil
	}
}

// ExportPath writes the retained history as logfmt when the monitor exits.
func ExportPath(value string) ConfigOption {
	return func(c *Config) error {
		c.ExportPath = value
		return nil
	}
}

func NoErrorReports() ConfigOption {
	return func(c *Config) error {
		SuppressErrorReporting = true
		return nil
	}
}

// NoAlerts turns off threshold and status alerts.
func NoAlerts() ConfigOption {
	return func(c *Config) error {
		c.Alerts = false
		return nil
	}
}

// AlertThreshold sets the absolute limit for one channel.  Zero removes the rule.
func AlertThreshold(ch store.Channel, value string) ConfigOption {
	return func(c *Config) error {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("could not convert %s alert threshold to number", ch)
		}
		if f < 0 {
			return fmt.Errorf("%s alert threshold must not be negative, got %s", ch, value)
		}
		if c.AlertThresholds == nil {
			c.AlertThresholds = make(map[store.Channel]float64)
		}
		if f == 0 {
			delete(c.AlertThresholds, ch)
			return nil
		}
		c.AlertThresholds[ch] = f
		return nil
	}
}

// StatusAlerts is a comma separated list of status conditions: NOT_LOCKED, HOLDOVER or a
// device status word such as ERROR.  "none" clears the list.
func StatusAlerts(value string) ConfigOption {
	return func(c *Config) error {
		c.StatusAlerts = []string{}
		if strings.EqualFold(strings.TrimSpace(value), "none") {
			return nil
		}
		for _, s := range strings.Split(value, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				c.StatusAlerts = append(c.StatusAlerts, s)
			}
		}
		return nil
	}
}
