package oscmon

import (
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/go-yaml/yaml"
	"github.com/spf13/pflag"

	"github.com/BTBurke/oscmon/pkg/store"
)

type options struct {
	options []ConfigOption
	err     error
}

// ParseCommandLine configures the monitor from command line options or from
// a YAML configuration file passed with the -c flag.  Returns a slice of
// functional options that can be applied to the configuration.
func ParseCommandLine() ([]ConfigOption, error) {
	pf := createFlagSet()
	return parse(os.Args[1:], pf)
}

func parse(args []string, pf *pflag.FlagSet) ([]ConfigOption, error) {
	options := options{}
	if err := pf.ParseAll(args, parseFlag(&options)); err != nil {
		return options.options, err
	}
	if pf.NArg() > 0 {
		return options.options, fmt.Errorf("unexpected arguments: %v", pf.Args())
	}
	return options.options, options.err
}

func createFlagSet() *pflag.FlagSet {
	pf := pflag.NewFlagSet("oscmon", pflag.ContinueOnError)
	pf.Usage = func() {
		fmt.Printf("Usage of oscmon:\noscmon <options>\noscmon -c config.yml\n")
		fmt.Printf("\n%s", pf.FlagUsagesWrapped(10))
	}

	pf.StringP("config", "c", "", "Use yaml configuration file")
	pf.Int("capacity", 100, "Number of samples kept per channel")
	pf.Int("allan-every", 10, "Recompute the Allan deviation when the number of retained samples is a multiple of this value")
	pf.Int("smoothing", 10, "Width of the moving average applied to dashboard traces")
	pf.String("allan-target", "frequency", "Channel for the Allan deviation: frequency or temperature")
	pf.String("mode", "freq-temp", "Initial display mode: freq-temp, electrical, status or allan")
	pf.String("source", "simulator", "Sample source: simulator or http")
	pf.String("poll-url", "", "Base URL of the module web service; samples are read from <url>/status")
	pf.Duration("poll-interval", 0, "Time between samples (e.g., 500ms).  Accepts values in ms, s, m.")
	pf.Int("poll-retries", 3, "Retries for a failed status poll before the sample is skipped")
	pf.Int64("seed", 0, "Seed for the simulator noise")
	pf.Float64("drift", 0.0001, "Per-tick growth of the simulated frequency drift")
	pf.StringP("listen", "l", ":9624", "Address to serve Prometheus metrics on; empty disables the server")
	pf.String("metrics-path", "/metrics", "Path under which to expose metrics")
	pf.String("log-level", "info", "Log level: debug, info, warn or error")
	pf.BoolP("tui", "t", false, "Show the terminal dashboard")
	pf.String("export", "", "Write the retained history as logfmt to this file on exit")
	pf.Bool("no-error-reports", false, "Do not send reports when there are unexpected errors in the monitor")
	pf.Bool("no-alerts", false, "Disable threshold and status alerts")
	pf.Float64("alert-frequency-error", 1e-8, "Alert when |frequency error| exceeds this value; 0 disables")
	pf.Float64("alert-temperature", 50, "Alert when |temperature| exceeds this value; 0 disables")
	pf.Float64("alert-voltage", 15, "Alert when |voltage| exceeds this value; 0 disables")
	pf.Float64("alert-current", 2, "Alert when |current| exceeds this value; 0 disables")
	pf.String("status-alerts", "ERROR,NOT_LOCKED", "Comma separated status conditions to alert on (NOT_LOCKED, HOLDOVER or a status word), or none")

	return pf
}

func parseFlag(o *options) func(*pflag.Flag, string) error {
	return func(flag *pflag.Flag, value string) error {
		switch flag.Name {
		case "config":
			opts, err := parseFromFile(value)
			if err != nil {
				o.err = err
				return err
			}
			o.options = append(o.options, opts...)
		default:
			option, err := handleOption(flag.Name, value)
			if err != nil {
				o.err = err
				return err
			}
			if option != nil {
				o.options = append(o.options, option)
			}
		}
		return nil
	}
}

func handleOption(name string, value string) (ConfigOption, error) {
	switch name {
	case "capacity":
		return Capacity(value), nil
	case "allan-every":
		return AllanEvery(value), nil
	case "smoothing":
		return SmoothingWindow(value), nil
	case "allan-target":
		return AllanTarget(value), nil
	case "mode":
		return DisplayMode(value), nil
	case "source":
		return Source(value), nil
	case "poll-url":
		return PollURL(value), nil
	case "poll-interval":
		return PollInterval(value), nil
	case "poll-retries":
		return PollRetries(value), nil
	case "seed":
		return Seed(value), nil
	case "drift":
		return Drift(value), nil
	case "listen":
		return Listen(value), nil
	case "metrics-path":
		return MetricsPath(value), nil
	case "log-level":
		return LogLevel(value), nil
	case "tui":
		return switchOption(name, value, TUI())
	case "export":
		return ExportPath(value), nil
	case "no-error-reports":
		return switchOption(name, value, NoErrorReports())
	case "no-alerts":
		return switchOption(name, value, NoAlerts())
	case "alert-frequency-error":
		return AlertThreshold(store.FrequencyError, value), nil
	case "alert-temperature":
		return AlertThreshold(store.Temperature, value), nil
	case "alert-voltage":
		return AlertThreshold(store.Voltage, value), nil
	case "alert-current":
		return AlertThreshold(store.Current, value), nil
	case "status-alerts":
		return StatusAlerts(value), nil
	default:
		return nil, fmt.Errorf("Unknown option: %s", name)
	}
}

// switchOption applies on only when the flag value is true.  A false value returns no option
// so the default stays in place.
func switchOption(name string, value string, on ConfigOption) (ConfigOption, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return nil, fmt.Errorf("could not convert %s to boolean: %s", name, value)
	}
	if !b {
		return nil, nil
	}
	return on, nil
}

func parseFromFile(fpath string) ([]ConfigOption, error) {
	var options []ConfigOption
	data, err := ioutil.ReadFile(fpath)
	if err != nil {
		return options, err
	}

	cfg := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return options, err
	}
	for k, v := range cfg {
		var value string
		switch val := v.(type) {
		case string:
			value = val
		case int:
			value = strconv.Itoa(val)
		case float64:
			value = strconv.FormatFloat(val, 'g', -1, 64)
		case bool:
			value = strconv.FormatBool(val)
		case []interface{}:
			// status-alerts may be written as a list
			parts := make([]string, 0, len(val))
			for _, p := range val {
				str, ok := p.(string)
				if !ok {
					return options, fmt.Errorf("Could not process config key %s, list values must be strings", k)
				}
				parts = append(parts, str)
			}
			value = strings.Join(parts, ",")
		default:
			return options, fmt.Errorf("Could not process config key %s, unknown type", k)
		}
		opt, err := handleOption(k, value)
		if err != nil {
			return options, err
		}
		if opt != nil {
			options = append(options, opt)
		}
	}
	return options, nil
}
