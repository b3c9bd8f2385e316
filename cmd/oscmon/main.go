package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/log"
	"github.com/prometheus/common/version"
	"github.com/spf13/pflag"

	"github.com/BTBurke/oscmon"
	"github.com/BTBurke/oscmon/pkg/exporter"
	"github.com/BTBurke/oscmon/pkg/ui"
)

const exporterName = "oscmon"

func main() {
	opts, err := oscmon.ParseCommandLine()
	if err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Printf("Could not parse configuration: %s\n\nUse oscmon --help for options\n", err)
		}
		os.Exit(1)
	}

	m, errs := oscmon.New(opts...)
	if len(errs) > 0 {
		fmt.Println("Error in config:")
		for _, e := range errs {
			fmt.Println(e)
		}
		os.Exit(1)
	}
	cfg := m.Config()

	level := cfg.LogLevel
	if cfg.TUI {
		// the dashboard owns the terminal
		level = "fatal"
	}
	if err := log.Base().SetLevel(level); err != nil {
		fmt.Println("Error in config:", err)
		os.Exit(1)
	}
	log.Infoln("Starting", exporterName, version.Info())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Listen != "" {
		serveMetrics(cfg, m)
	}

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, m.Source()) }()

	if cfg.TUI {
		if err := ui.Run(ctx, m); err != nil {
			log.Errorf("dashboard: %s", err)
		}
		stop()
	}

	code := 0
	if err := <-done; err != nil {
		fmt.Println("Source error:", err)
		code = 1
	}

	if cfg.ExportPath != "" {
		if err := export(m, cfg.ExportPath); err != nil {
			fmt.Printf("Could not export history: %s\n", err)
			code = 1
		}
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Shutdown(shutdown); err != nil {
		fmt.Printf("Not all subscribers drained: %s\n", err)
	}
	os.Exit(code)
}

func serveMetrics(cfg oscmon.Config, m *oscmon.Monitor) {
	prometheus.MustRegister(exporter.New(m))
	prometheus.MustRegister(version.NewCollector(exporterName))

	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath, promhttp.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>
             <head><title>Oscillator Monitor</title></head>
             <body>
             <h1>Oscillator Monitor</h1>
             <p><a href='` + cfg.MetricsPath + `'>Metrics</a></p>
             </body>
             </html>`))
	})

	log.Infoln("Listening on", cfg.Listen)
	go func() {
		if err := http.ListenAndServe(cfg.Listen, mux); err != nil {
			log.Errorf("metrics listener: %s", err)
			m.ReportError(err)
		}
	}()
}

func export(m *oscmon.Monitor, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.Export(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
