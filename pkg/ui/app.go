// Package ui is a terminal dashboard over a running monitor.
package ui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BTBurke/oscmon"
	"github.com/BTBurke/oscmon/pkg/fsm"
	"github.com/BTBurke/oscmon/pkg/stat"
	"github.com/BTBurke/oscmon/pkg/store"
	"github.com/BTBurke/oscmon/pkg/ui/styles"
	"github.com/BTBurke/oscmon/pkg/ui/widgets"
	"github.com/BTBurke/oscmon/pkg/view"
)

// DefaultRefresh is how often the dashboard redraws.
const DefaultRefresh = time.Second

// Monitor is the part of oscmon.Monitor the dashboard reads and steers.
type Monitor interface {
	Projection() (view.Projection, error)
	Smoothed(ch store.Channel) ([]float64, error)
	AllanCurve(t view.Target) []stat.AllanPoint
	CurrentStatistics() map[store.Channel]stat.Summary
	Status() oscmon.Status
	DisplayMode() view.Mode
	SetDisplayMode(mode view.Mode)
	AllanTarget() view.Target
	SetAllanTarget(t view.Target)
}

type tickMsg struct{}

type Model struct {
	mon     Monitor
	table   table.Model
	refresh time.Duration

	width int
}

func New(mon Monitor) Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Channel", Width: 16},
			{Title: "Current", Width: 12},
			{Title: "Mean", Width: 12},
			{Title: "StdDev", Width: 12},
			{Title: "Min", Width: 12},
			{Title: "Max", Width: 12},
			{Title: "Drift", Width: 12},
		}),
		table.WithHeight(len(statRows)+1),
	)
	m := Model{
		mon:     mon,
		table:   t,
		refresh: DefaultRefresh,
		width:   80,
	}
	m.rebuild()
	return m
}

// Run blocks until the user quits or ctx ends.
func Run(ctx context.Context, mon Monitor) error {
	_, err := tea.NewProgram(New(mon), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		m.rebuild()
		return m, m.tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "m":
			m.mon.SetDisplayMode(m.mon.DisplayMode().Next())
		case "a":
			m.mon.SetAllanTarget(m.mon.AllanTarget().Toggle())
		}
		m.rebuild()
		return m, nil
	}
	return m, nil
}

var statRows = []store.Channel{store.FrequencyError, store.Temperature, store.Voltage, store.Current}

func (m *Model) rebuild() {
	stats := m.mon.CurrentStatistics()
	rows := make([]table.Row, 0, len(statRows))
	for _, ch := range statRows {
		s, ok := stats[ch]
		if !ok || s.Count == 0 {
			rows = append(rows, table.Row{ch.String(), "-", "-", "-", "-", "-", "-"})
			continue
		}
		rows = append(rows, table.Row{ch.String(), num(s.Current), num(s.Mean), num(s.StdDev), num(s.Min), num(s.Max), num(s.Drift)})
	}
	m.table.SetRows(rows)
}

func (m Model) View() string {
	st := m.mon.Status()

	var b strings.Builder
	b.WriteString(m.header(st))
	b.WriteString("\n")
	b.WriteString(styles.Box.Render(m.chart(st)))
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	b.WriteString(styles.Footer.Render("tab: mode  a: allan target  q: quit"))
	return b.String()
}

func (m Model) header(st oscmon.Status) string {
	tabs := make([]string, 0, len(view.Modes))
	for _, mode := range view.Modes {
		if mode == st.Mode {
			tabs = append(tabs, styles.TabActive.Render("["+mode.String()+"]"))
		} else {
			tabs = append(tabs, styles.Tab.Render(" "+mode.String()+" "))
		}
	}

	state := styles.Faint.Render(string(st.State))
	if st.State == fsm.Monitoring {
		state = styles.Good.Render(string(st.State))
	}
	lock := styles.Danger.Render("unlocked")
	switch {
	case st.Len == 0:
		lock = styles.Faint.Render("no data")
	case st.Holdover:
		lock = styles.Warn.Render("holdover")
	case st.Locked:
		lock = styles.Good.Render("locked")
	}

	fill := 0.0
	if st.Capacity > 0 {
		fill = float64(st.Len) / float64(st.Capacity)
	}
	info := fmt.Sprintf("%s  %s  window %s %d/%d  allan %s  ingested %d",
		state, lock, styles.Faint.Render("["+widgets.Bar(fill, 10)+"]"), st.Len, st.Capacity, st.AllanTarget, st.Ingested)
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("oscmon")+" "+strings.Join(tabs, ""),
		styles.Header.Render(info),
		alerts(st.Alerts),
	)
}

// alerts lists firing rules in a stable order.
func alerts(active map[string]bool) string {
	var firing []string
	for key, on := range active {
		if on {
			firing = append(firing, key)
		}
	}
	if len(firing) == 0 {
		return styles.Faint.Render("no alerts")
	}
	sort.Strings(firing)
	return styles.Danger.Render("ALERT " + strings.Join(firing, "  "))
}

func (m Model) chartWidth() int {
	w := m.width - 30
	if w < 10 {
		w = 10
	}
	return w
}

func (m Model) chart(st oscmon.Status) string {
	p, err := m.mon.Projection()
	if errors.Is(err, view.ErrAllanMode) {
		return m.allanChart(st.AllanTarget)
	}
	if err != nil {
		return styles.Danger.Render(err.Error())
	}
	if len(p.SeriesA) == 0 {
		return styles.Faint.Render("waiting for samples")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.line(p.Mode, p.LabelA, p.SeriesA),
		m.line(p.Mode, p.LabelB, p.SeriesB),
	)
}

func (m Model) line(mode view.Mode, label string, series []float64) string {
	width := m.chartWidth()
	var spark string
	switch mode {
	case view.Status:
		spark = widgets.Spark8(series, width)
	default:
		smoothed, err := m.mon.Smoothed(store.Channel(label))
		if err != nil {
			smoothed = series
		}
		spark = widgets.Trend(smoothed, width)
	}
	last := ""
	if len(series) > 0 {
		last = num(series[len(series)-1])
	}
	return styles.Label.Render(label) + fmt.Sprintf("%-12s ", last) + spark
}

func (m Model) allanChart(t view.Target) string {
	curve := m.mon.AllanCurve(t)
	if len(curve) == 0 {
		return styles.Faint.Render("not enough samples for an allan curve")
	}

	logs := make([]float64, len(curve))
	for i, p := range curve {
		logs[i] = math.Log10(p.Deviation)
	}
	first, last := curve[0], curve[len(curve)-1]
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Label.Render("allan "+t.String())+widgets.Trend(logs, m.chartWidth()),
		styles.Faint.Render(fmt.Sprintf("tau %d: %s   tau %d: %s", first.Tau, num(first.Deviation), last.Tau, num(last.Deviation))),
	)
}

func num(f float64) string {
	if math.IsNaN(f) {
		return "-"
	}
	return fmt.Sprintf("%.6g", f)
}
