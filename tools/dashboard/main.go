// Command dashboard is a terminal dashboard for a running loadwatch
// server. It polls the HTTP API and renders live charts of voltage,
// current and power alongside the alert feed.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"loadwatch/internal/alerting"
	"loadwatch/internal/monitor"
)

const chartPoints = 120

var (
	colorRed    = lipgloss.Color("#FF5555")
	colorYellow = lipgloss.Color("#F1FA8C")
	colorGreen  = lipgloss.Color("#50FA7B")
	colorCyan   = lipgloss.Color("#8BE9FD")
	colorGray   = lipgloss.Color("#6272A4")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	okStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle  = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	critStyle  = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(colorGray)
	helpStyle  = lipgloss.NewStyle().Foreground(colorGray)
)

type tickMsg time.Time

type statusMsg struct {
	snap monitor.Snapshot
	err  error
}

type alertsMsg struct {
	events []alerting.Event
	err    error
}

type controlMsg struct {
	err error
}

type client struct {
	base string
	http *http.Client
}

func (c *client) status() tea.Cmd {
	return func() tea.Msg {
		var snap monitor.Snapshot
		if err := c.getJSON("/api/v1/status", &snap); err != nil {
			return statusMsg{err: err}
		}
		return statusMsg{snap: snap}
	}
}

func (c *client) alerts() tea.Cmd {
	return func() tea.Msg {
		var events []alerting.Event
		if err := c.getJSON("/api/v1/alerts", &events); err != nil {
			return alertsMsg{err: err}
		}
		return alertsMsg{events: events}
	}
}

func (c *client) control(action string) tea.Cmd {
	return func() tea.Msg {
		body, _ := json.Marshal(map[string]string{"action": action})
		resp, err := c.http.Post(c.base+"/api/v1/control", "application/json", bytes.NewReader(body))
		if err != nil {
			return controlMsg{err: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return controlMsg{err: fmt.Errorf("control %s: status %d", action, resp.StatusCode)}
		}
		return controlMsg{}
	}
}

func (c *client) getJSON(path string, out any) error {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// series is a bounded append-only window of chart values.
type series struct {
	values []float64
}

func (s *series) push(v float64) {
	s.values = append(s.values, v)
	if len(s.values) > chartPoints {
		s.values = s.values[len(s.values)-chartPoints:]
	}
}

type model struct {
	client   *client
	interval time.Duration
	width    int
	height   int

	snap    monitor.Snapshot
	haveHit bool
	lastErr error

	voltage series
	current series
	power   series

	events    []alerting.Event
	statusMsg string
	statusAt  time.Time
}

func newModel(base string, interval time.Duration) model {
	return model{
		client:   &client{base: base, http: &http.Client{Timeout: 5 * time.Second}},
		interval: interval,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tick(m.interval), m.client.status(), m.client.alerts())
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			action := "start"
			if m.snap.Running {
				action = "stop"
			}
			return m, m.client.control(action)
		case "c":
			return m, m.client.control("clear")
		case "e":
			return m, m.client.control("emergency_shutdown")
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tea.Batch(tick(m.interval), m.client.status(), m.client.alerts())
	case statusMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		m.lastErr = nil
		m.haveHit = true
		m.snap = msg.snap
		if msg.snap.Running {
			m.voltage.push(msg.snap.Reading.VoltageVolts)
			m.current.push(msg.snap.Reading.CurrentAmps)
			m.power.push(msg.snap.Reading.PowerWatts)
		}
	case alertsMsg:
		if msg.err == nil {
			m.events = msg.events
		}
	case controlMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.statusMsg = "OK"
		}
		m.statusAt = time.Now()
		return m, m.client.status()
	}
	return m, nil
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if !m.haveHit {
		if m.lastErr != nil {
			return fmt.Sprintf("Waiting for server... (%v)", m.lastErr)
		}
		return "Waiting for server..."
	}

	var sb strings.Builder
	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")

	chartW := m.width
	chartH := 4
	if m.height >= 30 {
		chartH = 6
	}
	sb.WriteString(sparkChart(m.voltage.values, "Voltage (V)", chartW, chartH, voltageColor(m.snap.Thresholds.VoltageLow, m.snap.Thresholds.VoltageHigh)))
	sb.WriteString("\n")
	sb.WriteString(sparkChart(m.current.values, "Current (A)", chartW, chartH, thresholdColor(m.snap.Thresholds.CurrentHigh)))
	sb.WriteString("\n")
	sb.WriteString(sparkChart(m.power.values, "Power (W)", chartW, chartH, thresholdColor(m.snap.Thresholds.PowerHigh)))
	sb.WriteString("\n")
	sb.WriteString(m.renderLoads())
	sb.WriteString("\n")
	sb.WriteString(m.renderAlerts())
	sb.WriteString("\n")
	sb.WriteString(m.renderFooter())
	return sb.String()
}

func (m model) renderHeader() string {
	state := critStyle.Render("STOPPED")
	if m.snap.Running {
		state = okStyle.Render("RUNNING")
	}
	budget := m.snap.Thresholds.EnergyBudgetKWh
	usedPct := 0.0
	if budget > 0 {
		usedPct = m.snap.CumulativeKWh / budget * 100
	}
	line := fmt.Sprintf("%s  %s  %.1fV  %.1fA  %.0fW  %.3f kWh (%.0f%% of budget)  cost %.2f  %s @%.2f/kWh",
		titleStyle.Render("loadwatch"), state,
		m.snap.Reading.VoltageVolts, m.snap.Reading.CurrentAmps, m.snap.Reading.PowerWatts,
		m.snap.CumulativeKWh, usedPct, m.snap.Cost, m.snap.TariffBand, m.snap.RatePerKWh)
	if m.statusMsg != "" && time.Since(m.statusAt) < 5*time.Second {
		line += "  " + warnStyle.Render(m.statusMsg)
	}
	if m.lastErr != nil {
		line += "  " + critStyle.Render(fmt.Sprintf("[poll error: %v]", m.lastErr))
	}
	return line
}

func (m model) renderLoads() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Loads"))
	sb.WriteString("\n")
	for _, p := range m.snap.Profiles {
		marker := dimStyle.Render("  off")
		if p.Active {
			marker = okStyle.Render("  on ")
		}
		sb.WriteString(fmt.Sprintf("%s  %-12s %6.1fA  pf %.2f\n", marker, p.Name, p.RatedCurrentAmps, p.PowerFactor))
	}
	return sb.String()
}

func (m model) renderAlerts() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Alerts"))
	sb.WriteString("\n")
	if len(m.events) == 0 {
		sb.WriteString(dimStyle.Render("  none"))
		sb.WriteString("\n")
		return sb.String()
	}
	shown := m.events
	maxShown := 8
	if len(shown) > maxShown {
		shown = shown[len(shown)-maxShown:]
	}
	for i := len(shown) - 1; i >= 0; i-- {
		evt := shown[i]
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n",
			dimStyle.Render(evt.Timestamp.Format("15:04:05")),
			severityStyle(evt.Severity).Render(string(evt.Severity)),
			evt.Message))
	}
	return sb.String()
}

func (m model) renderFooter() string {
	toggle := "s:start"
	if m.snap.Running {
		toggle = "s:stop"
	}
	return helpStyle.Render(fmt.Sprintf("%s  c:clear  e:emergency shutdown  q:quit  (poll every %s)", toggle, m.interval))
}

func severityStyle(sev alerting.Severity) lipgloss.Style {
	switch sev {
	case alerting.SeverityError:
		return critStyle
	case alerting.SeverityWarning:
		return warnStyle
	default:
		return okStyle
	}
}

func voltageColor(low, high float64) func(float64) lipgloss.Style {
	return func(v float64) lipgloss.Style {
		if v > high || v < low {
			return critStyle
		}
		return okStyle
	}
}

func thresholdColor(high float64) func(float64) lipgloss.Style {
	return func(v float64) lipgloss.Style {
		switch {
		case v > high:
			return critStyle
		case v > high*0.8:
			return warnStyle
		default:
			return okStyle
		}
	}
}

// sparkChart renders a sub-cell resolution area chart with Y-axis labels.
func sparkChart(data []float64, label string, width, height int, colorFn func(float64) lipgloss.Style) string {
	if height < 2 {
		height = 2
	}
	axisW := 7
	chartW := width - axisW - 1
	if chartW < 10 {
		chartW = 10
	}
	resampled := resample(data, chartW)

	minVal, maxVal := bounds(resampled)
	if maxVal <= minVal {
		maxVal = minVal + 1
	}
	rangeVal := maxVal - minVal

	subBlocks := []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	var sb strings.Builder
	last := 0.0
	if len(resampled) > 0 {
		last = resampled[len(resampled)-1]
	}
	sb.WriteString(titleStyle.Render(label))
	sb.WriteString(dimStyle.Render(fmt.Sprintf("  now: %.1f", last)))
	sb.WriteString("\n")

	for row := height - 1; row >= 0; row-- {
		yVal := minVal + (float64(row+1)/float64(height))*rangeVal
		sb.WriteString(dimStyle.Render(fmt.Sprintf("%6.0f", yVal)))
		sb.WriteString(dimStyle.Render("│"))
		for _, val := range resampled {
			normalized := (val - minVal) / rangeVal * float64(height)
			cellBottom := float64(row)
			cellTop := float64(row + 1)
			var ch rune
			switch {
			case normalized >= cellTop:
				ch = '█'
			case normalized <= cellBottom:
				ch = ' '
			default:
				idx := int((normalized - cellBottom) * 8)
				if idx >= len(subBlocks) {
					idx = len(subBlocks) - 1
				}
				if idx < 0 {
					idx = 0
				}
				ch = subBlocks[idx]
			}
			if ch == ' ' {
				sb.WriteRune(' ')
			} else {
				sb.WriteString(colorFn(val).Render(string(ch)))
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString(dimStyle.Render(strings.Repeat(" ", axisW-1) + "└" + strings.Repeat("─", len(resampled))))
	return sb.String()
}

func bounds(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	// pad so a flat series is not a full-height bar
	pad := (maxVal - minVal) * 0.1
	if pad == 0 {
		pad = 1
	}
	return minVal - pad, maxVal + pad
}

func resample(data []float64, targetWidth int) []float64 {
	if len(data) <= targetWidth {
		return data
	}
	result := make([]float64, targetWidth)
	for i := 0; i < targetWidth; i++ {
		srcStart := i * len(data) / targetWidth
		srcEnd := (i + 1) * len(data) / targetWidth
		if srcEnd > len(data) {
			srcEnd = len(data)
		}
		if srcStart >= srcEnd {
			srcStart = srcEnd - 1
		}
		sum := 0.0
		for j := srcStart; j < srcEnd; j++ {
			sum += data[j]
		}
		result[i] = sum / float64(srcEnd-srcStart)
	}
	return result
}

func main() {
	base := flag.String("addr", "http://localhost:8080", "loadwatch server base URL")
	interval := flag.Duration("interval", time.Second, "poll interval")
	flag.Parse()

	m := newModel(strings.TrimRight(*base, "/"), *interval)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "dashboard error: %v\n", err)
		os.Exit(1)
	}
}
