// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"formant/internal/acquisition"
	"formant/internal/analysis"
	"formant/internal/config"
	"formant/internal/control"
	"formant/internal/dsp"
	"formant/internal/touch"
	"formant/internal/transport"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	recordOnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F56")).Bold(true)
	idleOnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065")).Bold(true)
	lampOffStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
	labelStyle    = lipgloss.NewStyle().Width(9)
	barStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const barWidth = 32

// MonitorDeps are the pipeline parts the monitor reads and drives. Tone,
// Gate and Stats are optional.
type MonitorDeps struct {
	Lamps        *control.Lamps
	Latest       *transport.Latest
	Panel        *touch.Panel
	TouchChannel int
	TouchDelta   uint16
	Tone         *acquisition.ToneSampler
	Gate         *analysis.Gate
	Stats        func() control.Stats
}

// Monitor is the live terminal view of the control loop. It also serves as
// a control.Reporter so the last report can be shown.
type Monitor struct {
	deps MonitorDeps
	last atomic.Pointer[control.Report]
}

var _ control.Reporter = (*Monitor)(nil)

// NewMonitor validates deps and creates a monitor.
func NewMonitor(deps MonitorDeps) (*Monitor, error) {
	if deps.Lamps == nil || deps.Latest == nil || deps.Panel == nil {
		return nil, errors.New("tui: monitor needs lamps, latest spectrum and touch panel")
	}
	if deps.TouchDelta == 0 {
		deps.TouchDelta = uint16(config.DefaultTouchThreshold * 4)
	}
	return &Monitor{deps: deps}, nil
}

// Report keeps the report for display. The sample buffer is not retained.
func (m *Monitor) Report(r control.Report) error {
	r.Samples = nil
	m.last.Store(&r)
	return nil
}

// Run shows the monitor until the user quits or ctx ends.
func (m *Monitor) Run(ctx context.Context) error {
	p := tea.NewProgram(newMonitorModel(m), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type monitorKeys struct {
	Tap    key.Binding
	Hold   key.Binding
	Lower  key.Binding
	Higher key.Binding
	Gate   key.Binding
	Quit   key.Binding
}

func (k monitorKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Tap, k.Hold, k.Lower, k.Higher, k.Gate, k.Quit}
}

func (k monitorKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func newMonitorKeys(m *Monitor) monitorKeys {
	k := monitorKeys{
		Tap:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "tap touch")),
		Hold:   key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "hold/let go")),
		Lower:  key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "tone down")),
		Higher: key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "tone up")),
		Gate:   key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "gate")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
	k.Lower.SetEnabled(m.deps.Tone != nil)
	k.Higher.SetEnabled(m.deps.Tone != nil)
	k.Gate.SetEnabled(m.deps.Gate != nil)
	return k
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(config.FramePeriod, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// monitorModel is the Bubble Tea model behind Monitor.
type monitorModel struct {
	mon  *Monitor
	keys monitorKeys
	help help.Model

	spectrum dsp.Spectrum
	result   control.Result
	have     bool
	bands    []float64
	meter    *analysis.LevelMeter
	holding  bool
	err      error
}

func newMonitorModel(m *Monitor) monitorModel {
	return monitorModel{
		mon:   m,
		keys:  newMonitorKeys(m),
		help:  help.New(),
		bands: make([]float64, len(analysis.DefaultBands)),
		meter: analysis.NewLevelMeter(0.8),
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tick()
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	d := m.mon.deps
	switch msg := msg.(type) {
	case tickMsg:
		if res, ok := d.Latest.LatestInto(&m.spectrum); ok && (!m.have || res.Seq != m.result.Seq) {
			m.result, m.have = res, true
			analysis.BandEnergies(m.bands, &m.spectrum, analysis.DefaultBands)
			m.meter.Update(res.Level)
		}
		return m, tick()

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.holding {
				_ = d.Panel.Release(d.TouchChannel)
			}
			return m, tea.Quit

		case key.Matches(msg, m.keys.Tap):
			// Long enough for the loop to sample the press at least once.
			m.err = d.Panel.Pulse(d.TouchChannel, d.TouchDelta, 3*config.FramePeriod)

		case key.Matches(msg, m.keys.Hold):
			if m.holding {
				m.err = d.Panel.Release(d.TouchChannel)
			} else {
				m.err = d.Panel.Press(d.TouchChannel, d.TouchDelta)
			}
			if m.err == nil {
				m.holding = !m.holding
			}

		case key.Matches(msg, m.keys.Lower):
			d.Tone.SetFrequency(max(config.BinWidthHz, d.Tone.Frequency()-config.BinWidthHz))

		case key.Matches(msg, m.keys.Higher):
			d.Tone.SetFrequency(min(config.SampleRate/2-config.BinWidthHz, d.Tone.Frequency()+config.BinWidthHz))

		case key.Matches(msg, m.keys.Gate):
			if d.Gate.Enabled() {
				d.Gate.Disable()
			} else {
				d.Gate.Enable()
			}
		}
	}
	return m, nil
}

func lamp(on bool, label string, style lipgloss.Style) string {
	if on {
		return style.Render("● " + label)
	}
	return lampOffStyle.Render("○ " + label)
}

func bar(v float64) string {
	n := int(v*barWidth + 0.5)
	n = max(0, min(barWidth, n))
	return barStyle.Render(strings.Repeat("█", n)) + lampOffStyle.Render(strings.Repeat("·", barWidth-n))
}

func (m monitorModel) View() string {
	d := m.mon.deps
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Formant Monitor"))
	sb.WriteString("\n\n")
	sb.WriteString(lamp(d.Lamps.Record(), "REC", recordOnStyle) + "   " + lamp(d.Lamps.Idle(), "IDLE", idleOnStyle))
	sb.WriteString("\n\n")

	if !m.have {
		sb.WriteString(infoStyle.Render("Waiting for the first frame..."))
	} else {
		status := m.result.Formant.String()
		if m.result.Gated {
			status = "gated"
		}
		fmt.Fprintf(&sb, "%s bin %d  %s\n", labelStyle.Render("Peak"), m.result.Bin, highlightStyle.Render(status))
		fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render("Level"), bar(m.meter.Level()))
		for i, b := range analysis.DefaultBands {
			fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render(b.Name), bar(m.bands[i]))
		}
	}
	sb.WriteString("\n")

	if r := m.mon.last.Load(); r != nil {
		fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render("Report"), r.Result.Formant.Message())
	} else {
		fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render("Report"), "none yet, touch to record")
	}

	var extras []string
	if d.Tone != nil {
		extras = append(extras, fmt.Sprintf("tone %.0f Hz", d.Tone.Frequency()))
	}
	if d.Gate != nil {
		state := "off"
		if d.Gate.Enabled() {
			state = fmt.Sprintf("%.3f", d.Gate.Threshold())
		}
		extras = append(extras, "gate "+state)
	}
	if m.holding {
		extras = append(extras, "touch held")
	}
	if d.Stats != nil {
		s := d.Stats()
		extras = append(extras, fmt.Sprintf("frames %d, reports %d, misses %d", s.Iterations, s.Reports, s.DeadlineMisses))
	}
	if len(extras) > 0 {
		sb.WriteString(infoStyle.Render(strings.Join(extras, " | ")))
		sb.WriteString("\n")
	}
	if m.err != nil {
		fmt.Fprintf(&sb, "Error: %v\n", m.err)
	}

	return panelStyle.Render(sb.String()) + "\n" + m.help.View(m.keys)
}
