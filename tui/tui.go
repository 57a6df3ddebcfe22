// Package tui implements the live "top" view: a small Bubbletea program
// that polls a syswatch status endpoint and renders the current gauges
// plus sample history sparklines. It is a read-only client; the daemon
// itself stays headless.
package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/syswatch/client"
	"gitlab.com/tinyland/lab/syswatch/server"
	"gitlab.com/tinyland/lab/syswatch/widgets"
)

// pollInterval is how often the view refreshes from the daemon.
const pollInterval = 2 * time.Second

var (
	styleTitle  = lipgloss.NewStyle().Bold(true)
	styleFooter = lipgloss.NewStyle().Faint(true)
	styleError  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// tickMsg schedules the next poll.
type tickMsg time.Time

// statusMsg carries one fetch result.
type statusMsg struct {
	status *server.Status
	err    error
}

// Model is the Bubbletea model for the live view.
type Model struct {
	addr    string
	status  *server.Status
	err     error
	fetched time.Time
	width   int
}

// New returns a Model polling the daemon at addr (host:port).
func New(addr string) Model {
	return Model{addr: addr, width: 80}
}

// Init implements tea.Model: fetch immediately on start.
func (m Model) Init() tea.Cmd {
	return fetchCmd(m.addr)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case statusMsg:
		m.err = msg.err
		if msg.status != nil {
			m.status = msg.status
			m.fetched = time.Now()
		}
		return m, tickCmd()

	case tickMsg:
		return m, fetchCmd(m.addr)
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b []string
	b = append(b, styleTitle.Render("syswatch — "+m.addr))
	b = append(b, "")

	switch {
	case m.err != nil:
		b = append(b, styleError.Render(fmt.Sprintf("unreachable: %v", m.err)))
	case m.status == nil:
		b = append(b, "connecting...")
	default:
		cur := m.status.Current
		b = append(b, widgets.Gauge("cpu", cur.CPU, 30))
		b = append(b, widgets.Gauge("mem", cur.Memory, 30))
		b = append(b, widgets.Gauge("disk", cur.Disk, 30))
		b = append(b, "")

		sparkWidth := m.width - 8
		if sparkWidth > len(m.status.Samples) {
			sparkWidth = len(m.status.Samples)
		}
		if sparkWidth > 0 {
			cpus, mems, disks := series(m.status.Samples)
			b = append(b, "cpu  "+widgets.Sparkline(cpus, sparkWidth))
			b = append(b, "mem  "+widgets.Sparkline(mems, sparkWidth))
			b = append(b, "disk "+widgets.Sparkline(disks, sparkWidth))
		}
		b = append(b, "")
		b = append(b, styleFooter.Render(fmt.Sprintf("%d samples · updated %s · q to quit",
			len(m.status.Samples), m.fetched.Format("15:04:05"))))
	}

	return lipgloss.JoinVertical(lipgloss.Left, b...)
}

// series splits the sample history into per-metric value slices,
// oldest first.
func series(samples []server.StatusSample) (cpus, mems, disks []float64) {
	cpus = make([]float64, len(samples))
	mems = make([]float64, len(samples))
	disks = make([]float64, len(samples))
	for i, s := range samples {
		cpus[i] = s.CPU
		mems[i] = s.Memory
		disks[i] = s.Disk
	}
	return cpus, mems, disks
}

func fetchCmd(addr string) tea.Cmd {
	return func() tea.Msg {
		st, err := client.Fetch(addr, client.DefaultTimeout)
		return statusMsg{status: st, err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Run starts the live view in the alternate screen and blocks until quit.
func Run(addr string) error {
	p := tea.NewProgram(New(addr), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
