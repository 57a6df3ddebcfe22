package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/syswatch/server"
)

func TestUpdateQuitKeys(t *testing.T) {
	for _, key := range []string{"q", "esc", "ctrl+c"} {
		m := New("127.0.0.1:9999")
		var msg tea.KeyMsg
		switch key {
		case "q":
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "ctrl+c":
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		}
		_, cmd := m.Update(msg)
		if cmd == nil {
			t.Errorf("key %q did not produce a quit command", key)
		}
	}
}

func TestUpdateKeepsLastStatusOnFetchError(t *testing.T) {
	m := New("127.0.0.1:9999")

	good := &server.Status{Current: server.Current{CPU: 42}}
	next, _ := m.Update(statusMsg{status: good})
	m = next.(Model)
	if m.status != good {
		t.Fatal("successful fetch not stored")
	}

	next, _ = m.Update(statusMsg{err: errors.New("connection refused")})
	m = next.(Model)
	if m.status != good {
		t.Error("fetch error discarded the last good status")
	}
	if m.err == nil {
		t.Error("fetch error not recorded")
	}
}

func TestViewBeforeFirstFetch(t *testing.T) {
	m := New("127.0.0.1:9999")
	if !strings.Contains(m.View(), "connecting") {
		t.Errorf("initial view should show connecting state:\n%s", m.View())
	}
}

func TestViewShowsGaugesAndFooter(t *testing.T) {
	m := New("127.0.0.1:9999")
	st := &server.Status{
		Current: server.Current{CPU: 10, Memory: 20, Disk: 30},
		Samples: []server.StatusSample{
			{Timestamp: "2026-08-26 10:00:00", CPU: 1, Memory: 2, Disk: 3},
			{Timestamp: "2026-08-26 10:00:05", CPU: 4, Memory: 5, Disk: 6},
		},
	}
	next, _ := m.Update(statusMsg{status: st})
	m = next.(Model)

	view := m.View()
	for _, want := range []string{"cpu", "mem", "disk", "2 samples", "q to quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestSeriesSplitsSamples(t *testing.T) {
	samples := []server.StatusSample{
		{CPU: 1, Memory: 10, Disk: 100},
		{CPU: 2, Memory: 20, Disk: 99},
	}
	cpus, mems, disks := series(samples)

	if len(cpus) != 2 || cpus[0] != 1 || cpus[1] != 2 {
		t.Errorf("cpus = %v", cpus)
	}
	if mems[1] != 20 {
		t.Errorf("mems = %v", mems)
	}
	if disks[0] != 100 {
		t.Errorf("disks = %v", disks)
	}
}
