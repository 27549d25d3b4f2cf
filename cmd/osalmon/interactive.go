package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/osal"
	"github.com/wippyai/osal/idmap"
)

const refreshInterval = 250 * time.Millisecond

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	tableStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#444444"))
)

type monitorState int

const (
	stateBrowse monitorState = iota
	stateNewTimer
)

type monitorModel struct {
	os     *osal.OS
	demo   *demo
	table  table.Model
	input  textinput.Model
	status string
	err    error
	ids    []idmap.ID
	added  int
	state  monitorState
}

type refreshMsg time.Time

func newMonitorModel(o *osal.OS, d *demo) *monitorModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 12},
			{Title: "Type", Width: 10},
			{Title: "Name", Width: 16},
			{Title: "Creator", Width: 12},
			{Title: "Refs", Width: 5},
			{Title: "Fires", Width: 8},
		}),
		table.WithFocused(true),
		table.WithHeight(14),
	)

	ti := textinput.New()
	ti.Placeholder = "period in ms"
	ti.Prompt = "new timer: "
	ti.Width = 20

	m := &monitorModel{os: o, demo: d, table: t, input: ti}
	m.refresh()
	return m
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m *monitorModel) Init() tea.Cmd {
	return tick()
}

func (m *monitorModel) refresh() {
	snap := m.os.Registry().Snapshot()
	rows := make([]table.Row, 0, len(snap))
	m.ids = m.ids[:0]
	for _, s := range snap {
		fires := ""
		if s.Type == idmap.TypeTimeCB {
			fires = strconv.FormatUint(m.demo.Fires(s.ID), 10)
		}
		creator := "-"
		if s.Creator.Defined() {
			creator = s.Creator.String()
		}
		rows = append(rows, table.Row{
			s.ID.String(),
			s.Type.String(),
			s.Name,
			creator,
			strconv.FormatUint(uint64(s.Refcount), 10),
			fires,
		})
		m.ids = append(m.ids, s.ID)
	}
	m.table.SetRows(rows)
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		m.refresh()
		return m, tick()

	case tea.KeyMsg:
		if m.state == stateNewTimer {
			switch msg.String() {
			case "enter":
				m.addTimer(m.input.Value())
				m.input.Reset()
				m.input.Blur()
				m.state = stateBrowse
				return m, nil
			case "esc":
				m.input.Reset()
				m.input.Blur()
				m.state = stateBrowse
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "n":
			m.state = stateNewTimer
			return m, m.input.Focus()
		case "d", "delete":
			m.deleteSelected()
			m.refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *monitorModel) addTimer(value string) {
	ms, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil || ms == 0 {
		m.err = fmt.Errorf("invalid period %q", value)
		return
	}

	ctx := context.Background()
	tbs := m.os.TimeBases()
	m.added++
	name := fmt.Sprintf("USER_%d", m.added)
	id, err := tbs.TimerAdd(ctx, name, m.demo.sched, func(ctx context.Context, id idmap.ID, _ any) {
		m.demo.count(id)
	}, nil)
	if err != nil {
		m.err = err
		return
	}
	us := uint32(ms) * 1000
	if err := tbs.TimerSet(ctx, id, us, us); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.status = fmt.Sprintf("added %s (%s) every %dms", name, id, ms)
}

func (m *monitorModel) deleteSelected() {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.ids) {
		return
	}
	id := m.ids[i]
	ctx := context.Background()

	var err error
	switch id.Type() {
	case idmap.TypeTimeCB:
		err = m.os.TimeBases().TimerDelete(ctx, id)
	case idmap.TypeTimeBase:
		err = m.os.TimeBases().TimeBaseDelete(ctx, id)
	case idmap.TypeTask:
		err = m.os.Tasks().Delete(ctx, id)
	case idmap.TypeModule:
		err = m.os.Modules().Unload(ctx, id)
	default:
		err = fmt.Errorf("%s objects are not deleted from the monitor", id.Type())
	}
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.status = fmt.Sprintf("deleted %s", id)
}

func (m *monitorModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("OSAL Monitor"))
	drained, dropped := m.demo.Counters()
	b.WriteString(" ")
	b.WriteString(statStyle.Render(fmt.Sprintf("%d objects • telemetry %d drained, %d dropped",
		len(m.ids), drained, dropped)))
	b.WriteString("\n\n")

	b.WriteString(tableStyle.Render(m.table.View()))
	b.WriteString("\n\n")

	switch {
	case m.state == stateNewTimer:
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter add • esc cancel"))
		return b.String()
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.status != "":
		b.WriteString(resultStyle.Render(m.status))
	}
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("↑/↓ select • n new timer • d delete • q quit"))
	return b.String()
}

func runInteractive(o *osal.OS, d *demo) error {
	p := tea.NewProgram(newMonitorModel(o, d), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
