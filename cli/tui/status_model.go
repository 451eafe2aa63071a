// Package tui holds PenchY's bubbletea models, grounded on the teacher's
// cli/tui/models and cli/tui/components for the Model/Update/View split
// and its bubbles/table usage.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-resty/resty/v2"

	"penchy/cli/tui/styles"
)

// nodeStatus mirrors engine/server.NodeStatus without importing
// engine/server directly, keeping the TUI a plain HTTP client of the
// control node's /status route rather than an in-process dependency.
type nodeStatus struct {
	Host      string `json:"host"`
	Received  bool   `json:"received_all_results"`
	TimedOut  bool   `json:"timed_out"`
	ResultsIn int    `json:"results_in"`
}

type statusResponse struct {
	Nodes []nodeStatus `json:"nodes"`
}

type tickMsg time.Time

type statusMsg struct {
	nodes []nodeStatus
	err   error
}

// StatusModel polls a control node's /status route and renders a live
// per-node table, the way the teacher's WorkflowTableComponent polls the
// compozy API (cli/tui/components/workflow_table.go).
type StatusModel struct {
	client   *resty.Client
	addr     string
	interval time.Duration
	table    table.Model
	err      error
	quitting bool
}

// NewStatusModel builds a StatusModel polling serverAddr every interval.
func NewStatusModel(serverAddr string, interval time.Duration) StatusModel {
	columns := []table.Column{
		{Title: "Node", Width: 24},
		{Title: "Results In", Width: 12},
		{Title: "Status", Width: 16},
	}
	t := table.New(table.WithColumns(columns), table.WithFocused(false), table.WithHeight(12))
	s := table.DefaultStyles()
	s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(styles.Border).BorderBottom(true).Bold(true).Foreground(styles.Primary)
	t.SetStyles(s)

	return StatusModel{
		client:   resty.New().SetTimeout(5 * time.Second),
		addr:     serverAddr,
		interval: interval,
		table:    t,
	}
}

func (m StatusModel) Init() tea.Cmd {
	return tea.Batch(m.poll(), tick(m.interval))
}

func (m StatusModel) poll() tea.Cmd {
	return func() tea.Msg {
		var body statusResponse
		resp, err := m.client.R().SetResult(&body).Get(fmt.Sprintf("http://%s/status", m.addr))
		if err != nil {
			return statusMsg{err: err}
		}
		if resp.IsError() {
			return statusMsg{err: fmt.Errorf("control node returned %s", resp.Status())}
		}
		return statusMsg{nodes: body.Nodes}
	}
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.poll(), tick(m.interval))
	case statusMsg:
		m.err = msg.err
		if msg.err == nil {
			m.table.SetRows(rowsFor(msg.nodes))
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func rowsFor(nodes []nodeStatus) []table.Row {
	rows := make([]table.Row, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, table.Row{n.Host, fmt.Sprintf("%d", n.ResultsIn), statusLabel(n)})
	}
	return rows
}

func statusLabel(n nodeStatus) string {
	switch {
	case n.TimedOut:
		return styles.TimedOutStyle.Render("timed out")
	case n.Received:
		return styles.ReceivedStyle.Render("done")
	default:
		return styles.PendingStyle.Render("running")
	}
}

func (m StatusModel) View() string {
	if m.quitting {
		return ""
	}
	title := styles.RenderTitle(fmt.Sprintf("penchy status — %s", m.addr))
	if m.err != nil {
		return title + "\n" + styles.TimedOutStyle.Render("error: "+m.err.Error()) + "\n"
	}
	help := styles.HelpStyle.Render("q to quit")
	return title + "\n" + m.table.View() + "\n" + help + "\n"
}
