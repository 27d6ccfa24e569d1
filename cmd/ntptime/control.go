package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/AndrewLester/ntptime/internal/rpc"
	"github.com/AndrewLester/ntptime/internal/sugar"
	"github.com/AndrewLester/ntptime/internal/ui"
	"github.com/AndrewLester/ntptime/pkg/ntptime"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

func handleStatusCommand(socket string) {
	m := statusModel{socket: socket, table: setupTable()}

	if _, err := sugar.RunProgram(m); err != nil {
		fmt.Println(ui.Failure("Error: " + err.Error()))
		os.Exit(1)
	}
}

const fetchStatusPeriod = time.Second * 5

type statusModel struct {
	socket string
	client *rpc.Client

	table            table.Model
	status           ntptime.Status
	fetchedAt        time.Time
	daemonKillStatus string
	err              error
}

type dialSocketMessage *rpc.Client
type fetchStatusMessage ntptime.Status
type statusErrorMessage struct{ err error }
type tickMsg time.Time

func dialSocketCommand(socket string) tea.Cmd {
	return func() tea.Msg {
		client, err := rpc.Dial(socket)
		if err != nil {
			return statusErrorMessage{fmt.Errorf("connecting to %s: %w", daemonName, err)}
		}
		return dialSocketMessage(client)
	}
}

func fetchStatusCommand(client *rpc.Client) tea.Cmd {
	return func() tea.Msg {
		status, err := client.FetchStatus()
		if err != nil {
			return statusErrorMessage{fmt.Errorf("getting status from %s: %w", daemonName, err)}
		}
		return fetchStatusMessage(status)
	}
}

func stopDaemonCommand() tea.Cmd {
	return func() tea.Msg {
		killDaemon()
		return nil
	}
}

func tickCommand(duration time.Duration) tea.Cmd {
	return tea.Tick(duration, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m statusModel) Init() tea.Cmd {
	return dialSocketCommand(m.socket)
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "s":
			m.daemonKillStatus = "Stopping " + daemonName
			return m, tea.Sequence(stopDaemonCommand(), tea.Quit)
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
		return m, nil
	case dialSocketMessage:
		m.client = msg
		return m, tickCommand(0)
	case fetchStatusMessage:
		m.status = ntptime.Status(msg)
		m.fetchedAt = time.Now()
		m.table.SetRows(statusRows(m.status, m.fetchedAt))
		return m, nil
	case statusErrorMessage:
		m.err = msg.err
		return m, tea.Quit
	case tickMsg:
		return m, tea.Batch(tickCommand(fetchStatusPeriod), fetchStatusCommand(m.client))
	default:
		return m, nil
	}
}

func statusRows(status ntptime.Status, now time.Time) []table.Row {
	state := "idle"
	if status.Requesting {
		state = fmt.Sprintf("requesting (%d/%s)", status.Retries, retryLimitString(status.RetryLimit))
	}

	result, lastSync, offset := "-", "never", "-"
	if !status.LastSync.IsZero() {
		result = time.Unix(status.LastResult, 0).UTC().Format(time.RFC3339)
		lastSync = fmt.Sprintf("%s ago", now.Sub(status.LastSync).Truncate(time.Second))
		offset = status.LastOffset.String()
		if status.Stepped {
			offset += " (stepped)"
		}
	}

	return []table.Row{
		{"Server", status.Server},
		{"State", state},
		{"Last result", result},
		{"Last sync", lastSync},
		{"Offset", offset},
		{"Successes", strconv.Itoa(status.Successes)},
		{"Failures", strconv.Itoa(status.Failures)},
	}
}

func retryLimitString(limit uint) string {
	if limit == 0 {
		return "unlimited"
	}
	return strconv.FormatUint(uint64(limit), 10)
}

func (m statusModel) View() (s string) {
	if m.err != nil {
		return
	}

	s += ui.Title("ntptime") + "\n"
	s += ui.TableBase(m.table.View()) + "\n\n"
	if m.daemonKillStatus != "" {
		s += m.daemonKillStatus + "\n"
	} else {
		s += ui.Help("q: exit, s: stop daemon") + "\n"
	}
	return
}

func (m statusModel) GetError() error {
	return m.err
}

func setupTable() table.Model {
	columns := []table.Column{
		{Title: "", Width: 15},
		{Title: "Status", Width: 40},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
		table.WithHeight(8),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ui.TableGray).
		BorderBottom(true).
		Bold(true)
	t.SetStyles(s)

	return t
}
