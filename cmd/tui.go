// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Opencockpit contributors

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opencockpit/xplink/pkg/xplink"
)

// Dashboard row for one registered dataref
type dashRow struct {
	name    string
	handle  xplink.Handle
	display string
	updated time.Time
	count   uint64
}

// Event log entry
type dashLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// Messages sent from the engine goroutine
type connStateMsg struct {
	state xplink.ConnState
}
type registeredMsg struct {
	name   string
	handle xplink.Handle
}
type valueMsg struct {
	value xplink.InboundValue
}
type statsMsg struct {
	stats xplink.Statistics
}
type dashTickMsg time.Time

// Dashboard model
type dashModel struct {
	connInfo      string
	state         xplink.ConnState
	spin          spinner.Model
	rows          []dashRow
	byHandle      map[xplink.Handle]int
	stats         xplink.Statistics
	eventLog      []dashLogEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
}

func initialDashModel(connInfo string, datarefs []string) dashModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	rows := make([]dashRow, 0, len(datarefs))
	for _, name := range datarefs {
		rows = append(rows, dashRow{
			name:    name,
			handle:  xplink.HandleInvalid,
			display: "-",
		})
	}

	return dashModel{
		connInfo:      connInfo,
		state:         xplink.Disconnected,
		spin:          sp,
		rows:          rows,
		byHandle:      make(map[xplink.Handle]int),
		eventLog:      make([]dashLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m dashModel) Init() tea.Cmd {
	return tea.Batch(
		m.spin.Tick,
		dashTickCmd(),
		tea.EnterAltScreen,
	)
}

func dashTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}

func (m dashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case dashTickMsg:
		return m, dashTickCmd()

	case connStateMsg:
		m.state = msg.state
		m.addLogEntry(fmt.Sprintf("Connection: %s", msg.state), msg.state == xplink.Disconnected)
		if msg.state == xplink.Disconnected {
			// Handles are stale once the host goes away
			m.byHandle = make(map[xplink.Handle]int)
			for i := range m.rows {
				m.rows[i].handle = xplink.HandleInvalid
			}
		}

	case registeredMsg:
		for i := range m.rows {
			if m.rows[i].name != msg.name {
				continue
			}
			m.rows[i].handle = msg.handle
			if msg.handle == xplink.HandleInvalid {
				m.rows[i].display = "NOT FOUND"
				m.addLogEntry(fmt.Sprintf("%s not found", msg.name), true)
			} else {
				m.byHandle[msg.handle] = i
				m.addLogEntry(fmt.Sprintf("%s registered as handle %d", msg.name, msg.handle), false)
			}
			break
		}

	case valueMsg:
		idx, ok := m.byHandle[msg.value.Handle]
		if !ok {
			break
		}
		m.rows[idx].display = formatInbound(&msg.value)
		m.rows[idx].updated = time.Now()
		m.rows[idx].count++

	case statsMsg:
		m.stats = msg.stats
	}

	return m, nil
}

func (m *dashModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, dashLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// formatInbound renders an inbound value for the dashboard table.
func formatInbound(v *xplink.InboundValue) string {
	switch v.Type {
	case xplink.TypeInt:
		if v.Element != xplink.NoElement {
			return fmt.Sprintf("[%d] %d", v.Element, v.Int)
		}
		return fmt.Sprintf("%d", v.Int)
	case xplink.TypeFloat:
		return fmt.Sprintf("%.4f", v.Float)
	case xplink.TypeIntArray:
		return fmt.Sprintf("[%d] %d", v.Element, v.Int)
	case xplink.TypeFloatArray:
		return fmt.Sprintf("[%d] %.4f", v.Element, v.Float)
	default:
		return fmt.Sprintf("%q", v.String)
	}
}

func (m dashModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("XPLINK - DATAREF DASHBOARD"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Connection: %s | Press 'q' to quit", m.connInfo)))
	s.WriteString("\n\n")

	// Link state
	switch m.state {
	case xplink.Connected:
		s.WriteString(valueStyle.Render("✓ Connected"))
	case xplink.AwaitingHostRequest:
		s.WriteString(m.spin.View())
		s.WriteString(warningStyle.Render(" Awaiting host request..."))
	default:
		s.WriteString(m.spin.View())
		s.WriteString(warningStyle.Render(" Waiting for host..."))
	}
	s.WriteString("\n\n")

	// Dataref table
	table := strings.Builder{}
	if len(m.rows) == 0 {
		table.WriteString(headerStyle.Render("(no datarefs requested, use --dataref)"))
	}
	for i, row := range m.rows {
		age := ""
		if !row.updated.IsZero() {
			age = headerStyle.Render(fmt.Sprintf("  %4.1fs ago, %d updates",
				time.Since(row.updated).Seconds(), row.count))
		}
		display := valueStyle.Render(row.display)
		if row.handle == xplink.HandleInvalid {
			display = errorStyle.Render(row.display)
		}
		table.WriteString(fmt.Sprintf("%s %s%s",
			labelStyle.Render(fmt.Sprintf("%-40s", row.name)), display, age))
		if i < len(m.rows)-1 {
			table.WriteString("\n")
		}
	}
	s.WriteString(boxStyle.Render(table.String()))
	s.WriteString("\n\n")

	// Link statistics
	now := time.Now()
	statsContent := fmt.Sprintf("%s %s   %s %s   %s %s   %s %s",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		labelStyle.Render("Updates:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.ValueUpdates)),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f f/s", m.stats.FrameRate(now))),
		labelStyle.Render("Errors:"), func() string {
			errs := m.stats.DiscardedFrames + m.stats.MalformedFrames + m.stats.ReceiveTimeouts
			if errs > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", errs))
			}
			return valueStyle.Render("0")
		}(),
	)
	s.WriteString(boxStyle.Render(statsContent))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - len(m.rows) - 14
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
