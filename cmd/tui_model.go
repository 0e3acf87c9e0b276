// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/eocon/pkg/connector"
	"github.com/Thermoquad/eocon/pkg/esp3"
	"github.com/Thermoquad/eocon/pkg/listeners"
)

// Focus states
const (
	focusDeviceList = iota
	focusCommand
)

// logEntry is one line of the event log
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// device is a radio sender seen on air
type device struct {
	id       uint32
	rorg     byte
	dbm      int
	hasDBm   bool
	count    int
	lastSeen time.Time
}

// Implement list.Item interface
func (d device) Title() string { return fmt.Sprintf("%08X  %s", d.id, esp3.FormatRORG(d.rorg)) }
func (d device) Description() string {
	if d.hasDBm {
		return fmt.Sprintf("%d telegrams, %d dBm, %s", d.count, d.dbm, d.lastSeen.Format("15:04:05"))
	}
	return fmt.Sprintf("%d telegrams, %s", d.count, d.lastSeen.Format("15:04:05"))
}
func (d device) FilterValue() string { return fmt.Sprintf("%08X", d.id) }

// tuiModel is the Bubble Tea model for the tui command
type tuiModel struct {
	conn     *connector.Connector
	packets  *listeners.Forwarder
	connInfo string
	started  time.Time

	devices    map[uint32]*device
	deviceList list.Model

	command     textinput.Model
	lastCommand string
	focused     int

	log           []logEntry
	maxLogEntries int

	status         connector.ConnectionStatus
	connectionLost bool
	width          int
	height         int
	quitting       bool
}

func initialTUIModel(c *connector.Connector, packets *listeners.Forwarder, connInfo string) tuiModel {
	ti := textinput.New()
	ti.Placeholder = "version | idbase | repeater | raw <type> <hex>"
	ti.Prompt = "> "
	ti.CharLimit = 120
	ti.Width = 50

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	deviceList := list.New([]list.Item{}, delegate, 36, 10)
	deviceList.Title = "Senders"
	deviceList.SetShowStatusBar(false)
	deviceList.SetShowHelp(false)
	deviceList.SetFilteringEnabled(false)

	return tuiModel{
		conn:          c,
		packets:       packets,
		connInfo:      connInfo,
		started:       time.Now(),
		devices:       make(map[uint32]*device),
		deviceList:    deviceList,
		command:       ti,
		focused:       focusDeviceList,
		maxLogEntries: 200,
		status:        c.Status(),
		width:         80,
		height:        24,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTickCmd()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "q":
			if m.focused != focusCommand {
				m.quitting = true
				return m, tea.Quit
			}
		case "tab", "shift+tab":
			m.toggleFocus()
			return m, nil
		case "enter":
			if m.focused == focusCommand {
				return m, m.submitCommand()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case tuiTickMsg:
		return m, tuiTickCmd()

	case packetBatchMsg:
		for _, p := range msg {
			m.processPacket(p)
		}
		cmds = append(cmds, m.updateDeviceList())

	case statusMsg:
		m.status = connector.ConnectionStatus(msg)
		m.addLogEntry("Connection "+m.status.String(), m.status == connector.StatusOpenFailed)

	case connectionMsg:
		m.connectionLost = msg.lost
		if msg.lost {
			m.addLogEntry("Connection lost - reconnecting...", true)
		} else {
			m.addLogEntry("Reconnected", false)
		}

	case commandErrorMsg:
		m.lastCommand = ""
		m.addLogEntry(fmt.Sprintf("Command failed: %v", msg.err), true)
	}

	var cmd tea.Cmd
	if m.focused == focusCommand {
		m.command, cmd = m.command.Update(msg)
	} else {
		m.deviceList, cmd = m.deviceList.Update(msg)
	}
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *tuiModel) toggleFocus() {
	if m.focused == focusDeviceList {
		m.focused = focusCommand
		m.command.Focus()
		return
	}
	m.focused = focusDeviceList
	m.command.Blur()
}

func (m *tuiModel) submitCommand() tea.Cmd {
	line := strings.TrimSpace(m.command.Value())
	m.command.SetValue("")
	if line == "" {
		return nil
	}
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return nil
	}

	args := strings.Fields(line)
	m.lastCommand = args[0]
	m.addLogEntry("Sent "+line, false)
	return sendCommandCmd(m.conn, args)
}

func (m *tuiModel) processPacket(p esp3.Message) {
	if !p.Valid() {
		m.addLogEntry("Checksum error: "+listeners.FormatShort(p), true)
		return
	}

	switch pkt := p.(type) {
	case *esp3.RadioPacket:
		id, ok := pkt.SenderID()
		if !ok {
			return
		}
		d := m.devices[id]
		if d == nil {
			d = &device{id: id}
			m.devices[id] = d
			m.addLogEntry(fmt.Sprintf("New sender %08X", id), false)
		}
		d.rorg, _ = pkt.RORG()
		d.dbm, d.hasDBm = pkt.DBm()
		d.count++
		d.lastSeen = p.Timestamp()

	case *esp3.ResponsePacket:
		name := m.lastCommand
		m.lastCommand = ""
		if name == "" {
			m.addLogEntry("Response: "+listeners.FormatShort(p), false)
			return
		}
		ok, text := describeResponse(name, p)
		m.addLogEntry(fmt.Sprintf("%s: %s", name, text), !ok)

	default:
		m.addLogEntry(listeners.FormatShort(p), false)
	}
}

func (m *tuiModel) addLogEntry(message string, isError bool) {
	m.log = append(m.log, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.log) > m.maxLogEntries {
		m.log = m.log[len(m.log)-m.maxLogEntries:]
	}
}

// updateDeviceList shows senders with the most recently seen first
func (m *tuiModel) updateDeviceList() tea.Cmd {
	devices := make([]device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, *d)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].lastSeen.After(devices[j].lastSeen)
	})

	items := make([]list.Item, len(devices))
	for i, d := range devices {
		items[i] = d
	}
	return m.deviceList.SetItems(items)
}

func (m *tuiModel) updateListSize() {
	listHeight := m.height - 12
	if listHeight < 6 {
		listHeight = 6
	}
	m.deviceList.SetSize(36, listHeight)
}

func (m tuiModel) View() string {
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

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
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

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("EOCON"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s | up %s | q=quit Tab=switch",
		connStatus, m.status, formatUptime(uint64(time.Since(m.started).Milliseconds())))))
	s.WriteString("\n\n")

	// Statistics
	stats := m.conn.Statistics()
	delivered, failed := m.conn.DeliveryStats()
	link := m.conn.LinkStats()
	errStyle := statsValueStyle
	if stats.Errors() > 0 {
		errStyle = errorStyle
	}

	var statsContent strings.Builder
	fmt.Fprintf(&statsContent, "%s %s   %s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.TotalFrames)),
		statsLabelStyle.Render("Errors:"), errStyle.Render(fmt.Sprintf("%d", stats.Errors())),
		statsLabelStyle.Render("Skipped:"), statsValueStyle.Render(fmt.Sprintf("%d B", stats.SkippedBytes)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f/s", stats.FrameRate)),
	)
	fmt.Fprintf(&statsContent, "%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Delivered:"), statsValueStyle.Render(fmt.Sprintf("%d (%d failed)", delivered, failed)),
		statsLabelStyle.Render("In/Out:"), statsValueStyle.Render(fmt.Sprintf("%d/%d B", link.BytesIn, link.BytesOut)),
		statsLabelStyle.Render("Dropped:"), statsValueStyle.Render(fmt.Sprintf("%d", m.packets.Dropped())),
	)
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n")

	// Device list beside the event log
	listBox := boxStyle
	if m.focused == focusDeviceList {
		listBox = focusedBoxStyle
	}
	left := listBox.Render(m.deviceList.View())

	logWidth := m.width - lipgloss.Width(left) - 4
	if logWidth < 30 {
		logWidth = 30
	}
	logHeight := m.deviceList.Height()
	right := boxStyle.Width(logWidth).Render(m.renderEventLog(logHeight, headerStyle, errorStyle, warningStyle))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	s.WriteString("\n")

	// Command line
	cmdBox := boxStyle
	if m.focused == focusCommand {
		cmdBox = focusedBoxStyle
	}
	s.WriteString(cmdBox.Width(m.width - 4).Render(m.command.View()))

	return s.String()
}

func (m tuiModel) renderEventLog(height int, headerStyle, errorStyle, warningStyle lipgloss.Style) string {
	if len(m.log) == 0 {
		return headerStyle.Render("(no events yet)")
	}

	startIdx := len(m.log) - height
	if startIdx < 0 {
		startIdx = 0
	}

	var b strings.Builder
	for i := startIdx; i < len(m.log); i++ {
		entry := m.log[i]
		timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
		if entry.isError {
			fmt.Fprintf(&b, "%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message))
		} else {
			fmt.Fprintf(&b, "%s %s\n", timestamp, warningStyle.Render("ℹ "+entry.message))
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// formatUptime formats a duration in milliseconds as a human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n uint64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}
