// Package ui is flash-cli's bubbletea terminal interface: a menu of flash
// operations, a form to fill in partition/LUN/file details, and a progress
// view that polls flashd's status endpoint — generalizing the teacher's
// hasher-cli TUI (menu → chat/pipeline → progress) to the flashing
// operator surface (§2 [DOMAIN] operator-surface daemon + CLI).
package ui

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	psutil "github.com/shirou/gopsutil/v3/cpu"
	psmem "github.com/shirou/gopsutil/v3/mem"

	"qflash/internal/cli/embedded"
	"qflash/internal/client"
)

// View states.
const (
	PrimaryMenuView = iota
	FormView
	ProgressView
	DevicesView
)

// Styles, same palette shape the teacher used for header/footer/list chrome.
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#FFFF00")).
			Padding(0, 2).
			Bold(true).
			Width(80)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#4B5563")).
			Padding(0, 2).
			Width(80)

	logViewStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#9CA3AF"))

	listStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2563EB"))

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2563EB")).
			Padding(0, 1)

	progressBarStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#10B981")).
				Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#60A5FA"))

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00")).
			Bold(true).
			MarginTop(1)
)

const qflashLogo = `
 ██████  ███████ ██       █████  ███████ ██   ██
██    ██ ██      ██      ██   ██ ██      ██   ██
██    ██ █████   ██      ███████ ███████ ███████
██  ▄▄██ ██      ██      ██   ██      ██ ██   ██
 ██████  ██      ███████ ██   ██ ███████ ██   ██
    ▀▀`

// FileLogger writes CLI session logs to the app data directory, mirroring
// the teacher's singleton FileLogger for hasher-cli.
type FileLogger struct {
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

var (
	logger     *FileLogger
	loggerOnce sync.Once
)

// GetLogger returns the process-wide CLI logger.
func GetLogger() *FileLogger {
	loggerOnce.Do(func() {
		logger = &FileLogger{}
		logger.init()
	})
	return logger
}

func (l *FileLogger) init() {
	appDir, err := embedded.GetAppDataDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not get app data dir: %v\n", err)
		return
	}
	logDir := filepath.Join(appDir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not create log directory: %v\n", err)
		return
	}
	timestamp := time.Now().Format("20060102_150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("flash-cli_%s.log", timestamp))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not open log file: %v\n", err)
		return
	}
	l.file = file
	l.writer = bufio.NewWriter(file)
	fmt.Fprintf(os.Stderr, "flash-cli logs: %s\n", logPath)
}

// Write appends a timestamped line to the session log.
func (l *FileLogger) Write(msg string) {
	if l == nil || l.writer == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.writer, "[%s] %s\n", time.Now().Format("2006/01/02 15:04:05"), msg)
	l.writer.Flush()
}

// Close flushes and closes the log file.
func (l *FileLogger) Close() {
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer.Flush()
	l.file.Close()
}

// menuItem implements list.Item for the operation picker.
type menuItem struct {
	title       string
	description string
	operation   string
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.description }
func (i menuItem) FilterValue() string { return i.title }

var primaryMenuItems = []list.Item{
	menuItem{"1. Read Partition", "Dump a partition to a local file", "read_partition"},
	menuItem{"2. Write Partition", "Flash a local file to a partition", "write_partition"},
	menuItem{"3. Erase Partition", "Zero a partition", "erase_partition"},
	menuItem{"4. Backup GPT", "Save the partition table to a file", "backup_gpt"},
	menuItem{"5. Restore GPT", "Write a saved partition table back", "restore_gpt"},
	menuItem{"6. Dump Memory", "Read a raw memory window to a file", "dump_memory"},
	menuItem{"7. Reboot Device", "Power the device into a named mode", "reboot"},
	menuItem{"8. Devices", "List devices flashd has seen", ""},
	menuItem{"0. Quit", "Exit flash-cli", ""},
}

// formField is one textarea in the operation form, submitted in order.
type formField struct {
	label string
	input textarea.Model
}

// Model is flash-cli's bubbletea application state.
type Model struct {
	CurrentView int
	Menu        list.Model
	Form        []formField
	FormIndex   int
	Operation   string

	LogView    viewport.Model
	Logs       []string
	ResourceData string

	Width  int
	Height int

	APIClient *client.APIClient
	TaskID    string
	Phase     string
	Done      int64
	Total     int64
	Finished  bool
	LastErr   string

	logger *FileLogger
}

// NewModel builds the initial model against a flashd instance on apiPort.
func NewModel(apiPort int) Model {
	defaultWidth, defaultHeight := 80, 24
	menuHeight := defaultHeight - 12
	if menuHeight < 6 {
		menuHeight = 6
	}

	menu := list.New(primaryMenuItems, list.NewDefaultDelegate(), defaultWidth-4, menuHeight)
	menu.Title = "flash-cli"
	menu.SetShowStatusBar(false)
	menu.SetFilteringEnabled(false)

	logView := viewport.New(defaultWidth-4, 10)
	logView.Style = logViewStyle
	logView.SetContent("Welcome to flash-cli. Select an operation from the menu.")

	return Model{
		CurrentView: PrimaryMenuView,
		Menu:        menu,
		LogView:     logView,
		Logs:        []string{"flash-cli ready"},
		Width:       defaultWidth,
		Height:      defaultHeight,
		APIClient:   client.NewAPIClient(apiPort),
		logger:      GetLogger(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.ClearScreen, m.updateResourceData())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case updateResourceDataMsg:
		m.ResourceData = msg.data
		return m, m.updateResourceData()

	case taskStartedMsg:
		m.TaskID = msg.taskID
		m.Phase = "queued"
		m.Finished = false
		m.LastErr = ""
		m.CurrentView = ProgressView
		return m, m.pollStatus()

	case taskStatusMsg:
		m.Phase = msg.phase
		m.Done = msg.done
		m.Total = msg.total
		m.Finished = msg.finished
		m.LastErr = msg.errMsg
		if !m.Finished {
			return m, tea.Tick(300*time.Millisecond, func(time.Time) tea.Msg { return pollTickMsg{} })
		}
		m.appendLog(fmt.Sprintf("task %s finished: phase=%s err=%q", m.TaskID, m.Phase, m.LastErr))
		return m, nil

	case pollTickMsg:
		return m, m.pollStatus()

	case devicesLoadedMsg:
		m.LogView.SetContent(msg.text)
		return m, nil

	case taskErrMsg:
		m.LastErr = msg.err
		m.Finished = true
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.CurrentView {
	case PrimaryMenuView:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.logger != nil {
				m.logger.Close()
			}
			return m, tea.Quit
		case "enter":
			item, ok := m.Menu.SelectedItem().(menuItem)
			if !ok {
				return m, nil
			}
			switch {
			case item.operation == "" && strings.Contains(item.title, "Quit"):
				if m.logger != nil {
					m.logger.Close()
				}
				return m, tea.Quit
			case item.operation == "" && strings.Contains(item.title, "Devices"):
				m.CurrentView = DevicesView
				return m, m.loadDevices()
			default:
				m.Operation = item.operation
				m.Form = buildForm(item.operation)
				m.FormIndex = 0
				m.CurrentView = FormView
				if len(m.Form) > 0 {
					m.Form[0].input.Focus()
				}
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.Menu, cmd = m.Menu.Update(msg)
		return m, cmd

	case FormView:
		switch msg.String() {
		case "esc":
			m.CurrentView = PrimaryMenuView
			return m, nil
		case "tab", "enter":
			if m.FormIndex < len(m.Form) {
				m.Form[m.FormIndex].input.Blur()
			}
			m.FormIndex++
			if m.FormIndex >= len(m.Form) {
				return m, m.submitForm()
			}
			m.Form[m.FormIndex].input.Focus()
			return m, nil
		}
		if m.FormIndex < len(m.Form) {
			var cmd tea.Cmd
			m.Form[m.FormIndex].input, cmd = m.Form[m.FormIndex].input.Update(msg)
			return m, cmd
		}
		return m, nil

	case ProgressView, DevicesView:
		if msg.String() == "esc" || msg.String() == "q" {
			m.CurrentView = PrimaryMenuView
			return m, nil
		}
	}
	return m, nil
}

func buildForm(operation string) []formField {
	mk := func(label, placeholder string) formField {
		t := textarea.New()
		t.Placeholder = placeholder
		t.SetWidth(60)
		t.SetHeight(1)
		t.ShowLineNumbers = false
		t.Prompt = ""
		return formField{label: label, input: t}
	}

	switch operation {
	case "read_partition", "write_partition", "erase_partition":
		fields := []formField{mk("Partition name", "boot_a"), mk("LUN", "0")}
		if operation != "erase_partition" {
			fields = append(fields, mk("File path", "/tmp/boot_a.img"))
		}
		return fields
	case "backup_gpt", "restore_gpt":
		return []formField{mk("LUN", "0"), mk("File path", "/tmp/gpt_lun0.bin")}
	case "dump_memory":
		return []formField{mk("Address (hex)", "0x100000"), mk("Size (bytes)", "1048576"), mk("File path", "/tmp/mem.bin")}
	case "reboot":
		return []formField{mk("Reboot mode", "edl")}
	}
	return nil
}

func (m *Model) submitForm() tea.Cmd {
	values := make([]string, len(m.Form))
	for i, f := range m.Form {
		values[i] = strings.TrimSpace(f.input.Value())
	}
	op := m.Operation
	api := m.APIClient
	return func() tea.Msg {
		req := client.FlashRequest{Operation: op}
		switch op {
		case "read_partition", "write_partition", "erase_partition":
			req.Partition = values[0]
			req.LUN, _ = strconv.Atoi(values[1])
			if len(values) > 2 {
				req.FilePath = values[2]
			}
		case "backup_gpt", "restore_gpt":
			req.LUN, _ = strconv.Atoi(values[0])
			req.FilePath = values[1]
		case "dump_memory":
			req.MemoryAddress = parseHexOrDec(values[0])
			size, _ := strconv.ParseUint(values[1], 10, 64)
			req.MemorySize = size
			req.FilePath = values[2]
		case "reboot":
			req.RebootMode = values[0]
		}

		resp, err := api.StartFlash(req)
		if err != nil {
			return taskErrMsg{err: err.Error()}
		}
		return taskStartedMsg{taskID: resp.TaskID}
	}
}

func parseHexOrDec(s string) uint64 {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if v, err := strconv.ParseUint(s, 16, 64); err == nil {
		return v
	}
	v, _ := strconv.ParseUint(s, 10, 64)
	return v
}

func (m Model) pollStatus() tea.Cmd {
	taskID := m.TaskID
	api := m.APIClient
	return func() tea.Msg {
		status, err := api.Status(taskID)
		if err != nil {
			return taskErrMsg{err: err.Error()}
		}
		return taskStatusMsg{phase: status.Phase, done: status.Done, total: status.Total, finished: status.Finished, errMsg: status.Error}
	}
}

func (m Model) loadDevices() tea.Cmd {
	api := m.APIClient
	return func() tea.Msg {
		devices, err := api.Devices()
		if err != nil {
			return taskErrMsg{err: err.Error()}
		}
		var b strings.Builder
		if len(devices.Devices) == 0 {
			b.WriteString("No devices reported by flashd.\n")
		}
		for _, d := range devices.Devices {
			fmt.Fprintf(&b, "%s  chip=%s vendor=%s\n", d.Path, d.Chip, d.Vendor)
		}
		return devicesLoadedMsg{text: b.String()}
	}
}

func (m *Model) appendLog(line string) {
	m.Logs = append(m.Logs, line)
	m.LogView.SetContent(strings.Join(m.Logs, "\n"))
	m.LogView.GotoBottom()
	if m.logger != nil {
		m.logger.Write(line)
	}
}

func (m Model) updateResourceData() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		cpuPercent, _ := psutil.Percent(0, false)
		memInfo, _ := psmem.VirtualMemory()
		cpu := 0.0
		if len(cpuPercent) > 0 {
			cpu = cpuPercent[0]
		}
		mem := 0.0
		if memInfo != nil {
			mem = memInfo.UsedPercent
		}
		return updateResourceDataMsg{data: fmt.Sprintf("CPU: %.1f%% | RAM: %.1f%% | Go: %s", cpu, mem, runtime.Version())}
	})
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (Model, tea.Cmd) {
	m.Width = msg.Width
	m.Height = msg.Height
	menuHeight := msg.Height - 12
	if menuHeight < 6 {
		menuHeight = 6
	}
	m.Menu.SetSize(msg.Width-4, menuHeight)
	m.LogView.Width = msg.Width - 4
	m.LogView.Height = menuHeight
	headerStyle = headerStyle.Width(msg.Width)
	footerStyle = footerStyle.Width(msg.Width)
	return m, nil
}

// Message types delivered via tea.Cmd.
type updateResourceDataMsg struct{ data string }
type taskStartedMsg struct{ taskID string }
type taskStatusMsg struct {
	phase    string
	done     int64
	total    int64
	finished bool
	errMsg   string
}
type taskErrMsg struct{ err string }
type pollTickMsg struct{}
type devicesLoadedMsg struct{ text string }

func (m Model) View() string {
	switch m.CurrentView {
	case FormView:
		return m.renderForm()
	case ProgressView:
		return m.renderProgress()
	case DevicesView:
		return m.renderDevices()
	default:
		return m.renderPrimaryMenu()
	}
}

func (m Model) renderPrimaryMenu() string {
	header := headerStyle.Width(m.Width).Render(" flash-cli | EDL flashing engine")
	footer := footerStyle.Width(m.Width).Render(m.ResourceData)
	logo := logoStyle.Render(qflashLogo)
	menuHeight := m.Height - 12
	if menuHeight < 6 {
		menuHeight = 6
	}
	body := listStyle.Copy().Width(m.Width - 4).Height(menuHeight).Render(m.Menu.View())
	return lipgloss.JoinVertical(lipgloss.Left, header, logo, body, footer)
}

func (m Model) renderForm() string {
	header := headerStyle.Width(m.Width).Render(fmt.Sprintf(" flash-cli | %s", m.Operation))
	var b strings.Builder
	for i, f := range m.Form {
		marker := "  "
		if i == m.FormIndex {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%s: %s\n", marker, f.label, f.input.View())
	}
	box := inputStyle.Width(m.Width - 4).Render(b.String())
	help := infoStyle.Render("tab/enter: next field · esc: cancel")
	return lipgloss.JoinVertical(lipgloss.Left, header, box, help)
}

func (m Model) renderProgress() string {
	header := headerStyle.Width(m.Width).Render(fmt.Sprintf(" flash-cli | task %s", m.TaskID))
	pct := 0.0
	if m.Total > 0 {
		pct = float64(m.Done) / float64(m.Total)
	}
	bar := renderProgressBar(pct, m.Width-8)
	status := fmt.Sprintf("phase: %s  %d/%d bytes", m.Phase, m.Done, m.Total)
	if m.Finished {
		status += "  [finished]"
	}
	var errLine string
	if m.LastErr != "" {
		errLine = errorStyle.Render("error: " + m.LastErr)
	}
	logBox := listStyle.Copy().Width(m.Width - 4).Height(m.Height - 10).Render(m.LogView.View())
	help := infoStyle.Render("esc: back to menu")
	return lipgloss.JoinVertical(lipgloss.Left, header, bar, status, errLine, logBox, help)
}

func (m Model) renderDevices() string {
	header := headerStyle.Width(m.Width).Render(" flash-cli | devices")
	help := infoStyle.Render("esc: back to menu")
	return lipgloss.JoinVertical(lipgloss.Left, header, m.LogView.View(), help)
}

func renderProgressBar(progress float64, width int) string {
	if width < 3 {
		width = 3
	}
	filled := int(float64(width-2) * progress)
	if filled < 0 {
		filled = 0
	}
	if filled > width-2 {
		filled = width - 2
	}
	empty := width - 2 - filled
	bar := "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
	return progressBarStyle.Render(bar)
}
