package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sonodict/ipc"
)

// ToggleMsg arrives from the global hotkey goroutine.
type ToggleMsg struct{}

type pollMsg time.Time

// pollInterval paces the drain of the worker's message stream. Status
// changes land within one tick of arriving.
const pollInterval = 100 * time.Millisecond

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateStarting
	tuiStateListening
	tuiStateTranscribing
)

type tuiModel struct {
	ctrl *appController

	state         tuiState
	statusText    string
	audioLevel    float64
	peakLevel     float64
	transcript    []string
	lastError     string
	exitNotice    string
	copied        bool
	width, height int
	modeLine      string
	deviceLine    string
	quitting      bool
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var (
	styleRec    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleBusy   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	styleIdle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleMode   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleText   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleErr    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleNotice = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleHelp   = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleMeter  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

func NewTUIProgram(ctrl *appController, modeLine, deviceLine string) *tea.Program {
	m := tuiModel{ctrl: ctrl, statusText: "idle", modeLine: modeLine, deviceLine: deviceLine}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func tuiPoll() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiPoll()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.ctrl.Stop()
			return m, tea.Quit
		case "r":
			m = m.toggle()
		case "x":
			m.transcript = nil
			m.lastError = ""
			m.exitNotice = ""
			m.copied = false
		case "c":
			if len(m.transcript) > 0 {
				if err := clipboard.WriteAll(strings.Join(m.transcript, "\n")); err == nil {
					m.copied = true
				}
			}
		}

	case ToggleMsg:
		m = m.toggle()

	case pollMsg:
		m = m.drain()
		return m, tuiPoll()
	}
	return m, nil
}

func (m tuiModel) toggle() tuiModel {
	if m.ctrl.Running() {
		m.ctrl.Stop()
		m.statusText = "stopping"
		return m
	}
	if err := m.ctrl.Start(); err != nil {
		m.lastError = err.Error()
		return m
	}
	m.state = tuiStateStarting
	m.statusText = "starting worker"
	m.exitNotice = ""
	m.lastError = ""
	m.peakLevel = 0
	return m
}

// drain consumes everything the worker produced since the last tick.
func (m tuiModel) drain() tuiModel {
	msgs := m.ctrl.Messages()
	exited := m.ctrl.Exited()
	for {
		select {
		case ev, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			m = m.apply(ev)
		case ex := <-exited:
			m = m.applyExit(ex)
		default:
			return m
		}
	}
}

func (m tuiModel) apply(ev ipc.Message) tuiModel {
	switch ev.Type {
	case ipc.TypeStatus:
		m.statusText = ev.Msg
		switch ev.Msg {
		case ipc.StatusLoading:
			m.state = tuiStateStarting
		case ipc.StatusListening, ipc.StatusNoSpeech:
			m.state = tuiStateListening
		case ipc.StatusTranscribing:
			m.state = tuiStateTranscribing
		case ipc.StatusStopped:
			m.state = tuiStateIdle
			m.audioLevel = 0
		}
	case ipc.TypeAudioLevel:
		m.audioLevel = m.audioLevel*0.6 + ev.RMS*0.4
		if ev.RMS > m.peakLevel {
			m.peakLevel = ev.RMS
		}
	case ipc.TypeText:
		m.transcript = append(m.transcript, ev.Text)
		m.copied = false
	case ipc.TypeError:
		m.lastError = ev.Msg
	}
	return m
}

func (m tuiModel) applyExit(ex ExitEvent) tuiModel {
	m.state = tuiStateIdle
	m.audioLevel = 0
	m.statusText = "idle"
	if ex.Requested || ex.Code == 0 {
		m.exitNotice = ""
	} else {
		m.exitNotice = fmt.Sprintf("worker died (exit %d), press r to restart", ex.Code)
	}
	return m
}

func renderMeter(level float64, width int) string {
	// Speech RMS rarely exceeds 0.3; stretch the scale so the bar moves.
	filled := int(level * 3.3 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return styleMeter.Render(strings.Repeat("█", filled)) +
		styleDim.Render(strings.Repeat("░", width-filled))
}

func (m tuiModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var lines []string

	switch m.state {
	case tuiStateListening:
		lines = append(lines, styleRec.Render("● LISTENING"))
	case tuiStateTranscribing:
		lines = append(lines, styleBusy.Render("◌ TRANSCRIBING"))
	case tuiStateStarting:
		lines = append(lines, styleBusy.Render("◌ STARTING"))
	default:
		lines = append(lines, styleIdle.Render("○ IDLE"))
	}
	lines = append(lines, styleDim.Render("status: "+m.statusText))

	if m.state == tuiStateListening || m.state == tuiStateTranscribing {
		lines = append(lines, renderMeter(m.audioLevel, 30))
	} else {
		lines = append(lines, "")
	}

	if m.modeLine != "" {
		lines = append(lines, styleMode.Render(m.modeLine))
	}
	if m.deviceLine != "" {
		lines = append(lines, styleDim.Render(m.deviceLine))
	}

	if m.exitNotice != "" {
		lines = append(lines, styleNotice.Render("⚠ "+m.exitNotice))
	}
	if m.lastError != "" {
		lines = append(lines, styleErr.Render("error: "+m.lastError))
	}

	lines = append(lines, "")
	wrapWidth := m.width - 2
	if wrapWidth < 10 {
		wrapWidth = 10
	}
	if len(m.transcript) == 0 {
		lines = append(lines, styleDim.Render("No transcriptions yet"))
	} else {
		title := fmt.Sprintf("Transcript (%d)", len(m.transcript))
		if m.copied {
			title += " " + styleOK.Render("[✓ copied]")
		}
		lines = append(lines, styleDim.Render(title))
		for _, t := range m.transcript {
			for _, l := range wrapText(t, wrapWidth) {
				lines = append(lines, styleText.Render(l))
			}
		}
	}

	// Pin help to the bottom.
	help := styleHelp.Render("r") + styleDim.Render(" start/stop  ") +
		styleHelp.Render("c") + styleDim.Render(" copy  ") +
		styleHelp.Render("x") + styleDim.Render(" clear  ") +
		styleHelp.Render("ctrl+c") + styleDim.Render(" quit  ") +
		styleDim.Render("(hotkey: ctrl+shift+space)")

	for len(lines) < m.height-2 {
		lines = append(lines, "")
	}
	if len(lines) > m.height-2 {
		lines = lines[:m.height-2]
	}
	lines = append(lines, "", help)

	return strings.Join(lines, "\n")
}

// wrapText wraps over runes, not bytes; transcripts are routinely CJK.
func wrapText(text string, width int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(runes) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(runes[:splitAt]))
		runes = runes[splitAt:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}
