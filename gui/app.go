//go:build gui

// Package gui is a small Fyne status window: worker state, level meter
// and the running transcript. The terminal UI remains the primary
// surface; this exists for running without a terminal.
package gui

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

//go:embed assets/tray.png
var trayIcon []byte

type App struct {
	fyneApp fyne.App
	window  fyne.Window

	status     *widget.Label
	level      *widget.ProgressBar
	notice     *widget.Label
	transcript *widget.Label
	toggleBtn  *widget.Button
	modeLbl    *widget.Label
	deviceLbl  *widget.Label

	mu    sync.Mutex
	lines []string

	onReady  func()
	onToggle func()
}

// NewApp builds the window shell. onReady fires once the event loop is
// up; onToggle is the start/stop button and tray action.
func NewApp(onReady, onToggle func()) *App {
	return &App{onReady: onReady, onToggle: onToggle}
}

func Run(a *App) error {
	a.fyneApp = app.NewWithID("io.sonodict.gui")
	a.fyneApp.Settings().SetTheme(&darkTheme{})

	if desk, ok := a.fyneApp.(desktop.App); ok {
		icon := fyne.NewStaticResource("tray.png", trayIcon)
		menu := fyne.NewMenu("sonodict",
			fyne.NewMenuItem("Start/Stop", func() { a.onToggle() }),
			fyne.NewMenuItem("Quit", func() { a.fyneApp.Quit() }),
		)
		desk.SetSystemTrayMenu(menu)
		desk.SetSystemTrayIcon(icon)
	}

	a.window = a.fyneApp.NewWindow("sonodict")

	a.status = widget.NewLabel("idle")
	a.level = widget.NewProgressBar()
	a.level.TextFormatter = func() string { return "" }
	a.notice = widget.NewLabel("")
	a.notice.Hide()
	a.transcript = widget.NewLabel("No transcriptions yet")
	a.transcript.Wrapping = fyne.TextWrapWord
	a.modeLbl = widget.NewLabel("")
	a.deviceLbl = widget.NewLabel("")

	a.toggleBtn = widget.NewButton("Start", func() { a.onToggle() })
	copyBtn := widget.NewButton("Copy", func() {
		a.mu.Lock()
		text := strings.Join(a.lines, "\n")
		a.mu.Unlock()
		if text != "" {
			a.fyneApp.Clipboard().SetContent(text)
		}
	})
	clearBtn := widget.NewButton("Clear", func() {
		a.mu.Lock()
		a.lines = nil
		a.mu.Unlock()
		fyne.Do(func() { a.transcript.SetText("No transcriptions yet") })
	})

	a.window.SetContent(container.NewVBox(
		a.status,
		a.level,
		a.notice,
		a.modeLbl,
		a.deviceLbl,
		container.NewHBox(a.toggleBtn, copyBtn, clearBtn),
		widget.NewSeparator(),
		container.NewVScroll(a.transcript),
	))
	a.window.Resize(fyne.NewSize(420, 360))
	a.window.SetCloseIntercept(func() { a.fyneApp.Quit() })

	go a.onReady()

	a.window.ShowAndRun()
	return nil
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		a.fyneApp.Quit()
	}
}

func (a *App) WorkerStatus(status string) {
	fyne.Do(func() {
		a.status.SetText(status)
		switch status {
		case "stopped", "idle":
			a.toggleBtn.SetText("Start")
			a.level.SetValue(0)
		case "loading":
			a.toggleBtn.SetText("Stop")
			a.notice.Hide()
		default:
			a.toggleBtn.SetText("Stop")
		}
	})
}

func (a *App) WorkerExited(code int, requested bool) {
	fyne.Do(func() {
		a.status.SetText("idle")
		a.toggleBtn.SetText("Start")
		a.level.SetValue(0)
		if !requested && code != 0 {
			a.notice.SetText(fmt.Sprintf("worker died (exit %d)", code))
			a.notice.Show()
		}
	})
}

func (a *App) AudioLevel(level float64) {
	// Same stretch as the terminal meter; speech RMS tops out well below 1.
	v := level * 3.3
	if v > 1 {
		v = 1
	}
	fyne.Do(func() { a.level.SetValue(v) })
}

func (a *App) Transcription(text string) {
	a.mu.Lock()
	a.lines = append(a.lines, text)
	joined := strings.Join(a.lines, "\n")
	a.mu.Unlock()
	fyne.Do(func() { a.transcript.SetText(joined) })
}

func (a *App) WorkerError(msg string) {
	fyne.Do(func() {
		a.notice.SetText("error: " + msg)
		a.notice.Show()
	})
}

func (a *App) ModeLine(text string)   { fyne.Do(func() { a.modeLbl.SetText(text) }) }
func (a *App) DeviceLine(text string) { fyne.Do(func() { a.deviceLbl.SetText(text) }) }
