package main

import (
	"time"

	"sonodict/config"
	"sonodict/ipc"
)

// EventSink abstracts the display layer so the Bubble Tea TUI and the
// Fyne status window receive the same worker events.
type EventSink interface {
	WorkerStatus(status string)
	WorkerExited(code int, requested bool)
	AudioLevel(level float64)
	Transcription(text string)
	WorkerError(msg string)
	ModeLine(text string)
	DeviceLine(text string)
}

func toggleForSink(ctrl *appController, s EventSink) {
	if err := ctrl.Toggle(); err != nil {
		s.WorkerError(err.Error())
	}
}

// workerEvents is the slice of the controller the event pumps consume.
type workerEvents interface {
	Messages() <-chan ipc.Message
	Exited() <-chan ExitEvent
}

// pumpEvents forwards worker messages and the exit event until the
// process ends. A nil channel blocks forever, so the ticker re-checks for
// a freshly started worker. Reacquiring only on the tick matters: a dead
// worker's message channel is closed and always ready, and re-selecting
// it every iteration would spin a core.
func pumpEvents(src workerEvents, onMsg func(ipc.Message), onExit func(ExitEvent)) {
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	var msgs <-chan ipc.Message
	var exited <-chan ExitEvent
	for {
		select {
		case <-tick.C:
			if msgs == nil {
				msgs = src.Messages()
				exited = src.Exited()
			}
		case m, ok := <-msgs:
			if !ok {
				msgs = nil
				exited = nil
				continue
			}
			onMsg(m)
		case ex := <-exited:
			onExit(ex)
			msgs = nil
			exited = nil
		}
	}
}

// runGUIPump forwards worker events to the sink. The TUI polls instead;
// only the Fyne window needs a push model.
func runGUIPump(ctrl *appController, cfg *config.Config) {
	sink.ModeLine("[" + cfg.Format + " | " + providerLabel(cfg) + "]")
	sink.DeviceLine(deviceLabel(cfg))

	pumpEvents(ctrl, func(m ipc.Message) {
		switch m.Type {
		case ipc.TypeStatus:
			sink.WorkerStatus(m.Msg)
		case ipc.TypeAudioLevel:
			sink.AudioLevel(m.RMS)
		case ipc.TypeText:
			sink.Transcription(m.Text)
		case ipc.TypeError:
			sink.WorkerError(m.Msg)
		}
	}, func(ex ExitEvent) {
		sink.WorkerExited(ex.Code, ex.Requested)
	})
}
