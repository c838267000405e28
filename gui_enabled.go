//go:build gui

package main

import (
	"runtime"

	"sonodict/gui"
)

var guiApp *gui.App

// initGUI takes over the main thread for Fyne and runs the controller in
// a goroutine. All audio work happens in the worker process, so there is
// nothing native to initialize here.
func initGUI() {
	guiMode = true
	runtime.LockOSThread()

	guiApp = gui.NewApp(
		func() { run() },
		func() {
			if appCtrl != nil {
				toggleForSink(appCtrl, sink)
			}
		},
	)
	sink = guiApp
	if err := gui.Run(guiApp); err != nil {
		panic(err)
	}
	gracefulShutdown()
}
