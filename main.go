package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"sonodict/audio"
	"sonodict/config"
	"sonodict/doctor"
	"sonodict/hotkey"
	"sonodict/ipc"
	"sonodict/log"
	"sonodict/shutdown"
	"sonodict/worker"
)

var version = "dev"

// guiMode and sink are wired by gui_enabled.go when built with -tags gui.
var guiMode bool
var sink EventSink

var appCtrl *appController

var shutdownOnce sync.Once

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		if appCtrl != nil {
			appCtrl.Shutdown()
		}
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func initCrashLog() {
	dir, err := log.ResolveDir(os.Getenv("SONODICT_LOG_PATH"))
	if err != nil {
		return
	}
	log.SetDir(dir)
	if err := log.EnsureDir(); err != nil {
		return
	}
	crashPath := filepath.Join(dir, "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}
}

// runWorkerProcess is the child side of the process split. It never
// touches the terminal; all output is NDJSON on stdout.
func runWorkerProcess() {
	cfg, err := config.Load()
	if err != nil {
		ipc.NewWriter(os.Stdout).Send(ipc.Errorf("config: %v", err))
		os.Exit(2)
	}

	if dir, derr := log.ResolveDir(""); derr == nil {
		log.SetDir(dir)
		if log.EnsureDir() == nil {
			if log.Init("worker") == nil {
				defer log.Close()
			}
		}
	}

	if err := worker.Run(cfg, os.Stdin, os.Stdout); err != nil {
		log.Errorf("worker: %v", err)
		os.Exit(1)
	}
}

func providerLabel(cfg *config.Config) string {
	name := cfg.Provider
	if name == "" {
		switch {
		case os.Getenv("FAKE_TEXT") != "":
			name = "fake"
		case os.Getenv("GROQ_API_KEY") != "":
			name = "groq"
		case os.Getenv("OPENAI_API_KEY") != "":
			name = "openai"
		default:
			name = "none"
		}
	}
	if cfg.Language != "" {
		name += " (" + cfg.Language + ")"
	}
	return name
}

func deviceLabel(cfg *config.Config) string {
	name := cfg.InputDevice
	if name == "" {
		name = "system default"
	}
	suffix := ""
	if audio.IsBluetooth(name) {
		suffix = " (BT!)"
	}
	return "mic: " + name + suffix
}

func run() {
	// The worker subcommand must be dispatched before flag parsing; the
	// child is driven entirely by environment variables.
	if len(os.Args) > 1 && os.Args[1] == "worker" {
		runWorkerProcess()
		return
	}

	godotenv.Load()

	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	langFlag := flag.String("lang", "", "Language code for transcription (e.g., en, tr). Empty = auto-detect")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	flag.Parse()

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("sonodict %s\n", version)
		os.Exit(0)
	}

	if *doctorFlag {
		wavFile := ""
		if len(flag.Args()) > 0 {
			wavFile = flag.Args()[0]
		}
		os.Exit(doctor.Run(wavFile))
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *deviceFlag != "" {
		cfg.InputDevice = *deviceFlag
	}
	if *langFlag != "" {
		cfg.Language = *langFlag
	}

	// Resolve -setup into a device name before any UI starts. The picker
	// needs the raw terminal.
	if *setupFlag && cfg.InputDevice == "" && !cfg.SafeMode {
		actx, err := audio.NewContext()
		if err != nil {
			fmt.Printf("Error initializing audio: %v\n", err)
			os.Exit(1)
		}
		if dev, err := audio.SelectDevice(actx); err != nil {
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
		} else if dev != nil {
			cfg.InputDevice = dev.Name
		}
		actx.Close()
	}

	if err := log.Init("controller"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	log.SessionStart(providerLabel(cfg), cfg.Format, cfg.InputDevice)
	if cfg.SafeMode {
		log.Warn("safe mode: worker disabled")
	}

	appCtrl = newAppController(cfg)

	if *testFlag {
		runTestMode(appCtrl)
		return
	}

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	if *tuiFlag || guiMode {
		go func() {
			<-sigChan
			gracefulShutdown()
		}()
	}

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Warnf("hotkey register error: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: global hotkey unavailable: %v\n", err)
	} else {
		defer hk.Unregister()
		go func() {
			for range hk.Keydown() {
				log.Info("hotkey_toggle")
				if guiMode && sink != nil {
					toggleForSink(appCtrl, sink)
				} else {
					tuiSend(ToggleMsg{})
				}
			}
		}()
	}

	if guiMode {
		runGUIPump(appCtrl, cfg)
		return
	}

	if !*tuiFlag {
		runHeadless(appCtrl, sigChan)
		return
	}

	tuiMu.Lock()
	tuiProgram = NewTUIProgram(appCtrl,
		"["+cfg.Format+" | "+providerLabel(cfg)+"]",
		deviceLabel(cfg))
	tuiMu.Unlock()

	if _, err := tuiProgram.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		os.Exit(1)
	}
	gracefulShutdown()
}

// runHeadless prints transcribed text to stdout, one line per window.
// Dictation starts immediately; ctrl+c stops it.
func runHeadless(ctrl *appController, sigChan chan os.Signal) {
	if err := ctrl.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	msgs := ctrl.Messages()
	exited := ctrl.Exited()
	for {
		select {
		case m, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			switch m.Type {
			case ipc.TypeText:
				fmt.Println(m.Text)
			case ipc.TypeError:
				fmt.Fprintln(os.Stderr, "error: "+m.Msg)
			}
		case ex := <-exited:
			if !ex.Requested && ex.Code != 0 {
				fmt.Fprintf(os.Stderr, "worker died (exit %d)\n", ex.Code)
				os.Exit(1)
			}
			gracefulShutdown()
		case <-sigChan:
			ctrl.Stop()
		}
	}
}
