// Package log writes file diagnostics shared by the controller and the
// worker. Both processes append to the same directory; every line carries
// the writing pid, which is what makes a worker crash traceable after the
// process is gone.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcriptFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	runID          string
	dir            string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: SONODICT_LOG_PATH environment variable
	envPath := os.Getenv("SONODICT_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// Init opens the diagnostic and transcript files. role distinguishes the
// controller from the worker in shared output.
func Init(role string) error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()
	runID = uuid.NewString()[:8]

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcriptPath := filepath.Join(dir, "transcript_log.txt")
	transcriptFile, err = os.OpenFile(transcriptPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().
		Timestamp().
		Int("pid", pid).
		Str("role", role).
		Str("run", runID).
		Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcriptFile != nil {
		transcriptFile.Close()
		transcriptFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(provider, format, device string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("provider", provider).
		Str("format", format).
		Str("device", device).
		Msg("session_start")
}

func SessionEnd(count int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("count", count).
		Msg("session_end")
}

func WorkerSpawn(workerPid int) {
	if !logReady {
		return
	}
	diagLog.Info().Int("worker_pid", workerPid).Msg("worker_spawn")
}

// WorkerExit records the worker's exit code. A non-zero code with no stop
// command in flight is the abnormal-termination case the process split
// exists for.
func WorkerExit(workerPid, code int, requested bool) {
	if !logReady {
		return
	}
	ev := diagLog.Info()
	if code != 0 && !requested {
		ev = diagLog.Error()
	}
	ev.Int("worker_pid", workerPid).
		Int("exit_code", code).
		Bool("requested", requested).
		Msg("worker_exit")
}

// WindowMetrics records one transcription window round trip.
type WindowMetrics struct {
	AudioLengthS float64
	WindowRMS    float64
	RawSizeKB    float64
	UploadSizeKB float64
	EncodeMs     float64
	TranscribeMs float64
}

func Window(m WindowMetrics, provider, format string, hasText bool) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("provider", provider).
		Str("format", format).
		Bool("has_text", hasText).
		Float64("audio_s", m.AudioLengthS).
		Float64("window_rms", m.WindowRMS).
		Float64("raw_kb", m.RawSizeKB).
		Float64("upload_kb", m.UploadSizeKB).
		Float64("encode_ms", m.EncodeMs).
		Float64("transcribe_ms", m.TranscribeMs).
		Msg("window")
}

func TranscriptionText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcriptFile.WriteString(line)
}
