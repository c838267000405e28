//go:build integration

// Black-box tests against the built binary. They drive the controller in
// -test mode (stdin commands) with a fake capture source and a scripted
// transcriber, so no microphone, API key, or terminal is needed.
package test_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("SONODICT_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "SONODICT_TEST_BIN not set; run: make test-integration")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func generateWAV(path string, durationS float64, amp float64) error {
	const sampleRate = 16000
	const headerSize = 44
	numSamples := int(sampleRate * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], sampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], sampleRate*2)
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i := 0; i < numSamples; i++ {
		s := int16(amp * 32767 * math.Sin(2*math.Pi*220*float64(i)/sampleRate))
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:], uint16(s))
	}
	return os.WriteFile(path, buf, 0644)
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

type runResult struct {
	logDir string
	output string
}

func runController(t *testing.T, stdin string, env ...string) runResult {
	t.Helper()
	logDir := t.TempDir()

	cmd := exec.Command(testBinary, "-test", "-logpath", logDir)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(), env...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("controller exited with error: %v\noutput: %s", err, out)
	}
	return runResult{logDir: logDir, output: string(out)}
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func TestStartStopLifecycle(t *testing.T) {
	res := runController(t,
		cmds("START", "WAIT_STATUS listening", "STOP", "WAIT_STATUS stopped", "WAIT_EXIT", "QUIT"),
		"FAKE_WAV=silence", "FAKE_TEXT=scripted")

	for _, want := range []string{"STATUS loading", "STATUS listening", "STATUS stopped", "EXIT 0 requested=true"} {
		if !strings.Contains(res.output, want) {
			t.Errorf("output missing %q:\n%s", want, res.output)
		}
	}
}

func TestCrashLeavesControllerRunning(t *testing.T) {
	res := runController(t,
		cmds("START", "WAIT_STATUS listening", "WAIT_EXIT",
			// A second session after the crash proves the controller survived.
			"START", "WAIT_STATUS listening", "STOP", "WAIT_EXIT", "QUIT"),
		"FAKE_WAV=silence", "FAKE_TEXT=scripted", "SONODICT_WORKER_CRASH=1")

	if !strings.Contains(res.output, "EXIT 197 requested=false") {
		t.Errorf("crash exit not surfaced:\n%s", res.output)
	}
	diag := readLog(t, res.logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "worker_exit") || !strings.Contains(diag, "197") {
		t.Error("crash not recorded in diagnostics_log.txt")
	}
}

func TestSpeechProducesText(t *testing.T) {
	wav := filepath.Join(t.TempDir(), "tone.wav")
	if err := generateWAV(wav, 4.0, 0.5); err != nil {
		t.Fatal(err)
	}

	res := runController(t,
		cmds("START", "WAIT_STATUS listening", "WAIT_TEXT", "STOP", "WAIT_EXIT", "QUIT"),
		"FAKE_WAV="+wav, "FAKE_TEXT=the liver parenchyma appears normal", "MIN_SECONDS=1")

	if !strings.Contains(res.output, "TEXT the liver parenchyma appears normal") {
		t.Errorf("transcription not delivered:\n%s", res.output)
	}
	transcript := readLog(t, res.logDir, "transcript_log.txt")
	if !strings.Contains(transcript, "liver parenchyma") {
		t.Error("text missing from transcript_log.txt")
	}
}

func TestSilenceProducesNoText(t *testing.T) {
	res := runController(t,
		cmds("START", "WAIT_STATUS listening", "WAIT_STATUS no speech", "STOP", "WAIT_EXIT", "QUIT"),
		"FAKE_WAV=silence", "FAKE_TEXT=should never appear", "MIN_SECONDS=0.5")

	if strings.Contains(res.output, "TEXT ") {
		t.Errorf("silence produced text:\n%s", res.output)
	}
}

func TestStopLatency(t *testing.T) {
	start := time.Now()
	runController(t,
		cmds("START", "WAIT_STATUS listening", "STOP", "WAIT_EXIT", "QUIT"),
		"FAKE_WAV=silence", "FAKE_TEXT=scripted")
	// Total run includes worker startup; the stop itself must be well
	// under the 3s kill grace.
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("lifecycle took %v", elapsed)
	}
}

func TestSafeModeRunsWithoutWorker(t *testing.T) {
	res := runController(t, cmds("START", "SLEEP 200", "QUIT"), "SAFE_MODE=1")
	if !strings.Contains(res.output, "ERROR safe mode") {
		t.Errorf("safe mode did not refuse to start the worker:\n%s", res.output)
	}
}
