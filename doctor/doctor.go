// Package doctor runs system diagnostics: can we capture audio, can we
// spawn an isolated worker, can we reach a transcription provider.
package doctor

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"sonodict/audio"
	"sonodict/encoder"
	"sonodict/ipc"
	"sonodict/transcriber"
)

// Run executes the checks and returns an exit code (0=all pass, 1=any
// fail). wavFile, when given, replaces the microphone with a replayed
// recording so the checks work headless.
func Run(wavFile string) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("sonodict doctor - system diagnostics")
	fmt.Println("====================================")

	allPass := true

	if !checkCapture(wavFile) {
		allPass = false
	}
	if !checkWorkerIsolation(wavFile) {
		allPass = false
	}
	if !checkProvider() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func newContext(wavFile string) (audio.Context, error) {
	if wavFile != "" {
		return audio.NewFakeContext(wavFile, true)
	}
	return audio.NewContext()
}

func checkCapture(wavFile string) bool {
	fmt.Println()
	fmt.Println("[1/3] Audio capture")

	ctx, err := newContext(wavFile)
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}
	for _, d := range devices {
		tag := ""
		if audio.IsBluetooth(d.Name) {
			tag = " [bluetooth, lower quality]"
		}
		fmt.Printf("  device: %s%s\n", d.Name, tag)
	}

	capture, err := ctx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		fmt.Printf("  FAIL: cannot open capture: %v\n", err)
		return false
	}
	defer capture.Close()

	var mu sync.Mutex
	var captured []byte
	capture.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		captured = append(captured, data...)
		mu.Unlock()
	})
	if err := capture.Start(); err != nil {
		fmt.Printf("  FAIL: cannot start capture: %v\n", err)
		return false
	}
	fmt.Print("  Recording 2 seconds")
	for i := 0; i < 4; i++ {
		time.Sleep(500 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println()
	capture.Stop()
	capture.ClearCallback()

	mu.Lock()
	n := len(captured)
	level := captureRMS(captured)
	mu.Unlock()

	if n == 0 {
		fmt.Println("  FAIL: no audio captured")
		return false
	}
	if level == 0 {
		fmt.Println("  WARN: input is pure silence (muted or dead device?)")
	}
	fmt.Printf("  PASS: captured %.1f KB (%d samples, rms %.4f)\n", float64(n)/1024, n/2, level)
	return true
}

// captureRMS computes the RMS of little-endian s16 PCM, scaled to [0, 1).
func captureRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sumSquares float64
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) / 32768.0
		sumSquares += s * s
	}
	return math.Sqrt(sumSquares / float64(n))
}

// checkWorkerIsolation spawns a real worker process with fake audio and
// scripted transcription, then verifies the start/stop lifecycle over
// the pipes. This exercises the exact path the controller uses.
func checkWorkerIsolation(wavFile string) bool {
	fmt.Println()
	fmt.Println("[2/3] Worker process isolation")

	exe, err := os.Executable()
	if err != nil {
		fmt.Printf("  FAIL: cannot resolve executable: %v\n", err)
		return false
	}

	fakeWAV := wavFile
	if fakeWAV == "" {
		fakeWAV = "silence"
	}
	cmd := exec.Command(exe, "worker")
	cmd.Env = append(os.Environ(),
		"FAKE_WAV="+fakeWAV,
		"FAKE_TEXT=doctor check",
		"MIN_SECONDS=0.5",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	if err := cmd.Start(); err != nil {
		fmt.Printf("  FAIL: cannot spawn worker: %v\n", err)
		return false
	}
	fmt.Printf("  worker spawned (pid %d)\n", cmd.Process.Pid)

	listening := make(chan struct{})
	go func() {
		r := ipc.NewReader(stdout)
		for {
			m, err := r.Next()
			if err != nil {
				return
			}
			if m.Type == ipc.TypeStatus && m.Msg == ipc.StatusListening {
				select {
				case <-listening:
				default:
					close(listening)
				}
			}
		}
	}()

	select {
	case <-listening:
		fmt.Println("  worker reached listening state")
	case <-time.After(15 * time.Second):
		fmt.Println("  FAIL: worker did not reach listening state within 15s")
		cmd.Process.Kill()
		cmd.Wait()
		return false
	}

	fmt.Fprintln(stdin, ipc.CmdStop)
	stdin.Close()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			fmt.Printf("  FAIL: worker exited with error: %v\n", err)
			return false
		}
		fmt.Println("  PASS: worker stopped cleanly on command")
		return true
	case <-time.After(5 * time.Second):
		fmt.Println("  FAIL: worker ignored stop command")
		cmd.Process.Kill()
		cmd.Wait()
		return false
	}
}

func checkProvider() bool {
	fmt.Println()
	fmt.Println("[3/3] Transcription provider")

	tr, err := transcriber.New("")
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  provider: %s\n", tr.Name())
	if tr.Name() == "fake" {
		fmt.Println("  PASS: scripted provider, nothing to reach")
		return true
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("  Send a short silence window to the API? [y/N]: ")
	confirm, _ := reader.ReadString('\n')
	if c := strings.TrimSpace(strings.ToLower(confirm)); c != "y" && c != "yes" {
		fmt.Println("  SKIP: provider round trip not confirmed")
		return true
	}

	enc, err := encoder.New("flac")
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	data, err := enc.Encode(make([]int16, encoder.SampleRate))
	if err != nil {
		fmt.Printf("  FAIL: encode: %v\n", err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	start := time.Now()
	res, err := tr.Transcribe(ctx, data, enc.Ext())
	if err != nil {
		fmt.Printf("  FAIL: provider unreachable: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: round trip in %v (text: %q)\n", time.Since(start).Round(time.Millisecond), strings.TrimSpace(res.Text))
	return true
}
