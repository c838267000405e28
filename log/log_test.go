package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("SONODICT_LOG_PATH", "/tmp/sonodict-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/sonodict-env-log" {
		t.Errorf("got %q, want /tmp/sonodict-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("SONODICT_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("expected non-empty default directory")
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init("controller"); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"diagnostics_log.txt", "transcript_log.txt"} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestRoleTagged(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init("worker"); err != nil {
		t.Fatal(err)
	}
	Info("listening")

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "role=worker") {
		t.Errorf("diagnostics missing role tag, got: %q", line)
	}
	if !strings.Contains(line, "listening") {
		t.Errorf("diagnostics missing message, got: %q", line)
	}
}

func TestTranscriptionText(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init("worker"); err != nil {
		t.Fatal(err)
	}

	TranscriptionText("liver parenchyma appears normal")

	data, err := os.ReadFile(filepath.Join(tmp, "transcript_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "liver parenchyma appears normal") {
		t.Errorf("transcript_log.txt missing text, got: %q", line)
	}
	// format: "2006-01-02 15:04:05\t[pid]\ttext\n"
	if !strings.Contains(line, "\t") {
		t.Errorf("expected tab-separated format, got: %q", line)
	}
}

func TestWorkerExitLogged(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init("controller"); err != nil {
		t.Fatal(err)
	}
	WorkerExit(4242, 197, false)

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "worker_exit") || !strings.Contains(line, "197") {
		t.Errorf("missing worker_exit record, got: %q", line)
	}
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init("controller"); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
