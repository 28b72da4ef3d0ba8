package notify

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeNotifierScript(t *testing.T, content string) string {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "safewarner-exec-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(tmpDir)
	})

	scriptPath := filepath.Join(tmpDir, "notifier.sh")
	if err := os.WriteFile(scriptPath, []byte(content), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return scriptPath
}

func TestExecNotifier_Success(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	scriptPath := writeNotifierScript(t, `#!/bin/sh
cat > /dev/null
echo '{"success":true}'
`)

	e := NewExecNotifier(scriptPath, 5*time.Second)
	err := e.Notify(Notification{
		Kind:    "reminder_fired:eye_break",
		Title:   "Time for an eye break",
		Message: "Look away",
		At:      time.Now(),
	})
	if err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}
}

func TestExecNotifier_ReceivesJSONOnStdin(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	// The script echoes the received title back in its error field.
	scriptPath := writeNotifierScript(t, `#!/bin/sh
input=$(cat)
case "$input" in
*"Time for an eye break"*) echo '{"success":true}' ;;
*) echo '{"success":false,"error":"title missing from stdin"}' ;;
esac
`)

	e := NewExecNotifier(scriptPath, 5*time.Second)
	err := e.Notify(Notification{Title: "Time for an eye break", At: time.Now()})
	if err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}
}

func TestExecNotifier_RejectedNotification(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	scriptPath := writeNotifierScript(t, `#!/bin/sh
cat > /dev/null
echo '{"success":false,"error":"display unavailable"}'
`)

	e := NewExecNotifier(scriptPath, 5*time.Second)
	err := e.Notify(Notification{Title: "t", At: time.Now()})
	if err == nil {
		t.Fatal("expected error for a rejected notification")
	}
	if !strings.Contains(err.Error(), "display unavailable") {
		t.Errorf("error should carry the notifier's message, got %v", err)
	}
}

func TestExecNotifier_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	scriptPath := writeNotifierScript(t, `#!/bin/sh
sleep 10
`)

	e := NewExecNotifier(scriptPath, 100*time.Millisecond)
	err := e.Notify(Notification{Title: "t", At: time.Now()})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("expected timeout in error, got %v", err)
	}
}

func TestExecNotifier_MalformedOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	scriptPath := writeNotifierScript(t, `#!/bin/sh
cat > /dev/null
echo 'not json'
`)

	e := NewExecNotifier(scriptPath, 5*time.Second)
	if err := e.Notify(Notification{Title: "t", At: time.Now()}); err == nil {
		t.Fatal("expected parse error")
	}
}
