package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

// execResponse is what the notifier executable prints to stdout.
type execResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ExecNotifier delivers notifications by running an external executable
// with the notification as JSON on stdin. This keeps desktop toolkit
// bindings out of the engine process.
type ExecNotifier struct {
	executable string
	timeout    time.Duration
}

// NewExecNotifier creates an ExecNotifier running the given executable
// with the specified per-delivery timeout.
func NewExecNotifier(executable string, timeout time.Duration) *ExecNotifier {
	return &ExecNotifier{
		executable: executable,
		timeout:    timeout,
	}
}

// Notify runs the executable once with n as JSON on stdin and parses the
// stdout as an execResponse.
func (e *ExecNotifier) Notify(n Notification) error {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.executable)

	reqJSON, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("notifier timeout after %s", e.timeout)
	}

	if err != nil {
		stderrStr := stderr.String()
		if stderrStr != "" {
			return fmt.Errorf("notifier failed: %w, stderr: %s", err, stderrStr)
		}
		return fmt.Errorf("notifier failed: %w", err)
	}

	var resp execResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return fmt.Errorf("failed to parse notifier response: %w, stdout: %s", err, stdout.String())
	}

	if !resp.Success {
		return fmt.Errorf("notifier rejected notification: %s", resp.Error)
	}

	return nil
}
