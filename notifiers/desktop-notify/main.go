// Package main provides a desktop notifier for macOS.
// It shows notifications via AppleScript.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Notification represents the input from the notification router.
type Notification struct {
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Response represents the output to the notification router.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func main() {
	// Read notification from stdin
	var n Notification
	if err := json.NewDecoder(os.Stdin).Decode(&n); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode notification: %v", err))
		return
	}

	if n.Title == "" {
		writeErrorResponse("title is required")
		return
	}

	if err := display(n); err != nil {
		writeErrorResponse(fmt.Sprintf("display failed: %v", err))
		return
	}

	writeSuccessResponse()
}

// display shows the notification via AppleScript.
func display(n Notification) error {
	script := fmt.Sprintf(
		`display notification %q with title %q`,
		sanitize(n.Message), sanitize(n.Title),
	)

	cmd := exec.Command("osascript", "-e", script)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("osascript: %w, output: %s", err, string(output))
	}
	return nil
}

// sanitize strips characters that would break out of the AppleScript
// string literal.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, `\`, "")
	s = strings.ReplaceAll(s, `"`, "'")
	return s
}

func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}

func writeErrorResponse(msg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: msg})
}
