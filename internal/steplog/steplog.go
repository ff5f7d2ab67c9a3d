// Package steplog appends newline-delimited JSON records describing agent
// steps to <log_folder>/flow/steps.json.
package steplog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Path returns the step log location for a log folder.
func Path(logFolder string) string {
	return filepath.Join(logFolder, "flow", "steps.json")
}

// Record is the shape written for every tool invocation.
type Record struct {
	Time     time.Time      `json:"time"`
	Tool     string         `json:"tool"`
	Args     map[string]any `json:"args,omitempty"`
	URL      string         `json:"url,omitempty"`
	Action   string         `json:"action,omitempty"`
	Bid      string         `json:"bid,omitempty"`
	Result   string         `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Append writes v as one JSON line at the end of the file at path, creating the
// file and its directory when missing.
func Append(path string, v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal step: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create step log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open step log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write step log: %w", err)
	}
	return nil
}

// Reset truncates the step log and writes header as its first record.
func Reset(path string, header any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create step log dir: %w", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return fmt.Errorf("truncate step log: %w", err)
	}
	return Append(path, header)
}
