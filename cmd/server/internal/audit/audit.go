// Package audit records meeting and account operations as a JSONL trail
// with size-based rotation.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Action identifies an audited operation.
type Action string

const (
	ActionStartMeeting     Action = "start_meeting"
	ActionEndMeeting       Action = "end_meeting"
	ActionAddMessage       Action = "add_message"
	ActionCreateTask       Action = "create_task"
	ActionUpdateTaskStatus Action = "update_task_status"
	ActionLogin            Action = "login"
	ActionCreateUser       Action = "create_user"
	ActionChangePassword   Action = "change_password"
)

// Entry is one audit record.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	Operator   string    `json:"operator"`
	Action     Action    `json:"action"`
	ResourceID string    `json:"resource_id"`
	Details    string    `json:"details,omitempty"`
}

// Logger appends audit entries. Implementations must be safe for
// concurrent use.
type Logger interface {
	Log(operator string, action Action, resourceID, details string) error
}

// FileLogger writes entries to audit.jsonl under baseDir, rotated by
// size and age.
type FileLogger struct {
	mu     sync.Mutex
	writer *lumberjack.Logger
}

// NewFileLogger creates a rotating JSONL audit logger rooted at baseDir.
func NewFileLogger(baseDir string) (*FileLogger, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit logs directory: %w", err)
	}
	return &FileLogger{
		writer: &lumberjack.Logger{
			Filename:   filepath.Join(baseDir, "audit.jsonl"),
			MaxSize:    50, // megabytes
			MaxBackups: 10,
			MaxAge:     90, // days
			Compress:   true,
		},
	}, nil
}

// Log appends one entry.
func (f *FileLogger) Log(operator string, action Action, resourceID, details string) error {
	entry := Entry{
		Timestamp:  time.Now().UTC(),
		Operator:   operator,
		Action:     action,
		ResourceID: resourceID,
		Details:    details,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying log file.
func (f *FileLogger) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writer.Close()
}

// Nop discards every entry. Used in tests.
type Nop struct{}

func (Nop) Log(string, Action, string, string) error { return nil }
