// Package audit implements the append-only audit/security log (C10),
// grounded on the source system's compliance logger: one line-delimited
// JSON file per stream, hashed identifiers, a closed event-kind
// enumeration, and size-based rotation.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/safety"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/pkg/utils"
)

// EventKind is the closed set of audit/security event kinds.
type EventKind string

const (
	EventLogin         EventKind = "LOGIN"
	EventLogout        EventKind = "LOGOUT"
	EventSearch        EventKind = "SEARCH"
	EventDownload      EventKind = "DOWNLOAD"
	EventUpload        EventKind = "UPLOAD"
	EventAdminAction   EventKind = "ADMIN_ACTION"
	EventSecurityAlert EventKind = "SECURITY_ALERT"
	EventAccessDenied  EventKind = "ACCESS_DENIED"
	EventError         EventKind = "ERROR"
)

const hashTruncation = 16

// defaultMaxFileSizeBytes is the size-based rotation threshold.
const defaultMaxFileSizeBytes = 50 * 1024 * 1024

// Entry is one audit-log line.
type Entry struct {
	Timestamp   string         `json:"timestamp"`
	Kind        EventKind      `json:"event_type"`
	UserHash    string         `json:"user_hash,omitempty"`
	IPHash      string         `json:"ip_hash,omitempty"`
	SessionHash string         `json:"session_hash,omitempty"`
	Success     bool           `json:"success"`
	Resource    string         `json:"resource,omitempty"`
	Action      string         `json:"action,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Logger is a single-writer, append-only JSONL logger for one stream
// (audit or security). Writes are serialized and flushed per line.
type Logger struct {
	mu          sync.Mutex
	path        string
	file        *os.File
	maxFileSize int64
}

// Open opens (creating if needed) the JSONL file at path for appending.
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &Logger{path: path, file: f, maxFileSize: defaultMaxFileSizeBytes}, nil
}

// Close closes the underlying file handle.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Log writes one entry, hashing user/ip/session identifiers and
// PII-masking every string metadata value, then flushes immediately.
func (l *Logger) Log(kind EventKind, userID, ipAddress, sessionID string, success bool, resource, action string, metadata map[string]any) error {
	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Kind:      kind,
		Success:   success,
		Resource:  resource,
		Action:    action,
		Metadata:  sanitizeMetadata(metadata),
	}
	if userID != "" {
		entry.UserHash = utils.HashIdentifier(userID, hashTruncation)
	}
	if ipAddress != "" {
		entry.IPHash = utils.HashIdentifier(ipAddress, hashTruncation)
	}
	if sessionID != "" {
		entry.SessionHash = utils.HashIdentifier(sessionID, hashTruncation)
	}
	return l.write(entry)
}

func (l *Logger) write(entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeededLocked(); err != nil {
		return err
	}
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return l.file.Sync()
}

func (l *Logger) rotateIfNeededLocked() error {
	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("stat audit log: %w", err)
	}
	if info.Size() < l.maxFileSize {
		return nil
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close audit log for rotation: %w", err)
	}
	rotated := fmt.Sprintf("%s.%s", l.path, time.Now().UTC().Format("20060102T150405"))
	if err := os.Rename(l.path, rotated); err != nil {
		return fmt.Errorf("rotate audit log: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("reopen audit log after rotation: %w", err)
	}
	l.file = f
	return nil
}

// sanitizeMetadata PII-masks string values and reduces non-scalar
// values to their type name, matching the source system's
// _sanitize_details behavior.
func sanitizeMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return nil
	}
	sanitized := make(map[string]any, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case string:
			sanitized[k] = safety.MaskPII(val)
		case int, int32, int64, float32, float64, bool:
			sanitized[k] = val
		default:
			sanitized[k] = fmt.Sprintf("%T", val)
		}
	}
	return sanitized
}
