package catalog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// StatusLog is an append-only JSONL file of job attempt records. One line
// per record; the file is never rewritten, only appended to, so prior runs
// remain inspectable.
type StatusLog struct {
	mu   sync.Mutex
	file *os.File
}

// OpenStatusLog opens (creating if needed) the status log for appending.
func OpenStatusLog(path string) (*StatusLog, error) {
	if path == "" {
		return nil, fmt.Errorf("status log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create status log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open status log %s: %w", path, err)
	}
	return &StatusLog{file: f}, nil
}

// Append writes one job record as a JSON line.
func (l *StatusLog) Append(rec JobRecord) error {
	return l.appendLine(rec, "job record")
}

// AppendProgress writes an end-of-session progress summary as a JSON line.
// Session lines carry no job_type, which is how readers tell the two record
// shapes apart.
func (l *StatusLog) AppendProgress(p SessionProgress) error {
	return l.appendLine(p, "session progress")
}

func (l *StatusLog) appendLine(rec any, what string) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", what, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("append %s: %w", what, err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (l *StatusLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close status log: %w", err)
	}
	return nil
}

// ReadStatusLog loads every job record from a status log file, skipping
// session progress lines. A missing file yields an empty slice.
func ReadStatusLog(path string) ([]JobRecord, error) {
	var records []JobRecord
	err := scanStatusLog(path, func(line []byte) error {
		var rec JobRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("decode status log line: %w", err)
		}
		if rec.JobType == "" {
			return nil
		}
		records = append(records, rec)
		return nil
	})
	return records, err
}

// ReadSessions loads every session progress summary from a status log file,
// oldest first. A missing file yields an empty slice.
func ReadSessions(path string) ([]SessionProgress, error) {
	var sessions []SessionProgress
	err := scanStatusLog(path, func(line []byte) error {
		var probe struct {
			JobType JobType `json:"job_type"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			return fmt.Errorf("decode status log line: %w", err)
		}
		if probe.JobType != "" {
			return nil
		}
		var p SessionProgress
		if err := json.Unmarshal(line, &p); err != nil {
			return fmt.Errorf("decode session progress line: %w", err)
		}
		sessions = append(sessions, p)
		return nil
	})
	return sessions, err
}

func scanStatusLog(path string, visit func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open status log %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := visit(line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan status log: %w", err)
	}
	return nil
}

// FilterErrors returns only failed records, preserving order.
func FilterErrors(records []JobRecord) []JobRecord {
	var out []JobRecord
	for _, rec := range records {
		if rec.Outcome == OutcomeFailed {
			out = append(out, rec)
		}
	}
	return out
}
