package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DatePlaceholder in a file sink path is replaced with the record's UTC
// day, giving one JSONL file per day.
const DatePlaceholder = "{date}"

// FileSink appends one JSON line per analysis. Each line is written with a
// single write call so a crash never leaves half a record behind.
type FileSink struct {
	pattern string

	mu     sync.Mutex
	day    string
	file   *os.File
	closed bool
}

func NewFileSink(path string) (*FileSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("file sink: empty path")
	}
	s := &FileSink{pattern: path}
	if !strings.Contains(path, DatePlaceholder) {
		if err := s.open(""); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *FileSink) Name() string { return "file_jsonl:" + s.pattern }

func (s *FileSink) pathFor(day string) string {
	return strings.ReplaceAll(s.pattern, DatePlaceholder, day)
}

// open must be called with mu held (or before the sink is shared).
func (s *FileSink) open(day string) error {
	path := s.pathFor(day)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("file sink: mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("file sink: open %s: %w", path, err)
	}
	if s.file != nil {
		_ = s.file.Close()
	}
	s.file, s.day = f, day
	return nil
}

func (s *FileSink) Deliver(_ context.Context, rec *Record) error {
	if rec == nil {
		return nil
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("file sink: encode %s: %w", rec.ID, err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("file sink: closed")
	}
	if strings.Contains(s.pattern, DatePlaceholder) {
		ts := rec.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if day := ts.UTC().Format("2006-01-02"); day != s.day || s.file == nil {
			if err := s.open(day); err != nil {
				return err
			}
		}
	}
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("file sink: write %s: %w", rec.ID, err)
	}
	return nil
}

func (s *FileSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
