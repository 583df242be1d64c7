package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// File writes one JSON line per user record. Records accumulate in a
// buffered writer; Flush drains the buffer and syncs the file so results
// survive the process.
type File struct {
	mu      sync.Mutex
	f       *os.File
	w       *bufio.Writer
	enc     *json.Encoder
	flushed bool
}

// NewFile creates (truncating) the results file at path.
func NewFile(path string) (*File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating results file: %w", err)
	}
	w := bufio.NewWriter(f)
	return &File{f: f, w: w, enc: json.NewEncoder(w)}, nil
}

// Record appends one JSON line. Encoding errors surface at flush time
// through the writer state, not here; a user record is fire-and-forget.
func (s *File) Record(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushed {
		return
	}
	_ = s.enc.Encode(r)
}

// Flush drains buffered records to disk. Idempotent: the second and later
// calls acknowledge without re-writing.
func (s *File) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushed {
		return nil
	}
	s.flushed = true
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flushing results file: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("syncing results file: %w", err)
	}
	return nil
}

// Close releases the underlying file. Call after the run has fully
// terminated.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
