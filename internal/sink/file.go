package sink

import (
	"context"
	"fmt"
	"os"
	"sync"

	"secevents/internal/domain"
)

// File appends records to a local file and syncs after each one, so a
// record is on disk before the checkpoint moves past it.
type File struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

func OpenFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: file sink needs a path", domain.ErrConfiguration)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &File{f: f, path: path}, nil
}

func (s *File) Write(_ context.Context, record string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.f.WriteString(record + "\n"); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	return nil
}

func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
