package sink

import (
	"archive/zip"
	"fmt"
	"os"
	"sync"
)

// ZipSink writes exported files into a single zip archive.
type ZipSink struct {
	mu   sync.Mutex
	file *os.File
	zw   *zip.Writer
	used map[string]bool
}

var _ Sink = (*ZipSink)(nil)

// NewZipSink creates the archive file and returns a sink writing into it.
func NewZipSink(path string) (*ZipSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	return &ZipSink{
		file: f,
		zw:   zip.NewWriter(f),
		used: make(map[string]bool),
	}, nil
}

// Save implements Sink. The archive writer is not concurrency-safe, so
// entries are serialized under the sink mutex.
func (s *ZipSink) Save(dir []string, fileName string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel := claimUnique(s.used, dir, fileName)
	w, err := s.zw.Create(rel)
	if err != nil {
		return "", fmt.Errorf("create archive entry %s: %w", rel, err)
	}
	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("write archive entry %s: %w", rel, err)
	}
	return rel, nil
}

// Close finalizes the archive central directory and closes the file.
func (s *ZipSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.zw.Close(); err != nil {
		s.file.Close()
		return fmt.Errorf("finalize archive: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}
