package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Sink receives exported files. Implementations are safe for concurrent use.
type Sink interface {
	// Save writes one file and returns the slash-separated path it was
	// stored under, relative to the export root. dir is the folder title
	// path from the export root; fileName is the desired file name
	// including extension. Both are sanitized by the sink. When the name
	// collides with an earlier save in the same directory, a numeric
	// suffix is appended.
	Save(dir []string, fileName string, data []byte) (string, error)

	// Close flushes and releases the underlying storage.
	Close() error
}

// DirSink writes exported files into a directory tree rooted at root.
type DirSink struct {
	root string

	mu   sync.Mutex
	used map[string]bool
}

var _ Sink = (*DirSink)(nil)

// NewDirSink creates the root directory and returns a sink writing under it.
func NewDirSink(root string) (*DirSink, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &DirSink{
		root: root,
		used: make(map[string]bool),
	}, nil
}

// Save implements Sink.
func (s *DirSink) Save(dir []string, fileName string, data []byte) (string, error) {
	rel := s.claim(dir, fileName)

	target := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	return rel, nil
}

// Close implements Sink. Directory writes need no teardown.
func (s *DirSink) Close() error {
	return nil
}

// claim reserves a unique relative path (slash-separated) for the file.
func (s *DirSink) claim(dir []string, fileName string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return claimUnique(s.used, dir, fileName)
}

// claimUnique sanitizes the path, records it in used, and resolves name
// collisions by appending " (n)" before the extension.
func claimUnique(used map[string]bool, dir []string, fileName string) string {
	prefix := strings.Join(sanitizePath(dir), "/")

	name := SanitizeName(fileName)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := name
	for n := 2; ; n++ {
		rel := candidate
		if prefix != "" {
			rel = prefix + "/" + candidate
		}
		key := strings.ToLower(rel)
		if !used[key] {
			used[key] = true
			return rel
		}
		candidate = fmt.Sprintf("%s (%d)%s", base, n, ext)
	}
}
