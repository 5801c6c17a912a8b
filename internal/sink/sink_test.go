package sink

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestSanitizeName covers reserved characters, normalization and fallbacks.
func TestSanitizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Meeting Notes", "Meeting Notes"},
		{"reserved characters", `Q3: plan/review?`, "Q3_ plan_review_"},
		{"control characters", "a\tb\nc", "a_b_c"},
		{"trailing dots and spaces", "report. ", "report"},
		{"empty", "", "untitled"},
		{"only dots", "...", "untitled"},
		{"long title truncated", strings.Repeat("x", 300), strings.Repeat("x", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeName(tt.input); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestDirSinkSave verifies files land under the sanitized folder path.
func TestDirSinkSave(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s, err := NewDirSink(root)
	if err != nil {
		t.Fatal(err)
	}

	rel, err := s.Save([]string{"Private", "Q3: plans"}, "Roadmap.html", []byte("<html>"))
	if err != nil {
		t.Fatal(err)
	}
	if rel != "Private/Q3_ plans/Roadmap.html" {
		t.Errorf("unexpected resolved path %q", rel)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(root, "Private", "Q3_ plans", "Roadmap.html"))
	if err != nil {
		t.Fatalf("exported file missing: %v", err)
	}
	if string(data) != "<html>" {
		t.Errorf("unexpected content %q", data)
	}
}

// TestDirSinkCollisions verifies colliding names get numeric suffixes.
func TestDirSinkCollisions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s, err := NewDirSink(root)
	if err != nil {
		t.Fatal(err)
	}

	rels := make([]string, 0, 3)
	for i := range 3 {
		rel, err := s.Save([]string{"Shared"}, "Notes.html", []byte{byte(i)})
		if err != nil {
			t.Fatal(err)
		}
		rels = append(rels, rel)
	}
	// Same title in another folder must not collide.
	if _, err := s.Save([]string{"Private"}, "Notes.html", nil); err != nil {
		t.Fatal(err)
	}

	wantRels := []string{"Shared/Notes.html", "Shared/Notes (2).html", "Shared/Notes (3).html"}
	for i, w := range wantRels {
		if rels[i] != w {
			t.Errorf("expected resolved path %q, got %q", w, rels[i])
		}
	}

	for _, name := range []string{"Notes.html", "Notes (2).html", "Notes (3).html"} {
		if _, err := os.Stat(filepath.Join(root, "Shared", name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "Private", "Notes.html")); err != nil {
		t.Errorf("expected unsuffixed name in distinct folder: %v", err)
	}
}

// TestZipSink verifies archive entries carry the sanitized slash paths.
func TestZipSink(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "export.zip")
	s, err := NewZipSink(path)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Save([]string{"Private", "Docs"}, "Plan.html", []byte("body")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save([]string{"Private", "Docs"}, "Plan.html", []byte("dup")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	want := []string{"Private/Docs/Plan.html", "Private/Docs/Plan (2).html"}
	for _, w := range want {
		found := false
		for _, n := range names {
			if n == w {
				found = true
			}
		}
		if !found {
			t.Errorf("archive missing entry %s, have %v", w, names)
		}
	}
}
