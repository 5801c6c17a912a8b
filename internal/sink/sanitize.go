package sink

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// maxNameLength caps a single path component. Long document titles would
// otherwise overflow path limits on common filesystems.
const maxNameLength = 100

// reservedChars are characters that are invalid in file names on at least
// one supported platform.
const reservedChars = `<>:"/\|?*`

// SanitizeName converts an arbitrary title into a portable file or
// directory name. Reserved and control characters become underscores, the
// result is NFC-normalized and length-capped, and an empty result falls
// back to "untitled".
func SanitizeName(name string) string {
	name = norm.NFC.String(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(reservedChars, r) {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}

	// Trailing dots and spaces are rejected on Windows.
	s := strings.Trim(b.String(), " .")
	if len(s) > maxNameLength {
		s = strings.TrimRight(s[:maxNameLength], " .")
	}
	if s == "" {
		return "untitled"
	}
	return s
}

// sanitizePath sanitizes every component of a folder path.
func sanitizePath(path []string) []string {
	clean := make([]string, len(path))
	for i, component := range path {
		clean[i] = SanitizeName(component)
	}
	return clean
}
