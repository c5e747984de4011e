package fsutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"lanshare/internal/errs"
)

// MaxNameLen matches NAME_MAX on the common filesystems.
const MaxNameLen = 255

var windowsDevices = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// Sanitize turns a client supplied file name into a single safe path segment.
// Only the final path component survives, whitespace runs become "_", anything
// outside [A-Za-z0-9._-] is dropped and leading/trailing dots and underscores
// are trimmed. An empty result is reported as errs.ErrInvalidName.
func Sanitize(raw string) (string, error) {
	s := norm.NFKD.String(raw)
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)

	if i := strings.LastIndexAny(s, `/\`); i >= 0 {
		s = s[i+1:]
	}
	s = strings.Join(strings.Fields(s), "_")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if allowed(r) {
			b.WriteRune(r)
		}
	}
	s = strings.Trim(b.String(), "._")

	if s == "" {
		return "", fmt.Errorf("%w: %q", errs.ErrInvalidName, raw)
	}
	stem, _, _ := strings.Cut(s, ".")
	if windowsDevices[strings.ToUpper(stem)] {
		s = "_" + s
	}
	if len(s) > MaxNameLen {
		return "", fmt.Errorf("%w: name longer than %d bytes", errs.ErrInvalidName, MaxNameLen)
	}
	return s, nil
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '-', r == '_':
		return true
	}
	return false
}

// JoinWithinRoot returns root/name and rejects anything that would not be a
// direct child of root.
func JoinWithinRoot(rootAbs string, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\\x00") || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", errs.ErrInvalidName, name)
	}
	rootClean := filepath.Clean(rootAbs)
	abs := filepath.Join(rootClean, name)
	if filepath.Dir(abs) != rootClean {
		return "", fmt.Errorf("%w: path escape", errs.ErrInvalidName)
	}
	return abs, nil
}
