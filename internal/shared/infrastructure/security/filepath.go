// Package security validates user-influenced file paths.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscapes is returned when a path resolves outside its base directory.
var ErrPathEscapes = errors.New("path escapes base directory")

var forbidden = []string{";", "&", "|", "$", "`", "<", ">", "\n", "\r", "\x00"}

// ResolveInDir joins name onto baseDir and returns the absolute result,
// refusing anything that leaves baseDir once cleaned and symlink-resolved.
func ResolveInDir(baseDir, name string) (string, error) {
	if baseDir == "" {
		return "", errors.New("base directory is empty")
	}
	if name == "" {
		return "", errors.New("file name is empty")
	}
	for _, c := range forbidden {
		if strings.Contains(name, c) {
			return "", fmt.Errorf("file name contains forbidden character %q", c)
		}
	}

	base, err := resolve(baseDir)
	if err != nil {
		return "", err
	}
	target, err := resolve(filepath.Join(base, filepath.FromSlash(name)))
	if err != nil {
		return "", err
	}
	if target == base || !strings.HasPrefix(target, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}
	return target, nil
}

// OpenInDir opens name below baseDir after ResolveInDir.
func OpenInDir(baseDir, name string) (*os.File, error) {
	path, err := ResolveInDir(baseDir, name)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path is confined to baseDir above
	return os.Open(path)
}

// SanitizeFileName keeps the base name of an upload and replaces anything
// outside [A-Za-z0-9._-] with '_'.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}

func resolve(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return resolved, nil
}
