// Package archive extracts uploaded project archives after checking that
// every entry stays inside the destination directory.
package archive

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsafePath is returned when an entry would land outside the
	// destination. No file is written when it is returned.
	ErrUnsafePath = errors.New("archive contains unsafe paths")
	// ErrUnsupportedEntry is returned for links and special files.
	ErrUnsupportedEntry = errors.New("archive contains unsupported entry")
	// ErrTooLarge is returned when the archive exceeds the extraction limits.
	ErrTooLarge = errors.New("archive exceeds size limit")
	// ErrUnsupportedFormat is returned by Extract for unknown extensions.
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	// ErrExists is returned when an entry would replace a file that was in
	// the destination before extraction started.
	ErrExists = errors.New("archive entry would overwrite an existing file")
)

// Validate checks every entry name against dest. It fails with
// ErrUnsafePath, naming the first offending entry, when a name is absolute
// or resolves outside dest.
func Validate(dest string, names []string) error {
	root, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}
	for _, name := range names {
		if _, err := resolve(root, name); err != nil {
			return err
		}
	}
	return nil
}

// resolve returns the absolute target of name under root.
func resolve(root, name string) (string, error) {
	// Backslashes are separators on some platforms; treat them as such
	// everywhere so a name cannot mean different things per OS.
	slashed := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(root, filepath.FromSlash(slashed))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}
