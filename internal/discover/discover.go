package discover

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/codescribe-dev/codescribe/internal/lang"
	"github.com/codescribe-dev/codescribe/internal/source"
)

// IgnoreFileName is the per-project ignore file read from the root.
const IgnoreFileName = ".codescribeignore"

// IGNORE_PATTERNS are directory names that never hold project sources.
// Dot-prefixed names are skipped separately.
var IGNORE_PATTERNS = map[string]bool{
	"__pycache__":   true,
	"node_modules":  true,
	"site-packages": true,
}

// FileInfo represents a discovered source file.
type FileInfo struct {
	Path     string        // absolute path
	RelPath  string        // relative to root, slash-separated
	Language lang.Language // detected language
}

// Options configures file discovery.
type Options struct {
	IgnoreFile   string // path to an ignore file; defaults to <root>/.codescribeignore
	MaxFileBytes int64  // files larger than this are skipped; 0 means no limit
}

// shouldSkip reports whether a path component excludes the entry.
func shouldSkip(name, rel string, extraIgnore []string) bool {
	if strings.HasPrefix(name, ".") || IGNORE_PATTERNS[name] {
		return true
	}
	for _, pattern := range extraIgnore {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// Discover walks root and returns its Python files sorted by RelPath.
func Discover(ctx context.Context, root string, opts *Options) ([]FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var extraIgnore []string
	if opts != nil && opts.IgnoreFile != "" {
		extraIgnore, _ = loadIgnoreFile(opts.IgnoreFile)
	} else {
		extraIgnore, _ = loadIgnoreFile(filepath.Join(root, IgnoreFileName))
	}

	var files []FileInfo
	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if shouldSkip(info.Name(), rel, extraIgnore) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || shouldSkip(info.Name(), rel, extraIgnore) {
			return nil
		}

		l, ok := lang.LanguageForExtension(filepath.Ext(path))
		if !ok || l != lang.Python {
			return nil
		}
		if opts != nil && opts.MaxFileBytes > 0 && info.Size() > opts.MaxFileBytes {
			slog.Warn("discover.skip.large", "path", rel, "size", info.Size())
			return nil
		}
		files = append(files, FileInfo{Path: path, RelPath: rel, Language: l})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// CollectPython discovers the Python files under root and reads them into
// units keyed by slash-separated relative path. Unreadable files and files
// that are not valid UTF-8 are skipped.
func CollectPython(ctx context.Context, root string, opts *Options) ([]source.Unit, error) {
	files, err := Discover(ctx, root, opts)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}

	units := make([]source.Unit, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(f.Path)
		if err != nil {
			slog.Warn("discover.read.err", "path", f.RelPath, "err", err)
			continue
		}
		if !utf8.Valid(data) {
			slog.Warn("discover.skip.encoding", "path", f.RelPath)
			continue
		}
		units = append(units, source.Unit{Path: f.RelPath, Text: data})
	}
	return units, nil
}

func loadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, strings.TrimSuffix(line, "/"))
		}
	}
	return patterns, scanner.Err()
}
