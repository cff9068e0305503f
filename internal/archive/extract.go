package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Default extraction limits.
const (
	DefaultMaxBytes = 512 << 20
	DefaultMaxFiles = 100000
)

// Extractor unpacks archives within fixed limits.
type Extractor struct {
	MaxBytes int64 // total uncompressed bytes
	MaxFiles int
}

var defaultExtractor = &Extractor{MaxBytes: DefaultMaxBytes, MaxFiles: DefaultMaxFiles}

// ExtractZip unpacks a zip archive into dest with the default limits.
func ExtractZip(path, dest string) (int, error) { return defaultExtractor.ExtractZip(path, dest) }

// ExtractTarGz unpacks a gzip-compressed tarball into dest with the default limits.
func ExtractTarGz(path, dest string) (int, error) { return defaultExtractor.ExtractTarGz(path, dest) }

// Extract picks the format from the file extension.
func Extract(path, dest string) (int, error) { return defaultExtractor.Extract(path, dest) }

// Extract picks the format from the file extension (.zip, .tar.gz, .tgz).
func (x *Extractor) Extract(path, dest string) (int, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return x.ExtractZip(path, dest)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return x.ExtractTarGz(path, dest)
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
}

// entry is a validated archive member ready to be written.
type entry struct {
	name   string
	target string
	dir    bool
	size   int64
}

// plan validates all members up front, so a bad entry means nothing is written.
func (x *Extractor) plan(dest string, members []entry) ([]entry, error) {
	root, err := filepath.Abs(dest)
	if err != nil {
		return nil, fmt.Errorf("resolve destination: %w", err)
	}
	if x.MaxFiles > 0 && len(members) > x.MaxFiles {
		return nil, fmt.Errorf("%w: %d entries", ErrTooLarge, len(members))
	}
	var total int64
	for i := range members {
		target, err := resolve(root, members[i].name)
		if err != nil {
			return nil, err
		}
		members[i].target = target
		total += members[i].size
		if x.MaxBytes > 0 && total > x.MaxBytes {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, x.MaxBytes)
		}
	}
	return members, nil
}

// ExtractZip unpacks a zip archive into dest and returns the number of
// regular files written.
func (x *Extractor) ExtractZip(path, dest string) (int, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return 0, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	members := make([]entry, 0, len(r.File))
	for _, f := range r.File {
		mode := f.Mode()
		if mode&os.ModeSymlink != 0 || (!mode.IsRegular() && !mode.IsDir()) {
			return 0, fmt.Errorf("%w: %s", ErrUnsupportedEntry, f.Name)
		}
		members = append(members, entry{
			name: f.Name,
			dir:  mode.IsDir(),
			size: int64(f.UncompressedSize64),
		})
	}
	plan, err := x.plan(dest, members)
	if err != nil {
		return 0, err
	}

	w := x.newWriter()
	for i, f := range r.File {
		if err := w.write(plan[i], func() (io.ReadCloser, error) { return f.Open() }); err != nil {
			w.rollback()
			return 0, err
		}
	}
	slog.Info("archive.extract", "format", "zip", "files", w.files, "bytes", w.written)
	return w.files, nil
}

// ExtractTarGz unpacks a .tar.gz archive into dest and returns the number
// of regular files written. The stream is read twice: once to validate,
// once to write.
func (x *Extractor) ExtractTarGz(path, dest string) (int, error) {
	var members []entry
	err := walkTarGz(path, func(hdr *tar.Header, _ io.Reader) error {
		switch hdr.Typeflag {
		case tar.TypeReg, tar.TypeDir:
			members = append(members, entry{name: hdr.Name, dir: hdr.Typeflag == tar.TypeDir, size: hdr.Size})
			return nil
		case tar.TypeXGlobalHeader:
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnsupportedEntry, hdr.Name)
	})
	if err != nil {
		return 0, err
	}
	plan, err := x.plan(dest, members)
	if err != nil {
		return 0, err
	}

	w := x.newWriter()
	i := 0
	err = walkTarGz(path, func(hdr *tar.Header, body io.Reader) error {
		if hdr.Typeflag != tar.TypeReg && hdr.Typeflag != tar.TypeDir {
			return nil
		}
		if i >= len(plan) || plan[i].name != hdr.Name {
			return fmt.Errorf("tar: archive changed during extraction")
		}
		e := plan[i]
		i++
		return w.write(e, func() (io.ReadCloser, error) { return io.NopCloser(body), nil })
	})
	if err != nil {
		w.rollback()
		return 0, err
	}
	slog.Info("archive.extract", "format", "tar.gz", "files", w.files, "bytes", w.written)
	return w.files, nil
}

func walkTarGz(path string, fn func(*tar.Header, io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open tarball: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}

// writer tracks what it created so a failed extraction can be undone.
type writer struct {
	maxBytes int64
	written  int64
	files    int
	// created lists paths this writer made, for rollback. Files are also
	// in owned so a repeated entry may replace its earlier copy.
	created []string
	owned   map[string]bool
}

func (x *Extractor) newWriter() *writer {
	return &writer{maxBytes: x.MaxBytes, owned: make(map[string]bool)}
}

func (w *writer) write(e entry, open func() (io.ReadCloser, error)) error {
	if e.dir {
		if err := w.mkdirAll(e.target); err != nil {
			return fmt.Errorf("create dir %s: %w", e.name, err)
		}
		return nil
	}
	if err := w.mkdirAll(filepath.Dir(e.target)); err != nil {
		return fmt.Errorf("create dir for %s: %w", e.name, err)
	}

	src, err := open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", e.name, err)
	}
	defer src.Close()

	flags := os.O_CREATE | os.O_WRONLY | os.O_EXCL
	if w.owned[e.target] {
		flags = os.O_WRONLY | os.O_TRUNC
	}
	out, err := os.OpenFile(e.target, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrExists, e.name)
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", e.name, err)
	}
	fresh := !w.owned[e.target]
	if fresh {
		w.owned[e.target] = true
		w.created = append(w.created, e.target)
	}

	// Declared sizes can lie; the copy itself is bounded too.
	reader := io.Reader(src)
	if w.maxBytes > 0 {
		reader = io.LimitReader(src, w.maxBytes-w.written+1)
	}
	n, err := io.Copy(out, reader)
	w.written += n
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", e.name, err)
	}
	if w.maxBytes > 0 && w.written > w.maxBytes {
		return fmt.Errorf("%w: more than %d bytes", ErrTooLarge, w.maxBytes)
	}
	if fresh {
		w.files++
	}
	return nil
}

func (w *writer) mkdirAll(dir string) error {
	// Record the outermost directory this call creates.
	top := ""
	for d := dir; ; d = filepath.Dir(d) {
		if _, err := os.Stat(d); err == nil {
			break
		}
		top = d
		if filepath.Dir(d) == d {
			break
		}
	}
	if top == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	w.created = append(w.created, top)
	return nil
}

// rollback removes created paths, newest first.
func (w *writer) rollback() {
	for i := len(w.created) - 1; i >= 0; i-- {
		_ = os.RemoveAll(w.created[i])
	}
	slog.Warn("archive.rollback", "paths", len(w.created))
}
