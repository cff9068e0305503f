package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type member struct {
	name string
	body string
	link string
}

func writeZip(t *testing.T, members []member) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, m := range members {
		w, err := zw.Create(m.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(m.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeTarGz(t *testing.T, members []member) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.tar.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for _, m := range members {
		hdr := &tar.Header{Name: m.name, Mode: 0o644, Size: int64(len(m.body)), Typeflag: tar.TypeReg}
		if m.link != "" {
			hdr = &tar.Header{Name: m.name, Linkname: m.link, Typeflag: tar.TypeSymlink}
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if m.link == "" {
			if _, err := tw.Write([]byte(m.body)); err != nil {
				t.Fatal(err)
			}
		}
	}
	for _, c := range []interface{ Close() error }{tw, gw, f} {
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	return n
}

func TestValidate(t *testing.T) {
	dest := t.TempDir()
	tests := []struct {
		name string
		ok   bool
	}{
		{"app/main.py", true},
		{"./app/../main.py", true},
		{"dir/", true},
		{"../../evil.txt", false},
		{"app/../../evil.txt", false},
		{"/etc/passwd", false},
		{`..\evil.txt`, false},
		{"..", false},
	}
	for _, tt := range tests {
		err := Validate(dest, []string{tt.name})
		if tt.ok && err != nil {
			t.Errorf("Validate(%q): unexpected error %v", tt.name, err)
		}
		if !tt.ok && !errors.Is(err, ErrUnsafePath) {
			t.Errorf("Validate(%q): expected ErrUnsafePath, got %v", tt.name, err)
		}
	}
}

func TestValidate_SiblingPrefix(t *testing.T) {
	parent := t.TempDir()
	dest := filepath.Join(parent, "dest")
	if err := Validate(dest, []string{"../dest-evil/x.py"}); !errors.Is(err, ErrUnsafePath) {
		t.Errorf("sibling directory sharing the prefix accepted: %v", err)
	}
}

func TestExtractZip_TraversalRejected(t *testing.T) {
	path := writeZip(t, []member{
		{name: "ok.py", body: "def f():\n    pass\n"},
		{name: "../../evil.txt", body: "pwned"},
	})
	dest := filepath.Join(t.TempDir(), "out")
	n, err := ExtractZip(path, dest)
	if !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("expected ErrUnsafePath, got %v", err)
	}
	if n != 0 || countFiles(t, dest) != 0 {
		t.Errorf("files written despite rejection: n=%d", n)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(filepath.Dir(dest)), "evil.txt")); err == nil {
		t.Error("evil.txt escaped the destination")
	}
}

func TestExtractZip_Success(t *testing.T) {
	path := writeZip(t, []member{
		{name: "pkg/", body: ""},
		{name: "pkg/a.py", body: "def a():\n    b()\n"},
		{name: "b.py", body: "def b():\n    pass\n"},
	})
	dest := t.TempDir()
	n, err := ExtractZip(path, dest)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("files: %d", n)
	}
	data, err := os.ReadFile(filepath.Join(dest, "pkg", "a.py"))
	if err != nil || string(data) != "def a():\n    b()\n" {
		t.Errorf("pkg/a.py: %q, %v", data, err)
	}
}

func TestExtractTarGz(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		path := writeTarGz(t, []member{{name: "src/m.py", body: "x = 1\n"}})
		dest := t.TempDir()
		n, err := ExtractTarGz(path, dest)
		if err != nil || n != 1 {
			t.Fatalf("n=%d err=%v", n, err)
		}
	})
	t.Run("traversal", func(t *testing.T) {
		path := writeTarGz(t, []member{{name: "a.py", body: "x"}, {name: "../../evil.txt", body: "x"}})
		dest := t.TempDir()
		if _, err := ExtractTarGz(path, dest); !errors.Is(err, ErrUnsafePath) {
			t.Fatalf("expected ErrUnsafePath, got %v", err)
		}
		if countFiles(t, dest) != 0 {
			t.Error("files written despite rejection")
		}
	})
	t.Run("symlink", func(t *testing.T) {
		path := writeTarGz(t, []member{{name: "link", link: "/etc/passwd"}})
		if _, err := ExtractTarGz(path, t.TempDir()); !errors.Is(err, ErrUnsupportedEntry) {
			t.Fatalf("expected ErrUnsupportedEntry, got %v", err)
		}
	})
}

func TestExtract_Limits(t *testing.T) {
	path := writeZip(t, []member{{name: "big.py", body: string(make([]byte, 100))}})
	x := &Extractor{MaxBytes: 10}
	dest := t.TempDir()
	if _, err := x.ExtractZip(path, dest); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if countFiles(t, dest) != 0 {
		t.Error("files written despite size limit")
	}

	x = &Extractor{MaxFiles: 1}
	path = writeZip(t, []member{{name: "a.py"}, {name: "b.py"}})
	if _, err := x.ExtractZip(path, t.TempDir()); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge for file count, got %v", err)
	}
}

func TestExtract_KeepsExistingFiles(t *testing.T) {
	dest := t.TempDir()
	keep := filepath.Join(dest, "keep.txt")
	if err := os.WriteFile(keep, []byte("mine"), 0o600); err != nil {
		t.Fatal(err)
	}
	path := writeZip(t, []member{
		{name: "new/a.py", body: "x = 1\n"},
		{name: "b.py", body: "y = 2\n"},
		{name: "keep.txt", body: "theirs"},
	})
	n, err := ExtractZip(path, dest)
	if !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got n=%d err=%v", n, err)
	}
	data, err := os.ReadFile(keep)
	if err != nil || string(data) != "mine" {
		t.Errorf("existing file changed: %q, %v", data, err)
	}
	if countFiles(t, dest) != 1 {
		t.Errorf("rollback left %d files, want only keep.txt", countFiles(t, dest))
	}
	if _, err := os.Stat(filepath.Join(dest, "new")); !os.IsNotExist(err) {
		t.Errorf("created directory survived rollback: %v", err)
	}
}

func TestExtract_RepeatedEntryReplacesOwnCopy(t *testing.T) {
	path := writeTarGz(t, []member{{name: "a.py", body: "old"}, {name: "a.py", body: "new"}})
	dest := t.TempDir()
	n, err := ExtractTarGz(path, dest)
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if data, _ := os.ReadFile(filepath.Join(dest, "a.py")); string(data) != "new" {
		t.Errorf("a.py: %q", data)
	}
}

func TestExtract_Dispatch(t *testing.T) {
	zipPath := writeZip(t, []member{{name: "a.py", body: "x = 1\n"}})
	if n, err := Extract(zipPath, t.TempDir()); err != nil || n != 1 {
		t.Errorf("zip dispatch: n=%d err=%v", n, err)
	}
	if _, err := Extract("project.rar", t.TempDir()); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}
