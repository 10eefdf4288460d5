// internal/storage/archive/localfs_test.go
package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/newthinker/archivist/internal/core"
)

func TestFilesystemDriver_ImplementsDriver(t *testing.T) {
	var _ Driver = (*FilesystemDriver)(nil)
}

func newTestFS(t *testing.T) (*FilesystemDriver, string, string) {
	t.Helper()
	dir := t.TempDir()
	active := filepath.Join(dir, "uploads")
	archived := filepath.Join(dir, "archive")
	if err := os.MkdirAll(active, 0755); err != nil {
		t.Fatal(err)
	}
	d, err := NewFilesystem(FilesystemConfig{ActiveRoot: active, ArchiveRoot: archived}, nil)
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	return d, active, archived
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0640); err != nil {
		t.Fatal(err)
	}
}

func TestNewFilesystem_RejectsBadRoots(t *testing.T) {
	tests := []struct {
		name string
		cfg  FilesystemConfig
	}{
		{"relative active", FilesystemConfig{ActiveRoot: "uploads", ArchiveRoot: "/archive"}},
		{"relative archive", FilesystemConfig{ActiveRoot: "/uploads", ArchiveRoot: "archive"}},
		{"same root", FilesystemConfig{ActiveRoot: "/data", ArchiveRoot: "/data/"}},
		{"nested", FilesystemConfig{ActiveRoot: "/data", ArchiveRoot: "/data/archive"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFilesystem(tt.cfg, nil)
			if !errors.Is(err, core.ErrConfigInvalid) {
				t.Errorf("expected CONFIG_INVALID, got %v", err)
			}
		})
	}
}

func TestFilesystemDriver_Locate(t *testing.T) {
	d, active, archived := newTestFS(t)

	loc, err := d.Locate(core.ManagedObject{
		ID:       "f1",
		Location: core.Location{FilePath: filepath.Join(active, "ab", "cd", "f1.bin")},
	}, core.OperationArchive)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	fl := loc.(FilesystemLocator)
	if fl.RelativePath != filepath.Join("ab", "cd", "f1.bin") {
		t.Errorf("relative path = %q", fl.RelativePath)
	}
	if fl.ArchivePath() != filepath.Join(archived, "ab", "cd", "f1.bin") {
		t.Errorf("archive path = %q", fl.ArchivePath())
	}
}

func TestFilesystemDriver_Locate_UnarchiveAcceptsArchivePath(t *testing.T) {
	d, _, archived := newTestFS(t)

	obj := core.ManagedObject{ID: "f1", Location: core.Location{FilePath: filepath.Join(archived, "x", "f1")}}

	if _, err := d.Locate(obj, core.OperationArchive); !errors.Is(err, core.ErrLocatorDerivationFailed) {
		t.Errorf("archive of archive-root path: expected LOCATOR_DERIVATION_FAILED, got %v", err)
	}
	loc, err := d.Locate(obj, core.OperationUnarchive)
	if err != nil {
		t.Fatalf("unarchive Locate: %v", err)
	}
	if loc.String() != filepath.Join("x", "f1") {
		t.Errorf("got %q", loc.String())
	}
}

func TestFilesystemDriver_Locate_RejectsForeignPaths(t *testing.T) {
	d, active, _ := newTestFS(t)

	paths := []string{
		"",
		"relative/file",
		"/etc/passwd",
		active,
		active + "-other/file",
		filepath.Join(active, "..", "elsewhere", "file"),
	}
	for _, p := range paths {
		_, err := d.Locate(core.ManagedObject{ID: "x", Location: core.Location{FilePath: p}}, core.OperationArchive)
		if !errors.Is(err, core.ErrLocatorDerivationFailed) {
			t.Errorf("Locate(%q): expected LOCATOR_DERIVATION_FAILED, got %v", p, err)
		}
	}
}

func TestFilesystemDriver_RoundTrip(t *testing.T) {
	d, active, archived := newTestFS(t)
	ctx := context.Background()

	src := filepath.Join(active, "2024", "01", "a.txt")
	writeFile(t, src, "payload")

	loc, err := d.Locate(core.ManagedObject{ID: "a", Location: core.Location{FilePath: src}}, core.OperationArchive)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}

	if err := d.MoveToArchive(ctx, loc); err != nil {
		t.Fatalf("MoveToArchive: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source should be gone after archive")
	}
	got, err := os.ReadFile(filepath.Join(archived, "2024", "01", "a.txt"))
	if err != nil {
		t.Fatalf("reading archived file: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("archived content = %q", got)
	}
	if st, _ := d.Inspect(ctx, loc); st != core.StatusArchived {
		t.Errorf("Inspect after archive = %q", st)
	}

	if err := d.MoveToActive(ctx, loc); err != nil {
		t.Fatalf("MoveToActive: %v", err)
	}
	got, err = os.ReadFile(src)
	if err != nil {
		t.Fatalf("reading restored file: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("restored content = %q", got)
	}
	if st, _ := d.Inspect(ctx, loc); st != core.StatusProcessed {
		t.Errorf("Inspect after unarchive = %q", st)
	}
}

func TestFilesystemDriver_MissingSource(t *testing.T) {
	d, active, _ := newTestFS(t)

	loc, _ := d.Locate(core.ManagedObject{ID: "m", Location: core.Location{FilePath: filepath.Join(active, "missing.txt")}}, core.OperationArchive)
	err := d.MoveToArchive(context.Background(), loc)
	if !errors.Is(err, core.ErrMoveFailed) {
		t.Errorf("expected MOVE_FAILED, got %v", err)
	}
}

func TestFilesystemDriver_AlreadyMoved(t *testing.T) {
	d, active, archived := newTestFS(t)

	writeFile(t, filepath.Join(archived, "done.txt"), "x")
	loc, _ := d.Locate(core.ManagedObject{ID: "d", Location: core.Location{FilePath: filepath.Join(active, "done.txt")}}, core.OperationArchive)

	if err := d.MoveToArchive(context.Background(), loc); err != nil {
		t.Errorf("expected nil for a file already in the archive tier, got %v", err)
	}
}

func TestFilesystemDriver_RefusesOverwrite(t *testing.T) {
	d, active, archived := newTestFS(t)

	writeFile(t, filepath.Join(active, "dup.txt"), "new")
	writeFile(t, filepath.Join(archived, "dup.txt"), "old")
	loc, _ := d.Locate(core.ManagedObject{ID: "d", Location: core.Location{FilePath: filepath.Join(active, "dup.txt")}}, core.OperationArchive)

	if err := d.MoveToArchive(context.Background(), loc); !errors.Is(err, core.ErrMoveFailed) {
		t.Errorf("expected MOVE_FAILED, got %v", err)
	}
	got, _ := os.ReadFile(filepath.Join(archived, "dup.txt"))
	if string(got) != "old" {
		t.Error("archived file must not be overwritten")
	}
	if _, err := d.Inspect(context.Background(), loc); !errors.Is(err, core.ErrInspectFailed) {
		t.Errorf("Inspect with both copies: expected INSPECT_FAILED, got %v", err)
	}
}

func TestFilesystemDriver_PathNotUnderRoot(t *testing.T) {
	d, active, archived := newTestFS(t)
	ctx := context.Background()

	escaping := FilesystemLocator{ActiveRoot: active, ArchiveRoot: archived, RelativePath: "../../etc/passwd"}
	if err := d.MoveToArchive(ctx, escaping); !errors.Is(err, core.ErrPathNotUnderRoot) {
		t.Errorf("escaping locator: expected PATH_NOT_UNDER_ROOT, got %v", err)
	}

	stale := FilesystemLocator{ActiveRoot: "/old/uploads", ArchiveRoot: archived, RelativePath: "a"}
	if err := d.MoveToArchive(ctx, stale); !errors.Is(err, core.ErrPathNotUnderRoot) {
		t.Errorf("stale locator: expected PATH_NOT_UNDER_ROOT, got %v", err)
	}

	if err := d.MoveToActive(ctx, ObjectStoreLocator{Bucket: "b", Key: "k"}); !errors.Is(err, core.ErrPathNotUnderRoot) {
		t.Errorf("foreign locator: expected PATH_NOT_UNDER_ROOT, got %v", err)
	}
}

func TestFilesystemDriver_CrossDeviceFallback(t *testing.T) {
	d, active, archived := newTestFS(t)
	d.rename = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}

	src := filepath.Join(active, "big.bin")
	writeFile(t, src, "cross-device bytes")
	before, _ := os.Stat(src)

	loc, _ := d.Locate(core.ManagedObject{ID: "b", Location: core.Location{FilePath: src}}, core.OperationArchive)
	if err := d.MoveToArchive(context.Background(), loc); err != nil {
		t.Fatalf("MoveToArchive: %v", err)
	}

	dst := filepath.Join(archived, "big.bin")
	after, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat destination: %v", err)
	}
	if after.Mode().Perm() != before.Mode().Perm() {
		t.Errorf("mode = %v, want %v", after.Mode().Perm(), before.Mode().Perm())
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Errorf("mtime = %v, want %v", after.ModTime(), before.ModTime())
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source should be removed after cross-device copy")
	}

	entries, _ := os.ReadDir(archived)
	if len(entries) != 1 {
		t.Errorf("expected only the moved file in archive root, got %d entries", len(entries))
	}
}

func TestFilesystemDriver_OtherRenameErrors(t *testing.T) {
	d, active, _ := newTestFS(t)
	d.rename = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EACCES}
	}

	src := filepath.Join(active, "locked.bin")
	writeFile(t, src, "x")
	loc, _ := d.Locate(core.ManagedObject{ID: "l", Location: core.Location{FilePath: src}}, core.OperationArchive)

	if err := d.MoveToArchive(context.Background(), loc); !errors.Is(err, core.ErrMoveFailed) {
		t.Errorf("expected MOVE_FAILED, got %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("source must stay in place when rename fails")
	}
}
