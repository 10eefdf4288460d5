// internal/storage/archive/localfs.go
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/newthinker/archivist/internal/core"
	"go.uber.org/zap"
)

// FilesystemConfig holds the two tier roots of a filesystem backend
type FilesystemConfig struct {
	ActiveRoot  string
	ArchiveRoot string
}

// FilesystemDriver implements Driver by moving files between two directory trees
type FilesystemDriver struct {
	activeRoot  string
	archiveRoot string
	logger      *zap.Logger

	rename func(oldpath, newpath string) error
}

// NewFilesystem creates a filesystem driver. Both roots must be absolute and
// must not contain one another.
func NewFilesystem(cfg FilesystemConfig, logger *zap.Logger) (*FilesystemDriver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !filepath.IsAbs(cfg.ActiveRoot) || !filepath.IsAbs(cfg.ArchiveRoot) {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("roots must be absolute, got %q and %q", cfg.ActiveRoot, cfg.ArchiveRoot))
	}
	active := filepath.Clean(cfg.ActiveRoot)
	archived := filepath.Clean(cfg.ArchiveRoot)
	if active == archived || within(active, archived) || within(archived, active) {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("roots %q and %q overlap", active, archived))
	}

	return &FilesystemDriver{
		activeRoot:  active,
		archiveRoot: archived,
		logger:      logger.With(zap.String("backend", BackendFilesystem)),
		rename:      os.Rename,
	}, nil
}

func (f *FilesystemDriver) Name() string { return BackendFilesystem }

// Locate derives the relative path of obj. Archiving requires the file path to
// be under the active root; unarchiving also accepts a path under the archive root.
func (f *FilesystemDriver) Locate(obj core.ManagedObject, op core.Operation) (Locator, error) {
	path := obj.Location.FilePath
	if path == "" {
		return nil, core.WrapError(core.ErrLocatorDerivationFailed,
			fmt.Errorf("object %s has no file path", obj.ID))
	}
	if !filepath.IsAbs(path) {
		return nil, core.WrapError(core.ErrLocatorDerivationFailed,
			fmt.Errorf("file path %q is not absolute", path))
	}
	path = filepath.Clean(path)

	roots := []string{f.activeRoot}
	if op == core.OperationUnarchive {
		roots = append(roots, f.archiveRoot)
	}
	for _, root := range roots {
		if !within(root, path) {
			continue
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil, core.WrapError(core.ErrLocatorDerivationFailed, err)
		}
		return FilesystemLocator{
			ActiveRoot:   f.activeRoot,
			ArchiveRoot:  f.archiveRoot,
			RelativePath: rel,
		}, nil
	}

	return nil, core.WrapError(core.ErrLocatorDerivationFailed,
		fmt.Errorf("%s is not under %s", path, strings.Join(roots, " or ")))
}

func (f *FilesystemDriver) MoveToArchive(ctx context.Context, loc Locator) error {
	l, err := f.locator(loc)
	if err != nil {
		return err
	}
	return f.move(ctx, l.ActivePath(), l.ArchivePath())
}

func (f *FilesystemDriver) MoveToActive(ctx context.Context, loc Locator) error {
	l, err := f.locator(loc)
	if err != nil {
		return err
	}
	return f.move(ctx, l.ArchivePath(), l.ActivePath())
}

func (f *FilesystemDriver) Inspect(ctx context.Context, loc Locator) (core.Status, error) {
	l, err := f.locator(loc)
	if err != nil {
		return "", err
	}

	inActive, err := exists(l.ActivePath())
	if err != nil {
		return "", core.WrapError(core.ErrInspectFailed, err)
	}
	inArchive, err := exists(l.ArchivePath())
	if err != nil {
		return "", core.WrapError(core.ErrInspectFailed, err)
	}

	switch {
	case inArchive && !inActive:
		return core.StatusArchived, nil
	case inActive && !inArchive:
		return core.StatusProcessed, nil
	case inActive && inArchive:
		return "", core.WrapError(core.ErrInspectFailed,
			fmt.Errorf("%s present in both tiers", l.RelativePath))
	default:
		return "", core.WrapError(core.ErrInspectFailed,
			fmt.Errorf("%s missing from both tiers", l.RelativePath))
	}
}

// locator checks that loc was derived by this driver and still resolves under its roots.
func (f *FilesystemDriver) locator(loc Locator) (FilesystemLocator, error) {
	l, ok := loc.(FilesystemLocator)
	if !ok {
		return l, core.WrapError(core.ErrPathNotUnderRoot, fmt.Errorf("unexpected locator %T", loc))
	}
	if l.ActiveRoot != f.activeRoot || l.ArchiveRoot != f.archiveRoot {
		return l, core.WrapError(core.ErrPathNotUnderRoot,
			fmt.Errorf("locator roots %q, %q do not match configured roots", l.ActiveRoot, l.ArchiveRoot))
	}
	if !within(f.activeRoot, l.ActivePath()) {
		return l, core.WrapError(core.ErrPathNotUnderRoot,
			fmt.Errorf("%s escapes %s", l.ActivePath(), f.activeRoot))
	}
	if !within(f.archiveRoot, l.ArchivePath()) {
		return l, core.WrapError(core.ErrPathNotUnderRoot,
			fmt.Errorf("%s escapes %s", l.ArchivePath(), f.archiveRoot))
	}
	return l, nil
}

func (f *FilesystemDriver) move(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return core.WrapError(core.ErrMoveFailed, err)
	}

	info, err := os.Lstat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if ok, _ := exists(dst); ok {
				// Left over from a run whose status report failed.
				f.logger.Warn("file already in target tier", zap.String("dst", dst))
				return nil
			}
		}
		return core.WrapError(core.ErrMoveFailed, fmt.Errorf("source: %w", err))
	}
	if _, err := os.Lstat(dst); err == nil {
		return core.WrapError(core.ErrMoveFailed, fmt.Errorf("destination %s already exists", dst))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return core.WrapError(core.ErrMoveFailed, fmt.Errorf("destination: %w", err))
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return core.WrapError(core.ErrMoveFailed, fmt.Errorf("creating directories: %w", err))
	}

	err = f.rename(src, dst)
	if err == nil {
		f.logger.Debug("file moved", zap.String("src", src), zap.String("dst", dst))
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return core.WrapError(core.ErrMoveFailed, err)
	}

	// Roots on different devices: copy, then drop the source.
	n, err := copyFile(src, dst, info)
	if err != nil {
		return core.WrapError(core.ErrMoveFailed, fmt.Errorf("cross-device copy: %w", err))
	}
	if err := os.Remove(src); err != nil {
		if rmErr := os.Remove(dst); rmErr != nil {
			f.logger.Error("cross-device copy left behind",
				zap.String("dst", dst), zap.Error(rmErr))
		}
		return core.WrapError(core.ErrMoveFailed, fmt.Errorf("removing source after copy: %w", err))
	}

	f.logger.Info("file moved across devices",
		zap.String("src", src),
		zap.String("dst", dst),
		zap.String("size", humanize.Bytes(uint64(n))),
	)
	return nil
}

// copyFile writes src to a temporary file next to dst and renames it into place.
func copyFile(src, dst string, info fs.FileInfo) (n int64, err error) {
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if n, err = io.Copy(tmp, in); err != nil {
		return 0, err
	}
	if err = tmp.Sync(); err != nil {
		return 0, err
	}
	if err = tmp.Close(); err != nil {
		return 0, err
	}
	if err = os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return 0, err
	}
	if err = os.Chtimes(tmp.Name(), info.ModTime(), info.ModTime()); err != nil {
		return 0, err
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return 0, err
	}
	return n, nil
}

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}
