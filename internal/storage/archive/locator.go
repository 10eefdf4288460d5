package archive

import (
	"path/filepath"
	"strings"
)

// Locator is backend-specific addressing for one object's bytes.
type Locator interface {
	Backend() string
	String() string
}

// FilesystemLocator addresses a file by its path relative to both tier roots.
type FilesystemLocator struct {
	ActiveRoot   string
	ArchiveRoot  string
	RelativePath string
}

func (l FilesystemLocator) Backend() string { return BackendFilesystem }

func (l FilesystemLocator) String() string { return l.RelativePath }

// ActivePath is the absolute path of the object in the active tier.
func (l FilesystemLocator) ActivePath() string {
	return filepath.Join(l.ActiveRoot, l.RelativePath)
}

// ArchivePath is the absolute path of the object in the archive tier.
func (l FilesystemLocator) ArchivePath() string {
	return filepath.Join(l.ArchiveRoot, l.RelativePath)
}

// ObjectStoreLocator addresses an object by bucket and key.
type ObjectStoreLocator struct {
	Bucket string
	Key    string
}

func (l ObjectStoreLocator) Backend() string { return BackendS3 }

func (l ObjectStoreLocator) String() string { return l.Bucket + "/" + l.Key }

// Backend kinds
const (
	BackendFilesystem = "filesystem"
	BackendS3         = "s3"
)

// within reports whether path lies strictly below root. Both must be clean and absolute.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
