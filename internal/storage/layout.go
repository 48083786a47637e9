package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"ShareDrop/config"
)

// ErrShortSlug is returned when a slug is too short to shard into the
// directory layout.
var ErrShortSlug = errors.New("slug too short for storage layout")

// Layout maps file slugs onto the on-disk sharding scheme. The first three
// characters of a slug each become a directory level, keeping any single
// directory from accumulating millions of entries:
//
//	<data>/a/b/c/abc123...
type Layout struct {
	dataDir  string
	dirMode  os.FileMode
	fileMode os.FileMode
}

// NewLayout builds the layout from configuration.
func NewLayout(cfg *config.Config) *Layout {
	return &Layout{
		dataDir:  cfg.DataDir,
		dirMode:  cfg.DirectoryMode,
		fileMode: cfg.FileMode,
	}
}

// PathFor returns the sharded path of a slug, relative to the data root.
func (l *Layout) PathFor(slug string) (string, error) {
	if len(slug) < 4 {
		return "", ErrShortSlug
	}
	return filepath.Join(string(slug[0]), string(slug[1]), string(slug[2]), slug[3:]), nil
}

// Resolve turns a stored relative path into an absolute one under the
// data root.
func (l *Layout) Resolve(relPath string) string {
	return filepath.Join(l.dataDir, relPath)
}

// Place streams src into the slug's sharded location, creating the
// intermediate directories on demand. It returns the relative path to
// persist alongside the file record.
func (l *Layout) Place(slug string, src io.Reader) (string, error) {
	relPath, err := l.PathFor(slug)
	if err != nil {
		return "", err
	}

	absPath := l.Resolve(relPath)
	if err := os.MkdirAll(filepath.Dir(absPath), l.dirMode); err != nil {
		return "", err
	}

	dst, err := os.OpenFile(absPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, l.fileMode)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(absPath)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(absPath)
		return "", err
	}
	return relPath, nil
}

// Chmod reapplies the configured file mode, used after an external tool
// wrote an artifact with its own umask.
func (l *Layout) Chmod(relPath string) error {
	return os.Chmod(l.Resolve(relPath), l.fileMode)
}

// Remove deletes a stored artifact. A missing file is not an error.
func (l *Layout) Remove(relPath string) error {
	err := os.Remove(l.Resolve(relPath))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// TempZipDir is where a previous generation of the service staged archive
// symlink trees for an upload. Kept so the sweeper can clear leftovers.
func (l *Layout) TempZipDir(slug string) string {
	return filepath.Join(l.dataDir, "tmp_zip", slug)
}
