package reconcile

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FS is the filesystem surface the sweep needs. Tests provide a temp-dir
// backed instance; production uses OSFileSystem against the asset root.
type FS interface {
	// FindAsset returns the file name of the first regular file in dir
	// named stem.<ext>, and whether one exists.
	FindAsset(dir, stem string) (string, bool)
	MkdirAll(dir string) error
	CopyFile(src, dst string) error
	// WalkFiles visits every regular file under root with its
	// slash-separated path relative to root.
	WalkFiles(root string, fn func(rel string) error) error
}

// OSFileSystem implements FS with os primitives.
type OSFileSystem struct{}

func (OSFileSystem) FindAsset(dir, stem string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		// Missing directory just means no asset yet.
		return "", false
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, stem+".") && len(name) > len(stem)+1 {
			return name, true
		}
	}
	return "", false
}

func (OSFileSystem) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

func (OSFileSystem) CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

func (OSFileSystem) WalkFiles(root string, fn func(rel string) error) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		// Asset root not created yet: nothing to walk, not an error.
		return os.MkdirAll(root, 0o755)
	}
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel))
	})
}
