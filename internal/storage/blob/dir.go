package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// dirObjects keeps one file per key. A write goes to a temp file in the same
// directory, is synced, renamed over the target, and the directory is synced
// so the rename itself survives a crash.
type dirObjects struct {
	dir string
}

func openDir(dir string) (*dirObjects, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &dirObjects{dir: dir}, nil
}

func (d *dirObjects) path(key string) string {
	return filepath.Join(d.dir, key)
}

func (d *dirObjects) read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errNotFound
	}
	return data, err
}

func (d *dirObjects) write(_ context.Context, key string, data []byte) (err error) {
	tmp, err := os.CreateTemp(d.dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), d.path(key)); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return d.syncDir()
}

func (d *dirObjects) remove(_ context.Context, key string) error {
	err := os.Remove(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return d.syncDir()
}

func (d *dirObjects) syncDir() error {
	// Directories cannot be opened for sync on Windows.
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(d.dir)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.dir, err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", d.dir, err)
	}
	return nil
}

func (d *dirObjects) ping(_ context.Context) error {
	info, err := os.Stat(d.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", d.dir)
	}
	return nil
}

func (d *dirObjects) close() error {
	return nil
}
