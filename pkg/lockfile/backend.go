package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// fileBackend represents the lock as a regular file created with
// O_CREATE|O_EXCL, which is atomic on POSIX filesystems.
type fileBackend struct {
	path string
}

// NewFileBackend returns the exclusive-create file backend for path.
func NewFileBackend(path string) Backend { return &fileBackend{path: path} }

func (b *fileBackend) TryAcquire(payload []byte) error {
	f, err := os.OpenFile(b.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", errHeld, b.path)
		}
		return err
	}
	_, werr := f.Write(payload)
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

func (b *fileBackend) Owner() ([]byte, error) { return os.ReadFile(b.path) }

func (b *fileBackend) Remove() error {
	err := os.Remove(b.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (b *fileBackend) Age() (time.Duration, error) {
	info, err := os.Stat(b.path)
	if err != nil {
		return 0, err
	}
	return time.Since(info.ModTime()), nil
}

// dirBackend represents the lock as a directory; mkdir is atomic on all
// platforms Go supports, including filesystems where O_EXCL is unreliable
// (some NFS configurations).
type dirBackend struct {
	path string
}

// NewDirBackend returns the mkdir-based backend for path.
func NewDirBackend(path string) Backend { return &dirBackend{path: path} }

func (b *dirBackend) ownerPath() string { return filepath.Join(b.path, "owner") }

func (b *dirBackend) TryAcquire(payload []byte) error {
	if err := os.Mkdir(b.path, 0o755); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", errHeld, b.path)
		}
		return err
	}
	return os.WriteFile(b.ownerPath(), payload, 0o644)
}

func (b *dirBackend) Owner() ([]byte, error) { return os.ReadFile(b.ownerPath()) }

func (b *dirBackend) Remove() error {
	err := os.RemoveAll(b.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (b *dirBackend) Age() (time.Duration, error) {
	info, err := os.Stat(b.path)
	if err != nil {
		return 0, err
	}
	return time.Since(info.ModTime()), nil
}
