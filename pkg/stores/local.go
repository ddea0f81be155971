package stores

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/cuemby/librarian/pkg/types"
)

// LocalDriver implements Driver against a directory on the local
// filesystem, for stores reachable by a bind mount or NFS export rather
// than over the network.
type LocalDriver struct {
	basePath string
}

// NewLocalDriver creates a LocalDriver rooted at basePath, creating it if
// it does not already exist.
func NewLocalDriver(basePath string) (*LocalDriver, error) {
	if basePath == "" {
		return nil, fmt.Errorf("local driver requires a non-empty base path")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &LocalDriver{basePath: basePath}, nil
}

func (d *LocalDriver) abs(relPath string) string {
	return filepath.Join(d.basePath, filepath.FromSlash(relPath))
}

func (d *LocalDriver) Stat(_ context.Context, relPath string) (Info, error) {
	path := d.abs(relPath)
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, err
	}

	digest, err := digestFile(path)
	if err != nil {
		return Info{}, err
	}
	return Info{Exists: true, Size: fi.Size(), Digest: digest}, nil
}

func (d *LocalDriver) Stage(_ context.Context, relPath string, src io.Reader) error {
	path := d.abs(relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent directories for %s: %w", relPath, err)
	}

	tmp := path + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("stage %s: %w", relPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func (d *LocalDriver) Open(_ context.Context, relPath string) (io.ReadCloser, error) {
	return os.Open(d.abs(relPath))
}

func (d *LocalDriver) Remove(_ context.Context, relPath string) error {
	err := os.Remove(d.abs(relPath))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// UploadTo ships relPath to dest via DirectCopy. rec and opts are unused
// here: a local driver has no peer-transport collaborator of its own, so
// it just performs the copy directly regardless of the requested
// transfer provider.
func (d *LocalDriver) UploadTo(ctx context.Context, dest Driver, relPath, destRelPath string, _ types.RecInfo, _ TransferOpts) error {
	return DirectCopy(ctx, d, dest, relPath, destRelPath)
}

func (d *LocalDriver) FreeBytes(_ context.Context) (int64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(d.basePath, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", d.basePath, err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

func digestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
