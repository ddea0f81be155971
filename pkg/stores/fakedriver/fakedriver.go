// Package fakedriver provides an in-memory stores.Driver for tests that
// exercise store-touching code without a real filesystem.
package fakedriver

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"github.com/cuemby/librarian/pkg/stores"
	"github.com/cuemby/librarian/pkg/types"
)

// Driver is an in-memory stores.Driver.
type Driver struct {
	mu    sync.Mutex
	files map[string][]byte
	free  int64
}

// New returns an empty fake driver reporting free as its FreeBytes.
func New(free int64) *Driver {
	return &Driver{files: make(map[string][]byte), free: free}
}

func (d *Driver) Stat(_ context.Context, relPath string) (stores.Info, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.files[relPath]
	if !ok {
		return stores.Info{}, nil
	}
	sum := sha256.Sum256(data)
	return stores.Info{Exists: true, Size: int64(len(data)), Digest: hex.EncodeToString(sum[:])}, nil
}

func (d *Driver) Stage(_ context.Context, relPath string, src io.Reader) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[relPath] = data
	return nil
}

func (d *Driver) Open(_ context.Context, relPath string) (io.ReadCloser, error) {
	d.mu.Lock()
	data, ok := d.files[relPath]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("fakedriver: %s not found", relPath)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (d *Driver) Remove(_ context.Context, relPath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.files, relPath)
	return nil
}

// UploadTo copies relPath into dest in-process, standing in for a real
// peer transport in tests.
func (d *Driver) UploadTo(ctx context.Context, dest stores.Driver, relPath, destRelPath string, _ types.RecInfo, _ stores.TransferOpts) error {
	return stores.DirectCopy(ctx, d, dest, relPath, destRelPath)
}

func (d *Driver) FreeBytes(_ context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.free, nil
}

// SetFree overrides the reported free-byte count, for simulating a store
// filling up.
func (d *Driver) SetFree(free int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free = free
}
