package stores

import (
	"context"
	"io"

	"github.com/cuemby/librarian/pkg/types"
)

// Driver moves bytes onto and off of one physical store. Implementations
// are responsible for their own transport (local filesystem, SSH+rsync,
// HTTP); none of them touch the catalog.
type Driver interface {
	// Stat reports size/digest/existence for a store-relative path.
	Stat(ctx context.Context, relPath string) (Info, error)

	// Stage copies src onto the store at relPath, creating any parent
	// directories. Implementations must be safe to retry: staging the
	// same (relPath, src) twice must not corrupt the destination.
	Stage(ctx context.Context, relPath string, src io.Reader) error

	// Open returns a reader for a store-relative path, for streaming a
	// file back out during a copy between stores.
	Open(ctx context.Context, relPath string) (io.ReadCloser, error)

	// Remove deletes a store-relative path. Removing a path that does
	// not exist is not an error.
	Remove(ctx context.Context, relPath string) error

	// FreeBytes reports remaining capacity, used (through DFCache) by
	// recommended-store selection and by store-health reporting.
	FreeBytes(ctx context.Context) (int64, error)

	// UploadTo ships the file at relPath to dest, the driver fronting a
	// peer librarian's destination store, using the transport named by
	// opts.Provider. destRelPath, if non-empty, overrides the path the
	// file is written to on dest (the remote_store_path override of a
	// manually launched copy); empty means "same as relPath". rec
	// carries the File/Observation/Session snapshot the peer needs to
	// recreate its catalog records without a second round trip.
	// Implementations that can't reach a real peer transport (e.g. a
	// bulk/Globus provider) still honor the contract locally and leave
	// the decision of how to actually honor opts.Provider to the real
	// collaborator driver.
	UploadTo(ctx context.Context, dest Driver, relPath, destRelPath string, rec types.RecInfo, opts TransferOpts) error
}

// Info is what Stat reports about a store-relative path.
type Info struct {
	Exists bool
	Size   int64
	Digest string
}

// TransferProvider selects the out-of-band transport UploadTo uses to
// reach a peer librarian's store.
type TransferProvider string

const (
	// TransferDirect streams bytes through this process, the default.
	TransferDirect TransferProvider = "direct"
	// TransferBulk delegates to a bulk-transfer provider (e.g. Globus);
	// the actual provider SDK call is an external collaborator, so this
	// still runs the same UploadTo contract with Provider/EndpointID/
	// ClientID/Token threaded through for the real driver to honor.
	TransferBulk TransferProvider = "bulk"
)

// TransferOpts configures how UploadTo reaches its destination, matching
// the `use_globus`/`globus_*` configuration options. KnownStagingStore/
// KnownStagingSubdir, when set, tell the destination the bytes were
// already shipped out of band and are sitting staged at that location;
// a driver fronting a real peer asks the peer to commit the staged copy
// instead of streaming the file again.
type TransferOpts struct {
	Provider   TransferProvider
	EndpointID string
	ClientID   string
	Token      string

	KnownStagingStore  string
	KnownStagingSubdir string
}

// DirectCopy implements the TransferDirect provider: it streams relPath
// from src to dest by opening a reader on one side and staging it on the
// other, writing to destRelPath on dest (relPath if destRelPath is
// empty). Both LocalDriver and fakedriver.Driver use this as their
// UploadTo body regardless of opts.Provider, since neither has a real
// Globus collaborator to delegate the bulk path to.
func DirectCopy(ctx context.Context, src, dest Driver, relPath, destRelPath string) error {
	if destRelPath == "" {
		destRelPath = relPath
	}
	r, err := src.Open(ctx, relPath)
	if err != nil {
		return err
	}
	defer r.Close()
	return dest.Stage(ctx, destRelPath, r)
}
