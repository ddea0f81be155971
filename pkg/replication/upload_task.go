package replication

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/librarian/pkg/stores"
	"github.com/cuemby/librarian/pkg/types"
)

// UploadTask ships one File to a peer librarian on behalf of a
// StandingOrder, implementing the two-phase tasks.Task contract: Work
// streams the bytes (slow, no catalog access), Wrapup records the
// copy_finished and standing-order-succeeded events (fast, catalog
// access).
type UploadTask struct {
	cat Catalog

	src  stores.Driver
	dest stores.Driver

	fileName  string
	storePath string // source store-relative path of the instance being shipped
	destPath  string // overrides storePath as the path written on dest; empty means same as storePath
	orderName string
	destConn  string
	rec       types.RecInfo
	opts      stores.TransferOpts
}

// uploadResult is what Work hands to Wrapup on success: enough to record
// the copy's duration and average transfer rate in the copy_finished
// event.
type uploadResult struct {
	duration time.Duration
	bytes    int64
}

func (t *UploadTask) Describe() string {
	if t.orderName == "" {
		return fmt.Sprintf("copy %s to %s (manual)", t.fileName, t.destConn)
	}
	return fmt.Sprintf("copy %s to %s (standing order %s)", t.fileName, t.destConn, t.orderName)
}

// Work streams t.storePath from the source store driver to the
// destination driver via UploadTo. It never touches the catalog, so it's
// safe to run concurrently with any number of other tasks.
func (t *UploadTask) Work(ctx context.Context) (any, error) {
	opts := t.opts
	if opts.Provider == "" {
		opts.Provider = stores.TransferDirect
	}
	start := time.Now()
	if err := t.src.UploadTo(ctx, t.dest, t.storePath, t.destPath, t.rec, opts); err != nil {
		return nil, err
	}
	return uploadResult{duration: time.Since(start), bytes: t.rec.File.Size}, nil
}

// Wrapup records the outcome of the copy as FileEvents. On success it
// also records the standing order's own success-marker event, so future
// evaluations of the same order skip this file.
func (t *UploadTask) Wrapup(result any, workErr error) error {
	if workErr != nil {
		return t.cat.CreateFileEvent(t.fileName, types.EventCopyFinished, map[string]any{
			"error_code":     1,
			"error":          workErr.Error(),
			"standing_order": t.orderName,
			"dest":           t.destConn,
		})
	}

	payload := map[string]any{
		"error_code":     0,
		"standing_order": t.orderName,
		"dest":           t.destConn,
	}
	if res, ok := result.(uploadResult); ok {
		seconds := res.duration.Seconds()
		payload["duration"] = seconds
		if seconds > 0 {
			payload["average_rate"] = float64(res.bytes) / seconds
		}
	}
	if err := t.cat.CreateFileEvent(t.fileName, types.EventCopyFinished, payload); err != nil {
		return err
	}

	if t.orderName == "" {
		// Manually launched via launch_file_copy, not a standing order:
		// there's no success-marker event type to record.
		return nil
	}
	return t.cat.CreateFileEvent(t.fileName, types.StandingOrderSucceededEvent(t.orderName), map[string]any{
		"dest": t.destConn,
	})
}
