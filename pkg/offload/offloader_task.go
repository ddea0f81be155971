package offload

import (
	"context"
	"fmt"
	"path"

	"github.com/cuemby/librarian/pkg/stores"
	"github.com/cuemby/librarian/pkg/types"
)

// OffloaderTask moves a batch of FileInstances from one store to another,
// then marks the ones it successfully copied eligible for deletion from
// the source. It implements tasks.Task.
//
// Work copies sequentially and stops at the first failure rather than
// trying to push through the whole batch. Entries copied before the
// failure are still processed by Wrapup.
type OffloaderTask struct {
	cat Catalog

	src  stores.Driver
	dest stores.Driver

	sourceStoreID int64
	sourceName    string
	destName      string
	instances     []types.FileInstance
}

func (t *OffloaderTask) Describe() string {
	return fmt.Sprintf("offload %d instances from %s to %s", len(t.instances), t.sourceName, t.destName)
}

// offloadResult is Work's return value: which instances, in order, were
// successfully copied before the first failure (if any).
type offloadResult struct {
	succeeded []types.FileInstance
}

func (t *OffloaderTask) Work(ctx context.Context) (any, error) {
	result := &offloadResult{}

	for _, inst := range t.instances {
		relPath := path.Join(inst.ParentDirs, inst.Name)
		if err := stores.DirectCopy(ctx, t.src, t.dest, relPath, ""); err != nil {
			return result, fmt.Errorf("offload %s: %w", relPath, err)
		}
		result.succeeded = append(result.succeeded, inst)
	}

	return result, nil
}

// Wrapup marks every successfully offloaded instance deletable from the
// source store. A Work error doesn't fail the whole task: whatever
// instances did succeed before the error are still marked.
func (t *OffloaderTask) Wrapup(result any, workErr error) error {
	res, _ := result.(*offloadResult)
	if res == nil {
		return workErr
	}

	var firstErr error
	for _, inst := range res.succeeded {
		storeID := t.sourceStoreID
		if err := t.cat.SetOneFileDeletionPolicy(inst.Name, types.DeletionAllowed, &storeID); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if workErr != nil {
		return workErr
	}
	return firstErr
}
