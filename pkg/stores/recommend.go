package stores

import (
	"context"

	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/types"
)

// Recommend picks the available store with the greatest free space,
// requiring it to hold at least fileSize bytes. Deliberately simpleminded:
// most available space wins, nothing else is considered.
//
// candidates is the catalog's current Store rows (so availability comes
// from persisted state, not just whatever has a live driver registered);
// registry resolves each candidate's Driver and df is the shared DFCache
// so repeated calls don't force a fresh statfs on every request.
func Recommend(ctx context.Context, candidates []types.Store, registry *Registry, df *DFCache, fileSize int64) (types.Store, error) {
	if fileSize < 0 {
		return types.Store{}, errs.BadRequestf("file_size must be nonnegative")
	}

	var best types.Store
	bestFree := int64(-1)
	found := false

	for _, s := range candidates {
		if !s.Available {
			continue
		}
		driver, err := registry.Get(s.Name)
		if err != nil {
			continue
		}
		free, err := df.FreeBytes(ctx, s.Name, driver)
		if err != nil {
			continue
		}
		if free > bestFree {
			bestFree = free
			best = s
			found = true
		}
	}

	if !found || bestFree < fileSize {
		return types.Store{}, errs.InsufficientCapacityf("no store can hold %d bytes", fileSize)
	}
	return best, nil
}
