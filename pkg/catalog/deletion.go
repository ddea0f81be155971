package catalog

import (
	"encoding/json"

	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// DeletionMode selects delete_instances' behavior.
type DeletionMode string

const (
	// DeletionStandard removes Allowed instances but refuses if doing so
	// would leave the File with no instances anywhere.
	DeletionStandard DeletionMode = "standard"
	// DeletionNoop reports which Allowed instances would be removed,
	// without removing anything. Unlike DeletionStandard it does not
	// refuse when that would be every instance of the File.
	DeletionNoop DeletionMode = "noop"
	// DeletionForce removes Allowed instances even if it empties the
	// File entirely. Admin-only; the last copy of a file goes with it.
	DeletionForce DeletionMode = "force"
)

// DeleteInstances walks the FileInstances of name and, per mode, removes
// those with DeletionPolicy Allowed. restrictToStore, if non-nil, limits
// consideration to instances on that store. Returns the instances removed
// (or, under DeletionNoop, the instances that would have been removed).
func (c *Catalog) DeleteInstances(name string, mode DeletionMode, restrictToStore *int64) ([]types.FileInstance, error) {
	var affected []types.FileInstance

	err := c.db.Update(func(tx *bolt.Tx) error {
		keys, err := c.instanceKeysForFile(tx, name)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return errs.NotFoundf("no instances of file %q", name)
		}

		instB := tx.Bucket(bucketInstances)
		all := make([]types.FileInstance, 0, len(keys))
		allKeys := make([][]byte, 0, len(keys))
		for _, k := range keys {
			var inst types.FileInstance
			if err := json.Unmarshal(instB.Get(k), &inst); err != nil {
				return err
			}
			all = append(all, inst)
			allKeys = append(allKeys, k)
		}

		var removeIdx []int
		for i, inst := range all {
			if inst.DeletionPolicy != types.DeletionAllowed {
				continue
			}
			if restrictToStore != nil && inst.StoreID != *restrictToStore {
				continue
			}
			removeIdx = append(removeIdx, i)
		}

		if len(removeIdx) == 0 {
			return errs.NotFoundf("no deletable instances of file %q", name)
		}
		if mode == DeletionStandard && len(removeIdx) == len(all) {
			return errs.Conflictf("delete_instances would remove every instance of file %q; use force to allow total deletion", name)
		}

		for _, i := range removeIdx {
			affected = append(affected, all[i])
		}

		if mode == DeletionNoop {
			return nil
		}

		idxB := tx.Bucket(bucketInstancesByFile)
		for _, i := range removeIdx {
			if err := instB.Delete(allKeys[i]); err != nil {
				return err
			}
			if err := removeIndexKey(idxB, []byte(name), allKeys[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return affected, err
}
