package catalog

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/notify"
	"github.com/cuemby/librarian/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// CreateFileRecord directly creates a File row. Returns Conflict if the
// name is already taken.
func (c *Catalog) CreateFileRecord(f types.File) error {
	if strings.ContainsAny(f.Name, "/\\") {
		return errs.BadRequestf("file name %q must not contain a path separator", f.Name)
	}
	if f.CreateTime.IsZero() {
		f.CreateTime = time.Now().UTC()
	}

	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFiles)
		if b.Get([]byte(f.Name)) != nil {
			return errs.Conflictf("file %q already exists", f.Name)
		}
		return putJSON(b, []byte(f.Name), f)
	})
	return err
}

// GetFile looks up a File by name.
func (c *Catalog) GetFile(name string) (types.File, error) {
	var f types.File
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFiles)
		data := b.Get([]byte(name))
		if data == nil {
			return errs.NotFoundf("file %q not found", name)
		}
		return json.Unmarshal(data, &f)
	})
	return f, err
}

// ListFiles returns every cataloged File.
func (c *Catalog) ListFiles() ([]types.File, error) {
	var out []types.File
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFiles)
		return b.ForEach(func(_, v []byte) error {
			var f types.File
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}
			out = append(out, f)
			return nil
		})
	})
	return out, err
}

// NumInstances returns the number of FileInstances that reference name,
// the derived `num-instances` attribute used by the search compiler.
func (c *Catalog) NumInstances(name string) (int, error) {
	n := 0
	err := c.db.View(func(tx *bolt.Tx) error {
		keys, err := c.instanceKeysForFile(tx, name)
		if err != nil {
			return err
		}
		n = len(keys)
		return nil
	})
	return n, err
}

// RegisterInstances creates Files (inferring obsid when absent, per
// ObsidInferenceMode) and FileInstances for a batch of store-relative
// paths. A (store, parent_dirs, name) that already has an instance is a
// no-op for that entry, so re-registering a store's contents is safe.
//
// fileInfo maps a store-relative path (parent_dirs/name) to its stat info.
func (c *Catalog) RegisterInstances(storeID int64, source string, mode ObsidInferenceMode, fileInfo map[string]FileStat) error {
	registeredAny := false

	err := c.db.Update(func(tx *bolt.Tx) error {
		filesB := tx.Bucket(bucketFiles)
		instB := tx.Bucket(bucketInstances)
		instByFileB := tx.Bucket(bucketInstancesByFile)

		for path, stat := range fileInfo {
			parentDirs, name := splitStorePath(path)

			key := instanceKey(storeID, parentDirs, name)
			if instB.Get(key) != nil {
				continue // already known; no-op
			}

			// Ensure the File exists, creating it (with obsid inference)
			// if this is the first instance we've ever seen.
			if filesB.Get([]byte(name)) == nil {
				obsid, err := c.inferObsidLocked(tx, mode, name)
				if err != nil {
					return err
				}
				f := types.File{
					Name:       name,
					Type:       stat.Type,
					Source:     source,
					Size:       stat.Size,
					Digest:     stat.Digest,
					CreateTime: time.Now().UTC(),
					Obsid:      &obsid,
				}
				if err := putJSON(filesB, []byte(name), f); err != nil {
					return err
				}
			}

			inst := types.FileInstance{
				StoreID:        storeID,
				ParentDirs:     parentDirs,
				Name:           name,
				DeletionPolicy: types.DeletionDisallowed,
			}
			if err := putJSON(instB, key, inst); err != nil {
				return err
			}
			if err := appendIndexKey(instByFileB, []byte(name), key); err != nil {
				return err
			}

			if err := c.appendEventLocked(tx, name, types.EventInstanceCreation, map[string]any{
				"store_id":    storeID,
				"parent_dirs": parentDirs,
			}); err != nil {
				return err
			}

			registeredAny = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	if registeredAny {
		c.notify.Publish(notify.Notification{Kind: notify.FileRegistered})
	}
	return nil
}

// FileStat is the stat information a store driver reports for a path.
type FileStat struct {
	Size   int64
	Digest string
	Type   string
}

func splitStorePath(path string) (parentDirs, name string) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}

// LocateFileInstance returns the first FileInstance of name, in
// unspecified order, for the `locate_file_instance` RPC.
func (c *Catalog) LocateFileInstance(name string) (types.FileInstance, error) {
	var inst types.FileInstance
	err := c.db.View(func(tx *bolt.Tx) error {
		keys, err := c.instanceKeysForFile(tx, name)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return errs.NotFoundf("no instances of file %q", name)
		}
		data := tx.Bucket(bucketInstances).Get(keys[0])
		return json.Unmarshal(data, &inst)
	})
	return inst, err
}

// ListInstancesForFile returns every FileInstance of name.
func (c *Catalog) ListInstancesForFile(name string) ([]types.FileInstance, error) {
	var out []types.FileInstance
	err := c.db.View(func(tx *bolt.Tx) error {
		keys, err := c.instanceKeysForFile(tx, name)
		if err != nil {
			return err
		}
		instB := tx.Bucket(bucketInstances)
		for _, k := range keys {
			var inst types.FileInstance
			if err := json.Unmarshal(instB.Get(k), &inst); err != nil {
				return err
			}
			out = append(out, inst)
		}
		return nil
	})
	return out, err
}

// ListInstances returns every FileInstance in the catalog.
func (c *Catalog) ListInstances() ([]types.FileInstance, error) {
	var out []types.FileInstance
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketInstances).ForEach(func(_, v []byte) error {
			var inst types.FileInstance
			if err := json.Unmarshal(v, &inst); err != nil {
				return err
			}
			out = append(out, inst)
			return nil
		})
	})
	return out, err
}

// SetOneFileDeletionPolicy mutates the DeletionPolicy of exactly one
// instance of name, optionally restricted to a store.
func (c *Catalog) SetOneFileDeletionPolicy(name string, policy types.DeletionPolicy, restrictToStore *int64) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		keys, err := c.instanceKeysForFile(tx, name)
		if err != nil {
			return err
		}
		instB := tx.Bucket(bucketInstances)
		for _, k := range keys {
			var inst types.FileInstance
			if err := json.Unmarshal(instB.Get(k), &inst); err != nil {
				return err
			}
			if restrictToStore != nil && inst.StoreID != *restrictToStore {
				continue
			}
			inst.DeletionPolicy = policy
			if err := putJSON(instB, k, inst); err != nil {
				return err
			}
			return c.appendEventLocked(tx, name, types.EventDeletionPolicyChanged, map[string]any{
				"store_id":        inst.StoreID,
				"deletion_policy":  string(policy),
			})
		}
		return errs.NotFoundf("no matching instance of file %q to update", name)
	})
}

func (c *Catalog) instanceKeysForFile(tx *bolt.Tx, name string) ([][]byte, error) {
	raw := tx.Bucket(bucketInstancesByFile).Get([]byte(name))
	return decodeIndexKeys(raw), nil
}
