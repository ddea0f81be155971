package catalog

import (
	"encoding/json"

	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// CreateStore registers a new Store. Name must be unique.
func (c *Catalog) CreateStore(s types.Store) (types.Store, error) {
	err := c.db.Update(func(tx *bolt.Tx) error {
		nameB := tx.Bucket(bucketStoreByName)
		if nameB.Get([]byte(s.Name)) != nil {
			return errs.Conflictf("store %q already exists", s.Name)
		}

		b := tx.Bucket(bucketStores)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		s.ID = int64(id)

		if err := putJSON(b, int64Key(s.ID), s); err != nil {
			return err
		}
		return nameB.Put([]byte(s.Name), int64Key(s.ID))
	})
	return s, err
}

// GetStore looks up a Store by id.
func (c *Catalog) GetStore(id int64) (types.Store, error) {
	var s types.Store
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketStores).Get(int64Key(id))
		if data == nil {
			return errs.NotFoundf("store %d not found", id)
		}
		return json.Unmarshal(data, &s)
	})
	return s, err
}

// GetStoreByName looks up a Store by its unique name.
func (c *Catalog) GetStoreByName(name string) (types.Store, error) {
	var s types.Store
	err := c.db.View(func(tx *bolt.Tx) error {
		idKey := tx.Bucket(bucketStoreByName).Get([]byte(name))
		if idKey == nil {
			return errs.NotFoundf("store %q not found", name)
		}
		data := tx.Bucket(bucketStores).Get(idKey)
		return json.Unmarshal(data, &s)
	})
	return s, err
}

// ListStores returns every registered Store.
func (c *Catalog) ListStores() ([]types.Store, error) {
	var out []types.Store
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStores).ForEach(func(_, v []byte) error {
			var s types.Store
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			out = append(out, s)
			return nil
		})
	})
	return out, err
}

// SetStoreAvailable updates a Store's availability flag. The offload
// engine uses it to mark a drained store unavailable.
func (c *Catalog) SetStoreAvailable(id int64, available bool) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStores)
		key := int64Key(id)
		data := b.Get(key)
		if data == nil {
			return errs.NotFoundf("store %d not found", id)
		}
		var s types.Store
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s.Available = available
		return putJSON(b, key, s)
	})
}
