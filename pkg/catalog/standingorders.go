package catalog

import (
	"encoding/json"

	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// CreateStandingOrder registers a new StandingOrder. Name must be unique;
// Search is validated by the search compiler before this is ever called.
func (c *Catalog) CreateStandingOrder(o types.StandingOrder) (types.StandingOrder, error) {
	err := c.db.Update(func(tx *bolt.Tx) error {
		nameB := tx.Bucket(bucketOrderByName)
		if nameB.Get([]byte(o.Name)) != nil {
			return errs.Conflictf("standing order %q already exists", o.Name)
		}

		b := tx.Bucket(bucketStandingOrders)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		o.ID = int64(id)

		if err := putJSON(b, int64Key(o.ID), o); err != nil {
			return err
		}
		return nameB.Put([]byte(o.Name), int64Key(o.ID))
	})
	return o, err
}

// DeleteStandingOrder removes a StandingOrder by name.
func (c *Catalog) DeleteStandingOrder(name string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		nameB := tx.Bucket(bucketOrderByName)
		idKey := nameB.Get([]byte(name))
		if idKey == nil {
			return errs.NotFoundf("standing order %q not found", name)
		}
		if err := tx.Bucket(bucketStandingOrders).Delete(idKey); err != nil {
			return err
		}
		return nameB.Delete([]byte(name))
	})
}

// GetStandingOrder looks up a StandingOrder by name.
func (c *Catalog) GetStandingOrder(name string) (types.StandingOrder, error) {
	var o types.StandingOrder
	err := c.db.View(func(tx *bolt.Tx) error {
		idKey := tx.Bucket(bucketOrderByName).Get([]byte(name))
		if idKey == nil {
			return errs.NotFoundf("standing order %q not found", name)
		}
		data := tx.Bucket(bucketStandingOrders).Get(idKey)
		return json.Unmarshal(data, &o)
	})
	return o, err
}

// ListStandingOrders returns every registered StandingOrder.
func (c *Catalog) ListStandingOrders() ([]types.StandingOrder, error) {
	var out []types.StandingOrder
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStandingOrders).ForEach(func(_, v []byte) error {
			var o types.StandingOrder
			if err := json.Unmarshal(v, &o); err != nil {
				return err
			}
			out = append(out, o)
			return nil
		})
	})
	return out, err
}
