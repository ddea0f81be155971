package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/notify"
	"github.com/cuemby/librarian/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// CreateFileEvent appends a free-form FileEvent for the `create_file_event`
// RPC and notifies subscribers that something about the file changed.
func (c *Catalog) CreateFileEvent(fileName, eventType string, payload any) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketFiles).Get([]byte(fileName)) == nil {
			return errs.NotFoundf("file %q not found", fileName)
		}
		return c.appendEventLocked(tx, fileName, eventType, payload)
	})
	if err != nil {
		return err
	}
	c.notify.Publish(notify.Notification{Kind: notify.EventCreated, FileName: fileName})
	return nil
}

// appendEventLocked appends an event inside an already-open transaction.
// FileEvents are append-only: this is the only place events are written,
// and nothing in the catalog ever updates or deletes an existing one.
func (c *Catalog) appendEventLocked(tx *bolt.Tx, fileName, eventType string, payload any) error {
	b := tx.Bucket(bucketEvents)
	idxB := tx.Bucket(bucketEventsByFile)

	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	key := []byte(fmt.Sprintf("%s\x00%020d", fileName, seq))

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ev := types.FileEvent{
		Name:    fileName,
		Time:    time.Now().UTC(),
		Type:    eventType,
		Payload: payloadJSON,
	}
	if err := putJSON(b, key, ev); err != nil {
		return err
	}
	return appendIndexKey(idxB, []byte(fileName), key)
}

// EventsForFile returns every FileEvent recorded against name, oldest
// first.
func (c *Catalog) EventsForFile(name string) ([]types.FileEvent, error) {
	var out []types.FileEvent
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketEventsByFile).Get([]byte(name))
		keys := decodeIndexKeys(raw)
		b := tx.Bucket(bucketEvents)
		for _, k := range keys {
			var ev types.FileEvent
			if err := json.Unmarshal(b.Get(k), &ev); err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	return out, err
}

// HasEvent reports whether any event of the given type has been recorded
// against fileName. Used by the replication engine's dedup rule and by the
// `no-file-has-event` search clause.
func (c *Catalog) HasEvent(fileName, eventType string) (bool, error) {
	events, err := c.EventsForFile(fileName)
	if err != nil {
		return false, err
	}
	for _, ev := range events {
		if ev.Type == eventType {
			return true, nil
		}
	}
	return false, nil
}

// AllEvents returns every FileEvent in the catalog. Used by the search
// compiler for session-wide `no-file-has-event` evaluation.
func (c *Catalog) AllEvents() ([]types.FileEvent, error) {
	var out []types.FileEvent
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(_, v []byte) error {
			var ev types.FileEvent
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			out = append(out, ev)
			return nil
		})
	})
	return out, err
}
