package catalog

import (
	"encoding/json"

	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// GatherFileRecord builds the denormalized RecInfo snapshot shipped
// alongside an upload, so the receiving librarian can recreate the
// catalog's Observation and ObservingSession records without a second
// round trip.
func (c *Catalog) GatherFileRecord(name string) (types.RecInfo, error) {
	var rec types.RecInfo

	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketFiles).Get([]byte(name))
		if data == nil {
			return errs.NotFoundf("file %q not found", name)
		}
		if err := json.Unmarshal(data, &rec.File); err != nil {
			return err
		}

		if rec.File.Obsid == nil {
			return nil
		}

		obsData := tx.Bucket(bucketObservations).Get(int64Key(*rec.File.Obsid))
		if obsData == nil {
			return nil
		}
		var obs types.Observation
		if err := json.Unmarshal(obsData, &obs); err != nil {
			return err
		}
		rec.Observation = &obs

		if obs.SessionID == nil {
			return nil
		}
		sessData := tx.Bucket(bucketSessions).Get(int64Key(*obs.SessionID))
		if sessData == nil {
			return nil
		}
		var sess types.ObservingSession
		if err := json.Unmarshal(sessData, &sess); err != nil {
			return err
		}
		rec.Session = &sess
		return nil
	})
	return rec, err
}

// ApplyFileRecord installs a RecInfo received from a peer librarian: it
// creates the File's Observation and ObservingSession if they are not
// already known, without reassigning an Observation that is already
// session-bound locally.
func (c *Catalog) ApplyFileRecord(rec types.RecInfo) error {
	if rec.Session != nil {
		if _, err := c.GetSession(rec.Session.ID); err != nil {
			if err := c.db.Update(func(tx *bolt.Tx) error {
				b := tx.Bucket(bucketSessions)
				if b.Get(int64Key(rec.Session.ID)) != nil {
					return nil
				}
				return putJSON(b, int64Key(rec.Session.ID), *rec.Session)
			}); err != nil {
				return err
			}
		}
	}

	if rec.Observation != nil {
		if _, err := c.GetObservation(rec.Observation.Obsid); err != nil {
			if err := c.CreateOrUpdateObservation(*rec.Observation); err != nil {
				return err
			}
		}
	}

	return nil
}
