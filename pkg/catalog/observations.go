package catalog

import (
	"encoding/json"

	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// CreateOrUpdateObservation upserts an Observation by obsid. If stop_jd is
// present it must exceed start_jd.
func (c *Catalog) CreateOrUpdateObservation(obs types.Observation) error {
	if obs.StopJD != nil && obs.StartJD >= *obs.StopJD {
		return errs.BadRequestf("observation %d: start_jd must be < stop_jd", obs.Obsid)
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketObservations)
		key := int64Key(obs.Obsid)

		if existing := b.Get(key); existing != nil {
			var prev types.Observation
			if err := json.Unmarshal(existing, &prev); err != nil {
				return err
			}
			obs.SessionID = prev.SessionID // session assignment owns this field
		}

		if obs.SessionID != nil {
			if err := requireSessionContains(tx, *obs.SessionID, obs); err != nil {
				return err
			}
		}

		return putJSON(b, key, obs)
	})
}

func requireSessionContains(tx *bolt.Tx, sessionID int64, obs types.Observation) error {
	data := tx.Bucket(bucketSessions).Get(int64Key(sessionID))
	if data == nil {
		return errs.NotFoundf("session %d not found", sessionID)
	}
	var sess types.ObservingSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return err
	}
	if obs.StartJD < sess.StartJD || obs.StartJD > sess.StopJD {
		return errs.Internalf("observation %d start_jd %.6f falls outside session %d bounds", obs.Obsid, obs.StartJD, sessionID)
	}
	return nil
}

// GetObservation looks up an Observation by obsid.
func (c *Catalog) GetObservation(obsid int64) (types.Observation, error) {
	var obs types.Observation
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketObservations).Get(int64Key(obsid))
		if data == nil {
			return errs.NotFoundf("observation %d not found", obsid)
		}
		return json.Unmarshal(data, &obs)
	})
	return obs, err
}

// ListObservations returns every cataloged Observation.
func (c *Catalog) ListObservations() ([]types.Observation, error) {
	var out []types.Observation
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketObservations).ForEach(func(_, v []byte) error {
			var obs types.Observation
			if err := json.Unmarshal(v, &obs); err != nil {
				return err
			}
			out = append(out, obs)
			return nil
		})
	})
	return out, err
}

// ListSessions returns every ObservingSession.
func (c *Catalog) ListSessions() ([]types.ObservingSession, error) {
	var out []types.ObservingSession
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(_, v []byte) error {
			var s types.ObservingSession
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			out = append(out, s)
			return nil
		})
	})
	return out, err
}

// GetSession looks up an ObservingSession by id.
func (c *Catalog) GetSession(id int64) (types.ObservingSession, error) {
	var s types.ObservingSession
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get(int64Key(id))
		if data == nil {
			return errs.NotFoundf("session %d not found", id)
		}
		return json.Unmarshal(data, &s)
	})
	return s, err
}
