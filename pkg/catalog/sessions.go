package catalog

import (
	"encoding/json"
	"sort"

	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/types"
	bolt "go.etcd.io/bbolt"
)

const (
	minSessionGapDays = 1.0 / 1440.0 // 1 minute
	maxSessionGapDays = 0.5          // half a day
	gapToleranceMult  = 20.0
)

func clampGap(gap float64) float64 {
	if gap < minSessionGapDays {
		return minSessionGapDays
	}
	if gap > maxSessionGapDays {
		return maxSessionGapDays
	}
	return gap
}

// AssignObservingSessions groups unassigned observations into observing
// sessions: observations with no session_id, inside the optional
// [minStartJD, maxStartJD] bound, are first matched against existing
// sessions, then the remainder are grouped into new sessions by time-gap
// clustering. Returns the newly created sessions. Re-running with
// unchanged inputs is idempotent: it returns nothing once there are no
// unassigned observations left to group.
func (c *Catalog) AssignObservingSessions(minStartJD, maxStartJD *float64) ([]types.ObservingSession, error) {
	unassigned, err := c.unassignedObservations(minStartJD, maxStartJD)
	if err != nil {
		return nil, err
	}
	if len(unassigned) == 0 {
		return nil, nil
	}

	existing, err := c.ListSessions()
	if err != nil {
		return nil, err
	}

	var remaining []types.Observation
	for _, obs := range unassigned {
		sess, ok := findContainingSession(existing, obs)
		if !ok {
			remaining = append(remaining, obs)
			continue
		}
		if err := c.assignObservationToSession(obs.Obsid, sess.ID); err != nil {
			return nil, err
		}
	}

	if len(remaining) == 0 {
		return nil, nil
	}

	sort.Slice(remaining, func(i, j int) bool { return remaining[i].StartJD < remaining[j].StartJD })

	var created []types.ObservingSession
	for i0 := 0; i0 < len(remaining); {
		i1 := i0 + 1
		if i1 < len(remaining) {
			// The group's tolerance scales off its own first gap, clamped
			// so a burst of rapid-fire observations doesn't demand
			// microsecond spacing and a sparse night doesn't swallow the
			// next one.
			allowedGap := clampGap((remaining[i1].StartJD - remaining[i0].StartJD) * gapToleranceMult)
			for i1 < len(remaining) && remaining[i1].StartJD-remaining[i1-1].StartJD < allowedGap {
				i1++
			}
		}

		group := remaining[i0:i1]
		last := group[len(group)-1]
		if last.StopJD == nil {
			return nil, errs.BadRequestf("cannot assign a session ending at obsid %d: observation has no stop_jd (MissingStopTime)", last.Obsid)
		}

		sess := types.ObservingSession{
			ID:      group[0].Obsid,
			StartJD: group[0].StartJD,
			StopJD:  *last.StopJD,
		}
		if err := c.createSessionAndAssign(sess, group); err != nil {
			return nil, err
		}
		created = append(created, sess)

		i0 = i1
	}

	return created, nil
}

func findContainingSession(sessions []types.ObservingSession, obs types.Observation) (types.ObservingSession, bool) {
	for _, s := range sessions {
		if obs.StartJD < s.StartJD || obs.StartJD > s.StopJD {
			continue
		}
		if obs.StopJD != nil && *obs.StopJD > s.StopJD {
			continue
		}
		return s, true
	}
	return types.ObservingSession{}, false
}

func (c *Catalog) unassignedObservations(minStartJD, maxStartJD *float64) ([]types.Observation, error) {
	all, err := c.ListObservations()
	if err != nil {
		return nil, err
	}
	var out []types.Observation
	for _, obs := range all {
		if obs.SessionID != nil {
			continue
		}
		if minStartJD != nil && obs.StartJD < *minStartJD {
			continue
		}
		if maxStartJD != nil && obs.StartJD > *maxStartJD {
			continue
		}
		out = append(out, obs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartJD < out[j].StartJD })
	return out, nil
}

func (c *Catalog) assignObservationToSession(obsid, sessionID int64) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketObservations)
		key := int64Key(obsid)
		var obs types.Observation
		if err := json.Unmarshal(b.Get(key), &obs); err != nil {
			return err
		}
		obs.SessionID = &sessionID
		return putJSON(b, key, obs)
	})
}

func (c *Catalog) createSessionAndAssign(sess types.ObservingSession, group []types.Observation) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		sessB := tx.Bucket(bucketSessions)
		if sessB.Get(int64Key(sess.ID)) != nil {
			return errs.Conflictf("session %d already exists", sess.ID)
		}

		// Sessions partition the timeline: a new one must not overlap any
		// existing one.
		err := sessB.ForEach(func(_, v []byte) error {
			var other types.ObservingSession
			if err := json.Unmarshal(v, &other); err != nil {
				return err
			}
			if sess.StartJD < other.StopJD && sess.StopJD > other.StartJD {
				return errs.Conflictf("session %d [%f, %f] would overlap session %d [%f, %f]",
					sess.ID, sess.StartJD, sess.StopJD, other.ID, other.StartJD, other.StopJD)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if err := putJSON(sessB, int64Key(sess.ID), sess); err != nil {
			return err
		}

		obsB := tx.Bucket(bucketObservations)
		for _, obs := range group {
			key := int64Key(obs.Obsid)
			obs.SessionID = &sess.ID
			if err := putJSON(obsB, key, obs); err != nil {
				return err
			}
		}
		return nil
	})
}
