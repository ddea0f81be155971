package search

import (
	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/types"
)

var observationAttrs = map[string]AttrKind{
	"obsid":         KindInt,
	"start-time-jd": KindFloat,
	"stop-time-jd":  KindFloat,
	"start-lst-hr":  KindFloat,
	"session-id":    KindInt,
	"duration":      KindFloat,
	"num-files":     KindInt,
	"total-size":    KindInt,
}

func compileObservationClause(name string, payload any) (Predicate, error) {
	if pred, ok, err := matchAttrClause(observationAttrs, name, payload); ok || err != nil {
		return pred, err
	}
	return nil, errs.BadRequestf("unknown observation search clause %q", name)
}

// observationRecord builds the attribute bag for one Observation, given
// its file count and total byte size (derived attributes num-files and
// total-size, computed by the caller from the catalog's File index).
func observationRecord(obs types.Observation, numFiles int, totalSize int64) *Record {
	attrs := map[string]any{
		"obsid":         obs.Obsid,
		"start-time-jd": obs.StartJD,
		"session-id":    nil,
		"stop-time-jd":  nil,
		"duration":      nil,
		"num-files":     int64(numFiles),
		"total-size":    totalSize,
	}
	if obs.StopJD != nil {
		attrs["stop-time-jd"] = *obs.StopJD
		attrs["duration"] = *obs.StopJD - obs.StartJD
	}
	if obs.SessionID != nil {
		attrs["session-id"] = *obs.SessionID
	}
	if obs.StartLSTHr != nil {
		attrs["start-lst-hr"] = *obs.StartLSTHr
	} else {
		attrs["start-lst-hr"] = nil
	}
	return NewRecord(attrs)
}
