package search

import (
	"time"

	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/types"
)

var sessionAttrs = map[string]AttrKind{
	"session-id":    KindInt,
	"start-time-jd": KindFloat,
	"stop-time-jd":  KindFloat,
	"duration":      KindFloat,
	"num-obs":       KindInt,
	"num-files":     KindInt,
	"age":           KindFloat,
}

func compileSessionClause(name string, payload any) (Predicate, error) {
	if pred, ok, err := matchAttrClause(sessionAttrs, name, payload); ok || err != nil {
		return pred, err
	}

	if name == "no-file-has-event" {
		eventType, err := asText(name, payload)
		if err != nil {
			return nil, err
		}
		return func(r *Record) (bool, error) {
			if r.hasEvent == nil {
				return true, nil
			}
			has, err := r.hasEvent(eventType)
			if err != nil {
				return false, err
			}
			return !has, nil
		}, nil
	}

	return nil, errs.BadRequestf("unknown session search clause %q", name)
}

// julianDateNow converts the current instant to a Julian date, used for
// the `age` derived attribute.
func julianDateNow() float64 {
	return julianDate(time.Now().UTC())
}

const unixEpochJD = 2440587.5

func julianDate(t time.Time) float64 {
	return unixEpochJD + float64(t.Unix())/86400.0
}

// sessionRecord builds the attribute bag for one ObservingSession.
// hasEvent reports whether any File in this session carries a FileEvent
// of the given type, backing the no-file-has-event clause.
func sessionRecord(sess types.ObservingSession, numObs, numFiles int, hasEvent func(eventType string) (bool, error)) *Record {
	attrs := map[string]any{
		"session-id":    sess.ID,
		"start-time-jd": sess.StartJD,
		"stop-time-jd":  sess.StopJD,
		"duration":      sess.StopJD - sess.StartJD,
		"num-obs":       int64(numObs),
		"num-files":     int64(numFiles),
		"age":           julianDateNow() - sess.StopJD,
	}
	return &Record{attrs: attrs, hasEvent: hasEvent}
}
