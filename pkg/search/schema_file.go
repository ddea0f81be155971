package search

import (
	"time"

	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/types"
)

var fileAttrs = map[string]AttrKind{
	"name":          KindText,
	"type":          KindText,
	"source":        KindText,
	"size":          KindInt,
	"obsid":         KindInt,
	"num-instances": KindInt,
}

func compileFileClause(name string, payload any) (Predicate, error) {
	if pred, ok, err := matchAttrClause(fileAttrs, name, payload); ok || err != nil {
		return pred, err
	}

	switch name {
	case "obsid-is-null":
		return func(r *Record) (bool, error) {
			v, _ := r.attr("obsid")
			return v == nil, nil
		}, nil

	case "not-older-than":
		return fileAgeClause(name, payload, true)
	case "not-newer-than":
		return fileAgeClause(name, payload, false)

	case "obs-matches":
		m, err := asClauseMap(name, payload)
		if err != nil {
			return nil, err
		}
		obsPred, err := compileTree(SchemaObservation, m)
		if err != nil {
			return nil, err
		}
		return wrapObsMatch(obsPred), nil
	}

	// File-side proxy: an Observation-scoped clause applied directly to a
	// File query, e.g. "start-time-jd-greater-than" without nesting it
	// inside obs-matches.
	if pred, ok, err := matchProxiedObservationClause(name, payload); ok || err != nil {
		return pred, err
	}

	return nil, errs.BadRequestf("unknown file search clause %q", name)
}

func fileAgeClause(name string, payload any, notOlderThan bool) (Predicate, error) {
	days, err := asNumber(name, payload)
	if err != nil {
		return nil, err
	}
	cutoffAge := time.Duration(days * float64(24*time.Hour))
	return func(r *Record) (bool, error) {
		v, ok := r.attr("create-time")
		if !ok {
			return false, nil
		}
		createTime, _ := v.(time.Time)
		cutoff := time.Now().UTC().Add(-cutoffAge)
		if notOlderThan {
			return createTime.After(cutoff), nil
		}
		return createTime.Before(cutoff), nil
	}, nil
}

// wrapObsMatch lifts an Observation Predicate to evaluate against the
// Observation record linked to the current File (if any).
func wrapObsMatch(obsPred Predicate) Predicate {
	return func(r *Record) (bool, error) {
		if r.obs == nil {
			return false, nil
		}
		return obsPred(r.obs)
	}
}

// fileRecord builds the attribute bag for one File. obs is the linked
// Observation's Record, or nil if the File has no obsid or the
// Observation hasn't been assigned one yet.
func fileRecord(f types.File, numInstances int, obs *Record) *Record {
	attrs := map[string]any{
		"name":          f.Name,
		"type":          f.Type,
		"source":        f.Source,
		"size":          f.Size,
		"num-instances": int64(numInstances),
		"create-time":   f.CreateTime,
		"obsid":         nil,
	}
	if f.Obsid != nil {
		attrs["obsid"] = *f.Obsid
	}
	return &Record{attrs: attrs, obs: obs}
}
