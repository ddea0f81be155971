package rpc

import (
	"github.com/cuemby/librarian/pkg/catalog"
	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/types"
)

func requiredString(payload map[string]any, key string) (string, error) {
	v, ok := payload[key]
	if !ok {
		return "", errs.BadRequestf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", errs.BadRequestf("argument %q must be a non-empty string", key)
	}
	return s, nil
}

func optionalString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func requiredFloat64(payload map[string]any, key string) (float64, error) {
	v, ok := payload[key]
	if !ok {
		return 0, errs.BadRequestf("missing required argument %q", key)
	}
	return toFloat64(key, v)
}

func optionalFloat64Ptr(payload map[string]any, key string) (*float64, error) {
	v, ok := payload[key]
	if !ok || v == nil {
		return nil, nil
	}
	f, err := toFloat64(key, v)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func toFloat64(key string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, errs.BadRequestf("argument %q must be numeric", key)
	}
}

func requiredInt64(payload map[string]any, key string) (int64, error) {
	f, err := requiredFloat64(payload, key)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

func requiredMap(payload map[string]any, key string) (map[string]any, error) {
	v, ok := payload[key]
	if !ok {
		return nil, errs.BadRequestf("missing required argument %q", key)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errs.BadRequestf("argument %q must be an object", key)
	}
	return m, nil
}

// optionalStoreIDPtr reads an optional store restriction: a numeric store
// id, or a store name resolved through the catalog.
func optionalStoreIDPtr(d *Dispatcher, payload map[string]any, key string) (*int64, error) {
	v, ok := payload[key]
	if !ok || v == nil {
		return nil, nil
	}
	if name, ok := v.(string); ok {
		store, err := d.Catalog.GetStoreByName(name)
		if err != nil {
			return nil, err
		}
		return &store.ID, nil
	}
	f, err := toFloat64(key, v)
	if err != nil {
		return nil, err
	}
	id := int64(f)
	return &id, nil
}

func errBadDeletionPolicy(policy string) error {
	return errs.BadRequestf("deletion policy must be %q or %q, got %q", types.DeletionAllowed, types.DeletionDisallowed, policy)
}

func errBadFileInfo(path string) error {
	return errs.BadRequestf("file_info[%q] must be an object with size/md5/type", path)
}

// deletionModeFromPayload reads the optional "mode" argument into a
// catalog.DeletionMode, defaulting to DeletionStandard.
func deletionModeFromPayload(payload map[string]any) (catalog.DeletionMode, error) {
	v, ok := payload["mode"]
	if !ok || v == nil {
		return catalog.DeletionStandard, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errs.BadRequestf("argument \"mode\" must be a string")
	}
	switch mode := catalog.DeletionMode(s); mode {
	case catalog.DeletionStandard, catalog.DeletionNoop, catalog.DeletionForce:
		return mode, nil
	default:
		return "", errs.BadRequestf("unknown deletion mode %q", s)
	}
}

// recInfoToPayload flattens a types.RecInfo into the wire shape peer
// librarians exchange during staging/upload: a file record plus optional
// observation/session records, each present only when known.
func recInfoToPayload(rec types.RecInfo) map[string]any {
	out := map[string]any{
		"name":        rec.File.Name,
		"type":        rec.File.Type,
		"source":      rec.File.Source,
		"size":        rec.File.Size,
		"md5":         rec.File.Digest,
		"create_time": rec.File.CreateTime,
	}
	if rec.File.Obsid != nil {
		out["obsid"] = *rec.File.Obsid
	}
	if rec.Observation != nil {
		obsOut := map[string]any{
			"obsid":         rec.Observation.Obsid,
			"start_time_jd": rec.Observation.StartJD,
		}
		if rec.Observation.StopJD != nil {
			obsOut["stop_time_jd"] = *rec.Observation.StopJD
		}
		if rec.Observation.StartLSTHr != nil {
			obsOut["start_lst_hr"] = *rec.Observation.StartLSTHr
		}
		out["observation"] = obsOut
	}
	if rec.Session != nil {
		out["session"] = map[string]any{
			"id":       rec.Session.ID,
			"start_jd": rec.Session.StartJD,
			"stop_jd":  rec.Session.StopJD,
		}
	}
	return out
}
