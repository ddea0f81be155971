package rpc

import (
	"context"
	"sort"
	"strings"

	"github.com/cuemby/librarian/pkg/types"
)

// knownPolarizations lists the dot-separated filename tokens that mark a
// file's polarization. HERA/SO file names carry the polarization as one
// dot-separated token.
var knownPolarizations = []string{"xx", "yy", "xy", "yx", "ee", "nn", "en", "ne", "pI", "pQ", "pU", "pV"}

func polFromName(name string) string {
	for _, tok := range strings.Split(name, ".") {
		for _, pol := range knownPolarizations {
			if strings.EqualFold(tok, pol) {
				return pol
			}
		}
	}
	return ""
}

// opDescribeSessionWithoutEvent finds a session belonging to source that
// has at least one file lacking an eventType event, and describes every
// file source has in that session. External post-processing pipelines
// poll this to discover newly completed observing sessions.
func opDescribeSessionWithoutEvent(_ context.Context, d *Dispatcher, _ string, payload map[string]any) (map[string]any, error) {
	source, err := requiredString(payload, "source")
	if err != nil {
		return nil, err
	}
	eventType, err := requiredString(payload, "event_type")
	if err != nil {
		return nil, err
	}

	files, err := d.Catalog.ListFiles()
	if err != nil {
		return nil, err
	}

	var sessionID *int64
	for _, f := range files {
		if f.Source != source || f.Obsid == nil {
			continue
		}
		has, err := d.Catalog.HasEvent(f.Name, eventType)
		if err != nil {
			return nil, err
		}
		if has {
			continue
		}
		obs, err := d.Catalog.GetObservation(*f.Obsid)
		if err != nil || obs.SessionID == nil {
			continue
		}
		sessionID = obs.SessionID
		break
	}

	if sessionID == nil {
		return map[string]any{"any_matching": false}, nil
	}

	sessionObs, err := observationsInSession(d, *sessionID)
	if err != nil {
		return nil, err
	}
	durations := inferObservationDurations(sessionObs)

	type record struct {
		date   float64
		pol    string
		path   string
		host   string
		length float64
	}
	seen := map[string]bool{}
	var records []record

	for _, f := range files {
		if f.Source != source || f.Obsid == nil {
			continue
		}
		obs, ok := sessionObs[*f.Obsid]
		if !ok || seen[f.Name] {
			continue
		}
		seen[f.Name] = true

		host, path := "", f.Name
		if insts, err := d.Catalog.ListInstancesForFile(f.Name); err == nil && len(insts) > 0 {
			inst := insts[0]
			path = joinStorePath(inst.ParentDirs, inst.Name)
			if store, err := d.Catalog.GetStore(inst.StoreID); err == nil {
				host = store.SSHHost
			}
		}

		records = append(records, record{
			date:   obs.StartJD,
			pol:    polFromName(f.Name),
			path:   path,
			host:   host,
			length: durations[obs.Obsid],
		})
	}

	sort.Slice(records, func(i, j int) bool { return records[i].date < records[j].date })

	out := make([]map[string]any, len(records))
	for i, r := range records {
		out[i] = map[string]any{
			"date":   types.JDToTime(r.date).Format("2006-01-02"),
			"pol":    r.pol,
			"path":   r.path,
			"host":   r.host,
			"length": r.length,
		}
	}

	return map[string]any{"any_matching": true, "files": out}, nil
}

func observationsInSession(d *Dispatcher, sessionID int64) (map[int64]types.Observation, error) {
	all, err := d.Catalog.ListObservations()
	if err != nil {
		return nil, err
	}
	out := map[int64]types.Observation{}
	for _, o := range all {
		if o.SessionID != nil && *o.SessionID == sessionID {
			out[o.Obsid] = o
		}
	}
	return out, nil
}

// inferObservationDurations reports each observation's length, in
// seconds, as its own stop_jd - start_jd when known, falling back to the
// median start-time gap between consecutive observations in the session.
func inferObservationDurations(obs map[int64]types.Observation) map[int64]float64 {
	ordered := make([]types.Observation, 0, len(obs))
	for _, o := range obs {
		ordered = append(ordered, o)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].StartJD < ordered[j].StartJD })

	var gaps []float64
	for i := 1; i < len(ordered); i++ {
		gaps = append(gaps, ordered[i].StartJD-ordered[i-1].StartJD)
	}
	medianGapDays := medianFloat64(gaps)

	out := make(map[int64]float64, len(ordered))
	for _, o := range ordered {
		if o.StopJD != nil {
			out[o.Obsid] = (*o.StopJD - o.StartJD) * 86400
			continue
		}
		out[o.Obsid] = medianGapDays * 86400
	}
	return out
}

func medianFloat64(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func joinStorePath(parentDirs, name string) string {
	if parentDirs == "" {
		return name
	}
	return parentDirs + "/" + name
}
