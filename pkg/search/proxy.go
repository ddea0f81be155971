package search

// proxiedObservationPrefixes are the Observation attribute name prefixes
// the File schema proxies directly, so callers can write
// "start-time-jd-greater-than" against a file search instead of nesting
// it inside obs-matches.
var proxiedObservationPrefixes = []string{
	"start-time-jd",
	"stop-time-jd",
	"start-lst-hr",
	"session-id",
}

// matchProxiedObservationClause tries name against the subset of
// Observation attributes eligible for file-side proxying. On a match it
// compiles the clause against the Observation schema and wraps it with
// wrapObsMatch so it evaluates against the file's linked Observation.
func matchProxiedObservationClause(name string, payload any) (Predicate, bool, error) {
	eligible := false
	for _, pfx := range proxiedObservationPrefixes {
		if hasPrefix(name, pfx) {
			eligible = true
			break
		}
	}
	if !eligible {
		return nil, false, nil
	}

	obsPred, ok, err := matchAttrClause(observationAttrs, name, payload)
	if !ok || err != nil {
		return obsPred, ok, err
	}
	return wrapObsMatch(obsPred), true, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
