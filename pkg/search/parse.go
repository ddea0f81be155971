package search

import (
	"encoding/json"
	"strings"

	"github.com/cuemby/librarian/pkg/errs"
)

// stripComments removes everything from the first '#' to the end of each
// line, so hand-written searches can carry comments. It does not
// understand quoting, so a '#' inside a JSON string value is stripped
// too - callers should avoid them.
func stripComments(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			lines[i] = line[:idx]
		}
	}
	return strings.Join(lines, "\n")
}

// decodeTree parses raw as a search clause tree: a top-level JSON object
// whose keys are clause names. Any parse failure is reported as a bad
// search, never an internal error.
func decodeTree(raw string) (map[string]any, error) {
	cleaned := stripComments(raw)
	if strings.TrimSpace(cleaned) == "" {
		return map[string]any{}, nil
	}

	var tree map[string]any
	if err := json.Unmarshal([]byte(cleaned), &tree); err != nil {
		return nil, errs.BadRequestf("can't parse search as JSON: %v", err)
	}
	return tree, nil
}

// Normalize strips comments, decodes raw, and re-encodes it with sorted
// keys, producing the canonical text form of a search. Normalizing an
// already-normalized search returns it unchanged, which is what lets a
// stored StandingOrder search be compared textually.
func Normalize(raw string) (string, error) {
	tree, err := decodeTree(raw)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(tree)
	if err != nil {
		return "", errs.BadRequestf("can't re-encode search: %v", err)
	}
	return string(out), nil
}

func asClauseMap(name string, payload any) (map[string]any, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, errs.BadRequestf("can't parse %q clause: contents must be a map of clauses", name)
	}
	return m, nil
}

func asText(name string, payload any) (string, error) {
	s, ok := payload.(string)
	if !ok {
		return "", errs.BadRequestf("can't parse %q clause: contents must be text", name)
	}
	return s, nil
}

func asNumber(name string, payload any) (float64, error) {
	switch v := payload.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, errs.BadRequestf("can't parse %q clause: contents must be numeric", name)
	}
}

func asRange(name string, payload any) (lo, hi float64, err error) {
	list, ok := payload.([]any)
	if !ok || len(list) != 2 {
		return 0, 0, errs.BadRequestf("can't parse %q clause: contents must be a 2-element list", name)
	}
	a, err := asNumber(name, list[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := asNumber(name, list[1])
	if err != nil {
		return 0, 0, err
	}
	if a > b {
		a, b = b, a
	}
	return a, b, nil
}
