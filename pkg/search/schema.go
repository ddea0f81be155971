package search

import (
	"regexp"
	"strings"

	"github.com/cuemby/librarian/pkg/errs"
)

// compileLikePattern turns a SQL LIKE pattern ('%' matches any run, '_'
// matches one character, everything else is literal) into an anchored,
// case-insensitive regexp.
func compileLikePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// AttrKind is the value type an attribute holds (string/int/float).
type AttrKind int

const (
	KindText AttrKind = iota
	KindInt
	KindFloat
)

// Record is the attribute bag a compiled Predicate is evaluated against.
// Each schema builds one per candidate entity. obs and hasEvent carry the
// side-data needed by clauses that reach across entities (obs-matches,
// the file-side proxy, no-file-has-event); they are nil where irrelevant.
type Record struct {
	attrs    map[string]any
	obs      *Record
	hasEvent func(eventType string) (bool, error)
}

// NewRecord builds a Record from an attribute bag with no cross-entity
// side-data. Schema-specific constructors (schema_file.go etc.) wrap it.
func NewRecord(attrs map[string]any) *Record {
	return &Record{attrs: attrs}
}

func (r *Record) attr(name string) (any, bool) {
	v, ok := r.attrs[name]
	return v, ok
}

// Predicate is a compiled search clause. It reports whether rec matches.
type Predicate func(rec *Record) (bool, error)

func andAll(preds []Predicate) Predicate {
	return func(r *Record) (bool, error) {
		for _, p := range preds {
			ok, err := p(r)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}

func orAny(preds []Predicate) Predicate {
	return func(r *Record) (bool, error) {
		for _, p := range preds {
			ok, err := p(r)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

func negate(p Predicate) Predicate {
	return func(r *Record) (bool, error) {
		ok, err := p(r)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

// Each typed attribute registers a fixed fan-out of clause-name suffixes;
// an (attribute, suffix) pair outside this table is an unknown clause.
type opKind int

const (
	opIsExactly opKind = iota
	opIsNot
	opMatches
	opGreaterThan
	opLessThan
	opInRange
	opNotInRange
)

var suffixesByKind = map[AttrKind][]struct {
	suffix string
	op     opKind
}{
	KindText: {
		{"-is-exactly", opIsExactly},
		{"-is-not", opIsNot},
		{"-matches", opMatches},
	},
	KindInt: {
		{"-is-exactly", opIsExactly},
		{"-is-not", opIsNot},
		{"-greater-than", opGreaterThan},
		{"-less-than", opLessThan},
		{"-in-range", opInRange},
		{"-not-in-range", opNotInRange},
	},
	KindFloat: {
		{"-is-exactly", opIsExactly},
		{"-is-not", opIsNot},
		{"-greater-than", opGreaterThan},
		{"-less-than", opLessThan},
		{"-in-range", opInRange},
		{"-not-in-range", opNotInRange},
	},
}

// matchAttrClause tries to build a Predicate for name against the given
// attribute table. It returns ok=false (no error) when name doesn't match
// any attribute+suffix combination, so callers can fall through to other
// clause kinds.
func matchAttrClause(attrs map[string]AttrKind, name string, payload any) (Predicate, bool, error) {
	for attr, kind := range attrs {
		for _, sm := range suffixesByKind[kind] {
			if name != attr+sm.suffix {
				continue
			}
			pred, err := buildAttrPredicate(attr, kind, sm.op, name, payload)
			return pred, true, err
		}
	}
	return nil, false, nil
}

func buildAttrPredicate(attr string, kind AttrKind, op opKind, clauseName string, payload any) (Predicate, error) {
	switch op {
	case opIsExactly, opIsNot:
		want, err := coercedLiteral(kind, clauseName, payload)
		if err != nil {
			return nil, err
		}
		pred := func(r *Record) (bool, error) {
			v, ok := r.attr(attr)
			if !ok || v == nil {
				return false, nil
			}
			return valuesEqual(v, want), nil
		}
		if op == opIsNot {
			return negate(pred), nil
		}
		return pred, nil

	case opMatches:
		likePattern, err := asText(clauseName, payload)
		if err != nil {
			return nil, err
		}
		re, err := compileLikePattern(likePattern)
		if err != nil {
			return nil, errs.BadRequestf("bad %q pattern %q: %v", clauseName, likePattern, err)
		}
		return func(r *Record) (bool, error) {
			v, ok := r.attr(attr)
			if !ok || v == nil {
				return false, nil
			}
			s, _ := v.(string)
			return re.MatchString(s), nil
		}, nil

	case opGreaterThan, opLessThan:
		want, err := asNumber(clauseName, payload)
		if err != nil {
			return nil, err
		}
		return func(r *Record) (bool, error) {
			v, ok := r.attr(attr)
			if !ok || v == nil {
				return false, nil
			}
			n, ok := numericValue(v)
			if !ok {
				return false, nil
			}
			if op == opGreaterThan {
				return n > want, nil
			}
			return n < want, nil
		}, nil

	case opInRange, opNotInRange:
		lo, hi, err := asRange(clauseName, payload)
		if err != nil {
			return nil, err
		}
		pred := func(r *Record) (bool, error) {
			v, ok := r.attr(attr)
			if !ok || v == nil {
				return false, nil
			}
			n, ok := numericValue(v)
			if !ok {
				return false, nil
			}
			return n >= lo && n <= hi, nil
		}
		if op == opNotInRange {
			return negate(pred), nil
		}
		return pred, nil
	}
	return nil, errs.Internalf("unhandled attribute op for clause %q", clauseName)
}

func coercedLiteral(kind AttrKind, clauseName string, payload any) (any, error) {
	if kind == KindText {
		return asText(clauseName, payload)
	}
	n, err := asNumber(clauseName, payload)
	if err != nil {
		return nil, err
	}
	if kind == KindInt {
		return int64(n), nil
	}
	return n, nil
}

func valuesEqual(v, want any) bool {
	switch wv := want.(type) {
	case string:
		s, ok := v.(string)
		return ok && s == wv
	case int64:
		n, ok := numericValue(v)
		return ok && n == float64(wv)
	case float64:
		n, ok := numericValue(v)
		return ok && n == wv
	default:
		return false
	}
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
