package search

import (
	"github.com/cuemby/librarian/pkg/errs"
)

// SchemaKind selects which of the three registered schemas a clause tree
// is compiled against.
type SchemaKind int

const (
	SchemaFile SchemaKind = iota
	SchemaObservation
	SchemaSession
)

// Compile parses raw (comment-stripped JSON) into a Predicate for the
// given schema. A bare top-level object is treated as an implicit `and`.
func Compile(kind SchemaKind, raw string) (Predicate, error) {
	tree, err := decodeTree(raw)
	if err != nil {
		return nil, err
	}
	return compileTree(kind, tree)
}

func compileTree(kind SchemaKind, tree map[string]any) (Predicate, error) {
	preds := make([]Predicate, 0, len(tree))
	for name, payload := range tree {
		p, err := compileClause(kind, name, payload)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return andAll(preds), nil
}

func compileList(kind SchemaKind, name string, payload any) ([]Predicate, error) {
	m, err := asClauseMap(name, payload)
	if err != nil {
		return nil, err
	}
	preds := make([]Predicate, 0, len(m))
	for sub, subPayload := range m {
		p, err := compileClause(kind, sub, subPayload)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func compileClause(kind SchemaKind, name string, payload any) (Predicate, error) {
	switch name {
	case "and":
		preds, err := compileList(kind, name, payload)
		if err != nil {
			return nil, err
		}
		return andAll(preds), nil
	case "or":
		preds, err := compileList(kind, name, payload)
		if err != nil {
			return nil, err
		}
		return orAny(preds), nil
	case "none-of":
		preds, err := compileList(kind, name, payload)
		if err != nil {
			return nil, err
		}
		return negate(orAny(preds)), nil
	case "always-true":
		return func(*Record) (bool, error) { return true, nil }, nil
	case "always-false":
		return func(*Record) (bool, error) { return false, nil }, nil
	}

	switch kind {
	case SchemaFile:
		return compileFileClause(name, payload)
	case SchemaObservation:
		return compileObservationClause(name, payload)
	case SchemaSession:
		return compileSessionClause(name, payload)
	default:
		return nil, errs.Internalf("unknown search schema %d", kind)
	}
}
