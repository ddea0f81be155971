// Package search implements the librarian's clause-tree search compiler:
// a small declarative JSON grammar (and/or/none-of composition, typed
// attribute clauses, a handful of special clauses) compiled into a
// Predicate evaluated against in-memory catalog records. The same
// compiler backs interactive queries and the replication engine's
// standing-order matching.
//
// Three schemas register their own attribute sets and special clauses:
// File (schema_file.go), Observation (schema_observation.go), and
// ObservingSession (schema_session.go). File additionally proxies
// Observation-scoped clauses (proxy.go) so a caller can write
// "start-time-jd-greater-than" directly against a file search instead of
// nesting it inside obs-matches.
package search
