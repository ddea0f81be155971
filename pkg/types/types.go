// Package types defines the librarian's catalog data model: the entities
// of an observing-session-organized scientific data archive, plus the
// stores that hold physical copies and the standing orders that drive
// replication between sites. The Catalog (pkg/catalog) is the only code
// permitted to persist values of these types; everything else treats them
// as immutable snapshots once read.
package types

import (
	"encoding/json"
	"time"
)

// ObservingSession groups nearby Observations taken under uniform
// conditions. Its ID is always the obsid of its earliest Observation.
type ObservingSession struct {
	ID       int64
	StartJD  float64
	StopJD   float64
}

// Observation is a single contiguous span of data-taking.
type Observation struct {
	Obsid      int64
	StartJD    float64
	StopJD     *float64 // nil if not yet known
	StartLSTHr *float64
	SessionID  *int64
}

// DeletionPolicy controls whether a FileInstance may be removed by
// `delete_instances`.
type DeletionPolicy string

const (
	DeletionDisallowed DeletionPolicy = "disallowed"
	DeletionAllowed    DeletionPolicy = "allowed"
)

// File is a cataloged, immutable named artifact. Name is the catalog key:
// it must contain no path separator. Size and Digest never change after
// creation.
type File struct {
	Name       string
	Type       string
	Source     string
	Size       int64
	Digest     string // fixed-length hex
	CreateTime time.Time
	Obsid      *int64
}

// FileInstance is a physical copy of a File on a particular Store at a
// particular path. Its identity is the triple (StoreID, ParentDirs, Name).
type FileInstance struct {
	StoreID        int64
	ParentDirs     string
	Name           string
	DeletionPolicy DeletionPolicy
}

// FileEvent is an append-only log entry attached to a File. Once committed
// a FileEvent is never mutated or deleted.
type FileEvent struct {
	Name    string
	Time    time.Time
	Type    string
	Payload json.RawMessage
}

// Stable FileEvent type strings. Peers and post-processing pipelines
// match on these, so they never change.
const (
	EventInstanceCreation       = "instance_creation"
	EventDeletionPolicyChanged  = "instance_deletion_policy_changed"
	EventCopyLaunched           = "copy_launched"
	EventCopyFinished           = "copy_finished"
)

// StandingOrderSucceededEvent builds the per-order success event type
// string, e.g. "standing_order_succeeded:nightly-copy".
func StandingOrderSucceededEvent(orderName string) string {
	return "standing_order_succeeded:" + orderName
}

// Store is a named, remote host exposing a bulk filesystem that the
// librarian can stage files onto and stream files from.
type Store struct {
	ID          int64
	Name        string
	SSHHost     string
	PathPrefix  string // absolute
	HTTPPrefix  string
	Available   bool
}

// StandingOrder is an administrator-defined subscription: files matching
// Search are replicated to the peer librarian named by ConnName.
type StandingOrder struct {
	ID       int64
	Name     string
	Search   string // JSON text, must parse under the search-compiler grammar
	ConnName string
	Mode     string // "normal" (or empty), "disabled", or "nighttime"; overrides the engine-wide mode for this order
}

// EventType returns the FileEvent type string recorded when this order
// successfully copies a file.
func (o *StandingOrder) EventType() string {
	return StandingOrderSucceededEvent(o.Name)
}

// RecInfo is a denormalized snapshot of a File and its Observation/Session,
// shipped alongside an upload so the receiving librarian can recreate the
// catalog records without a second round trip.
type RecInfo struct {
	File        File
	Observation *Observation
	Session     *ObservingSession
}
