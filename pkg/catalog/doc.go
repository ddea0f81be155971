/*
Package catalog owns every entity described by the librarian's data model —
ObservingSessions, Observations, Files, FileInstances, FileEvents, Stores,
and StandingOrders — and is the only package permitted to persist them.

# Architecture

The catalog is a single embedded go.etcd.io/bbolt database file, one bucket
per entity plus a handful of secondary-index buckets that stand in for the
foreign keys and unique indices of a relational schema:

	┌──────────────────────────── CATALOG ────────────────────────────┐
	│                                                                   │
	│  primary buckets            secondary indices                   │
	│  ─────────────────          ──────────────────                  │
	│  sessions      (id)                                              │
	│  observations  (obsid)                                           │
	│  files         (name)                                            │
	│  instances     (store|dirs| instances_by_file(name -> keys)      │
	│                 name)                                            │
	│  events        (name|seq)   events_by_file   (name -> keys)      │
	│  stores        (id)         store_by_name    (name -> id)        │
	│  standing_orders(id)        order_by_name    (name -> id)        │
	│                                                                   │
	└───────────────────────────────────────────────────────────────┘

Every mutating method runs inside one bbolt.Update transaction: all of its
bucket writes commit together or none do, which is the Go rendering of "every
mutating operation commits inside a single unit; on failure the unit is
rolled back." Read methods use bbolt.View and never observe a partially
written mutation.

Mutations that can create new standing-order matches (instance registration,
event creation) publish a notify.Notification after the transaction commits,
so the replication engine can react without the catalog importing it.
*/
package catalog
