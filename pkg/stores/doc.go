// Package stores provides a pluggable driver abstraction over the bulk
// filesystems a librarian stages files onto and streams files from.
//
// A Driver implementation owns no catalog state; it only moves bytes. The
// Registry maps a types.Store's Name to the live Driver instance built
// from its configuration (BuildLocal uses only the path prefix), mirroring
// the driver-registry shape of a volume manager: one interface, several
// backends, looked up by name at the moment a task needs to touch disk.
package stores
