// Package tasks implements the librarian's background task manager: a
// bounded worker pool that runs the slow, catalog-free half of a task
// (Work) off the hot path, then hands its result to a single coordinator
// goroutine that runs the fast, catalog-touching half (Wrapup) serially.
//
// Because every Wrapup runs on the one coordinator goroutine, wrapup
// never has to worry about concurrent catalog access from two tasks at
// once. Finished tasks linger in the manager for review before being
// purged.
package tasks
