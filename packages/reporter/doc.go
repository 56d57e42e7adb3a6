// Package reporter aggregates per-test outcomes for one run and hands them
// to registered observers when the run ends.
//
// A Reporter moves through three states: Uninitialized until the first
// observer is added, Collecting while entries are recorded, and Finalized
// after End. End is idempotent; adding observers or recording entries
// after it is a LifecycleError.
package reporter
