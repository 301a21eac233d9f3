// Package memindex provides an in-process vector index with tombstoned
// deletes and background compaction.
//
// Two search strategies sit behind the same handle: an exact linear
// scan, which is the reference behaviour and is always used below a
// configurable size threshold, and an approximate random-hyperplane
// strategy for large indices. Correctness tests run against the exact
// scan.
package memindex
