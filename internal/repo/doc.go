// Package repo persists encoded documents in SQLite. Snapshots are
// content-addressed: each save stores the canonical hash alongside the
// encoded body, a head pointer tracks the latest snapshot per URI, and
// unchanged saves are detected by hash and skipped. The repository sits
// strictly above the codecs; the in-memory core never touches it.
package repo
