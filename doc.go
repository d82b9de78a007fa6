// Package paldb implements an embeddable, write-once, persistent
// key-value store: a single-writer build phase produces an immutable
// file laid out as a metadata header, a per-key-length open-addressed
// index region, and a per-key-length data region, memory-mapped for
// concurrent lock-free reads thereafter.
//
// Writer stages puts into per-key-length temp streams and materializes
// the index on Close. Reader opens a built file for concurrent Get,
// Stream, and StreamKeys. RW layers a mutable overlay and periodic
// rebuild-and-swap on top of Writer/Reader for callers that want a
// single handle spanning many logical updates, at the cost of losing
// unflushed writes on crash.
package paldb
