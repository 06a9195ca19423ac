// Package storage writes the delimited output files.
//
// Observation files are append-only: AppendRows writes the header only when
// the file is empty, emits all rows of one identifier in a single write and
// fsyncs. It reports the size the file had before the append, which the
// caller journals so an interrupted append can be cut back with Truncate.
//
// WriteTable produces whole files (the contract listing) via a temporary
// file and rename.
package storage
