// Package checkpoint persists which identifiers a fetch has already handled.
//
// Records are plain newline-delimited files in the work directory, one per
// category and outcome:
//
//	call_requested.txt              fetched and written
//	call_requested_not_working.txt  failed permanently
//	call_requested_transient.txt    failed transiently (split policy only)
//
// A missing file is an empty record. Appends are fsynced before returning.
//
// The Journal covers the window between appending rows to an output file and
// appending the ticker to its record: Begin is called with the output size
// before the write, Clear after the checkpoint, and Recover on the next
// start truncates any rows whose ticker never got checkpointed.
package checkpoint
