// Package fetcher implements the resumable bulk fetch.
//
// A run loads the call and put inventories and their checkpoint records once,
// subtracts every identifier already recorded as succeeded or unavailable,
// and then fetches what remains strictly one at a time, calls before puts.
// Each identifier ends in exactly one checkpoint record, appended and
// fsynced before the next identifier starts:
//
//	fetch -> rows appended to <TICKER>_<category>_<timespan>_<multiplier>x.csv -> <category>_requested.txt
//	fetch fails                                                               -> <category>_requested_not_working.txt
//
// Nothing is retried within a run. With separate_transient enabled,
// network, rate-limit and server failures go to a transient record instead,
// which is cleared at the start of every run so those identifiers are
// tried again.
//
// A small journal in the work directory brackets every output append so
// rows whose identifier was never checkpointed are removed on the next start.
package fetcher
