// Package progress provides hierarchical stage reporting for concurrent work.
// Workers hold Reporter handles and emit stage lifecycle events; a single
// consumer goroutine (ThrottledSink) applies them to a private Tracker and
// renders the resulting tree on a coalesced cadence.
package progress
