// Package sinks implements progress.Updater consumers other than the
// throttled renderer: structured logging and Prometheus collectors. Combine
// them with progress.Tee to feed several consumers from one reporter tree.
package sinks
