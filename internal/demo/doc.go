// Package demo runs a simulated build that exercises the progress pipeline:
// a "build" stage with a "compile" child whose units run on a bounded worker
// pool, followed by a "link" stage.
package demo
