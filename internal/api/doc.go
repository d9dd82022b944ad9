// Package api hosts the status HTTP server that lets operators watch a run
// without a terminal. Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/frame for the latest rendered progress frame as plain text.
//   - GET /v1/status for the same frame plus run metadata as JSON.
package api
