// Package api hosts the HTTP server, middleware, and REST handlers for
// operator and host access. Notable routes:
//   - GET /healthz / readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the snapshot currently presented.
//   - POST /v1/work/starting and /v1/work/ending fire the host lifecycle
//     callbacks for a work item handle.
//   - PUT /v1/work-items registers run counters with the in-memory metadata
//     backend.
package api
