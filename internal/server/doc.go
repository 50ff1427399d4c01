// Package server is the relayview host surface: a gin HTTP server that
// serves the viewer shell and renders pages on demand.
//
// Routes:
//
//	GET /             viewer shell (URL bar, status line, sandboxed iframe)
//	GET /api/render   navigate to ?url= and return the document as JSON
//	GET /api/history  recent navigations, when history is enabled
//	GET /healthz      liveness
//	GET /metrics      Prometheus metrics, when metrics are enabled
//
// The shell listens for "relayview:navigate" messages posted by rewritten
// documents and renders the requested URL through the same API. Every
// render goes through Controller.Navigate, so a new request cancels the
// one still in flight.
package server
