// Package model defines the data structures shared across relayview.
//
// This package contains the following main types:
//   - CharsetCandidate: The encoding chosen for one fetched body
//   - FetchOutcome: The result of one relay retrieval
//   - Navigation: The full record of one "navigate to URL" request
//   - PaneOutcome: The per-pane result of a frameset reconstruction
//
// Design decision: We separate models into their own package to avoid import
// cycles. The charset, fetch, layout, pipeline, database and report packages
// all exchange these types, so centralizing them keeps the dependency graph
// a tree.
//
// The models are serializable to JSON for the HTTP API and the history
// database.
package model
