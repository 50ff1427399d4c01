// Package pipeline drives one navigation from raw user input to a document
// the host can display.
//
// A navigation runs three ordered steps: fetch the target through the relay
// endpoints, parse it, then either rebuild a frameset or rewrite an ordinary
// page. The Controller wraps those steps with URL normalization, a deadline,
// status reporting and cancellation of the previous navigation, and always
// leaves the navigation in a terminal state with a document to show.
//
// Design decision: The step list is a small pipeline rather than straight
// function calls so every step logs and records itself the same way, and
// cancellation is checked between steps.
//
// BatchProcessor renders many URLs concurrently with errgroup. Batch runs do
// not cancel each other.
package pipeline
