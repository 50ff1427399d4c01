// Package database stores relayview navigation history in SQLite.
//
// Every finished navigation is recorded with its target, document kind,
// charset decision, serving relay endpoint, relay attempts, final state and
// content hash. The history answers "what did this page look like last
// time" (hash comparison) and "which relays are actually working"
// (per-endpoint attempt statistics).
//
// Design decision: SQLite via modernc.org/sqlite keeps the store a single
// CGO-free file; WAL mode lets the serve command read while navigations
// are being recorded.
package database
