// Package layout rebuilds legacy <frameset> pages as a single document.
//
// Frames cannot be displayed inside a sandboxed srcdoc frame, so each frame
// source is fetched and rewritten separately and placed in a flexbox
// container that mimics the frameset's cols or rows sizing. A pane that
// cannot be retrieved is replaced by a notice naming its URL; the other
// panes still render.
//
// Framesets nested inline in the markup become nested containers. A pane
// whose fetched document is itself a frameset is reconstructed recursively
// up to MaxDepth levels.
package layout
