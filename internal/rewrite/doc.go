// Package rewrite transforms a fetched document so it can be shown inside a
// sandboxed frame on a different origin.
//
// Rewrite runs these steps in order over a goquery document:
//  1. Optional ad removal through a pluggable AdClassifier.
//  2. Link classification. Links to other sites are disabled and styled as
//     struck through. Links to the same site are optionally rebound so a
//     click posts a navigation message to the parent window instead of
//     navigating the frame.
//  3. Every remaining relative href or src is made absolute against the
//     page URL, since the document will be served from a different origin.
//  4. All <base> elements are removed.
//  5. The head is made to declare UTF-8 exactly once, because the text was
//     already decoded.
//
// A bad URL on one element is skipped and logged at debug level; it never
// aborts the document.
package rewrite
