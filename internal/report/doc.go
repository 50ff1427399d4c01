// Package report renders navigation summaries.
//
// A report explains how a page was obtained and what was changed: the
// relay endpoints tried, the charset decision, link classification and ad
// removal counts, and the per-pane outcome of a rebuilt frameset.
//
// Writers:
//   - SimpleWriter: plain text for the terminal
//   - MarkdownWriter: GitHub Flavored Markdown with tables and a Mermaid chart
//   - JSONWriter: the navigation record for tool integration
//
// Writers implement the Writer interface and can be combined with MultiWriter.
package report
