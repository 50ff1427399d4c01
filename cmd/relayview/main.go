// Package main provides the entry point for the relayview CLI.
//
// relayview fetches web pages through public relay endpoints, decodes them
// with the right charset, rewrites links and rebuilds legacy framesets so
// the result can be displayed inside a sandboxed frame.
//
// Usage:
//
//	relayview render <url>
//	relayview render --list <file> --output-dir <dir>
//	relayview serve
//
// See --help for all available options.
package main

// main is the entry point for relayview.
func main() {
	Execute()
}
