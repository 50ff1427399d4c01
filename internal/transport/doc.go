// Package transport builds the HTTP clients that carry relay traffic.
//
// By default requests go straight to the relay endpoints. An upstream SOCKS5
// proxy (golang.org/x/net/proxy) can be configured instead, and EmbeddedTor
// launches a private Tor daemon through github.com/nao1215/tornago whose
// SOCKS port is then used as that upstream.
//
// Clients are created once and injected into the fetcher; nothing in this
// package keeps global state.
package transport
