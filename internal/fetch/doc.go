// Package fetch retrieves a target URL through an ordered list of relay
// endpoints.
//
// A relay endpoint is a fixed URL prefix; the percent-encoded target is
// appended to it. Endpoints are tried strictly one after another in the
// configured order. The first endpoint that answers with a 2xx status and a
// readable body wins, and its bytes are decoded through the charset
// resolver. Later endpoints are never contacted after a success.
//
// There are no retries of a single endpoint, no backoff, and no racing of
// endpoints. Requests are executed with github.com/go-resty/resty/v2 with
// its retry machinery disabled, and each endpoint can be throttled with its
// own golang.org/x/time/rate limiter.
package fetch
