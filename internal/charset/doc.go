// Package charset decides which text encoding to decode a fetched body with
// and performs the decoding.
//
// Resolution is a priority chain where the first successful step wins:
//  1. Statistical content sniffing (github.com/saintfish/chardet), accepted
//     only when the detector's confidence is strictly above 0.90.
//  2. The charset parameter of the transport Content-Type header, accepted
//     only when it is in an allow-list. Servers frequently mislabel pages,
//     so unknown labels are ignored instead of trusted.
//  3. The universal default, UTF-8.
//
// Decoding uses golang.org/x/net/html/charset for label lookup and
// golang.org/x/text/transform for conversion. An unsupported label or a
// failed conversion never aborts a fetch: the body is decoded as UTF-8.
package charset
