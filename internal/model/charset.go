package model

// CharsetSource identifies which step of charset resolution produced a candidate.
type CharsetSource int

const (
	// CharsetSourceFallback means no other step succeeded and the
	// universal default was chosen.
	CharsetSourceFallback CharsetSource = iota

	// CharsetSourceSniffed means statistical content sniffing produced the
	// candidate with sufficient confidence.
	CharsetSourceSniffed

	// CharsetSourceHeader means the transport Content-Type header named an
	// allow-listed charset.
	CharsetSourceHeader
)

// String returns the lower-case name of the source.
func (s CharsetSource) String() string {
	switch s {
	case CharsetSourceSniffed:
		return "content-sniffing"
	case CharsetSourceHeader:
		return "transport-header"
	case CharsetSourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so the source is readable in JSON.
func (s CharsetSource) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *CharsetSource) UnmarshalText(text []byte) error {
	switch string(text) {
	case "content-sniffing":
		*s = CharsetSourceSniffed
	case "transport-header":
		*s = CharsetSourceHeader
	default:
		*s = CharsetSourceFallback
	}
	return nil
}

// CharsetCandidate is the encoding chosen to decode one response body.
// Exactly one candidate is chosen per fetch.
type CharsetCandidate struct {
	// Name is the lower-case encoding label (e.g. "shift_jis").
	Name string `json:"name"`

	// Confidence is in the range 0..1. Header and fallback candidates
	// carry 1 and 0 respectively.
	Confidence float64 `json:"confidence"`

	// Source is the resolution step that produced this candidate.
	Source CharsetSource `json:"source"`
}
