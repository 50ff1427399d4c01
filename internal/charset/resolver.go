package charset

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/nao1215/relayview/internal/model"
	"github.com/saintfish/chardet"
	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// SniffConfidenceThreshold is the confidence a sniffed encoding must exceed
// to be accepted. Lower thresholds produced wrong guesses on short documents.
const SniffConfidenceThreshold = 0.90

// DefaultCharset is the universal default encoding.
const DefaultCharset = "utf-8"

// DefaultAllowedCharsets are the header labels trusted without sniffing:
// the regional encodings the relayed pages are expected to use plus UTF-8.
var DefaultAllowedCharsets = []string{"shift_jis", "euc-jp", DefaultCharset}

// headerCharsetRegex extracts the charset parameter from a Content-Type value.
var headerCharsetRegex = regexp.MustCompile(`(?i)charset\s*=\s*([^;]+)`)

// Detector performs statistical encoding detection over raw bytes.
// Confidence is in the range 0..1.
type Detector interface {
	Detect(body []byte) (name string, confidence float64, ok bool)
}

// chardetDetector adapts chardet's text detector to Detector.
type chardetDetector struct {
	detector *chardet.Detector
}

// NewChardetDetector returns the default Detector backed by saintfish/chardet.
func NewChardetDetector() Detector {
	return &chardetDetector{detector: chardet.NewTextDetector()}
}

// Detect implements Detector. chardet reports confidence as 0..100.
func (d *chardetDetector) Detect(body []byte) (string, float64, bool) {
	if len(body) == 0 {
		return "", 0, false
	}
	result, err := d.detector.DetectBest(body)
	if err != nil || result == nil || result.Charset == "" {
		return "", 0, false
	}
	return strings.ToLower(result.Charset), float64(result.Confidence) / 100, true
}

// Resolver chooses the encoding for a fetched body.
// It holds only read-only configuration and is safe for concurrent use.
type Resolver struct {
	// detector performs content sniffing.
	detector Detector

	// allowed is the set of trusted header labels.
	allowed map[string]bool

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDetector replaces the content sniffer.
func WithDetector(d Detector) Option {
	return func(r *Resolver) {
		if d != nil {
			r.detector = d
		}
	}
}

// WithAllowedCharsets replaces the header allow-list.
// The universal default is always kept in the list.
func WithAllowedCharsets(names []string) Option {
	return func(r *Resolver) {
		r.allowed = make(map[string]bool, len(names)+1)
		for _, name := range names {
			r.allowed[strings.ToLower(strings.TrimSpace(name))] = true
		}
		r.allowed[DefaultCharset] = true
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver using chardet and the default allow-list.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		detector: NewChardetDetector(),
		logger:   slog.Default(),
	}
	WithAllowedCharsets(DefaultAllowedCharsets)(r)

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve chooses exactly one candidate for the body.
// The result is deterministic for the same bytes and header.
func (r *Resolver) Resolve(body []byte, contentType string) model.CharsetCandidate {
	if name, confidence, ok := r.detector.Detect(body); ok && confidence > SniffConfidenceThreshold {
		return model.CharsetCandidate{
			Name:       name,
			Confidence: confidence,
			Source:     model.CharsetSourceSniffed,
		}
	}

	if name := HeaderCharset(contentType); name != "" && r.allowed[name] {
		return model.CharsetCandidate{
			Name:       name,
			Confidence: 1,
			Source:     model.CharsetSourceHeader,
		}
	}

	return model.CharsetCandidate{
		Name:   DefaultCharset,
		Source: model.CharsetSourceFallback,
	}
}

// DecodeBody resolves the charset of body and decodes it.
// It never fails: a DecodeError is logged and the body is decoded as UTF-8,
// in which case the returned candidate is the fallback.
func (r *Resolver) DecodeBody(body []byte, contentType string) (string, model.CharsetCandidate) {
	candidate := r.Resolve(body, contentType)

	text, err := Decode(body, candidate.Name)
	if err != nil {
		r.logger.Debug("decode failed, falling back to utf-8",
			"charset", candidate.Name,
			"error", err,
		)
		return decodeUTF8(body), model.CharsetCandidate{
			Name:   DefaultCharset,
			Source: model.CharsetSourceFallback,
		}
	}

	return text, candidate
}

// HeaderCharset returns the lower-cased charset parameter of a Content-Type
// header value, or "" when there is none.
func HeaderCharset(contentType string) string {
	match := headerCharsetRegex.FindStringSubmatch(contentType)
	if match == nil {
		return ""
	}
	name := strings.TrimSpace(match[1])
	name = strings.Trim(name, `"'`)
	return strings.ToLower(name)
}

// Decode converts body from the named encoding to a UTF-8 string.
// It returns a *DecodeError when the label is unknown or conversion fails.
func Decode(body []byte, name string) (string, error) {
	enc, _ := htmlcharset.Lookup(name)
	if enc == nil {
		return "", &DecodeError{Name: name, Err: ErrUnsupportedCharset}
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return "", &DecodeError{Name: name, Err: err}
	}

	return strings.TrimPrefix(string(out), "\ufeff"), nil
}

// decodeUTF8 interprets body as UTF-8, replacing invalid sequences.
func decodeUTF8(body []byte) string {
	return strings.TrimPrefix(strings.ToValidUTF8(string(body), "\uFFFD"), "\ufeff")
}
