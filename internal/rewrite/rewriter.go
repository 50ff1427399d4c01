package rewrite

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/relayview/internal/model"
	"golang.org/x/net/html"
)

// NavigateMessageType is the type field of the message an intercepted link
// posts to the parent window.
const NavigateMessageType = "relayview:navigate"

// Attributes written by the rewriter.
const (
	// AttrNavigateHref holds the absolute destination of an intercepted link.
	AttrNavigateHref = "data-relayview-href"

	// AttrDisabled holds the destination of a disabled cross-origin link.
	AttrDisabled = "data-relayview-disabled"
)

// disabledLinkStyle is appended to the style of cross-origin links.
const disabledLinkStyle = "color: #999; text-decoration: line-through;"

// interceptScript is the onclick handler of same-origin links. It hands the
// destination to the host page and suppresses navigation inside the frame.
var interceptScript = fmt.Sprintf(
	"window.parent.postMessage({type: '%s', url: this.getAttribute('%s')}, '*'); return false;",
	NavigateMessageType, AttrNavigateHref,
)

// Options selects the optional rewrite behaviour for one call.
type Options struct {
	// RemoveAds runs the ad classifier and deletes matches.
	RemoveAds bool

	// InterceptNavigation rebinds same-origin links to the navigation message.
	InterceptNavigation bool
}

// Rewriter applies the document transformation.
// It holds no per-document state and is safe for concurrent use.
type Rewriter struct {
	// classifier decides which elements are ads.
	classifier AdClassifier

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithAdClassifier replaces the default ad predicate.
func WithAdClassifier(c AdClassifier) Option {
	return func(r *Rewriter) {
		if c != nil {
			r.classifier = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rewriter) {
		r.logger = logger
	}
}

// NewRewriter creates a Rewriter with the default ad classifier.
func NewRewriter(opts ...Option) *Rewriter {
	r := &Rewriter{
		classifier: DefaultAdClassifier,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Parse builds a document from decoded HTML text.
// The HTML5 parser recovers from malformed markup, so the only failures are
// reader errors.
func Parse(src string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Rewrite transforms doc in place. base is the absolute URL the document
// was retrieved from.
func (r *Rewriter) Rewrite(doc *goquery.Document, base string, opts Options) (model.RewriteStats, error) {
	var stats model.RewriteStats
	if doc == nil {
		return stats, ErrNilDocument
	}
	baseURL, err := parseBase(base)
	if err != nil {
		return stats, fmt.Errorf("%w: %q", ErrInvalidBase, base)
	}

	if opts.RemoveAds {
		stats.AdsRemoved = removeAds(doc, r.classifier)
	}

	r.rewriteAnchors(doc, baseURL, opts, &stats)
	r.absolutize(doc, baseURL, &stats)

	doc.Find("base").Remove()
	ensureCharsetDeclaration(doc)

	return stats, nil
}

// rewriteAnchors classifies every anchor and applies the per-class rule.
func (r *Rewriter) rewriteAnchors(doc *goquery.Document, base *url.URL, opts Options, stats *model.RewriteStats) {
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")

		class, resolved, err := classify(href, base)
		if err != nil {
			r.skip(stats, &ElementRewriteError{Element: "a", Attr: "href", Value: href, Err: err})
			return
		}

		switch class {
		case LinkNonNavigable:
			stats.NonNavigable++
		case LinkCrossOrigin:
			stats.CrossOrigin++
			target := resolved.String()
			s.RemoveAttr("href")
			s.SetAttr("style", appendStyle(s.AttrOr("style", ""), disabledLinkStyle))
			s.SetAttr("title", "External link disabled: "+target)
			s.SetAttr("aria-disabled", "true")
			s.SetAttr(AttrDisabled, target)
		case LinkSameOrigin:
			stats.SameOrigin++
			if !opts.InterceptNavigation {
				return
			}
			stats.Intercepted++
			target := resolved.String()
			s.SetAttr("href", target)
			s.SetAttr(AttrNavigateHref, target)
			s.SetAttr("onclick", interceptScript)
		}
	})
}

// absolutize rewrites the href (or, failing that, src) of every element to
// an absolute URL. Absolute, data: and javascript: values are left alone.
func (r *Rewriter) absolutize(doc *goquery.Document, base *url.URL, stats *model.RewriteStats) {
	doc.Find("[href], [src]").Each(func(_ int, s *goquery.Selection) {
		attr := "href"
		value, ok := s.Attr(attr)
		if !ok {
			attr = "src"
			value, _ = s.Attr(attr)
		}

		trimmed := strings.TrimSpace(value)
		if trimmed == "" || hasSchemePrefix(trimmed, "data:") || hasSchemePrefix(trimmed, "javascript:") {
			return
		}

		ref, err := url.Parse(trimmed)
		if err != nil {
			r.skip(stats, &ElementRewriteError{Element: goquery.NodeName(s), Attr: attr, Value: value, Err: err})
			return
		}
		if ref.IsAbs() {
			return
		}

		s.SetAttr(attr, base.ResolveReference(ref).String())
		stats.Absolutized++
	})
}

// skip records and logs an element that could not be rewritten.
func (r *Rewriter) skip(stats *model.RewriteStats, err *ElementRewriteError) {
	stats.Skipped++
	r.logger.Debug("skipping element", "error", err)
}

// ensureCharsetDeclaration leaves exactly one <meta charset="UTF-8"> as the
// first child of head, creating head when the document has none.
func ensureCharsetDeclaration(doc *goquery.Document) {
	head := doc.Find("head").First()
	if head.Length() == 0 {
		root := doc.Find("html").First()
		if root.Length() == 0 {
			doc.Selection.PrependHtml("<head></head>")
		} else {
			root.PrependHtml("<head></head>")
		}
		head = doc.Find("head").First()
	}

	doc.Find("meta[http-equiv]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.EqualFold(strings.TrimSpace(s.AttrOr("http-equiv", "")), "content-type")
	}).Remove()

	existing := doc.Find("meta[charset]")
	if existing.Length() > 0 {
		first := existing.First()
		first.SetAttr("charset", "UTF-8")
		existing.Slice(1, existing.Length()).Remove()
		if first.Parent().Get(0) == head.Get(0) && first.Prev().Length() == 0 {
			return
		}
		first.Remove()
	}
	head.PrependHtml(`<meta charset="UTF-8">`)
}

// appendStyle appends declarations to an inline style value.
func appendStyle(existing, decl string) string {
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return decl
	}
	if !strings.HasSuffix(existing, ";") {
		existing += ";"
	}
	return existing + " " + decl
}

// Render serializes doc, guaranteeing a doctype.
func Render(doc *goquery.Document) (string, error) {
	if doc == nil || len(doc.Nodes) == 0 {
		return "", ErrNilDocument
	}

	var buf bytes.Buffer
	root := doc.Nodes[0]
	if !hasDoctype(root) {
		buf.WriteString("<!DOCTYPE html>")
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("failed to render HTML: %w", err)
		}
	}
	return buf.String(), nil
}

// hasDoctype reports whether the document node has a doctype child.
func hasDoctype(root *html.Node) bool {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.DoctypeNode {
			return true
		}
	}
	return false
}

// RewriteHTML parses src, rewrites it against base, and renders the result.
func (r *Rewriter) RewriteHTML(src, base string, opts Options) (string, model.RewriteStats, error) {
	doc, err := Parse(src)
	if err != nil {
		return "", model.RewriteStats{}, err
	}
	stats, err := r.Rewrite(doc, base, opts)
	if err != nil {
		return "", stats, err
	}
	out, err := Render(doc)
	return out, stats, err
}
