package layout

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/relayview/internal/model"
	"github.com/nao1215/relayview/internal/rewrite"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"
)

// MaxDepth is the number of frameset levels rebuilt before a pane is
// replaced by a notice.
const MaxDepth = 3

// defaultConcurrency bounds parallel pane fetches per frameset.
const defaultConcurrency = 8

// defaultTitle is used when the frameset page has no title.
const defaultTitle = "Reconstructed frameset"

// Class names written on generated containers.
const (
	PaneClass        = "relayview-pane"
	PlaceholderClass = "relayview-pane-error"
)

// Inline styles of generated containers.
const (
	paneStyle        = "overflow: auto; border: 1px solid #ccc;"
	placeholderStyle = "padding: 1em; color: #a00; font-family: sans-serif;"
)

// Fetcher retrieves and decodes one pane source.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (*model.FetchOutcome, error)
}

// Result is a reconstructed document and what happened to each pane.
type Result struct {
	// HTML is the serialized document.
	HTML string

	// Axis is the direction of the outermost frameset.
	Axis Axis

	// Panes lists every pane in document order, nested ones included.
	Panes []model.PaneOutcome

	// Stats aggregates the rewrite statistics of every pane.
	Stats model.RewriteStats
}

// Reconstructor rebuilds frameset pages.
type Reconstructor struct {
	// fetcher retrieves pane sources.
	fetcher Fetcher

	// rewriter processes each pane document.
	rewriter *rewrite.Rewriter

	// concurrency bounds parallel fetches within one frameset.
	concurrency int

	// maxDepth bounds frameset nesting.
	maxDepth int

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures a Reconstructor.
type Option func(*Reconstructor)

// WithRewriter sets the pane rewriter.
func WithRewriter(rw *rewrite.Rewriter) Option {
	return func(r *Reconstructor) {
		if rw != nil {
			r.rewriter = rw
		}
	}
}

// WithConcurrency bounds the number of panes fetched at once.
func WithConcurrency(n int) Option {
	return func(r *Reconstructor) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithMaxDepth overrides MaxDepth.
func WithMaxDepth(depth int) Option {
	return func(r *Reconstructor) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconstructor) {
		r.logger = logger
	}
}

// NewReconstructor creates a Reconstructor that fetches panes with fetcher.
func NewReconstructor(fetcher Fetcher, opts ...Option) *Reconstructor {
	r := &Reconstructor{
		fetcher:     fetcher,
		concurrency: defaultConcurrency,
		maxDepth:    MaxDepth,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rewriter == nil {
		r.rewriter = rewrite.NewRewriter(rewrite.WithLogger(r.logger))
	}
	return r
}

// Detect reports whether doc contains a frameset.
func Detect(doc *goquery.Document) bool {
	return doc != nil && doc.Find("frameset").Length() > 0
}

// CountFrames returns the number of frame elements with a src under the
// first frameset.
func CountFrames(doc *goquery.Document) int {
	if doc == nil {
		return 0
	}
	return doc.Find("frameset").First().Find("frame[src]").FilterFunction(func(_ int, f *goquery.Selection) bool {
		return strings.TrimSpace(f.AttrOr("src", "")) != ""
	}).Length()
}

// Reconstruct fetches every pane of the first frameset in doc and returns a
// flexbox document that lays them out like the frameset did. base is the
// URL doc was retrieved from. Pane failures never fail the call.
func (r *Reconstructor) Reconstruct(ctx context.Context, doc *goquery.Document, base string, opts rewrite.Options) (*Result, error) {
	baseURL, err := url.Parse(strings.TrimSpace(base))
	if err != nil || !baseURL.IsAbs() || baseURL.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBase, base)
	}
	if !Detect(doc) {
		return nil, ErrNoFrameset
	}

	fs := doc.Find("frameset").First()
	tree := r.buildFrameset(ctx, fs, baseURL, opts, 0)

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = defaultTitle
	}

	root := newDocument(title, tree.axis, tree.nodes)
	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, fmt.Errorf("failed to render frameset document: %w", err)
	}

	for i := range tree.panes {
		tree.panes[i].Index = i
	}

	return &Result{
		HTML:  buf.String(),
		Axis:  tree.axis,
		Panes: tree.panes,
		Stats: tree.stats,
	}, nil
}

// built is the content of one pane or frameset level.
type built struct {
	axis  Axis
	nodes []*html.Node
	panes []model.PaneOutcome
	stats model.RewriteStats
}

// buildFrameset builds one pane div per frame or frameset child of fs.
func (r *Reconstructor) buildFrameset(ctx context.Context, fs *goquery.Selection, base *url.URL, opts rewrite.Options, depth int) built {
	axis := AxisRows
	value, ok := fs.Attr("cols")
	if ok {
		axis = AxisColumns
	} else {
		value = fs.AttrOr("rows", "")
	}
	spec := ParseSpec(value)

	// Size tokens pair with panes, and a frame without src is no pane.
	children := fs.ChildrenFiltered("frame[src], frameset").FilterFunction(func(_ int, child *goquery.Selection) bool {
		return goquery.NodeName(child) == "frameset" || strings.TrimSpace(child.AttrOr("src", "")) != ""
	})
	results := make([]built, children.Length())

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	children.Each(func(i int, child *goquery.Selection) {
		size := spec.At(i)

		if goquery.NodeName(child) == "frameset" {
			g.Go(func() error {
				results[i] = r.nestedInline(ctx, child, base, opts, depth, size)
				return nil
			})
			return
		}

		src := strings.TrimSpace(child.AttrOr("src", ""))
		ref, err := url.Parse(src)
		if err != nil {
			results[i] = r.placeholder(&PaneRetrievalError{URL: src, Err: err}, size)
			return
		}
		paneURL := base.ResolveReference(ref).String()

		g.Go(func() error {
			results[i] = r.fetchPane(ctx, paneURL, opts, depth, size)
			return nil
		})
	})
	_ = g.Wait() //nolint:errcheck // pane goroutines never return errors

	out := built{axis: axis}
	for i, res := range results {
		div := element(atom.Div,
			html.Attribute{Key: "class", Val: PaneClass},
			html.Attribute{Key: "style", Val: paneStyle + " " + spec.At(i).CSS(axis)},
		)
		appendAll(div, res.nodes)
		out.nodes = append(out.nodes, div)
		out.panes = append(out.panes, res.panes...)
		out.stats.Add(res.stats)
	}
	return out
}

// nestedInline builds a frameset element nested directly in the markup.
func (r *Reconstructor) nestedInline(ctx context.Context, fs *goquery.Selection, base *url.URL, opts rewrite.Options, depth int, size Size) built {
	if depth+1 >= r.maxDepth {
		return r.placeholder(&PaneRetrievalError{URL: base.String(), Err: ErrTooDeep}, size)
	}
	inner := r.buildFrameset(ctx, fs, base, opts, depth+1)
	return built{
		nodes: []*html.Node{container(inner.axis, "100%", inner.nodes)},
		panes: inner.panes,
		stats: inner.stats,
	}
}

// fetchPane retrieves, rewrites and extracts one pane.
func (r *Reconstructor) fetchPane(ctx context.Context, paneURL string, opts rewrite.Options, depth int, size Size) built {
	outcome, err := r.fetcher.Fetch(ctx, paneURL)
	if err != nil {
		return r.placeholder(&PaneRetrievalError{URL: paneURL, Err: err}, size)
	}

	doc, err := rewrite.Parse(outcome.Text)
	if err != nil {
		return r.placeholder(&PaneRetrievalError{URL: paneURL, Err: err}, size)
	}

	pane := model.PaneOutcome{URL: paneURL, Size: size.String(), Charset: outcome.Charset.Name}

	if Detect(doc) {
		if depth+1 >= r.maxDepth {
			return r.placeholder(&PaneRetrievalError{URL: paneURL, Err: ErrTooDeep}, size)
		}
		paneBase, err := url.Parse(paneURL)
		if err != nil {
			return r.placeholder(&PaneRetrievalError{URL: paneURL, Err: err}, size)
		}
		inner := r.buildFrameset(ctx, doc.Find("frameset").First(), paneBase, opts, depth+1)
		return built{
			nodes: []*html.Node{container(inner.axis, "100%", inner.nodes)},
			panes: append([]model.PaneOutcome{pane}, inner.panes...),
			stats: inner.stats,
		}
	}

	stats, err := r.rewriter.Rewrite(doc, paneURL, opts)
	if err != nil {
		return r.placeholder(&PaneRetrievalError{URL: paneURL, Err: err}, size)
	}

	return built{
		nodes: extractContent(doc),
		panes: []model.PaneOutcome{pane},
		stats: stats,
	}
}

// placeholder builds the notice shown in place of a failed pane.
func (r *Reconstructor) placeholder(err *PaneRetrievalError, size Size) built {
	r.logger.Warn("frame could not be loaded", "url", err.URL, "error", err.Err)

	div := element(atom.Div,
		html.Attribute{Key: "class", Val: PlaceholderClass},
		html.Attribute{Key: "style", Val: placeholderStyle},
	)
	div.AppendChild(&html.Node{Type: html.TextNode, Data: "Failed to load frame: " + err.URL})

	return built{
		nodes: []*html.Node{div},
		panes: []model.PaneOutcome{{
			URL:    err.URL,
			Size:   size.String(),
			Failed: true,
			Error:  err.Error(),
		}},
	}
}

// extractContent detaches the stylesheets and body children of a rewritten
// pane document so they can be placed inside a pane div.
func extractContent(doc *goquery.Document) []*html.Node {
	var nodes []*html.Node
	for _, n := range doc.Find("head style, head link[rel~='stylesheet']").Nodes {
		nodes = append(nodes, detach(n))
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nodes
	}
	b := body.Get(0)
	for c := b.FirstChild; c != nil; {
		next := c.NextSibling
		nodes = append(nodes, detach(c))
		c = next
	}
	return nodes
}

// detach removes n from its parent and returns it.
func detach(n *html.Node) *html.Node {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	return n
}

// newDocument assembles the output document around the pane divs.
func newDocument(title string, axis Axis, panes []*html.Node) *html.Node {
	root := &html.Node{Type: html.DocumentNode}
	root.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	htmlEl := element(atom.Html)
	root.AppendChild(htmlEl)

	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, html.Attribute{Key: "charset", Val: "UTF-8"}))
	titleEl := element(atom.Title)
	titleEl.AppendChild(&html.Node{Type: html.TextNode, Data: title})
	head.AppendChild(titleEl)
	htmlEl.AppendChild(head)

	body := element(atom.Body, html.Attribute{Key: "style", Val: containerStyle(axis, "100vh")})
	appendAll(body, panes)
	htmlEl.AppendChild(body)

	return root
}

// container wraps nested panes in a flex container filling its pane.
func container(axis Axis, height string, panes []*html.Node) *html.Node {
	div := element(atom.Div, html.Attribute{Key: "style", Val: containerStyle(axis, height)})
	appendAll(div, panes)
	return div
}

// containerStyle is the flexbox declaration of a frameset level.
func containerStyle(axis Axis, height string) string {
	return fmt.Sprintf("display: flex; flex-direction: %s; width: 100%%; height: %s; margin: 0; padding: 0;",
		axis.FlexDirection(), height)
}

// element creates an element node.
func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

// appendAll appends detached nodes to parent.
func appendAll(parent *html.Node, nodes []*html.Node) {
	for _, n := range nodes {
		parent.AppendChild(n)
	}
}
