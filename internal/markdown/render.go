// Package markdown turns fetched document text into HTML. It runs in two
// separate passes: a textual pass that expands chart include directives
// (ResolveIncludes), and a structural pass that parses the result, rewrites
// relative image URLs and classifies fenced blocks as charts (Renderer).
package markdown

import (
	"bytes"

	"github.com/jmgilman/go/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/leonardcser/folio-mcp/internal/chart"
)

// Document is the output of one compile pass.
type Document struct {
	HTML   string        `json:"html"`
	Charts []*chart.Spec `json:"charts,omitempty"`
	// ChartErrors holds the reasons chart-shaped blocks failed validation.
	ChartErrors []string `json:"chart_errors,omitempty"`
}

// Renderer compiles markdown to HTML. It is safe for concurrent use.
type Renderer struct {
	md      goldmark.Markdown
	rawHTML bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithRawHTML lets raw HTML in the source through to the output. READMEs
// rely on it; articles do not need it.
func WithRawHTML(enabled bool) Option {
	return func(r *Renderer) { r.rawHTML = enabled }
}

// NewRenderer builds a Renderer with GFM, heading IDs, image rewriting and
// chart classification.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{}
	for _, opt := range opts {
		opt(r)
	}

	rendererOpts := []renderer.Option{
		renderer.WithNodeRenderers(util.Prioritized(&codeBlockRenderer{}, 100)),
	}
	if r.rawHTML {
		rendererOpts = append(rendererOpts, html.WithUnsafe())
	}

	r.md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(
				util.Prioritized(imageRewriter{}, 100),
				util.Prioritized(chartClassifier{}, 200),
			),
		),
		goldmark.WithRendererOptions(rendererOpts...),
	)
	return r
}

// Compile parses src with image URLs resolved against base and renders it.
func (r *Renderer) Compile(src string, base AssetBase) (*Document, error) {
	source := []byte(src)
	pc := parser.NewContext()
	pc.Set(assetBaseKey, base)

	root := r.md.Parser().Parse(text.NewReader(source), parser.WithContext(pc))

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, source, root); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to render markdown")
	}

	out, err := postProcessHTML(buf.String(), base)
	if err != nil {
		return nil, err
	}

	doc := &Document{HTML: out}
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Kind() != ast.KindFencedCodeBlock {
			return ast.WalkContinue, nil
		}
		switch c := classification(n).(type) {
		case *chart.Spec:
			doc.Charts = append(doc.Charts, c)
		case error:
			doc.ChartErrors = append(doc.ChartErrors, reason(c))
		}
		return ast.WalkSkipChildren, nil
	})
	return doc, nil
}
