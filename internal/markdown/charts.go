package markdown

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"sort"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/leonardcser/folio-mcp/internal/chart"
)

var chartAttr = []byte("data-folio-chart")

// chartClassifier marks fenced code blocks that hold chart data. Valid specs
// are stored on the node as *chart.Spec; chart-shaped blocks that fail
// validation carry the validation error instead.
type chartClassifier struct{}

func (chartClassifier) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if spec, ok := chart.Classify(blockText(block, source)); ok {
			if err := spec.Validate(); err != nil {
				block.SetAttribute(chartAttr, err)
			} else {
				block.SetAttribute(chartAttr, spec)
			}
		}
		return ast.WalkSkipChildren, nil
	})
}

// classification returns the *chart.Spec or error stored by
// chartClassifier, or nil for ordinary code.
func classification(n ast.Node) any {
	v, ok := n.Attribute(chartAttr)
	if !ok {
		return nil
	}
	return v
}

func blockText(n *ast.FencedCodeBlock, source []byte) string {
	var b bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		b.Write(line.Value(source))
	}
	return b.String()
}

// codeBlockRenderer renders fenced code blocks, switching to a chart figure
// for blocks chartClassifier marked.
type codeBlockRenderer struct{}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *codeBlockRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	switch c := classification(n).(type) {
	case *chart.Spec:
		writeChart(w, c)
	case error:
		_, _ = fmt.Fprintf(w, "<figure class=\"chart chart-error\" role=\"alert\"><p>Chart Error: %s</p></figure>\n",
			html.EscapeString(reason(c)))
	default:
		writeCode(w, source, n)
	}
	return ast.WalkSkipChildren, nil
}

func writeCode(w util.BufWriter, source []byte, n *ast.FencedCodeBlock) {
	_, _ = w.WriteString("<pre><code")
	if lang := n.Language(source); lang != nil {
		_, _ = w.WriteString(` class="language-`)
		_, _ = w.Write(util.EscapeHTML(lang))
		_ = w.WriteByte('"')
	}
	_ = w.WriteByte('>')
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		_, _ = w.Write(util.EscapeHTML(line.Value(source)))
	}
	_, _ = w.WriteString("</code></pre>\n")
}

// figure is the variant-specific part of a rendered chart.
type figure struct {
	options map[string]any
	columns []string
}

// figureBuilder selects per-kind rendering options.
type figureBuilder struct{}

func (figureBuilder) Bar(v chart.Bar) figure {
	return figure{
		options: map[string]any{"radius": []int{4, 4, 0, 0}},
		columns: cartesianColumns(v.Spec()),
	}
}

func (figureBuilder) Line(v chart.Line) figure {
	return figure{
		options: map[string]any{"curve": "monotone", "strokeWidth": 2},
		columns: cartesianColumns(v.Spec()),
	}
}

func (figureBuilder) Area(v chart.Area) figure {
	return figure{
		options: map[string]any{"curve": "monotone", "fillOpacity": 0.6},
		columns: cartesianColumns(v.Spec()),
	}
}

func (figureBuilder) Pie(v chart.Pie) figure {
	return figure{
		options: map[string]any{"nameKey": v.NameKey(), "valueKey": v.ValueKey(), "outerRadius": 120},
		columns: []string{v.NameKey(), v.ValueKey()},
	}
}

func cartesianColumns(s *chart.Spec) []string {
	var cols []string
	if s.XKey != "" {
		cols = append(cols, s.XKey)
	}
	cols = append(cols, s.YKeys...)
	if len(cols) > 0 || len(s.Data) == 0 {
		return cols
	}
	for k := range s.Data[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

type chartPayload struct {
	*chart.Spec
	Series  []chart.Series `json:"series"`
	Options map[string]any `json:"options"`
}

// writeChart renders a figure carrying the spec as JSON for a client-side
// chart library, with a data table as the readable fallback.
func writeChart(w util.BufWriter, spec *chart.Spec) {
	fig := chart.Dispatch[figure](spec.Variant(), figureBuilder{})

	payload, err := json.Marshal(chartPayload{Spec: spec, Series: spec.Series(), Options: fig.options})
	if err != nil {
		payload = []byte("{}")
	}

	_, _ = fmt.Fprintf(w, "<figure class=\"chart chart-%s\" data-chart=\"%s\">\n", spec.Kind, html.EscapeString(string(payload)))
	if spec.Title != "" || spec.Description != "" {
		_, _ = w.WriteString("<figcaption>")
		if spec.Title != "" {
			_, _ = fmt.Fprintf(w, "<strong>%s</strong>", html.EscapeString(spec.Title))
		}
		if spec.Description != "" {
			_, _ = fmt.Fprintf(w, " <span>%s</span>", html.EscapeString(spec.Description))
		}
		_, _ = w.WriteString("</figcaption>\n")
	}

	_, _ = w.WriteString("<table class=\"chart-data\"><thead><tr>")
	for _, c := range fig.columns {
		_, _ = fmt.Fprintf(w, "<th>%s</th>", html.EscapeString(c))
	}
	_, _ = w.WriteString("</tr></thead><tbody>")
	for _, row := range spec.Data {
		_, _ = w.WriteString("<tr>")
		for i, c := range fig.columns {
			cell := formatCell(spec, row[c], i > 0)
			_, _ = fmt.Fprintf(w, "<td>%s</td>", html.EscapeString(cell))
		}
		_, _ = w.WriteString("</tr>")
	}
	_, _ = w.WriteString("</tbody></table>\n</figure>\n")
}

// formatCell formats value columns with the spec's unit and leaves the
// category column as is.
func formatCell(spec *chart.Spec, v any, isValue bool) string {
	if v == nil {
		return ""
	}
	if isValue {
		switch n := v.(type) {
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return spec.Format(f)
			}
		case float64:
			return spec.Format(n)
		}
	}
	return fmt.Sprint(v)
}
