// Package chart classifies embedded structured blocks as chart
// specifications and validates their shape. It produces data, not pixels:
// rendering is left to whatever consumes a Spec.
package chart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmgilman/go/errors"
)

// Kind is the chart type named by a spec's "type" field.
type Kind string

const (
	KindBar  Kind = "bar"
	KindLine Kind = "line"
	KindArea Kind = "area"
	KindPie  Kind = "pie"
)

// Kinds lists every recognized chart kind.
var Kinds = []Kind{KindBar, KindLine, KindArea, KindPie}

// ParseKind returns the Kind named by s, if it is one of Kinds.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// DefaultColors is the series palette used when a spec names none.
var DefaultColors = []string{
	"hsl(var(--chart-1))",
	"hsl(var(--chart-2))",
	"hsl(var(--chart-3))",
	"hsl(var(--chart-4))",
	"hsl(var(--chart-5))",
}

// Row is one record of chart data.
type Row map[string]any

// Spec is a validated-shape chart description. Legacy xAxis/yAxis fields
// are folded into XKey/YKeys while parsing.
type Spec struct {
	Kind        Kind     `json:"type"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Data        []Row    `json:"data"`
	XKey        string   `json:"xKey,omitempty"`
	YKeys       []string `json:"yKeys,omitempty"`
	XLabel      string   `json:"xLabel,omitempty"`
	YLabel      string   `json:"yLabel,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	Scale       string   `json:"scale,omitempty"`
	Colors      []string `json:"colors,omitempty"`

	// invalid is the parse error of a block Classify accepted as chart data.
	invalid error
}

// rawSpec mirrors the include file format, accepting both key spellings.
type rawSpec struct {
	Type        *string         `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data"`
	XKey        string          `json:"xKey"`
	YKeys       []string        `json:"yKeys"`
	XAxis       string          `json:"xAxis"`
	YAxis       json.RawMessage `json:"yAxis"`
	XLabel      string          `json:"xLabel"`
	YLabel      string          `json:"yLabel"`
	Unit        string          `json:"unit"`
	YUnit       string          `json:"yUnit"`
	Scale       string          `json:"yScale"`
	Colors      []string        `json:"colors"`
}

// Parse decodes a chart spec from JSON. It fails with
// CodeSchemaFailed when the document is not an object, the type is missing or
// unknown, or data is missing, null, or not a list of records.
func Parse(b []byte) (*Spec, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw rawSpec
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, errors.CodeSchemaFailed, "chart data is not a JSON object")
	}

	if raw.Type == nil || *raw.Type == "" {
		return nil, errors.New(errors.CodeSchemaFailed, "chart data is missing type")
	}
	kind, ok := ParseKind(*raw.Type)
	if !ok {
		return nil, errors.Newf(errors.CodeSchemaFailed,
			"invalid chart type %q, must be one of: %s", *raw.Type, kindList())
	}
	if len(raw.Data) == 0 || string(raw.Data) == "null" {
		return nil, errors.New(errors.CodeSchemaFailed, "chart data is missing data")
	}

	var rows []Row
	dataDec := json.NewDecoder(bytes.NewReader(raw.Data))
	dataDec.UseNumber()
	if err := dataDec.Decode(&rows); err != nil {
		return nil, errors.Wrap(err, errors.CodeSchemaFailed, "chart data must be a list of records")
	}

	yKeys, err := normalizeYKeys(raw.YKeys, raw.YAxis)
	if err != nil {
		return nil, err
	}

	s := &Spec{
		Kind:        kind,
		Title:       raw.Title,
		Description: raw.Description,
		Data:        rows,
		XKey:        firstNonEmpty(raw.XKey, raw.XAxis),
		YKeys:       yKeys,
		XLabel:      raw.XLabel,
		YLabel:      raw.YLabel,
		Unit:        firstNonEmpty(raw.Unit, raw.YUnit),
		Scale:       raw.Scale,
		Colors:      raw.Colors,
	}
	return s, nil
}

// normalizeYKeys prefers yKeys and otherwise accepts yAxis as a string or a
// list of strings.
func normalizeYKeys(keys []string, axis json.RawMessage) ([]string, error) {
	if len(keys) > 0 {
		return keys, nil
	}
	if len(axis) == 0 || string(axis) == "null" {
		return nil, nil
	}
	var one string
	if err := json.Unmarshal(axis, &one); err == nil {
		if one == "" {
			return nil, nil
		}
		return []string{one}, nil
	}
	var many []string
	if err := json.Unmarshal(axis, &many); err != nil {
		return nil, errors.Wrap(err, errors.CodeSchemaFailed, "yAxis must be a string or a list of strings")
	}
	return many, nil
}

// Classify decides whether the text of a fenced block is chart data. A
// block is chart data when it is a JSON object whose type is one of Kinds and
// whose data is present and not null. Anything else is ordinary code. A
// chart-shaped block that does not parse into a Spec is still classified;
// its parse error is reported by Validate.
func Classify(text string) (*Spec, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var head struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(trimmed), &head); err != nil {
		return nil, false
	}
	kind, ok := ParseKind(head.Type)
	if !ok || len(head.Data) == 0 || string(head.Data) == "null" {
		return nil, false
	}
	s, err := Parse([]byte(trimmed))
	if err != nil {
		return &Spec{Kind: kind, invalid: err}, true
	}
	return s, true
}

// Validate checks that the spec can be rendered: it parsed, data is non-empty
// and every referenced key is present in every row.
func (s *Spec) Validate() error {
	if s.invalid != nil {
		return s.invalid
	}
	if _, ok := ParseKind(string(s.Kind)); !ok {
		return errors.Newf(errors.CodeSchemaFailed, "invalid chart type %q", s.Kind)
	}
	if len(s.Data) == 0 {
		return errors.New(errors.CodeSchemaFailed, "no data available for chart")
	}

	keys := s.YKeys
	if s.XKey != "" {
		keys = append([]string{s.XKey}, keys...)
	}
	if s.Kind == KindPie {
		p := Pie{s}
		keys = []string{p.NameKey(), p.ValueKey()}
	}
	for i, row := range s.Data {
		for _, k := range keys {
			if _, ok := row[k]; !ok {
				err := errors.Newf(errors.CodeSchemaFailed, "row %d is missing field %q", i, k)
				return errors.WithContext(err, "field", k)
			}
		}
	}
	return nil
}

// Series describes one plotted data key.
type Series struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// Series returns the plotted keys with display labels and colors assigned
// round-robin from the spec's palette.
func (s *Spec) Series() []Series {
	colors := s.Palette()
	out := make([]Series, 0, len(s.YKeys))
	for i, k := range s.YKeys {
		out = append(out, Series{Key: k, Label: capitalize(k), Color: colors[i%len(colors)]})
	}
	return out
}

// Palette returns the spec's colors, or DefaultColors.
func (s *Spec) Palette() []string {
	if len(s.Colors) > 0 {
		return s.Colors
	}
	return DefaultColors
}

// Format renders v for an axis label or tooltip using the spec's unit.
func (s *Spec) Format(v float64) string {
	return FormatValue(v, s.Unit)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func kindList() string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// String implements fmt.Stringer.
func (s *Spec) String() string {
	return fmt.Sprintf("%s chart (%d rows)", s.Kind, len(s.Data))
}
