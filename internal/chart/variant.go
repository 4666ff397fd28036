package chart

// Variant is the closed set of chart kinds. Each variant wraps the Spec it
// was built from. The unexported marker keeps the set closed to this package.
type Variant interface {
	Kind() Kind
	Spec() *Spec
	variant()
}

// Bar is a grouped bar chart over XKey with one bar per YKey.
type Bar struct{ s *Spec }

// Line is a line chart with one monotone line per YKey.
type Line struct{ s *Spec }

// Area is a stacked-fill area chart with one area per YKey.
type Area struct{ s *Spec }

// Pie is a pie chart whose slices come from a name and a value field.
type Pie struct{ s *Spec }

func (Bar) Kind() Kind  { return KindBar }
func (Line) Kind() Kind { return KindLine }
func (Area) Kind() Kind { return KindArea }
func (Pie) Kind() Kind  { return KindPie }

func (v Bar) Spec() *Spec  { return v.s }
func (v Line) Spec() *Spec { return v.s }
func (v Area) Spec() *Spec { return v.s }
func (v Pie) Spec() *Spec  { return v.s }

func (Bar) variant()  {}
func (Line) variant() {}
func (Area) variant() {}
func (Pie) variant()  {}

// NameKey is the field labelling each slice: XKey when set, else "name".
func (v Pie) NameKey() string {
	if v.s.XKey != "" {
		return v.s.XKey
	}
	return "name"
}

// ValueKey is the field sizing each slice: the first YKey when set, else
// "value".
func (v Pie) ValueKey() string {
	if len(v.s.YKeys) > 0 {
		return v.s.YKeys[0]
	}
	return "value"
}

// Variant returns the variant selected by the spec's kind. It returns nil
// for an unknown kind, which Parse never produces.
func (s *Spec) Variant() Variant {
	switch s.Kind {
	case KindBar:
		return Bar{s}
	case KindLine:
		return Line{s}
	case KindArea:
		return Area{s}
	case KindPie:
		return Pie{s}
	}
	return nil
}

// Handler renders or otherwise consumes each chart variant. Implementing it
// requires a method per kind, so adding a kind breaks every handler at
// compile time.
type Handler[R any] interface {
	Bar(Bar) R
	Line(Line) R
	Area(Area) R
	Pie(Pie) R
}

// Dispatch calls the Handler method matching v.
func Dispatch[R any](v Variant, h Handler[R]) R {
	switch v := v.(type) {
	case Bar:
		return h.Bar(v)
	case Line:
		return h.Line(v)
	case Area:
		return h.Area(v)
	case Pie:
		return h.Pie(v)
	}
	panic("chart: unknown variant")
}
