// Package filter builds boolean predicate trees over indexed fields and
// renders them into the engine's query syntax. Expressions are immutable
// values: combinators return new trees and never mutate their operands.
// Field names are validated against a schema at render time, not at
// construction, so expressions stay schema-agnostic until executed.
package filter

import (
	"strconv"
	"strings"

	"github.com/kailas-cloud/vecdex"
)

// Schema is the subset of an index schema the renderer needs.
type Schema interface {
	HasField(name string) bool
}

// GeoUnit is the radius unit of a geo predicate.
type GeoUnit string

// Geo radius units.
const (
	Meters     GeoUnit = "m"
	Kilometers GeoUnit = "km"
	Miles      GeoUnit = "mi"
	Feet       GeoUnit = "ft"
)

// Expression is an immutable predicate tree. The zero value matches
// everything.
type Expression struct {
	node node
}

// MatchAll returns the expression that renders to the engine wildcard.
func MatchAll() Expression {
	return Expression{node: matchAllNode{}}
}

// IsMatchAll reports whether the expression matches everything.
func (e Expression) IsMatchAll() bool {
	if e.node == nil {
		return true
	}
	_, ok := e.node.(matchAllNode)
	return ok
}

// And conjoins two expressions. MatchAll operands collapse away so trivial
// filters never widen the rendered query.
func (e Expression) And(other Expression) Expression {
	if e.IsMatchAll() {
		return other
	}
	if other.IsMatchAll() {
		return e
	}
	return Expression{node: andNode{left: e.node, right: other.node}}
}

// Or disjoins two expressions. A MatchAll operand absorbs the whole
// disjunction.
func (e Expression) Or(other Expression) Expression {
	if e.IsMatchAll() || other.IsMatchAll() {
		return MatchAll()
	}
	return Expression{node: orNode{left: e.node, right: other.node}}
}

// Not negates the expression.
func (e Expression) Not() Expression {
	if e.node == nil {
		return Expression{node: notNode{inner: matchAllNode{}}}
	}
	return Expression{node: notNode{inner: e.node}}
}

// And conjoins expressions left to right.
func And(exprs ...Expression) Expression {
	out := MatchAll()
	for _, e := range exprs {
		out = out.And(e)
	}
	return out
}

// Or disjoins expressions left to right.
func Or(exprs ...Expression) Expression {
	if len(exprs) == 0 {
		return MatchAll()
	}
	out := exprs[0]
	for _, e := range exprs[1:] {
		out = out.Or(e)
	}
	return out
}

// Not negates an expression.
func Not(e Expression) Expression { return e.Not() }

// Render emits the engine filter syntax. Every composite node is explicitly
// parenthesized; no operator precedence is relied on. Leaves referencing a
// field absent from the schema fail with ErrUnknownField.
func (e Expression) Render(s Schema) (string, error) {
	if e.node == nil {
		return "*", nil
	}
	return e.node.render(s)
}

// --- builders ---

// TagField starts a tag predicate.
type TagField struct{ field string }

// Tag addresses a tag field.
func Tag(field string) TagField { return TagField{field: field} }

// Eq matches records whose tag field holds any of the given values. An empty
// value set matches everything.
func (t TagField) Eq(values ...string) Expression {
	nonEmpty := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			nonEmpty = append(nonEmpty, v)
		}
	}
	if len(nonEmpty) == 0 {
		return MatchAll()
	}
	return Expression{node: tagNode{field: t.field, values: nonEmpty}}
}

// Ne excludes records whose tag field holds any of the given values.
func (t TagField) Ne(values ...string) Expression {
	return t.Eq(values...).Not()
}

// NumField starts a numeric predicate.
type NumField struct{ field string }

// Num addresses a numeric field.
func Num(field string) NumField { return NumField{field: field} }

// Eq matches values equal to v.
func (n NumField) Eq(v float64) Expression { return n.between(v, v, true, true) }

// Ne matches values not equal to v.
func (n NumField) Ne(v float64) Expression { return n.Eq(v).Not() }

// Gt matches values strictly greater than v.
func (n NumField) Gt(v float64) Expression { return n.bounded(v, false, false) }

// Ge matches values greater than or equal to v.
func (n NumField) Ge(v float64) Expression { return n.bounded(v, false, true) }

// Lt matches values strictly less than v.
func (n NumField) Lt(v float64) Expression { return n.bounded(v, true, false) }

// Le matches values less than or equal to v.
func (n NumField) Le(v float64) Expression { return n.bounded(v, true, true) }

// Between matches values in the inclusive range [lo, hi].
func (n NumField) Between(lo, hi float64) Expression { return n.between(lo, hi, true, true) }

func (n NumField) bounded(v float64, upper, inclusive bool) Expression {
	node := numNode{field: n.field}
	if upper {
		node.lo = "-inf"
		node.hi = formatBound(v, inclusive)
	} else {
		node.lo = formatBound(v, inclusive)
		node.hi = "+inf"
	}
	return Expression{node: node}
}

func (n NumField) between(lo, hi float64, loInc, hiInc bool) Expression {
	return Expression{node: numNode{
		field: n.field,
		lo:    formatBound(lo, loInc),
		hi:    formatBound(hi, hiInc),
	}}
}

func formatBound(v float64, inclusive bool) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !inclusive {
		return "(" + s
	}
	return s
}

// TextMatchField starts a full-text predicate.
type TextMatchField struct{ field string }

// Text addresses a text field.
func Text(field string) TextMatchField { return TextMatchField{field: field} }

// Matches matches records whose text field matches the pattern. An empty
// pattern matches everything.
func (t TextMatchField) Matches(pattern string) Expression {
	if pattern == "" {
		return MatchAll()
	}
	return Expression{node: textNode{field: t.field, pattern: pattern}}
}

// GeoField starts a geo predicate.
type GeoField struct{ field string }

// Geo addresses a geo field.
func Geo(field string) GeoField { return GeoField{field: field} }

// Radius matches records within radius units of (lon, lat).
func (g GeoField) Radius(lon, lat, radius float64, unit GeoUnit) Expression {
	return Expression{node: geoNode{field: g.field, lon: lon, lat: lat, radius: radius, unit: unit}}
}

// --- tree nodes ---

type node interface {
	render(s Schema) (string, error)
}

type matchAllNode struct{}

func (matchAllNode) render(Schema) (string, error) { return "*", nil }

type tagNode struct {
	field  string
	values []string
}

func (n tagNode) render(s Schema) (string, error) {
	if !s.HasField(n.field) {
		return "", vectra.NewSchemaError(n.field, vectra.ErrUnknownField)
	}
	escaped := make([]string, len(n.values))
	for i, v := range n.values {
		escaped[i] = tagEscaper.Replace(v)
	}
	return "@" + n.field + ":{" + strings.Join(escaped, "|") + "}", nil
}

type numNode struct {
	field  string
	lo, hi string
}

func (n numNode) render(s Schema) (string, error) {
	if !s.HasField(n.field) {
		return "", vectra.NewSchemaError(n.field, vectra.ErrUnknownField)
	}
	return "@" + n.field + ":[" + n.lo + " " + n.hi + "]", nil
}

type textNode struct {
	field   string
	pattern string
}

func (n textNode) render(s Schema) (string, error) {
	if !s.HasField(n.field) {
		return "", vectra.NewSchemaError(n.field, vectra.ErrUnknownField)
	}
	return "@" + n.field + ":(" + n.pattern + ")", nil
}

type geoNode struct {
	field            string
	lon, lat, radius float64
	unit             GeoUnit
}

func (n geoNode) render(s Schema) (string, error) {
	if !s.HasField(n.field) {
		return "", vectra.NewSchemaError(n.field, vectra.ErrUnknownField)
	}
	return "@" + n.field + ":[" +
		strconv.FormatFloat(n.lon, 'g', -1, 64) + " " +
		strconv.FormatFloat(n.lat, 'g', -1, 64) + " " +
		strconv.FormatFloat(n.radius, 'g', -1, 64) + " " +
		string(n.unit) + "]", nil
}

type andNode struct{ left, right node }

func (n andNode) render(s Schema) (string, error) {
	l, err := n.left.render(s)
	if err != nil {
		return "", err
	}
	r, err := n.right.render(s)
	if err != nil {
		return "", err
	}
	return "(" + l + " " + r + ")", nil
}

type orNode struct{ left, right node }

func (n orNode) render(s Schema) (string, error) {
	l, err := n.left.render(s)
	if err != nil {
		return "", err
	}
	r, err := n.right.render(s)
	if err != nil {
		return "", err
	}
	return "(" + l + " | " + r + ")", nil
}

type notNode struct{ inner node }

func (n notNode) render(s Schema) (string, error) {
	inner, err := n.inner.render(s)
	if err != nil {
		return "", err
	}
	return "(-" + inner + ")", nil
}

// tagEscaper escapes RediSearch special characters inside tag values.
var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)
