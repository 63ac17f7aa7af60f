// Package program decodes program documents into expression trees.
//
// A document is plain YAML (or JSON). Nothing in it is ever executed; the
// tree is only walked by the TEAL lowering in package teal.
package program

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrSyntax marks documents that cannot be decoded.
	ErrSyntax = errors.New("syntax error")
	// ErrNoProgram is returned when no top-level entry decodes as a program.
	ErrNoProgram = errors.New("no program found")
)

// Error carries the document position of a decoding failure.
type Error struct {
	Line   int
	Column int
	Msg    string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Msg)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return ErrSyntax }

func errorAt(n *yaml.Node, format string, args ...any) error {
	return &Error{Line: n.Line, Column: n.Column, Msg: fmt.Sprintf(format, args...)}
}

// Expr is one node of the expression tree. Literal integers and strings are
// represented as the int and bytes operators with a single immediate.
type Expr struct {
	Op     string
	Imm    []string
	Args   []*Expr
	Line   int
	Column int
}

// Pos formats the source position for error messages.
func (e *Expr) Pos() string {
	return fmt.Sprintf("line %d, column %d", e.Line, e.Column)
}

func (e *Expr) String() string {
	var b strings.Builder
	e.write(&b)
	return b.String()
}

func (e *Expr) write(b *strings.Builder) {
	b.WriteString(e.Op)
	if len(e.Imm) == 0 && len(e.Args) == 0 {
		return
	}
	b.WriteByte('(')
	first := true
	sep := func() {
		if !first {
			b.WriteString(", ")
		}
		first = false
	}
	for _, imm := range e.Imm {
		sep()
		b.WriteString(imm)
	}
	for _, a := range e.Args {
		sep()
		a.write(b)
	}
	b.WriteByte(')')
}

type shape struct {
	imm     int
	minArgs int
	maxArgs int // -1 is unbounded
}

var shapes = map[string]shape{
	"int":    {imm: 1},
	"bytes":  {imm: 1},
	"addr":   {imm: 1},
	"txn":    {imm: 1},
	"global": {imm: 1},
	"gtxn":   {imm: 2},
	"txna":   {imm: 2},
	"load":   {imm: 1},
	"store":  {imm: 1, minArgs: 1, maxArgs: 1},

	"seq":     {minArgs: 1, maxArgs: -1},
	"if":      {minArgs: 2, maxArgs: 3},
	"cond":    {minArgs: 2, maxArgs: -1},
	"assert":  {minArgs: 1, maxArgs: -1},
	"return":  {minArgs: 1, maxArgs: 1},
	"approve": {},
	"reject":  {},

	"and": {minArgs: 2, maxArgs: -1},
	"or":  {minArgs: 2, maxArgs: -1},
	"not": {minArgs: 1, maxArgs: 1},
	"eq":  {minArgs: 2, maxArgs: 2},
	"neq": {minArgs: 2, maxArgs: 2},
	"lt":  {minArgs: 2, maxArgs: 2},
	"le":  {minArgs: 2, maxArgs: 2},
	"gt":  {minArgs: 2, maxArgs: 2},
	"ge":  {minArgs: 2, maxArgs: 2},
	"add": {minArgs: 2, maxArgs: -1},
	"mul": {minArgs: 2, maxArgs: -1},
	"sub": {minArgs: 2, maxArgs: 2},
	"div": {minArgs: 2, maxArgs: 2},
	"mod": {minArgs: 2, maxArgs: 2},

	"concat":    {minArgs: 2, maxArgs: -1},
	"len":       {minArgs: 1, maxArgs: 1},
	"btoi":      {minArgs: 1, maxArgs: 1},
	"itob":      {minArgs: 1, maxArgs: 1},
	"sha256":    {minArgs: 1, maxArgs: 1},
	"keccak256": {minArgs: 1, maxArgs: 1},

	"global_put":  {minArgs: 2, maxArgs: 2},
	"global_get":  {minArgs: 1, maxArgs: 1},
	"global_del":  {minArgs: 1, maxArgs: 1},
	"local_put":   {minArgs: 3, maxArgs: 3},
	"local_get":   {minArgs: 2, maxArgs: 2},
	"local_del":   {minArgs: 2, maxArgs: 2},
	"log":         {minArgs: 1, maxArgs: 1},
	"balance":     {minArgs: 1, maxArgs: 1},
	"min_balance": {minArgs: 1, maxArgs: 1},
}

var aliases = map[string]string{
	"byte":           "bytes",
	"ne":             "neq",
	"lte":            "le",
	"gte":            "ge",
	"app_global_put": "global_put",
	"app_global_get": "global_get",
	"app_global_del": "global_del",
	"app_local_put":  "local_put",
	"app_local_get":  "local_get",
	"app_local_del":  "local_del",
}

// Operators lists every operator name a document may use.
func Operators() []string {
	ops := make([]string, 0, len(shapes))
	for op := range shapes {
		ops = append(ops, op)
	}
	return ops
}

func canonicalOp(name string) string {
	op := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[op]; ok {
		return a
	}
	return op
}

// Decode turns a YAML node into an expression tree.
func Decode(n *yaml.Node) (*Expr, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) != 1 {
			return nil, errorAt(n, "empty document")
		}
		return Decode(n.Content[0])
	case yaml.AliasNode:
		// An anchor is registered before its children are parsed, so an
		// alias can point back into its own node.
		return nil, errorAt(n, "aliases (*%s) are not supported in programs; write the expression out", n.Value)
	case yaml.ScalarNode:
		return decodeLiteral(n)
	case yaml.SequenceNode:
		// A bare list is shorthand for seq.
		return decodeOp(n, "seq", n)
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return nil, errorAt(n, "an expression must be a mapping with exactly one operator key, found %d keys", len(n.Content)/2)
		}
		key, value := n.Content[0], n.Content[1]
		if key.Kind != yaml.ScalarNode {
			return nil, errorAt(key, "operator key must be a string")
		}
		return decodeOp(key, canonicalOp(key.Value), value)
	default:
		return nil, errorAt(n, "unsupported node")
	}
}

func decodeLiteral(n *yaml.Node) (*Expr, error) {
	e := &Expr{Line: n.Line, Column: n.Column}
	switch n.ShortTag() {
	case "!!int":
		if strings.HasPrefix(strings.TrimSpace(n.Value), "-") {
			return nil, errorAt(n, "negative integer %s: only uint64 values exist", n.Value)
		}
		e.Op, e.Imm = "int", []string{n.Value}
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, errorAt(n, "invalid boolean %q", n.Value)
		}
		v := "0"
		if b {
			v = "1"
		}
		e.Op, e.Imm = "int", []string{v}
	case "!!str":
		// Unquoted approve and reject are the nullary operators; quote them
		// to get byte strings.
		if n.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) == 0 && (n.Value == "approve" || n.Value == "reject") {
			e.Op = n.Value
			return e, nil
		}
		e.Op, e.Imm = "bytes", []string{n.Value}
	case "!!null":
		return nil, errorAt(n, "missing expression")
	default:
		return nil, errorAt(n, "unsupported literal %q (%s)", n.Value, n.ShortTag())
	}
	return e, nil
}

func decodeOp(at *yaml.Node, op string, value *yaml.Node) (*Expr, error) {
	sh, ok := shapes[op]
	if !ok {
		return nil, errorAt(at, "unknown operator %q", op)
	}
	e := &Expr{Op: op, Line: at.Line, Column: at.Column}

	items := operands(value)

	if len(items) < sh.imm {
		return nil, errorAt(at, "%s needs %d immediate value(s), got %d", op, sh.imm, len(items))
	}
	for _, item := range items[:sh.imm] {
		if item.Kind != yaml.ScalarNode {
			return nil, errorAt(item, "%s immediate must be a scalar", op)
		}
		e.Imm = append(e.Imm, item.Value)
	}
	items = items[sh.imm:]

	if op == "cond" {
		return decodeCond(e, at, items)
	}

	if len(items) < sh.minArgs || (sh.maxArgs >= 0 && len(items) > sh.maxArgs) {
		return nil, errorAt(at, "%s takes %s argument(s), got %d", op, arityText(sh), len(items))
	}
	for _, item := range items {
		arg, err := Decode(item)
		if err != nil {
			return nil, err
		}
		e.Args = append(e.Args, arg)
	}
	return e, nil
}

// decodeCond flattens [[c0, e0], [c1, e1], ...] into c0, e0, c1, e1.
func decodeCond(e *Expr, at *yaml.Node, items []*yaml.Node) (*Expr, error) {
	if len(items) == 0 {
		return nil, errorAt(at, "cond needs at least one [condition, body] pair")
	}
	for _, pair := range items {
		if pair.Kind != yaml.SequenceNode || len(pair.Content) != 2 {
			return nil, errorAt(pair, "cond branch must be a [condition, body] pair")
		}
		for _, item := range pair.Content {
			arg, err := Decode(item)
			if err != nil {
				return nil, err
			}
			e.Args = append(e.Args, arg)
		}
	}
	return e, nil
}

// operands spreads a sequence value; a null value means no operands.
func operands(value *yaml.Node) []*yaml.Node {
	switch {
	case value == nil:
		return nil
	case value.Kind == yaml.SequenceNode:
		return value.Content
	case value.Kind == yaml.ScalarNode && value.ShortTag() == "!!null":
		return nil
	default:
		return []*yaml.Node{value}
	}
}

func arityText(sh shape) string {
	switch {
	case sh.maxArgs < 0:
		return fmt.Sprintf("at least %d", sh.minArgs)
	case sh.minArgs == sh.maxArgs:
		return fmt.Sprintf("exactly %d", sh.minArgs)
	default:
		return fmt.Sprintf("%d to %d", sh.minArgs, sh.maxArgs)
	}
}
