// Package teal lowers program expression trees to TEAL assembly.
package teal

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/GIL794/algorand-ai-contract-creator/internal/program"
)

// ErrLowering marks programs that decode but cannot be expressed in TEAL.
var ErrLowering = errors.New("lowering error")

// Error points at the expression that failed to lower.
type Error struct {
	Line   int
	Column int
	Op     string
	Msg    string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d, column %d: %s: %s", e.Line, e.Column, e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return ErrLowering }

func errorAt(e *program.Expr, format string, args ...any) error {
	return &Error{Line: e.Line, Column: e.Column, Op: e.Op, Msg: fmt.Sprintf(format, args...)}
}

// Mode selects the execution context a program is compiled for.
type Mode int

const (
	ModeApplication Mode = iota
	ModeSignature
)

func (m Mode) String() string {
	if m == ModeSignature {
		return "signature"
	}
	return "program"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMode accepts "program"/"application" and "signature"/"logicsig".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "program", "application", "app":
		return ModeApplication, nil
	case "signature", "logicsig", "lsig":
		return ModeSignature, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// Type is the stack type an expression leaves behind.
type Type int

const (
	TypeNone Type = iota
	TypeUint64
	TypeBytes
	TypeAny
)

func (t Type) String() string {
	switch t {
	case TypeUint64:
		return "uint64"
	case TypeBytes:
		return "bytes"
	case TypeAny:
		return "any"
	default:
		return "none"
	}
}

func (t Type) compatible(want Type) bool {
	switch {
	case t == TypeNone || want == TypeNone:
		return t == want
	case t == TypeAny || want == TypeAny:
		return true
	default:
		return t == want
	}
}

// Supported language versions.
const (
	MinVersion     = 4
	MaxVersion     = 10
	DefaultVersion = 8
)

// Options control lowering.
type Options struct {
	Mode    Mode
	Version int
}

// Lower type-checks e and returns TEAL source ending in a newline.
func Lower(e *program.Expr, opts Options) (string, error) {
	if opts.Version == 0 {
		opts.Version = DefaultVersion
	}
	if opts.Version < MinVersion || opts.Version > MaxVersion {
		return "", fmt.Errorf("%w: unsupported TEAL version %d", ErrLowering, opts.Version)
	}

	l := &lowerer{mode: opts.Mode}
	l.emit("#pragma version %d", opts.Version)

	t, err := l.expr(e)
	if err != nil {
		return "", err
	}
	switch t {
	case TypeUint64, TypeAny:
		l.emit("return")
	case TypeBytes:
		return "", errorAt(e, "program evaluates to bytes; it must produce a uint64 or end in approve, reject or return")
	case TypeNone:
		if !terminates(e) {
			return "", errorAt(e, "program can finish without approve, reject or return")
		}
	}
	return strings.Join(l.lines, "\n") + "\n", nil
}

type lowerer struct {
	mode   Mode
	lines  []string
	labels int
}

func (l *lowerer) emit(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *lowerer) label() int {
	l.labels++
	return l.labels
}

// arg lowers e and checks it leaves a value of type want.
func (l *lowerer) arg(parent, e *program.Expr, want Type) (Type, error) {
	t, err := l.expr(e)
	if err != nil {
		return t, err
	}
	if want == TypeAny {
		if t == TypeNone {
			return t, errorAt(parent, "argument at %s produces no value", e.Pos())
		}
		return t, nil
	}
	if !t.compatible(want) {
		return t, errorAt(parent, "argument at %s is %s, want %s", e.Pos(), t, want)
	}
	return t, nil
}

func (l *lowerer) appOnly(e *program.Expr) error {
	if l.mode == ModeSignature {
		return errorAt(e, "only available to applications, not logic signatures")
	}
	return nil
}

var binaryOps = map[string]string{
	"eq": "==", "neq": "!=",
	"lt": "<", "le": "<=", "gt": ">", "ge": ">=",
	"sub": "-", "div": "/", "mod": "%",
}

var chainOps = map[string]string{
	"and": "&&", "or": "||", "add": "+", "mul": "*",
}

func (l *lowerer) expr(e *program.Expr) (Type, error) {
	switch e.Op {
	case "int":
		v, err := parseUint(e.Imm[0])
		if err != nil {
			return TypeNone, errorAt(e, "%v", err)
		}
		l.emit("int %d", v)
		return TypeUint64, nil

	case "bytes":
		lit, err := byteLiteral(e.Imm[0])
		if err != nil {
			return TypeNone, errorAt(e, "%v", err)
		}
		l.emit("byte %s", lit)
		return TypeBytes, nil

	case "addr":
		if _, err := types.DecodeAddress(e.Imm[0]); err != nil {
			return TypeNone, errorAt(e, "invalid address %q: %v", e.Imm[0], err)
		}
		l.emit("addr %s", e.Imm[0])
		return TypeBytes, nil

	case "txn":
		f, ok := lookupField(txnFields, e.Imm[0])
		if !ok {
			return TypeNone, errorAt(e, "unknown transaction field %q", e.Imm[0])
		}
		l.emit("txn %s", f.name)
		return f.typ, nil

	case "global":
		f, ok := lookupField(globalFields, e.Imm[0])
		if !ok {
			return TypeNone, errorAt(e, "unknown global field %q", e.Imm[0])
		}
		if f.appOnly {
			if err := l.appOnly(e); err != nil {
				return TypeNone, err
			}
		}
		l.emit("global %s", f.name)
		return f.typ, nil

	case "gtxn":
		idx, err := smallIndex(e.Imm[0], 15)
		if err != nil {
			return TypeNone, errorAt(e, "group index: %v", err)
		}
		f, ok := lookupField(txnFields, e.Imm[1])
		if !ok {
			return TypeNone, errorAt(e, "unknown transaction field %q", e.Imm[1])
		}
		l.emit("gtxn %d %s", idx, f.name)
		return f.typ, nil

	case "txna":
		f, ok := lookupField(arrayFields, e.Imm[0])
		if !ok {
			return TypeNone, errorAt(e, "unknown array field %q", e.Imm[0])
		}
		idx, err := smallIndex(e.Imm[1], 255)
		if err != nil {
			return TypeNone, errorAt(e, "array index: %v", err)
		}
		l.emit("txna %s %d", f.name, idx)
		return f.typ, nil

	case "load":
		slot, err := smallIndex(e.Imm[0], 255)
		if err != nil {
			return TypeNone, errorAt(e, "scratch slot: %v", err)
		}
		l.emit("load %d", slot)
		return TypeAny, nil

	case "store":
		slot, err := smallIndex(e.Imm[0], 255)
		if err != nil {
			return TypeNone, errorAt(e, "scratch slot: %v", err)
		}
		if _, err := l.arg(e, e.Args[0], TypeAny); err != nil {
			return TypeNone, err
		}
		l.emit("store %d", slot)
		return TypeNone, nil

	case "seq":
		return l.seq(e)
	case "if":
		return l.ifExpr(e)
	case "cond":
		return l.cond(e)

	case "assert":
		for _, a := range e.Args {
			if _, err := l.arg(e, a, TypeUint64); err != nil {
				return TypeNone, err
			}
			l.emit("assert")
		}
		return TypeNone, nil

	case "return":
		if _, err := l.arg(e, e.Args[0], TypeUint64); err != nil {
			return TypeNone, err
		}
		l.emit("return")
		return TypeNone, nil

	case "approve":
		l.emit("int 1")
		l.emit("return")
		return TypeNone, nil

	case "reject":
		l.emit("int 0")
		l.emit("return")
		return TypeNone, nil

	case "not":
		if _, err := l.arg(e, e.Args[0], TypeUint64); err != nil {
			return TypeNone, err
		}
		l.emit("!")
		return TypeUint64, nil

	case "eq", "neq":
		left, err := l.arg(e, e.Args[0], TypeAny)
		if err != nil {
			return TypeNone, err
		}
		right, err := l.arg(e, e.Args[1], TypeAny)
		if err != nil {
			return TypeNone, err
		}
		if !left.compatible(right) {
			return TypeNone, errorAt(e, "cannot compare %s with %s", left, right)
		}
		l.emit(binaryOps[e.Op])
		return TypeUint64, nil

	case "lt", "le", "gt", "ge", "sub", "div", "mod":
		for _, a := range e.Args {
			if _, err := l.arg(e, a, TypeUint64); err != nil {
				return TypeNone, err
			}
		}
		l.emit(binaryOps[e.Op])
		return TypeUint64, nil

	case "and", "or", "add", "mul":
		return TypeUint64, l.chain(e, TypeUint64, chainOps[e.Op])

	case "concat":
		return TypeBytes, l.chain(e, TypeBytes, "concat")

	case "len", "btoi":
		if _, err := l.arg(e, e.Args[0], TypeBytes); err != nil {
			return TypeNone, err
		}
		l.emit(e.Op)
		return TypeUint64, nil

	case "itob":
		if _, err := l.arg(e, e.Args[0], TypeUint64); err != nil {
			return TypeNone, err
		}
		l.emit("itob")
		return TypeBytes, nil

	case "sha256", "keccak256":
		if _, err := l.arg(e, e.Args[0], TypeBytes); err != nil {
			return TypeNone, err
		}
		l.emit(e.Op)
		return TypeBytes, nil

	case "global_put", "global_get", "global_del",
		"local_put", "local_get", "local_del",
		"log", "balance", "min_balance":
		return l.stateful(e)
	}

	return TypeNone, errorAt(e, "unsupported operator")
}

func (l *lowerer) chain(e *program.Expr, want Type, op string) error {
	for i, a := range e.Args {
		if _, err := l.arg(e, a, want); err != nil {
			return err
		}
		if i > 0 {
			l.emit(op)
		}
	}
	return nil
}

func (l *lowerer) seq(e *program.Expr) (Type, error) {
	var t Type
	last := len(e.Args) - 1
	for i, a := range e.Args {
		var err error
		if t, err = l.expr(a); err != nil {
			return TypeNone, err
		}
		if i < last && t != TypeNone {
			return TypeNone, errorAt(e, "item at %s leaves a %s value on the stack; only the last item may produce a value", a.Pos(), t)
		}
	}
	return t, nil
}

func (l *lowerer) ifExpr(e *program.Expr) (Type, error) {
	n := l.label()
	elseLabel := fmt.Sprintf("if%d_else", n)
	endLabel := fmt.Sprintf("if%d_end", n)

	if _, err := l.arg(e, e.Args[0], TypeUint64); err != nil {
		return TypeNone, err
	}

	if len(e.Args) == 2 {
		l.emit("bz %s", endLabel)
		t, err := l.expr(e.Args[1])
		if err != nil {
			return TypeNone, err
		}
		if t != TypeNone {
			return TypeNone, errorAt(e, "if without else must not produce a value, then branch is %s", t)
		}
		l.emit("%s:", endLabel)
		return TypeNone, nil
	}

	l.emit("bz %s", elseLabel)
	thenType, err := l.expr(e.Args[1])
	if err != nil {
		return TypeNone, err
	}
	l.emit("b %s", endLabel)
	l.emit("%s:", elseLabel)
	elseType, err := l.expr(e.Args[2])
	if err != nil {
		return TypeNone, err
	}
	l.emit("%s:", endLabel)

	t, ok := unify(thenType, elseType)
	if !ok {
		return TypeNone, errorAt(e, "branches disagree: then is %s, else is %s", thenType, elseType)
	}
	return t, nil
}

// cond tests each condition in order and fails the program when none holds.
func (l *lowerer) cond(e *program.Expr) (Type, error) {
	n := l.label()
	pairs := len(e.Args) / 2
	endLabel := fmt.Sprintf("cond%d_end", n)

	for i := 0; i < pairs; i++ {
		if _, err := l.arg(e, e.Args[2*i], TypeUint64); err != nil {
			return TypeNone, err
		}
		l.emit("bnz cond%d_%d", n, i)
	}
	l.emit("err")

	var result Type
	for i := 0; i < pairs; i++ {
		l.emit("cond%d_%d:", n, i)
		t, err := l.expr(e.Args[2*i+1])
		if err != nil {
			return TypeNone, err
		}
		if i == 0 {
			result = t
		} else if u, ok := unify(result, t); ok {
			result = u
		} else {
			return TypeNone, errorAt(e, "branch %d is %s, earlier branches are %s", i, t, result)
		}
		if i < pairs-1 {
			l.emit("b %s", endLabel)
		}
	}
	l.emit("%s:", endLabel)
	return result, nil
}

func (l *lowerer) stateful(e *program.Expr) (Type, error) {
	if err := l.appOnly(e); err != nil {
		return TypeNone, err
	}

	var (
		want   []Type
		opcode string
		result = TypeNone
	)
	switch e.Op {
	case "global_put":
		want, opcode = []Type{TypeBytes, TypeAny}, "app_global_put"
	case "global_get":
		want, opcode, result = []Type{TypeBytes}, "app_global_get", TypeAny
	case "global_del":
		want, opcode = []Type{TypeBytes}, "app_global_del"
	case "local_put":
		want, opcode = []Type{TypeAny, TypeBytes, TypeAny}, "app_local_put"
	case "local_get":
		want, opcode, result = []Type{TypeAny, TypeBytes}, "app_local_get", TypeAny
	case "local_del":
		want, opcode = []Type{TypeAny, TypeBytes}, "app_local_del"
	case "log":
		want, opcode = []Type{TypeBytes}, "log"
	case "balance":
		want, opcode, result = []Type{TypeAny}, "balance", TypeUint64
	case "min_balance":
		want, opcode, result = []Type{TypeAny}, "min_balance", TypeUint64
	}

	for i, a := range e.Args {
		if _, err := l.arg(e, a, want[i]); err != nil {
			return TypeNone, err
		}
	}
	l.emit(opcode)
	return result, nil
}

func unify(a, b Type) (Type, bool) {
	switch {
	case a == b:
		return a, true
	case a == TypeNone || b == TypeNone:
		return TypeNone, false
	case a == TypeAny:
		return b, true
	case b == TypeAny:
		return a, true
	default:
		return TypeNone, false
	}
}

// terminates reports whether every path through e ends the program.
func terminates(e *program.Expr) bool {
	switch e.Op {
	case "return", "approve", "reject":
		return true
	case "seq":
		return terminates(e.Args[len(e.Args)-1])
	case "if":
		return len(e.Args) == 3 && terminates(e.Args[1]) && terminates(e.Args[2])
	case "cond":
		for i := 1; i < len(e.Args); i += 2 {
			if !terminates(e.Args[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func parseUint(s string) (uint64, error) {
	if v, ok := namedInts[normalize(s)]; ok {
		return v, nil
	}
	v, err := strconv.ParseUint(strings.ReplaceAll(strings.TrimSpace(s), "_", ""), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a uint64 or a named constant", s)
	}
	return v, nil
}

func smallIndex(s string, max uint64) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if v > max {
		return 0, fmt.Errorf("%d exceeds %d", v, max)
	}
	return v, nil
}

// byteLiteral renders s for the byte pseudo-op. The hex: and base64:
// prefixes select an explicit encoding.
func byteLiteral(s string) (string, error) {
	switch {
	case strings.HasPrefix(s, "hex:"):
		raw, err := hex.DecodeString(strings.TrimPrefix(s, "hex:"))
		if err != nil {
			return "", fmt.Errorf("invalid hex literal: %v", err)
		}
		return "0x" + hex.EncodeToString(raw), nil
	case strings.HasPrefix(s, "base64:"):
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, "base64:"))
		if err != nil {
			return "", fmt.Errorf("invalid base64 literal: %v", err)
		}
		return "0x" + hex.EncodeToString(raw), nil
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c > 0x7e || c == '"' || c == '\\' {
			return "0x" + hex.EncodeToString([]byte(s)), nil
		}
	}
	return strconv.Quote(s), nil
}
