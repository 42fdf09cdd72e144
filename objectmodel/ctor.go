// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objectmodel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/luxfi/bridge/wire"
)

var ErrSyntax = errors.New("syntax error")

// Ctor is a parsed constructor expression such as Widget(42, "red").
// Arguments may themselves be *Ctor values.
type Ctor struct {
	Class string
	Args  []any
}

func (c *Ctor) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = literal(a)
	}
	return c.Class + "(" + strings.Join(parts, ", ") + ")"
}

func literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case *wire.ObjectRef:
		return "@" + strconv.Itoa(int(x.ID))
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = literal(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(v)
}

type ctorParser struct {
	s    scanner.Scanner
	tok  rune
	errs []string
}

func newCtorParser(src string) *ctorParser {
	p := &ctorParser{}
	p.s.Init(strings.NewReader(src))
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats |
		scanner.ScanStrings | scanner.ScanRawStrings | scanner.ScanChars
	p.s.Error = func(_ *scanner.Scanner, msg string) {
		p.errs = append(p.errs, msg)
	}
	p.next()
	return p
}

func (p *ctorParser) next() { p.tok = p.s.Scan() }

func (p *ctorParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at %s: %s", ErrSyntax, p.s.Position, fmt.Sprintf(format, args...))
}

func (p *ctorParser) expect(tok rune) error {
	if p.tok != tok {
		return p.errorf("expected %s, found %q", scanner.TokenString(tok), p.s.TokenText())
	}
	p.next()
	return nil
}

func (p *ctorParser) done() error {
	if len(p.errs) > 0 {
		return fmt.Errorf("%w: %s", ErrSyntax, p.errs[0])
	}
	if p.tok != scanner.EOF {
		return p.errorf("unexpected %q", p.s.TokenText())
	}
	return nil
}

// dottedName reads Ident{.Ident}.
func (p *ctorParser) dottedName() (string, error) {
	if p.tok != scanner.Ident {
		return "", p.errorf("expected class name, found %q", p.s.TokenText())
	}
	name := p.s.TokenText()
	p.next()
	for p.tok == '.' {
		p.next()
		if p.tok != scanner.Ident {
			return "", p.errorf("expected name after '.'")
		}
		name += "." + p.s.TokenText()
		p.next()
	}
	return name, nil
}

func (p *ctorParser) list(end rune) ([]any, error) {
	args := []any{}
	if p.tok == end {
		p.next()
		return args, nil
	}
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		if p.tok == ',' {
			p.next()
			continue
		}
		return args, p.expect(end)
	}
}

func (p *ctorParser) ctor() (*Ctor, error) {
	name, err := p.dottedName()
	if err != nil {
		return nil, err
	}
	if err := p.expect('('); err != nil {
		return nil, err
	}
	args, err := p.list(')')
	if err != nil {
		return nil, err
	}
	return &Ctor{Class: name, Args: args}, nil
}

func (p *ctorParser) value() (any, error) {
	neg := false
	if p.tok == '-' {
		neg = true
		p.next()
	}
	text := p.s.TokenText()
	switch p.tok {
	case scanner.Int:
		p.next()
		if neg {
			text = "-" + text
		}
		n, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return int32(n), nil
		}
		return n, nil
	case scanner.Float:
		p.next()
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		if neg {
			f = -f
		}
		return f, nil
	}
	if neg {
		return nil, p.errorf("expected number after '-'")
	}

	switch p.tok {
	case scanner.String, scanner.RawString:
		p.next()
		s, err := strconv.Unquote(text)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		return s, nil
	case scanner.Char:
		p.next()
		s, err := strconv.Unquote(text)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		return s, nil
	case '@':
		p.next()
		if p.tok != scanner.Int {
			return nil, p.errorf("expected object id after '@'")
		}
		id, err := strconv.ParseInt(p.s.TokenText(), 10, 32)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		p.next()
		return &wire.ObjectRef{ID: int32(id)}, nil
	case '[':
		p.next()
		return p.list(']')
	case scanner.Ident:
		switch text {
		case "true", "false":
			p.next()
			return text == "true", nil
		case "null", "nil":
			p.next()
			return nil, nil
		}
		return p.ctor()
	}
	return nil, p.errorf("unexpected %q", text)
}

// ParseCtor parses Name(arg, ...) where each argument is an int, float,
// string, bool, null, [list], @id or a nested constructor expression.
func ParseCtor(src string) (*Ctor, error) {
	p := newCtorParser(src)
	c, err := p.ctor()
	if err != nil {
		return nil, err
	}
	if err := p.done(); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseArgs parses a comma separated argument list without the enclosing
// parentheses. @N stands for the remote object with id N.
func ParseArgs(src string) ([]any, error) {
	p := newCtorParser(src)
	args := []any{}
	if p.tok == scanner.EOF {
		return args, p.done()
	}
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		if p.tok != ',' {
			break
		}
		p.next()
	}
	if err := p.done(); err != nil {
		return nil, err
	}
	return args, nil
}

// NewByCtor creates the object described by a constructor expression,
// creating nested constructor arguments first.
func (r *Registry) NewByCtor(ctx context.Context, expr string) (any, error) {
	c, err := ParseCtor(expr)
	if err != nil {
		return nil, err
	}
	return r.build(ctx, c)
}

func (r *Registry) build(ctx context.Context, c *Ctor) (any, error) {
	args := make([]any, len(c.Args))
	for i, a := range c.Args {
		v, err := r.resolveArg(ctx, a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return r.Create(ctx, c.Class, args)
}

func (r *Registry) resolveArg(ctx context.Context, a any) (any, error) {
	switch x := a.(type) {
	case *Ctor:
		return r.build(ctx, x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			v, err := r.resolveArg(ctx, e)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return a, nil
}
