// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/luxfi/bridge"
	"github.com/luxfi/bridge/objectmodel"
	"github.com/luxfi/bridge/wire"
)

var errQuit = errors.New("quit")

const usage = `commands:
  new Class(args)            create an object
  ctor Class(args)           create through the server's constructor parser
  call @id Method(args)      call an instance method
  static Class.Method(args)  call a static method
  get @id Prop               read a property
  set @id Prop value         write a property
  sget Class Prop            read a static property
  sset Class Prop value      write a static property
  index @id n                element n of an indexable object
  iprop @id Prop n           element n of a property
  describe Class             list members
  release @id                drop the server's reference
  help, quit`

var commands = []string{
	"call", "ctor", "describe", "get", "help", "index", "iprop",
	"new", "quit", "release", "set", "sget", "sset", "static",
}

// shell runs one command line at a time against a bridge client.
type shell struct {
	client bridge.Client
	out    io.Writer

	mu    sync.Mutex
	words map[string]struct{}
}

func newShell(client bridge.Client, out io.Writer) *shell {
	return &shell{client: client, out: out, words: make(map[string]struct{})}
}

// complete offers command names for the first word and member names learned
// from describe replies for the rest.
func (s *shell) complete(line string) []string {
	head, word := "", line
	if i := strings.LastIndexAny(line, " .("); i >= 0 {
		head, word = line[:i+1], line[i+1:]
	}

	var out []string
	if head == "" {
		for _, c := range commands {
			if strings.HasPrefix(c, word) {
				out = append(out, c)
			}
		}
		return out
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for w := range s.words {
		if strings.HasPrefix(w, word) {
			out = append(out, head+w)
		}
	}
	slices.Sort(out)
	return out
}

func (s *shell) learn(names ...[]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, list := range names {
		for _, n := range list {
			s.words[n] = struct{}{}
		}
	}
}

// exec runs one command line and prints its result.
func (s *shell) exec(ctx context.Context, line string) error {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	var (
		v   any
		err error
	)
	switch cmd {
	case "":
		return nil
	case "help":
		fmt.Fprintln(s.out, usage)
		return nil
	case "quit", "exit":
		return errQuit
	case "new":
		v, err = s.create(ctx, rest)
	case "ctor":
		v, err = s.client.CallStatic(ctx, "Creator", "NewByCtor", rest)
	case "call":
		v, err = s.call(ctx, rest)
	case "static":
		v, err = s.static(ctx, rest)
	case "get":
		v, err = s.get(ctx, rest)
	case "set":
		err = s.set(ctx, rest)
	case "sget":
		v, err = s.sget(ctx, rest)
	case "sset":
		err = s.sset(ctx, rest)
	case "index":
		v, err = s.index(ctx, rest)
	case "iprop":
		v, err = s.iprop(ctx, rest)
	case "describe":
		return s.describe(ctx, rest)
	case "release":
		var obj any
		if obj, err = target(rest); err == nil {
			err = s.client.Release(ctx, obj)
		}
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	if err != nil {
		return err
	}
	s.print(v)
	return nil
}

func (s *shell) print(v any) {
	switch x := v.(type) {
	case nil:
		fmt.Fprintln(s.out, "null")
	case *wire.ObjectRef:
		fmt.Fprintf(s.out, "@%d %s\n", x.ID, x.Class)
	case string:
		fmt.Fprintln(s.out, strconv.Quote(x))
	default:
		fmt.Fprintln(s.out, x)
	}
}

func (s *shell) create(ctx context.Context, expr string) (any, error) {
	c, err := parseCall(expr)
	if err != nil {
		return nil, err
	}
	args, err := s.remoteArgs(ctx, c.Args)
	if err != nil {
		return nil, err
	}
	return s.client.Create(ctx, c.Class, args...)
}

// call handles "@id Method(args)".
func (s *shell) call(ctx context.Context, rest string) (any, error) {
	ref, expr, _ := strings.Cut(rest, " ")
	obj, err := target(ref)
	if err != nil {
		return nil, err
	}
	c, err := parseCall(strings.TrimSpace(expr))
	if err != nil {
		return nil, err
	}
	args, err := s.remoteArgs(ctx, c.Args)
	if err != nil {
		return nil, err
	}
	return s.client.Call(ctx, obj, c.Class, args...)
}

// static handles "Class.Method(args)". The class may itself be dotted.
func (s *shell) static(ctx context.Context, expr string) (any, error) {
	c, err := parseCall(expr)
	if err != nil {
		return nil, err
	}
	i := strings.LastIndex(c.Class, ".")
	if i < 0 {
		return nil, fmt.Errorf("static wants Class.Method(args), got %q", expr)
	}
	args, err := s.remoteArgs(ctx, c.Args)
	if err != nil {
		return nil, err
	}
	return s.client.CallStatic(ctx, c.Class[:i], c.Class[i+1:], args...)
}

func (s *shell) get(ctx context.Context, rest string) (any, error) {
	f, err := fields(rest, 2)
	if err != nil {
		return nil, err
	}
	obj, err := target(f[0])
	if err != nil {
		return nil, err
	}
	return s.client.GetProperty(ctx, obj, f[1])
}

func (s *shell) set(ctx context.Context, rest string) error {
	f, err := fields(rest, 3)
	if err != nil {
		return err
	}
	obj, err := target(f[0])
	if err != nil {
		return err
	}
	v, err := s.literal(ctx, f[2])
	if err != nil {
		return err
	}
	return s.client.SetProperty(ctx, obj, f[1], v)
}

func (s *shell) sget(ctx context.Context, rest string) (any, error) {
	f, err := fields(rest, 2)
	if err != nil {
		return nil, err
	}
	return s.client.GetStaticProperty(ctx, f[0], f[1])
}

func (s *shell) sset(ctx context.Context, rest string) error {
	f, err := fields(rest, 3)
	if err != nil {
		return err
	}
	v, err := s.literal(ctx, f[2])
	if err != nil {
		return err
	}
	return s.client.SetStaticProperty(ctx, f[0], f[1], v)
}

func (s *shell) index(ctx context.Context, rest string) (any, error) {
	f, err := fields(rest, 2)
	if err != nil {
		return nil, err
	}
	obj, err := target(f[0])
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseInt(f[1], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("bad index %q", f[1])
	}
	return s.client.GetIndexed(ctx, obj, int32(n))
}

func (s *shell) iprop(ctx context.Context, rest string) (any, error) {
	f, err := fields(rest, 3)
	if err != nil {
		return nil, err
	}
	obj, err := target(f[0])
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseInt(f[2], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("bad index %q", f[2])
	}
	return s.client.GetIndexedProperty(ctx, obj, f[1], int32(n))
}

func (s *shell) describe(ctx context.Context, class string) error {
	info, err := s.client.Describe(ctx, class)
	if err != nil {
		return err
	}
	s.learn([]string{class}, info.Properties, info.Methods, info.StaticMethods)
	fmt.Fprintf(s.out, "properties: %s\n", strings.Join(info.Properties, ", "))
	fmt.Fprintf(s.out, "methods: %s\n", strings.Join(info.Methods, ", "))
	fmt.Fprintf(s.out, "static methods: %s\n", strings.Join(info.StaticMethods, ", "))
	return nil
}

// literal parses a single argument value, creating it remotely if it is a
// constructor expression.
func (s *shell) literal(ctx context.Context, src string) (any, error) {
	args, err := objectmodel.ParseArgs(src)
	if err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("want one value, got %d", len(args))
	}
	out, err := s.remoteArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// remoteArgs replaces nested constructor expressions with objects created
// on the server.
func (s *shell) remoteArgs(ctx context.Context, args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		switch x := a.(type) {
		case *objectmodel.Ctor:
			obj, err := s.client.CallStatic(ctx, "Creator", "NewByCtor", x.String())
			if err != nil {
				return nil, err
			}
			out[i] = obj
		case []any:
			l, err := s.remoteArgs(ctx, x)
			if err != nil {
				return nil, err
			}
			out[i] = l
		default:
			out[i] = a
		}
	}
	return out, nil
}

// parseCall parses Name(args); the parentheses may be omitted when there
// are no arguments.
func parseCall(expr string) (*objectmodel.Ctor, error) {
	if !strings.Contains(expr, "(") {
		expr += "()"
	}
	return objectmodel.ParseCtor(expr)
}

// target parses an object reference of the form @id.
func target(src string) (any, error) {
	args, err := objectmodel.ParseArgs(src)
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		if ref, ok := args[0].(*wire.ObjectRef); ok {
			return ref, nil
		}
	}
	return nil, fmt.Errorf("want an object reference like @1, got %q", src)
}

// fields splits rest into n fields; the last one keeps any spaces.
func fields(rest string, n int) ([]string, error) {
	f := strings.SplitN(rest, " ", n)
	if len(f) != n {
		return nil, fmt.Errorf("want %d arguments, got %d", n, len(f))
	}
	for i := range f {
		f[i] = strings.TrimSpace(f[i])
		if f[i] == "" {
			return nil, fmt.Errorf("want %d arguments", n)
		}
	}
	return f, nil
}
