// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objectmodel

import (
	"context"
	"fmt"
	"sync"

	"github.com/zylisp/lang/interpreter"
	"github.com/zylisp/lang/parser"
)

// RegisterBuiltins adds the classes every bridge server offers:
//
//   - Creator, whose static NewByCtor builds objects from constructor
//     expressions
//   - Lisp, a zylisp evaluator with a static Eval and stateful sessions
func RegisterBuiltins(r *Registry) error {
	creator := NewClass("Creator", nil).
		Static("NewByCtor", func(expr string) (any, error) {
			return r.NewByCtor(context.Background(), expr)
		})
	if err := r.Register(creator); err != nil {
		return err
	}

	lisp := NewClass("Lisp", (*LispSession)(nil)).
		Constructor(NewLispSession).
		Static("Eval", func(src string) (string, error) {
			return NewLispSession().Eval(src)
		})
	return r.Register(lisp)
}

// LispSession evaluates zylisp expressions in one environment, so
// definitions persist between calls.
type LispSession struct {
	mu  sync.Mutex
	env *interpreter.Env
}

func NewLispSession() *LispSession {
	s := &LispSession{}
	s.Reset()
	return s
}

// Eval evaluates one expression and returns its printed form.
func (s *LispSession) Eval(src string) (string, error) {
	tokens, err := parser.Tokenize(src)
	if err != nil {
		return "", fmt.Errorf("tokenize error: %w", err)
	}
	expr, err := parser.Read(tokens)
	if err != nil {
		return "", fmt.Errorf("parse error: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	result, err := interpreter.Eval(expr, s.env)
	if err != nil {
		return "", fmt.Errorf("eval error: %w", err)
	}
	return result.String(), nil
}

// Reset clears the environment and reloads primitives.
func (s *LispSession) Reset() {
	env := interpreter.NewEnv(nil)
	interpreter.LoadPrimitives(env)

	s.mu.Lock()
	s.env = env
	s.mu.Unlock()
}
