// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objectmodel

import (
	"context"
	"testing"
)

func TestLispStaticEval(t *testing.T) {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	v, err := r.CallStatic(context.Background(), "Lisp", "Eval", []any{"(+ 1 2)"})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v != "3" {
		t.Errorf("got %v, want 3", v)
	}
	if _, err := r.CallStatic(context.Background(), "Lisp", "Eval", []any{"(+ 1 x)"}); err == nil {
		t.Error("undefined variable evaluated without error")
	}
}

func TestLispSessionKeepsDefinitions(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatal(err)
	}
	s, err := r.Create(ctx, "Lisp", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.Call(ctx, s, "Eval", []any{"(define square (lambda (x) (* x x)))"}); err != nil {
		t.Fatalf("define: %v", err)
	}
	v, err := r.Call(ctx, s, "Eval", []any{"(square 5)"})
	if err != nil || v != "25" {
		t.Errorf("(square 5) = %v, %v", v, err)
	}
	if r.ClassName(s) != "Lisp" {
		t.Errorf("ClassName = %q", r.ClassName(s))
	}
}

func TestCreatorNewByCtor(t *testing.T) {
	r := newTestRegistry(t)
	if err := RegisterBuiltins(r); err != nil {
		t.Fatal(err)
	}
	obj, err := r.CallStatic(context.Background(), "Creator", "NewByCtor", []any{`Widget(3, "blue")`})
	if err != nil {
		t.Fatalf("NewByCtor: %v", err)
	}
	if w, ok := obj.(*Widget); !ok || w.Color != "blue" {
		t.Errorf("got %#v", obj)
	}
}
