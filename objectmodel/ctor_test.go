// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objectmodel

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/luxfi/bridge/wire"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		in   string
		want []any
	}{
		{"", []any{}},
		{"42", []any{int32(42)}},
		{"-7, 3.5, -0.25", []any{int32(-7), 3.5, -0.25}},
		{"5000000000", []any{int64(5000000000)}},
		{`"red", 'x', true, null`, []any{"red", "x", true, nil}},
		{"@3, [1, \"a\"]", []any{&wire.ObjectRef{ID: 3}, []any{int32(1), "a"}}},
		{"Inner(1)", []any{&Ctor{Class: "Inner", Args: []any{int32(1)}}}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseArgs(tt.in)
			if err != nil {
				t.Fatalf("ParseArgs(%q): %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseCtor(t *testing.T) {
	c, err := ParseCtor(`demo.Widget(42, "red")`)
	if err != nil {
		t.Fatalf("ParseCtor: %v", err)
	}
	if c.Class != "demo.Widget" || !reflect.DeepEqual(c.Args, []any{int32(42), "red"}) {
		t.Errorf("got %+v", c)
	}
	if got := c.String(); got != `demo.Widget(42, "red")` {
		t.Errorf("String() = %s", got)
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"Widget(", "Widget(1,)", "Widget(1) extra", "(1)", "Widget(-x)", `Widget("open)`} {
		if _, err := ParseCtor(in); !errors.Is(err, ErrSyntax) {
			t.Errorf("ParseCtor(%q) = %v, want ErrSyntax", in, err)
		}
	}
}

func TestNewByCtor(t *testing.T) {
	r := newTestRegistry(t)
	r.MustRegister(NewClass("Box", (*box)(nil)).Constructor(func(w *Widget) *box { return &box{Item: w} }))

	obj, err := r.NewByCtor(context.Background(), `Box(Widget(42, "red"))`)
	if err != nil {
		t.Fatalf("NewByCtor: %v", err)
	}
	b, ok := obj.(*box)
	if !ok || b.Item.Size != 42 || b.Item.Color != "red" {
		t.Errorf("got %#v", obj)
	}
}

type box struct {
	Item *Widget
}
