// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package proxy

import (
	"errors"
	"sync"
	"testing"
)

type widget struct{ size int }

func TestProxyForIdentity(t *testing.T) {
	tbl := New()
	a, b := &widget{1}, &widget{1}

	ida, err := tbl.ProxyFor(a)
	if err != nil {
		t.Fatalf("ProxyFor: %v", err)
	}
	if ida != 1 {
		t.Errorf("first id = %d, want 1", ida)
	}
	again, _ := tbl.ProxyFor(a)
	if again != ida {
		t.Errorf("same object got ids %d and %d", ida, again)
	}
	idb, _ := tbl.ProxyFor(b)
	if idb == ida {
		t.Errorf("distinct objects share id %d", ida)
	}
	if got := tbl.Find(ida); got != a {
		t.Errorf("Find(%d) = %v, want original object", ida, got)
	}
}

func TestReleaseLeavesDangling(t *testing.T) {
	tbl := New()
	w := &widget{}
	id, _ := tbl.ProxyFor(w)

	if !tbl.Release(id) {
		t.Fatal("Release reported nothing removed")
	}
	if tbl.Release(id) {
		t.Error("second Release removed something")
	}
	ref, ok := tbl.Find(id).(*Ref)
	if !ok || ref.ID != id {
		t.Fatalf("Find after release = %v, want *Ref{%d}", tbl.Find(id), id)
	}
	if ref.String() != "[ObjectProxy: id=1]" {
		t.Errorf("String() = %q", ref.String())
	}

	// a released object that crosses again gets a fresh id
	next, _ := tbl.ProxyFor(w)
	if next == id {
		t.Errorf("id %d reused after release", id)
	}
}

func TestRefPassesThrough(t *testing.T) {
	tbl := New()
	id, class, err := tbl.IDFor(&Ref{ID: 9, Class: "Remote"})
	if err != nil || id != 9 || class != "Remote" {
		t.Errorf("IDFor(Ref) = %d, %q, %v", id, class, err)
	}
	if tbl.Len() != 0 {
		t.Errorf("Ref was registered")
	}
}

func TestClassName(t *testing.T) {
	tbl := New()
	_, class, _ := tbl.IDFor(&widget{})
	if class != "widget" {
		t.Errorf("class = %q, want widget", class)
	}
	tbl = New(WithNamer(func(any) string { return "Custom" }))
	_, class, _ = tbl.IDFor(&widget{})
	if class != "Custom" {
		t.Errorf("class = %q, want Custom", class)
	}
}

func TestNotComparable(t *testing.T) {
	_, err := New().ProxyFor([]int{1})
	if !errors.Is(err, ErrNotComparable) {
		t.Errorf("got %v, want ErrNotComparable", err)
	}
}

func TestConcurrentAllocation(t *testing.T) {
	tbl := New()
	const n = 200
	ids := make([]int32, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := tbl.ProxyFor(&widget{i})
			if err != nil {
				t.Error(err)
			}
			ids[i] = id
		}()
	}
	wg.Wait()

	seen := make(map[int32]bool, n)
	for _, id := range ids {
		if id < 1 || id > n || seen[id] {
			t.Fatalf("bad or duplicate id %d", id)
		}
		seen[id] = true
	}
	if tbl.LastID() != n || tbl.Len() != n {
		t.Errorf("LastID=%d Len=%d, want %d", tbl.LastID(), tbl.Len(), n)
	}
}

func TestRetainDrop(t *testing.T) {
	tbl := New()
	obj := &widget{1}

	id, err := tbl.Retain(obj)
	if err != nil {
		t.Fatal(err)
	}
	if again, _ := tbl.Retain(obj); again != id {
		t.Fatalf("Retain gave %d then %d", id, again)
	}
	if tbl.Drop(id, 1) {
		t.Error("released with one hold left")
	}
	if _, ok := tbl.Lookup(id); !ok {
		t.Fatal("id gone with one hold left")
	}
	if !tbl.Drop(id, 1) {
		t.Error("last Drop did not release")
	}
	if tbl.Drop(id, 1) {
		t.Error("Drop of a released id reported a release")
	}

	held, _ := tbl.Retain(&widget{2})
	if !tbl.Release(held) {
		t.Error("Release ignored an id with holds")
	}
	if _, ok := tbl.Lookup(held); ok {
		t.Error("Release left a held id live")
	}
}
