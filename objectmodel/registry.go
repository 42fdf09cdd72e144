// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package objectmodel implements bridge.ObjectModel over a registry of Go
// types. Instance methods are the Go method set of the registered type and
// instance properties are its exported struct fields; constructors, static
// methods and static properties are registered explicitly.
package objectmodel

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/luxfi/bridge"
	"github.com/luxfi/bridge/wire"
)

var (
	ErrUnknownClass   = errors.New("unknown class")
	ErrAmbiguousClass = errors.New("ambiguous class name")
	ErrDuplicateClass = errors.New("class already registered")
	ErrNoMember       = errors.New("no such member")
	ErrNotIndexable   = errors.New("value is not indexable")
)

// Indexer is implemented by objects that support GetIndexed directly.
type Indexer interface {
	Index(i int) (any, error)
}

type staticProperty struct {
	get func() any
	set func(any) error
}

// Class describes one registered type.
type Class struct {
	name    string
	typ     reflect.Type
	ctors   []reflect.Value
	statics map[string][]reflect.Value
	props   map[string]staticProperty
}

// NewClass starts a class description. prototype is a value of the
// instance type, typically a typed nil such as (*Widget)(nil); it may be
// nil for classes with only static members.
func NewClass(name string, prototype any) *Class {
	c := &Class{
		name:    name,
		statics: make(map[string][]reflect.Value),
		props:   make(map[string]staticProperty),
	}
	if prototype != nil {
		c.typ = reflect.TypeOf(prototype)
	}
	return c
}

func (c *Class) Name() string { return c.name }

func mustFunc(fn any) reflect.Value {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		panic(fmt.Sprintf("objectmodel: %T is not a function", fn))
	}
	return v
}

// Constructor adds a constructor overload. fn returns the new instance,
// optionally followed by an error.
func (c *Class) Constructor(fn any) *Class {
	c.ctors = append(c.ctors, mustFunc(fn))
	return c
}

// Static adds a static method overload.
func (c *Class) Static(name string, fn any) *Class {
	c.statics[name] = append(c.statics[name], mustFunc(fn))
	return c
}

// StaticProperty adds a class-level property. set may be nil for a
// read-only property.
func (c *Class) StaticProperty(name string, get func() any, set func(any) error) *Class {
	c.props[name] = staticProperty{get: get, set: set}
	return c
}

// Registry maps class names to classes and implements bridge.ObjectModel.
// It is safe for concurrent use; the registered types must be as well.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*Class
	short   map[string][]string
	byType  map[reflect.Type]*Class
}

func NewRegistry() *Registry {
	return &Registry{
		classes: make(map[string]*Class),
		short:   make(map[string][]string),
		byType:  make(map[reflect.Type]*Class),
	}
}

func (r *Registry) Register(c *Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.classes[c.name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateClass, c.name)
	}
	r.classes[c.name] = c
	if s := shortName(c.name); s != c.name {
		r.short[s] = append(r.short[s], c.name)
	}
	if c.typ != nil {
		if _, ok := r.byType[c.typ]; !ok {
			r.byType[c.typ] = c
		}
	}
	return nil
}

func (r *Registry) MustRegister(c *Class) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

func shortName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Lookup finds a class by its full name or, when unambiguous, by the last
// dotted segment of it.
func (r *Registry) Lookup(name string) (*Class, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.classes[name]; ok {
		return c, nil
	}
	switch full := r.short[name]; len(full) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, name)
	case 1:
		return r.classes[full[0]], nil
	default:
		return nil, fmt.Errorf("%w: %s could be %s", ErrAmbiguousClass, name, strings.Join(full, ", "))
	}
}

// Classes lists the registered class names.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ClassName returns the registered name for obj's type, or "" when the type
// was never registered.
func (r *Registry) ClassName(obj any) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byType[reflect.TypeOf(obj)]; ok {
		return c.name
	}
	return ""
}

func (r *Registry) Create(_ context.Context, class string, args []any) (any, error) {
	c, err := r.Lookup(class)
	if err != nil {
		return nil, err
	}
	if len(c.ctors) == 0 {
		return nil, fmt.Errorf("%w: %s has no constructor", ErrNoMember, c.name)
	}
	return invokeBest(c.name, c.ctors, args)
}

func (r *Registry) CallStatic(_ context.Context, class, method string, args []any) (any, error) {
	c, err := r.Lookup(class)
	if err != nil {
		return nil, err
	}
	fns, ok := c.statics[method]
	if !ok {
		return nil, fmt.Errorf("%w: static method %s.%s", ErrNoMember, c.name, method)
	}
	return invokeBest(c.name+"."+method, fns, args)
}

func (r *Registry) Call(_ context.Context, obj any, method string, args []any) (any, error) {
	m, ok := findMethod(reflect.ValueOf(obj), method)
	if !ok {
		return nil, fmt.Errorf("%w: method %s on %T", ErrNoMember, method, obj)
	}
	return invokeBest(method, []reflect.Value{m}, args)
}

func (r *Registry) GetProperty(_ context.Context, obj any, name string) (any, error) {
	return getProperty(obj, name)
}

func (r *Registry) SetProperty(_ context.Context, obj any, name string, value any) error {
	return setProperty(obj, name, value)
}

func (r *Registry) GetStaticProperty(_ context.Context, class, name string) (any, error) {
	c, err := r.Lookup(class)
	if err != nil {
		return nil, err
	}
	p, ok := c.props[name]
	if !ok {
		return nil, fmt.Errorf("%w: static property %s.%s", ErrNoMember, c.name, name)
	}
	return p.get(), nil
}

func (r *Registry) SetStaticProperty(_ context.Context, class, name string, value any) error {
	c, err := r.Lookup(class)
	if err != nil {
		return err
	}
	p, ok := c.props[name]
	if !ok {
		return fmt.Errorf("%w: static property %s.%s", ErrNoMember, c.name, name)
	}
	if p.set == nil {
		return fmt.Errorf("static property %s.%s is read-only", c.name, name)
	}
	return p.set(value)
}

func (r *Registry) GetIndexed(_ context.Context, obj any, index int) (any, error) {
	return indexValue(obj, index)
}

func (r *Registry) GetIndexedProperty(_ context.Context, obj any, name string, index int) (any, error) {
	v, err := getProperty(obj, name)
	if err != nil {
		return nil, err
	}
	return indexValue(v, index)
}

func (r *Registry) Describe(_ context.Context, class string) (*wire.TypeInfo, error) {
	c, err := r.Lookup(class)
	if err != nil {
		return nil, err
	}
	info := &wire.TypeInfo{}
	if c.typ != nil {
		info.Properties = fieldNames(c.typ)
		for i := range c.typ.NumMethod() {
			info.Methods = append(info.Methods, c.typ.Method(i).Name)
		}
	}
	for name := range c.statics {
		info.StaticMethods = append(info.StaticMethods, name)
	}
	slices.Sort(info.StaticMethods)
	return info, nil
}

func fieldNames(t reflect.Type) []string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	var names []string
	for _, f := range reflect.VisibleFields(t) {
		if f.IsExported() && !f.Anonymous {
			names = append(names, f.Name)
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// exported upper-cases the first letter so callers may use either case.
func exported(name string) string {
	r, n := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return name
	}
	return string(unicode.ToUpper(r)) + name[n:]
}

func findMethod(v reflect.Value, name string) (reflect.Value, bool) {
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	m := v.MethodByName(exported(name))
	return m, m.IsValid()
}

func structValue(obj any) (reflect.Value, bool) {
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, v.Kind() == reflect.Struct
}

func getProperty(obj any, name string) (any, error) {
	name = exported(name)
	if sv, ok := structValue(obj); ok {
		if f, ok := sv.Type().FieldByName(name); ok && f.IsExported() {
			return sv.FieldByIndex(f.Index).Interface(), nil
		}
	}
	v := reflect.ValueOf(obj)
	for _, getter := range []string{name, "Get" + name} {
		m, ok := findMethod(v, getter)
		if !ok || m.Type().NumIn() != 0 || m.Type().NumOut() == 0 {
			continue
		}
		return invoke(getter, m, nil)
	}
	return nil, fmt.Errorf("%w: property %s on %T", ErrNoMember, name, obj)
}

func setProperty(obj any, name string, value any) error {
	name = exported(name)
	if m, ok := findMethod(reflect.ValueOf(obj), "Set"+name); ok {
		_, err := invokeBest("Set"+name, []reflect.Value{m}, []any{value})
		return err
	}
	sv, ok := structValue(obj)
	if !ok {
		return fmt.Errorf("%w: property %s on %T", ErrNoMember, name, obj)
	}
	f, ok := sv.Type().FieldByName(name)
	if !ok || !f.IsExported() {
		return fmt.Errorf("%w: property %s on %T", ErrNoMember, name, obj)
	}
	fv := sv.FieldByIndex(f.Index)
	if !fv.CanSet() {
		return fmt.Errorf("property %s on %T is not settable", name, obj)
	}
	cv, err := convertArg(value, fv.Type())
	if err != nil {
		return fmt.Errorf("property %s: %w", name, err)
	}
	fv.Set(cv)
	return nil
}

func indexValue(obj any, index int) (any, error) {
	if ix, ok := obj.(Indexer); ok {
		return ix.Index(index)
	}
	switch o := obj.(type) {
	case *wire.Vector:
		if index < 0 || index >= o.Len() {
			return nil, fmt.Errorf("index %d out of range [0,%d)", index, o.Len())
		}
		return o.At(index), nil
	}
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Kind() == reflect.Array {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		if index < 0 || index >= v.Len() {
			return nil, fmt.Errorf("index %d out of range [0,%d)", index, v.Len())
		}
		return v.Index(index).Interface(), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrNotIndexable, obj)
}

// invoke calls fn with prepared arguments and folds a trailing error result
// and any panic into an InvocationError.
func invoke(member string, fn reflect.Value, in []reflect.Value) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			perr, ok := p.(error)
			if !ok {
				perr = fmt.Errorf("%v", p)
			}
			result, err = nil, &bridge.InvocationError{Member: member, Err: perr}
		}
	}()

	out := fn.Call(in)
	ft := fn.Type()
	if n := ft.NumOut(); n > 0 && ft.Out(n-1) == errorType {
		if e := out[n-1]; !e.IsNil() {
			return nil, &bridge.InvocationError{Member: member, Err: e.Interface().(error)}
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return valueOf(out[0]), nil
	}
	results := make([]any, len(out))
	for i, o := range out {
		results[i] = valueOf(o)
	}
	return results, nil
}

// valueOf unboxes v, turning nil pointers and interfaces into a plain nil.
func valueOf(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}

var errorType = reflect.TypeFor[error]()
