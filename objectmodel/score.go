// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objectmodel

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/luxfi/bridge/wire"
)

// Argument scores. Higher is a closer match; a negative total rules a
// candidate out.
const (
	scoreExact      = 200
	scoreSameKind   = 100
	scoreNil        = 100
	scoreWiden      = 75
	scoreToFloat64  = 50
	scoreCollection = 50
	scoreToFloat32  = 40
	scoreNarrowF    = 30
	scoreNarrow     = 25
	scoreTruncate   = 20
	infeasible      = -1
)

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isNumeric(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || isFloat(k)
}

func nillable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// scoreArg rates passing arg to a parameter of type t.
func scoreArg(arg any, t reflect.Type) int {
	if arg == nil {
		if nillable(t.Kind()) {
			return scoreNil
		}
		return infeasible
	}
	at := reflect.TypeOf(arg)
	if at == t || at.AssignableTo(t) {
		return scoreExact
	}
	ak, tk := at.Kind(), t.Kind()
	if isNumeric(ak) && isNumeric(tk) {
		return scoreNumeric(reflect.ValueOf(arg), t)
	}
	if ak == tk && at.ConvertibleTo(t) && ak != reflect.Slice {
		return scoreSameKind
	}
	if tk == reflect.Slice {
		return scoreSlice(arg, t)
	}
	return infeasible
}

func scoreNumeric(v reflect.Value, t reflect.Type) int {
	ak, tk := v.Kind(), t.Kind()
	if ak == tk {
		return scoreSameKind
	}
	switch {
	case isFloat(tk) && !isFloat(ak):
		if tk == reflect.Float64 {
			return scoreToFloat64
		}
		return scoreToFloat32
	case isFloat(ak) && isFloat(tk):
		if tk == reflect.Float32 && math.Abs(v.Float()) > math.MaxFloat32 && !math.IsInf(v.Float(), 0) {
			return infeasible
		}
		return scoreNarrowF
	case isFloat(ak):
		f := v.Float()
		if f != math.Trunc(f) || math.Abs(f) > 1<<62 || overflows(reflect.ValueOf(int64(f)), t) {
			return infeasible
		}
		return scoreTruncate
	}
	if overflows(v, t) {
		return infeasible
	}
	if t.Size() >= v.Type().Size() && isUint(ak) == isUint(tk) {
		return scoreWiden
	}
	return scoreNarrow
}

// overflows reports whether the integer v cannot be represented in t.
func overflows(v reflect.Value, t reflect.Type) bool {
	z := reflect.New(t).Elem()
	switch {
	case isInt(v.Kind()):
		n := v.Int()
		if isUint(t.Kind()) {
			return n < 0 || z.OverflowUint(uint64(n))
		}
		return z.OverflowInt(n)
	case isUint(v.Kind()):
		n := v.Uint()
		if isInt(t.Kind()) {
			return n > math.MaxInt64 || z.OverflowInt(int64(n))
		}
		return z.OverflowUint(n)
	}
	return false
}

// scoreSlice accepts object arrays, typed arrays and vectors for a slice
// parameter when every element converts.
func scoreSlice(arg any, t reflect.Type) int {
	if vec, ok := arg.(*wire.Vector); ok {
		arg = vec.Values()
	}
	v := reflect.ValueOf(arg)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return infeasible
	}
	et := t.Elem()
	for i := range v.Len() {
		if scoreArg(v.Index(i).Interface(), et) < 0 {
			return infeasible
		}
	}
	return scoreCollection
}

// convertArg converts arg to t. It must only be called after scoreArg
// accepted the pair, but still reports overflow as an error.
func convertArg(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		if !nillable(t.Kind()) {
			return reflect.Value{}, fmt.Errorf("cannot use null as %v", t)
		}
		return reflect.Zero(t), nil
	}
	if scoreArg(arg, t) < 0 {
		return reflect.Value{}, fmt.Errorf("cannot use %T as %v", arg, t)
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(v)
		return out, nil
	}
	if t.Kind() == reflect.Slice && !(v.Kind() == reflect.Slice && v.Type().ConvertibleTo(t) && v.Type().Elem().Kind() == t.Elem().Kind()) {
		if vec, ok := arg.(*wire.Vector); ok {
			v = reflect.ValueOf(vec.Values())
		}
		out := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := range v.Len() {
			ev, err := convertArg(v.Index(i).Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(ev)
		}
		return out, nil
	}
	return v.Convert(t), nil
}

// paramTypes expands a function's parameters to n arguments, repeating the
// element type of a variadic tail. ok is false when the arity cannot match.
func paramTypes(ft reflect.Type, n int) (types []reflect.Type, ok bool) {
	in := ft.NumIn()
	if !ft.IsVariadic() {
		if n != in {
			return nil, false
		}
		for i := range in {
			types = append(types, ft.In(i))
		}
		return types, true
	}
	if n < in-1 {
		return nil, false
	}
	for i := range in - 1 {
		types = append(types, ft.In(i))
	}
	elem := ft.In(in - 1).Elem()
	for range n - (in - 1) {
		types = append(types, elem)
	}
	return types, true
}

// scoreCall rates a candidate function against args.
func scoreCall(ft reflect.Type, args []any) int {
	types, ok := paramTypes(ft, len(args))
	if !ok {
		return infeasible
	}
	total := 0
	for i, a := range args {
		s := scoreArg(a, types[i])
		if s < 0 {
			return infeasible
		}
		total += s
	}
	return total
}

// invokeBest picks the best scoring candidate for args, converts the
// arguments and calls it. Ties go to the candidate registered first.
func invokeBest(member string, candidates []reflect.Value, args []any) (any, error) {
	best, bestScore := -1, infeasible
	for i, c := range candidates {
		if s := scoreCall(c.Type(), args); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("%w: %s matching (%s)", ErrNoMember, member, describeArgs(args))
	}

	fn := candidates[best]
	types, _ := paramTypes(fn.Type(), len(args))
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		v, err := convertArg(a, types[i])
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", member, i, err)
		}
		in[i] = v
	}
	return invoke(member, fn, in)
}

func describeArgs(args []any) string {
	names := make([]string, len(args))
	for i, a := range args {
		if a == nil {
			names[i] = "null"
		} else {
			names[i] = fmt.Sprintf("%T", a)
		}
	}
	return strings.Join(names, ", ")
}
