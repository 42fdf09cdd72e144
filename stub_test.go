// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/luxfi/bridge/wire"
)

func TestObjectID(t *testing.T) {
	if strconv.IntSize < 64 {
		t.Skip("int cannot exceed int32 here")
	}
	wide := int64(math.MaxInt32) + 1

	tests := []struct {
		name string
		obj  any
		want int32
		err  error
	}{
		{"ref", &wire.ObjectRef{ID: 4, Class: "c"}, 4, nil},
		{"int32", int32(5), 5, nil},
		{"int", 6, 6, nil},
		{"negative int", -2, -2, nil},
		{"int above range", int(wide), 0, ErrNotObject},
		{"int below range", int(-wide - 1), 0, ErrNotObject},
		{"string", "7", 0, ErrNotObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := objectID(tt.obj)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if got != tt.want {
				t.Errorf("id = %d, want %d", got, tt.want)
			}
		})
	}
}
