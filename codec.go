// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import "fmt"

// rawCodec carries pre-encoded wire frames through gRPC unchanged.
type rawCodec struct{}

func (rawCodec) Name() string { return "bridge" }

func (rawCodec) Marshal(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case *[]byte:
		return *b, nil
	}
	return nil, fmt.Errorf("bridge codec: cannot marshal %T", v)
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("bridge codec: cannot unmarshal into %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}
