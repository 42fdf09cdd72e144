// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import "fmt"

// Magic prefixes every message on the wire.
const Magic uint16 = 0xd00d

// Type identifies the shape of a message. The numeric values are part of the
// wire contract and must not change.
type Type uint8

const (
	TypeNull    Type = 0
	TypeBool    Type = 1
	TypeByte    Type = 2
	TypeInt32   Type = 5
	TypeInt64   Type = 6
	TypeFloat64 Type = 7
	TypeString  Type = 8
	TypeObject  Type = 9

	TypeVector    Type = 21
	TypeMatrix    Type = 22
	TypeException Type = 23

	TypeBoolArray    Type = 101
	TypeByteArray    Type = 102
	TypeInt32Array   Type = 105
	TypeInt64Array   Type = 106
	TypeFloat64Array Type = 107
	TypeStringArray  Type = 108
	TypeObjectArray  Type = 109

	TypeCreate              Type = 201
	TypeCallStaticMethod    Type = 202
	TypeCallMethod          Type = 203
	TypeGetProperty         Type = 204
	TypeGetIndexedProperty  Type = 205
	TypeGetIndexed          Type = 206
	TypeSetProperty         Type = 207
	TypeGetStaticProperty   Type = 208
	TypeSetStaticProperty   Type = 209
	TypeProtect             Type = 210
	TypeRelease             Type = 211
	TypeDescribeTypeRequest Type = 212
	TypeDescribeTypeReply   Type = 213
)

var typeNames = map[Type]string{
	TypeNull:                "Null",
	TypeBool:                "Bool",
	TypeByte:                "Byte",
	TypeInt32:               "Int32",
	TypeInt64:               "Int64",
	TypeFloat64:             "Float64",
	TypeString:              "String",
	TypeObject:              "Object",
	TypeVector:              "Vector",
	TypeMatrix:              "Matrix",
	TypeException:           "Exception",
	TypeBoolArray:           "BoolArray",
	TypeByteArray:           "ByteArray",
	TypeInt32Array:          "Int32Array",
	TypeInt64Array:          "Int64Array",
	TypeFloat64Array:        "Float64Array",
	TypeStringArray:         "StringArray",
	TypeObjectArray:         "ObjectArray",
	TypeCreate:              "Create",
	TypeCallStaticMethod:    "CallStaticMethod",
	TypeCallMethod:          "CallMethod",
	TypeGetProperty:         "GetProperty",
	TypeGetIndexedProperty:  "GetIndexedProperty",
	TypeGetIndexed:          "GetIndexed",
	TypeSetProperty:         "SetProperty",
	TypeGetStaticProperty:   "GetStaticProperty",
	TypeSetStaticProperty:   "SetStaticProperty",
	TypeProtect:             "Protect",
	TypeRelease:             "Release",
	TypeDescribeTypeRequest: "DescribeTypeRequest",
	TypeDescribeTypeReply:   "DescribeTypeReply",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Known reports whether t has a decoder.
func (t Type) Known() bool {
	_, ok := typeNames[t]
	return ok
}

// IsValue reports whether t carries a data value.
func (t Type) IsValue() bool {
	return t.Known() && t < TypeCreate
}

// IsRequest reports whether t is a command sent from client to server.
func (t Type) IsRequest() bool {
	return t >= TypeCreate && t <= TypeDescribeTypeRequest
}
