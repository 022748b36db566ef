// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package tlv implements the compact tag-length-value encoding used by
// the legacy controller's persisted records. Only the element types and
// tag forms that occur in those records are supported: anonymous and
// one-octet context tags; unsigned and signed integers, booleans, UTF-8
// strings, octet strings, null, and the three container kinds.
package tlv

// Type identifies the semantic type of a decoded element.
type Type int

const (
	TypeNone Type = iota
	TypeUint
	TypeInt
	TypeBool
	TypeString
	TypeBytes
	TypeNull
	TypeStructure
	TypeArray
	TypeList
)

// String is used in error messages.
func (t Type) String() string {
	switch t {
	case TypeUint:
		return "uint"
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeBytes:
		return "bytes"
	case TypeNull:
		return "null"
	case TypeStructure:
		return "structure"
	case TypeArray:
		return "array"
	case TypeList:
		return "list"
	}
	return "none"
}

// AnonymousTag marks an element carrying no tag. Context tags occupy
// the range 0-255.
const AnonymousTag = -1

// Control octet layout: the upper three bits select the tag form, the
// lower five the element type.
const (
	tagControlMask      = 0xe0
	tagControlAnonymous = 0x00
	tagControlContext   = 0x20

	elementTypeMask = 0x1f

	etInt8    = 0x00
	etInt16   = 0x01
	etInt32   = 0x02
	etInt64   = 0x03
	etUint8   = 0x04
	etUint16  = 0x05
	etUint32  = 0x06
	etUint64  = 0x07
	etFalse   = 0x08
	etTrue    = 0x09
	etString1 = 0x0c
	etString2 = 0x0d
	etBytes1  = 0x10
	etBytes2  = 0x11
	etNull    = 0x14
	etStruct  = 0x15
	etArray   = 0x16
	etList    = 0x17
	etEnd     = 0x18
)
