// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package tlv

import (
	"encoding/binary"

	"github.com/juju/errors"
)

// Reader is a pull-style decoder over a single encoded buffer. Next
// advances to the following element of the current container; the
// accessor methods then report the element's tag, type and value.
// Malformed input is reported as an error from Next, never a panic.
type Reader struct {
	buf []byte
	pos int

	// Current element state.
	typ      Type
	tag      int
	u        uint64
	i        int64
	b        bool
	bs       []byte
	start    int
	entered  bool
	depth    int
	haveElem bool
}

// NewReader returns a Reader positioned before the first element of
// buf. The buffer is not copied; callers must not mutate it while the
// reader is in use.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf, tag: AnonymousTag}
}

// Next advances to the next element in the current container. It
// returns false with a nil error at the end of the current container
// (or, at the top level, the end of the buffer).
func (r *Reader) Next() (bool, error) {
	// Skip over the body of an unentered container.
	if r.haveElem && isContainer(r.typ) && !r.entered {
		if err := r.skipContainer(); err != nil {
			return false, errors.Trace(err)
		}
	}
	r.haveElem = false
	r.entered = false

	if r.pos >= len(r.buf) {
		if r.depth > 0 {
			return false, errors.NotValidf("unterminated container")
		}
		return false, nil
	}

	control := r.buf[r.pos]
	r.start = r.pos
	r.pos++

	if control&elementTypeMask == etEnd {
		if r.depth == 0 {
			return false, errors.NotValidf("end-of-container at top level")
		}
		// Leave the position on the end marker; ExitContainer
		// consumes it.
		r.pos = r.start
		return false, nil
	}

	switch control & tagControlMask {
	case tagControlAnonymous:
		r.tag = AnonymousTag
	case tagControlContext:
		if r.pos >= len(r.buf) {
			return false, errors.NotValidf("truncated context tag")
		}
		r.tag = int(r.buf[r.pos])
		r.pos++
	default:
		return false, errors.NotValidf("tag control 0x%02x", control&tagControlMask)
	}

	if err := r.readValue(control & elementTypeMask); err != nil {
		return false, errors.Trace(err)
	}
	r.haveElem = true
	return true, nil
}

func (r *Reader) readValue(et byte) error {
	switch et {
	case etUint8, etUint16, etUint32, etUint64:
		v, err := r.take(1 << (et - etUint8))
		if err != nil {
			return errors.Trace(err)
		}
		r.typ = TypeUint
		r.u = leUint(v)
	case etInt8, etInt16, etInt32, etInt64:
		width := 1 << (et - etInt8)
		v, err := r.take(width)
		if err != nil {
			return errors.Trace(err)
		}
		r.typ = TypeInt
		r.i = leInt(v, width)
	case etFalse, etTrue:
		r.typ = TypeBool
		r.b = et == etTrue
	case etString1, etString2:
		n, err := r.takeLength(int(et-etString1) + 1)
		if err != nil {
			return errors.Trace(err)
		}
		v, err := r.take(n)
		if err != nil {
			return errors.Trace(err)
		}
		r.typ = TypeString
		r.bs = v
	case etBytes1, etBytes2:
		n, err := r.takeLength(int(et-etBytes1) + 1)
		if err != nil {
			return errors.Trace(err)
		}
		v, err := r.take(n)
		if err != nil {
			return errors.Trace(err)
		}
		r.typ = TypeBytes
		r.bs = v
	case etNull:
		r.typ = TypeNull
	case etStruct:
		r.typ = TypeStructure
	case etArray:
		r.typ = TypeArray
	case etList:
		r.typ = TypeList
	default:
		return errors.NotValidf("element type 0x%02x", et)
	}
	return nil
}

// Type reports the type of the current element.
func (r *Reader) Type() Type {
	return r.typ
}

// Tag reports the context tag of the current element; ok is false for
// anonymous elements.
func (r *Reader) Tag() (int, bool) {
	if r.tag == AnonymousTag {
		return 0, false
	}
	return r.tag, true
}

// ElementStart reports the buffer offset of the current element's
// control octet.
func (r *Reader) ElementStart() int {
	return r.start
}

// Uint returns the current element's value as an unsigned integer.
func (r *Reader) Uint() (uint64, error) {
	if r.typ != TypeUint {
		return 0, errors.NotValidf("%s element as uint", r.typ)
	}
	return r.u, nil
}

// Int returns the current element's value as a signed integer.
func (r *Reader) Int() (int64, error) {
	if r.typ == TypeUint {
		return int64(r.u), nil
	}
	if r.typ != TypeInt {
		return 0, errors.NotValidf("%s element as int", r.typ)
	}
	return r.i, nil
}

// Bool returns the current element's value as a boolean.
func (r *Reader) Bool() (bool, error) {
	if r.typ != TypeBool {
		return false, errors.NotValidf("%s element as bool", r.typ)
	}
	return r.b, nil
}

// Bytes returns the current octet-string element's payload. The slice
// aliases the reader's buffer.
func (r *Reader) Bytes() ([]byte, error) {
	if r.typ != TypeBytes {
		return nil, errors.NotValidf("%s element as bytes", r.typ)
	}
	return r.bs, nil
}

// String returns the current UTF-8 string element's payload.
func (r *Reader) String() (string, error) {
	if r.typ != TypeString {
		return "", errors.NotValidf("%s element as string", r.typ)
	}
	return string(r.bs), nil
}

// EnterContainer descends into the current structure, array or list
// element. Subsequent Next calls iterate its members.
func (r *Reader) EnterContainer() error {
	if !r.haveElem || !isContainer(r.typ) {
		return errors.NotValidf("entering %s element", r.typ)
	}
	r.entered = true
	r.haveElem = false
	r.depth++
	return nil
}

// ExitContainer skips any remaining members of the current container
// and positions the reader after its end marker.
func (r *Reader) ExitContainer() error {
	if r.depth == 0 {
		return errors.NotValidf("exit at top level")
	}
	for {
		more, err := r.Next()
		if err != nil {
			return errors.Trace(err)
		}
		if !more {
			// Next left the position on the end marker.
			r.pos++
			r.depth--
			return nil
		}
	}
}

// skipContainer consumes the body and end marker of the container
// element most recently returned by Next.
func (r *Reader) skipContainer() error {
	r.entered = true
	r.haveElem = false
	r.depth++
	return errors.Trace(r.ExitContainer())
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, errors.NotValidf("truncated element (want %d bytes, have %d)", n, len(r.buf)-r.pos)
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *Reader) takeLength(width int) (int, error) {
	v, err := r.take(width)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return int(leUint(v)), nil
}

func isContainer(t Type) bool {
	return t == TypeStructure || t == TypeArray || t == TypeList
}

func leUint(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}

func leInt(b []byte, width int) int64 {
	u := leUint(b)
	shift := uint(64 - 8*width)
	return int64(u<<shift) >> shift
}
