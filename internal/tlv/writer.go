// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package tlv

import (
	"encoding/binary"
	"math"

	"github.com/juju/errors"
)

// Writer builds an encoded buffer element by element. Integer values
// are written in their smallest width. Pass AnonymousTag to omit the
// context tag of an element.
type Writer struct {
	buf   []byte
	depth int
	err   error
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) control(tag int, et byte) {
	if w.err != nil {
		return
	}
	switch {
	case tag == AnonymousTag:
		w.buf = append(w.buf, tagControlAnonymous|et)
	case tag >= 0 && tag <= 0xff:
		w.buf = append(w.buf, tagControlContext|et, byte(tag))
	default:
		w.err = errors.NotValidf("context tag %d", tag)
	}
}

// PutUint appends an unsigned integer element.
func (w *Writer) PutUint(tag int, v uint64) {
	var et byte
	var width int
	switch {
	case v <= math.MaxUint8:
		et, width = etUint8, 1
	case v <= math.MaxUint16:
		et, width = etUint16, 2
	case v <= math.MaxUint32:
		et, width = etUint32, 4
	default:
		et, width = etUint64, 8
	}
	w.control(tag, et)
	w.appendLE(v, width)
}

// PutInt appends a signed integer element.
func (w *Writer) PutInt(tag int, v int64) {
	var et byte
	var width int
	switch {
	case v >= math.MinInt8 && v <= math.MaxInt8:
		et, width = etInt8, 1
	case v >= math.MinInt16 && v <= math.MaxInt16:
		et, width = etInt16, 2
	case v >= math.MinInt32 && v <= math.MaxInt32:
		et, width = etInt32, 4
	default:
		et, width = etInt64, 8
	}
	w.control(tag, et)
	w.appendLE(uint64(v), width)
}

// PutBool appends a boolean element.
func (w *Writer) PutBool(tag int, v bool) {
	et := byte(etFalse)
	if v {
		et = etTrue
	}
	w.control(tag, et)
}

// PutBytes appends an octet-string element.
func (w *Writer) PutBytes(tag int, v []byte) {
	if w.err != nil {
		return
	}
	if len(v) > math.MaxUint16 {
		w.err = errors.NotValidf("octet string of %d bytes", len(v))
		return
	}
	if len(v) <= math.MaxUint8 {
		w.control(tag, etBytes1)
		w.buf = append(w.buf, byte(len(v)))
	} else {
		w.control(tag, etBytes2)
		w.appendLE(uint64(len(v)), 2)
	}
	w.buf = append(w.buf, v...)
}

// PutString appends a UTF-8 string element.
func (w *Writer) PutString(tag int, v string) {
	if w.err != nil {
		return
	}
	if len(v) > math.MaxUint16 {
		w.err = errors.NotValidf("string of %d bytes", len(v))
		return
	}
	if len(v) <= math.MaxUint8 {
		w.control(tag, etString1)
		w.buf = append(w.buf, byte(len(v)))
	} else {
		w.control(tag, etString2)
		w.appendLE(uint64(len(v)), 2)
	}
	w.buf = append(w.buf, v...)
}

// PutNull appends a null element.
func (w *Writer) PutNull(tag int) {
	w.control(tag, etNull)
}

// StartStructure opens a structure container.
func (w *Writer) StartStructure(tag int) {
	w.control(tag, etStruct)
	w.depth++
}

// StartArray opens an array container.
func (w *Writer) StartArray(tag int) {
	w.control(tag, etArray)
	w.depth++
}

// StartList opens a list container.
func (w *Writer) StartList(tag int) {
	w.control(tag, etList)
	w.depth++
}

// EndContainer closes the innermost open container.
func (w *Writer) EndContainer() {
	if w.err != nil {
		return
	}
	if w.depth == 0 {
		w.err = errors.NotValidf("end with no open container")
		return
	}
	w.buf = append(w.buf, etEnd)
	w.depth--
}

// Peek returns the bytes encoded so far, including any unclosed
// containers. The certificate signer uses this to obtain the
// to-be-signed span before the signature element is appended.
func (w *Writer) Peek() []byte {
	return w.buf
}

// Bytes returns the completed encoding. It is an error if any
// container remains open or any earlier write failed.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, errors.Trace(w.err)
	}
	if w.depth != 0 {
		return nil, errors.NotValidf("%d unclosed containers", w.depth)
	}
	return w.buf, nil
}

func (w *Writer) appendLE(v uint64, width int) {
	if w.err != nil {
		return
	}
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:width]...)
}
