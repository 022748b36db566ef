// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package record

import (
	"github.com/juju/errors"

	"github.com/chipmigrate/chipmigrate/internal/tlv"
)

// SessionResumptionDetails is the per-fabric session cache record
// stored under f/<index>/s/<nodeId>. Fields beyond the three below may
// be present in the payload; they are opaque here and skipped.
type SessionResumptionDetails struct {
	ResumptionID [16]byte
	SharedSecret [32]byte
	CAT          [12]byte
}

// DecodeSessionResumptionDetails decodes a session resumption record.
// All three fixed-length fields must be present with their exact
// lengths.
func DecodeSessionResumptionDetails(data []byte) (*SessionResumptionDetails, error) {
	var d SessionResumptionDetails
	var haveID, haveSecret, haveCAT bool
	err := decodeStructure(data, func(r *tlv.Reader, tag int) error {
		switch tag {
		case 1:
			b, err := r.Bytes()
			if err != nil {
				return errors.Trace(err)
			}
			if len(b) != len(d.ResumptionID) {
				return errors.NotValidf("resumption id of %d bytes", len(b))
			}
			copy(d.ResumptionID[:], b)
			haveID = true
		case 2:
			b, err := r.Bytes()
			if err != nil {
				return errors.Trace(err)
			}
			if len(b) != len(d.SharedSecret) {
				return errors.NotValidf("shared secret of %d bytes", len(b))
			}
			copy(d.SharedSecret[:], b)
			haveSecret = true
		case 3:
			b, err := r.Bytes()
			if err != nil {
				return errors.Trace(err)
			}
			if len(b) != len(d.CAT) {
				return errors.NotValidf("CAT field of %d bytes", len(b))
			}
			copy(d.CAT[:], b)
			haveCAT = true
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !haveID || !haveSecret || !haveCAT {
		return nil, errors.NotValidf("incomplete session resumption details")
	}
	return &d, nil
}

// Encode returns the TLV form of the resumption details record.
func (d *SessionResumptionDetails) Encode() ([]byte, error) {
	w := tlv.NewWriter()
	w.StartStructure(tlv.AnonymousTag)
	w.PutBytes(1, d.ResumptionID[:])
	w.PutBytes(2, d.SharedSecret[:])
	w.PutBytes(3, d.CAT[:])
	w.EndContainer()
	return w.Bytes()
}

// SessionResumptionEntry names the owner of one cached session: the
// fabric the session belongs to and the peer node it was established
// with. Stored alone under g/s/<resumptionId> and in ordered sequence
// under g/sri.
type SessionResumptionEntry struct {
	FabricIndex uint8
	PeerNodeID  uint64
}

// DecodeSessionResumptionEntry decodes a single resumption entry.
func DecodeSessionResumptionEntry(data []byte) (*SessionResumptionEntry, error) {
	r := tlv.NewReader(data)
	more, err := r.Next()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !more {
		return nil, errors.NotValidf("empty resumption entry")
	}
	e, err := decodeResumptionEntry(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	more, err = r.Next()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if more {
		return nil, errors.NotValidf("trailing data after resumption entry")
	}
	return e, nil
}

// Encode returns the TLV form of the resumption entry.
func (e *SessionResumptionEntry) Encode() ([]byte, error) {
	w := tlv.NewWriter()
	encodeResumptionEntry(w, e)
	return w.Bytes()
}

// DecodeSessionResumptionIndex decodes the ordered g/sri sequence of
// resumption entries.
func DecodeSessionResumptionIndex(data []byte) ([]SessionResumptionEntry, error) {
	r := tlv.NewReader(data)
	more, err := r.Next()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !more || r.Type() != tlv.TypeArray {
		return nil, errors.NotValidf("resumption index without enclosing array")
	}
	if err := r.EnterContainer(); err != nil {
		return nil, errors.Trace(err)
	}
	// Non-nil even when the array is empty, so callers can tell a
	// decoded empty index from an absent or undecodable one.
	entries := []SessionResumptionEntry{}
	for {
		more, err := r.Next()
		if err != nil {
			return nil, errors.Trace(err)
		}
		if !more {
			break
		}
		e, err := decodeResumptionEntry(r)
		if err != nil {
			return nil, errors.Trace(err)
		}
		entries = append(entries, *e)
	}
	if err := r.ExitContainer(); err != nil {
		return nil, errors.Trace(err)
	}
	return entries, nil
}

// EncodeSessionResumptionIndex returns the TLV form of the ordered
// entry sequence.
func EncodeSessionResumptionIndex(entries []SessionResumptionEntry) ([]byte, error) {
	w := tlv.NewWriter()
	w.StartArray(tlv.AnonymousTag)
	for i := range entries {
		encodeResumptionEntry(w, &entries[i])
	}
	w.EndContainer()
	return w.Bytes()
}

func decodeResumptionEntry(r *tlv.Reader) (*SessionResumptionEntry, error) {
	if r.Type() != tlv.TypeStructure {
		return nil, errors.NotValidf("%s element as resumption entry", r.Type())
	}
	var e SessionResumptionEntry
	var haveIndex, haveNode bool
	if err := r.EnterContainer(); err != nil {
		return nil, errors.Trace(err)
	}
	for {
		more, err := r.Next()
		if err != nil {
			return nil, errors.Trace(err)
		}
		if !more {
			break
		}
		tag, ok := r.Tag()
		if !ok {
			continue
		}
		switch tag {
		case 1:
			v, err := r.Uint()
			if err != nil {
				return nil, errors.Trace(err)
			}
			if v == 0 || v > 0xff {
				return nil, errors.NotValidf("fabric index %#x", v)
			}
			e.FabricIndex = uint8(v)
			haveIndex = true
		case 2:
			v, err := r.Uint()
			if err != nil {
				return nil, errors.Trace(err)
			}
			e.PeerNodeID = v
			haveNode = true
		}
	}
	if err := r.ExitContainer(); err != nil {
		return nil, errors.Trace(err)
	}
	if !haveIndex || !haveNode {
		return nil, errors.NotValidf("incomplete resumption entry")
	}
	return &e, nil
}

func encodeResumptionEntry(w *tlv.Writer, e *SessionResumptionEntry) {
	w.StartStructure(tlv.AnonymousTag)
	w.PutUint(1, uint64(e.FabricIndex))
	w.PutUint(2, uint64(e.PeerNodeID))
	w.EndContainer()
}
