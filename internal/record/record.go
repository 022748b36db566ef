// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package record holds the fixed binary record schemas embedded in the
// legacy controller's flat configuration. Every Decode function is
// strict: it either yields a complete record or an error, never a
// partial result. The Encode counterparts exist so that tests and
// tooling can build real payloads.
package record

import (
	"github.com/juju/errors"

	"github.com/chipmigrate/chipmigrate/internal/tlv"
)

// FabricMetadata is the per-fabric descriptive record stored under
// f/<index>/m.
type FabricMetadata struct {
	VendorID uint16
	Label    string
}

// DecodeFabricMetadata decodes a fabric metadata record.
func DecodeFabricMetadata(data []byte) (*FabricMetadata, error) {
	var md FabricMetadata
	var haveVendor bool
	err := decodeStructure(data, func(r *tlv.Reader, tag int) error {
		switch tag {
		case 1:
			v, err := r.Uint()
			if err != nil {
				return errors.Trace(err)
			}
			if v > 0xffff {
				return errors.NotValidf("vendor id %#x", v)
			}
			md.VendorID = uint16(v)
			haveVendor = true
		case 2:
			s, err := r.String()
			if err != nil {
				return errors.Trace(err)
			}
			md.Label = s
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !haveVendor {
		return nil, errors.NotValidf("fabric metadata without vendor id")
	}
	return &md, nil
}

// Encode returns the TLV form of the metadata record.
func (md *FabricMetadata) Encode() ([]byte, error) {
	w := tlv.NewWriter()
	w.StartStructure(tlv.AnonymousTag)
	w.PutUint(1, uint64(md.VendorID))
	w.PutString(2, md.Label)
	w.EndContainer()
	return w.Bytes()
}

// EpochKey is one entry of a group key set. Keys of different lengths
// serve different purposes; by convention the Identity Protection Key
// is the entry whose key is exactly 16 bytes.
type EpochKey struct {
	StartTime uint64
	Key       []byte
}

// GroupKeySet is the per-fabric keying record stored under
// f/<index>/k/<slot>.
type GroupKeySet struct {
	ID     uint16
	Policy uint8
	Keys   []EpochKey
}

// IPK returns the first 16-byte key of the set, by convention the
// Identity Protection Key.
func (g *GroupKeySet) IPK() ([]byte, bool) {
	for _, k := range g.Keys {
		if len(k.Key) == 16 {
			return k.Key, true
		}
	}
	return nil, false
}

// DecodeGroupKeySet decodes a group key set record. The declared key
// count must match the number of key entries present.
func DecodeGroupKeySet(data []byte) (*GroupKeySet, error) {
	var g GroupKeySet
	count := -1
	err := decodeStructure(data, func(r *tlv.Reader, tag int) error {
		switch tag {
		case 1:
			v, err := r.Uint()
			if err != nil {
				return errors.Trace(err)
			}
			if v > 0xffff {
				return errors.NotValidf("key set id %#x", v)
			}
			g.ID = uint16(v)
		case 2:
			v, err := r.Uint()
			if err != nil {
				return errors.Trace(err)
			}
			if v > 0xff {
				return errors.NotValidf("security policy %#x", v)
			}
			g.Policy = uint8(v)
		case 3:
			v, err := r.Uint()
			if err != nil {
				return errors.Trace(err)
			}
			count = int(v)
		case 4:
			if r.Type() != tlv.TypeArray {
				return errors.NotValidf("%s element as key list", r.Type())
			}
			if err := r.EnterContainer(); err != nil {
				return errors.Trace(err)
			}
			for {
				more, err := r.Next()
				if err != nil {
					return errors.Trace(err)
				}
				if !more {
					break
				}
				key, err := decodeEpochKey(r)
				if err != nil {
					return errors.Trace(err)
				}
				g.Keys = append(g.Keys, key)
			}
			if err := r.ExitContainer(); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if count < 0 {
		return nil, errors.NotValidf("group key set without key count")
	}
	if count != len(g.Keys) {
		return nil, errors.NotValidf("group key set declaring %d keys but carrying %d", count, len(g.Keys))
	}
	return &g, nil
}

func decodeEpochKey(r *tlv.Reader) (EpochKey, error) {
	var key EpochKey
	var haveKey bool
	if r.Type() != tlv.TypeStructure {
		return key, errors.NotValidf("%s element as epoch key", r.Type())
	}
	if err := r.EnterContainer(); err != nil {
		return key, errors.Trace(err)
	}
	for {
		more, err := r.Next()
		if err != nil {
			return key, errors.Trace(err)
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
				return key, errors.Trace(err)
			}
			key.StartTime = v
		case 2:
			b, err := r.Bytes()
			if err != nil {
				return key, errors.Trace(err)
			}
			key.Key = append([]byte(nil), b...)
			haveKey = true
		}
	}
	if err := r.ExitContainer(); err != nil {
		return key, errors.Trace(err)
	}
	if !haveKey {
		return key, errors.NotValidf("epoch key without key material")
	}
	return key, nil
}

// Encode returns the TLV form of the key set record.
func (g *GroupKeySet) Encode() ([]byte, error) {
	w := tlv.NewWriter()
	w.StartStructure(tlv.AnonymousTag)
	w.PutUint(1, uint64(g.ID))
	w.PutUint(2, uint64(g.Policy))
	w.PutUint(3, uint64(len(g.Keys)))
	w.StartArray(4)
	for _, k := range g.Keys {
		w.StartStructure(tlv.AnonymousTag)
		w.PutUint(1, k.StartTime)
		w.PutBytes(2, k.Key)
		w.EndContainer()
	}
	w.EndContainer()
	w.EndContainer()
	return w.Bytes()
}

// FabricIndexList is the global record under g/fidx enumerating the
// known fabric indices and the next index to be allocated.
type FabricIndexList struct {
	Next    uint8
	Present []uint8
}

// DecodeFabricIndexList decodes a fabric index list record.
func DecodeFabricIndexList(data []byte) (*FabricIndexList, error) {
	var l FabricIndexList
	var haveNext bool
	err := decodeStructure(data, func(r *tlv.Reader, tag int) error {
		switch tag {
		case 1:
			v, err := r.Uint()
			if err != nil {
				return errors.Trace(err)
			}
			if v > 0xff {
				return errors.NotValidf("fabric index %#x", v)
			}
			l.Next = uint8(v)
			haveNext = true
		case 2:
			if r.Type() != tlv.TypeArray {
				return errors.NotValidf("%s element as index list", r.Type())
			}
			if err := r.EnterContainer(); err != nil {
				return errors.Trace(err)
			}
			for {
				more, err := r.Next()
				if err != nil {
					return errors.Trace(err)
				}
				if !more {
					break
				}
				v, err := r.Uint()
				if err != nil {
					return errors.Trace(err)
				}
				if v > 0xff {
					return errors.NotValidf("fabric index %#x", v)
				}
				l.Present = append(l.Present, uint8(v))
			}
			if err := r.ExitContainer(); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !haveNext {
		return nil, errors.NotValidf("fabric index list without next index")
	}
	return &l, nil
}

// Encode returns the TLV form of the index list record.
func (l *FabricIndexList) Encode() ([]byte, error) {
	w := tlv.NewWriter()
	w.StartStructure(tlv.AnonymousTag)
	w.PutUint(1, uint64(l.Next))
	w.StartArray(2)
	for _, idx := range l.Present {
		w.PutUint(tlv.AnonymousTag, uint64(idx))
	}
	w.EndContainer()
	w.EndContainer()
	return w.Bytes()
}

// LastKnownGoodTime is the global record under g/lkgt.
type LastKnownGoodTime struct {
	EpochSeconds uint64
}

// DecodeLastKnownGoodTime decodes a last-known-good-time record.
func DecodeLastKnownGoodTime(data []byte) (*LastKnownGoodTime, error) {
	var t LastKnownGoodTime
	var have bool
	err := decodeStructure(data, func(r *tlv.Reader, tag int) error {
		if tag == 1 {
			v, err := r.Uint()
			if err != nil {
				return errors.Trace(err)
			}
			t.EpochSeconds = v
			have = true
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !have {
		return nil, errors.NotValidf("last known good time without seconds")
	}
	return &t, nil
}

// Encode returns the TLV form of the time record.
func (t *LastKnownGoodTime) Encode() ([]byte, error) {
	w := tlv.NewWriter()
	w.StartStructure(tlv.AnonymousTag)
	w.PutUint(1, t.EpochSeconds)
	w.EndContainer()
	return w.Bytes()
}

// decodeStructure runs fn for every context-tagged element of the
// single anonymous structure that data must contain. Anonymous and
// unknown elements are skipped; trailing data after the structure is
// rejected.
func decodeStructure(data []byte, fn func(r *tlv.Reader, tag int) error) error {
	r := tlv.NewReader(data)
	more, err := r.Next()
	if err != nil {
		return errors.Trace(err)
	}
	if !more || r.Type() != tlv.TypeStructure {
		return errors.NotValidf("record without enclosing structure")
	}
	if err := r.EnterContainer(); err != nil {
		return errors.Trace(err)
	}
	for {
		more, err := r.Next()
		if err != nil {
			return errors.Trace(err)
		}
		if !more {
			break
		}
		tag, ok := r.Tag()
		if !ok {
			continue
		}
		if err := fn(r, tag); err != nil {
			return errors.Trace(err)
		}
	}
	if err := r.ExitContainer(); err != nil {
		return errors.Trace(err)
	}
	more, err = r.Next()
	if err != nil {
		return errors.Trace(err)
	}
	if more {
		return errors.NotValidf("trailing data after record")
	}
	return nil
}
