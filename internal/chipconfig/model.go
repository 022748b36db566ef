// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package chipconfig reads a legacy controller's persisted fabric
// configuration, a flat key/value file mixing binary-encoded fabric,
// certificate and session material, into a structured queryable
// model, and writes the identical flat format back out. Keys the
// package does not understand are preserved verbatim; a value whose
// binary payload fails to decode keeps its raw form and simply lacks
// the decoded view. The model is a migration source only: it never
// holds an operational private key, because the legacy format does not
// persist one.
package chipconfig

import (
	"github.com/chipmigrate/chipmigrate/internal/record"
)

// Entry is one flat key/value pair. Base64 is the value exactly as it
// appears in the file and is the unit of round-trip truth; Raw is its
// decoded bytes. Key is kept so that save reproduces the original
// spelling (fabric index segments are hexadecimal and case is not
// canonical).
type Entry struct {
	Key    string
	Raw    []byte
	Base64 string
}

// Fabric aggregates everything the file holds for one fabric index.
// The Decoded fields are optional derivations: nil means the payload
// did not decode, never that data was lost.
type Fabric struct {
	Index uint8

	NOC      *Entry
	ICAC     *Entry
	RCAC     *Entry
	Metadata *Entry

	MetadataDecoded *record.FabricMetadata

	// Keys holds group key sets by slot number.
	Keys        map[int]*Entry
	KeysDecoded map[int]*record.GroupKeySet

	// Sessions holds session resumption details keyed by the peer
	// node id segment of the originating key.
	Sessions        map[string]*Entry
	SessionsDecoded map[string]*record.SessionResumptionDetails

	// Resumptions holds the g/s/<id> entries whose decoded payload
	// named this fabric, keyed by the resumption id segment.
	Resumptions        map[string]*Entry
	ResumptionsDecoded map[string]*record.SessionResumptionEntry

	// Other holds fabric-scoped keys with unrecognized sub-keys,
	// keyed by the full original key.
	Other map[string]*Entry
}

func newFabric(index uint8) *Fabric {
	return &Fabric{
		Index:              index,
		Keys:               make(map[int]*Entry),
		KeysDecoded:        make(map[int]*record.GroupKeySet),
		Sessions:           make(map[string]*Entry),
		SessionsDecoded:    make(map[string]*record.SessionResumptionDetails),
		Resumptions:        make(map[string]*Entry),
		ResumptionsDecoded: make(map[string]*record.SessionResumptionEntry),
		Other:              make(map[string]*Entry),
	}
}

// Global holds the fabric-independent records.
type Global struct {
	FabricIndexList        *Entry
	FabricIndexListDecoded *record.FabricIndexList

	LastKnownGoodTime        *Entry
	LastKnownGoodTimeDecoded *record.LastKnownGoodTime
}

// Session holds the global session resumption index.
type Session struct {
	ResumptionIndex        *Entry
	ResumptionIndexDecoded []record.SessionResumptionEntry
}
