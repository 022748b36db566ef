// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package chipconfig

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("chipmigrate.chipconfig")

// configFile is the on-disk shape: a flat map of base64 values plus an
// opaque repl-config blob that is passed through verbatim.
type configFile struct {
	SDKConfig  map[string]string `json:"sdk-config"`
	ReplConfig json.RawMessage   `json:"repl-config,omitempty"`
}

// Store owns the in-memory model of one configuration file. A Store is
// not safe for concurrent use; the conversion is a one-shot, offline
// transformation and callers must serialize access.
type Store struct {
	fabrics map[uint8]*Fabric
	global  Global
	session Session

	ignored map[string]*Entry
	generic map[string]*Entry

	replConfig json.RawMessage

	inconsistencies []string
}

// NewStore returns an empty Store. Load populates it.
func NewStore() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.fabrics = make(map[uint8]*Fabric)
	s.global = Global{}
	s.session = Session{}
	s.ignored = make(map[string]*Entry)
	s.generic = make(map[string]*Entry)
	s.replConfig = nil
	s.inconsistencies = nil
}

// Load reads and classifies the configuration at path, replacing any
// previously loaded model. Malformed JSON or an unreadable file is an
// error; an individual value whose binary payload does not decode is
// not: the value is kept raw and the decoded view is simply absent.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Annotatef(err, "cannot read fabric configuration %q", path)
	}
	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return errors.Annotatef(err, "cannot parse fabric configuration %q", path)
	}
	if file.SDKConfig == nil {
		return errors.NotValidf("fabric configuration %q without sdk-config", path)
	}

	s.reset()
	s.replConfig = file.ReplConfig

	// Classify in sorted key order so that diagnostics are
	// deterministic.
	keys := make([]string, 0, len(file.SDKConfig))
	for key := range file.SDKConfig {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var deferred []*Entry
	for _, key := range keys {
		entry, err := newEntry(key, file.SDKConfig[key])
		if err != nil {
			return errors.Annotatef(err, "key %q", key)
		}
		if s.classify(entry) {
			deferred = append(deferred, entry)
		}
	}

	// Ownership of g/s/* keys is payload-driven and only resolvable
	// once every path-driven key has been classified.
	for _, entry := range deferred {
		s.resolveResumption(entry)
	}

	s.findInconsistencies()
	logger.Debugf("loaded %d fabrics, %d ignored keys, %d generic keys from %q",
		len(s.fabrics), len(s.ignored), len(s.generic), path)
	return nil
}

// FabricIndices returns the known fabric indices in ascending numeric
// order.
func (s *Store) FabricIndices() []uint8 {
	indices := make([]uint8, 0, len(s.fabrics))
	for index := range s.fabrics {
		indices = append(indices, index)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices
}

// Fabric returns the aggregated material for one fabric index.
func (s *Store) Fabric(index uint8) (*Fabric, bool) {
	f, ok := s.fabrics[index]
	return f, ok
}

// RCAC returns the fabric's root CA certificate bytes.
func (s *Store) RCAC(index uint8) ([]byte, bool) {
	return s.certBytes(index, func(f *Fabric) *Entry { return f.RCAC })
}

// ICAC returns the fabric's intermediate CA certificate bytes.
func (s *Store) ICAC(index uint8) ([]byte, bool) {
	return s.certBytes(index, func(f *Fabric) *Entry { return f.ICAC })
}

// NOC returns the fabric's node operational certificate bytes.
func (s *Store) NOC(index uint8) ([]byte, bool) {
	return s.certBytes(index, func(f *Fabric) *Entry { return f.NOC })
}

func (s *Store) certBytes(index uint8, pick func(*Fabric) *Entry) ([]byte, bool) {
	f, ok := s.fabrics[index]
	if !ok {
		return nil, false
	}
	entry := pick(f)
	if entry == nil {
		return nil, false
	}
	return entry.Raw, true
}

// Global returns the fabric-independent records.
func (s *Store) Global() Global {
	return s.global
}

// Session returns the global session resumption index.
func (s *Store) Session() Session {
	return s.session
}

// ReplConfig returns the opaque repl-config blob, if the file carried
// one.
func (s *Store) ReplConfig() json.RawMessage {
	return s.replConfig
}

// Inconsistencies reports conflicts the classifier preserved rather
// than resolved: resumption identifiers attributed to one fabric by
// their key path and to a different fabric by their payload. Neither
// side is dropped or merged.
func (s *Store) Inconsistencies() []string {
	return append([]string(nil), s.inconsistencies...)
}

func (s *Store) getOrCreateFabric(index uint8) *Fabric {
	if f, ok := s.fabrics[index]; ok {
		return f
	}
	f := newFabric(index)
	s.fabrics[index] = f
	return f
}
