// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package chipconfig

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
)

// Save writes the model back to the flat on-disk format. The emitted
// key set and base64 values are byte-identical to what Load consumed,
// whether or not any individual payload decoded; keys are ordered
// globals first, then per-fabric material, then ignored and generic
// keys. The file is written atomically.
func (s *Store) Save(path string) error {
	data, err := s.fileContents()
	if err != nil {
		return errors.Trace(err)
	}
	if err := utils.AtomicWriteFile(path, data, 0600); err != nil {
		return errors.Annotatef(err, "cannot write fabric configuration %q", path)
	}
	return nil
}

func (s *Store) fileContents() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"sdk-config":{`)
	for i, entry := range s.flatten() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(&buf, entry.Key); err != nil {
			return nil, errors.Trace(err)
		}
		buf.WriteByte(':')
		if err := writeJSONString(&buf, entry.Base64); err != nil {
			return nil, errors.Trace(err)
		}
	}
	buf.WriteByte('}')
	if repl := bytes.TrimSpace(s.replConfig); len(repl) > 0 && !bytes.Equal(repl, []byte("null")) {
		buf.WriteString(`,"repl-config":`)
		buf.Write(repl)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	encoded, err := json.Marshal(s)
	if err != nil {
		return errors.Trace(err)
	}
	buf.Write(encoded)
	return nil
}

// flatten rebuilds the flat key sequence as the exact inverse of
// classification.
func (s *Store) flatten() []*Entry {
	var entries []*Entry
	add := func(entry *Entry) {
		if entry != nil {
			entries = append(entries, entry)
		}
	}

	add(s.global.FabricIndexList)
	add(s.global.LastKnownGoodTime)
	add(s.session.ResumptionIndex)

	for _, index := range s.FabricIndices() {
		fabric := s.fabrics[index]
		add(fabric.NOC)
		add(fabric.ICAC)
		add(fabric.RCAC)
		add(fabric.Metadata)
		for _, slot := range sortedIntKeys(fabric.Keys) {
			add(fabric.Keys[slot])
		}
		for _, node := range sortedStringKeys(fabric.Sessions) {
			add(fabric.Sessions[node])
		}
		for _, id := range sortedStringKeys(fabric.Resumptions) {
			add(fabric.Resumptions[id])
		}
		for _, key := range sortedStringKeys(fabric.Other) {
			add(fabric.Other[key])
		}
	}

	for _, key := range sortedStringKeys(s.ignored) {
		add(s.ignored[key])
	}
	for _, key := range sortedStringKeys(s.generic) {
		add(s.generic[key])
	}
	return entries
}

func sortedIntKeys(m map[int]*Entry) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func sortedStringKeys(m map[string]*Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
