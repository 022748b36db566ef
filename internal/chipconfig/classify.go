// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package chipconfig

import (
	"encoding/base64"
	"sort"
	"strconv"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/chipmigrate/chipmigrate/internal/record"
)

// ignoredKeys are non-TLV bookkeeping values: failsafe markers,
// counters, group and ICD flags. They are preserved verbatim and no
// decode is ever attempted.
var ignoredKeys = set.NewStrings(
	"g/fs/c",
	"g/fs/n",
	"g/gdc",
	"g/gcc",
	"g/gfl",
	"g/icdfl",
)

func newEntry(key, encoded string) (*Entry, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Annotate(err, "value is not base64")
	}
	return &Entry{Key: key, Raw: raw, Base64: encoded}, nil
}

// classify routes one entry to its bucket. It reports true for
// g/s/<id> keys, whose owning fabric is named by the payload rather
// than the path and which are therefore resolved in a second phase.
func (s *Store) classify(entry *Entry) (deferred bool) {
	key := entry.Key
	switch {
	case ignoredKeys.Contains(key):
		s.ignored[key] = entry
	case strings.HasPrefix(key, "f/"):
		s.classifyFabric(entry)
	case key == "g/fidx":
		s.global.FabricIndexList = entry
		decoded, err := record.DecodeFabricIndexList(entry.Raw)
		if err != nil {
			logger.Warningf("fabric index list does not decode: %v", err)
			break
		}
		s.global.FabricIndexListDecoded = decoded
	case key == "g/lkgt":
		s.global.LastKnownGoodTime = entry
		decoded, err := record.DecodeLastKnownGoodTime(entry.Raw)
		if err != nil {
			logger.Warningf("last known good time does not decode: %v", err)
			break
		}
		s.global.LastKnownGoodTimeDecoded = decoded
	case key == "g/sri":
		s.session.ResumptionIndex = entry
		decoded, err := record.DecodeSessionResumptionIndex(entry.Raw)
		if err != nil {
			logger.Warningf("session resumption index does not decode: %v", err)
			break
		}
		s.session.ResumptionIndexDecoded = decoded
	case strings.HasPrefix(key, "g/s/") && len(key) > len("g/s/"):
		return true
	default:
		s.generic[key] = entry
	}
	return false
}

// classifyFabric routes a key of the form f/<hexIndex>/<subkey>. A key
// that does not fit the grammar (no sub-key, index not a hexadecimal
// fabric index) is preserved in the generic bucket instead.
func (s *Store) classifyFabric(entry *Entry) {
	rest := entry.Key[len("f/"):]
	slash := strings.IndexByte(rest, '/')
	if slash <= 0 || slash == len(rest)-1 {
		s.generic[entry.Key] = entry
		return
	}
	index, err := strconv.ParseUint(rest[:slash], 16, 8)
	if err != nil {
		s.generic[entry.Key] = entry
		return
	}
	fabric := s.getOrCreateFabric(uint8(index))
	sub := rest[slash+1:]
	switch {
	case sub == "n":
		if s.noteAlias(fabric, fabric.NOC, entry) {
			return
		}
		fabric.NOC = entry
	case sub == "i":
		if s.noteAlias(fabric, fabric.ICAC, entry) {
			return
		}
		fabric.ICAC = entry
	case sub == "r":
		if s.noteAlias(fabric, fabric.RCAC, entry) {
			return
		}
		fabric.RCAC = entry
	case sub == "m":
		if s.noteAlias(fabric, fabric.Metadata, entry) {
			return
		}
		fabric.Metadata = entry
		decoded, err := record.DecodeFabricMetadata(entry.Raw)
		if err != nil {
			logger.Warningf("fabric %d metadata does not decode: %v", fabric.Index, err)
			return
		}
		fabric.MetadataDecoded = decoded
	case strings.HasPrefix(sub, "k/"):
		slot, err := strconv.Atoi(sub[len("k/"):])
		if err != nil || slot < 0 {
			fabric.Other[entry.Key] = entry
			return
		}
		if s.noteAlias(fabric, fabric.Keys[slot], entry) {
			return
		}
		fabric.Keys[slot] = entry
		decoded, err := record.DecodeGroupKeySet(entry.Raw)
		if err != nil {
			logger.Warningf("fabric %d key set %d does not decode: %v", fabric.Index, slot, err)
			return
		}
		fabric.KeysDecoded[slot] = decoded
	case strings.HasPrefix(sub, "s/") && len(sub) > len("s/"):
		node := sub[len("s/"):]
		fabric.Sessions[node] = entry
		decoded, err := record.DecodeSessionResumptionDetails(entry.Raw)
		if err != nil {
			logger.Warningf("fabric %d session %s does not decode: %v", fabric.Index, node, err)
			return
		}
		fabric.SessionsDecoded[node] = decoded
	default:
		fabric.Other[entry.Key] = entry
	}
}

// noteAlias handles a key whose parsed slot is already held by a
// different spelling of the same logical key (f/1/m vs f/01/m, or
// f/1/k/7 vs f/1/k/007). The newcomer is preserved unmerged in the
// fabric's opaque bucket and the alias is surfaced; neither spelling
// is ever dropped.
func (s *Store) noteAlias(fabric *Fabric, occupant, entry *Entry) bool {
	if occupant == nil {
		return false
	}
	fabric.Other[entry.Key] = entry
	msg := "key " + strconv.Quote(entry.Key) + " aliases " +
		strconv.Quote(occupant.Key) + "; both spellings kept"
	logger.Warningf("%s", msg)
	s.inconsistencies = append(s.inconsistencies, msg)
	return true
}

// resolveResumption files a g/s/<id> entry under the fabric its
// payload names. When the payload does not decode the key cannot be
// attributed to any fabric; it is preserved in the generic bucket
// rather than dropped.
func (s *Store) resolveResumption(entry *Entry) {
	id := entry.Key[len("g/s/"):]
	decoded, err := record.DecodeSessionResumptionEntry(entry.Raw)
	if err != nil {
		logger.Warningf("resumption %s does not decode, keeping verbatim: %v", id, err)
		s.generic[entry.Key] = entry
		return
	}
	fabric := s.getOrCreateFabric(decoded.FabricIndex)
	fabric.Resumptions[id] = entry
	fabric.ResumptionsDecoded[id] = decoded
}

// findInconsistencies cross-checks the two places a resumption id can
// appear: keyed by peer node under a fabric's sessions, and keyed by
// resumption id under the fabric its g/s payload named. When the two
// attribute the same id to different fabrics both records are kept
// as-is and the conflict is surfaced.
func (s *Store) findInconsistencies() {
	for _, owner := range s.FabricIndices() {
		fabric := s.fabrics[owner]
		nodes := make([]string, 0, len(fabric.SessionsDecoded))
		for node := range fabric.SessionsDecoded {
			nodes = append(nodes, node)
		}
		sort.Strings(nodes)
		for _, node := range nodes {
			details := fabric.SessionsDecoded[node]
			id := base64.StdEncoding.EncodeToString(details.ResumptionID[:])
			for _, other := range s.FabricIndices() {
				if other == owner {
					continue
				}
				if _, ok := s.fabrics[other].Resumptions[id]; !ok {
					continue
				}
				msg := "resumption id " + id + " cached under fabric " +
					strconv.Itoa(int(owner)) + " (peer " + node + ") but attributed to fabric " +
					strconv.Itoa(int(other)) + " by its payload"
				logger.Warningf("%s", msg)
				s.inconsistencies = append(s.inconsistencies, msg)
			}
		}
	}
}
