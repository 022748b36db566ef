// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package chipconfig

import (
	"github.com/juju/errors"

	"github.com/chipmigrate/chipmigrate/internal/opcert"
)

// FabricConfig is the consolidated, migration-ready view of one
// fabric. It carries only public and shared material: the legacy
// format never persists the operational private key, so a consumer
// adopting this data must mint a fresh operational identity and issue
// a new NOC against the preserved RCAC/ICAC chain.
type FabricConfig struct {
	FabricIndex  uint8
	FabricID     uint64
	NodeID       uint64
	RootNodeID   uint64
	RootVendorID uint16
	Label        string

	RootCert              []byte
	RootPublicKey         []byte
	IdentityProtectionKey []byte
	// IntermediateCACert is nil for two-certificate chains.
	IntermediateCACert []byte
	OperationalCert    []byte
}

// FabricConfig derives the migration view of one fabric. The
// projection is all-or-nothing: it requires a decodable RCAC and NOC,
// decoded fabric metadata and a 16-byte identity protection key in
// key-set slot 0, and reports not-found when any prerequisite is
// missing, never returning a partially filled record.
func (s *Store) FabricConfig(index uint8) (*FabricConfig, error) {
	fabric, ok := s.fabrics[index]
	if !ok {
		return nil, errors.NotFoundf("fabric %d", index)
	}
	if fabric.RCAC == nil {
		return nil, errors.NotFoundf("fabric %d RCAC", index)
	}
	rcac, err := opcert.Decode(fabric.RCAC.Raw)
	if err != nil {
		return nil, errors.NotFoundf("fabric %d decodable RCAC", index)
	}
	if fabric.NOC == nil {
		return nil, errors.NotFoundf("fabric %d NOC", index)
	}
	noc, err := opcert.Decode(fabric.NOC.Raw)
	if err != nil {
		return nil, errors.NotFoundf("fabric %d decodable NOC", index)
	}
	if fabric.MetadataDecoded == nil {
		return nil, errors.NotFoundf("fabric %d metadata", index)
	}
	keySet, ok := fabric.KeysDecoded[0]
	if !ok {
		return nil, errors.NotFoundf("fabric %d key set 0", index)
	}
	ipk, ok := keySet.IPK()
	if !ok {
		return nil, errors.NotFoundf("fabric %d identity protection key", index)
	}
	nodeID, ok := noc.Subject.NodeID()
	if !ok {
		return nil, errors.NotFoundf("fabric %d NOC node id", index)
	}
	fabricID, ok := noc.Subject.FabricID()
	if !ok {
		return nil, errors.NotFoundf("fabric %d NOC fabric id", index)
	}
	rootNodeID, ok := rcac.Subject.RCACID()
	if !ok {
		return nil, errors.NotFoundf("fabric %d RCAC root id", index)
	}

	config := &FabricConfig{
		FabricIndex:           index,
		FabricID:              fabricID,
		NodeID:                nodeID,
		RootNodeID:            rootNodeID,
		RootVendorID:          fabric.MetadataDecoded.VendorID,
		Label:                 fabric.MetadataDecoded.Label,
		RootCert:              fabric.RCAC.Raw,
		RootPublicKey:         rcac.PublicKey,
		IdentityProtectionKey: ipk,
		OperationalCert:       fabric.NOC.Raw,
	}
	if fabric.ICAC != nil {
		config.IntermediateCACert = fabric.ICAC.Raw
	}
	return config, nil
}
