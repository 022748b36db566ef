// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package chipconfig_test

import (
	"bytes"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/chipmigrate/chipmigrate/internal/opcert"
)

type projectSuite struct {
	baseSuite
}

var _ = gc.Suite(&projectSuite{})

const (
	projFabricID = uint64(0x2906c908d115d362)
	projNodeID   = uint64(0xde5b91a601ac2a8b)
)

func (s *projectSuite) completeConfig(c *gc.C, ch chain) map[string]string {
	return map[string]string{
		"f/1/n":   b64(ch.noc),
		"f/1/i":   b64(ch.icac),
		"f/1/r":   b64(ch.rcac),
		"f/1/m":   encodeMetadata(c, 0xfff1, "living room"),
		"f/1/k/0": encodeKeySet(c, bytes.Repeat([]byte{0xaa}, 16)),
	}
}

func (s *projectSuite) TestProjection(c *gc.C) {
	ch := newChain(c, projFabricID, projNodeID)
	store := s.load(c, s.completeConfig(c, ch))

	config, err := store.FabricConfig(1)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(config.FabricIndex, gc.Equals, uint8(1))
	c.Assert(config.FabricID, gc.Equals, projFabricID)
	c.Assert(config.NodeID, gc.Equals, projNodeID)
	c.Assert(config.RootNodeID, gc.Equals, uint64(0x1122334455667788))
	c.Assert(config.RootVendorID, gc.Equals, uint16(0xfff1))
	c.Assert(config.Label, gc.Equals, "living room")
	c.Assert(config.RootCert, jc.DeepEquals, ch.rcac)
	c.Assert(config.IntermediateCACert, jc.DeepEquals, ch.icac)
	c.Assert(config.OperationalCert, jc.DeepEquals, ch.noc)
	c.Assert(config.IdentityProtectionKey, jc.DeepEquals, bytes.Repeat([]byte{0xaa}, 16))

	rcac, err := opcert.Decode(ch.rcac)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(config.RootPublicKey, jc.DeepEquals, rcac.PublicKey)
}

func (s *projectSuite) TestProjectionWithoutICAC(c *gc.C) {
	ch := newChain(c, projFabricID, projNodeID)
	sdk := s.completeConfig(c, ch)
	delete(sdk, "f/1/i")
	store := s.load(c, sdk)

	config, err := store.FabricConfig(1)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(config.IntermediateCACert, gc.IsNil)
}

func (s *projectSuite) TestProjectionIsAllOrNothing(c *gc.C) {
	ch := newChain(c, projFabricID, projNodeID)
	for _, missing := range []string{"f/1/n", "f/1/r", "f/1/m", "f/1/k/0"} {
		sdk := s.completeConfig(c, ch)
		delete(sdk, missing)
		store := s.load(c, sdk)

		config, err := store.FabricConfig(1)
		c.Check(config, gc.IsNil, gc.Commentf("missing %s", missing))
		c.Check(err, jc.Satisfies, errors.IsNotFound, gc.Commentf("missing %s", missing))
	}
}

func (s *projectSuite) TestProjectionRequiresDecodableMetadata(c *gc.C) {
	ch := newChain(c, projFabricID, projNodeID)
	sdk := s.completeConfig(c, ch)
	sdk["f/1/m"] = b64([]byte("mangled"))
	store := s.load(c, sdk)

	config, err := store.FabricConfig(1)
	c.Assert(config, gc.IsNil)
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}

func (s *projectSuite) TestProjectionRequires16ByteKey(c *gc.C) {
	ch := newChain(c, projFabricID, projNodeID)
	sdk := s.completeConfig(c, ch)
	// A key set whose only key is 32 bytes holds no IPK.
	sdk["f/1/k/0"] = encodeKeySet(c, bytes.Repeat([]byte{0xbb}, 32))
	store := s.load(c, sdk)

	config, err := store.FabricConfig(1)
	c.Assert(config, gc.IsNil)
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}

func (s *projectSuite) TestProjectionUnknownFabric(c *gc.C) {
	ch := newChain(c, projFabricID, projNodeID)
	store := s.load(c, s.completeConfig(c, ch))

	config, err := store.FabricConfig(9)
	c.Assert(config, gc.IsNil)
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}
