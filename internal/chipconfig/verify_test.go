// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package chipconfig_test

import (
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/chipmigrate/chipmigrate/internal/chipconfig"
	"github.com/chipmigrate/chipmigrate/internal/opcert"
)

type verifySuite struct {
	baseSuite
}

var _ = gc.Suite(&verifySuite{})

func (s *verifySuite) TestFullChainValid(c *gc.C) {
	ch := newChain(c, 0xf00d, 0xbeef)
	store := s.load(c, map[string]string{
		"f/1/n": b64(ch.noc),
		"f/1/i": b64(ch.icac),
		"f/1/r": b64(ch.rcac),
	})

	result := store.VerifyChain(1)
	c.Assert(result.Error, gc.Equals, "")
	c.Assert(result.Valid, jc.IsTrue)
	c.Assert(result.RCAC, gc.Equals, chipconfig.CheckPassed)
	c.Assert(result.ICAC, gc.Equals, chipconfig.CheckPassed)
	c.Assert(result.NOC, gc.Equals, chipconfig.CheckPassed)
}

func (s *verifySuite) TestTwoCertificateChainValid(c *gc.C) {
	// A NOC issued directly by the root; no ICAC anywhere. The ICAC
	// check is skipped, not failed.
	rootKey, err := opcert.ECDSAP256()
	c.Assert(err, jc.ErrorIsNil)
	nodeKey, err := opcert.ECDSAP256()
	c.Assert(err, jc.ErrorIsNil)
	rcac, err := opcert.NewRoot(1, rootKey)
	c.Assert(err, jc.ErrorIsNil)
	noc, err := opcert.NewNode(0xbeef, 0xf00d, &nodeKey.PublicKey, rcac, rootKey)
	c.Assert(err, jc.ErrorIsNil)

	store := s.load(c, map[string]string{
		"f/1/n": b64(noc),
		"f/1/r": b64(rcac),
	})

	result := store.VerifyChain(1)
	c.Assert(result.Valid, jc.IsTrue)
	c.Assert(result.RCAC, gc.Equals, chipconfig.CheckPassed)
	c.Assert(result.ICAC, gc.Equals, chipconfig.CheckSkipped)
	c.Assert(result.NOC, gc.Equals, chipconfig.CheckPassed)
}

func (s *verifySuite) TestMissingRCACShortCircuits(c *gc.C) {
	ch := newChain(c, 0xf00d, 0xbeef)
	store := s.load(c, map[string]string{
		"f/1/n": b64(ch.noc),
		"f/1/i": b64(ch.icac),
	})

	result := store.VerifyChain(1)
	c.Assert(result.Valid, jc.IsFalse)
	c.Assert(result.Error, gc.Equals, "RCAC not found or invalid")
	// No later step ran.
	c.Assert(result.RCAC, gc.Equals, chipconfig.CheckSkipped)
	c.Assert(result.ICAC, gc.Equals, chipconfig.CheckSkipped)
	c.Assert(result.NOC, gc.Equals, chipconfig.CheckSkipped)
}

func (s *verifySuite) TestUnknownFabric(c *gc.C) {
	store := chipconfig.NewStore()
	result := store.VerifyChain(42)
	c.Assert(result.Valid, jc.IsFalse)
	c.Assert(result.Error, gc.Equals, "RCAC not found or invalid")
}

func (s *verifySuite) TestUndecodableRCAC(c *gc.C) {
	store := s.load(c, map[string]string{
		"f/1/r": b64([]byte("junk")),
	})
	result := store.VerifyChain(1)
	c.Assert(result.Valid, jc.IsFalse)
	c.Assert(result.Error, gc.Equals, "RCAC not found or invalid")
}

func (s *verifySuite) TestNonSelfSignedRCAC(c *gc.C) {
	// An ICAC in the RCAC slot: decodes, but is not self-signed.
	ch := newChain(c, 0xf00d, 0xbeef)
	store := s.load(c, map[string]string{
		"f/1/r": b64(ch.icac),
		"f/1/n": b64(ch.noc),
	})

	result := store.VerifyChain(1)
	c.Assert(result.Valid, jc.IsFalse)
	c.Assert(result.RCAC, gc.Equals, chipconfig.CheckFailed)
	c.Assert(result.Error, gc.Matches, "RCAC verification failed: .*")
}

func (s *verifySuite) TestMissingNOC(c *gc.C) {
	ch := newChain(c, 0xf00d, 0xbeef)
	store := s.load(c, map[string]string{
		"f/1/r": b64(ch.rcac),
	})

	result := store.VerifyChain(1)
	c.Assert(result.Valid, jc.IsFalse)
	c.Assert(result.RCAC, gc.Equals, chipconfig.CheckPassed)
	c.Assert(result.Error, gc.Equals, "NOC not found or invalid")
}

func (s *verifySuite) TestICACFromWrongRoot(c *gc.C) {
	ch := newChain(c, 0xf00d, 0xbeef)
	other := newChain(c, 0xf00d, 0xbeef)
	store := s.load(c, map[string]string{
		"f/1/r": b64(ch.rcac),
		"f/1/i": b64(other.icac),
		"f/1/n": b64(ch.noc),
	})

	result := store.VerifyChain(1)
	c.Assert(result.Valid, jc.IsFalse)
	c.Assert(result.RCAC, gc.Equals, chipconfig.CheckPassed)
	c.Assert(result.ICAC, gc.Equals, chipconfig.CheckFailed)
	c.Assert(result.NOC, gc.Equals, chipconfig.CheckSkipped)
	c.Assert(result.Error, gc.Matches, "ICAC verification failed: .*")
}

func (s *verifySuite) TestNOCFromWrongChain(c *gc.C) {
	ch := newChain(c, 0xf00d, 0xbeef)
	other := newChain(c, 0xf00d, 0xbeef)
	store := s.load(c, map[string]string{
		"f/1/r": b64(ch.rcac),
		"f/1/i": b64(ch.icac),
		"f/1/n": b64(other.noc),
	})

	result := store.VerifyChain(1)
	c.Assert(result.Valid, jc.IsFalse)
	c.Assert(result.RCAC, gc.Equals, chipconfig.CheckPassed)
	c.Assert(result.ICAC, gc.Equals, chipconfig.CheckPassed)
	c.Assert(result.NOC, gc.Equals, chipconfig.CheckFailed)
	c.Assert(result.Error, gc.Matches, "NOC verification failed: .*")
}
