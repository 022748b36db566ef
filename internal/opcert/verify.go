// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package opcert

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"math/big"

	"github.com/juju/errors"
)

// ECDSAPublicKey returns the certificate's public key as an ECDSA key
// on P-256.
func (cert *Certificate) ECDSAPublicKey() (*ecdsa.PublicKey, error) {
	x, y := elliptic.Unmarshal(elliptic.P256(), cert.PublicKey)
	if x == nil {
		return nil, errors.NotValidf("public key point")
	}
	return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, nil
}

// CheckSelfSigned verifies that the certificate is self-issued and
// carries a valid signature by its own key, the structural requirement
// for a root (RCAC) certificate.
func (cert *Certificate) CheckSelfSigned() error {
	if !cert.Issuer.Equal(cert.Subject) {
		return errors.NotValidf("issuer does not match subject")
	}
	if !cert.Extensions.IsCA {
		return errors.NotValidf("root certificate without CA basic constraint")
	}
	pub, err := cert.ECDSAPublicKey()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Annotate(cert.checkSignature(pub), "self signature")
}

// CheckSignatureFrom verifies that issuer signed cert: the issuer must
// be a CA whose subject matches cert's issuer name, the key
// identifiers must chain when both sides carry them, and the signature
// must verify under the issuer's key.
func (cert *Certificate) CheckSignatureFrom(issuer *Certificate) error {
	if !issuer.Extensions.IsCA {
		return errors.NotValidf("issuer without CA basic constraint")
	}
	if issuer.Extensions.KeyUsage != 0 && issuer.Extensions.KeyUsage&KeyUsageKeyCertSign == 0 {
		return errors.NotValidf("issuer key usage lacks certificate signing")
	}
	if !cert.Issuer.Equal(issuer.Subject) {
		return errors.NotValidf("issuer name mismatch")
	}
	if len(cert.Extensions.AuthorityKeyID) > 0 && len(issuer.Extensions.SubjectKeyID) > 0 &&
		!bytes.Equal(cert.Extensions.AuthorityKeyID, issuer.Extensions.SubjectKeyID) {
		return errors.NotValidf("authority key id mismatch")
	}
	pub, err := issuer.ECDSAPublicKey()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(cert.checkSignature(pub))
}

func (cert *Certificate) checkSignature(pub *ecdsa.PublicKey) error {
	digest := sha256.Sum256(cert.tbs)
	r := new(big.Int).SetBytes(cert.Signature[:32])
	s := new(big.Int).SetBytes(cert.Signature[32:])
	if !ecdsa.Verify(pub, digest[:], r, s) {
		return errors.NotValidf("signature")
	}
	return nil
}
