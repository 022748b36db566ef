// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package opcert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"

	"github.com/juju/errors"

	"github.com/chipmigrate/chipmigrate/internal/tlv"
)

// KeyProfile is a convenient way of getting a private key with a
// default set of attributes.
type KeyProfile func() (*ecdsa.PrivateKey, error)

// ECDSAP256 returns an ECDSA P-256 private key, the only profile the
// operational certificate format supports.
func ECDSAP256() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// KeyID derives the key identifier used in subject/authority key id
// extensions: the first 20 bytes of the SHA-256 of the uncompressed
// public key point.
func KeyID(pub *ecdsa.PublicKey) []byte {
	sum := sha256.Sum256(elliptic.Marshal(elliptic.P256(), pub.X, pub.Y))
	return sum[:20]
}

// Template carries the fields of a certificate to be issued.
type Template struct {
	Serial         []byte
	Issuer         DN
	Subject        DN
	NotBefore      uint32
	NotAfter       uint32
	IsCA           bool
	KeyUsage       uint16
	SubjectKeyID   []byte
	AuthorityKeyID []byte
}

// Sign issues a certificate for pub according to tmpl, signed by key.
func Sign(tmpl Template, pub *ecdsa.PublicKey, key *ecdsa.PrivateKey) ([]byte, error) {
	if len(tmpl.Serial) == 0 {
		return nil, errors.NotValidf("empty serial")
	}
	if len(tmpl.Issuer) == 0 || len(tmpl.Subject) == 0 {
		return nil, errors.NotValidf("empty name")
	}

	w := tlv.NewWriter()
	w.StartStructure(tlv.AnonymousTag)
	w.PutBytes(certTagSerial, tmpl.Serial)
	w.PutUint(certTagSigAlgo, SigAlgoECDSAWithSHA256)
	putDN(w, certTagIssuer, tmpl.Issuer)
	w.PutUint(certTagNotBefore, uint64(tmpl.NotBefore))
	w.PutUint(certTagNotAfter, uint64(tmpl.NotAfter))
	putDN(w, certTagSubject, tmpl.Subject)
	w.PutUint(certTagPubKeyAlgo, PubKeyAlgoEC)
	w.PutUint(certTagCurve, CurveP256)
	w.PutBytes(certTagPublicKey, elliptic.Marshal(elliptic.P256(), pub.X, pub.Y))
	w.StartList(certTagExtensions)
	w.StartStructure(extTagBasicConstraints)
	w.PutBool(1, tmpl.IsCA)
	w.EndContainer()
	if tmpl.KeyUsage != 0 {
		w.PutUint(extTagKeyUsage, uint64(tmpl.KeyUsage))
	}
	if len(tmpl.SubjectKeyID) > 0 {
		w.PutBytes(extTagSubjectKeyID, tmpl.SubjectKeyID)
	}
	if len(tmpl.AuthorityKeyID) > 0 {
		w.PutBytes(extTagAuthorityKeyID, tmpl.AuthorityKeyID)
	}
	w.EndContainer()

	// The bytes emitted so far are the signed span.
	digest := sha256.Sum256(w.Peek())
	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	if err != nil {
		return nil, errors.Trace(err)
	}
	sig := make([]byte, 64)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])

	w.PutBytes(certTagSignature, sig)
	w.EndContainer()
	return w.Bytes()
}

func putDN(w *tlv.Writer, tag int, dn DN) {
	w.StartList(tag)
	for _, a := range dn {
		if a.IsString {
			w.PutString(a.Tag, a.String)
		} else {
			w.PutUint(a.Tag, a.Uint)
		}
	}
	w.EndContainer()
}

// NewRoot issues a self-signed RCAC for key with the given root CA id.
func NewRoot(rcacID uint64, key *ecdsa.PrivateKey) ([]byte, error) {
	dn := DN{{Tag: AttrRCACID, Uint: rcacID}}
	skid := KeyID(&key.PublicKey)
	cert, err := Sign(Template{
		Serial:         newSerial(),
		Issuer:         dn,
		Subject:        dn,
		NotAfter:       neverExpires,
		IsCA:           true,
		KeyUsage:       KeyUsageKeyCertSign | KeyUsageCRLSign,
		SubjectKeyID:   skid,
		AuthorityKeyID: skid,
	}, &key.PublicKey, key)
	return cert, errors.Trace(err)
}

// NewIntermediate issues an ICAC for pub, signed by the parent RCAC.
func NewIntermediate(icacID, fabricID uint64, pub *ecdsa.PublicKey, parent []byte, parentKey *ecdsa.PrivateKey) ([]byte, error) {
	parentCert, err := Decode(parent)
	if err != nil {
		return nil, errors.Annotate(err, "parent certificate")
	}
	subject := DN{{Tag: AttrICACID, Uint: icacID}}
	if fabricID != 0 {
		subject = append(subject, Attribute{Tag: AttrFabricID, Uint: fabricID})
	}
	cert, err := Sign(Template{
		Serial:         newSerial(),
		Issuer:         parentCert.Subject,
		Subject:        subject,
		NotAfter:       neverExpires,
		IsCA:           true,
		KeyUsage:       KeyUsageKeyCertSign | KeyUsageCRLSign,
		SubjectKeyID:   KeyID(pub),
		AuthorityKeyID: parentCert.Extensions.SubjectKeyID,
	}, pub, parentKey)
	return cert, errors.Trace(err)
}

// NewNode issues a NOC for pub, signed by the parent RCAC or ICAC.
func NewNode(nodeID, fabricID uint64, pub *ecdsa.PublicKey, parent []byte, parentKey *ecdsa.PrivateKey) ([]byte, error) {
	parentCert, err := Decode(parent)
	if err != nil {
		return nil, errors.Annotate(err, "parent certificate")
	}
	cert, err := Sign(Template{
		Serial: newSerial(),
		Issuer: parentCert.Subject,
		Subject: DN{
			{Tag: AttrFabricID, Uint: fabricID},
			{Tag: AttrNodeID, Uint: nodeID},
		},
		NotAfter:       neverExpires,
		KeyUsage:       KeyUsageDigitalSignature,
		SubjectKeyID:   KeyID(pub),
		AuthorityKeyID: parentCert.Extensions.SubjectKeyID,
	}, pub, parentKey)
	return cert, errors.Trace(err)
}

// neverExpires is the sentinel the legacy format uses for certificates
// with no expiry.
const neverExpires = 0

func newSerial() []byte {
	serial := make([]byte, 8)
	if _, err := rand.Read(serial); err != nil {
		// rand.Read never fails on supported platforms.
		panic(err)
	}
	return serial
}
