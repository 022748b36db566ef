// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package opcert decodes and verifies the operational certificates
// found in a legacy fabric configuration: the RCAC/ICAC/NOC trust
// chain. The certificates are TLV-encoded, carry ECDSA P-256 keys and
// 64-byte raw signatures, and identify their subjects through a small
// attribute vocabulary (node id, fabric id, CA ids) rather than X.509
// distinguished names. The package also generates signed certificates,
// which the test suites and migration tooling use to build chains.
package opcert

import (
	"github.com/juju/errors"

	"github.com/chipmigrate/chipmigrate/internal/tlv"
)

// Distinguished-name attribute tags.
const (
	AttrCommonName = 1
	AttrNodeID     = 17
	AttrICACID     = 19
	AttrRCACID     = 20
	AttrFabricID   = 21
	AttrNOCCAT     = 22
)

// Algorithm identifiers. Only ECDSA over P-256 with SHA-256 occurs in
// this format.
const (
	SigAlgoECDSAWithSHA256 = 1
	PubKeyAlgoEC           = 1
	CurveP256              = 1
)

// Key usage bits.
const (
	KeyUsageDigitalSignature = 0x01
	KeyUsageKeyCertSign      = 0x20
	KeyUsageCRLSign          = 0x40
)

// Attribute is one entry of a distinguished name. Numeric attributes
// carry Uint; the common name carries String.
type Attribute struct {
	Tag      int
	Uint     uint64
	String   string
	IsString bool
}

// DN is an ordered distinguished name.
type DN []Attribute

func (dn DN) uintAttr(tag int) (uint64, bool) {
	for _, a := range dn {
		if a.Tag == tag && !a.IsString {
			return a.Uint, true
		}
	}
	return 0, false
}

// NodeID returns the matter-node-id attribute.
func (dn DN) NodeID() (uint64, bool) { return dn.uintAttr(AttrNodeID) }

// FabricID returns the matter-fabric-id attribute.
func (dn DN) FabricID() (uint64, bool) { return dn.uintAttr(AttrFabricID) }

// RCACID returns the matter-rcac-id attribute.
func (dn DN) RCACID() (uint64, bool) { return dn.uintAttr(AttrRCACID) }

// ICACID returns the matter-icac-id attribute.
func (dn DN) ICACID() (uint64, bool) { return dn.uintAttr(AttrICACID) }

// CommonName returns the common-name attribute.
func (dn DN) CommonName() (string, bool) {
	for _, a := range dn {
		if a.Tag == AttrCommonName && a.IsString {
			return a.String, true
		}
	}
	return "", false
}

// Equal reports whether two names carry the same attributes in the
// same order.
func (dn DN) Equal(other DN) bool {
	if len(dn) != len(other) {
		return false
	}
	for i, a := range dn {
		if a != other[i] {
			return false
		}
	}
	return true
}

// Extensions holds the certificate extensions this format uses.
type Extensions struct {
	HasBasicConstraints bool
	IsCA                bool
	// PathLen is -1 when no path length constraint is present.
	PathLen        int
	KeyUsage       uint16
	SubjectKeyID   []byte
	AuthorityKeyID []byte
}

// Certificate is a decoded operational certificate.
type Certificate struct {
	Serial     []byte
	SigAlgo    uint8
	Issuer     DN
	NotBefore  uint32
	NotAfter   uint32
	Subject    DN
	PubKeyAlgo uint8
	Curve      uint8
	// PublicKey is the 65-byte uncompressed P-256 point.
	PublicKey  []byte
	Extensions Extensions
	// Signature is the raw 64-byte r||s value over the to-be-signed
	// span.
	Signature []byte

	tbs []byte
}

// Certificate element tags.
const (
	certTagSerial     = 1
	certTagSigAlgo    = 2
	certTagIssuer     = 3
	certTagNotBefore  = 4
	certTagNotAfter   = 5
	certTagSubject    = 6
	certTagPubKeyAlgo = 7
	certTagCurve      = 8
	certTagPublicKey  = 9
	certTagExtensions = 10
	certTagSignature  = 11
)

// Extension element tags.
const (
	extTagBasicConstraints = 1
	extTagKeyUsage         = 2
	extTagSubjectKeyID     = 4
	extTagAuthorityKeyID   = 5
)

// Decode parses an encoded certificate. All mandatory fields (serial,
// algorithms, names, validity, public key, signature) must be present
// and well formed.
func Decode(data []byte) (*Certificate, error) {
	cert := &Certificate{Extensions: Extensions{PathLen: -1}}
	var have [certTagSignature + 1]bool

	r := tlv.NewReader(data)
	more, err := r.Next()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !more || r.Type() != tlv.TypeStructure {
		return nil, errors.NotValidf("certificate without enclosing structure")
	}
	if err := r.EnterContainer(); err != nil {
		return nil, errors.Trace(err)
	}
	for {
		more, err := r.Next()
		if err != nil {
			return nil, errors.Trace(err)
		}
		if !more {
			break
		}
		tag, ok := r.Tag()
		if !ok || tag < certTagSerial || tag > certTagSignature {
			continue
		}
		if have[tag] {
			return nil, errors.NotValidf("duplicate certificate element %d", tag)
		}
		have[tag] = true
		if err := cert.decodeElement(r, tag, data); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if err := r.ExitContainer(); err != nil {
		return nil, errors.Trace(err)
	}
	if more, err := r.Next(); err != nil {
		return nil, errors.Trace(err)
	} else if more {
		return nil, errors.NotValidf("trailing data after certificate")
	}

	for tag := certTagSerial; tag <= certTagSignature; tag++ {
		if tag == certTagExtensions {
			continue
		}
		if !have[tag] {
			return nil, errors.NotValidf("certificate missing element %d", tag)
		}
	}
	if cert.SigAlgo != SigAlgoECDSAWithSHA256 {
		return nil, errors.NotValidf("signature algorithm %d", cert.SigAlgo)
	}
	if cert.PubKeyAlgo != PubKeyAlgoEC || cert.Curve != CurveP256 {
		return nil, errors.NotValidf("public key algorithm %d on curve %d", cert.PubKeyAlgo, cert.Curve)
	}
	return cert, nil
}

func (cert *Certificate) decodeElement(r *tlv.Reader, tag int, data []byte) error {
	switch tag {
	case certTagSerial:
		b, err := r.Bytes()
		if err != nil {
			return errors.Trace(err)
		}
		if len(b) == 0 || len(b) > 20 {
			return errors.NotValidf("serial of %d bytes", len(b))
		}
		cert.Serial = append([]byte(nil), b...)
	case certTagSigAlgo:
		v, err := r.Uint()
		if err != nil {
			return errors.Trace(err)
		}
		cert.SigAlgo = uint8(v)
	case certTagIssuer:
		dn, err := decodeDN(r)
		if err != nil {
			return errors.Annotate(err, "issuer")
		}
		cert.Issuer = dn
	case certTagNotBefore:
		v, err := r.Uint()
		if err != nil {
			return errors.Trace(err)
		}
		cert.NotBefore = uint32(v)
	case certTagNotAfter:
		v, err := r.Uint()
		if err != nil {
			return errors.Trace(err)
		}
		cert.NotAfter = uint32(v)
	case certTagSubject:
		dn, err := decodeDN(r)
		if err != nil {
			return errors.Annotate(err, "subject")
		}
		cert.Subject = dn
	case certTagPubKeyAlgo:
		v, err := r.Uint()
		if err != nil {
			return errors.Trace(err)
		}
		cert.PubKeyAlgo = uint8(v)
	case certTagCurve:
		v, err := r.Uint()
		if err != nil {
			return errors.Trace(err)
		}
		cert.Curve = uint8(v)
	case certTagPublicKey:
		b, err := r.Bytes()
		if err != nil {
			return errors.Trace(err)
		}
		if len(b) != 65 {
			return errors.NotValidf("public key of %d bytes", len(b))
		}
		cert.PublicKey = append([]byte(nil), b...)
	case certTagExtensions:
		ext, err := decodeExtensions(r)
		if err != nil {
			return errors.Annotate(err, "extensions")
		}
		cert.Extensions = ext
	case certTagSignature:
		// Everything preceding the signature element is the signed
		// span.
		cert.tbs = data[:r.ElementStart()]
		b, err := r.Bytes()
		if err != nil {
			return errors.Trace(err)
		}
		if len(b) != 64 {
			return errors.NotValidf("signature of %d bytes", len(b))
		}
		cert.Signature = append([]byte(nil), b...)
	}
	return nil
}

func decodeDN(r *tlv.Reader) (DN, error) {
	if r.Type() != tlv.TypeList {
		return nil, errors.NotValidf("%s element as distinguished name", r.Type())
	}
	if err := r.EnterContainer(); err != nil {
		return nil, errors.Trace(err)
	}
	var dn DN
	for {
		more, err := r.Next()
		if err != nil {
			return nil, errors.Trace(err)
		}
		if !more {
			break
		}
		tag, ok := r.Tag()
		if !ok {
			return nil, errors.NotValidf("anonymous name attribute")
		}
		switch r.Type() {
		case tlv.TypeUint:
			v, err := r.Uint()
			if err != nil {
				return nil, errors.Trace(err)
			}
			dn = append(dn, Attribute{Tag: tag, Uint: v})
		case tlv.TypeString:
			s, err := r.String()
			if err != nil {
				return nil, errors.Trace(err)
			}
			dn = append(dn, Attribute{Tag: tag, String: s, IsString: true})
		default:
			return nil, errors.NotValidf("%s name attribute", r.Type())
		}
	}
	if err := r.ExitContainer(); err != nil {
		return nil, errors.Trace(err)
	}
	if len(dn) == 0 {
		return nil, errors.NotValidf("empty distinguished name")
	}
	return dn, nil
}

func decodeExtensions(r *tlv.Reader) (Extensions, error) {
	ext := Extensions{PathLen: -1}
	if r.Type() != tlv.TypeList {
		return ext, errors.NotValidf("%s element as extension list", r.Type())
	}
	if err := r.EnterContainer(); err != nil {
		return ext, errors.Trace(err)
	}
	for {
		more, err := r.Next()
		if err != nil {
			return ext, errors.Trace(err)
		}
		if !more {
			break
		}
		tag, ok := r.Tag()
		if !ok {
			continue
		}
		switch tag {
		case extTagBasicConstraints:
			if r.Type() != tlv.TypeStructure {
				return ext, errors.NotValidf("%s element as basic constraints", r.Type())
			}
			if err := r.EnterContainer(); err != nil {
				return ext, errors.Trace(err)
			}
			ext.HasBasicConstraints = true
			for {
				more, err := r.Next()
				if err != nil {
					return ext, errors.Trace(err)
				}
				if !more {
					break
				}
				switch t, _ := r.Tag(); t {
				case 1:
					v, err := r.Bool()
					if err != nil {
						return ext, errors.Trace(err)
					}
					ext.IsCA = v
				case 2:
					v, err := r.Uint()
					if err != nil {
						return ext, errors.Trace(err)
					}
					ext.PathLen = int(v)
				}
			}
			if err := r.ExitContainer(); err != nil {
				return ext, errors.Trace(err)
			}
		case extTagKeyUsage:
			v, err := r.Uint()
			if err != nil {
				return ext, errors.Trace(err)
			}
			ext.KeyUsage = uint16(v)
		case extTagSubjectKeyID:
			b, err := r.Bytes()
			if err != nil {
				return ext, errors.Trace(err)
			}
			ext.SubjectKeyID = append([]byte(nil), b...)
		case extTagAuthorityKeyID:
			b, err := r.Bytes()
			if err != nil {
				return ext, errors.Trace(err)
			}
			ext.AuthorityKeyID = append([]byte(nil), b...)
		}
	}
	if err := r.ExitContainer(); err != nil {
		return ext, errors.Trace(err)
	}
	return ext, nil
}
