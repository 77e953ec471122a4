/*
 * Copyright 2020 Guardtime, Inc.
 *
 * This file is part of the Guardtime client SDK.
 *
 * Licensed under the Apache License, Version 2.0 (the "License").
 * You may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *     http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES, CONDITIONS, OR OTHER LICENSES OF ANY KIND, either
 * express or implied. See the License for the specific language governing
 * permissions and limitations under the License.
 * "Guardtime" and "KSI" are trademarks or registered trademarks of
 * Guardtime, Inc., and no license to trademarks is granted; Guardtime
 * reserves and retains all trademark rights.
 */

package pdu

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"

	"github.com/guardtime/gocmp/errors"
)

// MAC based protection algorithms.
var (
	OIDPasswordBasedMac = asn1.ObjectIdentifier{1, 2, 840, 113533, 7, 66, 13}
	OIDPBMAC1           = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 14}
	OIDDHBasedMac       = asn1.ObjectIdentifier{1, 2, 840, 113533, 7, 66, 30}
)

// IsMACAlgorithm reports whether the algorithm identifier denotes a MAC based protection.
func IsMACAlgorithm(oid asn1.ObjectIdentifier) bool {
	return oid.Equal(OIDPasswordBasedMac) || oid.Equal(OIDPBMAC1) || oid.Equal(OIDDHBasedMac)
}

// ProtectionKind is the kind of the PKI message protection.
type ProtectionKind int

// Protection kinds.
const (
	Unprotected ProtectionKind = iota
	MACBased
	SignatureBased
)

func (k ProtectionKind) String() string {
	switch k {
	case Unprotected:
		return "unprotected"
	case MACBased:
		return "MAC based"
	case SignatureBased:
		return "signature based"
	}
	return fmt.Sprintf("ProtectionKind(%d)", int(k))
}

// Protection is a view on the protection of an envelope.
type Protection struct {
	Kind ProtectionKind
	// Algorithm is the protection algorithm as stated in the header. Might be empty.
	Algorithm pkix.AlgorithmIdentifier
	// Value is the protection value (signature or MAC).
	Value []byte
	// Certificates are the extra certificates of the message. The first one is expected to be the protection
	// certificate.
	Certificates []*x509.Certificate
}

// NewEnvelope returns an unprotected PKI message.
func NewEnvelope(h *Header, b *Body) (*Envelope, error) {
	if h == nil || b == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing PKI message header or body.")
	}
	return &Envelope{header: h, body: b}, nil
}

// WithProtection returns a copy of the receiver envelope with the protection value and extra certificates applied.
// The protection algorithm is part of the header, thus it must be set before the protection value is computed
// (see (*Envelope).ProtectedPart()).
func (e *Envelope) WithProtection(value []byte, extraCerts []*x509.Certificate) (*Envelope, error) {
	if e == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	if len(value) == 0 {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing protection value.")
	}
	if e.header.protectionAlg == nil {
		return nil, errors.New(errors.CmpInvalidStateError).AppendMessage("Header is missing the protection algorithm.")
	}
	return &Envelope{
		header:     e.header,
		body:       e.body,
		protection: cloneBytes(value),
		extraCerts: append([]*x509.Certificate(nil), extraCerts...),
	}, nil
}

// WithExtraCerts returns a copy of the receiver envelope with the extra certificates replaced.
func (e *Envelope) WithExtraCerts(extraCerts []*x509.Certificate) (*Envelope, error) {
	if e == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	return &Envelope{
		header:     e.header,
		body:       e.body,
		protection: e.protection,
		extraCerts: append([]*x509.Certificate(nil), extraCerts...),
	}, nil
}

// Header returns the PKI message header.
func (e *Envelope) Header() (*Header, error) {
	if e == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	return e.header, nil
}

// Body returns the PKI message body.
func (e *Envelope) Body() (*Body, error) {
	if e == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	return e.body, nil
}

// ExtraCerts returns the extra certificates.
func (e *Envelope) ExtraCerts() ([]*x509.Certificate, error) {
	if e == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	return append([]*x509.Certificate(nil), e.extraCerts...), nil
}

// Protection returns the protection view of the envelope.
func (e *Envelope) Protection() (Protection, error) {
	if e == nil {
		return Protection{}, errors.New(errors.CmpInvalidArgumentError)
	}

	p := Protection{
		Certificates: append([]*x509.Certificate(nil), e.extraCerts...),
	}
	if e.header.protectionAlg != nil {
		p.Algorithm = *e.header.protectionAlg
	}
	if e.protection == nil {
		p.Kind = Unprotected
		return p, nil
	}

	p.Value = cloneBytes(e.protection)
	if IsMACAlgorithm(p.Algorithm.Algorithm) {
		p.Kind = MACBased
	} else {
		p.Kind = SignatureBased
	}
	return p, nil
}

// IsProtected reports whether the envelope carries a protection value.
func (e *Envelope) IsProtected() bool {
	return e != nil && e.protection != nil
}

// ProtectedPart returns the DER encoding of the data the protection is computed over: SEQUENCE { header, body }.
// In case of a decoded envelope the exact received header and body encodings are used.
func (e *Envelope) ProtectedPart() ([]byte, error) {
	if e == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	hdr, err := e.header.Encode()
	if err != nil {
		return nil, err
	}
	body, err := e.body.Encode()
	if err != nil {
		return nil, err
	}

	der, err := asn1.Marshal(protectedPart{
		Header: asn1.RawValue{FullBytes: hdr},
		Body:   asn1.RawValue{FullBytes: body},
	})
	if err != nil {
		return nil, errors.New(errors.CmpInvalidFormatError).SetExtError(err).AppendMessage("Failed to encode protected part.")
	}
	return der, nil
}

// Encode returns the DER encoding of the PKI message.
func (e *Envelope) Encode() ([]byte, error) {
	if e == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	if e.raw != nil {
		return cloneBytes(e.raw), nil
	}

	hdr, err := e.header.Encode()
	if err != nil {
		return nil, err
	}
	body, err := e.body.Encode()
	if err != nil {
		return nil, err
	}

	wire := pkiMessage{
		Header: asn1.RawValue{FullBytes: hdr},
		Body:   asn1.RawValue{FullBytes: body},
	}
	if e.protection != nil {
		wire.Protection = asn1.BitString{Bytes: e.protection, BitLength: 8 * len(e.protection)}
	}
	for _, c := range e.extraCerts {
		if c == nil || len(c.Raw) == 0 {
			return nil, errors.New(errors.CmpInvalidStateError).AppendMessage("Invalid extra certificate.")
		}
		wire.ExtraCerts = append(wire.ExtraCerts, asn1.RawValue{FullBytes: c.Raw})
	}

	der, err := asn1.Marshal(wire)
	if err != nil {
		return nil, errors.New(errors.CmpInvalidFormatError).SetExtError(err).AppendMessage("Failed to encode PKI message.")
	}
	return der, nil
}

// Decode parses a DER encoded PKI message. The input is not modified or retained.
// No cryptographic checks are performed.
func Decode(raw []byte) (*Envelope, error) {
	if len(raw) == 0 {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Empty PKI message.")
	}

	var wire pkiMessage
	rest, err := asn1.Unmarshal(raw, &wire)
	if err != nil {
		return nil, errors.New(errors.CmpInvalidFormatError).SetExtError(err).AppendMessage("Failed to decode PKI message.")
	}
	if len(rest) != 0 {
		return nil, errors.New(errors.CmpInvalidFormatError).
			AppendMessage(fmt.Sprintf("Trailing data after PKI message (%d bytes).", len(rest)))
	}
	if wire.Header.Class != asn1.ClassUniversal || wire.Header.Tag != asn1.TagSequence {
		return nil, errors.New(errors.CmpInvalidFormatError).AppendMessage("PKI header is not a SEQUENCE.")
	}

	hdr, err := decodeHeader(wire.Header.FullBytes)
	if err != nil {
		return nil, err
	}
	body, err := decodeBody(wire.Body)
	if err != nil {
		return nil, err
	}

	env := &Envelope{
		header: hdr,
		body:   body,
		raw:    cloneBytes(raw),
	}
	if wire.Protection.BitLength > 0 || wire.Protection.Bytes != nil {
		if wire.Protection.BitLength%8 != 0 {
			return nil, errors.New(errors.CmpInvalidFormatError).AppendMessage("Protection is not octet aligned.")
		}
		env.protection = cloneBytes(wire.Protection.Bytes)
		if env.protection == nil {
			env.protection = []byte{}
		}
	}
	for i, c := range wire.ExtraCerts {
		cert, err := x509.ParseCertificate(c.FullBytes)
		if err != nil {
			return nil, errors.New(errors.CmpInvalidFormatError).SetExtError(err).
				AppendMessage(fmt.Sprintf("Failed to parse extra certificate %d.", i))
		}
		env.extraCerts = append(env.extraCerts, cert)
	}
	return env, nil
}
