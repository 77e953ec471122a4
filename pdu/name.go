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
	"strings"

	"github.com/guardtime/gocmp/errors"
)

// GeneralName tag of the directoryName choice.
const tagDirectoryName = 4

// GeneralName is the X.509 GeneralName as used for the sender and recipient of a PKI message.
// Only the directoryName choice is interpreted, other choices are retained as is.
type GeneralName struct {
	raw asn1.RawValue
	rdn pkix.RDNSequence
	dn  bool
}

// NullDN is the directory name with an empty RDN sequence. As a recipient it denotes "any".
var NullDN = NewDirectoryName(pkix.Name{})

// NewDirectoryName returns a directoryName GeneralName for the provided name. Attributes without a dedicated
// pkix.Name field have to be listed in ExtraNames.
func NewDirectoryName(name pkix.Name) GeneralName {
	rdn := name.ToRDNSequence()
	if rdn == nil {
		rdn = pkix.RDNSequence{}
	}
	return NewDirectoryNameFromRDN(rdn)
}

// NewDirectoryNameFromRDN returns a directoryName GeneralName for the provided RDN sequence, typically taken from
// a certificate (see x509.Certificate.RawSubject).
func NewDirectoryNameFromRDN(rdn pkix.RDNSequence) GeneralName {
	der, err := asn1.Marshal(rdn)
	if err != nil {
		// The RDN sequence is built from in-memory values; marshal can only fail on invalid string content.
		der = []byte{0x30, 0x00}
		rdn = pkix.RDNSequence{}
	}
	return GeneralName{
		raw: asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: tagDirectoryName, IsCompound: true, Bytes: der},
		rdn: rdn,
		dn:  true,
	}
}

// NewDirectoryNameFromDER returns a directoryName GeneralName from a DER encoded X.501 Name.
func NewDirectoryNameFromDER(der []byte) (GeneralName, error) {
	var rdn pkix.RDNSequence
	rest, err := asn1.Unmarshal(der, &rdn)
	if err != nil {
		return GeneralName{}, errors.New(errors.CmpInvalidFormatError).SetExtError(err).
			AppendMessage("Failed to parse directory name.")
	}
	if len(rest) != 0 {
		return GeneralName{}, errors.New(errors.CmpInvalidFormatError).AppendMessage("Trailing data after directory name.")
	}
	return NewDirectoryNameFromRDN(rdn), nil
}

// NewDirectoryNameFromCert returns the certificate subject as directoryName GeneralName. The name is taken from
// the raw subject, thus all the attributes are retained in their original order.
func NewDirectoryNameFromCert(cert *x509.Certificate) (GeneralName, error) {
	if cert == nil {
		return GeneralName{}, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing certificate.")
	}
	return NewDirectoryNameFromDER(cert.RawSubject)
}

func parseGeneralName(v asn1.RawValue) (GeneralName, error) {
	gn := GeneralName{raw: v}
	if v.Class != asn1.ClassContextSpecific {
		return GeneralName{}, errors.New(errors.CmpInvalidFormatError).AppendMessage("Invalid GeneralName class.")
	}
	if v.Tag != tagDirectoryName {
		return gn, nil
	}

	rest, err := asn1.Unmarshal(v.Bytes, &gn.rdn)
	if err != nil {
		return GeneralName{}, errors.New(errors.CmpInvalidFormatError).SetExtError(err).
			AppendMessage("Failed to parse directoryName.")
	}
	if len(rest) != 0 {
		return GeneralName{}, errors.New(errors.CmpInvalidFormatError).AppendMessage("Trailing data in directoryName.")
	}
	gn.dn = true
	return gn, nil
}

func (n GeneralName) rawValue() asn1.RawValue {
	if len(n.raw.FullBytes) == 0 && len(n.raw.Bytes) == 0 {
		return NullDN.raw
	}
	return n.raw
}

// IsDirectoryName reports whether the name is of directoryName choice.
func (n GeneralName) IsDirectoryName() bool {
	return n.dn
}

// IsNull reports whether the name is a NULL-DN (or not set at all).
func (n GeneralName) IsNull() bool {
	if len(n.raw.FullBytes) == 0 && len(n.raw.Bytes) == 0 {
		return true
	}
	return n.dn && len(n.rdn) == 0
}

// DirectoryName returns a copy of the RDN sequence. In case the name is not a directoryName, false is returned.
func (n GeneralName) DirectoryName() (pkix.RDNSequence, bool) {
	if !n.dn {
		return nil, false
	}
	rdn := make(pkix.RDNSequence, len(n.rdn))
	for i, set := range n.rdn {
		rdn[i] = append([]pkix.AttributeTypeAndValue(nil), set...)
	}
	return rdn, true
}

// Equal reports whether the two names denote the same entity. Directory names are compared on their RDN sequence
// ignoring the case, any other choice is compared on its encoding.
func (n GeneralName) Equal(o GeneralName) bool {
	if n.dn != o.dn {
		return false
	}
	if n.dn {
		return strings.EqualFold(n.rdn.String(), o.rdn.String())
	}
	a, b := n.rawValue(), o.rawValue()
	return a.Class == b.Class && a.Tag == b.Tag && string(a.Bytes) == string(b.Bytes)
}

// EqualName reports whether the name is a directoryName equal to the provided name.
func (n GeneralName) EqualName(name pkix.Name) bool {
	return n.Equal(NewDirectoryName(name))
}

func (n GeneralName) String() string {
	if n.dn {
		return n.rdn.String()
	}
	return "<non-directory name>"
}
