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
	"crypto/x509/pkix"
	"encoding/asn1"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/guardtime/gocmp/test/utils"
)

func TestUnitFailureInfoBitString(t *testing.T) {
	for _, tc := range []struct {
		info      FailureInfo
		bitLength int
		bytes     []byte
	}{
		{BadAlg, 1, []byte{0x80}},
		{BadTime, 4, []byte{0x10}},
		{BadMessageCheck | BadRequest, 3, []byte{0x60}},
		{MissingTimeStamp, 9, []byte{0x00, 0x80}},
		{UnsupportedVersion, 23, []byte{0x00, 0x00, 0x02}},
		{SystemFailure, 26, []byte{0x00, 0x00, 0x00, 0x40}},
	} {
		bs := tc.info.bitString()
		assert.Equal(t, tc.bitLength, bs.BitLength, tc.info.String())
		assert.Equal(t, tc.bytes, bs.Bytes, tc.info.String())
		assert.Equal(t, tc.info, failureInfoFromBitString(bs))
	}
	assert.Equal(t, asn1.BitString{}, FailureInfo(0).bitString())
}

func TestUnitFailureInfoString(t *testing.T) {
	assert.Equal(t, "none", FailureInfo(0).String())
	assert.Equal(t, "badTime", BadTime.String())
	assert.Equal(t, "badMessageCheck, notAuthorized", (BadMessageCheck | NotAuthorized).String())
	assert.Equal(t, "duplicateCertReq", DuplicateCertReq.String())
	assert.Equal(t, "bit31", FailureInfo(1<<31).String())

	assert.True(t, (BadTime | BadPOP).Has(BadTime))
	assert.False(t, BadTime.Has(BadPOP))
	assert.False(t, BadTime.Has(0))

	assert.Equal(t, "rejection", StatusRejection.String())
	assert.Equal(t, "status(42)", PKIStatus(42).String())
}

func TestUnitGeneralName(t *testing.T) {
	a := NewDirectoryName(utils.TestName("Requestor"))
	b := NewDirectoryName(utils.TestName("requestor"))
	c := NewDirectoryName(utils.TestName("other"))

	assert.True(t, a.Equal(b), "Directory names must compare case insensitive.")
	assert.False(t, a.Equal(c))
	assert.True(t, a.EqualName(utils.TestName("REQUESTOR")))
	assert.True(t, a.IsDirectoryName())
	assert.False(t, a.IsNull())

	name, ok := a.DirectoryName()
	assert.True(t, ok)
	assert.Equal(t, a.String(), name.String())

	assert.True(t, NullDN.IsNull())
	assert.True(t, GeneralName{}.IsNull())
	assert.True(t, NewDirectoryName(pkix.Name{}).Equal(NullDN))

	rdn, err := asn1.Marshal(utils.TestName("x").ToRDNSequence())
	assert.NoError(t, err)
	fromDer, err := NewDirectoryNameFromDER(rdn)
	assert.NoError(t, err)
	assert.True(t, fromDer.EqualName(utils.TestName("x")))

	_, err = NewDirectoryNameFromDER([]byte{0x01})
	assert.Error(t, err)

	uri := GeneralName{raw: asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 6, Bytes: []byte("http://ca")}}
	assert.False(t, uri.Equal(a))
	assert.True(t, uri.Equal(uri))
	_, ok = uri.DirectoryName()
	assert.False(t, ok)
}

func TestUnitGeneralNameFromCertKeepsAllAttributes(t *testing.T) {
	ca := utils.NewIdentityWithSubject(t, utils.TestDCName("example", "ca"))
	other := utils.NewIdentityWithSubject(t, utils.TestDCName("attacker", "ca"))

	caName, err := NewDirectoryNameFromCert(ca.Cert)
	assert.NoError(t, err)
	otherName, err := NewDirectoryNameFromCert(other.Cert)
	assert.NoError(t, err)

	assert.False(t, caName.Equal(NewDirectoryName(ca.Cert.Subject)), "Parsed subject drops the domain component.")
	assert.False(t, caName.Equal(otherName), "Names differing only in DC must not be equal.")
	assert.True(t, caName.EqualName(utils.TestDCName("example", "ca")))

	rdn, ok := caName.DirectoryName()
	assert.True(t, ok)
	assert.True(t, NewDirectoryNameFromRDN(rdn).Equal(caName))

	_, err = NewDirectoryNameFromCert(nil)
	assert.Error(t, err)
}
