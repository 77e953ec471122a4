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

package hmac

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/pdu"
	"github.com/guardtime/gocmp/test/utils"
)

var (
	testKey               = "secret"
	testMessage           = "correct horse battery staple"
	sha256testMessageHMAC = utils.StringToBin("f24bedb4e103c9bf78b312b570af224ceb090e0bcda18c2c106943269259cfed")
	sha256testEmptyHMAC   = utils.StringToBin("f9e66e179b6747ae54108f82f8ade8b3c25d76fd30afde6c395822c530196169")
)

func TestUnitHmac(t *testing.T) {
	hsr, err := New(HMACWithSHA256, []byte(testKey))
	if err != nil {
		t.Fatalf("Failed to initialize HMAC hash function: %s.", err)
	}

	if _, err := hsr.Write([]byte(testMessage)); err != nil {
		t.Fatalf("Failed to write to hasher: %s.", err)
	}
	tmp, err := hsr.Sum()
	if err != nil {
		t.Fatalf("Failed to extract MAC: %s.", err)
	}
	assert.Equal(t, sha256testMessageHMAC, tmp)
	assert.Equal(t, 32, hsr.Size())

	hsr.Reset()
	tmp, err = hsr.Sum()
	require.NoError(t, err)
	assert.Equal(t, sha256testEmptyHMAC, tmp)
}

func TestUnitHmacNilReceiver(t *testing.T) {
	var hsr *Hasher

	n, err := hsr.Write([]byte(testMessage))
	assert.Equal(t, -1, n)
	assert.Equal(t, errors.CmpInvalidArgumentError, errors.CodeOf(err))
	_, err = hsr.Sum()
	assert.Error(t, err)
	assert.Equal(t, 0, hsr.Size())
	hsr.Reset()

	_, err = New(Unknown, []byte(testKey))
	assert.Equal(t, errors.CmpUnknownAlgorithm, errors.CodeOf(err))
}

func TestUnitPBMAC1ComputeVerify(t *testing.T) {
	for _, alg := range []Algorithm{HMACWithSHA256, HMACWithSHA384, HMACWithSHA512} {
		p, err := NewParams(alg)
		require.NoError(t, err, alg.String())

		mac, err := Compute(p, []byte(testKey), []byte(testMessage))
		require.NoError(t, err)
		assert.Len(t, mac, p.KeyLength)

		assert.NoError(t, Verify(p, []byte(testKey), []byte(testMessage), mac))
		assert.Equal(t, errors.CmpCryptoFailure, errors.CodeOf(Verify(p, []byte("wrong"), []byte(testMessage), mac)))
		assert.Equal(t, errors.CmpCryptoFailure, errors.CodeOf(Verify(p, []byte(testKey), []byte("tampered"), mac)))
	}

	_, err := NewParams(HMACWithSHA1)
	assert.Error(t, err)

	p, err := NewParams(HMACWithSHA256)
	require.NoError(t, err)
	_, err = Compute(p, nil, []byte(testMessage))
	assert.Equal(t, errors.CmpInvalidArgumentError, errors.CodeOf(err))
}

func TestUnitPBMAC1Identifier(t *testing.T) {
	p, err := NewParams(HMACWithSHA512)
	require.NoError(t, err)

	id, err := p.Identifier()
	require.NoError(t, err)
	assert.True(t, id.Algorithm.Equal(pdu.OIDPBMAC1))
	assert.True(t, pdu.IsMACAlgorithm(id.Algorithm))

	// Pass the identifier through DER as it would be received.
	der, err := asn1.Marshal(id)
	require.NoError(t, err)
	var received pkix.AlgorithmIdentifier
	_, err = asn1.Unmarshal(der, &received)
	require.NoError(t, err)

	parsed, err := ParseIdentifier(received)
	require.NoError(t, err)
	assert.Equal(t, p, parsed)
}

func TestUnitPBMAC1ParseInvalid(t *testing.T) {
	_, err := ParseIdentifier(pkix.AlgorithmIdentifier{Algorithm: pdu.OIDPasswordBasedMac})
	assert.Equal(t, errors.CmpUnknownAlgorithm, errors.CodeOf(err))

	_, err = ParseIdentifier(pkix.AlgorithmIdentifier{Algorithm: pdu.OIDPBMAC1, Parameters: asn1.NullRawValue})
	assert.Error(t, err)

	p, err := NewParams(HMACWithSHA256)
	require.NoError(t, err)
	p.Iterations = MaxIterations + 1
	_, err = p.Identifier()
	assert.Equal(t, errors.CmpInvalidArgumentError, errors.CodeOf(err))
}
