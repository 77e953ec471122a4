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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/test"
	"github.com/guardtime/gocmp/test/utils"
)

func TestUnitEnvelope(t *testing.T) {
	test.SetupLogger(t, testLogDir)

	test.Suite{
		{Func: testEnvelopeRoundTripGenMsg},
		{Func: testEnvelopeRoundTripError},
		{Func: testEnvelopeRoundTripProtected},
		{Func: testEnvelopeRoundTripOpaqueBody},
		{Func: testEnvelopeProtectedPartUsesReceivedBytes},
		{Func: testEnvelopeProtectionKinds},
		{Func: testEnvelopeDecodeInvalid},
		{Func: testEnvelopeWithProtectionNoAlg},
		{Func: testEnvelopeNilReceiver},
	}.Runner(t)
}

func roundTrip(t *testing.T, env *Envelope) *Envelope {
	t.Helper()

	der, err := env.Encode()
	require.NoError(t, err)
	decoded, err := Decode(der)
	require.NoError(t, err)
	again, err := decoded.Encode()
	require.NoError(t, err)
	assert.Equal(t, der, again)

	// Fresh encoding of the decoded values must also be equal.
	hdr, _ := decoded.Header()
	rebuilt, err := hdr.Derive()
	require.NoError(t, err)
	rebuiltDer, err := rebuilt.Encode()
	require.NoError(t, err)
	origDer, err := env.header.Encode()
	require.NoError(t, err)
	assert.Equal(t, origDer, rebuiltDer)
	return decoded
}

func testEnvelopeRoundTripGenMsg(t *testing.T, _ ...interface{}) {
	itv, err := EncodeAction(ActionGetCRLWithSN, []byte{0x02, 0x01, 0x05})
	require.NoError(t, err)

	hdr, err := NewHeader(NewDirectoryName(utils.TestName("client")), NewDirectoryName(utils.TestName("ca")),
		HdrSetFreeText("text"),
		HdrSetRecipNonce([]byte{9, 9, 9}),
	)
	require.NoError(t, err)
	env, err := NewEnvelope(hdr, NewGenMsgBody(itv))
	require.NoError(t, err)

	decoded := roundTrip(t, env)

	dHdr, _ := decoded.Header()
	for _, get := range []func(*Header) ([]byte, error){
		(*Header).TransactionID,
		(*Header).SenderNonce,
		(*Header).RecipNonce,
	} {
		a, _ := get(hdr)
		b, _ := get(dHdr)
		assert.Equal(t, a, b)
	}
	mt, _ := hdr.MessageTime()
	dmt, _ := dHdr.MessageTime()
	assert.True(t, mt.Equal(*dmt))
	sender, _ := dHdr.Sender()
	assert.True(t, sender.EqualName(utils.TestName("client")))

	body, _ := decoded.Body()
	typ, _ := body.Type()
	assert.Equal(t, BodyGenMsg, typ)
	info, err := body.InfoTypeAndValues()
	require.NoError(t, err)
	require.Len(t, info, 1)
	payload, err := ExpectAction(info[0], ActionGetCRLWithSN)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x01, 0x05}, payload)

	p, err := decoded.Protection()
	require.NoError(t, err)
	assert.Equal(t, Unprotected, p.Kind)
	assert.False(t, decoded.IsProtected())
}

func testEnvelopeRoundTripError(t *testing.T, _ ...interface{}) {
	code := int64(-7)
	hdr, err := NewHeader(NullDN, NullDN)
	require.NoError(t, err)
	env, err := NewEnvelope(hdr, NewErrorBody(ErrorContent{
		Status: StatusInfo{
			Status:      StatusRejection,
			FailureInfo: BadTime | SystemFailure,
			StatusText:  []string{"message too old"},
		},
		ErrorCode: &code,
		Details:   []string{"detail"},
	}))
	require.NoError(t, err)

	decoded := roundTrip(t, env)
	body, _ := decoded.Body()
	ec, err := body.ErrorContent()
	require.NoError(t, err)
	assert.Equal(t, StatusRejection, ec.Status.Status)
	assert.Equal(t, BadTime|SystemFailure, ec.Status.FailureInfo)
	assert.Equal(t, "message too old", ec.Status.Text())
	require.NotNil(t, ec.ErrorCode)
	assert.Equal(t, code, *ec.ErrorCode)
	assert.Equal(t, []string{"detail"}, ec.Details)

	_, err = body.InfoTypeAndValues()
	assert.Equal(t, errors.CmpUnexpectedBody, errors.CodeOf(err))
}

func testEnvelopeRoundTripProtected(t *testing.T, _ ...interface{}) {
	id := utils.NewIdentity(t, "signer")
	alg := pkix.AlgorithmIdentifier{Algorithm: asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}}

	hdr, err := NewHeader(NewDirectoryName(id.Name()), NullDN, HdrSetProtectionAlg(&alg))
	require.NoError(t, err)
	env, err := NewEnvelope(hdr, NewGenRepBody())
	require.NoError(t, err)
	protected, err := env.WithProtection([]byte{1, 2, 3, 4}, []*x509.Certificate{id.Cert})
	require.NoError(t, err)

	decoded := roundTrip(t, protected)
	p, err := decoded.Protection()
	require.NoError(t, err)
	assert.Equal(t, SignatureBased, p.Kind)
	assert.True(t, p.Algorithm.Algorithm.Equal(alg.Algorithm))
	assert.Equal(t, []byte{1, 2, 3, 4}, p.Value)
	require.Len(t, p.Certificates, 1)
	assert.True(t, p.Certificates[0].Equal(id.Cert))

	body, _ := decoded.Body()
	info, err := body.InfoTypeAndValues()
	require.NoError(t, err)
	assert.Len(t, info, 0)
}

func testEnvelopeRoundTripOpaqueBody(t *testing.T, _ ...interface{}) {
	// pkiconf [19] NULL
	body, err := NewOpaqueBody(19, []byte{0x05, 0x00})
	require.NoError(t, err)
	hdr, err := NewHeader(NullDN, NullDN)
	require.NoError(t, err)
	env, err := NewEnvelope(hdr, body)
	require.NoError(t, err)

	decoded := roundTrip(t, env)
	dBody, _ := decoded.Body()
	typ, _ := dBody.Type()
	assert.Equal(t, BodyType(19), typ)
	content, err := dBody.Content()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0x00}, content)

	_, err = NewOpaqueBody(BodyGenMsg, nil)
	assert.Error(t, err)
}

func testEnvelopeProtectedPartUsesReceivedBytes(t *testing.T, _ ...interface{}) {
	alg := pkix.AlgorithmIdentifier{Algorithm: asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}}
	hdr, err := NewHeader(NullDN, NullDN, HdrSetProtectionAlg(&alg))
	require.NoError(t, err)
	env, err := NewEnvelope(hdr, NewGenMsgBody())
	require.NoError(t, err)
	part, err := env.ProtectedPart()
	require.NoError(t, err)

	protected, err := env.WithProtection([]byte{0xaa}, nil)
	require.NoError(t, err)
	der, err := protected.Encode()
	require.NoError(t, err)
	decoded, err := Decode(der)
	require.NoError(t, err)

	decodedPart, err := decoded.ProtectedPart()
	require.NoError(t, err)
	assert.Equal(t, part, decodedPart)
}

func testEnvelopeProtectionKinds(t *testing.T, _ ...interface{}) {
	for _, oid := range []asn1.ObjectIdentifier{OIDPasswordBasedMac, OIDPBMAC1, OIDDHBasedMac} {
		alg := pkix.AlgorithmIdentifier{Algorithm: oid}
		hdr, err := NewHeader(NullDN, NullDN, HdrSetProtectionAlg(&alg))
		require.NoError(t, err)
		env, err := NewEnvelope(hdr, NewGenMsgBody())
		require.NoError(t, err)
		env, err = env.WithProtection([]byte{1}, nil)
		require.NoError(t, err)

		p, err := env.Protection()
		require.NoError(t, err)
		assert.Equal(t, MACBased, p.Kind, oid.String())
	}
}

func testEnvelopeDecodeInvalid(t *testing.T, _ ...interface{}) {
	hdr, err := NewHeader(NullDN, NullDN, HdrSetMessageTime(time.Now()))
	require.NoError(t, err)
	env, err := NewEnvelope(hdr, NewGenMsgBody())
	require.NoError(t, err)
	der, err := env.Encode()
	require.NoError(t, err)

	inputs := map[string][]byte{
		"empty":       nil,
		"truncated":   der[:len(der)-3],
		"trailing":    append(append([]byte{}, der...), 0x00),
		"garbage":     {0xde, 0xad, 0xbe, 0xef},
		"not a seq":   {0x02, 0x01, 0x01},
		"bad body":    mustMarshal(t, pkiMessage{Header: asn1.RawValue{FullBytes: mustHeader(t)}, Body: asn1.RawValue{Tag: asn1.TagInteger, Bytes: []byte{1}}}),
		"header kind": mustMarshal(t, pkiMessage{Header: asn1.RawValue{Tag: asn1.TagInteger, Bytes: []byte{1}}, Body: asn1.RawValue{FullBytes: mustBody(t)}}),
	}
	for name, in := range inputs {
		snapshot := append([]byte(nil), in...)
		_, err := Decode(in)
		require.Error(t, err, name)
		assert.Contains(t, []errors.ErrorCode{errors.CmpInvalidFormatError, errors.CmpInvalidArgumentError}, errors.CodeOf(err), name)
		assert.Equal(t, snapshot, append([]byte(nil), in...), "Decode must not modify the input.")
	}
}

func testEnvelopeWithProtectionNoAlg(t *testing.T, _ ...interface{}) {
	hdr, err := NewHeader(NullDN, NullDN)
	require.NoError(t, err)
	env, err := NewEnvelope(hdr, NewGenMsgBody())
	require.NoError(t, err)

	_, err = env.WithProtection([]byte{1}, nil)
	assert.Equal(t, errors.CmpInvalidStateError, errors.CodeOf(err))
	_, err = env.WithProtection(nil, nil)
	assert.Equal(t, errors.CmpInvalidArgumentError, errors.CodeOf(err))
}

func testEnvelopeNilReceiver(t *testing.T, _ ...interface{}) {
	var env *Envelope

	_, err := env.Encode()
	assert.Error(t, err)
	_, err = env.Header()
	assert.Error(t, err)
	_, err = env.Protection()
	assert.Error(t, err)
	assert.False(t, env.IsProtected())

	_, err = NewEnvelope(nil, NewGenMsgBody())
	assert.Error(t, err)
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	der, err := asn1.Marshal(v)
	require.NoError(t, err)
	return der
}

func mustHeader(t *testing.T) []byte {
	t.Helper()
	hdr, err := NewHeader(NullDN, NullDN)
	require.NoError(t, err)
	der, err := hdr.Encode()
	require.NoError(t, err)
	return der
}

func mustBody(t *testing.T) []byte {
	t.Helper()
	der, err := NewGenMsgBody().Encode()
	require.NoError(t, err)
	return der
}
