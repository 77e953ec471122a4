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

package responder

import (
	"context"
	"crypto/x509"
	"encoding/asn1"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardtime/gocmp/audit"
	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/hmac"
	"github.com/guardtime/gocmp/pdu"
	"github.com/guardtime/gocmp/protection"
	"github.com/guardtime/gocmp/registry"
	"github.com/guardtime/gocmp/sigalg"
	"github.com/guardtime/gocmp/signer"
	"github.com/guardtime/gocmp/test"
	"github.com/guardtime/gocmp/test/utils"
	"github.com/guardtime/gocmp/test/utils/mock"
)

var testLogDir = filepath.Join("..", "test", "out")

func TestUnitResponder(t *testing.T) {
	test.SetupLogger(t, testLogDir)

	test.Suite{
		{Func: testValidSignedRequest},
		{Func: testNullRecipientAccepted},
		{Func: testUnsupportedVersion},
		{Func: testNotIntendedRecipient},
		{Func: testDomainComponentNames},
		{Func: testMissingMessageTime},
		{Func: testMessageTimeBias},
		{Func: testMACProtectedRequest},
		{Func: testUnknownSigner},
		{Func: testFaultyRequestor},
		{Func: testForbiddenAlgorithm},
		{Func: testTamperedRequest},
		{Func: testExtraCertSenderMismatch},
		{Func: testNoProtection},
		{Func: testTLSClient},
		{Func: testMissingTransactionID},
		{Func: testActionNotPermitted},
		{Func: testUnknownAction},
		{Func: testProcessorFailures},
		{Func: testSigningFailure},
		{Func: testOutOfService},
		{Func: testSendResponderCert},
		{Func: testProcessInvalidInput},
		{Func: testNilRequest},
		{Func: testNewInvalid},
	}.Runner(t)
}

var testActionResult = []byte{0x0c, 0x04, 't', 'e', 's', 't'}

type fixture struct {
	ca        *utils.Identity
	requestor *utils.Identity
	reqSigner *signer.Pool
	reg       *registry.Registry
	rec       *audit.Recorder
	now       time.Time
	processor Processor
	resp      *Responder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWith(t, utils.NewIdentity(t, "ca"), utils.NewIdentity(t, "requestor"), opts...)
}

func newFixtureWith(t *testing.T, ca, requestor *utils.Identity, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		ca:        ca,
		requestor: requestor,
		rec:       &audit.Recorder{},
		now:       time.Now().UTC().Truncate(time.Second),
	}

	var err error
	f.reqSigner, err = signer.New(f.requestor.Key, f.requestor.Cert)
	require.NoError(t, err)
	f.reg, err = registry.New(&registry.Requestor{
		Label:      "requestor",
		Name:       f.requestor.Name().ToRDNSequence(),
		Cert:       f.requestor.Cert,
		Permission: registry.PermGetCRL,
	})
	require.NoError(t, err)

	d := NewActionDispatcher()
	require.NoError(t, d.Register(pdu.ActionGetCAInfo, 0, func(context.Context, *Request, []byte) ([]byte, error) {
		return testActionResult, nil
	}))
	require.NoError(t, d.Register(pdu.ActionGenCRL, registry.PermGenCRL, func(context.Context, *Request, []byte) ([]byte, error) {
		return nil, nil
	}))
	f.processor = d

	caSigner, err := signer.New(f.ca.Key, f.ca.Cert)
	require.NoError(t, err)
	f.resp = f.newResponder(t, append([]Option{OptSigner(caSigner)}, opts...)...)
	return f
}

func (f *fixture) newResponder(t *testing.T, opts ...Option) *Responder {
	t.Helper()

	base := []Option{
		OptName(f.ca.Name()),
		OptRequestors(f.reg),
		OptProcessor(ProcessorFunc(func(ctx context.Context, req *Request) (*pdu.Body, error) {
			return f.processor.Process(ctx, req)
		})),
		OptAuditSink(f.rec),
		OptClock(func() time.Time { return f.now }),
	}
	r, err := New(append(base, opts...)...)
	require.NoError(t, err)
	return r
}

// request returns an unprotected vendor action request of the fixture requestor.
func (f *fixture) request(t *testing.T, action pdu.Action, settings ...pdu.HeaderSetting) *pdu.Envelope {
	t.Helper()

	itv, err := pdu.EncodeAction(action, nil)
	require.NoError(t, err)
	base := []pdu.HeaderSetting{pdu.HdrSetMessageTime(f.now)}
	hdr, err := pdu.NewHeader(pdu.NewDirectoryName(f.requestor.Name()), pdu.NewDirectoryName(f.ca.Name()),
		append(base, settings...)...)
	require.NoError(t, err)
	env, err := pdu.NewEnvelope(hdr, pdu.NewGenMsgBody(itv))
	require.NoError(t, err)
	return env
}

func (f *fixture) sign(t *testing.T, env *pdu.Envelope) *pdu.Envelope {
	t.Helper()

	signed, err := protection.Protect(context.Background(), env, f.reqSigner, true)
	require.NoError(t, err)
	return signed
}

// exchange sends the request over the wire format and returns the decoded response.
func (f *fixture) exchange(t *testing.T, req *pdu.Envelope, tlsCert *x509.Certificate) *pdu.Envelope {
	t.Helper()

	raw, err := req.Encode()
	require.NoError(t, err)
	respRaw, err := f.resp.Process(context.Background(), raw, tlsCert)
	require.NoError(t, err)
	resp, err := pdu.Decode(respRaw)
	require.NoError(t, err)
	return resp
}

func requireRejection(t *testing.T, resp *pdu.Envelope, fi pdu.FailureInfo, text string) {
	t.Helper()

	body, err := resp.Body()
	require.NoError(t, err)
	ec, err := body.ErrorContent()
	require.NoError(t, err)
	assert.Equal(t, pdu.StatusRejection, ec.Status.Status)
	assert.Equal(t, fi, ec.Status.FailureInfo, "failure info: %s", ec.Status.FailureInfo)
	assert.Equal(t, text, ec.Status.Text())
}

func requireCorrelated(t *testing.T, req, resp *pdu.Envelope) {
	t.Helper()

	reqHdr, _ := req.Header()
	respHdr, _ := resp.Header()
	reqTid, _ := reqHdr.TransactionID()
	respTid, _ := respHdr.TransactionID()
	assert.Equal(t, reqTid, respTid)
	reqNonce, _ := reqHdr.SenderNonce()
	respRecipNonce, _ := respHdr.RecipNonce()
	assert.Equal(t, reqNonce, respRecipNonce)
	respNonce, _ := respHdr.SenderNonce()
	assert.Len(t, respNonce, 16)
	assert.NotEqual(t, reqNonce, respNonce)

	reqSender, _ := reqHdr.Sender()
	respRecipient, _ := respHdr.Recipient()
	assert.True(t, reqSender.Equal(respRecipient))
}

func (f *fixture) lastEvent(t *testing.T) *audit.Event {
	t.Helper()

	events := f.rec.Events()
	require.NotEmpty(t, events)
	return events[len(events)-1]
}

func testValidSignedRequest(t *testing.T, _ ...interface{}) {
	f := newFixture(t)
	req := f.sign(t, f.request(t, pdu.ActionGetCAInfo))

	resp := f.exchange(t, req, nil)
	requireCorrelated(t, req, resp)

	respHdr, _ := resp.Header()
	sender, _ := respHdr.Sender()
	assert.True(t, sender.EqualName(f.ca.Name()))
	msgTime, _ := respHdr.MessageTime()
	require.NotNil(t, msgTime)
	assert.True(t, f.now.Equal(*msgTime))

	// The response to a signed request is signed by the responder.
	require.True(t, resp.IsProtected())
	v, err := protection.NewVerifier()
	require.NoError(t, err)
	res, err := v.Verify(resp, func(pdu.GeneralName, []*x509.Certificate) (*x509.Certificate, bool) {
		return f.ca.Cert, true
	})
	require.NoError(t, err)
	assert.Equal(t, protection.Valid, res.Outcome)

	body, _ := resp.Body()
	info, err := body.InfoTypeAndValues()
	require.NoError(t, err)
	require.Len(t, info, 1)
	payload, err := pdu.ExpectAction(info[0], pdu.ActionGetCAInfo)
	require.NoError(t, err)
	assert.Equal(t, testActionResult, payload)

	events := f.rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.StatusSuccessful, events[0].Status)
	tid, _ := events[0].Field(audit.FieldTid)
	assert.Equal(t, respHdr.Tid(), tid)
	label, _ := events[0].Field(audit.FieldRequestor)
	assert.Equal(t, "requestor", label)
	action, _ := events[0].Field(audit.FieldAction)
	assert.Equal(t, "GetCAInfo", action)
	msgID, ok := events[0].Field(audit.FieldMessageID)
	assert.True(t, ok)
	assert.NotEmpty(t, msgID)
}

func testNullRecipientAccepted(t *testing.T, _ ...interface{}) {
	f := newFixture(t)
	req := f.sign(t, f.request(t, pdu.ActionGetCAInfo, pdu.HdrSetRecipient(pdu.NullDN)))

	resp := f.exchange(t, req, nil)
	body, _ := resp.Body()
	typ, _ := body.Type()
	assert.Equal(t, pdu.BodyGenRep, typ)
}

func testUnsupportedVersion(t *testing.T, _ ...interface{}) {
	f := newFixture(t)
	req := f.sign(t, f.request(t, pdu.ActionGetCAInfo, pdu.HdrSetVersion(1)))

	resp := f.exchange(t, req, nil)
	requireRejection(t, resp, pdu.UnsupportedVersion, "")
	requireCorrelated(t, req, resp)
	assert.False(t, resp.IsProtected())

	hdr, _ := resp.Header()
	pvno, _ := hdr.Version()
	assert.Equal(t, 1, pvno)
	assert.Equal(t, audit.StatusFailed, f.lastEvent(t).Status)
}

func testNotIntendedRecipient(t *testing.T, _ ...interface{}) {
	f := newFixture(t)
	req := f.sign(t, f.request(t, pdu.ActionGetCAInfo,
		pdu.HdrSetRecipient(pdu.NewDirectoryName(utils.TestName("other ca")))))

	resp := f.exchange(t, req, nil)
	requireRejection(t, resp, pdu.BadRequest, TextNotIntendedRecipient)
	requireCorrelated(t, req, resp)
	reason, _ := f.lastEvent(t).Field(audit.FieldReason)
	assert.Equal(t, TextNotIntendedRecipient, reason)
}

func testDomainComponentNames(t *testing.T, _ ...interface{}) {
	f := newFixtureWith(t,
		utils.NewIdentityWithSubject(t, utils.TestDCName("example", "ca")),
		utils.NewIdentityWithSubject(t, utils.TestDCName("example", "requestor")))

	// Responder name defaults to the raw subject of the signer certificate.
	caSigner, err := signer.New(f.ca.Key, f.ca.Cert)
	require.NoError(t, err)
	f.resp, err = New(
		OptSigner(caSigner),
		OptRequestors(f.reg),
		OptProcessor(f.processor),
		OptAuditSink(f.rec),
		OptClock(func() time.Time { return f.now }),
	)
	require.NoError(t, err)
	caName, err := pdu.NewDirectoryNameFromCert(f.ca.Cert)
	require.NoError(t, err)
	assert.True(t, f.resp.Name().Equal(caName))

	req := f.sign(t, f.request(t, pdu.ActionGetCAInfo,
		pdu.HdrSetRecipient(pdu.NewDirectoryName(utils.TestDCName("attacker", "ca")))))
	resp := f.exchange(t, req, nil)
	requireRejection(t, resp, pdu.BadRequest, TextNotIntendedRecipient)
	requireCorrelated(t, req, resp)

	req = f.sign(t, f.request(t, pdu.ActionGetCAInfo, pdu.HdrSetRecipient(caName)))
	resp = f.exchange(t, req, nil)
	body, _ := resp.Body()
	typ, _ := body.Type()
	assert.Equal(t, pdu.BodyGenRep, typ)
	hdr, _ := resp.Header()
	sender, _ := hdr.Sender()
	assert.True(t, sender.Equal(caName), "Response sender must carry every subject attribute.")

	// A requestor that differs only in the domain component is not resolved by name.
	stranger := utils.NewIdentityWithSubject(t, utils.TestDCName("attacker", "requestor"))
	strangerSigner, err := signer.New(stranger.Key, stranger.Cert)
	require.NoError(t, err)
	hdrReq, err := pdu.NewHeader(pdu.NewDirectoryName(stranger.Name()), caName, pdu.HdrSetMessageTime(f.now))
	require.NoError(t, err)
	itv, err := pdu.EncodeAction(pdu.ActionGetCAInfo, nil)
	require.NoError(t, err)
	env, err := pdu.NewEnvelope(hdrReq, pdu.NewGenMsgBody(itv))
	require.NoError(t, err)
	signed, err := protection.Protect(context.Background(), env, strangerSigner, false)
	require.NoError(t, err)
	requireRejection(t, f.exchange(t, signed, nil), pdu.BadMessageCheck, TextSenderNotAuthorized)
}

func testMissingMessageTime(t *testing.T, _ ...interface{}) {
	f := newFixture(t, OptControl(Control{MessageTimeRequired: true, MessageTimeBias: time.Minute}))
	req := f.sign(t, f.request(t, pdu.ActionGetCAInfo, pdu.HdrNoMessageTime()))
	requireRejection(t, f.exchange(t, req, nil), pdu.MissingTimeStamp, TextMissingTimeStamp)

	// Message time is optional by default.
	f = newFixture(t)
	req = f.sign(t, f.request(t, pdu.ActionGetCAInfo, pdu.HdrNoMessageTime()))
	body, _ := f.exchange(t, req, nil).Body()
	typ, _ := body.Type()
	assert.Equal(t, pdu.BodyGenRep, typ)
}

func testMessageTimeBias(t *testing.T, _ ...interface{}) {
	f := newFixture(t, OptControl(Control{MessageTimeBias: -300 * time.Second}))

	for _, tc := range []struct {
		offset time.Duration
		fi     pdu.FailureInfo
		text   string
	}{
		{301 * time.Second, pdu.BadTime, TextTimeInFuture},
		{-301 * time.Second, pdu.BadTime, TextTimeTooOld},
		{300 * time.Second, 0, ""},
		{-300 * time.Second, 0, ""},
	} {
		req := f.sign(t, f.request(t, pdu.ActionGetCAInfo, pdu.HdrSetMessageTime(f.now.Add(tc.offset))))
		resp := f.exchange(t, req, nil)
		if tc.fi == 0 {
			body, _ := resp.Body()
			typ, _ := body.Type()
			assert.Equal(t, pdu.BodyGenRep, typ, "offset %s", tc.offset)
			continue
		}
		requireRejection(t, resp, tc.fi, tc.text)
		requireCorrelated(t, req, resp)
	}

	// Ten minutes old request against the five minute bias.
	f = newFixture(t, OptControl(Control{MessageTimeBias: 5 * time.Minute}))
	req := f.sign(t, f.request(t, pdu.ActionGetCAInfo, pdu.HdrSetMessageTime(f.now.Add(-10*time.Minute))))
	resp := f.exchange(t, req, nil)
	requireRejection(t, resp, pdu.BadTime, TextTimeTooOld)
	requireCorrelated(t, req, resp)
}

func testMACProtectedRequest(t *testing.T, _ ...interface{}) {
	f := newFixture(t)
	params, err := hmac.NewParams(hmac.HMACWithSHA256)
	require.NoError(t, err)
	req, err := protection.ProtectMAC(f.request(t, pdu.ActionGetCAInfo), params, []byte("secret"))
	require.NoError(t, err)

	resp := f.exchange(t, req, nil)
	requireRejection(t, resp, pdu.BadMessageCheck, TextNotSignatureBased)
	requireCorrelated(t, req, resp)
	assert.False(t, resp.IsProtected())
}

func testUnknownSigner(t *testing.T, _ ...interface{}) {
	f := newFixture(t)
	stranger := utils.NewIdentity(t, "stranger")
	pool, err := signer.New(stranger.Key, stranger.Cert)
	require.NoError(t, err)

	itv, _ := pdu.EncodeAction(pdu.ActionGetCAInfo, nil)
	hdr, err := pdu.NewHeader(pdu.NewDirectoryName(stranger.Name()), pdu.NewDirectoryName(f.ca.Name()),
		pdu.HdrSetMessageTime(f.now))
	require.NoError(t, err)
	env, _ := pdu.NewEnvelope(hdr, pdu.NewGenMsgBody(itv))
	req, err := protection.Protect(context.Background(), env, pool, true)
	require.NoError(t, err)

	requireRejection(t, f.exchange(t, req, nil), pdu.BadMessageCheck, TextSenderNotAuthorized)
}

func testFaultyRequestor(t *testing.T, _ ...interface{}) {
	f := newFixture(t)
	require.NoError(t, f.reg.Replace(&registry.Requestor{
		Label:      "requestor",
		Name:       f.requestor.Name().ToRDNSequence(),
		Permission: registry.PermAll,
	}))

	req := f.sign(t, f.request(t, pdu.ActionGetCAInfo))
	requireRejection(t, f.exchange(t, req, nil), pdu.BadMessageCheck, TextSenderNotAuthorized)
}

func testForbiddenAlgorithm(t *testing.T, _ ...interface{}) {
	validator, err := sigalg.NewValidator("SHA256withRSA")
	require.NoError(t, err)
	f := newFixture(t, OptValidator(validator))

	req := f.sign(t, f.request(t, pdu.ActionGetCAInfo))
	requireRejection(t, f.exchange(t, req, nil), pdu.BadMessageCheck, TextAlgorithmForbidden)
}

func testTamperedRequest(t *testing.T, _ ...interface{}) {
	f := newFixture(t)
	req := f.sign(t, f.request(t, pdu.ActionGetCAInfo))

	prot, err := req.Protection()
	require.NoError(t, err)
	sig := append([]byte{}, prot.Value...)
	sig[len(sig)/2] ^= 0xff
	tampered, err := req.WithProtection(sig, prot.Certificates)
	require.NoError(t, err)

	requireRejection(t, f.exchange(t, tampered, nil), pdu.BadMessageCheck, TextInvalidSignature)
}

func testExtraCertSenderMismatch(t *testing.T, _ ...interface{}) {
	f := newFixture(t)
	// Registered certificate, but a different sender name.
	req := f.sign(t, f.request(t, pdu.ActionGetCAInfo,
		pdu.HdrSetSender(pdu.NewDirectoryName(utils.TestName("impostor")))))

	requireRejection(t, f.exchange(t, req, nil), pdu.BadMessageCheck, TextSenderNotAuthorized)
}

func testNoProtection(t *testing.T, _ ...interface{}) {
	f := newFixture(t)
	req := f.request(t, pdu.ActionGetCAInfo)

	resp := f.exchange(t, req, nil)
	requireRejection(t, resp, pdu.BadMessageCheck, TextNoProtection)
	requireCorrelated(t, req, resp)
}

func testTLSClient(t *testing.T, _ ...interface{}) {
	f := newFixture(t)
	req := f.request(t, pdu.ActionGetCAInfo)

	// Authenticated by the TLS client certificate, the response is not signed.
	resp := f.exchange(t, req, f.requestor.Cert)
	assert.False(t, resp.IsProtected())
	body, _ := resp.Body()
	typ, _ := body.Type()
	assert.Equal(t, pdu.BodyGenRep, typ)

	other := utils.NewIdentity(t, "requestor")
	requireRejection(t, f.exchange(t, req, other.Cert), pdu.BadMessageCheck, TextTLSClientNotAuthorized)
}

func testMissingTransactionID(t *testing.T, _ ...interface{}) {
	f := newFixture(t)
	req := f.request(t, pdu.ActionGetCAInfo, pdu.HdrSetTransactionID(nil))

	resp := f.exchange(t, req, nil)
	requireRejection(t, resp, pdu.BadMessageCheck, TextNoProtection)
	hdr, _ := resp.Header()
	tid, _ := hdr.TransactionID()
	assert.Len(t, tid, 10)
}

func testActionNotPermitted(t *testing.T, _ ...interface{}) {
	f := newFixture(t)
	req := f.sign(t, f.request(t, pdu.ActionGenCRL))

	resp := f.exchange(t, req, nil)
	requireRejection(t, resp, pdu.NotAuthorized, "gen_crl is not permitted")
	requireCorrelated(t, req, resp)
	// Business failures of signed requests are signed.
	assert.True(t, resp.IsProtected())
	assert.Equal(t, audit.StatusFailed, f.lastEvent(t).Status)
}

func testUnknownAction(t *testing.T, _ ...interface{}) {
	f := newFixture(t)
	req := f.sign(t, f.request(t, pdu.ActionRemoveExpiredCerts))
	requireRejection(t, f.exchange(t, req, nil), pdu.BadRequest, "unsupported action 4")

	// Not a general message.
	hdr, _ := req.Header()
	opaque, err := pdu.NewOpaqueBody(0, []byte{0x30, 0x00})
	require.NoError(t, err)
	env, err := pdu.NewEnvelope(hdr, opaque)
	require.NoError(t, err)
	requireRejection(t, f.exchange(t, f.sign(t, env), nil), pdu.BadRequest, "unsupported type 0")

	// General message without the vendor action.
	other := pdu.InfoTypeAndValue{Type: asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 4, 6}}
	env, err = pdu.NewEnvelope(hdr, pdu.NewGenMsgBody(other))
	require.NoError(t, err)
	requireRejection(t, f.exchange(t, f.sign(t, env), nil), pdu.BadRequest, "unsupported general message type")
}

func testProcessorFailures(t *testing.T, _ ...interface{}) {
	f := newFixture(t)

	for _, p := range []ProcessorFunc{
		func(context.Context, *Request) (*pdu.Body, error) {
			return nil, errors.New(errors.CmpIoError).AppendMessage("Database is down.")
		},
		func(context.Context, *Request) (*pdu.Body, error) { return nil, nil },
		func(context.Context, *Request) (*pdu.Body, error) { panic("CA operation bug") },
	} {
		f.processor = p
		req := f.sign(t, f.request(t, pdu.ActionGetCAInfo))
		resp := f.exchange(t, req, nil)
		requireRejection(t, resp, pdu.SystemFailure, "")
		requireCorrelated(t, req, resp)
		assert.Equal(t, audit.StatusError, f.lastEvent(t).Status)
	}

	// Wrapped operation errors keep their failure information.
	f.processor = ProcessorFunc(func(context.Context, *Request) (*pdu.Body, error) {
		return nil, errors.CmpErr(NewOperationError(pdu.BadCertTemplate, "bad template"))
	})
	req := f.sign(t, f.request(t, pdu.ActionGetCAInfo))
	requireRejection(t, f.exchange(t, req, nil), pdu.BadCertTemplate, "bad template")
}

func testSigningFailure(t *testing.T, _ ...interface{}) {
	f := newFixture(t)
	f.resp = f.newResponder(t, OptSigner(&mock.Signer{
		Alg:  sigalg.ECDSAWithSHA256,
		Cert: f.ca.Cert,
		Err:  errors.New(errors.CmpNoIdleSigner),
	}))

	req := f.sign(t, f.request(t, pdu.ActionGetCAInfo))
	resp := f.exchange(t, req, nil)
	assert.False(t, resp.IsProtected())
	requireRejection(t, resp, pdu.SystemFailure, TextCouldNotSign)
	requireCorrelated(t, req, resp)

	ev := f.lastEvent(t)
	assert.Equal(t, audit.LevelError, ev.Level)
	reason, _ := ev.Field(audit.FieldReason)
	assert.Equal(t, TextCouldNotSign, reason)
}

func testOutOfService(t *testing.T, _ ...interface{}) {
	f := newFixture(t)
	f.resp = f.newResponder(t)
	assert.False(t, f.resp.IsOnService())
	assert.True(t, f.resp.Name().EqualName(f.ca.Name()))

	req := f.sign(t, f.request(t, pdu.ActionGetCAInfo))
	requireRejection(t, f.exchange(t, req, nil), pdu.SystemFailure, TextCouldNotSign)

	// Requests authenticated by TLS are still served.
	body, _ := f.exchange(t, f.request(t, pdu.ActionGetCAInfo), f.requestor.Cert).Body()
	typ, _ := body.Type()
	assert.Equal(t, pdu.BodyGenRep, typ)
}

func testSendResponderCert(t *testing.T, _ ...interface{}) {
	f := newFixture(t, OptControl(Control{MessageTimeBias: time.Minute, SendResponderCert: true}))
	req := f.sign(t, f.request(t, pdu.ActionGetCAInfo))

	resp := f.exchange(t, req, nil)
	certs, err := resp.ExtraCerts()
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, f.ca.Cert.Raw, certs[0].Raw)

	f = newFixture(t)
	resp = f.exchange(t, f.sign(t, f.request(t, pdu.ActionGetCAInfo)), nil)
	certs, _ = resp.ExtraCerts()
	assert.Empty(t, certs)
}

func testProcessInvalidInput(t *testing.T, _ ...interface{}) {
	f := newFixture(t)

	_, err := f.resp.Process(context.Background(), []byte{0x30, 0x03, 0x02, 0x01}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CmpInvalidFormatError, errors.CodeOf(err))
	_, err = f.resp.Process(context.Background(), nil, nil)
	assert.Equal(t, errors.CmpInvalidArgumentError, errors.CodeOf(err))
	assert.Empty(t, f.rec.Events())
}

func testNilRequest(t *testing.T, _ ...interface{}) {
	f := newFixture(t)

	var resp *pdu.Envelope
	require.NotPanics(t, func() { resp = f.resp.ProcessMessage(context.Background(), nil, nil) })
	requireRejection(t, resp, pdu.SystemFailure, "")
	_, err := resp.Encode()
	assert.NoError(t, err)
	assert.Len(t, f.rec.Events(), 1)
}

func testNewInvalid(t *testing.T, _ ...interface{}) {
	f := newFixture(t)

	_, err := New()
	assert.Equal(t, errors.CmpInvalidStateError, errors.CodeOf(err))
	_, err = New(OptRequestors(f.reg), OptProcessor(f.processor))
	assert.Equal(t, errors.CmpInvalidStateError, errors.CodeOf(err), "name can not be resolved")
	_, err = New(nil)
	assert.Equal(t, errors.CmpInvalidArgumentError, errors.CodeOf(err))
	_, err = New(OptSigner(nil))
	assert.Equal(t, errors.CmpInvalidArgumentError, errors.CodeOf(err))

	// Name defaults to the signer certificate subject.
	caSigner, err := signer.New(f.ca.Key, f.ca.Cert)
	require.NoError(t, err)
	r, err := New(OptRequestors(f.reg), OptProcessor(f.processor), OptSigner(caSigner))
	require.NoError(t, err)
	assert.True(t, r.Name().EqualName(f.ca.Name()))
	assert.True(t, r.IsOnService())
}
