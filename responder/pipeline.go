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
	"bytes"
	"context"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/guardtime/gocmp/audit"
	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/log"
	"github.com/guardtime/gocmp/pdu"
	"github.com/guardtime/gocmp/protection"
	"github.com/guardtime/gocmp/registry"
)

// Status texts of the rejected requests.
const (
	TextNotIntendedRecipient   = "I am not the intended recipient"
	TextMissingTimeStamp       = "missing time-stamp"
	TextTimeInFuture           = "message time is in the future"
	TextTimeTooOld             = "message too old"
	TextInvalidSignature       = "request is protected by signature but invalid"
	TextNotSignatureBased      = "request is not protected by signature"
	TextSenderNotAuthorized    = "request is protected by signature but the requestor is not authorized"
	TextAlgorithmForbidden     = "request is protected by signature but the protection algorithm is forbidden"
	TextProtectionNotVerified  = "request has invalid signature based protection"
	TextTLSClientNotAuthorized = "requestor (TLS client certificate) is not authorized"
	TextNoProtection           = "request has no protection"
	TextCouldNotSign           = "could not sign the PKIMessage"
)

var outcomeTexts = map[protection.Outcome]string{
	protection.Invalid:             TextInvalidSignature,
	protection.NotSignatureBased:   TextNotSignatureBased,
	protection.SenderNotAuthorized: TextSenderNotAuthorized,
	protection.AlgorithmForbidden:  TextAlgorithmForbidden,
}

// Process decodes the received PKI message, processes it and returns the encoded response. An error is returned only
// in case the request can not be decoded or the response can not be encoded.
//
// The tlsCert is the client certificate of the TLS connection the request was received over, nil if not available.
func (r *Responder) Process(ctx context.Context, raw []byte, tlsCert *x509.Certificate) ([]byte, error) {
	if r == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}

	req, err := pdu.Decode(raw)
	if err != nil {
		log.Warning("Failed to decode PKI message: ", err)
		return nil, err
	}

	resp := r.ProcessMessage(ctx, req, tlsCert)
	der, err := resp.Encode()
	if err != nil {
		log.Error("Failed to encode PKI message: ", err)
		return nil, errors.CmpErr(err).AppendMessage("Failed to encode response.")
	}
	return der, nil
}

// ProcessMessage processes the decoded request and returns the response. A well formed response is always returned;
// failures are answered with an error message.
func (r *Responder) ProcessMessage(ctx context.Context, req *pdu.Envelope, tlsCert *x509.Certificate) (resp *pdu.Envelope) {
	if ctx == nil {
		ctx = context.Background()
	}
	event := audit.NewEvent(auditApplication, auditEventName)
	defer func() { audit.Emit(r.sink, event) }()

	x := &exchange{
		r:     r,
		ctx:   ctx,
		req:   req,
		event: event,
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Tid(fmt.Sprintf("%x", x.tid)).Errorf("panic while processing PKI message: %v", rec)
			event.AddField(audit.FieldReason, "internal error")
			event.Finish(audit.StatusError)
			resp = x.errorEnvelope(pdu.ErrorContent{Status: rejection(pdu.SystemFailure, "")})
		}
	}()
	return x.run(tlsCert)
}

// exchange is the state of a single request processing.
type exchange struct {
	r     *Responder
	ctx   context.Context
	req   *pdu.Envelope
	hdr   *pdu.Header
	tid   []byte
	event *audit.Event
}

func rejection(fi pdu.FailureInfo, text string) pdu.StatusInfo {
	si := pdu.StatusInfo{Status: pdu.StatusRejection, FailureInfo: fi}
	if text != "" {
		si.StatusText = []string{text}
	}
	return si
}

func (x *exchange) reject(fi pdu.FailureInfo, text, reason string) *pdu.Envelope {
	if reason == "" {
		reason = text
	}
	x.event.AddField(audit.FieldReason, reason)
	x.event.Finish(audit.StatusFailed)
	return x.errorEnvelope(pdu.ErrorContent{Status: rejection(fi, text)})
}

func (x *exchange) run(tlsCert *x509.Certificate) *pdu.Envelope {
	hdr, err := x.req.Header()
	if err != nil {
		panic(err)
	}
	x.hdr = hdr

	if x.tid, _ = hdr.TransactionID(); len(x.tid) == 0 {
		if x.tid, err = pdu.NewNonce(missingTidLen); err != nil {
			panic(err)
		}
	}
	tidStr := fmt.Sprintf("%x", x.tid)
	x.event.AddField(audit.FieldTid, tidStr)
	if body, err := x.req.Body(); err == nil {
		if typ, err := body.Type(); err == nil {
			x.event.AddField(audit.FieldRequestType, fmt.Sprintf("%d", typ))
		}
	}

	if resp := x.checkHeader(tidStr); resp != nil {
		return resp
	}

	requestor, text := x.authenticate(tidStr, tlsCert)
	if text != "" {
		return x.reject(pdu.BadMessageCheck, text, "")
	}
	x.event.AddField(audit.FieldRequestor, requestor.Label)

	resp := x.dispatch(requestor)
	if x.req.IsProtected() {
		resp = x.protect(resp)
	}
	return resp
}

// checkHeader verifies the protocol version, the recipient and the message time. A non-nil response is returned in
// case the request is rejected.
func (x *exchange) checkHeader(tidStr string) *pdu.Envelope {
	pvno, _ := x.hdr.Version()
	if pvno != pdu.Version2 {
		log.Tid(tidStr).Warningf("unsupported version %d", pvno)
		return x.reject(pdu.UnsupportedVersion, "", fmt.Sprintf("unsupported version %d", pvno))
	}

	recipient, _ := x.hdr.Recipient()
	if !recipient.IsNull() && !recipient.Equal(x.r.name) {
		log.Tid(tidStr).Warningf("I am not the intended recipient, but '%s'", recipient)
		return x.reject(pdu.BadRequest, TextNotIntendedRecipient, "")
	}

	msgTime, _ := x.hdr.MessageTime()
	if msgTime == nil {
		if x.r.control.MessageTimeRequired {
			return x.reject(pdu.MissingTimeStamp, TextMissingTimeStamp, "")
		}
		return nil
	}
	allowed := int64(x.r.control.MessageTimeBias / time.Second)
	bias := int64(msgTime.Sub(x.r.now()) / time.Second)
	if bias > allowed {
		return x.reject(pdu.BadTime, TextTimeInFuture, "")
	}
	if -bias > allowed {
		return x.reject(pdu.BadTime, TextTimeTooOld, "")
	}
	return nil
}

// authenticate verifies the request protection and resolves the requestor. In case the request is not authenticated,
// the status text is returned.
func (x *exchange) authenticate(tidStr string, tlsCert *x509.Certificate) (*registry.Requestor, string) {
	if x.req.IsProtected() {
		var requestor *registry.Requestor
		res, err := x.r.verifier.Verify(x.req, x.r.resolver(tidStr, &requestor))
		if err != nil {
			log.Tid(tidStr).Errorf("could not verify the signature: %v", err)
			return nil, TextProtectionNotVerified
		}
		if !res.IsValid() {
			return nil, outcomeTexts[res.Outcome]
		}
		return requestor, ""
	}

	if tlsCert != nil {
		sender, _ := x.hdr.Sender()
		requestor := x.r.lookup(sender, nil)
		if requestor == nil {
			requestor, _ = x.r.requestors.LookupByCertificate(tlsCert)
		}
		if requestor == nil || requestor.IsFaulty() || !bytes.Equal(requestor.Cert.Raw, tlsCert.Raw) {
			log.Tid(tidStr).Warningf("not authorized requestor (TLS client '%s')", tlsCert.Subject)
			return nil, TextTLSClientNotAuthorized
		}
		return requestor, ""
	}
	return nil, TextNoProtection
}

// resolver returns the protection resolver capturing the matched requestor.
func (r *Responder) resolver(tidStr string, found **registry.Requestor) protection.ResolverFunc {
	return func(sender pdu.GeneralName, certs []*x509.Certificate) (*x509.Certificate, bool) {
		requestor := r.lookup(sender, certs)
		if requestor == nil {
			return nil, false
		}
		if requestor.IsFaulty() {
			log.Tid(tidStr).Warningf("requestor '%s' is faulty", requestor.Label)
			return nil, false
		}
		*found = requestor
		return requestor.Cert, true
	}
}

// lookup resolves the requestor by the first extra certificate and then by the sender name.
func (r *Responder) lookup(sender pdu.GeneralName, certs []*x509.Certificate) *registry.Requestor {
	if len(certs) != 0 {
		if requestor, ok := r.requestors.LookupByCertificate(certs[0]); ok {
			if sender.IsNull() || sender.Equal(requestor.DirectoryName()) {
				return requestor
			}
			log.Warning(fmt.Sprintf("Sender '%s' does not match the requestor '%s'.", sender, requestor.Label))
			return nil
		}
	}
	if requestor, ok := r.requestors.LookupByName(sender); ok {
		return requestor
	}
	return nil
}

// dispatch passes the authenticated request to the CA operation and wraps the result.
func (x *exchange) dispatch(requestor *registry.Requestor) *pdu.Envelope {
	msgID, _ := x.event.Field(audit.FieldMessageID)
	body, _ := x.req.Body()
	req := &Request{
		Envelope:      x.req,
		Header:        x.hdr,
		Body:          body,
		Requestor:     requestor,
		TransactionID: append([]byte(nil), x.tid...),
		MessageID:     msgID,
		Event:         x.event,
	}

	respBody, err := x.r.processor.Process(x.ctx, req)
	if err != nil {
		if opErr, ok := asOperationError(err); ok {
			log.Tid(req.Tid()).Infof("%s", opErr)
			return x.reject(opErr.FailureInfo, opErr.Text, "")
		}
		log.Tid(req.Tid()).Errorf("CA operation failed: %v", err)
		x.event.AddField(audit.FieldReason, err.Error())
		x.event.Finish(audit.StatusError)
		return x.errorEnvelope(pdu.ErrorContent{Status: rejection(pdu.SystemFailure, "")})
	}
	if respBody == nil {
		log.Tid(req.Tid()).Errorf("CA operation returned no response")
		x.event.AddField(audit.FieldReason, "no response body")
		x.event.Finish(audit.StatusError)
		return x.errorEnvelope(pdu.ErrorContent{Status: rejection(pdu.SystemFailure, "")})
	}

	if x.event.Status == audit.StatusUndefined {
		status := audit.StatusSuccessful
		if typ, _ := respBody.Type(); typ == pdu.BodyError {
			status = audit.StatusFailed
		}
		x.event.Finish(status)
	}
	return x.envelope(respBody)
}

func asOperationError(err error) (*OperationError, bool) {
	for err != nil {
		if opErr, ok := err.(*OperationError); ok {
			return opErr, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// protect signs the response. In case the signing fails, an unprotected systemFailure response is returned.
func (x *exchange) protect(resp *pdu.Envelope) *pdu.Envelope {
	var err error
	if x.r.signer == nil {
		err = errors.New(errors.CmpInvalidStateError).AppendMessage("Responder is out of service.")
	} else {
		var signed *pdu.Envelope
		if signed, err = protection.Protect(x.ctx, resp, x.r.signer, x.r.control.SendResponderCert); err == nil {
			return signed
		}
	}

	log.Tid(fmt.Sprintf("%x", x.tid)).Errorf("could not add protection to the PKI message: %v", err)
	x.event.AddField(audit.FieldReason, TextCouldNotSign)
	x.event.Finish(audit.StatusFailed)
	x.event.Level = audit.LevelError

	hdr, _ := resp.Header()
	failed, err := pdu.NewEnvelope(hdr, pdu.NewErrorBody(pdu.ErrorContent{Status: rejection(pdu.SystemFailure, TextCouldNotSign)}))
	if err != nil {
		panic(err)
	}
	return failed
}

// responseHeader returns the header of a response to the current request.
func (x *exchange) responseHeader() *pdu.Header {
	recipient := pdu.NullDN
	pvno := pdu.Version2
	var nonce []byte
	if x.hdr != nil {
		recipient, _ = x.hdr.Sender()
		pvno, _ = x.hdr.Version()
		nonce, _ = x.hdr.SenderNonce()
	}

	hdr, err := pdu.NewHeader(x.r.name, recipient,
		pdu.HdrSetVersion(pvno),
		pdu.HdrSetMessageTime(x.r.now()),
		pdu.HdrSetTransactionID(x.tid),
		pdu.HdrSetRecipNonce(nonce),
	)
	if err != nil {
		// Only fails if no random values can be generated.
		panic(err)
	}
	return hdr
}

func (x *exchange) envelope(body *pdu.Body) *pdu.Envelope {
	env, err := pdu.NewEnvelope(x.responseHeader(), body)
	if err != nil {
		panic(err)
	}
	return env
}

func (x *exchange) errorEnvelope(content pdu.ErrorContent) *pdu.Envelope {
	return x.envelope(pdu.NewErrorBody(content))
}
