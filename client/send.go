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

package client

import (
	"bytes"
	"context"
	"crypto/x509"
	"fmt"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/hmac"
	"github.com/guardtime/gocmp/log"
	"github.com/guardtime/gocmp/pdu"
	"github.com/guardtime/gocmp/protection"
)

// Send protects the request, sends it to the responder and returns the correlated response.
//
// The request must not be protected. It is signed in case the request signing is enabled, otherwise it is MAC
// protected in case the MAC secret is configured. The response protection is verified, the outcome is available via
// (Response).ProtectionResult().
func (c *Client) Send(ctx context.Context, req *pdu.Envelope) (*Response, error) {
	if c == nil || req == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	if c.transport == nil {
		return nil, errors.New(errors.CmpInvalidStateError).AppendMessage("Network client has not been created.")
	}
	if req.IsProtected() {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Request is already protected.")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	protected, signed, err := c.protect(ctx, req)
	if err != nil {
		return nil, err
	}
	reqHdr, err := protected.Header()
	if err != nil {
		return nil, err
	}

	reqRaw, err := protected.Encode()
	if err != nil {
		return nil, err
	}

	// In case of a transport error the responder may still have answered with a PKI message.
	respRaw, respErr := c.transport.Receive(ctx, reqRaw)
	if respErr != nil && len(respRaw) == 0 {
		return nil, errors.CmpErr(respErr, errors.CmpNetworkError).AppendMessage("Network client returned error.")
	}
	if len(respRaw) == 0 {
		return nil, errors.New(errors.CmpInvalidFormatError).AppendMessage("Empty response.")
	}
	resp, err := pdu.Decode(respRaw)
	if err != nil {
		if respErr != nil {
			return nil, errors.CmpErr(respErr, errors.CmpNetworkError).AppendMessage("Network client returned error.")
		}
		return nil, errors.CmpErr(err, errors.CmpInvalidFormatError).AppendMessage("Failed to decode response.")
	}
	respHdr, err := resp.Header()
	if err != nil {
		return nil, err
	}
	respBody, err := resp.Body()
	if err != nil {
		return nil, err
	}

	if err := c.correlate(reqHdr, respHdr); err != nil {
		return nil, err
	}

	result := &Response{env: resp, hdr: respHdr, body: respBody}
	if resp.IsProtected() {
		res, err := c.verifier.Verify(resp, c.mirrorResolver(respHdr.Tid()))
		if err != nil {
			return nil, errors.CmpErr(err).AppendMessage("Failed to verify response protection.")
		}
		result.result = &res
	} else if signed {
		if typ, _ := respBody.Type(); typ != pdu.BodyError {
			return nil, errors.New(errors.CmpResponseNotProtected).AppendMessage("Response is not signed.")
		}
	}
	return result, nil
}

// protect returns the protected request and whether it was signed.
func (c *Client) protect(ctx context.Context, req *pdu.Envelope) (*pdu.Envelope, bool, error) {
	switch {
	case c.signRequest && c.signer != nil:
		signed, err := protection.Protect(ctx, req, c.signer, c.sendCert)
		if err != nil {
			return nil, false, err
		}
		return signed, true, nil
	case c.signRequest:
		return nil, false, errors.New(errors.CmpInvalidStateError).AppendMessage("Request signer is not set.")
	case len(c.macSecret) != 0:
		params, err := hmac.NewParams(c.macAlg)
		if err != nil {
			return nil, false, err
		}
		protected, err := protection.ProtectMAC(req, params, c.macSecret)
		if err != nil {
			return nil, false, err
		}
		return protected, false, nil
	}
	return req, false, nil
}

// correlate verifies the response belongs to the request.
func (c *Client) correlate(reqHdr, respHdr *pdu.Header) error {
	reqTid, _ := reqHdr.TransactionID()
	respTid, _ := respHdr.TransactionID()
	if !bytes.Equal(reqTid, respTid) {
		return errors.New(errors.CmpTransactionIDMismatch).
			AppendMessage(fmt.Sprintf("Response tid %x does not match the request tid %x.", respTid, reqTid))
	}

	reqNonce, _ := reqHdr.SenderNonce()
	respNonce, _ := respHdr.RecipNonce()
	if !bytes.Equal(reqNonce, respNonce) {
		return errors.New(errors.CmpNonceMismatch).
			AppendMessage(fmt.Sprintf("Response recipNonce %x does not match the request senderNonce %x.", respNonce, reqNonce))
	}

	reqSender, _ := reqHdr.Sender()
	respRecipient, _ := respHdr.Recipient()
	if !respRecipient.Equal(reqSender) {
		log.Tid(fmt.Sprintf("%x", reqTid)).Warningf("response recipient '%s' is not the requestor '%s'", respRecipient, reqSender)
	}
	return nil
}

// mirrorResolver resolves the responder certificate. A sender name mismatch is logged only, the signature
// verification against the configured certificate is decisive.
func (c *Client) mirrorResolver(tid string) protection.ResolverFunc {
	return func(sender pdu.GeneralName, _ []*x509.Certificate) (*x509.Certificate, bool) {
		if !c.recipient.IsNull() && !sender.Equal(c.recipient) {
			log.Tid(tid).Warningf("response sender '%s' is not the expected responder '%s'", sender, c.recipient)
		}
		if c.responderCert == nil {
			log.Tid(tid).Warningf("responder certificate is not configured")
			return nil, false
		}
		return c.responderCert, true
	}
}
