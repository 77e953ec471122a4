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
	"context"
	"encoding/asn1"
	"fmt"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/pdu"
	"github.com/guardtime/gocmp/protection"
)

// TextMessageCheckFailed is the status text of the error returned for a response failing the protection check.
const TextMessageCheckFailed = "message check of the response failed"

// Response is a correlated response of the responder.
type Response struct {
	env    *pdu.Envelope
	hdr    *pdu.Header
	body   *pdu.Body
	result *protection.Result
}

// Envelope returns the response message.
func (r *Response) Envelope() *pdu.Envelope {
	if r == nil {
		return nil
	}
	return r.env
}

// Header returns the response header.
func (r *Response) Header() *pdu.Header {
	if r == nil {
		return nil
	}
	return r.hdr
}

// Body returns the response body.
func (r *Response) Body() *pdu.Body {
	if r == nil {
		return nil
	}
	return r.body
}

// IsProtected reports whether the response is protected.
func (r *Response) IsProtected() bool {
	return r != nil && r.env.IsProtected()
}

// ProtectionResult returns the protection verification result. False is returned in case the response is not
// protected.
func (r *Response) ProtectionResult() (protection.Result, bool) {
	if r == nil || r.result == nil {
		return protection.Result{}, false
	}
	return *r.result, true
}

// NewGenMsg returns a new unprotected general message request.
func (c *Client) NewGenMsg(info ...pdu.InfoTypeAndValue) (*pdu.Envelope, error) {
	if c == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	if len(info) == 0 {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing general message content.")
	}
	hdr, err := c.newHeader()
	if err != nil {
		return nil, err
	}
	return pdu.NewEnvelope(hdr, pdu.NewGenMsgBody(info...))
}

// NewActionMessage returns a new vendor action request. The payload is the DER encoded action argument or nil.
func (c *Client) NewActionMessage(action pdu.Action, payload []byte) (*pdu.Envelope, error) {
	itv, err := pdu.EncodeAction(action, payload)
	if err != nil {
		return nil, err
	}
	return c.NewGenMsg(itv)
}

func (c *Client) newHeader() (*pdu.Header, error) {
	hdr, err := pdu.NewHeader(c.sender, c.recipient)
	if err != nil {
		return nil, err
	}
	if c.hdrFunc != nil {
		if hdr, err = c.hdrFunc(hdr); err != nil {
			return nil, errors.CmpErr(err).AppendMessage("Request header callback returned error.")
		}
		if hdr == nil {
			return nil, errors.New(errors.CmpInvalidStateError).AppendMessage("Request header callback returned nil.")
		}
	}
	return hdr, nil
}

// Action sends the vendor action request and returns the action result payload.
func (c *Client) Action(ctx context.Context, action pdu.Action, payload []byte) ([]byte, error) {
	if c == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	req, err := c.NewActionMessage(action, payload)
	if err != nil {
		return nil, err
	}
	resp, err := c.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return ExtractActionContent(resp, action)
}

// ExtractGeneralRepContent returns the information of the given type from the general response.
//
// A protected response must have passed the protection check. An error message is returned as errors.CmpPkiStatusError
// carrying the status stated by the CA.
func ExtractGeneralRepContent(resp *Response, typ asn1.ObjectIdentifier) (pdu.InfoTypeAndValue, error) {
	if resp == nil || resp.body == nil {
		return pdu.InfoTypeAndValue{}, errors.New(errors.CmpInvalidArgumentError)
	}

	if res, ok := resp.ProtectionResult(); ok && !res.IsValid() {
		return pdu.InfoTypeAndValue{}, errors.New(errors.CmpPkiStatusError).
			SetPkiStatus(errors.PkiStatus{
				Status:      int(pdu.StatusRejection),
				FailureInfo: uint64(pdu.BadMessageCheck),
				Text:        TextMessageCheckFailed,
			}).
			AppendMessage(fmt.Sprintf("Response protection check outcome: %s.", res.Outcome))
	}

	typBody, err := resp.body.Type()
	if err != nil {
		return pdu.InfoTypeAndValue{}, err
	}
	switch typBody {
	case pdu.BodyError:
		ec, err := resp.body.ErrorContent()
		if err != nil {
			return pdu.InfoTypeAndValue{}, err
		}
		return pdu.InfoTypeAndValue{}, errors.New(errors.CmpPkiStatusError).
			SetPkiStatus(errors.PkiStatus{
				Status:      int(ec.Status.Status),
				FailureInfo: uint64(ec.Status.FailureInfo),
				Text:        ec.Status.Text(),
			}).
			AppendMessage(fmt.Sprintf("Responder returned error: %s.", ec.Status))
	case pdu.BodyGenRep:
	default:
		return pdu.InfoTypeAndValue{}, errors.New(errors.CmpUnexpectedBody).
			AppendMessage(fmt.Sprintf("Unexpected response body type %d.", typBody))
	}

	info, err := resp.body.InfoTypeAndValues()
	if err != nil {
		return pdu.InfoTypeAndValue{}, err
	}
	itv, ok := pdu.FindInfo(info, typ)
	if !ok {
		return pdu.InfoTypeAndValue{}, errors.New(errors.CmpInvalidFormatError).
			AppendMessage(fmt.Sprintf("The response does not contain information of type %s.", typ))
	}
	return itv, nil
}

// ExtractActionContent returns the result payload of the vendor action response. The payload is nil in case the action
// has no result.
func ExtractActionContent(resp *Response, action pdu.Action) ([]byte, error) {
	itv, err := ExtractGeneralRepContent(resp, pdu.OIDVendorAction)
	if err != nil {
		return nil, err
	}
	return pdu.ExpectAction(itv, action)
}
