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
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/guardtime/gocmp/errors"
)

// OIDVendorAction is the information type of the vendor action general message.
var OIDVendorAction = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 45522, 2, 1}

// Action is a vendor action code.
type Action int

// Vendor actions.
const (
	ActionGenCRL             Action = 1
	ActionGetCRLWithSN       Action = 2
	ActionGetCAInfo          Action = 3
	ActionRemoveExpiredCerts Action = 4
	ActionCACertChain        Action = 5
)

var actionStrings = map[Action]string{
	ActionGenCRL:             "GenCRL",
	ActionGetCRLWithSN:       "GetCRLWithSN",
	ActionGetCAInfo:          "GetCAInfo",
	ActionRemoveExpiredCerts: "RemoveExpiredCerts",
	ActionCACertChain:        "CACertChain",
}

func (a Action) String() string {
	if s, ok := actionStrings[a]; ok {
		return s
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// EncodeAction returns the vendor action InfoTypeAndValue: SEQUENCE { INTEGER action, ANY payload OPTIONAL }.
// The payload must be a DER encoded ASN.1 element or nil.
func EncodeAction(action Action, payload []byte) (InfoTypeAndValue, error) {
	if action < 0 {
		return InfoTypeAndValue{}, errors.New(errors.CmpInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Invalid action code %d.", action))
	}
	if payload != nil {
		s := cryptobyte.String(payload)
		var el cryptobyte.String
		var tag cbasn1.Tag
		if !s.ReadAnyASN1Element(&el, &tag) || !s.Empty() {
			return InfoTypeAndValue{}, errors.New(errors.CmpInvalidArgumentError).
				AppendMessage("Action payload is not a single DER element.")
		}
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(int64(action))
		if payload != nil {
			b.AddBytes(payload)
		}
	})
	der, err := b.Bytes()
	if err != nil {
		return InfoTypeAndValue{}, errors.New(errors.CmpInvalidFormatError).SetExtError(err).
			AppendMessage("Failed to encode action.")
	}
	return InfoTypeAndValue{Type: OIDVendorAction, Value: asn1.RawValue{FullBytes: der}}, nil
}

// DecodeAction parses the vendor action InfoTypeAndValue. The returned payload is nil in case it is absent.
func DecodeAction(itv InfoTypeAndValue) (Action, []byte, error) {
	if !itv.Type.Equal(OIDVendorAction) {
		return 0, nil, errors.New(errors.CmpInvalidFormatError).
			AppendMessage(fmt.Sprintf("Unexpected info type %s.", itv.Type))
	}
	if !itv.HasValue() {
		return 0, nil, errors.New(errors.CmpInvalidFormatError).AppendMessage("Missing action value.")
	}
	raw := itv.Value.FullBytes
	if raw == nil {
		var err error
		if raw, err = asn1.Marshal(itv.Value); err != nil {
			return 0, nil, errors.New(errors.CmpInvalidFormatError).SetExtError(err)
		}
	}

	s := cryptobyte.String(raw)
	var seq cryptobyte.String
	if !s.ReadASN1(&seq, cbasn1.SEQUENCE) || !s.Empty() {
		return 0, nil, errors.New(errors.CmpInvalidFormatError).AppendMessage("Action value is not a SEQUENCE.")
	}

	var elems []cryptobyte.String
	for !seq.Empty() {
		var el cryptobyte.String
		var tag cbasn1.Tag
		if !seq.ReadAnyASN1Element(&el, &tag) {
			return 0, nil, errors.New(errors.CmpInvalidFormatError).AppendMessage("Malformed action element.")
		}
		elems = append(elems, el)
	}
	if len(elems) != 1 && len(elems) != 2 {
		return 0, nil, errors.New(errors.CmpInvalidFormatError).
			AppendMessage(fmt.Sprintf("Invalid action sequence size %d, expected 1 or 2.", len(elems)))
	}

	var code int64
	first := elems[0]
	if !first.ReadASN1Integer(&code) || !first.Empty() {
		return 0, nil, errors.New(errors.CmpInvalidFormatError).AppendMessage("Action code is not an INTEGER.")
	}
	if code < 0 || code > int64(^uint32(0)>>1) {
		return 0, nil, errors.New(errors.CmpInvalidFormatError).
			AppendMessage(fmt.Sprintf("Invalid action code %d.", code))
	}

	var payload []byte
	if len(elems) == 2 {
		payload = append([]byte{}, elems[1]...)
	}
	return Action(code), payload, nil
}

// ExpectAction decodes the vendor action and verifies that it matches the expected action.
func ExpectAction(itv InfoTypeAndValue, expected Action) ([]byte, error) {
	action, payload, err := DecodeAction(itv)
	if err != nil {
		return nil, err
	}
	if action != expected {
		return nil, errors.New(errors.CmpActionMismatch).
			AppendMessage(fmt.Sprintf("Received action %d, expected %d.", action, expected))
	}
	return payload, nil
}

// FindInfo returns the first InfoTypeAndValue of the given type.
func FindInfo(info []InfoTypeAndValue, typ asn1.ObjectIdentifier) (InfoTypeAndValue, bool) {
	for _, i := range info {
		if i.Type.Equal(typ) {
			return i, true
		}
	}
	return InfoTypeAndValue{}, false
}

// IsComplete verifies whether the data holds exactly one complete DER element. It is used as the datagram
// completeness verifier of the network clients. An error is returned in case the data exceeds the element.
func IsComplete(data []byte) (bool, error) {
	s := cryptobyte.String(data)
	var el cryptobyte.String
	var tag cbasn1.Tag
	if !s.ReadAnyASN1Element(&el, &tag) {
		return false, nil
	}
	if !s.Empty() {
		return false, errors.New(errors.CmpInvalidFormatError).
			AppendMessage(fmt.Sprintf("Trailing data after DER element (%d bytes).", len(s)))
	}
	return true, nil
}
