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
	"math/big"
	"strings"

	"github.com/guardtime/gocmp/errors"
)

// StatusInfo is the PKI status information.
type StatusInfo struct {
	Status      PKIStatus
	FailureInfo FailureInfo
	// StatusText is the optional free text.
	StatusText []string
}

// Text returns the status text lines joined together.
func (s StatusInfo) Text() string {
	return strings.Join(s.StatusText, "; ")
}

func (s StatusInfo) String() string {
	return fmt.Sprintf("status=%s, failureInfo=%s, text='%s'", s.Status, s.FailureInfo, s.Text())
}

// ErrorContent is the content of the error message body.
type ErrorContent struct {
	Status StatusInfo
	// ErrorCode is an optional implementation specific error code.
	ErrorCode *int64
	// Details is optional implementation specific error details.
	Details []string
}

// NewGenMsgBody returns a general message (genm) body.
func NewGenMsgBody(info ...InfoTypeAndValue) *Body {
	return &Body{typ: BodyGenMsg, info: append([]InfoTypeAndValue(nil), info...)}
}

// NewGenRepBody returns a general response (genp) body.
func NewGenRepBody(info ...InfoTypeAndValue) *Body {
	return &Body{typ: BodyGenRep, info: append([]InfoTypeAndValue(nil), info...)}
}

// NewErrorBody returns an error message body.
func NewErrorBody(content ErrorContent) *Body {
	tmp := content
	tmp.Status.StatusText = append([]string(nil), content.Status.StatusText...)
	tmp.Details = append([]string(nil), content.Details...)
	return &Body{typ: BodyError, errMsg: &tmp}
}

// NewRejectionBody is a convenience constructor of an error body with rejection status.
func NewRejectionBody(fi FailureInfo, text string) *Body {
	si := StatusInfo{Status: StatusRejection, FailureInfo: fi}
	if text != "" {
		si.StatusText = []string{text}
	}
	return NewErrorBody(ErrorContent{Status: si})
}

// NewOpaqueBody returns a body of any other choice. The content is the DER encoding of the body choice value.
func NewOpaqueBody(typ BodyType, content []byte) (*Body, error) {
	switch typ {
	case BodyGenMsg, BodyGenRep, BodyError:
		return nil, errors.New(errors.CmpInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Body type %d must not be opaque.", typ))
	}
	if typ < 0 || typ > 30 {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage(fmt.Sprintf("Invalid body type %d.", typ))
	}
	return &Body{typ: typ, content: cloneBytes(content)}, nil
}

// Type returns the body choice.
func (b *Body) Type() (BodyType, error) {
	if b == nil {
		return 0, errors.New(errors.CmpInvalidArgumentError)
	}
	return b.typ, nil
}

// InfoTypeAndValues returns the content of a genm or genp body.
func (b *Body) InfoTypeAndValues() ([]InfoTypeAndValue, error) {
	if b == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	if b.typ != BodyGenMsg && b.typ != BodyGenRep {
		return nil, errors.New(errors.CmpUnexpectedBody).
			AppendMessage(fmt.Sprintf("Body type %d has no InfoTypeAndValue content.", b.typ))
	}
	return append([]InfoTypeAndValue(nil), b.info...), nil
}

// ErrorContent returns the content of an error body.
func (b *Body) ErrorContent() (*ErrorContent, error) {
	if b == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	if b.typ != BodyError || b.errMsg == nil {
		return nil, errors.New(errors.CmpUnexpectedBody).
			AppendMessage(fmt.Sprintf("Body type %d is not an error message.", b.typ))
	}
	tmp := *b.errMsg
	return &tmp, nil
}

// Content returns the DER encoding of the body choice value.
func (b *Body) Content() ([]byte, error) {
	if b == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	switch b.typ {
	case BodyGenMsg, BodyGenRep:
		if b.info == nil {
			return asn1.Marshal([]InfoTypeAndValue{})
		}
		return asn1.Marshal(b.info)
	case BodyError:
		return encodeErrorContent(b.errMsg)
	default:
		return cloneBytes(b.content), nil
	}
}

// Encode returns the DER encoding of the body, including the choice tag.
func (b *Body) Encode() ([]byte, error) {
	if b == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	if b.raw != nil {
		return cloneBytes(b.raw), nil
	}

	content, err := b.Content()
	if err != nil {
		return nil, errors.New(errors.CmpInvalidFormatError).SetExtError(err).AppendMessage("Failed to encode PKI body.")
	}
	der, err := asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        int(b.typ),
		IsCompound: true,
		Bytes:      content,
	})
	if err != nil {
		return nil, errors.New(errors.CmpInvalidFormatError).SetExtError(err).AppendMessage("Failed to encode PKI body.")
	}
	return der, nil
}

func decodeBody(v asn1.RawValue) (*Body, error) {
	if v.Class != asn1.ClassContextSpecific || !v.IsCompound {
		return nil, errors.New(errors.CmpInvalidFormatError).AppendMessage("Invalid PKI body choice.")
	}

	b := &Body{typ: BodyType(v.Tag), raw: cloneBytes(v.FullBytes)}
	switch b.typ {
	case BodyGenMsg, BodyGenRep:
		var info []InfoTypeAndValue
		rest, err := asn1.Unmarshal(v.Bytes, &info)
		if err != nil {
			return nil, errors.New(errors.CmpInvalidFormatError).SetExtError(err).
				AppendMessage("Failed to decode general message content.")
		}
		if len(rest) != 0 {
			return nil, errors.New(errors.CmpInvalidFormatError).AppendMessage("Trailing data in general message body.")
		}
		b.info = info
	case BodyError:
		ec, err := decodeErrorContent(v.Bytes)
		if err != nil {
			return nil, err
		}
		b.errMsg = ec
	default:
		b.content = cloneBytes(v.Bytes)
	}
	return b, nil
}

func encodeErrorContent(ec *ErrorContent) ([]byte, error) {
	if ec == nil {
		return nil, errors.New(errors.CmpInvalidStateError).AppendMessage("Missing error message content.")
	}
	wire := errorMsgContent{
		StatusInfo: pkiStatusInfo{
			Status:       int(ec.Status.Status),
			StatusString: encodeFreeText(ec.Status.StatusText),
			FailInfo:     ec.Status.FailureInfo.bitString(),
		},
		ErrorDetails: encodeFreeText(ec.Details),
	}
	if ec.ErrorCode != nil {
		wire.ErrorCode = big.NewInt(*ec.ErrorCode)
	}
	return asn1.Marshal(wire)
}

func decodeErrorContent(der []byte) (*ErrorContent, error) {
	var wire errorMsgContent
	rest, err := asn1.Unmarshal(der, &wire)
	if err != nil {
		return nil, errors.New(errors.CmpInvalidFormatError).SetExtError(err).AppendMessage("Failed to decode error message content.")
	}
	if len(rest) != 0 {
		return nil, errors.New(errors.CmpInvalidFormatError).AppendMessage("Trailing data in error message body.")
	}

	text, err := decodeFreeText(wire.StatusInfo.StatusString)
	if err != nil {
		return nil, err
	}
	details, err := decodeFreeText(wire.ErrorDetails)
	if err != nil {
		return nil, err
	}
	ec := &ErrorContent{
		Status: StatusInfo{
			Status:      PKIStatus(wire.StatusInfo.Status),
			FailureInfo: failureInfoFromBitString(wire.StatusInfo.FailInfo),
			StatusText:  text,
		},
		Details: details,
	}
	if wire.ErrorCode != nil {
		if !wire.ErrorCode.IsInt64() {
			return nil, errors.New(errors.CmpInvalidFormatError).AppendMessage("Error code out of range.")
		}
		c := wire.ErrorCode.Int64()
		ec.ErrorCode = &c
	}
	return ec, nil
}
