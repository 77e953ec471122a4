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
	"crypto/rand"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/guardtime/gocmp/errors"
)

// HeaderSetting is a functional option setter for various header settings.
type HeaderSetting func(*header) error
type header struct {
	obj Header
}

// NewHeader returns a new PKI message header for the given sender and recipient.
//
// By default the header is set up with: protocol version 2, current message time (UTC, second precision), a fresh
// random transaction ID and a fresh random sender nonce. The defaults can be overridden via settings.
func NewHeader(sender, recipient GeneralName, settings ...HeaderSetting) (*Header, error) {
	tid, err := NewTransactionID()
	if err != nil {
		return nil, err
	}
	nonce, err := NewNonce(nonceDefaultLen)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Truncate(time.Second)

	tmp := header{obj: Header{
		pvno:        Version2,
		sender:      sender,
		recipient:   recipient,
		messageTime: &now,
		tid:         tid,
		senderNonce: nonce,
	}}

	for _, setter := range settings {
		if setter == nil {
			return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Provided header setting is nil.")
		}
		if err := setter(&tmp); err != nil {
			return nil, errors.CmpErr(err).AppendMessage("Unable to setup PKI header.")
		}
	}
	return &tmp.obj, nil
}

// Derive returns a modified copy of the receiver header. The receiver is not changed.
func (h *Header) Derive(settings ...HeaderSetting) (*Header, error) {
	if h == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}

	tmp := header{obj: *h}
	tmp.obj.raw = nil
	for _, setter := range settings {
		if setter == nil {
			return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Provided header setting is nil.")
		}
		if err := setter(&tmp); err != nil {
			return nil, errors.CmpErr(err).AppendMessage("Unable to derive PKI header.")
		}
	}
	return &tmp.obj, nil
}

// NewTransactionID returns a fresh random transaction ID.
func NewTransactionID() ([]byte, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return nil, errors.New(errors.CmpCryptoFailure).SetExtError(err).AppendMessage("Failed to generate transaction ID.")
	}
	return u[:tidDefaultLen], nil
}

// NewNonce returns n fresh random bytes.
func NewNonce(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, errors.New(errors.CmpCryptoFailure).SetExtError(err).AppendMessage("Failed to generate random value.")
	}
	return b, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}

func missingHeaderBase() error {
	return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing header base object.")
}

// HdrSetVersion overrides the protocol version.
func HdrSetVersion(pvno int) HeaderSetting {
	return func(h *header) error {
		if h == nil {
			return missingHeaderBase()
		}
		h.obj.pvno = pvno
		return nil
	}
}

// HdrSetSender overrides the sender name.
func HdrSetSender(n GeneralName) HeaderSetting {
	return func(h *header) error {
		if h == nil {
			return missingHeaderBase()
		}
		h.obj.sender = n
		return nil
	}
}

// HdrSetRecipient overrides the recipient name.
func HdrSetRecipient(n GeneralName) HeaderSetting {
	return func(h *header) error {
		if h == nil {
			return missingHeaderBase()
		}
		h.obj.recipient = n
		return nil
	}
}

// HdrSetMessageTime sets the message time. The time is converted to UTC and truncated to seconds.
func HdrSetMessageTime(t time.Time) HeaderSetting {
	return func(h *header) error {
		if h == nil {
			return missingHeaderBase()
		}
		tmp := t.UTC().Truncate(time.Second)
		h.obj.messageTime = &tmp
		return nil
	}
}

// HdrNoMessageTime removes the message time.
func HdrNoMessageTime() HeaderSetting {
	return func(h *header) error {
		if h == nil {
			return missingHeaderBase()
		}
		h.obj.messageTime = nil
		return nil
	}
}

// HdrSetProtectionAlg sets the protection algorithm. Use nil to remove it.
func HdrSetProtectionAlg(alg *pkix.AlgorithmIdentifier) HeaderSetting {
	return func(h *header) error {
		if h == nil {
			return missingHeaderBase()
		}
		if alg == nil {
			h.obj.protectionAlg = nil
			return nil
		}
		tmp := *alg
		h.obj.protectionAlg = &tmp
		return nil
	}
}

// HdrSetSenderKID sets the sender key identifier.
func HdrSetSenderKID(kid []byte) HeaderSetting {
	return func(h *header) error {
		if h == nil {
			return missingHeaderBase()
		}
		h.obj.senderKID = cloneBytes(kid)
		return nil
	}
}

// HdrSetRecipKID sets the recipient key identifier.
func HdrSetRecipKID(kid []byte) HeaderSetting {
	return func(h *header) error {
		if h == nil {
			return missingHeaderBase()
		}
		h.obj.recipKID = cloneBytes(kid)
		return nil
	}
}

// HdrSetTransactionID sets the transaction ID. Use nil to remove it.
func HdrSetTransactionID(tid []byte) HeaderSetting {
	return func(h *header) error {
		if h == nil {
			return missingHeaderBase()
		}
		h.obj.tid = cloneBytes(tid)
		return nil
	}
}

// HdrSetSenderNonce sets the sender nonce. Use nil to remove it.
func HdrSetSenderNonce(nonce []byte) HeaderSetting {
	return func(h *header) error {
		if h == nil {
			return missingHeaderBase()
		}
		h.obj.senderNonce = cloneBytes(nonce)
		return nil
	}
}

// HdrSetRecipNonce sets the recipient nonce.
func HdrSetRecipNonce(nonce []byte) HeaderSetting {
	return func(h *header) error {
		if h == nil {
			return missingHeaderBase()
		}
		h.obj.recipNonce = cloneBytes(nonce)
		return nil
	}
}

// HdrSetFreeText sets the free text.
func HdrSetFreeText(text ...string) HeaderSetting {
	return func(h *header) error {
		if h == nil {
			return missingHeaderBase()
		}
		h.obj.freeText = append([]string(nil), text...)
		return nil
	}
}

// HdrSetGeneralInfo sets the general info list.
func HdrSetGeneralInfo(info ...InfoTypeAndValue) HeaderSetting {
	return func(h *header) error {
		if h == nil {
			return missingHeaderBase()
		}
		h.obj.generalInfo = append([]InfoTypeAndValue(nil), info...)
		return nil
	}
}

// Version returns the protocol version.
func (h *Header) Version() (int, error) {
	if h == nil {
		return 0, errors.New(errors.CmpInvalidArgumentError)
	}
	return h.pvno, nil
}

// Sender returns the sender name.
func (h *Header) Sender() (GeneralName, error) {
	if h == nil {
		return GeneralName{}, errors.New(errors.CmpInvalidArgumentError)
	}
	return h.sender, nil
}

// Recipient returns the recipient name.
func (h *Header) Recipient() (GeneralName, error) {
	if h == nil {
		return GeneralName{}, errors.New(errors.CmpInvalidArgumentError)
	}
	return h.recipient, nil
}

// MessageTime returns the message time. In case the time is not present, nil is returned.
func (h *Header) MessageTime() (*time.Time, error) {
	if h == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	if h.messageTime == nil {
		return nil, nil
	}
	tmp := *h.messageTime
	return &tmp, nil
}

// ProtectionAlg returns the protection algorithm. In case the algorithm is not present, nil is returned.
func (h *Header) ProtectionAlg() (*pkix.AlgorithmIdentifier, error) {
	if h == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	if h.protectionAlg == nil {
		return nil, nil
	}
	tmp := *h.protectionAlg
	return &tmp, nil
}

// SenderKID returns the sender key identifier.
func (h *Header) SenderKID() ([]byte, error) {
	if h == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	return cloneBytes(h.senderKID), nil
}

// RecipKID returns the recipient key identifier.
func (h *Header) RecipKID() ([]byte, error) {
	if h == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	return cloneBytes(h.recipKID), nil
}

// TransactionID returns the transaction ID. In case it is not present, nil is returned.
func (h *Header) TransactionID() ([]byte, error) {
	if h == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	return cloneBytes(h.tid), nil
}

// SenderNonce returns the sender nonce.
func (h *Header) SenderNonce() ([]byte, error) {
	if h == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	return cloneBytes(h.senderNonce), nil
}

// RecipNonce returns the recipient nonce.
func (h *Header) RecipNonce() ([]byte, error) {
	if h == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	return cloneBytes(h.recipNonce), nil
}

// FreeText returns the free text.
func (h *Header) FreeText() ([]string, error) {
	if h == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	return append([]string(nil), h.freeText...), nil
}

// GeneralInfo returns the general info list.
func (h *Header) GeneralInfo() ([]InfoTypeAndValue, error) {
	if h == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	return append([]InfoTypeAndValue(nil), h.generalInfo...), nil
}

// Tid is a convenience method returning the transaction ID in hex, used for logging.
func (h *Header) Tid() string {
	if h == nil {
		return ""
	}
	return fmt.Sprintf("%x", h.tid)
}

// Encode returns the DER encoding of the header.
func (h *Header) Encode() ([]byte, error) {
	if h == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	if h.raw != nil {
		return cloneBytes(h.raw), nil
	}

	wire := pkiHeader{
		Pvno:          h.pvno,
		Sender:        h.sender.rawValue(),
		Recipient:     h.recipient.rawValue(),
		SenderKID:     h.senderKID,
		RecipKID:      h.recipKID,
		TransactionID: h.tid,
		SenderNonce:   h.senderNonce,
		RecipNonce:    h.recipNonce,
		FreeText:      encodeFreeText(h.freeText),
		GeneralInfo:   h.generalInfo,
	}
	if h.messageTime != nil {
		wire.MessageTime = *h.messageTime
	}
	if h.protectionAlg != nil {
		wire.ProtectionAlg = *h.protectionAlg
	}

	der, err := asn1.Marshal(wire)
	if err != nil {
		return nil, errors.New(errors.CmpInvalidFormatError).SetExtError(err).AppendMessage("Failed to encode PKI header.")
	}
	return der, nil
}

func decodeHeader(der []byte) (*Header, error) {
	var wire pkiHeader
	rest, err := asn1.Unmarshal(der, &wire)
	if err != nil {
		return nil, errors.New(errors.CmpInvalidFormatError).SetExtError(err).AppendMessage("Failed to decode PKI header.")
	}
	if len(rest) != 0 {
		return nil, errors.New(errors.CmpInvalidFormatError).AppendMessage("Trailing data after PKI header.")
	}

	sender, err := parseGeneralName(wire.Sender)
	if err != nil {
		return nil, errors.CmpErr(err).AppendMessage("Invalid header sender.")
	}
	recipient, err := parseGeneralName(wire.Recipient)
	if err != nil {
		return nil, errors.CmpErr(err).AppendMessage("Invalid header recipient.")
	}
	freeText, err := decodeFreeText(wire.FreeText)
	if err != nil {
		return nil, err
	}

	h := &Header{
		pvno:        wire.Pvno,
		sender:      sender,
		recipient:   recipient,
		senderKID:   wire.SenderKID,
		recipKID:    wire.RecipKID,
		tid:         wire.TransactionID,
		senderNonce: wire.SenderNonce,
		recipNonce:  wire.RecipNonce,
		freeText:    freeText,
		generalInfo: wire.GeneralInfo,
		raw:         cloneBytes(der),
	}
	if !wire.MessageTime.IsZero() {
		t := wire.MessageTime.UTC()
		h.messageTime = &t
	}
	if len(wire.ProtectionAlg.Algorithm) != 0 {
		alg := wire.ProtectionAlg
		h.protectionAlg = &alg
	}
	return h, nil
}

func encodeFreeText(text []string) []asn1.RawValue {
	if len(text) == 0 {
		return nil
	}
	ret := make([]asn1.RawValue, 0, len(text))
	for _, s := range text {
		ret = append(ret, asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagUTF8String, Bytes: []byte(s)})
	}
	return ret
}

func decodeFreeText(raw []asn1.RawValue) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ret := make([]string, 0, len(raw))
	for _, v := range raw {
		if v.Class != asn1.ClassUniversal || v.IsCompound {
			return nil, errors.New(errors.CmpInvalidFormatError).AppendMessage("Invalid free text element.")
		}
		ret = append(ret, string(v.Bytes))
	}
	return ret, nil
}
