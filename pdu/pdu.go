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

// Package pdu defines the CMP (RFC 4210) protocol data structures and provides their DER encoding, decoding and
// manipulation methods.
//
// All the structures returned by this package are immutable. A modified copy of a Header is derived via
// (*Header).Derive(); a protected copy of an Envelope via (*Envelope).WithProtection().
package pdu

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"time"
)

const (
	// Version2 is the CMP2000 protocol version, the only one supported.
	Version2 = 2

	// MaxSize is the maximum PKI message size accepted by default by the network clients.
	MaxSize = 1 << 17

	tidDefaultLen   = 16
	nonceDefaultLen = 16
)

// Header is the PKI message header.
type Header struct {
	pvno          int
	sender        GeneralName
	recipient     GeneralName
	messageTime   *time.Time
	protectionAlg *pkix.AlgorithmIdentifier
	senderKID     []byte
	recipKID      []byte
	tid           []byte
	senderNonce   []byte
	recipNonce    []byte
	freeText      []string
	generalInfo   []InfoTypeAndValue

	// DER encoding as received. Only set for decoded headers.
	raw []byte
}

// BodyType is the PKI message body choice tag.
type BodyType int

// Supported body types. Any other body choice is kept as an opaque body.
const (
	BodyGenMsg BodyType = 21
	BodyGenRep BodyType = 22
	BodyError  BodyType = 23
)

// Body is the PKI message body.
type Body struct {
	typ     BodyType
	info    []InfoTypeAndValue
	errMsg  *ErrorContent
	content []byte

	raw []byte
}

// InfoTypeAndValue is an information type and an optional DER encoded value.
type InfoTypeAndValue struct {
	Type  asn1.ObjectIdentifier
	Value asn1.RawValue `asn1:"optional"`
}

// HasValue reports whether the value is present.
func (i InfoTypeAndValue) HasValue() bool {
	return len(i.Value.FullBytes) != 0 || i.Value.Tag != 0 || len(i.Value.Bytes) != 0
}

// Envelope is the complete PKI message: header, body, optional protection and extra certificates.
type Envelope struct {
	header     *Header
	body       *Body
	protection []byte
	extraCerts []*x509.Certificate

	raw []byte
}

/*
	Wire structures.
*/

type pkiMessage struct {
	Header     asn1.RawValue
	Body       asn1.RawValue
	Protection asn1.BitString  `asn1:"optional,explicit,tag:0"`
	ExtraCerts []asn1.RawValue `asn1:"optional,explicit,tag:1"`
}

type pkiHeader struct {
	Pvno          int
	Sender        asn1.RawValue
	Recipient     asn1.RawValue
	MessageTime   time.Time                `asn1:"generalized,optional,explicit,tag:0"`
	ProtectionAlg pkix.AlgorithmIdentifier `asn1:"optional,explicit,tag:1"`
	SenderKID     []byte                   `asn1:"optional,explicit,tag:2"`
	RecipKID      []byte                   `asn1:"optional,explicit,tag:3"`
	TransactionID []byte                   `asn1:"optional,explicit,tag:4"`
	SenderNonce   []byte                   `asn1:"optional,explicit,tag:5"`
	RecipNonce    []byte                   `asn1:"optional,explicit,tag:6"`
	FreeText      []asn1.RawValue          `asn1:"optional,explicit,tag:7"`
	GeneralInfo   []InfoTypeAndValue       `asn1:"optional,explicit,tag:8"`
}

type protectedPart struct {
	Header asn1.RawValue
	Body   asn1.RawValue
}

type errorMsgContent struct {
	StatusInfo   pkiStatusInfo
	ErrorCode    *big.Int        `asn1:"optional"`
	ErrorDetails []asn1.RawValue `asn1:"optional"`
}

type pkiStatusInfo struct {
	Status       int
	StatusString []asn1.RawValue `asn1:"optional"`
	FailInfo     asn1.BitString  `asn1:"optional"`
}
