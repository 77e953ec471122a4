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
	"strings"
)

// PKIStatus is the status of a PKI operation.
type PKIStatus int

// PKI status values.
const (
	StatusAccepted PKIStatus = iota
	StatusGrantedWithMods
	StatusRejection
	StatusWaiting
	StatusRevocationWarning
	StatusRevocationNotification
	StatusKeyUpdateWarning
)

var statusStrings = map[PKIStatus]string{
	StatusAccepted:               "accepted",
	StatusGrantedWithMods:        "grantedWithMods",
	StatusRejection:              "rejection",
	StatusWaiting:                "waiting",
	StatusRevocationWarning:      "revocationWarning",
	StatusRevocationNotification: "revocationNotification",
	StatusKeyUpdateWarning:       "keyUpdateWarning",
}

func (s PKIStatus) String() string {
	if str, ok := statusStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// FailureInfo is the PKI failure information bit mask. Bit n of the mask corresponds to the named bit n of the
// PKIFailureInfo BIT STRING.
type FailureInfo uint32

// Failure information bits.
const (
	BadAlg FailureInfo = 1 << iota
	BadMessageCheck
	BadRequest
	BadTime
	BadCertID
	BadDataFormat
	WrongAuthority
	IncorrectData
	MissingTimeStamp
	BadPOP
	CertRevoked
	CertConfirmed
	WrongIntegrity
	BadRecipientNonce
	TimeNotAvailable
	UnacceptedPolicy
	UnacceptedExtension
	AddInfoNotAvailable
	BadSenderNonce
	BadCertTemplate
	SignerNotTrusted
	TransactionIDInUse
	UnsupportedVersion
	NotAuthorized
	SystemUnavail
	SystemFailure
	DuplicateCertReq

	failureInfoBits = iota
)

var failureInfoNames = [failureInfoBits]string{
	"badAlg", "badMessageCheck", "badRequest", "badTime", "badCertId", "badDataFormat", "wrongAuthority",
	"incorrectData", "missingTimeStamp", "badPOP", "certRevoked", "certConfirmed", "wrongIntegrity",
	"badRecipientNonce", "timeNotAvailable", "unacceptedPolicy", "unacceptedExtension", "addInfoNotAvailable",
	"badSenderNonce", "badCertTemplate", "signerNotTrusted", "transactionIdInUse", "unsupportedVersion",
	"notAuthorized", "systemUnavail", "systemFailure", "duplicateCertReq",
}

// Has reports whether all the bits of f are set in the receiver.
func (i FailureInfo) Has(f FailureInfo) bool {
	return f != 0 && i&f == f
}

func (i FailureInfo) String() string {
	if i == 0 {
		return "none"
	}
	var names []string
	for n := 0; n < 32; n++ {
		if i&(1<<uint(n)) == 0 {
			continue
		}
		if n < failureInfoBits {
			names = append(names, failureInfoNames[n])
		} else {
			names = append(names, fmt.Sprintf("bit%d", n))
		}
	}
	return strings.Join(names, ", ")
}

// bitString returns the DER named bit string representation (trailing zero bits removed).
func (i FailureInfo) bitString() asn1.BitString {
	if i == 0 {
		return asn1.BitString{}
	}
	highest := 0
	for n := 0; n < 32; n++ {
		if i&(1<<uint(n)) != 0 {
			highest = n
		}
	}
	bs := asn1.BitString{
		Bytes:     make([]byte, highest/8+1),
		BitLength: highest + 1,
	}
	for n := 0; n <= highest; n++ {
		if i&(1<<uint(n)) != 0 {
			bs.Bytes[n/8] |= 0x80 >> uint(n%8)
		}
	}
	return bs
}

func failureInfoFromBitString(bs asn1.BitString) FailureInfo {
	var ret FailureInfo
	for n := 0; n < bs.BitLength && n < 32; n++ {
		if bs.At(n) != 0 {
			ret |= 1 << uint(n)
		}
	}
	return ret
}
