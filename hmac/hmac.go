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

// Package hmac implements the password based MAC protection (PBMAC1, RFC 8018 and RFC 9045) of PKI messages.
//
// The MAC key is derived from a shared secret with PBKDF2 (see Params). The MAC value is an HMAC computed over the
// protected part of a PKI message with the derived key.
package hmac

import (
	"crypto"
	"crypto/hmac"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"hash"

	"github.com/guardtime/gocmp/errors"
)

// Algorithm is the HMAC function identifier, used both as the PBKDF2 pseudo random function and as the message
// authentication scheme.
type Algorithm int

const (
	// HMACWithSHA1 is only supported as the PBKDF2 default PRF.
	HMACWithSHA1 Algorithm = iota + 1
	HMACWithSHA256
	HMACWithSHA384
	HMACWithSHA512

	// Unknown defines an invalid algorithm.
	Unknown Algorithm = 0
)

var (
	oidPBKDF2 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 12}

	algOIDs = map[Algorithm]asn1.ObjectIdentifier{
		HMACWithSHA1:   {1, 2, 840, 113549, 2, 7},
		HMACWithSHA256: {1, 2, 840, 113549, 2, 9},
		HMACWithSHA384: {1, 2, 840, 113549, 2, 10},
		HMACWithSHA512: {1, 2, 840, 113549, 2, 11},
	}
	algHashes = map[Algorithm]crypto.Hash{
		HMACWithSHA1:   crypto.SHA1,
		HMACWithSHA256: crypto.SHA256,
		HMACWithSHA384: crypto.SHA384,
		HMACWithSHA512: crypto.SHA512,
	}
)

func algByOID(oid asn1.ObjectIdentifier) Algorithm {
	for a, o := range algOIDs {
		if o.Equal(oid) {
			return a
		}
	}
	return Unknown
}

func (a Algorithm) String() string {
	switch a {
	case HMACWithSHA1:
		return "hmacWithSHA1"
	case HMACWithSHA256:
		return "hmacWithSHA256"
	case HMACWithSHA384:
		return "hmacWithSHA384"
	case HMACWithSHA512:
		return "hmacWithSHA512"
	}
	return fmt.Sprintf("Unknown(%d)", int(a))
}

// Registered checks whether the HMAC can be computed.
func (a Algorithm) Registered() bool {
	h, ok := algHashes[a]
	return ok && h.Available()
}

func (a Algorithm) identifier() pkix.AlgorithmIdentifier {
	return pkix.AlgorithmIdentifier{Algorithm: algOIDs[a], Parameters: asn1.NullRawValue}
}

// Hasher is the message authentication computation object.
type Hasher struct {
	algo Algorithm
	// Crypto library HMAC hasher.
	hsr hash.Hash
}

// New returns a new HMAC hash using the given algorithm and key.
func New(alg Algorithm, key []byte) (h *Hasher, e error) {
	if !alg.Registered() {
		return nil, errors.New(errors.CmpUnknownAlgorithm).AppendMessage("HMAC algorithm is not supported.")
	}

	// Recover method for unforeseen panics.
	defer func() {
		if r := recover(); r != nil {
			e = errors.New(errors.CmpCryptoFailure).
				AppendMessage(fmt.Sprintf("Panicked while HMAC initialization: %s", r))
		}
	}()
	return &Hasher{
		algo: alg,
		hsr:  hmac.New(algHashes[alg].New, key),
	}, nil
}

// Write (via the embedded io.Writer interface) adds more data to the running hash.
// In case of CmpInvalidArgumentError error (e.g. h is nil) function returns non
// standard -1 as count of bytes written.
func (h *Hasher) Write(p []byte) (int, error) {
	if h == nil || h.hsr == nil {
		return -1, errors.New(errors.CmpInvalidArgumentError)
	}

	n, e := h.hsr.Write(p)
	if e != nil {
		return n, errors.New(errors.CmpCryptoFailure).SetExtError(e)
	}
	return n, nil
}

// Sum returns the MAC of the data written so far. It does not change the underlying hash state.
func (h *Hasher) Sum() ([]byte, error) {
	if h == nil || h.hsr == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	return h.hsr.Sum(nil), nil
}

// Size return the resulting MAC length in bytes.
func (h *Hasher) Size() int {
	if h == nil || h.hsr == nil {
		return 0
	}
	return h.hsr.Size()
}

// Reset resets the hasher to its initial state.
func (h *Hasher) Reset() {
	if h == nil || h.hsr == nil {
		return
	}
	h.hsr.Reset()
}
