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

// Package sigalg implements the signature algorithm identifiers (see Algorithm) used for the signature based
// protection of PKI messages, and the algorithm allow-list (see Validator).
//
// Algorithms marked as deprecated are not trusted (see (Algorithm).Trusted()) and thus not permitted by a default
// Validator. They can still be explicitly permitted.
package sigalg

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"strings"

	// Indirectly import packages from std library.
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"

	"github.com/guardtime/gocmp/errors"
)

// Algorithm is the signature algorithm identifier.
type Algorithm int

const (
	// SHA1WithRSA is RSA PKCS#1 v1.5 with SHA-1. Deprecated.
	SHA1WithRSA Algorithm = iota + 1
	// SHA256WithRSA is RSA PKCS#1 v1.5 with SHA-256.
	SHA256WithRSA
	// SHA384WithRSA is RSA PKCS#1 v1.5 with SHA-384.
	SHA384WithRSA
	// SHA512WithRSA is RSA PKCS#1 v1.5 with SHA-512.
	SHA512WithRSA
	// ECDSAWithSHA1 is ECDSA with SHA-1. Deprecated.
	ECDSAWithSHA1
	// ECDSAWithSHA256 is ECDSA with SHA-256.
	ECDSAWithSHA256
	// ECDSAWithSHA384 is ECDSA with SHA-384.
	ECDSAWithSHA384
	// ECDSAWithSHA512 is ECDSA with SHA-512.
	ECDSAWithSHA512
	// Ed25519 is the pure Ed25519 signature scheme.
	Ed25519

	// Unknown defines an invalid algorithm.
	Unknown Algorithm = 0
)

type keyType int

const (
	keyRSA keyType = iota
	keyECDSA
	keyEd25519
)

type algInfo struct {
	oid       asn1.ObjectIdentifier
	x509Alg   x509.SignatureAlgorithm
	hash      crypto.Hash
	key       keyType
	nullParam bool
	// The algorithm is deprecated and must not be trusted by default.
	deprecated bool
	// Accepted names for this algorithm. The first one is canonical.
	names []string
}

var algInfoMap = map[Algorithm]algInfo{
	SHA1WithRSA:     {asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}, x509.SHA1WithRSA, crypto.SHA1, keyRSA, true, true, []string{"SHA1withRSA", "SHA1-RSA"}},
	SHA256WithRSA:   {asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}, x509.SHA256WithRSA, crypto.SHA256, keyRSA, true, false, []string{"SHA256withRSA", "SHA256-RSA", "RSA"}},
	SHA384WithRSA:   {asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}, x509.SHA384WithRSA, crypto.SHA384, keyRSA, true, false, []string{"SHA384withRSA", "SHA384-RSA"}},
	SHA512WithRSA:   {asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}, x509.SHA512WithRSA, crypto.SHA512, keyRSA, true, false, []string{"SHA512withRSA", "SHA512-RSA"}},
	ECDSAWithSHA1:   {asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 1}, x509.ECDSAWithSHA1, crypto.SHA1, keyECDSA, false, true, []string{"SHA1withECDSA", "ECDSA-SHA1"}},
	ECDSAWithSHA256: {asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}, x509.ECDSAWithSHA256, crypto.SHA256, keyECDSA, false, false, []string{"SHA256withECDSA", "ECDSA-SHA256", "ECDSA"}},
	ECDSAWithSHA384: {asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}, x509.ECDSAWithSHA384, crypto.SHA384, keyECDSA, false, false, []string{"SHA384withECDSA", "ECDSA-SHA384"}},
	ECDSAWithSHA512: {asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}, x509.ECDSAWithSHA512, crypto.SHA512, keyECDSA, false, false, []string{"SHA512withECDSA", "ECDSA-SHA512"}},
	Ed25519:         {asn1.ObjectIdentifier{1, 3, 101, 112}, x509.PureEd25519, crypto.Hash(0), keyEd25519, false, false, []string{"Ed25519"}},
}

// ByOID returns the algorithm for the given object identifier. Unknown is returned if the OID is not supported.
func ByOID(oid asn1.ObjectIdentifier) Algorithm {
	for a, info := range algInfoMap {
		if info.oid.Equal(oid) {
			return a
		}
	}
	return Unknown
}

// ByName returns the algorithm for the given name (case insensitive). Unknown is returned if the name is not
// supported.
func ByName(name string) Algorithm {
	for a, info := range algInfoMap {
		for _, n := range info.names {
			if strings.EqualFold(n, name) {
				return a
			}
		}
	}
	return Unknown
}

// ForKey returns the default algorithm for the given public key.
func ForKey(pub crypto.PublicKey) (Algorithm, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return SHA256WithRSA, nil
	case *ecdsa.PublicKey:
		switch k.Curve.Params().BitSize {
		case 384:
			return ECDSAWithSHA384, nil
		case 521:
			return ECDSAWithSHA512, nil
		}
		return ECDSAWithSHA256, nil
	case ed25519.PublicKey:
		return Ed25519, nil
	}
	return Unknown, errors.New(errors.CmpUnknownAlgorithm).AppendMessage(fmt.Sprintf("Unsupported key type %T.", pub))
}

// Defined reports whether the algorithm is defined by the library.
func (a Algorithm) Defined() bool {
	_, ok := algInfoMap[a]
	return ok
}

// Trusted reports whether the algorithm is trusted by default.
func (a Algorithm) Trusted() bool {
	info, ok := algInfoMap[a]
	return ok && !info.deprecated
}

// String returns the canonical name of the algorithm.
func (a Algorithm) String() string {
	if info, ok := algInfoMap[a]; ok {
		return info.names[0]
	}
	return fmt.Sprintf("Unknown(%d)", int(a))
}

// OID returns the algorithm object identifier.
func (a Algorithm) OID() asn1.ObjectIdentifier {
	if info, ok := algInfoMap[a]; ok {
		return append(asn1.ObjectIdentifier(nil), info.oid...)
	}
	return nil
}

// Identifier returns the algorithm identifier as used in the PKI header.
func (a Algorithm) Identifier() pkix.AlgorithmIdentifier {
	info, ok := algInfoMap[a]
	if !ok {
		return pkix.AlgorithmIdentifier{}
	}
	id := pkix.AlgorithmIdentifier{Algorithm: append(asn1.ObjectIdentifier(nil), info.oid...)}
	if info.nullParam {
		id.Parameters = asn1.NullRawValue
	}
	return id
}

// X509 returns the x509 package signature algorithm.
func (a Algorithm) X509() x509.SignatureAlgorithm {
	if info, ok := algInfoMap[a]; ok {
		return info.x509Alg
	}
	return x509.UnknownSignatureAlgorithm
}

// HashFunc returns the digest function of the algorithm. Zero is returned for algorithms signing the message
// directly (Ed25519).
func (a Algorithm) HashFunc() crypto.Hash {
	return algInfoMap[a].hash
}

// Suits reports whether the algorithm can be used with the given public key.
func (a Algorithm) Suits(pub crypto.PublicKey) bool {
	info, ok := algInfoMap[a]
	if !ok {
		return false
	}
	switch pub.(type) {
	case *rsa.PublicKey:
		return info.key == keyRSA
	case *ecdsa.PublicKey:
		return info.key == keyECDSA
	case ed25519.PublicKey:
		return info.key == keyEd25519
	}
	return false
}

// Sign computes the signature over the data with the provided key.
func (a Algorithm) Sign(key crypto.Signer, data []byte) (sig []byte, e error) {
	if key == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing signing key.")
	}
	info, ok := algInfoMap[a]
	if !ok {
		return nil, errors.New(errors.CmpUnknownAlgorithm).AppendMessage(fmt.Sprintf("Unknown algorithm %d.", a))
	}
	if !a.Suits(key.Public()) {
		return nil, errors.New(errors.CmpInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Key of type %T does not suit algorithm %s.", key.Public(), a))
	}

	// Third party signers (eg PKCS#11 wrappers) may panic.
	defer func() {
		if r := recover(); r != nil {
			cmpErr := errors.New(errors.CmpCryptoFailure).AppendMessage("Panic while signing.")
			if err, ok := r.(error); ok {
				e = cmpErr.SetExtError(err)
			} else {
				e = cmpErr.AppendMessage(fmt.Sprintf("%s", r))
			}
		}
	}()

	digest := data
	if info.hash != 0 {
		if !info.hash.Available() {
			return nil, errors.New(errors.CmpUnknownAlgorithm).AppendMessage("Hash function is not available.")
		}
		h := info.hash.New()
		h.Write(data)
		digest = h.Sum(nil)
	}
	if sig, e = key.Sign(rand.Reader, digest, info.hash); e != nil {
		return nil, errors.New(errors.CmpCryptoFailure).SetExtError(e).AppendMessage("Failed to compute signature.")
	}
	return sig, nil
}

// Verify verifies the signature over the data with the public key of the certificate.
func (a Algorithm) Verify(cert *x509.Certificate, data, sig []byte) error {
	if cert == nil {
		return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing certificate.")
	}
	if !a.Defined() {
		return errors.New(errors.CmpUnknownAlgorithm).AppendMessage(fmt.Sprintf("Unknown algorithm %d.", a))
	}
	if err := cert.CheckSignature(a.X509(), data, sig); err != nil {
		return errors.New(errors.CmpCryptoFailure).SetExtError(err).AppendMessage("Signature verification failed.")
	}
	return nil
}
