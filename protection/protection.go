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

// Package protection implements the PKI message protection: signature based protecting of outgoing messages and the
// verification of the received ones. The same verifier serves the responder and the requestor side.
package protection

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"github.com/guardtime/gocmp/sigalg"
)

// Signer is the signing capability used for protecting outgoing messages.
type Signer interface {
	// Algorithm returns the signature algorithm of the signer.
	Algorithm() sigalg.Algorithm
	// Certificate returns the certificate of the signing key. Might be nil.
	Certificate() *x509.Certificate
	// Sign computes the signature over the data.
	Sign(ctx context.Context, data []byte) ([]byte, error)
}

// ContentVerifier verifies a signature with a fixed public key.
type ContentVerifier interface {
	Verify(alg sigalg.Algorithm, data, sig []byte) error
}

// VerifierProvider returns a content verifier for the certificate. Nil is returned in case no verifier is available
// for the certificate.
type VerifierProvider interface {
	VerifierFor(cert *x509.Certificate) ContentVerifier
}

// X509Provider is the default verifier provider based on crypto/x509.
type X509Provider struct{}

// VerifierFor implements VerifierProvider interface.
func (X509Provider) VerifierFor(cert *x509.Certificate) ContentVerifier {
	if cert == nil {
		return nil
	}
	switch cert.PublicKey.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
		return certVerifier{cert: cert}
	}
	return nil
}

type certVerifier struct {
	cert *x509.Certificate
}

func (v certVerifier) Verify(alg sigalg.Algorithm, data, sig []byte) error {
	return alg.Verify(v.cert, data, sig)
}

// Outcome is the protection verification outcome.
type Outcome int

// Verification outcomes.
const (
	Valid Outcome = iota
	Invalid
	NotSignatureBased
	SenderNotAuthorized
	AlgorithmForbidden
)

var outcomeStrings = map[Outcome]string{
	Valid:               "VALID",
	Invalid:             "INVALID",
	NotSignatureBased:   "NOT_SIGNATURE_BASED",
	SenderNotAuthorized: "SENDER_NOT_AUTHORIZED",
	AlgorithmForbidden:  "SIGALGO_FORBIDDEN",
}

func (o Outcome) String() string {
	if s, ok := outcomeStrings[o]; ok {
		return s
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result is the protection verification result of a single message.
type Result struct {
	Outcome Outcome
	// Certificate is the certificate the protection was verified with. Only set for the Valid outcome.
	Certificate *x509.Certificate
}

// IsValid reports whether the protection has been verified successfully.
func (r Result) IsValid() bool {
	return r.Outcome == Valid
}
