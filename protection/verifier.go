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

package protection

import (
	"crypto/x509"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/log"
	"github.com/guardtime/gocmp/pdu"
	"github.com/guardtime/gocmp/sigalg"
)

// ResolverFunc resolves the certificate of the message sender. The certs are the extra certificates of the message.
// False is returned in case the sender is not known (or not authorized).
type ResolverFunc func(sender pdu.GeneralName, certs []*x509.Certificate) (*x509.Certificate, bool)

// Verifier verifies signature based message protection.
type Verifier struct {
	validator *sigalg.Validator
	provider  VerifierProvider
}

// VerifierOption is a functional option setter for the verifier.
type VerifierOption func(*Verifier) error

// VerOptValidator sets the signature algorithm allow-list. By default all trusted algorithms are permitted.
func VerOptValidator(v *sigalg.Validator) VerifierOption {
	return func(ver *Verifier) error {
		if ver == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing verifier base object.")
		}
		if v == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing algorithm validator.")
		}
		ver.validator = v
		return nil
	}
}

// VerOptProvider sets the content verifier provider. By default X509Provider is used.
func VerOptProvider(p VerifierProvider) VerifierOption {
	return func(ver *Verifier) error {
		if ver == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing verifier base object.")
		}
		if p == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing verifier provider.")
		}
		ver.provider = p
		return nil
	}
}

// NewVerifier returns a new protection verifier.
func NewVerifier(opts ...VerifierOption) (*Verifier, error) {
	tmp := &Verifier{
		provider: X509Provider{},
	}
	for _, setter := range opts {
		if setter == nil {
			return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := setter(tmp); err != nil {
			return nil, errors.CmpErr(err).AppendMessage("Unable to setup protection verifier.")
		}
	}
	return tmp, nil
}

// Verify verifies the protection of the envelope. The envelope must carry a protection value.
//
// An error is returned only in case the verification could not be performed, any negative verification outcome is
// returned as the result.
func (v *Verifier) Verify(env *pdu.Envelope, resolve ResolverFunc) (Result, error) {
	if v == nil || env == nil || resolve == nil {
		return Result{}, errors.New(errors.CmpInvalidArgumentError)
	}
	hdr, err := env.Header()
	if err != nil {
		return Result{}, err
	}
	prot, err := env.Protection()
	if err != nil {
		return Result{}, err
	}

	switch prot.Kind {
	case pdu.Unprotected:
		return Result{}, errors.New(errors.CmpInvalidStateError).AppendMessage("Message is not protected.")
	case pdu.MACBased:
		log.Tid(hdr.Tid()).Warningf("NOT_SIGNATURE_BASED: %s", prot.Algorithm.Algorithm)
		return Result{Outcome: NotSignatureBased}, nil
	}

	alg, ok := v.validator.PermittedID(prot.Algorithm)
	if !ok {
		log.Tid(hdr.Tid()).Warningf("SIGALGO_FORBIDDEN: %s", prot.Algorithm.Algorithm)
		return Result{Outcome: AlgorithmForbidden}, nil
	}

	sender, err := hdr.Sender()
	if err != nil {
		return Result{}, err
	}
	cert, ok := resolve(sender, prot.Certificates)
	if !ok || cert == nil {
		log.Tid(hdr.Tid()).Warningf("not authorized requestor '%s'", sender)
		return Result{Outcome: SenderNotAuthorized}, nil
	}
	cv := v.provider.VerifierFor(cert)
	if cv == nil {
		log.Tid(hdr.Tid()).Warningf("no verifier available for '%s'", cert.Subject)
		return Result{Outcome: SenderNotAuthorized}, nil
	}

	data, err := env.ProtectedPart()
	if err != nil {
		return Result{}, err
	}
	if err := cv.Verify(alg, data, prot.Value); err != nil {
		if errors.CodeOf(err) != errors.CmpCryptoFailure {
			return Result{}, errors.CmpErr(err).AppendMessage("Unable to verify protection.")
		}
		log.Tid(hdr.Tid()).Debugf("invalid protection: %s", err)
		return Result{Outcome: Invalid}, nil
	}
	return Result{Outcome: Valid, Certificate: cert}, nil
}
