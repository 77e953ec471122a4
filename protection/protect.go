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
	"context"
	"crypto/x509"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/hmac"
	"github.com/guardtime/gocmp/pdu"
)

// Protect returns a signature protected copy of the envelope. The protection algorithm of the signer is set in the
// header. In case sendCert is set, the signer certificate is prepended to the extra certificates.
func Protect(ctx context.Context, env *pdu.Envelope, signer Signer, sendCert bool) (*pdu.Envelope, error) {
	if env == nil || signer == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	alg := signer.Algorithm()
	if !alg.Defined() {
		return nil, errors.New(errors.CmpUnknownAlgorithm).AppendMessage("Signer algorithm is not defined.")
	}

	id := alg.Identifier()
	unsigned, err := rebuild(env, pdu.HdrSetProtectionAlg(&id))
	if err != nil {
		return nil, err
	}
	data, err := unsigned.ProtectedPart()
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(ctx, data)
	if err != nil {
		return nil, errors.CmpErr(err).AppendMessage("Failed to sign PKI message.")
	}

	extra, err := env.ExtraCerts()
	if err != nil {
		return nil, err
	}
	if sendCert {
		if cert := signer.Certificate(); cert != nil {
			extra = append([]*x509.Certificate{cert}, extra...)
		}
	}
	return unsigned.WithProtection(sig, extra)
}

// ProtectMAC returns a PBMAC1 protected copy of the envelope.
func ProtectMAC(env *pdu.Envelope, params hmac.Params, secret []byte) (*pdu.Envelope, error) {
	if env == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	id, err := params.Identifier()
	if err != nil {
		return nil, err
	}
	unprotected, err := rebuild(env, pdu.HdrSetProtectionAlg(&id))
	if err != nil {
		return nil, err
	}
	data, err := unprotected.ProtectedPart()
	if err != nil {
		return nil, err
	}
	mac, err := hmac.Compute(params, secret, data)
	if err != nil {
		return nil, err
	}
	extra, err := env.ExtraCerts()
	if err != nil {
		return nil, err
	}
	return unprotected.WithProtection(mac, extra)
}

// VerifyMAC verifies the PBMAC1 protection of the envelope with the shared secret. A successful MAC check only proves
// the knowledge of the secret, it does not authenticate the sender.
func VerifyMAC(env *pdu.Envelope, secret []byte) error {
	if env == nil {
		return errors.New(errors.CmpInvalidArgumentError)
	}
	prot, err := env.Protection()
	if err != nil {
		return err
	}
	if prot.Kind != pdu.MACBased {
		return errors.New(errors.CmpInvalidStateError).AppendMessage("Message is not MAC protected.")
	}
	params, err := hmac.ParseIdentifier(prot.Algorithm)
	if err != nil {
		return err
	}
	data, err := env.ProtectedPart()
	if err != nil {
		return err
	}
	return hmac.Verify(params, secret, data, prot.Value)
}

func rebuild(env *pdu.Envelope, settings ...pdu.HeaderSetting) (*pdu.Envelope, error) {
	hdr, err := env.Header()
	if err != nil {
		return nil, err
	}
	body, err := env.Body()
	if err != nil {
		return nil, err
	}
	nh, err := hdr.Derive(settings...)
	if err != nil {
		return nil, err
	}
	return pdu.NewEnvelope(nh, body)
}
