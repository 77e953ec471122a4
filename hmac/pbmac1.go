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

package hmac

import (
	"crypto/hmac"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/pdu"
)

const (
	// DefaultIterations is the PBKDF2 iteration count used for new parameters.
	DefaultIterations = 10000
	// MaxIterations limits the work an incoming message can demand.
	MaxIterations = 100000

	defaultSaltLen = 16
)

type pbmac1Params struct {
	KeyDerivationFunc pkix.AlgorithmIdentifier
	MessageAuthScheme pkix.AlgorithmIdentifier
}

type pbkdf2Params struct {
	Salt           []byte
	IterationCount int
	KeyLength      int                      `asn1:"optional"`
	PRF            pkix.AlgorithmIdentifier `asn1:"optional"`
}

// Params are the PBMAC1 parameters.
type Params struct {
	Salt       []byte
	Iterations int
	// KeyLength is the derived key length in bytes.
	KeyLength int
	PRF       Algorithm
	MAC       Algorithm
}

// NewParams returns parameters with a fresh random salt and the default iteration count. The same algorithm is used
// as the PRF and as the MAC.
func NewParams(alg Algorithm) (Params, error) {
	if !alg.Registered() || alg == HMACWithSHA1 {
		return Params{}, errors.New(errors.CmpUnknownAlgorithm).AppendMessage(fmt.Sprintf("Unsupported MAC %s.", alg))
	}
	salt, err := pdu.NewNonce(defaultSaltLen)
	if err != nil {
		return Params{}, err
	}
	return Params{
		Salt:       salt,
		Iterations: DefaultIterations,
		KeyLength:  algHashes[alg].Size(),
		PRF:        alg,
		MAC:        alg,
	}, nil
}

func (p Params) validate() error {
	if len(p.Salt) == 0 {
		return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing PBKDF2 salt.")
	}
	if p.Iterations <= 0 || p.Iterations > MaxIterations {
		return errors.New(errors.CmpInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Invalid PBKDF2 iteration count %d.", p.Iterations))
	}
	if p.KeyLength <= 0 || p.KeyLength > 64 {
		return errors.New(errors.CmpInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Invalid PBKDF2 key length %d.", p.KeyLength))
	}
	if !p.PRF.Registered() || !p.MAC.Registered() || p.MAC == HMACWithSHA1 {
		return errors.New(errors.CmpUnknownAlgorithm).
			AppendMessage(fmt.Sprintf("Unsupported PBMAC1 algorithms %s/%s.", p.PRF, p.MAC))
	}
	return nil
}

// Identifier returns the PBMAC1 algorithm identifier to be set as the protection algorithm of the PKI header.
func (p Params) Identifier() (pkix.AlgorithmIdentifier, error) {
	if err := p.validate(); err != nil {
		return pkix.AlgorithmIdentifier{}, err
	}

	kdf, err := asn1.Marshal(pbkdf2Params{
		Salt:           p.Salt,
		IterationCount: p.Iterations,
		KeyLength:      p.KeyLength,
		PRF:            p.PRF.identifier(),
	})
	if err != nil {
		return pkix.AlgorithmIdentifier{}, errors.New(errors.CmpInvalidFormatError).SetExtError(err)
	}
	params, err := asn1.Marshal(pbmac1Params{
		KeyDerivationFunc: pkix.AlgorithmIdentifier{Algorithm: oidPBKDF2, Parameters: asn1.RawValue{FullBytes: kdf}},
		MessageAuthScheme: p.MAC.identifier(),
	})
	if err != nil {
		return pkix.AlgorithmIdentifier{}, errors.New(errors.CmpInvalidFormatError).SetExtError(err)
	}
	return pkix.AlgorithmIdentifier{Algorithm: pdu.OIDPBMAC1, Parameters: asn1.RawValue{FullBytes: params}}, nil
}

// ParseIdentifier parses the PBMAC1 parameters of a protection algorithm identifier.
func ParseIdentifier(id pkix.AlgorithmIdentifier) (Params, error) {
	if !id.Algorithm.Equal(pdu.OIDPBMAC1) {
		return Params{}, errors.New(errors.CmpUnknownAlgorithm).
			AppendMessage(fmt.Sprintf("Not a PBMAC1 algorithm: %s.", id.Algorithm))
	}

	var outer pbmac1Params
	if err := unmarshalAll(id.Parameters.FullBytes, &outer); err != nil {
		return Params{}, errors.CmpErr(err).AppendMessage("Invalid PBMAC1 parameters.")
	}
	if !outer.KeyDerivationFunc.Algorithm.Equal(oidPBKDF2) {
		return Params{}, errors.New(errors.CmpUnknownAlgorithm).AppendMessage("Unsupported key derivation function.")
	}
	var kdf pbkdf2Params
	if err := unmarshalAll(outer.KeyDerivationFunc.Parameters.FullBytes, &kdf); err != nil {
		return Params{}, errors.CmpErr(err).AppendMessage("Invalid PBKDF2 parameters.")
	}

	p := Params{
		Salt:       kdf.Salt,
		Iterations: kdf.IterationCount,
		KeyLength:  kdf.KeyLength,
		PRF:        HMACWithSHA1,
		MAC:        algByOID(outer.MessageAuthScheme.Algorithm),
	}
	if len(kdf.PRF.Algorithm) != 0 {
		p.PRF = algByOID(kdf.PRF.Algorithm)
	}
	// RFC 9045 requires the key length; fall back to the MAC size if it was left out.
	if p.KeyLength == 0 && p.MAC != Unknown {
		p.KeyLength = algHashes[p.MAC].Size()
	}
	if err := p.validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

func unmarshalAll(der []byte, v interface{}) error {
	rest, err := asn1.Unmarshal(der, v)
	if err != nil {
		return errors.New(errors.CmpInvalidFormatError).SetExtError(err)
	}
	if len(rest) != 0 {
		return errors.New(errors.CmpInvalidFormatError).AppendMessage("Trailing data.")
	}
	return nil
}

// Compute returns the MAC over data with the key derived from secret.
func Compute(p Params, secret, data []byte) ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing MAC secret.")
	}

	key := pbkdf2.Key(secret, p.Salt, p.Iterations, p.KeyLength, algHashes[p.PRF].New)
	h, err := New(p.MAC, key)
	if err != nil {
		return nil, err
	}
	if _, err := h.Write(data); err != nil {
		return nil, err
	}
	return h.Sum()
}

// Verify checks the MAC over data. The comparison is done in constant time.
func Verify(p Params, secret, data, mac []byte) error {
	expected, err := Compute(p, secret, data)
	if err != nil {
		return err
	}
	if !hmac.Equal(expected, mac) {
		return errors.New(errors.CmpCryptoFailure).AppendMessage("MAC mismatch.")
	}
	return nil
}
