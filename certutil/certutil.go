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

// Package certutil reads certificates and private keys from PEM, DER and PKCS#7 encoded data.
package certutil

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/fullsailor/pkcs7"

	"github.com/guardtime/gocmp/errors"
)

const (
	pemCertificate   = "CERTIFICATE"
	pemPKCS7         = "PKCS7"
	pemPrivateKey    = "PRIVATE KEY"
	pemECPrivateKey  = "EC PRIVATE KEY"
	pemRSAPrivateKey = "RSA PRIVATE KEY"
)

// ParseCertificates parses the certificates. The data may hold PEM encoded certificates or PKCS#7 structures, a DER
// encoded certificate or a DER encoded PKCS#7 certs-only structure. The certificates are returned in the order found.
func ParseCertificates(data []byte) ([]*x509.Certificate, error) {
	if len(data) == 0 {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing certificate data.")
	}

	if !bytes.Contains(data, []byte("-----BEGIN")) {
		return parseDER(data)
	}

	var certs []*x509.Certificate
	for rest := data; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch block.Type {
		case pemCertificate:
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, errors.New(errors.CmpInvalidFormatError).SetExtError(err).
					AppendMessage("Failed to parse PEM certificate.")
			}
			certs = append(certs, cert)
		case pemPKCS7:
			list, err := parsePKCS7(block.Bytes)
			if err != nil {
				return nil, err
			}
			certs = append(certs, list...)
		}
	}
	if len(certs) == 0 {
		return nil, errors.New(errors.CmpInvalidFormatError).AppendMessage("No certificates found.")
	}
	return certs, nil
}

func parseDER(der []byte) ([]*x509.Certificate, error) {
	if cert, err := x509.ParseCertificate(der); err == nil {
		return []*x509.Certificate{cert}, nil
	}
	return parsePKCS7(der)
}

func parsePKCS7(der []byte) ([]*x509.Certificate, error) {
	p7, err := pkcs7.Parse(der)
	if err != nil {
		return nil, errors.New(errors.CmpInvalidFormatError).SetExtError(err).
			AppendMessage("Data is neither a certificate nor a PKCS#7 structure.")
	}
	if len(p7.Certificates) == 0 {
		return nil, errors.New(errors.CmpInvalidFormatError).AppendMessage("PKCS#7 structure holds no certificates.")
	}
	return p7.Certificates, nil
}

// ParseCertificate parses the data and returns the first certificate (see ParseCertificates).
func ParseCertificate(data []byte) (*x509.Certificate, error) {
	certs, err := ParseCertificates(data)
	if err != nil {
		return nil, err
	}
	return certs[0], nil
}

// ParsePrivateKey parses a PKCS#8, SEC 1 (EC) or PKCS#1 (RSA) private key, PEM or DER encoded.
func ParsePrivateKey(data []byte) (crypto.Signer, error) {
	if len(data) == 0 {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing private key data.")
	}

	der := data
	if block, _ := pem.Decode(data); block != nil {
		switch block.Type {
		case pemPrivateKey, pemECPrivateKey, pemRSAPrivateKey:
			der = block.Bytes
		default:
			return nil, errors.New(errors.CmpInvalidFormatError).
				AppendMessage(fmt.Sprintf("Unsupported PEM block type '%s'.", block.Type))
		}
	}

	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return toSigner(key)
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	return nil, errors.New(errors.CmpInvalidFormatError).AppendMessage("Failed to parse private key.")
}

func toSigner(key interface{}) (crypto.Signer, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		return k, nil
	case ed25519.PrivateKey:
		return k, nil
	}
	return nil, errors.New(errors.CmpUnknownAlgorithm).AppendMessage(fmt.Sprintf("Unsupported private key type %T.", key))
}

// LoadCertificates reads the certificates from the file (see ParseCertificates).
func LoadCertificates(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CmpIoError).SetExtError(err).
			AppendMessage(fmt.Sprintf("Failed to read certificate file '%s'.", path))
	}
	certs, err := ParseCertificates(data)
	if err != nil {
		return nil, errors.CmpErr(err).AppendMessage(fmt.Sprintf("Invalid certificate file '%s'.", path))
	}
	return certs, nil
}

// LoadCertificate reads the first certificate from the file.
func LoadCertificate(path string) (*x509.Certificate, error) {
	certs, err := LoadCertificates(path)
	if err != nil {
		return nil, err
	}
	return certs[0], nil
}

// LoadPrivateKey reads the private key from the file (see ParsePrivateKey).
func LoadPrivateKey(path string) (crypto.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CmpIoError).SetExtError(err).
			AppendMessage(fmt.Sprintf("Failed to read private key file '%s'.", path))
	}
	key, err := ParsePrivateKey(data)
	if err != nil {
		return nil, errors.CmpErr(err).AppendMessage(fmt.Sprintf("Invalid private key file '%s'.", path))
	}
	return key, nil
}

// EncodeCertificatesPEM returns the PEM encoding of the certificates.
func EncodeCertificatesPEM(certs ...*x509.Certificate) []byte {
	var b bytes.Buffer
	for _, c := range certs {
		if c == nil {
			continue
		}
		_ = pem.Encode(&b, &pem.Block{Type: pemCertificate, Bytes: c.Raw})
	}
	return b.Bytes()
}

// EncodePrivateKeyPEM returns the PKCS#8 PEM encoding of the private key.
func EncodePrivateKeyPEM(key crypto.Signer) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, errors.New(errors.CmpInvalidArgumentError).SetExtError(err).
			AppendMessage("Failed to encode private key.")
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPrivateKey, Bytes: der}), nil
}
