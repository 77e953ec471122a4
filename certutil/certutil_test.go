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

package certutil

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/fullsailor/pkcs7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/test"
	"github.com/guardtime/gocmp/test/utils"
)

var testLogDir = filepath.Join("..", "test", "out")

func TestUnitCertutil(t *testing.T) {
	test.SetupLogger(t, testLogDir)

	test.Suite{
		{Func: testParsePEMCertificates},
		{Func: testParseDERCertificate},
		{Func: testParsePKCS7},
		{Func: testParseCertificatesInvalid},
		{Func: testParsePrivateKey},
		{Func: testParsePrivateKeyInvalid},
		{Func: testLoadFiles},
	}.Runner(t)
}

func testParsePEMCertificates(t *testing.T, _ ...interface{}) {
	a := utils.NewIdentity(t, "a")
	b := utils.NewRSAIdentity(t, "b")

	certs, err := ParseCertificates(EncodeCertificatesPEM(a.Cert, nil, b.Cert))
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.True(t, a.Cert.Equal(certs[0]))
	assert.True(t, b.Cert.Equal(certs[1]))

	cert, err := ParseCertificate(EncodeCertificatesPEM(b.Cert))
	require.NoError(t, err)
	assert.True(t, b.Cert.Equal(cert))
}

func testParseDERCertificate(t *testing.T, _ ...interface{}) {
	a := utils.NewIdentity(t, "a")

	certs, err := ParseCertificates(a.Cert.Raw)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.True(t, a.Cert.Equal(certs[0]))
}

func testParsePKCS7(t *testing.T, _ ...interface{}) {
	a := utils.NewIdentity(t, "a")
	b := utils.NewIdentity(t, "b")

	p7, err := pkcs7.DegenerateCertificate(append(append([]byte(nil), a.Cert.Raw...), b.Cert.Raw...))
	require.NoError(t, err)

	certs, err := ParseCertificates(p7)
	require.NoError(t, err, "DER PKCS#7 must parse.")
	require.Len(t, certs, 2)
	assert.True(t, a.Cert.Equal(certs[0]))
	assert.True(t, b.Cert.Equal(certs[1]))

	pemData := pem.EncodeToMemory(&pem.Block{Type: pemPKCS7, Bytes: p7})
	certs, err = ParseCertificates(pemData)
	require.NoError(t, err, "PEM PKCS#7 must parse.")
	assert.Len(t, certs, 2)
}

func testParseCertificatesInvalid(t *testing.T, _ ...interface{}) {
	_, err := ParseCertificates(nil)
	assert.Equal(t, errors.CmpInvalidArgumentError, errors.CodeOf(err))

	_, err = ParseCertificates([]byte{0x30, 0x03, 0x02, 0x01, 0x01})
	assert.Equal(t, errors.CmpInvalidFormatError, errors.CodeOf(err))

	_, err = ParseCertificates(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: []byte{1}}))
	assert.Equal(t, errors.CmpInvalidFormatError, errors.CodeOf(err))

	_, err = ParseCertificates(pem.EncodeToMemory(&pem.Block{Type: pemCertificate, Bytes: []byte{1, 2, 3}}))
	assert.Equal(t, errors.CmpInvalidFormatError, errors.CodeOf(err))

	_, err = ParseCertificate(nil)
	assert.Equal(t, errors.CmpInvalidArgumentError, errors.CodeOf(err))
}

func testParsePrivateKey(t *testing.T, _ ...interface{}) {
	ec := utils.NewIdentity(t, "ec")
	rsaID := utils.NewRSAIdentity(t, "rsa")

	pkcs8, err := EncodePrivateKeyPEM(ec.Key)
	require.NoError(t, err)
	key, err := ParsePrivateKey(pkcs8)
	require.NoError(t, err)
	assert.True(t, ec.Key.(*ecdsa.PrivateKey).Equal(key))

	sec1, err := x509.MarshalECPrivateKey(ec.Key.(*ecdsa.PrivateKey))
	require.NoError(t, err)
	key, err = ParsePrivateKey(pem.EncodeToMemory(&pem.Block{Type: pemECPrivateKey, Bytes: sec1}))
	require.NoError(t, err)
	assert.True(t, ec.Key.(*ecdsa.PrivateKey).Equal(key))

	pkcs1 := x509.MarshalPKCS1PrivateKey(rsaID.Key.(*rsa.PrivateKey))
	key, err = ParsePrivateKey(pkcs1)
	require.NoError(t, err, "DER PKCS#1 must parse.")
	assert.True(t, rsaID.Key.(*rsa.PrivateKey).Equal(key))
}

func testParsePrivateKeyInvalid(t *testing.T, _ ...interface{}) {
	_, err := ParsePrivateKey(nil)
	assert.Equal(t, errors.CmpInvalidArgumentError, errors.CodeOf(err))

	_, err = ParsePrivateKey(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: []byte{1}}))
	assert.Equal(t, errors.CmpInvalidFormatError, errors.CodeOf(err))

	_, err = ParsePrivateKey([]byte{1, 2, 3})
	assert.Equal(t, errors.CmpInvalidFormatError, errors.CodeOf(err))
}

func testLoadFiles(t *testing.T, _ ...interface{}) {
	id := utils.NewIdentity(t, "file")
	dir := t.TempDir()

	certFile := filepath.Join(dir, "cert.pem")
	require.NoError(t, os.WriteFile(certFile, EncodeCertificatesPEM(id.Cert), 0600))
	keyPEM, err := EncodePrivateKeyPEM(id.Key)
	require.NoError(t, err)
	keyFile := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0600))

	cert, err := LoadCertificate(certFile)
	require.NoError(t, err)
	assert.True(t, id.Cert.Equal(cert))
	key, err := LoadPrivateKey(keyFile)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(mustPKCS8(t, id.Key), mustPKCS8(t, key)))

	_, err = LoadCertificates(filepath.Join(dir, "missing.pem"))
	assert.Equal(t, errors.CmpIoError, errors.CodeOf(err))
	_, err = LoadPrivateKey(filepath.Join(dir, "missing.pem"))
	assert.Equal(t, errors.CmpIoError, errors.CodeOf(err))
	_, err = LoadPrivateKey(certFile)
	assert.Equal(t, errors.CmpInvalidFormatError, errors.CodeOf(err))
}

func mustPKCS8(t *testing.T, key interface{}) []byte {
	t.Helper()

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return der
}
