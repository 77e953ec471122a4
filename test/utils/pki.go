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

package utils

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

// Identity is a test key pair with its certificate.
type Identity struct {
	Key  crypto.Signer
	Cert *x509.Certificate
}

// Name returns the certificate subject with every attribute listed in ExtraNames, in the order of the raw subject.
func (i *Identity) Name() pkix.Name {
	var rdn pkix.RDNSequence
	if _, err := asn1.Unmarshal(i.Cert.RawSubject, &rdn); err != nil {
		return i.Cert.Subject
	}
	var name pkix.Name
	for _, set := range rdn {
		name.ExtraNames = append(name.ExtraNames, set...)
	}
	return name
}

var serial int64 = 1000

// TestName returns a distinguished name with the given common name.
func TestName(cn string) pkix.Name {
	return pkix.Name{
		Country:      []string{"EE"},
		Organization: []string{"Guardtime"},
		CommonName:   cn,
	}
}

var oidDomainComponent = asn1.ObjectIdentifier{0, 9, 2342, 19200300, 100, 1, 25}

// TestDCName returns a distinguished name with a domain component and the common name. The domain component has no
// dedicated pkix.Name field, hence it is lost when the name is taken from x509.Certificate.Subject.
func TestDCName(dc, cn string) pkix.Name {
	return pkix.Name{
		ExtraNames: []pkix.AttributeTypeAndValue{
			{Type: oidDomainComponent, Value: dc},
			{Type: asn1.ObjectIdentifier{2, 5, 4, 3}, Value: cn},
		},
	}
}

// NewIdentity returns a self-signed ECDSA P-256 identity.
func NewIdentity(t testing.TB, cn string) *Identity {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal("Failed to generate ECDSA key: ", err)
	}
	return selfSigned(t, cn, key)
}

// NewRSAIdentity returns a self-signed RSA identity.
func NewRSAIdentity(t testing.TB, cn string) *Identity {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal("Failed to generate RSA key: ", err)
	}
	return selfSigned(t, cn, key)
}

// NewIdentityWithSubject returns a self-signed ECDSA P-256 identity with the subject.
func NewIdentityWithSubject(t testing.TB, subject pkix.Name) *Identity {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal("Failed to generate ECDSA key: ", err)
	}
	return selfSignedName(t, subject, key)
}

func selfSigned(t testing.TB, cn string, key crypto.Signer) *Identity {
	t.Helper()
	return selfSignedName(t, TestName(cn), key)
}

func selfSignedName(t testing.TB, subject pkix.Name, key crypto.Signer) *Identity {
	t.Helper()

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(atomic.AddInt64(&serial, 1)),
		Subject:               subject,
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1)},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		t.Fatal("Failed to create certificate: ", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal("Failed to parse certificate: ", err)
	}
	return &Identity{Key: key, Cert: cert}
}
