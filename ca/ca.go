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

// Package ca implements the vendor actions of a certificate authority: CA information, certificate chain and CRL
// generation and retrieval. The actions are served via the (responder).ActionDispatcher.
package ca

import (
	"crypto"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/log"
	"github.com/guardtime/gocmp/pdu"
	"github.com/guardtime/gocmp/registry"
	"github.com/guardtime/gocmp/responder"
)

const (
	// DefaultCRLValidity is the default period between the CRL thisUpdate and nextUpdate.
	DefaultCRLValidity = 24 * time.Hour
)

// CA is a certificate authority backend.
type CA struct {
	name  string
	chain []*x509.Certificate
	key   crypto.Signer

	crlValidity time.Duration
	now         func() time.Time

	mu      sync.RWMutex
	revoked []x509.RevocationListEntry
	crls    map[int64][]byte
	crlNum  int64
}

// Option is a functional option of the CA.
type Option func(*CA) error

// OptChain sets the intermediate certificates following the CA certificate in the chain.
func OptChain(certs ...*x509.Certificate) Option {
	return func(c *CA) error {
		for _, cert := range certs {
			if cert == nil {
				return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing chain certificate.")
			}
		}
		c.chain = append(c.chain, certs...)
		return nil
	}
}

// OptCRLValidity sets the CRL validity period.
func OptCRLValidity(d time.Duration) Option {
	return func(c *CA) error {
		if d <= 0 {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("CRL validity must be positive.")
		}
		c.crlValidity = d
		return nil
	}
}

// OptRevoked sets the revoked certificate entries included in the generated CRLs.
func OptRevoked(entries ...x509.RevocationListEntry) Option {
	return func(c *CA) error {
		c.revoked = append([]x509.RevocationListEntry(nil), entries...)
		return nil
	}
}

// OptClock sets the time source.
func OptClock(now func() time.Time) Option {
	return func(c *CA) error {
		if now == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing clock.")
		}
		c.now = now
		return nil
	}
}

// New returns a new CA. The key must match the public key of the CA certificate.
func New(name string, cert *x509.Certificate, key crypto.Signer, opts ...Option) (*CA, error) {
	if name == "" || cert == nil || key == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing CA name, certificate or key.")
	}
	if pk, ok := key.Public().(interface{ Equal(crypto.PublicKey) bool }); !ok || !pk.Equal(cert.PublicKey) {
		return nil, errors.New(errors.CmpInvalidArgumentError).
			AppendMessage("CA key does not match the certificate public key.")
	}

	c := &CA{
		name:        name,
		chain:       []*x509.Certificate{cert},
		key:         key,
		crlValidity: DefaultCRLValidity,
		now:         time.Now,
		crls:        make(map[int64][]byte),
	}
	for _, setter := range opts {
		if setter == nil {
			return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := setter(c); err != nil {
			return nil, errors.CmpErr(err).AppendMessage("Unable to apply CA option.")
		}
	}
	return c, nil
}

// Name returns the CA name.
func (c *CA) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Certificate returns the CA certificate.
func (c *CA) Certificate() *x509.Certificate {
	if c == nil {
		return nil
	}
	return c.chain[0]
}

// Subject returns the CA certificate subject.
func (c *CA) Subject() pkix.Name {
	if c == nil {
		return pkix.Name{}
	}
	return c.chain[0].Subject
}

// Register registers the CA actions at the dispatcher.
func (c *CA) Register(d *responder.ActionDispatcher) error {
	if c == nil || d == nil {
		return errors.New(errors.CmpInvalidArgumentError)
	}
	for _, a := range []struct {
		action  pdu.Action
		perm    registry.Permission
		handler responder.ActionHandler
	}{
		{pdu.ActionGetCAInfo, 0, c.handleCAInfo},
		{pdu.ActionCACertChain, 0, c.handleCertChain},
		{pdu.ActionGenCRL, registry.PermGenCRL, c.handleGenCRL},
		{pdu.ActionGetCRLWithSN, registry.PermGetCRL, c.handleGetCRL},
	} {
		if err := d.Register(a.action, a.perm, a.handler); err != nil {
			return errors.CmpErr(err).AppendMessage(fmt.Sprintf("Failed to register CA '%s' action.", c.name))
		}
	}
	return nil
}

// GenerateCRL generates a new CRL and returns its DER encoding.
func (c *CA) GenerateCRL() ([]byte, error) {
	if c == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UTC()
	num := c.crlNum + 1
	tmpl := &x509.RevocationList{
		Number:                    big.NewInt(num),
		ThisUpdate:                now,
		NextUpdate:                now.Add(c.crlValidity),
		RevokedCertificateEntries: c.revoked,
	}
	der, err := x509.CreateRevocationList(randReader, tmpl, c.chain[0], c.key)
	if err != nil {
		return nil, errors.New(errors.CmpCryptoFailure).SetExtError(err).AppendMessage("Failed to create CRL.")
	}
	c.crls[num] = der
	c.crlNum = num
	log.Info(fmt.Sprintf("CA '%s' generated CRL %d", c.name, num))
	return der, nil
}

// CRL returns the CRL with the given number. A nil number returns the current CRL.
func (c *CA) CRL(number *big.Int) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if number == nil {
		if c.crlNum == 0 {
			return nil, false
		}
		return c.crls[c.crlNum], true
	}
	if !number.IsInt64() {
		return nil, false
	}
	der, ok := c.crls[number.Int64()]
	return der, ok
}

func (c *CA) String() string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("name=%s, subject='%s', crl=%d", c.name, c.chain[0].Subject, c.crlNum)
}
