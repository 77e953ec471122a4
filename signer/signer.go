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

// Package signer implements a software signer pool for protecting outgoing PKI messages.
//
// The pool holds a bounded number of signing keys. A key is borrowed for the duration of a single signature
// computation; in case no key becomes idle within the borrow timeout, the signing fails with CmpNoIdleSigner.
package signer

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/log"
	"github.com/guardtime/gocmp/sigalg"
)

const (
	// DefaultBorrowTimeout is the default time to wait for an idle signer.
	DefaultBorrowTimeout = 10 * time.Second
	// DefaultPoolSize is the default number of parallel signers.
	DefaultPoolSize = 1
)

// Pool is a pool of signing keys sharing the same certificate. It implements protection.Signer interface.
type Pool struct {
	alg     sigalg.Algorithm
	cert    *x509.Certificate
	keys    chan crypto.Signer
	size    int
	timeout time.Duration
}

type options struct {
	alg     sigalg.Algorithm
	size    int
	timeout time.Duration
	extra   []crypto.Signer
}

// Option is a functional option setter for the signer pool.
type Option func(*options) error

// OptAlgorithm sets the signature algorithm by its name. By default the algorithm is derived from the key type.
func OptAlgorithm(name string) Option {
	return func(o *options) error {
		if o == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing options object.")
		}
		a := sigalg.ByName(name)
		if a == sigalg.Unknown {
			return errors.New(errors.CmpUnknownAlgorithm).AppendMessage(fmt.Sprintf("Unknown algorithm '%s'.", name))
		}
		o.alg = a
		return nil
	}
}

// OptPoolSize sets the number of parallel signers backed by the key.
func OptPoolSize(n int) Option {
	return func(o *options) error {
		if o == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing options object.")
		}
		if n <= 0 {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage(fmt.Sprintf("Invalid pool size %d.", n))
		}
		o.size = n
		return nil
	}
}

// OptBorrowTimeout sets the maximum time to wait for an idle signer.
func OptBorrowTimeout(d time.Duration) Option {
	return func(o *options) error {
		if o == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing options object.")
		}
		if d <= 0 {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Borrow timeout must be positive.")
		}
		o.timeout = d
		return nil
	}
}

// OptKeys adds additional key handles of the same key pair (eg separate HSM sessions) to the pool.
func OptKeys(keys ...crypto.Signer) Option {
	return func(o *options) error {
		if o == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing options object.")
		}
		for i, k := range keys {
			if k == nil {
				return errors.New(errors.CmpInvalidArgumentError).AppendMessage(fmt.Sprintf("Key at %d is nil.", i))
			}
		}
		o.extra = append(o.extra, keys...)
		return nil
	}
}

// New returns a new signer pool for the key and its certificate.
func New(key crypto.Signer, cert *x509.Certificate, opts ...Option) (*Pool, error) {
	if key == nil || cert == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing signing key or certificate.")
	}

	o := options{size: DefaultPoolSize, timeout: DefaultBorrowTimeout}
	for _, setter := range opts {
		if setter == nil {
			return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := setter(&o); err != nil {
			return nil, errors.CmpErr(err).AppendMessage("Unable to setup signer pool.")
		}
	}

	if !samePublicKey(key.Public(), cert.PublicKey) {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Key does not match the certificate.")
	}
	for _, k := range o.extra {
		if !samePublicKey(k.Public(), cert.PublicKey) {
			return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Additional key does not match the certificate.")
		}
	}

	if o.alg == sigalg.Unknown {
		a, err := sigalg.ForKey(key.Public())
		if err != nil {
			return nil, err
		}
		o.alg = a
	}
	if !o.alg.Suits(key.Public()) {
		return nil, errors.New(errors.CmpInvalidArgumentError).
			AppendMessage(fmt.Sprintf("Algorithm %s does not suit the key.", o.alg))
	}

	size := o.size + len(o.extra)
	p := &Pool{
		alg:     o.alg,
		cert:    cert,
		keys:    make(chan crypto.Signer, size),
		size:    size,
		timeout: o.timeout,
	}
	for i := 0; i < o.size; i++ {
		p.keys <- key
	}
	for _, k := range o.extra {
		p.keys <- k
	}
	return p, nil
}

func samePublicKey(a, b crypto.PublicKey) bool {
	k, ok := a.(interface{ Equal(crypto.PublicKey) bool })
	return ok && k.Equal(b)
}

// Algorithm returns the signature algorithm.
func (p *Pool) Algorithm() sigalg.Algorithm {
	if p == nil {
		return sigalg.Unknown
	}
	return p.alg
}

// Certificate returns the signer certificate.
func (p *Pool) Certificate() *x509.Certificate {
	if p == nil {
		return nil
	}
	return p.cert
}

// Size returns the number of signers in the pool.
func (p *Pool) Size() int {
	if p == nil {
		return 0
	}
	return p.size
}

// Idle returns the number of currently idle signers.
func (p *Pool) Idle() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Sign borrows an idle signer and computes the signature over the data. The borrowing is limited by the pool
// borrow timeout and by the context.
func (p *Pool) Sign(ctx context.Context, data []byte) ([]byte, error) {
	if p == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key, err := p.borrow(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { p.keys <- key }()

	return p.alg.Sign(key, data)
}

func (p *Pool) borrow(ctx context.Context) (crypto.Signer, error) {
	select {
	case k := <-p.keys:
		return k, nil
	default:
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case k := <-p.keys:
		return k, nil
	case <-ctx.Done():
		log.Warning("Signer borrow interrupted: ", ctx.Err())
		return nil, errors.New(errors.CmpNoIdleSigner).SetExtError(ctx.Err()).AppendMessage("Context done while waiting for signer.")
	case <-timer.C:
		log.Warning("No idle signer within ", p.timeout)
		return nil, errors.New(errors.CmpNoIdleSigner).AppendMessage(fmt.Sprintf("No idle signer within %s.", p.timeout))
	}
}
