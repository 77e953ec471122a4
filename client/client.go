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

// Package client implements the requestor side of the CMP protocol engine.
//
// A Client protects the outbound requests, sends them over a network client, correlates the responses with the
// requests and verifies the response protection against the configured responder certificate.
//
// An instance is safe for concurrent use as long as the used transport and signer are.
package client

import (
	"crypto/x509"
	"crypto/x509/pkix"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/hmac"
	"github.com/guardtime/gocmp/net"
	"github.com/guardtime/gocmp/pdu"
	"github.com/guardtime/gocmp/protection"
	"github.com/guardtime/gocmp/sigalg"
)

// HeaderFunc is called for every new request header. It can be used to adjust the header (eg. to set the free text or
// the general info) before the request is protected.
type HeaderFunc func(*pdu.Header) (*pdu.Header, error)

// Client is the CMP requestor.
type Client struct {
	transport net.Client

	signer      protection.Signer
	signRequest bool
	sendCert    bool

	macSecret []byte
	macAlg    hmac.Algorithm

	sender        pdu.GeneralName
	recipient     pdu.GeneralName
	responderCert *x509.Certificate
	validator     *sigalg.Validator
	verifier      *protection.Verifier

	hdrFunc HeaderFunc
}

// Option is a functional option setter for the client.
type Option func(*Client) error

func missingClientBase() error {
	return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing client base object.")
}

// OptTransport sets the network client.
func OptTransport(t net.Client) Option {
	return func(c *Client) error {
		if c == nil {
			return missingClientBase()
		}
		if t == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing network client.")
		}
		c.transport = t
		return nil
	}
}

// OptEndpoint creates the network client for the given URI (see net.NewClient).
func OptEndpoint(uri string, opts ...net.ClientOpt) Option {
	return func(c *Client) error {
		if c == nil {
			return missingClientBase()
		}
		t, err := net.NewClient(uri, opts...)
		if err != nil {
			return err
		}
		c.transport = t
		return nil
	}
}

// OptSigner sets the request signer. The requests are signed by default once the signer is set (see OptSignRequest).
// The sender name defaults to the signer certificate subject.
func OptSigner(s protection.Signer) Option {
	return func(c *Client) error {
		if c == nil {
			return missingClientBase()
		}
		if s == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing signer.")
		}
		c.signer = s
		c.signRequest = true
		return nil
	}
}

// OptSignRequest enables or disables the request signing.
func OptSignRequest(sign bool) Option {
	return func(c *Client) error {
		if c == nil {
			return missingClientBase()
		}
		c.signRequest = sign
		return nil
	}
}

// OptSendRequestorCert attaches the signer certificate to the signed requests.
func OptSendRequestorCert(send bool) Option {
	return func(c *Client) error {
		if c == nil {
			return missingClientBase()
		}
		c.sendCert = send
		return nil
	}
}

// OptMACSecret sets the shared secret for the PBMAC1 protection. MAC protection is applied in case the request is not
// signed. Note that the responder does not accept MAC protection as requestor authentication.
func OptMACSecret(secret []byte, alg hmac.Algorithm) Option {
	return func(c *Client) error {
		if c == nil {
			return missingClientBase()
		}
		if len(secret) == 0 {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing MAC secret.")
		}
		if !alg.Registered() {
			return errors.New(errors.CmpUnknownAlgorithm).AppendMessage("MAC algorithm is not supported.")
		}
		c.macSecret = append([]byte(nil), secret...)
		c.macAlg = alg
		return nil
	}
}

// OptSender sets the requestor name used as the header sender.
func OptSender(name pkix.Name) Option {
	return func(c *Client) error {
		if c == nil {
			return missingClientBase()
		}
		c.sender = pdu.NewDirectoryName(name)
		return nil
	}
}

// OptResponderCert sets the certificate the response protection is verified against. The recipient name defaults to
// the certificate subject.
func OptResponderCert(cert *x509.Certificate) Option {
	return func(c *Client) error {
		if c == nil {
			return missingClientBase()
		}
		if cert == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing responder certificate.")
		}
		c.responderCert = cert
		return nil
	}
}

// OptRecipient sets the responder name used as the header recipient.
func OptRecipient(name pkix.Name) Option {
	return func(c *Client) error {
		if c == nil {
			return missingClientBase()
		}
		c.recipient = pdu.NewDirectoryName(name)
		return nil
	}
}

// OptAlgorithms sets the permitted response protection algorithms. By default all trusted algorithms are permitted.
func OptAlgorithms(v *sigalg.Validator) Option {
	return func(c *Client) error {
		if c == nil {
			return missingClientBase()
		}
		if v == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing algorithm validator.")
		}
		c.validator = v
		return nil
	}
}

// OptHeaderFunc sets the request header callback.
func OptHeaderFunc(f HeaderFunc) Option {
	return func(c *Client) error {
		if c == nil {
			return missingClientBase()
		}
		c.hdrFunc = f
		return nil
	}
}

// New returns a new CMP client. The network client is mandatory.
func New(opts ...Option) (*Client, error) {
	tmp := &Client{}
	for _, setter := range opts {
		if setter == nil {
			return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := setter(tmp); err != nil {
			return nil, errors.CmpErr(err).AppendMessage("Unable to setup CMP client.")
		}
	}

	if tmp.transport == nil {
		return nil, errors.New(errors.CmpInvalidStateError).AppendMessage("Network client has not been created.")
	}
	if tmp.sender.IsNull() && tmp.signer != nil && tmp.signer.Certificate() != nil {
		name, err := pdu.NewDirectoryNameFromCert(tmp.signer.Certificate())
		if err != nil {
			return nil, errors.CmpErr(err).AppendMessage("Unable to resolve the sender name.")
		}
		tmp.sender = name
	}
	if tmp.recipient.IsNull() && tmp.responderCert != nil {
		name, err := pdu.NewDirectoryNameFromCert(tmp.responderCert)
		if err != nil {
			return nil, errors.CmpErr(err).AppendMessage("Unable to resolve the recipient name.")
		}
		tmp.recipient = name
	}
	if tmp.sender.IsNull() {
		tmp.sender = pdu.NullDN
	}
	if tmp.recipient.IsNull() {
		tmp.recipient = pdu.NullDN
	}

	var verOpts []protection.VerifierOption
	if tmp.validator != nil {
		verOpts = append(verOpts, protection.VerOptValidator(tmp.validator))
	}
	v, err := protection.NewVerifier(verOpts...)
	if err != nil {
		return nil, err
	}
	tmp.verifier = v
	return tmp, nil
}

// Sender returns the requestor name.
func (c *Client) Sender() pdu.GeneralName {
	if c == nil {
		return pdu.GeneralName{}
	}
	return c.sender
}

// Recipient returns the responder name.
func (c *Client) Recipient() pdu.GeneralName {
	if c == nil {
		return pdu.GeneralName{}
	}
	return c.recipient
}
