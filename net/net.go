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

// Package net provides the transports that carry DER encoded PKI messages between a requestor and a CMP responder.
//
// The HTTP transport follows RFC 6712: a request is POSTed with the content type application/pkixcmp to the URL of
// the CA. The TCP transport writes the DER encoding as is and reads the response up to the end of the DER element.
package net

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/pdu"
)

// Client is abstract network client.
type Client interface {
	Endpoint

	// Receive places the request towards an endpoint and returns the response.
	// In case the context does not have a deadline set, the Client's default timeout is used.
	Receive(context.Context, []byte) ([]byte, error)
}

// Endpoint is the abstract network endpoint.
type Endpoint interface {
	URI() string
}

// ClientOpt is the configuration option for the network provider.
type ClientOpt func(Client) error

// ReadLimiter is interface for network clients whose read data amount can be limited.
type ReadLimiter interface {
	// SetReadLimit sets a read limit in bytes for a network client. A limit of 0 disables the limiter.
	SetReadLimit(uint32) error
}

// RequestTimeouter is interface for network client whose request time can be limited.
type RequestTimeouter interface {
	// SetTimeout sets the request timeout in seconds. A timeout of 0 disables it.
	SetTimeout(byte) error
}

// ResponseVerifier is interface for network client whose read data should be verified.
//
// The provided function verifies whether the read byte stream contains a complete PKI message. If in case of a false
// result the optional error is set, it will be returned from the network client as errors.CmpNetworkError with
// the extended error set (see (CmpError).ExtError()).
//
// In order to disable the consistency verification, set the verification function to nil.
type ResponseVerifier interface {
	// SetVerifier applies the verifier function.
	SetVerifier(ResponseVerifierFunc) error
}

// TLSConfigurer is interface for network clients connecting over TLS.
type TLSConfigurer interface {
	// SetTLSConfig sets the TLS configuration, eg. the client certificate presented to the responder.
	SetTLSConfig(*tls.Config) error
}

// ResponseVerifierFunc is the function header definition for using in response consistency verification.
// The input is a byte stream to be verified. Output is the verification result and an optional error for failure details.
type ResponseVerifierFunc func([]byte) (bool, error)

// Specifies the default request timeout in seconds.
// If changed, update the doc under ClientOptRequestTimeout.
const defaultRequestTimeout = 10

// readChunk is the size of a single read from the connection.
const readChunk = 4096

// transport holds the settings shared by the network clients.
type transport struct {
	timeout    time.Duration
	readLimit  uint32
	isComplete ResponseVerifierFunc
}

func newTransport() *transport {
	return &transport{
		timeout:    defaultRequestTimeout * time.Second,
		readLimit:  pdu.MaxSize,
		isComplete: pdu.IsComplete,
	}
}

// SetReadLimit implements ReadLimiter interface.
func (t *transport) SetReadLimit(limit uint32) error {
	if t == nil {
		return errors.New(errors.CmpInvalidArgumentError)
	}
	t.readLimit = limit
	return nil
}

// SetTimeout implements RequestTimeouter interface.
func (t *transport) SetTimeout(d byte) error {
	if t == nil {
		return errors.New(errors.CmpInvalidArgumentError)
	}
	t.timeout = time.Duration(d) * time.Second
	return nil
}

// SetVerifier implements ResponseVerifier interface.
func (t *transport) SetVerifier(v ResponseVerifierFunc) error {
	if t == nil {
		return errors.New(errors.CmpInvalidArgumentError)
	}
	t.isComplete = v
	return nil
}

// withDeadline bounds ctx with the request timeout, unless ctx already carries a deadline.
func (t *transport) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok || t.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.timeout)
}

// readMessage reads a PKI message from r. Reading stops as soon as the verifier reports a complete message. Without a
// verifier everything up to EOF is returned.
func (t *transport) readMessage(r io.Reader) ([]byte, error) {
	var (
		msg   []byte
		chunk = make([]byte, readChunk)
	)
	for {
		n, err := r.Read(chunk)
		msg = append(msg, chunk[:n]...)
		if t.readLimit > 0 && uint32(len(msg)) > t.readLimit {
			return nil, errors.New(errors.CmpNetworkError).
				AppendMessage(fmt.Sprintf("Response exceeds the read limit of %d bytes.", t.readLimit))
		}

		if t.isComplete != nil && n > 0 {
			ok, verr := t.isComplete(msg)
			if ok {
				return msg, nil
			}
			if verr != nil {
				return nil, errors.New(errors.CmpNetworkError).SetExtError(verr).
					AppendMessage("Response is not a valid PKI message.")
			}
		}

		switch {
		case err == io.EOF && t.isComplete == nil:
			return msg, nil
		case err == io.EOF:
			return nil, errors.New(errors.CmpNetworkError).
				AppendMessage(fmt.Sprintf("Connection closed after %d bytes of an incomplete PKI message.", len(msg)))
		case err != nil:
			return nil, errors.New(errors.CmpNetworkError).SetExtError(err).
				AppendMessage("Failed to read response.")
		}
	}
}

// NewClient returns a new network client instance.
//
// Supported schemes are http, https and tcp, optionally prefixed with 'cmp+'. In case of an HTTP endpoint the path
// selects the CA (eg. 'https://ca.example.com/cmp/myca').
func NewClient(uri string, options ...ClientOpt) (Client, error) {
	if len(uri) == 0 {
		return nil, errors.New(errors.CmpInvalidFormatError).AppendMessage("Missing endpoint URI.")
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.New(errors.CmpNetworkError).SetExtError(err).
			AppendMessage("Unable to parse URI")
	}

	var (
		tmp   Client
		isCmp bool
	)
	switch u.Scheme {
	case "cmp", "cmp+http":
		isCmp = true
		u.Scheme = "http"
	case "cmp+https":
		isCmp = true
		u.Scheme = "https"
	case "cmp+tcp":
		isCmp = true
		u.Scheme = "tcp"
	}
	if u.Hostname() == "" {
		return nil, errors.New(errors.CmpInvalidFormatError).AppendMessage(fmt.Sprintf("Missing endpoint host: %s", uri))
	}

	switch u.Scheme {
	case "http", "https":
		tmp = newHTTPClient(u.String(), isCmp)
	case "tcp":
		tmp = newTCPClient(u.Hostname(), u.Port())
	default:
		return nil, errors.New(errors.CmpInvalidFormatError).AppendMessage(fmt.Sprintf("Unknown URI scheme '%s'.", u.Scheme))
	}

	// Apply options.
	for _, setter := range options {
		if setter == nil {
			return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := setter(tmp); err != nil {
			return nil, errors.CmpErr(err).AppendMessage("Unable to apply network option.")
		}
	}
	return tmp, nil
}

// applyTo returns an option that applies set to a client implementing T.
func applyTo[T any](what string, set func(T) error) ClientOpt {
	return func(c Client) error {
		if c == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing network client base object.")
		}
		impl, ok := c.(T)
		if !ok {
			return errors.New(errors.CmpNotImplemented).
				AppendMessage(fmt.Sprintf("Network client %T does not support %s.", c, what))
		}
		if err := set(impl); err != nil {
			return errors.CmpErr(err).AppendMessage(fmt.Sprintf("Unable to set %s.", what))
		}
		return nil
	}
}

// ClientOptReadLimit is option that specifies the limit for the amount of data received. The default limit is
// pdu.MaxSize.
//
// Note that network client must implement ReadLimiter interface.
func ClientOptReadLimit(limit uint32) ClientOpt {
	return applyTo("read limit", func(c ReadLimiter) error { return c.SetReadLimit(limit) })
}

// ClientOptRequestTimeout is option that specifies request timeout duration in seconds.
// A default request timeout duration is 10 seconds.
//
// Note that network client must implement RequestTimeouter interface.
func ClientOptRequestTimeout(timeout byte) ClientOpt {
	return applyTo("request timeout", func(c RequestTimeouter) error { return c.SetTimeout(timeout) })
}

// ClientOptDatagramVerifier is option that specifies the datagram completeness verifier.
//
// Setting the verifier to nil will disable the completeness verification for read data. In that case everything up
// to the end of the stream is returned. It is user responsibility to verify the received data.
//
// The default verifier ensures DER completeness (see pdu.IsComplete()).
//
// Note that network client must implement ResponseVerifier interface.
func ClientOptDatagramVerifier(verifier ResponseVerifierFunc) ClientOpt {
	return applyTo("datagram verification", func(c ResponseVerifier) error { return c.SetVerifier(verifier) })
}

// ClientOptTLSConfig is option that specifies the TLS configuration of the connection. A requestor authenticated by
// its TLS client certificate may send unprotected requests.
//
// Note that network client must implement TLSConfigurer interface.
func ClientOptTLSConfig(cfg *tls.Config) ClientOpt {
	return applyTo("TLS", func(c TLSConfigurer) error {
		if cfg == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing TLS configuration.")
		}
		return c.SetTLSConfig(cfg)
	})
}
