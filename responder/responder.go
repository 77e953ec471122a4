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

// Package responder implements the server side of the CMP protocol engine.
//
// Every received PKI message passes the same pipeline: decoding, protocol version check, recipient check, message time
// check, protection verification together with the requestor authorization, the dispatch to the CA operation, the
// response wrapping and finally the response signing. Any failure on the way is answered with a well formed error
// message; the responder never drops a decodable request silently.
package responder

import (
	"crypto/x509/pkix"
	"fmt"
	"time"

	"github.com/guardtime/gocmp/audit"
	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/pdu"
	"github.com/guardtime/gocmp/protection"
	"github.com/guardtime/gocmp/sigalg"
)

const (
	// DefaultMessageTimeBias is the default allowed difference between the message time and the responder clock.
	DefaultMessageTimeBias = 300 * time.Second

	auditApplication = "CA"
	auditEventName   = "PKIMessage"
	missingTidLen    = 10
)

// Control holds the protocol policy of the responder.
type Control struct {
	// MessageTimeRequired rejects requests without message time.
	MessageTimeRequired bool
	// MessageTimeBias is the maximum allowed difference between the message time and the current time. Negative
	// values are treated as positive.
	MessageTimeBias time.Duration
	// SendResponderCert attaches the responder certificate to the signed responses.
	SendResponderCert bool
}

// Responder is the CMP responder. It is safe for concurrent use.
type Responder struct {
	name       pdu.GeneralName
	signer     protection.Signer
	requestors RequestorLookup
	processor  Processor
	control    Control
	validator  *sigalg.Validator
	provider   protection.VerifierProvider
	verifier   *protection.Verifier
	sink       audit.Sink
	now        func() time.Time
}

// Option is a functional option setter for the responder.
type Option func(*Responder) error

// OptName sets the responder name. By default the subject of the signer certificate is used.
func OptName(name pkix.Name) Option {
	return func(r *Responder) error {
		if r == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing responder base object.")
		}
		r.name = pdu.NewDirectoryName(name)
		return nil
	}
}

// OptSigner sets the response signer. A responder without signer is out of service.
func OptSigner(s protection.Signer) Option {
	return func(r *Responder) error {
		if r == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing responder base object.")
		}
		if s == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing signer.")
		}
		r.signer = s
		return nil
	}
}

// OptRequestors sets the requestor lookup (see registry.Registry).
func OptRequestors(l RequestorLookup) Option {
	return func(r *Responder) error {
		if r == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing responder base object.")
		}
		if l == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing requestor lookup.")
		}
		r.requestors = l
		return nil
	}
}

// OptProcessor sets the CA operation.
func OptProcessor(p Processor) Option {
	return func(r *Responder) error {
		if r == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing responder base object.")
		}
		if p == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing processor.")
		}
		r.processor = p
		return nil
	}
}

// OptControl sets the protocol policy. By default the message time is optional and the bias is
// DefaultMessageTimeBias.
func OptControl(c Control) Option {
	return func(r *Responder) error {
		if r == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing responder base object.")
		}
		if c.MessageTimeBias < 0 {
			c.MessageTimeBias = -c.MessageTimeBias
		}
		r.control = c
		return nil
	}
}

// OptValidator sets the permitted protection signature algorithms.
func OptValidator(v *sigalg.Validator) Option {
	return func(r *Responder) error {
		if r == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing responder base object.")
		}
		if v == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing algorithm validator.")
		}
		r.validator = v
		return nil
	}
}

// OptVerifierProvider sets the signature verifier provider. By default protection.X509Provider is used.
func OptVerifierProvider(p protection.VerifierProvider) Option {
	return func(r *Responder) error {
		if r == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing responder base object.")
		}
		if p == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing verifier provider.")
		}
		r.provider = p
		return nil
	}
}

// OptAuditSink sets the audit sink. By default the events are written into the log.
func OptAuditSink(s audit.Sink) Option {
	return func(r *Responder) error {
		if r == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing responder base object.")
		}
		if s == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing audit sink.")
		}
		r.sink = s
		return nil
	}
}

// OptClock sets the clock used for the message time checks.
func OptClock(now func() time.Time) Option {
	return func(r *Responder) error {
		if r == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing responder base object.")
		}
		if now == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing clock.")
		}
		r.now = now
		return nil
	}
}

// New returns a new responder. The requestor lookup and the processor are mandatory.
func New(opts ...Option) (*Responder, error) {
	tmp := &Responder{
		control:  Control{MessageTimeBias: DefaultMessageTimeBias},
		provider: protection.X509Provider{},
		sink:     audit.LogSink{},
		now:      time.Now,
	}
	for _, setter := range opts {
		if setter == nil {
			return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Provided option is nil.")
		}
		if err := setter(tmp); err != nil {
			return nil, errors.CmpErr(err).AppendMessage("Unable to setup responder.")
		}
	}

	if tmp.requestors == nil || tmp.processor == nil {
		return nil, errors.New(errors.CmpInvalidStateError).AppendMessage("Requestor lookup and processor are mandatory.")
	}
	if tmp.name.IsNull() {
		if tmp.signer == nil || tmp.signer.Certificate() == nil {
			return nil, errors.New(errors.CmpInvalidStateError).AppendMessage("Responder name can not be resolved.")
		}
		name, err := pdu.NewDirectoryNameFromCert(tmp.signer.Certificate())
		if err != nil {
			return nil, errors.CmpErr(err).AppendMessage("Responder name can not be resolved.")
		}
		tmp.name = name
	}

	verOpts := []protection.VerifierOption{protection.VerOptProvider(tmp.provider)}
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

// Name returns the responder name.
func (r *Responder) Name() pdu.GeneralName {
	if r == nil {
		return pdu.GeneralName{}
	}
	return r.name
}

// IsOnService reports whether the responder is able to answer signed requests.
func (r *Responder) IsOnService() bool {
	return r != nil && r.signer != nil
}

func (r *Responder) String() string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("responder '%s' (on service: %t)", r.name, r.IsOnService())
}
