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

package responder

import (
	"context"
	"crypto/x509"
	"fmt"

	"github.com/guardtime/gocmp/audit"
	"github.com/guardtime/gocmp/pdu"
	"github.com/guardtime/gocmp/registry"
)

// RequestorLookup resolves the requestors known to the responder. The returned requestor is owned by the caller.
type RequestorLookup interface {
	LookupByName(name pdu.GeneralName) (*registry.Requestor, bool)
	LookupByCertificate(cert *x509.Certificate) (*registry.Requestor, bool)
}

// Request is an authenticated request passed to the CA operation.
type Request struct {
	// Envelope is the request message as received.
	Envelope *pdu.Envelope
	Header   *pdu.Header
	Body     *pdu.Body
	// Requestor is the authenticated requestor.
	Requestor *registry.Requestor
	// TransactionID is the transaction ID echoed in the response.
	TransactionID []byte
	// MessageID is the audit message ID of the exchange.
	MessageID string
	// Event is the audit event of the exchange. The CA operation may add fields to it.
	Event *audit.Event
}

// Tid returns the hex encoded transaction ID.
func (r *Request) Tid() string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("%x", r.TransactionID)
}

// Processor is the CA operation collaborator. It returns the response body for an authenticated request.
//
// An error of type *OperationError is answered with its failure information, any other error is answered with
// systemFailure.
type Processor interface {
	Process(ctx context.Context, req *Request) (*pdu.Body, error)
}

// ProcessorFunc is an adapter to allow the use of ordinary functions as the Processor.
type ProcessorFunc func(ctx context.Context, req *Request) (*pdu.Body, error)

// Process implements Processor interface.
func (f ProcessorFunc) Process(ctx context.Context, req *Request) (*pdu.Body, error) {
	return f(ctx, req)
}

// OperationError is a business failure of the CA operation.
type OperationError struct {
	FailureInfo pdu.FailureInfo
	Text        string
}

// NewOperationError returns a new operation error.
func NewOperationError(fi pdu.FailureInfo, text string) *OperationError {
	return &OperationError{FailureInfo: fi, Text: text}
}

func (e *OperationError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("operation failed: %s", e.FailureInfo)
	}
	return fmt.Sprintf("operation failed: %s: %s", e.FailureInfo, e.Text)
}
