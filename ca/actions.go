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

package ca

import (
	"context"
	"crypto/rand"
	"encoding/asn1"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/log"
	"github.com/guardtime/gocmp/pdu"
	"github.com/guardtime/gocmp/responder"
)

var randReader = rand.Reader

// Info is the content of the GetCAInfo action result.
type Info struct {
	Name         string    `json:"name"`
	Subject      string    `json:"subject"`
	SerialNumber string    `json:"serialNumber"`
	NotBefore    time.Time `json:"notBefore"`
	NotAfter     time.Time `json:"notAfter"`
	ChainLength  int       `json:"chainLength"`
	CRLNumber    int64     `json:"crlNumber,omitempty"`
}

// Info returns the CA information.
func (c *CA) Info() Info {
	c.mu.RLock()
	num := c.crlNum
	c.mu.RUnlock()

	cert := c.chain[0]
	return Info{
		Name:         c.name,
		Subject:      cert.Subject.String(),
		SerialNumber: fmt.Sprintf("%x", cert.SerialNumber),
		NotBefore:    cert.NotBefore.UTC(),
		NotAfter:     cert.NotAfter.UTC(),
		ChainLength:  len(c.chain),
		CRLNumber:    num,
	}
}

// EncodeInfo returns the GetCAInfo action result: UTF8String holding the JSON encoded info.
func EncodeInfo(info Info) ([]byte, error) {
	js, err := json.Marshal(info)
	if err != nil {
		return nil, errors.New(errors.CmpInvalidArgumentError).SetExtError(err).AppendMessage("Failed to encode CA info.")
	}
	der, err := asn1.MarshalWithParams(string(js), "utf8")
	if err != nil {
		return nil, errors.New(errors.CmpInvalidArgumentError).SetExtError(err).AppendMessage("Failed to encode CA info.")
	}
	return der, nil
}

// DecodeInfo parses the GetCAInfo action result.
func DecodeInfo(der []byte) (Info, error) {
	var (
		js   string
		info Info
	)
	if rest, err := asn1.UnmarshalWithParams(der, &js, "utf8"); err != nil || len(rest) != 0 {
		return info, errors.New(errors.CmpInvalidFormatError).SetExtError(err).AppendMessage("CA info is not a UTF8String.")
	}
	if err := json.Unmarshal([]byte(js), &info); err != nil {
		return info, errors.New(errors.CmpInvalidFormatError).SetExtError(err).AppendMessage("Failed to parse CA info.")
	}
	return info, nil
}

// DecodeCertChain parses the CACertChain action result: SEQUENCE OF Certificate.
func DecodeCertChain(der []byte) ([][]byte, error) {
	var raw []asn1.RawValue
	if rest, err := asn1.Unmarshal(der, &raw); err != nil || len(rest) != 0 {
		return nil, errors.New(errors.CmpInvalidFormatError).SetExtError(err).
			AppendMessage("Certificate chain is not a SEQUENCE.")
	}
	ret := make([][]byte, 0, len(raw))
	for _, r := range raw {
		ret = append(ret, r.FullBytes)
	}
	return ret, nil
}

func (c *CA) handleCAInfo(_ context.Context, _ *responder.Request, _ []byte) ([]byte, error) {
	return EncodeInfo(c.Info())
}

func (c *CA) handleCertChain(_ context.Context, _ *responder.Request, _ []byte) ([]byte, error) {
	raw := make([]asn1.RawValue, 0, len(c.chain))
	for _, cert := range c.chain {
		raw = append(raw, asn1.RawValue{FullBytes: cert.Raw})
	}
	der, err := asn1.Marshal(raw)
	if err != nil {
		return nil, errors.New(errors.CmpInvalidArgumentError).SetExtError(err).
			AppendMessage("Failed to encode certificate chain.")
	}
	return der, nil
}

func (c *CA) handleGenCRL(_ context.Context, req *responder.Request, _ []byte) ([]byte, error) {
	der, err := c.GenerateCRL()
	if err != nil {
		log.Tid(req.Tid()).Errorf("failed to generate CRL: %v", err)
		return nil, responder.NewOperationError(pdu.SystemFailure, "could not generate CRL")
	}
	return der, nil
}

func (c *CA) handleGetCRL(_ context.Context, req *responder.Request, payload []byte) ([]byte, error) {
	var number *big.Int
	if payload != nil {
		number = new(big.Int)
		if rest, err := asn1.Unmarshal(payload, &number); err != nil || len(rest) != 0 {
			return nil, responder.NewOperationError(pdu.BadDataFormat, "CRL number is not an INTEGER")
		}
	}

	der, ok := c.CRL(number)
	if ok {
		return der, nil
	}
	if number == nil {
		log.Tid(req.Tid()).Infof("CA '%s' has no CRL", c.name)
		return nil, responder.NewOperationError(pdu.SystemUnavail, "no CRL available")
	}
	return nil, responder.NewOperationError(pdu.BadRequest, fmt.Sprintf("CRL %s is not available", number))
}
