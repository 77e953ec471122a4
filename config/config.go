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

// Package config loads the configuration of the CMP server.
//
// The configuration is a JSON file. Relative file paths are resolved against the directory of the configuration file.
//
//	{
//	  "log":        {"level": "info", "file": "cmpca.log"},
//	  "server":     {"addr": ":8080", "tlsCert": "tls.crt", "tlsKey": "tls.key", "clientCAs": ["clients.p7b"]},
//	  "requestors": {"database": "requestors.db"},
//	  "responders": [{
//	    "alias": "myca",
//	    "signerKey": "ca.key", "signerCert": "ca.crt", "poolSize": 4,
//	    "messageTimeBias": 300, "messageTimeRequired": true, "sendResponderCert": true,
//	    "permittedAlgorithms": ["SHA256withECDSA"],
//	    "ca": {"key": "ca.key", "cert": "ca.crt", "chain": ["root.crt"], "crlValidity": 86400}
//	  }]
//	}
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/log"
	"github.com/guardtime/gocmp/responder"
	"github.com/guardtime/gocmp/sigalg"
)

// Configuration is the server configuration.
type Configuration struct {
	Log        Log         `json:"log"`
	Server     Server      `json:"server"`
	Requestors Requestors  `json:"requestors"`
	Responders []Responder `json:"responders"`
}

// Log is the logging configuration.
type Log struct {
	// Level is one of "debug", "info", "notice", "warning" or "error".
	Level string `json:"level"`
	// File is the log file. Empty means stderr.
	File string `json:"file"`
}

// Server is the HTTP server configuration.
type Server struct {
	Addr string `json:"addr"`
	// TLSCert and TLSKey are the PEM files of the server TLS key pair. TLS is disabled in case they are empty.
	TLSCert string `json:"tlsCert"`
	TLSKey  string `json:"tlsKey"`
	// ClientCAs are the certificate files the TLS client certificates are verified against.
	ClientCAs      []string `json:"clientCAs"`
	MaxRequestSize int64    `json:"maxRequestSize"`
}

// Requestors is the requestor store configuration.
type Requestors struct {
	// Database is the SQLite database file.
	Database string `json:"database"`
}

// Responder is the configuration of a CA responder.
type Responder struct {
	Alias      string `json:"alias"`
	SignerKey  string `json:"signerKey"`
	SignerCert string `json:"signerCert"`
	PoolSize   int    `json:"poolSize"`
	// Algorithm is the response signature algorithm. Defaults to the algorithm suitable for the signer key.
	Algorithm string `json:"algorithm"`
	// MessageTimeBias is the allowed message time deviation in seconds.
	MessageTimeBias     int      `json:"messageTimeBias"`
	MessageTimeRequired bool     `json:"messageTimeRequired"`
	SendResponderCert   bool     `json:"sendResponderCert"`
	PermittedAlgorithms []string `json:"permittedAlgorithms"`
	CA                  *CA      `json:"ca"`
}

// CA is the configuration of the CA backend serving the vendor actions.
type CA struct {
	Key   string   `json:"key"`
	Cert  string   `json:"cert"`
	Chain []string `json:"chain"`
	// CRLValidity is the CRL validity period in seconds.
	CRLValidity int `json:"crlValidity"`
}

// Load reads and validates the configuration file.
func Load(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CmpIoError).SetExtError(err).
			AppendMessage(fmt.Sprintf("Failed to read configuration file '%s'.", path))
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.CmpErr(err).AppendMessage(fmt.Sprintf("Invalid configuration file '%s'.", path))
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Parse parses and validates the JSON configuration.
func Parse(data []byte) (*Configuration, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	cfg := &Configuration{}
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.New(errors.CmpInvalidFormatError).SetExtError(err).AppendMessage("Failed to parse configuration.")
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Configuration) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	for i := range c.Responders {
		r := &c.Responders[i]
		if r.PoolSize == 0 {
			r.PoolSize = 1
		}
		if r.MessageTimeBias == 0 {
			r.MessageTimeBias = int(responder.DefaultMessageTimeBias / time.Second)
		}
	}
}

// Validate verifies the configuration is complete.
func (c *Configuration) Validate() error {
	if c == nil {
		return errors.New(errors.CmpInvalidArgumentError)
	}
	if _, err := log.ParsePriority(c.Log.Level); err != nil {
		return err
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Both TLS certificate and key must be set.")
	}
	if c.Server.MaxRequestSize < 0 {
		return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Max request size must not be negative.")
	}
	if c.Requestors.Database == "" {
		return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing requestor database.")
	}
	if len(c.Responders) == 0 {
		return errors.New(errors.CmpInvalidArgumentError).AppendMessage("No responders configured.")
	}

	seen := make(map[string]struct{}, len(c.Responders))
	for i := range c.Responders {
		r := &c.Responders[i]
		if err := r.validate(); err != nil {
			return errors.CmpErr(err).AppendMessage(fmt.Sprintf("Invalid responder at %d.", i))
		}
		key := strings.ToLower(r.Alias)
		if _, ok := seen[key]; ok {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage(fmt.Sprintf("Duplicate alias '%s'.", r.Alias))
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (r *Responder) validate() error {
	if r.Alias == "" {
		return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing alias.")
	}
	if r.SignerKey == "" || r.SignerCert == "" {
		return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing signer key or certificate.")
	}
	if r.PoolSize < 0 {
		return errors.New(errors.CmpInvalidArgumentError).AppendMessage(fmt.Sprintf("Invalid pool size %d.", r.PoolSize))
	}
	if r.Algorithm != "" && sigalg.ByName(r.Algorithm) == sigalg.Unknown {
		return errors.New(errors.CmpUnknownAlgorithm).AppendMessage(fmt.Sprintf("Unknown algorithm '%s'.", r.Algorithm))
	}
	if _, err := sigalg.NewValidator(r.PermittedAlgorithms...); err != nil {
		return err
	}
	if r.CA != nil {
		if r.CA.Key == "" || r.CA.Cert == "" {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing CA key or certificate.")
		}
		if r.CA.CRLValidity < 0 {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage("CRL validity must not be negative.")
		}
	}
	return nil
}

func (c *Configuration) resolvePaths(dir string) {
	abs := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	abs(&c.Log.File)
	abs(&c.Server.TLSCert)
	abs(&c.Server.TLSKey)
	for i := range c.Server.ClientCAs {
		abs(&c.Server.ClientCAs[i])
	}
	abs(&c.Requestors.Database)
	for i := range c.Responders {
		r := &c.Responders[i]
		abs(&r.SignerKey)
		abs(&r.SignerCert)
		if r.CA != nil {
			abs(&r.CA.Key)
			abs(&r.CA.Cert)
			for j := range r.CA.Chain {
				abs(&r.CA.Chain[j])
			}
		}
	}
}

// Priority returns the log priority.
func (l Log) Priority() log.Priority {
	p, err := log.ParsePriority(l.Level)
	if err != nil {
		return log.INFO
	}
	return p
}

// Control returns the responder protocol policy.
func (r Responder) Control() responder.Control {
	return responder.Control{
		MessageTimeRequired: r.MessageTimeRequired,
		MessageTimeBias:     time.Duration(r.MessageTimeBias) * time.Second,
		SendResponderCert:   r.SendResponderCert,
	}
}

// Validator returns the validator of the permitted request signature algorithms.
func (r Responder) Validator() (*sigalg.Validator, error) {
	return sigalg.NewValidator(r.PermittedAlgorithms...)
}

// CRLValidityDuration returns the CRL validity period, zero means the default.
func (c *CA) CRLValidityDuration() time.Duration {
	if c == nil {
		return 0
	}
	return time.Duration(c.CRLValidity) * time.Second
}
