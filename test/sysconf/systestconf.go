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

// Package sysconf loads the configuration of the system tests, which run against a live CMP responder.
package sysconf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/guardtime/gocmp/errors"
)

// Configuration is the system test configuration.
type Configuration struct {
	Responder Responder
	Requestor Requestor
	Schema    Schema
}

// Responder is the CMP responder under test.
type Responder struct {
	Host  string
	Port  string
	Alias string
	// Cert is the path to the responder certificate (PEM, DER or PKCS#7).
	Cert string
}

// Requestor is the identity the system tests act as.
type Requestor struct {
	Cert string
	Key  string
}

// Schema holds the URI schemes of the transports under test. An empty value disables the transport tests.
type Schema struct {
	Tcp  string
	Http string
}

// New reads the configuration from the JSON file at path. Relative certificate and key paths are resolved against
// the directory of the file.
func New(path string) (*Configuration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CmpIoError).SetExtError(err).
			AppendMessage(fmt.Sprintf("Failed to read system test configuration '%s'.", path))
	}

	configuration := new(Configuration)
	if err := json.Unmarshal(raw, configuration); err != nil {
		return nil, errors.New(errors.CmpInvalidFormatError).SetExtError(err).
			AppendMessage(fmt.Sprintf("Failed to parse system test configuration '%s'.", path))
	}

	dir := filepath.Dir(path)
	for _, p := range []*string{&configuration.Responder.Cert, &configuration.Requestor.Cert, &configuration.Requestor.Key} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	return configuration, nil
}

// IsComplete reports whether the responder endpoint and the requestor identity are configured.
func (c *Configuration) IsComplete() bool {
	return c != nil && c.Responder.Host != "" && c.Responder.Port != "" &&
		c.Requestor.Cert != "" && c.Requestor.Key != ""
}

// BuildURI returns the endpoint URI for the schema. For all but the TCP schemas the CA alias is appended as the path.
func (r *Responder) BuildURI(schema string) string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(schema)
	b.WriteString("://")
	b.WriteString(r.Host)
	b.WriteString(":")
	b.WriteString(r.Port)
	if !strings.HasSuffix(schema, "tcp") && r.Alias != "" {
		b.WriteString("/")
		b.WriteString(r.Alias)
	}
	return b.String()
}
