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

package server

import (
	"crypto/tls"
	"crypto/x509"

	"github.com/guardtime/gocmp/errors"
)

// NewTLSConfig returns the server TLS configuration. The client certificates are requested and, if presented,
// verified against the clientCAs.
func NewTLSConfig(cert tls.Certificate, clientCAs []*x509.Certificate) (*tls.Config, error) {
	if len(cert.Certificate) == 0 || cert.PrivateKey == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing TLS server certificate.")
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		ClientAuth:   tls.RequestClientCert,
	}
	if len(clientCAs) != 0 {
		pool := x509.NewCertPool()
		for _, c := range clientCAs {
			pool.AddCert(c)
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.VerifyClientCertIfGiven
	}
	return cfg, nil
}

// LoadTLSConfig reads the server certificate and key files (PEM) and returns the server TLS configuration.
func LoadTLSConfig(certFile, keyFile string, clientCAs []*x509.Certificate) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, errors.New(errors.CmpIoError).SetExtError(err).AppendMessage("Failed to load TLS key pair.")
	}
	return NewTLSConfig(cert, clientCAs)
}
