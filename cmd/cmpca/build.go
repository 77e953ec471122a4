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

package main

import (
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/guardtime/gocmp/audit"
	"github.com/guardtime/gocmp/ca"
	"github.com/guardtime/gocmp/certutil"
	"github.com/guardtime/gocmp/config"
	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/log"
	"github.com/guardtime/gocmp/registry"
	"github.com/guardtime/gocmp/responder"
	"github.com/guardtime/gocmp/server"
	"github.com/guardtime/gocmp/signer"
)

// openRegistry opens the requestor store and loads the stored requestors into a new registry.
func openRegistry(cfg *config.Configuration) (*registry.Registry, *registry.Manager, *registry.Store, error) {
	store, err := registry.OpenStore(cfg.Requestors.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	reg, err := registry.New()
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}
	mgr, err := registry.NewManager(store, reg)
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}
	return reg, mgr, store, nil
}

// buildServer creates the HTTP server with the configured responders.
func buildServer(cfg *config.Configuration, reg *registry.Registry, sink audit.Sink) (*server.Server, error) {
	srvCfg := server.DefaultConfig()
	srvCfg.Addr = cfg.Server.Addr
	srvCfg.AuditSink = sink
	if cfg.Server.MaxRequestSize > 0 {
		srvCfg.MaxRequestSize = cfg.Server.MaxRequestSize
	}
	if cfg.Server.TLSCert != "" {
		var clientCAs []*x509.Certificate
		for _, path := range cfg.Server.ClientCAs {
			certs, err := certutil.LoadCertificates(path)
			if err != nil {
				return nil, err
			}
			clientCAs = append(clientCAs, certs...)
		}
		tlsCfg, err := server.LoadTLSConfig(cfg.Server.TLSCert, cfg.Server.TLSKey, clientCAs)
		if err != nil {
			return nil, err
		}
		srvCfg.TLSConfig = tlsCfg
	}

	srv, err := server.New(srvCfg)
	if err != nil {
		return nil, err
	}
	for _, rc := range cfg.Responders {
		r, err := buildResponder(rc, reg, sink)
		if err != nil {
			return nil, errors.CmpErr(err).AppendMessage(fmt.Sprintf("Failed to create responder '%s'.", rc.Alias))
		}
		if err := srv.Register(rc.Alias, r); err != nil {
			return nil, err
		}
	}
	return srv, nil
}

func buildResponder(rc config.Responder, reg *registry.Registry, sink audit.Sink) (*responder.Responder, error) {
	key, err := certutil.LoadPrivateKey(rc.SignerKey)
	if err != nil {
		return nil, err
	}
	cert, err := certutil.LoadCertificate(rc.SignerCert)
	if err != nil {
		return nil, err
	}
	signerOpts := []signer.Option{signer.OptPoolSize(rc.PoolSize)}
	if rc.Algorithm != "" {
		signerOpts = append(signerOpts, signer.OptAlgorithm(rc.Algorithm))
	}
	pool, err := signer.New(key, cert, signerOpts...)
	if err != nil {
		return nil, err
	}
	validator, err := rc.Validator()
	if err != nil {
		return nil, err
	}

	d := responder.NewActionDispatcher()
	if rc.CA != nil {
		backend, err := buildCA(rc.Alias, rc.CA)
		if err != nil {
			return nil, err
		}
		if err := backend.Register(d); err != nil {
			return nil, err
		}
		log.Info("Created CA: ", backend)
	}

	return responder.New(
		responder.OptSigner(pool),
		responder.OptRequestors(reg),
		responder.OptProcessor(d),
		responder.OptControl(rc.Control()),
		responder.OptValidator(validator),
		responder.OptAuditSink(sink),
	)
}

func buildCA(name string, cc *config.CA) (*ca.CA, error) {
	key, err := certutil.LoadPrivateKey(cc.Key)
	if err != nil {
		return nil, err
	}
	cert, err := certutil.LoadCertificate(cc.Cert)
	if err != nil {
		return nil, err
	}
	var opts []ca.Option
	for _, path := range cc.Chain {
		chain, err := certutil.LoadCertificates(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ca.OptChain(chain...))
	}
	if d := cc.CRLValidityDuration(); d > 0 {
		opts = append(opts, ca.OptCRLValidity(d))
	}
	return ca.New(name, cert, key, opts...)
}

// addRequestor stores the requestor with the certificate and the comma separated permissions.
func addRequestor(mgr *registry.Manager, label, certFile, permissions string) error {
	cert, err := certutil.LoadCertificate(certFile)
	if err != nil {
		return err
	}
	perm, err := registry.ParsePermission(splitList(permissions)...)
	if err != nil {
		return err
	}
	return mgr.Add(&registry.Requestor{
		Label:      label,
		Cert:       cert,
		Permission: perm,
	})
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' })
}
