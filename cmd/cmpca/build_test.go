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
	"context"
	"crypto/x509"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardtime/gocmp/audit"
	"github.com/guardtime/gocmp/certutil"
	"github.com/guardtime/gocmp/client"
	"github.com/guardtime/gocmp/config"
	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/pdu"
	"github.com/guardtime/gocmp/registry"
	"github.com/guardtime/gocmp/signer"
	"github.com/guardtime/gocmp/test"
	"github.com/guardtime/gocmp/test/utils"
)

var testLogDir = filepath.Join("..", "..", "test", "out")

func TestUnitCmpCA(t *testing.T) {
	test.SetupLogger(t, testLogDir)

	test.Suite{
		{Func: testServeConfigured},
		{Func: testBuildFailures},
		{Func: testSplitList},
	}.Runner(t)
}

type setup struct {
	dir       string
	ca        *utils.Identity
	requestor *utils.Identity
	cfgFile   string
}

func newSetup(t *testing.T) *setup {
	t.Helper()

	s := &setup{
		dir:       t.TempDir(),
		ca:        utils.NewIdentity(t, "ca"),
		requestor: utils.NewIdentity(t, "requestor"),
	}
	keyPEM, err := certutil.EncodePrivateKeyPEM(s.ca.Key)
	require.NoError(t, err)
	s.write(t, "ca.key", keyPEM)
	s.write(t, "ca.crt", certutil.EncodeCertificatesPEM(s.ca.Cert))
	s.write(t, "requestor.crt", certutil.EncodeCertificatesPEM(s.requestor.Cert))
	s.cfgFile = s.write(t, "cmpca.json", []byte(`{
		"log": {"level": "debug"},
		"server": {"addr": "127.0.0.1:0"},
		"requestors": {"database": "requestors.db"},
		"responders": [{
			"alias": "myca",
			"signerKey": "ca.key",
			"signerCert": "ca.crt",
			"poolSize": 2,
			"permittedAlgorithms": ["SHA256withECDSA"],
			"ca": {"key": "ca.key", "cert": "ca.crt", "crlValidity": 600}
		}]
	}`))
	return s
}

func (s *setup) write(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(s.dir, name)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func (s *setup) client(t *testing.T, url string) *client.Client {
	t.Helper()

	reqSigner, err := signer.New(s.requestor.Key, s.requestor.Cert)
	require.NoError(t, err)
	c, err := client.New(
		client.OptEndpoint(url+"/myca"),
		client.OptSigner(reqSigner),
		client.OptResponderCert(s.ca.Cert),
	)
	require.NoError(t, err)
	return c
}

func testServeConfigured(t *testing.T, _ ...interface{}) {
	s := newSetup(t)
	cfg, err := config.Load(s.cfgFile)
	require.NoError(t, err)

	reg, mgr, store, err := openRegistry(cfg)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, addRequestor(mgr, "requestor", filepath.Join(s.dir, "requestor.crt"), "gen_crl, get_crl"))

	// The requestor is persisted.
	reg2, _, store2, err := openRegistry(cfg)
	require.NoError(t, err)
	req, ok := reg2.LookupByCertificate(s.requestor.Cert)
	require.True(t, ok, "Requestor must be loaded from the database.")
	assert.Equal(t, registry.PermGenCRL|registry.PermGetCRL, req.Permission)
	require.NoError(t, store2.Close())

	rec := &audit.Recorder{}
	srv, err := buildServer(cfg, reg, rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"myca"}, srv.Aliases())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	c := s.client(t, ts.URL)
	ctx := context.Background()
	der, err := c.Action(ctx, pdu.ActionGenCRL, nil)
	require.NoError(t, err, "GenCRL must succeed.")
	crl, err := x509.ParseRevocationList(der)
	require.NoError(t, err)
	assert.Equal(t, int64(1), crl.Number.Int64())
	assert.Equal(t, int64(600), int64(crl.NextUpdate.Sub(crl.ThisUpdate).Seconds()))

	_, err = c.Action(ctx, pdu.ActionGetCRLWithSN, nil)
	require.NoError(t, err, "GetCRLWithSN must succeed.")

	ok, err = mgr.Remove("requestor")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = c.Action(ctx, pdu.ActionGetCAInfo, nil)
	assert.Equal(t, errors.CmpPkiStatusError, errors.CodeOf(err), "Removed requestor must be rejected: %v", err)

	events := rec.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, audit.StatusFailed, events[len(events)-1].Status)
}

func testBuildFailures(t *testing.T, _ ...interface{}) {
	s := newSetup(t)
	cfg, err := config.Load(s.cfgFile)
	require.NoError(t, err)
	reg, mgr, store, err := openRegistry(cfg)
	require.NoError(t, err)
	defer store.Close()

	bad := *cfg
	bad.Responders = []config.Responder{cfg.Responders[0]}
	bad.Responders[0].SignerKey = filepath.Join(s.dir, "missing.key")
	_, err = buildServer(&bad, reg, audit.LogSink{})
	assert.Equal(t, errors.CmpIoError, errors.CodeOf(err))

	bad.Responders[0] = cfg.Responders[0]
	bad.Responders[0].SignerKey = filepath.Join(s.dir, "ca.crt")
	_, err = buildServer(&bad, reg, audit.LogSink{})
	assert.Equal(t, errors.CmpInvalidFormatError, errors.CodeOf(err))

	bad = *cfg
	bad.Server.TLSCert = filepath.Join(s.dir, "missing.crt")
	bad.Server.TLSKey = filepath.Join(s.dir, "missing.key")
	_, err = buildServer(&bad, reg, audit.LogSink{})
	assert.Equal(t, errors.CmpIoError, errors.CodeOf(err))

	err = addRequestor(mgr, "r", filepath.Join(s.dir, "requestor.crt"), "fly")
	assert.Equal(t, errors.CmpInvalidArgumentError, errors.CodeOf(err), fmt.Sprintf("%v", err))
	err = addRequestor(mgr, "r", filepath.Join(s.dir, "missing.crt"), "all")
	assert.Equal(t, errors.CmpIoError, errors.CodeOf(err))
}

func testSplitList(t *testing.T, _ ...interface{}) {
	assert.Equal(t, []string{"gen_crl", " get_crl"}, splitList("gen_crl,, get_crl,"))
	assert.Empty(t, splitList(""))
}
