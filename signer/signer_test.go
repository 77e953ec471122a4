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

package signer

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/sigalg"
	"github.com/guardtime/gocmp/test"
	"github.com/guardtime/gocmp/test/utils"
)

var testLogDir = filepath.Join("..", "test", "out")

func TestUnitSignerPool(t *testing.T) {
	test.SetupLogger(t, testLogDir)

	test.Suite{
		{Func: testPoolSign},
		{Func: testPoolExplicitAlgorithm},
		{Func: testPoolInvalidSetup},
		{Func: testPoolExhausted},
		{Func: testPoolContextDone},
		{Func: testPoolParallel},
	}.Runner(t)
}

func testPoolSign(t *testing.T, _ ...interface{}) {
	id := utils.NewIdentity(t, "responder")
	p, err := New(id.Key, id.Cert, OptPoolSize(2))
	require.NoError(t, err)

	assert.Equal(t, sigalg.ECDSAWithSHA256, p.Algorithm())
	assert.Equal(t, id.Cert, p.Certificate())
	assert.Equal(t, 2, p.Size())
	assert.Equal(t, 2, p.Idle())

	data := []byte("data to be signed")
	sig, err := p.Sign(context.Background(), data)
	require.NoError(t, err)
	require.NoError(t, p.Algorithm().Verify(id.Cert, data, sig))
	assert.Equal(t, 2, p.Idle())
}

func testPoolExplicitAlgorithm(t *testing.T, _ ...interface{}) {
	id := utils.NewRSAIdentity(t, "responder")
	p, err := New(id.Key, id.Cert, OptAlgorithm("SHA512withRSA"))
	require.NoError(t, err)
	assert.Equal(t, sigalg.SHA512WithRSA, p.Algorithm())

	_, err = New(id.Key, id.Cert, OptAlgorithm("SHA256withECDSA"))
	assert.Equal(t, errors.CmpInvalidArgumentError, errors.CodeOf(err))
	_, err = New(id.Key, id.Cert, OptAlgorithm("no such"))
	assert.Equal(t, errors.CmpUnknownAlgorithm, errors.CodeOf(err))
}

func testPoolInvalidSetup(t *testing.T, _ ...interface{}) {
	id := utils.NewIdentity(t, "responder")
	other := utils.NewIdentity(t, "other")

	_, err := New(nil, id.Cert)
	assert.Equal(t, errors.CmpInvalidArgumentError, errors.CodeOf(err))
	_, err = New(id.Key, other.Cert)
	assert.Equal(t, errors.CmpInvalidArgumentError, errors.CodeOf(err))
	_, err = New(id.Key, id.Cert, OptKeys(other.Key))
	assert.Equal(t, errors.CmpInvalidArgumentError, errors.CodeOf(err))
	_, err = New(id.Key, id.Cert, OptPoolSize(0))
	assert.Equal(t, errors.CmpInvalidArgumentError, errors.CodeOf(err))
	_, err = New(id.Key, id.Cert, nil)
	assert.Equal(t, errors.CmpInvalidArgumentError, errors.CodeOf(err))

	p, err := New(id.Key, id.Cert, OptKeys(id.Key))
	require.NoError(t, err)
	assert.Equal(t, 2, p.Size())

	var nilPool *Pool
	_, err = nilPool.Sign(context.Background(), nil)
	assert.Equal(t, errors.CmpInvalidArgumentError, errors.CodeOf(err))
	assert.Nil(t, nilPool.Certificate())
}

func testPoolExhausted(t *testing.T, _ ...interface{}) {
	id := utils.NewIdentity(t, "responder")
	p, err := New(id.Key, id.Cert, OptBorrowTimeout(50*time.Millisecond))
	require.NoError(t, err)

	// Hold the only signer.
	key, err := p.borrow(context.Background())
	require.NoError(t, err)

	_, err = p.Sign(context.Background(), []byte("data"))
	require.Error(t, err)
	assert.Equal(t, errors.CmpNoIdleSigner, errors.CodeOf(err))

	p.keys <- key
	_, err = p.Sign(context.Background(), []byte("data"))
	assert.NoError(t, err)
}

func testPoolContextDone(t *testing.T, _ ...interface{}) {
	id := utils.NewIdentity(t, "responder")
	p, err := New(id.Key, id.Cert)
	require.NoError(t, err)

	key, err := p.borrow(context.Background())
	require.NoError(t, err)
	defer func() { p.keys <- key }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Sign(ctx, []byte("data"))
	assert.Equal(t, errors.CmpNoIdleSigner, errors.CodeOf(err))
}

func testPoolParallel(t *testing.T, _ ...interface{}) {
	id := utils.NewIdentity(t, "responder")
	p, err := New(id.Key, id.Cert, OptPoolSize(3))
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		errs = make(chan error, 20)
	)
	for i := 0; i < cap(errs); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Sign(context.Background(), []byte("parallel"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 3, p.Idle())
}
