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

package mock

import (
	"context"
	"sync"
)

// Handler answers a raw request.
type Handler func(ctx context.Context, req []byte) ([]byte, error)

// LoopbackClient implements net.(Client) interface. The requests are passed to the handler in-process, typically the
// (Responder).Process method of a responder under test.
type LoopbackClient struct {
	handler Handler

	mu       sync.Mutex
	requests [][]byte
}

// NewLoopbackClient returns a new loopback client.
func NewLoopbackClient(h Handler) *LoopbackClient {
	return &LoopbackClient{handler: h}
}

func (c *LoopbackClient) URI() string { return "loopback" }
func (c *LoopbackClient) Receive(ctx context.Context, req []byte) ([]byte, error) {
	c.mu.Lock()
	c.requests = append(c.requests, append([]byte(nil), req...))
	c.mu.Unlock()
	return c.handler(ctx, req)
}

// Requests returns the received requests.
func (c *LoopbackClient) Requests() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.requests...)
}

// StaticClient implements net.(Client) interface. Returns the configured response and error for every request.
type StaticClient struct {
	Resp []byte
	Err  error
}

func (c *StaticClient) URI() string { return "static" }
func (c *StaticClient) Receive(_ context.Context, _ []byte) ([]byte, error) {
	return c.Resp, c.Err
}
