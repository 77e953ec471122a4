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

package net

import (
	"context"
	"fmt"
	"net"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/log"
)

// tcpClient transfers the DER encoded PKI messages over a plain TCP connection, one request per connection. The end
// of the response is detected by the datagram verifier.
type tcpClient struct {
	*transport
	addr string
}

func newTCPClient(host, port string) *tcpClient {
	return &tcpClient{
		transport: newTransport(),
		addr:      net.JoinHostPort(host, port),
	}
}

// Receive implements Client.Receive().
func (c *tcpClient) Receive(ctx context.Context, request []byte) ([]byte, error) {
	if c == nil || c.transport == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Invalid method receiver")
	}
	if len(request) == 0 {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing request.")
	}

	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	dialer := net.Dialer{KeepAlive: -1}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, errors.New(errors.CmpNetworkError).SetExtError(err).
			AppendMessage(fmt.Sprintf("Failed to connect to %s.", c.addr))
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Error("Closing TCP connection returned error: ", err)
		}
	}()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, errors.New(errors.CmpNetworkError).SetExtError(err)
		}
	}

	log.Debug(fmt.Sprintf("TCP send (%s): %x", c.addr, request))
	if _, err = conn.Write(request); err != nil {
		return nil, errors.New(errors.CmpNetworkError).SetExtError(err).
			AppendMessage("Failed to write request to TCP connection.")
	}

	response, err := c.readMessage(conn)
	if err != nil {
		return nil, errors.CmpErr(err).AppendMessage(fmt.Sprintf("Failed to read PKI message from %s.", c.addr))
	}
	log.Debug(fmt.Sprintf("TCP received (%s): %x", c.addr, response))
	return response, nil
}

// URI implements Endpoint.URI().
func (c *tcpClient) URI() string {
	if c == nil {
		return ""
	}
	return "tcp://" + c.addr
}
