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
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/log"
)

// ContentType is the media type of the PKI messages transferred over HTTP (RFC 6712).
const ContentType = "application/pkixcmp"

// errorBodyLimit bounds the body read from a response with an error status.
const errorBodyLimit = 64 * 1024

type httpClient struct {
	*transport
	url       string
	cmp       bool
	tlsConfig *tls.Config
}

func newHTTPClient(url string, isCMP bool) *httpClient {
	return &httpClient{
		transport: newTransport(),
		url:       url,
		cmp:       isCMP,
	}
}

// client returns a new HTTP Client. A proxy is configured via the system environment variable `http_proxy`.
func (c *httpClient) client() *http.Client {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if c.tlsConfig != nil {
		tlsConfig = c.tlsConfig.Clone()
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: tlsConfig,
		},
	}
}

// Receive implements Client.Receive().
func (c *httpClient) Receive(ctx context.Context, request []byte) ([]byte, error) {
	if c == nil || c.transport == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Invalid method receiver")
	}
	if len(request) == 0 {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing request.")
	}

	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	log.Debug(fmt.Sprintf("HTTP send (%s): %x", c.url, request))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(request))
	if err != nil {
		return nil, errors.New(errors.CmpNetworkError).SetExtError(err)
	}
	httpReq.Header.Set("Content-Type", ContentType)
	if c.cmp {
		httpReq.Header.Set("User-Agent", "CMP HTTP Client")
		httpReq.Header.Set("Accept", ContentType)
	}
	// One request per connection.
	httpReq.Close = true

	resp, err := c.client().Do(httpReq)
	if err != nil {
		return nil, errors.New(errors.CmpNetworkError).SetExtError(err).
			AppendMessage(fmt.Sprintf("HTTP request to %s failed.", c.url))
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Error("Closing HTTP response body returned error: ", err)
		}
	}()

	if resp.StatusCode >= 400 && resp.StatusCode < 600 {
		// The responder answers the decodable requests with a PKI message and HTTP status 200. Any other status is a
		// transport layer error, the body is returned as is for the caller to inspect.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		log.Debug(fmt.Sprintf("HTTP status (%s): %s", c.url, resp.Status))
		return body, errors.New(errors.CmpHttpError).SetExtErrorCode(resp.StatusCode).
			AppendMessage(resp.Status)
	}

	ct := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != ContentType {
		log.Error(fmt.Sprintf("Unexpected HTTP response content type (%s): '%s'", c.url, ct))
		return nil, errors.New(errors.CmpHttpError).SetExtErrorCode(resp.StatusCode).
			AppendMessage(fmt.Sprintf("Unexpected content type '%s'.", ct))
	}

	response, err := c.readMessage(resp.Body)
	if err != nil {
		return nil, errors.CmpErr(err).AppendMessage(fmt.Sprintf("Failed to read PKI message from %s.", c.url))
	}
	log.Debug(fmt.Sprintf("HTTP received (%s): %x", c.url, response))
	return response, nil
}

// URI implements Endpoint.URI().
func (c *httpClient) URI() string {
	if c == nil {
		return ""
	}
	return c.url
}

// SetTLSConfig implements TLSConfigurer interface.
func (c *httpClient) SetTLSConfig(cfg *tls.Config) error {
	if c == nil || cfg == nil {
		return errors.New(errors.CmpInvalidArgumentError)
	}
	c.tlsConfig = cfg.Clone()
	return nil
}
