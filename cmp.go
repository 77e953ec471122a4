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

/*
Package gocmp implements a Certificate Management Protocol (RFC 4210) front end for a certificate authority,
together with a matching client. Requests are carried as general messages whose info type value identifies a vendor
action, e.g. generating or fetching a CRL.

Note that the following tutorial is incremental, meaning the parameter names used in example code blocks are defined
in previous example blocks.

# Logging

The subpackage log defines logging interface type log.Logger and a basic logger implementation for writing lines
to file.

By default logging is disabled. In order to enable logging of the API internals, an implementation to a logger has
to be registered in the log package, e.g. setting default logger:

	// Create an instance of default logger. Write log output to stdout.
	logger, err = log.New(level, nil)
	if err != nil {
		return
	}
	// Register the logger
	log.SetLogger(logger)

In order to disable logging, set logger to nil.

# Errors

Almost every method of the API returns an error parameter alongside with a value (if applicable). All returned errors
are of type errors.CmpError. For troubleshooting, the CmpError provides following information:

	error code     - for error verification and recovery logic;
	error message  - a stack of human readable descriptive messages;
	stack trace    - the stack trace of the error registration;
	extended error - an error code (e.g. HTTP status), or error from e.g. std library.

A rejection received from the responder is returned as errors.CmpPkiStatusError. The PKI status, failure info and
status text of the error message can be inspected via errors.(CmpError).PkiStatus().

	if _, err := cmp.Action(ctx, pdu.ActionGenCRL, nil); err != nil {
		if st := errors.CmpErr(err).PkiStatus(); st != nil {
			fmt.Println("Rejected: ", st.Text)
		}
	}

For simplicity reasons, the error handling in this tutorial is mostly omitted.

# Loading keys and certificates

The subpackage certutil reads certificates from PEM, DER or PKCS#7 bundles and private keys from PKCS#8, SEC1 or
PKCS#1 encodings.

	reqCert, err := certutil.LoadCertificate("requestor.crt")
	reqKey, err := certutil.LoadPrivateKey("requestor.key")

Messages are signed by a signer.Pool. A pool holds one or more handles to the same key and hands them out to
concurrent requests.

	reqSigner, err := signer.New(reqKey, reqCert)

# Sending requests

A client.Client is constructed with an endpoint and the protection options. By default requests are signed with
the configured signer and responses are checked against the responder certificate.

	cmp, err := client.New(
		client.OptEndpoint("https://ca.somehost:8443/myca", net.ClientOptTLSConfig(tlsConfig)),
		client.OptSigner(reqSigner),
		client.OptResponderCert(respCert),
	)
	// Ask the CA to issue a new CRL.
	crl, err := cmp.Action(ctx, pdu.ActionGenCRL, nil)

Instead of a signature, a request can be protected with a password based MAC, see client.OptMACSecret.
For finer control, the request message can be built with client.(Client).NewActionMessage() and sent with
client.(Client).Send(). The returned client.Response exposes the protection check result.

	req, err := cmp.NewActionMessage(pdu.ActionGetCRLWithSN, nil)
	resp, err := cmp.Send(ctx, req)
	res, ok := resp.ProtectionResult()
	crl, err := client.ExtractActionContent(resp, pdu.ActionGetCRLWithSN)

# Serving requests

A responder.Responder authenticates a request against the requestor registry, checks the message time and the
protection algorithm, dispatches the action and signs the response.

	reg, err := registry.New(&registry.Requestor{Label: "ops", Cert: reqCert, Permission: registry.PermAll})

	dispatcher := responder.NewActionDispatcher()
	authority, err := ca.New("myca", caCert, caKey)
	err = authority.Register(dispatcher)

	resp, err := responder.New(
		responder.OptSigner(caSigner),
		responder.OptRequestors(reg),
		responder.OptProcessor(dispatcher),
	)

Responders are published over HTTP by server.Server. Each responder is registered with an alias that forms the
request path.

	srv, err := server.New(server.DefaultConfig())
	err = srv.Register("myca", resp)
	err = srv.Start(ctx)

The cmd/cmpca command wires all of the above from a JSON configuration file and keeps the requestors in a SQLite
database.

# HTTP Proxy Configuration

To use a proxy, you need to configure the proxy on your operating system.

Set the system environment variable: `http_proxy=user:pass@server:port`

In Linux, add the system variable to `/etc/bashrc`:

	export http_proxy=user:pass@server:port

# Acknowledgments

This product includes package github.com/fullsailor/pkcs7.
*/
package gocmp

import (
	_ "github.com/guardtime/gocmp/audit"
	_ "github.com/guardtime/gocmp/ca"
	_ "github.com/guardtime/gocmp/certutil"
	_ "github.com/guardtime/gocmp/client"
	_ "github.com/guardtime/gocmp/config"
	_ "github.com/guardtime/gocmp/errors"
	_ "github.com/guardtime/gocmp/hmac"
	_ "github.com/guardtime/gocmp/log"
	_ "github.com/guardtime/gocmp/net"
	_ "github.com/guardtime/gocmp/pdu"
	_ "github.com/guardtime/gocmp/protection"
	_ "github.com/guardtime/gocmp/registry"
	_ "github.com/guardtime/gocmp/responder"
	_ "github.com/guardtime/gocmp/server"
	_ "github.com/guardtime/gocmp/sigalg"
	_ "github.com/guardtime/gocmp/signer"
)
