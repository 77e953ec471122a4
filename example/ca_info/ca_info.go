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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/guardtime/gocmp/ca"
	"github.com/guardtime/gocmp/certutil"
	"github.com/guardtime/gocmp/client"
	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/log"
	"github.com/guardtime/gocmp/pdu"
	"github.com/guardtime/gocmp/signer"
)

type argVal int

const (
	argProgName argVal = iota
	argResponderURI
	argResponderCert
	argRequestorCert
	argRequestorKey
	nofArgs
)

func main() {
	// Handle exit code.
	exit := 0
	defer func() { os.Exit(exit) }()

	/* Handle command line parameters. */
	if len(os.Args) != int(nofArgs) {
		fmt.Printf("Usage:\n")
		fmt.Printf("  %s <responder-uri> <responder-cert> <requestor-cert> <requestor-key>\n", os.Args[argProgName])
		exit = 1
		return
	}

	// Create log file.
	logFile, err := os.Create(strings.Join([]string{filepath.Base(os.Args[argProgName]), "log"}, "."))
	if err != nil {
		fmt.Println("Failed to create log file: ", err)
		exit = 1
		return
	}
	defer logFile.Close()
	// Initialize logger.
	logger, err := log.New(log.DEBUG, logFile)
	if err != nil {
		fmt.Println("Failed to initialize logger: ", err)
		exit = 1
		return
	}
	// Apply logger.
	log.SetLogger(logger)

	// Load the identities.
	respCert, err := certutil.LoadCertificate(os.Args[argResponderCert])
	if err != nil {
		fmt.Println("Failed to load responder certificate: ", err)
		exit = int(errors.CmpErr(err).Code())
		return
	}
	reqCert, err := certutil.LoadCertificate(os.Args[argRequestorCert])
	if err != nil {
		fmt.Println("Failed to load requestor certificate: ", err)
		exit = int(errors.CmpErr(err).Code())
		return
	}
	reqKey, err := certutil.LoadPrivateKey(os.Args[argRequestorKey])
	if err != nil {
		fmt.Println("Failed to load requestor key: ", err)
		exit = int(errors.CmpErr(err).Code())
		return
	}
	reqSigner, err := signer.New(reqKey, reqCert)
	if err != nil {
		fmt.Println("Failed to initialize request signer: ", err)
		exit = int(errors.CmpErr(err).Code())
		return
	}

	// Create CMP client instance.
	cmp, err := client.New(
		client.OptEndpoint(os.Args[argResponderURI]),
		client.OptSigner(reqSigner),
		client.OptSendRequestorCert(true),
		client.OptResponderCert(respCert),
	)
	if err != nil {
		fmt.Println("Failed to initialize CMP client: ", err)
		exit = int(errors.CmpErr(err).Code())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	raw, err := cmp.Action(ctx, pdu.ActionGetCAInfo, nil)
	if err != nil {
		fmt.Println("Failed to get CA info: ", err)
		exit = int(errors.CmpErr(err).Code())
		return
	}
	info, err := ca.DecodeInfo(raw)
	if err != nil {
		fmt.Println("Failed to parse CA info: ", err)
		exit = int(errors.CmpErr(err).Code())
		return
	}
	fmt.Printf("CA:            %s\n", info.Name)
	fmt.Printf("Subject:       %s\n", info.Subject)
	fmt.Printf("Serial number: %s\n", info.SerialNumber)
	fmt.Printf("Valid:         %s - %s\n", info.NotBefore.Format(time.RFC3339), info.NotAfter.Format(time.RFC3339))
	fmt.Printf("CRL number:    %d\n", info.CRLNumber)

	raw, err = cmp.Action(ctx, pdu.ActionCACertChain, nil)
	if err != nil {
		fmt.Println("Failed to get CA certificate chain: ", err)
		exit = int(errors.CmpErr(err).Code())
		return
	}
	chain, err := ca.DecodeCertChain(raw)
	if err != nil {
		fmt.Println("Failed to parse CA certificate chain: ", err)
		exit = int(errors.CmpErr(err).Code())
		return
	}
	fmt.Printf("Chain length:  %d\n", len(chain))

	exit = 0
	return
}
