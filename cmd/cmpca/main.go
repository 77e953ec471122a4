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

// Command cmpca runs the CMP responders configured in the JSON configuration file and manages the requestors.
//
// Usage:
//
//	cmpca <config-file>
//	cmpca <config-file> add-requestor <label> <cert-file> <permissions>
//	cmpca <config-file> remove-requestor <label>
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/guardtime/gocmp/audit"
	"github.com/guardtime/gocmp/config"
	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/log"
)

type argVal int

const (
	argProgName argVal = iota
	argConfFile
	argCommand
	argLabel
	argCertFile
	argPermissions
)

const (
	cmdAddRequestor    = "add-requestor"
	cmdRemoveRequestor = "remove-requestor"
)

func usage() {
	fmt.Printf("Usage:\n")
	fmt.Printf("  %s <config-file>\n", os.Args[argProgName])
	fmt.Printf("  %s <config-file> %s <label> <cert-file> <permissions>\n", os.Args[argProgName], cmdAddRequestor)
	fmt.Printf("  %s <config-file> %s <label>\n", os.Args[argProgName], cmdRemoveRequestor)
}

func main() {
	// Handle exit code.
	exit := 0
	defer func() { os.Exit(exit) }()

	/* Handle command line parameters. */
	if len(os.Args) < int(argCommand) {
		usage()
		exit = 1
		return
	}

	cfg, err := config.Load(os.Args[argConfFile])
	if err != nil {
		fmt.Println("Failed to load configuration: ", err)
		exit = int(errors.CmpErr(err).Code())
		return
	}

	// Initialize logger.
	var logOut io.Writer = os.Stderr
	if cfg.Log.File != "" {
		logFile, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
		if err != nil {
			fmt.Println("Failed to open log file: ", err)
			exit = 1
			return
		}
		defer logFile.Close()
		logOut = logFile
	}
	logger, err := log.New(cfg.Log.Priority(), logOut)
	if err != nil {
		fmt.Println("Failed to initialize logger: ", err)
		exit = 1
		return
	}
	// Apply logger.
	log.SetLogger(logger)

	reg, mgr, store, err := openRegistry(cfg)
	if err != nil {
		fmt.Println("Failed to open requestor database: ", err)
		exit = int(errors.CmpErr(err).Code())
		return
	}
	defer store.Close()

	if len(os.Args) > int(argCommand) {
		switch cmd := os.Args[argCommand]; {
		case cmd == cmdAddRequestor && len(os.Args) == int(argPermissions)+1:
			err = addRequestor(mgr, os.Args[argLabel], os.Args[argCertFile], os.Args[argPermissions])
		case cmd == cmdRemoveRequestor && len(os.Args) == int(argLabel)+1:
			var ok bool
			if ok, err = mgr.Remove(os.Args[argLabel]); err == nil && !ok {
				fmt.Printf("Requestor '%s' not found.\n", os.Args[argLabel])
				exit = 1
				return
			}
		default:
			usage()
			exit = 1
			return
		}
		if err != nil {
			fmt.Println("Failed to update requestors: ", err)
			exit = int(errors.CmpErr(err).Code())
		}
		return
	}

	srv, err := buildServer(cfg, reg, audit.LogSink{})
	if err != nil {
		fmt.Println("Failed to create server: ", err)
		exit = int(errors.CmpErr(err).Code())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Start(ctx); err != nil {
		fmt.Println("Server failed: ", err)
		exit = int(errors.CmpErr(err).Code())
		return
	}
}
