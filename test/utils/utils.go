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

// Package utils holds test fixtures shared between the package tests.
package utils

import (
	"encoding/hex"
	"fmt"
	"os"
	"testing"

	"github.com/guardtime/gocmp/test/sysconf"
)

// StringToBin decodes a hex string. Panics on invalid input.
func StringToBin(s string) []byte {
	h, err := hex.DecodeString(s)
	if err != nil || len(h) == 0 {
		panic(fmt.Sprintf("invalid hex fixture %q: %v", s, err))
	}
	return h
}

// LoadConfigFile loads the system test configuration. The test is skipped in case the file does not exist or does
// not describe a responder to test against.
func LoadConfigFile(t *testing.T, testConfFile string) *sysconf.Configuration {
	t.Helper()

	if _, err := os.Stat(testConfFile); err != nil {
		t.Skip("Skipping test: system test config file not found.")
	}
	cfg, err := sysconf.New(testConfFile)
	if err != nil {
		t.Fatal("Failed to load configuration: ", err)
	}
	if !cfg.IsComplete() {
		t.Skip("Skipping test: system test config does not name a responder and a requestor.")
	}
	return cfg
}
