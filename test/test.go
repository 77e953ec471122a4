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

// Package test holds the common test tooling: the test suite runner and the per test logger setup.
package test

import (
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/guardtime/gocmp/log"
)

// Case is a test case. The sub test is named after Func, unless Name is set.
type Case struct {
	Name string
	Func func(t *testing.T, opts ...interface{})
}

func (tc Case) name() string {
	if tc.Name != "" {
		return tc.Name
	}
	name := runtime.FuncForPC(reflect.ValueOf(tc.Func).Pointer()).Name()
	return name[strings.LastIndex(name, ".")+1:]
}

// Suite is a collection of test cases.
type Suite []Case

// Runner runs every test case of the suite as a sub test. The opts are handed to every test case.
func (ts Suite) Runner(t *testing.T, opts ...interface{}) {
	t.Helper()

	for _, tc := range ts {
		name := tc.name()
		log.Debug("---- :::: Run test case: ", name, " :::: ----")
		t.Run(name, func(t *testing.T) { tc.Func(t, opts...) })
	}
}

// InitLogger creates the log file '<path>/<name>.log' and returns a logger writing into it. The returned function
// closes the log file.
func InitLogger(t *testing.T, path string, level log.Priority, name string) (log.Logger, func(), error) {
	t.Helper()

	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return nil, nil, err
	}
	// Sub test names contain '/'.
	logFile, err := os.Create(filepath.Join(path, strings.ReplaceAll(name, "/", "_")+".log"))
	if err != nil {
		return nil, nil, err
	}
	logger, err := log.New(level, logFile)
	if err != nil {
		_ = logFile.Close()
		return nil, nil, err
	}
	return logger, func() { _ = logFile.Close() }, nil
}

// SetupLogger registers a debug level file logger named after the test as the global logger. Logging is disabled
// again when the test has finished.
func SetupLogger(t *testing.T, path string) {
	t.Helper()

	logger, fClose, err := InitLogger(t, path, log.DEBUG, t.Name())
	if err != nil {
		t.Fatal("Failed to initialize logger: ", err)
	}
	log.SetLogger(logger)
	t.Cleanup(func() {
		log.SetLogger(nil)
		fClose()
	})
}
