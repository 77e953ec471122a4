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

// Package log implements a logger interface that is used for logging the CMP engine.
//
// In order to enable logging a logger must be registered first by invoking SetLogger() with a Logger implementation.
// Logging can be disabled by calling SetLogger(nil). The registered logger may be replaced while requests are being
// served.
//
// Messages related to a single PKI transaction are logged via Tid(), which prefixes them with the transaction id:
//
//	log.Tid(hdr.Tid()).Warningf("requestor '%s' is faulty", label)
//
// Package provides also a basic logging implementation WriterLogger, that generates lines of formatted output to an
// io.Writer.
package log

import (
	"fmt"
	"sync/atomic"
)

type holder struct {
	l Logger
}

var current atomic.Pointer[holder]

// SetLogger initialize a global logger.
// In order to disable logging set the parameter l to nil.
func SetLogger(l Logger) {
	if l == nil {
		current.Store(nil)
		return
	}
	current.Store(&holder{l: l})
}

func get() Logger {
	if h := current.Load(); h != nil {
		return h.l
	}
	return nil
}

// Debug logs with DEBUG priority.
func Debug(v ...interface{}) {
	if l := get(); l != nil {
		l.Debug(v...)
	}
}

// Info logs with INFO priority.
func Info(v ...interface{}) {
	if l := get(); l != nil {
		l.Info(v...)
	}
}

// Notice logs with NOTICE priority.
func Notice(v ...interface{}) {
	if l := get(); l != nil {
		l.Notice(v...)
	}
}

// Warning logs with WARNING priority.
func Warning(v ...interface{}) {
	if l := get(); l != nil {
		l.Warning(v...)
	}
}

// Error logs with ERROR priority.
func Error(v ...interface{}) {
	if l := get(); l != nil {
		l.Error(v...)
	}
}

// Entry logs formatted messages with a fixed prefix.
type Entry struct {
	prefix string
}

// Tid returns an Entry for the transaction tid.
func Tid(tid string) Entry {
	return Entry{prefix: "tid=" + tid + ": "}
}

func (e Entry) format(format string, v []interface{}) string {
	return e.prefix + fmt.Sprintf(format, v...)
}

// Debugf logs with DEBUG priority.
func (e Entry) Debugf(format string, v ...interface{}) {
	if l := get(); l != nil {
		l.Debug(e.format(format, v))
	}
}

// Infof logs with INFO priority.
func (e Entry) Infof(format string, v ...interface{}) {
	if l := get(); l != nil {
		l.Info(e.format(format, v))
	}
}

// Warningf logs with WARNING priority.
func (e Entry) Warningf(format string, v ...interface{}) {
	if l := get(); l != nil {
		l.Warning(e.format(format, v))
	}
}

// Errorf logs with ERROR priority.
func (e Entry) Errorf(format string, v ...interface{}) {
	if l := get(); l != nil {
		l.Error(e.format(format, v))
	}
}
