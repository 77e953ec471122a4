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

package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"

	"github.com/guardtime/gocmp/errors"
)

// Priority is the logging level.
type Priority int

// Logging priorities, from the most verbose to none.
const (
	DEBUG Priority = iota
	INFO
	NOTICE
	WARNING
	ERROR
	NONE
)

var priorityNames = map[Priority]string{
	DEBUG:   "debug",
	INFO:    "info",
	NOTICE:  "notice",
	WARNING: "warning",
	ERROR:   "error",
	NONE:    "none",
}

// String returns the lower case level name.
func (p Priority) String() string {
	if n, ok := priorityNames[p]; ok {
		return n
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

func (p Priority) prefix() string {
	return "[" + strings.ToUpper(priorityNames[p][:1]) + "] "
}

// ParsePriority maps a case-insensitive level name to Priority. An empty name maps to INFO.
func ParsePriority(s string) (Priority, error) {
	switch name := strings.ToLower(strings.TrimSpace(s)); name {
	case "":
		return INFO, nil
	case "warn":
		return WARNING, nil
	default:
		for p, n := range priorityNames {
			if n == name && p != NONE {
				return p, nil
			}
		}
	}
	return NONE, errors.New(errors.CmpInvalidArgumentError).AppendMessage(fmt.Sprintf("Unknown log level '%s'.", s))
}

// WriterLogger is a basic Logger implementation that writes lines of formatted output to an io.Writer.
type WriterLogger struct {
	level  Priority
	logger *stdlog.Logger
}

// New returns a new WriterLogger that logs all the messages with priority higher or equal to level.
// In case w is nil, the output is written to os.Stderr.
func New(level Priority, w io.Writer) (*WriterLogger, error) {
	if level < DEBUG || level >= NONE {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage(fmt.Sprintf("Invalid log level %s.", level))
	}
	if w == nil {
		w = os.Stderr
	}
	return &WriterLogger{
		level:  level,
		logger: stdlog.New(w, "", stdlog.LstdFlags|stdlog.Lmicroseconds),
	}, nil
}

func (l *WriterLogger) log(p Priority, v ...interface{}) {
	if l == nil || l.logger == nil || p < l.level {
		return
	}
	l.logger.Output(3, p.prefix()+fmt.Sprint(v...))
}

// Debug implements Logger interface.
func (l *WriterLogger) Debug(v ...interface{}) { l.log(DEBUG, v...) }

// Info implements Logger interface.
func (l *WriterLogger) Info(v ...interface{}) { l.log(INFO, v...) }

// Notice implements Logger interface.
func (l *WriterLogger) Notice(v ...interface{}) { l.log(NOTICE, v...) }

// Warning implements Logger interface.
func (l *WriterLogger) Warning(v ...interface{}) { l.log(WARNING, v...) }

// Error implements Logger interface.
func (l *WriterLogger) Error(v ...interface{}) { l.log(ERROR, v...) }
