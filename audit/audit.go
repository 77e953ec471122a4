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

// Package audit provides the audit events emitted for every CMP exchange and the sinks the events are written to.
package audit

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guardtime/gocmp/log"
)

// Status is the final status of an audited exchange.
type Status int

// Audit statuses.
const (
	StatusUndefined Status = iota
	StatusSuccessful
	StatusFailed
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccessful:
		return "SUCCESSFUL"
	case StatusFailed:
		return "FAILED"
	case StatusError:
		return "ERROR"
	}
	return "UNDEFINED"
}

// Level is the audit event level.
type Level int

// Audit levels.
const (
	LevelInfo Level = iota
	LevelError
)

// Event field names.
const (
	FieldMessageID   = "message_id"
	FieldTid         = "tid"
	FieldRequestor   = "requestor"
	FieldRequestType = "req_type"
	FieldAction      = "action"
	FieldReason      = "reason"
	FieldCA          = "ca"
)

// Field is a named value of the event.
type Field struct {
	Name  string
	Value string
}

// Event is a single audit event. It is not safe for concurrent use.
type Event struct {
	Application string
	Name        string
	Started     time.Time
	Duration    time.Duration
	Level       Level
	Status      Status
	Fields      []Field
}

// NewEvent returns an event with a fresh random message ID.
func NewEvent(application, name string) *Event {
	e := &Event{
		Application: application,
		Name:        name,
		Started:     time.Now(),
	}
	e.AddField(FieldMessageID, uuid.NewString())
	return e
}

// AddField adds (or replaces) the field value.
func (e *Event) AddField(name, value string) {
	if e == nil {
		return
	}
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			e.Fields[i].Value = value
			return
		}
	}
	e.Fields = append(e.Fields, Field{Name: name, Value: value})
}

// Field returns the field value.
func (e *Event) Field(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Finish sets the final status and the event duration.
func (e *Event) Finish(status Status) {
	if e == nil {
		return
	}
	e.Status = status
	if status == StatusError {
		e.Level = LevelError
	}
	e.Duration = time.Since(e.Started)
}

func (e *Event) String() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s.%s status=%s duration=%dms", e.Application, e.Name, e.Status, e.Duration.Milliseconds())
	for _, f := range e.Fields {
		fmt.Fprintf(&b, " %s=%s", f.Name, f.Value)
	}
	return b.String()
}

// Sink receives the audit events. Implementations must be safe for concurrent use.
type Sink interface {
	LogEvent(e *Event)
}

// Emit passes the event to the sink. Panics of the sink are recovered and logged.
func Emit(s Sink, e *Event) {
	if s == nil || e == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("Audit sink panic: ", r)
		}
	}()
	s.LogEvent(e)
}

// LogSink writes the events into the library log.
type LogSink struct{}

// LogEvent implements Sink interface.
func (LogSink) LogEvent(e *Event) {
	if e.Level == LevelError {
		log.Error("AUDIT ", e)
		return
	}
	log.Info("AUDIT ", e)
}

// Recorder keeps the events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []*Event
}

// LogEvent implements Sink interface.
func (r *Recorder) LogEvent(e *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns the recorded events.
func (r *Recorder) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Event(nil), r.events...)
}

// Multi fans the events out to all the sinks.
type Multi []Sink

// LogEvent implements Sink interface.
func (m Multi) LogEvent(e *Event) {
	for _, s := range m {
		Emit(s, e)
	}
}
