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

// Package errors implements functions to manipulate CMP errors.
//
// Every error returned by the API is of type *CmpError. Beside the error code it carries a stack of descriptive
// messages, an optional low-level error and, in case the error represents a rejection issued by the CA, the PKI status
// information as stated by the CA (see PkiStatus).
package errors

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// PkiStatus is the status information the CA has stated in an error message.
type PkiStatus struct {
	// Status is the PKIStatus value (2 for rejection).
	Status int
	// FailureInfo is the failure-info bit mask, where bit n corresponds to the RFC 4210 failure bit n.
	FailureInfo uint64
	// Text is the free text sent by the CA, if any.
	Text string
}

func (s PkiStatus) String() string {
	return fmt.Sprintf("status=%d, failureInfo=0x%x, text='%s'", s.Status, s.FailureInfo, s.Text)
}

// CmpError is the error type returned by the API. The error code identifies the failure class, the messages describe
// it from the innermost to the outermost call.
type CmpError struct {
	errorCode    ErrorCode
	message      []string
	extError     error
	extErrorCode int
	pkiStatus    *PkiStatus
	errorStack   string
}

// New construct a new CmpError.
func New(code ErrorCode) *CmpError {
	return &CmpError{
		errorCode:  code,
		errorStack: stack(3),
	}
}

// CmpErr returns err as CmpError. In case err is, or wraps, a CmpError, that CmpError is returned without any
// modification. Otherwise err is wrapped into a new CmpError with the code CmpExternalError.
//
// Optionally an error code can be provided, which will be applied in case of external error. Note, despite the fact
// that 'code' parameter is a variadic value, only one error code should be provided.
func CmpErr(err error, code ...ErrorCode) *CmpError {
	if err == nil {
		return nil
	}

	var cmpErr *CmpError
	if stderrors.As(err, &cmpErr) && cmpErr != nil {
		return cmpErr
	}
	errCode := CmpExternalError
	if len(code) != 0 {
		errCode = code[0]
	}
	cmpErr = New(errCode).SetExtError(err)
	return cmpErr
}

// stack returns the call stack above the caller of New, one 'function (file:line)' entry per line.
func stack(skip int) string {
	pc := make([]uintptr, 32)
	n := runtime.Callers(skip, pc)
	if n == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(pc[:n])
	for {
		f, more := frames.Next()
		if f.Function != "" && !strings.HasPrefix(f.Function, "runtime.") {
			fmt.Fprintf(&b, "  %s (%s:%d)\n", f.Function, filepath.Base(f.File), f.Line)
		}
		if !more {
			break
		}
	}
	return b.String()
}

// Error implements error interface.
func (e *CmpError) Error() string {
	if e == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%04x/%d] %s.\n", uint16(e.errorCode), e.extErrorCode, e.errorCode)
	if e.pkiStatus != nil {
		fmt.Fprintf(&b, "PKI status: %s\n", e.pkiStatus)
	}
	if len(e.message) > 0 {
		b.WriteString("Error message:")
		for i := len(e.message); i > 0; i-- {
			fmt.Fprintf(&b, "\n  %d: %s", i, e.message[i-1])
		}
		b.WriteString("\n")
	}
	if e.extError != nil {
		fmt.Fprintf(&b, "Extended error: %s\n", e.extError)
	}
	if e.errorStack != "" {
		b.WriteString("Stack:\n")
		b.WriteString(e.errorStack)
	}
	return b.String()
}

// Unwrap returns the low-level error, so that the standard errors.Is and errors.As can look through a CmpError.
func (e *CmpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.extError
}

// Is reports whether target is a CmpError with the same error code. It allows matching a class of errors with the
// standard errors.Is, e.g. errors.Is(err, New(CmpNetworkError)).
func (e *CmpError) Is(target error) bool {
	t, ok := target.(*CmpError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.errorCode == t.errorCode
}

// AppendMessage adds a descriptive message on top of the message stack.
// Returns an updated reference of the receiver CmpError.
func (e *CmpError) AppendMessage(msg string) *CmpError {
	if e == nil {
		return nil
	}
	e.message = append(e.message, msg)
	return e
}

// SetExtError sets the low-level error, e.g. the one returned by the standard library.
// Returns an updated reference of the receiver CmpError.
func (e *CmpError) SetExtError(err error) *CmpError {
	if e == nil {
		return nil
	}
	e.extError = err
	return e
}

// SetExtErrorCode sets the low-level error code, e.g. the HTTP status.
// Returns an updated reference of the receiver CmpError.
func (e *CmpError) SetExtErrorCode(c int) *CmpError {
	if e == nil {
		return nil
	}
	e.extErrorCode = c
	return e
}

// SetPkiStatus attaches the status information stated by the CA.
// Returns an updated reference of the receiver CmpError.
func (e *CmpError) SetPkiStatus(s PkiStatus) *CmpError {
	if e == nil {
		return nil
	}
	e.pkiStatus = &s
	return e
}

// Code returns the error code, or CmpNoError for a nil receiver.
func (e *CmpError) Code() ErrorCode {
	if e == nil {
		return CmpNoError
	}
	return e.errorCode
}

// Stack returns the call stack captured when the error was constructed.
func (e *CmpError) Stack() string {
	if e == nil {
		return ""
	}
	return e.errorStack
}

// ExtCode returns the low-level error code.
func (e *CmpError) ExtCode() int {
	if e == nil {
		return 0
	}
	return e.extErrorCode
}

// ExtError returns the low-level error.
func (e *CmpError) ExtError() error {
	if e == nil {
		return nil
	}
	return e.extError
}

// Message returns the message stack, the first appended message first.
func (e *CmpError) Message() []string {
	if e == nil {
		return nil
	}
	return e.message
}

// PkiStatus returns the status information stated by the CA, or nil if the error is not a CA rejection.
func (e *CmpError) PkiStatus() *PkiStatus {
	if e == nil {
		return nil
	}
	return e.pkiStatus
}

// CodeOf returns the error code of the CmpError err is, or wraps. For any other non-nil error CmpExternalError is
// returned.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CmpNoError
	}
	var e *CmpError
	if stderrors.As(err, &e) {
		return e.Code()
	}
	return CmpExternalError
}
