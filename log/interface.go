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

// Logger is the logger interface.
type Logger interface {
	// Debug logs protocol details, e.g. rejected messages and their reasons.
	Debug(v ...interface{})
	// Info logs events that do not affect the service, e.g. configuration and statistics.
	Info(v ...interface{})
	// Notice logs state changes of the service, e.g. a responder going into service.
	Notice(v ...interface{})
	// Warning logs requests that were refused for policy reasons.
	Warning(v ...interface{})
	// Error logs failures of the service itself.
	Error(v ...interface{})
}
