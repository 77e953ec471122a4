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

package mock

import (
	"context"
	"crypto/x509"

	"github.com/guardtime/gocmp/sigalg"
)

// Signer implements protection.(Signer) interface. Sign always fails with Err.
type Signer struct {
	Alg  sigalg.Algorithm
	Cert *x509.Certificate
	Err  error
}

func (s *Signer) Algorithm() sigalg.Algorithm    { return s.Alg }
func (s *Signer) Certificate() *x509.Certificate { return s.Cert }
func (s *Signer) Sign(_ context.Context, _ []byte) ([]byte, error) {
	return nil, s.Err
}
