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

package sigalg

import (
	"crypto/x509/pkix"
	"fmt"

	"github.com/guardtime/gocmp/errors"
)

// Validator is the allow-list of signature algorithms accepted for protection.
type Validator struct {
	permitted map[Algorithm]struct{}
}

// NewValidator returns a validator permitting the named algorithms. If no names are provided, all the trusted
// algorithms are permitted.
func NewValidator(names ...string) (*Validator, error) {
	v := &Validator{}
	if len(names) == 0 {
		return v, nil
	}

	v.permitted = make(map[Algorithm]struct{}, len(names))
	for _, n := range names {
		a := ByName(n)
		if a == Unknown {
			return nil, errors.New(errors.CmpUnknownAlgorithm).AppendMessage(fmt.Sprintf("Unknown signature algorithm '%s'.", n))
		}
		v.permitted[a] = struct{}{}
	}
	return v, nil
}

// Permitted reports whether the algorithm is accepted.
func (v *Validator) Permitted(a Algorithm) bool {
	if !a.Defined() {
		return false
	}
	if v == nil || v.permitted == nil {
		return a.Trusted()
	}
	_, ok := v.permitted[a]
	return ok
}

// PermittedID reports whether the algorithm identifier is accepted. It returns the resolved algorithm.
func (v *Validator) PermittedID(id pkix.AlgorithmIdentifier) (Algorithm, bool) {
	a := ByOID(id.Algorithm)
	return a, v.Permitted(a)
}

// Algorithms returns the explicitly permitted algorithms, nil in case the trusted defaults are used.
func (v *Validator) Algorithms() []Algorithm {
	if v == nil || v.permitted == nil {
		return nil
	}
	ret := make([]Algorithm, 0, len(v.permitted))
	for a := range v.permitted {
		ret = append(ret, a)
	}
	return ret
}
