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

// Package registry holds the requestors known to the responder.
//
// The registry keeps an immutable snapshot of the requestor list. Lookups operate on the current snapshot without
// locking, while updates build a new snapshot and swap it in under a writer lock.
package registry

import (
	"bytes"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/pdu"
)

// Permission is the bit mask of operations a requestor is allowed to perform.
type Permission uint32

// Requestor permissions.
const (
	PermEnrollCert Permission = 1 << iota
	PermRevokeCert
	PermUnrevokeCert
	PermRemoveCert
	PermKeyUpdate
	PermGenCRL
	PermGetCRL
	PermEnrollCross

	permEnd
	// PermAll grants every operation.
	PermAll = permEnd - 1
)

var permNames = map[Permission]string{
	PermEnrollCert:   "enroll_cert",
	PermRevokeCert:   "revoke_cert",
	PermUnrevokeCert: "unrevoke_cert",
	PermRemoveCert:   "remove_cert",
	PermKeyUpdate:    "key_update",
	PermGenCRL:       "gen_crl",
	PermGetCRL:       "get_crl",
	PermEnrollCross:  "enroll_cross",
}

// Has reports whether all the permissions of q are granted.
func (p Permission) Has(q Permission) bool {
	return p&q == q
}

func (p Permission) String() string {
	if p == PermAll {
		return "all"
	}
	var names []string
	for bit := Permission(1); bit < permEnd; bit <<= 1 {
		if p&bit != 0 {
			names = append(names, permNames[bit])
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// ParsePermission parses permission names (see Permission.String()). The name "all" grants every operation.
func ParsePermission(names ...string) (Permission, error) {
	var ret Permission
	for _, n := range names {
		n = strings.TrimSpace(n)
		if strings.EqualFold(n, "all") {
			ret |= PermAll
			continue
		}
		found := false
		for p, s := range permNames {
			if strings.EqualFold(s, n) {
				ret |= p
				found = true
				break
			}
		}
		if !found {
			return 0, errors.New(errors.CmpInvalidArgumentError).AppendMessage(fmt.Sprintf("Unknown permission '%s'.", n))
		}
	}
	return ret, nil
}

// Requestor is a principal allowed to talk to the responder. A requestor without a certificate is faulty and is never
// authorized.
type Requestor struct {
	ID int64
	// Label is the unique management name of the requestor.
	Label string
	// Name is the directory name the requestor uses as the message sender. An empty name is resolved from the
	// certificate subject.
	Name       pkix.RDNSequence
	Cert       *x509.Certificate
	Permission Permission
	// Profiles is the set of permitted certificate profiles. Nil permits all profiles.
	Profiles []string
}

// IsFaulty reports whether the requestor has no usable certificate.
func (r *Requestor) IsFaulty() bool {
	return r == nil || r.Cert == nil
}

// Permitted reports whether the requestor holds the permission.
func (r *Requestor) Permitted(p Permission) bool {
	return r != nil && r.Permission.Has(p)
}

// ProfilePermitted reports whether the certificate profile may be used by the requestor.
func (r *Requestor) ProfilePermitted(profile string) bool {
	if r == nil {
		return false
	}
	if r.Profiles == nil {
		return true
	}
	for _, p := range r.Profiles {
		if strings.EqualFold(p, profile) || strings.EqualFold(p, "all") {
			return true
		}
	}
	return false
}

// DirectoryName returns the requestor name as GeneralName.
func (r *Requestor) DirectoryName() pdu.GeneralName {
	if r == nil {
		return pdu.NullDN
	}
	return pdu.NewDirectoryNameFromRDN(r.Name)
}

func (r *Requestor) clone() *Requestor {
	tmp := *r
	if r.Name != nil {
		tmp.Name = make(pkix.RDNSequence, len(r.Name))
		for i, set := range r.Name {
			tmp.Name[i] = append([]pkix.AttributeTypeAndValue(nil), set...)
		}
	}
	if r.Profiles != nil {
		tmp.Profiles = append([]string{}, r.Profiles...)
	}
	return &tmp
}

// SubjectName returns the certificate subject as RDN sequence, keeping all the attributes of the raw subject.
func SubjectName(cert *x509.Certificate) (pkix.RDNSequence, error) {
	if cert == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing certificate.")
	}
	var rdn pkix.RDNSequence
	rest, err := asn1.Unmarshal(cert.RawSubject, &rdn)
	if err != nil {
		return nil, errors.New(errors.CmpInvalidFormatError).SetExtError(err).AppendMessage("Failed to parse certificate subject.")
	}
	if len(rest) != 0 {
		return nil, errors.New(errors.CmpInvalidFormatError).AppendMessage("Trailing data after certificate subject.")
	}
	return rdn, nil
}

// resolveName fills in the name from the certificate subject.
func (r *Requestor) resolveName() {
	if len(r.Name) != 0 || r.Cert == nil {
		return
	}
	if rdn, err := SubjectName(r.Cert); err == nil {
		r.Name = rdn
	}
}

func (r *Requestor) String() string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("id=%d, label=%s, name='%s', faulty=%t, permission=%s", r.ID, r.Label, r.Name, r.IsFaulty(), r.Permission)
}

type snapshot struct {
	list []*Requestor
}

// Registry is the set of known requestors. It is safe for concurrent use.
type Registry struct {
	mu   sync.Mutex
	snap atomic.Value
}

// New returns a registry initialized with the requestors.
func New(reqs ...*Requestor) (*Registry, error) {
	r := &Registry{}
	r.snap.Store(&snapshot{})
	if err := r.Replace(reqs...); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) current() *snapshot {
	if s, ok := r.snap.Load().(*snapshot); ok {
		return s
	}
	return &snapshot{}
}

func validate(list []*Requestor) error {
	seen := make(map[string]struct{}, len(list))
	for i, req := range list {
		if req == nil {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage(fmt.Sprintf("Requestor at %d is nil.", i))
		}
		if req.Label == "" {
			return errors.New(errors.CmpInvalidArgumentError).AppendMessage(fmt.Sprintf("Requestor at %d has no label.", i))
		}
		key := strings.ToLower(req.Label)
		if _, ok := seen[key]; ok {
			return errors.New(errors.CmpInvalidArgumentError).
				AppendMessage(fmt.Sprintf("Duplicate requestor label '%s'.", req.Label))
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Replace swaps the whole requestor list.
func (r *Registry) Replace(reqs ...*Requestor) error {
	if r == nil {
		return errors.New(errors.CmpInvalidArgumentError)
	}
	list := make([]*Requestor, len(reqs))
	for i, req := range reqs {
		if req != nil {
			req = req.clone()
			req.resolveName()
		}
		list[i] = req
	}
	if err := validate(list); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.Store(&snapshot{list: list})
	return nil
}

// Add adds a requestor. The label must be unique.
func (r *Registry) Add(req *Requestor) error {
	if r == nil || req == nil {
		return errors.New(errors.CmpInvalidArgumentError)
	}
	tmp := req.clone()
	tmp.resolveName()

	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.current()
	list := make([]*Requestor, 0, len(cur.list)+1)
	list = append(list, cur.list...)
	list = append(list, tmp)
	if err := validate(list); err != nil {
		return err
	}
	r.snap.Store(&snapshot{list: list})
	return nil
}

// Remove removes the requestor with the label. False is returned in case the requestor was not found.
func (r *Registry) Remove(label string) bool {
	if r == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.current()
	list := make([]*Requestor, 0, len(cur.list))
	for _, req := range cur.list {
		if !strings.EqualFold(req.Label, label) {
			list = append(list, req)
		}
	}
	if len(list) == len(cur.list) {
		return false
	}
	r.snap.Store(&snapshot{list: list})
	return true
}

// Requestors returns copies of the current requestors ordered by label.
func (r *Registry) Requestors() []*Requestor {
	if r == nil {
		return nil
	}
	cur := r.current()
	ret := make([]*Requestor, len(cur.list))
	for i, req := range cur.list {
		ret[i] = req.clone()
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Label < ret[j].Label })
	return ret
}

// LookupByName returns a copy of the requestor using the directory name. The names are compared on the whole RDN
// sequence (see pdu.GeneralName.Equal).
func (r *Registry) LookupByName(name pdu.GeneralName) (*Requestor, bool) {
	if r == nil || !name.IsDirectoryName() || name.IsNull() {
		return nil, false
	}
	for _, req := range r.current().list {
		if len(req.Name) != 0 && req.DirectoryName().Equal(name) {
			return req.clone(), true
		}
	}
	return nil, false
}

// LookupByCertificate returns a copy of the requestor registered with the exact certificate.
func (r *Registry) LookupByCertificate(cert *x509.Certificate) (*Requestor, bool) {
	if r == nil || cert == nil {
		return nil, false
	}
	for _, req := range r.current().list {
		if req.Cert != nil && bytes.Equal(req.Cert.Raw, cert.Raw) {
			return req.clone(), true
		}
	}
	return nil, false
}
