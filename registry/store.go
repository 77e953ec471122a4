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

package registry

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"database/sql"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"strings"

	// SQLite driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/log"
)

// Store is the persistent requestor storage backed by SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the requestor database at the path.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Missing database path.")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.New(errors.CmpIoError).SetExtError(err).AppendMessage("Failed to open requestor database.")
	}
	// Enable WAL mode for concurrent readers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, errors.New(errors.CmpIoError).SetExtError(err).AppendMessage("Failed to enable WAL mode.")
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS requestors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		label TEXT UNIQUE NOT NULL COLLATE NOCASE,
		subject BLOB NOT NULL,
		cert TEXT NOT NULL,
		permission INTEGER NOT NULL DEFAULT 0,
		profiles TEXT,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.New(errors.CmpIoError).SetExtError(err).AppendMessage("Failed to initialize schema.")
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts the requestor. The requestor name is taken from the certificate subject if not set. The assigned
// database id is returned.
func (s *Store) Save(req *Requestor) (int64, error) {
	if s == nil || req == nil {
		return 0, errors.New(errors.CmpInvalidArgumentError)
	}
	if req.Label == "" || req.Cert == nil {
		return 0, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Requestor label and certificate are mandatory.")
	}

	subject := req.Cert.RawSubject
	if len(req.Name) != 0 {
		der, err := asn1.Marshal(req.Name)
		if err != nil {
			return 0, errors.New(errors.CmpInvalidFormatError).SetExtError(err).AppendMessage("Failed to encode requestor name.")
		}
		subject = der
	}

	var profiles sql.NullString
	if req.Profiles != nil {
		profiles = sql.NullString{String: strings.Join(req.Profiles, ","), Valid: true}
	}

	res, err := s.db.Exec(`INSERT INTO requestors (label, subject, cert, permission, profiles) VALUES (?, ?, ?, ?, ?)`,
		req.Label, subject, base64.StdEncoding.EncodeToString(req.Cert.Raw), int64(req.Permission), profiles)
	if err != nil {
		return 0, errors.New(errors.CmpIoError).SetExtError(err).
			AppendMessage(fmt.Sprintf("Failed to store requestor '%s'.", req.Label))
	}
	return res.LastInsertId()
}

// Delete removes the requestor with the label. False is returned in case it was not found.
func (s *Store) Delete(label string) (bool, error) {
	if s == nil {
		return false, errors.New(errors.CmpInvalidArgumentError)
	}
	res, err := s.db.Exec(`DELETE FROM requestors WHERE label = ?`, label)
	if err != nil {
		return false, errors.New(errors.CmpIoError).SetExtError(err).
			AppendMessage(fmt.Sprintf("Failed to delete requestor '%s'.", label))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.New(errors.CmpIoError).SetExtError(err)
	}
	return n > 0, nil
}

// Load returns all the stored requestors. A requestor whose certificate can not be parsed is returned as faulty
// (without certificate).
func (s *Store) Load() ([]*Requestor, error) {
	if s == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	rows, err := s.db.Query(`SELECT id, label, subject, cert, permission, profiles FROM requestors ORDER BY id`)
	if err != nil {
		return nil, errors.New(errors.CmpIoError).SetExtError(err).AppendMessage("Failed to query requestors.")
	}
	defer rows.Close()

	var ret []*Requestor
	for rows.Next() {
		var (
			req        Requestor
			subject    []byte
			b64Cert    string
			permission int64
			profiles   sql.NullString
		)
		if err := rows.Scan(&req.ID, &req.Label, &subject, &b64Cert, &permission, &profiles); err != nil {
			return nil, errors.New(errors.CmpIoError).SetExtError(err).AppendMessage("Failed to read requestor row.")
		}
		req.Permission = Permission(permission)
		if profiles.Valid {
			req.Profiles = []string{}
			for _, p := range strings.Split(profiles.String, ",") {
				if p = strings.TrimSpace(p); p != "" {
					req.Profiles = append(req.Profiles, p)
				}
			}
		}

		var rdn pkix.RDNSequence
		if rest, err := asn1.Unmarshal(subject, &rdn); err != nil || len(rest) != 0 {
			log.Error(fmt.Sprintf("could not parse the name of requestor '%s': %v", req.Label, err))
		} else {
			req.Name = rdn
		}
		if req.Cert, err = parseBase64Cert(b64Cert); err != nil {
			log.Error(fmt.Sprintf("could not parse the certificate for requestor '%s': %v", req.Label, err))
			req.Cert = nil
		}
		ret = append(ret, &req)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.CmpIoError).SetExtError(err)
	}
	return ret, nil
}

func parseBase64Cert(s string) (*x509.Certificate, error) {
	der, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(der)
}

// Manager keeps the registry in sync with the store.
type Manager struct {
	store *Store
	reg   *Registry
}

// NewManager loads the stored requestors into the registry and returns the manager.
func NewManager(store *Store, reg *Registry) (*Manager, error) {
	if store == nil || reg == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	m := &Manager{store: store, reg: reg}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload replaces the registry content with the stored requestors.
func (m *Manager) Reload() error {
	if m == nil {
		return errors.New(errors.CmpInvalidArgumentError)
	}
	reqs, err := m.store.Load()
	if err != nil {
		return err
	}
	if err := m.reg.Replace(reqs...); err != nil {
		return err
	}
	log.Info(fmt.Sprintf("Loaded %d requestor(s).", len(reqs)))
	return nil
}

// Add stores the requestor and adds it to the registry.
func (m *Manager) Add(req *Requestor) error {
	if m == nil || req == nil {
		return errors.New(errors.CmpInvalidArgumentError)
	}
	id, err := m.store.Save(req)
	if err != nil {
		return err
	}
	tmp := req.clone()
	tmp.ID = id
	if err := m.reg.Add(tmp); err != nil {
		if _, derr := m.store.Delete(req.Label); derr != nil {
			log.Error(fmt.Sprintf("could not roll back requestor '%s': %v", req.Label, derr))
		}
		return err
	}
	log.Info("Added requestor: ", tmp.String())
	return nil
}

// Remove deletes the requestor from the store and the registry.
func (m *Manager) Remove(label string) (bool, error) {
	if m == nil {
		return false, errors.New(errors.CmpInvalidArgumentError)
	}
	ok, err := m.store.Delete(label)
	if err != nil || !ok {
		return ok, err
	}
	m.reg.Remove(label)
	log.Info("Removed requestor: ", label)
	return true, nil
}
