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

package server

import (
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/guardtime/gocmp/audit"
	"github.com/guardtime/gocmp/log"
	"github.com/guardtime/gocmp/net"
	"github.com/guardtime/gocmp/pdu"
)

const (
	auditApplication = "CA"
	auditEventName   = "HTTP"
)

// handleCMP serves a PKI message posted to the CA alias.
func (s *Server) handleCMP(c *gin.Context) {
	alias := c.Param("ca")

	if !strings.EqualFold(c.ContentType(), net.ContentType) {
		s.reject(c, alias, http.StatusUnsupportedMediaType, fmt.Sprintf("unsupported media type %s", c.ContentType()))
		return
	}

	r, ok := s.responder(alias)
	if !ok {
		s.reject(c, alias, http.StatusNotFound, "unknown CA")
		return
	}
	if !r.IsOnService() {
		s.reject(c, alias, http.StatusNotFound, "responder is not in service")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, s.config.MaxRequestSize+1))
	if err != nil {
		s.reject(c, alias, http.StatusBadRequest, "could not read request")
		return
	}
	if int64(len(raw)) > s.config.MaxRequestSize {
		s.reject(c, alias, http.StatusRequestEntityTooLarge, "request too large")
		return
	}
	if len(raw) == 0 {
		s.reject(c, alias, http.StatusBadRequest, "empty request")
		return
	}
	req, err := pdu.Decode(raw)
	if err != nil {
		log.Debug("Failed to decode PKI message: ", err)
		s.reject(c, alias, http.StatusBadRequest, "bad request")
		return
	}

	resp := r.ProcessMessage(c.Request.Context(), req, peerCertificate(c.Request))
	der, err := resp.Encode()
	if err != nil {
		log.Error("Failed to encode PKI message: ", err)
		s.reject(c, alias, http.StatusInternalServerError, "could not encode response")
		return
	}
	c.Data(http.StatusOK, net.ContentType, der)
}

// reject answers the request with the HTTP status and emits the audit event.
func (s *Server) reject(c *gin.Context, alias string, status int, reason string) {
	log.Info(fmt.Sprintf("CA '%s': %s %s rejected with %d: %s", alias, c.Request.Method, c.Request.URL.Path, status, reason))

	event := audit.NewEvent(auditApplication, auditEventName)
	event.AddField(audit.FieldCA, alias)
	event.AddField(audit.FieldReason, reason)
	event.Finish(audit.StatusFailed)
	audit.Emit(s.config.AuditSink, event)

	c.AbortWithStatus(status)
}

func peerCertificate(r *http.Request) *x509.Certificate {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return nil
	}
	return r.TLS.PeerCertificates[0]
}

// CAStatus is the state of a registered responder.
type CAStatus struct {
	Alias     string `json:"alias"`
	OnService bool   `json:"onService"`
}

// handleHealth reports the state of the registered responders.
func (s *Server) handleHealth(c *gin.Context) {
	var list []CAStatus
	for _, alias := range s.Aliases() {
		r, ok := s.responder(alias)
		if !ok {
			continue
		}
		list = append(list, CAStatus{Alias: alias, OnService: r.IsOnService()})
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"cas":    list,
	})
}
