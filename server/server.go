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

// Package server implements the HTTP transport binding of the CMP responders (RFC 6712).
//
// A PKI message is posted with the content type application/pkixcmp to the path naming the CA alias, e.g.
// "/myca". The TLS client certificate, if any, is handed to the responder for the TLS client authentication.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	stdnet "net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guardtime/gocmp/audit"
	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/log"
	"github.com/guardtime/gocmp/pdu"
	"github.com/guardtime/gocmp/responder"
)

// Config holds the server configuration.
type Config struct {
	// Addr is the TCP listen address, e.g. ":8080".
	Addr string
	// TLSConfig enables HTTPS in case it is set. The config must hold the server certificate.
	TLSConfig *tls.Config
	// MaxRequestSize is the maximum accepted request body size in bytes.
	MaxRequestSize int64

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// AuditSink receives the events of the requests rejected on the HTTP level. The exchanges handed to a
	// responder are audited by the responder.
	AuditSink audit.Sink
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8080",
		MaxRequestSize:  pdu.MaxSize,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		AuditSink:       audit.LogSink{},
	}
}

// Server is the CMP HTTP server.
type Server struct {
	router *gin.Engine
	config Config

	mu         sync.RWMutex
	responders map[string]*responder.Responder
	httpServer *http.Server
	listener   stdnet.Listener
}

// New returns a new server. In case config is nil, DefaultConfig() is used.
func New(config *Config) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxRequestSize <= 0 {
		return nil, errors.New(errors.CmpInvalidArgumentError).AppendMessage("Max request size must be positive.")
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:     gin.New(),
		config:     *config,
		responders: make(map[string]*responder.Responder),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.HandleMethodNotAllowed = true
	s.router.Use(LoggingMiddleware())
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, rec interface{}) {
		log.Error(fmt.Sprintf("Panic while serving %s %s: %v", c.Request.Method, c.Request.URL.Path, rec))
		c.AbortWithStatus(http.StatusInternalServerError)
	}))
}

func (s *Server) setupRoutes() {
	s.router.POST("/:ca", s.handleCMP)
	s.router.GET("/health", s.handleHealth)
}

// Register registers the responder under the CA alias. The alias is case insensitive.
func (s *Server) Register(alias string, r *responder.Responder) error {
	if s == nil || r == nil {
		return errors.New(errors.CmpInvalidArgumentError)
	}
	key := strings.ToLower(alias)
	if key == "" || strings.ContainsAny(key, "/?#") || key == "health" {
		return errors.New(errors.CmpInvalidArgumentError).AppendMessage(fmt.Sprintf("Invalid CA alias '%s'.", alias))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.responders[key]; ok {
		return errors.New(errors.CmpInvalidStateError).
			AppendMessage(fmt.Sprintf("CA alias '%s' is already registered.", alias))
	}
	s.responders[key] = r
	log.Info(fmt.Sprintf("Registered %s as '%s'", r, key))
	return nil
}

// Aliases returns the registered CA aliases in sorted order.
func (s *Server) Aliases() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]string, 0, len(s.responders))
	for alias := range s.responders {
		ret = append(ret, alias)
	}
	sort.Strings(ret)
	return ret
}

func (s *Server) responder(alias string) (*responder.Responder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.responders[strings.ToLower(alias)]
	return r, ok
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts serving and blocks until the context is done, then shuts the server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return errors.New(errors.CmpInvalidArgumentError)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ln, err := stdnet.Listen("tcp", s.config.Addr)
	if err != nil {
		return errors.New(errors.CmpNetworkError).SetExtError(err).
			AppendMessage(fmt.Sprintf("Failed to listen on '%s'.", s.config.Addr))
	}
	srv := &http.Server{
		Handler:      s.router,
		TLSConfig:    s.config.TLSConfig,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		_ = ln.Close()
		return errors.New(errors.CmpInvalidStateError).AppendMessage("Server is already started.")
	}
	s.httpServer = srv
	s.listener = ln
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		var err error
		if srv.TLSConfig != nil {
			err = srv.ServeTLS(ln, "", "")
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	log.Notice(fmt.Sprintf("CMP server listening on %s (TLS: %t)", ln.Addr(), srv.TLSConfig != nil))

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.New(errors.CmpNetworkError).SetExtError(err).AppendMessage("Server failed.")
		}
		return nil
	case <-ctx.Done():
	}

	log.Notice("Shutting down CMP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.New(errors.CmpNetworkError).SetExtError(err).AppendMessage("Failed to shut down server.")
	}
	return nil
}

// Addr returns the listen address, or an empty string in case the server is not started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop stops the server.
func (s *Server) Stop() error {
	s.mu.RLock()
	srv := s.httpServer
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
