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

package responder

import (
	"context"
	"fmt"
	"sync"

	"github.com/guardtime/gocmp/audit"
	"github.com/guardtime/gocmp/errors"
	"github.com/guardtime/gocmp/log"
	"github.com/guardtime/gocmp/pdu"
	"github.com/guardtime/gocmp/registry"
)

// ActionHandler performs a vendor action. The payload is the DER encoded action argument (nil if absent); the
// returned value is the DER encoded action result (nil if none).
type ActionHandler func(ctx context.Context, req *Request, payload []byte) ([]byte, error)

type actionEntry struct {
	perm    registry.Permission
	handler ActionHandler
}

// ActionDispatcher is a Processor answering the vendor action general messages. Any other request body is passed to
// the fallback processor, if set.
type ActionDispatcher struct {
	mu       sync.RWMutex
	actions  map[pdu.Action]actionEntry
	fallback Processor
}

// NewActionDispatcher returns an empty dispatcher.
func NewActionDispatcher() *ActionDispatcher {
	return &ActionDispatcher{actions: make(map[pdu.Action]actionEntry)}
}

// Register registers the handler for the action. The requestor must hold the permission to perform the action.
func (d *ActionDispatcher) Register(action pdu.Action, perm registry.Permission, h ActionHandler) error {
	if d == nil || h == nil {
		return errors.New(errors.CmpInvalidArgumentError)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.actions[action]; ok {
		return errors.New(errors.CmpInvalidStateError).
			AppendMessage(fmt.Sprintf("Action %s is already registered.", action))
	}
	d.actions[action] = actionEntry{perm: perm, handler: h}
	return nil
}

// SetFallback sets the processor for the requests other than vendor action general messages.
func (d *ActionDispatcher) SetFallback(p Processor) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = p
}

// Process implements Processor interface.
func (d *ActionDispatcher) Process(ctx context.Context, req *Request) (*pdu.Body, error) {
	if d == nil || req == nil || req.Body == nil {
		return nil, errors.New(errors.CmpInvalidArgumentError)
	}
	d.mu.RLock()
	fallback := d.fallback
	d.mu.RUnlock()

	typ, err := req.Body.Type()
	if err != nil {
		return nil, err
	}
	if typ != pdu.BodyGenMsg {
		if fallback != nil {
			return fallback.Process(ctx, req)
		}
		return nil, NewOperationError(pdu.BadRequest, fmt.Sprintf("unsupported type %d", typ))
	}

	info, err := req.Body.InfoTypeAndValues()
	if err != nil {
		return nil, err
	}
	itv, ok := pdu.FindInfo(info, pdu.OIDVendorAction)
	if !ok {
		if fallback != nil {
			return fallback.Process(ctx, req)
		}
		return nil, NewOperationError(pdu.BadRequest, "unsupported general message type")
	}

	action, payload, err := pdu.DecodeAction(itv)
	if err != nil {
		log.Tid(req.Tid()).Infof("invalid action: %v", err)
		return nil, NewOperationError(pdu.BadRequest, "invalid action value")
	}
	req.Event.AddField(audit.FieldAction, action.String())

	d.mu.RLock()
	entry, ok := d.actions[action]
	d.mu.RUnlock()
	if !ok {
		return nil, NewOperationError(pdu.BadRequest, fmt.Sprintf("unsupported action %d", action))
	}
	if !req.Requestor.Permitted(entry.perm) {
		label := ""
		if req.Requestor != nil {
			label = req.Requestor.Label
		}
		log.Tid(req.Tid()).Warningf("%s is not permitted for requestor '%s'", entry.perm, label)
		return nil, NewOperationError(pdu.NotAuthorized, fmt.Sprintf("%s is not permitted", entry.perm))
	}

	result, err := entry.handler(ctx, req, payload)
	if err != nil {
		return nil, err
	}
	respItv, err := pdu.EncodeAction(action, result)
	if err != nil {
		return nil, errors.CmpErr(err).AppendMessage("Failed to encode action result.")
	}
	return pdu.NewGenRepBody(respItv), nil
}
