// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package engine defines the interfaces the bridge consumes from the rules
// engine and a websocket session implementing them.
//
// The engine drives the client with an asynchronous callback stream; the
// client answers through five typed response primitives plus a player
// action (used for server-side yields) and two chat primitives.
package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/kadirpekel/magebridge/pkg/game"
)

// ErrClosed is returned by send primitives after the session is closed.
var ErrClosed = errors.New("engine session closed")

// Responder dispatches typed responses to the engine.
type Responder interface {
	SendBoolean(ctx context.Context, gameID uuid.UUID, value bool) error
	SendUUID(ctx context.Context, gameID, objectID uuid.UUID) error
	SendString(ctx context.Context, gameID uuid.UUID, value string) error
	SendInteger(ctx context.Context, gameID uuid.UUID, value int) error
	SendManaType(ctx context.Context, gameID, playerID uuid.UUID, mana game.ManaType) error
}

// Actions issues player actions; the bridge uses it only for server-side
// yield modes ("pass until my turn" and friends).
type Actions interface {
	SendPlayerAction(ctx context.Context, gameID uuid.UUID, action string) error
}

// Chat sends and joins game chat.
type Chat interface {
	SendChatMessage(ctx context.Context, gameID uuid.UUID, message string) error
	JoinChat(ctx context.Context, gameID uuid.UUID) error
}

// CallbackHandler receives the engine's callback stream, one callback at a
// time, on the session's read goroutine.
type CallbackHandler interface {
	HandleCallback(cb *game.Callback)
}

// Client bundles the three engine-facing interfaces.
type Client interface {
	Responder
	Actions
	Chat
}
