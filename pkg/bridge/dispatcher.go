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

package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/magebridge/pkg/engine"
	"github.com/kadirpekel/magebridge/pkg/game"
	"github.com/kadirpekel/magebridge/pkg/observability"
)

// responseKind tags the typed response last sent.
type responseKind string

const (
	respBoolean responseKind = "boolean"
	respUUID    responseKind = "uuid"
	respString  responseKind = "string"
	respInteger responseKind = "integer"
	respMana    responseKind = "mana"
)

// trackedResponse remembers the last send so the lost-response retry can
// replay it once if the engine's receive window closed before it arrived.
type trackedResponse struct {
	gameID   uuid.UUID
	kind     responseKind
	boolVal  bool
	uuidVal  uuid.UUID
	strVal   string
	intVal   int
	manaVal  game.ManaType
	playerID uuid.UUID
	sentAt   time.Time
	retried  bool
}

// Dispatcher serializes typed sends to the engine and owns the tracked
// response. Actionable callbacks clear the tracked state; passive ones
// leave it alone, which is what lets the retry distinguish "engine is
// thinking" from "engine never heard us".
type Dispatcher struct {
	mu        sync.Mutex
	responder engine.Responder
	tracked   *trackedResponse
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewDispatcher wraps an engine responder.
func NewDispatcher(responder engine.Responder, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{responder: responder, logger: logger, metrics: metrics}
}

// SendBoolean sends and tracks a boolean response.
func (d *Dispatcher) SendBoolean(ctx context.Context, gameID uuid.UUID, value bool) error {
	if err := d.responder.SendBoolean(ctx, gameID, value); err != nil {
		return err
	}
	d.track(&trackedResponse{gameID: gameID, kind: respBoolean, boolVal: value})
	return nil
}

// SendUUID sends and tracks a UUID response.
func (d *Dispatcher) SendUUID(ctx context.Context, gameID, objectID uuid.UUID) error {
	if err := d.responder.SendUUID(ctx, gameID, objectID); err != nil {
		return err
	}
	d.track(&trackedResponse{gameID: gameID, kind: respUUID, uuidVal: objectID})
	return nil
}

// SendString sends and tracks a string response.
func (d *Dispatcher) SendString(ctx context.Context, gameID uuid.UUID, value string) error {
	if err := d.responder.SendString(ctx, gameID, value); err != nil {
		return err
	}
	d.track(&trackedResponse{gameID: gameID, kind: respString, strVal: value})
	return nil
}

// SendInteger sends and tracks an integer response.
func (d *Dispatcher) SendInteger(ctx context.Context, gameID uuid.UUID, value int) error {
	if err := d.responder.SendInteger(ctx, gameID, value); err != nil {
		return err
	}
	d.track(&trackedResponse{gameID: gameID, kind: respInteger, intVal: value})
	return nil
}

// SendManaType sends and tracks a mana-type response.
func (d *Dispatcher) SendManaType(ctx context.Context, gameID, playerID uuid.UUID, mana game.ManaType) error {
	if err := d.responder.SendManaType(ctx, gameID, playerID, mana); err != nil {
		return err
	}
	d.track(&trackedResponse{gameID: gameID, kind: respMana, manaVal: mana, playerID: playerID})
	return nil
}

func (d *Dispatcher) track(t *trackedResponse) {
	t.sentAt = time.Now()
	d.mu.Lock()
	d.tracked = t
	d.mu.Unlock()
}

// ClearTracked drops the tracked response for a game. Called on every
// actionable callback arrival: the engine has demonstrably moved on.
func (d *Dispatcher) ClearTracked(gameID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tracked != nil && d.tracked.gameID == gameID {
		d.tracked = nil
	}
}

// HasTracked reports whether a response is awaiting acknowledgement.
func (d *Dispatcher) HasTracked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tracked != nil
}

// MaybeRetry resends the tracked response exactly once if more than window
// has elapsed and no actionable callback has cleared it in the meantime.
// Reports whether a retry was emitted.
func (d *Dispatcher) MaybeRetry(ctx context.Context, now time.Time, window time.Duration) bool {
	d.mu.Lock()
	t := d.tracked
	if t == nil || t.retried || now.Sub(t.sentAt) < window {
		d.mu.Unlock()
		return false
	}
	t.retried = true
	d.mu.Unlock()

	d.logger.Warn("retrying lost response",
		"game_id", t.gameID, "kind", string(t.kind), "age", now.Sub(t.sentAt))

	var err error
	switch t.kind {
	case respBoolean:
		err = d.responder.SendBoolean(ctx, t.gameID, t.boolVal)
	case respUUID:
		err = d.responder.SendUUID(ctx, t.gameID, t.uuidVal)
	case respString:
		err = d.responder.SendString(ctx, t.gameID, t.strVal)
	case respInteger:
		err = d.responder.SendInteger(ctx, t.gameID, t.intVal)
	case respMana:
		err = d.responder.SendManaType(ctx, t.gameID, t.playerID, t.manaVal)
	}
	if err != nil {
		d.logger.Warn("lost-response retry failed", "error", err)
		return false
	}
	d.metrics.IncRetry()
	return true
}
