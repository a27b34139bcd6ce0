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

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kadirpekel/magebridge/pkg/game"
)

const (
	defaultDialTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// frame is one websocket message in either direction.
type frame struct {
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// response is the client→engine payload of a typed response frame.
type response struct {
	GameID   uuid.UUID `json:"game_id"`
	PlayerID uuid.UUID `json:"player_id,omitempty"`
	Boolean  *bool     `json:"boolean,omitempty"`
	UUID     string    `json:"uuid,omitempty"`
	String   *string   `json:"string,omitempty"`
	Integer  *int      `json:"integer,omitempty"`
	ManaType string    `json:"mana_type,omitempty"`
	Action   string    `json:"action,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// SessionConfig configures a websocket engine session.
type SessionConfig struct {
	// URL is the engine's websocket endpoint.
	URL string

	// PlayerName identifies us to the engine.
	PlayerName string

	// DialTimeout bounds the initial connect (default 10s).
	DialTimeout time.Duration

	// WriteTimeout bounds every send (default 10s).
	WriteTimeout time.Duration
}

// Session is a websocket connection to the rules engine. It runs one read
// pump decoding callback frames and serializes all writes through a mutex.
type Session struct {
	cfg     SessionConfig
	handler CallbackHandler
	logger  *slog.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	closeOnce sync.Once
	closed    chan struct{}
}

// NewSession dials the engine and starts the read pump. The handler
// receives callbacks on the read goroutine until the connection drops or
// Close is called.
func NewSession(ctx context.Context, cfg SessionConfig, handler CallbackHandler, logger *slog.Logger) (*Session, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("engine url is required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to engine: %w", err)
	}

	s := &Session{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		conn:    conn,
		closed:  make(chan struct{}),
	}

	go s.readPump()

	return s, nil
}

// Close tears down the connection. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.conn.Close()
	})
	return err
}

// Done is closed when the session ends for any reason.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

func (s *Session) readPump() {
	defer s.Close()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closed:
			default:
				s.logger.Warn("engine connection lost", "error", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.logger.Warn("undecodable engine frame", "error", err)
			continue
		}

		var cb game.Callback
		if err := json.Unmarshal(f.Data, &cb); err != nil {
			s.logger.Warn("undecodable callback payload", "method", f.Method, "error", err)
			continue
		}
		if cb.Kind == "" {
			cb.Kind = game.CallbackKind(f.Method)
		}

		if s.handler != nil {
			s.handler.HandleCallback(&cb)
		}
	}
}

func (s *Session) send(ctx context.Context, method string, payload response) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", method, err)
	}
	msg, err := json.Marshal(frame{Method: method, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline := time.Now().Add(s.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", method, err)
	}
	return nil
}

// SendBoolean implements Responder.
func (s *Session) SendBoolean(ctx context.Context, gameID uuid.UUID, value bool) error {
	return s.send(ctx, "respond_boolean", response{GameID: gameID, Boolean: &value})
}

// SendUUID implements Responder.
func (s *Session) SendUUID(ctx context.Context, gameID, objectID uuid.UUID) error {
	return s.send(ctx, "respond_uuid", response{GameID: gameID, UUID: objectID.String()})
}

// SendString implements Responder.
func (s *Session) SendString(ctx context.Context, gameID uuid.UUID, value string) error {
	return s.send(ctx, "respond_string", response{GameID: gameID, String: &value})
}

// SendInteger implements Responder.
func (s *Session) SendInteger(ctx context.Context, gameID uuid.UUID, value int) error {
	return s.send(ctx, "respond_integer", response{GameID: gameID, Integer: &value})
}

// SendManaType implements Responder.
func (s *Session) SendManaType(ctx context.Context, gameID, playerID uuid.UUID, mana game.ManaType) error {
	return s.send(ctx, "respond_mana", response{GameID: gameID, PlayerID: playerID, ManaType: string(mana)})
}

// SendPlayerAction implements Actions.
func (s *Session) SendPlayerAction(ctx context.Context, gameID uuid.UUID, action string) error {
	return s.send(ctx, "player_action", response{GameID: gameID, Action: action})
}

// SendChatMessage implements Chat.
func (s *Session) SendChatMessage(ctx context.Context, gameID uuid.UUID, message string) error {
	return s.send(ctx, "chat_message", response{GameID: gameID, Message: message})
}

// JoinChat implements Chat.
func (s *Session) JoinChat(ctx context.Context, gameID uuid.UUID) error {
	return s.send(ctx, "chat_join", response{GameID: gameID})
}
