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
	"time"

	"github.com/kadirpekel/magebridge/pkg/game"
)

const chatRingSize = 20

// chatRing is a bounded ring of chat messages. The writer drops from the
// head on overflow. Messages from other players are marked undelivered
// until a tool call drains them. Not self-locking: the arbitrator mutex
// guards it.
type chatRing struct {
	entries     []game.ChatMessage
	undelivered []game.ChatMessage
	max         int
}

func newChatRing(max int) *chatRing {
	return &chatRing{max: max}
}

func (r *chatRing) add(msg game.ChatMessage) {
	r.entries = append(r.entries, msg)
	if len(r.entries) > r.max {
		r.entries = r.entries[len(r.entries)-r.max:]
	}
	r.undelivered = append(r.undelivered, msg)
	if len(r.undelivered) > r.max {
		r.undelivered = r.undelivered[len(r.undelivered)-r.max:]
	}
}

// drainRecent returns undelivered chat from players other than self and
// clears the undelivered list.
func (r *chatRing) drainRecent(self string) []game.ChatMessage {
	if len(r.undelivered) == 0 {
		return nil
	}
	var out []game.ChatMessage
	for _, m := range r.undelivered {
		if m.Player != self {
			out = append(out, m)
		}
	}
	r.undelivered = nil
	return out
}

// all returns a copy of the retained entries.
func (r *chatRing) all() []game.ChatMessage {
	out := make([]game.ChatMessage, len(r.entries))
	copy(out, r.entries)
	return out
}

// SendChat forwards a chat message to the engine, suppressing an identical
// message sent within the dedup window.
func (a *Arbitrator) SendChat(ctx context.Context, message string) map[string]any {
	a.mu.Lock()
	if message == a.lastChatSent && time.Since(a.lastChatSentAt) < a.cfg.ChatDedupWindow {
		a.mu.Unlock()
		return a.finish(map[string]any{
			"success":    true,
			"suppressed": true,
		})
	}
	a.lastChatSent = message
	a.lastChatSentAt = time.Now()
	gameID := a.gameID
	a.mu.Unlock()

	if err := a.client.SendChatMessage(ctx, gameID, message); err != nil {
		a.logger.Warn("failed to send chat", "error", err)
		return a.finish(map[string]any{
			"success": false,
			"error":   "failed to send chat message",
		})
	}
	return a.finish(map[string]any{"success": true})
}
