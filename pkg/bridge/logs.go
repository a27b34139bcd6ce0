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
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kadirpekel/magebridge/pkg/game"
)

// ErrorLog appends timestamped lines to a file. All methods are nil-safe so
// callers never have to branch on whether a path was configured.
type ErrorLog struct {
	mu sync.Mutex
	f  *os.File
}

// NewErrorLog opens (or creates) the error log at path.
func NewErrorLog(path string) (*ErrorLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open error log: %w", err)
	}
	return &ErrorLog{f: f}, nil
}

// Log writes one line: ISO-8601 timestamp, the [mcp] tag, the message.
func (l *ErrorLog) Log(msg string) {
	if l == nil {
		return
	}
	line := time.Now().Format(time.RFC3339) + " [mcp] " + msg + "\n"
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f != nil {
		l.f.WriteString(line)
	}
}

// Logf is Log with formatting.
func (l *ErrorLog) Logf(format string, args ...any) {
	if l == nil {
		return
	}
	l.Log(fmt.Sprintf(format, args...))
}

// Close closes the underlying file.
func (l *ErrorLog) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	return l.f.Close()
}

// EventLog records callback traffic as newline-delimited JSON, one object
// per event with ts, method, and an optional compact data summary. The
// encoder is hand-rolled so every line stays a single line no matter what
// the engine puts in its messages.
type EventLog struct {
	mu sync.Mutex
	f  *os.File
}

// NewEventLog opens (or creates) the event log at path.
func NewEventLog(path string) (*EventLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return &EventLog{f: f}, nil
}

// Record logs one callback. UPDATE carries a one-line game-state summary,
// CHAT its type and text, GAME_OVER a fixed marker; other kinds log the
// method alone.
func (l *EventLog) Record(cb *game.Callback) {
	if l == nil || cb == nil {
		return
	}

	data := ""
	switch cb.Kind {
	case game.KindUpdate:
		data = updateSummary(cb)
	case game.KindChat:
		if cb.Chat != nil {
			data = cb.Chat.Type + ": " + cb.Chat.Text
		}
	case game.KindGameOver:
		data = "Game over"
	}

	var b strings.Builder
	b.WriteString(`{"ts":"`)
	b.WriteString(time.Now().Format(time.RFC3339))
	b.WriteString(`","method":`)
	writeJSONString(&b, string(cb.Kind))
	if data != "" {
		b.WriteString(`,"data":`)
		writeJSONString(&b, data)
	}
	b.WriteString("}\n")

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f != nil {
		l.f.WriteString(b.String())
	}
}

// Close closes the underlying file.
func (l *EventLog) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	return l.f.Close()
}

func updateSummary(cb *game.Callback) string {
	v := cb.View
	if v == nil {
		return "update"
	}
	var lives []string
	for _, p := range v.Players {
		lives = append(lives, fmt.Sprintf("%s=%d", p.Name, p.Life))
	}
	return fmt.Sprintf("T%d %s/%s active=%s %s",
		v.Turn, v.Phase, v.Step, v.ActivePlayer, strings.Join(lives, " "))
}

// writeJSONString writes s as a JSON string literal. Quote, backslash, and
// the common whitespace controls get short escapes; anything else below
// 0x20 becomes \uXXXX.
func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}

// defaultLogTail bounds a get_game_log call that names no limit.
const defaultLogTail = 20000

// GetGameLog reads the rolling game log in one of three modes: tail
// (default), cursor, or since-player-turn. Cursor and since-turn are
// mutually exclusive.
func (a *Arbitrator) GetGameLog(maxChars int, cursor *int64, sinceTurn int, sincePlayer string) map[string]any {
	if cursor != nil && sinceTurn > 0 {
		return a.finish(errorResult(codeMissingParam,
			"cursor and since_turn are mutually exclusive"))
	}
	if maxChars <= 0 {
		maxChars = defaultLogTail
	}

	if cursor != nil {
		res := a.gameLog.Since(*cursor)
		out := map[string]any{
			"success": true,
			"log":     res.Text,
			"cursor":  res.Cursor,
		}
		if res.CursorReset {
			out["cursor_reset"] = true
		}
		return a.finish(out)
	}

	if sinceTurn > 0 {
		a.mu.Lock()
		player := sincePlayer
		if player == "" {
			player = a.playerName
		}
		happened := a.rewriter.Count(player) >= sinceTurn
		a.mu.Unlock()

		res := a.gameLog.SincePlayerTurn(player, sinceTurn, happened)
		if !res.Found {
			return a.finish(map[string]any{
				"success": true,
				"log":     "",
				"found":   false,
			})
		}
		out := map[string]any{
			"success": true,
			"log":     res.Text,
			"found":   true,
		}
		if res.Truncated {
			out["truncated"] = true
		}
		return a.finish(out)
	}

	return a.finish(map[string]any{
		"success": true,
		"log":     a.gameLog.Tail(maxChars),
		"cursor":  a.gameLog.TrimmedBytes() + int64(a.gameLog.Len()),
	})
}
