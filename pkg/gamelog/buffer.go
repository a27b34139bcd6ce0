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

// Package gamelog keeps the human-readable game log: an append-only rolling
// buffer of newline-separated entries with a hard size cap, plus the
// per-player turn-marker rewriting the log readers rely on.
package gamelog

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultCap is the default hard cap of the buffer, 5 MiB.
const DefaultCap = 5 * 1024 * 1024

// Buffer is an append-only rolling log. One writer, many readers; readers
// copy under the lock. Trimming happens only at line boundaries so a read
// never starts mid-line.
type Buffer struct {
	mu      sync.Mutex
	data    []byte
	trimmed int64
	cap     int
}

// NewBuffer creates a buffer with the given cap; capBytes <= 0 uses
// DefaultCap.
func NewBuffer(capBytes int) *Buffer {
	if capBytes <= 0 {
		capBytes = DefaultCap
	}
	return &Buffer{cap: capBytes}
}

// Append adds one line (a trailing newline is added if missing). If the cap
// is exceeded the buffer is trimmed from the front to the next newline
// boundary and the trimmed-byte counter advances.
func (b *Buffer) Append(line string) {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(b.data, line...)
	for len(b.data) > b.cap {
		cut := len(b.data) - b.cap
		if nl := indexByte(b.data[cut:], '\n'); nl >= 0 {
			cut += nl + 1
		} else {
			cut = len(b.data)
		}
		b.trimmed += int64(cut)
		b.data = append(b.data[:0], b.data[cut:]...)
	}
}

func indexByte(p []byte, c byte) int {
	for i, x := range p {
		if x == c {
			return i
		}
	}
	return -1
}

// Len returns the current retained length in bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// TrimmedBytes returns how many bytes have been trimmed from the front.
// Len() + TrimmedBytes() always equals the logical total appended length.
func (b *Buffer) TrimmedBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trimmed
}

// Tail returns the final maxChars bytes.
func (b *Buffer) Tail(maxChars int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if maxChars <= 0 || maxChars >= len(b.data) {
		return string(b.data)
	}
	return string(b.data[len(b.data)-maxChars:])
}

// SinceResult is the outcome of a cursor read.
type SinceResult struct {
	Text        string
	Cursor      int64
	CursorReset bool
}

// Since returns everything at or past the given absolute offset. A cursor
// older than the oldest retained byte is clamped and flagged.
func (b *Buffer) Since(cursor int64) SinceResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	end := b.trimmed + int64(len(b.data))
	res := SinceResult{Cursor: end}
	if cursor < b.trimmed {
		cursor = b.trimmed
		res.CursorReset = true
	}
	if cursor > end {
		cursor = end
	}
	res.Text = string(b.data[cursor-b.trimmed:])
	return res
}

// TurnResult is the outcome of a per-player turn read.
type TurnResult struct {
	Text      string
	Found     bool
	Truncated bool
}

// SincePlayerTurn scans for "<player> turn <n>" at the start of a line and
// returns the log from there. If the marker would have existed but was
// trimmed away, the whole buffer is returned with Truncated set. If that
// turn has not happened yet the result is empty with Found false.
//
// happened reports whether the caller knows the turn has occurred (from the
// rewriter's counters); it decides between "trimmed" and "not yet".
func (b *Buffer) SincePlayerTurn(player string, n int, happened bool) TurnResult {
	marker := fmt.Sprintf("%s turn %d", player, n)

	b.mu.Lock()
	defer b.mu.Unlock()

	text := string(b.data)
	if strings.HasPrefix(text, marker) {
		return TurnResult{Text: text, Found: true}
	}
	if i := strings.Index(text, "\n"+marker); i >= 0 {
		return TurnResult{Text: text[i+1:], Found: true}
	}
	if happened {
		// Marker existed but fell off the front of the buffer.
		return TurnResult{Text: text, Found: true, Truncated: true}
	}
	return TurnResult{}
}
