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

package gamelog

import (
	"strings"
	"testing"
)

func TestBufferAppendAndTail(t *testing.T) {
	b := NewBuffer(0)
	b.Append("first line")
	b.Append("second line\n")

	got := b.Tail(0)
	want := "first line\nsecond line\n"
	if got != want {
		t.Errorf("Tail() = %q, want %q", got, want)
	}

	if tail := b.Tail(12); tail != "second line\n" {
		t.Errorf("Tail(12) = %q, want %q", tail, "second line\n")
	}
}

func TestBufferTrimsAtLineBoundary(t *testing.T) {
	b := NewBuffer(30)

	appended := 0
	for i := 0; i < 10; i++ {
		line := "line number x"
		b.Append(line)
		appended += len(line) + 1
	}

	if b.Len() > 30 {
		t.Errorf("Len() = %d exceeds cap 30", b.Len())
	}
	if got := b.Tail(0); strings.HasPrefix(got, "ine") || strings.HasPrefix(got, "ne") {
		t.Errorf("buffer starts mid-line: %q", got)
	}

	// The trim accounting must never lose a byte.
	if total := int64(b.Len()) + b.TrimmedBytes(); total != int64(appended) {
		t.Errorf("Len()+TrimmedBytes() = %d, want %d", total, appended)
	}
}

func TestBufferSince(t *testing.T) {
	b := NewBuffer(0)
	b.Append("alpha")
	mid := b.TrimmedBytes() + int64(b.Len())
	b.Append("beta")

	res := b.Since(mid)
	if res.Text != "beta\n" {
		t.Errorf("Since(mid).Text = %q, want %q", res.Text, "beta\n")
	}
	if res.CursorReset {
		t.Error("unexpected CursorReset")
	}
	if res.Cursor != mid+5 {
		t.Errorf("Since(mid).Cursor = %d, want %d", res.Cursor, mid+5)
	}

	// Reading again from the returned cursor yields nothing new.
	if again := b.Since(res.Cursor); again.Text != "" {
		t.Errorf("Since(end).Text = %q, want empty", again.Text)
	}
}

func TestBufferSinceClampsStaleCursor(t *testing.T) {
	b := NewBuffer(20)
	for i := 0; i < 10; i++ {
		b.Append("0123456789")
	}
	if b.TrimmedBytes() == 0 {
		t.Fatal("expected trimming to have happened")
	}

	res := b.Since(0)
	if !res.CursorReset {
		t.Error("expected CursorReset for a cursor older than retention")
	}
	if res.Text != b.Tail(0) {
		t.Errorf("clamped read = %q, want whole buffer %q", res.Text, b.Tail(0))
	}
}

func TestBufferSincePlayerTurn(t *testing.T) {
	b := NewBuffer(0)
	b.Append("Alice turn 1")
	b.Append("Alice plays Forest")
	b.Append("Bob turn 1")
	b.Append("Alice turn 2 (20 life)")
	b.Append("Alice casts Grizzly Bears")

	tests := []struct {
		name     string
		player   string
		n        int
		happened bool
		found    bool
		first    string
	}{
		{"first turn", "Alice", 1, true, true, "Alice turn 1"},
		{"second turn keeps parenthetical", "Alice", 2, true, true, "Alice turn 2 (20 life)"},
		{"other player", "Bob", 1, true, true, "Bob turn 1"},
		{"not happened yet", "Alice", 3, false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := b.SincePlayerTurn(tt.player, tt.n, tt.happened)
			if res.Found != tt.found {
				t.Fatalf("Found = %v, want %v", res.Found, tt.found)
			}
			if tt.found && !strings.HasPrefix(res.Text, tt.first) {
				t.Errorf("Text starts with %q, want prefix %q", res.Text[:min(len(res.Text), 40)], tt.first)
			}
		})
	}
}

func TestBufferSincePlayerTurnTrimmed(t *testing.T) {
	b := NewBuffer(40)
	b.Append("Alice turn 1")
	for i := 0; i < 10; i++ {
		b.Append("some long filler log line here")
	}

	res := b.SincePlayerTurn("Alice", 1, true)
	if !res.Found || !res.Truncated {
		t.Errorf("Found=%v Truncated=%v, want both true after the marker fell off", res.Found, res.Truncated)
	}
}
