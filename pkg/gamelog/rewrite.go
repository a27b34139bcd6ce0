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
	"fmt"
	"regexp"
	"sync"
)

var turnMarkerPattern = regexp.MustCompile(`^TURN\s+\d+\s*(.*)$`)

// TurnRewriter rewrites the engine's global "TURN k" markers into
// per-player markers ("<active-player> turn <n>") so readers can address
// the log by a player's own turn count. The global number is discarded;
// any life-total parenthetical on the marker line is kept.
type TurnRewriter struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewTurnRewriter creates an empty rewriter.
func NewTurnRewriter() *TurnRewriter {
	return &TurnRewriter{counts: make(map[string]int)}
}

// Rewrite transforms a turn-marker line for the given active player and
// returns it together with that player's new turn count. Non-marker lines
// pass through unchanged with ok false.
func (r *TurnRewriter) Rewrite(line, activePlayer string) (string, int, bool) {
	m := turnMarkerPattern.FindStringSubmatch(line)
	if m == nil || activePlayer == "" {
		return line, 0, false
	}

	r.mu.Lock()
	r.counts[activePlayer]++
	n := r.counts[activePlayer]
	r.mu.Unlock()

	rest := m[1]
	if rest != "" {
		return fmt.Sprintf("%s turn %d %s", activePlayer, n, rest), n, true
	}
	return fmt.Sprintf("%s turn %d", activePlayer, n), n, true
}

// Count returns the named player's turn count so far.
func (r *TurnRewriter) Count(player string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[player]
}

// Reset clears all counters for a new game.
func (r *TurnRewriter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = make(map[string]int)
}
