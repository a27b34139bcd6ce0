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
	"encoding/json"
	"time"
)

// GetPending reports whether a pending action exists and what it is,
// without building choices.
func (a *Arbitrator) GetPending() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.pending
	if p == nil {
		return a.finishLocked(map[string]any{
			"success":        true,
			"action_pending": false,
		})
	}
	return a.finishLocked(map[string]any{
		"success":        true,
		"action_pending": true,
		"action_type":    string(p.cb.Kind),
		"message":        p.prompt,
		"age_seconds":    time.Since(p.at).Seconds(),
	})
}

// GetGameState snapshots the cached game view as a structured map. The
// cursor bumps only when the canonicalized state signature changes, so
// polling agents can cheaply detect "nothing happened".
func (a *Arbitrator) GetGameState(cursor *int64) map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.view == nil {
		return a.finishLocked(map[string]any{
			"success": true,
			"state":   nil,
			"cursor":  a.stateCursor,
		})
	}

	state := a.buildStateMap()

	// Go maps marshal with sorted keys, which makes the encoding
	// canonical enough to serve as a change signature.
	sig, err := json.Marshal(state)
	if err != nil {
		a.logger.Error("failed to canonicalize game state", "error", err)
		return a.finishLocked(errorResult(codeInternalError, "failed to encode game state"))
	}
	if string(sig) != a.stateSignature {
		a.stateSignature = string(sig)
		a.stateCursor++
	}

	if cursor != nil && *cursor == a.stateCursor {
		return a.finishLocked(map[string]any{
			"success":   true,
			"unchanged": true,
			"cursor":    a.stateCursor,
		})
	}

	return a.finishLocked(map[string]any{
		"success": true,
		"state":   state,
		"cursor":  a.stateCursor,
	})
}

// buildStateMap round-trips the view through JSON and layers on the
// bridge's derived data: the per-player round, stack ownership, and land
// drops. Caller holds mu.
func (a *Arbitrator) buildStateMap() map[string]any {
	var state map[string]any
	raw, err := json.Marshal(a.view)
	if err != nil || json.Unmarshal(raw, &state) != nil {
		return map[string]any{}
	}

	state["round"] = a.rounds.Round()
	state["you"] = a.playerName
	if a.view.ActivePlayer == a.playerName {
		state["land_drops_used"] = a.landsPlayedThisTurn
	}

	if items, ok := state["stack"].([]any); ok {
		for _, raw := range items {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			for _, s := range a.view.Stack {
				if s.ID.String() == item["id"] {
					if owner, ok := a.castOwners[s.ID]; ok {
						item["owner"] = owner
					}
				}
			}
		}
	}

	return state
}
