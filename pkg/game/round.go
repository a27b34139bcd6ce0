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

package game

// RoundTracker derives a monotonic game round from the engine's turn
// numbers. The engine may briefly report a stale turn on out-of-order
// views; the round never decreases.
type RoundTracker struct {
	round int
}

// Observe folds one view into the tracker and reports whether the round
// advanced.
func (r *RoundTracker) Observe(v *View) bool {
	if v == nil || v.Turn <= r.round {
		return false
	}
	r.round = v.Turn
	return true
}

// Round returns the current round, 0 before the first view.
func (r *RoundTracker) Round() int {
	return r.round
}

// Reset clears the tracker for a new game.
func (r *RoundTracker) Reset() {
	r.round = 0
}
