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
	"fmt"
	"strings"
	"time"

	"github.com/kadirpekel/magebridge/pkg/game"
)

// waitQuantum bounds each condition-variable sleep so stall recovery gets a
// chance to run even when no callback arrives.
const waitQuantum = 200 * time.Millisecond

// serverYields maps yield names to the engine's own pass-until actions. The
// engine enforces these itself; the bridge just waits for the next prompt.
var serverYields = map[string]string{
	"end_of_turn":             "PASS_PRIORITY_UNTIL_TURN_END_STEP",
	"next_turn":               "PASS_PRIORITY_UNTIL_NEXT_TURN",
	"next_turn_skip_stack":    "PASS_PRIORITY_UNTIL_NEXT_TURN_SKIP_STACK",
	"next_main":               "PASS_PRIORITY_UNTIL_NEXT_MAIN_PHASE",
	"stack_resolved":          "PASS_PRIORITY_UNTIL_STACK_RESOLVED",
	"my_turn":                 "PASS_PRIORITY_UNTIL_MY_NEXT_TURN",
	"end_step_before_my_turn": "PASS_PRIORITY_UNTIL_END_STEP_BEFORE_MY_NEXT_TURN",
}

// clientSteps are the game steps a client-side yield can auto-pass toward.
var clientSteps = map[string]bool{
	"UPKEEP":            true,
	"DRAW":              true,
	"PRECOMBAT_MAIN":    true,
	"BEGIN_COMBAT":      true,
	"DECLARE_ATTACKERS": true,
	"DECLARE_BLOCKERS":  true,
	"END_COMBAT":        true,
	"POSTCOMBAT_MAIN":   true,
	"END_TURN":          true,
}

func normalizeStep(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"))
}

// Wait blocks until a decision is needed, auto-passing plain priority
// prompts along the way. An empty yield returns as soon as the slot is
// examined; a yield keeps passing until its condition holds.
func (a *Arbitrator) Wait(ctx context.Context, yield string) map[string]any {
	serverAction, isServer := serverYields[yield]
	targetStep := normalizeStep(yield)
	isStep := clientSteps[targetStep]

	if yield != "" && !isServer && !isStep {
		return a.finish(errorResult(codeMissingParam,
			fmt.Sprintf("unknown yield mode %q", yield)))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	waitStart := time.Now()
	startRound := a.rounds.Round()
	actionsPassed := 0
	retried := false
	serverSent := false

	decorate := func(result map[string]any) map[string]any {
		result["actions_passed"] = actionsPassed
		if retried {
			result["retried"] = true
		}
		return a.finishLocked(result)
	}

	for {
		if err := ctx.Err(); err != nil {
			return decorate(map[string]any{"success": true, "stop_reason": "interrupted"})
		}
		if a.isClosed() {
			return decorate(map[string]any{"success": true, "stop_reason": "interrupted"})
		}
		if a.gameOver || a.playerDead {
			return decorate(map[string]any{"success": true, "stop_reason": "game_over"})
		}

		if isServer && !serverSent {
			serverSent = true
			gameID := a.gameID
			if err := a.client.SendPlayerAction(ctx, gameID, serverAction); err != nil {
				a.logger.Error("failed to send yield action", "error", err, "action", serverAction)
			}
		}

		if p := a.pending; p != nil {
			result, done := a.examinePending(ctx, p, isServer, isStep, targetStep, startRound, &actionsPassed)
			if done {
				return decorate(result)
			}
			continue
		}

		if yield == "" {
			reason := "no_action"
			if actionsPassed > 0 {
				reason = "passed"
			}
			return decorate(map[string]any{"success": true, "stop_reason": reason})
		}

		if isStep && a.rounds.Round() > startRound {
			return decorate(map[string]any{
				"success":     true,
				"stop_reason": "step_not_reached",
				"turn":        a.rounds.Round(),
			})
		}

		if a.dispatcher.MaybeRetry(ctx, time.Now(), a.cfg.RetryWindow) {
			retried = true
		}
		a.maybeNudge(ctx, waitStart)

		a.waitForNotify()
	}
}

// examinePending applies the step-1 rules of the wait loop to the pending
// action. Returns (result, true) when the waiter should return, or
// (nil, false) when the pending action was consumed and the loop should
// continue. Caller holds mu.
func (a *Arbitrator) examinePending(ctx context.Context, p *pendingAction, isServer, isStep bool, targetStep string, startRound int, actionsPassed *int) (map[string]any, bool) {
	cb := p.cb

	// Mechanical auto-resolutions that never need the agent.
	switch cb.Kind {
	case game.KindPlayMana, game.KindPlayXMana:
		if paying, ok := payingForObject(cb.Message); ok && a.failedManaCasts[paying] {
			if a.clearPendingIf(p.seq) {
				a.failManaCast(ctx, cb, paying)
			}
			return nil, false
		}

	case game.KindTarget:
		if !cb.Required && len(a.legalTargets(cb)) == 0 {
			if a.clearPendingIf(p.seq) {
				if err := a.dispatcher.SendBoolean(ctx, cb.GameID, false); err != nil {
					a.logger.Error("failed to cancel empty optional target", "error", err)
				}
			}
			return nil, false
		}
	}

	if cb.Kind != game.KindSelect {
		return map[string]any{
			"success":     true,
			"stop_reason": "non_priority_action",
			"action_type": string(cb.Kind),
			"message":     p.prompt,
		}, true
	}

	if len(cb.PossibleAttackers()) > 0 || len(cb.PossibleBlockers()) > 0 {
		result := map[string]any{
			"success":     true,
			"stop_reason": "combat",
		}
		if a.view != nil {
			result["combat_phase"] = a.view.Step
		}
		return result, true
	}

	if a.hasPlayableCards() {
		return map[string]any{
			"success":            true,
			"stop_reason":        "playable_cards",
			"has_playable_cards": true,
		}, true
	}

	// Plain priority prompt. Under a server-side yield the engine already
	// passed for us, so a fresh prompt means the yield target was reached.
	if isServer {
		return map[string]any{"success": true, "stop_reason": "yield_complete"}, true
	}

	if isStep {
		if a.view != nil && normalizeStep(a.view.Step) == targetStep && a.rounds.Round() == startRound {
			return map[string]any{
				"success":     true,
				"stop_reason": "yield_complete",
				"step":        a.view.Step,
			}, true
		}
		if a.rounds.Round() > startRound {
			return map[string]any{
				"success":     true,
				"stop_reason": "step_not_reached",
				"turn":        a.rounds.Round(),
			}, true
		}
	}

	if a.clearPendingIf(p.seq) {
		if err := a.dispatcher.SendBoolean(ctx, cb.GameID, false); err != nil {
			a.logger.Error("failed to send auto-pass", "error", err)
		}
		*actionsPassed++
		a.metrics.IncAutoPass()
	}
	return nil, false
}

// hasPlayableCards reports whether the cached view offers at least one
// object with a non-mana ability that has not already failed to pay this
// turn. Caller holds mu.
func (a *Arbitrator) hasPlayableCards() bool {
	if a.view == nil {
		return false
	}
	for id, entry := range a.view.Playable {
		if a.failedManaCasts[id] {
			continue
		}
		if entry.HasNonManaAbility() {
			return true
		}
	}
	return false
}

// maybeNudge sends one speculative pass priority when the engine has gone
// quiet: ~10 s without an actionable callback given transport evidence
// since wait started, or ~60 s without any evidence at all. Caller holds
// mu.
func (a *Arbitrator) maybeNudge(ctx context.Context, waitStart time.Time) {
	if a.pending != nil || a.dispatcher.HasTracked() {
		return
	}
	now := time.Now()
	if now.Sub(a.lastNudgeAt) < a.cfg.StallNudge {
		return
	}

	quiet := now.Sub(a.lastActionableAt)
	evidence := a.lastCallbackAt.After(waitStart)

	if (evidence && quiet > a.cfg.StallNudge) || quiet > a.cfg.StallNudgeFallback {
		a.lastNudgeAt = now
		a.logger.Warn("nudging stalled engine with a speculative pass",
			"quiet", quiet, "evidence", evidence)
		if err := a.client.SendBoolean(ctx, a.gameID, false); err != nil {
			a.logger.Error("failed to send stall nudge", "error", err)
		}
		a.metrics.IncStallNudge()
	}
}

// waitForNotify blocks on the condition variable for at most one quantum.
// Caller holds mu; the lock is released while waiting.
func (a *Arbitrator) waitForNotify() {
	timer := time.AfterFunc(waitQuantum, a.cond.Broadcast)
	a.cond.Wait()
	timer.Stop()
}

// WaitAndChoices is Wait followed by GetChoices when a pending action
// survives the wait, saving agents a round trip.
func (a *Arbitrator) WaitAndChoices(ctx context.Context, yield string) map[string]any {
	result := a.Wait(ctx, yield)

	a.mu.Lock()
	hasPending := a.pending != nil
	a.mu.Unlock()

	if !hasPending {
		return result
	}

	choices := a.GetChoices(ctx)
	for k, v := range result {
		if _, taken := choices[k]; !taken {
			choices[k] = v
		}
	}
	return choices
}
