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
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/kadirpekel/magebridge/pkg/game"
)

// PlanStepKind is tap or pool.
type PlanStepKind string

const (
	PlanTap  PlanStepKind = "tap"
	PlanPool PlanStepKind = "pool"
)

// PlanStep is one instruction of a mana plan.
type PlanStep struct {
	Kind PlanStepKind
	ID   uuid.UUID     // tap target
	Mana game.ManaType // pool channel
}

// ManaPlan is an agent-supplied ordered list of tap/pool instructions,
// consumed head-first as mana callbacks arrive. It belongs to the
// arbitrator, not the pending action: the engine sends a fresh callback
// per mana pip and the plan must outlive each of them.
type ManaPlan struct {
	steps []PlanStep
}

// ParseManaPlan decodes the agent's mana_plan parameter. Accepted forms:
// a JSON string like `[{"tap":"<uuid>"},{"pool":"RED"}]`, or the already
// decoded []any equivalent. An empty string yields a nil plan.
func ParseManaPlan(raw any) (*ManaPlan, error) {
	var entries []map[string]any

	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		if err := json.Unmarshal([]byte(v), &entries); err != nil {
			return nil, fmt.Errorf("mana_plan is not a JSON list of tap/pool entries: %w", err)
		}
	case []any:
		for i, e := range v {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("mana_plan entry %d is not an object", i)
			}
			entries = append(entries, m)
		}
	default:
		return nil, fmt.Errorf("mana_plan must be a JSON string or list")
	}

	plan := &ManaPlan{}
	for i, e := range entries {
		if raw, ok := e["tap"]; ok {
			s, _ := raw.(string)
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("mana_plan entry %d: bad tap id %q", i, s)
			}
			plan.steps = append(plan.steps, PlanStep{Kind: PlanTap, ID: id})
			continue
		}
		if raw, ok := e["pool"]; ok {
			s, _ := raw.(string)
			mana, ok := game.ParseManaType(s)
			if !ok {
				return nil, fmt.Errorf("mana_plan entry %d: unknown mana type %q", i, s)
			}
			plan.steps = append(plan.steps, PlanStep{Kind: PlanPool, Mana: mana})
			continue
		}
		return nil, fmt.Errorf("mana_plan entry %d has neither tap nor pool", i)
	}
	if len(plan.steps) == 0 {
		return nil, nil
	}
	return plan, nil
}

// Pop removes and returns the head step.
func (p *ManaPlan) Pop() (PlanStep, bool) {
	if p == nil || len(p.steps) == 0 {
		return PlanStep{}, false
	}
	step := p.steps[0]
	p.steps = p.steps[1:]
	return step, true
}

// Len returns the remaining step count.
func (p *ManaPlan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.steps)
}

var payingForPattern = regexp.MustCompile(`object_id='([0-9a-fA-F-]{36})'`)

// payingForObject extracts the object being paid for from a mana prompt.
func payingForObject(prompt string) (uuid.UUID, bool) {
	m := payingForPattern.FindStringSubmatch(prompt)
	if m == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(m[1])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// freeManaAbility reports whether any of the object's mana abilities can be
// activated without paying mana itself: the activation cost (the part
// before the colon) must be pip-free, i.e. {T} with no {N}/{X} prefix.
// An ability like "{1}, {T}: Add {B}{R}" would trigger a recursive payment
// prompt, so it is rejected.
func freeManaAbility(entry game.PlayableEntry) bool {
	for _, ability := range entry.ManaAbilities {
		cost, _, found := strings.Cut(ability, ":")
		if !found {
			continue
		}
		if genericPipPattern.MatchString(cost) {
			continue
		}
		if strings.Contains(cost, "{T}") {
			return true
		}
	}
	return false
}

var genericPipPattern = regexp.MustCompile(`\{[0-9X]+\}`)

// handleManaCallback is AutoMana: invoked on every PLAY_MANA / PLAY_XMANA
// arrival, under the arbitrator lock. Returns true when the callback was
// resolved here; false hands it to the agent as the pending action.
func (a *Arbitrator) handleManaCallback(ctx context.Context, cb *game.Callback) bool {
	payingFor, _ := payingForObject(cb.Message)
	a.lastManaPrompt = cb.Message
	a.payingFor = payingFor

	// Track consecutive pool sends per paying-for spell.
	if payingFor != a.poolManaTarget {
		a.poolManaTarget = payingFor
		a.poolManaAttempts = 0
	}

	if a.plan != nil {
		return a.consumePlanStep(ctx, cb, payingFor)
	}

	if a.autoTapSource(ctx, cb, payingFor) {
		return true
	}

	if a.poolFallback(ctx, cb, payingFor) {
		return true
	}

	// The prompt is generic and several pool colors are open: the agent
	// has to pick.
	if a.poolChoicesFor(cb) != nil {
		a.metrics.ObserveAutoMana("decline")
		return false
	}

	a.failManaCast(ctx, cb, payingFor)
	return true
}

// consumePlanStep pops and executes the plan head for one mana callback.
func (a *Arbitrator) consumePlanStep(ctx context.Context, cb *game.Callback, payingFor uuid.UUID) bool {
	step, ok := a.plan.Pop()
	if !ok {
		// Plan exhausted with cost remaining.
		a.logger.Warn("mana plan exhausted before cost was paid", "paying_for", payingFor)
		a.failManaCast(ctx, cb, payingFor)
		return true
	}

	switch step.Kind {
	case PlanTap:
		entry, playable := a.playableEntry(step.ID)
		if !playable || step.ID == payingFor || a.failedManaCasts[step.ID] {
			a.logger.Warn("mana plan references unusable source, cancelling",
				"source", step.ID, "paying_for", payingFor)
			a.failManaCast(ctx, cb, payingFor)
			return true
		}
		_ = entry
		a.poolManaAttempts = 0
		if err := a.dispatcher.SendUUID(ctx, cb.GameID, step.ID); err != nil {
			a.logger.Error("failed to send plan tap", "error", err)
		}
		a.metrics.ObserveAutoMana("plan")
		return true

	case PlanPool:
		if err := a.dispatcher.SendManaType(ctx, cb.GameID, a.playerID, step.Mana); err != nil {
			a.logger.Error("failed to send plan pool mana", "error", err)
		}
		a.metrics.ObserveAutoMana("plan")
		return true
	}

	a.failManaCast(ctx, cb, payingFor)
	return true
}

// autoTapSource is the naive no-plan heuristic: tap the first playable
// object with a free mana ability, skipping the spell being paid for and
// anything that already failed this turn.
func (a *Arbitrator) autoTapSource(ctx context.Context, cb *game.Callback, payingFor uuid.UUID) bool {
	if cb.View == nil {
		return false
	}
	for _, id := range sortedPlayableIDs(cb.View.Playable) {
		if id == payingFor || a.failedManaCasts[id] {
			continue
		}
		if !freeManaAbility(cb.View.Playable[id]) {
			continue
		}
		a.poolManaAttempts = 0
		a.poolManaTarget = payingFor
		if err := a.dispatcher.SendUUID(ctx, cb.GameID, id); err != nil {
			a.logger.Error("failed to send auto-tap", "error", err)
		}
		a.metrics.ObserveAutoMana("tap")
		return true
	}
	return false
}

// poolFallback pays from the mana pool when the choice is forced: exactly
// one pool type is open, or the prompt names explicit symbols. Consecutive
// pool payments for the same spell are capped to break engine loops where
// pool mana is offered but never accepted.
func (a *Arbitrator) poolFallback(ctx context.Context, cb *game.Callback, payingFor uuid.UUID) bool {
	choices := a.poolChoicesFor(cb)
	if len(choices) == 0 {
		return false
	}

	explicit := len(game.PromptManaTypes(cb.Message)) > 0
	if len(choices) > 1 && !explicit {
		return false
	}

	if a.poolManaAttempts >= a.cfg.PoolManaAttemptCap {
		a.logger.Warn("pool mana loop detected, cancelling spell",
			"paying_for", payingFor, "attempts", a.poolManaAttempts)
		a.failManaCast(ctx, cb, payingFor)
		return true
	}

	a.poolManaAttempts++
	if err := a.dispatcher.SendManaType(ctx, cb.GameID, a.playerID, choices[0]); err != nil {
		a.logger.Error("failed to send pool mana", "error", err)
	}
	a.metrics.ObserveAutoMana("pool")
	return true
}

// poolChoicesFor computes the pool mana types applicable to this prompt:
// explicit symbols when the prompt names them, otherwise every nonzero
// channel in canonical order.
func (a *Arbitrator) poolChoicesFor(cb *game.Callback) []game.ManaType {
	pool := a.ownManaPool(cb.View)
	if pool.Total() == 0 {
		return nil
	}

	if explicit := game.PromptManaTypes(cb.Message); len(explicit) > 0 {
		var out []game.ManaType
		for _, t := range explicit {
			if pool.Get(t) > 0 {
				out = append(out, t)
			}
		}
		return out
	}
	return pool.Nonzero()
}

// failManaCast abandons payment for a spell: remember the object so it is
// not re-offered this turn, drop any plan, leave a synthetic chat line,
// and cancel.
func (a *Arbitrator) failManaCast(ctx context.Context, cb *game.Callback, payingFor uuid.UUID) {
	if payingFor != uuid.Nil {
		a.failedManaCasts[payingFor] = true
	}
	a.plan = nil
	a.clearManaPayment()
	a.chat.add(game.ChatMessage{
		Player: a.playerName,
		Text:   "Spell cancelled — not enough mana",
		Type:   "system",
	})
	if err := a.dispatcher.SendBoolean(ctx, cb.GameID, false); err != nil {
		a.logger.Error("failed to send mana cancel", "error", err)
	}
	a.metrics.ObserveAutoMana("cancel")
}
