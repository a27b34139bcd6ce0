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

	"github.com/google/uuid"

	"github.com/kadirpekel/magebridge/pkg/game"
)

// ChooseParams is the union parameter set of the choose tool. Real agents
// send every parameter they know; dispatch picks the most specific one and
// falls through gracefully.
type ChooseParams struct {
	Index     *int
	ID        string
	Answer    *bool
	Amount    *int
	Amounts   []int
	Pile      *int
	Text      string
	ManaPlan  any
	AutoTap   *bool
	Attackers []int
	Blockers  []int
}

// Choose resolves the pending action with the agent's parameters.
func (a *Arbitrator) Choose(ctx context.Context, params ChooseParams) map[string]any {
	a.applyActionDelay()

	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.pending
	if p == nil {
		return a.finishLocked(errorResult(codeNoPendingAction, "no action is pending"))
	}

	a.interactionsThisTurn++
	if a.interactionsThisTurn > a.cfg.MaxInteractionsPerTurn {
		a.logger.Warn("per-turn interaction cap exceeded, auto-passing",
			"interactions", a.interactionsThisTurn, "cap", a.cfg.MaxInteractionsPerTurn)
		result := a.defaultActionLocked(ctx)
		result["action_taken"] = "auto_passed_loop_detected"
		result["warning"] = "interaction cap exceeded for this turn; a default action was taken"
		return a.finishLocked(result)
	}

	if params.ManaPlan != nil && params.AutoTap != nil && *params.AutoTap {
		return a.finishLocked(errorResult(codeInvalidChoice,
			"mana_plan and auto_tap are mutually exclusive"))
	}

	a.ensureSnapshot(p)

	result := a.dispatchChoose(ctx, p, params)
	return a.finishLocked(result)
}

// ensureSnapshot builds the choice snapshot for p if the agent skipped
// get_choices. Caller holds mu.
func (a *Arbitrator) ensureSnapshot(p *pendingAction) {
	if a.snapshot != nil && a.snapshot.seq == p.seq {
		return
	}
	_, snap := a.buildChoices(p)
	snap.seq = p.seq
	a.snapshot = snap
}

// attachChoices adds the current choices payload to a retryable error so
// the agent can self-correct without another round trip. Caller holds mu.
func (a *Arbitrator) attachChoices(result map[string]any, p *pendingAction) map[string]any {
	payload, _ := a.buildChoices(p)
	result["choices"] = payload["choices"]
	result["response_type"] = payload["response_type"]
	return result
}

// resolveIndex picks the most specific index parameter: index over id.
// Returns the index and whether one was supplied at all.
func (a *Arbitrator) resolveIndex(params ChooseParams) (int, bool) {
	if params.Index != nil {
		return *params.Index, true
	}
	if params.ID != "" {
		if id, err := uuid.Parse(params.ID); err == nil {
			if i, ok := a.snapshot.indexOfObject(id); ok {
				return i, true
			}
		}
		return -1, true
	}
	return 0, false
}

func (a *Arbitrator) dispatchChoose(ctx context.Context, p *pendingAction, params ChooseParams) map[string]any {
	cb := p.cb

	switch cb.Kind {
	case game.KindAsk:
		return a.chooseAsk(ctx, p, params)
	case game.KindSelect:
		return a.chooseSelect(ctx, p, params)
	case game.KindPlayMana, game.KindPlayXMana:
		return a.chooseMana(ctx, p, params)
	case game.KindTarget:
		return a.chooseTarget(ctx, p, params)
	case game.KindChooseAbility:
		return a.chooseAbility(ctx, p, params)
	case game.KindChooseChoice:
		return a.chooseChoice(ctx, p, params)
	case game.KindChoosePile:
		return a.choosePile(ctx, p, params)
	case game.KindGetAmount:
		return a.chooseAmount(ctx, p, params)
	case game.KindGetMultiAmount:
		return a.chooseAmounts(ctx, p, params)
	}

	return errorResult(codeUnknownActionType,
		fmt.Sprintf("no handler for pending action type %s", cb.Kind))
}

func (a *Arbitrator) chooseAsk(ctx context.Context, p *pendingAction, params ChooseParams) map[string]any {
	if params.Answer == nil {
		return errorResult(codeMissingParam, "ASK requires the answer parameter")
	}
	if params.Index != nil {
		a.logger.Warn("ignoring index on an ASK prompt", "index", *params.Index)
	}
	if !a.clearPendingIf(p.seq) {
		return errorResult(codeNoPendingAction, "the pending action was superseded")
	}
	if err := a.dispatcher.SendBoolean(ctx, p.cb.GameID, *params.Answer); err != nil {
		a.logger.Error("failed to send answer", "error", err)
	}
	return map[string]any{
		"success":      true,
		"action_taken": "answered",
		"answer":       *params.Answer,
	}
}

func (a *Arbitrator) chooseSelect(ctx context.Context, p *pendingAction, params ChooseParams) map[string]any {
	if len(params.Attackers) > 0 || len(params.Blockers) > 0 {
		return a.chooseCombatBatch(ctx, p, params)
	}

	idx, supplied := a.resolveIndex(params)
	if supplied {
		ref, ok := a.snapshot.ref(idx)
		if !ok {
			// Agents that always send every parameter land here with a
			// boolean fallback available; honor it instead of failing.
			if params.Answer != nil {
				a.logger.Warn("index out of range on SELECT, falling through to answer",
					"index", idx, "count", a.snapshot.Len())
				return a.selectBoolean(ctx, p, *params.Answer)
			}
			return a.attachChoices(errorResult(codeIndexOutOfRange,
				fmt.Sprintf("index %d not in [0,%d)", idx, a.snapshot.Len())), p)
		}

		if ref.sentinel == sentinelAllAttack {
			if !a.clearPendingIf(p.seq) {
				return errorResult(codeNoPendingAction, "the pending action was superseded")
			}
			if err := a.dispatcher.SendString(ctx, p.cb.GameID, sentinelAllAttack); err != nil {
				a.logger.Error("failed to send all-attack", "error", err)
			}
			return map[string]any{"success": true, "action_taken": "all_attack"}
		}

		// Store the mana plan before the object response goes out, so
		// the PLAY_MANA callbacks that follow can consume it.
		if params.ManaPlan != nil {
			plan, err := ParseManaPlan(params.ManaPlan)
			if err != nil {
				return errorResult(codeInvalidChoice, err.Error())
			}
			a.plan = plan
		}

		if !a.clearPendingIf(p.seq) {
			return errorResult(codeNoPendingAction, "the pending action was superseded")
		}
		if err := a.dispatcher.SendUUID(ctx, p.cb.GameID, ref.objectID); err != nil {
			a.logger.Error("failed to send selection", "error", err)
		}
		result := map[string]any{
			"success":      true,
			"action_taken": "selected",
			"name":         ref.desc,
		}
		if a.plan.Len() > 0 {
			result["mana_plan_steps"] = a.plan.Len()
		}
		return result
	}

	if params.Answer != nil {
		return a.selectBoolean(ctx, p, *params.Answer)
	}
	return errorResult(codeMissingParam, "SELECT requires index, id, or answer")
}

// selectBoolean resolves a SELECT by boolean: false passes priority, true
// confirms (combat and similar confirmation prompts).
func (a *Arbitrator) selectBoolean(ctx context.Context, p *pendingAction, answer bool) map[string]any {
	if !a.clearPendingIf(p.seq) {
		return errorResult(codeNoPendingAction, "the pending action was superseded")
	}
	if err := a.dispatcher.SendBoolean(ctx, p.cb.GameID, answer); err != nil {
		a.logger.Error("failed to send select boolean", "error", err)
	}
	taken := "passed_priority"
	if answer {
		taken = "confirmed"
	}
	return map[string]any{"success": true, "action_taken": taken}
}

// chooseCombatBatch declares attackers or blockers from an index list. The
// first is sent now; the rest are queued and consumed as the engine
// re-prompts, relying on the engine's own enumeration end.
func (a *Arbitrator) chooseCombatBatch(ctx context.Context, p *pendingAction, params ChooseParams) map[string]any {
	indexes := params.Attackers
	role := "attackers"
	if len(indexes) == 0 {
		indexes = params.Blockers
		role = "blockers"
	}

	var ids []uuid.UUID
	for _, idx := range indexes {
		ref, ok := a.snapshot.ref(idx)
		if !ok || ref.objectID == uuid.Nil {
			return a.attachChoices(errorResult(codeIndexOutOfRange,
				fmt.Sprintf("%s index %d not in [0,%d)", role, idx, a.snapshot.Len())), p)
		}
		ids = append(ids, ref.objectID)
	}
	if len(ids) == 0 {
		return errorResult(codeMissingParam, "empty "+role+" list")
	}

	if !a.clearPendingIf(p.seq) {
		return errorResult(codeNoPendingAction, "the pending action was superseded")
	}
	a.queuedCombat = ids[1:]
	if err := a.dispatcher.SendUUID(ctx, p.cb.GameID, ids[0]); err != nil {
		a.logger.Error("failed to send combat selection", "error", err)
	}
	return map[string]any{
		"success":      true,
		"action_taken": "declared_" + role,
		"declared":     len(ids),
	}
}

func (a *Arbitrator) chooseMana(ctx context.Context, p *pendingAction, params ChooseParams) map[string]any {
	payingFor, _ := payingForObject(p.cb.Message)

	cancel := func() map[string]any {
		if !a.clearPendingIf(p.seq) {
			return errorResult(codeNoPendingAction, "the pending action was superseded")
		}
		a.failManaCast(ctx, p.cb, payingFor)
		return map[string]any{"success": true, "action_taken": "cancelled_spell"}
	}

	if params.AutoTap != nil && *params.AutoTap {
		if !a.clearPendingIf(p.seq) {
			return errorResult(codeNoPendingAction, "the pending action was superseded")
		}
		if a.autoTapSource(ctx, p.cb, payingFor) {
			return map[string]any{"success": true, "action_taken": "auto_tapped"}
		}
		if a.poolFallback(ctx, p.cb, payingFor) {
			return map[string]any{"success": true, "action_taken": "paid_from_pool"}
		}
		a.failManaCast(ctx, p.cb, payingFor)
		return map[string]any{"success": true, "action_taken": "cancelled_spell"}
	}

	idx, supplied := a.resolveIndex(params)
	if supplied {
		ref, ok := a.snapshot.ref(idx)
		if !ok {
			if params.Answer != nil && !*params.Answer {
				a.logger.Warn("index out of range on mana prompt, falling through to cancel",
					"index", idx)
				return cancel()
			}
			return a.attachChoices(errorResult(codeIndexOutOfRange,
				fmt.Sprintf("index %d not in [0,%d)", idx, a.snapshot.Len())), p)
		}
		if !a.clearPendingIf(p.seq) {
			return errorResult(codeNoPendingAction, "the pending action was superseded")
		}
		if ref.objectID != uuid.Nil {
			if err := a.dispatcher.SendUUID(ctx, p.cb.GameID, ref.objectID); err != nil {
				a.logger.Error("failed to send mana source", "error", err)
			}
			return map[string]any{"success": true, "action_taken": "tapped_source", "name": ref.desc}
		}
		if err := a.dispatcher.SendManaType(ctx, p.cb.GameID, a.playerID, ref.mana); err != nil {
			a.logger.Error("failed to send pool mana", "error", err)
		}
		return map[string]any{"success": true, "action_taken": "paid_from_pool", "mana": string(ref.mana)}
	}

	if params.Answer != nil {
		if !*params.Answer {
			return cancel()
		}
		// Confirming with no mana source to offer is a cancel in
		// disguise; the engine would loop otherwise.
		if a.snapshot.Len() == 0 {
			return cancel()
		}
		return errorResult(codeMissingParam, "mana payment needs an index; answer=true is not a payment")
	}

	return errorResult(codeMissingParam, "PLAY_MANA requires index, auto_tap, or answer=false")
}

func (a *Arbitrator) chooseTarget(ctx context.Context, p *pendingAction, params ChooseParams) map[string]any {
	legal := a.legalTargets(p.cb)

	if p.cb.Required && len(legal) == 0 {
		// Nothing legal to pick; cancel rather than loop forever.
		if !a.clearPendingIf(p.seq) {
			return errorResult(codeNoPendingAction, "the pending action was superseded")
		}
		if err := a.dispatcher.SendBoolean(ctx, p.cb.GameID, false); err != nil {
			a.logger.Error("failed to cancel empty target", "error", err)
		}
		return map[string]any{"success": true, "action_taken": "cancelled_no_targets"}
	}

	idx, supplied := a.resolveIndex(params)
	ref, ok := a.snapshot.ref(idx)

	if !supplied || !ok {
		if p.cb.Required {
			// The engine rejects cancels on required targets; take the
			// first legal one instead of bouncing the agent.
			if supplied {
				a.logger.Warn("invalid index on required target, auto-selecting first",
					"index", idx)
			}
			if !a.clearPendingIf(p.seq) {
				return errorResult(codeNoPendingAction, "the pending action was superseded")
			}
			if err := a.dispatcher.SendUUID(ctx, p.cb.GameID, legal[0]); err != nil {
				a.logger.Error("failed to send target", "error", err)
			}
			return map[string]any{"success": true, "action_taken": "auto_selected_first_target"}
		}
		if !supplied {
			return errorResult(codeMissingParam, "TARGET requires index or id")
		}
		return a.attachChoices(errorResult(codeIndexOutOfRange,
			fmt.Sprintf("index %d not in [0,%d)", idx, a.snapshot.Len())), p)
	}

	if !a.clearPendingIf(p.seq) {
		return errorResult(codeNoPendingAction, "the pending action was superseded")
	}
	if err := a.dispatcher.SendUUID(ctx, p.cb.GameID, ref.objectID); err != nil {
		a.logger.Error("failed to send target", "error", err)
	}
	return map[string]any{"success": true, "action_taken": "targeted", "name": ref.desc}
}

func (a *Arbitrator) chooseAbility(ctx context.Context, p *pendingAction, params ChooseParams) map[string]any {
	idx, supplied := a.resolveIndex(params)
	if !supplied {
		return errorResult(codeMissingParam, "CHOOSE_ABILITY requires index")
	}
	ref, ok := a.snapshot.ref(idx)
	if !ok {
		return a.attachChoices(errorResult(codeIndexOutOfRange,
			fmt.Sprintf("index %d not in [0,%d)", idx, a.snapshot.Len())), p)
	}
	if !a.clearPendingIf(p.seq) {
		return errorResult(codeNoPendingAction, "the pending action was superseded")
	}
	if err := a.dispatcher.SendString(ctx, p.cb.GameID, ref.key); err != nil {
		a.logger.Error("failed to send ability choice", "error", err)
	}
	return map[string]any{"success": true, "action_taken": "chose_ability", "description": ref.desc}
}

func (a *Arbitrator) chooseChoice(ctx context.Context, p *pendingAction, params ChooseParams) map[string]any {
	var ref choiceRef
	found := false

	if params.Text != "" {
		want := strings.ToLower(params.Text)
		for _, r := range a.snapshot.refs {
			if strings.ToLower(r.key) == want || strings.ToLower(r.desc) == want {
				ref, found = r, true
				break
			}
		}
		if !found {
			// The filtered view may hide the value; any choice the
			// engine offered is still legal by text.
			for _, v := range p.cb.Choices {
				if strings.ToLower(v) == want {
					ref, found = choiceRef{key: v, desc: v}, true
					break
				}
			}
		}
		if !found {
			// Key-labelled sets match by key or label; the key is
			// what the engine expects back.
			for k, label := range p.cb.Keys {
				if strings.ToLower(k) == want || strings.ToLower(label) == want {
					ref, found = choiceRef{key: k, desc: label}, true
					break
				}
			}
		}
		if !found {
			return a.attachChoices(errorResult(codeInvalidChoice,
				fmt.Sprintf("%q does not match any choice", params.Text)), p)
		}
	} else {
		idx, supplied := a.resolveIndex(params)
		if !supplied {
			return errorResult(codeMissingParam, "CHOOSE_CHOICE requires text or index")
		}
		var ok bool
		ref, ok = a.snapshot.ref(idx)
		if !ok {
			return a.attachChoices(errorResult(codeIndexOutOfRange,
				fmt.Sprintf("index %d not in [0,%d)", idx, a.snapshot.Len())), p)
		}
		found = true
	}

	if !a.clearPendingIf(p.seq) {
		return errorResult(codeNoPendingAction, "the pending action was superseded")
	}
	if err := a.dispatcher.SendString(ctx, p.cb.GameID, ref.key); err != nil {
		a.logger.Error("failed to send choice", "error", err)
	}
	return map[string]any{"success": true, "action_taken": "chose", "value": ref.key}
}

func (a *Arbitrator) choosePile(ctx context.Context, p *pendingAction, params ChooseParams) map[string]any {
	if params.Pile == nil || (*params.Pile != 1 && *params.Pile != 2) {
		return errorResult(codeMissingParam, "CHOOSE_PILE requires pile 1 or 2")
	}
	if !a.clearPendingIf(p.seq) {
		return errorResult(codeNoPendingAction, "the pending action was superseded")
	}
	if err := a.dispatcher.SendBoolean(ctx, p.cb.GameID, *params.Pile == 1); err != nil {
		a.logger.Error("failed to send pile choice", "error", err)
	}
	return map[string]any{"success": true, "action_taken": "chose_pile", "pile": *params.Pile}
}

func (a *Arbitrator) chooseAmount(ctx context.Context, p *pendingAction, params ChooseParams) map[string]any {
	if params.Amount == nil {
		return errorResult(codeMissingParam, "GET_AMOUNT requires amount")
	}
	amount := clamp(*params.Amount, p.cb.Min, p.cb.Max)
	if !a.clearPendingIf(p.seq) {
		return errorResult(codeNoPendingAction, "the pending action was superseded")
	}
	if err := a.dispatcher.SendInteger(ctx, p.cb.GameID, amount); err != nil {
		a.logger.Error("failed to send amount", "error", err)
	}
	return map[string]any{"success": true, "action_taken": "set_amount", "amount": amount}
}

func (a *Arbitrator) chooseAmounts(ctx context.Context, p *pendingAction, params ChooseParams) map[string]any {
	if len(params.Amounts) == 0 {
		return errorResult(codeMissingParam, "GET_MULTI_AMOUNT requires amounts")
	}

	parts := make([]string, len(params.Amounts))
	for i, n := range params.Amounts {
		if i < len(p.cb.Amounts) {
			n = clamp(n, p.cb.Amounts[i].Min, p.cb.Amounts[i].Max)
		}
		parts[i] = fmt.Sprintf("%d", n)
	}

	if !a.clearPendingIf(p.seq) {
		return errorResult(codeNoPendingAction, "the pending action was superseded")
	}
	if err := a.dispatcher.SendString(ctx, p.cb.GameID, strings.Join(parts, " ")); err != nil {
		a.logger.Error("failed to send amounts", "error", err)
	}
	return map[string]any{"success": true, "action_taken": "set_amounts", "amounts": params.Amounts}
}

func clamp(n, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// DefaultAction applies the deterministic default for the pending action
// without consulting the agent.
func (a *Arbitrator) DefaultAction(ctx context.Context) map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finishLocked(a.defaultActionLocked(ctx))
}

// defaultActionLocked resolves the pending action with the safest default:
// pass, cancel, first choice, minimum amount. Caller holds mu.
func (a *Arbitrator) defaultActionLocked(ctx context.Context) map[string]any {
	p := a.pending
	if p == nil {
		return errorResult(codeNoPendingAction, "no action is pending")
	}
	a.ensureSnapshot(p)
	cb := p.cb

	clear := func() bool { return a.clearPendingIf(p.seq) }

	switch cb.Kind {
	case game.KindAsk, game.KindSelect:
		if !clear() {
			break
		}
		if err := a.dispatcher.SendBoolean(ctx, cb.GameID, false); err != nil {
			a.logger.Error("failed to send default pass", "error", err)
		}
		return map[string]any{"success": true, "action_taken": "passed_priority"}

	case game.KindTarget:
		legal := a.legalTargets(cb)
		if cb.Required && len(legal) > 0 {
			if !clear() {
				break
			}
			if err := a.dispatcher.SendUUID(ctx, cb.GameID, legal[0]); err != nil {
				a.logger.Error("failed to send default target", "error", err)
			}
			return map[string]any{"success": true, "action_taken": "auto_selected_first_target"}
		}
		if !clear() {
			break
		}
		if err := a.dispatcher.SendBoolean(ctx, cb.GameID, false); err != nil {
			a.logger.Error("failed to send default cancel", "error", err)
		}
		return map[string]any{"success": true, "action_taken": "cancelled"}

	case game.KindPlayMana, game.KindPlayXMana:
		payingFor, _ := payingForObject(cb.Message)
		if !clear() {
			break
		}
		a.failManaCast(ctx, cb, payingFor)
		return map[string]any{"success": true, "action_taken": "cancelled_spell"}

	case game.KindChooseAbility, game.KindChooseChoice:
		if ref, ok := a.snapshot.ref(0); ok {
			if !clear() {
				break
			}
			if err := a.dispatcher.SendString(ctx, cb.GameID, ref.key); err != nil {
				a.logger.Error("failed to send default choice", "error", err)
			}
			return map[string]any{"success": true, "action_taken": "chose_first", "value": ref.key}
		}

	case game.KindChoosePile:
		if !clear() {
			break
		}
		if err := a.dispatcher.SendBoolean(ctx, cb.GameID, true); err != nil {
			a.logger.Error("failed to send default pile", "error", err)
		}
		return map[string]any{"success": true, "action_taken": "chose_pile", "pile": 1}

	case game.KindGetAmount:
		if !clear() {
			break
		}
		if err := a.dispatcher.SendInteger(ctx, cb.GameID, cb.Min); err != nil {
			a.logger.Error("failed to send default amount", "error", err)
		}
		return map[string]any{"success": true, "action_taken": "set_amount", "amount": cb.Min}

	case game.KindGetMultiAmount:
		parts := make([]string, len(cb.Amounts))
		for i, spec := range cb.Amounts {
			parts[i] = fmt.Sprintf("%d", spec.Min)
		}
		if !clear() {
			break
		}
		if err := a.dispatcher.SendString(ctx, cb.GameID, strings.Join(parts, " ")); err != nil {
			a.logger.Error("failed to send default amounts", "error", err)
		}
		return map[string]any{"success": true, "action_taken": "set_amounts"}

	default:
		return errorResult(codeUnknownActionType,
			fmt.Sprintf("no default for pending action type %s", cb.Kind))
	}

	return errorResult(codeNoPendingAction, "the pending action was superseded")
}
