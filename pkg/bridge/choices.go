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
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/magebridge/pkg/game"
)

// Response types reported to the agent per pending kind.
const (
	respTypeBoolean  = "boolean"
	respTypeUUID     = "uuid"
	respTypeString   = "string"
	respTypeInteger  = "integer"
	respTypeIntegers = "integers"
	respTypePile     = "pile"
	respTypeMana     = "mana"
)

// sentinelAllAttack is the reserved index entry for "attack with
// everything" during declare-attackers.
const sentinelAllAttack = "all_attack"

// bigChoiceThreshold switches CHOOSE_CHOICE to deck-aware filtering.
const bigChoiceThreshold = 50

// choiceRef maps one zero-based index the agent sees to the engine value
// the bridge will send.
type choiceRef struct {
	objectID uuid.UUID
	sentinel string
	mana     game.ManaType
	key      string
	desc     string
}

// Snapshot is the indexed choice list most recently shown to the agent,
// plus diagnostics. It is valid only for the pending action it was built
// from; any fresher callback invalidates it.
type Snapshot struct {
	refs         []choiceRef
	actionType   game.CallbackKind
	responseType string
	createdAt    time.Time
	seq          uint64
}

// Len returns the number of indexed choices.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.refs)
}

func (s *Snapshot) ref(i int) (choiceRef, bool) {
	if s == nil || i < 0 || i >= len(s.refs) {
		return choiceRef{}, false
	}
	return s.refs[i], true
}

// indexOfObject resolves a symbolic id back to an index.
func (s *Snapshot) indexOfObject(id uuid.UUID) (int, bool) {
	if s == nil {
		return 0, false
	}
	for i, r := range s.refs {
		if r.objectID == id {
			return i, true
		}
	}
	return 0, false
}

// GetChoices builds the full indexed choice payload for the pending
// action. Two successive calls with no intervening callback return equal
// payloads. An optional TARGET with no legal choices is auto-cancelled
// here instead of being surfaced.
func (a *Arbitrator) GetChoices(ctx context.Context) map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.pending
	if p == nil {
		return a.finishLocked(errorResult(codeNoPendingAction, "no action is pending"))
	}

	// Mechanical resolution: optional target with nothing to target.
	if p.cb.Kind == game.KindTarget && !p.cb.Required && len(a.legalTargets(p.cb)) == 0 {
		seq := p.seq
		if a.clearPendingIf(seq) {
			if err := a.dispatcher.SendBoolean(ctx, p.cb.GameID, false); err != nil {
				a.logger.Error("failed to cancel optional target", "error", err)
			}
		}
		return a.finishLocked(map[string]any{
			"success":      true,
			"action_taken": "auto_cancelled_no_targets",
		})
	}

	payload, snap := a.buildChoices(p)
	snap.seq = p.seq
	snap.createdAt = time.Now()
	a.snapshot = snap

	return a.finishLocked(payload)
}

// buildChoices converts the pending action into an indexed payload and the
// matching snapshot. Caller holds mu.
func (a *Arbitrator) buildChoices(p *pendingAction) (map[string]any, *Snapshot) {
	cb := p.cb
	snap := &Snapshot{actionType: cb.Kind}

	payload := map[string]any{
		"success":        true,
		"action_pending": true,
		"action_type":    string(cb.Kind),
		"message":        p.prompt,
	}
	a.addGameContext(payload, cb)

	switch cb.Kind {
	case game.KindAsk:
		snap.responseType = respTypeBoolean
		if strings.Contains(strings.ToLower(p.prompt), "mulligan") {
			payload["hand"] = a.handSummary()
		}

	case game.KindSelect:
		a.buildSelectChoices(cb, payload, snap)

	case game.KindTarget:
		a.buildTargetChoices(cb, payload, snap)

	case game.KindChooseAbility:
		snap.responseType = respTypeString
		var choices []map[string]any
		for i, key := range sortedAbilityKeys(cb.Abilities) {
			desc := cb.Abilities[key]
			snap.refs = append(snap.refs, choiceRef{key: key, desc: desc})
			choices = append(choices, map[string]any{"index": i, "description": desc})
		}
		payload["choices"] = choices

	case game.KindChooseChoice:
		a.buildChooseChoices(cb, payload, snap)

	case game.KindChoosePile:
		snap.responseType = respTypePile
		payload["pile1"] = cardSummaries(cb.Pile1)
		payload["pile2"] = cardSummaries(cb.Pile2)
		snap.refs = append(snap.refs,
			choiceRef{key: "1", desc: "pile 1"},
			choiceRef{key: "2", desc: "pile 2"})

	case game.KindPlayMana, game.KindPlayXMana:
		a.buildManaChoices(cb, payload, snap)

	case game.KindGetAmount:
		snap.responseType = respTypeInteger
		payload["min"] = cb.Min
		payload["max"] = cb.Max

	case game.KindGetMultiAmount:
		snap.responseType = respTypeIntegers
		var items []map[string]any
		for i, spec := range cb.Amounts {
			items = append(items, map[string]any{
				"index":       i,
				"min":         spec.Min,
				"max":         spec.Max,
				"default":     spec.Default,
				"description": spec.Description,
			})
		}
		payload["items"] = items

	default:
		snap.responseType = respTypeBoolean
	}

	payload["response_type"] = snap.responseType
	if snap.Len() > 0 {
		payload["count"] = snap.Len()
	}
	return payload, snap
}

// addGameContext attaches the compact context line, the player summary,
// and mana/land info when useful. Caller holds mu.
func (a *Arbitrator) addGameContext(payload map[string]any, cb *game.Callback) {
	v := cb.View
	if v == nil {
		v = a.view
	}
	if v == nil {
		return
	}

	ourMain := v.ActivePlayer == a.playerName && strings.Contains(strings.ToUpper(v.Phase), "MAIN")

	ctx := fmt.Sprintf("T%d %s/%s (%s)", a.rounds.Round(), v.Phase, v.Step, v.ActivePlayer)
	if ourMain {
		ctx += " YOUR_MAIN"
	}
	payload["context"] = ctx

	var players []string
	for _, p := range v.Players {
		line := fmt.Sprintf("%s %d", p.Name, p.Life)
		if p.Name == a.playerName {
			line += " (you)"
		}
		players = append(players, line)
	}
	payload["players"] = strings.Join(players, ", ")

	pool := a.ownManaPool(v)
	if pool.Total() > 0 {
		payload["mana_pool"] = pool.String()
	}
	if n := v.UntappedLands(a.playerName); n > 0 {
		payload["untapped_lands"] = n
	}
	if ourMain {
		payload["land_drops_used"] = a.landsPlayedThisTurn
	}
}

// handSummary lists our hand with cast-relevant card data, for mulligan
// decisions. Caller holds mu.
func (a *Arbitrator) handSummary() []map[string]any {
	if a.view == nil {
		return nil
	}
	p := a.view.Player(a.playerName)
	if p == nil {
		return nil
	}
	var out []map[string]any
	for _, c := range p.Hand {
		entry := map[string]any{
			"name":       c.Name,
			"mana_cost":  c.ManaCost,
			"mana_value": c.ManaValue,
			"is_land":    c.IsLand,
		}
		if c.Power != 0 || c.Toughness != 0 {
			entry["power"] = c.Power
			entry["toughness"] = c.Toughness
		}
		out = append(out, entry)
	}
	return out
}

// buildSelectChoices enumerates playable objects (or combat decisions) for
// a SELECT prompt. Caller holds mu.
func (a *Arbitrator) buildSelectChoices(cb *game.Callback, payload map[string]any, snap *Snapshot) {
	if attackers := cb.PossibleAttackers(); len(attackers) > 0 {
		a.buildCombatChoices(cb, attackers, true, payload, snap)
		return
	}
	if blockers := cb.PossibleBlockers(); len(blockers) > 0 {
		a.buildCombatChoices(cb, blockers, false, payload, snap)
		return
	}

	v := cb.View
	if v == nil {
		v = a.view
	}

	var choices []map[string]any
	if v != nil {
		for _, id := range sortedPlayableIDs(v.Playable) {
			entry := v.Playable[id]
			// Mana is paid through PLAY_MANA, never through SELECT.
			if !entry.HasNonManaAbility() {
				continue
			}
			if a.failedManaCasts[id] {
				continue
			}

			choice := map[string]any{
				"index": len(snap.refs),
				"name":  v.ObjectName(id),
			}
			a.describePlayable(v, id, entry, choice)
			snap.refs = append(snap.refs, choiceRef{objectID: id, desc: v.ObjectName(id)})
			choices = append(choices, choice)
		}
	}

	if len(choices) == 0 {
		// Nothing castable: the only sensible answer is pass priority.
		snap.responseType = respTypeBoolean
		payload["can_pass"] = true
		return
	}
	snap.responseType = respTypeUUID
	payload["choices"] = choices
	payload["can_pass"] = true
}

// describePlayable fills action/cost/stats for one playable object.
// Caller holds mu.
func (a *Arbitrator) describePlayable(v *game.View, id uuid.UUID, entry game.PlayableEntry, choice map[string]any) {
	if perm := v.Permanent(id); perm != nil {
		choice["action"] = "activate"
		choice["abilities"] = entry.Abilities
		if perm.ManaCost != "" {
			choice["mana_cost"] = perm.ManaCost
		}
		if perm.IsCreature {
			choice["power"] = perm.Power
			choice["toughness"] = perm.Toughness
		}
		return
	}
	if card := v.Card(id); card != nil {
		if card.IsLand {
			choice["action"] = "land"
		} else {
			choice["action"] = "cast"
		}
		if card.ManaCost != "" {
			choice["mana_cost"] = card.ManaCost
		}
		if card.Power != 0 || card.Toughness != 0 {
			choice["power"] = card.Power
			choice["toughness"] = card.Toughness
		}
		return
	}
	choice["action"] = "cast"
}

// buildCombatChoices switches a SELECT into combat mode.
func (a *Arbitrator) buildCombatChoices(cb *game.Callback, ids []uuid.UUID, attacking bool, payload map[string]any, snap *Snapshot) {
	v := cb.View
	if v == nil {
		v = a.view
	}

	snap.responseType = respTypeUUID
	var choices []map[string]any
	for _, id := range ids {
		name := id.String()
		if v != nil {
			name = v.ObjectName(id)
		}
		choice := map[string]any{
			"index": len(snap.refs),
			"name":  name,
		}
		if v != nil {
			if perm := v.Permanent(id); perm != nil {
				choice["power"] = perm.Power
				choice["toughness"] = perm.Toughness
				choice["tapped"] = perm.Tapped
			}
		}
		snap.refs = append(snap.refs, choiceRef{objectID: id, desc: name})
		choices = append(choices, choice)
	}

	if attacking {
		choices = append(choices, map[string]any{
			"index": len(snap.refs),
			"name":  "All attack",
		})
		snap.refs = append(snap.refs, choiceRef{sentinel: sentinelAllAttack, desc: "All attack"})
		payload["combat_phase"] = "declare_attackers"
	} else {
		payload["combat_phase"] = "declare_blockers"
	}
	payload["choices"] = choices
	payload["can_pass"] = true
}

// buildTargetChoices enumerates legal targets. Caller holds mu.
func (a *Arbitrator) buildTargetChoices(cb *game.Callback, payload map[string]any, snap *Snapshot) {
	snap.responseType = respTypeUUID
	payload["required"] = cb.Required

	v := cb.View
	if v == nil {
		v = a.view
	}

	var choices []map[string]any
	for _, id := range a.legalTargets(cb) {
		choice := map[string]any{
			"index": len(snap.refs),
		}
		name := id.String()
		if v != nil {
			if perm := v.Permanent(id); perm != nil {
				name = perm.Name
				choice["target_type"] = "permanent"
				choice["controller"] = perm.Controller
				choice["tapped"] = perm.Tapped
				if perm.IsCreature {
					choice["power"] = perm.Power
					choice["toughness"] = perm.Toughness
				}
			} else if card := v.Card(id); card != nil {
				name = card.Name
				choice["target_type"] = "card"
			} else if pl := playerByID(v, cb, id); pl != "" {
				name = pl
				choice["target_type"] = "player"
				if pl == a.playerName {
					choice["is_you"] = true
				}
			} else {
				choice["target_type"] = "card"
				for _, c := range cb.Cards {
					if c.ID == id {
						name = c.Name
					}
				}
			}
		}
		choice["name"] = name
		snap.refs = append(snap.refs, choiceRef{objectID: id, desc: name})
		choices = append(choices, choice)
	}
	payload["choices"] = choices
}

// playerByID matches a target ID against player names using the callback's
// options (the engine keys player targets by name there).
func playerByID(v *game.View, cb *game.Callback, id uuid.UUID) string {
	if cb.Options == nil {
		return ""
	}
	raw, ok := cb.Options["players"]
	if !ok {
		return ""
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return ""
	}
	for name, pid := range m {
		if s, ok := pid.(string); ok && s == id.String() {
			return name
		}
	}
	return ""
}

// buildChooseChoices handles CHOOSE_CHOICE, filtering huge lists through
// the deck's creature types. Caller holds mu.
func (a *Arbitrator) buildChooseChoices(cb *game.Callback, payload map[string]any, snap *Snapshot) {
	snap.responseType = respTypeString

	values := cb.Choices
	if len(values) == 0 && len(cb.Keys) > 0 {
		keys := make([]string, 0, len(cb.Keys))
		for k := range cb.Keys {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		values = keys
	}

	filtered := values
	if len(values) >= bigChoiceThreshold && a.deck != nil {
		deckTypes := a.deck.CreatureTypes(a.db)
		if len(deckTypes) > 0 {
			var kept []string
			for _, v := range values {
				if deckTypes[v] {
					kept = append(kept, v)
				}
			}
			if len(kept) > 0 {
				filtered = kept
				payload["note"] = fmt.Sprintf(
					"showing %d of %d options matching your deck; send text to pick any other value",
					len(kept), len(values))
			}
		}
	}

	var choices []map[string]any
	for i, v := range filtered {
		desc := v
		if cb.Keys != nil {
			if d, ok := cb.Keys[v]; ok && d != "" {
				desc = d
			}
		}
		snap.refs = append(snap.refs, choiceRef{key: v, desc: desc})
		choices = append(choices, map[string]any{"index": i, "value": v, "description": desc})
	}
	payload["choices"] = choices
}

// buildManaChoices enumerates tappable sources and pool payments for a
// mana prompt that AutoMana declined. Caller holds mu.
func (a *Arbitrator) buildManaChoices(cb *game.Callback, payload map[string]any, snap *Snapshot) {
	snap.responseType = respTypeMana

	payingFor, _ := payingForObject(cb.Message)

	v := cb.View
	if v == nil {
		v = a.view
	}

	var choices []map[string]any
	if v != nil {
		for _, id := range sortedPlayableIDs(v.Playable) {
			if id == payingFor || a.failedManaCasts[id] {
				continue
			}
			entry := v.Playable[id]
			if len(entry.ManaAbilities) == 0 {
				continue
			}
			choice := map[string]any{
				"index":     len(snap.refs),
				"name":      v.ObjectName(id),
				"source":    "tap",
				"abilities": entry.ManaAbilities,
			}
			snap.refs = append(snap.refs, choiceRef{objectID: id, desc: v.ObjectName(id)})
			choices = append(choices, choice)
		}
	}

	for _, t := range a.poolChoicesFor(cb) {
		choice := map[string]any{
			"index":  len(snap.refs),
			"name":   string(t),
			"source": "pool",
		}
		snap.refs = append(snap.refs, choiceRef{mana: t, desc: string(t)})
		choices = append(choices, choice)
	}

	payload["choices"] = choices
	payload["can_cancel"] = true
}

func cardSummaries(cards []game.CardView) []map[string]any {
	var out []map[string]any
	for _, c := range cards {
		entry := map[string]any{"name": c.Name}
		if c.ManaCost != "" {
			entry["mana_cost"] = c.ManaCost
		}
		out = append(out, entry)
	}
	return out
}
