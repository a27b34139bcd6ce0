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

	"github.com/google/uuid"
)

// OracleParams selects the single source of a get_oracle_text call.
type OracleParams struct {
	CardName  string
	CardNames []string
	ObjectID  string
	ObjectIDs []string
}

func (p OracleParams) sourceCount() int {
	n := 0
	if p.CardName != "" {
		n++
	}
	if len(p.CardNames) > 0 {
		n++
	}
	if p.ObjectID != "" {
		n++
	}
	if len(p.ObjectIDs) > 0 {
		n++
	}
	return n
}

// OracleText resolves rules text. Card names go through the external card
// database; in-game object IDs resolve through the cached game view, which
// carries the engine's own rules text for objects it knows about.
func (a *Arbitrator) OracleText(params OracleParams) map[string]any {
	if params.sourceCount() != 1 {
		return a.finish(errorResult(codeMissingParam,
			"provide exactly one of card_name, card_names, object_id, object_ids"))
	}

	switch {
	case params.CardName != "":
		entry, err := a.oracleByName(params.CardName)
		if err != nil {
			return a.finish(errorResult(codeInvalidChoice, err.Error()))
		}
		return a.finish(map[string]any{
			"success": true,
			"name":    entry["name"],
			"rules":   entry["rules"],
		})

	case len(params.CardNames) > 0:
		var out []map[string]any
		for _, name := range params.CardNames {
			entry, err := a.oracleByName(name)
			if err != nil {
				entry = map[string]any{"name": name, "error": err.Error()}
			}
			out = append(out, entry)
		}
		return a.finish(map[string]any{"success": true, "cards": out})

	case params.ObjectID != "":
		entry, err := a.oracleByID(params.ObjectID)
		if err != nil {
			return a.finish(errorResult(codeInvalidChoice, err.Error()))
		}
		return a.finish(map[string]any{
			"success": true,
			"name":    entry["name"],
			"rules":   entry["rules"],
		})

	default:
		var out []map[string]any
		for _, id := range params.ObjectIDs {
			entry, err := a.oracleByID(id)
			if err != nil {
				entry = map[string]any{"id": id, "error": err.Error()}
			}
			out = append(out, entry)
		}
		return a.finish(map[string]any{"success": true, "cards": out})
	}
}

func (a *Arbitrator) oracleByName(name string) (map[string]any, error) {
	if a.db == nil {
		return nil, fmt.Errorf("no card database configured")
	}
	rules, err := a.db.OracleText(name)
	if err != nil {
		return nil, err
	}
	return map[string]any{"name": name, "rules": rules}, nil
}

// oracleByID resolves an in-game object through the cached view, falling
// back to the database by the object's display name.
func (a *Arbitrator) oracleByID(raw string) (map[string]any, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("bad object id %q", raw)
	}

	a.mu.Lock()
	v := a.view
	a.mu.Unlock()
	if v == nil {
		return nil, fmt.Errorf("no game state available")
	}

	if perm := v.Permanent(id); perm != nil {
		if perm.Rules != "" {
			return map[string]any{"name": perm.Name, "rules": perm.Rules}, nil
		}
		return a.oracleByName(perm.Name)
	}
	if card := v.Card(id); card != nil {
		if card.Rules != "" {
			return map[string]any{"name": card.Name, "rules": card.Rules}, nil
		}
		return a.oracleByName(card.Name)
	}
	for i := range v.Stack {
		if v.Stack[i].ID == id {
			if v.Stack[i].Rules != "" {
				return map[string]any{"name": v.Stack[i].Name, "rules": v.Stack[i].Rules}, nil
			}
			return a.oracleByName(v.Stack[i].Name)
		}
	}
	return nil, fmt.Errorf("object %s not found in the game view", id)
}

// Decklist dumps the deck the player was constructed with.
func (a *Arbitrator) Decklist() map[string]any {
	if a.deck == nil {
		return a.finish(errorResult(codeInternalError, "no deck configured"))
	}
	return a.finish(map[string]any{
		"success":   true,
		"name":      a.deck.Name,
		"size":      a.deck.Size(),
		"cards":     a.deck.Cards,
		"sideboard": a.deck.Sideboard,
	})
}
