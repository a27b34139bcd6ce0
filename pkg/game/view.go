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

import "github.com/google/uuid"

// View is the engine's game-state snapshot carried on most callbacks.
type View struct {
	Turn           int    `json:"turn"`
	Phase          string `json:"phase"`
	Step           string `json:"step"`
	ActivePlayer   string `json:"active_player"`
	PriorityPlayer string `json:"priority_player"`

	Players []PlayerView `json:"players"`
	Stack   []StackItem  `json:"stack,omitempty"`
	Combat  []CombatGroup `json:"combat,omitempty"`

	// Playable maps object IDs to the abilities the local player may
	// activate on them right now.
	Playable map[uuid.UUID]PlayableEntry `json:"playable,omitempty"`
}

// PlayableEntry lists the playable ability names of one object. The engine
// flags pure mana abilities in a separate sublist.
type PlayableEntry struct {
	Abilities     []string `json:"abilities,omitempty"`
	ManaAbilities []string `json:"mana_abilities,omitempty"`
}

// HasNonManaAbility reports whether the entry has at least one playable
// ability that is not a pure mana ability.
func (e PlayableEntry) HasNonManaAbility() bool {
	return len(e.Abilities) > 0
}

// PlayerView is one player's slice of the game view.
type PlayerView struct {
	Name        string         `json:"name"`
	Life        int            `json:"life"`
	LibrarySize int            `json:"library_size"`
	HandSize    int            `json:"hand_size"`
	Battlefield []Permanent    `json:"battlefield,omitempty"`
	Graveyard   []CardView     `json:"graveyard,omitempty"`
	Exile       []CardView     `json:"exile,omitempty"`
	Hand        []CardView     `json:"hand,omitempty"`
	ManaPool    ManaPool       `json:"mana_pool"`
	Counters    map[string]int `json:"counters,omitempty"`
	Commanders  []CardView     `json:"commanders,omitempty"`
}

// Permanent is one battlefield object.
type Permanent struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	Controller    string         `json:"controller,omitempty"`
	Tapped        bool           `json:"tapped"`
	Power         int            `json:"power,omitempty"`
	Toughness     int            `json:"toughness,omitempty"`
	Loyalty       int            `json:"loyalty,omitempty"`
	Counters      map[string]int `json:"counters,omitempty"`
	SummoningSick bool           `json:"summoning_sick,omitempty"`
	Token         bool           `json:"token,omitempty"`
	Copy          bool           `json:"copy,omitempty"`
	FaceDown      bool           `json:"face_down,omitempty"`
	IsLand        bool           `json:"is_land,omitempty"`
	IsCreature    bool           `json:"is_creature,omitempty"`
	ManaCost      string         `json:"mana_cost,omitempty"`
	Rules         string         `json:"rules,omitempty"`
}

// CardView is a card outside the battlefield (hand, graveyard, exile,
// offered cards, piles).
type CardView struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ManaCost  string    `json:"mana_cost,omitempty"`
	ManaValue int       `json:"mana_value,omitempty"`
	IsLand    bool      `json:"is_land,omitempty"`
	Power     int       `json:"power,omitempty"`
	Toughness int       `json:"toughness,omitempty"`
	Rules     string    `json:"rules,omitempty"`
	Types     []string  `json:"types,omitempty"`
}

// StackItem is one object on the stack.
type StackItem struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Rules   string    `json:"rules,omitempty"`
	Targets int       `json:"targets,omitempty"`
}

// CombatGroup pairs attackers with blockers against one defender.
type CombatGroup struct {
	Attackers []uuid.UUID `json:"attackers"`
	Blockers  []uuid.UUID `json:"blockers,omitempty"`
	Defender  string      `json:"defender,omitempty"`
}

// Player returns the named player's view, or nil.
func (v *View) Player(name string) *PlayerView {
	for i := range v.Players {
		if v.Players[i].Name == name {
			return &v.Players[i]
		}
	}
	return nil
}

// Permanent resolves an object ID against every battlefield.
func (v *View) Permanent(id uuid.UUID) *Permanent {
	for i := range v.Players {
		for j := range v.Players[i].Battlefield {
			if v.Players[i].Battlefield[j].ID == id {
				return &v.Players[i].Battlefield[j]
			}
		}
	}
	return nil
}

// Card resolves an object ID against hands, graveyards, exiles and
// commanders.
func (v *View) Card(id uuid.UUID) *CardView {
	for i := range v.Players {
		p := &v.Players[i]
		for _, zone := range [][]CardView{p.Hand, p.Graveyard, p.Exile, p.Commanders} {
			for j := range zone {
				if zone[j].ID == id {
					return &zone[j]
				}
			}
		}
	}
	return nil
}

// ObjectName resolves an object ID to a display name, falling back to the
// stack and then the raw ID.
func (v *View) ObjectName(id uuid.UUID) string {
	if p := v.Permanent(id); p != nil {
		return p.Name
	}
	if c := v.Card(id); c != nil {
		return c.Name
	}
	for i := range v.Stack {
		if v.Stack[i].ID == id {
			return v.Stack[i].Name
		}
	}
	return id.String()
}

// UntappedLands counts the named player's untapped lands.
func (v *View) UntappedLands(player string) int {
	p := v.Player(player)
	if p == nil {
		return 0
	}
	n := 0
	for _, perm := range p.Battlefield {
		if perm.IsLand && !perm.Tapped {
			n++
		}
	}
	return n
}
