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

// Package game holds the data model shared between the engine session and
// the bridge: callbacks, the game view snapshot, mana types, and the round
// tracker.
//
// Callbacks are immutable once received. A callback either demands a typed
// response (actionable) or merely informs the client (passive); Classify
// makes that split.
package game

import (
	"time"

	"github.com/google/uuid"
)

// CallbackKind identifies what the engine is asking for.
type CallbackKind string

const (
	KindStartGame      CallbackKind = "START_GAME"
	KindAsk            CallbackKind = "ASK"
	KindSelect         CallbackKind = "SELECT"
	KindTarget         CallbackKind = "TARGET"
	KindChooseAbility  CallbackKind = "CHOOSE_ABILITY"
	KindChooseChoice   CallbackKind = "CHOOSE_CHOICE"
	KindChoosePile     CallbackKind = "CHOOSE_PILE"
	KindPlayMana       CallbackKind = "PLAY_MANA"
	KindPlayXMana      CallbackKind = "PLAY_XMANA"
	KindGetAmount      CallbackKind = "GET_AMOUNT"
	KindGetMultiAmount CallbackKind = "GET_MULTI_AMOUNT"
	KindGameOver       CallbackKind = "GAME_OVER"

	KindUpdate CallbackKind = "UPDATE"
	KindChat   CallbackKind = "CHAT"
	KindError  CallbackKind = "ERROR"
)

// Class is the coarse callback classification.
type Class int

const (
	ClassPassive Class = iota
	ClassActionable
)

// Classify splits callback kinds into actionable (demand a response) and
// passive (log/update) classes. START_GAME and GAME_OVER are lifecycle
// markers; they carry no response but drive state transitions, so they are
// classified actionable to make them clear tracked-response state.
func Classify(kind CallbackKind) Class {
	switch kind {
	case KindUpdate, KindChat, KindError:
		return ClassPassive
	default:
		return ClassActionable
	}
}

// AmountSpec bounds one entry of a GET_MULTI_AMOUNT request.
type AmountSpec struct {
	Min         int    `json:"min"`
	Max         int    `json:"max"`
	Default     int    `json:"default"`
	Description string `json:"description,omitempty"`
}

// ChatMessage is one entry of a CHAT callback.
type ChatMessage struct {
	Player  string    `json:"player,omitempty"`
	Text    string    `json:"text"`
	Type    string    `json:"type,omitempty"`
	At      time.Time `json:"at,omitzero"`
	TurnNum int       `json:"turn,omitempty"`
}

// Callback is one asynchronous message from the engine. Payload fields are
// kind-specific; unused fields stay zero.
type Callback struct {
	GameID uuid.UUID    `json:"game_id"`
	Kind   CallbackKind `json:"kind"`

	// Message is the engine's prompt or log text.
	Message string `json:"message,omitempty"`

	// View is the game-state snapshot carried on most callbacks.
	View *View `json:"view,omitempty"`

	// PlayerID is the local player's ID, set on START_GAME.
	PlayerID uuid.UUID `json:"player_id,omitempty"`

	// Targets is the explicit legal-target set of a TARGET callback.
	Targets []uuid.UUID `json:"targets,omitempty"`

	// Cards are the offered cards (TARGET over cards, CHOOSE_PILE input).
	Cards []CardView `json:"cards,omitempty"`

	// Required distinguishes mandatory from optional TARGET decisions.
	Required bool `json:"required,omitempty"`

	// Abilities maps ability IDs to descriptions for CHOOSE_ABILITY.
	Abilities map[string]string `json:"abilities,omitempty"`

	// Choices holds CHOOSE_CHOICE values; Keys carries the key label when
	// the set is key-labelled (key → description).
	Choices []string          `json:"choices,omitempty"`
	Keys    map[string]string `json:"keys,omitempty"`

	// Pile1 and Pile2 are the two piles of a CHOOSE_PILE decision.
	Pile1 []CardView `json:"pile1,omitempty"`
	Pile2 []CardView `json:"pile2,omitempty"`

	// Min and Max bound a GET_AMOUNT request.
	Min int `json:"min,omitempty"`
	Max int `json:"max,omitempty"`

	// Amounts holds the per-item bounds of a GET_MULTI_AMOUNT request.
	Amounts []AmountSpec `json:"amounts,omitempty"`

	// Options carries kind-specific extras: possibleAttackers,
	// possibleBlockers, possibleTargets, chosenAttackers.
	Options map[string]any `json:"options,omitempty"`

	// Chat is set on CHAT callbacks.
	Chat *ChatMessage `json:"chat,omitempty"`
}

// PossibleAttackers extracts the possibleAttackers option, if present.
func (c *Callback) PossibleAttackers() []uuid.UUID {
	return optionUUIDs(c.Options, "possibleAttackers")
}

// PossibleBlockers extracts the possibleBlockers option, if present.
func (c *Callback) PossibleBlockers() []uuid.UUID {
	return optionUUIDs(c.Options, "possibleBlockers")
}

// PossibleTargets extracts the possibleTargets option, if present.
func (c *Callback) PossibleTargets() []uuid.UUID {
	return optionUUIDs(c.Options, "possibleTargets")
}

func optionUUIDs(options map[string]any, key string) []uuid.UUID {
	if options == nil {
		return nil
	}
	raw, ok := options[key]
	if !ok {
		return nil
	}
	var ids []uuid.UUID
	switch v := raw.(type) {
	case []uuid.UUID:
		ids = append(ids, v...)
	case []string:
		for _, s := range v {
			if id, err := uuid.Parse(s); err == nil {
				ids = append(ids, id)
			}
		}
	case []any:
		for _, e := range v {
			switch x := e.(type) {
			case uuid.UUID:
				ids = append(ids, x)
			case string:
				if id, err := uuid.Parse(x); err == nil {
					ids = append(ids, id)
				}
			}
		}
	}
	return ids
}
