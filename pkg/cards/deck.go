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

// Package cards handles deck lists and access to the external card
// database. The database itself is a collaborator; this package only
// defines the interface the bridge consumes plus a small yaml-backed
// implementation used in tests and offline play.
package cards

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DeckEntry is one card-name/quantity pair of a deck list.
type DeckEntry struct {
	Name     string `yaml:"name" json:"name"`
	Quantity int    `yaml:"quantity" json:"quantity"`
}

// Deck is the deck the player was constructed with. get_decklist dumps it
// verbatim.
type Deck struct {
	Name      string      `yaml:"name" json:"name"`
	Cards     []DeckEntry `yaml:"cards" json:"cards"`
	Sideboard []DeckEntry `yaml:"sideboard,omitempty" json:"sideboard,omitempty"`
}

// LoadDeck reads a yaml deck list from disk.
func LoadDeck(path string) (*Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deck list: %w", err)
	}
	var deck Deck
	if err := yaml.Unmarshal(data, &deck); err != nil {
		return nil, fmt.Errorf("failed to parse deck list: %w", err)
	}
	if err := deck.Validate(); err != nil {
		return nil, err
	}
	return &deck, nil
}

// Validate checks structural sanity of the deck list.
func (d *Deck) Validate() error {
	if len(d.Cards) == 0 {
		return fmt.Errorf("deck list has no cards")
	}
	for i, e := range d.Cards {
		if e.Name == "" {
			return fmt.Errorf("deck entry %d has no name", i)
		}
		if e.Quantity <= 0 {
			return fmt.Errorf("deck entry %q has quantity %d", e.Name, e.Quantity)
		}
	}
	return nil
}

// Size returns the main-deck card count.
func (d *Deck) Size() int {
	n := 0
	for _, e := range d.Cards {
		n += e.Quantity
	}
	return n
}

// CreatureTypes collects the creature types appearing on the deck's cards,
// resolved through the database. Lookup failures are skipped; a deck whose
// cards are all unknown yields an empty set.
func (d *Deck) CreatureTypes(db Database) map[string]bool {
	types := make(map[string]bool)
	if db == nil {
		return types
	}
	for _, e := range d.Cards {
		for _, t := range db.CreatureTypes(e.Name) {
			types[t] = true
		}
	}
	return types
}
