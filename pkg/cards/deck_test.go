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

package cards

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDeck(t *testing.T) {
	path := writeTemp(t, "deck.yaml", `
name: Mono Red
cards:
  - name: Mountain
    quantity: 20
  - name: Goblin Guide
    quantity: 4
sideboard:
  - name: Smash to Smithereens
    quantity: 3
`)

	deck, err := LoadDeck(path)
	require.NoError(t, err)
	assert.Equal(t, "Mono Red", deck.Name)
	assert.Equal(t, 24, deck.Size())
	assert.Len(t, deck.Sideboard, 1)
}

func TestLoadDeckErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty deck", "name: Empty\ncards: []\n"},
		{"nameless entry", "cards:\n  - quantity: 4\n"},
		{"zero quantity", "cards:\n  - name: Island\n    quantity: 0\n"},
		{"bad yaml", "cards: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDeck(writeTemp(t, "deck.yaml", tt.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadDeck(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFileDatabase(t *testing.T) {
	db := NewFileDatabase(
		map[string]string{
			"Goblin Guide": "Haste. Whenever Goblin Guide attacks...",
			"Mountain":     "",
		},
		map[string]string{
			"Goblin Guide": "Creature — Goblin Scout",
			"Mountain":     "Basic Land — Mountain",
		},
	)

	rules, err := db.OracleText("goblin guide")
	require.NoError(t, err)
	assert.Contains(t, rules, "Haste")

	_, err = db.OracleText("Storm Crow")
	assert.Error(t, err)

	assert.Equal(t, []string{"Goblin", "Scout"}, db.CreatureTypes("Goblin Guide"))
	assert.Empty(t, db.CreatureTypes("Mountain"))
	assert.Empty(t, db.CreatureTypes("Storm Crow"))
}

func TestFileDatabaseAsciiSeparator(t *testing.T) {
	db := NewFileDatabase(
		map[string]string{"Llanowar Elves": "{T}: Add {G}."},
		map[string]string{"Llanowar Elves": "Creature -- Elf Druid"},
	)
	assert.Equal(t, []string{"Elf", "Druid"}, db.CreatureTypes("Llanowar Elves"))
}

func TestLoadFileDatabase(t *testing.T) {
	path := writeTemp(t, "cards.yaml", `
- name: Shock
  type_line: Instant
  rules: Shock deals 2 damage to any target.
`)
	db, err := LoadFileDatabase(path)
	require.NoError(t, err)

	rules, err := db.OracleText("SHOCK")
	require.NoError(t, err)
	assert.Equal(t, "Shock deals 2 damage to any target.", rules)
}

func TestDeckCreatureTypes(t *testing.T) {
	deck := &Deck{Cards: []DeckEntry{
		{Name: "Goblin Guide", Quantity: 4},
		{Name: "Mountain", Quantity: 20},
		{Name: "Unknown Card", Quantity: 1},
	}}
	db := NewFileDatabase(
		map[string]string{"Goblin Guide": "", "Mountain": ""},
		map[string]string{
			"Goblin Guide": "Creature — Goblin Scout",
			"Mountain":     "Basic Land — Mountain",
		},
	)

	types := deck.CreatureTypes(db)
	assert.Equal(t, map[string]bool{"Goblin": true, "Scout": true}, types)
	assert.Empty(t, deck.CreatureTypes(nil))
}
