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
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Database resolves card names to oracle data. The production database is
// an external collaborator; the bridge only consumes this interface.
type Database interface {
	// OracleText returns the card's rules text. A missing card returns
	// an error.
	OracleText(name string) (string, error)

	// CreatureTypes returns the creature types on the card's type line,
	// empty for non-creatures and unknown cards.
	CreatureTypes(name string) []string
}

// fileEntry is one card of a yaml card file.
type fileEntry struct {
	Name     string `yaml:"name"`
	TypeLine string `yaml:"type_line"`
	Rules    string `yaml:"rules"`
}

// FileDatabase is a yaml-backed Database for tests and offline play.
type FileDatabase struct {
	byName map[string]fileEntry
}

// LoadFileDatabase reads a yaml card file: a list of {name, type_line,
// rules} entries. Names are matched case-insensitively.
func LoadFileDatabase(path string) (*FileDatabase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read card file: %w", err)
	}
	var entries []fileEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse card file: %w", err)
	}
	db := &FileDatabase{byName: make(map[string]fileEntry, len(entries))}
	for _, e := range entries {
		db.byName[strings.ToLower(e.Name)] = e
	}
	return db, nil
}

// NewFileDatabase builds a database from in-memory entries (test helper).
func NewFileDatabase(cards map[string]string, typeLines map[string]string) *FileDatabase {
	db := &FileDatabase{byName: make(map[string]fileEntry, len(cards))}
	for name, rules := range cards {
		db.byName[strings.ToLower(name)] = fileEntry{
			Name:     name,
			Rules:    rules,
			TypeLine: typeLines[name],
		}
	}
	return db
}

// OracleText implements Database.
func (db *FileDatabase) OracleText(name string) (string, error) {
	e, ok := db.byName[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("card %q not found", name)
	}
	return e.Rules, nil
}

// CreatureTypes implements Database. The type line is split on the em-dash
// separator; the right side holds the subtypes.
func (db *FileDatabase) CreatureTypes(name string) []string {
	e, ok := db.byName[strings.ToLower(name)]
	if !ok {
		return nil
	}
	left, right, found := strings.Cut(e.TypeLine, "—")
	if !found {
		left, right, found = strings.Cut(e.TypeLine, "--")
	}
	if !found || !strings.Contains(left, "Creature") {
		return nil
	}
	return strings.Fields(strings.TrimSpace(right))
}
