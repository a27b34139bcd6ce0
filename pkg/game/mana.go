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

import (
	"regexp"
	"strings"
)

// ManaType is one of the engine's six mana channels.
type ManaType string

const (
	ManaWhite     ManaType = "WHITE"
	ManaBlue      ManaType = "BLUE"
	ManaBlack     ManaType = "BLACK"
	ManaRed       ManaType = "RED"
	ManaGreen     ManaType = "GREEN"
	ManaColorless ManaType = "COLORLESS"
)

// ManaTypes lists the channels in the engine's canonical W,U,B,R,G,C order.
var ManaTypes = []ManaType{ManaWhite, ManaBlue, ManaBlack, ManaRed, ManaGreen, ManaColorless}

// ParseManaType resolves an agent-supplied mana name ("RED", "red", "R").
func ParseManaType(s string) (ManaType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WHITE", "W":
		return ManaWhite, true
	case "BLUE", "U":
		return ManaBlue, true
	case "BLACK", "B":
		return ManaBlack, true
	case "RED", "R":
		return ManaRed, true
	case "GREEN", "G":
		return ManaGreen, true
	case "COLORLESS", "C":
		return ManaColorless, true
	}
	return "", false
}

// ManaPool is a player's floating mana, one count per channel.
type ManaPool struct {
	White     int `json:"white"`
	Blue      int `json:"blue"`
	Black     int `json:"black"`
	Red       int `json:"red"`
	Green     int `json:"green"`
	Colorless int `json:"colorless"`
}

// Get returns the count for one channel.
func (p ManaPool) Get(t ManaType) int {
	switch t {
	case ManaWhite:
		return p.White
	case ManaBlue:
		return p.Blue
	case ManaBlack:
		return p.Black
	case ManaRed:
		return p.Red
	case ManaGreen:
		return p.Green
	case ManaColorless:
		return p.Colorless
	}
	return 0
}

// Total sums all channels.
func (p ManaPool) Total() int {
	return p.White + p.Blue + p.Black + p.Red + p.Green + p.Colorless
}

// Nonzero lists the channels with floating mana, in canonical order.
func (p ManaPool) Nonzero() []ManaType {
	var out []ManaType
	for _, t := range ManaTypes {
		if p.Get(t) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// String renders the pool as "{W}{W}{R}" style shorthand, "" when empty.
func (p ManaPool) String() string {
	var b strings.Builder
	letters := map[ManaType]string{
		ManaWhite: "W", ManaBlue: "U", ManaBlack: "B",
		ManaRed: "R", ManaGreen: "G", ManaColorless: "C",
	}
	for _, t := range ManaTypes {
		for i := 0; i < p.Get(t); i++ {
			b.WriteString("{")
			b.WriteString(letters[t])
			b.WriteString("}")
		}
	}
	return b.String()
}

var manaSymbolPattern = regexp.MustCompile(`\{([WUBRGC0-9X/]+)\}`)

// PromptManaTypes extracts the mana channels a prompt explicitly mentions
// through symbols like {W}, {U/B}, {2/R}. Generic-only symbols ({2}, {X})
// yield nothing. Channels are returned in canonical order, deduplicated.
func PromptManaTypes(prompt string) []ManaType {
	seen := map[ManaType]bool{}
	for _, m := range manaSymbolPattern.FindAllStringSubmatch(prompt, -1) {
		for _, part := range strings.Split(m[1], "/") {
			if t, ok := letterManaType(part); ok {
				seen[t] = true
			}
		}
	}
	var out []ManaType
	for _, t := range ManaTypes {
		if seen[t] {
			out = append(out, t)
		}
	}
	return out
}

func letterManaType(s string) (ManaType, bool) {
	switch s {
	case "W":
		return ManaWhite, true
	case "U":
		return ManaBlue, true
	case "B":
		return ManaBlack, true
	case "R":
		return ManaRed, true
	case "G":
		return ManaGreen, true
	case "C":
		return ManaColorless, true
	}
	return "", false
}
