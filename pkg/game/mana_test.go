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
	"reflect"
	"testing"
)

func TestParseManaType(t *testing.T) {
	tests := []struct {
		in   string
		want ManaType
		ok   bool
	}{
		{"RED", ManaRed, true},
		{"red", ManaRed, true},
		{"R", ManaRed, true},
		{" green ", ManaGreen, true},
		{"C", ManaColorless, true},
		{"PURPLE", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseManaType(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseManaType(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestManaPool(t *testing.T) {
	p := ManaPool{White: 2, Red: 1}

	if p.Total() != 3 {
		t.Errorf("Total() = %d, want 3", p.Total())
	}
	if got := p.String(); got != "{W}{W}{R}" {
		t.Errorf("String() = %q, want %q", got, "{W}{W}{R}")
	}
	if got := p.Nonzero(); !reflect.DeepEqual(got, []ManaType{ManaWhite, ManaRed}) {
		t.Errorf("Nonzero() = %v", got)
	}
	if got := (ManaPool{}).String(); got != "" {
		t.Errorf("empty pool String() = %q, want empty", got)
	}
}

func TestPromptManaTypes(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   []ManaType
	}{
		{"single symbol", "Pay {R}", []ManaType{ManaRed}},
		{"hybrid", "Pay {U/B}", []ManaType{ManaBlue, ManaBlack}},
		{"monocolor hybrid", "Pay {2/R}", []ManaType{ManaRed}},
		{"generic only", "Pay {2} more", nil},
		{"x only", "Pay {X}", nil},
		{"dedup and order", "Pay {G}{W}{G}", []ManaType{ManaWhite, ManaGreen}},
		{"no symbols", "Select a mana source", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PromptManaTypes(tt.prompt)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PromptManaTypes(%q) = %v, want %v", tt.prompt, got, tt.want)
			}
		})
	}
}
