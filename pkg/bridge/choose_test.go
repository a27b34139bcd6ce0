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
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/magebridge/pkg/config"
	"github.com/kadirpekel/magebridge/pkg/game"
)

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

// playableView builds a view where the local player can cast one spell.
func playableView(spell uuid.UUID) *game.View {
	return &game.View{
		Turn:         1,
		Phase:        "PRECOMBAT_MAIN",
		Step:         "PRECOMBAT_MAIN",
		ActivePlayer: testPlayer,
		Players: []game.PlayerView{{
			Name: testPlayer,
			Life: 20,
			Hand: []game.CardView{{ID: spell, Name: "Shock", ManaCost: "{R}"}},
		}},
		Playable: map[uuid.UUID]game.PlayableEntry{
			spell: {Abilities: []string{"Cast Shock"}},
		},
	}
}

func TestChooseNoPending(t *testing.T) {
	a, _ := newTestArbitrator(t)
	result := a.Choose(context.Background(), ChooseParams{Answer: boolPtr(false)})
	assert.Equal(t, false, result["success"])
	assert.Equal(t, codeNoPendingAction, result["error_code"])
}

func TestChooseAskRequiresAnswer(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)
	installPending(a, &game.Callback{GameID: gameID, Kind: game.KindAsk, Message: "Mulligan?"})

	result := a.Choose(context.Background(), ChooseParams{Index: intPtr(0)})
	assert.Equal(t, codeMissingParam, result["error_code"])
	assert.Equal(t, true, result["retryable"])

	// The error path keeps the pending action alive.
	pending := a.GetPending()
	assert.Equal(t, true, pending["action_pending"])
}

func TestChooseAskWithStrayIndex(t *testing.T) {
	a, fc := newTestArbitrator(t)
	gameID := startTestGame(a)
	installPending(a, &game.Callback{GameID: gameID, Kind: game.KindAsk, Message: "Mulligan?"})

	// Agents that send every parameter include a meaningless index; the
	// answer wins.
	result := a.Choose(context.Background(), ChooseParams{Index: intPtr(3), Answer: boolPtr(true)})
	assert.Equal(t, true, result["success"])
	assert.Equal(t, "answered", result["action_taken"])

	last, ok := fc.last()
	require.True(t, ok)
	assert.Equal(t, "boolean", last.kind)
	assert.True(t, last.boolV)
}

func TestChooseSelectByIndex(t *testing.T) {
	a, fc := newTestArbitrator(t)
	gameID := startTestGame(a)
	spell := uuid.New()
	installPending(a, &game.Callback{
		GameID: gameID,
		Kind:   game.KindSelect,
		View:   playableView(spell),
	})

	result := a.Choose(context.Background(), ChooseParams{Index: intPtr(0)})
	require.Equal(t, true, result["success"], "choose failed: %v", result)
	assert.Equal(t, "selected", result["action_taken"])
	assert.Equal(t, "Shock", result["name"])

	last, _ := fc.last()
	assert.Equal(t, "uuid", last.kind)
	assert.Equal(t, spell, last.uuidV)
}

func TestChooseSelectByID(t *testing.T) {
	a, fc := newTestArbitrator(t)
	gameID := startTestGame(a)
	spell := uuid.New()
	installPending(a, &game.Callback{
		GameID: gameID,
		Kind:   game.KindSelect,
		View:   playableView(spell),
	})

	result := a.Choose(context.Background(), ChooseParams{ID: spell.String()})
	require.Equal(t, true, result["success"])

	last, _ := fc.last()
	assert.Equal(t, spell, last.uuidV)
}

func TestChooseSelectOutOfRangeFallsThroughToAnswer(t *testing.T) {
	a, fc := newTestArbitrator(t)
	gameID := startTestGame(a)
	spell := uuid.New()
	installPending(a, &game.Callback{
		GameID: gameID,
		Kind:   game.KindSelect,
		View:   playableView(spell),
	})

	result := a.Choose(context.Background(), ChooseParams{Index: intPtr(7), Answer: boolPtr(false)})
	require.Equal(t, true, result["success"])
	assert.Equal(t, "passed_priority", result["action_taken"])

	last, _ := fc.last()
	assert.Equal(t, "boolean", last.kind)
	assert.False(t, last.boolV)
}

func TestChooseSelectOutOfRangeWithoutFallback(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)
	spell := uuid.New()
	installPending(a, &game.Callback{
		GameID: gameID,
		Kind:   game.KindSelect,
		View:   playableView(spell),
	})

	result := a.Choose(context.Background(), ChooseParams{Index: intPtr(7)})
	assert.Equal(t, codeIndexOutOfRange, result["error_code"])
	assert.Equal(t, true, result["retryable"])
	assert.NotNil(t, result["choices"], "retryable errors carry the current choices")
}

func TestChooseSelectAllAttack(t *testing.T) {
	a, fc := newTestArbitrator(t)
	gameID := startTestGame(a)
	attacker := uuid.New()
	installPending(a, &game.Callback{
		GameID:  gameID,
		Kind:    game.KindSelect,
		Options: map[string]any{"possibleAttackers": []any{attacker.String()}},
	})

	// Index 1 is the synthetic "All attack" entry after the one attacker.
	result := a.Choose(context.Background(), ChooseParams{Index: intPtr(1)})
	require.Equal(t, true, result["success"])
	assert.Equal(t, "all_attack", result["action_taken"])

	last, _ := fc.last()
	assert.Equal(t, "string", last.kind)
	assert.Equal(t, "all_attack", last.strV)
}

func TestChooseSelectMissingParams(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)
	installPending(a, &game.Callback{GameID: gameID, Kind: game.KindSelect})

	result := a.Choose(context.Background(), ChooseParams{})
	assert.Equal(t, codeMissingParam, result["error_code"])
}

func TestChooseSelectStoresManaPlan(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)
	spell := uuid.New()
	land := uuid.New()
	installPending(a, &game.Callback{
		GameID: gameID,
		Kind:   game.KindSelect,
		View:   playableView(spell),
	})

	result := a.Choose(context.Background(), ChooseParams{
		Index:    intPtr(0),
		ManaPlan: `[{"tap":"` + land.String() + `"}]`,
	})
	require.Equal(t, true, result["success"])
	assert.Equal(t, 1, result["mana_plan_steps"])

	a.mu.Lock()
	defer a.mu.Unlock()
	assert.Equal(t, 1, a.plan.Len())
}

func TestChooseManaPlanAutoTapExclusive(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)
	installPending(a, &game.Callback{GameID: gameID, Kind: game.KindAsk})

	result := a.Choose(context.Background(), ChooseParams{
		Answer:   boolPtr(true),
		ManaPlan: `[{"pool":"RED"}]`,
		AutoTap:  boolPtr(true),
	})
	assert.Equal(t, codeInvalidChoice, result["error_code"])
}

func TestChooseTargetRequiredInvalidIndexAutoSelects(t *testing.T) {
	a, fc := newTestArbitrator(t)
	gameID := startTestGame(a)
	first := uuid.New()
	installPending(a, &game.Callback{
		GameID:   gameID,
		Kind:     game.KindTarget,
		Required: true,
		Targets:  []uuid.UUID{first, uuid.New()},
	})

	result := a.Choose(context.Background(), ChooseParams{Index: intPtr(9)})
	require.Equal(t, true, result["success"])
	assert.Equal(t, "auto_selected_first_target", result["action_taken"])

	last, _ := fc.last()
	assert.Equal(t, first, last.uuidV)
}

func TestChooseTargetOptionalOutOfRange(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)
	installPending(a, &game.Callback{
		GameID:  gameID,
		Kind:    game.KindTarget,
		Targets: []uuid.UUID{uuid.New()},
	})

	result := a.Choose(context.Background(), ChooseParams{Index: intPtr(5)})
	assert.Equal(t, codeIndexOutOfRange, result["error_code"])
}

func TestChooseChoiceByText(t *testing.T) {
	a, fc := newTestArbitrator(t)
	gameID := startTestGame(a)
	installPending(a, &game.Callback{
		GameID:  gameID,
		Kind:    game.KindChooseChoice,
		Choices: []string{"Goblin", "Elf"},
	})

	result := a.Choose(context.Background(), ChooseParams{Text: "elf"})
	require.Equal(t, true, result["success"])
	assert.Equal(t, "Elf", result["value"])

	last, _ := fc.last()
	assert.Equal(t, "Elf", last.strV)
}

func TestChooseChoiceUnknownText(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)
	installPending(a, &game.Callback{
		GameID:  gameID,
		Kind:    game.KindChooseChoice,
		Choices: []string{"Goblin", "Elf"},
	})

	result := a.Choose(context.Background(), ChooseParams{Text: "Dragon"})
	assert.Equal(t, codeInvalidChoice, result["error_code"])
}

func TestChoosePile(t *testing.T) {
	a, fc := newTestArbitrator(t)
	gameID := startTestGame(a)
	installPending(a, &game.Callback{GameID: gameID, Kind: game.KindChoosePile})

	result := a.Choose(context.Background(), ChooseParams{Pile: intPtr(2)})
	require.Equal(t, true, result["success"])
	assert.Equal(t, 2, result["pile"])

	last, _ := fc.last()
	assert.Equal(t, "boolean", last.kind)
	assert.False(t, last.boolV, "pile 2 is the false branch")
}

func TestChoosePileRejectsOtherValues(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)
	installPending(a, &game.Callback{GameID: gameID, Kind: game.KindChoosePile})

	result := a.Choose(context.Background(), ChooseParams{Pile: intPtr(3)})
	assert.Equal(t, codeMissingParam, result["error_code"])
}

func TestChooseAmountClamps(t *testing.T) {
	a, fc := newTestArbitrator(t)
	gameID := startTestGame(a)
	installPending(a, &game.Callback{GameID: gameID, Kind: game.KindGetAmount, Min: 1, Max: 3})

	result := a.Choose(context.Background(), ChooseParams{Amount: intPtr(10)})
	require.Equal(t, true, result["success"])
	assert.Equal(t, 3, result["amount"])

	last, _ := fc.last()
	assert.Equal(t, 3, last.intV)
}

func TestChooseMultiAmountClamps(t *testing.T) {
	a, fc := newTestArbitrator(t)
	gameID := startTestGame(a)
	installPending(a, &game.Callback{
		GameID: gameID,
		Kind:   game.KindGetMultiAmount,
		Amounts: []game.AmountSpec{
			{Min: 0, Max: 2},
			{Min: 1, Max: 5},
		},
	})

	result := a.Choose(context.Background(), ChooseParams{Amounts: []int{9, 0}})
	require.Equal(t, true, result["success"])

	last, _ := fc.last()
	assert.Equal(t, "2 1", last.strV)
}

func TestInteractionCapAutoPasses(t *testing.T) {
	a, fc := newTestArbitrator(t, func(c *config.BridgeConfig) {
		c.MaxInteractionsPerTurn = 5
	})
	gameID := startTestGame(a)
	ctx := context.Background()

	var result map[string]any
	for i := 0; i < 6; i++ {
		installPending(a, &game.Callback{GameID: gameID, Kind: game.KindAsk})
		result = a.Choose(ctx, ChooseParams{Answer: boolPtr(false)})
	}

	assert.Equal(t, "auto_passed_loop_detected", result["action_taken"])
	assert.NotEmpty(t, result["warning"])

	last, _ := fc.last()
	assert.Equal(t, "boolean", last.kind)
	assert.False(t, last.boolV)
}

func TestDefaultActionAsk(t *testing.T) {
	a, fc := newTestArbitrator(t)
	gameID := startTestGame(a)
	installPending(a, &game.Callback{GameID: gameID, Kind: game.KindAsk})

	result := a.DefaultAction(context.Background())
	require.Equal(t, true, result["success"])
	assert.Equal(t, "passed_priority", result["action_taken"])

	last, _ := fc.last()
	assert.Equal(t, "boolean", last.kind)
	assert.False(t, last.boolV)
}

func TestDefaultActionRequiredTarget(t *testing.T) {
	a, fc := newTestArbitrator(t)
	gameID := startTestGame(a)
	first := uuid.New()
	installPending(a, &game.Callback{
		GameID:   gameID,
		Kind:     game.KindTarget,
		Required: true,
		Targets:  []uuid.UUID{first, uuid.New()},
	})

	result := a.DefaultAction(context.Background())
	assert.Equal(t, "auto_selected_first_target", result["action_taken"])

	last, _ := fc.last()
	assert.Equal(t, first, last.uuidV)
}

func TestDefaultActionAmount(t *testing.T) {
	a, fc := newTestArbitrator(t)
	gameID := startTestGame(a)
	installPending(a, &game.Callback{GameID: gameID, Kind: game.KindGetAmount, Min: 2, Max: 8})

	result := a.DefaultAction(context.Background())
	assert.Equal(t, "set_amount", result["action_taken"])
	assert.Equal(t, 2, result["amount"])

	last, _ := fc.last()
	assert.Equal(t, 2, last.intV)
}

func TestDefaultActionNoPending(t *testing.T) {
	a, _ := newTestArbitrator(t)
	result := a.DefaultAction(context.Background())
	assert.Equal(t, codeNoPendingAction, result["error_code"])
}
