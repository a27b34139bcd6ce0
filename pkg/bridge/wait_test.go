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
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/magebridge/pkg/game"
)

func TestWaitNoAction(t *testing.T) {
	a, _ := newTestArbitrator(t)
	startTestGame(a)

	result := a.Wait(context.Background(), "")
	assert.Equal(t, true, result["success"])
	assert.Equal(t, "no_action", result["stop_reason"])
	assert.Equal(t, 0, result["actions_passed"])
}

func TestWaitAutoPassesPlainPriority(t *testing.T) {
	a, fc := newTestArbitrator(t)
	gameID := startTestGame(a)

	// A SELECT with nothing castable is a plain priority prompt.
	installPending(a, &game.Callback{GameID: gameID, Kind: game.KindSelect})

	result := a.Wait(context.Background(), "")
	assert.Equal(t, "passed", result["stop_reason"])
	assert.Equal(t, 1, result["actions_passed"])

	passes := fc.ofKind("boolean")
	require.Len(t, passes, 1)
	assert.False(t, passes[0].boolV)
}

func TestWaitStopsOnNonPriorityAction(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)
	installPending(a, &game.Callback{GameID: gameID, Kind: game.KindAsk, Message: "Mulligan?"})

	result := a.Wait(context.Background(), "")
	assert.Equal(t, "non_priority_action", result["stop_reason"])
	assert.Equal(t, "ASK", result["action_type"])
	assert.Equal(t, "Mulligan?", result["message"])

	// The action is still pending for the agent.
	pending := a.GetPending()
	assert.Equal(t, true, pending["action_pending"])
}

func TestWaitStopsOnCombat(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)
	installPending(a, &game.Callback{
		GameID:  gameID,
		Kind:    game.KindSelect,
		Options: map[string]any{"possibleAttackers": []any{uuid.New().String()}},
	})

	result := a.Wait(context.Background(), "")
	assert.Equal(t, "combat", result["stop_reason"])
}

func TestWaitStopsOnPlayableCards(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)
	spell := uuid.New()
	installPending(a, &game.Callback{
		GameID: gameID,
		Kind:   game.KindSelect,
		View:   playableView(spell),
	})

	result := a.Wait(context.Background(), "")
	assert.Equal(t, "playable_cards", result["stop_reason"])
	assert.Equal(t, true, result["has_playable_cards"])
}

func TestWaitAutoCancelsOptionalEmptyTarget(t *testing.T) {
	a, fc := newTestArbitrator(t)
	gameID := startTestGame(a)
	installPending(a, &game.Callback{GameID: gameID, Kind: game.KindTarget})

	result := a.Wait(context.Background(), "")
	assert.Equal(t, "no_action", result["stop_reason"])

	cancels := fc.ofKind("boolean")
	require.Len(t, cancels, 1)
	assert.False(t, cancels[0].boolV)
}

func TestWaitUnknownYield(t *testing.T) {
	a, _ := newTestArbitrator(t)
	result := a.Wait(context.Background(), "whenever")
	assert.Equal(t, false, result["success"])
	assert.Equal(t, codeMissingParam, result["error_code"])
}

func TestWaitGameOver(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)
	a.HandleCallback(&game.Callback{GameID: gameID, Kind: game.KindGameOver})

	result := a.Wait(context.Background(), "my_turn")
	assert.Equal(t, "game_over", result["stop_reason"])
}

func TestWaitCancelledContext(t *testing.T) {
	a, _ := newTestArbitrator(t)
	startTestGame(a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := a.Wait(ctx, "UPKEEP")
	assert.Equal(t, "interrupted", result["stop_reason"])
}

func TestWaitInterruptedByClose(t *testing.T) {
	a, _ := newTestArbitrator(t)
	startTestGame(a)

	done := make(chan map[string]any, 1)
	go func() {
		done <- a.Wait(context.Background(), "UPKEEP")
	}()

	time.Sleep(20 * time.Millisecond)
	a.Close()

	select {
	case result := <-done:
		assert.Equal(t, "interrupted", result["stop_reason"])
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not return after Close")
	}
}

func TestWaitServerYieldSendsPlayerAction(t *testing.T) {
	a, fc := newTestArbitrator(t)
	startTestGame(a)

	done := make(chan map[string]any, 1)
	go func() {
		done <- a.Wait(context.Background(), "my_turn")
	}()

	require.Eventually(t, func() bool {
		return len(fc.ofKind("action")) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "PASS_PRIORITY_UNTIL_MY_NEXT_TURN", fc.ofKind("action")[0].action)

	a.Close()
	<-done
}

func TestWaitServerYieldCompletes(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)

	done := make(chan map[string]any, 1)
	go func() {
		done <- a.Wait(context.Background(), "stack_resolved")
	}()

	time.Sleep(20 * time.Millisecond)

	// Under a server yield the engine only prompts again once the yield
	// target is reached; a plain SELECT means the wait is over.
	a.HandleCallback(&game.Callback{GameID: gameID, Kind: game.KindSelect})

	select {
	case result := <-done:
		assert.Equal(t, "yield_complete", result["stop_reason"])
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not complete after the yield prompt")
	}
}

func TestWaitStepYieldReachesStep(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)

	a.HandleCallback(&game.Callback{
		GameID: gameID,
		Kind:   game.KindUpdate,
		View:   &game.View{Turn: 1, Step: "UPKEEP", ActivePlayer: testPlayer},
	})

	done := make(chan map[string]any, 1)
	go func() {
		done <- a.Wait(context.Background(), "declare attackers")
	}()

	time.Sleep(20 * time.Millisecond)

	// Plain priority at an earlier step is auto-passed.
	a.HandleCallback(&game.Callback{
		GameID: gameID,
		Kind:   game.KindSelect,
		View:   &game.View{Turn: 1, Step: "BEGIN_COMBAT", ActivePlayer: testPlayer},
	})
	time.Sleep(20 * time.Millisecond)

	a.HandleCallback(&game.Callback{
		GameID: gameID,
		Kind:   game.KindSelect,
		View:   &game.View{Turn: 1, Step: "DECLARE_ATTACKERS", ActivePlayer: testPlayer},
	})

	select {
	case result := <-done:
		assert.Equal(t, "yield_complete", result["stop_reason"])
		assert.Equal(t, "DECLARE_ATTACKERS", result["step"])
		assert.Equal(t, 1, result["actions_passed"])
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not complete at the target step")
	}
}

func TestWaitStepYieldMissesStep(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)

	a.HandleCallback(&game.Callback{
		GameID: gameID,
		Kind:   game.KindUpdate,
		View:   &game.View{Turn: 1, Step: "POSTCOMBAT_MAIN", ActivePlayer: testPlayer},
	})

	done := make(chan map[string]any, 1)
	go func() {
		done <- a.Wait(context.Background(), "UPKEEP")
	}()

	time.Sleep(20 * time.Millisecond)

	// The round advances past the target without a prompt at it.
	a.HandleCallback(&game.Callback{
		GameID: gameID,
		Kind:   game.KindUpdate,
		View:   &game.View{Turn: 2, Step: "DRAW", ActivePlayer: "Bob"},
	})

	select {
	case result := <-done:
		assert.Equal(t, "step_not_reached", result["stop_reason"])
		assert.Equal(t, 2, result["turn"])
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not return after the round advanced")
	}
}

func TestWaitAndChoicesMergesPayloads(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)
	installPending(a, &game.Callback{GameID: gameID, Kind: game.KindAsk, Message: "Scry?"})

	result := a.WaitAndChoices(context.Background(), "")
	assert.Equal(t, "non_priority_action", result["stop_reason"])
	assert.Equal(t, "boolean", result["response_type"])
	assert.Equal(t, true, result["action_pending"])
}
