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
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/magebridge/pkg/config"
	"github.com/kadirpekel/magebridge/pkg/game"
)

// sentCall records one send the fake client saw.
type sentCall struct {
	kind   string
	boolV  bool
	uuidV  uuid.UUID
	strV   string
	intV   int
	manaV  game.ManaType
	action string
	chat   string
}

// fakeClient implements engine.Client and records everything.
type fakeClient struct {
	mu    sync.Mutex
	calls []sentCall
}

func (f *fakeClient) record(c sentCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeClient) SendBoolean(_ context.Context, _ uuid.UUID, value bool) error {
	f.record(sentCall{kind: "boolean", boolV: value})
	return nil
}

func (f *fakeClient) SendUUID(_ context.Context, _, objectID uuid.UUID) error {
	f.record(sentCall{kind: "uuid", uuidV: objectID})
	return nil
}

func (f *fakeClient) SendString(_ context.Context, _ uuid.UUID, value string) error {
	f.record(sentCall{kind: "string", strV: value})
	return nil
}

func (f *fakeClient) SendInteger(_ context.Context, _ uuid.UUID, value int) error {
	f.record(sentCall{kind: "integer", intV: value})
	return nil
}

func (f *fakeClient) SendManaType(_ context.Context, _, _ uuid.UUID, mana game.ManaType) error {
	f.record(sentCall{kind: "mana", manaV: mana})
	return nil
}

func (f *fakeClient) SendPlayerAction(_ context.Context, _ uuid.UUID, action string) error {
	f.record(sentCall{kind: "action", action: action})
	return nil
}

func (f *fakeClient) SendChatMessage(_ context.Context, _ uuid.UUID, message string) error {
	f.record(sentCall{kind: "chat", chat: message})
	return nil
}

func (f *fakeClient) JoinChat(_ context.Context, _ uuid.UUID) error {
	f.record(sentCall{kind: "join"})
	return nil
}

func (f *fakeClient) sent() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeClient) last() (sentCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return sentCall{}, false
	}
	return f.calls[len(f.calls)-1], true
}

func (f *fakeClient) ofKind(kind string) []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentCall
	for _, c := range f.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

const testPlayer = "Alice"

func newTestArbitrator(t *testing.T, mutate ...func(*config.BridgeConfig)) (*Arbitrator, *fakeClient) {
	t.Helper()
	cfg := config.BridgeConfig{ActionDelay: -1}
	for _, m := range mutate {
		m(&cfg)
	}
	fc := &fakeClient{}
	a := New(cfg, testPlayer, fc, Options{})
	t.Cleanup(a.Close)
	return a, fc
}

func startTestGame(a *Arbitrator) uuid.UUID {
	gameID := uuid.New()
	a.HandleCallback(&game.Callback{
		GameID:   gameID,
		Kind:     game.KindStartGame,
		PlayerID: uuid.New(),
	})
	return gameID
}

// installPending places a callback in the pending slot directly, bypassing
// the intake auto-resolutions.
func installPending(a *Arbitrator, cb *game.Callback) {
	a.mu.Lock()
	a.observeView(cb.View)
	a.storePending(cb)
	a.mu.Unlock()
	a.cond.Broadcast()
}

func TestPendingSlotSupersede(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)

	a.mu.Lock()
	a.storePending(&game.Callback{GameID: gameID, Kind: game.KindAsk})
	stale := a.pending.seq
	a.storePending(&game.Callback{GameID: gameID, Kind: game.KindAsk})
	fresh := a.pending.seq

	assert.False(t, a.clearPendingIf(stale), "stale seq must not clear the slot")
	assert.NotNil(t, a.pending)
	assert.True(t, a.clearPendingIf(fresh))
	assert.Nil(t, a.pending)
	a.mu.Unlock()
}

func TestForcedSingleRequiredTarget(t *testing.T) {
	a, fc := newTestArbitrator(t)
	gameID := startTestGame(a)
	target := uuid.New()

	a.HandleCallback(&game.Callback{
		GameID:   gameID,
		Kind:     game.KindTarget,
		Required: true,
		Targets:  []uuid.UUID{target},
	})

	last, ok := fc.last()
	require.True(t, ok)
	assert.Equal(t, "uuid", last.kind)
	assert.Equal(t, target, last.uuidV)

	pending := a.GetPending()
	assert.Equal(t, false, pending["action_pending"])
}

func TestRequiredTargetWithChoicesIsPending(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)

	a.HandleCallback(&game.Callback{
		GameID:   gameID,
		Kind:     game.KindTarget,
		Required: true,
		Targets:  []uuid.UUID{uuid.New(), uuid.New()},
	})

	pending := a.GetPending()
	assert.Equal(t, true, pending["action_pending"])
	assert.Equal(t, "TARGET", pending["action_type"])
}

func TestDeathDetection(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)

	a.HandleCallback(&game.Callback{
		GameID:  gameID,
		Kind:    game.KindUpdate,
		Message: testPlayer + " has lost the game.",
	})

	result := a.GetPending()
	assert.Equal(t, true, result["player_dead"])
}

func TestLandDropCounting(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)

	a.HandleCallback(&game.Callback{
		GameID:  gameID,
		Kind:    game.KindUpdate,
		Message: "<b>" + testPlayer + "</b> plays Mountain",
	})
	a.HandleCallback(&game.Callback{
		GameID:  gameID,
		Kind:    game.KindUpdate,
		Message: "<b>Bob</b> plays Island",
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	assert.Equal(t, 1, a.landsPlayedThisTurn)
}

func TestCastOwnerExtraction(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)
	spell := uuid.New()

	a.HandleCallback(&game.Callback{
		GameID:  gameID,
		Kind:    game.KindUpdate,
		Message: "<b>Bob</b> casts <card id='" + spell.String() + "'>Shock</card>",
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	assert.Equal(t, "Bob", a.castOwners[spell])
}

func TestTurnChangeResetsTurnState(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)
	failed := uuid.New()

	a.HandleCallback(&game.Callback{
		GameID: gameID,
		Kind:   game.KindUpdate,
		View:   &game.View{Turn: 1, ActivePlayer: testPlayer},
	})

	a.mu.Lock()
	a.failedManaCasts[failed] = true
	a.interactionsThisTurn = 7
	a.mu.Unlock()

	a.HandleCallback(&game.Callback{
		GameID: gameID,
		Kind:   game.KindUpdate,
		View:   &game.View{Turn: 2, ActivePlayer: "Bob"},
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	assert.False(t, a.failedManaCasts[failed])
	assert.Equal(t, 0, a.interactionsThisTurn)
}

func TestStartGameJoinsChat(t *testing.T) {
	a, fc := newTestArbitrator(t)
	startTestGame(a)
	assert.Len(t, fc.ofKind("join"), 1)
}

func TestChatDedup(t *testing.T) {
	a, fc := newTestArbitrator(t)
	startTestGame(a)
	ctx := context.Background()

	first := a.SendChat(ctx, "good game")
	assert.Equal(t, true, first["success"])

	second := a.SendChat(ctx, "good game")
	assert.Equal(t, true, second["suppressed"])
	assert.Len(t, fc.ofKind("chat"), 1)

	third := a.SendChat(ctx, "different message")
	assert.Nil(t, third["suppressed"])
	assert.Len(t, fc.ofKind("chat"), 2)
}

func TestRecentChatDelivery(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)

	a.HandleCallback(&game.Callback{
		GameID: gameID,
		Kind:   game.KindChat,
		Chat:   &game.ChatMessage{Player: "Bob", Text: "hello"},
	})

	result := a.GetPending()
	recent, ok := result["recent_chat"].([]game.ChatMessage)
	require.True(t, ok)
	require.Len(t, recent, 1)
	assert.Equal(t, "hello", recent[0].Text)

	// Drained once; the next call carries nothing.
	again := a.GetPending()
	assert.Nil(t, again["recent_chat"])
}

func TestQueuedCombatConsumption(t *testing.T) {
	a, fc := newTestArbitrator(t)
	gameID := startTestGame(a)
	ctx := context.Background()

	c1, c2, c3 := uuid.New(), uuid.New(), uuid.New()
	attackers := []any{c1.String(), c2.String(), c3.String()}

	installPending(a, &game.Callback{
		GameID:  gameID,
		Kind:    game.KindSelect,
		Options: map[string]any{"possibleAttackers": attackers},
	})

	result := a.Choose(ctx, ChooseParams{Attackers: []int{0, 1, 2}})
	require.Equal(t, true, result["success"], "choose failed: %v", result)
	assert.Equal(t, "declared_attackers", result["action_taken"])

	sent := fc.ofKind("uuid")
	require.Len(t, sent, 1)
	assert.Equal(t, c1, sent[0].uuidV)

	// The engine re-prompts; the queue feeds the next declaration.
	a.HandleCallback(&game.Callback{
		GameID:  gameID,
		Kind:    game.KindSelect,
		Options: map[string]any{"possibleAttackers": []any{c2.String(), c3.String()}},
	})
	sent = fc.ofKind("uuid")
	require.Len(t, sent, 2)
	assert.Equal(t, c2, sent[1].uuidV)

	a.HandleCallback(&game.Callback{
		GameID:  gameID,
		Kind:    game.KindSelect,
		Options: map[string]any{"possibleAttackers": []any{c3.String()}},
	})
	sent = fc.ofKind("uuid")
	require.Len(t, sent, 3)
	assert.Equal(t, c3, sent[2].uuidV)
}

func TestQueuedCombatDroppedWhenEnumerationEnds(t *testing.T) {
	a, _ := newTestArbitrator(t)
	gameID := startTestGame(a)

	a.mu.Lock()
	a.queuedCombat = []uuid.UUID{uuid.New()}
	a.mu.Unlock()

	// A SELECT without combat options means declarations are over.
	a.HandleCallback(&game.Callback{GameID: gameID, Kind: game.KindSelect})

	a.mu.Lock()
	defer a.mu.Unlock()
	assert.Empty(t, a.queuedCombat)
	assert.NotNil(t, a.pending, "the non-combat SELECT still needs an answer")
}

func TestDecklist(t *testing.T) {
	a, _ := newTestArbitrator(t)
	result := a.Decklist()
	assert.Equal(t, false, result["success"])

	// With a deck configured the dump is verbatim.
	fc := &fakeClient{}
	b := New(config.BridgeConfig{ActionDelay: -1}, testPlayer, fc, Options{
		Deck: testDeck(),
	})
	defer b.Close()
	result = b.Decklist()
	assert.Equal(t, true, result["success"])
	assert.Equal(t, 24, result["size"])
}
