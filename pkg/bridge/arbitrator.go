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

// Package bridge implements the callback arbitration and response engine:
// it receives the rules engine's asynchronous callbacks, auto-resolves the
// mechanical ones, exposes the rest as indexed choices to the agent, and
// validates and dispatches the agent's tool calls back to the engine.
//
// The rendezvous between the two event streams is a single mutex-guarded
// pending-action slot plus a condition variable. Every clear of the slot
// is a compare-and-swap against the sequence number observed when the
// decision to respond was made, so a response is never sent for a callback
// that a fresher one has superseded.
package bridge

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/magebridge/pkg/cards"
	"github.com/kadirpekel/magebridge/pkg/config"
	"github.com/kadirpekel/magebridge/pkg/engine"
	"github.com/kadirpekel/magebridge/pkg/game"
	"github.com/kadirpekel/magebridge/pkg/gamelog"
	"github.com/kadirpekel/magebridge/pkg/observability"
)

const defaultActionDelay = 500 * time.Millisecond

// pendingAction is the single actionable callback awaiting a response.
type pendingAction struct {
	cb     *game.Callback
	prompt string
	at     time.Time
	seq    uint64
}

// Arbitrator owns the pending-action slot and the tool-call surface.
type Arbitrator struct {
	cfg        config.BridgeConfig
	client     engine.Client
	dispatcher *Dispatcher
	db         cards.Database
	deck       *cards.Deck
	metrics    *observability.Metrics
	logger     *slog.Logger
	errLog     *ErrorLog
	eventLog   *EventLog

	mu   sync.Mutex
	cond *sync.Cond

	gameID     uuid.UUID
	playerID   uuid.UUID
	playerName string

	view     *game.View
	rounds   game.RoundTracker
	gameLog  *gamelog.Buffer
	rewriter *gamelog.TurnRewriter

	pending *pendingAction
	seq     uint64

	snapshot *Snapshot

	plan             *ManaPlan
	failedManaCasts  map[uuid.UUID]bool
	poolManaAttempts int
	poolManaTarget   uuid.UUID
	lastManaPrompt   string
	payingFor        uuid.UUID

	interactionsThisTurn int
	landsPlayedThisTurn  int
	sendsCompleted       int

	queuedCombat []uuid.UUID

	chat           *chatRing
	lastChatSent   string
	lastChatSentAt time.Time

	castOwners map[uuid.UUID]string

	stateCursor    int64
	stateSignature string

	lastActionableAt time.Time
	lastCallbackAt   time.Time
	lastNudgeAt      time.Time

	gameOver   bool
	playerDead bool
	onGameOver func()

	closed chan struct{}
}

// Options configures an Arbitrator beyond its required collaborators.
type Options struct {
	Deck     *cards.Deck
	Database cards.Database
	Metrics  *observability.Metrics
	Logger   *slog.Logger
	ErrorLog *ErrorLog
	EventLog *EventLog

	// OnGameOver, when set, is invoked once per GAME_OVER callback.
	OnGameOver func()
}

// New creates an Arbitrator for one player.
func New(cfg config.BridgeConfig, playerName string, client engine.Client, opts Options) *Arbitrator {
	cfg.SetDefaults()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &Arbitrator{
		cfg:             cfg,
		client:          client,
		db:              opts.Database,
		deck:            opts.Deck,
		metrics:         opts.Metrics,
		logger:          logger,
		errLog:          opts.ErrorLog,
		eventLog:        opts.EventLog,
		playerName:      playerName,
		gameLog:         gamelog.NewBuffer(cfg.GameLogCap),
		rewriter:        gamelog.NewTurnRewriter(),
		failedManaCasts: make(map[uuid.UUID]bool),
		chat:            newChatRing(chatRingSize),
		castOwners:      make(map[uuid.UUID]string),
		onGameOver:      opts.OnGameOver,
		closed:          make(chan struct{}),
	}
	a.cond = sync.NewCond(&a.mu)
	a.dispatcher = NewDispatcher(client, logger, opts.Metrics)
	return a
}

// Close releases waiters; subsequent waits return interrupted.
func (a *Arbitrator) Close() {
	a.mu.Lock()
	select {
	case <-a.closed:
	default:
		close(a.closed)
	}
	a.mu.Unlock()
	a.cond.Broadcast()
}

func (a *Arbitrator) isClosed() bool {
	select {
	case <-a.closed:
		return true
	default:
		return false
	}
}

// HandleCallback is the engine intake, called from the session's read
// goroutine. Effects are published before waiters are notified.
func (a *Arbitrator) HandleCallback(cb *game.Callback) {
	ctx := context.Background()
	a.metrics.ObserveCallback(string(cb.Kind))
	a.eventLog.Record(cb)

	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.cond.Broadcast()

	a.lastCallbackAt = time.Now()

	if game.Classify(cb.Kind) == game.ClassPassive {
		a.handlePassive(cb)
		return
	}

	// The engine has moved on from whatever we last sent.
	a.dispatcher.ClearTracked(cb.GameID)
	a.lastActionableAt = time.Now()

	a.observeView(cb.View)

	// Any actionable kind outside the mana-payment family means the
	// payment, if one was in progress, is over.
	switch cb.Kind {
	case game.KindPlayMana, game.KindPlayXMana, game.KindChooseAbility:
	default:
		a.clearManaPayment()
	}

	switch cb.Kind {
	case game.KindStartGame:
		a.startGame(cb)
		return

	case game.KindGameOver:
		a.endGame()
		return

	case game.KindChooseAbility:
		if a.autoResolveAbility(ctx, cb) {
			return
		}

	case game.KindTarget:
		// A required target with exactly one legal choice is forced;
		// the engine rejects cancels anyway.
		if cb.Required {
			if legal := a.legalTargets(cb); len(legal) == 1 {
				if err := a.dispatcher.SendUUID(ctx, cb.GameID, legal[0]); err != nil {
					a.logger.Error("failed to send forced target", "error", err)
				}
				return
			}
		}

	case game.KindPlayMana, game.KindPlayXMana:
		if a.handleManaCallback(ctx, cb) {
			return
		}

	case game.KindSelect:
		if a.consumeQueuedCombat(ctx, cb) {
			return
		}
	}

	a.storePending(cb)
}

// storePending installs cb as the pending action, replacing any previous
// one atomically and invalidating the choice snapshot. Caller holds mu.
func (a *Arbitrator) storePending(cb *game.Callback) {
	a.seq++
	a.pending = &pendingAction{
		cb:     cb,
		prompt: cb.Message,
		at:     time.Now(),
		seq:    a.seq,
	}
	a.snapshot = nil
}

// clearPendingIf clears the slot only if it still holds the observed
// sequence number. Caller holds mu. Reports whether the clear happened.
func (a *Arbitrator) clearPendingIf(seq uint64) bool {
	if a.pending == nil || a.pending.seq != seq {
		return false
	}
	a.metrics.ObservePendingAge(time.Since(a.pending.at).Seconds())
	a.pending = nil
	a.snapshot = nil
	return true
}

func (a *Arbitrator) startGame(cb *game.Callback) {
	a.gameID = cb.GameID
	a.playerID = cb.PlayerID
	a.gameOver = false
	a.playerDead = false
	a.pending = nil
	a.snapshot = nil
	a.plan = nil
	a.failedManaCasts = make(map[uuid.UUID]bool)
	a.poolManaAttempts = 0
	a.poolManaTarget = uuid.Nil
	a.interactionsThisTurn = 0
	a.landsPlayedThisTurn = 0
	a.castOwners = make(map[uuid.UUID]string)
	a.queuedCombat = nil
	a.clearManaPayment()
	a.rounds.Reset()
	a.rewriter.Reset()
	a.logger.Info("game started", "game_id", a.gameID, "player_id", a.playerID)

	if err := a.client.JoinChat(context.Background(), a.gameID); err != nil {
		a.logger.Warn("failed to join game chat", "error", err)
	}
}

func (a *Arbitrator) endGame() {
	a.gameOver = true
	a.pending = nil
	a.snapshot = nil
	a.plan = nil
	a.logger.Info("game over", "game_id", a.gameID)

	if a.onGameOver != nil {
		go a.onGameOver()
	}
}

// observeView folds a view into the cached state and resets per-turn
// counters on turn change. Caller holds mu.
func (a *Arbitrator) observeView(v *game.View) {
	if v == nil {
		return
	}
	a.view = v
	if a.rounds.Observe(v) {
		a.resetTurnState()
	}
}

// resetTurnState clears everything scoped to one turn. Caller holds mu.
func (a *Arbitrator) resetTurnState() {
	a.interactionsThisTurn = 0
	a.landsPlayedThisTurn = 0
	a.failedManaCasts = make(map[uuid.UUID]bool)
	a.plan = nil
	a.poolManaAttempts = 0
	a.poolManaTarget = uuid.Nil
	a.queuedCombat = nil
	a.clearManaPayment()
}

// clearManaPayment forgets the in-progress payment context that scopes the
// CHOOSE_ABILITY auto-resolution. Caller holds mu.
func (a *Arbitrator) clearManaPayment() {
	a.lastManaPrompt = ""
	a.payingFor = uuid.Nil
}

// consumeQueuedCombat feeds the next queued attacker or blocker to a combat
// re-prompt. The engine enumerates declarations one at a time; a SELECT
// without combat options means the enumeration ended and the queue is
// stale. Returns true when the callback was resolved here. Caller holds mu.
func (a *Arbitrator) consumeQueuedCombat(ctx context.Context, cb *game.Callback) bool {
	if len(a.queuedCombat) == 0 {
		return false
	}
	if len(cb.PossibleAttackers()) == 0 && len(cb.PossibleBlockers()) == 0 {
		a.queuedCombat = nil
		return false
	}
	next := a.queuedCombat[0]
	a.queuedCombat = a.queuedCombat[1:]
	if err := a.dispatcher.SendUUID(ctx, cb.GameID, next); err != nil {
		a.logger.Error("failed to send queued combat declaration", "error", err)
	}
	return true
}

var (
	castLinePattern = regexp.MustCompile(`(?i)<b>([^<]+)</b>\s+casts\s+<card[^>]*id='([0-9a-fA-F-]{36})'`)
	htmlTagPattern  = regexp.MustCompile(`<[^>]+>`)
)

// handlePassive folds UPDATE / CHAT / ERROR callbacks into the cached
// state. Passive callbacks never touch the pending slot or the tracked
// response. Caller holds mu.
func (a *Arbitrator) handlePassive(cb *game.Callback) {
	a.observeView(cb.View)

	switch cb.Kind {
	case game.KindChat:
		if cb.Chat != nil {
			msg := *cb.Chat
			if msg.At.IsZero() {
				msg.At = time.Now()
			}
			a.chat.add(msg)
			a.appendLogLine(msg.Text)
		}

	case game.KindUpdate, game.KindError:
		if cb.Message != "" {
			a.appendLogLine(cb.Message)
		}
	}
}

// appendLogLine rewrites turn markers, updates derived counters, and
// appends to the game log. Caller holds mu.
func (a *Arbitrator) appendLogLine(line string) {
	active := ""
	if a.view != nil {
		active = a.view.ActivePlayer
	}
	if rewritten, _, ok := a.rewriter.Rewrite(line, active); ok {
		line = rewritten
	}

	plain := htmlTagPattern.ReplaceAllString(line, "")

	// The engine distinguishes "casts" and "activates"; a bare "plays"
	// line for us is always a land drop.
	if strings.HasPrefix(plain, a.playerName+" plays ") {
		a.landsPlayedThisTurn++
	}

	if strings.Contains(plain, a.playerName+" has lost the game") {
		a.playerDead = true
		a.logger.Info("player death observed in game log", "player", a.playerName)
	}

	if m := castLinePattern.FindStringSubmatch(line); m != nil {
		if id, err := uuid.Parse(m[2]); err == nil {
			a.castOwners[id] = m[1]
		}
	}

	a.gameLog.Append(plain)
}

// playableEntry resolves an object against the cached view's playable map.
// Caller holds mu.
func (a *Arbitrator) playableEntry(id uuid.UUID) (game.PlayableEntry, bool) {
	if a.view == nil || a.view.Playable == nil {
		return game.PlayableEntry{}, false
	}
	entry, ok := a.view.Playable[id]
	return entry, ok
}

// ownManaPool returns our pool from the freshest view available.
func (a *Arbitrator) ownManaPool(v *game.View) game.ManaPool {
	if v == nil {
		v = a.view
	}
	if v == nil {
		return game.ManaPool{}
	}
	if p := v.Player(a.playerName); p != nil {
		return p.ManaPool
	}
	return game.ManaPool{}
}

// legalTargets resolves a TARGET callback's legal set: explicit targets,
// then the options' possibleTargets, then the offered cards.
func (a *Arbitrator) legalTargets(cb *game.Callback) []uuid.UUID {
	if len(cb.Targets) > 0 {
		return cb.Targets
	}
	if ids := cb.PossibleTargets(); len(ids) > 0 {
		return ids
	}
	var ids []uuid.UUID
	for _, c := range cb.Cards {
		ids = append(ids, c.ID)
	}
	return ids
}

// autoResolveAbility handles CHOOSE_ABILITY arrivals that belong to a mana
// payment in progress. With a plan active, a single offered ability is
// selected and anything else cancels the spell (the plan cannot express
// the choice). With no plan but a payment in progress, a naive score picks
// the ability covering the most colors the mana prompt still needs.
// Returns true when resolved. Caller holds mu.
func (a *Arbitrator) autoResolveAbility(ctx context.Context, cb *game.Callback) bool {
	if len(cb.Abilities) == 0 {
		return false
	}

	keys := sortedAbilityKeys(cb.Abilities)

	if a.plan != nil {
		if len(keys) == 1 {
			if err := a.dispatcher.SendString(ctx, cb.GameID, keys[0]); err != nil {
				a.logger.Error("failed to send ability choice", "error", err)
			}
			return true
		}
		a.logger.Warn("multi-ability prompt under a mana plan, cancelling spell",
			"abilities", len(keys))
		a.failManaCast(ctx, cb, a.payingFor)
		return true
	}

	if a.lastManaPrompt == "" || a.payingFor == uuid.Nil {
		return false
	}

	needed := game.PromptManaTypes(a.lastManaPrompt)
	best := keys[0]
	bestScore := -1
	for _, key := range keys {
		desc := cb.Abilities[key]
		score := 0
		for _, t := range needed {
			if coversManaType(desc, t) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = key, score
		}
	}
	if err := a.dispatcher.SendString(ctx, cb.GameID, best); err != nil {
		a.logger.Error("failed to send ability choice", "error", err)
	}
	return true
}

func coversManaType(desc string, t game.ManaType) bool {
	letters := map[game.ManaType]string{
		game.ManaWhite: "{W}", game.ManaBlue: "{U}", game.ManaBlack: "{B}",
		game.ManaRed: "{R}", game.ManaGreen: "{G}", game.ManaColorless: "{C}",
	}
	return strings.Contains(desc, letters[t])
}

func sortedAbilityKeys(abilities map[string]string) []string {
	keys := make([]string, 0, len(abilities))
	for k := range abilities {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sortedPlayableIDs iterates the playable map in a stable order.
func sortedPlayableIDs(playable map[uuid.UUID]game.PlayableEntry) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(playable))
	for id := range playable {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return strings.Compare(ids[i].String(), ids[j].String()) < 0
	})
	return ids
}

// finish stamps the common envelope fields on a tool result. recent_chat
// carries chat from other players that arrived since the last tool call.
func (a *Arbitrator) finish(result map[string]any) map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finishLocked(result)
}

func (a *Arbitrator) finishLocked(result map[string]any) map[string]any {
	if result == nil {
		result = map[string]any{}
	}
	if a.gameOver {
		result["game_over"] = true
	}
	if a.playerDead {
		result["player_dead"] = true
	}
	if recent := a.chat.drainRecent(a.playerName); len(recent) > 0 {
		result["recent_chat"] = recent
	}
	return result
}

// applyActionDelay slows agent-driven sends down for passive
// personalities. The first WarmupActions sends are held to at least the
// default delay even when a shorter one is configured. A negative
// ActionDelay disables the delay entirely, warmup included.
func (a *Arbitrator) applyActionDelay() {
	a.mu.Lock()
	delay := a.cfg.ActionDelay
	if delay >= 0 && a.sendsCompleted < a.cfg.WarmupActions && delay < defaultActionDelay {
		delay = defaultActionDelay
	}
	a.sendsCompleted++
	a.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
}
