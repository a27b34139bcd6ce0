package tools

import (
	"context"

	"github.com/kadirpekel/magebridge/pkg/bridge"
)

// bridgeTool adapts one arbitrator operation to the Tool interface.
type bridgeTool struct {
	info ToolInfo
	run  func(ctx context.Context, args map[string]any) map[string]any
}

func (t *bridgeTool) GetInfo() ToolInfo      { return t.info }
func (t *bridgeTool) GetName() string        { return t.info.Name }
func (t *bridgeTool) GetDescription() string { return t.info.Description }

func (t *bridgeTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	if args == nil {
		args = map[string]any{}
	}
	return t.run(ctx, args), nil
}

var yieldModes = []string{
	"end_of_turn", "next_turn", "next_turn_skip_stack", "next_main",
	"stack_resolved", "my_turn", "end_step_before_my_turn",
	"upkeep", "draw", "precombat_main", "begin_combat", "declare_attackers",
	"declare_blockers", "end_combat", "postcombat_main", "end_turn",
}

// BridgeTools builds the full tool surface over one arbitrator.
func BridgeTools(arb *bridge.Arbitrator) []Tool {
	return []Tool{
		&bridgeTool{
			info: ToolInfo{
				Name:        "get_pending",
				Description: "Report whether an action is pending and what kind it is.",
			},
			run: func(ctx context.Context, args map[string]any) map[string]any {
				return arb.GetPending()
			},
		},
		&bridgeTool{
			info: ToolInfo{
				Name:        "get_choices",
				Description: "Return the indexed choice list for the pending action, with game context.",
			},
			run: func(ctx context.Context, args map[string]any) map[string]any {
				return arb.GetChoices(ctx)
			},
		},
		&bridgeTool{
			info: ToolInfo{
				Name:        "choose",
				Description: "Resolve the pending action. Send the most specific parameter that applies; index refers to the list returned by get_choices.",
				Parameters: []ToolParameter{
					{Name: "index", Type: "number", Description: "Zero-based index into the current choices"},
					{Name: "id", Type: "string", Description: "Object UUID as an alternative to index"},
					{Name: "answer", Type: "boolean", Description: "Yes/no answer; false passes priority or cancels"},
					{Name: "amount", Type: "number", Description: "Amount for GET_AMOUNT prompts"},
					{Name: "amounts", Type: "array", Items: "number", Description: "Amounts for GET_MULTI_AMOUNT prompts"},
					{Name: "pile", Type: "number", Description: "Pile number (1 or 2) for pile prompts"},
					{Name: "text", Type: "string", Description: "Choice value by text for CHOOSE_CHOICE prompts"},
					{Name: "mana_plan", Type: "string", Description: `JSON list of payment steps, e.g. [{"tap":"<uuid>"},{"pool":"RED"}]`},
					{Name: "auto_tap", Type: "boolean", Description: "Let the bridge pick mana sources automatically"},
					{Name: "attackers", Type: "array", Items: "number", Description: "Attacker indexes to declare in order"},
					{Name: "blockers", Type: "array", Items: "number", Description: "Blocker indexes to declare in order"},
				},
			},
			run: func(ctx context.Context, args map[string]any) map[string]any {
				return arb.Choose(ctx, bridge.ChooseParams{
					Index:     intArg(args, "index"),
					ID:        strArg(args, "id"),
					Answer:    boolArg(args, "answer"),
					Amount:    intArg(args, "amount"),
					Amounts:   intsArg(args, "amounts"),
					Pile:      intArg(args, "pile"),
					Text:      strArg(args, "text"),
					ManaPlan:  args["mana_plan"],
					AutoTap:   boolArg(args, "auto_tap"),
					Attackers: intsArg(args, "attackers"),
					Blockers:  intsArg(args, "blockers"),
				})
			},
		},
		&bridgeTool{
			info: ToolInfo{
				Name:        "default_action",
				Description: "Resolve the pending action with a safe default (pass, cancel, first choice, minimum amount).",
			},
			run: func(ctx context.Context, args map[string]any) map[string]any {
				return arb.DefaultAction(ctx)
			},
		},
		&bridgeTool{
			info: ToolInfo{
				Name:        "wait",
				Description: "Block until a decision is needed, auto-passing plain priority along the way.",
				Parameters: []ToolParameter{
					{Name: "yield", Type: "string", Description: "Auto-pass-until mode", Enum: yieldModes},
				},
			},
			run: func(ctx context.Context, args map[string]any) map[string]any {
				return arb.Wait(ctx, strArg(args, "yield"))
			},
		},
		&bridgeTool{
			info: ToolInfo{
				Name:        "wait_and_choices",
				Description: "wait followed by get_choices in one call.",
				Parameters: []ToolParameter{
					{Name: "yield", Type: "string", Description: "Auto-pass-until mode", Enum: yieldModes},
				},
			},
			run: func(ctx context.Context, args map[string]any) map[string]any {
				return arb.WaitAndChoices(ctx, strArg(args, "yield"))
			},
		},
		&bridgeTool{
			info: ToolInfo{
				Name:        "send_chat",
				Description: "Send a chat message to the game. Duplicate messages within 30 seconds are suppressed.",
				Parameters: []ToolParameter{
					{Name: "message", Type: "string", Description: "Message text", Required: true},
				},
			},
			run: func(ctx context.Context, args map[string]any) map[string]any {
				return arb.SendChat(ctx, strArg(args, "message"))
			},
		},
		&bridgeTool{
			info: ToolInfo{
				Name:        "get_game_state",
				Description: "Snapshot the current game state. Pass the last cursor to get unchanged=true when nothing moved.",
				Parameters: []ToolParameter{
					{Name: "cursor", Type: "number", Description: "Cursor from a previous call"},
				},
			},
			run: func(ctx context.Context, args map[string]any) map[string]any {
				return arb.GetGameState(int64Arg(args, "cursor"))
			},
		},
		&bridgeTool{
			info: ToolInfo{
				Name:        "get_game_log",
				Description: "Read the game log: tail by default, or from a cursor, or from a player's Nth turn. cursor and since_turn are mutually exclusive.",
				Parameters: []ToolParameter{
					{Name: "max_chars", Type: "number", Description: "Tail size in characters"},
					{Name: "cursor", Type: "number", Description: "Absolute log offset from a previous call"},
					{Name: "since_turn", Type: "number", Description: "Read from this per-player turn number"},
					{Name: "since_player", Type: "string", Description: "Player for since_turn; defaults to you"},
				},
			},
			run: func(ctx context.Context, args map[string]any) map[string]any {
				maxChars := 0
				if n := intArg(args, "max_chars"); n != nil {
					maxChars = *n
				}
				sinceTurn := 0
				if n := intArg(args, "since_turn"); n != nil {
					sinceTurn = *n
				}
				return arb.GetGameLog(maxChars, int64Arg(args, "cursor"), sinceTurn, strArg(args, "since_player"))
			},
		},
		&bridgeTool{
			info: ToolInfo{
				Name:        "get_oracle_text",
				Description: "Look up rules text by card name or in-game object id. Provide exactly one source.",
				Parameters: []ToolParameter{
					{Name: "card_name", Type: "string", Description: "One card name"},
					{Name: "card_names", Type: "array", Items: "string", Description: "Several card names"},
					{Name: "object_id", Type: "string", Description: "One in-game object UUID"},
					{Name: "object_ids", Type: "array", Items: "string", Description: "Several in-game object UUIDs"},
				},
			},
			run: func(ctx context.Context, args map[string]any) map[string]any {
				return arb.OracleText(bridge.OracleParams{
					CardName:  strArg(args, "card_name"),
					CardNames: strsArg(args, "card_names"),
					ObjectID:  strArg(args, "object_id"),
					ObjectIDs: strsArg(args, "object_ids"),
				})
			},
		},
		&bridgeTool{
			info: ToolInfo{
				Name:        "get_decklist",
				Description: "Dump the deck the player was constructed with.",
			},
			run: func(ctx context.Context, args map[string]any) map[string]any {
				return arb.Decklist()
			},
		},
	}
}
