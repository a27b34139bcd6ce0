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

// Package config defines the bridge configuration tree and its yaml loader.
//
// Every section follows the same pattern: plain structs with yaml tags,
// SetDefaults() filling zero values, Validate() rejecting nonsense. The
// loader parses yaml, expands ${VAR} / ${VAR:-default} environment
// references, and decodes with mapstructure.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Player  PlayerConfig  `yaml:"player" mapstructure:"player"`
	Engine  EngineConfig  `yaml:"engine" mapstructure:"engine"`
	Bridge  BridgeConfig  `yaml:"bridge" mapstructure:"bridge"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// PlayerConfig is the player identity and deck.
type PlayerConfig struct {
	// Name is the display identity; it is also matched against the game
	// log to detect our own death.
	Name string `yaml:"name" mapstructure:"name"`

	// DeckPath points at the yaml deck list.
	DeckPath string `yaml:"deck_path,omitempty" mapstructure:"deck_path"`

	// CardFile optionally points at a local yaml card database.
	CardFile string `yaml:"card_file,omitempty" mapstructure:"card_file"`
}

// EngineConfig locates the rules engine.
type EngineConfig struct {
	// URL is the engine websocket endpoint.
	URL string `yaml:"url" mapstructure:"url"`

	// KeepAliveAfterGame keeps the process running after GAME_OVER.
	KeepAliveAfterGame bool `yaml:"keep_alive_after_game,omitempty" mapstructure:"keep_alive_after_game"`
}

// BridgeConfig carries the arbitration timing and cap constants. The
// defaults are the empirically tuned values; they are configuration, not
// code, because every one of them is a guess about a remote server's
// behavior.
type BridgeConfig struct {
	// MaxInteractionsPerTurn caps choose calls per turn before the
	// bridge starts auto-passing (min 5).
	MaxInteractionsPerTurn int `yaml:"max_interactions_per_turn,omitempty" mapstructure:"max_interactions_per_turn"`

	// RetryWindow is how long a sent response may go unanswered before
	// the single lost-response retry fires.
	RetryWindow time.Duration `yaml:"retry_window,omitempty" mapstructure:"retry_window"`

	// StallNudge is the quiet period after which a speculative pass
	// priority is sent while waiting (requires transport evidence).
	StallNudge time.Duration `yaml:"stall_nudge,omitempty" mapstructure:"stall_nudge"`

	// StallNudgeFallback nudges even without transport evidence.
	StallNudgeFallback time.Duration `yaml:"stall_nudge_fallback,omitempty" mapstructure:"stall_nudge_fallback"`

	// ChatDedupWindow suppresses identical outgoing chat messages.
	ChatDedupWindow time.Duration `yaml:"chat_dedup_window,omitempty" mapstructure:"chat_dedup_window"`

	// PoolManaAttemptCap breaks pool-payment loops.
	PoolManaAttemptCap int `yaml:"pool_mana_attempt_cap,omitempty" mapstructure:"pool_mana_attempt_cap"`

	// ActionDelay slows the bridge down for passive personalities. The
	// first WarmupActions sends are delayed even if ActionDelay is
	// raised later. Negative disables the delay entirely.
	ActionDelay   time.Duration `yaml:"action_delay,omitempty" mapstructure:"action_delay"`
	WarmupActions int           `yaml:"warmup_actions,omitempty" mapstructure:"warmup_actions"`

	// GameLogCap bounds the rolling game log buffer, in bytes.
	GameLogCap int `yaml:"game_log_cap,omitempty" mapstructure:"game_log_cap"`

	// ErrorLogPath and EventLogPath are the two persisted log files.
	ErrorLogPath string `yaml:"error_log_path,omitempty" mapstructure:"error_log_path"`
	EventLogPath string `yaml:"event_log_path,omitempty" mapstructure:"event_log_path"`
}

// ServerConfig configures the MCP tool server.
type ServerConfig struct {
	Host string `yaml:"host,omitempty" mapstructure:"host"`
	Port int    `yaml:"port,omitempty" mapstructure:"port"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" mapstructure:"level"`
	Format string `yaml:"format,omitempty" mapstructure:"format"`
	File   string `yaml:"file,omitempty" mapstructure:"file"`
}

// MetricsConfig enables the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty" mapstructure:"enabled"`
}

// SetDefaults fills zero values across all sections.
func (c *Config) SetDefaults() {
	c.Bridge.SetDefaults()
	c.Server.SetDefaults()
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "simple"
	}
}

// SetDefaults fills the empirical bridge constants.
func (c *BridgeConfig) SetDefaults() {
	if c.MaxInteractionsPerTurn == 0 {
		c.MaxInteractionsPerTurn = 25
	}
	if c.RetryWindow == 0 {
		c.RetryWindow = 25 * time.Second
	}
	if c.StallNudge == 0 {
		c.StallNudge = 10 * time.Second
	}
	if c.StallNudgeFallback == 0 {
		c.StallNudgeFallback = 60 * time.Second
	}
	if c.ChatDedupWindow == 0 {
		c.ChatDedupWindow = 30 * time.Second
	}
	if c.PoolManaAttemptCap == 0 {
		c.PoolManaAttemptCap = 10
	}
	if c.ActionDelay == 0 {
		c.ActionDelay = 500 * time.Millisecond
	}
	if c.WarmupActions == 0 {
		c.WarmupActions = 20
	}
	if c.GameLogCap == 0 {
		c.GameLogCap = 5 * 1024 * 1024
	}
}

// SetDefaults fills server bind defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8790
	}
}

// Validate rejects unusable configuration.
func (c *Config) Validate() error {
	if c.Player.Name == "" {
		return fmt.Errorf("player.name is required")
	}
	if c.Engine.URL == "" {
		return fmt.Errorf("engine.url is required")
	}
	if c.Bridge.MaxInteractionsPerTurn < 5 {
		return fmt.Errorf("bridge.max_interactions_per_turn must be at least 5, got %d", c.Bridge.MaxInteractionsPerTurn)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}
