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

package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/magebridge/pkg/bridge"
	"github.com/kadirpekel/magebridge/pkg/cards"
	"github.com/kadirpekel/magebridge/pkg/config"
	"github.com/kadirpekel/magebridge/pkg/engine"
	"github.com/kadirpekel/magebridge/pkg/game"
	"github.com/kadirpekel/magebridge/pkg/logger"
	"github.com/kadirpekel/magebridge/pkg/observability"
	"github.com/kadirpekel/magebridge/pkg/server"
	"github.com/kadirpekel/magebridge/pkg/tools"
)

// ServeCmd connects to the engine and serves the agent tools.
type ServeCmd struct {
	// Zero-config options; a config file overrides nothing they set.
	EngineURL string `name:"engine-url" help:"Engine websocket URL (overrides config)."`
	Player    string `help:"Player display name (overrides config)."`
	Deck      string `help:"Deck list path (overrides config)." type:"path"`
	CardFile  string `name:"card-file" help:"Local card database path (overrides config)." type:"path"`
	KeepAlive bool   `name:"keep-alive" help:"Keep serving after the game ends."`

	// Server options
	Port int `help:"Port to listen on." default:"0"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.GetLogger()

	cfg, err := c.loadConfig(cli)
	if err != nil {
		return err
	}

	deck, db, err := loadCardData(cfg)
	if err != nil {
		return err
	}

	var promReg *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		promReg = prometheus.NewRegistry()
		metrics = observability.New(promReg)
	}

	var errLog *bridge.ErrorLog
	if cfg.Bridge.ErrorLogPath != "" {
		if errLog, err = bridge.NewErrorLog(cfg.Bridge.ErrorLogPath); err != nil {
			return err
		}
		defer errLog.Close()
	}
	var eventLog *bridge.EventLog
	if cfg.Bridge.EventLogPath != "" {
		if eventLog, err = bridge.NewEventLog(cfg.Bridge.EventLogPath); err != nil {
			return err
		}
		defer eventLog.Close()
	}

	// The session needs a callback handler up front and the arbitrator
	// needs the session as its client, so the relay breaks the cycle.
	relay := &callbackRelay{}
	sess, err := engine.NewSession(ctx, engine.SessionConfig{
		URL:        cfg.Engine.URL,
		PlayerName: cfg.Player.Name,
	}, relay, log)
	if err != nil {
		return err
	}
	defer sess.Close()

	gameEnded := make(chan struct{})
	var endOnce sync.Once

	arb := bridge.New(cfg.Bridge, cfg.Player.Name, sess, bridge.Options{
		Deck:     deck,
		Database: db,
		Metrics:  metrics,
		Logger:   log,
		ErrorLog: errLog,
		EventLog: eventLog,
		OnGameOver: func() {
			if !cfg.Engine.KeepAliveAfterGame {
				endOnce.Do(func() { close(gameEnded) })
			}
		},
	})
	defer arb.Close()
	relay.Set(arb)

	srv, err := server.New(cfg.Server, tools.BridgeTools(arb), server.Options{
		Logger:   log,
		Metrics:  metrics,
		PromReg:  promReg,
		ErrorLog: errLog,
	})
	if err != nil {
		return err
	}

	log.Info("bridge starting",
		"player", cfg.Player.Name, "engine", cfg.Engine.URL,
		"keep_alive", cfg.Engine.KeepAliveAfterGame)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-gameEnded:
			log.Info("game ended, shutting down")
			return nil
		case <-sess.Done():
			return fmt.Errorf("engine session ended")
		}
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (c *ServeCmd) loadConfig(cli *CLI) (*config.Config, error) {
	var cfg *config.Config
	if cli.Config != "" {
		loaded, err := config.Load(cli.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = &config.Config{}
	}

	if c.EngineURL != "" {
		cfg.Engine.URL = c.EngineURL
	}
	if c.Player != "" {
		cfg.Player.Name = c.Player
	}
	if c.Deck != "" {
		cfg.Player.DeckPath = c.Deck
	}
	if c.CardFile != "" {
		cfg.Player.CardFile = c.CardFile
	}
	if c.KeepAlive {
		cfg.Engine.KeepAliveAfterGame = true
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadCardData(cfg *config.Config) (*cards.Deck, cards.Database, error) {
	var deck *cards.Deck
	if cfg.Player.DeckPath != "" {
		loaded, err := cards.LoadDeck(cfg.Player.DeckPath)
		if err != nil {
			return nil, nil, err
		}
		deck = loaded
	}

	var db cards.Database
	if cfg.Player.CardFile != "" {
		loaded, err := cards.LoadFileDatabase(cfg.Player.CardFile)
		if err != nil {
			return nil, nil, err
		}
		db = loaded
	}
	return deck, db, nil
}

// callbackRelay forwards callbacks to a handler installed after the
// session is dialed.
type callbackRelay struct {
	mu sync.RWMutex
	h  engine.CallbackHandler
}

func (r *callbackRelay) Set(h engine.CallbackHandler) {
	r.mu.Lock()
	r.h = h
	r.mu.Unlock()
}

func (r *callbackRelay) HandleCallback(cb *game.Callback) {
	r.mu.RLock()
	h := r.h
	r.mu.RUnlock()
	if h != nil {
		h.HandleCallback(cb)
	}
}
