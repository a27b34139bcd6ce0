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
	"fmt"

	"github.com/kadirpekel/magebridge/pkg/cards"
	"github.com/kadirpekel/magebridge/pkg/config"
)

// ValidateCmd checks a configuration without connecting to anything.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for validate")
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Printf("config ok: player=%s engine=%s server=%s:%d\n",
		cfg.Player.Name, cfg.Engine.URL, cfg.Server.Host, cfg.Server.Port)

	if cfg.Player.DeckPath != "" {
		deck, err := cards.LoadDeck(cfg.Player.DeckPath)
		if err != nil {
			return err
		}
		fmt.Printf("deck ok: %q, %d cards, %d sideboard entries\n",
			deck.Name, deck.Size(), len(deck.Sideboard))
	}

	if cfg.Player.CardFile != "" {
		if _, err := cards.LoadFileDatabase(cfg.Player.CardFile); err != nil {
			return err
		}
		fmt.Println("card file ok")
	}

	return nil
}
