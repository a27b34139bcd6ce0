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

// Command magebridge connects to a headless card-game rules engine as a
// player and serves the game to an LLM agent as MCP tools.
//
// Usage:
//
//	magebridge serve --config config.yaml
//	magebridge serve --engine-url ws://localhost:17171 --player Alice --deck deck.yaml
//	magebridge validate --config config.yaml
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	magebridge "github.com/kadirpekel/magebridge"
	"github.com/kadirpekel/magebridge/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Connect to the engine and serve the agent tools."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration, deck list, and card file."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(magebridge.GetVersion().String())
	return nil
}

func main() {
	// A .env next to the binary is a convenience, not a requirement.
	_ = godotenv.Load()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("magebridge"),
		kong.Description("Headless card-game bridge for LLM agents."),
		kong.UsageOnError(),
	)

	if err := initLogging(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := kctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func initLogging(cli *CLI) error {
	level, _ := logger.ParseLevel(cli.LogLevel)

	output := os.Stderr
	if cli.LogFile != "" {
		file, _, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
	}

	logger.Init(level, output, cli.LogFormat)
	return nil
}
