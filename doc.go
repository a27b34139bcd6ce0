// Package magebridge bridges a headless card-game rules engine to an LLM
// agent.
//
// The bridge connects to the engine as a player client, receives the
// engine's asynchronous decision callbacks, auto-resolves the mechanical
// ones (mana payment, forced targets, priority passes), and exposes the
// real decisions to the agent as an MCP tool server.
//
// Start the bridge:
//
//	magebridge serve --config config.yaml
//
// Validate a configuration and deck:
//
//	magebridge validate --config config.yaml
package magebridge
