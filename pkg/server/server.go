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

// Package server exposes the bridge tool surface to the agent as an MCP
// server over streamable HTTP, plus health and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	magebridge "github.com/kadirpekel/magebridge"
	"github.com/kadirpekel/magebridge/pkg/bridge"
	"github.com/kadirpekel/magebridge/pkg/config"
	"github.com/kadirpekel/magebridge/pkg/observability"
	"github.com/kadirpekel/magebridge/pkg/registry"
	"github.com/kadirpekel/magebridge/pkg/tools"
)

// Server is the agent-facing HTTP server.
type Server struct {
	cfg     config.ServerConfig
	logger  *slog.Logger
	tools   *registry.BaseRegistry[tools.Tool]
	metrics *observability.Metrics
	promReg *prometheus.Registry
	errLog  *bridge.ErrorLog

	mcp  *mcpserver.MCPServer
	http *http.Server
}

// Options configures optional collaborators.
type Options struct {
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	PromReg    *prometheus.Registry
	ErrorLog   *bridge.ErrorLog
	ServerName string
}

// New builds the server and registers the given tools on it.
func New(cfg config.ServerConfig, toolSet []tools.Tool, opts Options) (*Server, error) {
	cfg.SetDefaults()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := opts.ServerName
	if name == "" {
		name = "magebridge"
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		tools:   registry.NewBaseRegistry[tools.Tool](),
		metrics: opts.Metrics,
		promReg: opts.PromReg,
		errLog:  opts.ErrorLog,
	}

	s.mcp = mcpserver.NewMCPServer(name, magebridge.Version,
		mcpserver.WithToolCapabilities(false),
	)

	for _, t := range toolSet {
		if err := s.tools.Register(t.GetName(), t); err != nil {
			return nil, fmt.Errorf("failed to register tool: %w", err)
		}
		s.mcp.AddTool(convertTool(t.GetInfo()), s.handlerFor(t))
	}

	mux := chi.NewRouter()
	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","tools":%d}`, s.tools.Count())
	})
	if s.promReg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))
	}
	mux.Mount("/mcp", mcpserver.NewStreamableHTTPServer(s.mcp,
		mcpserver.WithEndpointPath("/mcp"),
	))

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// handlerFor wraps a tool in the MCP handler contract: arguments in, JSON
// text out. A panic inside a tool is logged and converted to an error
// response; it must never take the server down or corrupt bridge state.
func (s *Server) handlerFor(t tools.Tool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("tool handler panicked", "tool", t.GetName(), "panic", r)
				s.errLog.Logf("panic in tool %s: %v", t.GetName(), r)
				s.metrics.ObserveToolCall(t.GetName(), "panic")
				result = mcp.NewToolResultError(fmt.Sprintf("internal error in %s", t.GetName()))
				err = nil
			}
		}()

		out, err := t.Execute(ctx, req.GetArguments())
		if err != nil {
			s.metrics.ObserveToolCall(t.GetName(), "error")
			return mcp.NewToolResultError(err.Error()), nil
		}

		outcome := "ok"
		if success, found := out["success"].(bool); found && !success {
			outcome = "failed"
		}
		s.metrics.ObserveToolCall(t.GetName(), outcome)

		encoded, err := json.Marshal(out)
		if err != nil {
			s.errLog.Logf("failed to encode %s result: %v", t.GetName(), err)
			return mcp.NewToolResultError("failed to encode tool result"), nil
		}
		return mcp.NewToolResultText(string(encoded)), nil
	}
}

// convertTool maps a ToolInfo onto the MCP tool schema.
func convertTool(info tools.ToolInfo) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(info.Description)}
	for _, p := range info.Parameters {
		var propOpts []mcp.PropertyOption
		propOpts = append(propOpts, mcp.Description(p.Description))
		if p.Required {
			propOpts = append(propOpts, mcp.Required())
		}
		if len(p.Enum) > 0 {
			propOpts = append(propOpts, mcp.Enum(p.Enum...))
		}

		switch p.Type {
		case "number":
			opts = append(opts, mcp.WithNumber(p.Name, propOpts...))
		case "boolean":
			opts = append(opts, mcp.WithBoolean(p.Name, propOpts...))
		case "array":
			itemType := p.Items
			if itemType == "" {
				itemType = "string"
			}
			propOpts = append(propOpts, mcp.Items(map[string]any{"type": itemType}))
			opts = append(opts, mcp.WithArray(p.Name, propOpts...))
		default:
			opts = append(opts, mcp.WithString(p.Name, propOpts...))
		}
	}
	return mcp.NewTool(info.Name, opts...)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("tool server listening",
			"addr", s.http.Addr, "tools", s.tools.Count())
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("tool server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
