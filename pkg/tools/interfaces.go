package tools

import (
	"context"
)

type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`
}

type ToolParameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
	Items       string   `json:"items,omitempty"`
}

type Tool interface {
	GetInfo() ToolInfo

	GetName() string

	GetDescription() string

	Execute(ctx context.Context, args map[string]any) (map[string]any, error)
}
