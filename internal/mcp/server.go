package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/tempo/internal/app"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"task", "note", "event", "timer", "state"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"task_add": {
		def:     taskAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTaskAdd },
	},
	"task_toggle": {
		def:     taskToggleToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTaskToggle },
	},
	"task_delete": {
		def:     taskDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTaskDelete },
	},
	"task_list": {
		def:     taskListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTaskList },
	},
	"task_export": {
		def:     taskExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTaskExport },
	},
	"task_import": {
		def:     taskImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTaskImport },
	},
	"note_add": {
		def:     noteAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteAdd },
	},
	"note_delete": {
		def:     noteDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteDelete },
	},
	"note_list": {
		def:     noteListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteList },
	},
	"event_create": {
		def:     eventCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEventCreate },
	},
	"event_delete": {
		def:     eventDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEventDelete },
	},
	"event_list": {
		def:     eventListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEventList },
	},
	"event_select": {
		def:     eventSelectToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEventSelect },
	},
	"timer_status": {
		def:     timerStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTimerStatus },
	},
	"timer_start": {
		def:     timerStartToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTimerStart },
	},
	"timer_stop": {
		def:     timerStopToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTimerStop },
	},
	"timer_reset": {
		def:     timerResetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTimerReset },
	},
	"timer_configure": {
		def:     timerConfigureToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTimerConfigure },
	},
	"state_export": {
		def:     stateExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStateExport },
	},
	"state_import": {
		def:     stateImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStateImport },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "task_add" → "task").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	// Build set of types for O(1) lookup
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	// Collect tools belonging to disabled types
	tools := make([]string, 0)
	for name := range toolRegistry {
		typ := GetTypeForTool(name)
		if typeSet[typ] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with Tempo tools registered.
// Tools listed in the config's DisabledTools or belonging to DisabledTypes
// are excluded from registration.
func NewServer(a *app.App, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"tempo",
		version,
		server.WithToolCapabilities(true),
	)

	cfg := a.Config()
	h := NewHandlers(a)

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	// Register tools (skip disabled)
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(a *app.App, version string) error {
	s := NewServer(a, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
