// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/internal/logger"
	"github.com/step6836/marketing-attribution/schema"
)

// NewMCPServer initializes and configures the attribution MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.CacheManager) *server.MCPServer {
	return newServer(baseCfg, mgr, logger.Nop())
}

func newServer(baseCfg *contract.Config, mgr contract.CacheManager, log *zap.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"Marketing Attribution Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
		log:     log,
	}

	// --- 1. Tool: get_attribution ---
	s.AddTool(mcp.NewTool("get_attribution",
		mcp.WithDescription("Run the five attribution models over an event log and return the result artifact."),
		mcp.WithString("input", mcp.Description("Path to the event log (CSV, JSON Lines or Parquet). Defaults to the configured input.")),
		mcp.WithString("format", mcp.Description("Input format. Detected from the extension when omitted."), mcp.Enum("auto", "csv", "jsonl", "parquet")),
		mcp.WithString("scoring", mcp.Description("Model comparison method. Defaults to 'profile'."), mcp.Enum("profile", "derived")),
		mcp.WithNumber("sample", mcp.Description("Analyze only the first N converting users.")),
	), h.handleGetAttribution)

	// --- 2. Tool: project_scenario ---
	s.AddTool(mcp.NewTool("project_scenario",
		mcp.WithDescription("Project revenue, ROAS, lift and risk for an awareness/cart budget split."),
		mcp.WithNumber("awareness_budget", mcp.Description("Budget for awareness campaigns; the rest of the total goes to cart retargeting."), mcp.Required()),
	), h.handleProjectScenario)

	// --- 3. Tool: list_scenarios ---
	s.AddTool(mcp.NewTool("list_scenarios",
		mcp.WithDescription("Project the current, recommended and aggressive presets, calibrated from an event log when one is given."),
		mcp.WithString("input", mcp.Description("Path to the event log. Without it the presets use their fallback cart shares.")),
		mcp.WithString("format", mcp.Description("Input format."), mcp.Enum("auto", "csv", "jsonl", "parquet")),
	), h.handleListScenarios)

	// --- 4. Tool: get_journey_stats ---
	s.AddTool(mcp.NewTool("get_journey_stats",
		mcp.WithDescription("Return journey statistics and ingestion counts for an event log."),
		mcp.WithString("input", mcp.Description("Path to the event log. Defaults to the configured input.")),
		mcp.WithString("format", mcp.Description("Input format."), mcp.Enum("auto", "csv", "jsonl", "parquet")),
	), h.handleGetJourneyStats)

	return s
}

// StartMCPServer starts the attribution MCP server on stdio.
func StartMCPServer(ctx context.Context, baseCfg *contract.Config, mgr contract.CacheManager) error {
	s := newServer(baseCfg, mgr, logger.FromContext(ctx))
	return server.ServeStdio(s)
}

// journeyStatsResult is the payload of get_journey_stats.
type journeyStatsResult struct {
	Meta         schema.Meta         `json:"meta"`
	JourneyStats schema.JourneyStats `json:"journey_stats"`
}
