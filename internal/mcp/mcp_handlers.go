package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/step6836/marketing-attribution/core"
	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/internal/eventsrc"
	"github.com/step6836/marketing-attribution/schema"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.CacheManager
	log     *zap.Logger
}

// unavailable reports a failure to the host as a reason code only. The detail goes
// to the log.
func (h *toolHandler) unavailable(tool string, err error) *mcp.CallToolResult {
	u := schema.NewUnavailable(err)
	h.log.Warn("tool failed", zap.String("tool", tool), zap.String("reason", string(u.Reason)), zap.Error(err))
	data, _ := json.Marshal(u)
	return mcp.NewToolResultError(string(data))
}

func jsonResult(v any) *mcp.CallToolResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(data))
}

// requestConfig clones the base configuration and applies the input arguments.
func (h *toolHandler) requestConfig(request mcp.CallToolRequest) (*contract.Config, error) {
	cfg := h.baseCfg.Clone()
	input := request.GetString("input", "")
	format := request.GetString("format", "")
	if input != "" || format != "" {
		if input == "" {
			input = cfg.InputPath
		}
		if err := contract.RevalidateInput(cfg, input, format); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// run executes the pipeline for the event log of cfg.
func (h *toolHandler) run(ctx context.Context, cfg *contract.Config) (*schema.RunOutput, error) {
	if cfg.InputPath == "" {
		return nil, fmt.Errorf("%w: no input given", schema.ErrSourceUnavailable)
	}
	src, err := eventsrc.New(cfg.InputPath, cfg.InputFormat)
	if err != nil {
		return nil, err
	}
	return core.Run(core.WithLogger(ctx, h.log), cfg, src, h.mgr)
}

func (h *toolHandler) handleGetAttribution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "get_attribution"
	cfg, err := h.requestConfig(request)
	if err != nil {
		return h.unavailable(tool, err), nil
	}
	if s := request.GetString("scoring", ""); s != "" {
		cfg.Scoring = schema.ScoringMethod(s)
	}
	if n := request.GetInt("sample", 0); n > 0 {
		cfg.Sample = n
	}

	out, err := h.run(ctx, cfg)
	if err != nil {
		return h.unavailable(tool, err), nil
	}
	return jsonResult(out.Artifact), nil
}

func (h *toolHandler) handleProjectScenario(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "project_scenario"
	budget, err := numberArg(request.GetArguments(), "awareness_budget")
	if err != nil {
		return h.unavailable(tool, err), nil
	}
	cfg := h.baseCfg.Clone()
	cfg.AwarenessBudget = &budget
	cfg.Preset = ""

	scenarios, err := core.ProjectScenarios(cfg, nil)
	if err != nil {
		return h.unavailable(tool, err), nil
	}
	return jsonResult(scenarios[0]), nil
}

// numberArg reads a required numeric argument. Numeric strings are accepted; any
// other type is rejected rather than defaulted.
func numberArg(args map[string]any, key string) (float64, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, fmt.Errorf("%w: %s is required", schema.ErrInvalidInput, key)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be a number", schema.ErrInvalidInput, key)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be a number, got %q", schema.ErrInvalidInput, key, v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number, got %T", schema.ErrInvalidInput, key, raw)
	}
}

func (h *toolHandler) handleListScenarios(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "list_scenarios"
	cfg, err := h.requestConfig(request)
	if err != nil {
		return h.unavailable(tool, err), nil
	}
	cfg.AwarenessBudget = nil
	cfg.Preset = ""

	var results map[schema.ModelKind]schema.AttributionResult
	if request.GetString("input", "") != "" {
		out, err := h.run(ctx, cfg)
		if err != nil {
			return h.unavailable(tool, err), nil
		}
		results = out.Results
	}
	scenarios, err := core.ProjectScenarios(cfg, results)
	if err != nil {
		return h.unavailable(tool, err), nil
	}
	return jsonResult(scenarios), nil
}

func (h *toolHandler) handleGetJourneyStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "get_journey_stats"
	cfg, err := h.requestConfig(request)
	if err != nil {
		return h.unavailable(tool, err), nil
	}
	out, err := h.run(ctx, cfg)
	if err != nil {
		return h.unavailable(tool, err), nil
	}
	return jsonResult(journeyStatsResult{Meta: out.Artifact.Meta, JourneyStats: out.Artifact.JourneyStats}), nil
}
