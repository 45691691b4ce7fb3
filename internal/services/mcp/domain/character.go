package domain

import (
	"context"
	"fmt"

	"github.com/louisbranch/charforge/internal/character/attr"
	"github.com/louisbranch/charforge/internal/character/catalog"
	"github.com/louisbranch/charforge/internal/character/forge"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Builder is the character-building surface the tools need.
type Builder interface {
	Build(ctx context.Context, req forge.Request) (forge.Result, error)
	Diagnose(state attr.State) []forge.Diagnostic
	Choices(category, filter string) ([]catalog.Entry, error)
	Categories() []string
}

// DiagnosticResult is one unresolved diagnostic.
type DiagnosticResult struct {
	Key         string  `json:"key" jsonschema:"diagnostic attribute key"`
	Severity    float64 `json:"severity" jsonschema:"diagnostic value; nonzero means unsatisfied"`
	Requirement string  `json:"requirement,omitempty" jsonschema:"requirement text registered for the diagnostic"`
}

// RepairReportResult summarizes a repair run.
type RepairReportResult struct {
	Passes     int      `json:"passes" jsonschema:"repair passes run"`
	Fixes      int      `json:"fixes" jsonschema:"fixes applied"`
	Initial    int      `json:"initial" jsonschema:"diagnostics before repair"`
	Final      int      `json:"final" jsonschema:"diagnostics after repair"`
	FixedPoint bool     `json:"fixed_point" jsonschema:"whether a pass applied no fix"`
	Restored   bool     `json:"restored" jsonschema:"whether an earlier better state was restored"`
	Notes      []string `json:"notes,omitempty" jsonschema:"trace notes when requested"`
}

// CharacterResult is the output of the build tools.
type CharacterResult struct {
	Seed        uint64              `json:"seed" jsonschema:"seed used; pass it back to replay the build"`
	State       map[string]float64  `json:"state" jsonschema:"raw attribute values keyed by attribute key"`
	Diagnostics []DiagnosticResult  `json:"diagnostics,omitempty" jsonschema:"unresolved diagnostics"`
	Report      *RepairReportResult `json:"report,omitempty" jsonschema:"repair summary when repair ran"`
}

// RandomizeAttributeInput represents the MCP tool input for randomizing attributes.
type RandomizeAttributeInput struct {
	Seed       *uint64            `json:"seed,omitempty" jsonschema:"optional seed for a deterministic build"`
	State      map[string]float64 `json:"state,omitempty" jsonschema:"starting raw attributes"`
	Attributes []string           `json:"attributes,omitempty" jsonschema:"attributes to fill in order, e.g. abilities, levels, skills.Stealth; defaults to a full character when state is empty"`
	Repair     bool               `json:"repair,omitempty" jsonschema:"run the repairer after randomizing"`
}

// MakeValidInput represents the MCP tool input for repairing a character.
type MakeValidInput struct {
	Seed      *uint64            `json:"seed,omitempty" jsonschema:"optional seed for deterministic repairs"`
	State     map[string]float64 `json:"state" jsonschema:"raw attributes to repair"`
	Trace     bool               `json:"trace,omitempty" jsonschema:"include per-problem notes in the report"`
	MaxPasses int                `json:"max_passes,omitempty" jsonschema:"pass budget; defaults to 8"`
}

// DiagnoseInput represents the MCP tool input for listing diagnostics.
type DiagnoseInput struct {
	State map[string]float64 `json:"state" jsonschema:"raw attributes to evaluate"`
}

// DiagnoseResult represents the MCP tool output for listing diagnostics.
type DiagnoseResult struct {
	Diagnostics []DiagnosticResult `json:"diagnostics" jsonschema:"nonzero diagnostics sorted by key"`
}

// RandomizeAttributeTool defines the MCP tool schema for randomizing attributes.
func RandomizeAttributeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "randomize_attribute",
		Description: "Fills character attributes with weighted random choices that respect the rule set",
	}
}

// MakeValidTool defines the MCP tool schema for repairing a character.
func MakeValidTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "make_valid",
		Description: "Repairs a character by fixing the requirements behind its diagnostics",
	}
}

// DiagnoseTool defines the MCP tool schema for listing diagnostics.
func DiagnoseTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "diagnose",
		Description: "Lists the unsatisfied diagnostics of a character with their requirement texts",
	}
}

// RandomizeAttributeHandler executes a randomize request.
func RandomizeAttributeHandler(builder Builder) mcp.ToolHandlerFor[RandomizeAttributeInput, CharacterResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RandomizeAttributeInput) (*mcp.CallToolResult, CharacterResult, error) {
		if builder == nil {
			return nil, CharacterResult{}, fmt.Errorf("character builder is not configured")
		}
		state, err := parseState(input.State)
		if err != nil {
			return nil, CharacterResult{}, err
		}
		result, err := builder.Build(ctx, forge.Request{
			Seed:   seedValue(input.Seed),
			State:  state,
			Attrs:  input.Attributes,
			Repair: input.Repair,
		})
		if err != nil {
			return nil, CharacterResult{}, fmt.Errorf("randomize failed: %w", err)
		}
		return nil, characterResult(result), nil
	}
}

// MakeValidHandler executes a repair request.
func MakeValidHandler(builder Builder) mcp.ToolHandlerFor[MakeValidInput, CharacterResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MakeValidInput) (*mcp.CallToolResult, CharacterResult, error) {
		if builder == nil {
			return nil, CharacterResult{}, fmt.Errorf("character builder is not configured")
		}
		if len(input.State) == 0 {
			return nil, CharacterResult{}, fmt.Errorf("state is required")
		}
		state, err := parseState(input.State)
		if err != nil {
			return nil, CharacterResult{}, err
		}
		result, err := builder.Build(ctx, forge.Request{
			Seed:      seedValue(input.Seed),
			State:     state,
			Attrs:     []string{},
			Repair:    true,
			Trace:     input.Trace,
			MaxPasses: input.MaxPasses,
		})
		if err != nil {
			return nil, CharacterResult{}, fmt.Errorf("make valid failed: %w", err)
		}
		return nil, characterResult(result), nil
	}
}

// DiagnoseHandler executes a diagnose request.
func DiagnoseHandler(builder Builder) mcp.ToolHandlerFor[DiagnoseInput, DiagnoseResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input DiagnoseInput) (*mcp.CallToolResult, DiagnoseResult, error) {
		if builder == nil {
			return nil, DiagnoseResult{}, fmt.Errorf("character builder is not configured")
		}
		state, err := parseState(input.State)
		if err != nil {
			return nil, DiagnoseResult{}, err
		}
		return nil, DiagnoseResult{Diagnostics: diagnosticResults(builder.Diagnose(state))}, nil
	}
}

func parseState(flat map[string]float64) (attr.State, error) {
	state, err := attr.FromMap(flat)
	if err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return state, nil
}

func seedValue(seed *uint64) uint64 {
	if seed == nil {
		return 0
	}
	return *seed
}

func characterResult(result forge.Result) CharacterResult {
	out := CharacterResult{
		Seed:        result.Seed,
		State:       result.State.ToMap(),
		Diagnostics: diagnosticResults(result.Diagnostics),
	}
	if r := result.Report; r != nil {
		out.Report = &RepairReportResult{
			Passes:     r.Passes,
			Fixes:      r.Fixes,
			Initial:    r.Initial,
			Final:      r.Final,
			FixedPoint: r.FixedPoint,
			Restored:   r.Restored,
			Notes:      append([]string(nil), r.Notes...),
		}
	}
	return out
}

func diagnosticResults(list []forge.Diagnostic) []DiagnosticResult {
	out := make([]DiagnosticResult, 0, len(list))
	for _, d := range list {
		out = append(out, DiagnosticResult{Key: d.Key, Severity: d.Severity, Requirement: d.Requirement})
	}
	return out
}
