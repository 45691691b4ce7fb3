package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/charforge/internal/character/catalog"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const categoryURIPrefix = "catalog://categories/"

// ListChoicesInput represents the MCP tool input for listing catalog entries.
type ListChoicesInput struct {
	Category string `json:"category" jsonschema:"catalog category, e.g. classes, feats, spells"`
	Filter   string `json:"filter,omitempty" jsonschema:"optional AIP-160 filter, e.g. class = \"Wizard\" AND level <= 2"`
}

// ChoiceResult is one catalog entry.
type ChoiceResult struct {
	Name string         `json:"name" jsonschema:"entry name"`
	Meta map[string]any `json:"meta,omitempty" jsonschema:"entry metadata"`
}

// ListChoicesResult represents the MCP tool output for listing catalog entries.
type ListChoicesResult struct {
	Category string         `json:"category" jsonschema:"catalog category"`
	Choices  []ChoiceResult `json:"choices" jsonschema:"matching entries in catalog order"`
}

// CategoryListPayload is the JSON body of the category list resource.
type CategoryListPayload struct {
	Categories []CategoryListEntry `json:"categories"`
}

// CategoryListEntry describes one catalog category.
type CategoryListEntry struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
	URI     string `json:"uri"`
}

// ListChoicesTool defines the MCP tool schema for listing catalog entries.
func ListChoicesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_choices",
		Description: "Lists the catalog entries of a category, optionally filtered",
	}
}

// ListChoicesHandler executes a catalog listing request.
func ListChoicesHandler(builder Builder) mcp.ToolHandlerFor[ListChoicesInput, ListChoicesResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input ListChoicesInput) (*mcp.CallToolResult, ListChoicesResult, error) {
		if builder == nil {
			return nil, ListChoicesResult{}, fmt.Errorf("character builder is not configured")
		}
		category := strings.TrimSpace(input.Category)
		if category == "" {
			return nil, ListChoicesResult{}, fmt.Errorf("category is required")
		}
		entries, err := builder.Choices(category, input.Filter)
		if err != nil {
			return nil, ListChoicesResult{}, fmt.Errorf("list choices failed: %w", err)
		}
		return nil, ListChoicesResult{Category: category, Choices: choiceResults(entries)}, nil
	}
}

// CategoryListResource defines the MCP resource listing catalog categories.
func CategoryListResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "catalog_categories",
		Title:       "Catalog Categories",
		Description: "Readable listing of catalog categories with entry counts",
		MIMEType:    "application/json",
		URI:         "catalog://categories",
	}
}

// CategoryResourceTemplate defines the MCP resource template for one category.
func CategoryResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "catalog_category",
		Title:       "Catalog Category",
		Description: "Readable listing of one catalog category. URI format: catalog://categories/{category}",
		MIMEType:    "application/json",
		URITemplate: categoryURIPrefix + "{category}",
	}
}

// CategoryListResourceHandler serves the category list resource.
func CategoryListResourceHandler(builder Builder) mcp.ResourceHandler {
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if builder == nil {
			return nil, fmt.Errorf("character builder is not configured")
		}
		uri := CategoryListResource().URI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}
		payload := CategoryListPayload{Categories: []CategoryListEntry{}}
		for _, name := range builder.Categories() {
			entries, err := builder.Choices(name, "")
			if err != nil {
				return nil, fmt.Errorf("list category %s: %w", name, err)
			}
			payload.Categories = append(payload.Categories, CategoryListEntry{
				Name:    name,
				Entries: len(entries),
				URI:     categoryURIPrefix + name,
			})
		}
		return jsonResource(uri, payload)
	}
}

// CategoryResourceHandler serves one category resource.
func CategoryResourceHandler(builder Builder) mcp.ResourceHandler {
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if builder == nil {
			return nil, fmt.Errorf("character builder is not configured")
		}
		if req == nil || req.Params == nil || req.Params.URI == "" {
			return nil, fmt.Errorf("category is required; use URI format catalog://categories/{category}")
		}
		uri := req.Params.URI
		category, err := parseCategoryURI(uri)
		if err != nil {
			return nil, err
		}
		entries, err := builder.Choices(category, "")
		if err != nil {
			return nil, err
		}
		return jsonResource(uri, ListChoicesResult{Category: category, Choices: choiceResults(entries)})
	}
}

func parseCategoryURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, categoryURIPrefix) {
		return "", fmt.Errorf("invalid URI format: expected catalog://categories/{category}")
	}
	category := strings.TrimSpace(strings.TrimPrefix(uri, categoryURIPrefix))
	if category == "" || strings.Contains(category, "/") {
		return "", fmt.Errorf("invalid URI format: expected catalog://categories/{category}")
	}
	return category, nil
}

func choiceResults(entries []catalog.Entry) []ChoiceResult {
	out := make([]ChoiceResult, 0, len(entries))
	for _, e := range entries {
		out = append(out, ChoiceResult{Name: e.Name, Meta: e.Meta})
	}
	return out
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}
