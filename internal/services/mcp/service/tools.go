package service

import (
	"github.com/louisbranch/charforge/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerCharacterTools(server *mcp.Server, builder domain.Builder) {
	mcp.AddTool(server, domain.RandomizeAttributeTool(), domain.RandomizeAttributeHandler(builder))
	mcp.AddTool(server, domain.MakeValidTool(), domain.MakeValidHandler(builder))
	mcp.AddTool(server, domain.DiagnoseTool(), domain.DiagnoseHandler(builder))
}

func registerCatalogTools(server *mcp.Server, builder domain.Builder) {
	mcp.AddTool(server, domain.ListChoicesTool(), domain.ListChoicesHandler(builder))
}

func registerCatalogResources(server *mcp.Server, builder domain.Builder) {
	server.AddResource(domain.CategoryListResource(), domain.CategoryListResourceHandler(builder))
	server.AddResourceTemplate(domain.CategoryResourceTemplate(), domain.CategoryResourceHandler(builder))
}
