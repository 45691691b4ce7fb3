package service

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/charforge/internal/character/forge"
	"github.com/louisbranch/charforge/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func newStarterServer(t *testing.T) *Server {
	t.Helper()
	f, err := forge.Open(context.Background(), forge.Source{})
	if err != nil {
		t.Fatalf("open forge: %v", err)
	}
	server, err := New(f)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server
}

// connect serves server over in-memory transports and returns a client
// session plus a stop function that cancels serving and waits for it.
func connect(t *testing.T, server *Server) (*mcp.ClientSession, func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.serveWithTransport(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	clientCtx, clientCancel := context.WithTimeout(context.Background(), time.Second)
	defer clientCancel()
	session, err := client.Connect(clientCtx, clientTransport, nil)
	if err != nil {
		cancel()
		t.Fatalf("connect client: %v", err)
	}

	stop := func() {
		defer session.Close()
		cancel()
		select {
		case err := <-serveErr:
			if err != nil {
				t.Fatalf("serve returned error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("server did not stop after cancel")
		}
	}
	return session, stop
}

// decodeStructuredContent decodes structured MCP content into the target type.
func decodeStructuredContent[T any](t *testing.T, value any) T {
	t.Helper()

	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	var output T
	if err := json.Unmarshal(data, &output); err != nil {
		t.Fatalf("unmarshal structured content: %v", err)
	}
	return output
}

func TestNewRequiresForge(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil forge")
	}
}

func TestNewSerializesBuilder(t *testing.T) {
	server := newStarterServer(t)
	builder, ok := server.builder.(*serialBuilder)
	if !ok {
		t.Fatalf("builder = %T, want *serialBuilder", server.builder)
	}
	if got := builder.Categories(); len(got) == 0 {
		t.Fatal("expected starter categories through the builder")
	}
	result, err := server.builder.Build(context.Background(), forge.Request{Seed: 4, Attrs: []string{"abilities"}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if result.Seed != 4 || len(result.State) != 6 {
		t.Fatalf("result = %+v, want six abilities", result)
	}
}

func TestServeWithTransportRequiresServer(t *testing.T) {
	var server *Server
	if err := server.serveWithTransport(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunRejectsUnknownTransport(t *testing.T) {
	err := Run(context.Background(), Config{Transport: "carrier-pigeon"})
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("err = %v, want unsupported transport", err)
	}
}

func TestListTools(t *testing.T) {
	session, stop := connect(t, newStarterServer(t))
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := "diagnose,list_choices,make_valid,randomize_attribute"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("tools = %s, want %s", got, want)
	}
}

func TestCallRandomizeThenMakeValid(t *testing.T) {
	session, stop := connect(t, newStarterServer(t))
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	randomized, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "randomize_attribute",
		Arguments: map[string]any{"seed": 21},
	})
	if err != nil {
		t.Fatalf("call randomize_attribute: %v", err)
	}
	if randomized.IsError {
		t.Fatalf("randomize_attribute returned error content: %+v", randomized.Content)
	}
	character := decodeStructuredContent[domain.CharacterResult](t, randomized.StructuredContent)
	if character.Seed != 21 || len(character.State) == 0 {
		t.Fatalf("character = %+v", character)
	}

	repaired, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "make_valid",
		Arguments: map[string]any{"seed": 21, "state": character.State},
	})
	if err != nil {
		t.Fatalf("call make_valid: %v", err)
	}
	if repaired.IsError {
		t.Fatalf("make_valid returned error content: %+v", repaired.Content)
	}
	output := decodeStructuredContent[domain.CharacterResult](t, repaired.StructuredContent)
	if output.Report == nil {
		t.Fatal("expected repair report")
	}
	if output.Report.Final > output.Report.Initial {
		t.Fatalf("final %d > initial %d", output.Report.Final, output.Report.Initial)
	}
}

func TestCallToolReportsErrors(t *testing.T) {
	session, stop := connect(t, newStarterServer(t))
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "list_choices",
		Arguments: map[string]any{"category": "spells", "filter": "level >"},
	})
	if err != nil {
		t.Fatalf("call list_choices: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for malformed filter")
	}
}

func TestReadCategoryResources(t *testing.T) {
	session, stop := connect(t, newStarterServer(t))
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resource, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "catalog://categories"})
	if err != nil {
		t.Fatalf("read catalog://categories: %v", err)
	}
	if resource == nil || len(resource.Contents) == 0 {
		t.Fatalf("read catalog://categories returned no contents: %+v", resource)
	}
	var payload domain.CategoryListPayload
	if err := json.Unmarshal([]byte(resource.Contents[0].Text), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.Categories) == 0 {
		t.Fatal("expected categories")
	}

	feats, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "catalog://categories/feats"})
	if err != nil {
		t.Fatalf("read feats: %v", err)
	}
	if !strings.Contains(feats.Contents[0].Text, "Power Attack") {
		t.Fatalf("feats resource = %s", feats.Contents[0].Text)
	}
}

func TestHandlerServesStreamableHTTP(t *testing.T) {
	server := newStarterServer(t)
	httpServer := httptest.NewServer(server.Handler())
	defer httpServer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: httpServer.URL}, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "list_choices",
		Arguments: map[string]any{"category": "races"},
	})
	if err != nil {
		t.Fatalf("call list_choices: %v", err)
	}
	output := decodeStructuredContent[domain.ListChoicesResult](t, result.StructuredContent)
	if output.Category != "races" || len(output.Choices) == 0 {
		t.Fatalf("races = %+v", output)
	}
}

func TestServeHTTPStopsOnContext(t *testing.T) {
	server := newStarterServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.serveHTTP(ctx, "127.0.0.1:0")
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serveHTTP returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serveHTTP did not stop after cancel")
	}
}
