package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/louisbranch/charforge/internal/character/attr"
	"github.com/louisbranch/charforge/internal/character/catalog"
	"github.com/louisbranch/charforge/internal/character/forge"
	"github.com/louisbranch/charforge/internal/platform/timeouts"
	"github.com/louisbranch/charforge/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "charforge"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"

	defaultHTTPAddr = "localhost:8081"
)

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves the streamable HTTP transport.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP server.
type Config struct {
	Source    forge.Source
	Transport TransportKind
	HTTPAddr  string
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
	builder   domain.Builder
}

// serialBuilder serializes access to a forge; the Lua evaluator behind it is
// single-threaded.
type serialBuilder struct {
	mu    sync.Mutex
	forge *forge.Forge
}

var _ domain.Builder = (*serialBuilder)(nil)

func (b *serialBuilder) Build(ctx context.Context, req forge.Request) (forge.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Build)
	defer cancel()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.forge.Build(ctx, req)
}

func (b *serialBuilder) Diagnose(state attr.State) []forge.Diagnostic {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.forge.Diagnose(state)
}

func (b *serialBuilder) Choices(category, filter string) ([]catalog.Entry, error) {
	return b.forge.Choices(category, filter)
}

func (b *serialBuilder) Categories() []string {
	return b.forge.Categories()
}

// New creates a configured MCP server backed by f.
func New(f *forge.Forge) (*Server, error) {
	if f == nil {
		return nil, fmt.Errorf("forge is required")
	}
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	builder := &serialBuilder{forge: f}

	registerCharacterTools(mcpServer, builder)
	registerCatalogTools(mcpServer, builder)
	registerCatalogResources(mcpServer, builder)

	return &Server{mcpServer: mcpServer, builder: builder}, nil
}

// Run loads the configured content and serves MCP until the context ends.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}
	if cfg.Transport != TransportStdio && cfg.Transport != TransportHTTP {
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}

	f, err := forge.Open(ctx, cfg.Source)
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}
	server, err := New(f)
	if err != nil {
		return err
	}

	switch cfg.Transport {
	case TransportHTTP:
		return server.serveHTTP(ctx, cfg.HTTPAddr)
	default:
		return server.Serve(ctx)
	}
}

// Serve starts the MCP server on stdio and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// serveWithTransport starts the MCP server using the provided transport.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// Handler returns the streamable HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
}

func (s *Server) serveHTTP(ctx context.Context, addr string) error {
	if addr == "" {
		addr = defaultHTTPAddr
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("serving MCP over HTTP on %s", addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve MCP over HTTP: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown MCP HTTP server: %w", err)
		}
		return nil
	}
}
