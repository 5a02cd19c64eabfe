package aggregator

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"mcpdock/internal/config"
	"mcpdock/pkg/logging"
)

// Config holds the aggregator endpoint settings.
type Config struct {
	Host      string
	Port      int
	Transport string
	Version   string
}

// Server is mcpdock's own MCP server. It exposes the dynamically
// registered mount tools plus the built-in dock_* management tools over
// the configured transport.
type Server struct {
	config   Config
	registry *ToolRegistry
	control  *ControlTools

	mcpServer            *mcpserver.MCPServer
	sseServer            *mcpserver.SSEServer
	streamableHTTPServer *mcpserver.StreamableHTTPServer
	stdioServer          *mcpserver.StdioServer
	httpServers          []*http.Server

	errorCallback func(error)

	ctx        context.Context
	cancelFunc context.CancelFunc
	mu         sync.RWMutex
}

// NewServer creates an unstarted aggregator server. The control tools are
// registered at Start; mount tools arrive through the registry as mounts
// activate.
func NewServer(cfg Config, registry *ToolRegistry, control *ControlTools, errorCallback func(error)) *Server {
	if errorCallback == nil {
		errorCallback = func(error) {}
	}
	return &Server{
		config:        cfg,
		registry:      registry,
		control:       control,
		errorCallback: errorCallback,
	}
}

// Start creates the MCP server, attaches the tool registry, registers the
// management tools and begins serving on the configured transport.
func (a *Server) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.mcpServer != nil {
		a.mu.Unlock()
		return fmt.Errorf("aggregator server already started")
	}

	a.ctx, a.cancelFunc = context.WithCancel(ctx)

	mcpSrv := mcpserver.NewMCPServer(
		"mcpdock",
		a.config.Version,
		mcpserver.WithToolCapabilities(true),
	)
	a.mcpServer = mcpSrv
	a.mu.Unlock()

	a.registry.Attach(mcpSrv)
	if a.control != nil {
		mcpSrv.AddTools(a.control.serverTools()...)
	}

	addr := fmt.Sprintf("%s:%d", a.config.Host, a.config.Port)

	// systemd socket activation takes precedence over the configured
	// address for HTTP transports.
	var systemdListeners []net.Listener
	listenersWithNames, err := activation.ListenersWithNames()
	if err != nil {
		logging.Error("Aggregator", err, "Failed to get systemd listeners with names")
	} else {
		for name, listeners := range listenersWithNames {
			for i, l := range listeners {
				logging.Info("Aggregator", "Listener %d for %s", i, name)
				systemdListeners = append(systemdListeners, l)
			}
		}
	}
	useSystemdActivation := len(systemdListeners) > 0
	if useSystemdActivation && a.config.Transport == config.MCPTransportStdio {
		return fmt.Errorf("stdio transport cannot be used with systemd socket activation")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.config.Transport {
	case config.MCPTransportSSE:
		baseURL := fmt.Sprintf("http://%s:%d", a.config.Host, a.config.Port)
		a.sseServer = mcpserver.NewSSEServer(
			a.mcpServer,
			mcpserver.WithBaseURL(baseURL),
			mcpserver.WithSSEEndpoint("/sse"),
			mcpserver.WithMessageEndpoint("/message"),
			mcpserver.WithKeepAlive(true),
			mcpserver.WithKeepAliveInterval(30*time.Second),
		)
		a.serveHTTP(a.createMux(a.sseServer), addr, systemdListeners)

	case config.MCPTransportStdio:
		logging.Info("Aggregator", "Starting MCP aggregator server with stdio transport")
		a.stdioServer = mcpserver.NewStdioServer(a.mcpServer)
		stdioServer := a.stdioServer
		go func() {
			if err := stdioServer.Listen(a.ctx, os.Stdin, os.Stdout); err != nil {
				logging.Error("Aggregator", err, "Stdio server error")
				a.errorCallback(err)
			}
		}()

	case config.MCPTransportStreamableHTTP:
		fallthrough
	default:
		a.streamableHTTPServer = mcpserver.NewStreamableHTTPServer(a.mcpServer)
		a.serveHTTP(a.createMux(a.streamableHTTPServer), addr, systemdListeners)
	}

	logging.Info("Aggregator", "Started MCP aggregator server on %s", a.GetEndpoint())
	return nil
}

// serveHTTP runs the handler on systemd listeners when provided,
// otherwise on the configured address. Caller holds the write lock.
func (a *Server) serveHTTP(handler http.Handler, addr string, systemdListeners []net.Listener) {
	if len(systemdListeners) > 0 {
		logging.Info("Aggregator", "Using systemd socket activation with %d listener(s)", len(systemdListeners))
		for i, listener := range systemdListeners {
			server := &http.Server{Handler: handler}
			a.httpServers = append(a.httpServers, server)
			go func(s *http.Server, l net.Listener, index int) {
				if err := s.Serve(l); err != nil && err != http.ErrServerClosed {
					logging.Error("Aggregator", err, "listener %d: HTTP server error", index)
					a.errorCallback(err)
				}
			}(server, listener, i)
		}
		return
	}

	logging.Info("Aggregator", "Starting MCP aggregator server with %s transport on %s", a.config.Transport, addr)
	server := &http.Server{Addr: addr, Handler: handler}
	a.httpServers = append(a.httpServers, server)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Aggregator", err, "HTTP server error")
			a.errorCallback(err)
		}
	}()
}

// createMux adds the health endpoint next to the MCP handler.
func (a *Server) createMux(mcpHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/", mcpHandler)
	return mux
}

// Stop shuts the server down: HTTP servers drain with a timeout, the
// stdio transport stops via context cancellation. Idempotent.
func (a *Server) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.mcpServer == nil {
		a.mu.Unlock()
		return nil
	}
	cancelFunc := a.cancelFunc
	httpServers := a.httpServers
	a.mcpServer = nil
	a.sseServer = nil
	a.streamableHTTPServer = nil
	a.stdioServer = nil
	a.httpServers = nil
	a.mu.Unlock()

	if cancelFunc != nil {
		cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for _, s := range httpServers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			logging.Error("Aggregator", err, "Error shutting down HTTP server")
		}
	}

	logging.Info("Aggregator", "Stopped MCP aggregator server")
	return nil
}

// GetEndpoint returns the primary endpoint URL for the configured
// transport, or "stdio".
func (a *Server) GetEndpoint() string {
	switch a.config.Transport {
	case config.MCPTransportSSE:
		return fmt.Sprintf("http://%s:%d/sse", a.config.Host, a.config.Port)
	case config.MCPTransportStdio:
		return "stdio"
	default:
		return fmt.Sprintf("http://%s:%d/mcp", a.config.Host, a.config.Port)
	}
}
