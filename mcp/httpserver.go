package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/foomo/pocketguide-ada/service"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// httpRequestKey is a custom context key for storing the original HTTP request
type httpRequestKey struct{}

// httpContextFunc adds the original HTTP request to the tool call context
func httpContextFunc(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, httpRequestKey{}, r)
}

func httpRequestFromContext(ctx context.Context) (*http.Request, bool) {
	req, ok := ctx.Value(httpRequestKey{}).(*http.Request)
	return req, ok
}

// localCaller is true for stdio sessions and loopback HTTP clients. Only those
// may name files and directories on this machine.
func localCaller(ctx context.Context) bool {
	r, ok := httpRequestFromContext(ctx)
	if !ok {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// HTTPServer serves the MCP endpoint next to the event stream and a
// read-only status endpoint
type HTTPServer struct {
	mux *http.ServeMux
}

// NewHTTPServer mounts everything below endpoint:
//
//	endpoint              streamable MCP
//	endpoint/sse          event stream
//	endpoint/sse/clients  connected clients
//	endpoint/sse/stats    stream statistics
//	endpoint/status       current page status
func NewHTTPServer(logger *zap.Logger, s *server.MCPServer, events *EventServer, converter service.Converter, endpoint string) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	mux.Handle(endpoint, server.NewStreamableHTTPServer(
		s,
		server.WithEndpointPath(endpoint),
		server.WithHTTPContextFunc(httpContextFunc),
	))

	mux.HandleFunc(endpoint+"/sse", events.HandleSSE)
	mux.HandleFunc(endpoint+"/sse/clients", func(w http.ResponseWriter, r *http.Request) {
		clients := events.GetConnectedClients()
		writeJSON(logger, w, http.StatusOK, map[string]interface{}{
			"connectedClients": len(clients),
			"clients":          clients,
		})
	})
	mux.HandleFunc(endpoint+"/sse/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(logger, w, http.StatusOK, events.GetStats())
	})
	mux.HandleFunc(endpoint+"/status", func(w http.ResponseWriter, r *http.Request) {
		status, err := converter.Status()
		if errors.Is(err, service.ErrNoPage) {
			writeJSON(logger, w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(logger, w, http.StatusOK, status)
	})

	return &HTTPServer{mux: mux}
}

// ServeHTTP implements http.Handler
func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", zap.Error(err))
	}
}
