// Package devserver runs a registered handler locally. It emulates the API
// Gateway proxy integration over plain HTTP so the function can be exercised
// without deploying it.
package devserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/artpar/code-explorer/internal/config"
	"github.com/artpar/code-explorer/internal/shell/lambdafn"
)

// =============================================================================
// Server
// =============================================================================

// Server serves one handler symbol over HTTP.
type Server struct {
	cfg        config.ServerConfig
	symbol     string
	handler    lambdafn.HandlerFunc
	spec       *OpenAPI
	logger     *slog.Logger
	httpServer *http.Server
}

// New creates a dev server for the handler registered under symbol.
func New(cfg config.ServerConfig, symbol string, handler lambdafn.HandlerFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		symbol:  symbol,
		handler: handler,
		spec:    NewOpenAPI("http://" + cfg.Address()),
		logger:  logger.With("component", "devserver"),
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Routes returns the router with all routes configured.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/openapi.json", s.spec.Handler())
	r.Get("/costs", s.handleInvoke)

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting dev server", "address", s.cfg.Address(), "handler", s.symbol)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("initiating graceful shutdown")
	return s.httpServer.Shutdown(shutdownCtx)
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "handler": s.symbol})
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	req := ProxyRequest(r, uuid.NewString())
	w.Header().Set("X-Request-ID", req.RequestContext.RequestID)

	resp, err := s.handler(r.Context(), req)
	if err != nil {
		s.logger.Error("handler returned error", "request_id", req.RequestContext.RequestID, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	if err := WriteProxyResponse(w, resp); err != nil {
		s.logger.Error("failed to write response", "request_id", req.RequestContext.RequestID, "error", err)
	}
}

// =============================================================================
// Event Mapping
// =============================================================================

// ProxyRequest maps an HTTP request to the event API Gateway would deliver.
// Repeated query parameters keep their first value in QueryStringParameters.
func ProxyRequest(r *http.Request, requestID string) events.APIGatewayProxyRequest {
	query := r.URL.Query()
	params := make(map[string]string, len(query))
	for key, values := range query {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	headers := make(map[string]string, len(r.Header))
	for key, values := range r.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	return events.APIGatewayProxyRequest{
		Resource:                        r.URL.Path,
		Path:                            r.URL.Path,
		HTTPMethod:                      r.Method,
		Headers:                         headers,
		MultiValueHeaders:               r.Header,
		QueryStringParameters:           params,
		MultiValueQueryStringParameters: query,
		RequestContext: events.APIGatewayProxyRequestContext{
			RequestID:  requestID,
			Stage:      "local",
			HTTPMethod: r.Method,
			Path:       r.URL.Path,
		},
	}
}

// WriteProxyResponse writes a handler response the way API Gateway would.
func WriteProxyResponse(w http.ResponseWriter, resp events.APIGatewayProxyResponse) error {
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	for key, values := range resp.MultiValueHeaders {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}

	body := []byte(resp.Body)
	if resp.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(resp.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadGateway)
			return err
		}
		body = decoded
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}
