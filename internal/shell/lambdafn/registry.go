// Package lambdafn adapts the cost report to the Lambda invocation contract.
// This is part of the Imperative Shell - it owns the event and response types
// and resolves the handler symbol the platform asks for.
package lambdafn

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"

	"github.com/artpar/code-explorer/internal/core/artifact"
)

// HandlerFunc is the invocation signature of every registered handler.
type HandlerFunc func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

var (
	// ErrHandlerNotFound is returned at cold start when the requested symbol is not registered.
	ErrHandlerNotFound = errors.New("handler not found")

	// ErrDuplicateHandler is returned when a symbol is registered twice.
	ErrDuplicateHandler = errors.New("handler already registered")
)

// Registry maps handler symbols (<module>.<symbol>) to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register adds a handler under name.
func (r *Registry) Register(name string, h HandlerFunc) error {
	if err := artifact.ValidateEntryPoint(name); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("handler %q is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, name)
	}
	r.handlers[name] = h
	return nil
}

// Resolve returns the handler registered under name.
func (r *Registry) Resolve(name string) (HandlerFunc, error) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrHandlerNotFound, name, strings.Join(r.Names(), ", "))
	}
	return h, nil
}

// Names returns the registered symbols, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HandlerName picks the symbol to resolve: the platform's _HANDLER value
// when set, otherwise the configured fallback.
func HandlerName(platformHandler, fallback string) string {
	if name := strings.TrimSpace(platformHandler); name != "" {
		return name
	}
	return fallback
}
