// Package greeting implements the two greeting operations served by
// gatekeeper.
package greeting

import (
	"context"
	"fmt"
	"log/slog"

	"gatekeeper/internal/models"
)

// Anonymous is used when the caller does not supply a name.
const Anonymous = "unknown"

// Service builds greeting responses.
type Service struct{}

// NewService creates a greeting service.
func NewService() *Service {
	return &Service{}
}

// Greet returns "hello {name}!". An empty name greets Anonymous.
func (s *Service) Greet(ctx context.Context, name string) *models.GreetingResponse {
	if name == "" {
		name = Anonymous
	}
	slog.InfoContext(ctx, fmt.Sprintf("Request from %s received", name), "name", name)
	return models.NewGreetingResponse(fmt.Sprintf("hello %s!", name))
}
