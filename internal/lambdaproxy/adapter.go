// Package lambdaproxy runs an http.Handler behind API Gateway.
//
// Both payload formats are accepted: REST APIs (payload v1) and HTTP APIs
// (payload v2). The event is converted to an *http.Request, served by the
// same handler the standalone server uses, and the recorded response is
// converted back to the matching API Gateway response type.
package lambdaproxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"gatekeeper/internal/logger"

	"github.com/aws/aws-lambda-go/events"
)

// ErrUnknownEvent is returned for payloads that are neither API Gateway
// v1 nor v2 proxy events.
var ErrUnknownEvent = errors.New("unknown lambda event")

// Adapter dispatches API Gateway events to an http.Handler.
type Adapter struct {
	handler  http.Handler
	logEvent bool
}

// NewAdapter creates an adapter for handler. With logEvent set, every raw
// event is logged at debug level.
func NewAdapter(handler http.Handler, logEvent bool) *Adapter {
	return &Adapter{handler: handler, logEvent: logEvent}
}

// Handle is the Lambda entrypoint. The payload is treated as v2 when
// requestContext.http.method is present and as v1 otherwise.
func (a *Adapter) Handle(ctx context.Context, raw json.RawMessage) (any, error) {
	if a.logEvent {
		slog.DebugContext(ctx, "Lambda event received", "event", string(raw))
	}

	var v2 events.APIGatewayV2HTTPRequest
	if json.Unmarshal(raw, &v2) == nil && v2.RequestContext.HTTP.Method != "" {
		return a.handleV2(ctx, &v2)
	}

	var v1 events.APIGatewayProxyRequest
	if json.Unmarshal(raw, &v1) == nil && v1.HTTPMethod != "" {
		return a.handleV1(ctx, &v1)
	}

	return nil, ErrUnknownEvent
}

func (a *Adapter) handleV1(ctx context.Context, event *events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ctx = withRequestID(ctx, event.RequestContext.RequestID)

	req, err := requestFromV1(ctx, event)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("failed to convert v1 event: %w", err)
	}

	rw := newResponseWriter()
	a.handler.ServeHTTP(rw, req)
	return rw.v1Response(), nil
}

func (a *Adapter) handleV2(ctx context.Context, event *events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	ctx = withRequestID(ctx, event.RequestContext.RequestID)

	req, err := requestFromV2(ctx, event)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, fmt.Errorf("failed to convert v2 event: %w", err)
	}

	rw := newResponseWriter()
	a.handler.ServeHTTP(rw, req)
	return rw.v2Response(), nil
}

func withRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return logger.WithRequestID(ctx, id)
}
