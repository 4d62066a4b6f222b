package main

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/blueberrycongee/tripmux/internal/metrics"
	"github.com/blueberrycongee/tripmux/internal/observability"
)

func buildMiddlewareStack(next http.Handler) http.Handler {
	if next == nil {
		return nil
	}
	handler := metrics.Middleware(next)
	handler = observability.RequestIDMiddleware(handler)
	// Outermost so the server span is the parent of the completion span.
	handler = otelhttp.NewHandler(handler, "tripmux-http-server")
	return handler
}
