package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/gaminghub/internal/api/apierr"
	"github.com/mcoot/gaminghub/internal/middleware"
)

// Recovery creates panic recovery middleware for the API.
// The JSON error names the request id so a report can be matched to the logged stack.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, apiPanicHandler)
}

func apiPanicHandler(w http.ResponseWriter, r *http.Request, _ any) {
	apierr.WriteError(w, apierr.NewInternalErrorFor(middleware.RequestID(r.Context())))
}
