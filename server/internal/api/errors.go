package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jiraquery/jiraquery/pkg/aggregate"
	"github.com/jiraquery/jiraquery/pkg/enrich"
	"github.com/jiraquery/jiraquery/server/internal/jira"
)

// statusFor maps a query failure onto an HTTP status.
//
//	*aggregate.ConfigError         400  the request cannot be served as asked
//	*jira.Error 400/401/403/404    same Jira rejected the query or credentials
//	*jira.Error other              502
//	*enrich.FormatError            502  Jira returned malformed data
//	context.DeadlineExceeded       504
func statusFor(err error) int {
	var (
		cerr *aggregate.ConfigError
		jerr *jira.Error
		ferr *enrich.FormatError
	)
	switch {
	case errors.As(err, &cerr):
		return http.StatusBadRequest
	case errors.As(err, &jerr):
		switch jerr.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return jerr.StatusCode
		}
		return http.StatusBadGateway
	case errors.As(err, &ferr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes it as a JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	level := slog.LevelWarn
	if code >= 500 {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "api: request failed",
		"path", r.URL.Path, "status", code, "request_id", RequestID(r.Context()), "err", err)
	jsonErr(w, code, err.Error())
}
