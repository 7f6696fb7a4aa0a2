package auth

import (
	"context"
	"encoding/json"
	"net/http"
)

// RequireAPIKey wraps next so that requests must carry key in header.
// Checks are skipped when mode is not "apikey" or key is empty.
func RequireAPIKey(mode, header, key string, next http.Handler) http.Handler {
	if !enabled(mode, key) {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !keyMatches(r.Header.Get(header), key) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type credentialsKey struct{}

// WithCredentials stores an Authorization header value for forwarding to Jira.
func WithCredentials(ctx context.Context, authorization string) context.Context {
	if authorization == "" {
		return ctx
	}
	return context.WithValue(ctx, credentialsKey{}, authorization)
}

// CredentialsFrom returns the Authorization value stored by WithCredentials.
func CredentialsFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(credentialsKey{}).(string)
	return v, ok && v != ""
}

// PropagateCredentials copies the caller's Authorization header into the
// request context so the Jira client can forward it.
func PropagateCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get("Authorization"); h != "" {
			r = r.WithContext(WithCredentials(r.Context(), h))
		}
		next.ServeHTTP(w, r)
	})
}
