package jira

import (
	"crypto/tls"
	"net/http"

	"github.com/jiraquery/jiraquery/server/internal/auth"
	"github.com/jiraquery/jiraquery/server/internal/config"
)

// authRoundTripper injects credentials into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	cfg  config.JiraAuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.cfg.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.cfg.EffectiveHeader(), t.cfg.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.cfg.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.cfg.Username, t.cfg.Password())
	case "propagate":
		if h, ok := auth.CredentialsFrom(req.Context()); ok {
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", h)
		}
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs the http.Client for the configured auth and TLS.
func buildHTTPClient(cfg config.JiraConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	return &http.Client{
		Transport: &authRoundTripper{base: transport, cfg: cfg.Auth},
		Timeout:   cfg.Timeout,
	}
}
