package jira

import (
	"context"
	"crypto/tls"
	"math"
	"net"
	"net/url"
	"time"
)

// certDialTimeout bounds the TLS handshake of CheckCert.
const certDialTimeout = 10 * time.Second

// CertStatus describes the leaf certificate served by the Jira site.
type CertStatus struct {
	Endpoint string `json:"endpoint"`
	// Status is one of: valid | expiring | expired | unreachable.
	Status   string `json:"status"`
	NotAfter string `json:"not_after,omitempty"`
	Issuer   string `json:"issuer,omitempty"`
	DaysLeft int    `json:"days_left"`
}

// CheckCert dials baseURL and inspects its certificate. It returns nil for
// plain-HTTP or unparseable URLs.
func CheckCert(ctx context.Context, baseURL string, insecure bool) *CertStatus {
	return checkCert(ctx, baseURL, insecure, time.Now())
}

func checkCert(ctx context.Context, baseURL string, insecure bool, now time.Time) *CertStatus {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme != "https" {
		return nil
	}
	cs := &CertStatus{Endpoint: baseURL}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, certDialTimeout)
	defer cancel()
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config:    &tls.Config{InsecureSkipVerify: insecure}, //nolint:gosec // user-configured
	}
	conn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = "unreachable"
		return cs
	}
	defer conn.Close()

	peers := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(peers) == 0 {
		cs.Status = "unreachable"
		return cs
	}
	leaf := peers[0]
	days := leaf.NotAfter.Sub(now).Hours() / 24
	cs.NotAfter = leaf.NotAfter.UTC().Format(time.RFC3339)
	cs.Issuer = leaf.Issuer.CommonName
	cs.DaysLeft = int(math.Floor(days))

	switch {
	case days <= 0:
		cs.Status = "expired"
	case days <= 30:
		cs.Status = "expiring"
	default:
		cs.Status = "valid"
	}
	return cs
}
