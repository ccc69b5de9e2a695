package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// ClientKey stores the resolved Client of a request.
const ClientKey ContextKey = "client"

// Client is what the server knows about the visitor's address.
type Client struct {
	IP      string
	Country string
}

// ClientFrom returns the Client injected by WithClient, or the zero value.
func ClientFrom(ctx context.Context) Client {
	c, _ := ctx.Value(ClientKey).(Client)
	return c
}

// WithClient resolves the visitor address. X-Real-IP and X-Country are only
// believed when the direct peer lies inside trustedSubnet; otherwise the peer
// address is used and the country stays unknown.
func WithClient(trustedSubnet string) func(next http.Handler) http.Handler {
	var trusted *net.IPNet
	if trustedSubnet != "" {
		if _, n, err := net.ParseCIDR(trustedSubnet); err == nil {
			trusted = n
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peer := r.RemoteAddr
			if host, _, err := net.SplitHostPort(peer); err == nil {
				peer = host
			}
			c := Client{IP: peer}

			if ip := net.ParseIP(peer); trusted != nil && ip != nil && trusted.Contains(ip) {
				if forwarded := strings.TrimSpace(r.Header.Get("X-Real-IP")); forwarded != "" {
					c.IP = forwarded
				}
				c.Country = strings.TrimSpace(r.Header.Get("X-Country"))
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ClientKey, c)))
		})
	}
}
