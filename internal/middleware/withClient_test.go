package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atinyakov/linkcore/internal/middleware"
)

func TestWithClient(t *testing.T) {
	tests := []struct {
		name          string
		trustedSubnet string
		remoteAddr    string
		realIP        string
		country       string
		want          middleware.Client
	}{
		{
			name:          "trusted proxy",
			trustedSubnet: "10.0.0.0/8",
			remoteAddr:    "10.1.2.3:5555",
			realIP:        "203.0.113.7",
			country:       "DE",
			want:          middleware.Client{IP: "203.0.113.7", Country: "DE"},
		},
		{
			name:          "untrusted peer",
			trustedSubnet: "10.0.0.0/8",
			remoteAddr:    "198.51.100.1:5555",
			realIP:        "203.0.113.7",
			country:       "DE",
			want:          middleware.Client{IP: "198.51.100.1"},
		},
		{
			name:       "no subnet configured",
			remoteAddr: "10.1.2.3:5555",
			realIP:     "203.0.113.7",
			want:       middleware.Client{IP: "10.1.2.3"},
		},
		{
			name:          "malformed subnet",
			trustedSubnet: "not-a-cidr",
			remoteAddr:    "127.0.0.1:80",
			realIP:        "203.0.113.7",
			want:          middleware.Client{IP: "127.0.0.1"},
		},
		{
			name:          "trusted peer without headers",
			trustedSubnet: "127.0.0.0/8",
			remoteAddr:    "127.0.0.1:80",
			want:          middleware.Client{IP: "127.0.0.1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got middleware.Client
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = middleware.ClientFrom(r.Context())
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.country != "" {
				req.Header.Set("X-Country", tt.country)
			}

			middleware.WithClient(tt.trustedSubnet)(handler).ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}
