package api

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{
			name:       "remote addr",
			remoteAddr: "10.0.0.5:51234",
			want:       "10.0.0.5",
		},
		{
			name:       "forwarded for chain",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"},
			remoteAddr: "10.0.0.1:80",
			want:       "203.0.113.7",
		},
		{
			name:       "real ip",
			headers:    map[string]string{"X-Real-IP": "198.51.100.2"},
			remoteAddr: "10.0.0.1:80",
			want:       "198.51.100.2",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "10.0.0.9",
			want:       "10.0.0.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestRateLimiterPerClient(t *testing.T) {
	l := NewRateLimiter(0.001, 2)
	defer l.Stop()

	a := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	a.RemoteAddr = "10.0.0.1:1000"
	b := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	b.RemoteAddr = "10.0.0.2:1000"

	assert.True(t, l.Allow(a))
	assert.True(t, l.Allow(a))
	assert.False(t, l.Allow(a))
	assert.True(t, l.Allow(b))
}

func TestRateLimiterCleanup(t *testing.T) {
	l := NewRateLimiter(1, 1)
	defer l.Stop()

	for i := 0; i <= maxLimiters; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", "ip-"+strconv.Itoa(i))
		l.Allow(req)
	}
	assert.Greater(t, len(l.byIP), maxLimiters)

	l.Cleanup()
	assert.Empty(t, l.byIP)
}
