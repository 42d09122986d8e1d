package server

import (
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeOrigins(t *testing.T) {
	normalized, allowAll := normalizeOrigins([]string{" HTTP://LocalHost:8080 ", "", "not a url", "https://chat.example.com/path"}, zerolog.Nop())

	assert.False(t, allowAll)
	assert.Equal(t, []string{"http://localhost:8080", "https://chat.example.com"}, normalized)

	_, allowAll = normalizeOrigins([]string{"*"}, zerolog.Nop())
	assert.True(t, allowAll)
}

func TestOriginPolicy(t *testing.T) {
	policy := newOriginPolicy([]string{"http://localhost:8080"}, zerolog.Nop())

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:8080", true},
		{"http://LOCALHOST:8080", true},
		{"http://localhost:9999", false},
		{"https://evil.example.com", false},
		{"null", false},
	}

	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, policy.checkOrigin(r), "origin %q", tt.origin)
	}
}

func TestOriginPolicyAllowAll(t *testing.T) {
	policy := newOriginPolicy([]string{"*"}, zerolog.Nop())

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "https://anywhere.example.com")
	assert.True(t, policy.checkOrigin(r))
}
