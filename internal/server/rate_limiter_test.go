package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBurst(t *testing.T) {
	rl := newRateLimiter(3, time.Hour)

	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.False(t, rl.allow())
}

func TestRateLimiterRefills(t *testing.T) {
	rl := newRateLimiter(1, 20*time.Millisecond)

	assert.True(t, rl.allow())
	assert.False(t, rl.allow())
	assert.Eventually(t, rl.allow, time.Second, 5*time.Millisecond)
}

func TestRateLimiterSanitizesInput(t *testing.T) {
	rl := newRateLimiter(0, 0)

	assert.True(t, rl.allow())
}

func TestClientRateLimit(t *testing.T) {
	client := NewClient(nil, "127.0.0.1:1", ClientConfig{RateLimit: RateLimitConfig{Burst: 2, RefillInterval: time.Hour}})

	assert.True(t, client.checkRateLimit())
	assert.True(t, client.checkRateLimit())
	assert.False(t, client.checkRateLimit())

	unlimited := NewClient(nil, "127.0.0.1:1", ClientConfig{})
	for i := 0; i < 100; i++ {
		assert.True(t, unlimited.checkRateLimit())
	}
}
