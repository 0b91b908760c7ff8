package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.True(t, cfg.Headless)
	assert.Equal(t, 1500*time.Millisecond, cfg.NavDelay)
	assert.Equal(t, 50, cfg.MaxScrollRounds)
	assert.NotEmpty(t, cfg.UserAgent)
	assert.Positive(t, cfg.NavTimeout)
	assert.Positive(t, cfg.ScrollSettle)
}
