package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Port: "8080"}
	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.ApiKey)
}
