package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	s := Load()

	assert.Equal(t, "*", s.CORSOrigin)
	assert.Equal(t, "8080", s.ServerPort)
	assert.Equal(t, 10*time.Second, s.ProbeTimeout)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", s.BedrockModelID)
	assert.NotEmpty(t, s.SystemPrompt)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CORS_ORIGIN", "https://app.example.com")
	t.Setenv("PROBE_TIMEOUT", "3s")
	t.Setenv("AWS_REGION", "eu-west-1")

	s := Load()

	assert.Equal(t, "https://app.example.com", s.CORSOrigin)
	assert.Equal(t, 3*time.Second, s.ProbeTimeout)
	assert.Equal(t, "eu-west-1", s.AWSRegion)
}
