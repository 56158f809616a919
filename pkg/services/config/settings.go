// Package config reads service settings from the environment.
package config

import (
	"time"

	"github.com/spf13/viper"
)

type Settings struct {
	ServerHost     string
	ServerPort     string
	CORSOrigin     string
	ProbeTimeout   time.Duration
	AWSRegion      string
	BedrockModelID string
	SystemPrompt   string
}

const defaultSystemPrompt = "You are JohnnyCloud, an AWS cost & security assistant. " +
	"Help users with AWS FinOps and SecOps questions. Be concise, helpful, and focus on " +
	"cost optimization, security monitoring, and infrastructure insights."

// Load binds settings to environment variables and applies defaults. It never
// fails on a missing variable; anything required at runtime (like AWS
// credentials) surfaces later where it is used.
func Load() *Settings {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("CORS_ORIGIN", "*")
	v.SetDefault("PROBE_TIMEOUT", "10s")
	v.SetDefault("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("SYSTEM_PROMPT", defaultSystemPrompt)

	return &Settings{
		ServerHost:     v.GetString("SERVER_HOST"),
		ServerPort:     v.GetString("SERVER_PORT"),
		CORSOrigin:     v.GetString("CORS_ORIGIN"),
		ProbeTimeout:   v.GetDuration("PROBE_TIMEOUT"),
		AWSRegion:      v.GetString("AWS_REGION"),
		BedrockModelID: v.GetString("BEDROCK_MODEL_ID"),
		SystemPrompt:   v.GetString("SYSTEM_PROMPT"),
	}
}
