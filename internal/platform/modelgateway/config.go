package modelgateway

import (
	"fmt"
	"strings"
	"time"
)

// Config holds everything the gateway needs to reach the model backend.
// It is built once at startup and passed in; nothing here mutates at
// runtime.
type Config struct {
	// Endpoints is the ordered candidate list, primary first. Candidates
	// are tried strictly in order, never in parallel, so a flaky primary
	// cannot trigger duplicate billable model calls.
	Endpoints []string

	// APIKey is the shared-secret credential sent on every outbound call.
	APIKey string

	// ConnectTimeout bounds dialing a single candidate; AttemptTimeout
	// bounds one full candidate attempt including slow model inference.
	ConnectTimeout time.Duration
	AttemptTimeout time.Duration

	// EmbeddingDim is the deployment-time vector dimension. Responses with
	// any other dimension are malformed.
	EmbeddingDim int
}

func (c Config) withDefaults() Config {
	out := c
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = 3 * time.Second
	}
	if out.AttemptTimeout <= 0 {
		out.AttemptTimeout = 120 * time.Second
	}
	if out.EmbeddingDim <= 0 {
		out.EmbeddingDim = 384
	}
	return out
}

func ValidateConfig(c Config) error {
	cleaned := 0
	for _, ep := range c.Endpoints {
		if strings.TrimSpace(ep) != "" {
			cleaned++
		}
	}
	if cleaned == 0 {
		return fmt.Errorf("model gateway config: at least one candidate endpoint is required")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("model gateway config: api key is required")
	}
	if c.ConnectTimeout < 0 || c.AttemptTimeout < 0 {
		return fmt.Errorf("model gateway config: timeouts must not be negative")
	}
	return nil
}
