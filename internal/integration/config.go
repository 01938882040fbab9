// Package integration normalizes heterogeneous bot endpoint shapes into
// three callable operations: authenticate, thread init, and chat send.
package integration

import (
	"encoding/json"
	"net/url"
	"os"
	"strings"

	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// EndpointSpec describes one HTTP endpoint of a target integration.
// Payload is a JSON template; string values may carry substitution tokens
// ($PROMPT, $THREAD_ID, $AUTH_TOKEN, $HISTORY).
type EndpointSpec struct {
	Endpoint     string            `json:"endpoint" yaml:"endpoint"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Payload      map[string]any    `json:"payload,omitempty" yaml:"payload,omitempty"`
	ResponsePath string            `json:"response_path,omitempty" yaml:"response_path,omitempty"`
}

// IntegrationConfig describes how to talk to a target bot.
// ChatCompletion is always required; ThreadAuth and ThreadInit are optional
// and, when present, are invoked exactly once per conversation before the
// first chat turn.
type IntegrationConfig struct {
	Streaming      bool          `json:"streaming" yaml:"streaming"`
	ThreadAuth     *EndpointSpec `json:"thread_auth,omitempty" yaml:"thread_auth,omitempty"`
	ThreadInit     *EndpointSpec `json:"thread_init,omitempty" yaml:"thread_init,omitempty"`
	ChatCompletion *EndpointSpec `json:"chat_completion" yaml:"chat_completion"`
}

// ParseConfig parses an IntegrationConfig from a raw JSON document.
func ParseConfig(raw []byte) (*IntegrationConfig, error) {
	var cfg IntegrationConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, types.WrapError(types.INTEGRATION_INVALID, "failed to parse integration config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ParseConfigString parses an IntegrationConfig from either an inline JSON
// string or a path to a JSON file, mirroring how operators pass the
// --endpoint flag.
func ParseConfigString(s string) (*IntegrationConfig, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") {
		return ParseConfig([]byte(trimmed))
	}

	data, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, types.WrapError(types.INTEGRATION_INVALID, "failed to read integration config file", err)
	}

	return ParseConfig(data)
}

// Validate checks structural invariants of the config.
func (c *IntegrationConfig) Validate() error {
	if c.ChatCompletion == nil {
		return types.NewError(types.INTEGRATION_INVALID, "chat_completion endpoint is required")
	}

	if err := c.ChatCompletion.validate("chat_completion"); err != nil {
		return err
	}
	if c.ThreadAuth != nil {
		if err := c.ThreadAuth.validate("thread_auth"); err != nil {
			return err
		}
	}
	if c.ThreadInit != nil {
		if err := c.ThreadInit.validate("thread_init"); err != nil {
			return err
		}
	}

	return nil
}

func (e *EndpointSpec) validate(name string) error {
	if e.Endpoint == "" {
		return types.NewError(types.INTEGRATION_INVALID, name+" endpoint URL is required")
	}

	u, err := url.Parse(e.Endpoint)
	if err != nil {
		return types.WrapError(types.INTEGRATION_INVALID, name+" endpoint URL is malformed", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return types.NewError(types.INTEGRATION_INVALID, name+" endpoint scheme must be http or https")
	}

	return nil
}
