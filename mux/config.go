package mux

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Duration is a yaml-friendly wrapper over time.Duration accepting
// "500ms" / "1m30s" strings.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the YAML-file description of a router and its middleware
// limits, used by the demo CLI and by embedders that prefer files over
// code. Sections left out of the file leave the matching middleware
// unattached.
type Config struct {
	Router     RouterConfig     `yaml:"router"`
	Middleware MiddlewareConfig `yaml:"middleware"`
}

// RouterConfig holds router-level settings.
type RouterConfig struct {
	DefaultAgent     string `yaml:"default_agent"`
	StopOnFirstMatch *bool  `yaml:"stop_on_first_match"`
}

// MiddlewareConfig groups per-middleware settings. Pointer sections are
// optional; nil means the middleware is not attached.
type MiddlewareConfig struct {
	Validation  bool              `yaml:"validation"`
	Logging     bool              `yaml:"logging"`
	Enrichment  bool              `yaml:"enrichment"`
	VIPSenders  []string          `yaml:"vip_senders"`
	Cache       *CacheConfig      `yaml:"cache"`
	RateLimit   *RateLimitConfig  `yaml:"rate_limit"`
	Retry       *RetryConfig      `yaml:"retry"`
	Metrics     bool              `yaml:"metrics"`
	Analytics   bool              `yaml:"analytics"`
	HealthCheck *HealthConfig     `yaml:"health_check"`
	Queue       *QueueConfig      `yaml:"queue"`
	Tracing     *TracingConfig    `yaml:"tracing"`
}

// CacheConfig configures the caching middleware.
type CacheConfig struct {
	TTL        Duration `yaml:"ttl"`
	MaxEntries int      `yaml:"max_entries"`
}

// RateLimitConfig configures the rate-limit middleware.
type RateLimitConfig struct {
	MaxRequests int      `yaml:"max_requests"`
	Window      Duration `yaml:"window"`
}

// RetryConfig configures the retry middleware.
type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
}

// HealthConfig configures the health-check middleware.
type HealthConfig struct {
	Interval Duration `yaml:"interval"`
}

// QueueConfig configures the batching middleware.
type QueueConfig struct {
	BatchSize    int      `yaml:"batch_size"`
	BatchTimeout Duration `yaml:"batch_timeout"`
}

// TracingConfig configures the tracing middleware.
type TracingConfig struct {
	ServiceName string `yaml:"service_name"`
}

// configSchema validates the raw config document before decoding, so
// misspelled sections and wrongly typed limits fail with a schema error
// instead of silently zeroing fields.
const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "router": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "default_agent": {"type": "string"},
        "stop_on_first_match": {"type": "boolean"}
      }
    },
    "middleware": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "validation": {"type": "boolean"},
        "logging": {"type": "boolean"},
        "enrichment": {"type": "boolean"},
        "vip_senders": {"type": "array", "items": {"type": "string"}},
        "cache": {
          "type": "object",
          "additionalProperties": false,
          "required": ["ttl", "max_entries"],
          "properties": {
            "ttl": {"type": "string"},
            "max_entries": {"type": "integer", "minimum": 1}
          }
        },
        "rate_limit": {
          "type": "object",
          "additionalProperties": false,
          "required": ["max_requests", "window"],
          "properties": {
            "max_requests": {"type": "integer", "minimum": 1},
            "window": {"type": "string"}
          }
        },
        "retry": {
          "type": "object",
          "additionalProperties": false,
          "required": ["max_attempts"],
          "properties": {
            "max_attempts": {"type": "integer", "minimum": 1},
            "base_delay": {"type": "string"}
          }
        },
        "metrics": {"type": "boolean"},
        "analytics": {"type": "boolean"},
        "health_check": {
          "type": "object",
          "additionalProperties": false,
          "required": ["interval"],
          "properties": {
            "interval": {"type": "string"}
          }
        },
        "queue": {
          "type": "object",
          "additionalProperties": false,
          "required": ["batch_size", "batch_timeout"],
          "properties": {
            "batch_size": {"type": "integer", "minimum": 1},
            "batch_timeout": {"type": "string"}
          }
        },
        "tracing": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "service_name": {"type": "string"}
          }
        }
      }
    }
  }
}`

// LoadConfig reads, validates, and decodes a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig validates raw YAML against the config schema and decodes it.
func ParseConfig(data []byte) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// The schema validator expects json-decoded values, so the yaml tree
	// is round-tripped through encoding/json first.
	jsonBytes, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalizing config: %w", err)
	}
	var doc any
	if err := json.Unmarshal(jsonBytes, &doc); err != nil {
		return nil, fmt.Errorf("normalizing config: %w", err)
	}

	schema, err := jsonschema.CompileString("config.schema.json", configSchema)
	if err != nil {
		return nil, fmt.Errorf("compiling config schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}
