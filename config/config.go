package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xraph/gameframework/errors"
	"github.com/xraph/gameframework/router"
	"github.com/xraph/gameframework/transfer"
)

// Transport kinds selectable in TransportConfig.
const (
	TransportLoopback  = "loopback"
	TransportNATS      = "nats"
	TransportWebSocket = "websocket"
)

// RouterConfig controls message dispatch and queuing.
type RouterConfig struct {
	// QueueUnknownTargets enables queuing messages for targets that have
	// not registered yet.
	QueueUnknownTargets bool `yaml:"queueUnknownTargets" json:"queueUnknownTargets"`
	// MaxQueueSize bounds the pending message queue.
	MaxQueueSize int `yaml:"maxQueueSize" json:"maxQueueSize"`
}

// TransferConfig controls chunked binary transfers.
type TransferConfig struct {
	// ChunkSize is the maximum bytes per chunk for outbound transfers.
	ChunkSize int `yaml:"chunkSize" json:"chunkSize"`
	// TTL is how long an incomplete inbound transfer is retained.
	TTL time.Duration `yaml:"ttl" json:"ttl"`
	// MaxActive bounds concurrent in-flight inbound transfers.
	MaxActive int `yaml:"maxActive" json:"maxActive"`
}

// NATSConfig configures the NATS transport.
type NATSConfig struct {
	URL           string        `yaml:"url" json:"url"`
	Name          string        `yaml:"name" json:"name"`
	SubjectPrefix string        `yaml:"subjectPrefix" json:"subjectPrefix"`
	MaxReconnects int           `yaml:"maxReconnects" json:"maxReconnects"`
	ReconnectWait time.Duration `yaml:"reconnectWait" json:"reconnectWait"`
	Username      string        `yaml:"username" json:"username"`
	Password      string        `yaml:"password" json:"password"`
	Token         string        `yaml:"token" json:"token"`
}

// WebSocketConfig configures the WebSocket transport.
type WebSocketConfig struct {
	Addr string `yaml:"addr" json:"addr"`
	Path string `yaml:"path" json:"path"`
}

// TransportConfig selects and configures the frame transport.
type TransportConfig struct {
	// Kind is one of loopback, nats, websocket.
	Kind      string          `yaml:"kind" json:"kind"`
	NATS      NATSConfig      `yaml:"nats" json:"nats"`
	WebSocket WebSocketConfig `yaml:"websocket" json:"websocket"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// Config is the root configuration of the bridge daemon.
type Config struct {
	Router    RouterConfig    `yaml:"router" json:"router"`
	Transfer  TransferConfig  `yaml:"transfer" json:"transfer"`
	Transport TransportConfig `yaml:"transport" json:"transport"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
}

// DefaultConfig returns a configuration suitable for local development:
// loopback transport, queuing enabled, metrics on localhost.
func DefaultConfig() Config {
	return Config{
		Router: RouterConfig{
			QueueUnknownTargets: true,
			MaxQueueSize:        router.DefaultMaxQueueSize,
		},
		Transfer: TransferConfig{
			ChunkSize: transfer.DefaultChunkSize,
			TTL:       transfer.DefaultTTL,
			MaxActive: transfer.DefaultMaxActive,
		},
		Transport: TransportConfig{
			Kind: TransportLoopback,
			NATS: NATSConfig{
				URL:           "nats://localhost:4222",
				Name:          "gameframework-bridge",
				SubjectPrefix: "gameframework.bridge",
				MaxReconnects: -1,
				ReconnectWait: 2 * time.Second,
			},
			WebSocket: WebSocketConfig{
				Addr: "localhost:8090",
				Path: "/bridge",
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "localhost:9100",
		},
	}
}

// Load reads a configuration file, layering it over DefaultConfig.
// Files ending in .yaml or .yml parse as YAML, anything else as JSON.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator
	if err != nil {
		return Config{}, errors.WrapInvalid(err, "config", "Load", "read file")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.WrapInvalid(err, "config", "Load", "parse yaml")
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.WrapInvalid(err, "config", "Load", "parse json")
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the whole configuration tree.
func (c *Config) Validate() error {
	if err := c.Router.Validate(); err != nil {
		return err
	}
	if err := c.Transfer.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	return c.Metrics.Validate()
}

// Validate checks router settings.
func (r *RouterConfig) Validate() error {
	if r.MaxQueueSize < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("router.maxQueueSize must be positive, got %d", r.MaxQueueSize))
	}
	return nil
}

// Validate checks transfer settings.
func (t *TransferConfig) Validate() error {
	if t.ChunkSize < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("transfer.chunkSize must be positive, got %d", t.ChunkSize))
	}
	if t.TTL <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"transfer.ttl must be positive")
	}
	if t.MaxActive < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("transfer.maxActive must be positive, got %d", t.MaxActive))
	}
	return nil
}

// Validate checks transport selection and the selected section.
func (t *TransportConfig) Validate() error {
	switch t.Kind {
	case TransportLoopback:
		return nil
	case TransportNATS:
		if t.NATS.URL == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "transport.nats.url required")
		}
		if t.NATS.SubjectPrefix == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate",
				"transport.nats.subjectPrefix required")
		}
		return nil
	case TransportWebSocket:
		if t.WebSocket.Addr == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate",
				"transport.websocket.addr required")
		}
		return nil
	case "":
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "transport.kind required")
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("unknown transport kind %q", t.Kind))
	}
}

// Validate checks metrics settings.
func (m *MetricsConfig) Validate() error {
	if m.Enabled && m.Addr == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "metrics.addr required when enabled")
	}
	return nil
}
