// Package config holds all configuration types and loading logic for SeqRelay.
// Config structure never shrinks: fields are only added, never renamed or removed.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a SeqRelay process.
type Config struct {
	Node       NodeConfig       `yaml:"node"`
	MessageLog MessageLogConfig `yaml:"message_log"`
	Sequence   SequenceConfig   `yaml:"sequence"`
	Quality    QualityConfig    `yaml:"quality"`
	Events     EventsConfig     `yaml:"events"`
	Admin      AdminConfig      `yaml:"admin"`
	Simulation SimulationConfig `yaml:"simulation"`
	Log        LogConfig        `yaml:"log"`
}

// NodeConfig holds the identity of this process.
type NodeConfig struct {
	// PeerID is the numeric id other peers address this process by.
	// 0 is reserved for the global key id and is rejected.
	PeerID uint32 `yaml:"peer_id"`
	// InstanceID is a ULID string. Use "auto" to generate and persist one on
	// first start.
	InstanceID string `yaml:"instance_id"`
	DataDir    string `yaml:"data_dir"`
}

// DuplicatePolicy mirrors msglog.DuplicatePolicy without importing it.
type DuplicatePolicy string

const (
	DuplicateKeepFirst DuplicatePolicy = "keep_first" // skip a repeated key, default
	DuplicateStrict    DuplicatePolicy = "strict"     // reject a repeated key with a different payload
)

// MessageLogConfig bounds the per-session message log.
type MessageLogConfig struct {
	ReceivedLimit int `yaml:"received_limit"`
	SentLimit     int `yaml:"sent_limit"`
	SentMapLimit  int `yaml:"sent_map_limit"`
	// Filters are "reliable" (default), "all" or "none". A send filter of
	// "none" disables retransmission.
	ReceiveFilter   string          `yaml:"receive_filter"`
	SendFilter      string          `yaml:"send_filter"`
	DuplicatePolicy DuplicatePolicy `yaml:"duplicate_policy"`
}

// Numbering selects how sequence ids are assigned.
type Numbering string

const (
	NumberingGlobal  Numbering = "global"   // one counter shared by every peer
	NumberingPerPeer Numbering = "per_peer" // one counter per receiver
)

// SequenceConfig controls sequence id assignment.
type SequenceConfig struct {
	Numbering Numbering `yaml:"numbering"`
}

// QualityConfig tunes the per-peer link quality estimator.
type QualityConfig struct {
	PenaltyPerMessage float64 `yaml:"penalty_per_message"`
	RecoveryPerSecond float64 `yaml:"recovery_per_second"`
	Floor             float64 `yaml:"floor"`
}

// EventsConfig controls where operational events are recorded.
type EventsConfig struct {
	// MemoryLimit is how many recent events are kept in process.
	MemoryLimit int `yaml:"memory_limit"`
	// JournalPath enables the bbolt journal when non-empty. Relative paths
	// are resolved against node.data_dir.
	JournalPath   string `yaml:"journal_path"`
	JournalBuffer int    `yaml:"journal_buffer"`
}

// AdminConfig controls the admin HTTP surface.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	// RateLimitRPS is requests per second per client IP. 0 disables limiting.
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// SimulationConfig drives the built-in lossy-link exercise run by the binary.
type SimulationConfig struct {
	Messages             int     `yaml:"messages"`
	DropProbability      float64 `yaml:"drop_probability"`
	DuplicateProbability float64 `yaml:"duplicate_probability"`
	RequestIntervalMs    int     `yaml:"request_interval_ms"`
	TimeoutMs            int     `yaml:"timeout_ms"`
	// Seed makes a run reproducible. 0 picks a time-based seed.
	Seed int64 `yaml:"seed"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns a Config populated with safe, sensible defaults.
// It is the canonical source of truth for default values.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			PeerID:     1,
			InstanceID: "auto",
			DataDir:    "./data",
		},
		MessageLog: MessageLogConfig{
			ReceivedLimit:   1_000,
			SentLimit:       1_000,
			SentMapLimit:    1_000,
			ReceiveFilter:   "reliable",
			SendFilter:      "reliable",
			DuplicatePolicy: DuplicateKeepFirst,
		},
		Sequence: SequenceConfig{
			Numbering: NumberingGlobal,
		},
		Quality: QualityConfig{
			PenaltyPerMessage: 0.02,
			RecoveryPerSecond: 0.05,
			Floor:             0.05,
		},
		Events: EventsConfig{
			MemoryLimit:   1_000,
			JournalPath:   "",
			JournalBuffer: 1_024,
		},
		Admin: AdminConfig{
			Enabled:        false,
			Host:           "127.0.0.1",
			Port:           8090,
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Simulation: SimulationConfig{
			Messages:             500,
			DropProbability:      0.1,
			DuplicateProbability: 0.02,
			RequestIntervalMs:    20,
			TimeoutMs:            10_000,
			Seed:                 0,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file at path and overlays it on top of Default().
// If the file does not exist the default config is returned without error,
// making it easy to run SeqRelay with no config file at all.
//
// After loading the file, environment variables are applied as overrides:
//
//	SEQRELAY_DATA_DIR    sets node.data_dir
//	SEQRELAY_ADMIN_PORT  sets admin.port and enables the admin surface
//	SEQRELAY_NUMBERING   sets sequence.numbering
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays environment variable overrides onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SEQRELAY_DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("SEQRELAY_ADMIN_PORT"); v != "" {
		var p int
		if _, err := fmt.Sscanf(v, "%d", &p); err == nil && p > 0 {
			cfg.Admin.Port = p
			cfg.Admin.Enabled = true
		}
	}
	if v := os.Getenv("SEQRELAY_NUMBERING"); v != "" {
		cfg.Sequence.Numbering = Numbering(strings.ToLower(v))
	}
}

// SlogLevel maps Log.Level to a slog.Level. Unknown values map to Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks that the config values are consistent and within acceptable
// ranges. Every problem found is reported, combined with multierr.
func (c *Config) Validate() error {
	var errs error
	add := func(msg string) { errs = multierr.Append(errs, errors.New(msg)) }

	if c.Node.PeerID == 0 {
		add("node.peer_id must be at least 1")
	}
	if c.Node.DataDir == "" {
		add("node.data_dir must not be empty")
	}

	if c.MessageLog.ReceivedLimit < 1 {
		add("message_log.received_limit must be at least 1")
	}
	if c.MessageLog.SentLimit < 1 {
		add("message_log.sent_limit must be at least 1")
	}
	if c.MessageLog.SentMapLimit < 1 {
		add("message_log.sent_map_limit must be at least 1")
	}
	for _, f := range []struct{ name, value string }{
		{"message_log.receive_filter", c.MessageLog.ReceiveFilter},
		{"message_log.send_filter", c.MessageLog.SendFilter},
	} {
		switch f.value {
		case "", "reliable", "all", "none":
		default:
			add(fmt.Sprintf(`%s must be one of "reliable", "all", "none"`, f.name))
		}
	}
	switch c.MessageLog.DuplicatePolicy {
	case "", DuplicateKeepFirst, DuplicateStrict:
	default:
		add(`message_log.duplicate_policy must be one of "keep_first", "strict"`)
	}

	switch c.Sequence.Numbering {
	case NumberingGlobal, NumberingPerPeer:
	default:
		add(`sequence.numbering must be one of "global", "per_peer"`)
	}

	if c.Quality.PenaltyPerMessage < 0 {
		add("quality.penalty_per_message must be >= 0")
	}
	if c.Quality.RecoveryPerSecond < 0 {
		add("quality.recovery_per_second must be >= 0")
	}
	if c.Quality.Floor < 0 || c.Quality.Floor > 1 {
		add("quality.floor must be between 0 and 1")
	}

	if c.Events.MemoryLimit < 1 {
		add("events.memory_limit must be at least 1")
	}
	if c.Events.JournalPath != "" && c.Events.JournalBuffer < 1 {
		add("events.journal_buffer must be at least 1 when the journal is enabled")
	}

	if c.Admin.Enabled {
		if c.Admin.Port < 1 || c.Admin.Port > 65535 {
			add("admin.port must be between 1 and 65535")
		}
		if c.Admin.RateLimitRPS < 0 {
			add("admin.rate_limit_rps must be >= 0")
		}
		if c.Admin.RateLimitRPS > 0 && c.Admin.RateLimitBurst < 1 {
			add("admin.rate_limit_burst must be at least 1 when rate limiting is on")
		}
	}

	if c.Simulation.Messages < 0 {
		add("simulation.messages must be >= 0")
	}
	if p := c.Simulation.DropProbability; p < 0 || p >= 1 {
		add("simulation.drop_probability must be in [0, 1)")
	}
	if p := c.Simulation.DuplicateProbability; p < 0 || p > 1 {
		add("simulation.duplicate_probability must be in [0, 1]")
	}
	if c.Simulation.RequestIntervalMs < 1 {
		add("simulation.request_interval_ms must be at least 1")
	}
	if c.Simulation.TimeoutMs < 1 {
		add("simulation.timeout_ms must be at least 1")
	}
	return errs
}
