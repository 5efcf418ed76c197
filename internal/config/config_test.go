package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/snehjoshi/seqrelay/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_HasSensibleValues(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, uint32(1), cfg.Node.PeerID)
	assert.Equal(t, "auto", cfg.Node.InstanceID)
	assert.Equal(t, 1_000, cfg.MessageLog.ReceivedLimit)
	assert.Equal(t, 1_000, cfg.MessageLog.SentLimit)
	assert.Equal(t, 1_000, cfg.MessageLog.SentMapLimit)
	assert.Equal(t, "reliable", cfg.MessageLog.SendFilter)
	assert.Equal(t, config.DuplicateKeepFirst, cfg.MessageLog.DuplicatePolicy)
	assert.Equal(t, config.NumberingGlobal, cfg.Sequence.Numbering)
	assert.False(t, cfg.Admin.Enabled, "admin surface is opt-in")
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile_ReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
node:
  peer_id: 42
  data_dir: "/tmp/seqrelay_test"
message_log:
  sent_limit: 64
  sent_map_limit: 32
  duplicate_policy: strict
sequence:
  numbering: per_peer
admin:
  enabled: true
  port: 9999
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(42), cfg.Node.PeerID)
	assert.Equal(t, "/tmp/seqrelay_test", cfg.Node.DataDir)
	assert.Equal(t, 64, cfg.MessageLog.SentLimit)
	assert.Equal(t, 32, cfg.MessageLog.SentMapLimit)
	assert.Equal(t, config.DuplicateStrict, cfg.MessageLog.DuplicatePolicy)
	assert.Equal(t, config.NumberingPerPeer, cfg.Sequence.Numbering)
	assert.True(t, cfg.Admin.Enabled)
	assert.Equal(t, 9999, cfg.Admin.Port)

	// Unset fields keep their defaults.
	assert.Equal(t, 1_000, cfg.MessageLog.ReceivedLimit)
	assert.Equal(t, "auto", cfg.Node.InstanceID)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "node: [unclosed")
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SEQRELAY_DATA_DIR", "/env/data")
	t.Setenv("SEQRELAY_ADMIN_PORT", "7070")
	t.Setenv("SEQRELAY_NUMBERING", "PER_PEER")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/env/data", cfg.Node.DataDir)
	assert.Equal(t, 7070, cfg.Admin.Port)
	assert.True(t, cfg.Admin.Enabled)
	assert.Equal(t, config.NumberingPerPeer, cfg.Sequence.Numbering)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := writeConfig(t, "node:\n  data_dir: /from/file\n")
	t.Setenv("SEQRELAY_DATA_DIR", "/from/env")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Node.DataDir)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := config.Default()
	cfg.Node.PeerID = 0
	cfg.MessageLog.SentMapLimit = 0
	cfg.MessageLog.SendFilter = "sometimes"
	cfg.Sequence.Numbering = "random"
	cfg.Quality.Floor = 2

	err := cfg.Validate()
	require.Error(t, err)

	errs := multierr.Errors(err)
	assert.Len(t, errs, 5)
	assert.Contains(t, err.Error(), "node.peer_id")
	assert.Contains(t, err.Error(), "message_log.sent_map_limit")
	assert.Contains(t, err.Error(), "message_log.send_filter")
	assert.Contains(t, err.Error(), "sequence.numbering")
	assert.Contains(t, err.Error(), "quality.floor")
}

func TestValidate_AdminOnlyCheckedWhenEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.Admin.Port = 0
	assert.NoError(t, cfg.Validate())

	cfg.Admin.Enabled = true
	assert.Error(t, cfg.Validate())
}

func TestValidate_JournalBuffer(t *testing.T) {
	cfg := config.Default()
	cfg.Events.JournalBuffer = 0
	assert.NoError(t, cfg.Validate(), "buffer is irrelevant without a journal")

	cfg.Events.JournalPath = "events.db"
	assert.Error(t, cfg.Validate())
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		cfg := config.Default()
		cfg.Log.Level = in
		assert.Equal(t, want, cfg.SlogLevel(), in)
	}
}
