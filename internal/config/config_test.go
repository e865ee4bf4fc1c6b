package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"payEvents", "projectCreateEvents"}, cfg.Streams)
	assert.Equal(t, "./recent-runs.json", cfg.StateFile)
	assert.Equal(t, "https://ipfs.io", cfg.IPFSGateway)
	assert.Equal(t, 15*time.Second, cfg.CallTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Error(t, cfg.Validate())
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "notifier.yaml")
	content := "subgraph-url: https://file.example/graphql\n" +
		"discord-webhook: https://discord.example/hook\n" +
		"max-concurrency: 2\n"
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0o644))

	t.Setenv("NOTIFIER_SUBGRAPH_URL", "https://env.example/graphql")
	t.Setenv("NOTIFIER_STREAMS", "payEvents, payEvents ,")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("max-concurrency", 8, "")
	require.NoError(t, flags.Parse([]string{"--max-concurrency=4"}))

	cfg, err := Load(cfgFile, flags)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example/graphql", cfg.SubgraphURL)
	assert.Equal(t, "https://discord.example/hook", cfg.DiscordWebhook)
	assert.Equal(t, []string{"payEvents"}, cfg.Streams)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := Config{
		SubgraphURL:    "https://example/graphql",
		DiscordWebhook: "https://example/hook",
		Streams:        []string{"payEvents", "redeemEvents"},
		StateFile:      "state.json",
		CallTimeout:    time.Second,
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown stream "redeemEvents"`)

	cfg.Streams = []string{"projectCreateEvents"}
	assert.NoError(t, cfg.Validate())
}
