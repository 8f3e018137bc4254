package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigWithOverrides(t *testing.T) { //nolint:paralleltest // Uses global flags.
	path := filepath.Join(t.TempDir(), "udns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
hostname: kitchen
nameservers: [192.0.2.1]
retryInterval: 2s
`), 0o600))

	require.NoError(t, rootCmd.ParseFlags([]string{
		"--config", path,
		"--nameserver", "192.0.2.53",
		"--nameserver", "192.0.2.54",
		"--log", "debug",
	}))
	c, err := loadConfig(rootCmd)
	require.NoError(t, err)

	assert.Equal(t, "kitchen", c.Hostname)
	assert.Equal(t, []string{"192.0.2.53", "192.0.2.54"}, c.Nameservers)
	assert.Equal(t, "debug", c.LogLevel)

	opts := optionsFromConfig(c)
	assert.Equal(t, "kitchen", opts.Hostname)
	assert.Equal(t, 2*time.Second, opts.RetryInterval)
	assert.Equal(t, c.CacheBudget, opts.CacheBudget)
}
